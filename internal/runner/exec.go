package runner

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"strings"

	"lazyrun/internal/graph"
	"lazyrun/internal/logging"
	"lazyrun/internal/model"
)

// spawn runs the task's shell command in its package directory, streaming
// prefixed output. A non-zero exit marks the task failed; the run as a
// whole keeps going and reports through the Summary.
func (r *Runner) spawn(ctx context.Context, task *graph.ScheduledTask, st *taskState) error {
	if err := st.transition(model.StatusRunning); err != nil {
		return err
	}

	command := task.Command
	if len(task.ExtraArgs) > 0 {
		command += " " + shellJoin(task.ExtraArgs)
	}
	r.Logger.Infof("task=%s status=running command=%q", task.Key, command)

	stdout := logging.NewPrefixWriter(&r.outMu, r.Out, string(task.Key)+" |")
	stderr := logging.NewPrefixWriter(&r.outMu, r.Out, string(task.Key)+" !")

	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	cmd.Dir = task.PackageDir
	cmd.Env = r.childEnv()
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	runErr := cmd.Run()
	_ = stdout.Flush()
	_ = stderr.Flush()

	if runErr == nil {
		if err := r.captureOutputs(task, st); err != nil {
			r.Logger.Errorf("task=%s output_error=%v", task.Key, err)
			return st.transition(model.StatusFailure)
		}
		r.Logger.Infof("task=%s status=success", task.Key)
		return st.transition(model.StatusSuccessEager)
	}

	if ctx.Err() != nil {
		// The run was cancelled; don't record a spurious task failure.
		return ctx.Err()
	}

	var exitErr *exec.ExitError
	if errors.As(runErr, &exitErr) {
		st.mu.Lock()
		st.exitCode = exitErr.ExitCode()
		st.mu.Unlock()
		r.Logger.Errorf("task=%s status=failure exit_code=%d", task.Key, exitErr.ExitCode())
	} else {
		r.Logger.Errorf("task=%s status=failure error=%v", task.Key, runErr)
	}
	return st.transition(model.StatusFailure)
}

func (r *Runner) childEnv() []string {
	if r.Env != nil {
		return r.Env
	}
	return os.Environ()
}

// shellJoin quotes extra args for inclusion in a sh -c command line.
func shellJoin(args []string) string {
	quoted := make([]string, len(args))
	for i, a := range args {
		quoted[i] = shellQuote(a)
	}
	return strings.Join(quoted, " ")
}

func shellQuote(s string) string {
	if s != "" && !strings.ContainsAny(s, " \t\n\"'\\$`&|;<>()*?[]#~%{}") {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
