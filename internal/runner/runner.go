// Package runner walks the sorted task graph, builds each task's input
// manifest, decides cache hit vs. miss, spawns task commands on miss, and
// propagates failure to downstream tasks.
package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"sort"
	"strconv"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"lazyrun/internal/graph"
	"lazyrun/internal/hashing"
	"lazyrun/internal/inputs"
	"lazyrun/internal/lock"
	"lazyrun/internal/logging"
	"lazyrun/internal/manifest"
	"lazyrun/internal/model"
	"lazyrun/internal/workspace"
)

// taskState is the per-run mutable state of one task. Graph nodes stay
// immutable after construction; everything that changes during a run lives
// here.
type taskState struct {
	mu          sync.Mutex
	status      model.Status
	cacheKey    string
	hasCacheKey bool
	outputFiles []string
	exitCode    int
	// done is closed once the task reaches a terminal status, releasing
	// downstream waiters.
	done chan struct{}
}

func (s *taskState) transition(to model.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := model.ValidateStatusTransition(s.status, to); err != nil {
		return err
	}
	s.status = to
	return nil
}

func (s *taskState) getStatus() model.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *taskState) setCacheKey(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cacheKey = key
	s.hasCacheKey = true
}

func (s *taskState) getCacheKey() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cacheKey, s.hasCacheKey
}

func (s *taskState) setOutputs(files []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outputFiles = files
}

func (s *taskState) getOutputs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.outputFiles
}

// Runner executes one task graph against one workspace.
type Runner struct {
	Workspace  *workspace.Workspace
	Graph      *graph.Graph
	Enumerator *inputs.Enumerator
	Base       model.BaseCacheConfig
	Logger     *logging.Logger
	// Out receives prefixed child-process output. Defaults to os.Stdout.
	Out io.Writer
	// Concurrency bounds how many task commands run at once. Defaults to
	// the host CPU count.
	Concurrency int
	// Env overrides the child-process environment; nil inherits the
	// parent's.
	Env []string

	serial *lock.KeyedMutex
	outMu  sync.Mutex
	states map[model.TaskKey]*taskState
}

// Summary reports where every task ended up.
type Summary struct {
	Eager   []model.TaskKey
	Lazy    []model.TaskKey
	Failed  []model.TaskKey
	Skipped []model.TaskKey
}

// OK reports whether the run succeeded: every task is success:eager or
// success:lazy.
func (s *Summary) OK() bool {
	return len(s.Failed) == 0 && len(s.Skipped) == 0
}

// Run walks the graph. Tasks whose upstreams are all satisfied run
// concurrently up to Concurrency; a task's manifest build begins strictly
// after every upstream has published its cache key. The returned error is
// non-nil only for fatal conditions (invariant violations, cancellation);
// ordinary task command failures are reported through the Summary.
func (r *Runner) Run(ctx context.Context) (*Summary, error) {
	if r.Out == nil {
		r.Out = os.Stdout
	}
	if r.Concurrency <= 0 {
		r.Concurrency = runtime.NumCPU()
	}
	r.serial = lock.NewKeyedMutex()
	r.states = make(map[model.TaskKey]*taskState, len(r.Graph.Tasks))
	for key := range r.Graph.Tasks {
		r.states[key] = &taskState{status: model.StatusPending, done: make(chan struct{})}
	}

	sem := semaphore.NewWeighted(int64(r.Concurrency))
	eg, ctx := errgroup.WithContext(ctx)
	for _, key := range r.Graph.SortedKeys {
		key := key
		eg.Go(func() error {
			return r.runTask(ctx, sem, key)
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	return r.summarize(), nil
}

func (r *Runner) summarize() *Summary {
	s := &Summary{}
	for _, key := range r.Graph.SortedKeys {
		switch r.states[key].getStatus() {
		case model.StatusSuccessEager:
			s.Eager = append(s.Eager, key)
		case model.StatusSuccessLazy:
			s.Lazy = append(s.Lazy, key)
		case model.StatusFailure:
			s.Failed = append(s.Failed, key)
		default:
			s.Skipped = append(s.Skipped, key)
		}
	}
	return s
}

func (r *Runner) runTask(ctx context.Context, sem *semaphore.Weighted, key model.TaskKey) error {
	task := r.Graph.Tasks[key]
	st := r.states[key]
	defer close(st.done)

	// Wait for every upstream to reach a terminal state.
	for _, up := range task.UpstreamKeys {
		select {
		case <-r.states[up].done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	// An upstream failure (or transitive skip) skips this task.
	for _, up := range task.UpstreamKeys {
		if !model.IsSuccess(r.states[up].getStatus()) {
			r.Logger.Infof("task=%s status=skipped upstream=%s", key, up)
			return st.transition(model.StatusSkipped)
		}
	}

	if err := sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer sem.Release(1)

	if !task.Config.Parallel {
		r.serial.Lock(task.TaskName)
		defer r.serial.Unlock(task.TaskName)
	}

	return r.execute(ctx, task, st)
}

// execute builds the manifest, decides hit vs. miss, and runs the command
// on miss. Only invariant violations return an error; command failures and
// per-task I/O failures are recorded as failure status.
func (r *Runner) execute(ctx context.Context, task *graph.ScheduledTask, st *taskState) error {
	if task.Config.Cache == nil {
		// Un-cacheable: no input set, no manifest, always runs.
		r.Logger.Debugf("task=%s cache=none", task.Key)
		return r.spawn(ctx, task, st)
	}

	miss, diff, err := r.buildManifest(task, st)
	if err != nil {
		var ie *invariantError
		if errors.As(err, &ie) {
			return err
		}
		r.Logger.Errorf("task=%s manifest_error=%v", task.Key, err)
		return r.fail(st, err)
	}

	if !miss {
		r.Logger.Infof("task=%s status=cache_hit", task.Key)
		if err := r.captureOutputs(task, st); err != nil {
			r.Logger.Errorf("task=%s output_error=%v", task.Key, err)
			return r.fail(st, err)
		}
		return st.transition(model.StatusSuccessLazy)
	}

	for _, line := range diff {
		r.Logger.Infof("task=%s diff=%q", task.Key, line)
	}
	return r.spawn(ctx, task, st)
}

// buildManifest assembles the task's input manifest in canonical order:
// runsAfter-inherited upstream keys, package-dependency upstream keys, env
// vars, then input files.
func (r *Runner) buildManifest(task *graph.ScheduledTask, st *taskState) (miss bool, diff []string, err error) {
	cache := task.Config.Cache

	extraFiles := r.upstreamOutputs(task)
	files, ok, err := r.Enumerator.Enumerate(task.PackageDir, cache, extraFiles)
	if err != nil {
		return false, nil, err
	}
	if !ok {
		return false, nil, fmt.Errorf("internal: enumeration returned no input set for cacheable task %s", task.Key)
	}

	b, err := manifest.NewBuilder(task.PackageDir, task.TaskName)
	if err != nil {
		return false, nil, err
	}
	defer b.Abort()

	// (a) runsAfter upstreams with inheritsInput, ascending by key.
	raKeys := make([]model.TaskKey, 0, len(task.RunsAfterUpstream))
	for up, raCfg := range task.RunsAfterUpstream {
		if raCfg.InheritsInput {
			raKeys = append(raKeys, up)
		}
	}
	sort.Slice(raKeys, func(i, j int) bool { return raKeys[i] < raKeys[j] })
	for _, up := range raKeys {
		hash, ok := r.states[up].getCacheKey()
		if !ok {
			return false, nil, &invariantError{fmt.Errorf("internal: upstream task %s has no input manifest cache key (inherited by %s)", up, task.Key)}
		}
		if err := b.Update(manifest.TypeUpstreamTaskInputs, string(up), hash, ""); err != nil {
			return false, nil, err
		}
	}

	// (b) package-dependency upstreams, ascending by key.
	if task.Config.RunType != model.RunTypeIndependent && cache.InheritsInputFromDependencies {
		for _, up := range task.PackageDepUpstream {
			hash, ok := r.states[up].getCacheKey()
			if !ok {
				return false, nil, &invariantError{fmt.Errorf("internal: upstream task %s has no input manifest cache key (inherited by %s)", up, task.Key)}
			}
			if err := b.Update(manifest.TypeUpstreamPackageInputs, string(up), hash, ""); err != nil {
				return false, nil, err
			}
		}
	}

	// (c) env vars: sorted union of base and task envInputs.
	for _, name := range sortedUnion(r.Base.EnvInputs, cache.EnvInputs) {
		if err := b.Update(manifest.TypeEnvVar, name, hashing.HashString(os.Getenv(name)), ""); err != nil {
			return false, nil, err
		}
	}

	// (d) input files, sorted; unchanged mtime skips re-hashing.
	for _, rel := range files {
		abs := r.Workspace.AbsPath(rel)
		info, err := os.Stat(abs)
		if err != nil {
			return false, nil, fmt.Errorf("stat input %s: %w", rel, err)
		}
		meta := strconv.FormatInt(info.ModTime().UnixMilli(), 10)
		copied, err := b.CopyLineOverIfMetaIsSame(manifest.TypeFile, rel, meta)
		if err != nil {
			return false, nil, err
		}
		if copied {
			continue
		}
		hash, err := hashing.HashFile(abs)
		if err != nil {
			return false, nil, err
		}
		if err := b.Update(manifest.TypeFile, rel, hash, meta); err != nil {
			return false, nil, err
		}
	}

	res, err := b.End()
	if err != nil {
		return false, nil, err
	}
	st.setCacheKey(res.Hash)

	miss = task.Force || !res.PrevExisted || res.DidChange
	return miss, res.Diff, nil
}

// upstreamOutputs concatenates the output files this task inherits: outputs
// of runsAfter upstreams unless usesOutput is false, plus outputs of
// package-dependency upstreams when usesOutputFromDependencies holds.
func (r *Runner) upstreamOutputs(task *graph.ScheduledTask) []string {
	var extra []string
	for up, raCfg := range task.RunsAfterUpstream {
		if raCfg.UsesOutput {
			extra = append(extra, r.states[up].getOutputs()...)
		}
	}
	if task.Config.Cache != nil && task.Config.Cache.UsesOutputFromDependencies {
		for _, up := range task.PackageDepUpstream {
			extra = append(extra, r.states[up].getOutputs()...)
		}
	}
	return extra
}

// captureOutputs records the sorted output-file list consumed by downstream
// tasks. Runs after the command exits zero and on cache hit alike, before
// the task transitions to a success status, so a capture error can still be
// recorded as that task's failure.
func (r *Runner) captureOutputs(task *graph.ScheduledTask, st *taskState) error {
	if task.Config.Cache == nil {
		return nil
	}
	outs, err := r.Enumerator.Outputs(task.PackageDir, task.Config.Cache.Outputs)
	if err != nil {
		return fmt.Errorf("capture outputs for %s: %w", task.Key, err)
	}
	st.setOutputs(outs)
	return nil
}

func (r *Runner) fail(st *taskState, err error) error {
	if st.getStatus() == model.StatusPending {
		if terr := st.transition(model.StatusRunning); terr != nil {
			return terr
		}
	}
	return st.transition(model.StatusFailure)
}

func sortedUnion(a, b []string) []string {
	set := make(map[string]struct{}, len(a)+len(b))
	for _, s := range a {
		set[s] = struct{}{}
	}
	for _, s := range b {
		set[s] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// invariantError marks violations of scheduler invariants, which must abort
// the whole run instead of being recorded as a task failure.
type invariantError struct {
	err error
}

func (e *invariantError) Error() string { return e.err.Error() }
func (e *invariantError) Unwrap() error { return e.err }
