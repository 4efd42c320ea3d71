// Command lazyrun is a caching task runner for multi-package workspaces.
// It computes a dependency graph of per-package task invocations,
// fingerprints each task's inputs into a manifest, and skips tasks whose
// fingerprints are unchanged since the last run.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"lazyrun/internal/config"
	"lazyrun/internal/graph"
	"lazyrun/internal/inputs"
	"lazyrun/internal/logging"
	"lazyrun/internal/model"
	"lazyrun/internal/runner"
	"lazyrun/internal/workspace"
)

const version = "0.1.0"

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "lazyrun: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "lazyrun",
		Short:         "Caching task runner for multi-package workspaces",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newRunCmd())
	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the lazyrun version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("lazyrun %s\n", version)
		},
	})
	return root
}

func newRunCmd() *cobra.Command {
	var (
		filters     []string
		force       bool
		concurrency int
		verbose     bool
	)

	cmd := &cobra.Command{
		Use:   "run <taskName> [flags] [-- <extraArgs>...]",
		Short: "Run a task across the workspace, skipping unchanged packages",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			taskName := args[0]
			var extraArgs []string
			if at := cmd.ArgsLenAtDash(); at >= 0 {
				if at > 1 {
					return fmt.Errorf("unexpected arguments before --: %s", strings.Join(args[1:at], " "))
				}
				extraArgs = args[at:]
			} else if len(args) > 1 {
				return fmt.Errorf("unexpected arguments: %s (pass task arguments after --)", strings.Join(args[1:], " "))
			}

			level := logging.LevelInfo
			if verbose {
				level = logging.LevelDebug
			}
			logger := logging.New(os.Stderr, "lazyrun", level)

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runTask(ctx, logger, taskName, filters, force, concurrency, extraArgs)
		},
	}

	cmd.Flags().StringArrayVar(&filters, "filter", nil, "only run in packages under the given path (repeatable)")
	cmd.Flags().BoolVar(&force, "force", false, "run every task even on a cache hit")
	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "max concurrent task commands (default: CPU count)")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	return cmd
}

func runTask(ctx context.Context, logger *logging.Logger, taskName string, filters []string, force bool, concurrency int, extraArgs []string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("get working directory: %w", err)
	}

	rootDir, pm, err := workspace.FindRoot(cwd)
	if err != nil {
		return err
	}
	logger.Debugf("workspace_root=%s package_manager=%s", rootDir, pm)

	ws, err := workspace.Discover(rootDir, pm)
	if err != nil {
		return err
	}

	pkgDirs := make([]string, len(ws.Packages))
	for i, p := range ws.Packages {
		pkgDirs[i] = p.Dir
	}
	resolver, err := config.NewResolver(rootDir, pkgDirs)
	if err != nil {
		return err
	}

	absFilters := make([]string, len(filters))
	for i, f := range filters {
		if filepath.IsAbs(f) {
			absFilters[i] = filepath.Clean(f)
		} else {
			absFilters[i] = filepath.Join(cwd, f)
		}
	}

	g, err := graph.Build(ws, resolver, []graph.RequestedTask{{
		TaskName:    taskName,
		FilterPaths: absFilters,
		Force:       force,
		ExtraArgs:   extraArgs,
	}})
	if err != nil {
		return err
	}
	if len(g.SortedKeys) == 0 {
		return fmt.Errorf("no tasks matched %q", taskName)
	}
	logger.Debugf("task_count=%d", len(g.SortedKeys))

	base := resolver.BaseCache()
	r := &runner.Runner{
		Workspace:   ws,
		Graph:       g,
		Enumerator:  inputs.New(rootDir, base),
		Base:        base,
		Logger:      logger,
		Concurrency: concurrency,
	}
	summary, err := r.Run(ctx)
	if err != nil {
		return err
	}

	logger.Infof("done eager=%d lazy=%d failed=%d skipped=%d",
		len(summary.Eager), len(summary.Lazy), len(summary.Failed), len(summary.Skipped))
	if len(summary.Failed) > 0 {
		return fmt.Errorf("failed tasks: %s", joinKeys(summary.Failed))
	}
	if len(summary.Skipped) > 0 {
		return fmt.Errorf("skipped tasks (upstream failed): %s", joinKeys(summary.Skipped))
	}
	return nil
}

func joinKeys(keys []model.TaskKey) string {
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = string(k)
	}
	return strings.Join(parts, ", ")
}
