package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/n2go/n2go/internal/buildid"
	"github.com/n2go/n2go/internal/buildlog"
	"github.com/n2go/n2go/internal/depslog"
	"github.com/n2go/n2go/internal/filestate"
	"github.com/n2go/n2go/internal/graph"
	"github.com/n2go/n2go/internal/loader"
	"github.com/n2go/n2go/internal/logging"
	"github.com/n2go/n2go/internal/observer"
	"github.com/n2go/n2go/internal/scheduler"
	"github.com/n2go/n2go/internal/spawner"
	"github.com/n2go/n2go/internal/textrenderer"
	"github.com/n2go/n2go/internal/tracewriter"
)

// debugFlags is the set of "-d X" debug modes n2go recognizes, surfaced
// by "-d list" per spec.md §6/§12's supplemented feature.
var debugFlags = []string{"explain", "trace", "list"}

// BuildOptions holds the "build" subcommand's own flags.
type BuildOptions struct {
	GraphFile string
	LogFile   string
	DepsFile  string
	Jobs      int
	KeepGoing int
	Debug     []string
	Targets   []string
}

// NewBuildCommand builds the "n2go build [targets...]" subcommand.
func NewBuildCommand(root *RootOptions) *cobra.Command {
	opts := &BuildOptions{}

	cmd := &cobra.Command{
		Use:   "build [targets...]",
		Short: "build the given targets (or every default target)",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Targets = args
			return runBuild(cmd, root, opts)
		},
	}

	cmd.Flags().StringVar(&opts.GraphFile, "graph", "build.json", "path to the JSON graph description")
	cmd.Flags().StringVar(&opts.LogFile, "log", ".ninja_log", "path to the persistent BuildLog")
	cmd.Flags().StringVar(&opts.DepsFile, "deps", ".ninja_deps", "path to the persistent DepsLog")
	cmd.Flags().IntVarP(&opts.Jobs, "jobs", "j", 0, "limit the default pool to N concurrent commands (default: CPU count)")
	cmd.Flags().IntVarP(&opts.KeepGoing, "keep-going", "k", 1, "keep building until N command failures")
	cmd.Flags().StringSliceVarP(&opts.Debug, "debug", "d", nil, "enable a debug mode (repeatable); \"-d list\" to enumerate")

	return cmd
}

func hasDebug(opts *BuildOptions, name string) bool {
	for _, d := range opts.Debug {
		if d == name {
			return true
		}
	}
	return false
}

func runBuild(cmd *cobra.Command, root *RootOptions, opts *BuildOptions) error {
	out := cmd.OutOrStdout()
	render := &Formatter{Format: root.Format, Writer: out}

	if hasDebug(opts, "list") {
		for _, d := range debugFlags {
			cmd.Println(d)
		}
		return nil
	}

	if root.Chdir != "" {
		if err := os.Chdir(root.Chdir); err != nil {
			render.Error(err)
			return &exitError{code: GetExitCode(err)}
		}
	}

	logger, err := logging.New("info", root.Verbose || hasDebug(opts, "explain"))
	if err != nil {
		render.Error(err)
		return &exitError{code: GetExitCode(err)}
	}
	defer logger.Sync()

	g, err := loader.Load(opts.GraphFile)
	if err != nil {
		render.Error(err)
		return &exitError{code: GetExitCode(err)}
	}

	cache := filestate.New()

	targets := loader.ResolveTargets(g, opts.Targets)
	if len(targets) == 0 {
		targets = g.DefaultTargets()
	}
	for _, fid := range targets {
		if err := graph.ValidateTarget(g, fid, cache); err != nil {
			render.Error(err)
			return &exitError{code: GetExitCode(err)}
		}
	}

	blog, err := buildlog.Open(opts.LogFile)
	if err != nil {
		render.Error(err)
		return &exitError{code: GetExitCode(err)}
	}
	defer blog.Close()

	dlog, err := depslog.Open(opts.DepsFile)
	if err != nil {
		render.Error(err)
		return &exitError{code: GetExitCode(err)}
	}
	defer dlog.Close()

	var obs observer.Multi
	obs = append(obs, textrenderer.New(out))

	var tw *tracewriter.Writer
	if hasDebug(opts, "trace") {
		tw = tracewriter.New(filepath.Join(filepath.Dir(opts.LogFile), "trace.json"))
		obs = append(obs, tw)
	}

	if opts.Jobs <= 0 {
		opts.Jobs = runtime.NumCPU()
	}
	poolDepths := map[string]int{"": opts.Jobs}

	runID := buildid.UUIDv7Generator{}.Generate()
	logger.Debug("starting build", zap.String("build_id", runID))

	cfg := scheduler.Config{
		Graph:      g,
		Cache:      cache,
		BuildLog:   blog,
		DepsLog:    dlog,
		Spawner:    spawner.Exec{},
		Observer:   obs,
		PoolDepths: poolDepths,
		KeepGoing:  opts.KeepGoing,
		Logger:     logger,
	}
	co := scheduler.New(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	sum := co.Run(ctx, targets)

	if tw != nil {
		if err := tw.Close(); err != nil {
			logger.Warn("failed to write trace", zap.Error(err))
		}
	}

	compactLogs(logger, blog, dlog)

	if sum.Err != nil {
		render.Error(sum.Err)
		return &exitError{code: GetExitCode(sum.Err)}
	}
	render.Success(buildSummary{Built: sum.Built, Failed: sum.Failed})
	if sum.Failed > 0 {
		return &exitError{code: ExitFailure}
	}
	return nil
}

// compactLogs rewrites BuildLog/DepsLog in place once their shadowed-record
// ratio grows large, per spec.md §4.2/§4.3's periodic compaction step of
// the driver loop. Compaction failure is logged, not fatal: the logs
// remain correct, just larger than they need to be.
func compactLogs(logger *zap.Logger, blog *buildlog.Log, dlog *depslog.Log) {
	if blog.ShouldCompact() {
		if err := blog.Compact(); err != nil {
			logger.Warn("failed to compact build log", zap.Error(err))
		}
	}
	if dlog.ShouldCompact() {
		if err := dlog.Compact(); err != nil {
			logger.Warn("failed to compact deps log", zap.Error(err))
		}
	}
}

type buildSummary struct {
	Built  int `json:"built"`
	Failed int `json:"failed"`
}

func (s buildSummary) String() string {
	return fmt.Sprintf("built %d, failed %d", s.Built, s.Failed)
}

// exitError carries a process exit code through cobra's error-returning
// RunE without cobra printing it twice (the message was already written
// by Formatter.Error).
type exitError struct{ code int }

func (e *exitError) Error() string { return "" }
func (e *exitError) ExitCode() int { return e.code }
