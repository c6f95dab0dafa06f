package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/urfave/cli/v2"

	"github.com/plonegovbr/transmute/cli/render"
	"github.com/plonegovbr/transmute/cli/tui"
	"github.com/plonegovbr/transmute/config"
	"github.com/plonegovbr/transmute/export"
	"github.com/plonegovbr/transmute/log"
	"github.com/plonegovbr/transmute/metrics"
	"github.com/plonegovbr/transmute/pipeline"
	"github.com/plonegovbr/transmute/registry"
	"github.com/plonegovbr/transmute/source"
	"github.com/plonegovbr/transmute/steps"
	"github.com/plonegovbr/transmute/types"
)

// Exit codes, one per error class.
const (
	exitSuccess           = 0
	exitConfigError       = 1
	exitContractViolation = 2
	exitExportError       = 3
)

// RunCommand returns the run command, the only command that writes to the
// destination.
func RunCommand() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Transmute a source export into the destination layout",
		Flags: []cli.Flag{
			ConfigFlag,
			&cli.StringFlag{
				Name:     "src",
				Usage:    "Source export root",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "dst",
				Usage:    "Destination root (directory, or key prefix for the s3 backend)",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "run-id",
				Usage: "Run identifier (defaults to a timestamp)",
			},
			&cli.BoolFlag{
				Name:  "clean-dst",
				Usage: "Remove existing destination contents before the run (fs backend only)",
			},
			&cli.BoolFlag{
				Name:  "write-report",
				Usage: "Write the per-record audit report (CSV) into the destination directory, or the working directory for the s3 backend",
			},
			&cli.BoolFlag{
				Name:  "incremental",
				Usage: "Resume from the destination checkpoint, skipping already exported records",
			},
			&cli.BoolFlag{
				Name:  "ui",
				Usage: "Show a live progress view instead of log output",
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "Emit per-step debug log entries",
			},
			&cli.BoolFlag{
				Name:  "quiet",
				Usage: "Suppress the run summary",
			},
			FormatFlag,
		},
		Action: runAction,
	}
}

// runSummary is the payload printed after a completed run.
type runSummary struct {
	RunID     string           `json:"run_id"`
	Total     int64            `json:"total"`
	Processed int64            `json:"processed"`
	Skipped   int64            `json:"skipped"`
	Exported  int64            `json:"exported"`
	Dropped   int64            `json:"dropped"`
	ByType    map[string]int64 `json:"exported_by_type"`
	ByStep    map[string]int64 `json:"dropped_by_step"`
	Index     string           `json:"index"`
	Duration  string           `json:"duration"`
}

func runAction(c *cli.Context) error {
	cfg, err := config.LoadOrDefault(c.String("config"))
	if err != nil {
		return cli.Exit(fmt.Sprintf("invalid settings: %v", err), exitConfigError)
	}
	if c.Bool("debug") {
		cfg.Config.Debug = true
	}
	if err := cfg.Validate(); err != nil {
		return cli.Exit(fmt.Sprintf("invalid settings: %v", err), exitConfigError)
	}

	src := c.String("src")
	dst := c.String("dst")
	runID := c.String("run-id")
	if runID == "" {
		runID = "transmute-" + time.Now().UTC().Format("20060102-150405")
	}

	// Set up context with signal handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	files, err := source.Enumerate(src)
	if err != nil {
		return cli.Exit(fmt.Sprintf("cannot enumerate source: %v", err), exitConfigError)
	}
	if len(files.Content) == 0 {
		return cli.Exit(fmt.Sprintf("no content files under %s", src), exitConfigError)
	}

	meta, err := source.BuildRunMeta(ctx, runID, src, dst, files)
	if err != nil {
		return cli.Exit(fmt.Sprintf("cannot read source metadata: %v", err), exitConfigError)
	}

	reg := registry.New(cfg, steps.Builtin(), steps.Processors())
	chain, err := reg.ResolveChain(cfg.Pipeline.Steps)
	if err != nil {
		return cli.Exit(fmt.Sprintf("cannot resolve step chain: %v", err), exitConfigError)
	}

	if c.Bool("clean-dst") {
		if cfg.Storage.Backend != "fs" {
			return cli.Exit("--clean-dst is only supported for the fs backend", exitConfigError)
		}
		if err := export.RemoveContents(dst); err != nil {
			return cli.Exit(fmt.Sprintf("cannot clean destination: %v", err), exitConfigError)
		}
	}

	exporter, err := buildExporter(ctx, cfg, meta)
	if err != nil {
		return cli.Exit(fmt.Sprintf("cannot initialize exporter: %v", err), exitConfigError)
	}

	ledger := pipeline.NewLedger()
	checkpointPath := filepath.Join(dst, export.CheckpointFile)
	if c.Bool("incremental") {
		if cfg.Storage.Backend != "fs" {
			return cli.Exit("--incremental is only supported for the fs backend", exitConfigError)
		}
		cp, err := export.LoadCheckpoint(checkpointPath)
		if err != nil {
			return cli.Exit(fmt.Sprintf("cannot resume: %v", err), exitConfigError)
		}
		if cp != nil {
			ledger.Restore(cp.Seen, cp.UIDs)
		}
	}

	collector := metrics.NewCollector(runID, len(files.Content))

	logger := log.NewLogger(meta)
	if cfg.Config.Debug {
		logger = log.NewDebugLogger(meta)
	}

	artifactDir := localArtifactDir(cfg, dst)

	useUI := c.Bool("ui")
	var program *tea.Program
	var progress pipeline.ProgressSink
	if useUI {
		logger = logger.WithOutput(runLogWriter(artifactDir))
		program = tea.NewProgram(tui.NewRunModel(runID, src, dst, collector.Total()))
		progress = pipeline.ProgressFunc(func(processed, total int64) {
			program.Send(tui.ProgressMsg{Processed: processed, Total: total})
		})
	}

	orch, err := pipeline.New(pipeline.Config{
		Steps:          chain,
		StepNames:      cfg.Pipeline.Steps,
		DropExceptions: cfg.DropExceptions(),
		Exporter:       exporter,
		Meta:           meta,
		Collector:      collector,
		Reporter:       pipeline.NewReporter(c.Bool("write-report")),
		ReportDir:      artifactDir,
		Logger:         logger,
		Ledger:         ledger,
		Progress:       progress,
	})
	if err != nil {
		return cli.Exit(fmt.Sprintf("cannot assemble pipeline: %v", err), exitConfigError)
	}

	started := time.Now()
	var indexPath string
	var runErr error
	if useUI {
		indexPath, runErr = runWithUI(ctx, cancel, program, orch, collector, files)
	} else {
		indexPath, runErr = orch.Run(ctx, source.Files{}, files)
	}
	duration := time.Since(started)

	// The checkpoint is written even on failure so an interrupted run can
	// be resumed where it stopped.
	if cfg.Storage.Backend == "fs" {
		snap := collector.Snapshot()
		cp := &export.Checkpoint{
			RunID:     runID,
			Seen:      orch.Ledger().Seen(),
			UIDs:      orch.Ledger().Mappings(),
			Processed: snap.Processed,
			Exported:  snap.ExportedTotal(),
		}
		if err := export.SaveCheckpoint(checkpointPath, cp); err != nil {
			logger.Warn("cannot write checkpoint", map[string]any{"error": err.Error()})
		}
	}

	if runErr != nil {
		return cli.Exit(fmt.Sprintf("run failed: %v", runErr), exitCodeFor(runErr))
	}

	if !c.Bool("quiet") {
		snap := collector.Snapshot()
		summary := runSummary{
			RunID:     snap.RunID,
			Total:     snap.Total,
			Processed: snap.Processed,
			Skipped:   snap.Skipped,
			Exported:  snap.ExportedTotal(),
			Dropped:   snap.DroppedTotal(),
			ByType:    snap.Exported,
			ByStep:    snap.Dropped,
			Index:     indexPath,
			Duration:  duration.Round(time.Millisecond).String(),
		}
		r, err := render.NewRenderer(c)
		if err != nil {
			return err
		}
		if err := r.Render(summary); err != nil {
			return err
		}
	}

	return cli.Exit("", exitSuccess)
}

// runWithUI drives the pipeline behind a Bubble Tea progress view. The
// pipeline runs in a goroutine and posts counter updates; the view owns the
// terminal until completion or until the user detaches or cancels.
func runWithUI(ctx context.Context, cancel context.CancelFunc, program *tea.Program, orch *pipeline.Orchestrator, collector *metrics.Collector, files types.SourceFiles) (string, error) {
	type result struct {
		index string
		err   error
	}
	resCh := make(chan result, 1)
	go func() {
		index, err := orch.Run(ctx, source.Files{}, files)
		resCh <- result{index, err}
		program.Send(tui.DoneMsg{Snapshot: collector.Snapshot(), IndexPath: index, Err: err})
	}()

	final, err := program.Run()
	if err != nil {
		// The view failed, not the run. Fall through to the plain result.
		fmt.Fprintf(os.Stderr, "progress view error: %v\n", err)
	}
	if m, ok := final.(tui.RunModel); ok && m.Cancelled {
		cancel()
	}

	res := <-resCh
	return res.index, res.err
}

// buildExporter selects the storage backend from settings.
func buildExporter(ctx context.Context, cfg *config.Settings, meta *types.RunMeta) (pipeline.Exporter, error) {
	switch cfg.Storage.Backend {
	case "fs":
		return export.NewFSExporter(meta, cfg.DefaultPages.Keep)
	case "s3":
		return export.NewS3Exporter(ctx, meta, cfg.DefaultPages.Keep, export.S3Config{
			Bucket: cfg.Storage.Bucket,
			Prefix: cfg.Storage.Prefix,
			Region: cfg.Storage.Region,
		})
	default:
		return nil, fmt.Errorf("unknown storage backend: %s", cfg.Storage.Backend)
	}
}

// localArtifactDir is where run artifacts that need a local file (audit
// report, detached-view log) land. The destination itself for the fs
// backend; the working directory when the destination is a bucket prefix.
func localArtifactDir(cfg *config.Settings, dst string) string {
	if cfg.Storage.Backend == "fs" {
		return dst
	}
	return "."
}

// runLogWriter redirects log lines into dir while the progress view owns
// the terminal.
func runLogWriter(dir string) io.Writer {
	f, err := os.OpenFile(filepath.Join(dir, "transmute.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return io.Discard
	}
	return f
}

// exitCodeFor maps a run error to its exit code.
func exitCodeFor(err error) int {
	var violation *pipeline.ContractViolationError
	if errors.As(err, &violation) {
		return exitContractViolation
	}
	var exportErr *pipeline.ExportError
	if errors.As(err, &exportErr) {
		return exitExportError
	}
	return exitConfigError
}
