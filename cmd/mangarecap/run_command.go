package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"mangarecap/internal/batch"
	"mangarecap/internal/cache"
	"mangarecap/internal/chapters"
	"mangarecap/internal/checkpoint"
	"mangarecap/internal/config"
	"mangarecap/internal/language"
	"mangarecap/internal/logging"
	"mangarecap/internal/pipeline"
	"mangarecap/internal/preflight"
	"mangarecap/internal/provider"
	"mangarecap/internal/providers"
	"mangarecap/internal/services"
)

// runLockName guards a run directory against concurrent invocations.
const runLockName = ".lock"

type runOptions struct {
	chaptersDir string
	output      string
	maxChapters int
	force       bool
	workDir     string
	lang        string
	width       int
	height      int
	workers     int
	voice       string
}

func newRunCommand(ctx *commandContext) *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Turn chapter image folders into narrated videos",
		Long: "Process every chapter folder under --chapters_dir (or the directory itself\n" +
			"when it holds the pages) and write one video per chapter.\n\n" +
			"--output may contain {chapter}; otherwise multi-chapter runs write\n" +
			"<stem>_<chapter><ext> next to it.",
		RunE: func(cmd *cobra.Command, args []string) error {
			base, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			cfg, err := opts.apply(base)
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}

			return executeRun(cmd.Context(), cmd.OutOrStdout(), cfg, opts, logger, ctx.pipelineOpts)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.chaptersDir, "chapters_dir", "", "Directory holding chapter folders or a single chapter's pages")
	flags.StringVar(&opts.output, "output", "", "Output video path; may contain {chapter}")
	flags.IntVar(&opts.maxChapters, "max-chapters", 0, "Process at most N chapters (0 processes all)")
	flags.BoolVar(&opts.force, "force", false, "Discard checkpoints and rerun every stage")
	flags.StringVar(&opts.workDir, "temp", "", "Run directory for checkpoints, cache and artifacts")
	flags.StringVar(&opts.lang, "lang", "", "Narration language (ISO code or name)")
	flags.IntVar(&opts.width, "width", 0, "Video width in pixels")
	flags.IntVar(&opts.height, "height", 0, "Video height in pixels")
	flags.IntVar(&opts.workers, "workers", 0, "Chapters processed in parallel")
	flags.StringVar(&opts.voice, "voice", "", "Narration voice passed to the speech provider")
	_ = cmd.MarkFlagRequired("chapters_dir")
	_ = cmd.MarkFlagRequired("output")
	return cmd
}

// apply returns a copy of base with the command-line overrides.
func (o runOptions) apply(base *config.Config) (*config.Config, error) {
	cfg := base.Clone()
	if strings.TrimSpace(o.workDir) != "" {
		var err error
		if cfg, err = base.WithWorkDir(o.workDir); err != nil {
			return nil, fmt.Errorf("resolve --temp: %w", err)
		}
	}
	if strings.TrimSpace(o.lang) != "" {
		code := language.Normalize(o.lang)
		if code == "" {
			return nil, services.Wrap(services.ErrConfiguration, "cli", "flags", fmt.Sprintf("unknown language %q", o.lang), nil)
		}
		cfg.Narration.Language = code
	}
	if o.width != 0 {
		cfg.Video.Width = o.width
	}
	if o.height != 0 {
		cfg.Video.Height = o.height
	}
	if o.workers != 0 {
		cfg.Batch.MaxWorkers = o.workers
	}
	if o.maxChapters != 0 {
		cfg.Batch.MaxChapters = o.maxChapters
	}
	if voice := strings.TrimSpace(o.voice); voice != "" {
		cfg.Narration.Voice = voice
	}
	if err := cfg.Validate(); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "cli", "flags", "", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func executeRun(ctx context.Context, out io.Writer, cfg *config.Config, opts runOptions, logger *slog.Logger, extra []pipeline.Option) error {
	logger = logging.NewComponentLogger(logger, "cli")

	lockPath := filepath.Join(cfg.Paths.WorkDir, runLockName)
	lock := flock.New(lockPath)
	ok, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire run lock: %w", err)
	}
	if !ok {
		return fmt.Errorf("another mangarecap run is using %s", cfg.Paths.WorkDir)
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			logger.Warn("failed to release run lock", logging.String("lock", lockPath), logging.Error(err))
		}
	}()

	if access := preflight.CheckDirectoryAccess("Run directory", cfg.Paths.WorkDir); !access.Passed {
		return services.Wrap(services.ErrConfiguration, "cli", "preflight", access.Detail, nil)
	}
	if space := preflight.CheckFreeSpace("Run directory free space", cfg.Paths.WorkDir, preflight.MinFreeBytes); !space.Passed {
		logging.WarnWithContext(logger, "low free space in run directory", "preflight_warning",
			logging.String("detail", space.Detail),
			logging.String(logging.FieldErrorHint, "free disk space or pass --temp"),
			logging.String(logging.FieldImpact, "frames or videos may fail to write"),
		)
	}

	chapterDir, err := config.ExpandPath(opts.chaptersDir)
	if err != nil {
		return fmt.Errorf("resolve --chapters_dir: %w", err)
	}
	output, err := config.ExpandPath(opts.output)
	if err != nil {
		return fmt.Errorf("resolve --output: %w", err)
	}
	chs, err := chapters.Discover(chapterDir, cfg.Batch.MaxChapters)
	if err != nil {
		return err
	}

	registry, err := providers.Build(cfg, logger)
	if err != nil {
		return err
	}
	invoker := provider.NewInvoker(registry, cfg.ProviderTimeout(), logger)

	store, err := cache.Open(cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	checkpoints, err := checkpoint.Open(cfg.Paths.WorkDir, logger)
	if err != nil {
		return err
	}

	pipeOpts := []pipeline.Option{
		pipeline.WithForce(opts.force),
		pipeline.WithOutput(output, len(chs) > 1),
	}
	pipeOpts = append(pipeOpts, extra...)
	pipe := pipeline.New(cfg, invoker, store, checkpoints, logger, pipeOpts...)

	scheduler := batch.New(pipe, "", logger)
	logger.Info("run started",
		logging.String(logging.FieldRunID, scheduler.RunID()),
		logging.Int("chapters", len(chs)),
		logging.String("language", cfg.Narration.Language),
		logging.String("work_dir", cfg.Paths.WorkDir),
	)
	outcomes := scheduler.Run(ctx, chs, cfg.Batch.MaxWorkers)

	if err := batch.WriteAggregates(cfg.Paths.WorkDir, checkpoints, outcomes); err != nil {
		logging.WarnWithContext(logger, "failed to write run aggregates", "aggregate_write_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check permissions on the run directory"),
		)
	}

	fmt.Fprintln(out, renderOutcomes(outcomes, shouldColorize(out)))
	fmt.Fprintf(out, "%d done, %d failed, %d not started (run %s)\n",
		outcomes.Count(batch.StatusDone),
		outcomes.Count(batch.StatusFailed),
		outcomes.Count(batch.StatusPending),
		scheduler.RunID(),
	)

	if ctx.Err() != nil {
		return ctx.Err()
	}
	if !outcomes.AllDone() {
		return runFailure(outcomes)
	}
	return nil
}

// runFailure reports failed chapters, surfacing a configuration error so the
// caller sees why dispatch stopped.
func runFailure(outcomes batch.Outcomes) error {
	failed := outcomes.Failed()
	for _, job := range failed {
		if services.IsFatal(job.Err) {
			return job.Err
		}
	}
	if len(failed) == 0 {
		return errors.New("run stopped before every chapter started")
	}
	return fmt.Errorf("%d of %d chapters failed", len(failed), len(outcomes))
}

func renderOutcomes(outcomes batch.Outcomes, color bool) string {
	rows := make([][]string, 0, len(outcomes))
	for _, job := range outcomes.Sorted() {
		rows = append(rows, []string{
			job.Chapter.Name,
			statusLabel(job, color),
			stageLabel(job),
			job.Elapsed().Round(time.Millisecond).String(),
			outcomeDetail(job),
		})
	}
	return renderTable(
		[]string{"Chapter", "Status", "Stages", "Duration", "Output / Error"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
	)
}

func statusLabel(job *batch.Job, color bool) string {
	label := string(job.Status)
	if job.Result.Skipped {
		label = "done (cached)"
	}
	switch job.Status {
	case batch.StatusDone:
		return colorize(label, color, text.Colors{text.FgGreen})
	case batch.StatusFailed:
		return colorize(label, color, text.Colors{text.FgRed, text.Bold})
	default:
		return colorize(label, color, text.Colors{text.FgYellow})
	}
}

func stageLabel(job *batch.Job) string {
	if job.Status == batch.StatusFailed && job.Result.FailedStage != "" {
		return "failed at " + string(job.Result.FailedStage)
	}
	if len(job.Result.Ran) == 0 {
		return "-"
	}
	names := make([]string, len(job.Result.Ran))
	for i, stage := range job.Result.Ran {
		names[i] = string(stage)
	}
	return strings.Join(names, ",")
}

func outcomeDetail(job *batch.Job) string {
	if job.Err != nil {
		return job.Err.Error()
	}
	return job.Result.Output
}
