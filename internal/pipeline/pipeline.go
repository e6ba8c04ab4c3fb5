package pipeline

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"time"

	"mangarecap/internal/cache"
	"mangarecap/internal/chapters"
	"mangarecap/internal/checkpoint"
	"mangarecap/internal/config"
	"mangarecap/internal/fileutil"
	"mangarecap/internal/logging"
	"mangarecap/internal/media/compose"
	"mangarecap/internal/media/ffprobe"
	"mangarecap/internal/provider"
	"mangarecap/internal/services"
)

// State is the terminal state of one chapter run.
type State string

const (
	StateDone   State = "done"
	StateFailed State = "failed"
)

// Result summarizes one chapter run.
type Result struct {
	ChapterID   string
	State       State
	Output      string
	FailedStage checkpoint.Stage
	Providers   map[checkpoint.Stage]string
	// Ran lists the stages that ran in this invocation.
	Ran []checkpoint.Stage
	// Skipped is set when the checkpoint was already complete.
	Skipped  bool
	Duration time.Duration
	Err      error
}

// Prober inspects media files.
type Prober interface {
	Inspect(ctx context.Context, path string) (ffprobe.Result, error)
}

type ffprobeProber struct {
	binary string
}

func (p ffprobeProber) Inspect(ctx context.Context, path string) (ffprobe.Result, error) {
	return ffprobe.Inspect(ctx, p.binary, path)
}

// Option customizes a Pipeline.
type Option func(*Pipeline)

// WithForce discards existing checkpoints before running.
func WithForce(force bool) Option {
	return func(p *Pipeline) { p.force = force }
}

// WithOutput sets the final video path template. multi selects the
// multi-chapter naming rule of chapters.OutputPath.
func WithOutput(output string, multi bool) Option {
	return func(p *Pipeline) {
		p.output = output
		p.multi = multi
	}
}

// WithCompositor replaces the ffmpeg compositor.
func WithCompositor(c compose.Compositor) Option {
	return func(p *Pipeline) { p.compositor = c }
}

// WithProber replaces the ffprobe inspector.
func WithProber(prober Prober) Option {
	return func(p *Pipeline) { p.prober = prober }
}

// Pipeline runs chapters through every stage. It is safe for concurrent use
// by multiple chapters; the same chapter is serialized by the checkpoint lock.
type Pipeline struct {
	cfg         *config.Config
	invoker     *provider.Invoker
	cache       cache.Store
	checkpoints *checkpoint.Store
	compositor  compose.Compositor
	prober      Prober
	logger      *slog.Logger

	force  bool
	output string
	multi  bool
}

// New wires a pipeline from its collaborators.
func New(cfg *config.Config, invoker *provider.Invoker, store cache.Store, checkpoints *checkpoint.Store, logger *slog.Logger, opts ...Option) *Pipeline {
	if store == nil {
		store = cache.Noop{}
	}
	p := &Pipeline{
		cfg:         cfg,
		invoker:     invoker,
		cache:       store,
		checkpoints: checkpoints,
		compositor:  compose.NewFFmpeg(cfg.Video.FFmpegBinary),
		prober:      ffprobeProber{binary: cfg.Video.FFprobeBinary},
		logger:      logging.NewComponentLogger(logger, "pipeline"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// OutputPath returns where the chapter's final video is written, or "" when
// the video stays in the work directory.
func (p *Pipeline) OutputPath(ch chapters.Chapter) string {
	if p.output == "" {
		return ""
	}
	return chapters.OutputPath(p.output, ch, p.multi)
}

// chapterRun is the mutable state of one Run call.
type chapterRun struct {
	chapter chapters.Chapter
	cp      *checkpoint.Checkpoint
	dir     string
	logger  *slog.Logger
}

// Run drives ch to completion or to its first failing stage. The returned
// error equals Result.Err.
func (p *Pipeline) Run(ctx context.Context, ch chapters.Chapter) (Result, error) {
	start := time.Now()
	ctx = services.WithChapterID(ctx, ch.ID)
	result := Result{ChapterID: ch.ID}
	fail := func(stage checkpoint.Stage, err error) (Result, error) {
		result.State = StateFailed
		result.FailedStage = stage
		result.Err = err
		result.Duration = time.Since(start)
		return result, err
	}

	dir := ArtifactDir(p.cfg.Paths.WorkDir, ch.ID)
	logger, closeLog := p.chapterLogger(ctx, dir)
	defer closeLog()

	unlock, err := p.checkpoints.Lock(ctx, ch.ID)
	if err != nil {
		return fail("", err)
	}
	defer unlock()

	if p.force {
		if err := p.checkpoints.Clear(ch.ID); err != nil {
			return fail("", err)
		}
		logger.Info("checkpoint cleared", logging.String(logging.FieldEventType, "checkpoint_forced"))
	}
	cp, err := p.checkpoints.Load(ch.ID)
	if err != nil {
		return fail("", err)
	}
	if cp == nil {
		cp = checkpoint.New(ch.ID, ch.Dir)
	}
	cp.ChapterDir = ch.Dir
	p.reconcile(cp, logger)

	run := &chapterRun{chapter: ch, cp: cp, dir: dir, logger: logger}
	if cp.Done() {
		logger.Info("chapter already complete",
			logging.String(logging.FieldEventType, "chapter_skipped"),
			logging.String("output", cp.Artifacts[checkpoint.StageVideo]),
		)
		result.State = StateDone
		result.Skipped = true
		result.Output = cp.Artifacts[checkpoint.StageVideo]
		result.Providers = cp.Providers
		result.Duration = time.Since(start)
		return result, nil
	}

	logger.Info("chapter started",
		logging.String(logging.FieldEventType, "chapter_start"),
		logging.String("chapter_dir", ch.Dir),
		logging.Int("pages", ch.Pages),
		logging.String("resume_stage", string(cp.NextStage())),
	)
	for _, stage := range checkpoint.Stages[cp.NextStage().Index():] {
		if err := p.runStage(ctx, run, stage); err != nil {
			result.Providers = cp.Providers
			return fail(stage, err)
		}
		result.Ran = append(result.Ran, stage)
	}

	result.State = StateDone
	result.Output = cp.Artifacts[checkpoint.StageVideo]
	result.Providers = cp.Providers
	result.Duration = time.Since(start)
	logger.Info("chapter completed",
		logging.String(logging.FieldEventType, "chapter_complete"),
		logging.String("output", result.Output),
		logging.Duration("chapter_duration", result.Duration),
	)
	return result, nil
}

// reconcile rewinds cp to the first completed stage whose artifact is gone.
func (p *Pipeline) reconcile(cp *checkpoint.Checkpoint, logger *slog.Logger) {
	for _, stage := range checkpoint.Stages {
		if !cp.Completed(stage) {
			continue
		}
		artifact := cp.Artifacts[stage]
		if artifact != "" && fileutil.Exists(artifact) {
			continue
		}
		logger.Info("artifact missing; resuming from stage",
			logging.String(logging.FieldStage, string(stage)),
			logging.String("artifact", artifact),
		)
		cp.ResetFrom(stage)
		return
	}
}

// chapterLogger mirrors the pipeline logger into the chapter's own log file.
func (p *Pipeline) chapterLogger(ctx context.Context, dir string) (*slog.Logger, func()) {
	base := logging.WithContext(ctx, p.logger)
	handler, closer, err := logging.NewFileHandler(filepath.Join(dir, ChapterLog), p.cfg.Logging.Level)
	if err != nil {
		base.Warn("chapter log unavailable", logging.Error(err))
		return base, func() {}
	}
	chapterHandler := slog.New(handler).With(logging.Args(logging.ContextFields(ctx)...)...).Handler()
	return logging.TeeLogger(base, chapterHandler), func() { closeQuietly(closer) }
}

func closeQuietly(c io.Closer) {
	if c != nil {
		_ = c.Close()
	}
}
