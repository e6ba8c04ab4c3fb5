package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"mangarecap/internal/checkpoint"
	"mangarecap/internal/logging"
	"mangarecap/internal/services"
)

// stageOutput is what a stage handler hands back for the checkpoint.
type stageOutput struct {
	artifact string
	provider string
}

type stageFunc func(ctx context.Context, run *chapterRun, logger *slog.Logger) (stageOutput, error)

func (p *Pipeline) handler(stage checkpoint.Stage) stageFunc {
	switch stage {
	case checkpoint.StageOCR:
		return p.runOCR
	case checkpoint.StageSummary:
		return p.runSummary
	case checkpoint.StageScript:
		return p.runScript
	case checkpoint.StageAudio:
		return p.runAudio
	case checkpoint.StageVideo:
		return p.runVideo
	default:
		return nil
	}
}

// runStage executes one stage and applies checkpoint transition semantics.
func (p *Pipeline) runStage(ctx context.Context, run *chapterRun, stage checkpoint.Stage) error {
	handler := p.handler(stage)
	if handler == nil {
		return fmt.Errorf("stage handler unavailable: %s", stage)
	}

	stageCtx := services.WithStage(ctx, string(stage))
	stageLogger := logging.WithContext(stageCtx, run.logger).With(logging.String(logging.FieldStage, string(stage)))
	stageStart := time.Now()
	stageLogger.Info("stage started", logging.String(logging.FieldEventType, "stage_start"))

	out, err := handler(stageCtx, run, stageLogger)
	if err != nil {
		return p.handleFailure(stageLogger, run, stage, err)
	}

	run.cp.MarkComplete(stage, out.artifact, out.provider)
	if err := p.checkpoints.Save(run.cp); err != nil {
		return p.handleFailure(stageLogger, run, stage, fmt.Errorf("persist stage result: %w", err))
	}

	stageLogger.Info("stage completed",
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.String(logging.FieldProvider, out.provider),
		logging.String("artifact", out.artifact),
		logging.Duration("stage_duration", time.Since(stageStart)),
	)
	return nil
}

func (p *Pipeline) handleFailure(logger *slog.Logger, run *chapterRun, stage checkpoint.Stage, stageErr error) error {
	message := strings.TrimSpace(stageErr.Error())
	run.cp.LastError = fmt.Sprintf("%s: %s", stage, message)

	logger.Error("stage failed",
		logging.String(logging.FieldEventType, "stage_failure"),
		logging.String("error_kind", services.Kind(stageErr)),
		logging.String(logging.FieldErrorHint, failureHint(stageErr)),
		logging.Error(stageErr),
	)
	if err := p.checkpoints.Save(run.cp); err != nil {
		logger.Error("failed to persist stage failure", logging.Error(err))
	}
	return fmt.Errorf("%s stage: %w", stage, stageErr)
}

func failureHint(err error) string {
	switch services.Kind(err) {
	case "providers_exhausted":
		return "check provider credentials and local tools with mangarecap preflight"
	case "external_tool":
		return "check that ffmpeg and ffprobe are installed"
	case "validation":
		return "check the chapter's page images"
	default:
		return "rerun the chapter; completed stages are kept"
	}
}
