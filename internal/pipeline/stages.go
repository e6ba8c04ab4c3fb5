package pipeline

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"mangarecap/internal/fileutil"
	"mangarecap/internal/language"
	"mangarecap/internal/logging"
	"mangarecap/internal/media/audio"
	"mangarecap/internal/media/compose"
	"mangarecap/internal/media/ffprobe"
	"mangarecap/internal/pages"
	"mangarecap/internal/provider"
	"mangarecap/internal/services"
)

func (p *Pipeline) runOCR(ctx context.Context, run *chapterRun, logger *slog.Logger) (stageOutput, error) {
	paths, err := pages.Discover(run.chapter.Dir)
	if err != nil {
		return stageOutput{}, services.Wrap(services.ErrValidation, "pipeline", "ocr", "chapter pages unreadable", err)
	}
	if len(paths) == 0 {
		return stageOutput{}, services.Wrap(services.ErrValidation, "pipeline", "ocr", "chapter has no page images", nil)
	}

	art := OCRArtifact{
		ChapterID:  run.chapter.ID,
		Chapter:    run.chapter.Name,
		Pages:      make([]PageText, 0, len(paths)),
		TotalPages: len(paths),
	}
	var used []string
	for i, path := range paths {
		input, err := pages.OCRInput(path)
		if err != nil {
			return stageOutput{}, err
		}
		text, providerID, err := invokeCached(ctx, p, logger, provider.KindOCR, fileutil.HashBytes(input), textCodec,
			func(ctx context.Context, ocr provider.OCR) (string, error) {
				return ocr.ExtractText(ctx, input)
			})
		if err != nil {
			return stageOutput{}, fmt.Errorf("page %s: %w", filepath.Base(path), err)
		}
		art.Pages = append(art.Pages, PageText{
			Page:     i + 1,
			File:     filepath.Base(path),
			Text:     strings.TrimSpace(text),
			Provider: providerID,
		})
		if !slices.Contains(used, providerID) {
			used = append(used, providerID)
		}
		logger.Debug("page recognized",
			logging.Int("page", i+1),
			logging.String(logging.FieldProvider, providerID),
			logging.Int("chars", len(text)),
		)
	}
	art.HasMeaningfulContent = MeaningfulContent(art.Texts())
	if !art.HasMeaningfulContent {
		logging.WarnWithContext(logger, "little or no text recognized", "ocr_sparse",
			logging.Int("pages", art.TotalPages),
			logging.String(logging.FieldImpact, "narration may be generic"),
		)
	}

	path := filepath.Join(run.dir, OCRFile)
	if err := fileutil.WriteJSONAtomic(path, art); err != nil {
		return stageOutput{}, fmt.Errorf("write ocr artifact: %w", err)
	}
	return stageOutput{artifact: path, provider: strings.Join(used, ",")}, nil
}

func (p *Pipeline) textRequest(run *chapterRun, task provider.Task, ocr OCRArtifact, summary string) provider.TextRequest {
	return provider.TextRequest{
		Task:          task,
		Pages:         ocr.Texts(),
		Summary:       summary,
		Language:      p.cfg.Narration.Language,
		ChapterTitle:  run.chapter.Title,
		ChapterNumber: run.chapter.Number,
	}
}

func textFingerprint(req provider.TextRequest) string {
	parts := []string{string(req.Task), req.Language, req.ChapterTitle, strconv.Itoa(req.ChapterNumber), req.Summary}
	return fileutil.HashStrings(append(parts, req.Pages...)...)
}

func (p *Pipeline) generate(ctx context.Context, run *chapterRun, logger *slog.Logger, req provider.TextRequest, file string) (stageOutput, error) {
	text, providerID, err := invokeCached(ctx, p, logger, provider.KindTextGen, textFingerprint(req), textCodec,
		func(ctx context.Context, gen provider.TextGen) (string, error) {
			return gen.Generate(ctx, req)
		})
	if err != nil {
		return stageOutput{}, err
	}
	text = strings.TrimSpace(text)
	art := TextArtifact{
		Text:      text,
		Provider:  providerID,
		Language:  req.Language,
		WordCount: WordCount(text),
	}
	path := filepath.Join(run.dir, file)
	if err := fileutil.WriteJSONAtomic(path, art); err != nil {
		return stageOutput{}, fmt.Errorf("write %s artifact: %w", req.Task, err)
	}
	return stageOutput{artifact: path, provider: providerID}, nil
}

func (p *Pipeline) runSummary(ctx context.Context, run *chapterRun, logger *slog.Logger) (stageOutput, error) {
	ocr, err := LoadOCR(run.dir)
	if err != nil {
		return stageOutput{}, fmt.Errorf("load ocr artifact: %w", err)
	}
	return p.generate(ctx, run, logger, p.textRequest(run, provider.TaskSummary, ocr, ""), SummaryFile)
}

func (p *Pipeline) runScript(ctx context.Context, run *chapterRun, logger *slog.Logger) (stageOutput, error) {
	ocr, err := LoadOCR(run.dir)
	if err != nil {
		return stageOutput{}, fmt.Errorf("load ocr artifact: %w", err)
	}
	summary, err := LoadText(run.dir, SummaryFile)
	if err != nil {
		return stageOutput{}, fmt.Errorf("load summary artifact: %w", err)
	}
	return p.generate(ctx, run, logger, p.textRequest(run, provider.TaskScript, ocr, summary.Text), ScriptFile)
}

func (p *Pipeline) runAudio(ctx context.Context, run *chapterRun, logger *slog.Logger) (stageOutput, error) {
	script, err := LoadText(run.dir, ScriptFile)
	if err != nil {
		return stageOutput{}, fmt.Errorf("load script artifact: %w", err)
	}
	req := provider.SpeechRequest{
		Text:     script.Text,
		Language: p.cfg.Narration.Language,
		Voice:    p.cfg.Narration.Voice,
	}
	fingerprint := fileutil.HashStrings(req.Language, req.Voice, req.Text)
	speech, providerID, err := invokeCached(ctx, p, logger, provider.KindTTS, fingerprint, speechCodec,
		func(ctx context.Context, tts provider.TTS) (provider.Speech, error) {
			return tts.Synthesize(ctx, req)
		})
	if err != nil {
		return stageOutput{}, err
	}
	if len(speech.Audio) == 0 {
		return stageOutput{}, services.Wrap(services.ErrValidation, "pipeline", "audio", "provider returned no audio", nil)
	}
	format := strings.ToLower(strings.TrimSpace(speech.Format))
	if format == "" {
		format = audioFormat(speech.Audio)
	}

	audioPath := filepath.Join(run.dir, "narration."+format)
	if err := fileutil.WriteFileAtomic(audioPath, speech.Audio, 0o644); err != nil {
		return stageOutput{}, fmt.Errorf("write narration: %w", err)
	}
	duration := speech.Duration
	if duration <= 0 && audio.IsWAV(speech.Audio) {
		if d, err := audio.Duration(speech.Audio); err == nil {
			duration = d
		}
	}
	if duration <= 0 {
		probe, err := p.prober.Inspect(ctx, audioPath)
		if err != nil {
			return stageOutput{}, fmt.Errorf("measure narration: %w", err)
		}
		duration = probe.DurationSeconds()
	}
	if duration <= 0 {
		return stageOutput{}, services.Wrap(services.ErrValidation, "pipeline", "audio", "narration duration unknown", nil)
	}

	meta := AudioArtifact{File: audioPath, Format: format, Duration: duration, Provider: providerID}
	metaPath := filepath.Join(run.dir, AudioMetaFile)
	if err := fileutil.WriteJSONAtomic(metaPath, meta); err != nil {
		return stageOutput{}, fmt.Errorf("write audio metadata: %w", err)
	}
	logger.Info("narration ready",
		logging.String(logging.FieldProvider, providerID),
		logging.String("format", format),
		logging.Float64("duration_seconds", duration),
		logging.Int("words", script.WordCount),
	)
	return stageOutput{artifact: metaPath, provider: providerID}, nil
}

func (p *Pipeline) runVideo(ctx context.Context, run *chapterRun, logger *slog.Logger) (stageOutput, error) {
	narration, err := LoadAudio(run.dir)
	if err != nil {
		return stageOutput{}, fmt.Errorf("load audio metadata: %w", err)
	}
	paths, err := pages.Discover(run.chapter.Dir)
	if err != nil {
		return stageOutput{}, services.Wrap(services.ErrValidation, "pipeline", "video", "chapter pages unreadable", err)
	}

	video := p.cfg.Video
	var titles []image.Image
	if video.TitleCardSeconds > 0 {
		heading := fmt.Sprintf("%s %d", language.ChapterWord(p.cfg.Narration.Language), run.chapter.Number)
		card, err := pages.TitleCard(video.Width, video.Height, heading, run.chapter.Title)
		if err != nil {
			return stageOutput{}, fmt.Errorf("render title card: %w", err)
		}
		titles = append(titles, card)
	}

	frameDir := filepath.Join(run.dir, framesDir)
	if err := os.RemoveAll(frameDir); err != nil {
		return stageOutput{}, fmt.Errorf("reset frame dir: %w", err)
	}
	frames, err := pages.WriteFrames(frameDir, paths, video.Width, video.Height, titles...)
	if err != nil {
		return stageOutput{}, err
	}

	req := compose.Request{
		Frames:       frames,
		TitleFrames:  len(titles),
		TitleSeconds: video.TitleCardSeconds,
		AudioPath:    narration.File,
		AudioSeconds: narration.Duration,
		Width:        video.Width,
		Height:       video.Height,
		FPS:          video.FPS,
		Output:       filepath.Join(run.dir, VideoFile),
	}
	rendered, err := p.compositor.Compose(ctx, req)
	if err != nil {
		return stageOutput{}, err
	}

	probe, err := p.prober.Inspect(ctx, rendered)
	if err != nil {
		return stageOutput{}, err
	}
	if err := probe.Validate(ffprobe.Expectation{
		Width:       video.Width,
		Height:      video.Height,
		MinDuration: narration.Duration,
	}); err != nil {
		return stageOutput{}, err
	}

	final := rendered
	if out := p.OutputPath(run.chapter); out != "" {
		if err := fileutil.CopyFileVerified(rendered, out); err != nil {
			return stageOutput{}, fmt.Errorf("deliver video: %w", err)
		}
		final = out
	}
	logger.Info("video ready",
		logging.String("output", final),
		logging.Int("frames", len(frames)),
		logging.Float64("page_seconds", req.PageSeconds()),
		logging.Float64("total_seconds", req.TotalSeconds()),
	)
	return stageOutput{artifact: final, provider: "ffmpeg"}, nil
}
