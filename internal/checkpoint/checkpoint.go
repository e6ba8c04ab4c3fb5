package checkpoint

import (
	"slices"
	"time"
)

// Stage names one step of the chapter pipeline.
type Stage string

const (
	StageOCR     Stage = "ocr"
	StageSummary Stage = "summary"
	StageScript  Stage = "script"
	StageAudio   Stage = "audio"
	StageVideo   Stage = "video"
)

// Stages lists the pipeline stages in execution order.
var Stages = []Stage{StageOCR, StageSummary, StageScript, StageAudio, StageVideo}

// Index returns the position of s in Stages, or -1.
func (s Stage) Index() int {
	return slices.Index(Stages, s)
}

// Checkpoint is the persisted progress of one chapter.
type Checkpoint struct {
	ChapterID       string           `json:"chapter_id"`
	ChapterDir      string           `json:"chapter_dir"`
	CompletedStages []Stage          `json:"completed_stages"`
	Artifacts       map[Stage]string `json:"artifacts"`
	Providers       map[Stage]string `json:"providers,omitempty"`
	LastError       string           `json:"last_error,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

// New returns an empty checkpoint for a chapter.
func New(chapterID, chapterDir string) *Checkpoint {
	return &Checkpoint{
		ChapterID:  chapterID,
		ChapterDir: chapterDir,
		Artifacts:  map[Stage]string{},
		Providers:  map[Stage]string{},
	}
}

// Completed reports whether stage finished.
func (c *Checkpoint) Completed(stage Stage) bool {
	return slices.Contains(c.CompletedStages, stage)
}

// MarkComplete records a finished stage with its artifact path and serving
// provider, clearing any previous error.
func (c *Checkpoint) MarkComplete(stage Stage, artifact, providerID string) {
	if c.Artifacts == nil {
		c.Artifacts = map[Stage]string{}
	}
	if c.Providers == nil {
		c.Providers = map[Stage]string{}
	}
	if !c.Completed(stage) {
		c.CompletedStages = append(c.CompletedStages, stage)
		slices.SortFunc(c.CompletedStages, func(a, b Stage) int { return a.Index() - b.Index() })
	}
	c.Artifacts[stage] = artifact
	if providerID != "" {
		c.Providers[stage] = providerID
	}
	c.LastError = ""
}

// ResetFrom forgets stage and every stage after it.
func (c *Checkpoint) ResetFrom(stage Stage) {
	from := stage.Index()
	if from < 0 {
		return
	}
	c.CompletedStages = slices.DeleteFunc(c.CompletedStages, func(s Stage) bool {
		return s.Index() >= from
	})
	for _, s := range Stages[from:] {
		delete(c.Artifacts, s)
		delete(c.Providers, s)
	}
}

// Done reports whether every stage finished.
func (c *Checkpoint) Done() bool {
	for _, stage := range Stages {
		if !c.Completed(stage) {
			return false
		}
	}
	return true
}

// NextStage returns the first incomplete stage, or "" when Done.
func (c *Checkpoint) NextStage() Stage {
	for _, stage := range Stages {
		if !c.Completed(stage) {
			return stage
		}
	}
	return ""
}
