package batch_test

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"mangarecap/internal/batch"
	"mangarecap/internal/cache"
	"mangarecap/internal/chapters"
	"mangarecap/internal/checkpoint"
	"mangarecap/internal/fileutil"
	"mangarecap/internal/logging"
	"mangarecap/internal/pipeline"
	"mangarecap/internal/provider"
	"mangarecap/internal/services"
	"mangarecap/internal/testsupport"
)

func TestFailedChapterDoesNotStopOthers(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithCacheBackend(""), testsupport.WithWorkers(2))
	cfg.Video.Width = 160
	cfg.Video.Height = 90

	root := filepath.Join(testsupport.BaseDir(cfg), "manga")
	for i := 1; i <= 5; i++ {
		testsupport.WriteChapter(t, root, fmt.Sprintf("chapter_%d", i), 1)
	}
	chs, err := chapters.Discover(root, 0)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}

	fakes := testsupport.NewFakes()
	fakes.Text.FailFor = func(req provider.TextRequest) bool {
		return req.ChapterNumber == 3 && req.Task == provider.TaskScript
	}
	checkpoints, err := checkpoint.Open(cfg.Paths.WorkDir, logging.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	invoker := provider.NewInvoker(fakes.Registry(t), time.Second, logging.NewNop())
	p := pipeline.New(cfg, invoker, cache.Noop{}, checkpoints, logging.NewNop(),
		pipeline.WithCompositor(&testsupport.FakeCompositor{}),
		pipeline.WithProber(testsupport.FakeProber{Width: 160, Height: 90, Seconds: 5}),
		pipeline.WithOutput(filepath.Join(testsupport.BaseDir(cfg), "out", "{chapter}.mp4"), true),
	)

	sched := batch.New(p, "", logging.NewNop())
	if sched.RunID() == "" {
		t.Fatal("expected generated run id")
	}
	outcomes := sched.Run(context.Background(), chs, cfg.Batch.MaxWorkers)

	if outcomes.AllDone() {
		t.Fatal("AllDone with a failed chapter")
	}
	for _, job := range outcomes.Sorted() {
		want := batch.StatusDone
		if job.Chapter.Number == 3 {
			want = batch.StatusFailed
		}
		if job.Status != want {
			t.Fatalf("chapter %d status = %s, want %s (err %v)", job.Chapter.Number, job.Status, want, job.Err)
		}
	}
	failed := outcomes.Failed()
	if len(failed) != 1 || failed[0].Result.FailedStage != checkpoint.StageScript {
		t.Fatalf("failed = %+v", failed)
	}
	if !errors.Is(failed[0].Err, services.ErrProvidersExhausted) {
		t.Fatalf("err = %v", failed[0].Err)
	}

	if err := batch.WriteAggregates(cfg.Paths.WorkDir, checkpoints, outcomes); err != nil {
		t.Fatalf("WriteAggregates: %v", err)
	}
	var texts []batch.ChapterText
	if err := fileutil.ReadJSON(filepath.Join(cfg.Paths.WorkDir, batch.ChapterTextsFile), &texts); err != nil {
		t.Fatal(err)
	}
	if len(texts) != 5 || texts[0].Number != 1 || texts[4].Number != 5 {
		t.Fatalf("chapter texts = %+v", texts)
	}
	var scripts batch.NarrationScripts
	if err := fileutil.ReadJSON(filepath.Join(cfg.Paths.WorkDir, batch.NarrationScriptsFile), &scripts); err != nil {
		t.Fatal(err)
	}
	if scripts.TotalChapters != 4 || scripts.ScriptMetadata.WordCount == 0 || scripts.FullScript == "" {
		t.Fatalf("scripts = %+v", scripts.ScriptMetadata)
	}
	for _, entry := range scripts.Chapters {
		if entry.Number == 3 {
			t.Fatal("failed chapter has a script entry")
		}
	}
}

func TestForcedRerunFailureDropsStaleScript(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithCacheBackend(""))
	cfg.Video.Width = 160
	cfg.Video.Height = 90

	root := filepath.Join(testsupport.BaseDir(cfg), "manga")
	testsupport.WriteChapter(t, root, "chapter_1", 1)
	chs, err := chapters.Discover(root, 0)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}

	fakes := testsupport.NewFakes()
	checkpoints, err := checkpoint.Open(cfg.Paths.WorkDir, logging.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	invoker := provider.NewInvoker(fakes.Registry(t), time.Second, logging.NewNop())
	newPipeline := func(force bool) *pipeline.Pipeline {
		return pipeline.New(cfg, invoker, cache.Noop{}, checkpoints, logging.NewNop(),
			pipeline.WithCompositor(&testsupport.FakeCompositor{}),
			pipeline.WithProber(testsupport.FakeProber{Width: 160, Height: 90, Seconds: 5}),
			pipeline.WithOutput(filepath.Join(testsupport.BaseDir(cfg), "out", "{chapter}.mp4"), false),
			pipeline.WithForce(force),
		)
	}

	first := batch.New(newPipeline(false), "", logging.NewNop()).Run(context.Background(), chs, 1)
	if !first.AllDone() {
		t.Fatalf("first run not done: %+v", first.Failed())
	}

	fakes.Text.FailFor = func(req provider.TextRequest) bool { return req.Task == provider.TaskScript }
	rerun := batch.New(newPipeline(true), "", logging.NewNop()).Run(context.Background(), chs, 1)
	failed := rerun.Failed()
	if len(failed) != 1 || failed[0].Result.FailedStage != checkpoint.StageScript {
		t.Fatalf("expected script failure on forced rerun, got %+v", failed)
	}

	if err := batch.WriteAggregates(cfg.Paths.WorkDir, checkpoints, rerun); err != nil {
		t.Fatalf("WriteAggregates: %v", err)
	}
	var texts []batch.ChapterText
	if err := fileutil.ReadJSON(filepath.Join(cfg.Paths.WorkDir, batch.ChapterTextsFile), &texts); err != nil {
		t.Fatal(err)
	}
	if len(texts) != 1 {
		t.Fatalf("expected the rerun's ocr text, got %+v", texts)
	}
	var scripts batch.NarrationScripts
	if err := fileutil.ReadJSON(filepath.Join(cfg.Paths.WorkDir, batch.NarrationScriptsFile), &scripts); err != nil {
		t.Fatal(err)
	}
	if scripts.TotalChapters != 0 || scripts.FullScript != "" {
		t.Fatalf("stale script from the earlier run was aggregated: %+v", scripts)
	}
}

type fakeRunner struct {
	delay   time.Duration
	fail    map[string]error
	panicOn string

	mu      sync.Mutex
	calls   map[string]int
	running atomic.Int32
	peak    atomic.Int32
}

func (r *fakeRunner) Run(ctx context.Context, ch chapters.Chapter) (pipeline.Result, error) {
	n := r.running.Add(1)
	defer r.running.Add(-1)
	for {
		peak := r.peak.Load()
		if n <= peak || r.peak.CompareAndSwap(peak, n) {
			break
		}
	}
	r.mu.Lock()
	if r.calls == nil {
		r.calls = map[string]int{}
	}
	r.calls[ch.ID]++
	r.mu.Unlock()

	if ch.ID == r.panicOn {
		panic("boom")
	}
	select {
	case <-time.After(r.delay):
	case <-ctx.Done():
		return pipeline.Result{ChapterID: ch.ID, State: pipeline.StateFailed, Err: ctx.Err()}, ctx.Err()
	}
	if err := r.fail[ch.ID]; err != nil {
		return pipeline.Result{ChapterID: ch.ID, State: pipeline.StateFailed, Err: err}, err
	}
	return pipeline.Result{ChapterID: ch.ID, State: pipeline.StateDone}, nil
}

func chapterList(ids ...string) []chapters.Chapter {
	out := make([]chapters.Chapter, len(ids))
	for i, id := range ids {
		out[i] = chapters.Chapter{ID: id, Name: id, Number: i + 1}
	}
	return out
}

func TestWorkerLimitAndDedup(t *testing.T) {
	runner := &fakeRunner{delay: 20 * time.Millisecond}
	chs := chapterList("a", "b", "c", "d", "e", "f")
	chs = append(chs, chs[0])

	outcomes := batch.New(runner, "run-1", logging.NewNop()).Run(context.Background(), chs, 2)
	if len(outcomes) != 6 || !outcomes.AllDone() {
		t.Fatalf("outcomes = %d all done %v", len(outcomes), outcomes.AllDone())
	}
	if peak := runner.peak.Load(); peak > 2 || peak < 1 {
		t.Fatalf("peak concurrency = %d", peak)
	}
	if runner.calls["a"] != 1 {
		t.Fatalf("duplicate chapter ran %d times", runner.calls["a"])
	}
	sorted := outcomes.Sorted()
	if sorted[0].Chapter.ID != "a" || sorted[5].Chapter.ID != "f" {
		t.Fatalf("sorted order = %s..%s", sorted[0].Chapter.ID, sorted[5].Chapter.ID)
	}
	for _, job := range sorted {
		if job.StartedAt.IsZero() || job.Elapsed() <= 0 {
			t.Fatalf("job %s timing not recorded", job.Chapter.ID)
		}
	}
}

func TestPanickingChapterIsFailed(t *testing.T) {
	runner := &fakeRunner{panicOn: "b"}
	outcomes := batch.New(runner, "", logging.NewNop()).Run(context.Background(), chapterList("a", "b", "c"), 0)
	if outcomes["b"].Status != batch.StatusFailed || outcomes["b"].Err == nil {
		t.Fatalf("b = %+v", outcomes["b"])
	}
	if outcomes.Count(batch.StatusDone) != 2 {
		t.Fatalf("done = %d", outcomes.Count(batch.StatusDone))
	}
}

func TestConfigurationErrorStopsDispatch(t *testing.T) {
	fatal := services.Wrap(services.ErrConfiguration, "providers", "chain", "no tts providers", nil)
	runner := &fakeRunner{fail: map[string]error{"a": fatal}}
	outcomes := batch.New(runner, "", logging.NewNop()).Run(context.Background(), chapterList("a", "b", "c", "d"), 1)

	if outcomes["a"].Status != batch.StatusFailed {
		t.Fatalf("a = %s", outcomes["a"].Status)
	}
	if outcomes.Count(batch.StatusPending) == 0 {
		t.Fatal("expected undispatched chapters to stay pending")
	}
}
