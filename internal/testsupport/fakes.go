package testsupport

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"mangarecap/internal/media/audio"
	"mangarecap/internal/media/compose"
	"mangarecap/internal/media/ffprobe"
	"mangarecap/internal/provider"
)

// ErrFake is returned by fakes configured to fail.
var ErrFake = errors.New("fake provider failure")

// FakeOCR returns a fixed sentence per call and counts calls.
type FakeOCR struct {
	Name  string
	Cost  provider.Cost
	calls atomic.Int64
}

func (f *FakeOCR) ID() string { return f.Name }

// ExtractText implements provider.OCR.
func (f *FakeOCR) ExtractText(_ context.Context, page []byte) (string, error) {
	n := f.calls.Add(1)
	return fmt.Sprintf("the hero speaks on page %d of %d bytes", n, len(page)), nil
}

// Calls reports how many pages were recognized.
func (f *FakeOCR) Calls() int { return int(f.calls.Load()) }

// FakeText answers summary and script requests. FailFor, when set, decides
// per request whether the call fails.
type FakeText struct {
	Name    string
	Cost    provider.Cost
	FailFor func(req provider.TextRequest) bool
	calls   atomic.Int64
}

func (f *FakeText) ID() string { return f.Name }

// Generate implements provider.TextGen.
func (f *FakeText) Generate(_ context.Context, req provider.TextRequest) (string, error) {
	f.calls.Add(1)
	if f.FailFor != nil && f.FailFor(req) {
		return "", ErrFake
	}
	return fmt.Sprintf("%s of chapter %d: %s", req.Task, req.ChapterNumber, strings.Join(req.Pages, " ")), nil
}

// Calls reports how many requests were served or failed.
func (f *FakeText) Calls() int { return int(f.calls.Load()) }

// FakeTTS returns two seconds of WAV silence per call.
type FakeTTS struct {
	Name  string
	Cost  provider.Cost
	calls atomic.Int64
}

func (f *FakeTTS) ID() string { return f.Name }

// Synthesize implements provider.TTS.
func (f *FakeTTS) Synthesize(_ context.Context, req provider.SpeechRequest) (provider.Speech, error) {
	f.calls.Add(1)
	if strings.TrimSpace(req.Text) == "" {
		return provider.Speech{}, ErrFake
	}
	return provider.Speech{Audio: audio.Silence(2, audio.DefaultFormat), Format: "wav"}, nil
}

// Calls reports how many requests were synthesized.
func (f *FakeTTS) Calls() int { return int(f.calls.Load()) }

// Fakes groups one fake per capability.
type Fakes struct {
	OCR  *FakeOCR
	Text *FakeText
	TTS  *FakeTTS
}

// NewFakes returns local-cost fakes named fake-ocr, fake-text and fake-tts.
func NewFakes() *Fakes {
	return &Fakes{
		OCR:  &FakeOCR{Name: "fake-ocr", Cost: provider.CostLocal},
		Text: &FakeText{Name: "fake-text", Cost: provider.CostLocal},
		TTS:  &FakeTTS{Name: "fake-tts", Cost: provider.CostLocal},
	}
}

// Registry registers the fakes as the only provider of each kind.
func (f *Fakes) Registry(t testing.TB) *provider.Registry {
	t.Helper()

	reg := provider.NewRegistry()
	register := func(kind provider.Kind, p provider.Provider, cost provider.Cost) {
		if err := reg.Register(kind, p, provider.Descriptor{ProviderID: p.ID(), Rank: 10, Cost: cost}); err != nil {
			t.Fatalf("register %s: %v", p.ID(), err)
		}
	}
	register(provider.KindOCR, f.OCR, f.OCR.Cost)
	register(provider.KindTextGen, f.Text, f.Text.Cost)
	register(provider.KindTTS, f.TTS, f.TTS.Cost)
	return reg
}

// FakeCompositor writes a placeholder video and records requests.
type FakeCompositor struct {
	mu       sync.Mutex
	requests []compose.Request
	Err      error
}

// Compose implements compose.Compositor.
func (c *FakeCompositor) Compose(_ context.Context, req compose.Request) (string, error) {
	c.mu.Lock()
	c.requests = append(c.requests, req)
	c.mu.Unlock()
	if c.Err != nil {
		return "", c.Err
	}
	if err := os.WriteFile(req.Output, []byte("video:"+req.AudioPath), 0o644); err != nil {
		return "", err
	}
	return req.Output, nil
}

// Requests returns a copy of the recorded requests.
func (c *FakeCompositor) Requests() []compose.Request {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]compose.Request(nil), c.requests...)
}

// FakeProber reports every file as a valid width x height video with audio
// lasting Seconds.
type FakeProber struct {
	Width   int
	Height  int
	Seconds float64
}

// Inspect implements pipeline.Prober.
func (p FakeProber) Inspect(_ context.Context, path string) (ffprobe.Result, error) {
	if _, err := os.Stat(path); err != nil {
		return ffprobe.Result{}, err
	}
	return ffprobe.Result{
		Streams: []ffprobe.Stream{
			{Index: 0, CodecType: "video", CodecName: "h264", Width: p.Width, Height: p.Height},
			{Index: 1, CodecType: "audio", CodecName: "aac"},
		},
		Format: ffprobe.Format{Filename: path, NBStreams: 2, Duration: fmt.Sprintf("%.3f", p.Seconds)},
	}, nil
}
