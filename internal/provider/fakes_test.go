package provider

import (
	"context"
	"errors"
	"sync/atomic"
)

type fakeText struct {
	id      string
	value   string
	err     error
	panicky bool
	block   bool
	unavail error
	calls   atomic.Int32
}

func (f *fakeText) ID() string { return f.id }

func (f *fakeText) Available() error { return f.unavail }

func (f *fakeText) Generate(ctx context.Context, _ TextRequest) (string, error) {
	f.calls.Add(1)
	if f.panicky {
		panic("boom")
	}
	if f.block {
		// Ignores ctx on purpose to exercise abandonment.
		select {}
	}
	if f.err != nil {
		return "", f.err
	}
	return f.value, nil
}

type fakeOCR struct{ id string }

func (f *fakeOCR) ID() string { return f.id }

func (f *fakeOCR) ExtractText(context.Context, []byte) (string, error) { return "text", nil }

var errFake = errors.New("fake failure")

func generate(ctx context.Context, p TextGen) (string, error) {
	return p.Generate(ctx, TextRequest{Task: TaskSummary})
}
