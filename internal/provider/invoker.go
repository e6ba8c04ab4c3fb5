package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"mangarecap/internal/logging"
	"mangarecap/internal/services"
)

// Outcome classifies one attempt within a fallback chain.
type Outcome string

const (
	OutcomeSuccess     Outcome = "success"
	OutcomeFailure     Outcome = "failure"
	OutcomeUnavailable Outcome = "unavailable"
	OutcomeTimeout     Outcome = "timeout"
)

// Attempt records one provider call.
type Attempt struct {
	ProviderID string
	Outcome    Outcome
	Reason     string
	Elapsed    time.Duration
}

// Result is the value produced by the first provider that succeeded.
type Result[T any] struct {
	Value      T
	ProviderID string
	Trace      []Attempt
}

// ExhaustedError reports that every provider in a chain failed.
type ExhaustedError struct {
	Kind     Kind
	Attempts []Attempt
}

func (e *ExhaustedError) Error() string {
	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		parts = append(parts, fmt.Sprintf("%s: %s (%s)", a.ProviderID, a.Outcome, a.Reason))
	}
	return fmt.Sprintf("%s: %s providers exhausted: %s", services.ErrProvidersExhausted, e.Kind, strings.Join(parts, "; "))
}

// Is lets errors.Is match services.ErrProvidersExhausted.
func (e *ExhaustedError) Is(target error) bool {
	return target == services.ErrProvidersExhausted
}

// Invoker walks fallback chains from a registry.
type Invoker struct {
	registry *Registry
	timeout  time.Duration
	logger   *slog.Logger
}

// NewInvoker builds an invoker. A zero timeout disables per-attempt deadlines.
func NewInvoker(registry *Registry, timeout time.Duration, logger *slog.Logger) *Invoker {
	return &Invoker{
		registry: registry,
		timeout:  timeout,
		logger:   logging.NewComponentLogger(logger, "invoker"),
	}
}

// Registry exposes the registry backing the invoker.
func (i *Invoker) Registry() *Registry {
	return i.registry
}

// Chain returns the ordered chain for kind.
func (i *Invoker) Chain(kind Kind) (Chain, error) {
	return i.registry.Chain(kind)
}

// Invoke calls providers for kind in priority order until one succeeds.
// Failures, panics and timeouts move on to the next provider. Cancellation
// of ctx stops the walk and returns ctx.Err().
func Invoke[P Provider, T any](ctx context.Context, inv *Invoker, kind Kind, call func(context.Context, P) (T, error)) (Result[T], error) {
	var result Result[T]
	chain, err := inv.registry.Chain(kind)
	if err != nil {
		return result, err
	}

	trace := make([]Attempt, 0, len(chain.Entries))
	for _, entry := range chain.Entries {
		if err := ctx.Err(); err != nil {
			result.Trace = trace
			return result, err
		}
		id := entry.Descriptor.ProviderID

		typed, ok := entry.Provider.(P)
		if !ok {
			trace = append(trace, Attempt{ProviderID: id, Outcome: OutcomeFailure, Reason: fmt.Sprintf("does not implement %s", kind)})
			continue
		}
		if avail, ok := entry.Provider.(Availability); ok {
			if err := avail.Available(); err != nil {
				attempt := Attempt{ProviderID: id, Outcome: OutcomeUnavailable, Reason: err.Error()}
				trace = append(trace, attempt)
				inv.logger.Debug("provider unavailable, skipping",
					logging.String(logging.FieldProvider, id),
					logging.String("capability", string(kind)),
					logging.String("reason", attempt.Reason),
				)
				continue
			}
		}

		started := time.Now()
		value, outcome, callErr := runAttempt(ctx, inv.timeout, typed, call)
		elapsed := time.Since(started)
		if outcome == "" {
			// Parent context ended mid-call.
			result.Trace = trace
			return result, callErr
		}

		attempt := Attempt{ProviderID: id, Outcome: outcome, Elapsed: elapsed}
		if outcome == OutcomeSuccess {
			trace = append(trace, attempt)
			result.Value = value
			result.ProviderID = id
			result.Trace = trace
			return result, nil
		}
		attempt.Reason = callErr.Error()
		trace = append(trace, attempt)
		logging.WarnWithContext(logging.WithContext(ctx, inv.logger), "provider attempt failed, falling back", "provider_fallback",
			logging.String(logging.FieldProvider, id),
			logging.String("capability", string(kind)),
			logging.String("outcome", string(outcome)),
			logging.String("reason", attempt.Reason),
			logging.Duration("elapsed", elapsed),
			logging.String(logging.FieldErrorHint, "check provider credentials, binaries and network"),
			logging.String(logging.FieldImpact, "next provider in the chain is tried"),
		)
	}

	result.Trace = trace
	return result, &ExhaustedError{Kind: kind, Attempts: trace}
}

type attemptResult[T any] struct {
	value T
	err   error
}

// runAttempt executes call with the per-attempt timeout. An empty outcome means
// the parent context was cancelled and the error is ctx.Err().
func runAttempt[P Provider, T any](ctx context.Context, timeout time.Duration, p P, call func(context.Context, P) (T, error)) (T, Outcome, error) {
	var zero T
	attemptCtx := ctx
	cancel := func() {}
	if timeout > 0 {
		attemptCtx, cancel = context.WithTimeout(ctx, timeout)
	}
	defer cancel()

	// Buffered so an abandoned call can still deliver and exit.
	done := make(chan attemptResult[T], 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- attemptResult[T]{err: fmt.Errorf("provider panic: %v", r)}
			}
		}()
		value, err := call(attemptCtx, p)
		done <- attemptResult[T]{value: value, err: err}
	}()

	select {
	case res := <-done:
		if res.err == nil {
			return res.value, OutcomeSuccess, nil
		}
		if ctx.Err() != nil {
			return zero, "", ctx.Err()
		}
		if errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
			return zero, OutcomeTimeout, fmt.Errorf("timed out after %s: %w", timeout, res.err)
		}
		if errors.Is(res.err, services.ErrProviderUnavailable) {
			return zero, OutcomeUnavailable, res.err
		}
		return zero, OutcomeFailure, res.err
	case <-attemptCtx.Done():
		if ctx.Err() != nil {
			return zero, "", ctx.Err()
		}
		return zero, OutcomeTimeout, services.Wrap(services.ErrTimeout, p.ID(), "", fmt.Sprintf("no response within %s", timeout), nil)
	}
}
