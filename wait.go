package domquery

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hazyhaar/domquery/kit"
	"github.com/hazyhaar/domquery/trace"
)

// WaitFor calls attempt until it succeeds, the timeout elapses or ctx is
// done. Attempts never overlap: the next one starts a poll interval after
// the previous one returned. A *QueryError returned by the last attempt is
// returned as is, with its stack attributed to the caller of WaitFor.
//
// The context handed to attempt is cancelled as soon as the wait settles.
func WaitFor[T any](ctx context.Context, cfg *Config, attempt func(context.Context) (T, error), opts ...WaitOption) (T, error) {
	caller := captureStack(1)
	s := cfg.settings()

	var o waitOptions
	for _, opt := range opts {
		opt(&o)
	}
	p := waitParams{timeout: s.timeout, pollInterval: s.pollInterval, op: "wait"}
	if o.timeout != nil {
		p.timeout = *o.timeout
	}
	if o.pollInterval != 0 {
		p.pollInterval = clampPoll(o.pollInterval)
	}
	if o.op != "" {
		p.op = o.op
	}
	return waitFor(ctx, s, p, attempt, nil, caller)
}

type waitParams struct {
	timeout      time.Duration
	pollInterval time.Duration
	op           string
	query        string
}

type waitState int

const (
	statePolling waitState = iota
	stateSucceeded
	stateFailed
)

// waiter holds the outcome of one wait. The first settle wins; every later
// outcome is ignored (values go to discard).
type waiter[T any] struct {
	mu       sync.Mutex
	state    waitState
	done     chan struct{}
	val      T
	err      error
	lastErr  error
	attempts int
	discard  func(T)
}

func (w *waiter[T]) settle(st waitState, v T, err error) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state != statePolling {
		return false
	}
	w.state, w.val, w.err = st, v, err
	close(w.done)
	return true
}

// begin reports whether another attempt may start and returns its number.
func (w *waiter[T]) begin() (int, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state != statePolling {
		return 0, false
	}
	w.attempts++
	return w.attempts, true
}

// fail records err as the latest failure and reports whether polling
// should go on.
func (w *waiter[T]) fail(err error) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state != statePolling {
		return false
	}
	w.lastErr = err
	return true
}

// expire settles the wait with a timeout error built from the last failure.
func (w *waiter[T]) expire(timeout time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state != statePolling {
		return
	}
	_, isQuery := w.lastErr.(*QueryError)
	switch {
	case w.lastErr == nil:
		w.err = newError(KindTimeout,
			fmt.Sprintf("Condition not satisfied within %v: the first attempt was still running.", timeout), nil, 0)
	case isQuery:
		w.err = w.lastErr
	default:
		w.err = newError(KindTimeout,
			fmt.Sprintf("Condition not satisfied within %v: %v", timeout, w.lastErr), w.lastErr, 0)
	}
	w.state = stateFailed
	close(w.done)
}

func waitFor[T any](ctx context.Context, s settings, p waitParams, attempt func(context.Context) (T, error), discard func(T), caller []Frame) (T, error) {
	var zero T
	attr := s.attributor()

	if p.timeout == 0 {
		start := time.Now()
		v, err := attempt(ctx)
		s.record(ctx, p, 1, time.Since(start), err)
		if err != nil {
			return zero, attr.Attribute(err, caller)
		}
		return v, nil
	}

	w := &waiter[T]{done: make(chan struct{}), discard: discard}
	attemptCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go w.loop(attemptCtx, s, p, attempt)

	var expired <-chan time.Time
	if p.timeout > 0 {
		timer := time.NewTimer(p.timeout)
		defer timer.Stop()
		expired = timer.C
	}

	select {
	case <-w.done:
	case <-expired:
		w.expire(p.timeout)
	case <-ctx.Done():
		w.settle(stateFailed, zero, fmt.Errorf("domquery: %s: %w", p.op, ctx.Err()))
	}
	cancel()

	w.mu.Lock()
	v, err := w.val, w.err
	w.mu.Unlock()
	if err != nil {
		return zero, attr.Attribute(err, caller)
	}
	return v, nil
}

func (w *waiter[T]) loop(ctx context.Context, s settings, p waitParams, attempt func(context.Context) (T, error)) {
	var zero T
	for {
		n, ok := w.begin()
		if !ok {
			return
		}
		start := time.Now()
		v, err := attempt(ctx)
		s.record(ctx, p, n, time.Since(start), err)

		if err == nil {
			if !w.settle(stateSucceeded, v, nil) && w.discard != nil {
				w.discard(v)
			}
			return
		}
		if !w.fail(err) {
			return
		}
		if IsPermanent(err) {
			w.settle(stateFailed, zero, err)
			return
		}
		s.logger.Debug("domquery: poll failed", "op", p.op, "attempt", n, "error", err)

		t := time.NewTimer(p.pollInterval)
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-t.C:
		}
	}
}

func (s settings) record(ctx context.Context, p waitParams, attempt int, d time.Duration, err error) {
	if s.recorder == nil {
		return
	}
	e := &trace.Entry{
		TraceID:    kit.GetTraceID(ctx),
		Op:         p.op,
		Query:      p.query,
		Attempt:    attempt,
		DurationUs: d.Microseconds(),
		Timestamp:  time.Now().UnixMicro(),
	}
	if err != nil {
		e.Error = err.Error()
		var qe *QueryError
		if errors.As(err, &qe) {
			e.Kind = string(qe.Kind())
		}
	}
	s.recorder.RecordAsync(e)
}
