package domquery

import (
	"context"
	"fmt"
	"time"

	"github.com/hazyhaar/domquery/dom"
)

// FindAll returns every node matching q, in document order, polling until
// at least one matches or the timeout elapses. The caller owns the
// returned handles and releases them through the document.
//
// Errors are *QueryError values (QueryParametersError, QueryEmptyError,
// QueryIframeError), a QueryTimeoutError wrapping a backend failure, or a
// context error.
func FindAll(ctx context.Context, cfg *Config, q Query, opts ...FindOption) ([]dom.Handle, error) {
	caller := captureStack(1)
	hs, _, err := findAll(ctx, cfg.settings(), q, opts, "find_all", caller)
	return hs, err
}

// Find is FindAll for exactly one node. More than one match fails with a
// QueryMultipleError and every match is released.
func Find(ctx context.Context, cfg *Config, q Query, opts ...FindOption) (dom.Handle, error) {
	caller := captureStack(1)
	s := cfg.settings()
	hs, m, err := findAll(ctx, s, q, opts, "find", caller)
	if err != nil {
		return nil, err
	}
	if len(hs) > 1 {
		m.release(ctx, hs...)
		s.logger.Debug("domquery: ambiguous query", "query", q.String(), "matches", len(hs))
		return nil, s.attributor().Attribute(newError(KindMultiple, "Found more than one node.", nil, 0), caller)
	}
	return hs[0], nil
}

func findAll(ctx context.Context, s settings, q Query, opts []FindOption, op string, caller []Frame) ([]dom.Handle, *matcher, error) {
	attr := s.attributor()
	if err := q.Validate(); err != nil {
		return nil, nil, attr.Attribute(err, caller)
	}

	r := s.resolveFind(opts)
	if r.document == nil {
		return nil, nil, attr.Attribute(newError(KindParameters,
			"No document to query: set Config.Document or pass WithDocument.", nil, 0), caller)
	}

	m := &matcher{doc: r.document, logger: s.logger}
	attempt := func(ctx context.Context) ([]dom.Handle, error) {
		hs, err := m.queryAll(ctx, q, r.root, r.visible)
		if err != nil {
			return nil, err
		}
		if len(hs) == 0 {
			return nil, newError(KindEmpty, emptyMessage(r.timeout), nil, 0)
		}
		return hs, nil
	}
	discard := func(hs []dom.Handle) { m.release(ctx, hs...) }

	p := waitParams{
		timeout:      r.timeout,
		pollInterval: r.pollInterval,
		op:           op,
		query:        q.String(),
	}
	hs, err := waitFor(ctx, s, p, attempt, discard, caller)
	if err != nil {
		// The timer fired before the first poll came back: nothing was
		// observed, which reads as "not found".
		if qe, ok := err.(*QueryError); ok && qe.Kind() == KindTimeout && qe.Unwrap() == nil {
			err = attr.Attribute(newError(KindEmpty, emptyMessage(r.timeout), nil, 0), caller)
		}
		s.logger.Debug("domquery: query failed", "op", op, "query", p.query, "error", err)
		return nil, m, err
	}
	s.logger.Debug("domquery: query matched", "op", op, "query", p.query, "matches", len(hs))
	return hs, m, nil
}

func emptyMessage(timeout time.Duration) string {
	if timeout > 0 {
		return fmt.Sprintf("Unable to find any nodes within %v.", timeout)
	}
	return "Unable to find any nodes."
}
