package session

import (
	"context"
	"fmt"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/hazyhaar/domquery"
	"github.com/hazyhaar/domquery/dom"
	"github.com/hazyhaar/domquery/kit"
	"github.com/hazyhaar/domquery/trace"
)

// OpenRequest opens a session on a URL or on raw HTML.
type OpenRequest struct {
	URL  string `json:"url,omitempty"`
	HTML string `json:"html,omitempty"`
}

// SessionRequest names a session.
type SessionRequest struct {
	Session string `json:"session"`
}

// ContentRequest navigates a session or replaces its content.
type ContentRequest struct {
	Session string `json:"session"`
	URL     string `json:"url,omitempty"`
	HTML    string `json:"html,omitempty"`
}

// QueryRequest is a query in wire form. Name and NamePattern (likewise Text
// and TextPattern) are mutually exclusive; patterns are Go regular
// expressions.
type QueryRequest struct {
	Session     string         `json:"session"`
	Role        string         `json:"role,omitempty"`
	Name        string         `json:"name,omitempty"`
	NamePattern string         `json:"name_pattern,omitempty"`
	Text        string         `json:"text,omitempty"`
	TextPattern string         `json:"text_pattern,omitempty"`
	Selector    string         `json:"selector,omitempty"`
	Props       map[string]any `json:"props,omitempty"`
	Root        string         `json:"root,omitempty"`
	TimeoutMs   *int64         `json:"timeout_ms,omitempty"`
	Visible     *bool          `json:"visible,omitempty"`
}

// HandleRequest names handles of a session.
type HandleRequest struct {
	Session string   `json:"session"`
	Handle  string   `json:"handle,omitempty"`
	Handles []string `json:"handles,omitempty"`
}

// TracesRequest reads the attempt journal.
type TracesRequest struct {
	TraceID string `json:"trace_id,omitempty"`
	Limit   int    `json:"limit,omitempty"`
}

// Node describes a found node.
type Node struct {
	Handle string `json:"handle"`
	Tag    string `json:"tag"`
	Role   string `json:"role"`
	Name   string `json:"name"`
}

// FindResponse is the result of find and find_all.
type FindResponse struct {
	Nodes []Node `json:"nodes"`
}

// ReleaseResponse counts released handles.
type ReleaseResponse struct {
	Released int `json:"released"`
}

func textMatcher(field, exact, pattern string) (domquery.TextMatcher, error) {
	switch {
	case exact != "" && pattern != "":
		return nil, domquery.NewError(domquery.KindParameters,
			fmt.Sprintf("Only one of %q and %q can be set.", field, field+"_pattern"))
	case pattern != "":
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, domquery.NewError(domquery.KindParameters,
				fmt.Sprintf("Invalid %s pattern: %v.", field, err))
		}
		return re, nil
	case exact != "":
		return domquery.Exact(exact), nil
	}
	return nil, nil
}

// Query converts r into a domquery.Query.
func (r *QueryRequest) Query() (domquery.Query, error) {
	name, err := textMatcher("name", r.Name, r.NamePattern)
	if err != nil {
		return domquery.Query{}, err
	}
	text, err := textMatcher("text", r.Text, r.TextPattern)
	if err != nil {
		return domquery.Query{}, err
	}
	q := domquery.Query{Role: r.Role, Name: name, Text: text, Selector: r.Selector, Props: r.Props}
	return q, q.Validate()
}

func (m *Manager) findOptions(s *Session, r *QueryRequest) ([]domquery.FindOption, error) {
	opts := []domquery.FindOption{
		domquery.WithDocument(s.doc),
		domquery.WithVisible(m.visible),
	}
	if r.Visible != nil {
		opts = append(opts, domquery.WithVisible(*r.Visible))
	}
	if r.TimeoutMs != nil {
		d := domquery.NoTimeout
		if *r.TimeoutMs >= 0 {
			d = time.Duration(*r.TimeoutMs) * time.Millisecond
		}
		opts = append(opts, domquery.WithTimeout(d))
	}
	if r.Root != "" {
		root, ok := s.doc.Lookup(r.Root)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownHandle, r.Root)
		}
		opts = append(opts, domquery.WithRoot(root))
	}
	return opts, nil
}

// Find runs a query that must match exactly one node.
func (m *Manager) Find(ctx context.Context, r *QueryRequest) (*FindResponse, error) {
	s, q, opts, err := m.prepare(r)
	if err != nil {
		return nil, err
	}
	h, err := domquery.Find(ctx, &m.query, q, opts...)
	if err != nil {
		return nil, err
	}
	return m.describe(ctx, s, []dom.Handle{h})
}

// FindAll runs a query that must match at least one node.
func (m *Manager) FindAll(ctx context.Context, r *QueryRequest) (*FindResponse, error) {
	s, q, opts, err := m.prepare(r)
	if err != nil {
		return nil, err
	}
	hs, err := domquery.FindAll(ctx, &m.query, q, opts...)
	if err != nil {
		return nil, err
	}
	return m.describe(ctx, s, hs)
}

func (m *Manager) prepare(r *QueryRequest) (*Session, domquery.Query, []domquery.FindOption, error) {
	s, err := m.Get(r.Session)
	if err != nil {
		return nil, domquery.Query{}, nil, err
	}
	q, err := r.Query()
	if err != nil {
		return nil, domquery.Query{}, nil, err
	}
	opts, err := m.findOptions(s, r)
	if err != nil {
		return nil, domquery.Query{}, nil, err
	}
	return s, q, opts, nil
}

// describe turns handles into Nodes. The handles stay live for later calls.
func (m *Manager) describe(ctx context.Context, s *Session, hs []dom.Handle) (*FindResponse, error) {
	resp := &FindResponse{Nodes: make([]Node, 0, len(hs))}
	for _, h := range hs {
		f, err := s.doc.Facts(ctx, h)
		if err != nil {
			return nil, fmt.Errorf("session: describe %s: %w", h.HandleID(), err)
		}
		snap, err := s.doc.Snapshot(ctx, h)
		if err != nil {
			return nil, fmt.Errorf("session: describe %s: %w", h.HandleID(), err)
		}
		resp.Nodes = append(resp.Nodes, Node{Handle: h.HandleID(), Tag: f.Tag, Role: snap.Role, Name: snap.Name})
	}
	return resp, nil
}

func (m *Manager) handle(r *HandleRequest) (*Session, dom.Handle, error) {
	s, err := m.Get(r.Session)
	if err != nil {
		return nil, nil, err
	}
	h, ok := s.doc.Lookup(r.Handle)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrUnknownHandle, r.Handle)
	}
	return s, h, nil
}

// Snapshot returns the accessibility projection of a handle.
func (m *Manager) Snapshot(ctx context.Context, r *HandleRequest) (*dom.Snapshot, error) {
	s, h, err := m.handle(r)
	if err != nil {
		return nil, err
	}
	return s.doc.Snapshot(ctx, h)
}

// Facts returns the DOM facts of a handle.
func (m *Manager) Facts(ctx context.Context, r *HandleRequest) (*dom.NodeFacts, error) {
	s, h, err := m.handle(r)
	if err != nil {
		return nil, err
	}
	return s.doc.Facts(ctx, h)
}

// Release disposes of handles. Unknown IDs are skipped.
func (m *Manager) Release(ctx context.Context, r *HandleRequest) (*ReleaseResponse, error) {
	s, err := m.Get(r.Session)
	if err != nil {
		return nil, err
	}
	ids := r.Handles
	if r.Handle != "" {
		ids = append([]string{r.Handle}, ids...)
	}
	var resp ReleaseResponse
	for _, id := range ids {
		h, ok := s.doc.Lookup(id)
		if !ok {
			continue
		}
		if err := s.doc.Release(ctx, h); err != nil {
			m.logger.Warn("session: release failed", "session", s.ID, "handle", id, "error", err)
			continue
		}
		resp.Released++
	}
	return &resp, nil
}

// SetContent navigates the session to URL or replaces its document with
// HTML. Handles obtained before are released (browser) or become stale
// (in-memory).
func (m *Manager) SetContent(ctx context.Context, r *ContentRequest) (*Session, error) {
	s, err := m.Get(r.Session)
	if err != nil {
		return nil, err
	}
	if r.URL != "" {
		err = s.navigate(ctx, r.URL)
	} else {
		err = s.setContent(ctx, r.HTML)
	}
	if err != nil {
		return nil, fmt.Errorf("session: content: %w", err)
	}
	return s, nil
}

// Traces returns journaled attempts, newest first.
func (m *Manager) Traces(ctx context.Context, r *TracesRequest) ([]*trace.Entry, error) {
	if m.store == nil {
		return nil, fmt.Errorf("session: no trace store configured")
	}
	limit := r.Limit
	if limit <= 0 {
		limit = 100
	}
	return m.store.Recent(ctx, r.TraceID, limit)
}

// traceMiddleware gives every call a trace ID so its attempts can be
// grouped in the journal.
func (m *Manager) traceMiddleware(op string) kit.Middleware {
	return func(next kit.Endpoint) kit.Endpoint {
		return func(ctx context.Context, req any) (any, error) {
			if kit.GetTraceID(ctx) == "" {
				ctx = kit.WithTraceID(ctx, m.newID())
			}
			start := time.Now()
			resp, err := next(ctx, req)
			attrs := append(kit.LogAttrs(ctx), "op", op, "duration", time.Since(start))
			if err != nil {
				attrs = append(attrs, "error", err)
			}
			m.logger.Debug("session: call", attrs...)
			return resp, err
		}
	}
}

func sortSessions(ss []*Session) {
	slices.SortFunc(ss, func(a, b *Session) int {
		if c := a.Created.Compare(b.Created); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
}
