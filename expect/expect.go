// Package expect provides test assertions over domquery queries.
//
// Every failure message carries a markdown rendering of the document, so a
// failing test shows what the page looked like when the query gave up.
//
//	e := expect.New(t, &domquery.Config{Document: doc})
//	save := e.Found(domquery.Query{Role: "button", Name: domquery.Exact("Save")})
//	e.Visible(save)
//	e.NotFound(domquery.Query{Role: "alert"})
package expect

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/hazyhaar/domquery"
	"github.com/hazyhaar/domquery/dom"
)

// KindFound tags the error of a negated existence check.
const KindFound domquery.Kind = "QueryFoundError"

const foundMessage = "Found an element matching the query."

// DefaultMaxDump bounds the markdown attached to a failure.
const DefaultMaxDump = 4000

// Checker runs assertions against cfg.Document. Handles it returns are
// released when the test ends.
type Checker struct {
	t       testing.TB
	cfg     *domquery.Config
	maxDump int
}

// Option configures a Checker.
type Option func(*Checker)

// WithMaxDump bounds the failure dump to n bytes. 0 disables the dump.
func WithMaxDump(n int) Option {
	return func(c *Checker) { c.maxDump = n }
}

// New returns a Checker reporting to t.
func New(t testing.TB, cfg *domquery.Config, opts ...Option) *Checker {
	if cfg == nil {
		cfg = domquery.DefaultConfig()
	}
	c := &Checker{t: t, cfg: cfg, maxDump: DefaultMaxDump}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Checker) doc() dom.Document { return c.cfg.Document }

// Found fails the test unless exactly one node matches q.
func (c *Checker) Found(q domquery.Query, opts ...domquery.FindOption) dom.Handle {
	c.t.Helper()
	h, err := domquery.Find(c.t.Context(), c.cfg, q, opts...)
	if err != nil {
		c.t.Fatalf("expect: find %s: %v%s", q, err, c.dump())
		return nil
	}
	c.own(h)
	return h
}

// FoundAll fails the test unless at least one node matches q.
func (c *Checker) FoundAll(q domquery.Query, opts ...domquery.FindOption) []dom.Handle {
	c.t.Helper()
	hs, err := domquery.FindAll(c.t.Context(), c.cfg, q, opts...)
	if err != nil {
		c.t.Fatalf("expect: find all %s: %v%s", q, err, c.dump())
		return nil
	}
	c.own(hs...)
	return hs
}

// NotFound polls until no node matches q. It fails with a QueryFoundError
// when nodes still match at the deadline.
func (c *Checker) NotFound(q domquery.Query, opts ...domquery.FindOption) {
	c.t.Helper()
	if err := c.absent(c.t.Context(), q, opts); err != nil {
		c.t.Errorf("expect: not found %s: %v%s", q, err, c.dump())
	}
}

func (c *Checker) absent(ctx context.Context, q domquery.Query, opts []domquery.FindOption) error {
	once := append(append([]domquery.FindOption(nil), opts...), domquery.WithTimeout(0))
	_, err := domquery.WaitFor(ctx, c.cfg, func(ctx context.Context) (struct{}, error) {
		hs, err := domquery.FindAll(ctx, c.cfg, q, once...)
		if errors.Is(err, domquery.ErrEmpty) {
			return struct{}{}, nil
		}
		if err != nil {
			return struct{}{}, err
		}
		c.release(hs...)
		return struct{}{}, domquery.NewError(KindFound, foundMessage)
	}, domquery.WithOperation("not_found"))
	return err
}

// MatchesQuery fails the test unless the node behind h satisfies q.
func (c *Checker) MatchesQuery(h dom.Handle, q domquery.Query) {
	c.t.Helper()
	ctx := c.t.Context()
	doc := c.doc()
	ok, err := domquery.Match(ctx, doc, h, q)
	if err != nil {
		c.t.Errorf("expect: match %s: %v", q, err)
		return
	}
	if !ok {
		c.t.Errorf("expect: node does not match %s\n%s%s", q, describe(ctx, doc, h), c.dump())
	}
}

// describe lists what the node actually is, for comparison with a query.
func describe(ctx context.Context, doc dom.Document, h dom.Handle) string {
	var b strings.Builder
	if snap, err := doc.Snapshot(ctx, h); err == nil {
		fmt.Fprintf(&b, "  role: %q\n  name: %q\n", snap.Role, snap.Name)
		for k, v := range snap.Properties {
			fmt.Fprintf(&b, "  %s: %v\n", k, v)
		}
	}
	if f, err := doc.Facts(ctx, h); err == nil {
		fmt.Fprintf(&b, "  tag: %s\n  text: %q\n", f.Tag, f.TextContent)
	}
	return b.String()
}

// SameElement fails the test unless a and b point at the same node.
func (c *Checker) SameElement(a, b dom.Handle) {
	c.t.Helper()
	nc, ok := c.doc().(dom.NodeComparer)
	if !ok {
		c.t.Fatalf("expect: %T cannot compare nodes", c.doc())
		return
	}
	same, err := nc.SameNode(c.t.Context(), a, b)
	if err != nil {
		c.t.Errorf("expect: same element: %v", err)
		return
	}
	if !same {
		c.t.Errorf("expect: %s and %s are different elements", a.HandleID(), b.HandleID())
	}
}

// Visible polls until the node behind h is visible.
func (c *Checker) Visible(h dom.Handle) {
	c.t.Helper()
	if err := c.poll("visible", func(ctx context.Context) error {
		return c.visibility(ctx, h, true)
	}); err != nil {
		c.t.Errorf("expect: visible %s: %v%s", h.HandleID(), err, c.dump())
	}
}

// Hidden polls until the node behind h is hidden.
func (c *Checker) Hidden(h dom.Handle) {
	c.t.Helper()
	if err := c.poll("hidden", func(ctx context.Context) error {
		return c.visibility(ctx, h, false)
	}); err != nil {
		c.t.Errorf("expect: hidden %s: %v%s", h.HandleID(), err, c.dump())
	}
}

var (
	errHidden  = errors.New("element is hidden")
	errVisible = errors.New("element is visible")
)

func (c *Checker) visibility(ctx context.Context, h dom.Handle, want bool) error {
	f, err := c.doc().Facts(ctx, h)
	if err != nil {
		return err
	}
	visible := !f.VisibilityHidden && !f.Rect.Empty()
	switch {
	case visible == want:
		return nil
	case want:
		return errHidden
	default:
		return errVisible
	}
}

// Focused polls until the node behind h is the active element.
func (c *Checker) Focused(h dom.Handle) {
	c.t.Helper()
	fr, ok := c.doc().(dom.FocusReporter)
	if !ok {
		c.t.Fatalf("expect: %T does not track focus", c.doc())
		return
	}
	if err := c.poll("focused", func(ctx context.Context) error {
		focused, err := fr.Focused(ctx, h)
		if err != nil {
			return err
		}
		if !focused {
			return errors.New("element does not have focus")
		}
		return nil
	}); err != nil {
		c.t.Errorf("expect: focused %s: %v%s", h.HandleID(), err, c.dump())
	}
}

func (c *Checker) poll(op string, check func(context.Context) error) error {
	_, err := domquery.WaitFor(c.t.Context(), c.cfg, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, check(ctx)
	}, domquery.WithOperation(op))
	return err
}

// own releases hs when the test ends. The test context is already
// cancelled by then.
func (c *Checker) own(hs ...dom.Handle) {
	c.t.Cleanup(func() { c.release(hs...) })
}

func (c *Checker) release(hs ...dom.Handle) {
	doc := c.doc()
	if doc == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, h := range hs {
		if err := doc.Release(ctx, h); err != nil {
			c.t.Logf("expect: release %s: %v", h.HandleID(), err)
		}
	}
}

// dump renders the whole document, or nothing when the document cannot
// serialise itself.
func (c *Checker) dump() string {
	if c.maxDump == 0 {
		return ""
	}
	doc := c.doc()
	src, ok := doc.(dom.HTMLSource)
	if !ok {
		return ""
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	root, err := doc.Root(ctx)
	if err != nil {
		return ""
	}
	defer doc.Release(ctx, root)
	html, err := src.OuterHTML(ctx, root)
	if err != nil {
		return ""
	}
	return "\n\ndocument:\n" + truncate(Markdown(html), c.maxDump)
}
