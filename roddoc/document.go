// Package roddoc is a dom.Document over a live Chrome page driven by go-rod.
//
// Every handle wraps a remote object reference; releasing the handle
// releases the object in the page. Facts are gathered with one script
// evaluation per node and accessibility snapshots come from
// Accessibility.getPartialAXTree, so roles, names and states are the
// browser's own. Exact computed names need Chrome started with
// browser.LaunchArgs; without it, names fall back to the AX tree.
package roddoc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"github.com/hazyhaar/domquery/dom"
	"github.com/hazyhaar/domquery/idgen"
)

var (
	// ErrReleased is returned when a handle is used after Release.
	ErrReleased = errors.New("roddoc: handle released")
	// ErrForeign is returned for handles of another document.
	ErrForeign = errors.New("roddoc: handle belongs to another document")
)

type handle struct {
	id   string
	el   *rod.Element
	page *rod.Page
	doc  *Document
}

func (h *handle) HandleID() string { return h.id }

// Document is safe for concurrent use. Rod serialises CDP calls per page.
type Document struct {
	page    *rod.Page
	mu      sync.Mutex
	handles map[string]*handle
	newID   idgen.Generator
	logger  *slog.Logger
}

// Option configures a Document.
type Option func(*Document)

// WithIDGenerator sets the generator used for handle IDs.
func WithIDGenerator(g idgen.Generator) Option {
	return func(d *Document) { d.newID = g }
}

// WithLogger sets the logger used for debug output.
func WithLogger(l *slog.Logger) Option {
	return func(d *Document) { d.logger = l }
}

// New wraps page.
func New(page *rod.Page, opts ...Option) *Document {
	d := &Document{
		page:    page,
		handles: make(map[string]*handle),
		newID:   idgen.Prefixed("el_", idgen.NanoID(10)),
		logger:  slog.Default(),
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Page returns the wrapped page.
func (d *Document) Page() *rod.Page { return d.page }

// Live returns the number of handles not yet released.
func (d *Document) Live() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.handles)
}

// Lookup returns the live handle with the given ID.
func (d *Document) Lookup(id string) (dom.Handle, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	h, ok := d.handles[id]
	if !ok {
		return nil, false
	}
	return h, true
}

// ReleaseAll releases every live handle, for example before navigation.
func (d *Document) ReleaseAll(ctx context.Context) {
	d.mu.Lock()
	hs := make([]*handle, 0, len(d.handles))
	for _, h := range d.handles {
		hs = append(hs, h)
	}
	d.mu.Unlock()
	for _, h := range hs {
		if err := d.Release(ctx, h); err != nil {
			d.logger.Debug("roddoc: release failed", "handle", h.id, "error", err)
		}
	}
}

func (d *Document) newHandle(el *rod.Element, page *rod.Page) *handle {
	h := &handle{id: d.newID(), el: el, page: page, doc: d}
	d.mu.Lock()
	d.handles[h.id] = h
	d.mu.Unlock()
	return h
}

func (d *Document) lookup(h dom.Handle) (*handle, error) {
	hh, ok := h.(*handle)
	if !ok || hh.doc != d {
		return nil, ErrForeign
	}
	d.mu.Lock()
	_, live := d.handles[hh.id]
	d.mu.Unlock()
	if !live {
		return nil, fmt.Errorf("%w: %s", ErrReleased, hh.id)
	}
	return hh, nil
}

// documentOf returns the document node of page as an element.
func documentOf(ctx context.Context, page *rod.Page) (*rod.Element, error) {
	p := page.Context(ctx)
	obj, err := p.Evaluate(rod.Eval(documentJS).ByObject())
	if err != nil {
		return nil, err
	}
	return p.ElementFromObject(obj)
}

func (d *Document) Root(ctx context.Context) (dom.Handle, error) {
	el, err := documentOf(ctx, d.page)
	if err != nil {
		return nil, fmt.Errorf("roddoc: root: %w", err)
	}
	return d.newHandle(el, d.page), nil
}

func (d *Document) QueryAll(ctx context.Context, root dom.Handle, selector string) ([]dom.Handle, error) {
	hh, err := d.lookup(root)
	if err != nil {
		return nil, err
	}
	els, err := hh.el.Context(ctx).ElementsByJS(rod.Eval(queryAllJS, selector))
	if err != nil {
		return nil, fmt.Errorf("roddoc: query %q: %w", selector, err)
	}
	out := make([]dom.Handle, len(els))
	for i, el := range els {
		out[i] = d.newHandle(el, hh.page)
	}
	return out, nil
}

func (d *Document) ContentDocument(ctx context.Context, h dom.Handle) (dom.Handle, bool, error) {
	hh, err := d.lookup(h)
	if err != nil {
		return nil, false, err
	}
	el := hh.el.Context(ctx)
	res, err := el.Eval(isFrameJS)
	if err != nil {
		return nil, false, fmt.Errorf("roddoc: frame check: %w", err)
	}
	if !res.Value.Bool() {
		return nil, false, nil
	}

	obj, err := el.Evaluate(rod.Eval(contentDocumentJS).ByObject())
	if err != nil {
		return nil, true, fmt.Errorf("roddoc: content document: %w", err)
	}
	if obj.Subtype == proto.RuntimeRemoteObjectSubtypeNode {
		docEl, err := hh.page.Context(ctx).ElementFromObject(obj)
		if err != nil {
			return nil, true, fmt.Errorf("roddoc: content document: %w", err)
		}
		return d.newHandle(docEl, hh.page), true, nil
	}

	// Cross-origin frames hide contentDocument from page scripts; CDP can
	// still reach them through the frame's own execution context.
	fp, err := el.Frame()
	if err != nil {
		d.logger.Debug("roddoc: frame not reachable", "handle", hh.id, "error", err)
		return nil, true, nil
	}
	docEl, err := documentOf(ctx, fp)
	if err != nil {
		d.logger.Debug("roddoc: frame document not ready", "handle", hh.id, "error", err)
		return nil, true, nil
	}
	return d.newHandle(docEl, fp), true, nil
}

type facts struct {
	dom.NodeFacts
	ComputedNameSupported bool `json:"computed_name_supported"`
}

func (d *Document) Facts(ctx context.Context, h dom.Handle) (*dom.NodeFacts, error) {
	hh, err := d.lookup(h)
	if err != nil {
		return nil, err
	}
	res, err := hh.el.Context(ctx).Eval(factsJS)
	if err != nil {
		return nil, fmt.Errorf("roddoc: facts: %w", err)
	}
	var f facts
	if err := json.Unmarshal([]byte(res.Value.Str()), &f); err != nil {
		return nil, fmt.Errorf("roddoc: decode facts: %w", err)
	}
	if !f.ComputedNameSupported && f.Tag != "#document" {
		snap, err := d.Snapshot(ctx, h)
		if err != nil {
			return nil, err
		}
		f.ComputedName = snap.Name
	}
	return &f.NodeFacts, nil
}

func (d *Document) Snapshot(ctx context.Context, h dom.Handle) (*dom.Snapshot, error) {
	hh, err := d.lookup(h)
	if err != nil {
		return nil, err
	}
	res, err := proto.AccessibilityGetPartialAXTree{
		ObjectID:       hh.el.Object.ObjectID,
		FetchRelatives: false,
	}.Call(hh.page.Context(ctx))
	if err != nil {
		return nil, fmt.Errorf("roddoc: ax tree: %w", err)
	}
	if len(res.Nodes) == 0 {
		return &dom.Snapshot{Role: "none", Properties: map[string]any{}}, nil
	}
	return snapshotOf(res.Nodes[0]), nil
}

func (d *Document) Release(ctx context.Context, h dom.Handle) error {
	hh, ok := h.(*handle)
	if !ok || hh.doc != d {
		return ErrForeign
	}
	d.mu.Lock()
	_, live := d.handles[hh.id]
	delete(d.handles, hh.id)
	d.mu.Unlock()
	if !live {
		return nil
	}
	if err := hh.el.Context(ctx).Release(); err != nil {
		return fmt.Errorf("roddoc: release %s: %w", hh.id, err)
	}
	return nil
}

func (d *Document) MatchesSelector(ctx context.Context, h dom.Handle, selector string) (bool, error) {
	hh, err := d.lookup(h)
	if err != nil {
		return false, err
	}
	res, err := hh.el.Context(ctx).Eval(matchesJS, selector)
	if err != nil {
		return false, fmt.Errorf("roddoc: matches %q: %w", selector, err)
	}
	return res.Value.Bool(), nil
}

func (d *Document) Focused(ctx context.Context, h dom.Handle) (bool, error) {
	hh, err := d.lookup(h)
	if err != nil {
		return false, err
	}
	res, err := hh.el.Context(ctx).Eval(focusedJS)
	if err != nil {
		return false, fmt.Errorf("roddoc: focused: %w", err)
	}
	return res.Value.Bool(), nil
}

func (d *Document) SameNode(ctx context.Context, a, b dom.Handle) (bool, error) {
	ha, err := d.lookup(a)
	if err != nil {
		return false, err
	}
	hb, err := d.lookup(b)
	if err != nil {
		return false, err
	}
	if ha.page != hb.page {
		return false, nil
	}
	res, err := ha.el.Context(ctx).Eval(sameNodeJS, hb.el.Object)
	if err != nil {
		return false, fmt.Errorf("roddoc: same node: %w", err)
	}
	return res.Value.Bool(), nil
}

func (d *Document) OuterHTML(ctx context.Context, h dom.Handle) (string, error) {
	hh, err := d.lookup(h)
	if err != nil {
		return "", err
	}
	res, err := hh.el.Context(ctx).Eval(outerHTMLJS)
	if err != nil {
		return "", fmt.Errorf("roddoc: outer html: %w", err)
	}
	return res.Value.Str(), nil
}
