// Package htmldoc is an in-memory dom.Document over a parsed HTML tree.
//
// It has no layout engine: a rendered element gets a fixed non-empty box,
// and an element that is hidden, display:none or inside one gets an empty
// box. Inline style is the only style source. Frames are supported through
// the srcdoc attribute.
//
//	doc := htmldoc.MustParse(`<button>Save</button>`)
//	h, err := domquery.Find(ctx, &domquery.Config{Document: doc},
//		domquery.Query{Role: "button", Name: domquery.Exact("Save")})
package htmldoc

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/hazyhaar/domquery/dom"
	"github.com/hazyhaar/domquery/idgen"
)

var (
	// ErrReleased is returned when a handle is used after Release.
	ErrReleased = errors.New("htmldoc: handle released")
	// ErrStale is returned for handles obtained before SetContent.
	ErrStale = errors.New("htmldoc: node detached by SetContent")
	// ErrForeign is returned for handles of another document.
	ErrForeign = errors.New("htmldoc: handle belongs to another document")
)

// renderedRect is the box of every rendered element.
var renderedRect = dom.Rect{Top: 8, Bottom: 28, Width: 100, Height: 20}

type handle struct {
	id   string
	node *html.Node
	gen  int
	doc  *Document
}

func (h *handle) HandleID() string { return h.id }

// Document is safe for concurrent use.
type Document struct {
	mu        sync.Mutex
	root      *html.Node
	gen       int
	handles   map[string]*handle
	frames    map[*html.Node]*html.Node
	focus     *html.Node
	selectors map[string]cascadia.SelectorGroup
	newID     idgen.Generator
	logger    *slog.Logger
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

// Parse builds a Document from HTML source.
func Parse(src string, opts ...Option) (*Document, error) {
	root, err := html.Parse(strings.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("htmldoc: parse: %w", err)
	}
	d := &Document{
		root:      root,
		handles:   make(map[string]*handle),
		frames:    make(map[*html.Node]*html.Node),
		selectors: make(map[string]cascadia.SelectorGroup),
		newID:     idgen.Prefixed("node_", idgen.NanoID(10)),
		logger:    slog.Default(),
	}
	for _, o := range opts {
		o(d)
	}
	return d, nil
}

// MustParse is Parse that panics on error.
func MustParse(src string, opts ...Option) *Document {
	d, err := Parse(src, opts...)
	if err != nil {
		panic(err)
	}
	return d
}

// SetContent replaces the whole tree. Handles obtained before become stale
// but still have to be released.
func (d *Document) SetContent(src string) error {
	root, err := html.Parse(strings.NewReader(src))
	if err != nil {
		return fmt.Errorf("htmldoc: parse: %w", err)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.root = root
	d.gen++
	d.frames = make(map[*html.Node]*html.Node)
	d.focus = nil
	return nil
}

// Mutate runs fn on the live tree under the document lock. Handles stay
// valid; fn must not keep references to the tree.
func (d *Document) Mutate(fn func(doc *html.Node)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	fn(d.root)
}

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

// Focus makes the node behind h the active element.
func (d *Document) Focus(h dom.Handle) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	n, err := d.lookup(h)
	if err != nil {
		return err
	}
	d.focus = n
	return nil
}

func (d *Document) newHandle(n *html.Node) *handle {
	h := &handle{id: d.newID(), node: n, gen: d.gen, doc: d}
	d.handles[h.id] = h
	return h
}

// lookup resolves h. The caller holds d.mu.
func (d *Document) lookup(h dom.Handle) (*html.Node, error) {
	hh, ok := h.(*handle)
	if !ok || hh.doc != d {
		return nil, ErrForeign
	}
	if _, live := d.handles[hh.id]; !live {
		return nil, fmt.Errorf("%w: %s", ErrReleased, hh.id)
	}
	if hh.gen != d.gen {
		return nil, fmt.Errorf("%w: %s", ErrStale, hh.id)
	}
	return hh.node, nil
}

func (d *Document) Root(ctx context.Context) (dom.Handle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.newHandle(d.root), nil
}

func (d *Document) QueryAll(ctx context.Context, root dom.Handle, selector string) ([]dom.Handle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	n, err := d.lookup(root)
	if err != nil {
		return nil, err
	}
	sel, err := d.compile(selector)
	if err != nil {
		return nil, err
	}
	var out []dom.Handle
	walkElements(n, func(c *html.Node) bool {
		if sel.Match(c) {
			out = append(out, d.newHandle(c))
		}
		return true
	})
	return out, nil
}

// compile parses selector once per document. The caller holds d.mu.
func (d *Document) compile(selector string) (cascadia.SelectorGroup, error) {
	if sel, ok := d.selectors[selector]; ok {
		return sel, nil
	}
	sel, err := parseSelector(selector)
	if err != nil {
		return nil, err
	}
	d.selectors[selector] = sel
	return sel, nil
}

func (d *Document) ContentDocument(ctx context.Context, h dom.Handle) (dom.Handle, bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	n, err := d.lookup(h)
	if err != nil {
		return nil, false, err
	}
	if n.Type != html.ElementNode || (n.DataAtom != atom.Iframe && n.DataAtom != atom.Frame) {
		return nil, false, nil
	}
	if fd, ok := d.frames[n]; ok {
		return d.newHandle(fd), true, nil
	}
	src, ok := lookupAttr(n, "srcdoc")
	if !ok {
		return nil, true, nil
	}
	fd, err := html.Parse(strings.NewReader(src))
	if err != nil {
		return nil, true, fmt.Errorf("htmldoc: parse srcdoc: %w", err)
	}
	d.frames[n] = fd
	d.logger.Debug("htmldoc: frame document parsed", "frame", getAttr(n, "id"))
	return d.newHandle(fd), true, nil
}

func (d *Document) Facts(ctx context.Context, h dom.Handle) (*dom.NodeFacts, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	n, err := d.lookup(h)
	if err != nil {
		return nil, err
	}
	f := &dom.NodeFacts{
		Tag:         tagName(n),
		TextContent: textContent(n),
	}
	if n.Type != html.ElementNode {
		return f, nil
	}

	f.ComputedName = computedName(n)
	f.LabelledBy = strings.Fields(getAttr(n, "aria-labelledby"))
	owner := ownerDocument(n)
	for _, id := range f.LabelledBy {
		if elementByID(owner, id) != nil {
			f.LabelledByResolves = true
			break
		}
	}
	f.AriaLabel = getAttr(n, "aria-label")
	for _, l := range labelsOf(n) {
		f.Labels = append(f.Labels, dom.Label{Text: textContent(l), Controls: labelControl(l) == n})
	}
	f.VisibilityHidden = visibilityHidden(n)
	if !displayNone(n) && (owner == d.root || d.frameVisible(owner)) {
		f.Rect = renderedRect
	}
	return f, nil
}

// frameVisible reports whether the frame hosting the document fd renders.
// The caller holds d.mu.
func (d *Document) frameVisible(fd *html.Node) bool {
	for host, doc := range d.frames {
		if doc == fd {
			return !displayNone(host) && ownerDocument(host) == d.root
		}
	}
	return false
}

func (d *Document) Snapshot(ctx context.Context, h dom.Handle) (*dom.Snapshot, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	n, err := d.lookup(h)
	if err != nil {
		return nil, err
	}
	if n.Type == html.DocumentNode {
		return &dom.Snapshot{Role: "RootWebArea", Properties: map[string]any{}}, nil
	}
	role := roleOf(n)
	props := properties(n, role)
	if n == d.focus {
		props["focused"] = true
	}
	return &dom.Snapshot{Role: role, Name: computedName(n), Properties: props}, nil
}

func (d *Document) Release(ctx context.Context, h dom.Handle) error {
	hh, ok := h.(*handle)
	if !ok || hh.doc != d {
		return ErrForeign
	}
	d.mu.Lock()
	delete(d.handles, hh.id)
	d.mu.Unlock()
	return nil
}

func (d *Document) MatchesSelector(ctx context.Context, h dom.Handle, selector string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	n, err := d.lookup(h)
	if err != nil {
		return false, err
	}
	sel, err := d.compile(selector)
	if err != nil {
		return false, err
	}
	return sel.Match(n), nil
}

func (d *Document) Focused(ctx context.Context, h dom.Handle) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	n, err := d.lookup(h)
	if err != nil {
		return false, err
	}
	return n == d.focus, nil
}

func (d *Document) SameNode(ctx context.Context, a, b dom.Handle) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	na, err := d.lookup(a)
	if err != nil {
		return false, err
	}
	nb, err := d.lookup(b)
	if err != nil {
		return false, err
	}
	return na == nb, nil
}

func (d *Document) OuterHTML(ctx context.Context, h dom.Handle) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	n, err := d.lookup(h)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := html.Render(&buf, n); err != nil {
		return "", fmt.Errorf("htmldoc: render: %w", err)
	}
	return buf.String(), nil
}

func tagName(n *html.Node) string {
	switch n.Type {
	case html.DocumentNode:
		return "#document"
	case html.ElementNode:
		return n.Data
	}
	return ""
}
