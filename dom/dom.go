// Package dom defines the document contract domquery runs against.
//
// A Document is whatever can enumerate nodes under a root, describe them, and
// project them into an accessibility snapshot. Two implementations ship with
// domquery: htmldoc (a parsed, in-memory tree) and roddoc (a live Chrome page
// driven through go-rod). Matching and retrying never talk to a browser
// directly; they only see this interface.
package dom

import "context"

// Handle is an opaque, exclusively owned reference to a node.
// Whoever receives a Handle must Release it through its Document.
type Handle interface {
	HandleID() string
}

// Rect is the rendered bounding box of a node, in CSS pixels.
type Rect struct {
	Top    float64 `json:"top"`
	Bottom float64 `json:"bottom"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Empty reports whether every edge of the box is zero, which is how a
// display:none or detached node renders.
func (r Rect) Empty() bool {
	return r.Top == 0 && r.Bottom == 0 && r.Width == 0 && r.Height == 0
}

// Label is one <label> associated with a form control.
type Label struct {
	// Text is the raw textContent of the label.
	Text string `json:"text"`
	// Controls is true when the label's control is the described node.
	Controls bool `json:"controls"`
}

// NodeFacts are the DOM-level facts the matcher needs about one node.
// Backends gather them in a single evaluation per node per poll.
type NodeFacts struct {
	Tag string `json:"tag"`

	// ComputedName is the accessibility engine's own name for the node.
	ComputedName string `json:"computed_name"`

	// LabelledBy lists the ids referenced by aria-labelledby.
	LabelledBy []string `json:"labelled_by,omitempty"`
	// LabelledByResolves is true when at least one LabelledBy id exists
	// in the node's document.
	LabelledByResolves bool `json:"labelled_by_resolves"`

	AriaLabel string  `json:"aria_label,omitempty"`
	Labels    []Label `json:"labels,omitempty"`

	TextContent string `json:"text_content"`

	// VisibilityHidden is the computed visibility:hidden state.
	VisibilityHidden bool `json:"visibility_hidden"`
	Rect             Rect `json:"rect"`
}

// Snapshot is the accessibility projection of one node.
type Snapshot struct {
	Role       string         `json:"role"`
	Name       string         `json:"name"`
	Properties map[string]any `json:"properties,omitempty"`
}

// Document is the live tree a query runs against.
type Document interface {
	// Root returns a handle to the document node. The caller owns it.
	Root(ctx context.Context) (Handle, error)

	// QueryAll returns the descendants of root matching a CSS selector,
	// in document order. The caller owns every returned handle.
	QueryAll(ctx context.Context, root Handle, selector string) ([]Handle, error)

	// ContentDocument reports whether h embeds a frame and, if so, returns
	// its content document. doc is nil when the frame has no reachable
	// document yet.
	ContentDocument(ctx context.Context, h Handle) (doc Handle, isFrame bool, err error)

	// Facts describes the node behind h.
	Facts(ctx context.Context, h Handle) (*NodeFacts, error)

	// Snapshot projects the node behind h into the accessibility tree.
	Snapshot(ctx context.Context, h Handle) (*Snapshot, error)

	// Release disposes of h. Releasing twice is not an error.
	Release(ctx context.Context, h Handle) error
}

// SelectorMatcher is implemented by documents that can test a single node
// against a selector (Element.matches).
type SelectorMatcher interface {
	MatchesSelector(ctx context.Context, h Handle, selector string) (bool, error)
}

// FocusReporter is implemented by documents that track the active element.
type FocusReporter interface {
	Focused(ctx context.Context, h Handle) (bool, error)
}

// NodeComparer is implemented by documents that can tell whether two
// handles point at the same node.
type NodeComparer interface {
	SameNode(ctx context.Context, a, b Handle) (bool, error)
}

// HTMLSource is implemented by documents that can serialise a subtree.
type HTMLSource interface {
	OuterHTML(ctx context.Context, h Handle) (string, error)
}
