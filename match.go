package domquery

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"reflect"

	"github.com/hazyhaar/domquery/dom"
	"github.com/hazyhaar/domquery/internal/accname"
)

// candidate caches what one poll learned about a node.
type candidate struct {
	h     dom.Handle
	facts *dom.NodeFacts
	snap  *dom.Snapshot
}

func (c *candidate) loadFacts(ctx context.Context, doc dom.Document) (*dom.NodeFacts, error) {
	if c.facts != nil {
		return c.facts, nil
	}
	f, err := doc.Facts(ctx, c.h)
	if err != nil {
		return nil, fmt.Errorf("domquery: facts: %w", err)
	}
	if f == nil {
		f = &dom.NodeFacts{}
	}
	c.facts = f
	return f, nil
}

func (c *candidate) loadSnapshot(ctx context.Context, doc dom.Document) (*dom.Snapshot, error) {
	if c.snap != nil {
		return c.snap, nil
	}
	s, err := doc.Snapshot(ctx, c.h)
	if err != nil {
		return nil, fmt.Errorf("domquery: snapshot: %w", err)
	}
	if s == nil {
		s = &dom.Snapshot{}
	}
	c.snap = s
	return s, nil
}

// stage is one filter of the pipeline. Stages run cheapest first and only
// see the survivors of the previous one.
type stage struct {
	name string
	keep func(ctx context.Context, doc dom.Document, c *candidate) (bool, error)
}

func stages(q Query, visible bool) []stage {
	var out []stage
	if q.Role != "" {
		out = append(out, stage{"role", func(ctx context.Context, doc dom.Document, c *candidate) (bool, error) {
			s, err := c.loadSnapshot(ctx, doc)
			if err != nil {
				return false, err
			}
			return s.Role == q.Role, nil
		}})
	}
	if isSet(q.Name) {
		out = append(out, stage{"name", func(ctx context.Context, doc dom.Document, c *candidate) (bool, error) {
			f, err := c.loadFacts(ctx, doc)
			if err != nil {
				return false, err
			}
			return q.Name.MatchString(accname.Resolve(f)), nil
		}})
	}
	if isSet(q.Text) {
		out = append(out, stage{"text", func(ctx context.Context, doc dom.Document, c *candidate) (bool, error) {
			f, err := c.loadFacts(ctx, doc)
			if err != nil {
				return false, err
			}
			return q.Text.MatchString(accname.Flatten(f.TextContent)), nil
		}})
	}
	if visible {
		out = append(out, stage{"visible", func(ctx context.Context, doc dom.Document, c *candidate) (bool, error) {
			f, err := c.loadFacts(ctx, doc)
			if err != nil {
				return false, err
			}
			return isVisible(f), nil
		}})
	}
	if len(q.Props) > 0 {
		keys := q.propKeys()
		out = append(out, stage{"props", func(ctx context.Context, doc dom.Document, c *candidate) (bool, error) {
			s, err := c.loadSnapshot(ctx, doc)
			if err != nil {
				return false, err
			}
			for _, k := range keys {
				got, present := s.Properties[k]
				if !propEqual(q.Props[k], got, present) {
					return false, nil
				}
			}
			return true, nil
		}})
	}
	return out
}

// isVisible: not visibility-hidden and laid out with a non-empty box.
func isVisible(f *dom.NodeFacts) bool {
	return !f.VisibilityHidden && !f.Rect.Empty()
}

// propEqual compares a queried property with the snapshot value. Numbers
// compare by value whatever their Go type. A missing property equals false.
func propEqual(want, got any, present bool) bool {
	if !present {
		b, ok := want.(bool)
		return ok && !b
	}
	if wf, ok := toFloat(want); ok {
		gf, ok := toFloat(got)
		return ok && wf == gf
	}
	return reflect.DeepEqual(want, got)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

// matcher runs one poll of a query against a document.
type matcher struct {
	doc    dom.Document
	logger *slog.Logger
}

// queryAll returns the matching handles in document order. Every handle it
// obtained and does not return has been released.
func (m *matcher) queryAll(ctx context.Context, q Query, root dom.Handle, visible bool) ([]dom.Handle, error) {
	scope, owned, err := m.resolveRoot(ctx, root)
	if err != nil {
		return nil, err
	}
	defer m.release(ctx, owned...)

	selector := q.Selector
	if selector == "" {
		selector = "*"
	}
	hs, err := m.doc.QueryAll(ctx, scope, selector)
	if err != nil {
		return nil, fmt.Errorf("domquery: query %q: %w", selector, err)
	}

	cands := make([]*candidate, len(hs))
	for i, h := range hs {
		cands[i] = &candidate{h: h}
	}

	for _, st := range stages(q, visible) {
		kept := make([]*candidate, 0, len(cands))
		for i, c := range cands {
			ok, err := st.keep(ctx, m.doc, c)
			if err != nil {
				m.releaseCandidates(ctx, kept)
				m.releaseCandidates(ctx, cands[i:])
				return nil, err
			}
			if ok {
				kept = append(kept, c)
			} else {
				m.release(ctx, c.h)
			}
		}
		cands = kept
		if len(cands) == 0 {
			break
		}
	}

	out := make([]dom.Handle, len(cands))
	for i, c := range cands {
		out[i] = c.h
	}
	return out, nil
}

// resolveRoot returns the handle to search under and the handles this call
// owns. A frame element is replaced by its content document.
func (m *matcher) resolveRoot(ctx context.Context, root dom.Handle) (dom.Handle, []dom.Handle, error) {
	var owned []dom.Handle
	if root == nil {
		r, err := m.doc.Root(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("domquery: document root: %w", err)
		}
		root = r
		owned = append(owned, r)
	}

	doc, isFrame, err := m.doc.ContentDocument(ctx, root)
	if err != nil {
		m.release(ctx, owned...)
		return nil, nil, fmt.Errorf("domquery: content document: %w", err)
	}
	if !isFrame {
		return root, owned, nil
	}
	if doc == nil {
		m.release(ctx, owned...)
		return nil, nil, newError(KindIframe, "Content frame document is not available in the iframe.", nil, 0)
	}
	return doc, append(owned, doc), nil
}

func (m *matcher) releaseCandidates(ctx context.Context, cs []*candidate) {
	for _, c := range cs {
		m.release(ctx, c.h)
	}
}

// release disposes handles. Failures are logged; a handle the backend can
// no longer resolve is already gone.
func (m *matcher) release(ctx context.Context, hs ...dom.Handle) {
	ctx = context.WithoutCancel(ctx)
	for _, h := range hs {
		if err := m.doc.Release(ctx, h); err != nil {
			m.logger.Warn("domquery: release failed", "handle", h.HandleID(), "error", err)
		}
	}
}

// Match reports whether the node h satisfies q, visibility aside. The
// selector, when set, needs a document implementing dom.SelectorMatcher.
// h stays owned by the caller.
func Match(ctx context.Context, doc dom.Document, h dom.Handle, q Query) (bool, error) {
	if err := q.Validate(); err != nil {
		return false, err
	}
	if q.Selector != "" {
		sm, ok := doc.(dom.SelectorMatcher)
		if !ok {
			return false, fmt.Errorf("domquery: match: %T cannot test selectors", doc)
		}
		ok, err := sm.MatchesSelector(ctx, h, q.Selector)
		if err != nil || !ok {
			return false, err
		}
	}
	c := &candidate{h: h}
	for _, st := range stages(q, false) {
		ok, err := st.keep(ctx, doc, c)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}
