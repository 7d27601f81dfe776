package roddoc

import (
	"strings"

	"github.com/go-rod/rod/lib/proto"

	"github.com/hazyhaar/domquery/dom"
)

// snapshotOf converts one AX node. Tristate and boolean values arrive as
// "true"/"false" strings and become bools; "mixed" stays a string.
// Property names are lowercased: CDP sends "hasPopup" where queries use
// the ARIA spelling "haspopup".
func snapshotOf(n *proto.AccessibilityAXNode) *dom.Snapshot {
	s := &dom.Snapshot{Properties: map[string]any{}}
	if r, ok := axValue(n.Role).(string); ok {
		s.Role = r
	}
	if name, ok := axValue(n.Name).(string); ok {
		s.Name = name
	}
	if desc, ok := axValue(n.Description).(string); ok && desc != "" {
		s.Properties["description"] = desc
	}
	if n.Value != nil {
		s.Properties["value"] = axValue(n.Value)
	}
	for _, p := range n.Properties {
		if p == nil {
			continue
		}
		s.Properties[strings.ToLower(string(p.Name))] = axValue(p.Value)
	}
	if n.Ignored && s.Role == "" {
		s.Role = "none"
	}
	return s
}

func axValue(v *proto.AccessibilityAXValue) any {
	if v == nil || v.Value.Nil() {
		return nil
	}
	raw := v.Value.Val()
	switch v.Type {
	case proto.AccessibilityAXValueTypeBoolean,
		proto.AccessibilityAXValueTypeTristate,
		proto.AccessibilityAXValueTypeBooleanOrUndefined:
		if s, ok := raw.(string); ok {
			switch s {
			case "true":
				return true
			case "false":
				return false
			}
		}
	}
	return raw
}
