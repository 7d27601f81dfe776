// Package accname computes the accessible name domquery matches against.
//
// Accessibility engines disagree on how <label> association feeds the name
// of a form control, so the engine's computed name is only trusted when the
// node is labelled explicitly (aria-labelledby, aria-label). Otherwise the
// associated labels are read directly.
package accname

import (
	"strings"

	"github.com/hazyhaar/domquery/dom"
)

// Resolve returns the accessible name of the node described by f.
//
// Precedence, first applicable rule wins:
//  1. aria-labelledby with at least one existing id: engine name
//  2. non-empty aria-label: engine name
//  3. associated <label>s: their flattened text, joined by a space
//  4. engine name
func Resolve(f *dom.NodeFacts) string {
	if f == nil {
		return ""
	}

	if len(f.LabelledBy) > 0 && f.LabelledByResolves {
		return f.ComputedName
	}

	if f.AriaLabel != "" {
		return f.ComputedName
	}

	if len(f.Labels) > 0 {
		return fromLabels(f.Labels)
	}

	return f.ComputedName
}

func fromLabels(labels []dom.Label) string {
	parts := make([]string, 0, len(labels))
	for _, l := range labels {
		if !l.Controls {
			continue
		}
		if text := Flatten(l.Text); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.TrimSpace(strings.Join(parts, " "))
}

// Flatten collapses every run of whitespace to a single space and trims.
func Flatten(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
