package accname

import (
	"testing"

	"github.com/hazyhaar/domquery/dom"
)

func TestResolve_LabelledByWinsOverAriaLabel(t *testing.T) {
	f := &dom.NodeFacts{
		ComputedName:       "Section A",
		LabelledBy:         []string{"heading-a"},
		LabelledByResolves: true,
		AriaLabel:          "ignored",
		Labels:             []dom.Label{{Text: "Label", Controls: true}},
	}
	if got := Resolve(f); got != "Section A" {
		t.Fatalf("Resolve: got %q, want %q", got, "Section A")
	}
}

func TestResolve_DanglingLabelledByFallsThrough(t *testing.T) {
	f := &dom.NodeFacts{
		ComputedName:       "engine",
		LabelledBy:         []string{"missing"},
		LabelledByResolves: false,
		Labels:             []dom.Label{{Text: "  User\n  name ", Controls: true}},
	}
	if got := Resolve(f); got != "User name" {
		t.Fatalf("Resolve: got %q, want %q", got, "User name")
	}
}

func TestResolve_AriaLabelUsesEngineName(t *testing.T) {
	f := &dom.NodeFacts{
		ComputedName: "Close dialog",
		AriaLabel:    "close   dialog",
		Labels:       []dom.Label{{Text: "Label", Controls: true}},
	}
	if got := Resolve(f); got != "Close dialog" {
		t.Fatalf("Resolve: got %q, want %q", got, "Close dialog")
	}
}

func TestResolve_WrappingLabels(t *testing.T) {
	f := &dom.NodeFacts{
		ComputedName: "",
		Labels: []dom.Label{
			{Text: "First", Controls: true},
			{Text: "   ", Controls: true},
			{Text: "Other control", Controls: false},
			{Text: "Second\tpart", Controls: true},
		},
	}
	if got := Resolve(f); got != "First Second part" {
		t.Fatalf("Resolve: got %q, want %q", got, "First Second part")
	}
}

func TestResolve_EngineFallback(t *testing.T) {
	f := &dom.NodeFacts{ComputedName: "Button 1"}
	if got := Resolve(f); got != "Button 1" {
		t.Fatalf("Resolve: got %q, want %q", got, "Button 1")
	}
}

func TestResolve_Nil(t *testing.T) {
	if got := Resolve(nil); got != "" {
		t.Fatalf("Resolve(nil): got %q, want empty", got)
	}
}

func TestFlatten(t *testing.T) {
	if got := Flatten("\n  a \t b\n\nc  "); got != "a b c" {
		t.Fatalf("Flatten: got %q, want %q", got, "a b c")
	}
}
