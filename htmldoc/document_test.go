package htmldoc

import (
	"context"
	"errors"
	"strings"
	"testing"

	"golang.org/x/net/html"

	"github.com/hazyhaar/domquery/dom"
	"github.com/hazyhaar/domquery/idgen"
)

func query(t *testing.T, d *Document, selector string) []dom.Handle {
	t.Helper()
	ctx := context.Background()
	root, err := d.Root(ctx)
	if err != nil {
		t.Fatal(err)
	}
	defer d.Release(ctx, root)
	hs, err := d.QueryAll(ctx, root, selector)
	if err != nil {
		t.Fatalf("QueryAll(%q): %v", selector, err)
	}
	return hs
}

func one(t *testing.T, d *Document, selector string) dom.Handle {
	t.Helper()
	hs := query(t, d, selector)
	if len(hs) != 1 {
		t.Fatalf("QueryAll(%q): got %d nodes, want 1", selector, len(hs))
	}
	return hs[0]
}

func TestDocument_HandlesAndRelease(t *testing.T) {
	ctx := context.Background()
	d := MustParse(`<p>a</p><p>b</p>`, WithIDGenerator(idgen.Sequence("h")))

	hs := query(t, d, "p")
	if len(hs) != 2 {
		t.Fatalf("handles: got %d, want 2", len(hs))
	}
	if d.Live() != 2 {
		t.Fatalf("live after query: got %d, want 2", d.Live())
	}
	if hs[0].HandleID() != "h2" {
		t.Fatalf("handle id: got %q, want h2 (h1 is the root)", hs[0].HandleID())
	}
	for _, h := range hs {
		if err := d.Release(ctx, h); err != nil {
			t.Fatal(err)
		}
	}
	if err := d.Release(ctx, hs[0]); err != nil {
		t.Fatalf("double release: %v", err)
	}
	if d.Live() != 0 {
		t.Fatalf("live after release: got %d, want 0", d.Live())
	}
	if _, err := d.Facts(ctx, hs[0]); !errors.Is(err, ErrReleased) {
		t.Fatalf("facts after release: got %v, want ErrReleased", err)
	}
}

func TestDocument_SetContentStalesHandles(t *testing.T) {
	ctx := context.Background()
	d := MustParse(`<p>old</p>`)
	h := one(t, d, "p")
	if err := d.SetContent(`<p>new</p>`); err != nil {
		t.Fatal(err)
	}
	if _, err := d.Facts(ctx, h); !errors.Is(err, ErrStale) {
		t.Fatalf("facts on stale handle: got %v, want ErrStale", err)
	}
	d.Release(ctx, h)

	h = one(t, d, "p")
	defer d.Release(ctx, h)
	f, err := d.Facts(ctx, h)
	if err != nil {
		t.Fatal(err)
	}
	if f.TextContent != "new" {
		t.Fatalf("text: got %q, want new", f.TextContent)
	}
}

func TestDocument_ForeignHandle(t *testing.T) {
	a := MustParse(`<p>a</p>`)
	b := MustParse(`<p>b</p>`)
	h := one(t, a, "p")
	if _, err := b.Facts(context.Background(), h); !errors.Is(err, ErrForeign) {
		t.Fatalf("foreign facts: got %v, want ErrForeign", err)
	}
}

func TestSnapshot_Roles(t *testing.T) {
	ctx := context.Background()
	d := MustParse(`
<button id="b">Go</button>
<a id="l" href="/x">Link</a>
<a id="nl">No href</a>
<h2 id="h">Title</h2>
<input id="cb" type="checkbox">
<input id="t">
<select id="s"><option>x</option></select>
<div id="r" role="tab">T</div>
<img id="dec" src="x.png" alt="">
<section id="sec" aria-label="Zone">z</section>`)
	cases := map[string]string{
		"#b": "button", "#l": "link", "#nl": "generic", "#h": "heading",
		"#cb": "checkbox", "#t": "textbox", "#s": "combobox", "#r": "tab",
		"#dec": "none", "#sec": "region",
	}
	for sel, want := range cases {
		h := one(t, d, sel)
		s, err := d.Snapshot(ctx, h)
		if err != nil {
			t.Fatal(err)
		}
		if s.Role != want {
			t.Errorf("role of %s: got %q, want %q", sel, s.Role, want)
		}
		d.Release(ctx, h)
	}
}

func TestSnapshot_Names(t *testing.T) {
	ctx := context.Background()
	d := MustParse(`
<span id="lbl">Shipping   address</span>
<button id="lb" aria-labelledby="lbl" aria-label="ignored">x</button>
<button id="al" aria-label="Close">X</button>
<button id="content">Save <img src="i.png" alt="now"></button>
<img id="img" src="a.png" alt="Logo">
<input id="sub" type="submit">
<input id="ph" placeholder="Search">
<label for="email">Email</label><input id="email">`)
	cases := map[string]string{
		"#lb":      "Shipping address",
		"#al":      "Close",
		"#content": "Save now",
		"#img":     "Logo",
		"#sub":     "Submit",
		"#ph":      "Search",
		"#email":   "",
	}
	for sel, want := range cases {
		h := one(t, d, sel)
		s, err := d.Snapshot(ctx, h)
		if err != nil {
			t.Fatal(err)
		}
		if s.Name != want {
			t.Errorf("name of %s: got %q, want %q", sel, s.Name, want)
		}
		d.Release(ctx, h)
	}
}

func TestSnapshot_Properties(t *testing.T) {
	ctx := context.Background()
	d := MustParse(`
<input id="on" type="checkbox" checked>
<input id="off" type="checkbox">
<div id="mixed" role="checkbox" aria-checked="mixed">m</div>
<h3 id="h3">x</h3>
<button id="dis" disabled>d</button>
<button id="exp" aria-expanded="false" aria-haspopup="true">e</button>
<textarea id="ta" required>hello</textarea>
<div id="sl" role="slider" aria-valuemin="0" aria-valuemax="10">s</div>`)

	props := func(sel string) map[string]any {
		h := one(t, d, sel)
		defer d.Release(ctx, h)
		s, err := d.Snapshot(ctx, h)
		if err != nil {
			t.Fatal(err)
		}
		return s.Properties
	}

	if v := props("#on")["checked"]; v != true {
		t.Errorf("checked on: got %v", v)
	}
	if v := props("#off")["checked"]; v != false {
		t.Errorf("checked off: got %v", v)
	}
	if v := props("#mixed")["checked"]; v != "mixed" {
		t.Errorf("checked mixed: got %v", v)
	}
	if v := props("#h3")["level"]; v != 3 {
		t.Errorf("level: got %v", v)
	}
	if v := props("#dis")["disabled"]; v != true {
		t.Errorf("disabled: got %v", v)
	}
	exp := props("#exp")
	if exp["expanded"] != false || exp["haspopup"] != "menu" {
		t.Errorf("expanded/haspopup: got %v", exp)
	}
	ta := props("#ta")
	if ta["multiline"] != true || ta["required"] != true || ta["value"] != "hello" {
		t.Errorf("textarea: got %v", ta)
	}
	sl := props("#sl")
	if sl["valuemin"] != 0.0 || sl["valuemax"] != 10.0 {
		t.Errorf("slider: got %v", sl)
	}
}

func TestFacts_Labels(t *testing.T) {
	ctx := context.Background()
	d := MustParse(`
<label for="a">First</label>
<label>Second <input id="a"></label>
<label for="b">Points at b</label>`)
	h := one(t, d, "#a")
	defer d.Release(ctx, h)

	f, err := d.Facts(ctx, h)
	if err != nil {
		t.Fatal(err)
	}
	// "Points at b" has no control: #b does not exist.
	if len(f.Labels) != 2 {
		t.Fatalf("labels: got %d, want 2: %+v", len(f.Labels), f.Labels)
	}
	if f.Labels[0].Text != "First" || !f.Labels[0].Controls {
		t.Fatalf("first label: got %+v", f.Labels[0])
	}
	if !strings.HasPrefix(f.Labels[1].Text, "Second") {
		t.Fatalf("second label: got %+v", f.Labels[1])
	}
}

func TestFacts_LabelledByResolves(t *testing.T) {
	ctx := context.Background()
	d := MustParse(`<button id="x" aria-labelledby="missing">A</button><button id="y" aria-labelledby="missing t">B</button><span id="t">T</span>`)

	hx := one(t, d, "#x")
	fx, _ := d.Facts(ctx, hx)
	if fx.LabelledByResolves {
		t.Fatal("dangling labelledby must not resolve")
	}
	hy := one(t, d, "#y")
	fy, _ := d.Facts(ctx, hy)
	if !fy.LabelledByResolves {
		t.Fatal("labelledby with one existing id must resolve")
	}
}

func TestFacts_Visibility(t *testing.T) {
	ctx := context.Background()
	d := MustParse(`
<p id="shown">a</p>
<p id="hid" hidden>b</p>
<div style="display: none"><p id="inner">c</p></div>
<div style="visibility:hidden"><p id="vh">d</p><p id="vv" style="visibility: visible">e</p></div>`)

	facts := func(sel string) *dom.NodeFacts {
		h := one(t, d, sel)
		defer d.Release(ctx, h)
		f, err := d.Facts(ctx, h)
		if err != nil {
			t.Fatal(err)
		}
		return f
	}

	if f := facts("#shown"); f.Rect.Empty() || f.VisibilityHidden {
		t.Errorf("shown: got %+v", f)
	}
	if f := facts("#hid"); !f.Rect.Empty() {
		t.Errorf("hidden attribute: got rect %+v", f.Rect)
	}
	if f := facts("#inner"); !f.Rect.Empty() {
		t.Errorf("display none ancestor: got rect %+v", f.Rect)
	}
	if f := facts("#vh"); !f.VisibilityHidden {
		t.Error("inherited visibility:hidden not reported")
	}
	if f := facts("#vv"); f.VisibilityHidden {
		t.Error("visibility:visible must override the ancestor")
	}
}

func TestContentDocument(t *testing.T) {
	ctx := context.Background()
	d := MustParse(`<iframe id="f" srcdoc="<button>Inside</button>"></iframe><iframe id="empty"></iframe><div id="d"></div>`)

	f := one(t, d, "#f")
	doc, isFrame, err := d.ContentDocument(ctx, f)
	if err != nil || !isFrame || doc == nil {
		t.Fatalf("srcdoc frame: doc=%v isFrame=%v err=%v", doc, isFrame, err)
	}
	hs, err := d.QueryAll(ctx, doc, "button")
	if err != nil || len(hs) != 1 {
		t.Fatalf("query in frame: got %d, %v", len(hs), err)
	}
	facts, _ := d.Facts(ctx, hs[0])
	if facts.Rect.Empty() {
		t.Fatal("button inside a visible frame must be visible")
	}

	e := one(t, d, "#empty")
	doc, isFrame, err = d.ContentDocument(ctx, e)
	if err != nil || !isFrame || doc != nil {
		t.Fatalf("empty frame: doc=%v isFrame=%v err=%v", doc, isFrame, err)
	}

	div := one(t, d, "#d")
	if _, isFrame, _ := d.ContentDocument(ctx, div); isFrame {
		t.Fatal("div is not a frame")
	}
}

func TestOptionalInterfaces(t *testing.T) {
	ctx := context.Background()
	d := MustParse(`<input id="a" class="x"><input id="b">`)
	a := one(t, d, "#a")
	a2 := one(t, d, ".x")
	b := one(t, d, "#b")

	if same, _ := d.SameNode(ctx, a, a2); !same {
		t.Fatal("SameNode: handles to #a differ")
	}
	if same, _ := d.SameNode(ctx, a, b); same {
		t.Fatal("SameNode: #a and #b are equal")
	}
	if ok, _ := d.MatchesSelector(ctx, a, "input.x"); !ok {
		t.Fatal("MatchesSelector: #a does not match input.x")
	}
	if err := d.Focus(b); err != nil {
		t.Fatal(err)
	}
	if f, _ := d.Focused(ctx, b); !f {
		t.Fatal("Focused: #b not focused")
	}
	s, _ := d.Snapshot(ctx, b)
	if s.Properties["focused"] != true {
		t.Fatalf("snapshot focused: got %v", s.Properties)
	}
	out, err := d.OuterHTML(ctx, a)
	if err != nil || out != `<input id="a" class="x"/>` {
		t.Fatalf("OuterHTML: got %q, %v", out, err)
	}
}

func TestMutate_KeepsHandles(t *testing.T) {
	ctx := context.Background()
	d := MustParse(`<p id="p">a</p>`)
	h := one(t, d, "#p")
	d.Mutate(func(doc *html.Node) {
		walkElements(doc, func(n *html.Node) bool {
			if getAttr(n, "id") == "p" {
				n.Attr = append(n.Attr, html.Attribute{Key: "hidden"})
			}
			return true
		})
	})
	f, err := d.Facts(ctx, h)
	if err != nil {
		t.Fatal(err)
	}
	if !f.Rect.Empty() {
		t.Fatal("mutation not observed")
	}
}
