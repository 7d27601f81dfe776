package roddoc

import (
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/ysmood/gson"

	"github.com/hazyhaar/domquery"
	"github.com/hazyhaar/domquery/dom"
	"github.com/hazyhaar/domquery/internal/browser"
	"github.com/hazyhaar/domquery/internal/fixture"
)

func TestAXValue(t *testing.T) {
	cases := []struct {
		v    *proto.AccessibilityAXValue
		want any
	}{
		{nil, nil},
		{&proto.AccessibilityAXValue{Type: proto.AccessibilityAXValueTypeTristate, Value: gson.New("true")}, true},
		{&proto.AccessibilityAXValue{Type: proto.AccessibilityAXValueTypeTristate, Value: gson.New("mixed")}, "mixed"},
		{&proto.AccessibilityAXValue{Type: proto.AccessibilityAXValueTypeBooleanOrUndefined, Value: gson.New("false")}, false},
		{&proto.AccessibilityAXValue{Type: proto.AccessibilityAXValueTypeBoolean, Value: gson.New(true)}, true},
		{&proto.AccessibilityAXValue{Type: proto.AccessibilityAXValueTypeInteger, Value: gson.New(2.0)}, 2.0},
		{&proto.AccessibilityAXValue{Type: proto.AccessibilityAXValueTypeToken, Value: gson.New("menu")}, "menu"},
	}
	for i, c := range cases {
		if got := axValue(c.v); got != c.want {
			t.Errorf("case %d: got %#v, want %#v", i, got, c.want)
		}
	}
}

func TestSnapshotOf(t *testing.T) {
	n := &proto.AccessibilityAXNode{
		Role: &proto.AccessibilityAXValue{Type: proto.AccessibilityAXValueTypeRole, Value: gson.New("checkbox")},
		Name: &proto.AccessibilityAXValue{Type: proto.AccessibilityAXValueTypeComputedString, Value: gson.New("Agree")},
		Properties: []*proto.AccessibilityAXProperty{
			{Name: "checked", Value: &proto.AccessibilityAXValue{Type: proto.AccessibilityAXValueTypeTristate, Value: gson.New("mixed")}},
			{Name: "required", Value: &proto.AccessibilityAXValue{Type: proto.AccessibilityAXValueTypeBoolean, Value: gson.New(true)}},
			{Name: proto.AccessibilityAXPropertyNameHasPopup, Value: &proto.AccessibilityAXValue{Type: proto.AccessibilityAXValueTypeToken, Value: gson.New("menu")}},
		},
	}
	s := snapshotOf(n)
	if s.Role != "checkbox" || s.Name != "Agree" {
		t.Fatalf("role/name: got %q/%q", s.Role, s.Name)
	}
	if s.Properties["checked"] != "mixed" || s.Properties["required"] != true {
		t.Fatalf("properties: got %v", s.Properties)
	}
	if s.Properties["haspopup"] != "menu" {
		t.Fatalf("haspopup: got %v", s.Properties)
	}
	if !domquery.KnownProperty("haspopup") {
		t.Fatal("haspopup must be queryable")
	}
	ok, err := domquery.Match(context.Background(), snapshotDoc{s}, nil, domquery.Query{Role: "checkbox", Props: map[string]any{"haspopup": "menu"}})
	if err != nil || !ok {
		t.Fatalf("match on haspopup: got %v, %v", ok, err)
	}
}

// snapshotDoc serves one fixed snapshot, enough for domquery.Match without
// a selector.
type snapshotDoc struct{ snap *dom.Snapshot }

func (d snapshotDoc) Root(context.Context) (dom.Handle, error) { return nil, nil }
func (d snapshotDoc) QueryAll(context.Context, dom.Handle, string) ([]dom.Handle, error) {
	return nil, nil
}
func (d snapshotDoc) ContentDocument(context.Context, dom.Handle) (dom.Handle, bool, error) {
	return nil, false, nil
}
func (d snapshotDoc) Facts(context.Context, dom.Handle) (*dom.NodeFacts, error) {
	return &dom.NodeFacts{}, nil
}
func (d snapshotDoc) Snapshot(context.Context, dom.Handle) (*dom.Snapshot, error) { return d.snap, nil }
func (d snapshotDoc) Release(context.Context, dom.Handle) error { return nil }

// startManager launches Chrome or skips the test.
func startManager(t *testing.T) *browser.Manager {
	t.Helper()
	bin, ok := launcher.LookPath()
	if !ok {
		t.Skip("chrome not found")
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	m := browser.NewManager(browser.Config{Bin: bin, NoSandbox: true})
	if _, err := m.Start(ctx); err != nil {
		t.Skipf("chrome did not start: %v", err)
	}
	t.Cleanup(func() { m.Close() })
	return m
}

func startPage(t *testing.T, html string) *Document {
	t.Helper()
	m := startManager(t)
	ctx := context.Background()
	p, err := m.NewPage(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if err := p.SetContent(ctx, html); err != nil {
		t.Fatal(err)
	}
	return New(p.Page)
}

func TestFind_Chrome(t *testing.T) {
	doc := startPage(t, `
		<h1>Title</h1>
		<label for="e">Email</label><input id="e">
		<button aria-pressed="true">Bold</button>
		<button style="display:none">Hidden</button>
		<iframe srcdoc="<button>Inner</button>"></iframe>`)
	ctx := context.Background()
	cfg := &domquery.Config{Document: doc, Timeout: 2 * time.Second}

	h, err := domquery.Find(ctx, cfg, domquery.Query{Role: "heading", Props: map[string]any{"level": 1}})
	if err != nil {
		t.Fatal(err)
	}
	doc.Release(ctx, h)

	h, err = domquery.Find(ctx, cfg, domquery.Query{Role: "textbox", Name: domquery.Exact("Email")})
	if err != nil {
		t.Fatal(err)
	}
	doc.Release(ctx, h)

	h, err = domquery.Find(ctx, cfg, domquery.Query{Role: "button", Props: map[string]any{"pressed": true}}, domquery.WithVisible(true))
	if err != nil {
		t.Fatal(err)
	}
	doc.Release(ctx, h)

	hs, err := domquery.FindAll(ctx, cfg, domquery.Query{Role: "button"}, domquery.WithVisible(true))
	if err != nil {
		t.Fatal(err)
	}
	if len(hs) != 1 {
		t.Fatalf("visible buttons: got %d, want 1", len(hs))
	}
	for _, h := range hs {
		doc.Release(ctx, h)
	}

	frame, err := domquery.Find(ctx, cfg, domquery.Query{Selector: "iframe"})
	if err != nil {
		t.Fatal(err)
	}
	inner, err := domquery.Find(ctx, cfg, domquery.Query{Role: "button", Name: domquery.Exact("Inner")}, domquery.WithRoot(frame))
	if err != nil {
		t.Fatal(err)
	}
	doc.Release(ctx, inner)
	doc.Release(ctx, frame)

	if n := doc.Live(); n != 0 {
		t.Fatalf("live handles: got %d, want 0", n)
	}
}

func TestFind_ChromeWaitsForInsertedNode(t *testing.T) {
	m := startManager(t)
	base := fixture.Serve(t, fixture.NewPages(nil))
	ctx := context.Background()

	p, err := m.OpenPage(ctx, base+"/delayed?ms=150&html="+url.QueryEscape("<button>Late</button>"))
	if err != nil {
		t.Fatal(err)
	}
	defer p.Close()
	doc := New(p.Page)
	cfg := &domquery.Config{Document: doc, Timeout: 3 * time.Second, PollInterval: 20 * time.Millisecond}

	h, err := domquery.Find(ctx, cfg, domquery.Query{Role: "button", Name: domquery.Exact("Late")})
	if err != nil {
		t.Fatal(err)
	}
	doc.Release(ctx, h)
}
