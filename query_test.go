package domquery

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/hazyhaar/domquery/htmldoc"
)

func TestQuery_Validate(t *testing.T) {
	valid := []Query{
		{Role: "button"},
		{Name: Exact("Save")},
		{Text: regexp.MustCompile("x")},
		{Selector: "div"},
		{Role: "heading", Props: map[string]any{"level": 1}},
	}
	for i, q := range valid {
		if err := q.Validate(); err != nil {
			t.Errorf("valid %d: %v", i, err)
		}
	}

	err := Query{}.Validate()
	if !errors.Is(err, ErrParameters) {
		t.Fatalf("empty query: got %v", err)
	}
	want := `QueryParametersError: At least one of "role", "name", "text", or "selector" is required in the query.`
	if err.Error() != want {
		t.Fatalf("message: got %q, want %q", err.Error(), want)
	}
}

func TestQuery_String(t *testing.T) {
	q := Query{
		Role:     "checkbox",
		Name:     regexp.MustCompile("^Agree"),
		Text:     Exact("yes"),
		Selector: "form input",
		Props:    map[string]any{"required": true, "checked": false},
	}
	want := `{role=checkbox name=/^Agree/ text="yes" selector="form input" checked=false required=true}`
	if got := q.String(); got != want {
		t.Fatalf("String: got %s, want %s", got, want)
	}
}

func TestKnownProperty(t *testing.T) {
	for _, k := range []string{"checked", "level", "valuemax", "haspopup"} {
		if !KnownProperty(k) {
			t.Errorf("%s should be known", k)
		}
	}
	for _, k := range []string{"role", "name", "colour"} {
		if KnownProperty(k) {
			t.Errorf("%s should be unknown", k)
		}
	}
}

func TestPropEqual(t *testing.T) {
	cases := []struct {
		want    any
		got     any
		present bool
		eq      bool
	}{
		{2, 2.0, true, true},
		{int64(3), 3, true, true},
		{json.Number("4"), 4.0, true, true},
		{2, "2", true, false},
		{true, true, true, true},
		{"mixed", "mixed", true, true},
		{"mixed", true, true, false},
		{false, nil, false, true},
		{true, nil, false, false},
		{0, nil, false, false},
	}
	for i, c := range cases {
		if got := propEqual(c.want, c.got, c.present); got != c.eq {
			t.Errorf("case %d: propEqual(%v, %v, %v) = %v, want %v", i, c.want, c.got, c.present, got, c.eq)
		}
	}
}

func TestMatch_SingleNode(t *testing.T) {
	ctx := context.Background()
	doc := htmldoc.MustParse(`<button class="primary" aria-pressed="true">Save</button>`)
	cfg := newConfig(doc)
	h, err := Find(ctx, cfg, Query{Role: "button"}, WithTimeout(0))
	if err != nil {
		t.Fatal(err)
	}
	defer doc.Release(ctx, h)

	ok, err := Match(ctx, doc, h, Query{Role: "button", Name: Exact("Save"), Selector: ".primary", Props: map[string]any{"pressed": true}})
	if err != nil || !ok {
		t.Fatalf("match: got %v, %v", ok, err)
	}
	ok, err = Match(ctx, doc, h, Query{Selector: ".secondary"})
	if err != nil || ok {
		t.Fatalf("selector mismatch: got %v, %v", ok, err)
	}
	if _, err := Match(ctx, doc, h, Query{}); !errors.Is(err, ErrParameters) {
		t.Fatalf("empty query: got %v", err)
	}
}

func TestMatch_MissingPropertyIsFalse(t *testing.T) {
	ctx := context.Background()
	doc := htmldoc.MustParse(`<button>Save</button>`)
	h, err := Find(ctx, newConfig(doc), Query{Role: "button"}, WithTimeout(0))
	if err != nil {
		t.Fatal(err)
	}
	defer doc.Release(ctx, h)

	snap, err := doc.Snapshot(ctx, h)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := snap.Properties["pressed"]; ok {
		t.Fatalf("pressed must be absent: %v", snap.Properties)
	}
	if ok, err := Match(ctx, doc, h, Query{Role: "button", Props: map[string]any{"pressed": false}}); err != nil || !ok {
		t.Fatalf("pressed=false: got %v, %v", ok, err)
	}
	if ok, err := Match(ctx, doc, h, Query{Role: "button", Props: map[string]any{"pressed": true}}); err != nil || ok {
		t.Fatalf("pressed=true: got %v, %v", ok, err)
	}
}

func TestConfig_ConfigureReturnsPrevious(t *testing.T) {
	cfg := DefaultConfig()
	prev := cfg.Configure(func(c *Config) { c.Timeout = 0 })
	if prev.Timeout != DefaultTimeout {
		t.Fatalf("previous timeout: got %v", prev.Timeout)
	}
	if cfg.Timeout != 0 {
		t.Fatalf("timeout: got %v, want 0", cfg.Timeout)
	}
	cfg.Restore(prev)
	if cfg.Timeout != DefaultTimeout {
		t.Fatalf("restored timeout: got %v", cfg.Timeout)
	}
}

func TestConfig_NilSnapshot(t *testing.T) {
	var cfg *Config
	snap := cfg.Snapshot()
	if snap.Timeout != DefaultTimeout || snap.PollInterval != DefaultPollInterval {
		t.Fatalf("nil snapshot: got %+v", snap)
	}
	s := cfg.settings()
	if s.logger == nil || s.timeout != DefaultTimeout {
		t.Fatalf("nil settings: got %+v", s)
	}
}

func TestClampPoll(t *testing.T) {
	cases := map[time.Duration]time.Duration{
		0:                      DefaultPollInterval,
		-5:                     DefaultPollInterval,
		time.Millisecond:       minPollInterval,
		100 * time.Millisecond: 100 * time.Millisecond,
	}
	for in, want := range cases {
		if got := clampPoll(in); got != want {
			t.Errorf("clampPoll(%v): got %v, want %v", in, got, want)
		}
	}
}
