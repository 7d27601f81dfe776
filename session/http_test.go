package session

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hazyhaar/domquery/trace"
)

func do(t *testing.T, srv *httptest.Server, method, path, body string) (*http.Response, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, srv.URL+path, strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var out map[string]any
	json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

func TestRoutes_FindFlow(t *testing.T) {
	m := testManager(t)
	srv := httptest.NewServer(m.Routes())
	defer srv.Close()

	body, _ := json.Marshal(OpenRequest{HTML: page})
	resp, out := do(t, srv, http.MethodPost, "/sessions", string(body))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("open: status %d, body %v", resp.StatusCode, out)
	}
	id, _ := out["id"].(string)
	if id == "" {
		t.Fatalf("open: no id in %v", out)
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Fatal("missing X-Request-ID")
	}

	resp, out = do(t, srv, http.MethodPost, "/sessions/"+id+"/find", `{"role":"heading","props":{"level":1}}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("find: status %d, body %v", resp.StatusCode, out)
	}
	nodes, _ := out["nodes"].([]any)
	if len(nodes) != 1 {
		t.Fatalf("find: got %v", out)
	}
	handle := nodes[0].(map[string]any)["handle"].(string)

	resp, out = do(t, srv, http.MethodGet, "/sessions/"+id+"/handles/"+handle+"/snapshot", "")
	if resp.StatusCode != http.StatusOK || out["role"] != "heading" {
		t.Fatalf("snapshot: status %d, body %v", resp.StatusCode, out)
	}

	resp, out = do(t, srv, http.MethodGet, "/sessions/"+id+"/handles/"+handle+"/facts", "")
	if resp.StatusCode != http.StatusOK || out["tag"] != "h1" {
		t.Fatalf("facts: status %d, body %v", resp.StatusCode, out)
	}

	resp, out = do(t, srv, http.MethodPost, "/sessions/"+id+"/release", `{"handles":["`+handle+`"]}`)
	if resp.StatusCode != http.StatusOK || out["released"] != 1.0 {
		t.Fatalf("release: status %d, body %v", resp.StatusCode, out)
	}

	resp, _ = do(t, srv, http.MethodDelete, "/sessions/"+id, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("close: status %d", resp.StatusCode)
	}
}

func TestRoutes_ErrorStatus(t *testing.T) {
	m := testManager(t)
	s, _ := m.Open(t.Context(), "", page)
	srv := httptest.NewServer(m.Routes())
	defer srv.Close()

	cases := []struct {
		path, body string
		want       int
	}{
		{"/sessions/" + s.ID + "/find", `{}`, http.StatusBadRequest},
		{"/sessions/" + s.ID + "/find", `{"role":"dialog","timeout_ms":0}`, http.StatusNotFound},
		{"/sessions/" + s.ID + "/find", `{"role":"button","timeout_ms":0}`, http.StatusConflict},
		{"/sessions/missing/find", `{"role":"button"}`, http.StatusNotFound},
		{"/sessions/" + s.ID + "/find", `{not json`, http.StatusBadRequest},
		{"/sessions", `{"url":"https://example.com"}`, http.StatusNotImplemented},
	}
	for _, c := range cases {
		resp, out := do(t, srv, http.MethodPost, c.path, c.body)
		if resp.StatusCode != c.want {
			t.Errorf("POST %s %s: status %d, want %d (%v)", c.path, c.body, resp.StatusCode, c.want, out)
		}
		if out["error"] == nil {
			t.Errorf("POST %s %s: no error field", c.path, c.body)
		}
	}
}

func TestRoutes_TraceHeaderKept(t *testing.T) {
	m := testManager(t)
	rec := &trace.Memory{}
	m.query.Recorder = rec
	s, _ := m.Open(t.Context(), "", page)
	srv := httptest.NewServer(m.Routes())
	defer srv.Close()

	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/sessions/"+s.ID+"/find", bytes.NewBufferString(`{"role":"heading"}`))
	req.Header.Set("X-Trace-ID", "abc")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if got := resp.Header.Get("X-Trace-ID"); got != "abc" {
		t.Fatalf("X-Trace-ID: got %q", got)
	}
	entries := rec.Entries()
	if len(entries) == 0 || entries[0].TraceID != "abc" {
		t.Fatalf("entries: got %+v", entries)
	}
}

func TestRoutes_TraceIngest(t *testing.T) {
	m := testManager(t)
	rec := &trace.Memory{}
	m.query.Recorder = rec
	srv := httptest.NewServer(m.Routes())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/traces", "application/json", strings.NewReader(`[{"op":"find","attempt":1}]`))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("status: got %d", resp.StatusCode)
	}
	if n := len(rec.Entries()); n != 1 {
		t.Fatalf("entries: got %d, want 1", n)
	}
}
