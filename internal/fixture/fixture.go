// Package fixture serves HTML pages to browser tests.
package fixture

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
)

// delayedPage appends the element in body after ms milliseconds.
const delayedPage = `<!doctype html>
<html><head><title>delayed</title></head><body>
<script>
setTimeout(function () {
	document.body.insertAdjacentHTML("beforeend", %s);
}, %d);
</script>
</body></html>`

// Pages is a set of HTML documents keyed by path.
type Pages struct {
	mu    sync.RWMutex
	pages map[string]string
}

// NewPages returns a page set seeded with pages.
func NewPages(pages map[string]string) *Pages {
	p := &Pages{pages: make(map[string]string, len(pages))}
	for path, body := range pages {
		p.pages[path] = body
	}
	return p
}

// Set adds or replaces the page served at path.
func (p *Pages) Set(path, body string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pages[path] = body
}

// Router serves the page set, plus GET /delayed?ms=N&html=...
func (p *Pages) Router() chi.Router {
	r := chi.NewRouter()
	r.Get("/delayed", handleDelayed)
	r.Get("/*", p.handlePage)
	return r
}

func (p *Pages) handlePage(w http.ResponseWriter, r *http.Request) {
	p.mu.RLock()
	body, ok := p.pages[r.URL.Path]
	p.mu.RUnlock()
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, body)
}

func handleDelayed(w http.ResponseWriter, r *http.Request) {
	ms, err := strconv.Atoi(r.URL.Query().Get("ms"))
	if err != nil || ms < 0 {
		http.Error(w, "ms must be a non-negative integer", http.StatusBadRequest)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintf(w, delayedPage, jsString(r.URL.Query().Get("html")), ms)
}

// jsString quotes s as a JavaScript string literal. json.Marshal escapes
// '<' so the literal cannot close the script element.
func jsString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

// Serve starts an HTTP server for p, closed when t ends.
func Serve(t testing.TB, p *Pages) string {
	t.Helper()
	srv := httptest.NewServer(p.Router())
	t.Cleanup(srv.Close)
	return srv.URL
}
