package fixture

import (
	"io"
	"net/http"
	"strings"
	"testing"
)

func get(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	return resp.StatusCode, string(b)
}

func TestPages(t *testing.T) {
	p := NewPages(map[string]string{"/": "<h1>Home</h1>"})
	base := Serve(t, p)

	if code, body := get(t, base+"/"); code != http.StatusOK || body != "<h1>Home</h1>" {
		t.Fatalf("/: got %d %q", code, body)
	}
	if code, _ := get(t, base+"/missing"); code != http.StatusNotFound {
		t.Fatalf("/missing: got %d, want 404", code)
	}
	p.Set("/late", "<p>late</p>")
	if code, _ := get(t, base+"/late"); code != http.StatusOK {
		t.Fatalf("/late: got %d", code)
	}
}

func TestDelayed(t *testing.T) {
	base := Serve(t, NewPages(nil))
	code, body := get(t, base+"/delayed?ms=50&html=%3C%2Fscript%3E%3Cb%3Ex%3C%2Fb%3E")
	if code != http.StatusOK {
		t.Fatalf("status: got %d", code)
	}
	if strings.Count(body, "</script>") != 1 {
		t.Fatalf("payload escaped the script element:\n%s", body)
	}
	if !strings.Contains(body, `\u003cb\u003ex`) || !strings.Contains(body, "}, 50);") {
		t.Fatalf("body:\n%s", body)
	}
	if code, _ := get(t, base+"/delayed?ms=x"); code != http.StatusBadRequest {
		t.Fatalf("bad ms: got %d, want 400", code)
	}
}
