package session

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hazyhaar/domquery/kit"
)

func TestStart_TraceStore(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "domquery.yaml")
	src := "query:\n  timeout: 100ms\n  poll_interval: 10ms\ntrace:\n  db: " + filepath.Join(dir, "db", "traces.db") + "\n"
	if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}
	fc, err := LoadConfigFile(path)
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	rt, err := Start(ctx, fc, false, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer rt.Close(ctx)

	if rt.Browser != nil {
		t.Fatal("browser started without being asked")
	}
	s, err := rt.Open(ctx, "", page)
	if err != nil {
		t.Fatal(err)
	}
	eps := rt.Endpoints()
	if _, err := eps["find"](kit.WithTraceID(ctx, "run-1"), &QueryRequest{Session: s.ID, Role: "dialog"}); err == nil {
		t.Fatal("expected no dialog")
	}

	// The store flushes once per second.
	deadline := time.Now().Add(3 * time.Second)
	for {
		entries, err := rt.Traces(ctx, &TracesRequest{TraceID: "run-1"})
		if err != nil {
			t.Fatal(err)
		}
		if len(entries) > 1 {
			if entries[0].Attempt < entries[len(entries)-1].Attempt {
				t.Fatalf("entries not newest first: %+v", entries)
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("entries: got %d, want several attempts", len(entries))
		}
		time.Sleep(100 * time.Millisecond)
	}
}

func TestStart_NegativeTimeoutDisables(t *testing.T) {
	fc, err := ParseConfig([]byte("query:\n  timeout: -1s\n"))
	if err != nil {
		t.Fatal(err)
	}
	rt, err := Start(context.Background(), fc, false, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer rt.Close(context.Background())
	if rt.query.Timeout >= 0 {
		t.Fatalf("timeout: got %v, want NoTimeout", rt.query.Timeout)
	}
}
