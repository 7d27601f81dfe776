// Package trace journals query attempts: one Entry per poll of a Find,
// FindAll or WaitFor. Recording is asynchronous and lossy under pressure so
// it never slows the polling loop down.
//
//	db, _ := sql.Open("sqlite", "attempts.db")
//	store := trace.NewStore(db)
//	store.Init()
//	cfg.Recorder = store
//	defer store.Close()
//
// RemoteStore ships the same entries to an IngestHandler over HTTP.
package trace

import "sync"

// Entry is a single query attempt.
type Entry struct {
	TraceID    string `json:"trace_id,omitempty"` // correlation with the HTTP/MCP request
	Op         string `json:"op"`                 // "find", "find_all" or "wait"
	Query      string `json:"query"`              // rendered query
	Attempt    int    `json:"attempt"`            // 1-based poll number
	DurationUs int64  `json:"duration_us"`
	Kind       string `json:"kind,omitempty"`  // QueryError kind of a failed attempt
	Error      string `json:"error,omitempty"` // empty if the attempt succeeded
	Timestamp  int64  `json:"timestamp"`       // unix microseconds
}

// Recorder is the interface for attempt persistence backends.
type Recorder interface {
	RecordAsync(e *Entry)
	Close() error
}

// Memory keeps entries in a slice. Used by tests and by short-lived CLI runs
// that print the journal at exit.
type Memory struct {
	mu      sync.Mutex
	entries []*Entry
}

func (m *Memory) RecordAsync(e *Entry) {
	m.mu.Lock()
	m.entries = append(m.entries, e)
	m.mu.Unlock()
}

func (m *Memory) Close() error { return nil }

// Entries returns a copy of the recorded entries.
func (m *Memory) Entries() []*Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Entry, len(m.entries))
	copy(out, m.entries)
	return out
}
