package trace

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

const maxIngestBody = 1 << 20

// IngestHandler accepts the batches a RemoteStore posts and replays them
// into rec. It answers 204 on success, 405 for a method other than POST
// and 400 for a body that is not a JSON array of entries.
func IngestHandler(rec Recorder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var entries []*Entry
		dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxIngestBody))
		if err := dec.Decode(&entries); err != nil {
			http.Error(w, "invalid entry batch", http.StatusBadRequest)
			return
		}
		accepted := 0
		for _, e := range entries {
			if e == nil {
				continue
			}
			rec.RecordAsync(e)
			accepted++
		}
		slog.DebugContext(r.Context(), "trace: ingest", "entries", accepted)
		w.WriteHeader(http.StatusNoContent)
	}
}
