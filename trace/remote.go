package trace

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// RemoteStore ships entries in JSON batches to an IngestHandler, typically
// the /traces route of a domquery HTTP server.
//
//	rs := trace.NewRemoteStore("http://127.0.0.1:8088/traces")
//	cfg.Recorder = rs
//	defer rs.Close()
type RemoteStore struct {
	*batcher
	url    string
	client *http.Client
	logger *slog.Logger
}

// NewRemoteStore creates a RemoteStore posting to url. Without
// WithHTTPClient it uses a client with a 5s timeout.
func NewRemoteStore(url string, opts ...Option) *RemoteStore {
	o := buildOptions(opts)
	if o.client == nil {
		o.client = &http.Client{Timeout: 5 * time.Second}
	}
	rs := &RemoteStore{url: url, client: o.client, logger: o.logger}
	rs.batcher = startBatcher(o, rs.ship)
	return rs
}

func (rs *RemoteStore) ship(batch []*Entry) {
	if err := rs.post(context.Background(), batch); err != nil {
		rs.logger.Error("trace: remote", "error", err, "url", rs.url, "entries", len(batch))
	}
}

func (rs *RemoteStore) post(ctx context.Context, batch []*Entry) error {
	body, err := json.Marshal(batch)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rs.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := rs.client.Do(req)
	if err != nil {
		return fmt.Errorf("post: %w", err)
	}
	resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("post rejected: %s", resp.Status)
	}
	return nil
}
