package session

import (
	"context"

	"github.com/hazyhaar/domquery/kit"
)

// Endpoints are the session operations in transport-neutral form, keyed by
// operation name. MCP exposes them as domquery_<name> tools and HTTP as
// routes.
func (m *Manager) Endpoints() map[string]kit.Endpoint {
	raw := map[string]kit.Endpoint{
		"open": func(ctx context.Context, req any) (any, error) {
			r := req.(*OpenRequest)
			return m.Open(ctx, r.URL, r.HTML)
		},
		"close": func(ctx context.Context, req any) (any, error) {
			r := req.(*SessionRequest)
			if err := m.CloseSession(ctx, r.Session); err != nil {
				return nil, err
			}
			return map[string]string{"closed": r.Session}, nil
		},
		"list": func(ctx context.Context, req any) (any, error) {
			return m.List(), nil
		},
		"content": func(ctx context.Context, req any) (any, error) {
			return m.SetContent(ctx, req.(*ContentRequest))
		},
		"find": func(ctx context.Context, req any) (any, error) {
			return m.Find(ctx, req.(*QueryRequest))
		},
		"find_all": func(ctx context.Context, req any) (any, error) {
			return m.FindAll(ctx, req.(*QueryRequest))
		},
		"snapshot": func(ctx context.Context, req any) (any, error) {
			return m.Snapshot(ctx, req.(*HandleRequest))
		},
		"facts": func(ctx context.Context, req any) (any, error) {
			return m.Facts(ctx, req.(*HandleRequest))
		},
		"release": func(ctx context.Context, req any) (any, error) {
			return m.Release(ctx, req.(*HandleRequest))
		},
		"traces": func(ctx context.Context, req any) (any, error) {
			return m.Traces(ctx, req.(*TracesRequest))
		},
	}
	out := make(map[string]kit.Endpoint, len(raw))
	for name, ep := range raw {
		out[name] = m.traceMiddleware(name)(ep)
	}
	return out
}
