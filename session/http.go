package session

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hazyhaar/domquery"
	"github.com/hazyhaar/domquery/kit"
	"github.com/hazyhaar/domquery/trace"
)

// maxBodyBytes bounds request bodies; HTML documents travel in them.
const maxBodyBytes = 8 << 20

// Routes returns the HTTP surface:
//
//	GET    /health
//	GET    /sessions
//	POST   /sessions                          {"url"|"html"}
//	DELETE /sessions/{id}
//	POST   /sessions/{id}/content             {"url"|"html"}
//	POST   /sessions/{id}/find                QueryRequest
//	POST   /sessions/{id}/find_all            QueryRequest
//	GET    /sessions/{id}/handles/{h}/snapshot
//	GET    /sessions/{id}/handles/{h}/facts
//	POST   /sessions/{id}/release             {"handles": [...]}
//	GET    /traces?trace_id=&limit=
//	POST   /traces                            []trace.Entry (ingest)
func (m *Manager) Routes() chi.Router {
	eps := m.Endpoints()
	r := chi.NewRouter()
	r.Use(m.requestContext)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/sessions", serve[struct{}](eps["list"], nil))
	r.Post("/sessions", serve[OpenRequest](eps["open"], nil))
	r.Route("/sessions/{id}", func(r chi.Router) {
		r.Delete("/", serve(eps["close"], func(req *http.Request, v *SessionRequest) {
			v.Session = chi.URLParam(req, "id")
		}))
		r.Post("/content", serve(eps["content"], func(req *http.Request, v *ContentRequest) {
			v.Session = chi.URLParam(req, "id")
		}))
		bindQuery := func(req *http.Request, v *QueryRequest) { v.Session = chi.URLParam(req, "id") }
		r.Post("/find", serve(eps["find"], bindQuery))
		r.Post("/find_all", serve(eps["find_all"], bindQuery))

		bindHandle := func(req *http.Request, v *HandleRequest) {
			v.Session = chi.URLParam(req, "id")
			if h := chi.URLParam(req, "handle"); h != "" {
				v.Handle = h
			}
		}
		r.Get("/handles/{handle}/snapshot", serve(eps["snapshot"], bindHandle))
		r.Get("/handles/{handle}/facts", serve(eps["facts"], bindHandle))
		r.Post("/release", serve(eps["release"], bindHandle))
	})

	r.Get("/traces", serve(eps["traces"], func(req *http.Request, v *TracesRequest) {
		q := req.URL.Query()
		v.TraceID = q.Get("trace_id")
		if n, err := strconv.Atoi(q.Get("limit")); err == nil {
			v.Limit = n
		}
	}))
	if m.query.Recorder != nil {
		r.Post("/traces", trace.IngestHandler(m.query.Recorder))
	}
	return r
}

// requestContext tags the request with kit values so attempts journaled
// while serving it can be correlated. An incoming X-Trace-ID is kept.
func (m *Manager) requestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := m.newID()
		traceID := r.Header.Get("X-Trace-ID")
		if traceID == "" {
			traceID = reqID
		}
		ctx := kit.WithRequestID(r.Context(), reqID)
		ctx = kit.WithTraceID(ctx, traceID)
		ctx = kit.WithTransport(ctx, kit.TransportHTTP)

		w.Header().Set("X-Request-ID", reqID)
		w.Header().Set("X-Trace-ID", traceID)
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// serve adapts an endpoint to HTTP. The JSON body, if any, is decoded into
// a fresh *T and bind fills path and query parameters.
func serve[T any](ep kit.Endpoint, bind func(*http.Request, *T)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		v := new(T)
		if r.Method != http.MethodGet && r.Method != http.MethodDelete {
			if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
				writeError(w, http.StatusBadRequest, err)
				return
			}
		}
		if bind != nil {
			bind(r, v)
		}
		resp, err := ep(r.Context(), v)
		if err != nil {
			writeError(w, statusOf(err), err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, domquery.ErrParameters):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnknownSession), errors.Is(err, ErrUnknownHandle), errors.Is(err, domquery.ErrEmpty):
		return http.StatusNotFound
	case errors.Is(err, domquery.ErrMultiple):
		return http.StatusConflict
	case errors.Is(err, domquery.ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, ErrNoBrowser):
		return http.StatusNotImplemented
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}
