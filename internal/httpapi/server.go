// Package httpapi exposes the service surface: call lifecycle REST
// endpoints, the UI websocket, script listing and generation, health,
// metrics, and the perf window.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/carevox/carevox/internal/config"
	"github.com/carevox/carevox/internal/flow"
	"github.com/carevox/carevox/internal/nlu"
	"github.com/carevox/carevox/internal/observability"
	"github.com/carevox/carevox/internal/realtime"
	"github.com/carevox/carevox/internal/scriptgen"
	"github.com/carevox/carevox/internal/session"
	"github.com/carevox/carevox/internal/summary"
)

type Server struct {
	cfg        config.Config
	registry   *session.Registry
	dialer     realtime.Dialer
	matcher    nlu.Matcher
	summarizer *summary.Summarizer
	generator  *scriptgen.Generator
	metrics    *observability.Metrics
	upgrader   websocket.Upgrader

	mu   sync.Mutex
	live map[string]*liveCall
}

func New(cfg config.Config, registry *session.Registry, dialer realtime.Dialer, matcher nlu.Matcher, summarizer *summary.Summarizer, generator *scriptgen.Generator, metrics *observability.Metrics) *Server {
	s := &Server{
		cfg:        cfg,
		registry:   registry,
		dialer:     dialer,
		matcher:    matcher,
		summarizer: summarizer,
		generator:  generator,
		metrics:    metrics,
		live:       make(map[string]*liveCall),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				// Only allow browser websocket connections from the same
				// origin unless explicitly opened up; another site must not
				// be able to drive or observe a patient call.
				if cfg.AllowAnyOrigin {
					return true
				}
				origin := strings.TrimSpace(r.Header.Get("Origin"))
				if origin == "" {
					// Non-browser clients often omit Origin. Allow them.
					return true
				}
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				if u.Scheme != "http" && u.Scheme != "https" {
					return false
				}
				return strings.EqualFold(u.Host, r.Host)
			},
		},
	}
	registry.SetExpireHook(func(c *session.Call) {
		s.endLiveCall(c.ID, "inactivity timeout")
	})
	return s
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})

	r.Post("/v1/calls", s.handleStartCall)
	r.Post("/v1/calls/{id}/end", s.handleEndCall)
	r.Get("/v1/calls/{id}", s.handleGetCall)
	r.Get("/v1/calls/ws", s.handleCallWS)

	r.Get("/v1/scripts", s.handleListScripts)
	r.Post("/v1/scripts/generate", s.handleGenerateScript)

	r.Get("/v1/perf/latency", s.handlePerfLatency)
	r.Post("/v1/perf/latency/reset", s.handlePerfLatencyReset)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":       "ok",
		"scriptgen":    s.generator.Enabled(),
		"active_calls": s.registry.ActiveCount(),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}

// startCallRequest optionally carries a custom flow; absent one the
// builtin follow-up script is used.
type startCallRequest struct {
	PatientName string        `json:"patient_name"`
	Language    string        `json:"language,omitempty"`
	Mode        string        `json:"mode,omitempty"`
	Greeting    string        `json:"greeting,omitempty"`
	Flow        *flow.FlowMap `json:"flow,omitempty"`
}

type startCallResponse struct {
	Call        *session.Call `json:"call"`
	ScriptTitle string        `json:"script_title"`
}

func (s *Server) handleStartCall(w http.ResponseWriter, r *http.Request) {
	var req startCallRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if strings.TrimSpace(req.PatientName) == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "patient_name is required")
		return
	}

	lc, err := s.startCall(req)
	if err != nil {
		var vErr *validationError
		if errors.As(err, &vErr) {
			respondError(w, http.StatusBadRequest, vErr.code, vErr.Error())
			return
		}
		respondError(w, http.StatusBadGateway, "call_start_failed", err.Error())
		return
	}

	call, _ := s.registry.Get(lc.id)
	respondJSON(w, http.StatusCreated, startCallResponse{
		Call:        call,
		ScriptTitle: lc.flowMap.Title,
	})
}

func (s *Server) handleEndCall(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		respondError(w, http.StatusBadRequest, "invalid_call_id", "missing call id")
		return
	}

	call, err := s.registry.Get(id)
	if err != nil {
		respondError(w, http.StatusNotFound, "call_not_found", err.Error())
		return
	}
	s.endLiveCall(id, "requested by caller")
	call, _ = s.registry.End(id)
	respondJSON(w, http.StatusOK, call)
}

type callDetail struct {
	Call     *session.Call        `json:"call"`
	Progress any                  `json:"progress,omitempty"`
	Summary  *summary.CallSummary `json:"summary,omitempty"`
}

func (s *Server) handleGetCall(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	call, err := s.registry.Get(id)
	if err != nil {
		respondError(w, http.StatusNotFound, "call_not_found", err.Error())
		return
	}

	detail := callDetail{Call: call}
	if lc := s.lookupLive(id); lc != nil {
		detail.Progress = lc.trk.Progress()
		detail.Summary = lc.summarySnapshot()
	}
	respondJSON(w, http.StatusOK, detail)
}

type validationError struct {
	code string
	msg  string
}

func (e *validationError) Error() string { return e.msg }

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

var errEmptyBody = errors.New("empty body")

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(out); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "eof") {
			return errEmptyBody
		}
		return err
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}
