package server

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/agentstation/orgsync/internal/server/middleware"
	"github.com/agentstation/orgsync/internal/server/response"
	"github.com/agentstation/orgsync/pkg/logging"
	"github.com/agentstation/orgsync/pkg/payload"
	"github.com/agentstation/orgsync/pkg/reconciler"
)

func (s *Server) setupRouter() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/trigger/{kind}/{uuid}", s.handleTrigger).Methods(http.MethodPost)
	if s.config.MetricsEnabled && s.metrics != nil {
		r.Handle("/metrics", s.metrics).Methods(http.MethodGet)
	}
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		response.NotFound(w, "Not found", req.URL.Path)
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		response.JSON(w, http.StatusMethodNotAllowed, response.Fail(
			"METHOD_NOT_ALLOWED", "Method not allowed",
			"Method "+req.Method+" is not supported for this endpoint"))
	})

	auth := middleware.DefaultAuthConfig(s.config.APIKey)
	auth.HeaderName = s.config.AuthHeader

	return middleware.Chain(
		middleware.Recovery(s.logger),
		middleware.Logger(s.logger),
		middleware.Auth(auth, s.logger),
	)(r)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	response.OK(w, map[string]any{
		"status": "healthy",
		"uptime": time.Since(s.startTime).Round(time.Second).String(),
	})
}

type triggerResult struct {
	Kind    payload.Kind   `json:"kind"`
	ID      string         `json:"id"`
	Action  string         `json:"action"`
	DryRun  bool           `json:"dry_run"`
	Payload payload.Record `json:"payload,omitempty"`
	Changes []string       `json:"changes,omitempty"`
}

func (s *Server) handleTrigger(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	kind, err := payload.ParseKind(vars["kind"])
	if err != nil {
		response.BadRequest(w, "Unknown kind", err.Error())
		return
	}
	id := vars["uuid"]
	if err := uuid.Validate(id); err != nil {
		response.BadRequest(w, "Invalid uuid", err.Error())
		return
	}

	dryRun := false
	if v := r.URL.Query().Get("dry_run"); v != "" {
		if dryRun, err = strconv.ParseBool(v); err != nil {
			response.BadRequest(w, "Invalid dry_run", err.Error())
			return
		}
	}

	res, err := s.runSingle(r.Context(), kind, id, dryRun)
	if err != nil {
		logging.FromContext(r.Context()).Error().Err(err).
			Str("kind", kind.String()).Str("entity_id", id).Msg("Triggered sync failed")
		response.ErrorFromType(w, err)
		return
	}

	out := triggerResult{
		Kind:    res.Kind,
		ID:      res.ID,
		Action:  string(res.Action),
		DryRun:  res.DryRun,
		Payload: res.Payload,
	}
	for _, c := range res.Changes {
		out.Changes = append(out.Changes, string(c.Type)+" "+c.Path)
	}
	response.OK(w, out)
}

func (s *Server) runSingle(ctx context.Context, kind payload.Kind, id string, dryRun bool) (*reconciler.SingleResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.syncer.RunSingle(ctx, kind, id, dryRun)
}
