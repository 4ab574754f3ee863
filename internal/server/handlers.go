package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"kmeansviz/internal/api"
	"kmeansviz/internal/core"
	"kmeansviz/internal/render"
	"kmeansviz/internal/session"
)

// HealthResponse is the body of /health
type HealthResponse struct {
	Status string            `json:"status"`
	Uptime string            `json:"uptime"`
	Checks map[string]string `json:"checks"`
}

// ControlsView is the view model of the controls partial
type ControlsView struct {
	Snapshot       session.Snapshot
	ClusterInput   int
	Methods        []string
	SelectedMethod string
}

// ActionResponse is the JSON answer to a session command
type ActionResponse struct {
	Notice   string           `json:"notice,omitempty"`
	Error    string           `json:"error,omitempty"`
	Changed  bool             `json:"changed"`
	Snapshot session.Snapshot `json:"session"`
}

// PlaceRequest is a click in data space
type PlaceRequest struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

var serverStartTime = time.Now()

// handleHealth handles the /health endpoint
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{"session": s.session.Mode().String()}
	if s.renderer == nil {
		checks["templates"] = "error"
	} else {
		checks["templates"] = "ok"
	}

	s.respondJSON(w, http.StatusOK, HealthResponse{
		Status: "ok",
		Uptime: time.Since(serverStartTime).String(),
		Checks: checks,
	})
}

// handleIndexPage renders the operator page
func (s *Server) handleIndexPage(w http.ResponseWriter, r *http.Request) {
	s.renderHTML(w, "index.html", s.controlsView(s.session.Snapshot()))
}

// handleControlsPartial renders only the controls block
func (s *Server) handleControlsPartial(w http.ResponseWriter, r *http.Request) {
	s.renderHTML(w, "controls.html", s.controlsView(s.session.Snapshot()))
}

// handleScenePage renders the current scene as a go-echarts page
func (s *Server) handleScenePage(w http.ResponseWriter, r *http.Request) {
	snap := s.session.Snapshot()
	scene := render.RenderScene(snap.Dataset, snap.Centroids, snap.Partition)

	o := render.DefaultChartOptions()
	o.ClickEndpoint = "/api/session/centroids"
	o.RefreshEvent = eventSceneChanged

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := render.WriteChart(w, scene, o); err != nil {
		s.log.Error("Failed to render scene", "error", err)
		http.Error(w, "Failed to render scene", http.StatusInternalServerError)
	}
}

// handleSceneJSON returns the scene description
func (s *Server) handleSceneJSON(w http.ResponseWriter, r *http.Request) {
	snap := s.session.Snapshot()
	s.respondJSON(w, http.StatusOK, render.RenderScene(snap.Dataset, snap.Centroids, snap.Partition))
}

// handleSnapshot returns the session snapshot
func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, s.session.Snapshot())
}

// handleInitialize handles POST /api/session/initialize
func (s *Server) handleInitialize(w http.ResponseWriter, r *http.Request) {
	k, method := s.readInitParams(r)
	s.runAction(w, r, "initialize", func(ctx context.Context) (string, error) {
		return s.session.Initialize(ctx, k, method)
	})
}

// handleStep handles POST /api/session/step
func (s *Server) handleStep(w http.ResponseWriter, r *http.Request) {
	s.runAction(w, r, "step", s.session.Step)
}

// handleConverge handles POST /api/session/converge
func (s *Server) handleConverge(w http.ResponseWriter, r *http.Request) {
	s.runAction(w, r, "converge", s.session.Converge)
}

// handleReset handles POST /api/session/reset
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	s.runAction(w, r, "reset", s.session.Reset)
}

// handlePlaceCentroid handles a click on the scene. Clicks outside manual
// placement are accepted and ignored.
func (s *Server) handlePlaceCentroid(w http.ResponseWriter, r *http.Request) {
	var req PlaceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondJSON(w, http.StatusBadRequest, ActionResponse{Error: "invalid coordinate payload", Snapshot: s.session.Snapshot()})
		return
	}

	notice, err := s.session.Place(core.NewPoint(req.X, req.Y))
	operatorActionsTotal.WithLabelValues("place", outcome(err)).Inc()

	s.respondJSON(w, http.StatusOK, ActionResponse{
		Notice:   notice,
		Changed:  err == nil,
		Snapshot: s.session.Snapshot(),
	})
}

// runAction invokes a controller command and answers with the controls
// partial for htmx, or JSON otherwise.
func (s *Server) runAction(w http.ResponseWriter, r *http.Request, action string, fn func(context.Context) (string, error)) {
	notice, err := fn(r.Context())
	operatorActionsTotal.WithLabelValues(action, outcome(err)).Inc()

	message, level := notice, NotifyInfo
	if err != nil {
		message, level = session.Describe(err), NotifyError
		if message != "" {
			s.log.Info("Session command failed", "action", action, "error", err)
		}
	}
	changed := err == nil

	snap := s.session.Snapshot()

	if isHTMXRequest(r) {
		events := map[string]interface{}{}
		if changed {
			events[eventSceneChanged] = true
		}
		if message != "" {
			events[eventNotify] = notification{Message: message, Level: level}
		}
		if err := setHTMXTriggers(w, events); err != nil {
			s.log.Error("Failed to set HX-Trigger", "error", err)
		}
		s.renderHTML(w, "controls.html", s.controlsView(snap))
		return
	}

	resp := ActionResponse{Changed: changed, Snapshot: snap}
	if err != nil {
		resp.Error = message
		s.respondJSON(w, statusFor(err), resp)
		return
	}
	resp.Notice = notice
	s.respondJSON(w, http.StatusOK, resp)
}

// readInitParams reads the cluster count and method from a form or JSON body
func (s *Server) readInitParams(r *http.Request) (int, string) {
	var req api.InitializeRequest
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.log.Debug("Ignoring malformed initialize body", "error", err)
		}
		if req.NumClusters <= 0 {
			req.NumClusters = session.DefaultClusterCount
		}
	} else {
		req.NumClusters = session.ParseClusterCount(r.FormValue("num_clusters"))
		req.InitMethod = r.FormValue("init_method")
	}

	if req.InitMethod == "" {
		req.InitMethod = s.defaultMethod()
	}
	return req.NumClusters, req.InitMethod
}

func (s *Server) controlsView(snap session.Snapshot) ControlsView {
	clusters := s.ui.DefaultClusters
	if snap.Target > 0 {
		clusters = snap.Target
	}
	if clusters <= 0 {
		clusters = session.DefaultClusterCount
	}

	method := snap.Method
	if method == "" {
		method = s.defaultMethod()
	}

	return ControlsView{
		Snapshot:       snap,
		ClusterInput:   clusters,
		Methods:        s.methods(),
		SelectedMethod: method,
	}
}

func (s *Server) methods() []string {
	if len(s.ui.Methods) > 0 {
		return s.ui.Methods
	}
	return api.Methods
}

func (s *Server) defaultMethod() string {
	if s.ui.DefaultMethod != "" {
		return s.ui.DefaultMethod
	}
	return api.MethodRandom
}

// statusFor maps controller errors to HTTP statuses for JSON clients
func statusFor(err error) int {
	var svcErr *api.ServiceError
	switch {
	case errors.Is(err, session.ErrInvalidClusterCount):
		return http.StatusBadRequest
	case errors.Is(err, session.ErrControlDisabled),
		errors.Is(err, session.ErrInFlight),
		errors.Is(err, session.ErrStale),
		errors.Is(err, session.ErrNotArmed),
		errors.Is(err, session.ErrNoSession):
		return http.StatusConflict
	case errors.As(err, &svcErr):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusBadGateway
	}
}

func outcome(err error) string {
	var svcErr *api.ServiceError
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, session.ErrStale):
		return "stale"
	case errors.Is(err, session.ErrNotArmed), errors.Is(err, session.ErrControlDisabled), errors.Is(err, session.ErrInFlight):
		return "rejected"
	case errors.As(err, &svcErr):
		return "service_error"
	default:
		return "error"
	}
}

// renderHTML executes a template or answers 500
func (s *Server) renderHTML(w http.ResponseWriter, name string, data interface{}) {
	if s.renderer == nil {
		http.Error(w, "Templates unavailable", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.renderer.Render(w, name, data); err != nil {
		s.log.Error("Failed to render template", "template", name, "error", err)
		http.Error(w, "Failed to render page", http.StatusInternalServerError)
	}
}

// respondJSON writes a JSON response
func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error("Failed to encode JSON response", "error", err)
	}
}
