package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/kartoza/movie-predict/internal/catalog"
	"github.com/kartoza/movie-predict/internal/config"
	"github.com/kartoza/movie-predict/internal/models"
	"github.com/kartoza/movie-predict/internal/predict"
	"github.com/kartoza/movie-predict/internal/sessions"
	"github.com/kartoza/movie-predict/internal/simulation"
)

// DefaultLongPoll bounds how long a session read waits for a newer view
const DefaultLongPoll = 25 * time.Second

// Handler provides HTTP API endpoints
type Handler struct {
	client   predict.Client
	samples  *catalog.Store
	sessions *sessions.Registry
	cfg      config.Config
	logger   *zap.Logger
	longPoll time.Duration
}

// NewHandler creates a new API handler
func NewHandler(
	client predict.Client,
	samples *catalog.Store,
	registry *sessions.Registry,
	cfg config.Config,
) *Handler {
	return &Handler{
		client:   client,
		samples:  samples,
		sessions: registry,
		cfg:      cfg,
		logger:   zap.L().Named("api"),
		longPoll: DefaultLongPoll,
	}
}

// RegisterRoutes sets up all API routes
func (h *Handler) RegisterRoutes(r *mux.Router) {
	// Health and info
	r.HandleFunc("/health", h.handleHealth).Methods("GET")
	r.HandleFunc("/info", h.handleInfo).Methods("GET")

	// Prediction backend
	r.HandleFunc("/sample-data", h.handleSampleData).Methods("GET")
	r.HandleFunc("/model-info", h.handleModelInfo).Methods("GET")
	r.HandleFunc("/predict", h.handlePredict).Methods("POST")

	// Simulation sessions
	r.HandleFunc("/sessions", h.handleListSessions).Methods("GET")
	r.HandleFunc("/sessions", h.handleCreateSession).Methods("POST")
	r.HandleFunc("/sessions/{id}", h.handleGetSession).Methods("GET")
	r.HandleFunc("/sessions/{id}", h.handleDeleteSession).Methods("DELETE")
	r.HandleFunc("/sessions/{id}/drag", h.handleDrag).Methods("POST")
	r.HandleFunc("/sessions/{id}/commit", h.handleCommit).Methods("POST")
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		zap.L().Error("encoding response", zap.Error(err))
	}
}

// respondError sends a JSON error response
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]interface{}{"success": false, "error": message})
}

// handleHealth returns server health status
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleInfo returns server information
func (h *Handler) handleInfo(w http.ResponseWriter, r *http.Request) {
	info := map[string]interface{}{
		"version":         h.cfg.Version,
		"backend":         h.cfg.Backend.URL,
		"samples_source":  h.samples.Source(),
		"active_sessions": h.sessions.Len(),
	}
	respondJSON(w, http.StatusOK, info)
}

// handleSampleData returns example movies, from the backend with ?source=backend
func (h *Handler) handleSampleData(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("source") == "backend" {
		samples, err := h.client.SampleData(r.Context())
		if err != nil {
			h.logger.Warn("backend sample data", zap.Error(err))
			respondError(w, http.StatusBadGateway, err.Error())
			return
		}
		respondJSON(w, http.StatusOK, samples)
		return
	}

	samples, err := h.samples.List(r.Context())
	if err != nil {
		h.logger.Error("listing samples", zap.Error(err))
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, samples)
}

// handleModelInfo proxies the backend model description
func (h *Handler) handleModelInfo(w http.ResponseWriter, r *http.Request) {
	info, err := h.client.ModelInfo(r.Context())
	if err != nil {
		h.logger.Warn("backend model info", zap.Error(err))
		respondError(w, http.StatusBadGateway, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, info)
}

type predictResponse struct {
	Success    bool               `json:"success"`
	Error      string             `json:"error,omitempty"`
	Prediction *models.Prediction `json:"prediction,omitempty"`
	Metrics    json.RawMessage    `json:"metrics,omitempty"`
	Features   []models.Feature   `json:"features"`
	InputData  json.RawMessage    `json:"input_data,omitempty"`
	ModelInfo  json.RawMessage    `json:"model_info,omitempty"`
	SessionID  string             `json:"session_id,omitempty"`
	View       *simulation.View   `json:"view,omitempty"`
}

// handlePredict runs a prediction and opens a simulation session on it
func (h *Handler) handlePredict(w http.ResponseWriter, r *http.Request) {
	fields, err := decodeForm(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	sessionID := fields["session_id"]
	delete(fields, "session_id")

	req := predict.ParseForm(fields)
	resp, err := h.client.Predict(r.Context(), req.Payload())
	if err != nil {
		h.logger.Error("prediction request failed", zap.String("title", req.Title), zap.Error(err))
		respondError(w, http.StatusBadGateway, err.Error())
		return
	}

	out := predictResponse{
		Success:    resp.Success,
		Error:      resp.Error,
		Prediction: resp.Prediction,
		Metrics:    resp.Metrics,
		InputData:  resp.InputData,
		ModelInfo:  resp.ModelInfo,
	}
	out.Features, err = predict.Features(resp)
	if err != nil {
		h.logger.Warn("unreadable feature importance", zap.Error(err))
		out.Features = []models.Feature{}
	}

	if !resp.Success {
		respondJSON(w, http.StatusOK, out)
		return
	}

	prob, err := predict.Probability(resp)
	if err != nil {
		h.logger.Warn("prediction has no usable probability", zap.Error(err))
		respondJSON(w, http.StatusOK, out)
		return
	}

	entry, err := h.openSession(sessionID, baselineFor(req, prob))
	if err != nil {
		h.logger.Error("opening simulation", zap.Error(err))
		respondJSON(w, http.StatusOK, out)
		return
	}
	view, _ := entry.Views.Latest()
	out.SessionID = entry.ID
	out.View = &view
	respondJSON(w, http.StatusOK, out)
}

// openSession reopens id when it is still registered, else creates a session
func (h *Handler) openSession(id string, b simulation.Baseline) (*sessions.Entry, error) {
	if id != "" {
		e, err := h.sessions.Reopen(id, b)
		if err == nil || !eris.Is(err, sessions.ErrNotFound) {
			return e, err
		}
	}
	return h.sessions.Create(b)
}

// baselineFor captures the submitted form and its score for simulation
func baselineFor(req models.PredictRequest, prob float64) simulation.Baseline {
	b := simulation.Baseline{
		Budget:             req.Budget,
		Runtime:            req.Runtime,
		Genres:             req.Genres,
		SuccessProbability: prob,
		Extra: map[string]any{
			"title":        req.Title,
			"releaseMonth": req.ReleaseMonth,
		},
	}
	for k, v := range req.Extra {
		var st simulation.SliderState
		switch k {
		case string(simulation.FieldRevenue):
			if st.Apply(simulation.FieldRevenue, v) {
				b.Revenue = st.Revenue
			}
		case string(simulation.FieldVoteAverage):
			if st.Apply(simulation.FieldVoteAverage, v) {
				b.VoteAverage = st.VoteAverage
			}
		default:
			b.Extra[k] = v
		}
	}
	return b
}

// decodeForm reads a JSON object of form fields. Numbers are kept as their
// text and string arrays are joined with commas.
func decodeForm(r *http.Request) (map[string]string, error) {
	var raw map[string]json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		return nil, eris.Wrap(err, "invalid form body")
	}
	if raw == nil {
		return nil, eris.New("no data provided")
	}

	fields := make(map[string]string, len(raw))
	for k, v := range raw {
		var rv models.RawValue
		if err := json.Unmarshal(v, &rv); err == nil {
			fields[k] = string(rv)
			continue
		}
		var list []string
		if err := json.Unmarshal(v, &list); err != nil {
			return nil, eris.Errorf("field %q must be a string, number or list of strings", k)
		}
		fields[k] = strings.Join(list, ",")
	}
	return fields, nil
}

type sessionResponse struct {
	ID       string            `json:"id"`
	Version  uint64            `json:"version"`
	State    string            `json:"state"`
	View     simulation.View   `json:"view"`
	Elements map[string]string `json:"elements"`
	Error    string            `json:"error,omitempty"`
}

func newSessionResponse(e *sessions.Entry, v simulation.View, version uint64) sessionResponse {
	resp := sessionResponse{
		ID:       e.ID,
		Version:  version,
		State:    e.Session.State().String(),
		View:     v,
		Elements: v.Elements(),
	}
	if err := e.Session.LastError(); err != nil {
		resp.Error = err.Error()
	}
	return resp
}

func (h *Handler) latest(e *sessions.Entry) sessionResponse {
	v, version := e.Views.Latest()
	return newSessionResponse(e, v, version)
}

// handleListSessions lists live sessions
func (h *Handler) handleListSessions(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.sessions.List())
}

// handleCreateSession opens a session on a posted baseline
func (h *Handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var b simulation.Baseline
	if err := json.NewDecoder(r.Body).Decode(&b); err != nil {
		respondError(w, http.StatusBadRequest, "invalid baseline: "+err.Error())
		return
	}
	e, err := h.sessions.Create(b)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondJSON(w, http.StatusCreated, h.latest(e))
}

// handleGetSession returns the session view, long-polling when ?since is set
func (h *Handler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	e, ok := h.entry(w, r)
	if !ok {
		return
	}

	sinceParam := r.URL.Query().Get("since")
	if sinceParam == "" {
		respondJSON(w, http.StatusOK, h.latest(e))
		return
	}
	since, err := strconv.ParseUint(sinceParam, 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "since must be a non-negative integer")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.longPoll)
	defer cancel()
	v, version, err := e.Views.Wait(ctx, since)
	if err != nil && r.Context().Err() != nil {
		return
	}
	respondJSON(w, http.StatusOK, newSessionResponse(e, v, version))
}

// handleDeleteSession closes a session
func (h *Handler) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := h.sessions.Delete(id); err != nil {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleDrag refreshes a slider label without recomputing
func (h *Handler) handleDrag(w http.ResponseWriter, r *http.Request) {
	e, ok := h.entry(w, r)
	if !ok {
		return
	}
	field, raw, ok := decodeUpdate(w, r)
	if !ok {
		return
	}
	e.Session.OnSliderDrag(field, raw)
	respondJSON(w, http.StatusOK, h.latest(e))
}

// handleCommit records a slider value and schedules a recompute
func (h *Handler) handleCommit(w http.ResponseWriter, r *http.Request) {
	e, ok := h.entry(w, r)
	if !ok {
		return
	}
	field, raw, ok := decodeUpdate(w, r)
	if !ok {
		return
	}
	if err := e.Session.OnSliderCommit(field, raw); err != nil {
		respondError(w, http.StatusConflict, err.Error())
		return
	}
	respondJSON(w, http.StatusAccepted, h.latest(e))
}

func (h *Handler) entry(w http.ResponseWriter, r *http.Request) (*sessions.Entry, bool) {
	e, err := h.sessions.Get(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, http.StatusNotFound, err.Error())
		return nil, false
	}
	return e, true
}

func decodeUpdate(w http.ResponseWriter, r *http.Request) (simulation.Field, string, bool) {
	var u models.FieldUpdate
	if err := json.NewDecoder(r.Body).Decode(&u); err != nil {
		respondError(w, http.StatusBadRequest, "invalid update: "+err.Error())
		return "", "", false
	}
	field, err := simulation.ParseField(u.Field)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return "", "", false
	}
	return field, string(u.Value), true
}
