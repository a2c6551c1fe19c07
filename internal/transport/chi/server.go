package chi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"

	gochi "github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/Vishal01x/reflekt-proximity/internal/domain/location"
	"github.com/Vishal01x/reflekt-proximity/internal/usecase/health"
	"github.com/Vishal01x/reflekt-proximity/internal/usecase/session"
	"github.com/Vishal01x/reflekt-proximity/internal/usecase/vocabulary"
)

// Error codes carried in JSON error responses.
const (
	codeBadRequest          = "bad_request"
	codeValidationFailed    = "validation_failed"
	codePermissionDenied    = "permission_denied"
	codeHardwareUnavailable = "hardware_unavailable"
	codeInvalidState        = "invalid_state"
	codeSessionNotFound     = "session_not_found"
	codeUnknownCategory     = "unknown_category"
	codeStoreUnavailable    = "store_unavailable"
	codeUnauthorized        = "unauthorized"
	codeInternalError       = "internal_error"
)

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// SessionFactory builds the per-user session components. The server
// assigns the session ID.
type SessionFactory func(userID string) *session.Session

// Server is the session-scoped HTTP surface over the coordinators.
type Server struct {
	newSession SessionFactory
	vocab      *vocabulary.Cache
	health     *health.Service
	logger     *zap.Logger

	mu       sync.RWMutex
	sessions map[string]*session.Session

	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(newSession SessionFactory, vocab *vocabulary.Cache, healthSvc *health.Service, logger *zap.Logger) *Server {
	s := &Server{
		newSession: newSession,
		vocab:      vocab,
		health:     healthSvc,
		logger:     logger,
		sessions:   make(map[string]*session.Session),
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(location.ErrInvalidFilter, http.StatusBadRequest, codeValidationFailed),
		sentinelHandler(location.ErrPermissionDenied, http.StatusForbidden, codePermissionDenied),
		sentinelHandler(location.ErrHardwareUnavailable, http.StatusConflict, codeHardwareUnavailable),
		sentinelHandler(location.ErrInvalidState, http.StatusConflict, codeInvalidState),
		sentinelHandler(location.ErrSessionNotFound, http.StatusNotFound, codeSessionNotFound),
		sentinelHandler(location.ErrUnknownCategory, http.StatusNotFound, codeUnknownCategory),
		sentinelHandler(location.ErrStoreUnavailable, http.StatusServiceUnavailable, codeStoreUnavailable),
	}
	return s
}

// Routes mounts every endpoint on the given router.
func (s *Server) Routes(r gochi.Router) {
	r.Route("/api/v1", func(r gochi.Router) {
		r.Post("/sessions", s.CreateSession)
		r.Route("/sessions/{sessionID}", func(r gochi.Router) {
			r.Get("/", s.GetSession)
			r.Delete("/", s.DeleteSession)
			r.Put("/consent", s.PutConsent)
			r.Put("/location", s.PutLocation)
			r.Post("/area-search", s.StartAreaSearch)
			r.Put("/filter", s.UpdateFilter)
			r.Post("/targeted-watch", s.StartTargetedWatch)
			r.Put("/watch-set", s.UpdateWatchSet)
			r.Get("/results", s.StreamResults)
			r.Get("/tracked", s.StreamTracked)
		})
		r.Get("/vocabulary/{category}", s.GetVocabulary)
		r.Post("/vocabulary/{category}", s.AddVocabulary)
	})
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
}

type createSessionRequest struct {
	UserID string `json:"user_id"`
}

type sessionResponse struct {
	SessionID string `json:"session_id"`
	UserID    string `json:"user_id"`
	Mode      string `json:"mode"`
}

// CreateSession handles POST /api/v1/sessions.
func (s *Server) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.UserID == "" {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "user_id is required")
		return
	}

	sess := s.newSession(req.UserID)
	sess.ID = uuid.NewString()

	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()

	w.Header().Set("Location", fmt.Sprintf("/api/v1/sessions/%s", sess.ID))
	writeJSON(w, http.StatusCreated, sessionToResponse(sess))
}

// GetSession handles GET /api/v1/sessions/{sessionID}.
func (s *Server) GetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sessionToResponse(sess))
}

// DeleteSession handles DELETE /api/v1/sessions/{sessionID}. Deleting a
// session is StopAll plus disposal.
func (s *Server) DeleteSession(w http.ResponseWriter, r *http.Request) {
	id := gochi.URLParam(r, "sessionID")

	s.mu.Lock()
	sess, ok := s.sessions[id]
	if ok {
		delete(s.sessions, id)
	}
	s.mu.Unlock()

	if !ok {
		writeError(w, http.StatusNotFound, codeSessionNotFound, location.ErrSessionNotFound.Error())
		return
	}

	sess.Close()
	w.WriteHeader(http.StatusNoContent)
}

// PutConsent handles PUT /api/v1/sessions/{sessionID}/consent.
func (s *Server) PutConsent(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}

	var cs location.ConsentState
	if err := json.NewDecoder(r.Body).Decode(&cs); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	sess.Consent.Set(cs)
	writeJSON(w, http.StatusOK, cs)
}

// PutLocation handles PUT /api/v1/sessions/{sessionID}/location: the
// client reports a device fix for the publisher to sample.
func (s *Server) PutLocation(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}

	var p location.LatLng
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if err := sess.Location.Report(p); err != nil {
		s.handleDomainError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type areaSearchRequest struct {
	Center    location.LatLng `json:"center"`
	RadiusKm  float64         `json:"radius_km"`
	Roles     []string        `json:"roles,omitempty"`
	MinRating float64         `json:"min_rating,omitempty"`
}

func (s *Server) decodeFilter(w http.ResponseWriter, r *http.Request) (location.DiscoveryFilter, bool) {
	var req areaSearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return location.DiscoveryFilter{}, false
	}
	f, err := location.NewFilter(req.Center, req.RadiusKm, req.Roles, req.MinRating)
	if err != nil {
		s.handleDomainError(w, err)
		return location.DiscoveryFilter{}, false
	}
	return f, true
}

// StartAreaSearch handles POST /api/v1/sessions/{sessionID}/area-search.
func (s *Server) StartAreaSearch(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	f, ok := s.decodeFilter(w, r)
	if !ok {
		return
	}

	if err := sess.Coordinator.StartAreaSearch(f); err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionToResponse(sess))
}

// UpdateFilter handles PUT /api/v1/sessions/{sessionID}/filter.
func (s *Server) UpdateFilter(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	f, ok := s.decodeFilter(w, r)
	if !ok {
		return
	}

	if err := sess.Coordinator.UpdateFilter(f); err != nil {
		s.handleDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type watchSetRequest struct {
	UserIDs []string `json:"user_ids"`
}

// StartTargetedWatch handles POST /api/v1/sessions/{sessionID}/targeted-watch.
func (s *Server) StartTargetedWatch(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}

	var req watchSetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	if err := sess.Coordinator.StartTargetedWatch(req.UserIDs); err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionToResponse(sess))
}

// UpdateWatchSet handles PUT /api/v1/sessions/{sessionID}/watch-set.
func (s *Server) UpdateWatchSet(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}

	var req watchSetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	if err := sess.Coordinator.UpdateWatchSet(req.UserIDs); err != nil {
		s.handleDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// StreamResults handles GET /api/v1/sessions/{sessionID}/results as an
// SSE stream of discovery result sets.
func (s *Server) StreamResults(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	sub := sess.Coordinator.Results()
	defer sub.Cancel()
	streamSSE(w, r, sub.C())
}

// StreamTracked handles GET /api/v1/sessions/{sessionID}/tracked as an
// SSE stream of targeted-watch snapshots.
func (s *Server) StreamTracked(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	sub := sess.Coordinator.Tracked()
	defer sub.Cancel()
	streamSSE(w, r, sub.C())
}

func streamSSE[T any](w http.ResponseWriter, r *http.Request, ch <-chan T) {
	fl, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, codeInternalError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	fl.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case v, ok := <-ch:
			if !ok {
				return
			}
			data, err := json.Marshal(v)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", data)
			fl.Flush()
		}
	}
}

type vocabularyResponse struct {
	Category string   `json:"category"`
	Values   []string `json:"values"`
}

// GetVocabulary handles GET /api/v1/vocabulary/{category}.
func (s *Server) GetVocabulary(w http.ResponseWriter, r *http.Request) {
	category := gochi.URLParam(r, "category")
	values, err := s.vocab.Get(r.Context(), category)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, vocabularyResponse{Category: category, Values: values})
}

type addVocabularyRequest struct {
	Value string `json:"value"`
}

type addVocabularyResponse struct {
	Value    string `json:"value"`
	Inserted bool   `json:"inserted"`
}

// AddVocabulary handles POST /api/v1/vocabulary/{category}.
func (s *Server) AddVocabulary(w http.ResponseWriter, r *http.Request) {
	category := gochi.URLParam(r, "category")

	var req addVocabularyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	inserted, err := s.vocab.AddIfAbsent(r.Context(), category, req.Value)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	status := http.StatusOK
	if inserted {
		status = http.StatusCreated
	}
	writeJSON(w, status, addVocabularyResponse{Value: req.Value, Inserted: inserted})
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	httpStatus := http.StatusOK
	if report.Status != health.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, map[string]any{
		"status": report.Status,
		"checks": report.Checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

// CloseSessions disposes every live session; used on shutdown.
func (s *Server) CloseSessions() {
	s.mu.Lock()
	sessions := s.sessions
	s.sessions = make(map[string]*session.Session)
	s.mu.Unlock()

	for _, sess := range sessions {
		sess.Close()
	}
}

func (s *Server) session(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	id := gochi.URLParam(r, "sessionID")

	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()

	if !ok {
		writeError(w, http.StatusNotFound, codeSessionNotFound, location.ErrSessionNotFound.Error())
		return nil, false
	}
	return sess, true
}

func sessionToResponse(sess *session.Session) sessionResponse {
	return sessionResponse{
		SessionID: sess.ID,
		UserID:    sess.UserID,
		Mode:      sess.Coordinator.Mode().String(),
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		location.ErrInvalidFilter,
		location.ErrPermissionDenied,
		location.ErrHardwareUnavailable,
		location.ErrInvalidState,
		location.ErrSessionNotFound,
		location.ErrUnknownCategory,
		location.ErrStoreUnavailable,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
}
