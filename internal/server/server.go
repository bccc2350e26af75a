// Package server exposes the session API over HTTP: start a session,
// submit chat messages, voice notes and camera frames, and end the session
// for a report.
package server

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"log"
	"net"
	"net/http"

	"github.com/mindwell-dev/mindwell/internal/orchestrator"
	"github.com/mindwell-dev/mindwell/pkg/guard"
)

// Server handles the session API routes.
type Server struct {
	orch    *orchestrator.Orchestrator
	limiter *guard.RateLimiter
}

// New creates the API server. limiter may be nil to disable rate limiting.
func New(orch *orchestrator.Orchestrator, limiter *guard.RateLimiter) *Server {
	return &Server{orch: orch, limiter: limiter}
}

// Mount registers the API routes on mux.
func (s *Server) Mount(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/sessions", s.limit(s.handleStartSession))
	mux.HandleFunc("POST /api/sessions/{id}/messages", s.limit(s.handleMessage))
	mux.HandleFunc("POST /api/sessions/{id}/audio", s.limit(s.handleAudio))
	mux.HandleFunc("POST /api/sessions/{id}/frames", s.limit(s.handleFrame))
	mux.HandleFunc("POST /api/sessions/{id}/end", s.limit(s.handleEndSession))
	mux.HandleFunc("GET /api/sessions/{id}/risk", s.limit(s.handleRisk))
}

func (s *Server) limit(next http.HandlerFunc) http.HandlerFunc {
	if s.limiter == nil {
		return next
	}
	return func(w http.ResponseWriter, r *http.Request) {
		clientID, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			clientID = r.RemoteAddr
		}
		if !s.limiter.Allow(clientID) {
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next(w, r)
	}
}

type startSessionRequest struct {
	UserID string `json:"user_id"`
}

type startSessionResponse struct {
	SessionID string `json:"session_id"`
}

func (s *Server) handleStartSession(w http.ResponseWriter, r *http.Request) {
	var req startSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	id, err := s.orch.StartSession(r.Context(), req.UserID)
	if err != nil {
		log.Printf("server: start session: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to start session")
		return
	}
	writeJSON(w, http.StatusCreated, startSessionResponse{SessionID: id})
}

type messageRequest struct {
	Text string `json:"text"`
}

func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	var req messageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := s.orch.SubmitText(r.Context(), r.PathValue("id"), req.Text)
	if err != nil {
		writeOrchestratorError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type audioRequest struct {
	// Audio is the base64-encoded voice note.
	Audio string `json:"audio"`
}

func (s *Server) handleAudio(w http.ResponseWriter, r *http.Request) {
	var req audioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	audio, err := base64.StdEncoding.DecodeString(req.Audio)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid base64 audio")
		return
	}

	result, err := s.orch.SubmitAudio(r.Context(), r.PathValue("id"), audio)
	if err != nil {
		writeOrchestratorError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type frameRequest struct {
	// Image is the base64-encoded camera frame.
	Image string `json:"image"`
}

type frameResponse struct {
	Risk any `json:"risk"`
}

func (s *Server) handleFrame(w http.ResponseWriter, r *http.Request) {
	var req frameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	image, err := base64.StdEncoding.DecodeString(req.Image)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid base64 image")
		return
	}

	snap, err := s.orch.SubmitImage(r.Context(), r.PathValue("id"), image)
	if err != nil {
		writeOrchestratorError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, frameResponse{Risk: snap})
}

func (s *Server) handleEndSession(w http.ResponseWriter, r *http.Request) {
	rep, err := s.orch.EndSession(r.Context(), r.PathValue("id"))
	if err != nil {
		writeOrchestratorError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (s *Server) handleRisk(w http.ResponseWriter, r *http.Request) {
	snap, err := s.orch.RiskSnapshot(r.PathValue("id"))
	if err != nil {
		writeOrchestratorError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func writeOrchestratorError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, orchestrator.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, "session not found")
	case errors.Is(err, orchestrator.ErrSessionEnded):
		writeError(w, http.StatusConflict, "session has ended")
	case errors.Is(err, orchestrator.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		log.Printf("server: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("server: encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
