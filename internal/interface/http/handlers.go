package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/kidsbank/quizhub/internal/application/generate"
	"github.com/kidsbank/quizhub/internal/domain/notification"
	"github.com/kidsbank/quizhub/internal/domain/quiz"
	"github.com/kidsbank/quizhub/internal/domain/shared"
)

// generateQuizRequest is the POST /generate_quiz body. Reward is a decimal
// currency amount, e.g. 2.50.
type generateQuizRequest struct {
	ChildID               int64   `json:"child_id"`
	Subject               string  `json:"subject"`
	Age                   int     `json:"age,omitempty"`
	Level                 string  `json:"level"`
	Quantity              int     `json:"quantity"`
	Reward                float64 `json:"reward"`
	WhatsAppNotifications bool    `json:"whatsapp_notifications"`
}

// generateQuizResponse is the success payload for POST /generate_quiz.
type generateQuizResponse struct {
	QuizSetID int64           `json:"quiz_set_id"`
	Questions []quiz.Question `json:"questions"`
	Message   string          `json:"message"`
	Notified  bool            `json:"notified"`
}

// handleGenerateQuiz creates a quiz set on demand. The call is synchronous:
// it returns after the set is committed, with notification delivery already
// attempted best-effort.
func (s *Server) handleGenerateQuiz(w http.ResponseWriter, r *http.Request) {
	if s.deps.Generator == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "service_unavailable", "quiz generation is not configured")
		return
	}

	var req generateQuizRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_json", "request body is not valid JSON")
		return
	}

	level, err := quiz.ParseDifficulty(req.Level)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_level", "level must be one of: easy, medium, hard")
		return
	}
	if req.Reward < 0 {
		writeJSONError(w, http.StatusBadRequest, "invalid_reward", "reward must not be negative")
		return
	}

	outcome, err := s.deps.Generator.GenerateManual(r.Context(), generate.ManualRequest{
		ChildID:               req.ChildID,
		Subject:               req.Subject,
		Age:                   req.Age,
		Level:                 level,
		Quantity:              req.Quantity,
		Reward:                shared.CentsFromFloat(req.Reward),
		WhatsAppNotifications: req.WhatsAppNotifications,
	})
	if err != nil {
		s.writeGenerateError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, generateQuizResponse{
		QuizSetID: outcome.Set.ID,
		Questions: outcome.Set.Questions,
		Message:   notification.MessageFor(notification.KindManual),
		Notified:  outcome.Notified,
	})
}

// writeGenerateError maps pipeline errors to HTTP status codes.
func (s *Server) writeGenerateError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, shared.ErrInsufficientBalance):
		writeJSONError(w, http.StatusBadRequest, "insufficient_balance", "parent balance does not cover the reward")
	case shared.IsNotFound(err):
		writeJSONError(w, http.StatusNotFound, "not_found", "child or parent account not found")
	case shared.IsValidation(err):
		writeJSONError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, shared.ErrSetExistsToday):
		writeJSONError(w, http.StatusConflict, "already_exists", "a quiz set already exists for this child today")
	case errors.Is(err, shared.ErrGeneration):
		s.logger.Error("manual generation failed", "error", err, "request_id", requestID(r.Context()))
		writeJSONError(w, http.StatusInternalServerError, "generation_failed", "quiz generation failed")
	default:
		s.logger.Error("manual generation failed", "error", err, "request_id", requestID(r.Context()))
		writeJSONError(w, http.StatusInternalServerError, "internal_error", "failed to create quiz set")
	}
}

// healthResponse is the /health payload.
type healthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	UptimeSec int64     `json:"uptime_seconds"`
}

// handleHealth returns overall process health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC(),
		UptimeSec: int64(s.Uptime().Seconds()),
	})
}

// handleReady returns 200 once backing dependencies answer.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker != nil {
		if err := s.deps.HealthChecker.Ping(r.Context()); err != nil {
			s.logger.Warn("readiness check failed", "error", err)
			writeJSONError(w, http.StatusServiceUnavailable, "not_ready", "database is not reachable")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// handleLive is the liveness probe. Always 200 while the process serves.
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}
