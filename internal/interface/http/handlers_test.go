package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kidsbank/quizhub/internal/application/generate"
	"github.com/kidsbank/quizhub/internal/domain/quiz"
	"github.com/kidsbank/quizhub/internal/domain/shared"
)

type fakeGenerator struct {
	lastReq generate.ManualRequest
	outcome *generate.Outcome
	err     error
	calls   int
}

func (f *fakeGenerator) GenerateManual(_ context.Context, req generate.ManualRequest) (*generate.Outcome, error) {
	f.calls++
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}
	return f.outcome, nil
}

type fakePinger struct {
	err error
}

func (f *fakePinger) Ping(context.Context) error { return f.err }

func newTestServer(t *testing.T, gen *fakeGenerator, pinger *fakePinger) *Server {
	t.Helper()
	deps := Dependencies{
		Logger: slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)),
	}
	if gen != nil {
		deps.Generator = gen
	}
	if pinger != nil {
		deps.HealthChecker = pinger
	}
	return NewServer(DefaultConfig(), deps)
}

func doRequest(s *Server, method, path string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(rec, req)
	return rec
}

func sampleOutcome() *generate.Outcome {
	questions := make([]quiz.Question, 3)
	for i := range questions {
		questions[i] = quiz.Question{
			Prompt:       "Quanto é 2 + 2?",
			Options:      []string{"3", "4", "5", "6"},
			CorrectIndex: 1,
			Explanation:  "2 + 2 = 4.",
		}
	}
	return &generate.Outcome{
		Set: &quiz.Set{
			ID:        42,
			ParentID:  1,
			ChildID:   7,
			Questions: questions,
			Reward:    shared.CentsFromFloat(2.50),
			Status:    quiz.StatusPending,
			CreatedAt: time.Now(),
		},
		Notified: true,
	}
}

func validBody() map[string]any {
	return map[string]any{
		"child_id":               7,
		"subject":                "matemática",
		"level":                  "easy",
		"quantity":               3,
		"reward":                 2.50,
		"whatsapp_notifications": true,
	}
}

func TestHandleGenerateQuiz(t *testing.T) {
	t.Run("creates quiz set", func(t *testing.T) {
		gen := &fakeGenerator{outcome: sampleOutcome()}
		s := newTestServer(t, gen, nil)

		rec := doRequest(s, http.MethodPost, "/generate_quiz", validBody())

		require.Equal(t, http.StatusCreated, rec.Code)

		var resp generateQuizResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, int64(42), resp.QuizSetID)
		assert.Len(t, resp.Questions, 3)
		assert.True(t, resp.Notified)
		assert.NotEmpty(t, resp.Message)

		assert.Equal(t, int64(7), gen.lastReq.ChildID)
		assert.Equal(t, quiz.DifficultyEasy, gen.lastReq.Level)
		assert.Equal(t, shared.CentsFromFloat(2.50), gen.lastReq.Reward)
		assert.True(t, gen.lastReq.WhatsAppNotifications)
	})

	t.Run("rejects malformed JSON", func(t *testing.T) {
		gen := &fakeGenerator{outcome: sampleOutcome()}
		s := newTestServer(t, gen, nil)

		req := httptest.NewRequest(http.MethodPost, "/generate_quiz", bytes.NewReader([]byte("{not json")))
		rec := httptest.NewRecorder()
		s.httpServer.Handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Zero(t, gen.calls)
	})

	t.Run("rejects unknown level", func(t *testing.T) {
		gen := &fakeGenerator{outcome: sampleOutcome()}
		s := newTestServer(t, gen, nil)

		body := validBody()
		body["level"] = "impossible"
		rec := doRequest(s, http.MethodPost, "/generate_quiz", body)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Zero(t, gen.calls)
	})

	t.Run("rejects negative reward", func(t *testing.T) {
		gen := &fakeGenerator{outcome: sampleOutcome()}
		s := newTestServer(t, gen, nil)

		body := validBody()
		body["reward"] = -1.0
		rec := doRequest(s, http.MethodPost, "/generate_quiz", body)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Zero(t, gen.calls)
	})

	t.Run("insufficient balance is 400", func(t *testing.T) {
		gen := &fakeGenerator{err: shared.ErrInsufficientBalance}
		s := newTestServer(t, gen, nil)

		rec := doRequest(s, http.MethodPost, "/generate_quiz", validBody())

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "insufficient_balance")
	})

	t.Run("unknown child is 404", func(t *testing.T) {
		gen := &fakeGenerator{err: shared.ErrChildNotFound}
		s := newTestServer(t, gen, nil)

		rec := doRequest(s, http.MethodPost, "/generate_quiz", validBody())

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("generation failure is 500", func(t *testing.T) {
		gen := &fakeGenerator{err: shared.ErrGeneration}
		s := newTestServer(t, gen, nil)

		rec := doRequest(s, http.MethodPost, "/generate_quiz", validBody())

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Contains(t, rec.Body.String(), "generation_failed")
	})

	t.Run("persistence failure is 500", func(t *testing.T) {
		gen := &fakeGenerator{err: shared.ErrPersistence}
		s := newTestServer(t, gen, nil)

		rec := doRequest(s, http.MethodPost, "/generate_quiz", validBody())

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})

	t.Run("missing generator is 503", func(t *testing.T) {
		s := newTestServer(t, nil, nil)

		rec := doRequest(s, http.MethodPost, "/generate_quiz", validBody())

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})
}

func TestHealthEndpoints(t *testing.T) {
	t.Run("health", func(t *testing.T) {
		s := newTestServer(t, nil, nil)

		rec := doRequest(s, http.MethodGet, "/health", nil)

		require.Equal(t, http.StatusOK, rec.Code)
		var resp healthResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "ok", resp.Status)
	})

	t.Run("ready when database answers", func(t *testing.T) {
		s := newTestServer(t, nil, &fakePinger{})

		rec := doRequest(s, http.MethodGet, "/ready", nil)

		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("not ready when database is down", func(t *testing.T) {
		s := newTestServer(t, nil, &fakePinger{err: errors.New("connection refused")})

		rec := doRequest(s, http.MethodGet, "/ready", nil)

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})

	t.Run("live", func(t *testing.T) {
		s := newTestServer(t, nil, nil)

		rec := doRequest(s, http.MethodGet, "/live", nil)

		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestRequestIDMiddleware(t *testing.T) {
	s := newTestServer(t, nil, nil)

	t.Run("generates an ID", func(t *testing.T) {
		rec := doRequest(s, http.MethodGet, "/health", nil)
		assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	})

	t.Run("preserves a caller ID", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set("X-Request-ID", "abc-123")
		rec := httptest.NewRecorder()
		s.httpServer.Handler.ServeHTTP(rec, req)

		assert.Equal(t, "abc-123", rec.Header().Get("X-Request-ID"))
	})
}
