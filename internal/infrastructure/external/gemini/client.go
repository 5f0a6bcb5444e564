// Package gemini implements quiz question generation with the Google
// Gemini API, using structured JSON output constrained by a schema.
package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"google.golang.org/genai"

	"github.com/kidsbank/quizhub/internal/domain/quiz"
	"github.com/kidsbank/quizhub/internal/domain/shared"
	"github.com/kidsbank/quizhub/pkg/circuitbreaker"
	"github.com/kidsbank/quizhub/pkg/retry"
)

// DefaultModel is the Gemini model used when none is configured.
const DefaultModel = "gemini-2.0-flash"

// Config holds Gemini client configuration.
type Config struct {
	APIKey      string
	Model       string
	Timeout     time.Duration
	Temperature float32
}

// DefaultConfig returns sensible generation defaults. The timeout bounds a
// single model call; retries each get a fresh timeout.
func DefaultConfig() Config {
	return Config{
		Model:       DefaultModel,
		Timeout:     60 * time.Second,
		Temperature: 0.7,
	}
}

// Client generates quiz questions via Gemini. Safe for concurrent use.
// A circuit breaker guards the API so a batch of failing children doesn't
// keep calling a dead model endpoint.
type Client struct {
	client   *genai.Client
	model    string
	timeout  time.Duration
	temp     float32
	retrier  *retry.Retrier
	breaker  *circuitbreaker.CircuitBreaker
	generate func(ctx context.Context, prompt string) (json.RawMessage, error)
	logger   *slog.Logger
}

// NewClient creates a Gemini-backed question generator.
func NewClient(ctx context.Context, cfg Config, logger *slog.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create Gemini client: %w", err)
	}

	log := logger.With("component", "gemini")

	c := &Client{
		client:  client,
		model:   cfg.Model,
		timeout: cfg.Timeout,
		temp:    cfg.Temperature,
		retrier: retry.GeminiRetrier(),
		breaker: circuitbreaker.GeminiBreaker(func(name string, from, to circuitbreaker.State) {
			log.Warn("circuit breaker state change",
				"breaker", name,
				"from", from.String(),
				"to", to.String())
		}),
		logger: log,
	}
	c.generate = c.generateOnce
	return c, nil
}

// Generate produces exactly cfg.Quantity validated questions. Rate limits
// and 5xx responses are retried with backoff; structural failures in the
// model output are not retried and wrap shared.ErrGeneration. An open
// breaker fails immediately without calling the API.
func (c *Client) Generate(ctx context.Context, cfg quiz.Config) ([]quiz.Question, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	prompt := buildPrompt(cfg)

	var questions []quiz.Question
	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		return c.retrier.Do(ctx, func(ctx context.Context) error {
			callCtx, cancel := context.WithTimeout(ctx, c.timeout)
			defer cancel()

			raw, err := c.generate(callCtx, prompt)
			if err != nil {
				return err
			}

			if err := validateQuestionsJSON(raw); err != nil {
				return retry.Permanent(shared.WrapError("quiz", "Generate", shared.ErrGeneration, "model output failed schema validation", err))
			}
			var decoded []quiz.Question
			if err := json.Unmarshal(raw, &decoded); err != nil {
				return retry.Permanent(shared.WrapError("quiz", "Generate", shared.ErrGeneration, "failed to decode model output", err))
			}
			if err := quiz.ValidateQuestions(decoded, cfg.Quantity); err != nil {
				return retry.Permanent(shared.WrapError("quiz", "Generate", shared.ErrGeneration, "model output failed question validation", err))
			}

			questions = decoded
			return nil
		})
	})
	if err != nil {
		if errors.Is(err, shared.ErrGeneration) {
			return nil, err
		}
		return nil, shared.WrapError("quiz", "Generate", shared.ErrGeneration, "gemini call failed", err)
	}

	c.logger.Debug("questions generated",
		"child_id", cfg.ChildID,
		"subject", cfg.Subject,
		"count", len(questions))

	return questions, nil
}

func (c *Client) generateOnce(ctx context.Context, prompt string) (json.RawMessage, error) {
	config := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   buildGeminiSchema(questionSchemaDef),
	}
	if c.temp > 0 {
		temp := c.temp
		config.Temperature = &temp
	}

	contents := []*genai.Content{{
		Role:  "user",
		Parts: []*genai.Part{{Text: prompt}},
	}}

	result, err := c.client.Models.GenerateContent(ctx, c.model, contents, config)
	if err != nil {
		return nil, classifyGeminiError(err)
	}

	return json.RawMessage(result.Text()), nil
}

// classifyGeminiError marks 429 and 5xx responses retryable; everything
// else is permanent.
func classifyGeminiError(err error) error {
	var apiErr *genai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == http.StatusTooManyRequests:
			return retry.Retryable(shared.WrapError("quiz", "Generate", shared.ErrRateLimited, "gemini rate limited", err))
		case apiErr.Code >= 500:
			return retry.Retryable(shared.WrapError("quiz", "Generate", shared.ErrServiceUnavailable, "gemini unavailable", err))
		}
		return retry.Permanent(err)
	}
	// Network-level failures are worth one more try.
	return retry.Retryable(err)
}

var difficultyPT = map[quiz.Difficulty]string{
	quiz.DifficultyEasy:   "fácil",
	quiz.DifficultyMedium: "médio",
	quiz.DifficultyHard:   "difícil",
}

// buildPrompt renders the Portuguese generation prompt for a config.
func buildPrompt(cfg quiz.Config) string {
	return fmt.Sprintf(
		`Crie um quiz educativo para uma criança de %d anos sobre %s, nível %s.
Gere exatamente %d perguntas de múltipla escolha. Cada pergunta deve ter
exatamente 4 opções, apenas uma correta, e uma explicação curta da resposta
correta. Use linguagem apropriada para a idade. Responda somente com JSON.`,
		cfg.Age,
		cfg.Subject,
		difficultyPT[cfg.Level],
		cfg.Quantity,
	)
}
