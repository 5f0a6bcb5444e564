package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/kidsbank/quizhub/internal/domain/quiz"
	"github.com/kidsbank/quizhub/pkg/circuitbreaker"
	"github.com/kidsbank/quizhub/pkg/retry"
)

func TestValidateQuestionsJSON(t *testing.T) {
	valid := `[
		{
			"prompt": "Quanto é 2 + 2?",
			"options": ["3", "4", "5", "6"],
			"correct_index": 1,
			"explanation": "2 + 2 = 4."
		}
	]`

	tests := []struct {
		name    string
		raw     string
		wantErr bool
	}{
		{"valid array", valid, false},
		{"empty array", `[]`, false},
		{"not JSON", `not json at all`, true},
		{"object instead of array", `{"prompt": "x"}`, true},
		{"missing explanation", `[{"prompt": "x", "options": ["a","b","c","d"], "correct_index": 0}]`, true},
		{"three options", `[{"prompt": "x", "options": ["a","b","c"], "correct_index": 0, "explanation": "e"}]`, true},
		{"five options", `[{"prompt": "x", "options": ["a","b","c","d","e"], "correct_index": 0, "explanation": "e"}]`, true},
		{"string correct_index", `[{"prompt": "x", "options": ["a","b","c","d"], "correct_index": "0", "explanation": "e"}]`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateQuestionsJSON(json.RawMessage(tt.raw))
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestBuildGeminiSchema(t *testing.T) {
	schema := buildGeminiSchema(questionSchemaDef)
	require.NotNil(t, schema)

	assert.Equal(t, genai.TypeArray, schema.Type)
	require.NotNil(t, schema.Items)
	assert.Equal(t, genai.TypeObject, schema.Items.Type)
	assert.Contains(t, schema.Items.Properties, "prompt")
	assert.Contains(t, schema.Items.Properties, "options")
	assert.Contains(t, schema.Items.Properties, "correct_index")
	assert.Contains(t, schema.Items.Properties, "explanation")
	assert.ElementsMatch(t,
		[]string{"prompt", "options", "correct_index", "explanation"},
		schema.Items.Required)
}

func TestBuildPrompt(t *testing.T) {
	cfg := quiz.Config{
		ChildID:  1,
		Subject:  "matemática",
		Age:      8,
		Level:    quiz.DifficultyEasy,
		Quantity: 5,
	}

	prompt := buildPrompt(cfg)
	assert.Contains(t, prompt, "8 anos")
	assert.Contains(t, prompt, "matemática")
	assert.Contains(t, prompt, "fácil")
	assert.Contains(t, prompt, "5 perguntas")
	assert.Contains(t, prompt, "4 opções")
}

func TestGenerateBreakerOpensOnRepeatedFailures(t *testing.T) {
	cfg := quiz.Config{
		ChildID:  1,
		Subject:  "matemática",
		Age:      8,
		Level:    quiz.DifficultyEasy,
		Quantity: 2,
		Cadence:  quiz.CadenceDaily,
	}

	calls := 0
	c := &Client{
		model:   DefaultModel,
		timeout: time.Second,
		retrier: retry.New(retry.WithMaxAttempts(1)),
		breaker: circuitbreaker.GeminiBreaker(nil),
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	c.generate = func(_ context.Context, _ string) (json.RawMessage, error) {
		calls++
		return nil, retry.Retryable(errors.New("gemini unavailable"))
	}

	for i := 0; i < 3; i++ {
		_, err := c.Generate(context.Background(), cfg)
		require.Error(t, err)
	}
	require.Equal(t, 3, calls)

	_, err := c.Generate(context.Background(), cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, circuitbreaker.ErrCircuitOpen)
	assert.Equal(t, 3, calls, "an open breaker must not reach the API")
}

func TestMockGenerator(t *testing.T) {
	cfg := quiz.Config{
		ChildID:  1,
		Subject:  "ciências",
		Age:      10,
		Level:    quiz.DifficultyMedium,
		Quantity: 4,
		Reward:   100,
		Cadence:  quiz.CadenceDaily,
	}

	gen := &MockGenerator{}
	questions, err := gen.Generate(context.Background(), cfg)
	require.NoError(t, err)
	require.Len(t, questions, 4)
	assert.NoError(t, quiz.ValidateQuestions(questions, 4))

	t.Run("invalid config rejected", func(t *testing.T) {
		bad := cfg
		bad.Quantity = 0
		_, err := gen.Generate(context.Background(), bad)
		assert.Error(t, err)
	})
}
