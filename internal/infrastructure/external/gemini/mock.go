package gemini

import (
	"context"
	"fmt"

	"github.com/kidsbank/quizhub/internal/domain/quiz"
)

// MockGenerator produces deterministic questions without calling any API.
// Used in development mode and tests.
type MockGenerator struct {
	// Err, when set, is returned from every Generate call.
	Err error
}

// Generate returns cfg.Quantity synthetic questions.
func (m *MockGenerator) Generate(_ context.Context, cfg quiz.Config) ([]quiz.Question, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	questions := make([]quiz.Question, cfg.Quantity)
	for i := range questions {
		questions[i] = quiz.Question{
			Prompt: fmt.Sprintf("Pergunta %d sobre %s (nível %s)", i+1, cfg.Subject, cfg.Level),
			Options: []string{
				"Alternativa A",
				"Alternativa B",
				"Alternativa C",
				"Alternativa D",
			},
			CorrectIndex: i % quiz.OptionCount,
			Explanation:  fmt.Sprintf("A alternativa %d é a correta.", i%quiz.OptionCount+1),
		}
	}
	return questions, nil
}
