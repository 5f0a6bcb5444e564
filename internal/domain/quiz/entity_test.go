package quiz

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kidsbank/quizhub/internal/domain/shared"
)

func validQuestion() Question {
	return Question{
		Prompt:       "Quanto é 7 x 8?",
		Options:      []string{"54", "56", "58", "64"},
		CorrectIndex: 1,
		Explanation:  "7 x 8 = 56.",
	}
}

func TestQuestionValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Question)
		wantErr error
	}{
		{
			name:   "valid",
			mutate: func(q *Question) {},
		},
		{
			name:    "empty prompt",
			mutate:  func(q *Question) { q.Prompt = "" },
			wantErr: shared.ErrEmptyValue,
		},
		{
			name:    "too few options",
			mutate:  func(q *Question) { q.Options = q.Options[:3] },
			wantErr: shared.ErrInvalidEntity,
		},
		{
			name:    "too many options",
			mutate:  func(q *Question) { q.Options = append(q.Options, "72") },
			wantErr: shared.ErrInvalidEntity,
		},
		{
			name:    "empty option",
			mutate:  func(q *Question) { q.Options[2] = "" },
			wantErr: shared.ErrEmptyValue,
		},
		{
			name:    "negative correct index",
			mutate:  func(q *Question) { q.CorrectIndex = -1 },
			wantErr: shared.ErrValueOutOfRange,
		},
		{
			name:    "correct index past last option",
			mutate:  func(q *Question) { q.CorrectIndex = 4 },
			wantErr: shared.ErrValueOutOfRange,
		},
		{
			name:    "empty explanation",
			mutate:  func(q *Question) { q.Explanation = "" },
			wantErr: shared.ErrEmptyValue,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := validQuestion()
			tt.mutate(&q)
			err := q.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestValidateQuestions(t *testing.T) {
	batch := []Question{validQuestion(), validQuestion(), validQuestion()}

	t.Run("matching count", func(t *testing.T) {
		assert.NoError(t, ValidateQuestions(batch, 3))
	})

	t.Run("count mismatch", func(t *testing.T) {
		err := ValidateQuestions(batch, 5)
		require.Error(t, err)
		assert.ErrorIs(t, err, shared.ErrInvalidEntity)
	})

	t.Run("invalid question reports position", func(t *testing.T) {
		bad := []Question{validQuestion(), {}, validQuestion()}
		err := ValidateQuestions(bad, 3)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "question 1")
	})
}

func TestParseStatus(t *testing.T) {
	for _, raw := range []string{"pending", "completed", "failed"} {
		s, err := ParseStatus(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, raw, s.String())
	}

	_, err := ParseStatus("archived")
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrInvalidState)
}

func TestNewSetValidate(t *testing.T) {
	valid := NewSet{
		ParentID:  1,
		ChildID:   2,
		Questions: []Question{validQuestion()},
		Reward:    shared.Cents(500),
		Automatic: true,
	}

	t.Run("valid", func(t *testing.T) {
		assert.NoError(t, valid.Validate())
	})

	t.Run("zero parent id", func(t *testing.T) {
		s := valid
		s.ParentID = 0
		assert.ErrorIs(t, s.Validate(), shared.ErrInvalidID)
	})

	t.Run("zero child id", func(t *testing.T) {
		s := valid
		s.ChildID = 0
		assert.ErrorIs(t, s.Validate(), shared.ErrInvalidID)
	})

	t.Run("negative reward", func(t *testing.T) {
		s := valid
		s.Reward = shared.Cents(-1)
		assert.ErrorIs(t, s.Validate(), shared.ErrNegativeValue)
	})

	t.Run("zero reward allowed", func(t *testing.T) {
		s := valid
		s.Reward = 0
		assert.NoError(t, s.Validate())
	})

	t.Run("no questions", func(t *testing.T) {
		s := valid
		s.Questions = nil
		assert.ErrorIs(t, s.Validate(), shared.ErrEmptyValue)
	})
}
