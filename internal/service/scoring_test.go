package service

import (
	"testing"

	"github.com/mmo7amed2010/swenam-sis-sub001/internal/model"
	"github.com/mmo7amed2010/swenam-sis-sub001/internal/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func boolPtr(b bool) *bool {
	return &b
}

func mcq(id uint, points int, correct ...int) model.QuizQuestion {
	q := model.QuizQuestion{Type: model.QuestionMultipleChoice, Points: points}
	q.ID = id
	for i, text := range []string{"A", "B", "C", "D"} {
		q.Options = append(q.Options, model.AnswerOption{Text: text})
		for _, c := range correct {
			if c == i {
				q.Options[i].IsCorrect = true
			}
		}
	}
	return q
}

func trueFalse(id uint, points int, correct bool) model.QuizQuestion {
	q := model.QuizQuestion{Type: model.QuestionTrueFalse, Points: points, CorrectBool: boolPtr(correct)}
	q.ID = id
	return q
}

func TestScoreAttemptAllCorrect(t *testing.T) {
	questions := []model.QuizQuestion{mcq(1, 5, 1), trueFalse(2, 3, true)}
	answers := map[uint]model.SubmittedAnswer{
		1: {Selected: []int{1}},
		2: {Value: boolPtr(true)},
	}

	res := ScoreAttempt(questions, answers, 60)

	assert.Equal(t, 8, res.Score)
	assert.Equal(t, 8, res.Total)
	assert.Equal(t, 100.0, res.Percentage)
	assert.True(t, res.Passed)
	require.Len(t, res.Questions, 2)
	assert.True(t, res.Questions[0].Correct)
	assert.Equal(t, 5, res.Questions[0].Points)
}

func TestScoreAttemptPartial(t *testing.T) {
	questions := []model.QuizQuestion{mcq(1, 5, 1), trueFalse(2, 3, true)}
	answers := map[uint]model.SubmittedAnswer{
		1: {Selected: []int{1}},
		2: {Value: boolPtr(false)},
	}

	res := ScoreAttempt(questions, answers, 70)

	assert.Equal(t, 5, res.Score)
	assert.Equal(t, 62.5, res.Percentage)
	assert.False(t, res.Passed)
}

func TestScoreAttemptUnanswered(t *testing.T) {
	questions := []model.QuizQuestion{mcq(1, 1, 0), mcq(2, 1, 0), mcq(3, 1, 0)}
	answers := map[uint]model.SubmittedAnswer{1: {Selected: []int{0}}}

	res := ScoreAttempt(questions, answers, 30)

	assert.Equal(t, 1, res.Score)
	assert.Equal(t, 33.33, res.Percentage)
	assert.True(t, res.Passed)
}

func TestIsCorrectMultipleChoiceSet(t *testing.T) {
	q := mcq(1, 2, 0, 2)

	assert.True(t, IsCorrect(&q, model.SubmittedAnswer{Selected: []int{2, 0}}))
	assert.True(t, IsCorrect(&q, model.SubmittedAnswer{Selected: []int{0, 2, 2}}))
	assert.False(t, IsCorrect(&q, model.SubmittedAnswer{Selected: []int{0}}))
	assert.False(t, IsCorrect(&q, model.SubmittedAnswer{Selected: []int{0, 1, 2}}))
}

func TestRoundPercentage(t *testing.T) {
	assert.Equal(t, 0.0, RoundPercentage(0, 0))
	assert.Equal(t, 66.67, RoundPercentage(2, 3))
	assert.Equal(t, 100.0, RoundPercentage(7, 7))
}

func TestValidateAnswer(t *testing.T) {
	q := mcq(1, 1, 0)
	tf := trueFalse(2, 1, true)

	assert.NoError(t, ValidateAnswer(&q, model.SubmittedAnswer{Selected: []int{3}}))
	assert.ErrorIs(t, ValidateAnswer(&q, model.SubmittedAnswer{Selected: []int{4}}), util.ErrInvalidAnswer)
	assert.ErrorIs(t, ValidateAnswer(&q, model.SubmittedAnswer{Selected: []int{1, 1}}), util.ErrInvalidAnswer)
	assert.ErrorIs(t, ValidateAnswer(&q, model.SubmittedAnswer{Value: boolPtr(true)}), util.ErrInvalidAnswer)
	assert.NoError(t, ValidateAnswer(&tf, model.SubmittedAnswer{Value: boolPtr(false)}))
	assert.ErrorIs(t, ValidateAnswer(&tf, model.SubmittedAnswer{}), util.ErrInvalidAnswer)
}
