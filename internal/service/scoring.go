package service

import (
	"math"
	"slices"

	"github.com/mmo7amed2010/swenam-sis-sub001/internal/model"
	"github.com/mmo7amed2010/swenam-sis-sub001/internal/util"
)

type QuestionResult struct {
	QuestionID uint `json:"questionId"`
	Correct    bool `json:"correct"`
	Points     int  `json:"points"`
}

type ScoreResult struct {
	Score      int              `json:"score"`
	Total      int              `json:"total"`
	Percentage float64          `json:"percentage"`
	Passed     bool             `json:"passed"`
	Questions  []QuestionResult `json:"questions"`
}

// RoundPercentage 保留两位小数；总分为 0 时返回 0
func RoundPercentage(earned, total float64) float64 {
	if total <= 0 {
		return 0
	}
	return math.Round(earned/total*100*100) / 100
}

// ScoreAttempt 对全部题目判分，整题得分或不得分
func ScoreAttempt(questions []model.QuizQuestion, answers map[uint]model.SubmittedAnswer, passingPercent int) ScoreResult {
	res := ScoreResult{Questions: make([]QuestionResult, 0, len(questions))}
	for i := range questions {
		q := &questions[i]
		res.Total += q.Points
		ans, ok := answers[q.ID]
		correct := ok && IsCorrect(q, ans)
		qr := QuestionResult{QuestionID: q.ID, Correct: correct}
		if correct {
			qr.Points = q.Points
			res.Score += q.Points
		}
		res.Questions = append(res.Questions, qr)
	}
	res.Percentage = RoundPercentage(float64(res.Score), float64(res.Total))
	res.Passed = res.Percentage >= float64(passingPercent)
	return res
}

// IsCorrect 选择题要求所选集合与正确集合完全一致；判断题要求取值相等
func IsCorrect(q *model.QuizQuestion, ans model.SubmittedAnswer) bool {
	switch q.Type {
	case model.QuestionMultipleChoice:
		selected := slices.Clone(ans.Selected)
		slices.Sort(selected)
		selected = slices.Compact(selected)
		return slices.Equal(selected, q.CorrectOptions())
	case model.QuestionTrueFalse:
		return ans.Value != nil && q.CorrectBool != nil && *ans.Value == *q.CorrectBool
	}
	return false
}

// ValidateAnswer 检查作答形状与题型是否匹配
func ValidateAnswer(q *model.QuizQuestion, ans model.SubmittedAnswer) error {
	switch q.Type {
	case model.QuestionMultipleChoice:
		if ans.Value != nil || len(ans.Selected) == 0 {
			return util.ErrInvalidAnswer
		}
		seen := make(map[int]bool, len(ans.Selected))
		for _, idx := range ans.Selected {
			if idx < 0 || idx >= len(q.Options) || seen[idx] {
				return util.ErrInvalidAnswer
			}
			seen[idx] = true
		}
		return nil
	case model.QuestionTrueFalse:
		if ans.Value == nil || len(ans.Selected) > 0 {
			return util.ErrInvalidAnswer
		}
		return nil
	}
	return util.ErrInvalidAnswer
}
