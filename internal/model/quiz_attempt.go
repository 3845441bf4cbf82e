package model

import (
	"time"

	"gorm.io/datatypes"
)

type AttemptStatus string

const (
	AttemptInProgress AttemptStatus = "in_progress"
	AttemptSubmitted  AttemptStatus = "submitted"
	AttemptGraded     AttemptStatus = "graded"
)

// SubmittedAnswer 学生对单题的作答：选择题填 Selected（原始选项下标），判断题填 Value
type SubmittedAnswer struct {
	Selected []int `json:"selected,omitempty"`
	Value    *bool `json:"value,omitempty"`
}

// swagger:model QuizAttempt
type QuizAttempt struct {
	BaseModel

	UserID        uint                                         `gorm:"not null;uniqueIndex:idx_attempt_number,priority:1;index:idx_attempt_user_quiz,priority:1" json:"userId"`
	QuizID        uint                                         `gorm:"not null;uniqueIndex:idx_attempt_number,priority:2;index:idx_attempt_user_quiz,priority:2" json:"quizId"`
	AttemptNumber int                                          `gorm:"not null;uniqueIndex:idx_attempt_number,priority:3" json:"attemptNumber"`
	Status        AttemptStatus                                `gorm:"size:20;not null;default:'in_progress';index" json:"status"`
	StartTime     time.Time                                    `json:"startTime"`
	EndTime       *time.Time                                   `json:"endTime,omitempty"`
	Answers       datatypes.JSONType[map[uint]SubmittedAnswer] `json:"answers"`
	QuestionOrder datatypes.JSONSlice[uint]                    `json:"questionOrder,omitempty"`
	OptionOrder   datatypes.JSONType[map[uint][]int]           `json:"optionOrder,omitempty"`
	Score         *int                                         `json:"score,omitempty"`
	MaxScore      *int                                         `json:"maxScore,omitempty"`
	Percentage    *float64                                     `json:"percentage,omitempty"`
	Passed        bool                                         `gorm:"default:false" json:"passed"`
}

func (QuizAttempt) TableName() string {
	return "quiz_attempts"
}

func (a *QuizAttempt) IsFinalized() bool {
	return a.Status != AttemptInProgress
}

// AnswerMap returns the stored answers, never nil.
func (a *QuizAttempt) AnswerMap() map[uint]SubmittedAnswer {
	m := a.Answers.Data()
	if m == nil {
		m = make(map[uint]SubmittedAnswer)
	}
	return m
}
