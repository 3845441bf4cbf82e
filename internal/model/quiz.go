package model

import (
	"gorm.io/datatypes"
)

const (
	AssessmentQuiz = "quiz"
	AssessmentExam = "exam"

	ScopeLesson = "lesson"
	ScopeModule = "module"

	QuestionMultipleChoice = "multiple_choice"
	QuestionTrueFalse      = "true_false"

	// UnlimitedAttempts 作为 MaxAttempts 的哨兵值
	UnlimitedAttempts = 0
)

// swagger:model Quiz
type Quiz struct {
	BaseModel

	CourseID            uint   `gorm:"index;not null" json:"courseId"`
	ModuleID            *uint  `gorm:"index" json:"moduleId,omitempty"`
	Title               string `gorm:"size:255;not null" json:"title"`
	TotalPoints         int    `gorm:"default:0" json:"totalPoints"`
	MaxAttempts         int    `gorm:"default:0" json:"maxAttempts"`
	PassingScorePercent int    `gorm:"not null" json:"passingScorePercent"`
	ShuffleQuestions    bool   `gorm:"default:false" json:"shuffleQuestions"`
	ShuffleAnswers      bool   `gorm:"default:false" json:"shuffleAnswers"`
	AssessmentType      string `gorm:"size:20;default:'quiz'" json:"assessmentType"`
	Scope               string `gorm:"size:20;default:'lesson'" json:"scope"`
	IsRetakeExam        bool   `gorm:"default:false" json:"isRetakeExam"`
	PrimaryExamID       *uint  `gorm:"index" json:"primaryExamId,omitempty"`
	IsPublished         bool   `gorm:"default:false" json:"isPublished"`

	Questions []QuizQuestion `gorm:"foreignKey:QuizID" json:"questions,omitempty"`
}

func (Quiz) TableName() string {
	return "quizzes"
}

func (q *Quiz) Unlimited() bool {
	return q.MaxAttempts == UnlimitedAttempts
}

// IsModuleExam reports whether the quiz is a module-level exam (primary or retake).
func (q *Quiz) IsModuleExam() bool {
	return q.AssessmentType == AssessmentExam && q.Scope == ScopeModule && q.ModuleID != nil
}

// IsPrimaryExam reports whether the quiz gates its module.
func (q *Quiz) IsPrimaryExam() bool {
	return q.IsModuleExam() && !q.IsRetakeExam
}

type AnswerOption struct {
	Text      string `json:"text"`
	IsCorrect bool   `json:"isCorrect"`
}

// swagger:model QuizQuestion
type QuizQuestion struct {
	BaseModel

	QuizID      uint                              `gorm:"index;not null" json:"quizId"`
	Type        string                            `gorm:"size:30;not null" json:"type"`
	Prompt      string                            `gorm:"type:text" json:"prompt"`
	Points      int                               `gorm:"not null" json:"points"`
	Position    int                               `gorm:"default:0" json:"position"`
	Options     datatypes.JSONSlice[AnswerOption] `json:"options,omitempty"`
	CorrectBool *bool                             `json:"correctBool,omitempty"`
}

func (QuizQuestion) TableName() string {
	return "quiz_questions"
}

// CorrectOptions returns the indices flagged correct, in ascending order.
func (q *QuizQuestion) CorrectOptions() []int {
	var idx []int
	for i, o := range q.Options {
		if o.IsCorrect {
			idx = append(idx, i)
		}
	}
	return idx
}
