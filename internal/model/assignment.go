package model

import (
	"time"

	"gorm.io/datatypes"
)

const (
	SubmissionTypeFile     = "file"
	SubmissionTypeText     = "text"
	SubmissionTypeURL      = "url"
	SubmissionTypeMultiple = "multiple"
)

type SubmissionStatus string

const (
	SubmissionDraft     SubmissionStatus = "draft"
	SubmissionSubmitted SubmissionStatus = "submitted"
	SubmissionGraded    SubmissionStatus = "graded"
	SubmissionReturned  SubmissionStatus = "returned"
)

// Assignment 作业；按自定进度设计，不含截止时间与迟交扣分字段
// swagger:model Assignment
type Assignment struct {
	BaseModel

	CourseID            uint   `gorm:"index;not null" json:"courseId"`
	ModuleID            *uint  `gorm:"index" json:"moduleId,omitempty"`
	Title               string `gorm:"size:255;not null" json:"title"`
	Instructions        string `gorm:"type:text" json:"instructions"`
	SubmissionType      string `gorm:"size:20;not null;default:'text'" json:"submissionType"`
	TotalPoints         int    `gorm:"default:100" json:"totalPoints"`
	PassingScorePercent int    `gorm:"not null" json:"passingScorePercent"`
}

func (Assignment) TableName() string {
	return "assignments"
}

// SubmissionContent 提交内容字段，归档时逐字复制
type SubmissionContent struct {
	TextContent string                      `gorm:"type:text" json:"textContent"`
	URL         string                      `gorm:"size:1024" json:"url"`
	FileURLs    datatypes.JSONSlice[string] `json:"fileUrls"`
}

// Submission 每个 (学生, 作业) 仅一条当前记录，重新提交时旧内容写入 SubmissionHistory
// swagger:model Submission
type Submission struct {
	BaseModel

	UserID        uint             `gorm:"not null;uniqueIndex:idx_submission_user_assignment,priority:1" json:"userId"`
	AssignmentID  uint             `gorm:"not null;uniqueIndex:idx_submission_user_assignment,priority:2;index" json:"assignmentId"`
	AttemptNumber int              `gorm:"not null" json:"attemptNumber"`
	Status        SubmissionStatus `gorm:"size:20;not null;default:'submitted'" json:"status"`
	SubmittedAt   time.Time        `json:"submittedAt"`

	SubmissionContent `gorm:"embedded"`
}

func (Submission) TableName() string {
	return "submissions"
}

// SubmissionHistory 只追加，写入后不再修改
// swagger:model SubmissionHistory
type SubmissionHistory struct {
	ID            uint             `gorm:"primaryKey;autoIncrement" json:"id"`
	SubmissionID  uint             `gorm:"index;not null" json:"submissionId"`
	UserID        uint             `gorm:"not null;uniqueIndex:idx_history_attempt,priority:1" json:"userId"`
	AssignmentID  uint             `gorm:"not null;uniqueIndex:idx_history_attempt,priority:2" json:"assignmentId"`
	AttemptNumber int              `gorm:"not null;uniqueIndex:idx_history_attempt,priority:3" json:"attemptNumber"`
	Status        SubmissionStatus `gorm:"size:20" json:"status"`
	SubmittedAt   time.Time        `json:"submittedAt"`
	ArchivedAt    time.Time        `gorm:"autoCreateTime" json:"archivedAt"`

	SubmissionContent `gorm:"embedded"`
}

func (SubmissionHistory) TableName() string {
	return "submission_histories"
}

// Grade 每次评分生成新版本，从不覆盖旧版本
// swagger:model Grade
type Grade struct {
	BaseModel

	SubmissionID      uint    `gorm:"not null;uniqueIndex:idx_grade_version,priority:1" json:"submissionId"`
	Version           int     `gorm:"not null;uniqueIndex:idx_grade_version,priority:2" json:"version"`
	SubmissionAttempt int     `json:"submissionAttempt"`
	PointsAwarded     float64 `json:"pointsAwarded"`
	MaxPoints         float64 `json:"maxPoints"`
	Percentage        float64 `json:"percentage"`
	IsPublished       bool    `gorm:"default:false;index" json:"isPublished"`
	GradedBy          uint    `json:"gradedBy"`
	Feedback          string  `gorm:"type:text" json:"feedback"`
}

func (Grade) TableName() string {
	return "grades"
}
