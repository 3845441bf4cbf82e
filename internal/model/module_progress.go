package model

import "time"

type ModuleStatus string

const (
	ModuleNotStarted ModuleStatus = "not_started"
	ModuleInProgress ModuleStatus = "in_progress"
	ModuleCompleted  ModuleStatus = "completed"
	ModuleExamFailed ModuleStatus = "exam_failed"
	ModuleExamLocked ModuleStatus = "exam_locked"
)

// Terminal reports whether no further transition is possible without administrative action.
func (s ModuleStatus) Terminal() bool {
	return s == ModuleCompleted || s == ModuleExamLocked
}

// ModuleProgress 学习者在单个模块上的状态，每次都由当前数据全量重算
// swagger:model ModuleProgress
type ModuleProgress struct {
	BaseModel

	UserID   uint         `gorm:"not null;uniqueIndex:idx_user_module,priority:1" json:"userId"`
	ModuleID uint         `gorm:"not null;uniqueIndex:idx_user_module,priority:2;index" json:"moduleId"`
	Status   ModuleStatus `gorm:"size:20;not null;default:'not_started'" json:"status"`

	ExamAttemptsUsed int        `gorm:"default:0" json:"examAttemptsUsed"`
	ExamFirstScore   *float64   `json:"examFirstScore,omitempty"`
	ExamBestScore    *float64   `json:"examBestScore,omitempty"`
	ExamPassedAt     *time.Time `json:"examPassedAt,omitempty"`

	PrimaryExamFailed bool       `gorm:"default:false" json:"primaryExamFailed"`
	RetakeExamFailed  bool       `gorm:"default:false" json:"retakeExamFailed"`
	RetakeUnlockedAt  *time.Time `json:"retakeUnlockedAt,omitempty"`
	RetakePassedAt    *time.Time `json:"retakePassedAt,omitempty"`

	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

func (ModuleProgress) TableName() string {
	return "module_progress"
}

// swagger:model CourseGrade
type CourseGrade struct {
	BaseModel

	UserID       uint    `gorm:"not null;uniqueIndex:idx_user_course,priority:1" json:"userId"`
	CourseID     uint    `gorm:"not null;uniqueIndex:idx_user_course,priority:2" json:"courseId"`
	PointsEarned float64 `json:"pointsEarned"`
	PointsTotal  float64 `json:"pointsTotal"`
	Percentage   float64 `json:"percentage"`
}

func (CourseGrade) TableName() string {
	return "course_grades"
}
