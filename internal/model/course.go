package model

// swagger:model Course
type Course struct {
	BaseModel

	Title       string         `gorm:"size:255;not null" json:"title"`
	Description string         `gorm:"type:text" json:"description"`
	CreatorID   uint           `gorm:"index" json:"creatorId"`
	State       LifecycleState `gorm:"size:20;not null;default:'active';index" json:"state"`
}

func (Course) TableName() string {
	return "courses"
}

// swagger:model Module
type Module struct {
	BaseModel

	CourseID         uint           `gorm:"index;not null" json:"courseId"`
	Title            string         `gorm:"size:255;not null" json:"title"`
	Position         int            `gorm:"not null;default:0" json:"position"`
	RequiresExamPass bool           `gorm:"default:false" json:"requiresExamPass"`
	State            LifecycleState `gorm:"size:20;not null;default:'active';index" json:"state"`
}

func (Module) TableName() string {
	return "modules"
}

func (m *Module) IsActive() bool {
	return m.State == StateActive
}

// swagger:model Lesson
type Lesson struct {
	BaseModel

	CourseID uint   `gorm:"index;not null" json:"courseId"`
	Title    string `gorm:"size:255;not null" json:"title"`
	Body     string `gorm:"type:text" json:"body"`
}

func (Lesson) TableName() string {
	return "lessons"
}
