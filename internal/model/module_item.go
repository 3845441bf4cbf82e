package model

import (
	"fmt"
	"time"
)

type ItemKind string

const (
	ItemKindLesson     ItemKind = "lesson"
	ItemKindQuiz       ItemKind = "quiz"
	ItemKindAssignment ItemKind = "assignment"
)

// ModuleItem 模块内的一个内容项（课时/测验/作业），同一内容记录最多对应一个 ModuleItem
// swagger:model ModuleItem
type ModuleItem struct {
	BaseModel

	ModuleID    uint       `gorm:"index;not null" json:"moduleId"`
	ContentKind ItemKind   `gorm:"size:20;not null;uniqueIndex:idx_item_content,priority:1" json:"contentKind"`
	ContentID   uint       `gorm:"not null;uniqueIndex:idx_item_content,priority:2" json:"contentId"`
	Position    int        `gorm:"not null;index" json:"position"`
	Required    bool       `gorm:"not null" json:"required"`
	ReleaseAt   *time.Time `json:"releaseAt,omitempty"`
}

func (ModuleItem) TableName() string {
	return "module_items"
}

// Released reports whether the item is visible at now.
func (i *ModuleItem) Released(now time.Time) bool {
	return i.ReleaseAt == nil || !now.Before(*i.ReleaseAt)
}

// Ref converts the persisted kind/id pair into the closed ItemRef union.
func (i *ModuleItem) Ref() (ItemRef, error) {
	ref, err := NewItemRef(i.ContentKind, i.ContentID)
	if err != nil {
		return nil, fmt.Errorf("module item %d: %w", i.ID, err)
	}
	return ref, nil
}

func NewItemRef(kind ItemKind, contentID uint) (ItemRef, error) {
	switch kind {
	case ItemKindLesson:
		return LessonRef{LessonID: contentID}, nil
	case ItemKindQuiz:
		return QuizRef{QuizID: contentID}, nil
	case ItemKindAssignment:
		return AssignmentRef{AssignmentID: contentID}, nil
	}
	return nil, fmt.Errorf("unknown content kind %q", kind)
}

// ItemRef is implemented only by LessonRef, QuizRef and AssignmentRef.
type ItemRef interface {
	Kind() ItemKind
	ContentID() uint
	sealed()
}

type LessonRef struct{ LessonID uint }

type QuizRef struct{ QuizID uint }

type AssignmentRef struct{ AssignmentID uint }

func (LessonRef) Kind() ItemKind { return ItemKindLesson }
func (r LessonRef) ContentID() uint { return r.LessonID }
func (LessonRef) sealed() {}
func (QuizRef) Kind() ItemKind { return ItemKindQuiz }
func (r QuizRef) ContentID() uint { return r.QuizID }
func (QuizRef) sealed() {}
func (AssignmentRef) Kind() ItemKind { return ItemKindAssignment }
func (r AssignmentRef) ContentID() uint { return r.AssignmentID }
func (AssignmentRef) sealed() {}

// MatchRef dispatches on the concrete reference. Adding a kind changes this
// signature, so every call site has to handle it.
func MatchRef[T any](
	ref ItemRef,
	onLesson func(LessonRef) T,
	onQuiz func(QuizRef) T,
	onAssignment func(AssignmentRef) T,
) T {
	switch r := ref.(type) {
	case LessonRef:
		return onLesson(r)
	case QuizRef:
		return onQuiz(r)
	case AssignmentRef:
		return onAssignment(r)
	}
	panic(fmt.Sprintf("unreachable item ref %T", ref))
}
