package service

import (
	"testing"
	"time"

	"github.com/mmo7amed2010/swenam-sis-sub001/internal/model"
	"github.com/mmo7amed2010/swenam-sis-sub001/internal/repository"
	"github.com/mmo7amed2010/swenam-sis-sub001/internal/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func positions(t *testing.T, f *fixture, moduleID uint) map[uint]int {
	t.Helper()
	items, err := f.items.CollectItems(f.ctx, moduleID)
	require.NoError(t, err)
	out := make(map[uint]int, len(items))
	for _, item := range items {
		out[item.ID] = item.Position
	}
	return out
}

func TestAddItemAppendsAndInserts(t *testing.T) {
	f := newFixture(t)
	c := f.course(t)
	m := f.module(t, c.ID, false)

	first := f.placeLesson(t, c.ID, m.ID, AddItemOptions{})
	second := f.placeLesson(t, c.ID, m.ID, AddItemOptions{})
	pos := 1
	inserted := f.placeLesson(t, c.ID, m.ID, AddItemOptions{Position: &pos})

	assert.Equal(t, map[uint]int{inserted.ID: 1, first.ID: 2, second.ID: 3}, positions(t, f, m.ID))
	assert.True(t, first.Required)
}

func TestAddItemOptionalStaysOptional(t *testing.T) {
	f := newFixture(t)
	c := f.course(t)
	m := f.module(t, c.ID, false)

	optional := false
	item := f.placeLesson(t, c.ID, m.ID, AddItemOptions{Required: &optional})

	stored, err := f.items.GetItem(f.ctx, item.ID)
	require.NoError(t, err)
	assert.False(t, stored.Required)
}

func TestAddItemPlacementRules(t *testing.T) {
	f := newFixture(t)
	c := f.course(t)
	m1 := f.module(t, c.ID, false)
	m2 := f.module(t, c.ID, false)

	l := f.lesson(t, c.ID)
	_, err := f.items.AddItem(f.ctx, teacherActor, m1.ID, model.LessonRef{LessonID: l.ID}, AddItemOptions{})
	require.NoError(t, err)

	_, err = f.items.AddItem(f.ctx, teacherActor, m2.ID, model.LessonRef{LessonID: l.ID}, AddItemOptions{})
	assert.ErrorIs(t, err, util.ErrContentAlreadyPlaced)

	other := f.course(t)
	foreign := f.lesson(t, other.ID)
	_, err = f.items.AddItem(f.ctx, teacherActor, m1.ID, model.LessonRef{LessonID: foreign.ID}, AddItemOptions{})
	assert.ErrorIs(t, err, util.ErrContentMismatch)

	_, err = f.items.AddItem(f.ctx, teacherActor, m1.ID, model.QuizRef{QuizID: 999}, AddItemOptions{})
	assert.ErrorIs(t, err, util.ErrQuizNotFound)

	require.NoError(t, f.courses.ArchiveModule(f.ctx, teacherActor, m2.ID))
	_, err = f.items.AddItem(f.ctx, teacherActor, m2.ID, model.LessonRef{LessonID: f.lesson(t, c.ID).ID}, AddItemOptions{})
	assert.ErrorIs(t, err, util.ErrModuleArchived)
}

func TestReorderRequiresPermutation(t *testing.T) {
	f := newFixture(t)
	c := f.course(t)
	m := f.module(t, c.ID, false)

	a := f.placeLesson(t, c.ID, m.ID, AddItemOptions{})
	b := f.placeLesson(t, c.ID, m.ID, AddItemOptions{})
	d := f.placeLesson(t, c.ID, m.ID, AddItemOptions{})
	before := positions(t, f, m.ID)

	err := f.items.Reorder(f.ctx, teacherActor, m.ID, []uint{a.ID, b.ID})
	assert.ErrorIs(t, err, util.ErrInvalidOrder)
	err = f.items.Reorder(f.ctx, teacherActor, m.ID, []uint{a.ID, b.ID, 999})
	assert.ErrorIs(t, err, util.ErrInvalidOrder)
	err = f.items.Reorder(f.ctx, teacherActor, m.ID, []uint{a.ID, a.ID, b.ID})
	assert.ErrorIs(t, err, util.ErrInvalidOrder)
	assert.Equal(t, before, positions(t, f, m.ID))

	require.NoError(t, f.items.Reorder(f.ctx, teacherActor, m.ID, []uint{d.ID, a.ID, b.ID}))
	assert.Equal(t, map[uint]int{d.ID: 1, a.ID: 2, b.ID: 3}, positions(t, f, m.ID))
}

func TestRemoveItemCompactsPositions(t *testing.T) {
	f := newFixture(t)
	c := f.course(t)
	m := f.module(t, c.ID, false)

	a := f.placeLesson(t, c.ID, m.ID, AddItemOptions{})
	b := f.placeLesson(t, c.ID, m.ID, AddItemOptions{})
	d := f.placeLesson(t, c.ID, m.ID, AddItemOptions{})

	_, err := f.progress.RecordAccess(f.ctx, learnerActor, b.ID)
	require.NoError(t, err)

	require.NoError(t, f.items.RemoveItem(f.ctx, teacherActor, b.ID))
	assert.Equal(t, map[uint]int{a.ID: 1, d.ID: 2}, positions(t, f, m.ID))

	_, err = f.progress.ItemProgressRepo.Find(f.ctx, learnerActor.UserID, b.ID)
	assert.Error(t, err)

	// 内容本身保留，可以重新放入
	_, err = f.items.AddItem(f.ctx, teacherActor, m.ID, model.LessonRef{LessonID: b.ContentID}, AddItemOptions{})
	assert.NoError(t, err)

	assert.ErrorIs(t, f.items.RemoveItem(f.ctx, teacherActor, b.ID), util.ErrItemNotFound)

	audit, err := repository.NewAuditRepository(f.db).ListByEntity(f.ctx, "module_item", b.ID)
	require.NoError(t, err)
	require.Len(t, audit, 2)
	assert.Equal(t, "item.add", audit[0].Action)
	assert.Equal(t, "item.remove", audit[1].Action)
	assert.Equal(t, teacherActor.UserID, audit[1].ActorID)
	assert.Equal(t, teacherActor.SourceIP, audit[1].SourceIP)
}

func TestListItemsPagesInOrder(t *testing.T) {
	f := newFixture(t)
	f.items.PageSize = 2
	c := f.course(t)
	m := f.module(t, c.ID, false)

	var want []uint
	for range 5 {
		want = append(want, f.placeLesson(t, c.ID, m.ID, AddItemOptions{}).ID)
	}

	seq := f.items.ListItems(f.ctx, m.ID)
	for range 2 {
		var got []uint
		for item, err := range seq {
			require.NoError(t, err)
			got = append(got, item.ID)
		}
		assert.Equal(t, want, got)
	}

	count := 0
	for _, err := range seq {
		require.NoError(t, err)
		count++
		if count == 3 {
			break
		}
	}
	assert.Equal(t, 3, count)
}

func TestResolveContent(t *testing.T) {
	f := newFixture(t)
	c := f.course(t)
	m := f.module(t, c.ID, false)

	quiz := f.publishedQuiz(t, CreateQuizRequest{CourseID: c.ID, PassingScorePercent: 50}, trueFalseRequest(1, true))
	item, err := f.items.AddItem(f.ctx, teacherActor, m.ID, model.QuizRef{QuizID: quiz.ID}, AddItemOptions{})
	require.NoError(t, err)

	content, err := f.items.ResolveContent(f.ctx, item)
	require.NoError(t, err)
	assert.Equal(t, model.ItemKindQuiz, content.Kind)
	require.NotNil(t, content.Quiz)
	assert.Equal(t, quiz.ID, content.Quiz.ID)
	assert.Nil(t, content.Lesson)

	dangling := &model.ModuleItem{ModuleID: m.ID, ContentKind: model.ItemKindLesson, ContentID: 4242}
	_, err = f.items.ResolveContent(f.ctx, dangling)
	assert.ErrorIs(t, err, util.ErrIntegrityViolation)
}

func TestListItemsKeepsTiedPositions(t *testing.T) {
	f := newFixture(t)
	f.items.PageSize = 1
	c := f.course(t)
	m := f.module(t, c.ID, false)

	a := f.placeLesson(t, c.ID, m.ID, AddItemOptions{})
	b := f.placeLesson(t, c.ID, m.ID, AddItemOptions{})
	d := f.placeLesson(t, c.ID, m.ID, AddItemOptions{})
	// 并发追加可能留下相同的 position
	require.NoError(t, f.db.Model(&model.ModuleItem{}).Where("id = ?", b.ID).
		UpdateColumn("position", a.Position).Error)

	items, err := f.items.CollectItems(f.ctx, m.ID)
	require.NoError(t, err)
	var got []uint
	for _, item := range items {
		got = append(got, item.ID)
	}
	assert.Equal(t, []uint{a.ID, b.ID, d.ID}, got)
}

func TestListItemsChecksModuleState(t *testing.T) {
	f := newFixture(t)
	c := f.course(t)
	m := f.module(t, c.ID, false)
	f.placeLesson(t, c.ID, m.ID, AddItemOptions{})

	_, err := f.items.CollectItems(f.ctx, 999)
	assert.ErrorIs(t, err, util.ErrModuleNotFound)

	require.NoError(t, f.courses.ArchiveModule(f.ctx, teacherActor, m.ID))
	items, err := f.items.CollectItems(f.ctx, m.ID)
	assert.ErrorIs(t, err, util.ErrModuleArchived)
	assert.Empty(t, items)
}

func TestRemoveItemRejectsArchivedModule(t *testing.T) {
	f := newFixture(t)
	c := f.course(t)
	m := f.module(t, c.ID, false)
	item := f.placeLesson(t, c.ID, m.ID, AddItemOptions{})

	require.NoError(t, f.courses.ArchiveModule(f.ctx, teacherActor, m.ID))
	assert.ErrorIs(t, f.items.RemoveItem(f.ctx, teacherActor, item.ID), util.ErrModuleArchived)

	kept, err := f.items.GetItem(f.ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, item.Position, kept.Position)
}

func TestLearnerContentUsesEngineClock(t *testing.T) {
	f := newFixture(t)
	freezeTime(t, baseTime)
	c := f.course(t)
	gated := f.module(t, c.ID, true)
	m := f.module(t, c.ID, false)
	release := baseTime.Add(time.Hour)
	item := f.placeLesson(t, c.ID, m.ID, AddItemOptions{ReleaseAt: &release})

	_, err := f.items.LearnerContent(f.ctx, learnerActor.UserID, item.ID)
	assert.ErrorIs(t, err, util.ErrModuleLocked)

	require.NoError(t, f.courses.ArchiveModule(f.ctx, teacherActor, gated.ID))
	_, err = f.items.LearnerContent(f.ctx, learnerActor.UserID, item.ID)
	assert.ErrorIs(t, err, util.ErrItemNotReleased)

	freezeTime(t, release)
	content, err := f.items.LearnerContent(f.ctx, learnerActor.UserID, item.ID)
	require.NoError(t, err)
	require.NotNil(t, content.Lesson)
	assert.Equal(t, item.ContentID, content.Lesson.ID)

	_, err = f.items.LearnerContent(f.ctx, learnerActor.UserID, 999)
	assert.ErrorIs(t, err, util.ErrItemNotFound)
}
