package service

import (
	"testing"

	"github.com/mmo7amed2010/swenam-sis-sub001/internal/model"
	"github.com/mmo7amed2010/swenam-sis-sub001/internal/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordGradeCreatesVersions(t *testing.T) {
	f := newFixture(t)
	c := f.course(t)
	a := f.assignment(t, c.ID, nil, model.SubmissionTypeText)
	sub, err := f.assignments.Submit(f.ctx, learnerActor, a.ID, SubmitRequest{TextContent: "答案"})
	require.NoError(t, err)

	v1, err := f.grades.RecordGrade(f.ctx, teacherActor, sub.ID, RecordGradeRequest{PointsAwarded: 6, MaxPoints: 10})
	require.NoError(t, err)
	v2, err := f.grades.RecordGrade(f.ctx, teacherActor, sub.ID, RecordGradeRequest{PointsAwarded: 2, MaxPoints: 3, Feedback: "复核"})
	require.NoError(t, err)
	assert.Equal(t, 1, v1.Version)
	assert.Equal(t, 2, v2.Version)
	assert.Equal(t, 60.0, v1.Percentage)
	assert.Equal(t, 66.67, v2.Percentage)

	_, err = f.grades.RecordGrade(f.ctx, teacherActor, sub.ID, RecordGradeRequest{PointsAwarded: 11, MaxPoints: 10})
	assert.Equal(t, util.KindValidation, util.KindOf(err))
	_, err = f.grades.RecordGrade(f.ctx, teacherActor, 999, RecordGradeRequest{PointsAwarded: 1, MaxPoints: 10})
	assert.ErrorIs(t, err, util.ErrSubmissionNotFound)

	visible, err := f.grades.ListGrades(f.ctx, sub.ID, false)
	require.NoError(t, err)
	assert.Empty(t, visible)
	all, err := f.grades.ListGrades(f.ctx, sub.ID, true)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	published, err := f.grades.Publish(f.ctx, teacherActor, v1.ID)
	require.NoError(t, err)
	assert.True(t, published.IsPublished)
	_, err = f.grades.Publish(f.ctx, teacherActor, v1.ID)
	require.NoError(t, err)

	visible, err = f.grades.ListGrades(f.ctx, sub.ID, false)
	require.NoError(t, err)
	require.Len(t, visible, 1)
	assert.Equal(t, v1.ID, visible[0].ID)

	graded, err := f.assignments.GetSubmissionByID(f.ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SubmissionGraded, graded.Status)

	_, err = f.grades.Publish(f.ctx, teacherActor, 999)
	assert.ErrorIs(t, err, util.ErrGradeNotFound)
}

func TestPublishedPassingGradeCompletesItem(t *testing.T) {
	f := newFixture(t)
	c := f.course(t)
	m := f.module(t, c.ID, false)
	a := f.assignment(t, c.ID, &m.ID, model.SubmissionTypeText)
	item, err := f.items.AddItem(f.ctx, teacherActor, m.ID, model.AssignmentRef{AssignmentID: a.ID}, AddItemOptions{})
	require.NoError(t, err)

	sub, err := f.assignments.Submit(f.ctx, learnerActor, a.ID, SubmitRequest{TextContent: "答案"})
	require.NoError(t, err)

	low, err := f.grades.RecordGrade(f.ctx, teacherActor, sub.ID, RecordGradeRequest{PointsAwarded: 5, MaxPoints: 10})
	require.NoError(t, err)
	_, err = f.grades.Publish(f.ctx, teacherActor, low.ID)
	require.NoError(t, err)
	_, err = f.progress.ItemProgressRepo.Find(f.ctx, learnerActor.UserID, item.ID)
	assert.Error(t, err, "failing grade leaves the item open")

	high, err := f.grades.RecordGrade(f.ctx, teacherActor, sub.ID, RecordGradeRequest{PointsAwarded: 9, MaxPoints: 10})
	require.NoError(t, err)
	_, err = f.grades.Publish(f.ctx, teacherActor, high.ID)
	require.NoError(t, err)

	p, err := f.progress.ItemProgressRepo.Find(f.ctx, learnerActor.UserID, item.ID)
	require.NoError(t, err)
	assert.True(t, p.Completed())

	mp, err := f.modules.GetModuleProgress(f.ctx, learnerActor.UserID, m.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ModuleCompleted, mp.Status)
}

func TestCourseGradeCombinesAssignmentsAndQuizzes(t *testing.T) {
	f := newFixture(t)
	c := f.course(t)
	a := f.assignment(t, c.ID, nil, model.SubmissionTypeText)
	quiz := f.publishedQuiz(t, CreateQuizRequest{CourseID: c.ID, PassingScorePercent: 50}, trueFalseRequest(2, true))

	sub, err := f.assignments.Submit(f.ctx, learnerActor, a.ID, SubmitRequest{TextContent: "答案"})
	require.NoError(t, err)
	g, err := f.grades.RecordGrade(f.ctx, teacherActor, sub.ID, RecordGradeRequest{PointsAwarded: 8, MaxPoints: 10})
	require.NoError(t, err)
	_, err = f.grades.Publish(f.ctx, teacherActor, g.ID)
	require.NoError(t, err)

	// 未发布的新版本不计入
	_, err = f.grades.RecordGrade(f.ctx, teacherActor, sub.ID, RecordGradeRequest{PointsAwarded: 10, MaxPoints: 10})
	require.NoError(t, err)

	f.takeQuiz(t, learnerActor, quiz, answered(false))
	f.takeQuiz(t, learnerActor, quiz, answered(true))
	f.takeQuiz(t, learnerActor, quiz, answered(false))

	grade, err := f.grades.RecomputeCourseGrade(f.ctx, learnerActor.UserID, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 10.0, grade.PointsEarned)
	assert.Equal(t, 12.0, grade.PointsTotal)
	assert.Equal(t, 83.33, grade.Percentage)

	cached, err := f.grades.GetCourseGrade(f.ctx, learnerActor.UserID, c.ID)
	require.NoError(t, err)
	assert.Equal(t, grade.Percentage, cached.Percentage)

	empty, err := f.grades.GetCourseGrade(f.ctx, otherLearner.UserID, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 0.0, empty.PointsTotal)
	assert.Equal(t, 0.0, empty.Percentage)
}

func TestRecordGradeRetriesVersionConflict(t *testing.T) {
	f := newFixture(t)
	c := f.course(t)
	a := f.assignment(t, c.ID, nil, model.SubmissionTypeText)
	sub, err := f.assignments.Submit(f.ctx, learnerActor, a.ID, SubmitRequest{TextContent: "答案"})
	require.NoError(t, err)
	_, err = f.grades.RecordGrade(f.ctx, teacherActor, sub.ID, RecordGradeRequest{PointsAwarded: 5, MaxPoints: 10})
	require.NoError(t, err)

	collide := collideOnCreate(t, f.db, func(g *model.Grade) { g.Version = 1 })
	collide(1)
	v2, err := f.grades.RecordGrade(f.ctx, teacherActor, sub.ID, RecordGradeRequest{PointsAwarded: 7, MaxPoints: 10})
	require.NoError(t, err)
	assert.Equal(t, 2, v2.Version)

	collide(-1)
	_, err = f.grades.RecordGrade(f.ctx, teacherActor, sub.ID, RecordGradeRequest{PointsAwarded: 9, MaxPoints: 10})
	assert.ErrorIs(t, err, util.ErrTransientConflict)

	all, err := f.grades.ListGrades(f.ctx, sub.ID, true)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}
