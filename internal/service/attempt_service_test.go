package service

import (
	"testing"

	"github.com/mmo7amed2010/swenam-sis-sub001/internal/model"
	"github.com/mmo7amed2010/swenam-sis-sub001/internal/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleQuiz(t *testing.T, f *fixture, maxAttempts int) *model.Quiz {
	t.Helper()
	c := f.course(t)
	return f.publishedQuiz(t,
		CreateQuizRequest{CourseID: c.ID, MaxAttempts: maxAttempts, PassingScorePercent: 70},
		mcqRequest(5, 1),
		trueFalseRequest(3, true),
	)
}

func TestAttemptScoring(t *testing.T) {
	f := newFixture(t)
	quiz := sampleQuiz(t, f, 0)

	attempt := f.takeQuiz(t, learnerActor, quiz, selected(1), answered(true))
	assert.Equal(t, model.AttemptGraded, attempt.Status)
	assert.Equal(t, 8, *attempt.Score)
	assert.Equal(t, 8, *attempt.MaxScore)
	assert.Equal(t, 100.0, *attempt.Percentage)
	assert.True(t, attempt.Passed)
	assert.NotNil(t, attempt.EndTime)

	attempt = f.takeQuiz(t, learnerActor, quiz, selected(1), answered(false))
	assert.Equal(t, 2, attempt.AttemptNumber)
	assert.Equal(t, 5, *attempt.Score)
	assert.Equal(t, 62.5, *attempt.Percentage)
	assert.False(t, attempt.Passed)
}

func TestStartAttemptResumesInProgress(t *testing.T) {
	f := newFixture(t)
	quiz := sampleQuiz(t, f, 1)

	first, err := f.attempts.StartAttempt(f.ctx, learnerActor, quiz.ID)
	require.NoError(t, err)
	again, err := f.attempts.StartAttempt(f.ctx, learnerActor, quiz.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)
	assert.Equal(t, 1, again.AttemptNumber)

	// 其他学习者的序号独立
	other, err := f.attempts.StartAttempt(f.ctx, otherLearner, quiz.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, other.AttemptNumber)
}

func TestAttemptLimit(t *testing.T) {
	f := newFixture(t)
	quiz := sampleQuiz(t, f, 2)

	f.takeQuiz(t, learnerActor, quiz)
	f.takeQuiz(t, learnerActor, quiz)

	_, err := f.attempts.StartAttempt(f.ctx, learnerActor, quiz.ID)
	assert.ErrorIs(t, err, util.ErrAttemptLimitExceeded)

	attempts, err := f.attempts.ListAttempts(f.ctx, learnerActor.UserID, quiz.ID)
	require.NoError(t, err)
	require.Len(t, attempts, 2)
	assert.Equal(t, 1, attempts[0].AttemptNumber)
	assert.Equal(t, 2, attempts[1].AttemptNumber)
}

func TestFinalizedAttemptIsImmutable(t *testing.T) {
	f := newFixture(t)
	quiz := sampleQuiz(t, f, 0)

	attempt := f.takeQuiz(t, learnerActor, quiz, selected(1))

	_, err := f.attempts.Finalize(f.ctx, learnerActor, attempt.ID)
	assert.ErrorIs(t, err, util.ErrInvalidStateTransition)
	_, err = f.attempts.SubmitAnswer(f.ctx, learnerActor, attempt.ID, quiz.Questions[1].ID, answered(true))
	assert.ErrorIs(t, err, util.ErrInvalidStateTransition)

	view, err := f.attempts.GetAttemptView(f.ctx, learnerActor.UserID, attempt.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, *view.Attempt.Score)
}

func TestSubmitAnswerChecks(t *testing.T) {
	f := newFixture(t)
	quiz := sampleQuiz(t, f, 0)
	other := sampleQuiz(t, f, 0)

	attempt, err := f.attempts.StartAttempt(f.ctx, learnerActor, quiz.ID)
	require.NoError(t, err)

	_, err = f.attempts.SubmitAnswer(f.ctx, learnerActor, attempt.ID, other.Questions[0].ID, selected(1))
	assert.ErrorIs(t, err, util.ErrUnknownQuestion)

	_, err = f.attempts.SubmitAnswer(f.ctx, learnerActor, attempt.ID, quiz.Questions[0].ID, answered(true))
	assert.ErrorIs(t, err, util.ErrInvalidAnswer)

	_, err = f.attempts.SubmitAnswer(f.ctx, otherLearner, attempt.ID, quiz.Questions[0].ID, selected(1))
	assert.ErrorIs(t, err, util.ErrPermissionDenied)

	// 重复作答覆盖之前的答案
	_, err = f.attempts.SubmitAnswer(f.ctx, learnerActor, attempt.ID, quiz.Questions[0].ID, selected(0))
	require.NoError(t, err)
	updated, err := f.attempts.SubmitAnswer(f.ctx, learnerActor, attempt.ID, quiz.Questions[0].ID, selected(1))
	require.NoError(t, err)
	assert.Equal(t, []int{1}, updated.AnswerMap()[quiz.Questions[0].ID].Selected)
}

func TestStartAttemptUnpublishedQuiz(t *testing.T) {
	f := newFixture(t)
	c := f.course(t)
	quiz, err := f.quizzes.CreateQuiz(f.ctx, teacherActor, CreateQuizRequest{CourseID: c.ID, Title: "草稿"})
	require.NoError(t, err)

	_, err = f.attempts.StartAttempt(f.ctx, learnerActor, quiz.ID)
	assert.ErrorIs(t, err, util.ErrQuizNotAvailable)

	_, err = f.attempts.StartAttempt(f.ctx, learnerActor, 999)
	assert.ErrorIs(t, err, util.ErrQuizNotFound)
}

func TestAttemptViewKeepsShuffledOrder(t *testing.T) {
	prev := shuffleFunc
	shuffleFunc = func(n int) []int {
		out := make([]int, n)
		for i := range out {
			out[i] = n - 1 - i
		}
		return out
	}
	t.Cleanup(func() { shuffleFunc = prev })

	f := newFixture(t)
	c := f.course(t)
	quiz := f.publishedQuiz(t,
		CreateQuizRequest{CourseID: c.ID, PassingScorePercent: 50, ShuffleQuestions: true, ShuffleAnswers: true},
		mcqRequest(2, 2),
		trueFalseRequest(1, false),
	)

	attempt, err := f.attempts.StartAttempt(f.ctx, learnerActor, quiz.ID)
	require.NoError(t, err)

	view, err := f.attempts.GetAttemptView(f.ctx, learnerActor.UserID, attempt.ID)
	require.NoError(t, err)
	require.Len(t, view.Questions, 2)
	assert.Equal(t, quiz.Questions[1].ID, view.Questions[0].ID)
	mcqView := view.Questions[1]
	require.Len(t, mcqView.Options, 4)
	assert.Equal(t, 3, mcqView.Options[0].Index)
	assert.Equal(t, "D", mcqView.Options[0].Text)
	assert.Nil(t, mcqView.Correct)

	// 作答使用原始下标，与展示顺序无关
	_, err = f.attempts.SubmitAnswer(f.ctx, learnerActor, attempt.ID, quiz.Questions[0].ID, selected(2))
	require.NoError(t, err)
	graded, err := f.attempts.Finalize(f.ctx, learnerActor, attempt.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, *graded.Score)

	again, err := f.attempts.GetAttemptView(f.ctx, learnerActor.UserID, attempt.ID)
	require.NoError(t, err)
	assert.Equal(t, view.Questions[0].ID, again.Questions[0].ID)
	require.NotNil(t, again.Questions[1].Correct)
	assert.True(t, *again.Questions[1].Correct)
	require.NotNil(t, again.Questions[0].Correct)
	assert.False(t, *again.Questions[0].Correct)
}

func TestPassedQuizCompletesItem(t *testing.T) {
	f := newFixture(t)
	c := f.course(t)
	m := f.module(t, c.ID, false)
	quiz := f.publishedQuiz(t, CreateQuizRequest{CourseID: c.ID, PassingScorePercent: 60}, trueFalseRequest(1, true))
	item, err := f.items.AddItem(f.ctx, teacherActor, m.ID, model.QuizRef{QuizID: quiz.ID}, AddItemOptions{})
	require.NoError(t, err)

	f.takeQuiz(t, learnerActor, quiz, answered(false))
	summary, err := f.progress.ProgressSummary(f.ctx, learnerActor.UserID, m.ID)
	require.NoError(t, err)
	assert.False(t, summary.Items[0].Completed)

	f.takeQuiz(t, learnerActor, quiz, answered(true))
	summary, err = f.progress.ProgressSummary(f.ctx, learnerActor.UserID, m.ID)
	require.NoError(t, err)
	assert.Equal(t, item.ID, summary.Items[0].ItemID)
	assert.True(t, summary.Items[0].Completed)

	mp, err := f.modules.GetModuleProgress(f.ctx, learnerActor.UserID, m.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ModuleCompleted, mp.Status)
}

func TestModuleExamRetakeFlow(t *testing.T) {
	f := newFixture(t)
	c := f.course(t)
	gated := f.module(t, c.ID, true)
	next := f.module(t, c.ID, false)
	lesson := f.placeLesson(t, c.ID, next.ID, AddItemOptions{})

	primary := f.publishedQuiz(t, examRequest(c.ID, gated.ID, nil), trueFalseRequest(2, true))
	retake := f.publishedQuiz(t, examRequest(c.ID, gated.ID, &primary.ID), trueFalseRequest(2, true))

	_, err := f.attempts.StartAttempt(f.ctx, learnerActor, retake.ID)
	assert.ErrorIs(t, err, util.ErrQuizNotAvailable, "retake before primary is exhausted")

	failed := f.takeQuiz(t, learnerActor, primary, answered(false))
	assert.False(t, failed.Passed)

	mp, err := f.modules.GetModuleProgress(f.ctx, learnerActor.UserID, gated.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ModuleExamFailed, mp.Status)
	assert.True(t, mp.PrimaryExamFailed)
	require.NotNil(t, mp.RetakeUnlockedAt)
	assert.Equal(t, 1, mp.ExamAttemptsUsed)

	_, err = f.progress.RecordAccess(f.ctx, learnerActor, lesson.ID)
	assert.ErrorIs(t, err, util.ErrModuleLocked)

	_, err = f.attempts.StartAttempt(f.ctx, learnerActor, primary.ID)
	assert.ErrorIs(t, err, util.ErrAttemptLimitExceeded)

	passed := f.takeQuiz(t, learnerActor, retake, answered(true))
	assert.True(t, passed.Passed)

	mp, err = f.modules.GetModuleProgress(f.ctx, learnerActor.UserID, gated.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ModuleCompleted, mp.Status)
	assert.NotNil(t, mp.RetakePassedAt)
	assert.NotNil(t, mp.CompletedAt)
	assert.Equal(t, 0.0, *mp.ExamFirstScore)
	assert.Equal(t, 100.0, *mp.ExamBestScore)

	_, err = f.progress.RecordAccess(f.ctx, learnerActor, lesson.ID)
	assert.NoError(t, err)

	// 主考试与补考共用一个成绩槽位，取最高分
	grade, err := f.grades.GetCourseGrade(f.ctx, learnerActor.UserID, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 2.0, grade.PointsEarned)
	assert.Equal(t, 2.0, grade.PointsTotal)
	assert.Equal(t, 100.0, grade.Percentage)
}

func TestModuleExamLockedAfterRetakeFails(t *testing.T) {
	f := newFixture(t)
	c := f.course(t)
	gated := f.module(t, c.ID, true)

	primary := f.publishedQuiz(t, examRequest(c.ID, gated.ID, nil), trueFalseRequest(1, true))
	retake := f.publishedQuiz(t, examRequest(c.ID, gated.ID, &primary.ID), trueFalseRequest(1, true))

	f.takeQuiz(t, learnerActor, primary, answered(false))
	f.takeQuiz(t, learnerActor, retake, answered(false))

	mp, err := f.modules.GetModuleProgress(f.ctx, learnerActor.UserID, gated.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ModuleExamLocked, mp.Status)
	assert.True(t, mp.RetakeExamFailed)

	_, err = f.attempts.StartAttempt(f.ctx, learnerActor, primary.ID)
	assert.ErrorIs(t, err, util.ErrModuleExamLocked)
	_, err = f.attempts.StartAttempt(f.ctx, learnerActor, retake.ID)
	assert.ErrorIs(t, err, util.ErrModuleExamLocked)

	views, err := f.modules.ListCourseProgress(f.ctx, learnerActor.UserID, c.ID)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.False(t, views[0].Locked)
	assert.Equal(t, model.ModuleExamLocked, views[0].Progress.Status)
}

func TestRetakeAddedAfterLockKeepsModuleLocked(t *testing.T) {
	f := newFixture(t)
	c := f.course(t)
	gated := f.module(t, c.ID, true)

	primary := f.publishedQuiz(t, examRequest(c.ID, gated.ID, nil), trueFalseRequest(1, true))
	f.takeQuiz(t, learnerActor, primary, answered(false))

	mp, err := f.modules.GetModuleProgress(f.ctx, learnerActor.UserID, gated.ID)
	require.NoError(t, err)
	require.Equal(t, model.ModuleExamLocked, mp.Status)

	retake := f.publishedQuiz(t, examRequest(c.ID, gated.ID, &primary.ID), trueFalseRequest(1, true))
	mp, err = f.modules.Recompute(f.ctx, learnerActor.UserID, gated.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ModuleExamLocked, mp.Status)
	assert.Nil(t, mp.RetakeUnlockedAt)

	attempt, err := f.attempts.StartAttempt(f.ctx, learnerActor, retake.ID)
	assert.ErrorIs(t, err, util.ErrModuleExamLocked)
	assert.Nil(t, attempt)
}

func TestStartAttemptRetriesNumberConflict(t *testing.T) {
	f := newFixture(t)
	quiz := sampleQuiz(t, f, 3)
	f.takeQuiz(t, learnerActor, quiz, selected(1), answered(true))

	collide := collideOnCreate(t, f.db, func(a *model.QuizAttempt) { a.AttemptNumber = 1 })
	collide(1)
	attempt, err := f.attempts.StartAttempt(f.ctx, learnerActor, quiz.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, attempt.AttemptNumber)
	_, err = f.attempts.Finalize(f.ctx, learnerActor, attempt.ID)
	require.NoError(t, err)

	collide(-1)
	_, err = f.attempts.StartAttempt(f.ctx, learnerActor, quiz.ID)
	assert.ErrorIs(t, err, util.ErrTransientConflict)

	attempts, err := f.attempts.ListAttempts(f.ctx, learnerActor.UserID, quiz.ID)
	require.NoError(t, err)
	assert.Len(t, attempts, 2)
}
