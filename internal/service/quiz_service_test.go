package service

import (
	"testing"

	"github.com/mmo7amed2010/swenam-sis-sub001/internal/model"
	"github.com/mmo7amed2010/swenam-sis-sub001/internal/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuestionChangesKeepTotalPoints(t *testing.T) {
	f := newFixture(t)
	c := f.course(t)
	quiz, err := f.quizzes.CreateQuiz(f.ctx, teacherActor, CreateQuizRequest{CourseID: c.ID, Title: "小测", PassingScorePercent: 70})
	require.NoError(t, err)

	q1, err := f.quizzes.AddQuestion(f.ctx, teacherActor, quiz.ID, mcqRequest(3, 1))
	require.NoError(t, err)
	q2, err := f.quizzes.AddQuestion(f.ctx, teacherActor, quiz.ID, trueFalseRequest(5, true))
	require.NoError(t, err)
	assert.Equal(t, 1, q1.Position)
	assert.Equal(t, 2, q2.Position)

	total := func() int {
		got, err := f.quizzes.GetQuiz(f.ctx, quiz.ID)
		require.NoError(t, err)
		return got.TotalPoints
	}
	assert.Equal(t, 8, total())

	_, err = f.quizzes.UpdateQuestion(f.ctx, teacherActor, q2.ID, trueFalseRequest(1, false))
	require.NoError(t, err)
	assert.Equal(t, 4, total())

	require.NoError(t, f.quizzes.RemoveQuestion(f.ctx, teacherActor, q1.ID))
	assert.Equal(t, 1, total())

	n, err := f.quizzes.RecomputeTotalPoints(f.ctx, quiz.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	assert.ErrorIs(t, f.quizzes.RemoveQuestion(f.ctx, teacherActor, q1.ID), util.ErrUnknownQuestion)
}

func TestAddQuestionValidation(t *testing.T) {
	f := newFixture(t)
	c := f.course(t)
	quiz, err := f.quizzes.CreateQuiz(f.ctx, teacherActor, CreateQuizRequest{CourseID: c.ID, Title: "小测"})
	require.NoError(t, err)

	noCorrect := mcqRequest(2)
	tooFew := mcqRequest(2, 0)
	tooFew.Options = tooFew.Options[:1]
	tooMany := mcqRequest(2, 0)
	tooMany.Options = append(tooMany.Options, model.AnswerOption{Text: "E"}, model.AnswerOption{Text: "F"}, model.AnswerOption{Text: "G"})
	zeroPoints := trueFalseRequest(0, true)
	missingBool := trueFalseRequest(1, true)
	missingBool.CorrectBool = nil

	cases := map[string]QuestionRequest{
		"no correct option": noCorrect,
		"one option":        tooFew,
		"seven options":     tooMany,
		"zero points":       zeroPoints,
		"true/false no key": missingBool,
		"unknown type":      {Type: "essay", Prompt: "写一段话", Points: 1},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.quizzes.AddQuestion(f.ctx, teacherActor, quiz.ID, req)
			assert.Equal(t, util.KindValidation, util.KindOf(err))
		})
	}

	got, err := f.quizzes.GetQuiz(f.ctx, quiz.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Questions)
	assert.Equal(t, 0, got.TotalPoints)

	_, err = f.quizzes.AddQuestion(f.ctx, teacherActor, 999, trueFalseRequest(1, true))
	assert.ErrorIs(t, err, util.ErrQuizNotFound)
}

func TestPublishQuizNeedsQuestions(t *testing.T) {
	f := newFixture(t)
	c := f.course(t)
	quiz, err := f.quizzes.CreateQuiz(f.ctx, teacherActor, CreateQuizRequest{CourseID: c.ID, Title: "小测"})
	require.NoError(t, err)

	_, err = f.quizzes.PublishQuiz(f.ctx, teacherActor, quiz.ID)
	assert.Equal(t, util.KindValidation, util.KindOf(err))

	_, err = f.quizzes.AddQuestion(f.ctx, teacherActor, quiz.ID, trueFalseRequest(4, true))
	require.NoError(t, err)
	published, err := f.quizzes.PublishQuiz(f.ctx, teacherActor, quiz.ID)
	require.NoError(t, err)
	assert.True(t, published.IsPublished)
	assert.Equal(t, 4, published.TotalPoints)
}

func TestCreateExamConfiguration(t *testing.T) {
	f := newFixture(t)
	c := f.course(t)
	m := f.module(t, c.ID, true)

	primary, err := f.quizzes.CreateQuiz(f.ctx, teacherActor, examRequest(c.ID, m.ID, nil))
	require.NoError(t, err)
	assert.True(t, primary.IsPrimaryExam())

	_, err = f.quizzes.CreateQuiz(f.ctx, teacherActor, examRequest(c.ID, m.ID, nil))
	assert.Equal(t, util.KindValidation, util.KindOf(err), "second primary exam")

	orphan := examRequest(c.ID, m.ID, nil)
	orphan.IsRetakeExam = true
	_, err = f.quizzes.CreateQuiz(f.ctx, teacherActor, orphan)
	assert.Equal(t, util.KindValidation, util.KindOf(err), "retake without primary")

	retake, err := f.quizzes.CreateQuiz(f.ctx, teacherActor, examRequest(c.ID, m.ID, &primary.ID))
	require.NoError(t, err)
	assert.True(t, retake.IsModuleExam())
	assert.False(t, retake.IsPrimaryExam())

	_, err = f.quizzes.CreateQuiz(f.ctx, teacherActor, examRequest(c.ID, m.ID, &primary.ID))
	assert.Equal(t, util.KindValidation, util.KindOf(err), "second retake")

	other := f.module(t, c.ID, false)
	_, err = f.quizzes.CreateQuiz(f.ctx, teacherActor, examRequest(c.ID, other.ID, &primary.ID))
	assert.Equal(t, util.KindValidation, util.KindOf(err), "retake in another module")

	foreign := f.course(t)
	_, err = f.quizzes.CreateQuiz(f.ctx, teacherActor, CreateQuizRequest{CourseID: foreign.ID, ModuleID: &m.ID, Title: "跨课程"})
	assert.ErrorIs(t, err, util.ErrContentMismatch)
}
