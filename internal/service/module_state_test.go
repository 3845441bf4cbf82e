package service

import (
	"testing"
	"time"

	"github.com/mmo7amed2010/swenam-sis-sub001/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var baseTime = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func examModule() (model.Module, *model.Quiz, *model.Quiz) {
	module := model.Module{CourseID: 1, RequiresExamPass: true, State: model.StateActive}
	module.ID = 10
	moduleID := module.ID

	primary := &model.Quiz{
		CourseID:            1,
		ModuleID:            &moduleID,
		MaxAttempts:         1,
		PassingScorePercent: 60,
		AssessmentType:      model.AssessmentExam,
		Scope:               model.ScopeModule,
	}
	primary.ID = 100
	primaryID := primary.ID

	retake := &model.Quiz{
		CourseID:            1,
		ModuleID:            &moduleID,
		MaxAttempts:         1,
		PassingScorePercent: 60,
		AssessmentType:      model.AssessmentExam,
		Scope:               model.ScopeModule,
		IsRetakeExam:        true,
		PrimaryExamID:       &primaryID,
	}
	retake.ID = 101
	return module, primary, retake
}

func examAttempt(quizID uint, retake bool, pct float64, passed bool, at time.Time) ExamAttemptResult {
	return ExamAttemptResult{QuizID: quizID, Retake: retake, AttemptNumber: 1, Percentage: pct, Passed: passed, EndTime: at}
}

func TestEvaluateModuleWithoutExam(t *testing.T) {
	module := model.Module{State: model.StateActive}
	items := []model.ModuleItem{{Required: true}, {Required: true}, {Required: false}}
	for i := range items {
		items[i].ID = uint(i + 1)
	}

	ev := EvaluateModule(ModuleInput{Module: module, Items: items, Now: baseTime})
	assert.Equal(t, model.ModuleNotStarted, ev.Status)
	assert.Equal(t, 2, ev.RequiredTotal)

	ev = EvaluateModule(ModuleInput{Module: module, Items: items, CompletedItems: map[uint]bool{1: true}, Now: baseTime})
	assert.Equal(t, model.ModuleInProgress, ev.Status)
	assert.Equal(t, 1, ev.RequiredDone)

	ev = EvaluateModule(ModuleInput{Module: module, Items: items, CompletedItems: map[uint]bool{1: true, 2: true}, Now: baseTime})
	assert.Equal(t, model.ModuleCompleted, ev.Status)
	require.NotNil(t, ev.CompletedAt)
	assert.Equal(t, baseTime, *ev.CompletedAt)
}

func TestEvaluateModuleRetakeSequence(t *testing.T) {
	module, primary, retake := examModule()
	failedAt := baseTime.Add(time.Hour)

	in := ModuleInput{
		Module:       module,
		PrimaryExam:  primary,
		RetakeExam:   retake,
		ExamAttempts: []ExamAttemptResult{examAttempt(primary.ID, false, 40, false, failedAt)},
		Now:          failedAt,
	}
	ev := EvaluateModule(in)

	assert.Equal(t, model.ModuleExamFailed, ev.Status)
	assert.True(t, ev.PrimaryExamFailed)
	require.NotNil(t, ev.RetakeUnlockedAt)
	assert.Equal(t, failedAt, *ev.RetakeUnlockedAt)
	assert.Nil(t, ev.CompletedAt)

	in.RetakeStarted = true
	ev = EvaluateModule(in)
	assert.Equal(t, model.ModuleInProgress, ev.Status)

	passedAt := failedAt.Add(time.Hour)
	in.ExamAttempts = append(in.ExamAttempts, examAttempt(retake.ID, true, 80, true, passedAt))
	in.RetakeStarted = false
	in.Now = passedAt
	ev = EvaluateModule(in)

	assert.Equal(t, model.ModuleCompleted, ev.Status)
	require.NotNil(t, ev.RetakePassedAt)
	assert.Equal(t, passedAt, *ev.RetakePassedAt)
	require.NotNil(t, ev.ExamBestScore)
	assert.Equal(t, 80.0, *ev.ExamBestScore)
	require.NotNil(t, ev.ExamFirstScore)
	assert.Equal(t, 40.0, *ev.ExamFirstScore)
	assert.Equal(t, 1, ev.ExamAttemptsUsed, "only failed primary attempts are counted")
}

func TestEvaluateModuleExamLocked(t *testing.T) {
	module, primary, retake := examModule()
	at := baseTime.Add(time.Hour)

	ev := EvaluateModule(ModuleInput{
		Module:       module,
		PrimaryExam:  primary,
		ExamAttempts: []ExamAttemptResult{examAttempt(primary.ID, false, 10, false, at)},
		Now:          at,
	})
	assert.Equal(t, model.ModuleExamLocked, ev.Status)
	assert.Nil(t, ev.RetakeUnlockedAt)

	ev = EvaluateModule(ModuleInput{
		Module:      module,
		PrimaryExam: primary,
		RetakeExam:  retake,
		ExamAttempts: []ExamAttemptResult{
			examAttempt(primary.ID, false, 10, false, at),
			examAttempt(retake.ID, true, 20, false, at.Add(time.Hour)),
		},
		Now: at.Add(time.Hour),
	})
	assert.Equal(t, model.ModuleExamLocked, ev.Status)
	assert.True(t, ev.RetakeExamFailed)
}

func TestEvaluateModuleExamLockedIsSticky(t *testing.T) {
	module, primary, retake := examModule()
	at := baseTime.Add(time.Hour)
	prev := &model.ModuleProgress{Status: model.ModuleExamLocked, PrimaryExamFailed: true}

	// 锁定之后才配置的补考
	ev := EvaluateModule(ModuleInput{
		Module:       module,
		PrimaryExam:  primary,
		RetakeExam:   retake,
		ExamAttempts: []ExamAttemptResult{examAttempt(primary.ID, false, 10, false, at)},
		Previous:     prev,
		Now:          at.Add(time.Hour),
	})

	assert.Equal(t, model.ModuleExamLocked, ev.Status)
	assert.True(t, ev.PrimaryExamFailed)
	assert.Nil(t, ev.RetakeUnlockedAt)
	assert.Nil(t, ev.CompletedAt)
	assert.Equal(t, 1, ev.ExamAttemptsUsed)
}

func TestEvaluateModuleCompletedIsSticky(t *testing.T) {
	module, primary, _ := examModule()
	completedAt := baseTime
	prev := &model.ModuleProgress{Status: model.ModuleCompleted, CompletedAt: &completedAt}

	ev := EvaluateModule(ModuleInput{
		Module:      module,
		PrimaryExam: primary,
		Previous:    prev,
		Now:         baseTime.Add(24 * time.Hour),
	})

	assert.Equal(t, model.ModuleCompleted, ev.Status)
	assert.Equal(t, completedAt, *ev.CompletedAt)
}

// 考试模块在从未通过时不会进入 completed
func TestEvaluateModuleGatingNeverCompletesBelowPassing(t *testing.T) {
	module, primary, retake := examModule()
	primary.MaxAttempts = 3
	items := []model.ModuleItem{{Required: true}}
	items[0].ID = 1

	for _, withRetake := range []bool{false, true} {
		var attempts []ExamAttemptResult
		for n := 0; n < 5; n++ {
			at := baseTime.Add(time.Duration(n) * time.Hour)
			isRetake := withRetake && n >= primary.MaxAttempts
			quizID := primary.ID
			if isRetake {
				quizID = retake.ID
			}
			attempts = append(attempts, examAttempt(quizID, isRetake, float64(n*10), false, at))

			in := ModuleInput{
				Module:         module,
				Items:          items,
				CompletedItems: map[uint]bool{1: true},
				PrimaryExam:    primary,
				ExamAttempts:   attempts,
				Now:            at,
			}
			if withRetake {
				in.RetakeExam = retake
			}
			ev := EvaluateModule(in)
			assert.NotEqual(t, model.ModuleCompleted, ev.Status, "attempts=%d retake=%v", n+1, withRetake)
		}
	}
}

func TestEvaluateModuleWithoutPrimaryExamNeverCompletes(t *testing.T) {
	module, _, _ := examModule()
	items := []model.ModuleItem{{Required: true}}
	items[0].ID = 1

	ev := EvaluateModule(ModuleInput{Module: module, Items: items, CompletedItems: map[uint]bool{1: true}, Now: baseTime})

	assert.Equal(t, model.ModuleInProgress, ev.Status)
}
