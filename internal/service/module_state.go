package service

import (
	"slices"
	"time"

	"github.com/mmo7amed2010/swenam-sis-sub001/internal/model"
)

// ExamAttemptResult 一次已评分的模块考试尝试
type ExamAttemptResult struct {
	QuizID        uint
	Retake        bool
	AttemptNumber int
	Percentage    float64
	Passed        bool
	EndTime       time.Time
}

// ModuleInput 重算模块状态所需的全部持久化数据
type ModuleInput struct {
	Module         model.Module
	Items          []model.ModuleItem
	CompletedItems map[uint]bool
	PrimaryExam    *model.Quiz
	RetakeExam     *model.Quiz
	// ExamAttempts 只包含 graded 状态的尝试
	ExamAttempts  []ExamAttemptResult
	RetakeStarted bool
	AnyActivity   bool
	Previous      *model.ModuleProgress
	Now           time.Time
}

type ModuleEvaluation struct {
	Status            model.ModuleStatus
	RequiredTotal     int
	RequiredDone      int
	ExamAttemptsUsed  int
	ExamFirstScore    *float64
	ExamBestScore     *float64
	ExamPassedAt      *time.Time
	PrimaryExamFailed bool
	RetakeExamFailed  bool
	RetakeUnlockedAt  *time.Time
	RetakePassedAt    *time.Time
	CompletedAt       *time.Time
}

// Apply 把重算结果写到进度行上，不改动主键与用户/模块字段
func (e ModuleEvaluation) Apply(p *model.ModuleProgress) {
	p.Status = e.Status
	p.ExamAttemptsUsed = e.ExamAttemptsUsed
	p.ExamFirstScore = e.ExamFirstScore
	p.ExamBestScore = e.ExamBestScore
	p.ExamPassedAt = e.ExamPassedAt
	p.PrimaryExamFailed = e.PrimaryExamFailed
	p.RetakeExamFailed = e.RetakeExamFailed
	p.RetakeUnlockedAt = e.RetakeUnlockedAt
	p.RetakePassedAt = e.RetakePassedAt
	p.CompletedAt = e.CompletedAt
}

// EvaluateModule 由当前数据全量计算模块状态，相同输入总是得到相同结果
func EvaluateModule(in ModuleInput) ModuleEvaluation {
	var ev ModuleEvaluation

	anyDone := false
	for _, item := range in.Items {
		done := in.CompletedItems[item.ID]
		if done {
			anyDone = true
		}
		if item.Required {
			ev.RequiredTotal++
			if done {
				ev.RequiredDone++
			}
		}
	}
	started := anyDone || in.AnyActivity || len(in.ExamAttempts) > 0 || in.RetakeStarted

	attempts := slices.Clone(in.ExamAttempts)
	slices.SortStableFunc(attempts, func(a, b ExamAttemptResult) int {
		if c := a.EndTime.Compare(b.EndTime); c != 0 {
			return c
		}
		if a.Retake != b.Retake {
			if a.Retake {
				return 1
			}
			return -1
		}
		return a.AttemptNumber - b.AttemptNumber
	})
	for _, a := range attempts {
		if !a.Retake && !a.Passed {
			ev.ExamAttemptsUsed++
		}
	}
	if len(attempts) > 0 {
		first := attempts[0].Percentage
		best := first
		for _, a := range attempts[1:] {
			best = max(best, a.Percentage)
		}
		ev.ExamFirstScore = &first
		ev.ExamBestScore = &best
	}

	if !in.Module.RequiresExamPass {
		switch {
		case !started:
			ev.Status = model.ModuleNotStarted
		case ev.RequiredDone == ev.RequiredTotal:
			ev.Status = model.ModuleCompleted
		default:
			ev.Status = model.ModuleInProgress
		}
	} else {
		evaluateExamPath(&ev, in, attempts, started)
	}

	return finish(ev, in)
}

func evaluateExamPath(ev *ModuleEvaluation, in ModuleInput, attempts []ExamAttemptResult, started bool) {
	ev.Status = model.ModuleNotStarted
	if started {
		ev.Status = model.ModuleInProgress
	}
	if in.PrimaryExam == nil {
		return
	}

	var primary, retake []ExamAttemptResult
	for _, a := range attempts {
		if a.Retake {
			retake = append(retake, a)
		} else {
			primary = append(primary, a)
		}
	}

	if pass := firstPass(primary); pass != nil {
		ev.Status = model.ModuleCompleted
		ev.ExamPassedAt = timePtr(pass.EndTime)
		return
	}

	exhausting := exhaustingAttempt(in.PrimaryExam, primary)
	if exhausting == nil {
		return
	}
	ev.PrimaryExamFailed = true
	if in.RetakeExam == nil {
		ev.Status = model.ModuleExamLocked
		return
	}

	ev.RetakeUnlockedAt = timePtr(exhausting.EndTime)
	if pass := firstPass(retake); pass != nil {
		ev.Status = model.ModuleCompleted
		ev.RetakePassedAt = timePtr(pass.EndTime)
		ev.ExamPassedAt = timePtr(pass.EndTime)
		return
	}
	switch {
	case exhaustingAttempt(in.RetakeExam, retake) != nil:
		ev.RetakeExamFailed = true
		ev.Status = model.ModuleExamLocked
	case in.RetakeStarted:
		ev.Status = model.ModuleInProgress
	default:
		ev.Status = model.ModuleExamFailed
	}
}

// finish 处理 completed 与 exam_locked 的粘滞性以及完成时间
func finish(ev ModuleEvaluation, in ModuleInput) ModuleEvaluation {
	prev := in.Previous
	if prev != nil && prev.Status == model.ModuleCompleted {
		ev.Status = model.ModuleCompleted
	}
	// 锁定后新增补考也不能重新打开考试路径
	if prev != nil && prev.Status == model.ModuleExamLocked {
		ev.Status = model.ModuleExamLocked
		ev.PrimaryExamFailed = prev.PrimaryExamFailed
		ev.RetakeExamFailed = prev.RetakeExamFailed
		ev.RetakeUnlockedAt = prev.RetakeUnlockedAt
		ev.RetakePassedAt = nil
		ev.ExamPassedAt = prev.ExamPassedAt
	}
	if ev.Status == model.ModuleCompleted {
		if prev != nil && prev.CompletedAt != nil {
			ev.CompletedAt = prev.CompletedAt
		} else {
			ev.CompletedAt = timePtr(in.Now)
		}
	}
	return ev
}

// firstPass 按时间顺序第一次通过的尝试
func firstPass(attempts []ExamAttemptResult) *ExamAttemptResult {
	for i := range attempts {
		if attempts[i].Passed {
			return &attempts[i]
		}
	}
	return nil
}

// exhaustingAttempt 返回用尽次数的那次尝试；不限次数或尚未用尽时返回 nil
func exhaustingAttempt(quiz *model.Quiz, attempts []ExamAttemptResult) *ExamAttemptResult {
	if quiz.Unlimited() || len(attempts) < quiz.MaxAttempts {
		return nil
	}
	return &attempts[quiz.MaxAttempts-1]
}

func timePtr(t time.Time) *time.Time {
	return &t
}
