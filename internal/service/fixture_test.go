package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/mmo7amed2010/swenam-sis-sub001/internal/model"
	"github.com/mmo7amed2010/swenam-sis-sub001/pkg/database"
	"github.com/mmo7amed2010/swenam-sis-sub001/pkg/logger"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var (
	teacherActor = Actor{UserID: 1, SourceIP: "127.0.0.1"}
	learnerActor = Actor{UserID: 2, SourceIP: "127.0.0.1"}
	otherLearner = Actor{UserID: 3, SourceIP: "127.0.0.1"}
)

type fixture struct {
	ctx         context.Context
	db          *gorm.DB
	courses     *CourseService
	items       *ItemRegistryService
	modules     *ModuleProgressService
	progress    *ProgressService
	quizzes     *QuizService
	attempts    *AttemptService
	grades      *GradeService
	assignments *AssignmentService
}

// newFixture 每个测试一个独立的内存库
func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger.InitNop()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := database.OpenSQLiteMemory(name)
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	events := NopEventPublisher{}
	modules := NewModuleProgressService(db, events)
	grades := NewGradeService(db, nil, time.Minute, modules, events)
	return &fixture{
		ctx:         context.Background(),
		db:          db,
		courses:     NewCourseService(db),
		items:       NewItemRegistryService(db, modules, 0),
		modules:     modules,
		progress:    NewProgressService(db, modules),
		quizzes:     NewQuizService(db),
		attempts:    NewAttemptService(db, modules, grades, events),
		grades:      grades,
		assignments: NewAssignmentService(db, modules, events),
	}
}

// freezeTime 替换 nowFunc，测试结束后恢复
func freezeTime(t *testing.T, at time.Time) {
	t.Helper()
	prev := nowFunc
	nowFunc = func() time.Time { return at }
	t.Cleanup(func() { nowFunc = prev })
}

func (f *fixture) course(t *testing.T) *model.Course {
	t.Helper()
	c, err := f.courses.CreateCourse(f.ctx, teacherActor, CreateCourseRequest{Title: "Go 入门"})
	require.NoError(t, err)
	return c
}

func (f *fixture) module(t *testing.T, courseID uint, requiresExamPass bool) *model.Module {
	t.Helper()
	m, err := f.courses.CreateModule(f.ctx, teacherActor, courseID, CreateModuleRequest{
		Title:            "模块",
		RequiresExamPass: requiresExamPass,
	})
	require.NoError(t, err)
	return m
}

func (f *fixture) lesson(t *testing.T, courseID uint) *model.Lesson {
	t.Helper()
	l, err := f.courses.CreateLesson(f.ctx, teacherActor, courseID, CreateLessonRequest{Title: "课时", Body: "正文"})
	require.NoError(t, err)
	return l
}

func (f *fixture) placeLesson(t *testing.T, courseID, moduleID uint, opts AddItemOptions) *model.ModuleItem {
	t.Helper()
	l := f.lesson(t, courseID)
	item, err := f.items.AddItem(f.ctx, teacherActor, moduleID, model.LessonRef{LessonID: l.ID}, opts)
	require.NoError(t, err)
	return item
}

// publishedQuiz 创建测验、添加题目并发布
func (f *fixture) publishedQuiz(t *testing.T, req CreateQuizRequest, questions ...QuestionRequest) *model.Quiz {
	t.Helper()
	if req.Title == "" {
		req.Title = "测验"
	}
	quiz, err := f.quizzes.CreateQuiz(f.ctx, teacherActor, req)
	require.NoError(t, err)
	for _, q := range questions {
		_, err := f.quizzes.AddQuestion(f.ctx, teacherActor, quiz.ID, q)
		require.NoError(t, err)
	}
	quiz, err = f.quizzes.PublishQuiz(f.ctx, teacherActor, quiz.ID)
	require.NoError(t, err)
	full, err := f.quizzes.GetQuiz(f.ctx, quiz.ID)
	require.NoError(t, err)
	return full
}

// examRequest 模块级考试；primaryID 非空时为补考
func examRequest(courseID, moduleID uint, primaryID *uint) CreateQuizRequest {
	return CreateQuizRequest{
		CourseID:            courseID,
		ModuleID:            &moduleID,
		Title:               "模块考试",
		MaxAttempts:         1,
		PassingScorePercent: 60,
		AssessmentType:      model.AssessmentExam,
		Scope:               model.ScopeModule,
		IsRetakeExam:        primaryID != nil,
		PrimaryExamID:       primaryID,
	}
}

func mcqRequest(points int, correct ...int) QuestionRequest {
	opts := []model.AnswerOption{{Text: "A"}, {Text: "B"}, {Text: "C"}, {Text: "D"}}
	for _, i := range correct {
		opts[i].IsCorrect = true
	}
	return QuestionRequest{
		Type:    model.QuestionMultipleChoice,
		Prompt:  "选择正确的选项",
		Points:  points,
		Options: opts,
	}
}

func trueFalseRequest(points int, correct bool) QuestionRequest {
	return QuestionRequest{
		Type:        model.QuestionTrueFalse,
		Prompt:      "判断对错",
		Points:      points,
		CorrectBool: boolPtr(correct),
	}
}

// takeQuiz 开始一次尝试、按题目顺序作答并交卷
func (f *fixture) takeQuiz(t *testing.T, actor Actor, quiz *model.Quiz, answers ...model.SubmittedAnswer) *model.QuizAttempt {
	t.Helper()
	attempt, err := f.attempts.StartAttempt(f.ctx, actor, quiz.ID)
	require.NoError(t, err)
	for i, ans := range answers {
		_, err := f.attempts.SubmitAnswer(f.ctx, actor, attempt.ID, quiz.Questions[i].ID, ans)
		require.NoError(t, err)
	}
	graded, err := f.attempts.Finalize(f.ctx, actor, attempt.ID)
	require.NoError(t, err)
	return graded
}

func selected(idx ...int) model.SubmittedAnswer {
	return model.SubmittedAnswer{Selected: idx}
}

func answered(v bool) model.SubmittedAnswer {
	return model.SubmittedAnswer{Value: boolPtr(v)}
}

// collideOnCreate 注册一个插入前回调，用 collide 改写 T 的唯一键以模拟并发分配抢占同一序号。
// 返回的 arm 设置接下来冲突的次数，n < 0 表示每次都冲突
func collideOnCreate[T any](t *testing.T, db *gorm.DB, collide func(*T)) (arm func(n int)) {
	t.Helper()
	remaining := 0
	err := db.Callback().Create().Before("gorm:create").Register("test:collide", func(tx *gorm.DB) {
		row, ok := tx.Statement.Dest.(*T)
		if !ok || remaining == 0 {
			return
		}
		if remaining > 0 {
			remaining--
		}
		collide(row)
	})
	require.NoError(t, err)
	return func(n int) { remaining = n }
}
