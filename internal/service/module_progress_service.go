package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/mmo7amed2010/swenam-sis-sub001/internal/model"
	"github.com/mmo7amed2010/swenam-sis-sub001/internal/repository"
	"github.com/mmo7amed2010/swenam-sis-sub001/internal/util"
	"github.com/mmo7amed2010/swenam-sis-sub001/pkg/logger"
	"github.com/mmo7amed2010/swenam-sis-sub001/pkg/monitoring"
	"github.com/mmo7amed2010/swenam-sis-sub001/pkg/tracing"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ModuleProgressService struct {
	CourseRepo       *repository.CourseRepository
	ItemRepo         *repository.ModuleItemRepository
	ItemProgressRepo *repository.ItemProgressRepository
	QuizRepo         *repository.QuizRepository
	AttemptRepo      *repository.QuizAttemptRepository
	ProgressRepo     *repository.ModuleProgressRepository
	Events           EventPublisher
}

func NewModuleProgressService(db *gorm.DB, events EventPublisher) *ModuleProgressService {
	return &ModuleProgressService{
		CourseRepo:       repository.NewCourseRepository(db),
		ItemRepo:         repository.NewModuleItemRepository(db),
		ItemProgressRepo: repository.NewItemProgressRepository(db),
		QuizRepo:         repository.NewQuizRepository(db),
		AttemptRepo:      repository.NewQuizAttemptRepository(db),
		ProgressRepo:     repository.NewModuleProgressRepository(db),
		Events:           events,
	}
}

// ModuleProgressView 课程内单个模块的进度及是否被前序考试锁定
type ModuleProgressView struct {
	Module   model.Module         `json:"module"`
	Progress model.ModuleProgress `json:"progress"`
	Locked   bool                 `json:"locked"`
}

// Recompute 全量重算 (学习者, 模块) 的状态并 upsert
func (s *ModuleProgressService) Recompute(ctx context.Context, userID, moduleID uint) (*model.ModuleProgress, error) {
	ctx, span := tracing.Start(ctx, "ModuleProgressService.Recompute")
	defer span.End()

	module, err := s.CourseRepo.FindModule(ctx, moduleID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, util.ErrModuleNotFound
		}
		return nil, err
	}
	if !module.IsActive() {
		return nil, util.ErrModuleArchived
	}

	in, err := s.loadInput(ctx, userID, module)
	if err != nil {
		return nil, err
	}
	ev := EvaluateModule(*in)

	progress := &model.ModuleProgress{UserID: userID, ModuleID: moduleID}
	ev.Apply(progress)
	if err := s.ProgressRepo.Upsert(ctx, progress); err != nil {
		return nil, err
	}

	from := model.ModuleNotStarted
	if in.Previous != nil {
		from = in.Previous.Status
	}
	if from != progress.Status {
		monitoring.ModuleTransitions.WithLabelValues(string(from), string(progress.Status)).Inc()
		logger.Log.Info("module status changed",
			zap.Uint("userID", userID),
			zap.Uint("moduleID", moduleID),
			zap.String("from", string(from)),
			zap.String("to", string(progress.Status)))
		s.Events.Publish(EventModuleProgressChanged, userID, map[string]interface{}{
			"moduleId": moduleID,
			"from":     from,
			"to":       progress.Status,
		})
	}

	return s.ProgressRepo.Find(ctx, userID, moduleID)
}

func (s *ModuleProgressService) loadInput(ctx context.Context, userID uint, module *model.Module) (*ModuleInput, error) {
	in := &ModuleInput{Module: *module, CompletedItems: map[uint]bool{}, Now: nowFunc()}

	items, err := s.ItemRepo.ListByModule(ctx, module.ID)
	if err != nil {
		return nil, err
	}
	in.Items = items

	itemIDs := make([]uint, 0, len(items))
	for _, item := range items {
		itemIDs = append(itemIDs, item.ID)
	}
	rows, err := s.ItemProgressRepo.ListForItems(ctx, userID, itemIDs)
	if err != nil {
		return nil, err
	}
	for _, p := range rows {
		if p.Completed() {
			in.CompletedItems[p.ItemID] = true
		}
	}

	primary, err := s.QuizRepo.FindPrimaryExam(ctx, module.ID)
	if err != nil && !repository.IsNotFound(err) {
		return nil, err
	}
	if primary != nil {
		in.PrimaryExam = primary
		retake, err := s.QuizRepo.FindRetakeFor(ctx, primary.ID)
		if err != nil && !repository.IsNotFound(err) {
			return nil, err
		}
		in.RetakeExam = retake

		if err := s.collectExamAttempts(ctx, in, userID, primary, false); err != nil {
			return nil, err
		}
		if retake != nil {
			if err := s.collectExamAttempts(ctx, in, userID, retake, true); err != nil {
				return nil, err
			}
		}
	}

	prev, err := s.ProgressRepo.Find(ctx, userID, module.ID)
	if err != nil && !repository.IsNotFound(err) {
		return nil, err
	}
	in.Previous = prev
	return in, nil
}

func (s *ModuleProgressService) collectExamAttempts(ctx context.Context, in *ModuleInput, userID uint, quiz *model.Quiz, retake bool) error {
	attempts, err := s.AttemptRepo.ListByUserQuiz(ctx, userID, quiz.ID)
	if err != nil {
		return err
	}
	for _, a := range attempts {
		in.AnyActivity = true
		if retake {
			in.RetakeStarted = true
		}
		if a.Status != model.AttemptGraded || a.Percentage == nil || a.EndTime == nil {
			continue
		}
		in.ExamAttempts = append(in.ExamAttempts, ExamAttemptResult{
			QuizID:        quiz.ID,
			Retake:        retake,
			AttemptNumber: a.AttemptNumber,
			Percentage:    *a.Percentage,
			Passed:        a.Passed,
			EndTime:       *a.EndTime,
		})
	}
	return nil
}

// CheckModuleAccess 前序所有 requiresExamPass 的模块都必须已完成
func (s *ModuleProgressService) CheckModuleAccess(ctx context.Context, userID, moduleID uint) (*model.Module, error) {
	module, err := s.CourseRepo.FindModule(ctx, moduleID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, util.ErrModuleNotFound
		}
		return nil, err
	}
	if !module.IsActive() {
		return nil, util.ErrModuleArchived
	}

	modules, err := s.CourseRepo.ListActiveModules(ctx, module.CourseID)
	if err != nil {
		return nil, err
	}
	gates := precedingGates(modules, module)
	if len(gates) == 0 {
		return module, nil
	}
	progress, err := s.ProgressRepo.ListByUserModules(ctx, userID, gates)
	if err != nil {
		return nil, err
	}
	for _, id := range gates {
		if p, ok := progress[id]; !ok || p.Status != model.ModuleCompleted {
			return nil, fmt.Errorf("module %d gated by module %d: %w", moduleID, id, util.ErrModuleLocked)
		}
	}
	return module, nil
}

// precedingGates 排在 target 之前且需要考试通过的模块
func precedingGates(modules []model.Module, target *model.Module) []uint {
	var gates []uint
	for _, m := range modules {
		if m.ID == target.ID {
			break
		}
		if m.RequiresExamPass {
			gates = append(gates, m.ID)
		}
	}
	return gates
}

// CheckItemAccess 学习者访问 item 的统一规则：模块门控加发布时间
func (s *ModuleProgressService) CheckItemAccess(ctx context.Context, userID uint, item *model.ModuleItem) error {
	if _, err := s.CheckModuleAccess(ctx, userID, item.ModuleID); err != nil {
		return err
	}
	if !item.Released(nowFunc()) {
		return util.ErrItemNotReleased
	}
	return nil
}

// CheckExamAccess 在模块访问检查之外，拒绝已锁定模块的考试，并要求补考已解锁
func (s *ModuleProgressService) CheckExamAccess(ctx context.Context, userID uint, quiz *model.Quiz) error {
	progress, err := s.GetModuleProgress(ctx, userID, *quiz.ModuleID)
	if err != nil {
		return err
	}
	if progress.Status == model.ModuleExamLocked {
		return util.ErrModuleExamLocked
	}
	if quiz.IsRetakeExam && progress.RetakeUnlockedAt == nil {
		return fmt.Errorf("retake exam %d not unlocked: %w", quiz.ID, util.ErrQuizNotAvailable)
	}
	return nil
}

// GetModuleProgress 尚无记录时返回 not_started
func (s *ModuleProgressService) GetModuleProgress(ctx context.Context, userID, moduleID uint) (*model.ModuleProgress, error) {
	p, err := s.ProgressRepo.Find(ctx, userID, moduleID)
	if err == nil {
		return p, nil
	}
	if !repository.IsNotFound(err) {
		return nil, err
	}
	return &model.ModuleProgress{UserID: userID, ModuleID: moduleID, Status: model.ModuleNotStarted}, nil
}

func (s *ModuleProgressService) ListCourseProgress(ctx context.Context, userID, courseID uint) ([]ModuleProgressView, error) {
	modules, err := s.CourseRepo.ListActiveModules(ctx, courseID)
	if err != nil {
		return nil, err
	}
	ids := make([]uint, 0, len(modules))
	for _, m := range modules {
		ids = append(ids, m.ID)
	}
	progress, err := s.ProgressRepo.ListByUserModules(ctx, userID, ids)
	if err != nil {
		return nil, err
	}

	views := make([]ModuleProgressView, 0, len(modules))
	locked := false
	for _, m := range modules {
		p, ok := progress[m.ID]
		if !ok {
			p = model.ModuleProgress{UserID: userID, ModuleID: m.ID, Status: model.ModuleNotStarted}
		}
		views = append(views, ModuleProgressView{Module: m, Progress: p, Locked: locked})
		if m.RequiresExamPass && p.Status != model.ModuleCompleted {
			locked = true
		}
	}
	return views, nil
}

// ModuleForContent 内容所在的模块：优先取 ModuleItem，其次取内容自身的 moduleId
func (s *ModuleProgressService) ModuleForContent(ctx context.Context, kind model.ItemKind, contentID uint, fallback *uint) (uint, bool, error) {
	item, err := s.ItemRepo.FindByContent(ctx, kind, contentID)
	if err == nil {
		return item.ModuleID, true, nil
	}
	if !repository.IsNotFound(err) {
		return 0, false, err
	}
	if fallback != nil {
		return *fallback, true, nil
	}
	return 0, false, nil
}

// RecomputeQuietly 用于写操作提交之后的联动重算，失败只记录日志
func (s *ModuleProgressService) RecomputeQuietly(ctx context.Context, userID, moduleID uint) {
	if _, err := s.Recompute(ctx, userID, moduleID); err != nil && !errors.Is(err, util.ErrModuleArchived) {
		logger.Log.Warn("module recompute failed",
			zap.Uint("userID", userID),
			zap.Uint("moduleID", moduleID),
			zap.Error(err))
	}
}
