package service

import (
	"context"

	"github.com/mmo7amed2010/swenam-sis-sub001/internal/model"
	"github.com/mmo7amed2010/swenam-sis-sub001/internal/repository"
	"github.com/mmo7amed2010/swenam-sis-sub001/pkg/logger"
	"github.com/mmo7amed2010/swenam-sis-sub001/pkg/monitoring"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	ViolationDanglingItem   = "dangling_item"
	ViolationOrphanProgress = "orphan_progress"
)

type IntegrityViolation struct {
	Kind      string `json:"kind"`
	ItemID    uint   `json:"itemId"`
	ContentID uint   `json:"contentId,omitempty"`
	Detail    string `json:"detail"`
}

type IntegrityReport struct {
	ItemsChecked int                  `json:"itemsChecked"`
	Violations   []IntegrityViolation `json:"violations"`
}

// IntegrityService 只报告不修复：ModuleItem 指向已删除的内容、ItemProgress 指向已删除的 item
type IntegrityService struct {
	CourseRepo       *repository.CourseRepository
	ItemRepo         *repository.ModuleItemRepository
	ItemProgressRepo *repository.ItemProgressRepository
	QuizRepo         *repository.QuizRepository
	AssignmentRepo   *repository.AssignmentRepository
}

func NewIntegrityService(db *gorm.DB) *IntegrityService {
	return &IntegrityService{
		CourseRepo:       repository.NewCourseRepository(db),
		ItemRepo:         repository.NewModuleItemRepository(db),
		ItemProgressRepo: repository.NewItemProgressRepository(db),
		QuizRepo:         repository.NewQuizRepository(db),
		AssignmentRepo:   repository.NewAssignmentRepository(db),
	}
}

func (s *IntegrityService) Sweep(ctx context.Context) (*IntegrityReport, error) {
	items, err := s.ItemRepo.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	report := &IntegrityReport{ItemsChecked: len(items), Violations: []IntegrityViolation{}}

	for i := range items {
		item := &items[i]
		ref, err := item.Ref()
		if err != nil {
			report.add(IntegrityViolation{Kind: ViolationDanglingItem, ItemID: item.ID, ContentID: item.ContentID, Detail: err.Error()})
			continue
		}
		exists, err := s.contentExists(ctx, ref)
		if err != nil {
			return nil, err
		}
		if !exists {
			report.add(IntegrityViolation{
				Kind:      ViolationDanglingItem,
				ItemID:    item.ID,
				ContentID: item.ContentID,
				Detail:    string(item.ContentKind) + " record is missing",
			})
		}
	}

	orphans, err := s.ItemProgressRepo.ListOrphaned(ctx)
	if err != nil {
		return nil, err
	}
	for _, p := range orphans {
		report.add(IntegrityViolation{Kind: ViolationOrphanProgress, ItemID: p.ItemID, Detail: "progress row for deleted item"})
	}

	if len(report.Violations) > 0 {
		logger.Log.Error("integrity sweep found violations", zap.Int("count", len(report.Violations)))
	} else {
		logger.Log.Info("integrity sweep clean", zap.Int("itemsChecked", report.ItemsChecked))
	}
	return report, nil
}

func (r *IntegrityReport) add(v IntegrityViolation) {
	r.Violations = append(r.Violations, v)
	monitoring.IntegrityViolations.WithLabelValues(v.Kind).Inc()
	logger.Log.Warn("integrity violation",
		zap.String("kind", v.Kind),
		zap.Uint("itemID", v.ItemID),
		zap.Uint("contentID", v.ContentID),
		zap.String("detail", v.Detail))
}

func (s *IntegrityService) contentExists(ctx context.Context, ref model.ItemRef) (bool, error) {
	type result struct {
		ok  bool
		err error
	}
	res := model.MatchRef(ref,
		func(r model.LessonRef) result {
			ok, err := s.CourseRepo.LessonExists(ctx, r.LessonID)
			return result{ok, err}
		},
		func(r model.QuizRef) result {
			ok, err := s.QuizRepo.Exists(ctx, r.QuizID)
			return result{ok, err}
		},
		func(r model.AssignmentRef) result {
			ok, err := s.AssignmentRepo.Exists(ctx, r.AssignmentID)
			return result{ok, err}
		},
	)
	return res.ok, res.err
}

// Schedule 注册定时巡检任务
func (s *IntegrityService) Schedule(c *cron.Cron, spec string) (cron.EntryID, error) {
	return c.AddFunc(spec, func() {
		if _, err := s.Sweep(context.Background()); err != nil {
			logger.Log.Error("integrity sweep failed", zap.Error(err))
		}
	})
}
