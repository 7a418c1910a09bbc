package repos

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/splitlearn/splitlearn-backend/internal/domain"
	"github.com/splitlearn/splitlearn-backend/internal/platform/dbctx"
	"github.com/splitlearn/splitlearn-backend/internal/platform/logger"
)

type SlideRepo interface {
	GetByExamID(dbc dbctx.Context, examID uuid.UUID) ([]*domain.Slide, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*domain.Slide, error)
	Create(dbc dbctx.Context, slides []*domain.Slide) ([]*domain.Slide, error)
	UpdateStatus(dbc dbctx.Context, id uuid.UUID, status string, errMsg string) error
	MarkProcessing(dbc dbctx.Context, ids []uuid.UUID) error
}

type slideRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSlideRepo(db *gorm.DB, baseLog *logger.Logger) SlideRepo {
	return &slideRepo{db: db, log: baseLog.With("repo", "SlideRepo")}
}

func (r *slideRepo) tx(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx
	}
	return r.db
}

func (r *slideRepo) GetByExamID(dbc dbctx.Context, examID uuid.UUID) ([]*domain.Slide, error) {
	var results []*domain.Slide
	if err := r.tx(dbc).WithContext(dbc.Ctx).
		Where("exam_id = ?", examID).
		Order("created_at ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *slideRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*domain.Slide, error) {
	var result domain.Slide
	err := r.tx(dbc).WithContext(dbc.Ctx).Where("id = ?", id).First(&result).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (r *slideRepo) Create(dbc dbctx.Context, slides []*domain.Slide) ([]*domain.Slide, error) {
	if len(slides) == 0 {
		return []*domain.Slide{}, nil
	}
	if err := r.tx(dbc).WithContext(dbc.Ctx).Create(&slides).Error; err != nil {
		return nil, err
	}
	return slides, nil
}

func (r *slideRepo) UpdateStatus(dbc dbctx.Context, id uuid.UUID, status string, errMsg string) error {
	updates := map[string]any{"status": status, "error": errMsg}
	return r.tx(dbc).WithContext(dbc.Ctx).
		Model(&domain.Slide{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *slideRepo) MarkProcessing(dbc dbctx.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	return r.tx(dbc).WithContext(dbc.Ctx).
		Model(&domain.Slide{}).
		Where("id IN ?", ids).
		Updates(map[string]any{"status": domain.SlideStatusProcessing, "error": ""}).Error
}
