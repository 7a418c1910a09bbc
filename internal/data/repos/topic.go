package repos

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/splitlearn/splitlearn-backend/internal/domain"
	"github.com/splitlearn/splitlearn-backend/internal/platform/dbctx"
	"github.com/splitlearn/splitlearn-backend/internal/platform/logger"
)

type TopicRepo interface {
	// GetBySlideID returns nil (no error) when the slide has no topic yet.
	GetBySlideID(dbc dbctx.Context, slideID uuid.UUID) (*domain.Topic, error)
	GetBySlideIDs(dbc dbctx.Context, slideIDs []uuid.UUID) ([]*domain.Topic, error)
	Create(dbc dbctx.Context, topic *domain.Topic) (*domain.Topic, error)
}

type topicRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewTopicRepo(db *gorm.DB, baseLog *logger.Logger) TopicRepo {
	return &topicRepo{db: db, log: baseLog.With("repo", "TopicRepo")}
}

func (r *topicRepo) tx(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx
	}
	return r.db
}

func (r *topicRepo) GetBySlideID(dbc dbctx.Context, slideID uuid.UUID) (*domain.Topic, error) {
	var result domain.Topic
	err := r.tx(dbc).WithContext(dbc.Ctx).Where("slide_id = ?", slideID).First(&result).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (r *topicRepo) GetBySlideIDs(dbc dbctx.Context, slideIDs []uuid.UUID) ([]*domain.Topic, error) {
	var results []*domain.Topic
	if len(slideIDs) == 0 {
		return results, nil
	}
	if err := r.tx(dbc).WithContext(dbc.Ctx).
		Where("slide_id IN ?", slideIDs).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *topicRepo) Create(dbc dbctx.Context, topic *domain.Topic) (*domain.Topic, error) {
	if err := r.tx(dbc).WithContext(dbc.Ctx).Create(topic).Error; err != nil {
		return nil, err
	}
	return topic, nil
}
