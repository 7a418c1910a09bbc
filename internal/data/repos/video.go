package repos

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/splitlearn/splitlearn-backend/internal/domain"
	"github.com/splitlearn/splitlearn-backend/internal/platform/dbctx"
	"github.com/splitlearn/splitlearn-backend/internal/platform/logger"
)

type VideoRepo interface {
	Create(dbc dbctx.Context, videos []*domain.Video) ([]*domain.Video, error)
	GetByTopicID(dbc dbctx.Context, topicID uuid.UUID) ([]*domain.Video, error)
}

type videoRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewVideoRepo(db *gorm.DB, baseLog *logger.Logger) VideoRepo {
	return &videoRepo{db: db, log: baseLog.With("repo", "VideoRepo")}
}

func (r *videoRepo) tx(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx
	}
	return r.db
}

func (r *videoRepo) Create(dbc dbctx.Context, videos []*domain.Video) ([]*domain.Video, error) {
	if len(videos) == 0 {
		return []*domain.Video{}, nil
	}
	if err := r.tx(dbc).WithContext(dbc.Ctx).Create(&videos).Error; err != nil {
		return nil, err
	}
	return videos, nil
}

func (r *videoRepo) GetByTopicID(dbc dbctx.Context, topicID uuid.UUID) ([]*domain.Video, error) {
	var results []*domain.Video
	if err := r.tx(dbc).WithContext(dbc.Ctx).
		Where("topic_id = ?", topicID).
		Order("subpoint_index ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
