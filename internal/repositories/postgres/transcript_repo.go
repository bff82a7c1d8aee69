package postgres

import (
	"context"

	"github.com/yoockh/medivoice/internal/models"
	"gorm.io/gorm"
)

type TranscriptRepo interface {
	Insert(ctx context.Context, log *models.TranscriptLog) error
	ListBySession(ctx context.Context, sessionID string, limit int) ([]models.TranscriptLog, error)
	LastSeq(ctx context.Context, sessionID string) (int64, error)
}

type transcriptRepo struct {
	db *gorm.DB
}

func NewTranscriptRepo(db *gorm.DB) TranscriptRepo {
	return &transcriptRepo{db: db}
}

func (r *transcriptRepo) Insert(ctx context.Context, log *models.TranscriptLog) error {
	return r.db.WithContext(ctx).Create(log).Error
}

// ListBySession returns the log in utterance order.
func (r *transcriptRepo) ListBySession(ctx context.Context, sessionID string, limit int) ([]models.TranscriptLog, error) {
	if limit <= 0 {
		limit = 500
	}

	var rows []models.TranscriptLog
	err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("seq ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (r *transcriptRepo) LastSeq(ctx context.Context, sessionID string) (int64, error) {
	var seq int64
	err := r.db.WithContext(ctx).
		Model(&models.TranscriptLog{}).
		Where("session_id = ?", sessionID).
		Select("COALESCE(MAX(seq), 0)").
		Scan(&seq).Error
	return seq, err
}
