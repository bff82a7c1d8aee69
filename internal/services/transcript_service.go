package services

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/yoockh/medivoice/internal/models"
	pgrepo "github.com/yoockh/medivoice/internal/repositories/postgres"
	"github.com/yoockh/medivoice/internal/utils"
	"gorm.io/datatypes"
)

type TranscriptService interface {
	Append(ctx context.Context, sessionID, callID, role, content string) (*models.TranscriptLog, error)
	ListBySession(ctx context.Context, sessionID string, limit int) ([]models.TranscriptLog, error)
}

type transcriptService struct {
	logs pgrepo.TranscriptRepo
}

func NewTranscriptService(logs pgrepo.TranscriptRepo) TranscriptService {
	return &transcriptService{logs: logs}
}

// Append is expected to be called by a single writer per session; seq is
// derived from the last stored row.
func (s *transcriptService) Append(ctx context.Context, sessionID, callID, role, content string) (*models.TranscriptLog, error) {
	const op = "TranscriptService.Append"

	if sessionID == "" || role == "" || strings.TrimSpace(content) == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "session_id, role, and content are required", nil)
	}

	last, err := s.logs.LastSeq(ctx, sessionID)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to read transcript position", err)
	}

	md, _ := json.Marshal(map[string]string{"call_id": callID})
	row := &models.TranscriptLog{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Seq:       last + 1,
		Role:      role,
		Content:   content,
		Timestamp: time.Now().UTC(),
		Metadata:  datatypes.JSON(md),
	}
	if err := s.logs.Insert(ctx, row); err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to insert transcript", err)
	}
	return row, nil
}

func (s *transcriptService) ListBySession(ctx context.Context, sessionID string, limit int) ([]models.TranscriptLog, error) {
	const op = "TranscriptService.ListBySession"

	if sessionID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "session_id is required", nil)
	}
	rows, err := s.logs.ListBySession(ctx, sessionID, limit)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to list transcript", err)
	}
	return rows, nil
}
