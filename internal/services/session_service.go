package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/yoockh/medivoice/internal/cache"
	"github.com/yoockh/medivoice/internal/models"
	mongorepo "github.com/yoockh/medivoice/internal/repositories/mongo"
	"github.com/yoockh/medivoice/internal/utils"
)

type SessionService interface {
	Create(ctx context.Context, notes string, doctor *models.DoctorAgent) (*models.SessionDetails, error)
	Get(ctx context.Context, sessionID string) (*models.SessionDetails, error)
	History(ctx context.Context, limit int64) ([]models.SessionSummary, error)
	SaveReport(ctx context.Context, sessionID string, report map[string]any) error
}

type sessionService struct {
	sessions mongorepo.SessionRepository
	cache    cache.Cache
	ttl      time.Duration
	log      *logrus.Logger
}

// NewSessionService caches session details for ttl when c is non-nil.
func NewSessionService(sessions mongorepo.SessionRepository, c cache.Cache, ttl time.Duration, log *logrus.Logger) SessionService {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	if log == nil {
		log = logrus.New()
	}
	return &sessionService{sessions: sessions, cache: c, ttl: ttl, log: log}
}

func (s *sessionService) Create(ctx context.Context, notes string, doctor *models.DoctorAgent) (*models.SessionDetails, error) {
	const op = "SessionService.Create"

	notes = strings.TrimSpace(notes)
	if notes == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "notes are required", nil)
	}
	if doctor == nil {
		return nil, utils.E(utils.CodeInvalidArgument, op, "selectedDoctor is required", nil)
	}

	session := &models.SessionDetails{
		SessionID:      uuid.NewString(),
		Notes:          notes,
		SelectedDoctor: doctor,
		CreatedOn:      time.Now().UTC(),
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to create session", err)
	}
	return session, nil
}

func (s *sessionService) Get(ctx context.Context, sessionID string) (*models.SessionDetails, error) {
	const op = "SessionService.Get"

	if sessionID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "sessionId is required", nil)
	}

	key := cache.SessionKey(sessionID)
	if s.cache != nil {
		var cached models.SessionDetails
		hit, err := s.cache.GetJSON(ctx, key, &cached)
		if err != nil {
			s.log.WithError(err).WithField("session_id", sessionID).Warn("session cache read failed")
		}
		if hit {
			return &cached, nil
		}
	}

	out, err := s.sessions.GetBySessionID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, utils.E(utils.CodeNotFound, op, "session not found", err)
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to get session", err)
	}

	if s.cache != nil {
		if err := s.cache.SetJSON(ctx, key, out, s.ttl); err != nil {
			s.log.WithError(err).WithField("session_id", sessionID).Warn("session cache write failed")
		}
	}
	return out, nil
}

func (s *sessionService) History(ctx context.Context, limit int64) ([]models.SessionSummary, error) {
	const op = "SessionService.History"

	rows, err := s.sessions.ListRecent(ctx, limit)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to list sessions", err)
	}
	out := make([]models.SessionSummary, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].Summary())
	}
	return out, nil
}

func (s *sessionService) SaveReport(ctx context.Context, sessionID string, report map[string]any) error {
	const op = "SessionService.SaveReport"

	if sessionID == "" || len(report) == 0 {
		return utils.E(utils.CodeInvalidArgument, op, "sessionId and report are required", nil)
	}
	if err := s.sessions.SetReport(ctx, sessionID, report, time.Now().UTC()); err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return utils.E(utils.CodeNotFound, op, "session not found", err)
		}
		return utils.E(utils.CodeInternal, op, "failed to save report", err)
	}
	if s.cache != nil {
		_ = s.cache.Del(ctx, cache.SessionKey(sessionID))
	}
	return nil
}
