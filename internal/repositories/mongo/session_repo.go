package mongo

import (
	"context"
	"errors"
	"time"

	"github.com/yoockh/medivoice/internal/models"
	"github.com/yoockh/medivoice/internal/utils"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type SessionRepository interface {
	Create(ctx context.Context, s *models.SessionDetails) error
	GetBySessionID(ctx context.Context, sessionID string) (*models.SessionDetails, error)
	ListRecent(ctx context.Context, limit int64) ([]models.SessionDetails, error)
	SetReport(ctx context.Context, sessionID string, report map[string]any, at time.Time) error
}

type sessionRepo struct {
	col *mongo.Collection
}

func NewSessionRepo(db *mongo.Database) SessionRepository {
	return &sessionRepo{col: db.Collection("sessions")}
}

func (r *sessionRepo) Create(ctx context.Context, s *models.SessionDetails) error {
	if s.CreatedOn.IsZero() {
		s.CreatedOn = time.Now().UTC()
	}
	res, err := r.col.InsertOne(ctx, s)
	if err != nil {
		return err
	}
	if id, ok := res.InsertedID.(primitive.ObjectID); ok {
		s.ID = id
	}
	return nil
}

func (r *sessionRepo) GetBySessionID(ctx context.Context, sessionID string) (*models.SessionDetails, error) {
	var s models.SessionDetails
	err := r.col.FindOne(ctx, bson.M{"session_id": sessionID}).Decode(&s)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, utils.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *sessionRepo) ListRecent(ctx context.Context, limit int64) ([]models.SessionDetails, error) {
	if limit <= 0 {
		limit = 50
	}

	cur, err := r.col.Find(ctx,
		bson.M{},
		options.Find().
			SetSort(bson.D{{Key: "created_on", Value: -1}}).
			SetLimit(limit),
	)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.SessionDetails
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *sessionRepo) SetReport(ctx context.Context, sessionID string, report map[string]any, at time.Time) error {
	res, err := r.col.UpdateOne(ctx,
		bson.M{"session_id": sessionID},
		bson.M{"$set": bson.M{
			"report":      report,
			"reported_at": at.UTC(),
		}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return utils.ErrNotFound
	}
	return nil
}
