package store

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"parsikala_back_end/internal/apperr"
	"parsikala_back_end/internal/models"
)

type MongoActivityStore struct {
	coll *mongo.Collection
}

func NewMongoActivityStore(db *mongo.Database) *MongoActivityStore {
	return &MongoActivityStore{coll: db.Collection("activity_logs")}
}

func (s *MongoActivityStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "action", Value: 1}}},
	})
	return err
}

func (s *MongoActivityStore) Insert(ctx context.Context, a *models.ActivityLog) error {
	if a.ID.IsZero() {
		a.ID = primitive.NewObjectID()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}
	if _, err := s.coll.InsertOne(ctx, a); err != nil {
		return apperr.Wrap(apperr.CodeInternal, "Erreur enregistrement activité", err)
	}
	return nil
}

func (s *MongoActivityStore) List(ctx context.Context, f ActivityFilter) ([]models.ActivityLog, int64, error) {
	query := bson.M{}
	if f.UserID != "" {
		query["user_id"] = f.UserID
	}
	if f.Action != "" {
		query["action"] = f.Action
	}
	if f.Entity != "" {
		query["entity"] = f.Entity
	}
	if f.DateFrom != nil || f.DateTo != nil {
		dateRange := bson.M{}
		if f.DateFrom != nil {
			dateRange["$gte"] = *f.DateFrom
		}
		if f.DateTo != nil {
			dateRange["$lte"] = *f.DateTo
		}
		query["created_at"] = dateRange
	}

	page := f.Page
	if page < 1 {
		page = 1
	}
	limit := f.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	total, err := s.coll.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, apperr.Wrap(apperr.CodeInternal, "Erreur comptage activités", err)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetSkip(int64((page - 1) * limit)).
		SetLimit(int64(limit))

	cursor, err := s.coll.Find(ctx, query, opts)
	if err != nil {
		return nil, 0, apperr.Wrap(apperr.CodeInternal, "Erreur lecture activités", err)
	}
	defer cursor.Close(ctx)

	var logs []models.ActivityLog
	if err := cursor.All(ctx, &logs); err != nil {
		return nil, 0, apperr.Wrap(apperr.CodeInternal, "Erreur décodage activités", err)
	}
	return logs, total, nil
}
