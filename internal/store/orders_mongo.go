package store

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"parsikala_back_end/internal/apperr"
	"parsikala_back_end/internal/models"
)

type MongoOrderStore struct {
	coll *mongo.Collection
}

func NewMongoOrderStore(db *mongo.Database) *MongoOrderStore {
	return &MongoOrderStore{coll: db.Collection("orders")}
}

// EnsureIndexes crée l'index sur le jeton authority (recherche au callback de
// paiement) et les index de tri.
func (s *MongoOrderStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "payment_authority", Value: 1}}, Options: options.Index().SetSparse(true)},
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "created_at", Value: -1}}},
	})
	return err
}

func (s *MongoOrderStore) Insert(ctx context.Context, o *models.Order) error {
	now := time.Now()
	o.CreatedAt = now
	o.UpdatedAt = now
	if o.ID.IsZero() {
		o.ID = primitive.NewObjectID()
	}
	if _, err := s.coll.InsertOne(ctx, o); err != nil {
		return apperr.Wrap(apperr.CodeInternal, "Erreur enregistrement commande", err)
	}
	return nil
}

func (s *MongoOrderStore) GetByID(ctx context.Context, orderID string) (*models.Order, error) {
	oid, err := primitive.ObjectIDFromHex(orderID)
	if err != nil {
		return nil, apperr.New(apperr.CodeNotFound, "Commande introuvable")
	}

	var o models.Order
	if err := s.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&o); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperr.New(apperr.CodeNotFound, "Commande introuvable")
		}
		return nil, apperr.Wrap(apperr.CodeInternal, "Erreur lecture commande", err)
	}
	return &o, nil
}

func (s *MongoOrderStore) GetByAuthority(ctx context.Context, authority string) (*models.Order, error) {
	var o models.Order
	if err := s.coll.FindOne(ctx, bson.M{"payment_authority": authority}).Decode(&o); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperr.New(apperr.CodeNotFound, "Commande introuvable")
		}
		return nil, apperr.Wrap(apperr.CodeInternal, "Erreur lecture commande", err)
	}
	return &o, nil
}

func (s *MongoOrderStore) Update(ctx context.Context, o *models.Order) error {
	o.UpdatedAt = time.Now()
	res, err := s.coll.ReplaceOne(ctx, bson.M{"_id": o.ID}, o)
	if err != nil {
		return apperr.Wrap(apperr.CodeInternal, "Erreur mise à jour commande", err)
	}
	if res.MatchedCount == 0 {
		return apperr.New(apperr.CodeNotFound, "Commande introuvable")
	}
	return nil
}

func (s *MongoOrderStore) List(ctx context.Context, f OrderFilter) ([]models.Order, int64, error) {
	query := bson.M{}
	if f.UserID != "" {
		query["user_id"] = f.UserID
	}
	if f.Status != "" {
		query["status"] = f.Status
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
	if f.MinAmount > 0 || f.MaxAmount > 0 {
		amountRange := bson.M{}
		if f.MinAmount > 0 {
			amountRange["$gte"] = f.MinAmount
		}
		if f.MaxAmount > 0 {
			amountRange["$lte"] = f.MaxAmount
		}
		query["total_amount"] = amountRange
	}

	page := f.Page
	if page < 1 {
		page = 1
	}
	limit := f.Limit
	if limit <= 0 || limit > 100 {
		limit = 10
	}

	total, err := s.coll.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, apperr.Wrap(apperr.CodeInternal, "Erreur comptage commandes", err)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetSkip(int64((page - 1) * limit)).
		SetLimit(int64(limit))

	cursor, err := s.coll.Find(ctx, query, opts)
	if err != nil {
		return nil, 0, apperr.Wrap(apperr.CodeInternal, "Erreur lecture commandes", err)
	}
	defer cursor.Close(ctx)

	var orders []models.Order
	if err := cursor.All(ctx, &orders); err != nil {
		return nil, 0, apperr.Wrap(apperr.CodeInternal, "Erreur décodage commandes", err)
	}
	return orders, total, nil
}

func (s *MongoOrderStore) ListSince(ctx context.Context, since time.Time, statuses []models.OrderStatus) ([]models.Order, error) {
	query := bson.M{"created_at": bson.M{"$gte": since}}
	if len(statuses) > 0 {
		query["status"] = bson.M{"$in": statuses}
	}

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := s.coll.Find(ctx, query, opts)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, "Erreur lecture commandes", err)
	}
	defer cursor.Close(ctx)

	var orders []models.Order
	if err := cursor.All(ctx, &orders); err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, "Erreur décodage commandes", err)
	}
	return orders, nil
}
