package store

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"parsikala_back_end/internal/apperr"
	"parsikala_back_end/internal/models"
)

// MongoPendingStore conserve les fiches de vérification SMS en attente.
// L'index unique (phone, purpose) sérialise les demandes concurrentes pour le
// même téléphone : il ne peut jamais y avoir deux codes vivants à la fois.
type MongoPendingStore struct {
	coll *mongo.Collection
}

func NewMongoPendingStore(db *mongo.Database) *MongoPendingStore {
	return &MongoPendingStore{coll: db.Collection("pending_verifications")}
}

// EnsureIndexes : clé unique (phone, purpose) + TTL sur expires_at. Le TTL est
// un filet de sécurité, l'expiration est de toute façon revérifiée à la lecture.
func (s *MongoPendingStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "phone", Value: 1}, {Key: "purpose", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(0),
		},
	})
	return err
}

func (s *MongoPendingStore) Upsert(ctx context.Context, p *models.PendingVerification) error {
	p.CreatedAt = time.Now()
	filter := bson.M{"phone": p.Phone, "purpose": p.Purpose}
	opts := options.Replace().SetUpsert(true)
	if _, err := s.coll.ReplaceOne(ctx, filter, p, opts); err != nil {
		return apperr.Wrap(apperr.CodeInternal, "Erreur enregistrement vérification", err)
	}
	return nil
}

func (s *MongoPendingStore) Get(ctx context.Context, phone string, purpose models.VerificationPurpose) (*models.PendingVerification, error) {
	var p models.PendingVerification
	if err := s.coll.FindOne(ctx, bson.M{"phone": phone, "purpose": purpose}).Decode(&p); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperr.New(apperr.CodeNotFound, "Aucune vérification en attente")
		}
		return nil, apperr.Wrap(apperr.CodeInternal, "Erreur lecture vérification", err)
	}
	return &p, nil
}

func (s *MongoPendingStore) IncrementAttempts(ctx context.Context, phone string, purpose models.VerificationPurpose) error {
	filter := bson.M{"phone": phone, "purpose": purpose}
	if _, err := s.coll.UpdateOne(ctx, filter, bson.M{"$inc": bson.M{"attempts": 1}}); err != nil {
		return apperr.Wrap(apperr.CodeInternal, "Erreur mise à jour tentatives", err)
	}
	return nil
}

func (s *MongoPendingStore) Delete(ctx context.Context, phone string, purpose models.VerificationPurpose) error {
	if _, err := s.coll.DeleteOne(ctx, bson.M{"phone": phone, "purpose": purpose}); err != nil {
		return apperr.Wrap(apperr.CodeInternal, "Erreur suppression vérification", err)
	}
	return nil
}
