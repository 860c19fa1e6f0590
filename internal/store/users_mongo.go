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

type MongoUserStore struct {
	coll *mongo.Collection
}

func NewMongoUserStore(db *mongo.Database) *MongoUserStore {
	return &MongoUserStore{coll: db.Collection("users")}
}

// EnsureIndexes : un téléphone n'est revendiqué que par un seul utilisateur
// vérifié (index unique partiel).
func (s *MongoUserStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "phone", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"phone_verified": true}),
		},
		{Keys: bson.D{{Key: "email", Value: 1}}},
	})
	return err
}

func (s *MongoUserStore) Insert(ctx context.Context, u *models.User) error {
	now := time.Now()
	u.CreatedAt = now
	u.UpdatedAt = now
	if u.ID.IsZero() {
		u.ID = primitive.NewObjectID()
	}
	if _, err := s.coll.InsertOne(ctx, u); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return apperr.New(apperr.CodeConflict, "Ce numéro de téléphone est déjà enregistré")
		}
		return apperr.Wrap(apperr.CodeInternal, "Erreur création utilisateur", err)
	}
	return nil
}

func (s *MongoUserStore) GetByID(ctx context.Context, userID string) (*models.User, error) {
	oid, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return nil, apperr.New(apperr.CodeNotFound, "Utilisateur introuvable")
	}

	var u models.User
	if err := s.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&u); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperr.New(apperr.CodeNotFound, "Utilisateur introuvable")
		}
		return nil, apperr.Wrap(apperr.CodeInternal, "Erreur lecture utilisateur", err)
	}
	return &u, nil
}

// GetByPhone cherche par téléphone, puis par email (anciens comptes créés
// avant la généralisation du téléphone comme identifiant).
func (s *MongoUserStore) GetByPhone(ctx context.Context, phone string) (*models.User, error) {
	var u models.User
	filter := bson.M{"$or": bson.A{bson.M{"phone": phone}, bson.M{"email": phone}}}
	if err := s.coll.FindOne(ctx, filter).Decode(&u); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperr.New(apperr.CodeNotFound, "Utilisateur introuvable")
		}
		return nil, apperr.Wrap(apperr.CodeInternal, "Erreur lecture utilisateur", err)
	}
	return &u, nil
}

func (s *MongoUserStore) VerifiedPhoneExists(ctx context.Context, phone string) (bool, error) {
	count, err := s.coll.CountDocuments(ctx, bson.M{"phone": phone, "phone_verified": true})
	if err != nil {
		return false, apperr.Wrap(apperr.CodeInternal, "Erreur vérification téléphone", err)
	}
	return count > 0, nil
}

func (s *MongoUserStore) Update(ctx context.Context, u *models.User) error {
	u.UpdatedAt = time.Now()
	res, err := s.coll.ReplaceOne(ctx, bson.M{"_id": u.ID}, u)
	if err != nil {
		return apperr.Wrap(apperr.CodeInternal, "Erreur mise à jour utilisateur", err)
	}
	if res.MatchedCount == 0 {
		return apperr.New(apperr.CodeNotFound, "Utilisateur introuvable")
	}
	return nil
}

func (s *MongoUserStore) AddRefreshToken(ctx context.Context, userID string, rt models.RefreshToken) error {
	oid, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return apperr.New(apperr.CodeNotFound, "Utilisateur introuvable")
	}
	_, err = s.coll.UpdateOne(ctx, bson.M{"_id": oid},
		bson.M{"$push": bson.M{"refresh_tokens": rt}})
	if err != nil {
		return apperr.Wrap(apperr.CodeInternal, "Erreur enregistrement refresh token", err)
	}
	return nil
}

func (s *MongoUserStore) RemoveRefreshToken(ctx context.Context, userID, token string) error {
	oid, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return apperr.New(apperr.CodeNotFound, "Utilisateur introuvable")
	}
	_, err = s.coll.UpdateOne(ctx, bson.M{"_id": oid},
		bson.M{"$pull": bson.M{"refresh_tokens": bson.M{"token": token}}})
	if err != nil {
		return apperr.Wrap(apperr.CodeInternal, "Erreur révocation refresh token", err)
	}
	return nil
}

func (s *MongoUserStore) SetPassword(ctx context.Context, userID, hashed string) error {
	oid, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return apperr.New(apperr.CodeNotFound, "Utilisateur introuvable")
	}
	res, err := s.coll.UpdateOne(ctx, bson.M{"_id": oid},
		bson.M{"$set": bson.M{"password": hashed, "updated_at": time.Now()}})
	if err != nil {
		return apperr.Wrap(apperr.CodeInternal, "Erreur changement mot de passe", err)
	}
	if res.MatchedCount == 0 {
		return apperr.New(apperr.CodeNotFound, "Utilisateur introuvable")
	}
	return nil
}
