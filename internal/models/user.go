package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type RefreshToken struct {
	Token     string    `bson:"token" json:"-"`
	ExpiresAt time.Time `bson:"expires_at" json:"-"`
	CreatedAt time.Time `bson:"created_at" json:"-"`
}

type User struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name          string             `bson:"name" json:"name"`
	LastName      string             `bson:"last_name" json:"last_name"`
	Email         string             `bson:"email" json:"email"`
	Phone         string             `bson:"phone" json:"phone"`
	PhoneVerified bool               `bson:"phone_verified" json:"phone_verified"`
	Password      string             `bson:"password" json:"-"` // hash argon2id
	Role          string             `bson:"role" json:"role"`  // "user" | "admin"
	IsActive      bool               `bson:"is_active" json:"is_active"`
	Avatar        string             `bson:"avatar,omitempty" json:"avatar,omitempty"`
	Address       string             `bson:"address,omitempty" json:"address,omitempty"`
	PostalCode    string             `bson:"postal_code,omitempty" json:"postal_code,omitempty"`
	RefreshTokens []RefreshToken     `bson:"refresh_tokens,omitempty" json:"-"`
	CreatedAt     time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt     time.Time          `bson:"updated_at" json:"updated_at"`
}
