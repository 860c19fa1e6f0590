package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type ActivityLog struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID      string             `bson:"user_id" json:"user_id"`
	UserName    string             `bson:"user_name,omitempty" json:"user_name,omitempty"`
	Action      string             `bson:"action" json:"action"`
	Entity      string             `bson:"entity" json:"entity"`
	EntityID    string             `bson:"entity_id,omitempty" json:"entity_id,omitempty"`
	Description string             `bson:"description" json:"description"`
	Metadata    map[string]any     `bson:"metadata,omitempty" json:"metadata,omitempty"`
	IPAddress   string             `bson:"ip_address,omitempty" json:"ip_address,omitempty"`
	UserAgent   string             `bson:"user_agent,omitempty" json:"user_agent,omitempty"`
	CreatedAt   time.Time          `bson:"created_at" json:"created_at"`
}
