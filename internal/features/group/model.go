package group

import (
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Group kinds mirror the two permission scopes
const (
	KindSystem   = "system"
	KindDocument = "document"
)

var ErrNotFound = errors.New("group not found")

// Group is a named set of principals that grants can target
type Group struct {
	ID        primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	Name      string             `json:"name" bson:"name"`
	Kind      string             `json:"kind" bson:"kind"` // "system" or "document"
	CreatedAt time.Time          `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time          `json:"updated_at" bson:"updated_at"`
}

// GroupMember links one user to one group. Duplicate (group, user)
// rows are tolerated; resolution must not double-count them.
type GroupMember struct {
	ID        primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	GroupID   string             `json:"group_id" bson:"group_id"`
	UserID    string             `json:"user_id" bson:"user_id"`
	CreatedAt time.Time          `json:"created_at" bson:"created_at"`
}

// AddMemberRequest adds a user to a group
type AddMemberRequest struct {
	UserID string `json:"user_id"`
}
