package permission

import (
	"errors"
	"strings"
	"time"
)

// Assignee types for both grant kinds
const (
	AssigneeUser  = "user"
	AssigneeGroup = "group"
	AssigneeAll   = "all"
)

// Document resource kinds
const (
	ResourceFolder = "folder"
	ResourceFile   = "file"
)

var (
	// ErrNotFound is returned when an update/delete references an absent grant
	ErrNotFound = errors.New("grant not found")
	// ErrInvalidAssignment is returned when assigned_to_type and
	// assigned_to_id disagree (user/group need an id, all forbids one)
	ErrInvalidAssignment = errors.New("invalid assignment target")
	// ErrInvalidGrant is returned when a grant field is outside its closed set
	ErrInvalidGrant = errors.New("invalid grant")
)

var documentActions = map[string]bool{
	"use_for_ai_chat": true,
	"read":            true,
	"write":           true,
	"delete":          true,
	"manage":          true,
}

var systemActions = map[string]bool{
	"read":   true,
	"write":  true,
	"delete": true,
	"manage": true,
	"*":      true,
}

var systemResourceTypes = map[string]bool{
	"user":    true,
	"guard":   true,
	"setting": true,
	"report":  true,
	"*":       true,
}

// DocumentGrant authorizes an assignee to perform an action on a
// document path. A trailing "/*" on the path denotes a folder wildcard.
type DocumentGrant struct {
	ID             string    `json:"id" bson:"_id,omitempty"`
	ResourcePath   string    `json:"resource_path" bson:"resource_path"`
	ResourceKind   string    `json:"resource_kind" bson:"resource_kind"` // "folder" or "file"
	AssignedToType string    `json:"assigned_to_type" bson:"assigned_to_type"`
	AssignedToID   string    `json:"assigned_to_id,omitempty" bson:"assigned_to_id,omitempty"`
	Permission     string    `json:"permission" bson:"permission"`
	CreatedAt      time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" bson:"updated_at"`
}

// SystemGrant authorizes an assignee to perform an action on a system
// resource (users, guards, settings, reports), "*" matching any.
type SystemGrant struct {
	ID             string    `json:"id" bson:"_id,omitempty"`
	ResourceType   string    `json:"resource_type" bson:"resource_type"`
	ResourceID     string    `json:"resource_id" bson:"resource_id"`
	AssignedToType string    `json:"assigned_to_type" bson:"assigned_to_type"`
	AssignedToID   string    `json:"assigned_to_id,omitempty" bson:"assigned_to_id,omitempty"`
	Permission     string    `json:"permission" bson:"permission"`
	CreatedAt      time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" bson:"updated_at"`
}

// DocumentGrantRequest is the payload for creating or replacing a document grant
type DocumentGrantRequest struct {
	ResourcePath   string `json:"resource_path"`
	ResourceKind   string `json:"resource_kind"`
	AssignedToType string `json:"assigned_to_type"`
	AssignedToID   string `json:"assigned_to_id,omitempty"`
	Permission     string `json:"permission"`
}

// SystemGrantRequest is the payload for creating or replacing a system grant
type SystemGrantRequest struct {
	ResourceType   string `json:"resource_type"`
	ResourceID     string `json:"resource_id"`
	AssignedToType string `json:"assigned_to_type"`
	AssignedToID   string `json:"assigned_to_id,omitempty"`
	Permission     string `json:"permission"`
}

// CheckRequest asks whether a user satisfies a required tuple
type CheckRequest struct {
	UserID     string `json:"user_id"`
	Permission string `json:"permission"`
}

// AccessibleResource describes one resource a user can reach for a given action
type AccessibleResource struct {
	Path         string `json:"path,omitempty"`
	Type         string `json:"type,omitempty"`
	ResourceType string `json:"resource_type,omitempty"`
	ResourceID   string `json:"resource_id,omitempty"`
	Source       string `json:"permission_source"`
}

// StructuredResource is one merged entry of the structured view
type StructuredResource struct {
	Type         string   `json:"type,omitempty"`
	Path         string   `json:"path,omitempty"`
	ResourceType string   `json:"resource_type,omitempty"`
	ResourceID   string   `json:"resource_id,omitempty"`
	Actions      []string `json:"actions"`
}

// StructuredPermissions groups a user's tuples by scope with duplicate
// resources merged into a single entry carrying the union of actions
type StructuredPermissions struct {
	Document []StructuredResource `json:"document"`
	System   []StructuredResource `json:"system"`
}

func validateAssignee(assignedToType, assignedToID string) error {
	switch assignedToType {
	case AssigneeUser, AssigneeGroup:
		if assignedToID == "" {
			return ErrInvalidAssignment
		}
	case AssigneeAll:
		if assignedToID != "" {
			return ErrInvalidAssignment
		}
	default:
		return ErrInvalidAssignment
	}
	return nil
}

// Validate enforces the closed field sets and the tuple format
// contract: the separator may not appear inside a resource path.
func (r DocumentGrantRequest) Validate() error {
	if r.ResourcePath == "" || strings.Contains(r.ResourcePath, TupleSeparator) {
		return ErrInvalidGrant
	}
	if r.ResourceKind != ResourceFolder && r.ResourceKind != ResourceFile {
		return ErrInvalidGrant
	}
	if !documentActions[r.Permission] {
		return ErrInvalidGrant
	}
	return validateAssignee(r.AssignedToType, r.AssignedToID)
}

func (r SystemGrantRequest) Validate() error {
	if !systemResourceTypes[r.ResourceType] {
		return ErrInvalidGrant
	}
	if r.ResourceID == "" || strings.Contains(r.ResourceID, TupleSeparator) {
		return ErrInvalidGrant
	}
	if !systemActions[r.Permission] {
		return ErrInvalidGrant
	}
	return validateAssignee(r.AssignedToType, r.AssignedToID)
}
