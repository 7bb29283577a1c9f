package group

import (
	"context"
	"errors"

	common_models "go-perm/internal/common/models"
	"go-perm/internal/features/audit"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// CacheInvalidator lets membership changes drop the affected user's
// cached permission set. Implemented by the permission service.
type CacheInvalidator interface {
	InvalidateUser(userID string)
}

type GroupService interface {
	CreateGroup(ctx context.Context, group *Group) error
	GetAllGroups(ctx context.Context) ([]Group, error)
	GetGroupByID(ctx context.Context, id primitive.ObjectID) (*Group, error)
	UpdateGroup(ctx context.Context, id primitive.ObjectID, group *Group) error
	DeleteGroup(ctx context.Context, id primitive.ObjectID) error
	AddMember(ctx context.Context, groupID primitive.ObjectID, userID string) (*GroupMember, error)
	RemoveMember(ctx context.Context, groupID primitive.ObjectID, userID string) error
	ListMembers(ctx context.Context, groupID primitive.ObjectID) ([]GroupMember, error)
}

type GroupServiceImpl struct {
	repo         GroupRepository
	invalidator  CacheInvalidator
	auditService audit.AuditService
}

func NewGroupService(repo GroupRepository, invalidator CacheInvalidator, auditService audit.AuditService) GroupService {
	return &GroupServiceImpl{
		repo:         repo,
		invalidator:  invalidator,
		auditService: auditService,
	}
}

func (s *GroupServiceImpl) CreateGroup(ctx context.Context, group *Group) error {
	if group.Name == "" {
		return errors.New("group name is required")
	}
	if group.Kind != KindSystem && group.Kind != KindDocument {
		return errors.New("group kind must be system or document")
	}

	err := s.repo.Create(ctx, group)
	if err == nil {
		_ = s.auditService.LogChange(ctx, common_models.AuditActionGroup, "groups", group.ID.Hex(), map[string]common_models.Change{
			"group": {New: group},
		})
	}
	return err
}

func (s *GroupServiceImpl) GetAllGroups(ctx context.Context) ([]Group, error) {
	return s.repo.FindAll(ctx)
}

func (s *GroupServiceImpl) GetGroupByID(ctx context.Context, id primitive.ObjectID) (*Group, error) {
	return s.repo.FindByID(ctx, id)
}

func (s *GroupServiceImpl) UpdateGroup(ctx context.Context, id primitive.ObjectID, group *Group) error {
	if group.Name == "" {
		return errors.New("group name is required")
	}

	existing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}

	err = s.repo.Update(ctx, id, group)
	if err == nil {
		_ = s.auditService.LogChange(ctx, common_models.AuditActionGroup, "groups", id.Hex(), map[string]common_models.Change{
			"group": {Old: existing, New: group},
		})
	}
	return err
}

// DeleteGroup cascade-deletes the group's membership rows so MembersOf
// on a deleted group returns an empty set, and invalidates every
// former member's cached permissions.
func (s *GroupServiceImpl) DeleteGroup(ctx context.Context, id primitive.ObjectID) error {
	existing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}

	memberIDs, err := s.repo.MembersOf(ctx, id.Hex())
	if err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	if err := s.repo.RemoveAllMembers(ctx, id.Hex()); err != nil {
		return err
	}

	for _, userID := range memberIDs {
		s.invalidator.InvalidateUser(userID)
	}

	_ = s.auditService.LogChange(ctx, common_models.AuditActionGroup, "groups", id.Hex(), map[string]common_models.Change{
		"group": {Old: existing, New: "DELETED"},
	})
	return nil
}

func (s *GroupServiceImpl) AddMember(ctx context.Context, groupID primitive.ObjectID, userID string) (*GroupMember, error) {
	if userID == "" {
		return nil, errors.New("user_id is required")
	}

	// Membership rows reference groups by id; reject unknown groups
	if _, err := s.repo.FindByID(ctx, groupID); err != nil {
		return nil, err
	}

	member := &GroupMember{
		GroupID: groupID.Hex(),
		UserID:  userID,
	}
	if err := s.repo.AddMember(ctx, member); err != nil {
		return nil, err
	}

	// The user now inherits the group's grants
	s.invalidator.InvalidateUser(userID)

	_ = s.auditService.LogChange(ctx, common_models.AuditActionGroup, "groups", groupID.Hex(), map[string]common_models.Change{
		"member_added": {New: userID},
	})
	return member, nil
}

func (s *GroupServiceImpl) RemoveMember(ctx context.Context, groupID primitive.ObjectID, userID string) error {
	if err := s.repo.RemoveMember(ctx, groupID.Hex(), userID); err != nil {
		return err
	}

	s.invalidator.InvalidateUser(userID)

	_ = s.auditService.LogChange(ctx, common_models.AuditActionGroup, "groups", groupID.Hex(), map[string]common_models.Change{
		"member_removed": {Old: userID},
	})
	return nil
}

func (s *GroupServiceImpl) ListMembers(ctx context.Context, groupID primitive.ObjectID) ([]GroupMember, error) {
	return s.repo.ListMembers(ctx, groupID.Hex())
}
