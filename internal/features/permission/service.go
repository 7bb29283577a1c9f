package permission

import (
	"context"
	"time"

	common_models "go-perm/internal/common/models"
	"go-perm/internal/features/audit"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

type PermissionService interface {
	GetUserPermissions(ctx context.Context, userID string) ([]string, error)
	GetStructuredPermissions(ctx context.Context, userID string) (*StructuredPermissions, error)
	CheckPermission(ctx context.Context, userID string, required string) (bool, error)
	GetAccessibleResources(ctx context.Context, userID string, action string) ([]AccessibleResource, error)

	SetDocumentGrant(ctx context.Context, req DocumentGrantRequest) (*DocumentGrant, error)
	SetSystemGrant(ctx context.Context, req SystemGrantRequest) (*SystemGrant, error)
	ListDocumentGrants(ctx context.Context) ([]DocumentGrant, error)
	ListSystemGrants(ctx context.Context) ([]SystemGrant, error)
	GetDocumentGrant(ctx context.Context, id string) (*DocumentGrant, error)
	GetSystemGrant(ctx context.Context, id string) (*SystemGrant, error)
	UpdateDocumentGrant(ctx context.Context, id string, req DocumentGrantRequest) error
	UpdateSystemGrant(ctx context.Context, id string, req SystemGrantRequest) error
	DeleteDocumentGrant(ctx context.Context, id string) error
	DeleteSystemGrant(ctx context.Context, id string) error

	// InvalidateUser drops one user's cached tuple set. Exposed for the
	// group feature, which must invalidate on membership changes.
	InvalidateUser(userID string)
}

type PermissionServiceImpl struct {
	Repo         GrantRepository
	Membership   MembershipSource
	Cache        *TupleCache
	Events       *EventHub
	AuditService audit.AuditService
	Logger       *zap.Logger

	flight singleflight.Group
}

func NewPermissionService(
	repo GrantRepository,
	membership MembershipSource,
	cache *TupleCache,
	events *EventHub,
	auditService audit.AuditService,
	logger *zap.Logger,
) PermissionService {
	return &PermissionServiceImpl{
		Repo:         repo,
		Membership:   membership,
		Cache:        cache,
		Events:       events,
		AuditService: auditService,
		Logger:       logger,
	}
}

// resolveTuples gathers every grant applicable to the user (direct,
// group-inherited, everyone) and encodes each row in store order.
// Duplicates are kept; only the structured view merges them.
func (s *PermissionServiceImpl) resolveTuples(ctx context.Context, userID string) ([]string, error) {
	groupIDs, err := s.Membership.GroupsOf(ctx, userID)
	if err != nil {
		return nil, err
	}

	docGrants, sysGrants, err := s.Repo.GrantsApplicableTo(ctx, userID, groupIDs)
	if err != nil {
		return nil, err
	}

	tuples := make([]string, 0, len(docGrants)+len(sysGrants))
	for i := range docGrants {
		tuples = append(tuples, TupleFromDocument(&docGrants[i]).String())
	}
	for i := range sysGrants {
		tuples = append(tuples, TupleFromSystem(&sysGrants[i]).String())
	}
	return tuples, nil
}

// GetUserPermissions serves the user's tuple set from cache,
// recomputing on a miss. Concurrent misses for the same user collapse
// into a single resolution.
func (s *PermissionServiceImpl) GetUserPermissions(ctx context.Context, userID string) ([]string, error) {
	if tuples, ok := s.Cache.Get(userID); ok {
		return tuples, nil
	}

	v, err, _ := s.flight.Do(userID, func() (interface{}, error) {
		if tuples, ok := s.Cache.Get(userID); ok {
			return tuples, nil
		}
		tuples, err := s.resolveTuples(ctx, userID)
		if err != nil {
			return nil, err
		}
		s.Cache.Set(userID, tuples)
		return tuples, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]string), nil
}

// CheckPermission reports whether any of the user's tuples satisfies
// the required one. A required string that does not decode matches
// nothing; absent users resolve to an empty set and always get false.
func (s *PermissionServiceImpl) CheckPermission(ctx context.Context, userID string, required string) (bool, error) {
	requiredTuple, ok := ParseTuple(required)
	if !ok {
		s.Logger.Debug("malformed required tuple", zap.String("required", required))
		return false, nil
	}

	raw, err := s.GetUserPermissions(ctx, userID)
	if err != nil {
		return false, err
	}
	return ParseSet(raw).Allows(requiredTuple), nil
}

// GetAccessibleResources re-derives from the raw grant set, keeping
// tuples whose action equals the requested one or "manage" (system
// tuples additionally accept "*")
func (s *PermissionServiceImpl) GetAccessibleResources(ctx context.Context, userID string, action string) ([]AccessibleResource, error) {
	raw, err := s.resolveTuples(ctx, userID)
	if err != nil {
		return nil, err
	}

	resources := make([]AccessibleResource, 0)
	for _, t := range ParseSet(raw) {
		switch t.Scope {
		case ScopeDocument:
			if t.Action == action || t.Action == ActionManage {
				resources = append(resources, AccessibleResource{
					Path:   t.Key,
					Type:   t.Type,
					Source: "calculated",
				})
			}
		case ScopeSystem:
			if t.Action == action || t.Action == ActionManage || t.Action == Wildcard {
				resources = append(resources, AccessibleResource{
					ResourceType: t.Type,
					ResourceID:   t.Key,
					Source:       "system",
				})
			}
		}
	}
	return resources, nil
}

// GetStructuredPermissions groups the user's raw tuples by scope and
// merges entries sharing a resource key, unioning their action sets.
// Always derived from the raw tuples, never cached on its own.
func (s *PermissionServiceImpl) GetStructuredPermissions(ctx context.Context, userID string) (*StructuredPermissions, error) {
	raw, err := s.GetUserPermissions(ctx, userID)
	if err != nil {
		return nil, err
	}

	structured := &StructuredPermissions{
		Document: make([]StructuredResource, 0),
		System:   make([]StructuredResource, 0),
	}

	docIndex := make(map[string]int)
	sysIndex := make(map[string]int)

	for _, t := range ParseSet(raw) {
		switch t.Scope {
		case ScopeDocument:
			if i, ok := docIndex[t.Key]; ok {
				structured.Document[i].Actions = appendUnique(structured.Document[i].Actions, t.Action)
			} else {
				docIndex[t.Key] = len(structured.Document)
				structured.Document = append(structured.Document, StructuredResource{
					Type:    t.Type,
					Path:    t.Key,
					Actions: []string{t.Action},
				})
			}
		case ScopeSystem:
			key := t.Type + TupleSeparator + t.Key
			if i, ok := sysIndex[key]; ok {
				structured.System[i].Actions = appendUnique(structured.System[i].Actions, t.Action)
			} else {
				sysIndex[key] = len(structured.System)
				structured.System = append(structured.System, StructuredResource{
					ResourceType: t.Type,
					ResourceID:   t.Key,
					Actions:      []string{t.Action},
				})
			}
		}
	}
	return structured, nil
}

func appendUnique(actions []string, action string) []string {
	for _, a := range actions {
		if a == action {
			return actions
		}
	}
	return append(actions, action)
}

func (s *PermissionServiceImpl) SetDocumentGrant(ctx context.Context, req DocumentGrantRequest) (*DocumentGrant, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	now := time.Now()
	grant := &DocumentGrant{
		ID:             uuid.NewString(),
		ResourcePath:   req.ResourcePath,
		ResourceKind:   req.ResourceKind,
		AssignedToType: req.AssignedToType,
		AssignedToID:   req.AssignedToID,
		Permission:     req.Permission,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.Repo.InsertDocumentGrant(ctx, grant); err != nil {
		return nil, err
	}

	s.invalidateAssignee(ctx, grant.AssignedToType, grant.AssignedToID)
	s.Events.Publish(GrantEvent{Scope: ScopeDocument, Action: "created", GrantID: grant.ID})
	_ = s.AuditService.LogChange(ctx, common_models.AuditActionCreate, "document_grants", grant.ID, map[string]common_models.Change{
		"grant": {New: grant},
	})

	return grant, nil
}

func (s *PermissionServiceImpl) SetSystemGrant(ctx context.Context, req SystemGrantRequest) (*SystemGrant, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	now := time.Now()
	grant := &SystemGrant{
		ID:             uuid.NewString(),
		ResourceType:   req.ResourceType,
		ResourceID:     req.ResourceID,
		AssignedToType: req.AssignedToType,
		AssignedToID:   req.AssignedToID,
		Permission:     req.Permission,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.Repo.InsertSystemGrant(ctx, grant); err != nil {
		return nil, err
	}

	s.invalidateAssignee(ctx, grant.AssignedToType, grant.AssignedToID)
	s.Events.Publish(GrantEvent{Scope: ScopeSystem, Action: "created", GrantID: grant.ID})
	_ = s.AuditService.LogChange(ctx, common_models.AuditActionCreate, "system_grants", grant.ID, map[string]common_models.Change{
		"grant": {New: grant},
	})

	return grant, nil
}

func (s *PermissionServiceImpl) ListDocumentGrants(ctx context.Context) ([]DocumentGrant, error) {
	return s.Repo.ListDocumentGrants(ctx)
}

func (s *PermissionServiceImpl) ListSystemGrants(ctx context.Context) ([]SystemGrant, error) {
	return s.Repo.ListSystemGrants(ctx)
}

func (s *PermissionServiceImpl) GetDocumentGrant(ctx context.Context, id string) (*DocumentGrant, error) {
	return s.Repo.GetDocumentGrant(ctx, id)
}

func (s *PermissionServiceImpl) GetSystemGrant(ctx context.Context, id string) (*SystemGrant, error) {
	return s.Repo.GetSystemGrant(ctx, id)
}

// UpdateDocumentGrant replaces every field of an existing grant. Both
// the old and new assignee are invalidated, since a grant can move
// between principals.
func (s *PermissionServiceImpl) UpdateDocumentGrant(ctx context.Context, id string, req DocumentGrantRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}

	existing, err := s.Repo.GetDocumentGrant(ctx, id)
	if err != nil {
		return err
	}

	updated := &DocumentGrant{
		ID:             id,
		ResourcePath:   req.ResourcePath,
		ResourceKind:   req.ResourceKind,
		AssignedToType: req.AssignedToType,
		AssignedToID:   req.AssignedToID,
		Permission:     req.Permission,
		CreatedAt:      existing.CreatedAt,
		UpdatedAt:      time.Now(),
	}

	if err := s.Repo.UpdateDocumentGrant(ctx, id, updated); err != nil {
		return err
	}

	s.invalidateAssignee(ctx, existing.AssignedToType, existing.AssignedToID)
	s.invalidateAssignee(ctx, updated.AssignedToType, updated.AssignedToID)
	s.Events.Publish(GrantEvent{Scope: ScopeDocument, Action: "updated", GrantID: id})
	_ = s.AuditService.LogChange(ctx, common_models.AuditActionUpdate, "document_grants", id, map[string]common_models.Change{
		"grant": {Old: existing, New: updated},
	})

	return nil
}

func (s *PermissionServiceImpl) UpdateSystemGrant(ctx context.Context, id string, req SystemGrantRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}

	existing, err := s.Repo.GetSystemGrant(ctx, id)
	if err != nil {
		return err
	}

	updated := &SystemGrant{
		ID:             id,
		ResourceType:   req.ResourceType,
		ResourceID:     req.ResourceID,
		AssignedToType: req.AssignedToType,
		AssignedToID:   req.AssignedToID,
		Permission:     req.Permission,
		CreatedAt:      existing.CreatedAt,
		UpdatedAt:      time.Now(),
	}

	if err := s.Repo.UpdateSystemGrant(ctx, id, updated); err != nil {
		return err
	}

	s.invalidateAssignee(ctx, existing.AssignedToType, existing.AssignedToID)
	s.invalidateAssignee(ctx, updated.AssignedToType, updated.AssignedToID)
	s.Events.Publish(GrantEvent{Scope: ScopeSystem, Action: "updated", GrantID: id})
	_ = s.AuditService.LogChange(ctx, common_models.AuditActionUpdate, "system_grants", id, map[string]common_models.Change{
		"grant": {Old: existing, New: updated},
	})

	return nil
}

func (s *PermissionServiceImpl) DeleteDocumentGrant(ctx context.Context, id string) error {
	existing, err := s.Repo.GetDocumentGrant(ctx, id)
	if err != nil {
		return err
	}

	if err := s.Repo.DeleteDocumentGrant(ctx, id); err != nil {
		return err
	}

	s.invalidateAssignee(ctx, existing.AssignedToType, existing.AssignedToID)
	s.Events.Publish(GrantEvent{Scope: ScopeDocument, Action: "deleted", GrantID: id})
	_ = s.AuditService.LogChange(ctx, common_models.AuditActionDelete, "document_grants", id, map[string]common_models.Change{
		"grant": {Old: existing},
	})

	return nil
}

func (s *PermissionServiceImpl) DeleteSystemGrant(ctx context.Context, id string) error {
	existing, err := s.Repo.GetSystemGrant(ctx, id)
	if err != nil {
		return err
	}

	if err := s.Repo.DeleteSystemGrant(ctx, id); err != nil {
		return err
	}

	s.invalidateAssignee(ctx, existing.AssignedToType, existing.AssignedToID)
	s.Events.Publish(GrantEvent{Scope: ScopeSystem, Action: "deleted", GrantID: id})
	_ = s.AuditService.LogChange(ctx, common_models.AuditActionDelete, "system_grants", id, map[string]common_models.Change{
		"grant": {Old: existing},
	})

	return nil
}

func (s *PermissionServiceImpl) InvalidateUser(userID string) {
	s.Cache.Invalidate(userID)
}

// invalidateAssignee drops the cache entries a grant mutation can have
// made stale. Runs after the store write so a concurrent reader cannot
// re-populate from pre-write data and survive.
func (s *PermissionServiceImpl) invalidateAssignee(ctx context.Context, assignedToType, assignedToID string) {
	switch assignedToType {
	case AssigneeUser:
		s.Cache.Invalidate(assignedToID)
	case AssigneeGroup:
		members, err := s.Membership.MembersOf(ctx, assignedToID)
		if err != nil {
			// Cannot tell who is affected; stale entries are worse than
			// a cold cache
			s.Logger.Warn("membership lookup failed, invalidating all",
				zap.String("group_id", assignedToID), zap.Error(err))
			s.Cache.InvalidateAll()
			return
		}
		for _, userID := range members {
			s.Cache.Invalidate(userID)
		}
	case AssigneeAll:
		s.Cache.InvalidateAll()
	}
}
