package permission

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	common_models "go-perm/internal/common/models"

	"go.uber.org/zap"
)

type fakeGrantRepo struct {
	documents map[string]DocumentGrant
	systems   map[string]SystemGrant

	// resolveCalls counts GrantsApplicableTo invocations so tests can
	// tell cache hits from recomputation
	resolveCalls int
}

func newFakeGrantRepo() *fakeGrantRepo {
	return &fakeGrantRepo{
		documents: make(map[string]DocumentGrant),
		systems:   make(map[string]SystemGrant),
	}
}

func (r *fakeGrantRepo) ListDocumentGrants(ctx context.Context) ([]DocumentGrant, error) {
	out := make([]DocumentGrant, 0, len(r.documents))
	for _, g := range r.documents {
		out = append(out, g)
	}
	return out, nil
}

func (r *fakeGrantRepo) ListSystemGrants(ctx context.Context) ([]SystemGrant, error) {
	out := make([]SystemGrant, 0, len(r.systems))
	for _, g := range r.systems {
		out = append(out, g)
	}
	return out, nil
}

func (r *fakeGrantRepo) GetDocumentGrant(ctx context.Context, id string) (*DocumentGrant, error) {
	g, ok := r.documents[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &g, nil
}

func (r *fakeGrantRepo) GetSystemGrant(ctx context.Context, id string) (*SystemGrant, error) {
	g, ok := r.systems[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &g, nil
}

func (r *fakeGrantRepo) InsertDocumentGrant(ctx context.Context, grant *DocumentGrant) error {
	r.documents[grant.ID] = *grant
	return nil
}

func (r *fakeGrantRepo) InsertSystemGrant(ctx context.Context, grant *SystemGrant) error {
	r.systems[grant.ID] = *grant
	return nil
}

func (r *fakeGrantRepo) UpdateDocumentGrant(ctx context.Context, id string, grant *DocumentGrant) error {
	if _, ok := r.documents[id]; !ok {
		return ErrNotFound
	}
	r.documents[id] = *grant
	return nil
}

func (r *fakeGrantRepo) UpdateSystemGrant(ctx context.Context, id string, grant *SystemGrant) error {
	if _, ok := r.systems[id]; !ok {
		return ErrNotFound
	}
	r.systems[id] = *grant
	return nil
}

func (r *fakeGrantRepo) DeleteDocumentGrant(ctx context.Context, id string) error {
	if _, ok := r.documents[id]; !ok {
		return ErrNotFound
	}
	delete(r.documents, id)
	return nil
}

func (r *fakeGrantRepo) DeleteSystemGrant(ctx context.Context, id string) error {
	if _, ok := r.systems[id]; !ok {
		return ErrNotFound
	}
	delete(r.systems, id)
	return nil
}

func (r *fakeGrantRepo) GrantsApplicableTo(ctx context.Context, userID string, groupIDs []string) ([]DocumentGrant, []SystemGrant, error) {
	r.resolveCalls++

	groups := make(map[string]bool, len(groupIDs))
	for _, id := range groupIDs {
		groups[id] = true
	}
	applies := func(assignedToType, assignedToID string) bool {
		switch assignedToType {
		case AssigneeUser:
			return assignedToID == userID
		case AssigneeGroup:
			return groups[assignedToID]
		case AssigneeAll:
			return true
		}
		return false
	}

	var docs []DocumentGrant
	for _, g := range r.documents {
		if applies(g.AssignedToType, g.AssignedToID) {
			docs = append(docs, g)
		}
	}
	var syss []SystemGrant
	for _, g := range r.systems {
		if applies(g.AssignedToType, g.AssignedToID) {
			syss = append(syss, g)
		}
	}
	return docs, syss, nil
}

func (r *fakeGrantRepo) EnsureIndexes(ctx context.Context) error { return nil }

type fakeMembership struct {
	// groupID -> member userIDs
	members map[string][]string
	err     error
}

func (m *fakeMembership) GroupsOf(ctx context.Context, userID string) ([]string, error) {
	if m.err != nil {
		return nil, m.err
	}
	var groups []string
	for groupID, users := range m.members {
		for _, u := range users {
			if u == userID {
				groups = append(groups, groupID)
				break
			}
		}
	}
	return groups, nil
}

func (m *fakeMembership) MembersOf(ctx context.Context, groupID string) ([]string, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.members[groupID], nil
}

type noopAudit struct{}

func (noopAudit) LogChange(ctx context.Context, action common_models.AuditAction, module string, recordID string, changes map[string]common_models.Change) error {
	return nil
}

func (noopAudit) ListLogs(ctx context.Context, filters map[string]interface{}, page, limit int64) ([]common_models.AuditLog, error) {
	return nil, nil
}

func newTestService(repo *fakeGrantRepo, membership *fakeMembership) (*PermissionServiceImpl, *TupleCache) {
	cache := NewTupleCache(DefaultTTL, &fakeClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)})
	svc := &PermissionServiceImpl{
		Repo:         repo,
		Membership:   membership,
		Cache:        cache,
		Events:       NewEventHub(),
		AuditService: noopAudit{},
		Logger:       zap.NewNop(),
	}
	return svc, cache
}

func docGrant(id, path, kind, toType, toID, action string) DocumentGrant {
	return DocumentGrant{
		ID: id, ResourcePath: path, ResourceKind: kind,
		AssignedToType: toType, AssignedToID: toID, Permission: action,
	}
}

func sysGrant(id, resType, resID, toType, toID, action string) SystemGrant {
	return SystemGrant{
		ID: id, ResourceType: resType, ResourceID: resID,
		AssignedToType: toType, AssignedToID: toID, Permission: action,
	}
}

func TestCheckPermissionGroupScenario(t *testing.T) {
	repo := newFakeGrantRepo()
	repo.documents["g1"] = docGrant("g1", "/HR/*", ResourceFolder, AssigneeGroup, "hr", "use_for_ai_chat")
	membership := &fakeMembership{members: map[string][]string{
		"hr": {"alice", "bob"},
	}}
	svc, _ := newTestService(repo, membership)
	ctx := context.Background()

	required := "document:folder:/HR/payroll.csv:use_for_ai_chat"

	for _, member := range []string{"alice", "bob"} {
		ok, err := svc.CheckPermission(ctx, member, required)
		if err != nil {
			t.Fatalf("CheckPermission(%s) error: %v", member, err)
		}
		if !ok {
			t.Errorf("group member %s denied", member)
		}
	}

	ok, err := svc.CheckPermission(ctx, "carol", required)
	if err != nil {
		t.Fatalf("CheckPermission(carol) error: %v", err)
	}
	if ok {
		t.Error("non-member carol must be denied")
	}
}

func TestCheckPermissionAllAssignment(t *testing.T) {
	repo := newFakeGrantRepo()
	repo.documents["g1"] = docGrant("g1", "/public/logo.png", ResourceFile, AssigneeAll, "", "read")
	svc, _ := newTestService(repo, &fakeMembership{members: map[string][]string{}})
	ctx := context.Background()

	// Users with no memberships at all still get "all" grants
	for _, user := range []string{"alice", "someone-new"} {
		ok, err := svc.CheckPermission(ctx, user, "document:file:/public/logo.png:read")
		if err != nil {
			t.Fatalf("CheckPermission(%s) error: %v", user, err)
		}
		if !ok {
			t.Errorf("all-assigned grant must apply to %s", user)
		}
	}
}

func TestCheckPermissionSystemWildcardOwner(t *testing.T) {
	repo := newFakeGrantRepo()
	repo.systems["g1"] = sysGrant("g1", "*", "*", AssigneeUser, "owner@company.com", "manage")
	svc, _ := newTestService(repo, &fakeMembership{members: map[string][]string{}})
	ctx := context.Background()

	for _, required := range []string{
		"system:user:42:delete",
		"system:guard:7:write",
		"system:report:monthly:read",
	} {
		ok, err := svc.CheckPermission(ctx, "owner@company.com", required)
		if err != nil {
			t.Fatalf("CheckPermission error: %v", err)
		}
		if !ok {
			t.Errorf("owner wildcard grant must satisfy %q", required)
		}
	}
}

func TestCheckPermissionMalformedRequired(t *testing.T) {
	repo := newFakeGrantRepo()
	repo.systems["g1"] = sysGrant("g1", "*", "*", AssigneeUser, "alice", "manage")
	svc, _ := newTestService(repo, &fakeMembership{members: map[string][]string{}})

	for _, required := range []string{"", "garbage", "document:file:read", "a:b:c:d:e"} {
		ok, err := svc.CheckPermission(context.Background(), "alice", required)
		if err != nil {
			t.Fatalf("malformed required %q must not error, got %v", required, err)
		}
		if ok {
			t.Errorf("malformed required %q must match nothing", required)
		}
	}
}

func TestGetUserPermissionsUnknownUserIsEmpty(t *testing.T) {
	svc, _ := newTestService(newFakeGrantRepo(), &fakeMembership{members: map[string][]string{}})

	tuples, err := svc.GetUserPermissions(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("unknown user must not error: %v", err)
	}
	if len(tuples) != 0 {
		t.Errorf("unknown user resolved to %v, want empty", tuples)
	}
}

func TestGetUserPermissionsCachesAndKeepsDuplicates(t *testing.T) {
	repo := newFakeGrantRepo()
	// Two identical grants to the same user; the raw list keeps both
	repo.documents["g1"] = docGrant("g1", "/a.txt", ResourceFile, AssigneeUser, "alice", "read")
	repo.documents["g2"] = docGrant("g2", "/a.txt", ResourceFile, AssigneeUser, "alice", "read")
	svc, _ := newTestService(repo, &fakeMembership{members: map[string][]string{}})
	ctx := context.Background()

	first, err := svc.GetUserPermissions(ctx, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if len(first) != 2 {
		t.Fatalf("duplicate grants must both appear, got %v", first)
	}

	second, err := svc.GetUserPermissions(ctx, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("repeated calls differ: %v vs %v", first, second)
	}
	if repo.resolveCalls != 1 {
		t.Errorf("second call should be served from cache, resolveCalls = %d", repo.resolveCalls)
	}
}

func TestSetDocumentGrantInvalidatesUser(t *testing.T) {
	repo := newFakeGrantRepo()
	svc, _ := newTestService(repo, &fakeMembership{members: map[string][]string{}})
	ctx := context.Background()

	// Prime the cache with an empty set
	if _, err := svc.GetUserPermissions(ctx, "alice"); err != nil {
		t.Fatal(err)
	}

	grant, err := svc.SetDocumentGrant(ctx, DocumentGrantRequest{
		ResourcePath:   "/a.txt",
		ResourceKind:   ResourceFile,
		AssignedToType: AssigneeUser,
		AssignedToID:   "alice",
		Permission:     "read",
	})
	if err != nil {
		t.Fatal(err)
	}
	if grant.ID == "" {
		t.Fatal("created grant must carry an id")
	}

	ok, err := svc.CheckPermission(ctx, "alice", "document:file:/a.txt:read")
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Error("stale cache survived SetDocumentGrant")
	}
}

func TestSetSystemGrantToGroupInvalidatesMembers(t *testing.T) {
	repo := newFakeGrantRepo()
	membership := &fakeMembership{members: map[string][]string{
		"admins": {"alice"},
	}}
	svc, _ := newTestService(repo, membership)
	ctx := context.Background()

	if _, err := svc.GetUserPermissions(ctx, "alice"); err != nil {
		t.Fatal(err)
	}

	if _, err := svc.SetSystemGrant(ctx, SystemGrantRequest{
		ResourceType:   "user",
		ResourceID:     "*",
		AssignedToType: AssigneeGroup,
		AssignedToID:   "admins",
		Permission:     "manage",
	}); err != nil {
		t.Fatal(err)
	}

	ok, err := svc.CheckPermission(ctx, "alice", "system:user:42:delete")
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Error("group member's cache not invalidated after group grant")
	}
}

func TestSetGrantToAllInvalidatesEveryCachedUser(t *testing.T) {
	repo := newFakeGrantRepo()
	svc, _ := newTestService(repo, &fakeMembership{members: map[string][]string{}})
	ctx := context.Background()

	// Cache entries for users the coordinator has never been told about
	for _, user := range []string{"alice", "bob", "carol"} {
		if _, err := svc.GetUserPermissions(ctx, user); err != nil {
			t.Fatal(err)
		}
	}

	if _, err := svc.SetDocumentGrant(ctx, DocumentGrantRequest{
		ResourcePath:   "/public/logo.png",
		ResourceKind:   ResourceFile,
		AssignedToType: AssigneeAll,
		Permission:     "read",
	}); err != nil {
		t.Fatal(err)
	}

	for _, user := range []string{"alice", "bob", "carol"} {
		ok, err := svc.CheckPermission(ctx, user, "document:file:/public/logo.png:read")
		if err != nil {
			t.Fatal(err)
		}
		if !ok {
			t.Errorf("cached user %s still sees pre-mutation set", user)
		}
	}
}

func TestMembershipFailureFallsBackToInvalidateAll(t *testing.T) {
	repo := newFakeGrantRepo()
	membership := &fakeMembership{members: map[string][]string{}}
	svc, cache := newTestService(repo, membership)
	ctx := context.Background()

	if _, err := svc.GetUserPermissions(ctx, "alice"); err != nil {
		t.Fatal(err)
	}

	// MembersOf fails during invalidation; the whole cache must go
	membership.err = errors.New("store down")
	svc.invalidateAssignee(ctx, AssigneeGroup, "hr")

	if _, ok := cache.Get("alice"); ok {
		t.Error("cache entry survived membership lookup failure")
	}
}

func TestUpdateDocumentGrantInvalidatesOldAndNewAssignee(t *testing.T) {
	repo := newFakeGrantRepo()
	repo.documents["g1"] = docGrant("g1", "/a.txt", ResourceFile, AssigneeUser, "alice", "read")
	svc, cache := newTestService(repo, &fakeMembership{members: map[string][]string{}})
	ctx := context.Background()

	// Prime both assignees' entries
	if _, err := svc.GetUserPermissions(ctx, "alice"); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.GetUserPermissions(ctx, "bob"); err != nil {
		t.Fatal(err)
	}

	// Reassign the grant from alice to bob
	err := svc.UpdateDocumentGrant(ctx, "g1", DocumentGrantRequest{
		ResourcePath:   "/a.txt",
		ResourceKind:   ResourceFile,
		AssignedToType: AssigneeUser,
		AssignedToID:   "bob",
		Permission:     "read",
	})
	if err != nil {
		t.Fatal(err)
	}

	if _, ok := cache.Get("alice"); ok {
		t.Error("previous assignee's cache entry survived reassignment")
	}
	if _, ok := cache.Get("bob"); ok {
		t.Error("new assignee's cache entry survived reassignment")
	}

	ok, err := svc.CheckPermission(ctx, "alice", "document:file:/a.txt:read")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("alice retained access after reassignment")
	}
}

func TestUpdateAndDeleteMissingGrant(t *testing.T) {
	svc, _ := newTestService(newFakeGrantRepo(), &fakeMembership{members: map[string][]string{}})
	ctx := context.Background()

	err := svc.UpdateDocumentGrant(ctx, "missing", DocumentGrantRequest{
		ResourcePath:   "/a.txt",
		ResourceKind:   ResourceFile,
		AssignedToType: AssigneeUser,
		AssignedToID:   "alice",
		Permission:     "read",
	})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("update missing = %v, want ErrNotFound", err)
	}

	if err := svc.DeleteSystemGrant(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("delete missing = %v, want ErrNotFound", err)
	}
}

func TestSetGrantValidation(t *testing.T) {
	svc, _ := newTestService(newFakeGrantRepo(), &fakeMembership{members: map[string][]string{}})
	ctx := context.Background()

	tests := []struct {
		name string
		req  DocumentGrantRequest
		want error
	}{
		{
			name: "separator inside path",
			req: DocumentGrantRequest{
				ResourcePath: "/a:b.txt", ResourceKind: ResourceFile,
				AssignedToType: AssigneeUser, AssignedToID: "alice", Permission: "read",
			},
			want: ErrInvalidGrant,
		},
		{
			name: "unknown action",
			req: DocumentGrantRequest{
				ResourcePath: "/a.txt", ResourceKind: ResourceFile,
				AssignedToType: AssigneeUser, AssignedToID: "alice", Permission: "fly",
			},
			want: ErrInvalidGrant,
		},
		{
			name: "user without id",
			req: DocumentGrantRequest{
				ResourcePath: "/a.txt", ResourceKind: ResourceFile,
				AssignedToType: AssigneeUser, Permission: "read",
			},
			want: ErrInvalidAssignment,
		},
		{
			name: "all with id",
			req: DocumentGrantRequest{
				ResourcePath: "/a.txt", ResourceKind: ResourceFile,
				AssignedToType: AssigneeAll, AssignedToID: "alice", Permission: "read",
			},
			want: ErrInvalidAssignment,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.SetDocumentGrant(ctx, tt.req); !errors.Is(err, tt.want) {
				t.Errorf("SetDocumentGrant = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestGetStructuredPermissionsMergesActions(t *testing.T) {
	repo := newFakeGrantRepo()
	repo.documents["g1"] = docGrant("g1", "/a.txt", ResourceFile, AssigneeUser, "alice", "read")
	repo.documents["g2"] = docGrant("g2", "/a.txt", ResourceFile, AssigneeUser, "alice", "write")
	repo.systems["g3"] = sysGrant("g3", "report", "*", AssigneeUser, "alice", "read")
	svc, _ := newTestService(repo, &fakeMembership{members: map[string][]string{}})

	structured, err := svc.GetStructuredPermissions(context.Background(), "alice")
	if err != nil {
		t.Fatal(err)
	}

	if len(structured.Document) != 1 {
		t.Fatalf("same-path grants must merge, got %+v", structured.Document)
	}
	actions := structured.Document[0].Actions
	if len(actions) != 2 {
		t.Fatalf("merged actions = %v, want read and write", actions)
	}
	seen := map[string]bool{}
	for _, a := range actions {
		seen[a] = true
	}
	if !seen["read"] || !seen["write"] {
		t.Errorf("merged actions = %v, want read and write", actions)
	}

	if len(structured.System) != 1 {
		t.Fatalf("system view = %+v, want one entry", structured.System)
	}
	if structured.System[0].ResourceType != "report" || structured.System[0].ResourceID != "*" {
		t.Errorf("system entry = %+v", structured.System[0])
	}
}

func TestGetAccessibleResources(t *testing.T) {
	repo := newFakeGrantRepo()
	repo.documents["g1"] = docGrant("g1", "/HR/*", ResourceFolder, AssigneeUser, "alice", "use_for_ai_chat")
	repo.documents["g2"] = docGrant("g2", "/b.txt", ResourceFile, AssigneeUser, "alice", "manage")
	repo.documents["g3"] = docGrant("g3", "/c.txt", ResourceFile, AssigneeUser, "alice", "read")
	repo.systems["g4"] = sysGrant("g4", "setting", "*", AssigneeUser, "alice", "*")
	svc, _ := newTestService(repo, &fakeMembership{members: map[string][]string{}})

	resources, err := svc.GetAccessibleResources(context.Background(), "alice", "use_for_ai_chat")
	if err != nil {
		t.Fatal(err)
	}

	var docPaths []string
	var sysCount int
	for _, r := range resources {
		switch r.Source {
		case "calculated":
			docPaths = append(docPaths, r.Path)
		case "system":
			sysCount++
		}
	}

	// The direct grant and the manage grant qualify; the read-only one does not
	if len(docPaths) != 2 {
		t.Errorf("document paths = %v, want /HR/* and /b.txt", docPaths)
	}
	for _, p := range docPaths {
		if p != "/HR/*" && p != "/b.txt" {
			t.Errorf("unexpected accessible path %q", p)
		}
	}

	// "*"-action system grants qualify for any requested action
	if sysCount != 1 {
		t.Errorf("system resources = %d, want 1", sysCount)
	}
}
