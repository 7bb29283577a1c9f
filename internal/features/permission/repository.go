package permission

import (
	"context"
	"errors"

	"go-perm/internal/config"
	"go-perm/internal/database"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// MembershipSource resolves group membership. Implemented by the group
// feature's repository; grant rows never duplicate membership data.
type MembershipSource interface {
	// GroupsOf returns the distinct group ids the user belongs to
	GroupsOf(ctx context.Context, userID string) ([]string, error)
	// MembersOf returns the user ids of a group, empty for unknown groups
	MembersOf(ctx context.Context, groupID string) ([]string, error)
}

// GrantRepository is the persistence contract for both grant kinds.
// GrantsApplicableTo takes the caller's resolved group ids so the
// direct-OR-group-OR-all combination stays testable independent of the
// storage engine.
type GrantRepository interface {
	ListDocumentGrants(ctx context.Context) ([]DocumentGrant, error)
	ListSystemGrants(ctx context.Context) ([]SystemGrant, error)
	GetDocumentGrant(ctx context.Context, id string) (*DocumentGrant, error)
	GetSystemGrant(ctx context.Context, id string) (*SystemGrant, error)
	InsertDocumentGrant(ctx context.Context, grant *DocumentGrant) error
	InsertSystemGrant(ctx context.Context, grant *SystemGrant) error
	UpdateDocumentGrant(ctx context.Context, id string, grant *DocumentGrant) error
	UpdateSystemGrant(ctx context.Context, id string, grant *SystemGrant) error
	DeleteDocumentGrant(ctx context.Context, id string) error
	DeleteSystemGrant(ctx context.Context, id string) error
	GrantsApplicableTo(ctx context.Context, userID string, groupIDs []string) ([]DocumentGrant, []SystemGrant, error)
	EnsureIndexes(ctx context.Context) error
}

// NewGrantRepository selects the store backend from configuration
func NewGrantRepository(cfg *config.Config, mongodb *database.MongodbDB, pg *database.PostgresDB) GrantRepository {
	if cfg.StoreDriver == "postgres" {
		return NewPostgresGrantRepository(pg.Conn)
	}
	return NewMongoGrantRepository(mongodb)
}

type MongoGrantRepository struct {
	documents *mongo.Collection
	systems   *mongo.Collection
}

func NewMongoGrantRepository(mongodb *database.MongodbDB) *MongoGrantRepository {
	return &MongoGrantRepository{
		documents: mongodb.DB.Collection("document_grants"),
		systems:   mongodb.DB.Collection("system_grants"),
	}
}

func (r *MongoGrantRepository) ListDocumentGrants(ctx context.Context) ([]DocumentGrant, error) {
	cursor, err := r.documents.Find(ctx, bson.M{})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var grants []DocumentGrant
	if err := cursor.All(ctx, &grants); err != nil {
		return nil, err
	}
	return grants, nil
}

func (r *MongoGrantRepository) ListSystemGrants(ctx context.Context) ([]SystemGrant, error) {
	cursor, err := r.systems.Find(ctx, bson.M{})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var grants []SystemGrant
	if err := cursor.All(ctx, &grants); err != nil {
		return nil, err
	}
	return grants, nil
}

func (r *MongoGrantRepository) GetDocumentGrant(ctx context.Context, id string) (*DocumentGrant, error) {
	var grant DocumentGrant
	err := r.documents.FindOne(ctx, bson.M{"_id": id}).Decode(&grant)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &grant, nil
}

func (r *MongoGrantRepository) GetSystemGrant(ctx context.Context, id string) (*SystemGrant, error) {
	var grant SystemGrant
	err := r.systems.FindOne(ctx, bson.M{"_id": id}).Decode(&grant)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &grant, nil
}

func (r *MongoGrantRepository) InsertDocumentGrant(ctx context.Context, grant *DocumentGrant) error {
	_, err := r.documents.InsertOne(ctx, grant)
	return err
}

func (r *MongoGrantRepository) InsertSystemGrant(ctx context.Context, grant *SystemGrant) error {
	_, err := r.systems.InsertOne(ctx, grant)
	return err
}

func (r *MongoGrantRepository) UpdateDocumentGrant(ctx context.Context, id string, grant *DocumentGrant) error {
	update := bson.M{
		"$set": bson.M{
			"resource_path":    grant.ResourcePath,
			"resource_kind":    grant.ResourceKind,
			"assigned_to_type": grant.AssignedToType,
			"assigned_to_id":   grant.AssignedToID,
			"permission":       grant.Permission,
			"updated_at":       grant.UpdatedAt,
		},
	}

	result, err := r.documents.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MongoGrantRepository) UpdateSystemGrant(ctx context.Context, id string, grant *SystemGrant) error {
	update := bson.M{
		"$set": bson.M{
			"resource_type":    grant.ResourceType,
			"resource_id":      grant.ResourceID,
			"assigned_to_type": grant.AssignedToType,
			"assigned_to_id":   grant.AssignedToID,
			"permission":       grant.Permission,
			"updated_at":       grant.UpdatedAt,
		},
	}

	result, err := r.systems.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MongoGrantRepository) DeleteDocumentGrant(ctx context.Context, id string) error {
	result, err := r.documents.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MongoGrantRepository) DeleteSystemGrant(ctx context.Context, id string) error {
	result, err := r.systems.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// GrantsApplicableTo returns every grant row assigned directly to the
// user, to one of the user's groups, or to everyone
func (r *MongoGrantRepository) GrantsApplicableTo(ctx context.Context, userID string, groupIDs []string) ([]DocumentGrant, []SystemGrant, error) {
	filter := assigneeFilter(userID, groupIDs)

	docCursor, err := r.documents.Find(ctx, filter)
	if err != nil {
		return nil, nil, err
	}
	defer docCursor.Close(ctx)

	var docGrants []DocumentGrant
	if err := docCursor.All(ctx, &docGrants); err != nil {
		return nil, nil, err
	}

	sysCursor, err := r.systems.Find(ctx, filter)
	if err != nil {
		return nil, nil, err
	}
	defer sysCursor.Close(ctx)

	var sysGrants []SystemGrant
	if err := sysCursor.All(ctx, &sysGrants); err != nil {
		return nil, nil, err
	}

	return docGrants, sysGrants, nil
}

func assigneeFilter(userID string, groupIDs []string) bson.M {
	clauses := []bson.M{
		{"assigned_to_type": AssigneeUser, "assigned_to_id": userID},
		{"assigned_to_type": AssigneeAll},
	}
	if len(groupIDs) > 0 {
		clauses = append(clauses, bson.M{
			"assigned_to_type": AssigneeGroup,
			"assigned_to_id":   bson.M{"$in": groupIDs},
		})
	}
	return bson.M{"$or": clauses}
}

func (r *MongoGrantRepository) EnsureIndexes(ctx context.Context) error {
	model := mongo.IndexModel{
		Keys: bson.D{
			{Key: "assigned_to_type", Value: 1},
			{Key: "assigned_to_id", Value: 1},
		},
	}

	if _, err := r.documents.Indexes().CreateOne(ctx, model); err != nil {
		return err
	}
	_, err := r.systems.Indexes().CreateOne(ctx, model)
	return err
}
