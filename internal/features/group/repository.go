package group

import (
	"context"
	"errors"
	"time"

	"go-perm/internal/database"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

type GroupRepository interface {
	Create(ctx context.Context, group *Group) error
	FindAll(ctx context.Context) ([]Group, error)
	FindByID(ctx context.Context, id primitive.ObjectID) (*Group, error)
	Update(ctx context.Context, id primitive.ObjectID, group *Group) error
	Delete(ctx context.Context, id primitive.ObjectID) error

	AddMember(ctx context.Context, member *GroupMember) error
	RemoveMember(ctx context.Context, groupID, userID string) error
	RemoveAllMembers(ctx context.Context, groupID string) error
	ListMembers(ctx context.Context, groupID string) ([]GroupMember, error)

	// MembersOf and GroupsOf satisfy the permission feature's
	// MembershipSource. Both return distinct ids.
	MembersOf(ctx context.Context, groupID string) ([]string, error)
	GroupsOf(ctx context.Context, userID string) ([]string, error)
}

type GroupRepositoryImpl struct {
	groups  *mongo.Collection
	members *mongo.Collection
}

func NewGroupRepository(mongodb *database.MongodbDB) GroupRepository {
	return &GroupRepositoryImpl{
		groups:  mongodb.DB.Collection("groups"),
		members: mongodb.DB.Collection("group_members"),
	}
}

func (r *GroupRepositoryImpl) Create(ctx context.Context, group *Group) error {
	group.CreatedAt = time.Now()
	group.UpdatedAt = time.Now()

	result, err := r.groups.InsertOne(ctx, group)
	if err != nil {
		return err
	}

	group.ID = result.InsertedID.(primitive.ObjectID)
	return nil
}

func (r *GroupRepositoryImpl) FindAll(ctx context.Context) ([]Group, error) {
	cursor, err := r.groups.Find(ctx, bson.M{})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var groups []Group
	if err := cursor.All(ctx, &groups); err != nil {
		return nil, err
	}
	return groups, nil
}

func (r *GroupRepositoryImpl) FindByID(ctx context.Context, id primitive.ObjectID) (*Group, error) {
	var group Group
	err := r.groups.FindOne(ctx, bson.M{"_id": id}).Decode(&group)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &group, nil
}

func (r *GroupRepositoryImpl) Update(ctx context.Context, id primitive.ObjectID, group *Group) error {
	group.UpdatedAt = time.Now()

	update := bson.M{
		"$set": bson.M{
			"name":       group.Name,
			"kind":       group.Kind,
			"updated_at": group.UpdatedAt,
		},
	}

	result, err := r.groups.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *GroupRepositoryImpl) Delete(ctx context.Context, id primitive.ObjectID) error {
	result, err := r.groups.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *GroupRepositoryImpl) AddMember(ctx context.Context, member *GroupMember) error {
	member.CreatedAt = time.Now()

	result, err := r.members.InsertOne(ctx, member)
	if err != nil {
		return err
	}

	member.ID = result.InsertedID.(primitive.ObjectID)
	return nil
}

// RemoveMember deletes every row for the pair, so duplicate
// memberships disappear in one call
func (r *GroupRepositoryImpl) RemoveMember(ctx context.Context, groupID, userID string) error {
	_, err := r.members.DeleteMany(ctx, bson.M{"group_id": groupID, "user_id": userID})
	return err
}

func (r *GroupRepositoryImpl) RemoveAllMembers(ctx context.Context, groupID string) error {
	_, err := r.members.DeleteMany(ctx, bson.M{"group_id": groupID})
	return err
}

func (r *GroupRepositoryImpl) ListMembers(ctx context.Context, groupID string) ([]GroupMember, error) {
	cursor, err := r.members.Find(ctx, bson.M{"group_id": groupID})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var members []GroupMember
	if err := cursor.All(ctx, &members); err != nil {
		return nil, err
	}
	return members, nil
}

func (r *GroupRepositoryImpl) MembersOf(ctx context.Context, groupID string) ([]string, error) {
	values, err := r.members.Distinct(ctx, "user_id", bson.M{"group_id": groupID})
	if err != nil {
		return nil, err
	}
	return toStrings(values), nil
}

func (r *GroupRepositoryImpl) GroupsOf(ctx context.Context, userID string) ([]string, error) {
	values, err := r.members.Distinct(ctx, "group_id", bson.M{"user_id": userID})
	if err != nil {
		return nil, err
	}
	return toStrings(values), nil
}

func toStrings(values []interface{}) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
