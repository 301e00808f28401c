package chat

import (
	"context"
	"time"

	"github.com/zoft-projects/OBbackend-sub002/internal/cache"
	"github.com/zoft-projects/OBbackend-sub002/internal/config"
	"github.com/zoft-projects/OBbackend-sub002/internal/database"
	"github.com/zoft-projects/OBbackend-sub002/pkg/apperrors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	groupCacheNamespace = "chat-group"

	// memberPageCap bounds one membership read.
	memberPageCap = 500

	// defaultMemberBatchSize bounds write pressure when no batch size is
	// configured.
	defaultMemberBatchSize = 20
)

type ChatGroupStore interface {
	CreateGroup(ctx context.Context, group *Group) error
	FindGroupByID(ctx context.Context, groupID, branchID string) (*Group, error)
	FindGroups(ctx context.Context, filter GroupFilter, page PageOptions) ([]Group, error)
	FindGroupsByBranches(ctx context.Context, branchIDs []string, types []GroupType, activeOnly bool, page PageOptions) ([]Group, error)
	UpsertGroup(ctx context.Context, patch *GroupPatch) (*Group, error)
	RemoveGroup(ctx context.Context, groupID string, mode RemovalMode) error

	FindMembers(ctx context.Context, groupID, branchID string, activeOnly bool) ([]Membership, error)
	FindMembershipsByEmployee(ctx context.Context, employeeID string, activeOnly bool) ([]Membership, error)
	InsertMembers(ctx context.Context, members []Membership) error
	RemoveMembersByVendorIDs(ctx context.Context, groupID string, vendorUserIDs []string) error

	RecomputeAndPersistStats(ctx context.Context, groupID, branchID string) (*GroupMetrics, error)
	UpdateLastMessageActivity(ctx context.Context, groupID string, activity MessageActivity) error

	EnsureIndexes(ctx context.Context) error
}

type ChatGroupStoreImpl struct {
	groups    *mongo.Collection
	members   *mongo.Collection
	cache     cache.KeyValueCache
	batchSize int
}

func NewChatGroupStore(db *database.MongodbDB, kv cache.KeyValueCache, cfg *config.Config) ChatGroupStore {
	return &ChatGroupStoreImpl{
		groups:    db.DB.Collection("chat_groups"),
		members:   db.DB.Collection("chat_group_members"),
		cache:     kv,
		batchSize: memberBatchSize(cfg),
	}
}

func memberBatchSize(cfg *config.Config) int {
	if n := cfg.Chat.MemberBatchSize; n > 0 {
		return n
	}
	return defaultMemberBatchSize
}

func (r *ChatGroupStoreImpl) EnsureIndexes(ctx context.Context) error {
	_, err := r.groups.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "group_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.D{{Key: "branch_id", Value: 1}, {Key: "type", Value: 1}, {Key: "status", Value: 1}}},
		{Keys: bson.D{{Key: "branch_id", Value: 1}, {Key: "category", Value: 1}}},
		{Keys: bson.D{{Key: "branch_id", Value: 1}, {Key: "intended_for_user_id", Value: 1}}},
	})
	if err != nil {
		return err
	}

	_, err = r.members.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "employee_id", Value: 1}, {Key: "group_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.D{{Key: "group_id", Value: 1}, {Key: "status", Value: 1}}},
		{Keys: bson.D{{Key: "employee_id", Value: 1}, {Key: "status", Value: 1}}},
	})
	return err
}

func (r *ChatGroupStoreImpl) CreateGroup(ctx context.Context, group *Group) error {
	now := time.Now()
	group.CreatedAt = now
	group.UpdatedAt = now
	if group.Status == "" {
		group.Status = GroupStatusActive
	}

	result, err := r.groups.InsertOne(ctx, group)
	if err != nil {
		return err
	}
	group.ID = result.InsertedID.(primitive.ObjectID)
	return nil
}

func (r *ChatGroupStoreImpl) FindGroupByID(ctx context.Context, groupID, branchID string) (*Group, error) {
	query := bson.M{"group_id": groupID}
	if branchID != "" {
		query["branch_id"] = branchID
	}

	var group Group
	err := r.groups.FindOne(ctx, query).Decode(&group)
	if err == mongo.ErrNoDocuments {
		return nil, apperrors.ErrGroupNotFound
	}
	if err != nil {
		return nil, err
	}
	return &group, nil
}

func buildGroupQuery(filter GroupFilter) bson.M {
	query := bson.M{}
	if filter.BranchID != "" {
		query["branch_id"] = filter.BranchID
	}
	if filter.Type != "" {
		query["type"] = filter.Type
	}
	if filter.Category != "" {
		query["category"] = filter.Category
	}
	if filter.Status != "" {
		query["status"] = filter.Status
	}
	if filter.IntendedForUserID != "" {
		query["intended_for_user_id"] = filter.IntendedForUserID
	}
	return query
}

func (r *ChatGroupStoreImpl) FindGroups(ctx context.Context, filter GroupFilter, page PageOptions) ([]Group, error) {
	query := buildGroupQuery(filter)

	if page.SearchText != "" {
		pattern := primitive.Regex{Pattern: regexQuote(page.SearchText), Options: "i"}
		query["$or"] = bson.A{
			bson.M{"group_id": bson.M{"$regex": pattern}},
			bson.M{"name": bson.M{"$regex": pattern}},
		}
	}

	opts := options.Find()
	if page.Skip > 0 {
		opts.SetSkip(int64(page.Skip))
	}
	if page.Limit > 0 {
		opts.SetLimit(int64(page.Limit))
	}
	sortField := page.SortField
	if sortField == "" {
		sortField = "created_at"
	}
	sortOrder := page.SortOrder
	if sortOrder == 0 {
		sortOrder = -1
	}
	opts.SetSort(bson.D{{Key: sortField, Value: sortOrder}})

	cursor, err := r.groups.Find(ctx, query, opts)
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

func (r *ChatGroupStoreImpl) FindGroupsByBranches(ctx context.Context, branchIDs []string, types []GroupType, activeOnly bool, page PageOptions) ([]Group, error) {
	query := bson.M{"branch_id": bson.M{"$in": branchIDs}}
	if len(types) > 0 {
		query["type"] = bson.M{"$in": types}
	}
	if activeOnly {
		query["status"] = GroupStatusActive
	}

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	if page.Skip > 0 {
		opts.SetSkip(int64(page.Skip))
	}
	if page.Limit > 0 {
		opts.SetLimit(int64(page.Limit))
	}

	cursor, err := r.groups.Find(ctx, query, opts)
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

func (r *ChatGroupStoreImpl) UpsertGroup(ctx context.Context, patch *GroupPatch) (*Group, error) {
	set := bson.M{"updated_at": time.Now()}
	if patch.Name != nil {
		set["name"] = *patch.Name
	}
	if patch.Status != nil {
		set["status"] = *patch.Status
	}
	if patch.Image != nil {
		set["image"] = patch.Image
	}
	if patch.AccessControl != nil {
		set["access_control"] = patch.AccessControl
	}
	if patch.Metrics != nil {
		set["metrics"] = patch.Metrics
	}
	if patch.LastMessageActivity != nil {
		set["last_message_activity"] = patch.LastMessageActivity
	}
	if patch.UpdatedByUserID != "" {
		set["updated_by_user_id"] = patch.UpdatedByUserID
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var group Group
	err := r.groups.FindOneAndUpdate(ctx, bson.M{"group_id": patch.GroupID}, bson.M{"$set": set}, opts).Decode(&group)
	if err == mongo.ErrNoDocuments {
		return nil, apperrors.ErrGroupNotFound
	}
	if err != nil {
		return nil, err
	}

	r.invalidate(ctx, patch.GroupID)
	return &group, nil
}

func (r *ChatGroupStoreImpl) RemoveGroup(ctx context.Context, groupID string, mode RemovalMode) error {
	if mode == RemoveHard {
		res, err := r.groups.DeleteOne(ctx, bson.M{"group_id": groupID})
		if err != nil {
			return err
		}
		if res.DeletedCount == 0 {
			return apperrors.ErrGroupNotFound
		}
		// Cascade membership rows
		if _, err := r.members.DeleteMany(ctx, bson.M{"group_id": groupID}); err != nil {
			return err
		}
		r.invalidate(ctx, groupID)
		return nil
	}

	res, err := r.groups.UpdateOne(ctx, bson.M{"group_id": groupID}, bson.M{
		"$set": bson.M{"status": GroupStatusArchived, "updated_at": time.Now()},
	})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return apperrors.ErrGroupNotFound
	}

	_, err = r.members.UpdateMany(ctx, bson.M{"group_id": groupID}, bson.M{
		"$set": bson.M{"status": MemberStatusInactive, "updated_at": time.Now()},
	})
	if err != nil {
		return err
	}
	r.invalidate(ctx, groupID)
	return nil
}

func (r *ChatGroupStoreImpl) FindMembers(ctx context.Context, groupID, branchID string, activeOnly bool) ([]Membership, error) {
	query := bson.M{"group_id": groupID}
	if branchID != "" {
		query["branch_id"] = branchID
	}
	if activeOnly {
		query["status"] = MemberStatusActive
	}

	opts := options.Find().SetLimit(memberPageCap).SetSort(bson.D{{Key: "created_at", Value: 1}})
	cursor, err := r.members.Find(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var members []Membership
	if err := cursor.All(ctx, &members); err != nil {
		return nil, err
	}
	return members, nil
}

func (r *ChatGroupStoreImpl) FindMembershipsByEmployee(ctx context.Context, employeeID string, activeOnly bool) ([]Membership, error) {
	query := bson.M{"employee_id": employeeID}
	if activeOnly {
		query["status"] = MemberStatusActive
	}

	cursor, err := r.members.Find(ctx, query)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var members []Membership
	if err := cursor.All(ctx, &members); err != nil {
		return nil, err
	}
	return members, nil
}

// InsertMembers writes membership rows in bounded batches. Batches are not
// atomic: a partial failure leaves a subset inserted, which is safe because
// (employee_id, group_id) is unique and duplicate inserts are rejected, so
// the operation is idempotent-retryable.
func (r *ChatGroupStoreImpl) InsertMembers(ctx context.Context, members []Membership) error {
	now := time.Now()
	for start := 0; start < len(members); start += r.batchSize {
		end := start + r.batchSize
		if end > len(members) {
			end = len(members)
		}

		docs := make([]interface{}, 0, end-start)
		for i := start; i < end; i++ {
			m := members[i]
			m.CreatedAt = now
			m.UpdatedAt = now
			if m.Status == "" {
				m.Status = MemberStatusActive
			}
			docs = append(docs, m)
		}

		_, err := r.members.InsertMany(ctx, docs, options.InsertMany().SetOrdered(false))
		if err != nil && !mongo.IsDuplicateKeyError(err) {
			return err
		}
	}
	return nil
}

func (r *ChatGroupStoreImpl) RemoveMembersByVendorIDs(ctx context.Context, groupID string, vendorUserIDs []string) error {
	if len(vendorUserIDs) == 0 {
		return nil
	}
	_, err := r.members.DeleteMany(ctx, bson.M{
		"group_id":       groupID,
		"vendor_user_id": bson.M{"$in": vendorUserIDs},
	})
	return err
}

// RecomputeAndPersistStats re-derives metrics from active membership rows
// and invalidates the group's cache entry.
func (r *ChatGroupStoreImpl) RecomputeAndPersistStats(ctx context.Context, groupID, branchID string) (*GroupMetrics, error) {
	members, err := r.FindMembers(ctx, groupID, branchID, false)
	if err != nil {
		return nil, err
	}

	metrics := GroupMetrics{TotalUserCount: len(members)}
	for _, m := range members {
		if m.Status != MemberStatusActive {
			continue
		}
		metrics.ActiveUserCount++
		if m.AccessMode == AccessModeAdmin {
			metrics.ActiveAdminCount++
		}
	}

	_, err = r.groups.UpdateOne(ctx, bson.M{"group_id": groupID}, bson.M{
		"$set": bson.M{"metrics": metrics, "updated_at": time.Now()},
	})
	if err != nil {
		return nil, err
	}

	r.invalidate(ctx, groupID)
	return &metrics, nil
}

func (r *ChatGroupStoreImpl) UpdateLastMessageActivity(ctx context.Context, groupID string, activity MessageActivity) error {
	res, err := r.groups.UpdateOne(ctx, bson.M{"group_id": groupID}, bson.M{
		"$set": bson.M{"last_message_activity": activity, "updated_at": time.Now()},
	})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return apperrors.ErrGroupNotFound
	}
	r.invalidate(ctx, groupID)
	return nil
}

func (r *ChatGroupStoreImpl) invalidate(ctx context.Context, groupID string) {
	// Best-effort: a stale delete failure just means a short-lived stale read
	_ = r.cache.Delete(ctx, groupCacheNamespace, groupID)
}

func regexQuote(s string) string {
	const special = `\.+*?()|[]{}^$`
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		for j := 0; j < len(special); j++ {
			if s[i] == special[j] {
				out = append(out, '\\')
				break
			}
		}
		out = append(out, s[i])
	}
	return string(out)
}
