package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/zoft-projects/OBbackend-sub002/internal/cache"
	"github.com/zoft-projects/OBbackend-sub002/internal/config"
	"github.com/zoft-projects/OBbackend-sub002/internal/directory"
	"github.com/zoft-projects/OBbackend-sub002/internal/vendorchat"
	"github.com/zoft-projects/OBbackend-sub002/pkg/apperrors"
	"github.com/zoft-projects/OBbackend-sub002/pkg/utils"

	"go.uber.org/zap"
)

const lastReadCacheNamespace = "chat-last-read"

type ChatGroupService interface {
	CreateGroup(ctx context.Context, params CreateGroupParams) (*Group, error)
	CreateGroupForBranch(ctx context.Context, branchID, name string, adminUserIDs, fieldStaffUserIDs []string, createdByUserID string) (*Group, error)
	GetGroup(ctx context.Context, groupID, branchID string) (*Group, error)
	ListGroups(ctx context.Context, filter GroupFilter, page PageOptions) ([]Group, error)
	ListGroupsForUser(ctx context.Context, claims *utils.UserClaims, page PageOptions) ([]Group, error)
	UpdateGroup(ctx context.Context, patch *GroupPatch, addUserIDs, removeUserIDs []string) (*Group, error)
	RemoveGroup(ctx context.Context, groupID string, mode RemovalMode) error
	RefreshGroupStats(ctx context.Context, groupID, branchID string) (*GroupMetrics, error)

	RecordMessageSent(ctx context.Context, groupID string, activity MessageActivity) error
	RecordMessageRead(ctx context.Context, groupID, employeeID, messageID string) error
	LastReadMessage(ctx context.Context, groupID, employeeID string) (string, error)

	ProvisionChatUser(ctx context.Context, employeeID string) (string, error)
	ResetChatUser(ctx context.Context, employeeID string) (string, error)
}

type ChatGroupServiceImpl struct {
	store      ChatGroupStore
	reconciler GroupReconciler
	provider   vendorchat.ThreadProvider
	directory  directory.DirectoryService
	cache      cache.KeyValueCache
	defaults   config.ChatDefaults
	log        *zap.Logger
}

func NewChatGroupService(store ChatGroupStore, reconciler GroupReconciler, provider vendorchat.ThreadProvider, dir directory.DirectoryService, kv cache.KeyValueCache, cfg *config.Config, log *zap.Logger) ChatGroupService {
	return &ChatGroupServiceImpl{
		store:      store,
		reconciler: reconciler,
		provider:   provider,
		directory:  dir,
		cache:      kv,
		defaults:   cfg.Chat,
		log:        log,
	}
}

func (s *ChatGroupServiceImpl) CreateGroup(ctx context.Context, params CreateGroupParams) (*Group, error) {
	if params.Name == "" {
		return nil, apperrors.InvalidArg("group name is required")
	}
	if params.BranchID == "" {
		return nil, apperrors.InvalidArg("branch id is required")
	}
	if params.Type != GroupTypeDirectMessage && params.Type != GroupTypeBroadcast {
		return nil, apperrors.InvalidArg(fmt.Sprintf("unknown group type %q", params.Type))
	}
	if params.AccessControl != nil && params.AccessControl.MaxUsersAllowed > hardParticipantCeiling {
		return nil, apperrors.InvalidArg(fmt.Sprintf("max_users_allowed cannot exceed %d", hardParticipantCeiling))
	}
	return s.reconciler.CreateGroupWithParticipants(ctx, params)
}

// CreateGroupForBranch is the convenience form: a branch-scoped broadcast
// group built from plain participant lists, defaults everywhere else.
func (s *ChatGroupServiceImpl) CreateGroupForBranch(ctx context.Context, branchID, name string, adminUserIDs, fieldStaffUserIDs []string, createdByUserID string) (*Group, error) {
	return s.CreateGroup(ctx, CreateGroupParams{
		Name:              name,
		Type:              GroupTypeBroadcast,
		BranchID:          branchID,
		AdminUserIDs:      adminUserIDs,
		FieldStaffUserIDs: fieldStaffUserIDs,
		CreatedBy:         "api",
		CreatedByUserID:   createdByUserID,
	})
}

func (s *ChatGroupServiceImpl) GetGroup(ctx context.Context, groupID, branchID string) (*Group, error) {
	if cached, err := s.cache.Get(ctx, groupCacheNamespace, groupID); err == nil {
		var group Group
		if err := json.Unmarshal([]byte(cached), &group); err == nil {
			if branchID == "" || group.BranchID == branchID {
				return &group, nil
			}
		}
	}

	group, err := s.store.FindGroupByID(ctx, groupID, branchID)
	if err != nil {
		return nil, err
	}

	if raw, err := json.Marshal(group); err == nil {
		ttl := time.Duration(s.defaults.GroupCacheTTLSecs) * time.Second
		if err := s.cache.Set(ctx, groupCacheNamespace, groupID, string(raw), ttl); err != nil {
			s.log.Debug("group cache write failed", zap.String("groupId", groupID), zap.Error(err))
		}
	}
	return group, nil
}

func (s *ChatGroupServiceImpl) ListGroups(ctx context.Context, filter GroupFilter, page PageOptions) ([]Group, error) {
	return s.store.FindGroups(ctx, filter, page)
}

// ListGroupsForUser returns the groups visible to the caller. Admins see
// every active group in their branches. Field staff see only the groups
// they belong to, with their own direct group renamed to the branch so the
// channel reads as "talk to my branch" rather than their own name.
func (s *ChatGroupServiceImpl) ListGroupsForUser(ctx context.Context, claims *utils.UserClaims, page PageOptions) ([]Group, error) {
	if claims.JobLevel >= s.defaults.BranchAdminJobLevel {
		return s.store.FindGroupsByBranches(ctx, claims.BranchIDs, nil, true, page)
	}

	memberships, err := s.store.FindMembershipsByEmployee(ctx, claims.EmployeeID, true)
	if err != nil {
		return nil, err
	}

	groups := make([]Group, 0, len(memberships))
	for _, m := range memberships {
		group, err := s.store.FindGroupByID(ctx, m.GroupID, "")
		if errors.Is(err, apperrors.ErrGroupNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if group.Status != GroupStatusActive {
			continue
		}
		if group.Type == GroupTypeDirectMessage && group.IntendedForUserID == claims.EmployeeID {
			name, err := s.directory.BranchName(ctx, group.BranchID)
			if err != nil {
				s.log.Debug("branch name lookup failed", zap.String("branchId", group.BranchID), zap.Error(err))
				name = group.BranchID
			}
			group.Name = name
		}
		groups = append(groups, *group)
	}
	return groups, nil
}

// UpdateGroup applies a metadata patch and/or explicit membership changes.
// A request that changes nothing is rejected so callers cannot mistake a
// no-op for a successful update.
func (s *ChatGroupServiceImpl) UpdateGroup(ctx context.Context, patch *GroupPatch, addUserIDs, removeUserIDs []string) (*Group, error) {
	if patch == nil || patch.GroupID == "" {
		return nil, apperrors.InvalidArg("group id is required")
	}
	if patch.AccessControl != nil && patch.AccessControl.MaxUsersAllowed > hardParticipantCeiling {
		return nil, apperrors.InvalidArg(fmt.Sprintf("max_users_allowed cannot exceed %d", hardParticipantCeiling))
	}

	group, err := s.store.FindGroupByID(ctx, patch.GroupID, "")
	if err != nil {
		return nil, err
	}

	pruneNoopPatch(group, patch)
	hasPatch := patch.Name != nil || patch.Status != nil || patch.Image != nil ||
		patch.AccessControl != nil || patch.Metrics != nil || patch.LastMessageActivity != nil

	changed, err := s.reconciler.ApplyMembershipChange(ctx, group, addUserIDs, removeUserIDs)
	if err != nil {
		return nil, err
	}
	if !hasPatch && !changed {
		return nil, apperrors.ErrNoChangesDetected
	}
	if !hasPatch {
		return s.store.FindGroupByID(ctx, patch.GroupID, "")
	}
	return s.store.UpsertGroup(ctx, patch)
}

// pruneNoopPatch clears patch fields whose value already matches the group,
// so a patch carrying only current values counts as no change at all.
func pruneNoopPatch(group *Group, patch *GroupPatch) {
	if patch.Name != nil && *patch.Name == group.Name {
		patch.Name = nil
	}
	if patch.Status != nil && *patch.Status == group.Status {
		patch.Status = nil
	}
	if patch.Image != nil && group.Image != nil && *patch.Image == *group.Image {
		patch.Image = nil
	}
	if patch.AccessControl != nil && sameAccessControl(*patch.AccessControl, group.AccessControl) {
		patch.AccessControl = nil
	}
	if patch.Metrics != nil && *patch.Metrics == group.Metrics {
		patch.Metrics = nil
	}
	if patch.LastMessageActivity != nil && group.LastMessageActivity != nil &&
		sameActivity(*patch.LastMessageActivity, *group.LastMessageActivity) {
		patch.LastMessageActivity = nil
	}
}

func sameAccessControl(a, b AccessControl) bool {
	if !sameTimePtr(a.NotificationPauseFrom, b.NotificationPauseFrom) ||
		!sameTimePtr(a.NotificationPauseUntil, b.NotificationPauseUntil) {
		return false
	}
	a.NotificationPauseFrom, a.NotificationPauseUntil = nil, nil
	b.NotificationPauseFrom, b.NotificationPauseUntil = nil, nil
	return a == b
}

func sameTimePtr(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

func sameActivity(a, b MessageActivity) bool {
	return a.MessageID == b.MessageID && a.Text == b.Text &&
		a.Status == b.Status && a.Timestamp.Equal(b.Timestamp)
}

func (s *ChatGroupServiceImpl) RemoveGroup(ctx context.Context, groupID string, mode RemovalMode) error {
	group, err := s.store.FindGroupByID(ctx, groupID, "")
	if err != nil {
		return err
	}

	if mode == RemoveHard && group.VendorThreadID != "" {
		err := s.provider.DeleteThread(ctx, group.VendorThreadID)
		if err != nil && !errors.Is(err, apperrors.ErrThreadNotFound) {
			return err
		}
	}
	return s.store.RemoveGroup(ctx, groupID, mode)
}

func (s *ChatGroupServiceImpl) RefreshGroupStats(ctx context.Context, groupID, branchID string) (*GroupMetrics, error) {
	return s.store.RecomputeAndPersistStats(ctx, groupID, branchID)
}

func (s *ChatGroupServiceImpl) RecordMessageSent(ctx context.Context, groupID string, activity MessageActivity) error {
	if activity.Timestamp.IsZero() {
		activity.Timestamp = time.Now()
	}
	return s.store.UpdateLastMessageActivity(ctx, groupID, activity)
}

// RecordMessageRead stores a per-user read marker as a hash field on the
// group's key. Markers expire with the group key; a lapsed marker just
// means "unread count starts over".
func (s *ChatGroupServiceImpl) RecordMessageRead(ctx context.Context, groupID, employeeID, messageID string) error {
	ttl := time.Duration(s.defaults.LastReadTTLDays) * 24 * time.Hour
	return s.cache.HSet(ctx, lastReadCacheNamespace, groupID, employeeID, messageID, ttl)
}

func (s *ChatGroupServiceImpl) LastReadMessage(ctx context.Context, groupID, employeeID string) (string, error) {
	marker, err := s.cache.HGet(ctx, lastReadCacheNamespace, groupID, employeeID)
	if errors.Is(err, cache.ErrCacheMiss) {
		return "", nil
	}
	return marker, err
}

// ProvisionChatUser creates a vendor identity for the employee and binds it
// in the directory. Already-provisioned users get their existing identity
// back, so the endpoint is safe to retry.
func (s *ChatGroupServiceImpl) ProvisionChatUser(ctx context.Context, employeeID string) (string, error) {
	user, err := s.directory.GetByID(ctx, employeeID)
	if err != nil {
		return "", apperrors.DirectoryLookupFailed(err)
	}
	if user.HasVendorIdentity() {
		return user.VendorUserID, nil
	}

	vendorUserID, err := s.provider.CreateIdentity(ctx, user.DisplayName)
	if err != nil {
		return "", err
	}
	if err := s.directory.BindVendorIdentity(ctx, employeeID, vendorUserID); err != nil {
		// Orphaned identity, best-effort cleanup
		if delErr := s.provider.DeleteIdentity(ctx, vendorUserID); delErr != nil {
			s.log.Warn("failed to clean up orphaned vendor identity",
				zap.String("vendorUserId", vendorUserID), zap.Error(delErr))
		}
		return "", err
	}

	s.log.Info("provisioned chat vendor identity",
		zap.String("employeeId", employeeID))
	return vendorUserID, nil
}

// ResetChatUser tears down the employee's vendor identity and provisions a
// fresh one. Stale memberships under the old identity fall away on the
// next reconciliation pass.
func (s *ChatGroupServiceImpl) ResetChatUser(ctx context.Context, employeeID string) (string, error) {
	user, err := s.directory.GetByID(ctx, employeeID)
	if err != nil {
		return "", apperrors.DirectoryLookupFailed(err)
	}
	if !user.HasVendorIdentity() {
		return "", apperrors.ErrVendorIdentityNotBound
	}

	if err := s.provider.DeleteIdentity(ctx, user.VendorUserID); err != nil {
		return "", err
	}
	if err := s.directory.UnbindVendorIdentity(ctx, employeeID); err != nil {
		return "", err
	}

	s.log.Info("reset chat vendor identity", zap.String("employeeId", employeeID))
	return s.ProvisionChatUser(ctx, employeeID)
}
