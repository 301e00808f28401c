package chat

import (
	"context"
	"errors"

	"github.com/zoft-projects/OBbackend-sub002/internal/config"
	"github.com/zoft-projects/OBbackend-sub002/internal/directory"
	"github.com/zoft-projects/OBbackend-sub002/internal/vendorchat"
	"github.com/zoft-projects/OBbackend-sub002/pkg/apperrors"
	"github.com/zoft-projects/OBbackend-sub002/pkg/utils"

	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// GroupReconciler converges a group's local membership rows and vendor
// thread toward the business-rule-derived expected state. Every operation
// recomputes expected-vs-current from scratch and applies only the delta,
// so concurrent or repeated passes converge to the same end-state.
type GroupReconciler interface {
	// CreateGroupWithParticipants creates the vendor thread and local
	// records for an explicit participant set.
	CreateGroupWithParticipants(ctx context.Context, params CreateGroupParams) (*Group, error)

	// SyncFieldStaffGroup reconciles the private direct-message group of
	// one field-staff member against their branch's current admins.
	SyncFieldStaffGroup(ctx context.Context, employeeID, branchID string) (*Group, error)

	// SyncBranchAdmin repairs a branch admin's membership across the
	// field-staff groups of their branch.
	SyncBranchAdmin(ctx context.Context, employeeID, branchID string) error

	// SyncBroadcastGroup reconciles the branch-wide broadcast group for a
	// category.
	SyncBroadcastGroup(ctx context.Context, branchID, category string) (*Group, error)

	// ApplyMembershipChange applies explicit add/remove id lists to an
	// existing group, removals first.
	ApplyMembershipChange(ctx context.Context, group *Group, addIDs, removeIDs []string) (bool, error)
}

type CreateGroupParams struct {
	Name              string
	Type              GroupType
	Category          string
	BranchID          string
	IntendedForUserID string
	AdminUserIDs      []string
	FieldStaffUserIDs []string
	AccessControl     *AccessControl
	Image             *GroupImage
	CreatedBy         string
	CreatedByUserID   string
}

type GroupReconcilerImpl struct {
	store     ChatGroupStore
	provider  vendorchat.ThreadProvider
	directory directory.DirectoryService
	defaults  config.ChatDefaults
	log       *zap.Logger
}

func NewGroupReconciler(store ChatGroupStore, provider vendorchat.ThreadProvider, dir directory.DirectoryService, cfg *config.Config, log *zap.Logger) GroupReconciler {
	return &GroupReconcilerImpl{
		store:     store,
		provider:  provider,
		directory: dir,
		defaults:  cfg.Chat,
		log:       log,
	}
}

func (r *GroupReconcilerImpl) defaultAccessControl() AccessControl {
	return AccessControl{
		MaxUsersAllowed:     r.defaults.MaxUsersAllowed,
		BidirectionalReply:  r.defaults.BidirectionalReply,
		AttachmentsAllowed:  r.defaults.AttachmentsAllowed,
		RichTextAllowed:     r.defaults.RichTextAllowed,
		CaptureActivity:     r.defaults.CaptureActivity,
		OpenHour:            r.defaults.OpenHour,
		CloseHour:           r.defaults.CloseHour,
		AvailableOnWeekends: r.defaults.AvailableOnWeekends,
	}
}

// effectiveCap clamps the group's configured limit to the absolute ceiling.
func (r *GroupReconcilerImpl) effectiveCap(ac AccessControl) int {
	max := ac.MaxUsersAllowed
	if max <= 0 {
		max = r.defaults.MaxUsersAllowed
	}
	if max > hardParticipantCeiling {
		max = hardParticipantCeiling
	}
	return max
}

// checkCapacity fails the whole add before any vendor call is issued.
func (r *GroupReconcilerImpl) checkCapacity(ac AccessControl, currentCount, incoming int) error {
	if incoming == 0 {
		return nil
	}
	if currentCount+incoming > r.effectiveCap(ac) {
		return apperrors.ErrCapacityExceeded
	}
	return nil
}

// accessModeFor derives the membership access mode from the user's
// effective job level at operation time.
func (r *GroupReconcilerImpl) accessModeFor(u *directory.UserRecord) AccessMode {
	if u.Job.Level >= r.defaults.BranchAdminJobLevel {
		return AccessModeAdmin
	}
	return AccessModeAgent
}

// resolveEligible partitions the requested users into vendor-eligible and
// ineligible. Ineligible users are reported, not fatal, unless nobody is
// eligible.
func (r *GroupReconcilerImpl) resolveEligible(ctx context.Context, employeeIDs []string) ([]directory.UserRecord, []string, error) {
	users, err := r.directory.GetByIDs(ctx, employeeIDs, &directory.Options{ActiveOnly: true})
	if err != nil {
		return nil, nil, apperrors.DirectoryLookupFailed(err)
	}

	var eligible []directory.UserRecord
	var ineligible []string
	for _, u := range users {
		if u.HasVendorIdentity() {
			eligible = append(eligible, u)
		} else {
			ineligible = append(ineligible, u.EmployeeID)
		}
	}
	return eligible, ineligible, nil
}

// --- Scenario A -----------------------------------------------------------

func (r *GroupReconcilerImpl) CreateGroupWithParticipants(ctx context.Context, params CreateGroupParams) (*Group, error) {
	expected := ExpectedMembershipSet{
		AdminUserIDs:      params.AdminUserIDs,
		FieldStaffUserIDs: params.FieldStaffUserIDs,
	}
	requested := expected.AllIDs()
	if params.IntendedForUserID != "" {
		requested = appendUnique(requested, params.IntendedForUserID)
	}

	ac := r.defaultAccessControl()
	if params.AccessControl != nil {
		ac = *params.AccessControl
	}
	if err := r.checkCapacity(ac, 0, len(requested)); err != nil {
		return nil, err
	}

	eligible, ineligible, err := r.resolveEligible(ctx, requested)
	if err != nil {
		return nil, err
	}
	if len(ineligible) > 0 {
		r.log.Warn("skipping users without chat vendor identity",
			zap.Strings("employeeIds", ineligible),
			zap.String("branchId", params.BranchID))
	}
	if len(eligible) == 0 {
		return nil, apperrors.ErrProvisioningMissing
	}

	participants := make([]vendorchat.Participant, 0, len(eligible))
	for _, u := range eligible {
		participants = append(participants, vendorchat.Participant{
			VendorUserID: u.VendorUserID,
			DisplayName:  u.DisplayName,
		})
	}

	threadID, err := r.provider.CreateThread(ctx, params.Name, participants)
	if err != nil {
		return nil, err
	}

	group := &Group{
		VendorThreadID:    threadID,
		Name:              params.Name,
		Type:              params.Type,
		Category:          params.Category,
		BranchID:          params.BranchID,
		IntendedForUserID: params.IntendedForUserID,
		Image:             params.Image,
		Status:            GroupStatusActive,
		AccessControl:     ac,
		CreatedBy:         params.CreatedBy,
		CreatedByUserID:   params.CreatedByUserID,
		UpdatedByUserID:   params.CreatedByUserID,
	}

	adminSet := toSet(params.AdminUserIDs)
	group.Metrics = GroupMetrics{TotalUserCount: len(eligible), ActiveUserCount: len(eligible)}
	for _, u := range eligible {
		if adminSet[u.EmployeeID] || r.accessModeFor(&u) == AccessModeAdmin {
			group.Metrics.ActiveAdminCount++
		}
	}

	// Regenerate on the (negligible) chance of an id collision
	for attempt := 0; attempt < 3; attempt++ {
		group.GroupID = utils.NewPrefixedID(GroupIDPrefix, 8)
		err = r.store.CreateGroup(ctx, group)
		if err == nil || !mongo.IsDuplicateKeyError(err) {
			break
		}
	}
	if err != nil {
		// Best-effort cleanup so a failed persist does not orphan the thread.
		if delErr := r.provider.DeleteThread(ctx, threadID); delErr != nil && !errors.Is(delErr, apperrors.ErrThreadNotFound) {
			r.log.Warn("vendor thread cleanup failed after persist error",
				zap.String("threadId", threadID), zap.Error(delErr))
		}
		return nil, err
	}

	// The thread was created with exactly this participant set in one
	// atomic vendor call, so create-time inserts are not gated on re-listing.
	members := make([]Membership, 0, len(eligible))
	for _, u := range eligible {
		members = append(members, r.membershipRow(group, &u))
	}
	if err := r.store.InsertMembers(ctx, members); err != nil {
		return nil, err
	}

	return group, nil
}

func (r *GroupReconcilerImpl) membershipRow(group *Group, u *directory.UserRecord) Membership {
	return Membership{
		EmployeeID:   u.EmployeeID,
		GroupID:      group.GroupID,
		VendorUserID: u.VendorUserID,
		BranchID:     group.BranchID,
		DisplayName:  u.DisplayName,
		AccessMode:   r.accessModeFor(u),
		Status:       MemberStatusActive,
	}
}

// --- Scenario B -----------------------------------------------------------

func (r *GroupReconcilerImpl) SyncFieldStaffGroup(ctx context.Context, employeeID, branchID string) (*Group, error) {
	member, err := r.directory.GetByID(ctx, employeeID)
	if err != nil {
		return nil, apperrors.DirectoryLookupFailed(err)
	}
	if !member.HasVendorIdentity() {
		return nil, apperrors.ErrVendorIdentityNotBound
	}
	if member.Job.Level >= r.defaults.BranchAdminJobLevel {
		return nil, apperrors.ErrDirectGroupSelfIntended
	}

	expectedAdmins, err := r.expectedBranchAdmins(ctx, branchID)
	if err != nil {
		return nil, err
	}

	group, err := r.resolveCanonicalDirectGroup(ctx, employeeID, branchID)
	if err != nil {
		return nil, err
	}

	if group == nil {
		adminIDs := make([]string, 0, len(expectedAdmins))
		for _, a := range expectedAdmins {
			adminIDs = append(adminIDs, a.EmployeeID)
		}
		return r.CreateGroupWithParticipants(ctx, CreateGroupParams{
			Name:              member.DisplayName,
			Type:              GroupTypeDirectMessage,
			BranchID:          branchID,
			IntendedForUserID: employeeID,
			AdminUserIDs:      adminIDs,
			FieldStaffUserIDs: []string{employeeID},
			CreatedBy:         "reconciler",
		})
	}

	changed, err := r.reconcileDirectMembers(ctx, group, member, expectedAdmins)
	if err != nil {
		return nil, err
	}
	if changed {
		if _, err := r.store.RecomputeAndPersistStats(ctx, group.GroupID, group.BranchID); err != nil {
			return nil, err
		}
	}
	return group, nil
}

// expectedBranchAdmins returns the branch's active admin-level users,
// ordered by creation time, excluding anyone without a vendor identity.
func (r *GroupReconcilerImpl) expectedBranchAdmins(ctx context.Context, branchID string) ([]directory.UserRecord, error) {
	levels := adminJobLevels(r.defaults.BranchAdminJobLevel)
	admins, err := r.directory.GetByBranch(ctx, []string{branchID}, levels, &directory.Options{ActiveOnly: true})
	if err != nil {
		return nil, apperrors.DirectoryLookupFailed(err)
	}

	eligible := admins[:0]
	for _, a := range admins {
		if a.HasVendorIdentity() {
			eligible = append(eligible, a)
		} else {
			r.log.Warn("branch admin has no chat vendor identity",
				zap.String("employeeId", a.EmployeeID),
				zap.String("branchId", branchID))
		}
	}
	return eligible, nil
}

// resolveCanonicalDirectGroup returns the single active direct group for
// the (branch, member) pair, hard-deleting stale duplicates, reactivating a
// recent inactive group, or nil when a new one must be created.
func (r *GroupReconcilerImpl) resolveCanonicalDirectGroup(ctx context.Context, employeeID, branchID string) (*Group, error) {
	active, err := r.store.FindGroups(ctx, GroupFilter{
		BranchID:          branchID,
		Type:              GroupTypeDirectMessage,
		IntendedForUserID: employeeID,
		Status:            GroupStatusActive,
	}, PageOptions{SortField: "created_at", SortOrder: 1})
	if err != nil {
		return nil, err
	}

	if len(active) > 1 {
		r.log.Warn("duplicate direct groups found, removing stale copies",
			zap.String("employeeId", employeeID),
			zap.String("branchId", branchID),
			zap.Int("count", len(active)))
		// Duplicates are never merged: keep the oldest, hard-delete the rest
		for _, stale := range active[1:] {
			if err := r.hardDeleteGroup(ctx, &stale); err != nil {
				return nil, err
			}
		}
	}
	if len(active) > 0 {
		return &active[0], nil
	}

	inactive, err := r.store.FindGroups(ctx, GroupFilter{
		BranchID:          branchID,
		Type:              GroupTypeDirectMessage,
		IntendedForUserID: employeeID,
		Status:            GroupStatusInactive,
	}, PageOptions{SortField: "updated_at", SortOrder: -1, Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(inactive) > 0 {
		status := GroupStatusActive
		return r.store.UpsertGroup(ctx, &GroupPatch{GroupID: inactive[0].GroupID, Status: &status})
	}

	return nil, nil
}

func (r *GroupReconcilerImpl) hardDeleteGroup(ctx context.Context, group *Group) error {
	if group.VendorThreadID != "" {
		err := r.provider.DeleteThread(ctx, group.VendorThreadID)
		if err != nil && !errors.Is(err, apperrors.ErrThreadNotFound) {
			return err
		}
	}
	return r.store.RemoveGroup(ctx, group.GroupID, RemoveHard)
}

// reconcileDirectMembers converges the group's admins toward the expected
// set and guarantees the intended member is present. Removals land before
// additions so capacity never transiently overflows.
func (r *GroupReconcilerImpl) reconcileDirectMembers(ctx context.Context, group *Group, member *directory.UserRecord, expectedAdmins []directory.UserRecord) (bool, error) {
	current, err := r.store.FindMembers(ctx, group.GroupID, group.BranchID, true)
	if err != nil {
		return false, err
	}

	var currentAdminIDs []string
	memberPresent := false
	for _, m := range current {
		if m.EmployeeID == member.EmployeeID {
			memberPresent = true
			continue
		}
		if m.AccessMode == AccessModeAdmin {
			currentAdminIDs = append(currentAdminIDs, m.EmployeeID)
		}
	}

	expectedAdminIDs := make([]string, 0, len(expectedAdmins))
	for _, a := range expectedAdmins {
		expectedAdminIDs = append(expectedAdminIDs, a.EmployeeID)
	}

	diff := DiffAdmins(expectedAdminIDs, currentAdminIDs, member.EmployeeID)

	toAdd := diff.ToAdd
	if !memberPresent {
		toAdd = appendUnique(toAdd, member.EmployeeID)
	}
	if len(toAdd) == 0 && len(diff.ToRemove) == 0 {
		return false, nil
	}

	if err := r.removeMembers(ctx, group, current, diff.ToRemove); err != nil {
		return false, err
	}
	if err := r.checkCapacity(group.AccessControl, len(current)-len(diff.ToRemove), len(toAdd)); err != nil {
		return false, err
	}
	if err := r.addMembersWithConfirm(ctx, group, toAdd); err != nil {
		return false, err
	}
	return true, nil
}

func (r *GroupReconcilerImpl) SyncBranchAdmin(ctx context.Context, employeeID, branchID string) error {
	admin, err := r.directory.GetByID(ctx, employeeID)
	if err != nil {
		return apperrors.DirectoryLookupFailed(err)
	}
	if r.accessModeFor(admin) != AccessModeAdmin {
		return apperrors.InvalidArg("employee is not a branch admin")
	}

	// An admin must never be the subject of their own private channel
	selfGroups, err := r.store.FindGroups(ctx, GroupFilter{
		BranchID:          branchID,
		Type:              GroupTypeDirectMessage,
		IntendedForUserID: employeeID,
		Status:            GroupStatusActive,
	}, PageOptions{})
	if err != nil {
		return err
	}
	for _, g := range selfGroups {
		status := GroupStatusInactive
		if _, err := r.store.UpsertGroup(ctx, &GroupPatch{GroupID: g.GroupID, Status: &status}); err != nil {
			return err
		}
		r.log.Info("deactivated self-intended direct group",
			zap.String("groupId", g.GroupID),
			zap.String("branchId", branchID))
	}

	if !admin.HasVendorIdentity() {
		r.log.Warn("branch admin has no chat vendor identity, skipping membership repair",
			zap.String("employeeId", employeeID),
			zap.String("branchId", branchID))
		return nil
	}

	groups, err := r.store.FindGroups(ctx, GroupFilter{
		BranchID: branchID,
		Type:     GroupTypeDirectMessage,
		Status:   GroupStatusActive,
	}, PageOptions{SortField: "created_at", SortOrder: 1})
	if err != nil {
		return err
	}

	for _, g := range groups {
		if g.IntendedForUserID == employeeID {
			continue
		}
		members, err := r.store.FindMembers(ctx, g.GroupID, g.BranchID, true)
		if err != nil {
			return err
		}
		present := false
		for _, m := range members {
			if m.EmployeeID == employeeID {
				present = true
				break
			}
		}
		if present {
			continue
		}

		if err := r.checkCapacity(g.AccessControl, len(members), 1); err != nil {
			r.log.Warn("cannot repair admin membership, group at capacity",
				zap.String("groupId", g.GroupID),
				zap.String("employeeId", employeeID))
			continue
		}
		if err := r.addMembersWithConfirm(ctx, &g, []string{employeeID}); err != nil {
			r.log.Error("failed to repair admin membership",
				zap.String("groupId", g.GroupID),
				zap.String("employeeId", employeeID),
				zap.Error(err))
			continue
		}
		if _, err := r.store.RecomputeAndPersistStats(ctx, g.GroupID, g.BranchID); err != nil {
			return err
		}
	}
	return nil
}

// --- Scenario C -----------------------------------------------------------

func (r *GroupReconcilerImpl) SyncBroadcastGroup(ctx context.Context, branchID, category string) (*Group, error) {
	expected, err := r.expectedBroadcastMembers(ctx, branchID, category)
	if err != nil {
		// Expectation-computation failures abort this category
		return nil, err
	}

	existing, err := r.store.FindGroups(ctx, GroupFilter{
		BranchID: branchID,
		Type:     GroupTypeBroadcast,
		Category: category,
	}, PageOptions{SortField: "created_at", SortOrder: 1})
	if err != nil {
		// A current-state fetch failure means "needs creation", not an abort
		r.log.Warn("broadcast group lookup failed, treating as missing",
			zap.String("branchId", branchID),
			zap.String("category", category),
			zap.Error(err))
		existing = nil
	}

	var canonical *Group
	activeCount := 0
	for i := range existing {
		switch existing[i].Status {
		case GroupStatusInactive:
			// Manual intervention happened; never auto-reactivate
			return nil, apperrors.ErrBroadcastGroupInactive
		case GroupStatusActive:
			activeCount++
			if canonical == nil {
				canonical = &existing[i]
			}
		}
	}
	if activeCount > 1 {
		r.log.Error("multiple active broadcast groups for category",
			zap.String("branchId", branchID),
			zap.String("category", category),
			zap.Int("count", activeCount))
		return nil, apperrors.ErrDriftDetected
	}

	if canonical == nil {
		return r.CreateGroupWithParticipants(ctx, CreateGroupParams{
			Name:              category,
			Type:              GroupTypeBroadcast,
			Category:          category,
			BranchID:          branchID,
			AdminUserIDs:      expected.AdminUserIDs,
			FieldStaffUserIDs: expected.FieldStaffUserIDs,
			CreatedBy:         "reconciler",
		})
	}

	current, err := r.store.FindMembers(ctx, canonical.GroupID, canonical.BranchID, true)
	if err != nil {
		return nil, err
	}
	currentIDs := make([]string, 0, len(current))
	for _, m := range current {
		currentIDs = append(currentIDs, m.EmployeeID)
	}

	diff := DiffMembership(expected.AllIDs(), currentIDs)
	if diff.Empty() {
		return canonical, nil
	}

	if err := r.removeMembers(ctx, canonical, current, diff.ToRemove); err != nil {
		return nil, err
	}
	if err := r.checkCapacity(canonical.AccessControl, len(current)-len(diff.ToRemove), len(diff.ToAdd)); err != nil {
		return nil, err
	}
	if err := r.addMembersWithConfirm(ctx, canonical, diff.ToAdd); err != nil {
		return nil, err
	}
	if _, err := r.store.RecomputeAndPersistStats(ctx, canonical.GroupID, canonical.BranchID); err != nil {
		return nil, err
	}
	return canonical, nil
}

func (r *GroupReconcilerImpl) expectedBroadcastMembers(ctx context.Context, branchID, category string) (*ExpectedMembershipSet, error) {
	users, err := r.directory.GetByBranch(ctx, []string{branchID}, nil, &directory.Options{ActiveOnly: true})
	if err != nil {
		return nil, apperrors.DirectoryLookupFailed(err)
	}

	allowList, err := r.directory.ResolveJobCategories(ctx, []string{category})
	if err != nil {
		return nil, apperrors.DirectoryLookupFailed(err)
	}
	allowedJobs := toSet(allowList[category])

	expected := &ExpectedMembershipSet{}
	for _, u := range users {
		if !u.HasVendorIdentity() {
			continue
		}
		// An empty allow-list means every job qualifies for the category
		if len(allowedJobs) > 0 && !allowedJobs[u.Job.ID] {
			continue
		}
		if r.accessModeFor(&u) == AccessModeAdmin {
			expected.AdminUserIDs = append(expected.AdminUserIDs, u.EmployeeID)
		} else {
			expected.FieldStaffUserIDs = append(expected.FieldStaffUserIDs, u.EmployeeID)
		}
	}
	return expected, nil
}

// --- Shared mutation helpers ---------------------------------------------

// ApplyMembershipChange applies explicit add/remove lists, removals first.
// Returns whether anything changed.
func (r *GroupReconcilerImpl) ApplyMembershipChange(ctx context.Context, group *Group, addIDs, removeIDs []string) (bool, error) {
	if len(addIDs) == 0 && len(removeIDs) == 0 {
		return false, nil
	}

	current, err := r.store.FindMembers(ctx, group.GroupID, group.BranchID, true)
	if err != nil {
		return false, err
	}

	currentSet := make(map[string]bool, len(current))
	for _, m := range current {
		currentSet[m.EmployeeID] = true
	}

	var effectiveRemoves []string
	for _, id := range removeIDs {
		if currentSet[id] {
			effectiveRemoves = append(effectiveRemoves, id)
		}
	}
	var effectiveAdds []string
	for _, id := range addIDs {
		if !currentSet[id] {
			effectiveAdds = append(effectiveAdds, id)
		}
	}
	if len(effectiveAdds) == 0 && len(effectiveRemoves) == 0 {
		return false, nil
	}

	if err := r.removeMembers(ctx, group, current, effectiveRemoves); err != nil {
		return false, err
	}
	if err := r.checkCapacity(group.AccessControl, len(current)-len(effectiveRemoves), len(effectiveAdds)); err != nil {
		return false, err
	}
	if err := r.addMembersWithConfirm(ctx, group, effectiveAdds); err != nil {
		return false, err
	}
	if _, err := r.store.RecomputeAndPersistStats(ctx, group.GroupID, group.BranchID); err != nil {
		return false, err
	}
	return true, nil
}

// addMembersWithConfirm resolves the users, adds them to the vendor thread,
// then persists local rows only for participants present on a re-list.
// Users the vendor reported added but who are absent on re-list are dropped
// with a warning; the next reconciliation pass retries them.
func (r *GroupReconcilerImpl) addMembersWithConfirm(ctx context.Context, group *Group, employeeIDs []string) error {
	if len(employeeIDs) == 0 {
		return nil
	}

	eligible, ineligible, err := r.resolveEligible(ctx, employeeIDs)
	if err != nil {
		return err
	}
	if len(ineligible) > 0 {
		r.log.Warn("skipping users without chat vendor identity",
			zap.Strings("employeeIds", ineligible),
			zap.String("groupId", group.GroupID))
	}
	if len(eligible) == 0 {
		return nil
	}

	participants := make([]vendorchat.Participant, 0, len(eligible))
	for _, u := range eligible {
		participants = append(participants, vendorchat.Participant{
			VendorUserID: u.VendorUserID,
			DisplayName:  u.DisplayName,
		})
	}
	if _, err := r.provider.AddParticipants(ctx, group.VendorThreadID, participants); err != nil {
		return err
	}

	listed, err := r.provider.ListParticipants(ctx, group.VendorThreadID)
	if err != nil {
		return err
	}
	present := make(map[string]bool, len(listed))
	for _, p := range listed {
		present[p.VendorUserID] = true
	}

	rows := make([]Membership, 0, len(eligible))
	for _, u := range eligible {
		if !present[u.VendorUserID] {
			// Vendor-side eventual consistency: do not persist, do not retry inline
			r.log.Warn("vendor add not confirmed on re-list, dropping",
				zap.String("employeeId", u.EmployeeID),
				zap.String("groupId", group.GroupID))
			continue
		}
		rows = append(rows, r.membershipRow(group, &u))
	}
	if len(rows) == 0 {
		return nil
	}
	return r.store.InsertMembers(ctx, rows)
}

// removeMembers removes the given employees from the vendor thread and
// hard-deletes local rows only for participants confirmed absent on a
// re-list. A thread that is already gone counts as fully removed.
func (r *GroupReconcilerImpl) removeMembers(ctx context.Context, group *Group, current []Membership, employeeIDs []string) error {
	if len(employeeIDs) == 0 {
		return nil
	}

	removeSet := toSet(employeeIDs)
	vendorIDs := make([]string, 0, len(employeeIDs))
	for _, m := range current {
		if removeSet[m.EmployeeID] {
			vendorIDs = append(vendorIDs, m.VendorUserID)
		}
	}
	if len(vendorIDs) == 0 {
		return nil
	}

	_, err := r.provider.RemoveParticipants(ctx, group.VendorThreadID, vendorIDs)
	if err != nil {
		if errors.Is(err, apperrors.ErrThreadNotFound) {
			return r.store.RemoveMembersByVendorIDs(ctx, group.GroupID, vendorIDs)
		}
		return err
	}

	listed, err := r.provider.ListParticipants(ctx, group.VendorThreadID)
	if err != nil {
		if errors.Is(err, apperrors.ErrThreadNotFound) {
			return r.store.RemoveMembersByVendorIDs(ctx, group.GroupID, vendorIDs)
		}
		return err
	}
	stillPresent := make(map[string]bool, len(listed))
	for _, p := range listed {
		stillPresent[p.VendorUserID] = true
	}

	confirmed := make([]string, 0, len(vendorIDs))
	for _, id := range vendorIDs {
		if stillPresent[id] {
			r.log.Warn("vendor removal not confirmed on re-list, keeping local row",
				zap.String("vendorUserId", id),
				zap.String("groupId", group.GroupID))
			continue
		}
		confirmed = append(confirmed, id)
	}
	return r.store.RemoveMembersByVendorIDs(ctx, group.GroupID, confirmed)
}

// adminJobLevels expands the admin threshold into the discrete levels the
// directory query filters on.
func adminJobLevels(threshold int) []int {
	const maxJobLevel = 9
	levels := make([]int, 0, maxJobLevel-threshold+1)
	for l := threshold; l <= maxJobLevel; l++ {
		levels = append(levels, l)
	}
	return levels
}

func appendUnique(ids []string, id string) []string {
	for _, existing := range ids {
		if existing == id {
			return ids
		}
	}
	return append(ids, id)
}
