package sync_feature

import (
	"context"
	"errors"
	"testing"

	"github.com/zoft-projects/OBbackend-sub002/internal/config"
	"github.com/zoft-projects/OBbackend-sub002/internal/directory"
	"github.com/zoft-projects/OBbackend-sub002/internal/features/chat"
	"github.com/zoft-projects/OBbackend-sub002/pkg/apperrors"

	"go.uber.org/zap"
)

type stubReconciler struct {
	adminSyncs     []string
	staffSyncs     []string
	broadcastSyncs []string

	staffErr     error
	broadcastErr error
}

func (r *stubReconciler) CreateGroupWithParticipants(ctx context.Context, params chat.CreateGroupParams) (*chat.Group, error) {
	return &chat.Group{}, nil
}

func (r *stubReconciler) SyncFieldStaffGroup(ctx context.Context, employeeID, branchID string) (*chat.Group, error) {
	if r.staffErr != nil {
		return nil, r.staffErr
	}
	r.staffSyncs = append(r.staffSyncs, employeeID)
	return &chat.Group{}, nil
}

func (r *stubReconciler) SyncBranchAdmin(ctx context.Context, employeeID, branchID string) error {
	r.adminSyncs = append(r.adminSyncs, employeeID)
	return nil
}

func (r *stubReconciler) SyncBroadcastGroup(ctx context.Context, branchID, category string) (*chat.Group, error) {
	if r.broadcastErr != nil {
		return nil, r.broadcastErr
	}
	r.broadcastSyncs = append(r.broadcastSyncs, branchID+"/"+category)
	return &chat.Group{}, nil
}

func (r *stubReconciler) ApplyMembershipChange(ctx context.Context, group *chat.Group, addIDs, removeIDs []string) (bool, error) {
	return false, nil
}

type stubDirectory struct {
	directory.DirectoryService
	users    []directory.UserRecord
	branches []string
}

func (d *stubDirectory) GetByID(ctx context.Context, employeeID string) (*directory.UserRecord, error) {
	for _, u := range d.users {
		if u.EmployeeID == employeeID {
			return &u, nil
		}
	}
	return nil, errors.New("not found")
}

func (d *stubDirectory) GetByBranch(ctx context.Context, branchIDs []string, jobLevels []int, opts *directory.Options) ([]directory.UserRecord, error) {
	var out []directory.UserRecord
	for _, u := range d.users {
		for _, b := range u.BranchIDs {
			if len(branchIDs) > 0 && b == branchIDs[0] {
				out = append(out, u)
				break
			}
		}
	}
	return out, nil
}

func (d *stubDirectory) ListBranches(ctx context.Context) ([]string, error) {
	return d.branches, nil
}

func syncTestConfig() *config.Config {
	return &config.Config{
		BroadcastCategories: []string{"announcements", "scheduling"},
		Chat:                config.ChatDefaults{BranchAdminJobLevel: 5},
	}
}

func branchUsers(branch string) []directory.UserRecord {
	return []directory.UserRecord{
		{EmployeeID: "a1", Job: directory.JobRole{Level: 7}, BranchIDs: []string{branch}, VendorUserID: "v-a1", Active: true},
		{EmployeeID: "fs1", Job: directory.JobRole{Level: 2}, BranchIDs: []string{branch}, VendorUserID: "v-fs1", Active: true},
		{EmployeeID: "fs2", Job: directory.JobRole{Level: 2}, BranchIDs: []string{branch}, VendorUserID: "v-fs2", Active: true},
	}
}

func TestSyncBranchDispatchesByRole(t *testing.T) {
	rec := &stubReconciler{}
	dir := &stubDirectory{users: branchUsers("br1")}
	svc := NewSyncService(rec, dir, syncTestConfig(), zap.NewNop())

	report, err := svc.SyncBranch(context.Background(), "br1")
	if err != nil {
		t.Fatal(err)
	}

	if report.AdminsSynced != 1 || len(rec.adminSyncs) != 1 {
		t.Errorf("expected 1 admin sync, got %+v", report)
	}
	if report.FieldStaffSynced != 2 || len(rec.staffSyncs) != 2 {
		t.Errorf("expected 2 field staff syncs, got %+v", report)
	}
	if report.BroadcastsSynced != 2 {
		t.Errorf("expected 2 broadcast syncs, got %+v", report)
	}
	if len(report.Errors) != 0 {
		t.Errorf("unexpected errors: %v", report.Errors)
	}
}

func TestSyncBranchSkipsUnprovisionedStaff(t *testing.T) {
	rec := &stubReconciler{staffErr: apperrors.ErrVendorIdentityNotBound}
	dir := &stubDirectory{users: branchUsers("br1")}
	svc := NewSyncService(rec, dir, syncTestConfig(), zap.NewNop())

	report, err := svc.SyncBranch(context.Background(), "br1")
	if err != nil {
		t.Fatal(err)
	}
	if report.SkippedUnprovisioned != 2 {
		t.Errorf("expected 2 skipped, got %d", report.SkippedUnprovisioned)
	}
	if len(report.Errors) != 0 {
		t.Errorf("identity gaps must not count as errors: %v", report.Errors)
	}
}

func TestSyncBranchCollectsErrorsAndContinues(t *testing.T) {
	rec := &stubReconciler{broadcastErr: errors.New("vendor down")}
	dir := &stubDirectory{users: branchUsers("br1")}
	svc := NewSyncService(rec, dir, syncTestConfig(), zap.NewNop())

	report, err := svc.SyncBranch(context.Background(), "br1")
	if err != nil {
		t.Fatal(err)
	}
	if len(report.Errors) != 2 {
		t.Errorf("expected one error per category, got %v", report.Errors)
	}
	// Staff syncs still ran despite broadcast failures
	if report.FieldStaffSynced != 2 {
		t.Errorf("expected staff syncs to continue, got %d", report.FieldStaffSynced)
	}
}

func TestSweepAllCoversEveryBranch(t *testing.T) {
	rec := &stubReconciler{}
	dir := &stubDirectory{
		users:    append(branchUsers("br1"), branchUsers("br2")...),
		branches: []string{"br1", "br2"},
	}
	svc := NewSyncService(rec, dir, syncTestConfig(), zap.NewNop())

	sweep, err := svc.SweepAll(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if sweep.Branches != 2 || len(sweep.Reports) != 2 {
		t.Errorf("expected 2 branch reports, got %+v", sweep)
	}
}

func TestSyncEmployeeDispatch(t *testing.T) {
	rec := &stubReconciler{}
	dir := &stubDirectory{users: branchUsers("br1")}
	svc := NewSyncService(rec, dir, syncTestConfig(), zap.NewNop())
	ctx := context.Background()

	if err := svc.SyncEmployee(ctx, "a1", "br1"); err != nil {
		t.Fatal(err)
	}
	if len(rec.adminSyncs) != 1 || len(rec.staffSyncs) != 0 {
		t.Error("admin was not dispatched to admin sync")
	}

	if err := svc.SyncEmployee(ctx, "fs1", "br1"); err != nil {
		t.Fatal(err)
	}
	if len(rec.staffSyncs) != 1 {
		t.Error("field staff was not dispatched to staff sync")
	}
}
