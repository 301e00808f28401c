package sync_feature

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/zoft-projects/OBbackend-sub002/internal/config"
	"github.com/zoft-projects/OBbackend-sub002/internal/directory"
	"github.com/zoft-projects/OBbackend-sub002/internal/features/chat"
	"github.com/zoft-projects/OBbackend-sub002/pkg/apperrors"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// sweepTimeout bounds one full scheduled sweep.
const sweepTimeout = 30 * time.Minute

type SyncService interface {
	// SyncBranch reconciles every group of one branch: admin repairs,
	// field-staff direct groups, then the broadcast categories.
	SyncBranch(ctx context.Context, branchID string) (*BranchSyncReport, error)

	// SyncEmployee reconciles a single employee, dispatching on their
	// effective role.
	SyncEmployee(ctx context.Context, employeeID, branchID string) error

	// SweepAll runs SyncBranch for every known branch.
	SweepAll(ctx context.Context) (*SweepReport, error)

	InitializeScheduler() error
	StopScheduler()
}

type SyncServiceImpl struct {
	reconciler chat.GroupReconciler
	directory  directory.DirectoryService
	cfg        *config.Config
	log        *zap.Logger

	scheduler *cron.Cron
}

func NewSyncService(reconciler chat.GroupReconciler, dir directory.DirectoryService, cfg *config.Config, log *zap.Logger) SyncService {
	return &SyncServiceImpl{
		reconciler: reconciler,
		directory:  dir,
		cfg:        cfg,
		log:        log,
	}
}

func (s *SyncServiceImpl) SyncBranch(ctx context.Context, branchID string) (*BranchSyncReport, error) {
	report := &BranchSyncReport{BranchID: branchID, StartedAt: time.Now()}
	defer func() { report.Duration = time.Since(report.StartedAt) }()

	staff, err := s.directory.GetByBranch(ctx, []string{branchID}, nil, &directory.Options{ActiveOnly: true})
	if err != nil {
		return nil, apperrors.DirectoryLookupFailed(err)
	}

	threshold := s.cfg.Chat.BranchAdminJobLevel
	for _, u := range staff {
		if u.Job.Level < threshold {
			continue
		}
		if err := s.reconciler.SyncBranchAdmin(ctx, u.EmployeeID, branchID); err != nil {
			report.Errors = append(report.Errors,
				fmt.Sprintf("admin %s: %v", u.EmployeeID, err))
			continue
		}
		report.AdminsSynced++
	}

	for _, u := range staff {
		if u.Job.Level >= threshold {
			continue
		}
		_, err := s.reconciler.SyncFieldStaffGroup(ctx, u.EmployeeID, branchID)
		if errors.Is(err, apperrors.ErrVendorIdentityNotBound) {
			report.SkippedUnprovisioned++
			continue
		}
		if err != nil {
			report.Errors = append(report.Errors,
				fmt.Sprintf("field staff %s: %v", u.EmployeeID, err))
			continue
		}
		report.FieldStaffSynced++
	}

	for _, category := range s.cfg.BroadcastCategories {
		if _, err := s.reconciler.SyncBroadcastGroup(ctx, branchID, category); err != nil {
			report.Errors = append(report.Errors,
				fmt.Sprintf("broadcast %s: %v", category, err))
			continue
		}
		report.BroadcastsSynced++
	}

	s.log.Info("branch sync completed",
		zap.String("branchId", branchID),
		zap.Int("admins", report.AdminsSynced),
		zap.Int("fieldStaff", report.FieldStaffSynced),
		zap.Int("broadcasts", report.BroadcastsSynced),
		zap.Int("errors", len(report.Errors)))
	return report, nil
}

func (s *SyncServiceImpl) SyncEmployee(ctx context.Context, employeeID, branchID string) error {
	user, err := s.directory.GetByID(ctx, employeeID)
	if err != nil {
		return apperrors.DirectoryLookupFailed(err)
	}

	if user.Job.Level >= s.cfg.Chat.BranchAdminJobLevel {
		return s.reconciler.SyncBranchAdmin(ctx, employeeID, branchID)
	}
	_, err = s.reconciler.SyncFieldStaffGroup(ctx, employeeID, branchID)
	return err
}

func (s *SyncServiceImpl) SweepAll(ctx context.Context) (*SweepReport, error) {
	sweep := &SweepReport{StartedAt: time.Now()}
	defer func() { sweep.Duration = time.Since(sweep.StartedAt) }()

	branches, err := s.directory.ListBranches(ctx)
	if err != nil {
		return nil, apperrors.DirectoryLookupFailed(err)
	}
	sweep.Branches = len(branches)

	for _, branchID := range branches {
		report, err := s.SyncBranch(ctx, branchID)
		if err != nil {
			// A branch-level failure never stops the sweep
			s.log.Error("branch sync failed",
				zap.String("branchId", branchID), zap.Error(err))
			sweep.Reports = append(sweep.Reports, BranchSyncReport{
				BranchID: branchID,
				Errors:   []string{err.Error()},
			})
			continue
		}
		sweep.Reports = append(sweep.Reports, *report)
	}
	return sweep, nil
}

func (s *SyncServiceImpl) InitializeScheduler() error {
	if s.cfg.SyncSchedule == "" {
		s.log.Info("sync schedule not configured, scheduler disabled")
		return nil
	}
	if _, err := cron.ParseStandard(s.cfg.SyncSchedule); err != nil {
		return fmt.Errorf("invalid sync schedule %q: %w", s.cfg.SyncSchedule, err)
	}

	s.scheduler = cron.New()
	_, err := s.scheduler.AddFunc(s.cfg.SyncSchedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
		defer cancel()
		if _, err := s.SweepAll(ctx); err != nil {
			s.log.Error("scheduled sweep failed", zap.Error(err))
		}
	})
	if err != nil {
		return err
	}

	s.scheduler.Start()
	s.log.Info("reconciliation scheduler started",
		zap.String("schedule", s.cfg.SyncSchedule))
	return nil
}

func (s *SyncServiceImpl) StopScheduler() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
