package sync_feature

import "time"

// BranchSyncReport summarizes one branch reconciliation pass. Errors are
// collected per unit of work, never aborting the rest of the branch.
type BranchSyncReport struct {
	BranchID             string        `json:"branch_id"`
	AdminsSynced         int           `json:"admins_synced"`
	FieldStaffSynced     int           `json:"field_staff_synced"`
	BroadcastsSynced     int           `json:"broadcasts_synced"`
	SkippedUnprovisioned int           `json:"skipped_unprovisioned"`
	Errors               []string      `json:"errors,omitempty"`
	StartedAt            time.Time     `json:"started_at"`
	Duration             time.Duration `json:"duration"`
}

// SweepReport summarizes a full sweep across every branch.
type SweepReport struct {
	Branches  int                `json:"branches"`
	Reports   []BranchSyncReport `json:"reports"`
	StartedAt time.Time          `json:"started_at"`
	Duration  time.Duration      `json:"duration"`
}
