package directory

import (
	"context"
	"time"
)

// UserRecord is the read-model of an employee as exposed by the HR
// directory. VendorUserID is empty until the employee has been provisioned
// with the chat vendor.
type UserRecord struct {
	EmployeeID   string    `json:"employee_id"`
	DisplayName  string    `json:"display_name"`
	Job          JobRole   `json:"job"`
	BranchIDs    []string  `json:"branch_ids"`
	VendorUserID string    `json:"vendor_user_id,omitempty"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
}

type JobRole struct {
	ID    string `json:"id"`
	Level int    `json:"level"`
	Title string `json:"title"`
}

// HasVendorIdentity reports whether the employee can take part in vendor
// thread operations.
func (u *UserRecord) HasVendorIdentity() bool {
	return u.VendorUserID != ""
}

type Options struct {
	ActiveOnly bool
	Skip       int
	Limit      int
}

// DirectoryService resolves employee master data. Reads come from the
// legacy HR system; the only write is the vendor identity binding created
// by the chat provisioning flow.
type DirectoryService interface {
	GetByID(ctx context.Context, employeeID string) (*UserRecord, error)
	GetByIDs(ctx context.Context, employeeIDs []string, opts *Options) ([]UserRecord, error)
	GetByBranch(ctx context.Context, branchIDs []string, jobLevels []int, opts *Options) ([]UserRecord, error)
	// ResolveJobCategories maps category names to the job ids they contain.
	ResolveJobCategories(ctx context.Context, categories []string) (map[string][]string, error)
	// ListBranches returns every branch id with at least one active employee.
	ListBranches(ctx context.Context) ([]string, error)
	// BranchName resolves a branch's display name, falling back to the id
	// when the branch has no name on record.
	BranchName(ctx context.Context, branchID string) (string, error)
	BindVendorIdentity(ctx context.Context, employeeID, vendorUserID string) error
	UnbindVendorIdentity(ctx context.Context, employeeID string) error
}
