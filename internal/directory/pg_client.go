package directory

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/zoft-projects/OBbackend-sub002/internal/config"
	"github.com/zoft-projects/OBbackend-sub002/pkg/apperrors"

	"github.com/lib/pq"
	"go.uber.org/fx"
)

// directoryPageCeiling bounds the skip/limit loop even if the upstream
// row count misbehaves.
const directoryPageCeiling = 2000

const directoryPageSize = 200

// PgDirectory reads employee master data from the legacy HR postgres.
type PgDirectory struct {
	db *sql.DB
}

func NewPgDirectory(lc fx.Lifecycle, cfg *config.Config) (DirectoryService, error) {
	db, err := sql.Open("postgres", cfg.DirectoryDSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open directory connection: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping directory database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return db.Close()
		},
	})

	return &PgDirectory{db: db}, nil
}

const userSelect = `
	SELECT e.employee_id, e.display_name, e.job_id, e.job_level, e.job_title,
	       COALESCE(e.vendor_user_id, ''), e.active, e.created_at,
	       COALESCE(array_agg(b.branch_id) FILTER (WHERE b.branch_id IS NOT NULL), '{}')
	FROM employees e
	LEFT JOIN employee_branches b ON b.employee_id = e.employee_id
`

func (d *PgDirectory) GetByID(ctx context.Context, employeeID string) (*UserRecord, error) {
	query := userSelect + ` WHERE e.employee_id = $1 GROUP BY e.employee_id`
	row := d.db.QueryRowContext(ctx, query, employeeID)

	user, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, apperrors.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load employee %s: %w", employeeID, err)
	}
	return user, nil
}

func (d *PgDirectory) GetByIDs(ctx context.Context, employeeIDs []string, opts *Options) ([]UserRecord, error) {
	if len(employeeIDs) == 0 {
		return nil, nil
	}

	query := userSelect + ` WHERE e.employee_id = ANY($1)`
	if opts != nil && opts.ActiveOnly {
		query += ` AND e.active`
	}
	query += ` GROUP BY e.employee_id ORDER BY e.created_at`

	rows, err := d.db.QueryContext(ctx, query, pq.Array(employeeIDs))
	if err != nil {
		return nil, fmt.Errorf("failed to query employees: %w", err)
	}
	defer rows.Close()

	return collectUsers(rows)
}

func (d *PgDirectory) GetByBranch(ctx context.Context, branchIDs []string, jobLevels []int, opts *Options) ([]UserRecord, error) {
	if len(branchIDs) == 0 {
		return nil, nil
	}

	skip, limit := 0, directoryPageSize
	if opts != nil {
		if opts.Skip > 0 {
			skip = opts.Skip
		}
		if opts.Limit > 0 {
			limit = opts.Limit
		}
	}

	var all []UserRecord
	for skip < directoryPageCeiling {
		query := userSelect + `
			WHERE e.employee_id IN (
				SELECT employee_id FROM employee_branches WHERE branch_id = ANY($1)
			)`
		args := []interface{}{pq.Array(branchIDs)}
		if len(jobLevels) > 0 {
			query += ` AND e.job_level = ANY($2)`
			args = append(args, pq.Array(jobLevels))
		}
		if opts != nil && opts.ActiveOnly {
			query += ` AND e.active`
		}
		query += fmt.Sprintf(` GROUP BY e.employee_id ORDER BY e.created_at OFFSET %d LIMIT %d`, skip, limit)

		rows, err := d.db.QueryContext(ctx, query, args...)
		if err != nil {
			return nil, fmt.Errorf("failed to query branch employees: %w", err)
		}
		page, err := collectUsers(rows)
		rows.Close()
		if err != nil {
			return nil, err
		}

		all = append(all, page...)
		if len(page) < limit {
			break
		}
		skip += limit

		// A caller that asked for one page gets one page
		if opts != nil && opts.Limit > 0 {
			break
		}
	}

	return all, nil
}

func (d *PgDirectory) ResolveJobCategories(ctx context.Context, categories []string) (map[string][]string, error) {
	if len(categories) == 0 {
		return map[string][]string{}, nil
	}

	rows, err := d.db.QueryContext(ctx,
		`SELECT category, job_id FROM job_categories WHERE category = ANY($1)`,
		pq.Array(categories))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve job categories: %w", err)
	}
	defer rows.Close()

	result := make(map[string][]string, len(categories))
	for rows.Next() {
		var category, jobID string
		if err := rows.Scan(&category, &jobID); err != nil {
			return nil, err
		}
		result[category] = append(result[category], jobID)
	}
	return result, rows.Err()
}

func (d *PgDirectory) ListBranches(ctx context.Context) ([]string, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT DISTINCT b.branch_id
		FROM employee_branches b
		JOIN employees e ON e.employee_id = b.employee_id
		WHERE e.active
		ORDER BY b.branch_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list branches: %w", err)
	}
	defer rows.Close()

	var branches []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		branches = append(branches, id)
	}
	return branches, rows.Err()
}

func (d *PgDirectory) BranchName(ctx context.Context, branchID string) (string, error) {
	var name string
	err := d.db.QueryRowContext(ctx,
		`SELECT name FROM branches WHERE branch_id = $1`, branchID).Scan(&name)
	if err == sql.ErrNoRows || (err == nil && name == "") {
		return branchID, nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to resolve branch name: %w", err)
	}
	return name, nil
}

func (d *PgDirectory) BindVendorIdentity(ctx context.Context, employeeID, vendorUserID string) error {
	res, err := d.db.ExecContext(ctx,
		`UPDATE employees SET vendor_user_id = $1 WHERE employee_id = $2`,
		vendorUserID, employeeID)
	if err != nil {
		return fmt.Errorf("failed to bind vendor identity: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("employee %s not found", employeeID)
	}
	return nil
}

func (d *PgDirectory) UnbindVendorIdentity(ctx context.Context, employeeID string) error {
	_, err := d.db.ExecContext(ctx,
		`UPDATE employees SET vendor_user_id = NULL WHERE employee_id = $1`,
		employeeID)
	if err != nil {
		return fmt.Errorf("failed to unbind vendor identity: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanUser(row rowScanner) (*UserRecord, error) {
	var u UserRecord
	var branches pq.StringArray
	err := row.Scan(&u.EmployeeID, &u.DisplayName, &u.Job.ID, &u.Job.Level, &u.Job.Title,
		&u.VendorUserID, &u.Active, &u.CreatedAt, &branches)
	if err != nil {
		return nil, err
	}
	u.BranchIDs = branches
	return &u, nil
}

func collectUsers(rows *sql.Rows) ([]UserRecord, error) {
	var users []UserRecord
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}
