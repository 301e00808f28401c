package report

import (
	"context"
	"fmt"
	"time"

	"github.com/zoft-projects/OBbackend-sub002/internal/features/chat"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// reportPageSize bounds one store read while walking a branch's groups.
const reportPageSize = 200

type ReportService interface {
	// ExportGroupStats renders the group roster of the given branches as
	// an xlsx workbook: one row per group, plus a memberships sheet.
	ExportGroupStats(ctx context.Context, branchIDs []string) ([]byte, string, error)
}

type ReportServiceImpl struct {
	store chat.ChatGroupStore
	log   *zap.Logger
}

func NewReportService(store chat.ChatGroupStore, log *zap.Logger) ReportService {
	return &ReportServiceImpl{store: store, log: log}
}

var groupStatColumns = []string{
	"Group ID", "Name", "Type", "Category", "Branch", "Status",
	"Total Users", "Active Users", "Active Admins", "Last Activity", "Created",
}

var membershipColumns = []string{
	"Group ID", "Group Name", "Employee ID", "Display Name",
	"Access Mode", "Status", "Joined",
}

func (s *ReportServiceImpl) ExportGroupStats(ctx context.Context, branchIDs []string) ([]byte, string, error) {
	var groups []chat.Group
	for skip := 0; ; skip += reportPageSize {
		page, err := s.store.FindGroupsByBranches(ctx, branchIDs, nil, false,
			chat.PageOptions{Skip: skip, Limit: reportPageSize})
		if err != nil {
			return nil, "", err
		}
		groups = append(groups, page...)
		if len(page) < reportPageSize {
			break
		}
	}

	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Chat Groups"
	index, err := f.NewSheet(sheetName)
	if err != nil {
		return nil, "", err
	}
	f.SetActiveSheet(index)
	f.DeleteSheet("Sheet1")

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E0E0E0"}, Pattern: 1},
	})
	for i, col := range groupStatColumns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheetName, cell, col)
		f.SetCellStyle(sheetName, cell, cell, headerStyle)
	}

	for rowIdx, g := range groups {
		lastActivity := ""
		if g.LastMessageActivity != nil {
			lastActivity = g.LastMessageActivity.Timestamp.Format("2006-01-02 15:04:05")
		}
		values := []interface{}{
			g.GroupID, g.Name, string(g.Type), g.Category, g.BranchID, string(g.Status),
			g.Metrics.TotalUserCount, g.Metrics.ActiveUserCount, g.Metrics.ActiveAdminCount,
			lastActivity, g.CreatedAt.Format("2006-01-02 15:04:05"),
		}
		for colIdx, v := range values {
			cell, _ := excelize.CoordinatesToCellName(colIdx+1, rowIdx+2)
			f.SetCellValue(sheetName, cell, v)
		}
	}

	for i := range groupStatColumns {
		col, _ := excelize.ColumnNumberToName(i + 1)
		f.SetColWidth(sheetName, col, col, 18)
	}

	if err := s.writeMembershipSheet(ctx, f, headerStyle, groups); err != nil {
		return nil, "", err
	}

	buffer, err := f.WriteToBuffer()
	if err != nil {
		return nil, "", err
	}

	filename := fmt.Sprintf("chat-groups-%s.xlsx", time.Now().Format("20060102-150405"))
	return buffer.Bytes(), filename, nil
}

func (s *ReportServiceImpl) writeMembershipSheet(ctx context.Context, f *excelize.File, headerStyle int, groups []chat.Group) error {
	sheetName := "Memberships"
	if _, err := f.NewSheet(sheetName); err != nil {
		return err
	}

	for i, col := range membershipColumns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheetName, cell, col)
		f.SetCellStyle(sheetName, cell, cell, headerStyle)
	}

	row := 2
	for _, g := range groups {
		members, err := s.store.FindMembers(ctx, g.GroupID, g.BranchID, false)
		if err != nil {
			s.log.Warn("membership fetch failed, sheet row skipped",
				zap.String("groupId", g.GroupID), zap.Error(err))
			continue
		}
		for _, m := range members {
			values := []interface{}{
				g.GroupID, g.Name, m.EmployeeID, m.DisplayName,
				string(m.AccessMode), string(m.Status),
				m.CreatedAt.Format("2006-01-02 15:04:05"),
			}
			for colIdx, v := range values {
				cell, _ := excelize.CoordinatesToCellName(colIdx+1, row)
				f.SetCellValue(sheetName, cell, v)
			}
			row++
		}
	}

	for i := range membershipColumns {
		col, _ := excelize.ColumnNumberToName(i + 1)
		f.SetColWidth(sheetName, col, col, 18)
	}
	return nil
}
