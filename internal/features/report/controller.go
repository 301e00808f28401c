package report

import (
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
)

type ReportController struct {
	Service ReportService
}

func NewReportController(service ReportService) *ReportController {
	return &ReportController{Service: service}
}

// ExportGroupStats godoc
func (c *ReportController) ExportGroupStats(ctx *fiber.Ctx) error {
	branchParam := ctx.Query("branchIds")
	if branchParam == "" {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "branchIds query parameter is required",
		})
	}
	branchIDs := strings.Split(branchParam, ",")

	data, filename, err := c.Service.ExportGroupStats(ctx.UserContext(), branchIDs)
	if err != nil {
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	ctx.Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	ctx.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	return ctx.Send(data)
}
