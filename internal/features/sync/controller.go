package sync_feature

import (
	"github.com/gofiber/fiber/v2"
)

type SyncController struct {
	Service SyncService
}

func NewSyncController(service SyncService) *SyncController {
	return &SyncController{Service: service}
}

// SyncBranch godoc
func (c *SyncController) SyncBranch(ctx *fiber.Ctx) error {
	report, err := c.Service.SyncBranch(ctx.UserContext(), ctx.Params("branchId"))
	if err != nil {
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return ctx.JSON(report)
}

// SyncEmployee godoc
func (c *SyncController) SyncEmployee(ctx *fiber.Ctx) error {
	branchID := ctx.Query("branchId")
	if branchID == "" {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "branchId query parameter is required",
		})
	}

	if err := c.Service.SyncEmployee(ctx.UserContext(), ctx.Params("employeeId"), branchID); err != nil {
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return ctx.JSON(fiber.Map{
		"message": "Employee synced",
	})
}

// SweepAll godoc
func (c *SyncController) SweepAll(ctx *fiber.Ctx) error {
	report, err := c.Service.SweepAll(ctx.UserContext())
	if err != nil {
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return ctx.JSON(report)
}
