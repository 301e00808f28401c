package sync_feature

import (
	"github.com/zoft-projects/OBbackend-sub002/internal/config"
	"github.com/zoft-projects/OBbackend-sub002/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

type SyncApi struct {
	controller *SyncController
	config     *config.Config
}

func NewSyncApi(controller *SyncController, config *config.Config) *SyncApi {
	return &SyncApi{
		controller: controller,
		config:     config,
	}
}

func (h *SyncApi) Setup(app *fiber.App) {
	auth := middleware.AuthMiddleware(h.config.SkipAuth)

	app.Post("/api/sync/branches/:branchId", auth, h.controller.SyncBranch)
	app.Post("/api/sync/employees/:employeeId", auth, h.controller.SyncEmployee)
	app.Post("/api/sync/sweep", auth, h.controller.SweepAll)
}
