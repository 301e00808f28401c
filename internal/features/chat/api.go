package chat

import (
	"github.com/zoft-projects/OBbackend-sub002/internal/config"
	"github.com/zoft-projects/OBbackend-sub002/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

type ChatApi struct {
	controller *ChatController
	config     *config.Config
}

func NewChatApi(controller *ChatController, config *config.Config) *ChatApi {
	return &ChatApi{
		controller: controller,
		config:     config,
	}
}

func (h *ChatApi) Setup(app *fiber.App) {
	auth := middleware.AuthMiddleware(h.config.SkipAuth)

	app.Post("/api/chat/groups", auth, h.controller.CreateGroup)
	app.Post("/api/chat/branches/:branchId/groups", auth, h.controller.CreateBranchGroup)
	app.Get("/api/chat/groups", auth, h.controller.GetGroups)
	app.Get("/api/chat/groups/mine", auth, h.controller.GetMyGroups)
	app.Get("/api/chat/groups/:groupId", auth, h.controller.GetGroup)
	app.Put("/api/chat/groups/:groupId", auth, h.controller.UpdateGroup)
	app.Delete("/api/chat/groups/:groupId", auth, h.controller.DeleteGroup)
	app.Post("/api/chat/groups/:groupId/stats/refresh", auth, h.controller.RefreshStats)

	app.Post("/api/chat/groups/:groupId/messages", auth, h.controller.RecordMessage)
	app.Post("/api/chat/groups/:groupId/read", auth, h.controller.RecordRead)
	app.Get("/api/chat/groups/:groupId/read", auth, h.controller.GetLastRead)

	app.Post("/api/chat/groups/:groupId/image", auth, h.controller.UploadGroupImage)
	app.Post("/api/chat/groups/:groupId/attachments", auth, h.controller.StartAttachmentUpload)
	app.Post("/api/chat/groups/:groupId/attachments/complete", auth, h.controller.FinishAttachmentUpload)
	app.Get("/api/chat/groups/:groupId/attachments/:attachmentId/url", auth, h.controller.GetAttachmentURL)

	app.Post("/api/chat/users/:employeeId/provision", auth, h.controller.ProvisionChatUser)
	app.Delete("/api/chat/users/:employeeId/provision", auth, h.controller.ResetChatUser)
}
