package chat

import (
	"github.com/zoft-projects/OBbackend-sub002/internal/blob"
	"github.com/zoft-projects/OBbackend-sub002/pkg/apperrors"
	"github.com/zoft-projects/OBbackend-sub002/pkg/utils"

	"github.com/gofiber/fiber/v2"
)

type ChatController struct {
	Service     ChatGroupService
	Attachments AttachmentService
}

func NewChatController(service ChatGroupService, attachments AttachmentService) *ChatController {
	return &ChatController{Service: service, Attachments: attachments}
}

// statusForError maps the error taxonomy onto HTTP statuses once, so the
// handlers stay uniform.
func statusForError(err error) int {
	switch apperrors.CodeOf(err) {
	case apperrors.CodeInvalidArgument, apperrors.CodeNoChangesDetected:
		return fiber.StatusBadRequest
	case apperrors.CodeNotFound:
		return fiber.StatusNotFound
	case apperrors.CodeAlreadyExists, apperrors.CodeCapacityExceeded,
		apperrors.CodeDriftDetected, apperrors.CodeFailedPrecondition:
		return fiber.StatusConflict
	case apperrors.CodeProvisioningMissing:
		return fiber.StatusUnprocessableEntity
	case apperrors.CodeVendorFailed:
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}

func fail(ctx *fiber.Ctx, err error) error {
	return ctx.Status(statusForError(err)).JSON(fiber.Map{
		"error": err.Error(),
		"code":  string(apperrors.CodeOf(err)),
	})
}

func callerClaims(ctx *fiber.Ctx) (*utils.UserClaims, bool) {
	claims, ok := ctx.Locals(utils.UserClaimsKey).(*utils.UserClaims)
	return claims, ok
}

type createGroupRequest struct {
	Name              string         `json:"name"`
	Type              GroupType      `json:"type"`
	Category          string         `json:"category"`
	BranchID          string         `json:"branch_id"`
	IntendedForUserID string         `json:"intended_for_user_id"`
	AdminUserIDs      []string       `json:"admin_user_ids"`
	FieldStaffUserIDs []string       `json:"field_staff_user_ids"`
	AccessControl     *AccessControl `json:"access_control"`
}

// CreateGroup godoc
func (c *ChatController) CreateGroup(ctx *fiber.Ctx) error {
	var req createGroupRequest
	if err := ctx.BodyParser(&req); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	claims, _ := callerClaims(ctx)
	params := CreateGroupParams{
		Name:              req.Name,
		Type:              req.Type,
		Category:          req.Category,
		BranchID:          req.BranchID,
		IntendedForUserID: req.IntendedForUserID,
		AdminUserIDs:      req.AdminUserIDs,
		FieldStaffUserIDs: req.FieldStaffUserIDs,
		AccessControl:     req.AccessControl,
		CreatedBy:         "api",
	}
	if claims != nil {
		params.CreatedByUserID = claims.EmployeeID
	}

	group, err := c.Service.CreateGroup(ctx.UserContext(), params)
	if err != nil {
		return fail(ctx, err)
	}
	return ctx.Status(fiber.StatusCreated).JSON(group)
}

type createBranchGroupRequest struct {
	Name              string   `json:"name"`
	AdminUserIDs      []string `json:"admin_user_ids"`
	FieldStaffUserIDs []string `json:"field_staff_user_ids"`
}

// CreateBranchGroup godoc
func (c *ChatController) CreateBranchGroup(ctx *fiber.Ctx) error {
	var req createBranchGroupRequest
	if err := ctx.BodyParser(&req); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	var createdByUserID string
	if claims, _ := callerClaims(ctx); claims != nil {
		createdByUserID = claims.EmployeeID
	}

	group, err := c.Service.CreateGroupForBranch(ctx.UserContext(), ctx.Params("branchId"),
		req.Name, req.AdminUserIDs, req.FieldStaffUserIDs, createdByUserID)
	if err != nil {
		return fail(ctx, err)
	}
	return ctx.Status(fiber.StatusCreated).JSON(group)
}

// GetGroups godoc
func (c *ChatController) GetGroups(ctx *fiber.Ctx) error {
	filter := GroupFilter{
		BranchID: ctx.Query("branchId"),
		Type:     GroupType(ctx.Query("type")),
		Category: ctx.Query("category"),
		Status:   GroupStatus(ctx.Query("status")),
	}
	page := PageOptions{
		Skip:       ctx.QueryInt("skip"),
		Limit:      ctx.QueryInt("limit", 50),
		SearchText: ctx.Query("search"),
	}

	groups, err := c.Service.ListGroups(ctx.UserContext(), filter, page)
	if err != nil {
		return fail(ctx, err)
	}
	return ctx.JSON(groups)
}

// GetMyGroups godoc
func (c *ChatController) GetMyGroups(ctx *fiber.Ctx) error {
	claims, ok := callerClaims(ctx)
	if !ok {
		return ctx.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Missing user context",
		})
	}

	page := PageOptions{
		Skip:  ctx.QueryInt("skip"),
		Limit: ctx.QueryInt("limit", 50),
	}
	groups, err := c.Service.ListGroupsForUser(ctx.UserContext(), claims, page)
	if err != nil {
		return fail(ctx, err)
	}
	return ctx.JSON(groups)
}

// GetGroup godoc
func (c *ChatController) GetGroup(ctx *fiber.Ctx) error {
	group, err := c.Service.GetGroup(ctx.UserContext(), ctx.Params("groupId"), ctx.Query("branchId"))
	if err != nil {
		return fail(ctx, err)
	}
	return ctx.JSON(group)
}

type updateGroupRequest struct {
	Name          *string        `json:"name"`
	Status        *GroupStatus   `json:"status"`
	AccessControl *AccessControl `json:"access_control"`
	AddUserIDs    []string       `json:"add_user_ids"`
	RemoveUserIDs []string       `json:"remove_user_ids"`
}

// UpdateGroup godoc
func (c *ChatController) UpdateGroup(ctx *fiber.Ctx) error {
	var req updateGroupRequest
	if err := ctx.BodyParser(&req); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	patch := &GroupPatch{
		GroupID:       ctx.Params("groupId"),
		Name:          req.Name,
		Status:        req.Status,
		AccessControl: req.AccessControl,
	}
	if claims, ok := callerClaims(ctx); ok {
		patch.UpdatedByUserID = claims.EmployeeID
	}

	group, err := c.Service.UpdateGroup(ctx.UserContext(), patch, req.AddUserIDs, req.RemoveUserIDs)
	if err != nil {
		return fail(ctx, err)
	}
	return ctx.JSON(group)
}

// DeleteGroup godoc
func (c *ChatController) DeleteGroup(ctx *fiber.Ctx) error {
	mode := RemoveSoft
	if ctx.Query("mode") == "hard" {
		mode = RemoveHard
	}

	if err := c.Service.RemoveGroup(ctx.UserContext(), ctx.Params("groupId"), mode); err != nil {
		return fail(ctx, err)
	}
	return ctx.JSON(fiber.Map{
		"message": "Group removed successfully",
	})
}

// RefreshStats godoc
func (c *ChatController) RefreshStats(ctx *fiber.Ctx) error {
	metrics, err := c.Service.RefreshGroupStats(ctx.UserContext(), ctx.Params("groupId"), ctx.Query("branchId"))
	if err != nil {
		return fail(ctx, err)
	}
	return ctx.JSON(metrics)
}

// RecordMessage godoc
func (c *ChatController) RecordMessage(ctx *fiber.Ctx) error {
	var activity MessageActivity
	if err := ctx.BodyParser(&activity); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if err := c.Service.RecordMessageSent(ctx.UserContext(), ctx.Params("groupId"), activity); err != nil {
		return fail(ctx, err)
	}
	return ctx.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"message": "Activity recorded",
	})
}

type readMarkerRequest struct {
	MessageID string `json:"message_id"`
}

// RecordRead godoc
func (c *ChatController) RecordRead(ctx *fiber.Ctx) error {
	claims, ok := callerClaims(ctx)
	if !ok {
		return ctx.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Missing user context",
		})
	}

	var req readMarkerRequest
	if err := ctx.BodyParser(&req); err != nil || req.MessageID == "" {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "message_id is required",
		})
	}

	if err := c.Service.RecordMessageRead(ctx.UserContext(), ctx.Params("groupId"), claims.EmployeeID, req.MessageID); err != nil {
		return fail(ctx, err)
	}
	return ctx.JSON(fiber.Map{
		"message": "Read marker recorded",
	})
}

// GetLastRead godoc
func (c *ChatController) GetLastRead(ctx *fiber.Ctx) error {
	claims, ok := callerClaims(ctx)
	if !ok {
		return ctx.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Missing user context",
		})
	}

	marker, err := c.Service.LastReadMessage(ctx.UserContext(), ctx.Params("groupId"), claims.EmployeeID)
	if err != nil {
		return fail(ctx, err)
	}
	return ctx.JSON(fiber.Map{
		"message_id": marker,
	})
}

// UploadGroupImage godoc
func (c *ChatController) UploadGroupImage(ctx *fiber.Ctx) error {
	fileHeader, err := ctx.FormFile("file")
	if err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "No file uploaded",
		})
	}

	file, err := fileHeader.Open()
	if err != nil {
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to read uploaded file",
		})
	}
	defer file.Close()

	image, err := c.Attachments.UploadGroupImage(ctx.UserContext(), ctx.Params("groupId"),
		file, fileHeader.Size, fileHeader.Header.Get("Content-Type"))
	if err != nil {
		return fail(ctx, err)
	}
	return ctx.Status(fiber.StatusCreated).JSON(image)
}

type startUploadRequest struct {
	FileName  string `json:"file_name"`
	PartCount int    `json:"part_count"`
}

// StartAttachmentUpload godoc
func (c *ChatController) StartAttachmentUpload(ctx *fiber.Ctx) error {
	var req startUploadRequest
	if err := ctx.BodyParser(&req); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	upload, err := c.Attachments.StartAttachmentUpload(ctx.UserContext(), ctx.Params("groupId"), req.FileName, req.PartCount)
	if err != nil {
		return fail(ctx, err)
	}
	return ctx.Status(fiber.StatusCreated).JSON(upload)
}

type finishUploadRequest struct {
	UploadID string               `json:"upload_id"`
	Key      string               `json:"key"`
	Parts    []blob.CompletedPart `json:"parts"`
}

// FinishAttachmentUpload godoc
func (c *ChatController) FinishAttachmentUpload(ctx *fiber.Ctx) error {
	var req finishUploadRequest
	if err := ctx.BodyParser(&req); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	location, err := c.Attachments.FinishAttachmentUpload(ctx.UserContext(), ctx.Params("groupId"), req.UploadID, req.Key, req.Parts)
	if err != nil {
		return fail(ctx, err)
	}
	return ctx.JSON(fiber.Map{
		"location": location,
	})
}

// GetAttachmentURL godoc
func (c *ChatController) GetAttachmentURL(ctx *fiber.Ctx) error {
	url, err := c.Attachments.AttachmentURL(ctx.UserContext(), ctx.Params("groupId"), ctx.Params("attachmentId"))
	if err != nil {
		return fail(ctx, err)
	}
	return ctx.JSON(fiber.Map{
		"url": url,
	})
}

// ProvisionChatUser godoc
func (c *ChatController) ProvisionChatUser(ctx *fiber.Ctx) error {
	vendorUserID, err := c.Service.ProvisionChatUser(ctx.UserContext(), ctx.Params("employeeId"))
	if err != nil {
		return fail(ctx, err)
	}
	return ctx.Status(fiber.StatusCreated).JSON(fiber.Map{
		"vendor_user_id": vendorUserID,
	})
}

// ResetChatUser godoc
func (c *ChatController) ResetChatUser(ctx *fiber.Ctx) error {
	vendorUserID, err := c.Service.ResetChatUser(ctx.UserContext(), ctx.Params("employeeId"))
	if err != nil {
		return fail(ctx, err)
	}
	return ctx.JSON(fiber.Map{
		"message":        "Chat user reset",
		"vendor_user_id": vendorUserID,
	})
}
