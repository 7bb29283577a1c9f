package permission

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
)

type PermissionController struct {
	PermissionService PermissionService
}

func NewPermissionController(permissionService PermissionService) *PermissionController {
	return &PermissionController{
		PermissionService: permissionService,
	}
}

// errorStatus maps service errors onto HTTP status codes
func errorStatus(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, ErrInvalidAssignment), errors.Is(err, ErrInvalidGrant):
		return fiber.StatusBadRequest
	default:
		return fiber.StatusInternalServerError
	}
}

func fail(c *fiber.Ctx, err error) error {
	return c.Status(errorStatus(err)).JSON(fiber.Map{
		"error": err.Error(),
	})
}

// GetUserPermissions godoc
// @Summary      Get a user's resolved permissions
// @Description  Resolved tuple set for a user; format=structured adds the grouped/merged view
// @Tags         permissions
// @Produce      json
// @Param        userId query string true "User ID"
// @Param        format query string false "simple (default) or structured"
// @Success      200  {object} map[string]interface{}
// @Router       /api/permissions/user-permissions [get]
func (ctrl *PermissionController) GetUserPermissions(c *fiber.Ctx) error {
	userID := c.Query("userId")
	if userID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "userId is required",
		})
	}

	permissions, err := ctrl.PermissionService.GetUserPermissions(c.UserContext(), userID)
	if err != nil {
		return fail(c, err)
	}

	if c.Query("format") == "structured" {
		structured, err := ctrl.PermissionService.GetStructuredPermissions(c.UserContext(), userID)
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(fiber.Map{
			"user_id": userID,
			"permissions": fiber.Map{
				"raw":    permissions,
				"parsed": structured,
				"helpers": fiber.Map{
					"can_access_file":     "/api/permissions/can-access-file",
					"can_manage_resource": "/api/permissions/can-manage-resource",
					"accessible_paths":    "/api/permissions/accessible-paths",
				},
			},
		})
	}

	return c.JSON(fiber.Map{
		"user_id":     userID,
		"permissions": permissions,
	})
}

// GetAccessibleResources godoc
// @Summary      List resources a user can reach for an action
// @Tags         permissions
// @Produce      json
// @Param        userId query string true "User ID"
// @Param        action query string false "Action, defaults to use_for_ai_chat"
// @Success      200  {object} map[string]interface{}
// @Router       /api/permissions/accessible-resources [get]
func (ctrl *PermissionController) GetAccessibleResources(c *fiber.Ctx) error {
	userID := c.Query("userId")
	action := c.Query("action", "use_for_ai_chat")

	resources, err := ctrl.PermissionService.GetAccessibleResources(c.UserContext(), userID, action)
	if err != nil {
		return fail(c, err)
	}

	return c.JSON(fiber.Map{
		"user_id":              userID,
		"accessible_resources": resources,
	})
}

// CheckPermission godoc
// @Summary      Check a required permission tuple for a user
// @Tags         permissions
// @Accept       json
// @Produce      json
// @Param        request body CheckRequest true "Check request"
// @Success      200  {object} map[string]bool
// @Router       /api/permissions/check [post]
func (ctrl *PermissionController) CheckPermission(c *fiber.Ctx) error {
	var req CheckRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	allowed, err := ctrl.PermissionService.CheckPermission(c.UserContext(), req.UserID, req.Permission)
	if err != nil {
		return fail(c, err)
	}

	return c.JSON(fiber.Map{
		"has_permission": allowed,
	})
}

// SetDocumentGrant godoc
// @Summary      Create a document grant
// @Tags         permissions
// @Accept       json
// @Produce      json
// @Param        request body DocumentGrantRequest true "Grant fields"
// @Success      201  {object} DocumentGrant
// @Failure      400  {string} string "Invalid grant"
// @Router       /api/permissions/set [post]
func (ctrl *PermissionController) SetDocumentGrant(c *fiber.Ctx) error {
	var req DocumentGrantRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	grant, err := ctrl.PermissionService.SetDocumentGrant(c.UserContext(), req)
	if err != nil {
		return fail(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(grant)
}

// SetSystemGrant godoc
// @Summary      Create a system grant
// @Tags         permissions
// @Accept       json
// @Produce      json
// @Param        request body SystemGrantRequest true "Grant fields"
// @Success      201  {object} SystemGrant
// @Failure      400  {string} string "Invalid grant"
// @Router       /api/permissions/set-system [post]
func (ctrl *PermissionController) SetSystemGrant(c *fiber.Ctx) error {
	var req SystemGrantRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	grant, err := ctrl.PermissionService.SetSystemGrant(c.UserContext(), req)
	if err != nil {
		return fail(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(grant)
}

// ListDocumentGrants godoc
// @Summary      List all document grants
// @Tags         permissions
// @Produce      json
// @Success      200  {object} map[string][]DocumentGrant
// @Router       /api/permissions/document [get]
func (ctrl *PermissionController) ListDocumentGrants(c *fiber.Ctx) error {
	grants, err := ctrl.PermissionService.ListDocumentGrants(c.UserContext())
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"permissions": grants})
}

// ListSystemGrants godoc
// @Summary      List all system grants
// @Tags         permissions
// @Produce      json
// @Success      200  {object} map[string][]SystemGrant
// @Router       /api/permissions/system [get]
func (ctrl *PermissionController) ListSystemGrants(c *fiber.Ctx) error {
	grants, err := ctrl.PermissionService.ListSystemGrants(c.UserContext())
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"permissions": grants})
}

// GetDocumentGrant godoc
// @Summary      Get one document grant
// @Tags         permissions
// @Produce      json
// @Param        id path string true "Grant ID"
// @Success      200  {object} DocumentGrant
// @Failure      404  {string} string "Not found"
// @Router       /api/permissions/document/{id} [get]
func (ctrl *PermissionController) GetDocumentGrant(c *fiber.Ctx) error {
	grant, err := ctrl.PermissionService.GetDocumentGrant(c.UserContext(), c.Params("id"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"permission": grant})
}

// GetSystemGrant godoc
// @Summary      Get one system grant
// @Tags         permissions
// @Produce      json
// @Param        id path string true "Grant ID"
// @Success      200  {object} SystemGrant
// @Failure      404  {string} string "Not found"
// @Router       /api/permissions/system/{id} [get]
func (ctrl *PermissionController) GetSystemGrant(c *fiber.Ctx) error {
	grant, err := ctrl.PermissionService.GetSystemGrant(c.UserContext(), c.Params("id"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"permission": grant})
}

// UpdateDocumentGrant godoc
// @Summary      Replace a document grant
// @Tags         permissions
// @Accept       json
// @Produce      json
// @Param        id path string true "Grant ID"
// @Param        request body DocumentGrantRequest true "Replacement fields"
// @Success      200  {object} map[string]bool
// @Failure      404  {string} string "Not found"
// @Router       /api/permissions/document/{id} [put]
func (ctrl *PermissionController) UpdateDocumentGrant(c *fiber.Ctx) error {
	var req DocumentGrantRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if err := ctrl.PermissionService.UpdateDocumentGrant(c.UserContext(), c.Params("id"), req); err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"success": true})
}

// UpdateSystemGrant godoc
// @Summary      Replace a system grant
// @Tags         permissions
// @Accept       json
// @Produce      json
// @Param        id path string true "Grant ID"
// @Param        request body SystemGrantRequest true "Replacement fields"
// @Success      200  {object} map[string]bool
// @Failure      404  {string} string "Not found"
// @Router       /api/permissions/system/{id} [put]
func (ctrl *PermissionController) UpdateSystemGrant(c *fiber.Ctx) error {
	var req SystemGrantRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if err := ctrl.PermissionService.UpdateSystemGrant(c.UserContext(), c.Params("id"), req); err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"success": true})
}

// DeleteDocumentGrant godoc
// @Summary      Delete a document grant
// @Tags         permissions
// @Produce      json
// @Param        id path string true "Grant ID"
// @Success      200  {object} map[string]bool
// @Failure      404  {string} string "Not found"
// @Router       /api/permissions/document/{id} [delete]
func (ctrl *PermissionController) DeleteDocumentGrant(c *fiber.Ctx) error {
	if err := ctrl.PermissionService.DeleteDocumentGrant(c.UserContext(), c.Params("id")); err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"success": true})
}

// DeleteSystemGrant godoc
// @Summary      Delete a system grant
// @Tags         permissions
// @Produce      json
// @Param        id path string true "Grant ID"
// @Success      200  {object} map[string]bool
// @Failure      404  {string} string "Not found"
// @Router       /api/permissions/system/{id} [delete]
func (ctrl *PermissionController) DeleteSystemGrant(c *fiber.Ctx) error {
	if err := ctrl.PermissionService.DeleteSystemGrant(c.UserContext(), c.Params("id")); err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"success": true})
}

// CanAccessFile godoc
// @Summary      Check file access for a user
// @Tags         permissions
// @Produce      json
// @Param        userId query string true "User ID"
// @Param        filePath query string true "File path"
// @Param        action query string false "Action, defaults to read"
// @Success      200  {object} map[string]interface{}
// @Router       /api/permissions/can-access-file [get]
func (ctrl *PermissionController) CanAccessFile(c *fiber.Ctx) error {
	userID := c.Query("userId")
	filePath := c.Query("filePath")
	action := c.Query("action", "read")

	required := ScopeDocument + TupleSeparator + ResourceFile + TupleSeparator + filePath + TupleSeparator + action
	allowed, err := ctrl.PermissionService.CheckPermission(c.UserContext(), userID, required)
	if err != nil {
		return fail(c, err)
	}

	return c.JSON(fiber.Map{
		"can_access": allowed,
		"file_path":  filePath,
		"action":     action,
	})
}

// CanAccessFolder godoc
// @Summary      Check folder access for a user
// @Description  A folder path without a trailing /* is normalized to one
// @Tags         permissions
// @Produce      json
// @Param        userId query string true "User ID"
// @Param        folderPath query string true "Folder path"
// @Param        action query string false "Action, defaults to read"
// @Success      200  {object} map[string]interface{}
// @Router       /api/permissions/can-access-folder [get]
func (ctrl *PermissionController) CanAccessFolder(c *fiber.Ctx) error {
	userID := c.Query("userId")
	folderPath := c.Query("folderPath")
	action := c.Query("action", "read")

	normalized := folderPath
	if !strings.HasSuffix(normalized, "/*") {
		normalized += "/*"
	}

	required := ScopeDocument + TupleSeparator + ResourceFolder + TupleSeparator + normalized + TupleSeparator + action
	allowed, err := ctrl.PermissionService.CheckPermission(c.UserContext(), userID, required)
	if err != nil {
		return fail(c, err)
	}

	return c.JSON(fiber.Map{
		"can_access":  allowed,
		"folder_path": folderPath,
		"action":      action,
	})
}

// CanManageResource godoc
// @Summary      Check manage rights on a system resource
// @Tags         permissions
// @Produce      json
// @Param        userId query string true "User ID"
// @Param        resourceType query string true "System resource type"
// @Param        resourceId query string false "Resource ID, defaults to *"
// @Success      200  {object} map[string]interface{}
// @Router       /api/permissions/can-manage-resource [get]
func (ctrl *PermissionController) CanManageResource(c *fiber.Ctx) error {
	userID := c.Query("userId")
	resourceType := c.Query("resourceType")
	resourceID := c.Query("resourceId", "*")

	required := ScopeSystem + TupleSeparator + resourceType + TupleSeparator + resourceID + TupleSeparator + ActionManage
	allowed, err := ctrl.PermissionService.CheckPermission(c.UserContext(), userID, required)
	if err != nil {
		return fail(c, err)
	}

	return c.JSON(fiber.Map{
		"can_manage":    allowed,
		"resource_type": resourceType,
		"resource_id":   resourceID,
	})
}

// GetAccessiblePaths godoc
// @Summary      Split accessible resources into document paths and system descriptors
// @Tags         permissions
// @Produce      json
// @Param        userId query string true "User ID"
// @Param        action query string false "Action, defaults to read"
// @Success      200  {object} map[string]interface{}
// @Router       /api/permissions/accessible-paths [get]
func (ctrl *PermissionController) GetAccessiblePaths(c *fiber.Ctx) error {
	userID := c.Query("userId")
	action := c.Query("action", "read")

	resources, err := ctrl.PermissionService.GetAccessibleResources(c.UserContext(), userID, action)
	if err != nil {
		return fail(c, err)
	}

	documentPaths := make([]string, 0)
	systemResources := make([]fiber.Map, 0)
	for _, r := range resources {
		switch r.Source {
		case "calculated":
			documentPaths = append(documentPaths, r.Path)
		case "system":
			systemResources = append(systemResources, fiber.Map{
				"type": r.ResourceType,
				"id":   r.ResourceID,
			})
		}
	}

	return c.JSON(fiber.Map{
		"accessible_paths":            documentPaths,
		"accessible_system_resources": systemResources,
		"action":                      action,
		"user_id":                     userID,
	})
}
