package group

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type GroupController struct {
	GroupService GroupService
}

func NewGroupController(groupService GroupService) *GroupController {
	return &GroupController{
		GroupService: groupService,
	}
}

func groupStatus(err error) int {
	if errors.Is(err, ErrNotFound) {
		return fiber.StatusNotFound
	}
	return fiber.StatusInternalServerError
}

// CreateGroup godoc
// @Summary      Create a group
// @Tags         groups
// @Accept       json
// @Produce      json
// @Param        group body Group true "Group object"
// @Success      201  {object} Group
// @Router       /api/groups [post]
func (ctrl *GroupController) CreateGroup(c *fiber.Ctx) error {
	var group Group
	if err := c.BodyParser(&group); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if err := ctrl.GroupService.CreateGroup(c.UserContext(), &group); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.Status(fiber.StatusCreated).JSON(group)
}

// GetAllGroups godoc
// @Summary      List groups
// @Tags         groups
// @Produce      json
// @Success      200  {array} Group
// @Router       /api/groups [get]
func (ctrl *GroupController) GetAllGroups(c *fiber.Ctx) error {
	groups, err := ctrl.GroupService.GetAllGroups(c.UserContext())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return c.JSON(groups)
}

// GetGroupByID godoc
// @Summary      Get one group
// @Tags         groups
// @Produce      json
// @Param        id path string true "Group ID"
// @Success      200  {object} Group
// @Failure      404  {string} string "Not found"
// @Router       /api/groups/{id} [get]
func (ctrl *GroupController) GetGroupByID(c *fiber.Ctx) error {
	id, err := primitive.ObjectIDFromHex(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid group ID",
		})
	}

	group, err := ctrl.GroupService.GetGroupByID(c.UserContext(), id)
	if err != nil {
		return c.Status(groupStatus(err)).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return c.JSON(group)
}

// UpdateGroup godoc
// @Summary      Update a group
// @Tags         groups
// @Accept       json
// @Produce      json
// @Param        id path string true "Group ID"
// @Param        group body Group true "Group object"
// @Success      200  {object} map[string]string
// @Failure      404  {string} string "Not found"
// @Router       /api/groups/{id} [put]
func (ctrl *GroupController) UpdateGroup(c *fiber.Ctx) error {
	id, err := primitive.ObjectIDFromHex(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid group ID",
		})
	}

	var group Group
	if err := c.BodyParser(&group); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if err := ctrl.GroupService.UpdateGroup(c.UserContext(), id, &group); err != nil {
		return c.Status(groupStatus(err)).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"message": "Group updated successfully",
	})
}

// DeleteGroup godoc
// @Summary      Delete a group and its memberships
// @Tags         groups
// @Produce      json
// @Param        id path string true "Group ID"
// @Success      200  {object} map[string]string
// @Failure      404  {string} string "Not found"
// @Router       /api/groups/{id} [delete]
func (ctrl *GroupController) DeleteGroup(c *fiber.Ctx) error {
	id, err := primitive.ObjectIDFromHex(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid group ID",
		})
	}

	if err := ctrl.GroupService.DeleteGroup(c.UserContext(), id); err != nil {
		return c.Status(groupStatus(err)).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"message": "Group deleted successfully",
	})
}

// AddMember godoc
// @Summary      Add a member to a group
// @Tags         groups
// @Accept       json
// @Produce      json
// @Param        id path string true "Group ID"
// @Param        request body AddMemberRequest true "Member"
// @Success      201  {object} GroupMember
// @Failure      404  {string} string "Not found"
// @Router       /api/groups/{id}/members [post]
func (ctrl *GroupController) AddMember(c *fiber.Ctx) error {
	id, err := primitive.ObjectIDFromHex(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid group ID",
		})
	}

	var req AddMemberRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	member, err := ctrl.GroupService.AddMember(c.UserContext(), id, req.UserID)
	if err != nil {
		return c.Status(groupStatus(err)).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.Status(fiber.StatusCreated).JSON(member)
}

// RemoveMember godoc
// @Summary      Remove a member from a group
// @Tags         groups
// @Produce      json
// @Param        id path string true "Group ID"
// @Param        userId path string true "User ID"
// @Success      200  {object} map[string]string
// @Router       /api/groups/{id}/members/{userId} [delete]
func (ctrl *GroupController) RemoveMember(c *fiber.Ctx) error {
	id, err := primitive.ObjectIDFromHex(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid group ID",
		})
	}

	if err := ctrl.GroupService.RemoveMember(c.UserContext(), id, c.Params("userId")); err != nil {
		return c.Status(groupStatus(err)).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"message": "Member removed successfully",
	})
}

// ListMembers godoc
// @Summary      List a group's members
// @Tags         groups
// @Produce      json
// @Param        id path string true "Group ID"
// @Success      200  {array} GroupMember
// @Router       /api/groups/{id}/members [get]
func (ctrl *GroupController) ListMembers(c *fiber.Ctx) error {
	id, err := primitive.ObjectIDFromHex(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid group ID",
		})
	}

	members, err := ctrl.GroupService.ListMembers(c.UserContext(), id)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return c.JSON(members)
}
