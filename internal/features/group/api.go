package group

import (
	"go-perm/internal/config"
	"go-perm/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

type GroupApi struct {
	Controller *GroupController
	config     *config.Config
}

func NewGroupApi(controller *GroupController, config *config.Config) *GroupApi {
	return &GroupApi{
		Controller: controller,
		config:     config,
	}
}

func (a *GroupApi) Setup(app *fiber.App) {
	api := app.Group("/api")

	groups := api.Group("/groups", middleware.AuthMiddleware(a.config.SkipAuth))

	groups.Post("/", a.Controller.CreateGroup)
	groups.Get("/", a.Controller.GetAllGroups)
	groups.Get("/:id", a.Controller.GetGroupByID)
	groups.Put("/:id", a.Controller.UpdateGroup)
	groups.Delete("/:id", a.Controller.DeleteGroup)

	groups.Post("/:id/members", a.Controller.AddMember)
	groups.Get("/:id/members", a.Controller.ListMembers)
	groups.Delete("/:id/members/:userId", a.Controller.RemoveMember)
}
