package permission

import (
	"go-perm/internal/config"
	"go-perm/internal/middleware"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
)

type PermissionApi struct {
	Controller       *PermissionController
	EventsController *EventsController
	config           *config.Config
}

func NewPermissionApi(controller *PermissionController, eventsController *EventsController, config *config.Config) *PermissionApi {
	return &PermissionApi{
		Controller:       controller,
		EventsController: eventsController,
		config:           config,
	}
}

func (a *PermissionApi) Setup(app *fiber.App) {
	api := app.Group("/api")
	RegisterRoutes(api, a.Controller, a.config)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/permission-events", websocket.New(a.EventsController.HandleWebSocket))
}

// RegisterRoutes registers all permission-related routes
func RegisterRoutes(api fiber.Router, ctrl *PermissionController, config *config.Config) {
	permissions := api.Group("/permissions", middleware.AuthMiddleware(config.SkipAuth))

	permissions.Get("/user-permissions", ctrl.GetUserPermissions)
	permissions.Get("/accessible-resources", ctrl.GetAccessibleResources)
	permissions.Post("/check", ctrl.CheckPermission)
	permissions.Post("/set", ctrl.SetDocumentGrant)
	permissions.Post("/set-system", ctrl.SetSystemGrant)

	permissions.Get("/document", ctrl.ListDocumentGrants)
	permissions.Get("/document/:id", ctrl.GetDocumentGrant)
	permissions.Put("/document/:id", ctrl.UpdateDocumentGrant)
	permissions.Delete("/document/:id", ctrl.DeleteDocumentGrant)

	permissions.Get("/system", ctrl.ListSystemGrants)
	permissions.Get("/system/:id", ctrl.GetSystemGrant)
	permissions.Put("/system/:id", ctrl.UpdateSystemGrant)
	permissions.Delete("/system/:id", ctrl.DeleteSystemGrant)

	permissions.Get("/can-access-file", ctrl.CanAccessFile)
	permissions.Get("/can-access-folder", ctrl.CanAccessFolder)
	permissions.Get("/can-manage-resource", ctrl.CanManageResource)
	permissions.Get("/accessible-paths", ctrl.GetAccessiblePaths)
}
