package audit

import (
	"go-perm/internal/config"
	"go-perm/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

type AuditApi struct {
	Controller *AuditController
	checker    middleware.PermissionChecker
	config     *config.Config
}

func NewAuditApi(controller *AuditController, checker middleware.PermissionChecker, config *config.Config) *AuditApi {
	return &AuditApi{
		Controller: controller,
		checker:    checker,
		config:     config,
	}
}

func (a *AuditApi) Setup(app *fiber.App) {
	api := app.Group("/api")

	// Reading the mutation history requires report access
	logs := api.Group("/audit",
		middleware.AuthMiddleware(a.config.SkipAuth),
		middleware.RequirePermission(a.checker, "system:report:audit:read"),
	)
	logs.Get("/", a.Controller.ListLogs)
}
