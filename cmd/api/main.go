package main

import (
	"context"
	"fmt"
	"log"
	"time"

	common_api "go-perm/internal/common/api"
	"go-perm/internal/config"
	"go-perm/internal/database"
	"go-perm/internal/features/audit"
	"go-perm/internal/features/group"
	"go-perm/internal/features/permission"
	"go-perm/internal/features/system"
	"go-perm/internal/logger"
	"go-perm/internal/middleware"
	"go-perm/pkg/utils"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

// NewFiberServer creates a new Fiber app instance
func NewFiberServer() *fiber.App {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error": err.Error(),
			})
		},
	})

	app.Use(middleware.CORSMiddleware())

	return app
}

// NewTupleCache builds the permission cache from configuration
func NewTupleCache(cfg *config.Config) *permission.TupleCache {
	return permission.NewTupleCache(time.Duration(cfg.CacheTTLSeconds)*time.Second, nil)
}

// AsRoute is a helper function to reduce boilerplate.
// It tags the constructor so Fx knows to add it to the "routes" group.
func AsRoute(f any) any {
	return fx.Annotate(
		f,
		fx.As(new(common_api.Route)),    // Cast to Interface
		fx.ResultTags(`group:"routes"`), // Add to Group
	)
}

// RegisterAllRoutes takes the group "routes" (slice of interfaces)
// and calls Setup() on each one.
func RegisterAllRoutes(app *fiber.App, routes []common_api.Route) {
	for _, route := range routes {
		route.Setup(app)
	}
	log.Printf("Registered %d routes\n", len(routes))
}

// RegisterAllRoutesWithAnnotation wraps RegisterAllRoutes with fx annotations
var RegisterAllRoutesWithAnnotation = fx.Annotate(
	RegisterAllRoutes,
	fx.ParamTags(``, `group:"routes"`),
)

// StartServer creates a lifecycle hook to start Fiber in a goroutine
// and shut it down when the app exits.
func StartServer(lc fx.Lifecycle, app *fiber.App, cfg *config.Config) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				port := fmt.Sprintf(":%s", cfg.Port)
				if err := app.Listen(port); err != nil {
					log.Fatalf("Server failed to start: %v", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return app.Shutdown()
		},
	})
}

// InitializeIndexes ensures grant store indexes (and, for the SQL
// backend, tables) exist
func InitializeIndexes(lc fx.Lifecycle, repo permission.GrantRepository) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				defer cancel()

				if err := repo.EnsureIndexes(ctx); err != nil {
					log.Printf("Failed to ensure grant indexes: %v", err)
				}
			}()
			return nil
		},
	})
}

// @title           Permission Service API
// @version         1.0
// @description     Grant storage, resolution and cached permission checks.

// @host            localhost:8080
// @BasePath        /
func main() {
	app := fx.New(
		fx.Provide(
			// Load Config
			config.LoadConfig,

			// Initialize Logger
			logger.NewLogger,

			// Initialize Fiber Server
			NewFiberServer,

			// Initialize Databases
			database.NewDatabase,
			database.NewPostgres,

			// Initialize Repositories
			group.NewGroupRepository,
			audit.NewAuditRepository,
			permission.NewGrantRepository,

			// Cache and event hub
			NewTupleCache,
			permission.NewEventHub,

			// Initialize Services
			audit.NewAuditService,
			group.NewGroupService,
			permission.NewPermissionService,

			// Interface Adapters to break circular dependencies and satisfy Fx
			func(r group.GroupRepository) permission.MembershipSource { return r },
			func(s permission.PermissionService) middleware.PermissionChecker { return s },
			func(s permission.PermissionService) group.CacheInvalidator { return s },

			// Initialize Controllers
			permission.NewPermissionController,
			permission.NewEventsController,
			group.NewGroupController,
			audit.NewAuditController,

			// Initialize API Routes
			AsRoute(permission.NewPermissionApi),
			AsRoute(group.NewGroupApi),
			AsRoute(audit.NewAuditApi),
			AsRoute(system.NewHealthApi),
			AsRoute(system.NewSwaggerApi),
		),
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log}
		}),
		fx.Invoke(
			func(cfg *config.Config) { utils.SetSecret(cfg.JWTSecret) },

			// Register Routes & Start
			RegisterAllRoutesWithAnnotation,
			StartServer,
			InitializeIndexes,
		),
	)

	app.Run()
}
