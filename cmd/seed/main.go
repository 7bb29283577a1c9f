package main

import (
	"context"
	"time"

	"go-perm/internal/config"
	"go-perm/internal/database"
	"go-perm/internal/features/group"
	"go-perm/internal/features/permission"
	"go-perm/internal/logger"

	"github.com/google/uuid"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

// Seed loads the fixture groups, memberships and grants
func Seed(
	lc fx.Lifecycle,
	groupRepo group.GroupRepository,
	grantRepo permission.GrantRepository,
	logger *zap.Logger,
	shutdowner fx.Shutdowner,
) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				defer func() {
					if err := shutdowner.Shutdown(); err != nil {
						logger.Error("Failed to shutdown", zap.Error(err))
					}
				}()

				logger.Info("Starting database seeding...")

				ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				defer cancel()

				if err := grantRepo.EnsureIndexes(ctx); err != nil {
					logger.Error("Failed to ensure indexes", zap.Error(err))
					return
				}

				groups := map[string]*group.Group{
					"HR":        {Name: "HR", Kind: group.KindDocument},
					"Finance":   {Name: "Finance", Kind: group.KindDocument},
					"Tech Team": {Name: "Tech Team", Kind: group.KindSystem},
					"Admins":    {Name: "Admins", Kind: group.KindSystem},
					"BD Team":   {Name: "BD Team", Kind: group.KindSystem},
				}
				for name, g := range groups {
					if err := groupRepo.Create(ctx, g); err != nil {
						logger.Error("Failed to create group", zap.String("name", name), zap.Error(err))
						return
					}
				}

				memberships := []struct {
					group  string
					userID string
				}{
					{"HR", "alice@company.com"},
					{"HR", "bob@company.com"},
					{"Finance", "charlie@company.com"},
					{"Tech Team", "dave@company.com"},
					{"Admins", "admin@company.com"},
					{"BD Team", "bd@company.com"},
				}
				for _, m := range memberships {
					member := &group.GroupMember{
						GroupID: groups[m.group].ID.Hex(),
						UserID:  m.userID,
					}
					if err := groupRepo.AddMember(ctx, member); err != nil {
						logger.Error("Failed to add member", zap.String("user_id", m.userID), zap.Error(err))
						return
					}
				}

				now := time.Now()
				documentGrants := []*permission.DocumentGrant{
					{
						ResourcePath:   "/HR/*",
						ResourceKind:   permission.ResourceFolder,
						AssignedToType: permission.AssigneeGroup,
						AssignedToID:   groups["HR"].ID.Hex(),
						Permission:     "use_for_ai_chat",
					},
					{
						ResourcePath:   "/Finance/*",
						ResourceKind:   permission.ResourceFolder,
						AssignedToType: permission.AssigneeGroup,
						AssignedToID:   groups["Finance"].ID.Hex(),
						Permission:     "use_for_ai_chat",
					},
					{
						ResourcePath:   "/public/logo.png",
						ResourceKind:   permission.ResourceFile,
						AssignedToType: permission.AssigneeAll,
						Permission:     "read",
					},
				}
				for _, g := range documentGrants {
					g.ID = uuid.NewString()
					g.CreatedAt = now
					g.UpdatedAt = now
					if err := grantRepo.InsertDocumentGrant(ctx, g); err != nil {
						logger.Error("Failed to insert document grant", zap.Error(err))
						return
					}
				}

				systemGrants := []*permission.SystemGrant{
					{
						ResourceType:   "*",
						ResourceID:     "*",
						AssignedToType: permission.AssigneeUser,
						AssignedToID:   "owner@company.com",
						Permission:     "manage",
					},
					{
						ResourceType:   "user",
						ResourceID:     "*",
						AssignedToType: permission.AssigneeGroup,
						AssignedToID:   groups["Admins"].ID.Hex(),
						Permission:     "manage",
					},
					{
						ResourceType:   "guard",
						ResourceID:     "*",
						AssignedToType: permission.AssigneeGroup,
						AssignedToID:   groups["Tech Team"].ID.Hex(),
						Permission:     "manage",
					},
					{
						ResourceType:   "setting",
						ResourceID:     "*",
						AssignedToType: permission.AssigneeGroup,
						AssignedToID:   groups["Admins"].ID.Hex(),
						Permission:     "manage",
					},
					{
						ResourceType:   "report",
						ResourceID:     "*",
						AssignedToType: permission.AssigneeGroup,
						AssignedToID:   groups["BD Team"].ID.Hex(),
						Permission:     "read",
					},
					// Dev bypass identity used when SKIP_AUTH=true
					{
						ResourceType:   "*",
						ResourceID:     "*",
						AssignedToType: permission.AssigneeUser,
						AssignedToID:   "dev-admin-id",
						Permission:     "manage",
					},
				}
				for _, g := range systemGrants {
					g.ID = uuid.NewString()
					g.CreatedAt = now
					g.UpdatedAt = now
					if err := grantRepo.InsertSystemGrant(ctx, g); err != nil {
						logger.Error("Failed to insert system grant", zap.Error(err))
						return
					}
				}

				logger.Info("Seed data created successfully")
			}()
			return nil
		},
	})
}

func main() {
	app := fx.New(
		fx.Provide(
			config.LoadConfig,
			logger.NewLogger,
			database.NewDatabase,
			database.NewPostgres,
			group.NewGroupRepository,
			permission.NewGrantRepository,
		),
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log}
		}),
		fx.Invoke(Seed),
	)

	app.Run()
}
