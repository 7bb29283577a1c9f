package middleware

import (
	"context"

	"go-perm/pkg/utils"

	"github.com/gofiber/fiber/v2"
)

// PermissionChecker is implemented by the permission service. Declared
// here so the middleware does not depend on the feature package.
type PermissionChecker interface {
	CheckPermission(ctx context.Context, userID string, required string) (bool, error)
}

// RequirePermission guards a route behind a permission tuple check for
// the authenticated user
func RequirePermission(checker PermissionChecker, required string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims, ok := c.Locals(utils.UserClaimsKey).(*utils.UserClaims)
		if !ok || claims.UserID == "" {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "Access denied: No user context",
			})
		}

		allowed, err := checker.CheckPermission(c.UserContext(), claims.UserID, required)
		if err != nil || !allowed {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "Access denied: Insufficient permissions for this action",
			})
		}

		return c.Next()
	}
}
