package audit

import (
	"github.com/gofiber/fiber/v2"
)

type AuditController struct {
	AuditService AuditService
}

func NewAuditController(auditService AuditService) *AuditController {
	return &AuditController{
		AuditService: auditService,
	}
}

// ListLogs godoc
// @Summary      List audit logs
// @Description  Paginated grant and group mutation history, newest first
// @Tags         audit
// @Produce      json
// @Param        module query string false "Filter by feature name"
// @Param        record_id query string false "Filter by record ID"
// @Param        page query int false "Page, defaults to 1"
// @Param        limit query int false "Page size, defaults to 10"
// @Success      200  {array} models.AuditLog
// @Router       /api/audit [get]
func (ctrl *AuditController) ListLogs(c *fiber.Ctx) error {
	filters := map[string]interface{}{
		"module":    c.Query("module"),
		"record_id": c.Query("record_id"),
	}

	logs, err := ctrl.AuditService.ListLogs(c.UserContext(), filters, int64(c.QueryInt("page", 1)), int64(c.QueryInt("limit", 10)))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(fiber.Map{"logs": logs})
}
