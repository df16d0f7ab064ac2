package handler

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/glensun810-ai/geodiag/internal/logic"
	"github.com/glensun810-ai/geodiag/pkg/response"
)

// DeadLetterHandler 死信队列处理器
type DeadLetterHandler struct{}

// NewDeadLetterHandler 创建死信处理器
func NewDeadLetterHandler() *DeadLetterHandler {
	return &DeadLetterHandler{}
}

// List 列出死信
// GET /api/deadletter
func (h *DeadLetterHandler) List(c *fiber.Ctx) error {
	limit, _ := strconv.Atoi(c.Query("limit", "100"))

	deadLetterLogic := logic.NewDeadLetterLogic(c.UserContext())

	entries := deadLetterLogic.List(
		c.Query("execution_id"),
		c.Query("status"),
		c.Query("error_kind"),
		limit,
	)
	return response.Success(c, fiber.Map{
		"list":  entries,
		"total": len(entries),
	})
}

// Resolve 人工关闭死信
// PUT /api/deadletter/:id/resolve
func (h *DeadLetterHandler) Resolve(c *fiber.Ctx) error {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return response.Error(c, "无效的死信ID")
	}

	var req logic.ResolveDeadLetterReq
	if err := c.BodyParser(&req); err != nil {
		return response.Error(c, "参数解析失败")
	}

	deadLetterLogic := logic.NewDeadLetterLogic(c.UserContext())

	if err := deadLetterLogic.Resolve(id, &req); err != nil {
		return notFoundOrError(c, err)
	}
	return response.SuccessWithMessage(c, "已处理", nil)
}

// Retry 重放死信任务
// PUT /api/deadletter/:id/retry
func (h *DeadLetterHandler) Retry(c *fiber.Ctx) error {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return response.Error(c, "无效的死信ID")
	}

	deadLetterLogic := logic.NewDeadLetterLogic(c.UserContext())

	resp, err := deadLetterLogic.Retry(id)
	if err != nil {
		return notFoundOrError(c, err)
	}
	return response.Success(c, resp)
}
