package handler

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/glensun810-ai/geodiag/internal/logic"
	apptypes "github.com/glensun810-ai/geodiag/internal/types"
	"github.com/glensun810-ai/geodiag/pkg/response"
	"github.com/glensun810-ai/geodiag/pkg/types"
)

// DiagnosisHandler 诊断处理器
type DiagnosisHandler struct{}

// NewDiagnosisHandler 创建诊断处理器
func NewDiagnosisHandler() *DiagnosisHandler {
	return &DiagnosisHandler{}
}

// Submit 提交诊断
// POST /api/diagnosis
func (h *DiagnosisHandler) Submit(c *fiber.Ctx) error {
	var req logic.SubmitDiagnosisReq
	if err := c.BodyParser(&req); err != nil {
		return response.Error(c, "参数解析失败")
	}

	diagnosisLogic := logic.NewDiagnosisLogic(c.UserContext())

	resp, err := diagnosisLogic.Submit(&req, currentUserID(c))
	if err != nil {
		var verr *types.ValidationError
		if errors.As(err, &verr) {
			return response.Error(c, verr.Error())
		}
		return response.ServerError(c, err.Error())
	}
	return response.Success(c, resp)
}

// GetStatus 查询诊断状态
// GET /api/diagnosis/:id/status
func (h *DiagnosisHandler) GetStatus(c *fiber.Ctx) error {
	executionID := c.Params("id")
	if executionID == "" {
		return response.Error(c, "执行ID不能为空")
	}

	diagnosisLogic := logic.NewDiagnosisLogic(c.UserContext())

	snap, err := diagnosisLogic.GetStatus(executionID)
	if err != nil {
		return notFoundOrError(c, err)
	}
	return response.Success(c, snap)
}

// GetReport 获取诊断报告
// GET /api/diagnosis/:id/report
func (h *DiagnosisHandler) GetReport(c *fiber.Ctx) error {
	executionID := c.Params("id")
	if executionID == "" {
		return response.Error(c, "执行ID不能为空")
	}

	diagnosisLogic := logic.NewDiagnosisLogic(c.UserContext())

	rep, err := diagnosisLogic.GetReport(executionID)
	if err != nil {
		return notFoundOrError(c, err)
	}
	return response.Success(c, rep)
}

// Export 导出诊断报告 Excel
// GET /api/diagnosis/:id/export
func (h *DiagnosisHandler) Export(c *fiber.Ctx) error {
	executionID := c.Params("id")
	if executionID == "" {
		return response.Error(c, "执行ID不能为空")
	}

	diagnosisLogic := logic.NewDiagnosisLogic(c.UserContext())

	data, filename, err := diagnosisLogic.Export(executionID)
	if err != nil {
		return notFoundOrError(c, err)
	}

	c.Set(fiber.HeaderContentType, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="%s"`, filename))
	return c.Send(data)
}

// List 列出历史诊断
// GET /api/diagnosis
func (h *DiagnosisHandler) List(c *fiber.Ctx) error {
	var req logic.ExecutionListReq
	if err := c.QueryParser(&req); err != nil {
		return response.Error(c, "参数解析失败")
	}
	if req.Page <= 0 {
		req.Page = 1
	}
	if req.PageSize <= 0 {
		req.PageSize = 10
	}

	diagnosisLogic := logic.NewDiagnosisLogic(c.UserContext())

	list, total, err := diagnosisLogic.List(&req)
	if err != nil {
		return response.ServerError(c, err.Error())
	}
	return response.Page(c, list, total, req.Page, req.PageSize)
}

// Stop 停止诊断
// POST /api/diagnosis/:id/stop
func (h *DiagnosisHandler) Stop(c *fiber.Ctx) error {
	executionID := c.Params("id")
	if executionID == "" {
		return response.Error(c, "执行ID不能为空")
	}

	diagnosisLogic := logic.NewDiagnosisLogic(c.UserContext())

	if err := diagnosisLogic.Stop(executionID); err != nil {
		return notFoundOrError(c, err)
	}
	return response.SuccessWithMessage(c, "已停止", nil)
}

// currentUserID 从请求头取用户ID，认证由外层网关负责
func currentUserID(c *fiber.Ctx) int64 {
	id, err := strconv.ParseInt(c.Get("X-User-Id"), 10, 64)
	if err != nil {
		return 0
	}
	return id
}

func notFoundOrError(c *fiber.Ctx, err error) error {
	var appErr *apptypes.AppError
	if errors.As(err, &appErr) {
		switch appErr.Code {
		case apptypes.ErrCodeDiagnosisNotFound, apptypes.ErrCodeDeadLetterNotFound, apptypes.ErrCodeNotFound:
			return response.NotFound(c, appErr.Message)
		}
		return response.Error(c, appErr.Message)
	}
	return response.ServerError(c, err.Error())
}
