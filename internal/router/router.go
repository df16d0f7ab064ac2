package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberLogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/glensun810-ai/geodiag/internal/handler"
	"github.com/glensun810-ai/geodiag/internal/svc"
)

// Setup 设置路由
func Setup(app *fiber.App) {
	// 全局中间件
	app.Use(recover.New())
	app.Use(fiberLogger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization,X-User-Id",
	}))

	// 健康检查
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
			"app":    svc.Ctx.Config.App.Name,
		})
	})

	// 创建 Handler
	diagnosisHandler := handler.NewDiagnosisHandler()
	deadLetterHandler := handler.NewDeadLetterHandler()

	// API 路由组（认证由外层网关负责）
	api := app.Group("/api")

	// 诊断相关路由
	diagnosis := api.Group("/diagnosis")
	diagnosis.Post("/", diagnosisHandler.Submit)
	diagnosis.Get("/", diagnosisHandler.List)
	diagnosis.Get("/:id/status", diagnosisHandler.GetStatus)
	diagnosis.Get("/:id/report", diagnosisHandler.GetReport)
	diagnosis.Get("/:id/export", diagnosisHandler.Export)
	diagnosis.Post("/:id/stop", diagnosisHandler.Stop)

	// 死信队列路由
	deadletter := api.Group("/deadletter")
	deadletter.Get("/", deadLetterHandler.List)
	deadletter.Put("/:id/resolve", deadLetterHandler.Resolve)
	deadletter.Put("/:id/retry", deadLetterHandler.Retry)
}
