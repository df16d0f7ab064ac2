package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/glensun810-ai/geodiag/internal/adapter"
	"github.com/glensun810-ai/geodiag/internal/config"
	"github.com/glensun810-ai/geodiag/internal/engine"
	"github.com/glensun810-ai/geodiag/internal/janitor"
	"github.com/glensun810-ai/geodiag/internal/router"
	"github.com/glensun810-ai/geodiag/internal/store"
	"github.com/glensun810-ai/geodiag/internal/svc"
	"github.com/glensun810-ai/geodiag/pkg/database"
	"github.com/glensun810-ai/geodiag/pkg/logger"
	"github.com/glensun810-ai/geodiag/pkg/redis"
)

// serverCmd 启动 HTTP 服务
var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "启动诊断服务",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)
}

func runServer() error {
	// 1. 加载配置
	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		return fmt.Errorf("加载配置失败: %w", err)
	}

	// 2. 初始化日志
	logger.Init(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		FilePath:   cfg.Log.FilePath,
		MaxSize:    cfg.Log.MaxSize,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAge,
	})
	defer logger.Sync()

	logger.Info("服务启动中...",
		zap.String("app", cfg.App.Name),
		zap.String("version", cfg.App.Version),
		zap.String("env", cfg.App.Env))

	// 3. 初始化存储：配置了数据库则用 GORM 网关，否则退化为内存网关
	var (
		db      *gorm.DB
		gateway store.Gateway
	)
	if cfg.Database.Host != "" {
		if err := database.Init(&cfg.Database); err != nil {
			return fmt.Errorf("初始化数据库失败: %w", err)
		}
		defer database.Close()

		db = database.GetDB()
		gw := store.NewGormGateway(db)
		if err := gw.AutoMigrate(); err != nil {
			return fmt.Errorf("数据库迁移失败: %w", err)
		}
		gateway = gw
	} else {
		logger.Warn("未配置数据库，诊断状态仅保存在内存中")
		gateway = store.NewMemoryGateway()
	}

	// 4. 初始化 Redis（可选，仅用于状态缓存）
	var rdb *goredis.Client
	if cfg.Redis.Enabled {
		if err := redis.Init(&cfg.Redis); err != nil {
			return fmt.Errorf("初始化Redis失败: %w", err)
		}
		defer redis.Close()
		rdb = redis.GetClient()
	}

	// 5. 初始化平台适配器与诊断引擎
	registry, err := adapter.NewRegistry(cfg.Platforms)
	if err != nil {
		return fmt.Errorf("初始化平台适配器失败: %w", err)
	}

	eng := engine.New(cfg.Diagnosis, registry, gateway)

	// 6. 初始化服务上下文
	svc.Init(cfg, db, rdb, eng, gateway)

	// 7. 启动周期清理
	jan, err := janitor.New(eng, cfg.Diagnosis.JanitorInterval, cfg.Diagnosis.RetentionPeriod)
	if err != nil {
		return fmt.Errorf("初始化清理任务失败: %w", err)
	}
	jan.Start()

	// 8. 创建 Fiber 应用
	app := fiber.New(fiber.Config{
		AppName:               cfg.App.Name,
		DisableStartupMessage: cfg.App.Env == "prod",
	})
	router.Setup(app)

	// 9. 启动服务器
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	go func() {
		if err := app.Listen(addr); err != nil {
			logger.Fatal("服务器启动失败", zap.Error(err))
		}
	}()

	logger.Info("服务启动成功", zap.String("addr", addr))

	// 10. 等待退出信号，优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("服务关闭中...")

	if err := jan.Stop(); err != nil {
		logger.Error("停止清理任务失败", zap.Error(err))
	}
	if err := app.Shutdown(); err != nil {
		logger.Error("服务器关闭失败", zap.Error(err))
	}

	logger.Info("服务已退出")
	return nil
}
