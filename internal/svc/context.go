package svc

import (
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/glensun810-ai/geodiag/internal/config"
	"github.com/glensun810-ai/geodiag/internal/engine"
	"github.com/glensun810-ai/geodiag/internal/store"
)

// ServiceContext 全局服务上下文
type ServiceContext struct {
	Config  *config.Config
	DB      *gorm.DB
	Redis   *redis.Client
	Engine  *engine.Engine
	Gateway store.Gateway
}

var Ctx *ServiceContext

// Init 初始化服务上下文
func Init(cfg *config.Config, db *gorm.DB, rdb *redis.Client, eng *engine.Engine, gw store.Gateway) {
	Ctx = &ServiceContext{
		Config:  cfg,
		DB:      db,
		Redis:   rdb,
		Engine:  eng,
		Gateway: gw,
	}
}
