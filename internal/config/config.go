package config

import (
	"os"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// Config 全局配置结构
type Config struct {
	App       AppConfig        `yaml:"app"`
	Server    ServerConfig     `yaml:"server"`
	Database  DatabaseConfig   `yaml:"database"`
	Redis     RedisConfig      `yaml:"redis"`
	Log       LogConfig        `yaml:"log"`
	Diagnosis DiagnosisConfig  `yaml:"diagnosis"`
	Platforms []PlatformConfig `yaml:"platforms"`
}

// AppConfig 应用配置
type AppConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
	Env     string `yaml:"env"` // dev, test, prod
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Port int    `yaml:"port"`
	Host string `yaml:"host"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Driver          string `yaml:"driver"` // mysql, postgres
	Host            string `yaml:"host"`
	Port            int    `yaml:"port"`
	Username        string `yaml:"username"`
	Password        string `yaml:"password"`
	Database        string `yaml:"database"`
	Charset         string `yaml:"charset"`
	MaxIdleConns    int    `yaml:"max_idle_conns"`
	MaxOpenConns    int    `yaml:"max_open_conns"`
	ConnMaxLifetime int    `yaml:"conn_max_lifetime"`
}

// RedisConfig Redis配置
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level      string `yaml:"level"`  // debug, info, warn, error
	Format     string `yaml:"format"` // json, console
	Output     string `yaml:"output"` // stdout, file, both
	FilePath   string `yaml:"file_path"`
	MaxSize    int    `yaml:"max_size"` // MB
	MaxBackups int    `yaml:"max_backups"`
	MaxAge     int    `yaml:"max_age"` // days
}

// DiagnosisConfig 诊断引擎配置
type DiagnosisConfig struct {
	Workers          int           `yaml:"workers"`            // 每个执行的并发 worker 数
	ExecutionTimeout time.Duration `yaml:"execution_timeout"`  // 单次诊断的最大时长
	CallTimeout      time.Duration `yaml:"call_timeout"`       // 单次模型调用超时
	MaxAttempts      int           `yaml:"max_attempts"`       // 含首次调用的最大尝试次数
	RetryBaseDelay   time.Duration `yaml:"retry_base_delay"`   // 重试基础延迟
	RetryMaxDelay    time.Duration `yaml:"retry_max_delay"`    // 重试最大延迟
	RetryJitter      bool          `yaml:"retry_jitter"`       // 是否启用抖动
	CheckpointEvery  int           `yaml:"checkpoint_every"`   // 每 N 条结果保存一次检查点
	MaxPollInterval  time.Duration `yaml:"max_poll_interval"`  // 轮询建议间隔上限
	RetentionPeriod  time.Duration `yaml:"retention_period"`   // 终态执行在内存中的保留时长
	JanitorInterval  time.Duration `yaml:"janitor_interval"`   // 清理任务周期
	RecordsInReport  bool          `yaml:"records_in_report"`  // 报告中是否携带明细记录
}

// PlatformConfig AI 平台配置
type PlatformConfig struct {
	Provider    string            `yaml:"provider"` // openai, deepseek, azure, http
	BaseURL     string            `yaml:"base_url"`
	APIKey      string            `yaml:"api_key"`
	APIVersion  string            `yaml:"api_version"`
	ContentPath string            `yaml:"content_path"` // http 平台的 JSONPath 内容提取表达式
	Headers     map[string]string `yaml:"headers"`
	Models      []string          `yaml:"models"` // 该平台负责的模型列表
	Temperature *float32          `yaml:"temperature"`
	MaxTokens   *int              `yaml:"max_tokens"`
}

var (
	globalConfig *Config
	once         sync.Once
)

// LoadConfig 加载配置文件
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// 支持 ${ENV_VAR} 形式引用环境变量，便于密钥不落盘
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, err
	}
	cfg.Diagnosis.ApplyDefaults()

	once.Do(func() {
		globalConfig = &cfg
	})

	return &cfg, nil
}

// GetConfig 获取全局配置
func GetConfig() *Config {
	return globalConfig
}

// SetConfig 设置全局配置
func SetConfig(cfg *Config) {
	globalConfig = cfg
}

// ApplyDefaults 填充诊断配置的默认值
func (c *DiagnosisConfig) ApplyDefaults() {
	if c.Workers <= 0 {
		c.Workers = 6
	}
	if c.Workers > 32 {
		c.Workers = 32
	}
	if c.ExecutionTimeout <= 0 {
		c.ExecutionTimeout = 30 * time.Minute
	}
	if c.CallTimeout <= 0 {
		c.CallTimeout = 90 * time.Second
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.RetryBaseDelay <= 0 {
		c.RetryBaseDelay = time.Second
	}
	if c.RetryMaxDelay <= 0 {
		c.RetryMaxDelay = 30 * time.Second
	}
	if c.CheckpointEvery <= 0 {
		c.CheckpointEvery = 5
	}
	if c.MaxPollInterval <= 0 {
		c.MaxPollInterval = 10 * time.Second
	}
	if c.RetentionPeriod <= 0 {
		c.RetentionPeriod = time.Hour
	}
	if c.JanitorInterval <= 0 {
		c.JanitorInterval = 10 * time.Minute
	}
}
