package config

import (
	stdErrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"infogenai/internal/events"
	"infogenai/pkg/logger"
	"infogenai/pkg/plugin"
)

// EnvPrefix 是环境变量覆盖配置时使用的前缀。
const EnvPrefix = "INFOGENAI"

// Config 描述了网关在启动阶段需要加载的全部配置。
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Agents   AgentsConfig   `mapstructure:"agents"`
	Dispatch DispatchConfig `mapstructure:"dispatch"`
	Events   EventsConfig   `mapstructure:"events"`
	Log      LogConfig      `mapstructure:"log"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`

	// File 是实际读取的配置文件，未使用配置文件时为空。
	File string `mapstructure:"-"`
	// BaseDir 是解析相对路径的基准目录。
	BaseDir string `mapstructure:"-"`
}

// ServerConfig 控制 HTTP 服务。
type ServerConfig struct {
	Address string `mapstructure:"address" validate:"required,hostname_port"`
	Path    string `mapstructure:"path" validate:"required,startswith=/"`
	// LegacyStatus 为 true 时所有分发结果都返回 200。
	LegacyStatus    bool          `mapstructure:"legacy_status"`
	MaxBodyBytes    int64         `mapstructure:"max_body_bytes" validate:"gt=0"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gte=0"`
}

// AgentsConfig 描述插件目录与加载策略。
type AgentsConfig struct {
	Dir             string `mapstructure:"dir" validate:"required"`
	Extension       string `mapstructure:"extension" validate:"required"`
	Manifest        string `mapstructure:"manifest"`
	IsolateFailures bool   `mapstructure:"isolate_failures"`
	Watch           bool   `mapstructure:"watch"`
}

// DispatchConfig 控制代理调用方式。
type DispatchConfig struct {
	AgentTimeout    time.Duration `mapstructure:"agent_timeout" validate:"gte=0"`
	ContinueOnError bool          `mapstructure:"continue_on_error"`
}

// EventsConfig 选择分发事件的发布驱动。
type EventsConfig struct {
	Driver   string         `mapstructure:"driver"`
	Redis    RedisConfig    `mapstructure:"redis"`
	RabbitMQ RabbitMQConfig `mapstructure:"rabbitmq"`
}

// RedisConfig 描述 Redis 发布器。
type RedisConfig struct {
	Address  string `mapstructure:"address" validate:"omitempty,hostname_port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db" validate:"gte=0"`
	Channel  string `mapstructure:"channel"`
}

// RabbitMQConfig 描述 RabbitMQ 发布器。
type RabbitMQConfig struct {
	URL     string `mapstructure:"url" validate:"omitempty,url"`
	Queue   string `mapstructure:"queue"`
	Durable bool   `mapstructure:"durable"`
}

// LogConfig 控制日志输出。
type LogConfig struct {
	Level   string      `mapstructure:"level" validate:"oneof=debug info warn warning error"`
	Format  string      `mapstructure:"format" validate:"oneof=json text"`
	Outputs []string    `mapstructure:"outputs"`
	Audit   AuditConfig `mapstructure:"audit"`
}

// AuditConfig 描述审计日志文件及其轮转参数。
type AuditConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Path       string `mapstructure:"path" validate:"required_if=Enabled true"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" validate:"gte=0"`
	MaxBackups int    `mapstructure:"max_backups" validate:"gte=0"`
	MaxAgeDays int    `mapstructure:"max_age_days" validate:"gte=0"`
	Compress   bool   `mapstructure:"compress"`
}

// MetricsConfig 控制 Prometheus 指标端点。
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path" validate:"omitempty,startswith=/"`
}

// Options 控制配置的来源。
type Options struct {
	// File 为空时在当前目录与 configs/ 下查找 infogenai.{yaml,yml,json}。
	File  string
	Flags *pflag.FlagSet
}

// flagKeys 将命令行参数映射到配置键。
var flagKeys = map[string]string{
	"address":           "server.address",
	"agents-dir":        "agents.dir",
	"manifest":          "agents.manifest",
	"isolate-failures":  "agents.isolate_failures",
	"watch":             "agents.watch",
	"agent-timeout":     "dispatch.agent_timeout",
	"continue-on-error": "dispatch.continue_on_error",
	"legacy-status":     "server.legacy_status",
	"events":            "events.driver",
	"log-level":         "log.level",
	"log-format":        "log.format",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.address", "0.0.0.0:5000")
	v.SetDefault("server.path", "/infogenai")
	v.SetDefault("server.legacy_status", true)
	v.SetDefault("server.max_body_bytes", 1<<20)
	v.SetDefault("server.shutdown_timeout", 5*time.Second)

	v.SetDefault("agents.dir", "agents")
	v.SetDefault("agents.extension", plugin.DefaultExtension)
	v.SetDefault("agents.manifest", "")
	v.SetDefault("agents.isolate_failures", false)
	v.SetDefault("agents.watch", false)

	v.SetDefault("dispatch.agent_timeout", time.Duration(0))
	v.SetDefault("dispatch.continue_on_error", false)

	v.SetDefault("events.driver", events.DriverNone)
	v.SetDefault("events.redis.address", "")
	v.SetDefault("events.redis.password", "")
	v.SetDefault("events.redis.db", 0)
	v.SetDefault("events.redis.channel", events.DefaultRedisChannel)
	v.SetDefault("events.rabbitmq.url", "")
	v.SetDefault("events.rabbitmq.queue", events.DefaultRabbitMQQueue)
	v.SetDefault("events.rabbitmq.durable", false)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.outputs", []string{"stdout"})
	v.SetDefault("log.audit.enabled", false)
	v.SetDefault("log.audit.path", "")
	v.SetDefault("log.audit.max_size_mb", 100)
	v.SetDefault("log.audit.max_backups", 7)
	v.SetDefault("log.audit.max_age_days", 30)
	v.SetDefault("log.audit.compress", false)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
}

// Load 合并默认值、配置文件、环境变量与命令行参数，并校验结果。
func Load(opts Options) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if opts.File != "" {
		v.SetConfigFile(opts.File)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
	} else {
		v.SetConfigName("infogenai")
		v.AddConfigPath(".")
		v.AddConfigPath("configs")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !stdErrors.As(err, &notFound) {
				return nil, fmt.Errorf("读取配置文件失败: %w", err)
			}
		}
	}

	if opts.Flags != nil {
		for name, key := range flagKeys {
			if flag := opts.Flags.Lookup(name); flag != nil {
				if err := v.BindPFlag(key, flag); err != nil {
					return nil, fmt.Errorf("绑定参数 %s 失败: %w", name, err)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	cfg.File = v.ConfigFileUsed()
	baseDir, err := baseDirFor(cfg.File)
	if err != nil {
		return nil, err
	}
	cfg.applyDefaults(baseDir)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// baseDirFor 返回配置文件所在目录，无配置文件时返回可执行文件所在目录。
func baseDirFor(file string) (string, error) {
	if file != "" {
		abs, err := filepath.Abs(file)
		if err != nil {
			return "", fmt.Errorf("解析配置路径失败: %w", err)
		}
		return filepath.Dir(abs), nil
	}
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("定位可执行文件失败: %w", err)
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	return filepath.Dir(exe), nil
}

// applyDefaults 规范化字段并把相对路径转换为基于 baseDir 的路径。
func (c *Config) applyDefaults(baseDir string) {
	c.BaseDir = baseDir
	c.Log.Level = strings.ToLower(strings.TrimSpace(c.Log.Level))
	c.Log.Format = strings.ToLower(strings.TrimSpace(c.Log.Format))
	c.Events.Driver = strings.ToLower(strings.TrimSpace(c.Events.Driver))

	if ext := strings.TrimSpace(c.Agents.Extension); ext != "" && !strings.HasPrefix(ext, ".") {
		c.Agents.Extension = "." + ext
	}

	c.Agents.Dir = resolve(baseDir, c.Agents.Dir)
	if c.Agents.Manifest == "" {
		c.Agents.Manifest = filepath.Join(c.Agents.Dir, plugin.ManifestFile)
	} else {
		c.Agents.Manifest = resolve(baseDir, c.Agents.Manifest)
	}
	if c.Log.Audit.Path != "" {
		c.Log.Audit.Path = resolve(baseDir, c.Log.Audit.Path)
	}
}

func resolve(baseDir, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(baseDir, path)
}

// Validate 校验字段约束与跨字段规则。
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("配置校验失败: %w", err)
	}

	ev := c.EventsConfig()
	if err := ev.Validate(); err != nil {
		return fmt.Errorf("配置校验失败: %w", err)
	}
	for _, driver := range ev.Drivers() {
		switch {
		case driver == events.DriverRedis && c.Events.Redis.Address == "":
			return stdErrors.New("配置校验失败: events.redis.address 不能为空")
		case driver == events.DriverRabbitMQ && c.Events.RabbitMQ.URL == "":
			return stdErrors.New("配置校验失败: events.rabbitmq.url 不能为空")
		}
	}

	if c.Metrics.Enabled && c.Metrics.Path == "" {
		return stdErrors.New("配置校验失败: metrics.path 不能为空")
	}
	if c.Metrics.Enabled && c.Metrics.Path == c.Server.Path {
		return fmt.Errorf("配置校验失败: metrics.path 与 server.path 冲突 (%s)", c.Server.Path)
	}
	return nil
}

// EventsConfig 转换为事件包的配置。
func (c *Config) EventsConfig() events.Config {
	return events.Config{
		Driver: c.Events.Driver,
		Redis: events.RedisConfig{
			Address:  c.Events.Redis.Address,
			Password: c.Events.Redis.Password,
			DB:       c.Events.Redis.DB,
			Channel:  c.Events.Redis.Channel,
		},
		RabbitMQ: events.RabbitMQConfig{
			URL:     c.Events.RabbitMQ.URL,
			Queue:   c.Events.RabbitMQ.Queue,
			Durable: c.Events.RabbitMQ.Durable,
		},
	}
}

// LoggerConfig 转换为日志包的配置。
func (c *Config) LoggerConfig() logger.Config {
	return logger.Config{
		Level:       c.Log.Level,
		Format:      c.Log.Format,
		OutputPaths: c.Log.Outputs,
		Audit: logger.AuditConfig{
			Enabled:    c.Log.Audit.Enabled,
			Path:       c.Log.Audit.Path,
			MaxSizeMB:  c.Log.Audit.MaxSizeMB,
			MaxBackups: c.Log.Audit.MaxBackups,
			MaxAgeDays: c.Log.Audit.MaxAgeDays,
			Compress:   c.Log.Audit.Compress,
		},
	}
}
