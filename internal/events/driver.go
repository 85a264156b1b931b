package events

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// 支持的发布驱动。
const (
	DriverNone     = "none"
	DriverLog      = "log"
	DriverRedis    = "redis"
	DriverRabbitMQ = "rabbitmq"
)

// Config 选择事件驱动及其参数。Driver 可以用逗号组合多个驱动，例如 "log,redis"。
type Config struct {
	Driver   string
	Redis    RedisConfig
	RabbitMQ RabbitMQConfig
}

// Drivers 解析驱动列表，去除空白与重复项。
func (c Config) Drivers() []string {
	var drivers []string
	seen := make(map[string]struct{})
	for _, part := range strings.Split(c.Driver, ",") {
		name := strings.ToLower(strings.TrimSpace(part))
		if name == "" || name == DriverNone {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		drivers = append(drivers, name)
	}
	return drivers
}

// Validate 检查驱动名称是否受支持。
func (c Config) Validate() error {
	for _, d := range c.Drivers() {
		switch d {
		case DriverLog, DriverRedis, DriverRabbitMQ:
		default:
			return fmt.Errorf("不支持的事件驱动: %s", d)
		}
	}
	return nil
}

// New 根据驱动创建发布器，多个驱动时返回 Fanout。
func New(ctx context.Context, cfg Config, log *slog.Logger) (Publisher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	drivers := cfg.Drivers()
	if len(drivers) == 0 {
		return Nop{}, nil
	}

	publishers := make([]Publisher, 0, len(drivers))
	closeOpened := func() {
		for _, p := range publishers {
			_ = p.Close()
		}
	}
	for _, d := range drivers {
		var (
			p   Publisher
			err error
		)
		switch d {
		case DriverLog:
			p = NewLogPublisher(log)
		case DriverRedis:
			p, err = NewRedisPublisher(ctx, cfg.Redis)
		case DriverRabbitMQ:
			p, err = NewRabbitMQPublisher(cfg.RabbitMQ)
		}
		if err != nil {
			closeOpened()
			return nil, fmt.Errorf("初始化事件驱动 %s 失败: %w", d, err)
		}
		publishers = append(publishers, p)
	}

	if len(publishers) == 1 {
		return publishers[0], nil
	}
	return NewFanout(publishers...), nil
}
