package main

import (
	"context"
	"errors"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"infogenai/internal/api"
	"infogenai/internal/dispatch"
	"infogenai/internal/events"
	"infogenai/internal/observability/metrics"
	"infogenai/pkg/logger"
)

// serveFlags 返回仅对服务进程有意义的参数。
func serveFlags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("serve", pflag.ContinueOnError)
	fs.String("address", "", "listen address, e.g. 0.0.0.0:5000")
	fs.Bool("watch", false, "watch the agent directory and flag the registry as stale on change")
	fs.Duration("agent-timeout", 0, "per-agent processing timeout (0 disables)")
	fs.Bool("continue-on-error", false, "run every agent even after a failure")
	fs.Bool("legacy-status", true, "answer 200 for every dispatch outcome")
	fs.String("events", "", "dispatch event drivers: none, log, redis, rabbitmq (comma separated)")
	return fs
}

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP gateway",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
	cmd.Flags().AddFlagSet(serveFlags())
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := logger.Init(cfg.LoggerConfig()); err != nil {
		return err
	}
	defer logger.Sync()
	log := logger.Named("infogenaid")
	if cfg.File != "" {
		log.Info("已加载配置文件", slog.String("path", cfg.File))
	}

	reg, err := buildRegistry(cfg)
	if err != nil {
		return err
	}
	if cfg.Agents.Watch {
		if err := reg.Watch(ctx, cfg.Agents.Dir); err != nil {
			log.Warn("监听代理目录失败", slog.Any("error", err))
		}
	}

	var m *metrics.Metrics
	metricsPath := ""
	if cfg.Metrics.Enabled {
		m = metrics.New()
		m.SetAgents(reg.Len())
		metricsPath = cfg.Metrics.Path
	}

	publisher, err := events.New(ctx, cfg.EventsConfig(), logger.Named("events"))
	if err != nil {
		return err
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			log.Warn("关闭事件发布器失败", slog.Any("error", err))
		}
	}()

	d := dispatch.New(reg,
		dispatch.WithAgentTimeout(cfg.Dispatch.AgentTimeout),
		dispatch.WithContinueOnError(cfg.Dispatch.ContinueOnError),
		dispatch.WithPublisher(publisher),
		dispatch.WithObserver(m),
	)

	srv := api.NewServer(api.Options{
		Address:         cfg.Server.Address,
		Path:            cfg.Server.Path,
		LegacyStatus:    cfg.Server.LegacyStatus,
		MaxBodyBytes:    cfg.Server.MaxBodyBytes,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		MetricsPath:     metricsPath,
	}, d, reg, m, logger.Named("api"))

	if err := srv.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info("服务已停止")
	return nil
}
