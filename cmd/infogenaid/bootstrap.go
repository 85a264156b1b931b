package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"infogenai/internal/config"
	xerrors "infogenai/internal/errors"
	"infogenai/pkg/logger"
	"infogenai/pkg/plugin"
)

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(config.Options{File: configFile, Flags: cmd.Flags()})
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeInvalidArgument, err, "加载配置失败")
	}
	return cfg, nil
}

// buildRegistry 读取清单并加载插件目录，返回已封存的注册表。
func buildRegistry(cfg *config.Config) (*plugin.Registry, error) {
	log := logger.Named("registry")
	manifest, err := plugin.LoadManifest(cfg.Agents.Manifest)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeAgentLoadFailed, err, "加载代理清单失败")
	}

	reg := plugin.NewRegistry(
		plugin.WithManifest(manifest),
		plugin.WithExtension(cfg.Agents.Extension),
		plugin.WithFailureIsolation(cfg.Agents.IsolateFailures),
		plugin.WithLogger(log),
	)
	if err := reg.LoadDir(cfg.Agents.Dir); err != nil {
		return nil, xerrors.Wrap(xerrors.CodeAgentLoadFailed, err, "",
			xerrors.WithMetadata("dir", cfg.Agents.Dir))
	}
	for _, failure := range reg.Failures() {
		log.Warn("代理加载失败，已跳过",
			slog.String("agent", failure.Name),
			slog.String("stage", failure.Stage),
			slog.Any("error", failure.Err),
		)
	}
	reg.Seal()

	log.Info("代理加载完成", slog.Int("agents", reg.Len()), slog.String("dir", cfg.Agents.Dir))
	return reg, nil
}

// initToolLogger 为非服务命令配置日志，输出到 stderr 以免干扰标准输出。
func initToolLogger(cfg *config.Config) error {
	lc := cfg.LoggerConfig()
	lc.OutputPaths = []string{"stderr"}
	lc.Audit.Enabled = false
	return logger.Init(lc)
}
