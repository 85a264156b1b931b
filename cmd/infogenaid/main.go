// Command infogenaid runs the InfoGenAI agent gateway and its operator tools.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	configFile string
	envFile    string
)

// main 是网关守护进程的入口。
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "infogenaid 运行失败: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "infogenaid",
		Short: "InfoGenAI agent gateway",
		Long: `Loads agent plug-ins from a directory and serves the /infogenai endpoint,
which lists agents, prints the system prompt or runs every agent over an article.`,
		SilenceUsage: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return loadDotEnv(envFile)
		},
		RunE: runServe,
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&configFile, "config", "c", "", "configuration file path (default: ./infogenai.yaml or ./configs/infogenai.yaml)")
	flags.StringVar(&envFile, "env-file", ".env", "dotenv file loaded before configuration")
	flags.String("agents-dir", "", "agent plug-in directory")
	flags.String("manifest", "", "agent manifest file")
	flags.Bool("isolate-failures", false, "keep loading when an agent fails to load")
	flags.String("log-level", "", "log level (debug, info, warn, error)")
	flags.String("log-format", "", "log format (json, text)")

	root.Flags().AddFlagSet(serveFlags())

	root.AddCommand(newServeCmd(), newAgentsCmd(), newPromptCmd(), newSendCmd())
	return root
}

// loadDotEnv 加载 .env 文件，文件不存在时忽略。
func loadDotEnv(path string) error {
	if path == "" {
		return nil
	}
	err := godotenv.Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
