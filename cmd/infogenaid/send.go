package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"infogenai/sdk/go/infogenai"
)

// defaultServer 可以通过 INFOGENAI_SERVER_URL 覆盖。
const defaultServer = "http://127.0.0.1:5000"

func newSendCmd() *cobra.Command {
	var (
		server string
		path   string
	)
	cmd := &cobra.Command{
		Use:   "send <text...>",
		Short: "Send a command or article to a running gateway",
		Example: `  infogenaid send list_agents
  infogenaid send --server http://gateway:5000 "Article text to analyze"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if server == "" {
				server = os.Getenv("INFOGENAI_SERVER_URL")
			}
			if server == "" {
				server = defaultServer
			}
			client, err := infogenai.NewClient(server, infogenai.WithPath(path))
			if err != nil {
				return err
			}

			resp, err := client.Send(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			if resp.RequestID != "" {
				fmt.Fprintf(cmd.ErrOrStderr(), "request id: %s\n", resp.RequestID)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), resp.Text)
			return err
		},
	}
	cmd.Flags().StringVar(&server, "server", "", "gateway base URL (default "+defaultServer+")")
	cmd.Flags().StringVar(&path, "path", infogenai.DefaultPath, "dispatch endpoint path")
	return cmd
}
