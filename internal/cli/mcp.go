package cli

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"pulsecheck/internal/mcpserver"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the MCP tools over stdio",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		// stdout carries the protocol; logs stay on stderr.
		ctx := cmd.Context()
		client, repo, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer client.Close()

		srv, err := mcpserver.NewServer(getConfig(), client, repo)
		if err != nil {
			return err
		}
		defer func() {
			cctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Close(cctx); err != nil {
				log.WithError(err).Warn("mcp server close failed")
			}
		}()

		return srv.Start(ctx)
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
