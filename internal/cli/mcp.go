package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/effective-security/devagency/mcp"
	"github.com/metoro-io/mcp-golang/transport/stdio"
	"github.com/spf13/cobra"
)

func newMCPCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the tools over MCP on stdio",
		Long: `Start a Model Context Protocol server on stdin and stdout, so that
MCP clients can list and call the agent tools. The logs are written to stderr.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			registry, err := a.registry()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			tr := stdio.NewStdioServerTransportWithIO(cmd.InOrStdin(), cmd.OutOrStdout())
			return mcp.Serve(ctx, tr, registry)
		},
	}
}
