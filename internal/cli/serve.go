package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/devagency/internal/apiserver"
	"github.com/effective-security/xlog"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func newServeCmd(a *app) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the agency API server",
		Long:  "Start the REST API server to chat with the agents, call the tools and browse the chats.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, closer, err := a.openStore()
			if err != nil {
				return err
			}
			defer closer()

			ag, registry, err := a.newAgency(st)
			if err != nil {
				return err
			}

			srv := apiserver.NewServer(addr, ag, registry, st)

			out := cmd.OutOrStdout()
			banner := color.New(color.FgCyan, color.Bold)
			if a.noColor {
				banner.DisableColor()
			}
			banner.Fprintln(out, ag.Name())
			fmt.Fprintf(out, "   API Server: http://%s\n", srv.Addr())
			fmt.Fprintf(out, "   Entry:      %s\n", ag.Entry())
			fmt.Fprintf(out, "   Store:      %s\n", a.storeType)
			fmt.Fprintln(out)

			errCh := make(chan error, 1)
			go func() {
				if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
			}()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			defer signal.Stop(sigCh)

			select {
			case sig := <-sigCh:
				logger.KV(xlog.INFO, "status", "shutdown_signal", "signal", sig.String())
			case err := <-errCh:
				logger.KV(xlog.ERROR, "status", "server_failed", "err", err.Error())
				return err
			case <-cmd.Context().Done():
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.KV(xlog.ERROR, "status", "shutdown_failed", "err", err.Error())
			}
			logger.KV(xlog.INFO, "status", "stopped")
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:7117", "API server address")
	return cmd
}
