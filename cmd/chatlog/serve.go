package main

import (
	"errors"
	"net/http"
	"os"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/comigor/chatlog-go/internal/logger"
	"github.com/comigor/chatlog-go/internal/metrics"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the conversation tools over MCP stdio",
		Long:  "Serve append/list/get/edit/delete/quick-action tools over MCP on stdin/stdout. Logs go to stderr.",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger.SetOutput(os.Stderr)

			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			if addr := a.cfg.Metrics.Addr; addr != "" {
				mux := http.NewServeMux()
				mux.Handle("/metrics", metrics.Handler())
				go func() {
					logger.L.Info("starting metrics server", "address", addr)
					if err := http.ListenAndServe(addr, mux); err != nil && !errors.Is(err, http.ErrServerClosed) {
						logger.L.Error("metrics server failed", "error", err)
					}
				}()
			}

			s := newToolServer(a.manager).mcpServer(Version)
			logger.L.Info("serving MCP over stdio")
			return server.ServeStdio(s)
		},
	}
}
