package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"querai-chat/internal/app"
	"querai-chat/internal/handler"
	"querai-chat/pkg/logger"
)

func newServeCommand(opts *options) *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the chat core over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			if port > 0 {
				cfg.Server.Port = port
			}

			a, err := app.New(cfg)
			if err != nil {
				return err
			}
			defer func() {
				if err := a.Close(); err != nil {
					logger.Errorf("close: %v", err)
				}
			}()
			if err := a.Start(cmd.Context()); err != nil {
				return err
			}

			gin.SetMode(gin.ReleaseMode)
			router := handler.NewRouter(cfg, handler.NewChatHandler(a))

			server := &http.Server{
				Addr:           fmt.Sprintf(":%d", cfg.Server.Port),
				Handler:        router,
				ReadTimeout:    cfg.Server.ReadTimeout,
				WriteTimeout:   cfg.Server.WriteTimeout,
				MaxHeaderBytes: cfg.Server.MaxHeaderBytes,
			}

			errCh := make(chan error, 1)
			go func() {
				logger.Infof("listening on port %d", cfg.Server.Port)
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			quit := make(chan os.Signal, 1)
			signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
			defer signal.Stop(quit)

			select {
			case err := <-errCh:
				if err != nil {
					return fmt.Errorf("server failed: %w", err)
				}
			case <-quit:
			}

			logger.Info("shutting down")
			// Ends open event streams so Shutdown does not wait on them.
			a.Bus.Close()
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := server.Shutdown(ctx); err != nil {
				logger.Errorf("shutdown failed: %v", err)
				return server.Close()
			}
			logger.Info("server stopped")
			return nil
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 0, "override server.port")
	return cmd
}
