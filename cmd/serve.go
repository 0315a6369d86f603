package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/olowe/batchmint-4337/controllers"
	"github.com/olowe/batchmint-4337/routes"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Run the HTTP API.

Routes:
  POST /deployments     deploy a batch of tokens (Accept: text/event-stream streams stages)
  GET  /deployments     list recorded attempts for the configured owner
  GET  /account         owner, smart account, deployment state and deposit
  GET  /account/tokens  tokens deployed by the smart account (on-chain logs)
  POST /userOp          relay an externally signed user operation
  GET  /health
  GET  /metrics

Examples:
  batchmint serve
  HTTP_ADDR=:9090 batchmint serve`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if !a.cfg.LogPretty {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())

	// 初始化路由
	routes.SetupRouter(r, a.registry)
	routes.SetupDeploymentRouter(r, controllers.NewDeploymentController(a.deployer, a.store, a.logger))
	routes.SetupAccountRouter(r, controllers.NewAccountController(a.deployer, a.logger))
	routes.SetupUserOpRouter(r, controllers.NewUserOpController(a.deployer, a.logger))

	srv := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info().Str("addr", srv.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	a.logger.Info().Msg("shutting down http server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
