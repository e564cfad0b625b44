package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/esg-scorer/internal/api"
)

var (
	servePort    int
	serveNoStore bool
)

// version is stamped at build time.
var version = "dev"

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the scoring and scenario API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if servePort != 0 {
			cfg.Server.Port = servePort
		}

		env, err := initEnv(ctx, "serve", nil, !serveNoStore)
		if err != nil {
			return err
		}
		env.Cache = initCache()
		defer env.Close()

		h := api.NewHandler(api.Deps{
			Settings: cfg.Scoring,
			Bands:    env.Bands,
			Runner:   env.Runner,
			Store:    env.Store,
			Cache:    env.Cache,
			CacheTTL: cfg.Cache.TTL(),
			Defaults: scenarioDefaults(),
			Version:  version,
		})
		srv := api.NewServer(api.ServerConfig{
			Port:               cfg.Server.Port,
			CORSOrigins:        cfg.Server.CORSOrigins,
			ScenarioRatePerSec: cfg.Server.ScenarioRatePerSec,
			ScenarioBurst:      cfg.Server.ScenarioBurst,
		}, h)

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			timeout := time.Duration(cfg.Server.ShutdownTimeoutSecs) * time.Second
			shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				zap.L().Error("server shutdown", zap.Error(err))
			}
		}()

		zap.L().Info("starting server",
			zap.Int("port", cfg.Server.Port),
			zap.String("bands_source", env.Bands.Metadata().Source),
			zap.Bool("store", env.Store != nil),
		)
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	serveCmd.Flags().BoolVar(&serveNoStore, "no-store", false, "serve without a store (no run history)")
	rootCmd.AddCommand(serveCmd)
}
