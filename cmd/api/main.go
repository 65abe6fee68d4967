package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/hamed0406/sitehealth/internal/config"
	"github.com/hamed0406/sitehealth/internal/httpapi"
	"github.com/hamed0406/sitehealth/internal/logging"
	"github.com/hamed0406/sitehealth/internal/monitor"
)

func main() {
	cfgPath := flag.String("config", "", "path to a TOML config file (optional)")
	flag.Parse()

	_ = godotenv.Load() // .env is optional

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatal(err)
	}
	logger, err := logging.NewLogger(logging.Options{Dir: cfg.LogDir, Level: cfg.LogLevel, Console: cfg.LogConsole})
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	engine := monitor.NewFromConfig(cfg, logger)
	api := httpapi.NewServer(logger, engine, cfg.MaxBatch)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.Router(cfg.AllowedOrigins, cfg.PublicRPM, cfg.PublicBurst),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("api_listen",
			zap.String("addr", cfg.Addr),
			zap.String("worker_id", cfg.WorkerID),
			zap.Duration("timeout", cfg.Timeout()),
			zap.Bool("ping_privileged", cfg.PingPrivileged),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("api_listen_failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("api_shutdown")

	// in-flight checks may take a full probe timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Timeout()+5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("api_shutdown_failed", zap.Error(err))
	}
}
