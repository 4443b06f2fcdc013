package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/toseeq44/automation-fb-sub003/api"
	"github.com/toseeq44/automation-fb-sub003/api/handlers"
	"github.com/toseeq44/automation-fb-sub003/internal/app"
	"github.com/toseeq44/automation-fb-sub003/internal/domain"
	"github.com/toseeq44/automation-fb-sub003/internal/infrastructure"
	"github.com/toseeq44/automation-fb-sub003/pkg/logger"
)

const version = "1.0.0"

var (
	configPath = flag.String("config", "", "Config file path")
	host       = flag.String("host", "", "Override the listen host")
	port       = flag.Int("port", 0, "Override the listen port")
)

func main() {
	flag.Parse()

	config, err := app.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *host != "" {
		config.Server.Host = *host
	}
	if *port != 0 {
		config.Server.Port = *port
	}

	if err := createDirectories(config); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create directories: %v\n", err)
		os.Exit(1)
	}

	multiLog, err := logger.NewMultiLogger(logger.MultiLoggerConfig{
		Level:   config.Logging.Level,
		LogsDir: config.Download.LogsDir,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer multiLog.Close()

	log := multiLog.Server()
	log.Info("Starting grab server",
		zap.String("version", version),
		zap.String("host", config.Server.Host),
		zap.Int("port", config.Server.Port),
		zap.String("output_dir", config.Download.OutputDir),
		zap.Bool("archive", config.Archive.Enabled))

	table, err := app.LoadStrategyTable(config)
	if err != nil {
		log.Fatal("Failed to load strategy table", zap.Error(err))
	}

	tracker, err := infrastructure.NewTracker(config.Download.DataDir)
	if err != nil {
		log.Fatal("Failed to open download tracker", zap.Error(err))
	}
	defer tracker.Close()

	var archive *infrastructure.RunArchive
	if config.Archive.Enabled {
		archive, err = infrastructure.NewRunArchive(config.Archive.DatabasePath)
		if err != nil {
			log.Fatal("Failed to open run archive", zap.Error(err))
		}
		defer archive.Close()
	}

	hub := handlers.NewEventHub(log)

	deps := app.EngineDeps{
		Downloaders: app.NewToolRegistry(&config.Tools),
		Table:       table,
		Cookies:     infrastructure.NewCookieResolver(config.Download.CookiesDir),
		Classifier:  infrastructure.NewFailureClassifier(config.Signatures.Block, config.Signatures.Auth),
		Tracker:     tracker,
		Notifier:    infrastructure.NewNotificationService(&config.Notification, multiLog.Run()),
		Sink:        domain.CombineSinks(app.NewLogSink(multiLog), hub),
		Logger:      multiLog.Run(),
	}
	if archive != nil {
		deps.Archiver = archive
	}
	engine := app.NewEngine(config, deps)

	router := api.SetupRouter(api.Deps{
		Engine:  engine,
		Archive: archive,
		Tracker: tracker,
		Hub:     hub,
		LogsDir: config.Download.LogsDir,
		Version: version,
		Logger:  log,
	})

	addr := fmt.Sprintf("%s:%d", config.Server.Host, config.Server.Port)
	server := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		log.Info("HTTP server listening", zap.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Received shutdown signal")

	// Stop the active run first so its summary still reaches the tracker
	// and the archive. Cancellation is cooperative; give the URL in
	// flight a bounded window to finish.
	drainActiveRun(engine, log)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited")
}

func drainActiveRun(engine *app.Engine, log *zap.Logger) {
	if err := engine.Cancel(); err != nil {
		return
	}
	status, ok := engine.Snapshot()
	if !ok {
		return
	}

	done := make(chan struct{})
	go func() {
		engine.Wait(status.RunID)
		close(done)
	}()
	select {
	case <-done:
		log.Info("Active run stopped", zap.String("run_id", status.RunID))
	case <-time.After(30 * time.Second):
		log.Warn("Active run still draining at shutdown", zap.String("run_id", status.RunID))
	}
}

func createDirectories(config *domain.Config) error {
	dirs := []string{
		config.Download.OutputDir,
		config.Download.DataDir,
		config.Download.CookiesDir,
		config.Download.LogsDir,
	}
	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}
