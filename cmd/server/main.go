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

	"github.com/AbdoElsaed/ufd/api"
	"github.com/AbdoElsaed/ufd/internal/app"
	"github.com/AbdoElsaed/ufd/internal/infrastructure"
	"github.com/AbdoElsaed/ufd/pkg/logger"
)

var configPath = flag.String("config", "", "Path to config file")

func main() {
	flag.Parse()

	config, err := app.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:      config.Logging.Level,
		Format:     config.Logging.Format,
		OutputPath: config.Logging.OutputPath,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("Starting UFD background daemon",
		zap.String("host", config.Server.Host),
		zap.Int("port", config.Server.Port),
		zap.String("backend", config.Backend.BaseURL))

	if err := os.MkdirAll(config.Download.Dir, 0755); err != nil {
		log.Fatal("Failed to create downloads directory", zap.Error(err))
	}

	history, err := infrastructure.NewSQLiteHistoryRepository(config.History.DatabasePath)
	if err != nil {
		log.Fatal("Failed to open history database", zap.Error(err))
	}
	defer history.Close()

	cookieStore := infrastructure.NewFileCookieStore(config.Cookies.File, log)
	if !cookieStore.Available() {
		log.Warn("Cookie file not available, requests will be unauthenticated",
			zap.String("path", config.Cookies.File))
	}

	backend := infrastructure.NewBackendClient(config.Backend, log)
	aggregator := app.NewCookieAggregator(cookieStore, log)
	orchestrator := app.NewDownloadOrchestrator(backend, config.Download, log)
	tabs := infrastructure.NewFileTabProvider(config.Tab.StateFile)

	msgRouter := app.NewMessageRouter(
		aggregator,
		backend,
		orchestrator,
		tabs,
		history,
		cookieStore,
		config.Backend,
		log,
	)

	router := api.SetupRouter(msgRouter, history, log)

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
	log.Info("Shutting down daemon...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Daemon exited")
}
