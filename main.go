package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/danielhkuo/taskflow/cliparse"
	"github.com/danielhkuo/taskflow/db"
	"github.com/danielhkuo/taskflow/mail"
	"github.com/danielhkuo/taskflow/router"
	"github.com/danielhkuo/taskflow/sessions"
)

const (
	purgeInterval   = time.Hour
	shutdownTimeout = 10 * time.Second
)

func main() {
	var err error

	// Parse configuration
	cfg, err := cliparse.ParseFlags(os.Args[1:])
	if err != nil {
		slog.Error("Error parsing flags", "error", err)
		os.Exit(1)
	}

	slog.SetDefault(newLogger(cfg))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Connect and verify
	dbConn, err := db.Open(ctx, cfg.DatabaseType, cfg.DatabaseURL)
	if err != nil {
		slog.Error("database connection failed", "error", err)
		os.Exit(1)
	}
	defer dbConn.Close()

	// Create schema (tables)
	if err := db.CreateSchema(ctx, dbConn); err != nil {
		slog.Error("schema creation failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database schema ready", "dialect", dbConn.Dialect)

	go sessions.NewStore(dbConn, cfg.SessionAge).RunPurger(ctx, purgeInterval)

	// Create server
	server := http.Server{
		Handler:           router.NewRouter(dbConn, cfg, mail.New(cfg)),
		Addr:              ":" + strconv.Itoa(cfg.Port),
		ReadHeaderTimeout: 10 * time.Second,
	}

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		// Wait for Ctrl-C signal
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("graceful shutdown failed", "error", err)
			server.Close()
		}
	}()

	// Start server
	slog.Info("Listening", "port", cfg.Port, "email_backend", cfg.EmailBackend)
	err = server.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server closed", "error", err)
	} else {
		<-shutdownDone
		slog.Info("Server closed")
	}
}

func newLogger(cfg cliparse.Config) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(cfg.LogLevel))); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	if cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
