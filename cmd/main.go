package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"duplex/auth"
	"duplex/internal"
	"duplex/moderation"
	"duplex/observability"
	"duplex/repositories"
	"duplex/runtime"
	"duplex/runtime/workers"
	"duplex/services"
	"duplex/transport/ws"

	"github.com/Netflix/go-env"
	"github.com/blugelabs/bluge"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run initializes all components, manages the server lifecycle, and
// centralizes error reporting, so every defer (database cleanup included)
// executes before the process exits.
func run() error {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	// 2. Storage (BadgerDB + Bluge)
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
		WithLoggingLevel(badger.WARNING))
	if err != nil {
		return fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	blugeWriter, err := bluge.OpenWriter(bluge.DefaultConfig(config.BlugeFilepath))
	if err != nil {
		return fmt.Errorf("failed to open bluge writer: %w", err)
	}
	defer func() {
		log.Info("Closing Bluge...")
		_ = blugeWriter.Close()
	}()

	// 3. Core components
	stats := observability.NewStats()
	store := repositories.NewStore(db, log, config.LimitMessages)
	index := repositories.NewMessageIndex(blugeWriter, log)

	var moderator *moderation.Moderator
	if words := config.CensoredWordList(); len(words) > 0 {
		replacement, err := internal.CharacterRune(config.CharReplacement)
		if err != nil {
			return err
		}
		if moderator, err = moderation.NewModerator(words, replacement, log); err != nil {
			return fmt.Errorf("moderation setup failed: %w", err)
		}
	}

	registry := runtime.NewConnectionRegistry()
	rooms := runtime.NewRoomManager(log, registry, stats)
	presence := runtime.NewPresenceCoordinator(log, registry)
	typing := runtime.NewTypingCoordinator(log, rooms, stats, config.TypingExpiry)
	receipts := runtime.NewReceiptEngine(log, store, rooms, stats)
	pipeline := runtime.NewIngestionPipeline(log, store, rooms, registry, receipts, index, moderator, stats)

	sup := workers.NewSupervisor(log, config.RestartInterval)
	orchestrator := runtime.NewOrchestrator(log, sup, registry, rooms,
		presence, typing, receipts, pipeline, store, stats)

	// 4. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 5. Start the engine and its supervised workers
	orchestrator.Start(ctx,
		runtime.NewTypingSweeper(log, typing, config.TypingSweepInterval),
		workers.NewHealthMonitoringWorker(log, stats, config.MetricInterval),
	)

	// 6. HTTP / websocket surface
	authenticator := auth.NewTokenAuthenticator([]byte(config.JWTSecret))
	service := services.NewSyncService(orchestrator)
	origins := strings.Split(config.AllowedOrigins, ",")
	server := ws.NewServer(log, service, authenticator, stats, origins, config.ConnectionBufferSize)

	address := fmt.Sprintf("%s:%d", config.Host, config.Port)
	httpServer := &http.Server{Addr: address, Handler: server.Router(origins)}

	errChan := make(chan error, 1)
	go func() {
		log.Info("Starting websocket server", "address", address, "at", time.Now().UTC())
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("http server error: %w", err)
		}
	}()

	// 7. Wait for stop or error
	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
	case err := <-errChan:
		return err
	}

	// 8. Final cleanup
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = httpServer.Shutdown(shutdownCtx)
	orchestrator.Stop()
	log.Info("Program stopped cleanly")

	return nil
}
