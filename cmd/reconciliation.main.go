package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"reconciliation-service/internal/config"
	"reconciliation-service/internal/server"

	"github.com/joho/godotenv"
)

func main() {
	// Load .env (optional)
	if err := godotenv.Load(); err != nil {
		log.Println("Reconciliation: No .env file found, relying on system env vars")
	}

	// Load config
	cfg := config.Load()

	// Start the reconciliation server in a goroutine
	errCh := make(chan error, 1)
	serverDone := make(chan struct{})

	go func() {
		defer close(serverDone)
		log.Printf("🌍 Reconciliation server starting on %s (REST) / %s (gRPC)", cfg.HTTPAddr, cfg.GRPCAddr)
		if err := server.NewReconciliationServer(cfg); err != nil {
			errCh <- err
		}
	}()

	// Handle graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		log.Println("🛑 Reconciliation service shutting down gracefully...")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		// Cleanup handled by deferred closes in the server
		<-ctx.Done()

	case err := <-errCh:
		log.Fatalf("❌ Reconciliation service failed: %v", err)

	case <-serverDone:
		log.Println("✅ Reconciliation service stopped")
	}
}
