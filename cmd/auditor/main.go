// Package main provides the entry point for the poll audit service.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"poll-audit/internal/chain"
	"poll-audit/internal/config"
	"poll-audit/internal/ledger"
	"poll-audit/internal/logger"
	"poll-audit/internal/profiles"
	"poll-audit/internal/registry"
	"poll-audit/internal/server"
	votesync "poll-audit/internal/sync"

	dbpkg "poll-audit/internal/db"

	"github.com/joho/godotenv"
)

func main() {
	// Try to load .env from CWD if present; otherwise use environment as-is
	if _, statErr := os.Stat(".env"); statErr == nil {
		_ = godotenv.Load(".env")
	}

	cfg := config.Load()
	log := logger.New(cfg.Debug)

	fmt.Printf("Poll auditor starting...\n")
	fmt.Printf("Config loaded: %s\n", cfg.DebugString())

	gormDB, err := dbpkg.Open(cfg)
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}
	if gormDB != nil {
		log.Printf("DB connected")
		if err := dbpkg.AutoMigrate(gormDB); err != nil {
			log.Fatalf("failed to run migrations: %v", err)
		}
		log.Printf("Migrations applied")
	} else {
		log.Printf("DATABASE_URL not provided – persistence disabled")
	}

	reg := registry.New(gormDB)
	if err := reg.Hydrate(); err != nil {
		log.Fatalf("failed to load polls: %v", err)
	}
	led := ledger.New(gormDB, reg)
	if err := led.Hydrate(); err != nil {
		log.Fatalf("failed to load vote audits: %v", err)
	}

	source := chain.NewClient(cfg.NodeURL)
	resolver := profiles.NewResolver(cfg.NodeURL)
	syn := votesync.New(source, reg, led, resolver, log)

	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: server.New(cfg, reg, led, syn).Router(),
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	go func() {
		fmt.Printf("Listening on %s\n", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("server stopped: %v", err)
			cancel()
		}
	}()

	<-ctx.Done()
	log.Println("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}
