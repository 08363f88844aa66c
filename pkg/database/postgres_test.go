package database

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/wonny/surveyprogress/pkg/config"
)

func TestNew_NotConfigured(t *testing.T) {
	_, err := New(context.Background(), &config.Config{})
	if err == nil {
		t.Fatal("Expected error without DATABASE_URL")
	}
}

func TestNew_InvalidURL(t *testing.T) {
	cfg := &config.Config{Database: config.DatabaseConfig{URL: "://not a url", MaxConns: 2}}
	if _, err := New(context.Background(), cfg); err == nil {
		t.Fatal("Expected parse error")
	}
}

func TestHealthCheck(t *testing.T) {
	// Skip if DATABASE_URL is not set
	if os.Getenv("DATABASE_URL") == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db, err := New(ctx, cfg)
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	defer db.Close()

	status, err := db.HealthCheck(ctx)
	if err != nil {
		t.Fatalf("HealthCheck failed: %v", err)
	}
	if !status.Healthy {
		t.Error("Expected database to be healthy")
	}
	if status.Stats.MaxConns != int32(cfg.Database.MaxConns) {
		t.Errorf("Expected MaxConns=%d, got %d", cfg.Database.MaxConns, status.Stats.MaxConns)
	}
}
