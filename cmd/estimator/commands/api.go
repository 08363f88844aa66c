package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/surveyprogress/internal/api"
	"github.com/wonny/surveyprogress/internal/api/handlers"
)

// apiCmd represents the api command
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "API 서버 시작",
	Long: `REST API 서버를 시작합니다.

Endpoints:
  GET    /health                       - Health check
  POST   /api/estimate                 - 추정 (JSON 요청)
  GET    /api/estimate/quick           - 빠른 추정 (?target=&current=)
  POST   /api/estimate/batch           - 항목 일괄 추정
  GET    /api/items/{item}/estimate    - 도엽 추정
  GET    /api/cache/stats              - 캐시 통계
  DELETE /api/cache                    - 캐시 삭제
  GET    /ws/estimate                  - 실시간 추정 (WebSocket)

Example:
  go run ./cmd/estimator api
  go run ./cmd/estimator api --port 8089 --with-scheduler`,
	RunE: runAPIServer,
}

var (
	apiPort          string
	apiWithScheduler bool
)

func init() {
	rootCmd.AddCommand(apiCmd)

	// Flags
	apiCmd.Flags().StringVar(&apiPort, "port", "", "API 서버 포트 (기본: PORT)")
	apiCmd.Flags().BoolVar(&apiWithScheduler, "with-scheduler", false, "캐시 정리/워밍업 스케줄러 함께 실행")
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	fmt.Println("=== Survey Progress API Server ===")

	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	// Override port if flag is set
	if apiPort != "" {
		a.cfg.Port = apiPort
	}

	log := a.log
	log.WithFields(map[string]interface{}{
		"port": a.cfg.Port,
		"env":  a.cfg.Env,
	}).Info("Initializing API server")

	estimateHandler := handlers.NewEstimateHandler(a.facade, a.coord, log)
	streamHandler := handlers.NewStreamHandler(a.facade, log)

	var checks []api.RouterOption
	if a.db != nil {
		checks = append(checks, api.WithHealthCheck("database", func(ctx context.Context) error {
			_, err := a.db.HealthCheck(ctx)
			return err
		}))
	}
	if a.redis != nil {
		checks = append(checks, api.WithHealthCheck("redis", a.redis.Ping))
	}

	router := api.NewRouter(estimateHandler, streamHandler, log, checks...)
	server := api.New(a.cfg, log, router)

	if apiWithScheduler {
		sched, err := a.newScheduler()
		if err != nil {
			return fmt.Errorf("init scheduler: %w", err)
		}
		sched.Start()
		defer sched.Stop()
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	log.Info("API server started successfully")
	fmt.Printf("\n✅ Server running on http://localhost%s\n", server.Addr())
	fmt.Println("\nPress Ctrl+C to stop")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	select {
	case <-quit:
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	}

	log.Info("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	log.Info("Server stopped")
	return nil
}
