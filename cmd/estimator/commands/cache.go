package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/surveyprogress/internal/coordinator"
	"github.com/wonny/surveyprogress/pkg/httputil"
)

// cacheCmd represents the cache command
var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "실행 중인 API 서버의 추정 캐시 관리",
	Long: `실행 중인 API 서버의 추정 결과 캐시를 조회하거나 삭제합니다.

Example:
  go run ./cmd/estimator cache stats
  go run ./cmd/estimator cache clear --server http://localhost:8089`,
}

var (
	cacheServer string

	cacheStatsCmd = &cobra.Command{
		Use:   "stats",
		Short: "캐시 통계 조회",
		RunE:  showCacheStats,
	}

	cacheClearCmd = &cobra.Command{
		Use:   "clear",
		Short: "캐시 삭제 (메모리 + Redis)",
		RunE:  clearCache,
	}
)

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cacheStatsCmd)
	cacheCmd.AddCommand(cacheClearCmd)

	cacheCmd.PersistentFlags().StringVar(&cacheServer, "server", "", "API 서버 주소 (기본: http://localhost:PORT)")
}

// serverClient resolves the server address and an HTTP client for it
func serverClient() (*httputil.Client, string, error) {
	cfg, log, err := loadConfig()
	if err != nil {
		return nil, "", err
	}

	base := cacheServer
	if base == "" {
		base = "http://localhost:" + cfg.Port
	}
	return httputil.New(log, 10*time.Second).DisableRetry(), strings.TrimRight(base, "/"), nil
}

func showCacheStats(cmd *cobra.Command, args []string) error {
	client, base, err := serverClient()
	if err != nil {
		return err
	}

	var stats coordinator.CacheStats
	if err := client.GetJSON(cmd.Context(), base+"/api/cache/stats", &stats); err != nil {
		return fmt.Errorf("fetch cache stats: %w", err)
	}

	fmt.Println("Estimate cache:")
	fmt.Printf("   Entries: %d (fresh %d, expired %d)\n", stats.Entries, stats.Fresh, stats.Expired)
	fmt.Printf("   Hits: %d (remote %d)\n", stats.Hits, stats.RemoteHits)
	fmt.Printf("   Misses: %d\n", stats.Misses)
	fmt.Printf("   Hit Rate: %.1f%%\n", stats.HitRate*100)
	fmt.Printf("   TTL: %s\n", time.Duration(stats.TTLSeconds*float64(time.Second)))
	return nil
}

func clearCache(cmd *cobra.Command, args []string) error {
	client, base, err := serverClient()
	if err != nil {
		return err
	}

	var resp struct {
		Removed int `json:"removed"`
	}
	if err := client.DeleteJSON(cmd.Context(), base+"/api/cache", &resp); err != nil {
		return fmt.Errorf("clear cache: %w", err)
	}

	fmt.Printf("✅ Removed %d cached results\n", resp.Removed)
	return nil
}
