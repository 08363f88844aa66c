package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	configFile     string
	sourceKind     string
	sourceLocation string
	verbose        bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "estimator",
	Short: "측량 진척도 완료일 추정",
	Long: `Survey Progress Estimator

일일 측량 실적(도엽/점 수)으로 목표 달성일을 추정합니다.
네 가지 추정 방식(단순 평균, 가중 평균, 선형 회귀, 몬테카를로)을
신뢰도 기반 앙상블로 통합합니다.

Data sources (--source):
  db    - PostgreSQL progress.daily_records (DATABASE_URL)
  http  - JSON feed (PROGRESS_FEED_URL or --location)
  html  - 진척 보고서 페이지의 table.progress (--location)
  file  - 로컬 JSON/YAML 파일 (--location, 확장자로 구분)

Usage:
  go run ./cmd/estimator [command]

Examples:
  go run ./cmd/estimator estimate --target 1200
  go run ./cmd/estimator estimate --target 300 --item sheet-12 --mode mapsheet
  go run ./cmd/estimator estimate --source file --location progress.yaml --target 1200 -o json
  go run ./cmd/estimator api
  go run ./cmd/estimator scheduler start`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "env file (default is .env)")
	rootCmd.PersistentFlags().StringVar(&sourceKind, "source", "", "progress source: db|http|html|file (default: db if DATABASE_URL is set, else http)")
	rootCmd.PersistentFlags().StringVar(&sourceLocation, "location", "", "source URL or file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
}
