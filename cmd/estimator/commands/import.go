package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wonny/surveyprogress/internal/progress"
	"github.com/wonny/surveyprogress/pkg/database"
)

// importCmd represents the import command
var importCmd = &cobra.Command{
	Use:   "import [file.json|file.yaml]",
	Short: "일일 실적 JSON/YAML 파일을 DB로 적재",
	Long: `항목별 일일 실적 JSON/YAML 파일을 progress.daily_records 테이블에 적재합니다.
같은 (항목, 날짜)는 덮어씁니다.

File format:
  {"sheet-1": [{"date": "2024-03-01", "daily_points": 12, "teams_active": 3}]}

Example:
  go run ./cmd/estimator import progress.json`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func init() {
	rootCmd.AddCommand(importCmd)
}

func runImport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	src, err := progress.LoadFile(args[0])
	if err != nil {
		return err
	}

	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}

	db, err := database.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	repo := progress.NewRepository(db.Pool)
	if err := repo.EnsureSchema(ctx); err != nil {
		return err
	}

	total := 0
	for _, item := range src.Items() {
		records := src.Records(item)
		if err := repo.SaveRecords(ctx, item, records); err != nil {
			return fmt.Errorf("import %s: %w", item, err)
		}
		total += len(records)
		log.WithFields(map[string]interface{}{
			"item_id": item,
			"records": len(records),
		}).Info("Imported progress records")
	}

	fmt.Printf("✅ Imported %d records for %d items\n", total, len(src.Items()))
	return nil
}
