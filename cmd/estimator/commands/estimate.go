package commands

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/surveyprogress/internal/contracts"
	"github.com/wonny/surveyprogress/internal/facade"
	"github.com/wonny/surveyprogress/internal/report"
)

// estimateCmd represents the estimate command
var estimateCmd = &cobra.Command{
	Use:   "estimate",
	Short: "완료일 추정",
	Long: `목표 점수까지 남은 작업량의 완료일을 추정합니다.

단일 추정 (--target), 여러 작업 항목 일괄 추정 (--items),
또는 기간 내 모든 항목 추정 (--all-items, db/file 소스)을 지원합니다.

Modes (--mode):
  basic      - 추정 결과만 (기본)
  advanced   - burndown 포함
  mapsheet   - 특정 도엽 (--item 필수)
  real_time  - 캐시 우회

Example:
  go run ./cmd/estimator estimate --target 1200
  go run ./cmd/estimator estimate --target 1200 --current 850 --mode advanced
  go run ./cmd/estimator estimate --items sheet-1:300,sheet-2:450 -o json
  go run ./cmd/estimator estimate --all-items --target 300`,
	RunE: runEstimate,
}

var (
	estTarget     float64
	estCurrent    float64
	estItem       string
	estMode       string
	estConfidence float64
	estStart      string
	estEnd        string
	estNoCache    bool
	estOutput     string
	estItems      string
	estAllItems   bool
	estTimeout    time.Duration
)

func init() {
	rootCmd.AddCommand(estimateCmd)

	// Flags
	estimateCmd.Flags().Float64Var(&estTarget, "target", 0, "목표 점수 (target points)")
	estimateCmd.Flags().Float64Var(&estCurrent, "current", 0, "현재 누적 점수 (생략 시 기간 합계)")
	estimateCmd.Flags().StringVar(&estItem, "item", "", "작업 항목(도엽) ID")
	estimateCmd.Flags().StringVar(&estMode, "mode", "", "basic|advanced|mapsheet|real_time (기본: ESTIMATION_MODE)")
	estimateCmd.Flags().Float64Var(&estConfidence, "confidence", 0, "신뢰 수준 0-1 (기본: ESTIMATION_CONFIDENCE_LEVEL)")
	estimateCmd.Flags().StringVar(&estStart, "start", "", "기간 시작일 (YYYY-MM-DD)")
	estimateCmd.Flags().StringVar(&estEnd, "end", "", "기간 종료일 (YYYY-MM-DD)")
	estimateCmd.Flags().BoolVar(&estNoCache, "no-cache", false, "결과 캐시 우회")
	estimateCmd.Flags().StringVarP(&estOutput, "output", "o", "table", "table|json")
	estimateCmd.Flags().StringVar(&estItems, "items", "", "일괄 추정: item:target,item:target")
	estimateCmd.Flags().BoolVar(&estAllItems, "all-items", false, "기간 내 모든 항목 추정 (--target 공통 적용)")
	estimateCmd.Flags().DurationVar(&estTimeout, "timeout", 2*time.Minute, "전체 실행 제한 시간")
}

func runEstimate(cmd *cobra.Command, args []string) error {
	format, err := report.ParseFormat(estOutput)
	if err != nil {
		return err
	}

	req, err := buildRequest(cmd)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), estTimeout)
	defer cancel()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	switch {
	case estItems != "" || estAllItems:
		batch, err := a.batchRequests(ctx, req)
		if err != nil {
			return err
		}
		results, err := a.facade.Batch(ctx, batch)
		if err != nil {
			return err
		}
		return report.WriteBatch(os.Stdout, format, results)

	default:
		result, err := a.facade.Estimate(ctx, req)
		if err != nil {
			return fmt.Errorf("estimate: %w", err)
		}
		return report.Write(os.Stdout, format, result)
	}
}

// buildRequest maps flags onto a request; unset flags keep config defaults
func buildRequest(cmd *cobra.Command) (contracts.Request, error) {
	req := contracts.Request{
		TargetPoints:    estTarget,
		ConfidenceLevel: estConfidence,
		ItemID:          estItem,
		BypassCache:     estNoCache,
	}

	var err error
	if estMode != "" {
		if req.Mode, err = contracts.ParseMode(estMode); err != nil {
			return req, err
		}
	}
	if cmd.Flags().Changed("current") {
		current := estCurrent
		req.CurrentPoints = &current
	}
	if req.StartDate, err = parseDateFlag("start", estStart); err != nil {
		return req, err
	}
	if req.EndDate, err = parseDateFlag("end", estEnd); err != nil {
		return req, err
	}

	// 일괄 추정은 항목별 target을 사용
	if estItems == "" {
		if err := req.Validate(); err != nil {
			return req, err
		}
	}
	return req, nil
}

func parseDateFlag(name, value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := time.ParseInLocation("2006-01-02", value, time.Local)
	if err != nil {
		return nil, fmt.Errorf("--%s: expected YYYY-MM-DD: %w", name, err)
	}
	return &t, nil
}

// batchRequests builds the batch from --items or from every item in the window
func (a *app) batchRequests(ctx context.Context, base contracts.Request) ([]facade.BatchRequest, error) {
	if estItems != "" {
		return parseItemTargets(estItems, base.CurrentPoints)
	}

	lister, ok := a.source.(itemLister)
	if !ok {
		return nil, fmt.Errorf("--all-items needs a source that lists items (db or file)")
	}

	to := time.Now()
	if base.EndDate != nil {
		to = *base.EndDate
	}
	from := to.AddDate(0, 0, -a.cfg.Estimation.DaysBack)
	if base.StartDate != nil {
		from = *base.StartDate
	}

	items, err := lister.ListItems(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("no items with records between %s and %s", from.Format("2006-01-02"), to.Format("2006-01-02"))
	}

	batch := make([]facade.BatchRequest, 0, len(items))
	for _, id := range items {
		batch = append(batch, facade.BatchRequest{ItemID: id, TargetPoints: base.TargetPoints})
	}
	return batch, nil
}

// parseItemTargets parses "item:target,item:target"
func parseItemTargets(raw string, current *float64) ([]facade.BatchRequest, error) {
	var batch []facade.BatchRequest
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, target, ok := strings.Cut(part, ":")
		if !ok || strings.TrimSpace(id) == "" {
			return nil, fmt.Errorf("invalid item %q: expected item:target", part)
		}
		points, err := strconv.ParseFloat(strings.TrimSpace(target), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid target for %s: %w", id, err)
		}
		batch = append(batch, facade.BatchRequest{
			ItemID:        strings.TrimSpace(id),
			TargetPoints:  points,
			CurrentPoints: current,
		})
	}
	if len(batch) == 0 {
		return nil, fmt.Errorf("--items is empty")
	}
	return batch, nil
}
