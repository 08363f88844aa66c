package jobs

import (
	"context"
	"fmt"

	"github.com/wonny/surveyprogress/internal/facade"
	"github.com/wonny/surveyprogress/pkg/config"
	"github.com/wonny/surveyprogress/pkg/logger"
)

// wholeProject warm-up target id for the project-level estimate
const wholeProject = "*"

// EstimateWarmupJob pre-computes estimates so the first requests of the day
// are served from cache
type EstimateWarmupJob struct {
	facade   *facade.Facade
	targets  []config.WarmupTarget
	schedule string
	logger   *logger.Logger
}

// NewEstimateWarmupJob creates a new warm-up job
func NewEstimateWarmupJob(f *facade.Facade, cfg config.WarmupConfig, log *logger.Logger) *EstimateWarmupJob {
	schedule := cfg.Schedule
	if schedule == "" {
		schedule = "0 0 6 * * *"
	}
	return &EstimateWarmupJob{
		facade:   f,
		targets:  cfg.Targets,
		schedule: schedule,
		logger:   log,
	}
}

// Name returns the job name
func (j *EstimateWarmupJob) Name() string {
	return "estimate_warmup"
}

// Schedule returns the configured cron schedule (기본: 매일 06:00)
func (j *EstimateWarmupJob) Schedule() string {
	return j.schedule
}

// Run estimates every target; fails only when every target failed so the
// scheduler retries a source outage
func (j *EstimateWarmupJob) Run(ctx context.Context) error {
	if len(j.targets) == 0 {
		j.logger.Info("No warm-up targets configured")
		return nil
	}

	var (
		items     []facade.BatchRequest
		failed    int
		attempted int
	)

	for _, t := range j.targets {
		if t.ItemID != wholeProject {
			items = append(items, facade.BatchRequest{ItemID: t.ItemID, TargetPoints: t.TargetPoints})
			continue
		}

		attempted++
		if _, err := j.facade.Quick(ctx, t.TargetPoints, nil); err != nil {
			failed++
			j.logger.WithError(err).Warn("Project warm-up failed")
		}
	}

	if len(items) > 0 {
		results, err := j.facade.Batch(ctx, items)
		if err != nil {
			return fmt.Errorf("warm-up batch: %w", err)
		}
		attempted += len(results)
		for _, r := range results {
			if r.Error != "" {
				failed++
			}
		}
	}

	j.logger.WithFields(map[string]interface{}{
		"targets": attempted,
		"failed":  failed,
	}).Info("Estimate warm-up completed")

	if failed == attempted {
		return fmt.Errorf("all %d warm-up targets failed", attempted)
	}
	return nil
}
