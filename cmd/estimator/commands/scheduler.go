package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/surveyprogress/internal/scheduler"
	"github.com/wonny/surveyprogress/internal/scheduler/jobs"
)

// schedulerCmd represents the scheduler command
var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "스케줄러 관리",
	Long: `스케줄러를 시작하거나 작업을 관리합니다.

Subcommands:
  start   - 스케줄러 시작
  list    - 등록된 작업 목록
  run     - 특정 작업 즉시 실행
  status  - 작업 실행 상태 조회

Example:
  go run ./cmd/estimator scheduler start
  go run ./cmd/estimator scheduler list
  go run ./cmd/estimator scheduler run estimate_warmup`,
}

var (
	schedulerStartCmd = &cobra.Command{
		Use:   "start",
		Short: "스케줄러 시작",
		Long: `스케줄러를 시작하고 등록된 모든 작업을 스케줄합니다.

등록되는 작업:
- cache_maintenance: 10분마다 (만료된 추정 결과 정리)
- estimate_warmup: WARMUP_SCHEDULE (기본: 매일 06:00, WARMUP_TARGETS 추정)

스케줄러는 Ctrl+C로 종료할 수 있습니다.`,
		RunE: runScheduler,
	}

	schedulerListCmd = &cobra.Command{
		Use:   "list",
		Short: "등록된 작업 목록",
		RunE:  listJobs,
	}

	schedulerRunCmd = &cobra.Command{
		Use:   "run [job_name]",
		Short: "특정 작업 즉시 실행",
		Args:  cobra.ExactArgs(1),
		RunE:  runJob,
	}

	schedulerStatusCmd = &cobra.Command{
		Use:   "status",
		Short: "작업 실행 상태 조회",
		RunE:  showStatus,
	}
)

func init() {
	rootCmd.AddCommand(schedulerCmd)
	schedulerCmd.AddCommand(schedulerStartCmd)
	schedulerCmd.AddCommand(schedulerListCmd)
	schedulerCmd.AddCommand(schedulerRunCmd)
	schedulerCmd.AddCommand(schedulerStatusCmd)
}

// newScheduler registers the maintenance and warm-up jobs
func (a *app) newScheduler(opts ...scheduler.Option) (*scheduler.Scheduler, error) {
	sched := scheduler.New(a.log, opts...)

	for _, job := range []scheduler.Job{
		jobs.NewCacheMaintenanceJob(a.coord, a.log),
		jobs.NewEstimateWarmupJob(a.facade, a.cfg.Warmup, a.log),
	} {
		if err := sched.AddJob(job); err != nil {
			return nil, fmt.Errorf("add job %s: %w", job.Name(), err)
		}
	}
	return sched, nil
}

func runScheduler(cmd *cobra.Command, args []string) error {
	fmt.Println("=== Survey Progress Scheduler ===")

	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	sched, err := a.newScheduler()
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}

	sched.Start()

	fmt.Println("\n✅ Scheduler started successfully")
	printJobs(sched)
	fmt.Println("\nPress Ctrl+C to stop")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	fmt.Println("\nShutting down scheduler...")
	sched.Stop()
	fmt.Println("Scheduler stopped")

	return nil
}

func listJobs(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	sched, err := a.newScheduler()
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}

	sched.Start()
	defer sched.Stop()

	printJobs(sched)
	return nil
}

func printJobs(sched *scheduler.Scheduler) {
	stats := sched.GetJobStats()

	fmt.Println("Registered jobs:")
	for _, name := range sched.GetAllJobs() {
		line := fmt.Sprintf("  - %-20s %s", name, stats[name].Schedule)
		if next, err := sched.NextRun(name); err == nil && !next.IsZero() {
			line += fmt.Sprintf("  (next: %s)", next.Format("2006-01-02 15:04:05"))
		}
		fmt.Println(line)
	}
}

func runJob(cmd *cobra.Command, args []string) error {
	jobName := args[0]

	fmt.Printf("Running job: %s\n", jobName)

	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	// 수동 실행은 재시도하지 않음
	sched, err := a.newScheduler(scheduler.WithRetry(0, 0))
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}

	result, err := sched.RunJob(cmd.Context(), jobName)
	if err != nil {
		return fmt.Errorf("run job: %w", err)
	}

	if !result.Success {
		return fmt.Errorf("job %s failed after %s: %s", jobName, result.Duration.Round(time.Millisecond), result.Error)
	}

	fmt.Printf("✅ Job completed in %s\n", result.Duration.Round(time.Millisecond))
	return nil
}

// showStatus prints schedules and the run history held by this process
func showStatus(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	sched, err := a.newScheduler()
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}

	stats := sched.GetJobStats()

	fmt.Println("Job Statistics:")
	fmt.Println()

	for _, jobName := range sched.GetAllJobs() {
		stat := stats[jobName]
		fmt.Printf("📊 %s\n", jobName)
		fmt.Printf("   Schedule: %s\n", stat.Schedule)
		fmt.Printf("   Total Runs: %d\n", stat.TotalRuns)
		fmt.Printf("   Success: %d (%.1f%%)\n", stat.SuccessCount, stat.SuccessRate*100)
		fmt.Printf("   Failures: %d\n", stat.FailureCount)

		if stat.LastRun != nil {
			fmt.Printf("   Last Run: %s\n", stat.LastRun.Format("2006-01-02 15:04:05"))
		}

		if stat.LastSuccess != nil {
			fmt.Printf("   Last Success: %s\n", stat.LastSuccess.Format("2006-01-02 15:04:05"))
		}

		if stat.LastFailure != nil {
			fmt.Printf("   Last Failure: %s\n", stat.LastFailure.Format("2006-01-02 15:04:05"))
		}

		fmt.Println()
	}

	return nil
}
