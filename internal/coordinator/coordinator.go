// Package coordinator orchestrates one estimation call end to end.
package coordinator

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/wonny/surveyprogress/internal/analyzer"
	"github.com/wonny/surveyprogress/internal/completion"
	"github.com/wonny/surveyprogress/internal/contracts"
	"github.com/wonny/surveyprogress/internal/integrator"
	"github.com/wonny/surveyprogress/internal/strategy"
	"github.com/wonny/surveyprogress/pkg/config"
	"github.com/wonny/surveyprogress/pkg/redis"
)

// summaryTrendWindow rolling window for the summary trend
const summaryTrendWindow = 7

// Config coordinator settings
type Config struct {
	Mode              contracts.Mode
	ConfidenceLevel   float64 // 기본: 0.8
	DaysBack          int     // 기본: 30
	EnableIntegration bool
	SkipCompleted     bool
	CacheEnabled      bool
	CacheTTL          time.Duration
	Seed              int64 // 0 = random per call
	DisabledMethods   []contracts.Method
	Strategy          strategy.Config
	Integrator        integrator.Config
}

// DefaultConfig returns default coordinator settings
func DefaultConfig() Config {
	return Config{
		Mode:              contracts.ModeBasic,
		ConfidenceLevel:   0.8,
		DaysBack:          30,
		EnableIntegration: true,
		CacheEnabled:      true,
		CacheTTL:          6 * time.Hour,
		Strategy:          strategy.DefaultConfig(),
		Integrator:        integrator.DefaultConfig(),
	}
}

// ConfigFrom maps application config onto coordinator settings
func ConfigFrom(est config.EstimationConfig) (Config, error) {
	mode, err := contracts.ParseMode(est.Mode)
	if err != nil {
		return Config{}, err
	}

	cfg := DefaultConfig()
	cfg.Mode = mode
	cfg.ConfidenceLevel = est.ConfidenceLevel
	cfg.DaysBack = est.DaysBack
	cfg.EnableIntegration = est.EnableIntegration
	cfg.SkipCompleted = est.SkipCompleted
	cfg.CacheEnabled = est.CacheEnabled
	cfg.CacheTTL = est.CacheTTL
	cfg.Seed = est.MonteCarloSeed
	cfg.Strategy.MonteCarloIterations = est.MonteCarloIterations

	known := strategy.DefaultRegistry()
	for _, name := range est.DisabledMethods {
		m := contracts.Method(name)
		if _, ok := known[m]; !ok {
			return Config{}, fmt.Errorf("unknown estimation method %q", name)
		}
		cfg.DisabledMethods = append(cfg.DisabledMethods, m)
	}
	return cfg, nil
}

// Option customizes a Coordinator
type Option func(*Coordinator)

// WithClock overrides time.Now (tests, backfills)
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// WithRegistry overrides the strategy lookup table
func WithRegistry(r strategy.Registry) Option {
	return func(c *Coordinator) { c.registry = r }
}

// WithRemoteCache adds a shared second-tier cache
func WithRemoteCache(rc *redis.Cache) Option {
	return func(c *Coordinator) { c.remote = rc }
}

// Coordinator owns the result cache and runs the estimation pipeline:
// validate → cache lookup → load series → completion check → strategies →
// integration → composite result → cache store
type Coordinator struct {
	config     Config
	source     contracts.SeriesSource
	registry   strategy.Registry
	completion *completion.Handler
	integrator *integrator.Integrator
	cache      *ResultCache
	remote     *redis.Cache
	now        func() time.Time
	log        zerolog.Logger
}

// New creates a coordinator; construct once per process and share it
func New(source contracts.SeriesSource, cfg Config, log zerolog.Logger, opts ...Option) *Coordinator {
	c := &Coordinator{
		config:   cfg,
		source:   source,
		registry: strategy.DefaultRegistry(),
		now:      time.Now,
		log:      log.With().Str("component", "coordinator").Logger(),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.registry = c.registry.Without(cfg.DisabledMethods...)
	c.completion = completion.New(cfg.SkipCompleted, log)
	c.integrator = integrator.New(cfg.Integrator, log)
	c.cache = NewResultCache(cfg.CacheTTL, c.now, log)
	return c
}

// Config returns the active settings
func (c *Coordinator) Config() Config {
	return c.config
}

// Estimate runs one estimation call. Only invalid requests and an unreachable
// data source are errors; data sparsity is reported in the result.
func (c *Coordinator) Estimate(ctx context.Context, req contracts.Request) (*contracts.CompositeResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	req = c.normalize(req)
	start, end := c.window(req)
	key := CacheKey{
		TargetPoints:    req.TargetPoints,
		CurrentPoints:   req.CurrentPoints,
		Start:           start,
		End:             end,
		Mode:            req.Mode,
		ConfidenceLevel: req.ConfidenceLevel,
		ItemID:          req.ItemID,
	}

	cacheable := c.config.CacheEnabled && !req.BypassCache && req.Mode != contracts.ModeRealTime
	if cacheable {
		if result, ok := c.lookup(ctx, key); ok {
			return &result, nil
		}
	}

	// 외부 데이터 로드 (락 밖에서 한 번만)
	records, err := c.source.Load(ctx, contracts.Scope{ItemID: req.ItemID}, start, end)
	if err != nil {
		c.log.Error().Err(err).Str("item_id", req.ItemID).Msg("failed to load progress series")
		return nil, fmt.Errorf("%w: %w", contracts.ErrDataUnavailable, err)
	}

	result := c.compute(req, contracts.NewSeries(records), end)

	if cacheable {
		c.cache.Put(key, *result)
		if c.remote.Enabled() {
			if err := c.remote.Set(ctx, redis.ResultKey(key.Fingerprint()), result, c.config.CacheTTL); err != nil {
				c.log.Warn().Err(err).Msg("remote cache write failed")
			}
		}
	}
	return result, nil
}

// normalize applies configured defaults to unset request fields
func (c *Coordinator) normalize(req contracts.Request) contracts.Request {
	if req.Mode == "" {
		req.Mode = c.config.Mode
	}
	if req.ConfidenceLevel == 0 {
		req.ConfidenceLevel = c.config.ConfidenceLevel
	}
	return req
}

// window resolves the requested date range: end defaults to today and start
// to days_back before end
func (c *Coordinator) window(req contracts.Request) (time.Time, time.Time) {
	end := contracts.TruncateDay(c.now())
	if req.EndDate != nil {
		end = contracts.TruncateDay(*req.EndDate)
	}

	daysBack := c.config.DaysBack
	if daysBack <= 0 {
		daysBack = DefaultConfig().DaysBack
	}
	start := end.AddDate(0, 0, -daysBack)
	if req.StartDate != nil {
		start = contracts.TruncateDay(*req.StartDate)
	}
	return start, end
}

func (c *Coordinator) lookup(ctx context.Context, key CacheKey) (contracts.CompositeResult, bool) {
	if result, ok := c.cache.Get(key); ok {
		c.log.Debug().Str("run_id", result.RunID).Msg("cache hit")
		return result, true
	}

	if !c.remote.Enabled() {
		return contracts.CompositeResult{}, false
	}

	var result contracts.CompositeResult
	found, err := c.remote.Get(ctx, redis.ResultKey(key.Fingerprint()), &result)
	if err != nil {
		c.log.Warn().Err(err).Msg("remote cache read failed")
		return contracts.CompositeResult{}, false
	}
	if !found {
		return contracts.CompositeResult{}, false
	}

	c.cache.recordRemoteHit()
	c.cache.Put(key, result)
	c.log.Debug().Str("run_id", result.RunID).Msg("remote cache hit")
	return result, true
}

// compute builds the composite result for a loaded series
func (c *Coordinator) compute(req contracts.Request, series contracts.Series, reference time.Time) *contracts.CompositeResult {
	runID := uuid.New().String()
	log := c.log.With().Str("run_id", runID).Str("item_id", req.ItemID).Logger()

	an := analyzer.New(series)
	current := series.Total()
	if req.CurrentPoints != nil {
		current = *req.CurrentPoints
	}
	state := contracts.NewProjectState(req.TargetPoints, current)

	result := &contracts.CompositeResult{
		RunID:       runID,
		GeneratedAt: c.now(),
		Mode:        req.Mode,
		ItemID:      req.ItemID,
		Project:     state,
		Summary:     an.ToSummary(summaryTrendWindow),
	}

	log.Debug().
		Int("records", series.Len()).
		Float64("target", state.TargetPoints).
		Float64("current", state.CurrentPoints).
		Msg("series prepared")

	if completion.IsProjectCompleted(state.CurrentPoints, state.TargetPoints) {
		estimate, report := c.completion.Handle(state, series, reference)
		result.Estimates = map[contracts.Method]contracts.Estimate{contracts.MethodCompleted: estimate}
		result.Completion = &report
		applyHeadline(result, estimate)
		c.attachArtifacts(result, series, state, reference)
		return result
	}

	estimates := c.runStrategies(series, an, state.RemainingPoints, req.ConfidenceLevel, reference, log)
	result.Estimates = estimates
	log.Debug().Int("estimates", len(estimates)).Msg("strategies completed")

	if c.config.EnableIntegration {
		integration := c.integrator.Integrate(estimates, an.Quality(), reference)
		result.Integration = &integration

		switch {
		case !integration.Ensemble.IsEmpty():
			applyEnsemble(result, integration)
		case integration.BestMethod != nil:
			applyHeadline(result, estimates[*integration.BestMethod])
		default:
			applyHeadline(result, Recommended(estimates))
		}
	} else {
		applyHeadline(result, Recommended(estimates))
	}

	c.attachArtifacts(result, series, state, reference)

	log.Info().
		Str("method", string(result.Method)).
		Str("status", string(result.Status)).
		Float64("days_remaining", result.DaysRemaining).
		Float64("confidence", result.Confidence).
		Msg("estimation completed")

	return result
}

// runStrategies runs every enabled strategy; a panicking strategy yields a
// status=error estimate instead of failing the call
func (c *Coordinator) runStrategies(series contracts.Series, an *analyzer.Analyzer, remaining, confidenceLevel float64, reference time.Time, log zerolog.Logger) map[contracts.Method]contracts.Estimate {
	seed := c.config.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	deps := strategy.Deps{
		Analyzer:  an,
		Reference: reference,
		Config:    c.config.Strategy,
		Rand:      rand.New(rand.NewSource(seed)),
		Log:       log,
	}

	estimates := make(map[contracts.Method]contracts.Estimate, len(c.registry))
	for _, m := range c.registry.Methods() {
		estimates[m] = c.runStrategy(m, deps, remaining, confidenceLevel, log)
	}
	return estimates
}

func (c *Coordinator) runStrategy(m contracts.Method, deps strategy.Deps, remaining, confidenceLevel float64, log zerolog.Logger) (estimate contracts.Estimate) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("method", string(m)).Interface("panic", r).Msg("strategy failed")
			estimate = contracts.Estimate{
				EstimatedDate: deps.Reference,
				Status:        contracts.StatusError,
				Method:        m,
				MethodDetails: map[string]interface{}{"error": fmt.Sprint(r)},
			}
		}
	}()

	s, ok := c.registry.Build(m, deps)
	if !ok {
		return contracts.Estimate{EstimatedDate: deps.Reference, Status: contracts.StatusError, Method: m}
	}
	return s.Estimate(remaining, confidenceLevel)
}

func (c *Coordinator) attachArtifacts(result *contracts.CompositeResult, series contracts.Series, state contracts.ProjectState, reference time.Time) {
	if !result.Mode.WantsArtifacts() {
		return
	}
	result.Artifacts = &contracts.Artifacts{
		Burndown: Burndown(series, state, reference, result.DaysRemaining),
	}
}

// Recommended single estimate used when integration is off or yields
// nothing: the highest-priority usable estimate, else the highest-priority
// estimated one, else any estimate (simple average first)
func Recommended(estimates map[contracts.Method]contracts.Estimate) contracts.Estimate {
	for _, m := range contracts.MethodPriority {
		if e, ok := estimates[m]; ok && e.IsUsable() {
			return e
		}
	}
	for _, m := range contracts.MethodPriority {
		if e, ok := estimates[m]; ok && e.Status == contracts.StatusEstimated {
			return e
		}
	}
	for i := len(contracts.MethodPriority) - 1; i >= 0; i-- {
		if e, ok := estimates[contracts.MethodPriority[i]]; ok {
			return e
		}
	}
	for _, e := range estimates {
		return e
	}
	return contracts.Estimate{Status: contracts.StatusError}
}

func applyHeadline(result *contracts.CompositeResult, e contracts.Estimate) {
	result.EstimatedDate = e.EstimatedDate
	result.DaysRemaining = e.DaysRemaining
	result.Confidence = e.Confidence
	result.UncertaintyDays = e.UncertaintyDays
	result.Method = e.Method
	result.Status = e.Status
}

func applyEnsemble(result *contracts.CompositeResult, integration contracts.IntegrationResult) {
	ens := integration.Ensemble
	result.EstimatedDate = ens.EstimatedDate
	result.DaysRemaining = ens.DaysRemaining
	result.Confidence = ens.Confidence
	result.UncertaintyDays = ens.UncertaintyDays
	result.Status = contracts.StatusEstimated
	if integration.BestMethod != nil {
		result.Method = *integration.BestMethod
	}
}

// ClearCache drops every cached result (memory and remote tier)
func (c *Coordinator) ClearCache(ctx context.Context) (int, error) {
	n := c.cache.Clear()
	if c.remote.Enabled() {
		removed, err := c.remote.Clear(ctx)
		if err != nil {
			return n, fmt.Errorf("clear remote cache: %w", err)
		}
		n += removed
	}
	return n, nil
}

// CleanExpired removes expired in-memory results; the remote tier expires by TTL
func (c *Coordinator) CleanExpired() int {
	return c.cache.CleanExpired()
}

// CacheStats returns in-memory cache statistics
func (c *Coordinator) CacheStats() CacheStats {
	return c.cache.Stats()
}
