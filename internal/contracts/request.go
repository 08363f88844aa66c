package contracts

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/go-playground/validator/v10"
)

// Mode controls which artifacts are attached; never changes the math
type Mode string

const (
	ModeBasic    Mode = "basic"
	ModeAdvanced Mode = "advanced"
	ModeMapsheet Mode = "mapsheet"
	ModeRealTime Mode = "real_time"
)

// WantsArtifacts reports whether burndown artifacts are attached
func (m Mode) WantsArtifacts() bool {
	return m == ModeAdvanced || m == ModeMapsheet
}

// ParseMode parses a mode string, defaulting to basic
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "":
		return ModeBasic, nil
	case ModeBasic, ModeAdvanced, ModeMapsheet, ModeRealTime:
		return Mode(s), nil
	default:
		return "", fmt.Errorf("unknown mode %q", s)
	}
}

var (
	// ErrInvalidTarget target_points <= 0 or a non-finite point count
	ErrInvalidTarget = errors.New("target points must be greater than zero")
	// ErrInvalidConfidence confidence level outside [0, 1]
	ErrInvalidConfidence = errors.New("confidence level must be within [0, 1]")
	// ErrInvalidWindow start date after end date
	ErrInvalidWindow = errors.New("window start must not be after window end")
	// ErrDataUnavailable the data source could not be reached
	ErrDataUnavailable = errors.New("historical data unavailable")
	// ErrItemRequired mapsheet mode without an item id
	ErrItemRequired = errors.New("item id is required")
)

// Request one estimation call
type Request struct {
	TargetPoints    float64    `json:"target_points" validate:"gt=0"`
	CurrentPoints   *float64   `json:"current_points,omitempty" validate:"omitempty,gte=0"`
	StartDate       *time.Time `json:"start_date,omitempty"`
	EndDate         *time.Time `json:"end_date,omitempty"`
	Mode            Mode       `json:"mode" validate:"omitempty,oneof=basic advanced mapsheet real_time"`
	ConfidenceLevel float64    `json:"confidence_level" validate:"gte=0,lte=1"`
	ItemID          string     `json:"item_id,omitempty" validate:"omitempty,max=128"`
	BypassCache     bool       `json:"bypass_cache,omitempty"`
}

var requestValidator = validator.New()

// Validate rejects configuration errors before any computation
func (r Request) Validate() error {
	if !isFinite(r.TargetPoints) || r.TargetPoints <= 0 {
		return ErrInvalidTarget
	}
	if r.CurrentPoints != nil && !isFinite(*r.CurrentPoints) {
		return ErrInvalidTarget
	}
	if !isFinite(r.ConfidenceLevel) || r.ConfidenceLevel < 0 || r.ConfidenceLevel > 1 {
		return ErrInvalidConfidence
	}
	if r.StartDate != nil && r.EndDate != nil && r.StartDate.After(*r.EndDate) {
		return ErrInvalidWindow
	}
	if err := requestValidator.Struct(r); err != nil {
		return fmt.Errorf("invalid request: %w", err)
	}
	return nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Scope selects the series to load
type Scope struct {
	ItemID string // empty = whole project
}

// SeriesSource external data-access collaborator
// ⭐ SSOT: the engine's only path to historical records
type SeriesSource interface {
	Load(ctx context.Context, scope Scope, from, to time.Time) ([]DailyRecord, error)
}

// SeriesSourceFunc adapts a function to SeriesSource
type SeriesSourceFunc func(ctx context.Context, scope Scope, from, to time.Time) ([]DailyRecord, error)

// Load calls f
func (f SeriesSourceFunc) Load(ctx context.Context, scope Scope, from, to time.Time) ([]DailyRecord, error) {
	return f(ctx, scope, from, to)
}

// IsConfigurationError reports errors caused by the request itself, as
// opposed to data-source failures
func IsConfigurationError(err error) bool {
	if errors.Is(err, ErrInvalidTarget) || errors.Is(err, ErrInvalidConfidence) || errors.Is(err, ErrInvalidWindow) || errors.Is(err, ErrItemRequired) {
		return true
	}
	var ve validator.ValidationErrors
	return errors.As(err, &ve)
}
