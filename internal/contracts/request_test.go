package contracts

import (
	"errors"
	"math"
	"strings"
	"testing"
)

func TestRequest_Validate(t *testing.T) {
	negative := -5.0
	inf := math.Inf(1)
	start, end := day(5), day(1)

	tests := []struct {
		name    string
		req     Request
		wantErr error
	}{
		{"valid", Request{TargetPoints: 100, ConfidenceLevel: 0.8}, nil},
		{"zero confidence uses default", Request{TargetPoints: 100}, nil},
		{"zero target", Request{TargetPoints: 0, ConfidenceLevel: 0.8}, ErrInvalidTarget},
		{"negative target", Request{TargetPoints: -1}, ErrInvalidTarget},
		{"confidence above one", Request{TargetPoints: 100, ConfidenceLevel: 1.2}, ErrInvalidConfidence},
		{"negative confidence", Request{TargetPoints: 100, ConfidenceLevel: -0.1}, ErrInvalidConfidence},
		{"inverted window", Request{TargetPoints: 100, StartDate: &start, EndDate: &end}, ErrInvalidWindow},
		{"infinite target", Request{TargetPoints: math.Inf(1)}, ErrInvalidTarget},
		{"nan target", Request{TargetPoints: math.NaN()}, ErrInvalidTarget},
		{"infinite current", Request{TargetPoints: 100, CurrentPoints: &inf}, ErrInvalidTarget},
		{"nan confidence", Request{TargetPoints: 100, ConfidenceLevel: math.NaN()}, ErrInvalidConfidence},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}

	t.Run("struct tags", func(t *testing.T) {
		cases := []Request{
			{TargetPoints: 100, CurrentPoints: &negative},
			{TargetPoints: 100, Mode: "weekly"},
			{TargetPoints: 100, ItemID: strings.Repeat("x", 200)},
		}
		for _, req := range cases {
			err := req.Validate()
			if err == nil || !strings.HasPrefix(err.Error(), "invalid request") {
				t.Errorf("Validate(%+v) = %v, want invalid request error", req, err)
			}
			if !IsConfigurationError(err) {
				t.Errorf("IsConfigurationError(%v) = false, want true", err)
			}
		}
	})
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{"", ModeBasic, false},
		{"advanced", ModeAdvanced, false},
		{"mapsheet", ModeMapsheet, false},
		{"real_time", ModeRealTime, false},
		{"hourly", "", true},
	}

	for _, tt := range tests {
		got, err := ParseMode(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseMode(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseMode(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}

	if !ModeMapsheet.WantsArtifacts() || ModeBasic.WantsArtifacts() || ModeRealTime.WantsArtifacts() {
		t.Error("WantsArtifacts() mismatch")
	}
}

func TestEstimate_IsUsable(t *testing.T) {
	tests := []struct {
		e    Estimate
		want bool
	}{
		{Estimate{Status: StatusEstimated, Confidence: 0.5}, true},
		{Estimate{Status: StatusEstimated, Confidence: 0.1}, false},
		{Estimate{Status: StatusFallback, Confidence: 0.5}, false},
		{Estimate{Status: StatusError, Confidence: 0.9}, false},
	}

	for _, tt := range tests {
		if got := tt.e.IsUsable(); got != tt.want {
			t.Errorf("IsUsable(%+v) = %v, want %v", tt.e, got, tt.want)
		}
	}

	if MethodMonteCarlo.Rank() >= MethodSimpleAverage.Rank() {
		t.Error("monte carlo must outrank simple average")
	}
}

func TestIsConfigurationError(t *testing.T) {
	if !IsConfigurationError(ErrInvalidTarget) {
		t.Error("ErrInvalidTarget should be a configuration error")
	}
	if IsConfigurationError(ErrDataUnavailable) {
		t.Error("ErrDataUnavailable should not be a configuration error")
	}
	if IsConfigurationError(errors.New("boom")) {
		t.Error("plain error should not be a configuration error")
	}
}
