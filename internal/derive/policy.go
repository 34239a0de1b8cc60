package derive

import (
	"fmt"
	"time"
)

// Weights are the multipliers applied to the three risk components
type Weights struct {
	Delay        float64
	Progress     float64
	Mobilization float64
}

// Policy holds every tunable threshold used by the engine
type Policy struct {
	// CompletionPct is the site progress at or above which a site is Completed
	CompletionPct float64
	// LowProgressPct is the progress below which a mobilized site is flagged
	LowProgressPct float64
	// InactiveGrace is how long after the earliest planned start a site with
	// no started task is still considered Active
	InactiveGrace time.Duration

	Weights Weights

	UnknownProgressScore      float64
	MobilizedLowProgressScore float64
	BaselineMobilizationScore float64

	// Location is the zone "today" is computed in
	Location *time.Location
}

// DefaultPolicy returns the default derivation policy
func DefaultPolicy() Policy {
	return Policy{
		CompletionPct:  100,
		LowProgressPct: 20,
		InactiveGrace:  30 * 24 * time.Hour,
		Weights: Weights{
			Delay:        0.5,
			Progress:     0.3,
			Mobilization: 0.2,
		},
		UnknownProgressScore:      50,
		MobilizedLowProgressScore: 80,
		BaselineMobilizationScore: 10,
		Location:                  time.UTC,
	}
}

// Validate checks that the policy is usable
func (p Policy) Validate() error {
	if p.CompletionPct <= 0 || p.CompletionPct > 100 {
		return fmt.Errorf("completion threshold must be in (0, 100], got %v", p.CompletionPct)
	}
	if p.LowProgressPct < 0 || p.LowProgressPct > 100 {
		return fmt.Errorf("low progress threshold must be in [0, 100], got %v", p.LowProgressPct)
	}
	if p.InactiveGrace < 0 {
		return fmt.Errorf("inactive grace period must not be negative")
	}
	w := p.Weights
	if w.Delay < 0 || w.Progress < 0 || w.Mobilization < 0 {
		return fmt.Errorf("risk weights must not be negative")
	}
	if w.Delay+w.Progress+w.Mobilization == 0 {
		return fmt.Errorf("at least one risk weight must be positive")
	}
	for name, v := range map[string]float64{
		"unknown progress score":       p.UnknownProgressScore,
		"mobilized low progress score": p.MobilizedLowProgressScore,
		"baseline mobilization score":  p.BaselineMobilizationScore,
	} {
		if v < 0 || v > 100 {
			return fmt.Errorf("%s must be in [0, 100], got %v", name, v)
		}
	}
	return nil
}
