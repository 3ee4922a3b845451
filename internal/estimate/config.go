package estimate

import (
	"time"

	"github.com/ppiankov/lifespan/internal/date"
)

// Config holds the tunable heuristics. All spans are in years.
type Config struct {
	MaxAgeProbAlive  int       `json:"max_plausible_age_years" yaml:"max_plausible_age_years"`
	MaxSiblingAgeGap int       `json:"max_sibling_age_gap_years" yaml:"max_sibling_age_gap_years"`
	AvgGenerationGap int       `json:"avg_generation_gap_years" yaml:"avg_generation_gap_years"`
	MinGenerationGap int       `json:"min_generation_gap_years" yaml:"min_generation_gap_years"`
	MaxDepth         int       `json:"max_depth" yaml:"max_depth"` // Generations walked before giving up with a cycle error
	Fuzz             date.Fuzz `json:"fuzz" yaml:"fuzz"`

	// Clock supplies "today" for undated deaths and default reference dates
	Clock func() time.Time `json:"-" yaml:"-"`
}

// DefaultConfig returns the standard heuristics
func DefaultConfig() Config {
	return Config{
		MaxAgeProbAlive:  110,
		MaxSiblingAgeGap: 20,
		AvgGenerationGap: 20,
		MinGenerationGap: 13,
		MaxDepth:         100,
		Fuzz:             date.DefaultFuzz(),
		Clock:            time.Now,
	}
}

// withDefaults fills zero values from DefaultConfig
func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.MaxAgeProbAlive <= 0 {
		c.MaxAgeProbAlive = def.MaxAgeProbAlive
	}
	if c.MaxSiblingAgeGap <= 0 {
		c.MaxSiblingAgeGap = def.MaxSiblingAgeGap
	}
	if c.AvgGenerationGap <= 0 {
		c.AvgGenerationGap = def.AvgGenerationGap
	}
	if c.MinGenerationGap <= 0 {
		c.MinGenerationGap = def.MinGenerationGap
	}
	if c.MaxDepth <= 0 {
		c.MaxDepth = def.MaxDepth
	}
	if c.Fuzz == (date.Fuzz{}) {
		c.Fuzz = def.Fuzz
	}
	if c.Clock == nil {
		c.Clock = def.Clock
	}
	return c
}
