package factory

import (
	"fmt"

	"github.com/healthlab-css/glowup-mrt/internal/config"
	"github.com/healthlab-css/glowup-mrt/internal/randomize"
)

// NewPolicy returns the configured randomization policy.
func NewPolicy(cfg *config.Config) (randomize.Policy, error) {
	switch cfg.RandomizationPolicy {
	case "uniform":
		return randomize.NewUniformPolicy(randomize.DefaultUniformArms, randomize.NewRand())
	case "context":
		return randomize.NewContextPolicy(randomize.Daypart(cfg.Daypart))
	default:
		return nil, fmt.Errorf("unknown RANDOMIZATION_POLICY: %s", cfg.RandomizationPolicy)
	}
}
