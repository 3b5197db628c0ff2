// internal/workers/assessment/get-skill-triage/config.go
package getskilltriage

import (
	"time"

	"pathfinder-workers/internal/matching/triage"
)

type Config struct {
	Timeout time.Duration
	Triage  triage.Config
	// TopOccupations is how many pool leaders are listed by title.
	TopOccupations int
}

func LoadConfig() *Config {
	return &Config{
		Timeout:        5 * time.Second,
		Triage:         triage.DefaultConfig(),
		TopOccupations: 10,
	}
}
