// internal/workers/assessment/submit-skill-profile/config.go
package submitskillprofile

import (
	"time"

	"pathfinder-workers/internal/matching/occupation"
)

type Config struct {
	Timeout  time.Duration
	Matching occupation.Config
}

func LoadConfig() *Config {
	return &Config{
		Timeout:  30 * time.Second,
		Matching: occupation.DefaultConfig(),
	}
}
