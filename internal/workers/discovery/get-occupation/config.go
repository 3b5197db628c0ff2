// internal/workers/discovery/get-occupation/config.go
package getoccupation

import "time"

type Config struct {
	Timeout   time.Duration
	TopSkills int
}

func LoadConfig() *Config {
	return &Config{
		Timeout:   5 * time.Second,
		TopSkills: 10,
	}
}
