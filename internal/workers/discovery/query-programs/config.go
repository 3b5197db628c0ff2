// internal/workers/discovery/query-programs/config.go
package queryprograms

import "time"

type Config struct {
	Timeout       time.Duration
	HomeLocations []string
}

func LoadConfig() *Config {
	return &Config{
		Timeout: 5 * time.Second,
	}
}
