// internal/workers/admin/reload-reference-data/config.go
package reloadreferencedata

import "time"

type Config struct {
	Timeout time.Duration
}

func LoadConfig() *Config {
	return &Config{
		Timeout: 2 * time.Minute,
	}
}
