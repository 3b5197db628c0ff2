// internal/common/config/loader.go
package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Load reads configs/config.yaml, merges config.<APP_ENVIRONMENT>.yaml on top and applies env overrides.
func Load() (*Config, error) {
	loadEnvFile()

	v := newViper()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath("../../configs")
	v.AddConfigPath(".")
	if root := findProjectRoot(); root != "" {
		v.AddConfigPath(filepath.Join(root, "configs"))
	}

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	v.SetConfigName(fmt.Sprintf("config.%s", env))
	_ = v.MergeInConfig() // environment overlay is optional

	return finish(v)
}

// LoadFromFile loads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	loadEnvFile()

	v := newViper()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return finish(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return v
}

func finish(v *viper.Viper) (*Config, error) {
	expandEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	overrideEmptyConfig(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func loadEnvFile() {
	possiblePaths := []string{
		".env",
		"../.env",
		"../../.env", // tests under test/e2e
		"../../../.env",
	}

	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

// findProjectRoot walks up from the working directory looking for go.mod.
func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// expandEnvVars resolves ${VAR} placeholders left in string values.
func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		strVal, ok := v.Get(key).(string)
		if !ok || !strings.Contains(strVal, "$") {
			continue
		}
		if expanded := os.ExpandEnv(strVal); expanded != strVal {
			v.Set(key, expanded)
		}
	}
}

// overrideEmptyConfig fills secrets from their conventional env names when the file left them blank.
func overrideEmptyConfig(cfg *Config) {
	setIfEmpty(&cfg.Embedding.APIKey, "OPENAI_API_KEY")
	setIfEmpty(&cfg.LLM.APIKey, "GEMINI_API_KEY")
	setIfEmpty(&cfg.LLM.APIKey, "GOOGLE_API_KEY")
	setIfEmpty(&cfg.Database.Postgres.User, "DB_USER")
	setIfEmpty(&cfg.Database.Postgres.Password, "DB_PASSWORD")
	setIfEmpty(&cfg.Database.Redis.Password, "REDIS_PASSWORD")
}

func setIfEmpty(dst *string, envKey string) {
	if *dst != "" {
		return
	}
	if val := os.Getenv(envKey); val != "" {
		*dst = val
	}
}

// applyDefaults sets default values for optional configuration fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "pathfinder-workers"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}

	if cfg.Camunda.MaxJobsActive == 0 {
		cfg.Camunda.MaxJobsActive = 10
	}
	if cfg.Camunda.Timeout == 0 {
		cfg.Camunda.Timeout = 30000
	}
	if cfg.Camunda.RequestTimeout == 0 {
		cfg.Camunda.RequestTimeout = 30000
	}

	if cfg.Database.Postgres.MaxConnections == 0 {
		cfg.Database.Postgres.MaxConnections = 25
	}
	if cfg.Database.Postgres.MaxIdle == 0 {
		cfg.Database.Postgres.MaxIdle = 5
	}
	if cfg.Database.Postgres.SSLMode == "" {
		cfg.Database.Postgres.SSLMode = "disable"
	}
	if cfg.Database.Postgres.Port == 0 {
		cfg.Database.Postgres.Port = 5432
	}
	if cfg.Database.Elasticsearch.URL == "" && len(cfg.Database.Elasticsearch.Addresses) > 0 {
		cfg.Database.Elasticsearch.URL = cfg.Database.Elasticsearch.Addresses[0]
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	for key, worker := range cfg.Workers {
		if worker.MaxJobsActive == 0 {
			worker.MaxJobsActive = 5
		}
		if worker.Timeout == 0 {
			worker.Timeout = 30000
		}
		if worker.MaxRetries == 0 {
			worker.MaxRetries = 3
		}
		cfg.Workers[key] = worker
	}

	if cfg.Reference.Source == "" {
		cfg.Reference.Source = SourcePostgres
	}

	if cfg.Matching.InterestWeight == 0 && cfg.Matching.SkillWeight == 0 {
		cfg.Matching.InterestWeight = 0.5
		cfg.Matching.SkillWeight = 0.5
	}
	if cfg.Matching.DefaultTopN == 0 {
		cfg.Matching.DefaultTopN = 10
	}
	if cfg.Matching.MaxTopN == 0 {
		cfg.Matching.MaxTopN = 50
	}
	if cfg.Matching.SlowThreshold == 0 {
		cfg.Matching.SlowThreshold = 500
	}

	if cfg.Triage.MinPool == 0 {
		cfg.Triage.MinPool = 100
	}
	if cfg.Triage.MaxPool == 0 {
		cfg.Triage.MaxPool = 150
	}
	if cfg.Triage.MinPanel == 0 {
		cfg.Triage.MinPanel = 25
	}
	if cfg.Triage.MaxPanel == 0 {
		cfg.Triage.MaxPanel = 30
	}
	if cfg.Triage.GapThreshold == 0 {
		cfg.Triage.GapThreshold = 0.05
	}

	if cfg.Retrieval.Backend == "" {
		cfg.Retrieval.Backend = BackendMemory
	}
	if cfg.Retrieval.KeywordBackend == "" {
		cfg.Retrieval.KeywordBackend = BackendMemory
	}
	if cfg.Retrieval.ChunkIndex == "" {
		cfg.Retrieval.ChunkIndex = "corpus_chunks"
	}
	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = 20
	}
	if cfg.Retrieval.ResultLimit == 0 {
		cfg.Retrieval.ResultLimit = 10
	}
	if cfg.Retrieval.SemanticWeight == 0 && cfg.Retrieval.StructuralWeight == 0 {
		cfg.Retrieval.SemanticWeight = 0.7
		cfg.Retrieval.StructuralWeight = 0.3
	}
	if cfg.Retrieval.Structural == "" {
		cfg.Retrieval.Structural = StructuralConstant
	}
	if cfg.Retrieval.DefaultStructural == 0 {
		cfg.Retrieval.DefaultStructural = 0.5
	}
	if cfg.Retrieval.Timeout == 0 {
		cfg.Retrieval.Timeout = 800
	}
	if len(cfg.Retrieval.HomeLocations) == 0 {
		cfg.Retrieval.HomeLocations = append([]string(nil), DefaultHomeLocations...)
	}
	if cfg.Retrieval.PreviewPrograms == 0 {
		cfg.Retrieval.PreviewPrograms = 3
	}

	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = ProviderHash
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = "text-embedding-3-small"
	}
	if cfg.Embedding.Dimension == 0 {
		cfg.Embedding.Dimension = 384
	}

	if cfg.LLM.Model == "" {
		cfg.LLM.Model = "gemini-2.5-flash"
	}
	if cfg.LLM.Timeout == 0 {
		cfg.LLM.Timeout = 15000
	}

	if cfg.Session.KeyPrefix == "" {
		cfg.Session.KeyPrefix = "pathfinder:session:"
	}
	if cfg.Session.TTL == 0 {
		cfg.Session.TTL = int((7 * 24 * time.Hour) / time.Millisecond)
	}
}

// validateConfig validates critical configuration fields
func validateConfig(cfg *Config) error {
	if cfg.Camunda.BrokerAddress == "" {
		return fmt.Errorf("camunda.broker_address is required")
	}
	if cfg.Database.Redis.Address == "" {
		return fmt.Errorf("database.redis.address is required")
	}

	if err := validateReference(cfg); err != nil {
		return err
	}

	if math.Abs(cfg.Matching.InterestWeight+cfg.Matching.SkillWeight-1) > 1e-9 {
		return fmt.Errorf("matching weights must sum to 1, got %.3f + %.3f",
			cfg.Matching.InterestWeight, cfg.Matching.SkillWeight)
	}
	if cfg.Matching.DefaultTopN > cfg.Matching.MaxTopN {
		return fmt.Errorf("matching.default_top_n (%d) exceeds matching.max_top_n (%d)",
			cfg.Matching.DefaultTopN, cfg.Matching.MaxTopN)
	}

	t := cfg.Triage
	if t.MinPool <= 0 || t.MinPool > t.MaxPool {
		return fmt.Errorf("triage pool bounds invalid: min_pool=%d max_pool=%d", t.MinPool, t.MaxPool)
	}
	if t.MinPanel <= 0 || t.MinPanel > t.MaxPanel {
		return fmt.Errorf("triage panel bounds invalid: min_panel=%d max_panel=%d", t.MinPanel, t.MaxPanel)
	}
	if t.GapThreshold < 0 || t.GapThreshold > 1 {
		return fmt.Errorf("triage.gap_threshold must be within [0,1], got %.3f", t.GapThreshold)
	}

	r := cfg.Retrieval
	if math.Abs(r.SemanticWeight+r.StructuralWeight-1) > 1e-9 {
		return fmt.Errorf("retrieval weights must sum to 1, got %.3f + %.3f", r.SemanticWeight, r.StructuralWeight)
	}
	switch r.Backend {
	case BackendMemory:
	case BackendPGVector:
		if cfg.Database.Postgres.Host == "" {
			return fmt.Errorf("database.postgres.host is required for the pgvector backend")
		}
	default:
		return fmt.Errorf("unknown retrieval.backend %q", r.Backend)
	}
	switch r.KeywordBackend {
	case BackendMemory:
	case BackendElasticsearch:
		if cfg.Database.Elasticsearch.GetURL() == "" {
			return fmt.Errorf("database.elasticsearch.addresses or url is required for the elasticsearch keyword backend")
		}
	default:
		return fmt.Errorf("unknown retrieval.keyword_backend %q", r.KeywordBackend)
	}
	if r.Structural != StructuralConstant && r.Structural != StructuralAssociation {
		return fmt.Errorf("unknown retrieval.structural %q", r.Structural)
	}

	switch cfg.Embedding.Provider {
	case ProviderHash:
	case ProviderOpenAI:
		if cfg.Embedding.APIKey == "" {
			return fmt.Errorf("embedding.api_key is required for the openai provider")
		}
	default:
		return fmt.Errorf("unknown embedding.provider %q", cfg.Embedding.Provider)
	}

	if cfg.LLM.Enabled && cfg.LLM.APIKey == "" {
		return fmt.Errorf("llm.api_key is required when llm.enabled is true")
	}

	return nil
}

func validateReference(cfg *Config) error {
	switch cfg.Reference.Source {
	case SourcePostgres:
		if cfg.Database.Postgres.Host == "" {
			return fmt.Errorf("database.postgres.host is required")
		}
		if cfg.Database.Postgres.Database == "" {
			return fmt.Errorf("database.postgres.database is required")
		}
		if cfg.Database.Postgres.User == "" {
			return fmt.Errorf("database.postgres.user is required")
		}
	case SourceSQLite:
		if cfg.Database.SQLite.Path == "" {
			return fmt.Errorf("database.sqlite.path is required for the sqlite reference source")
		}
	case SourceFile:
		if cfg.Reference.FilePath == "" {
			return fmt.Errorf("reference.file_path is required for the file reference source")
		}
	default:
		return fmt.Errorf("unknown reference.source %q", cfg.Reference.Source)
	}
	return nil
}

// GetDuration converts milliseconds from config to time.Duration
func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}

// GetWorkerConfig retrieves worker-specific configuration with fallback to defaults
func GetWorkerConfig(cfg *Config, workerName string) WorkerConfig {
	if worker, exists := cfg.Workers[workerName]; exists {
		return worker
	}

	return WorkerConfig{
		Enabled:       true,
		MaxJobsActive: 5,
		Timeout:       30000,
		MaxRetries:    3,
	}
}

// IsWorkerEnabled checks if a specific worker is enabled
func IsWorkerEnabled(cfg *Config, workerName string) bool {
	if worker, exists := cfg.Workers[workerName]; exists {
		return worker.Enabled
	}
	return true
}
