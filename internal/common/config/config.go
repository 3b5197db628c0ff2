// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App       AppConfig               `mapstructure:"app"`
	Server    ServerConfig            `mapstructure:"server"`
	Camunda   CamundaConfig           `mapstructure:"camunda"`
	Database  DatabaseConfig          `mapstructure:"database"`
	Workers   map[string]WorkerConfig `mapstructure:"workers"`
	Logging   LoggingConfig           `mapstructure:"logging"`
	Reference ReferenceConfig         `mapstructure:"reference"`
	Matching  MatchingConfig          `mapstructure:"matching"`
	Triage    TriageConfig            `mapstructure:"triage"`
	Retrieval RetrievalConfig         `mapstructure:"retrieval"`
	Embedding EmbeddingConfig         `mapstructure:"embedding"`
	LLM       LLMConfig               `mapstructure:"llm"`
	Session   SessionConfig           `mapstructure:"session"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

type CamundaConfig struct {
	BrokerAddress  string `mapstructure:"broker_address"`
	MaxJobsActive  int    `mapstructure:"max_jobs_active"`
	Timeout        int    `mapstructure:"timeout"`         // milliseconds
	RequestTimeout int    `mapstructure:"request_timeout"` // milliseconds
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	SQLite        SQLiteConfig        `mapstructure:"sqlite"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// SQLiteConfig points at a local reference database, used for development and the CLI.
type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

type ElasticsearchConfig struct {
	Addresses []string `mapstructure:"addresses"`
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`
	URL       string   `mapstructure:"url"`
}

// GetURL returns the first address or the URL field
func (e ElasticsearchConfig) GetURL() string {
	if e.URL != "" {
		return e.URL
	}
	if len(e.Addresses) > 0 {
		return e.Addresses[0]
	}
	return ""
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// WorkerConfig holds the core settings applicable to every worker.
type WorkerConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxJobsActive int  `mapstructure:"max_jobs_active"`
	Timeout       int  `mapstructure:"timeout"` // milliseconds
	MaxRetries    int  `mapstructure:"max_retries"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// --- Engine Configuration Sections ---

// Reference data sources.
const (
	SourcePostgres = "postgres"
	SourceSQLite   = "sqlite"
	SourceFile     = "file"
)

// ReferenceConfig selects where the immutable reference snapshot is loaded from.
type ReferenceConfig struct {
	Source             string `mapstructure:"source"`
	FilePath           string `mapstructure:"file_path"`
	RefreshInterval    int    `mapstructure:"refresh_interval"` // milliseconds, 0 disables
	BackfillEmbeddings bool   `mapstructure:"backfill_embeddings"`
}

type MatchingConfig struct {
	InterestWeight float64 `mapstructure:"interest_weight"`
	SkillWeight    float64 `mapstructure:"skill_weight"`
	DefaultTopN    int     `mapstructure:"default_top_n"`
	MaxTopN        int     `mapstructure:"max_top_n"`
	SlowThreshold  int     `mapstructure:"slow_threshold"` // milliseconds
}

type TriageConfig struct {
	MinPool      int     `mapstructure:"min_pool"`
	MaxPool      int     `mapstructure:"max_pool"`
	MinPanel     int     `mapstructure:"min_panel"`
	MaxPanel     int     `mapstructure:"max_panel"`
	GapThreshold float64 `mapstructure:"gap_threshold"`
}

// Retrieval back-ends.
const (
	BackendMemory        = "memory"
	BackendPGVector      = "pgvector"
	BackendElasticsearch = "elasticsearch"

	StructuralConstant    = "constant"
	StructuralAssociation = "association"
)

type RetrievalConfig struct {
	Backend           string   `mapstructure:"backend"`
	KeywordBackend    string   `mapstructure:"keyword_backend"`
	ChunkIndex        string   `mapstructure:"chunk_index"`
	TopK              int      `mapstructure:"top_k"`
	ResultLimit       int      `mapstructure:"result_limit"`
	SemanticWeight    float64  `mapstructure:"semantic_weight"`
	StructuralWeight  float64  `mapstructure:"structural_weight"`
	Structural        string   `mapstructure:"structural"`
	DefaultStructural float64  `mapstructure:"default_structural"`
	Timeout           int      `mapstructure:"timeout"` // milliseconds
	HomeLocations     []string `mapstructure:"home_locations"`
	PreviewPrograms   int      `mapstructure:"preview_programs"`
}

// DefaultHomeLocations are the in-state locations: the state and its islands, with and
// without diacritics.
var DefaultHomeLocations = []string{
	"Hawaii", "Hawaiʻi", "HI",
	"Oʻahu", "Oahu", "Maui", "Kauaʻi", "Kauai", "Molokaʻi", "Lānaʻi",
}

// Embedding providers.
const (
	ProviderOpenAI = "openai"
	ProviderHash   = "hash"
)

type EmbeddingConfig struct {
	Provider  string `mapstructure:"provider"`
	Model     string `mapstructure:"model"`
	APIKey    string `mapstructure:"api_key"`
	BaseURL   string `mapstructure:"base_url"`
	Dimension int    `mapstructure:"dimension"`
}

// LLMConfig drives the optional narrative refinement stage.
type LLMConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"`
	Timeout int    `mapstructure:"timeout"` // milliseconds
}

type SessionConfig struct {
	KeyPrefix string `mapstructure:"key_prefix"`
	TTL       int    `mapstructure:"ttl"` // milliseconds
}
