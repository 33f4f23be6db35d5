package config

import (
	"net"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	DataDir string       `yaml:"data_dir" mapstructure:"data_dir"`
	LLM     LLMConfig    `yaml:"llm" mapstructure:"llm"`
	Store   StoreConfig  `yaml:"store" mapstructure:"store"`
	Ingest  IngestConfig `yaml:"ingest" mapstructure:"ingest"`
	Search  SearchConfig `yaml:"search" mapstructure:"search"`
	Server  ServerConfig `yaml:"server" mapstructure:"server"`
	Log     LogConfig    `yaml:"log" mapstructure:"log"`
}

// LLMConfig configures the classification endpoint.
type LLMConfig struct {
	// Provider is "openai" for any OpenAI-compatible chat endpoint (Ollama,
	// llama.cpp, OpenAI itself) or "anthropic".
	Provider  string        `yaml:"provider" mapstructure:"provider"`
	BaseURL   string        `yaml:"base_url" mapstructure:"base_url"`
	APIKey    string        `yaml:"api_key" mapstructure:"api_key"`
	Model     string        `yaml:"model" mapstructure:"model"`
	Timeout   time.Duration `yaml:"timeout" mapstructure:"timeout"`
	MaxTokens int           `yaml:"max_tokens" mapstructure:"max_tokens"`

	// CacheURL is a redis:// URL; empty disables the completion cache.
	CacheURL string        `yaml:"cache_url" mapstructure:"cache_url"`
	CacheTTL time.Duration `yaml:"cache_ttl" mapstructure:"cache_ttl"`
}

// StoreConfig configures the episode store backend.
type StoreConfig struct {
	Driver string `yaml:"driver" mapstructure:"driver"`
	DSN    string `yaml:"dsn" mapstructure:"dsn"`

	MongoDatabase   string `yaml:"mongo_database" mapstructure:"mongo_database"`
	MongoCollection string `yaml:"mongo_collection" mapstructure:"mongo_collection"`

	SupabaseURL string `yaml:"supabase_url" mapstructure:"supabase_url"`
	SupabaseKey string `yaml:"supabase_key" mapstructure:"supabase_key"`
}

// IngestConfig tunes the ingestion pipeline.
type IngestConfig struct {
	Workers      int           `yaml:"workers" mapstructure:"workers"`
	RequestDelay time.Duration `yaml:"request_delay" mapstructure:"request_delay"`
	UserAgent    string        `yaml:"user_agent" mapstructure:"user_agent"`
}

// SearchConfig configures query parsing.
type SearchConfig struct {
	RichGrammar bool `yaml:"rich_grammar" mapstructure:"rich_grammar"`
}

// ServerConfig configures the HTTP query surface.
type ServerConfig struct {
	Host string `yaml:"host" mapstructure:"host"`
	Port int    `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Store drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverSupabase = "supabase"
	DriverMongo    = "mongo"
	DriverJSON     = "json"
)

// LLM providers.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// Load reads configuration from .env, an optional YAML file, and CASTEX_*
// environment variables, in increasing order of precedence. When path is
// empty, config.yaml is looked up in the working directory.
func Load(path string) (*Config, error) {
	// Missing .env is the common case.
	_ = godotenv.Load()

	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("CASTEX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("data_dir", "./data")
	v.SetDefault("llm.provider", ProviderOpenAI)
	v.SetDefault("llm.base_url", "http://localhost:11434/v1")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.model", "gemma3:4b-it-qat")
	v.SetDefault("llm.timeout", 60*time.Second)
	v.SetDefault("llm.max_tokens", 256)
	v.SetDefault("llm.cache_url", "")
	v.SetDefault("llm.cache_ttl", 30*24*time.Hour)
	v.SetDefault("store.driver", DriverSQLite)
	v.SetDefault("store.dsn", "")
	v.SetDefault("store.mongo_database", "castex")
	v.SetDefault("store.mongo_collection", "episodes")
	v.SetDefault("store.supabase_url", "")
	v.SetDefault("store.supabase_key", "")
	v.SetDefault("ingest.workers", 4)
	v.SetDefault("ingest.request_delay", time.Second)
	v.SetDefault("ingest.user_agent", "CastexBot/1.0 (+https://github.com/aavanian/castex)")
	v.SetDefault("search.rich_grammar", false)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8000)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks enumerations and bounds that viper cannot express.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case DriverSQLite, DriverPostgres, DriverSupabase, DriverMongo, DriverJSON:
	default:
		return eris.Errorf("config: unknown store driver %q", c.Store.Driver)
	}

	switch c.LLM.Provider {
	case ProviderOpenAI, ProviderAnthropic:
	default:
		return eris.Errorf("config: unknown llm provider %q", c.LLM.Provider)
	}

	if c.Ingest.Workers <= 0 {
		return eris.Errorf("config: ingest.workers must be positive, got %d", c.Ingest.Workers)
	}
	if c.Ingest.RequestDelay < 0 {
		return eris.Errorf("config: ingest.request_delay must not be negative")
	}
	if c.DataDir == "" {
		return eris.New("config: data_dir is required")
	}

	return nil
}

// SQLitePath is the default SQLite database file inside the data directory.
func (c *Config) SQLitePath() string {
	return filepath.Join(c.DataDir, "castex.db")
}

// FeedDir holds the per-podcast feed snapshots.
func (c *Config) FeedDir() string {
	return filepath.Join(c.DataDir, "feeds")
}

// LockPath guards against concurrent ingestion runs on the same data directory.
func (c *Config) LockPath() string {
	return filepath.Join(c.DataDir, "ingest.lock")
}

// Addr is the listen address for the HTTP server.
func (c ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
