// Package config loads pipeline configuration from config files and
// environment variables.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the pipeline jobs.
type Config struct {
	// Log configuration
	Log LogConfig `mapstructure:"log"`

	// Database configuration
	Database DatabaseConfig `mapstructure:"database"`

	// Embedding configuration
	Embedding EmbeddingConfig `mapstructure:"embedding"`

	// Recognizer configuration (entity recognition service)
	Recognizer RecognizerConfig `mapstructure:"recognizer"`

	// Concepts configuration
	Concepts ConceptsConfig `mapstructure:"concepts"`

	// Gazetteer configuration
	Gazetteer GazetteerConfig `mapstructure:"gazetteer"`

	// Wikidata configuration
	Wikidata WikidataConfig `mapstructure:"wikidata"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// DatabaseConfig holds graph database configuration
type DatabaseConfig struct {
	URI      string `mapstructure:"uri"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
}

// EmbeddingConfig holds embedding service configuration
type EmbeddingConfig struct {
	Model   string `mapstructure:"model"`
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
}

// RecognizerConfig holds the entity-recognition service configuration
type RecognizerConfig struct {
	URL string `mapstructure:"url"`
}

// ConceptsConfig holds concept extraction configuration
type ConceptsConfig struct {
	MinGlobalFreq int      `mapstructure:"min_global_freq"`
	MaxTokens     int      `mapstructure:"max_tokens"`
	Allowlist     []string `mapstructure:"allowlist"`
}

// GazetteerConfig holds gazetteer import configuration
type GazetteerConfig struct {
	Source string `mapstructure:"source"`
}

// WikidataConfig holds external knowledge-base configuration
type WikidataConfig struct {
	SPARQLURL     string        `mapstructure:"sparql_url"`
	SearchURL     string        `mapstructure:"search_url"`
	UserAgent     string        `mapstructure:"user_agent"`
	BatchSize     int           `mapstructure:"batch_size"`
	MaxRetries    int           `mapstructure:"max_retries"`
	RetrySleep    time.Duration `mapstructure:"retry_sleep"`
	PolitePause   time.Duration `mapstructure:"polite_pause"`
	SearchSleep   time.Duration `mapstructure:"search_sleep"`
	SearchLimit   int           `mapstructure:"search_limit"`
	QueryTimeout  time.Duration `mapstructure:"query_timeout"`
	SearchTimeout time.Duration `mapstructure:"search_timeout"`
}

// Load loads configuration from file and environment variables.
// A .env file in the working directory is applied first so that its
// variables participate in the environment overrides.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file found, using process environment")
	}

	setDefaults()

	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	overrideWithEnv(config)

	return config, nil
}

// Validate checks that required credentials are present. Missing store
// credentials are the one startup condition treated as fatal.
func (c *Config) Validate() error {
	if c.Database.Password == "" {
		return fmt.Errorf("missing graph store password: set NEO4J_PASSWORD (or NEO4J_PASS) in the environment or a .env file")
	}
	return nil
}

// setDefaults sets default configuration values
func setDefaults() {
	viper.SetDefault("log.level", "info")

	viper.SetDefault("database.uri", "bolt://localhost:7687")
	viper.SetDefault("database.username", "neo4j")
	viper.SetDefault("database.database", "graphrag")

	viper.SetDefault("embedding.model", "text-embedding-3-small")

	viper.SetDefault("recognizer.url", "http://localhost:8081/analyze")

	viper.SetDefault("concepts.min_global_freq", 3)
	viper.SetDefault("concepts.max_tokens", 6)
	viper.SetDefault("concepts.allowlist", []string{
		"Terms", "Exaltations", "Triplicities", "Houses", "Decans",
	})

	viper.SetDefault("wikidata.sparql_url", "https://query.wikidata.org/sparql")
	viper.SetDefault("wikidata.search_url", "https://www.wikidata.org/w/api.php")
	viper.SetDefault("wikidata.user_agent", "argos-kg-enricher/1.0 (https://github.com/argos-kg/argos)")
	viper.SetDefault("wikidata.batch_size", 40)
	viper.SetDefault("wikidata.max_retries", 4)
	viper.SetDefault("wikidata.retry_sleep", 6*time.Second)
	viper.SetDefault("wikidata.polite_pause", 600*time.Millisecond)
	viper.SetDefault("wikidata.search_sleep", 250*time.Millisecond)
	viper.SetDefault("wikidata.search_limit", 10)
	viper.SetDefault("wikidata.query_timeout", 120*time.Second)
	viper.SetDefault("wikidata.search_timeout", 30*time.Second)
}

// overrideWithEnv overrides config with environment variables
func overrideWithEnv(config *Config) {
	if uri := os.Getenv("NEO4J_URI"); uri != "" {
		config.Database.URI = uri
	}
	if user := os.Getenv("NEO4J_USER"); user != "" {
		config.Database.Username = user
	}
	if pass := os.Getenv("NEO4J_PASSWORD"); pass != "" {
		config.Database.Password = pass
	} else if pass := os.Getenv("NEO4J_PASS"); pass != "" {
		config.Database.Password = pass
	}
	if db := os.Getenv("NEO4J_DATABASE"); db != "" {
		config.Database.Database = db
	}

	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		config.Embedding.APIKey = apiKey
	}
	if url := os.Getenv("NER_URL"); url != "" {
		config.Recognizer.URL = url
	}
	if src := os.Getenv("PLEIADES_JSON"); src != "" {
		config.Gazetteer.Source = src
	}
	if batch := os.Getenv("WDQS_BATCH"); batch != "" {
		var n int
		if _, err := fmt.Sscanf(batch, "%d", &n); err == nil && n > 0 {
			config.Wikidata.BatchSize = n
		}
	}
	if sleep := os.Getenv("WD_SEARCH_SLEEP"); sleep != "" {
		var secs float64
		if _, err := fmt.Sscanf(sleep, "%g", &secs); err == nil && secs >= 0 {
			config.Wikidata.SearchSleep = time.Duration(secs * float64(time.Second))
		}
	}
	if limit := os.Getenv("WD_SEARCH_LIMIT"); limit != "" {
		var n int
		if _, err := fmt.Sscanf(limit, "%d", &n); err == nil && n > 0 {
			config.Wikidata.SearchLimit = n
		}
	}
}
