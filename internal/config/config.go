package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all environment-sourced application configuration
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	ETL      ETLConfig
	Auth     AuthConfig
	Logging  LoggingConfig
	Agent    AgentConfig
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// DatabaseConfig holds the datastore connection settings. There is no safe
// built-in default for the connection string.
type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// ETLConfig holds pipeline settings
type ETLConfig struct {
	CSVPath    string
	SampleSize int
	Seed       int64
}

// AuthConfig holds token settings. SecretKey has no default; its absence is a
// startup-fatal error for the API server.
type AuthConfig struct {
	SecretKey       string
	TokenTTL        time.Duration
	DevTokenEnabled bool
}

// LoggingConfig holds logger settings
type LoggingConfig struct {
	Level string
}

// AgentConfig holds settings for the natural-language agent binary
type AgentConfig struct {
	APIBase       string
	OpenAIKey     string
	OpenAIBaseURL string
	OpenAIModel   string
}

// LoadConfig reads configuration from the environment, loading a local .env
// file first when present.
func LoadConfig() (*Config, error) {
	// A missing .env is fine; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Host:         getEnv("SERVER_HOST", "0.0.0.0"),
			Port:         getEnvInt("SERVER_PORT", 8080),
			ReadTimeout:  getEnvDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout: getEnvDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:  getEnvDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
			ConnMaxIdleTime: getEnvDuration("DB_CONN_MAX_IDLE_TIME", 5*time.Minute),
		},
		ETL: ETLConfig{
			CSVPath:    getEnv("CSV_PATH", "./datos_accidentes.csv"),
			SampleSize: getEnvInt("ETL_SAMPLE_SIZE", 100),
			Seed:       int64(getEnvInt("ETL_SEED", 42)),
		},
		Auth: AuthConfig{
			SecretKey:       os.Getenv("SECRET_KEY"),
			TokenTTL:        getEnvDuration("TOKEN_TTL", 60*time.Minute),
			DevTokenEnabled: getEnvBool("AUTH_DEV_TOKEN_ENABLED", false),
		},
		Logging: LoggingConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Agent: AgentConfig{
			APIBase:       getEnv("AGENT_API_BASE", "http://127.0.0.1:8080"),
			OpenAIKey:     os.Getenv("OPENAI_API_KEY"),
			OpenAIBaseURL: getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
			OpenAIModel:   getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		},
	}

	return cfg, nil
}

// Validate checks the settings every binary needs.
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.ETL.SampleSize <= 0 {
		return fmt.Errorf("ETL_SAMPLE_SIZE must be positive, got %d", c.ETL.SampleSize)
	}
	return nil
}

// ValidateServer additionally checks the settings the API server needs. The
// signing secret has no safe default and must come from the environment.
func (c *Config) ValidateServer() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.Auth.SecretKey == "" {
		return fmt.Errorf("SECRET_KEY is required")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
