package config

import (
	"testing"
	"time"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/accidentes")
	t.Setenv("SECRET_KEY", "")
	t.Setenv("ETL_SAMPLE_SIZE", "")
	t.Setenv("SERVER_PORT", "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.ETL.SampleSize != 100 {
		t.Errorf("ETL.SampleSize = %d, want 100", cfg.ETL.SampleSize)
	}
	if cfg.ETL.Seed != 42 {
		t.Errorf("ETL.Seed = %d, want 42", cfg.ETL.Seed)
	}
	if cfg.ETL.CSVPath != "./datos_accidentes.csv" {
		t.Errorf("ETL.CSVPath = %q, want ./datos_accidentes.csv", cfg.ETL.CSVPath)
	}
	if cfg.Auth.DevTokenEnabled {
		t.Error("Auth.DevTokenEnabled should default to false")
	}
	if cfg.Auth.TokenTTL != 60*time.Minute {
		t.Errorf("Auth.TokenTTL = %v, want 60m", cfg.Auth.TokenTTL)
	}
}

func TestLoadConfig_Overrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/accidentes")
	t.Setenv("ETL_SAMPLE_SIZE", "250")
	t.Setenv("ETL_SEED", "7")
	t.Setenv("AUTH_DEV_TOKEN_ENABLED", "true")
	t.Setenv("SERVER_READ_TIMEOUT", "5s")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.ETL.SampleSize != 250 {
		t.Errorf("ETL.SampleSize = %d, want 250", cfg.ETL.SampleSize)
	}
	if cfg.ETL.Seed != 7 {
		t.Errorf("ETL.Seed = %d, want 7", cfg.ETL.Seed)
	}
	if !cfg.Auth.DevTokenEnabled {
		t.Error("Auth.DevTokenEnabled = false, want true")
	}
	if cfg.Server.ReadTimeout != 5*time.Second {
		t.Errorf("Server.ReadTimeout = %v, want 5s", cfg.Server.ReadTimeout)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name:   "valid",
			mutate: func(c *Config) {},
		},
		{
			name:    "missing database url",
			mutate:  func(c *Config) { c.Database.URL = "" },
			wantErr: true,
		},
		{
			name:    "non positive sample size",
			mutate:  func(c *Config) { c.ETL.SampleSize = 0 },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				Database: DatabaseConfig{URL: "postgres://localhost/accidentes"},
				ETL:      ETLConfig{SampleSize: 100},
			}
			tt.mutate(cfg)

			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr = %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateServer(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name:   "valid",
			mutate: func(c *Config) {},
		},
		{
			name:    "missing secret key",
			mutate:  func(c *Config) { c.Auth.SecretKey = "" },
			wantErr: true,
		},
		{
			name:    "port out of range",
			mutate:  func(c *Config) { c.Server.Port = 70000 },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				Server:   ServerConfig{Port: 8080},
				Database: DatabaseConfig{URL: "postgres://localhost/accidentes"},
				ETL:      ETLConfig{SampleSize: 100},
				Auth:     AuthConfig{SecretKey: "test-secret"},
			}
			tt.mutate(cfg)

			err := cfg.ValidateServer()
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateServer() error = %v, wantErr = %v", err, tt.wantErr)
			}
		})
	}
}
