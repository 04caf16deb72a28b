// Package config loads deckhub settings from a .env file and the environment.
package config

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMongo    = "mongo"
)

// Config is the HTTP server configuration.
type Config struct {
	Port        string `env:"PORT" envDefault:"3000"`
	AppEnv      string `env:"APP_ENV" envDefault:"development"`
	JWTSecret   string `env:"JWT_SECRET"`
	CORSOrigins string `env:"CORS_ORIGINS" envDefault:"http://localhost:3000"`

	RateLimitMax           int `env:"RATE_LIMIT_MAX_REQUESTS" envDefault:"100"`
	RateLimitWindowSeconds int `env:"RATE_LIMIT_WINDOW_SECONDS" envDefault:"900"`

	Database Database
}

// Database selects and addresses the storage backend.
type Database struct {
	Driver string `env:"DB_DRIVER" envDefault:"postgres"`
	Debug  bool   `env:"DB_DEBUG"`

	URL      string `env:"DATABASE_URL"`
	Host     string `env:"DB_HOST" envDefault:"localhost"`
	Port     string `env:"DB_PORT" envDefault:"5432"`
	User     string `env:"DB_USER" envDefault:"postgres"`
	Password string `env:"DB_PASSWORD"`
	Name     string `env:"DB_NAME" envDefault:"deckhub"`
	SSLMode  string `env:"DB_SSLMODE" envDefault:"disable"`

	SQLitePath string `env:"SQLITE_PATH" envDefault:"./data/deckhub.db"`

	MongoURI      string `env:"MONGO_URI" envDefault:"mongodb://localhost:27017"`
	MongoDatabase string `env:"MONGO_DB" envDefault:"deckhub"`
}

// PostgresDSN returns DATABASE_URL, or a DSN assembled from the DB_* parts.
func (d Database) PostgresDSN() string {
	if d.URL != "" {
		return d.URL
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

func (d Database) validate() error {
	switch d.Driver {
	case DriverPostgres, DriverSQLite, DriverMongo:
		return nil
	}
	return fmt.Errorf("DB_DRIVER must be one of %s, %s, %s (got %q)", DriverPostgres, DriverSQLite, DriverMongo, d.Driver)
}

func (c Config) IsProduction() bool {
	return c.AppEnv == "production"
}

func loadDotEnv() {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, using system environment variables")
	}
}

// Load reads the full server configuration and validates it.
func Load() (Config, error) {
	loadDotEnv()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if cfg.JWTSecret == "" {
		return Config{}, errors.New("JWT_SECRET environment variable must be set. Generate one with: openssl rand -base64 64")
	}
	if len(cfg.JWTSecret) < 32 {
		return Config{}, errors.New("JWT_SECRET must be at least 32 characters long")
	}
	if err := cfg.Database.validate(); err != nil {
		return Config{}, err
	}
	if cfg.IsProduction() && (cfg.CORSOrigins == "" || cfg.CORSOrigins == "http://localhost:3000") {
		log.Println("WARNING: CORS_ORIGINS not properly configured for production")
	}
	return cfg, nil
}

// LoadDatabase reads only the storage settings, for offline tools.
func LoadDatabase() (Database, error) {
	loadDotEnv()

	var db Database
	if err := env.Parse(&db); err != nil {
		return Database{}, fmt.Errorf("parse env: %w", err)
	}
	if err := db.validate(); err != nil {
		return Database{}, err
	}
	return db, nil
}

// RateLimitWindow is the rate limiter refill window.
func (c Config) RateLimitWindow() time.Duration {
	return time.Duration(c.RateLimitWindowSeconds) * time.Second
}
