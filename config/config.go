package config

import (
	"fmt"
	"log"

	"github.com/spf13/viper"
)

// Config holds the full application configuration loaded from environment variables or .env file.
//
// It is composed of smaller structs that represent different concerns of the system,
// such as server settings, Postgres connection details, Redis transport settings,
// and pipeline tuning knobs.
//
// Example YAML/ENV equivalent:
//
//	SERVER_PORT=8080
//	POSTGRES_HOST=localhost
//	POSTGRES_PORT=5432
//	POSTGRES_USER=admin
//	POSTGRES_PASSWORD=secret
//	POSTGRES_DB=fundpulse
//	POSTGRES_SSLMODE=disable
//	REDIS_HOST=localhost
//	REDIS_PORT=6379
//	PIPELINE_WEEKLY_QUEUE=fundpulse:weekly-price-queue
type Config struct {
	Server   ServerConfig   // HTTP server configuration
	Postgres PostgresConfig // PostgreSQL connection settings
	Redis    RedisConfig    // Redis transport settings
	Pipeline PipelineConfig // Aggregation pipeline settings
}

// ServerConfig holds HTTP server settings such as the port to listen on.
type ServerConfig struct {
	Port string // The TCP port the HTTP server will listen on (e.g., "8080")
}

// PostgresConfig defines connection details for PostgreSQL.
//
// Fields:
//   - Host: hostname of the database server.
//   - Port: port number of the database server (default 5432).
//   - User: username for authentication.
//   - Password: password for authentication.
//   - DBName: target database name.
//   - SSLMode: SSL mode (e.g., "disable", "require").
//   - URL: computed DSN used by database/sql to connect.
type PostgresConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
	URL      string
}

// RedisConfig defines connection details for the Redis instance that backs
// the change-notification and bucket-task queues.
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// PipelineConfig holds tuning knobs for the aggregation pipeline.
//
// Fields:
//   - ChangeQueue: queue carrying daily price change notifications.
//   - WeeklyQueue: queue carrying weekly bucket recompute tasks.
//   - MonthlyQueue: queue carrying monthly bucket recompute tasks.
//   - MonthlySource: source granularity for monthly aggregation ("day" or "week").
//   - SkipUnchanged: drop change notifications whose old and new price are equal.
//   - BatchSize: max notifications consumed per dispatcher batch.
//   - Workers: concurrent task handlers per aggregator instance.
//   - SweepSchedule: cron expression for the catch-up sweep ("" disables it).
//   - SweepDays: how many trailing days the catch-up sweep re-dispatches.
type PipelineConfig struct {
	ChangeQueue   string
	WeeklyQueue   string
	MonthlyQueue  string
	MonthlySource string
	SkipUnchanged bool
	BatchSize     int
	Workers       int
	SweepSchedule string
	SweepDays     int
}

// AppConfig is the globally accessible configuration instance.
//
// It is populated once via LoadConfig() and used throughout the application.
// All services should import this package and read from AppConfig instead of
// reloading environment variables directly.
var AppConfig Config

// LoadConfig initializes the global AppConfig by reading from .env file
// or directly from environment variables.
//
// Precedence (from lowest to highest):
//  1. Defaults set in this function.
//  2. Values from .env file (if present).
//  3. Environment variables.
//
// Behavior:
//   - Sets defaults for all required fields.
//   - Reads environment variables automatically with viper.AutomaticEnv().
//   - Constructs the PostgreSQL connection string (DSN).
//   - Calls validateConfig() to ensure required fields are present.
//
// Fatal exit:
//   - If required variables are missing, validateConfig() will terminate the app
//     with a descriptive log message. A missing queue or database setting is a
//     batch-level configuration failure and must surface before any processing.
func LoadConfig() {
	// Default values
	viper.SetDefault("SERVER_PORT", "8080")

	viper.SetDefault("POSTGRES_HOST", "localhost")
	viper.SetDefault("POSTGRES_PORT", 5432)
	viper.SetDefault("POSTGRES_USER", "postgres")
	viper.SetDefault("POSTGRES_PASSWORD", "postgres")
	viper.SetDefault("POSTGRES_DB", "fundpulse")
	viper.SetDefault("POSTGRES_SSLMODE", "disable")

	viper.SetDefault("REDIS_HOST", "localhost")
	viper.SetDefault("REDIS_PORT", 6379)
	viper.SetDefault("REDIS_PASSWORD", "")
	viper.SetDefault("REDIS_DB", 0)

	viper.SetDefault("PIPELINE_CHANGE_QUEUE", "fundpulse:daily-price-changes")
	viper.SetDefault("PIPELINE_WEEKLY_QUEUE", "fundpulse:weekly-price-queue")
	viper.SetDefault("PIPELINE_MONTHLY_QUEUE", "fundpulse:monthly-price-queue")
	viper.SetDefault("PIPELINE_MONTHLY_SOURCE", "day")
	viper.SetDefault("PIPELINE_SKIP_UNCHANGED", false)
	viper.SetDefault("PIPELINE_BATCH_SIZE", 100)
	viper.SetDefault("PIPELINE_WORKERS", 4)
	viper.SetDefault("PIPELINE_SWEEP_SCHEDULE", "")
	viper.SetDefault("PIPELINE_SWEEP_DAYS", 7)

	// Optionally read from .env if present (common in local dev)
	viper.SetConfigFile(".env")
	_ = viper.ReadInConfig() // ignore error if no .env

	// Read environment variables automatically
	viper.AutomaticEnv()

	// Populate global config instance
	AppConfig = Config{
		Server: ServerConfig{
			Port: viper.GetString("SERVER_PORT"),
		},
		Postgres: PostgresConfig{
			Host:     viper.GetString("POSTGRES_HOST"),
			Port:     viper.GetInt("POSTGRES_PORT"),
			User:     viper.GetString("POSTGRES_USER"),
			Password: viper.GetString("POSTGRES_PASSWORD"),
			DBName:   viper.GetString("POSTGRES_DB"),
			SSLMode:  viper.GetString("POSTGRES_SSLMODE"),
		},
		Redis: RedisConfig{
			Host:     viper.GetString("REDIS_HOST"),
			Port:     viper.GetInt("REDIS_PORT"),
			Password: viper.GetString("REDIS_PASSWORD"),
			DB:       viper.GetInt("REDIS_DB"),
		},
		Pipeline: PipelineConfig{
			ChangeQueue:   viper.GetString("PIPELINE_CHANGE_QUEUE"),
			WeeklyQueue:   viper.GetString("PIPELINE_WEEKLY_QUEUE"),
			MonthlyQueue:  viper.GetString("PIPELINE_MONTHLY_QUEUE"),
			MonthlySource: viper.GetString("PIPELINE_MONTHLY_SOURCE"),
			SkipUnchanged: viper.GetBool("PIPELINE_SKIP_UNCHANGED"),
			BatchSize:     viper.GetInt("PIPELINE_BATCH_SIZE"),
			Workers:       viper.GetInt("PIPELINE_WORKERS"),
			SweepSchedule: viper.GetString("PIPELINE_SWEEP_SCHEDULE"),
			SweepDays:     viper.GetInt("PIPELINE_SWEEP_DAYS"),
		},
	}

	// Construct Postgres DSN (used by database/sql)
	AppConfig.Postgres.URL = fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		AppConfig.Postgres.User,
		AppConfig.Postgres.Password,
		AppConfig.Postgres.Host,
		AppConfig.Postgres.Port,
		AppConfig.Postgres.DBName,
		AppConfig.Postgres.SSLMode,
	)

	// Validate critical fields
	validateConfig()
}

// validateConfig ensures required variables are present and terminates
// the application if they are missing.
//
// This avoids unexpected runtime failures due to incomplete configuration.
//
// Behavior:
//   - Checks each critical field of AppConfig.
//   - Collects missing ones in a slice.
//   - If any are missing, logs them and terminates the app with log.Fatalf().
func validateConfig() {
	var missing []string

	if AppConfig.Server.Port == "" {
		missing = append(missing, "SERVER_PORT")
	}
	if AppConfig.Postgres.Host == "" {
		missing = append(missing, "POSTGRES_HOST")
	}
	if AppConfig.Postgres.Port == 0 {
		missing = append(missing, "POSTGRES_PORT")
	}
	if AppConfig.Postgres.User == "" {
		missing = append(missing, "POSTGRES_USER")
	}
	if AppConfig.Postgres.Password == "" {
		missing = append(missing, "POSTGRES_PASSWORD")
	}
	if AppConfig.Postgres.DBName == "" {
		missing = append(missing, "POSTGRES_DB")
	}
	if AppConfig.Redis.Host == "" {
		missing = append(missing, "REDIS_HOST")
	}
	if AppConfig.Redis.Port == 0 {
		missing = append(missing, "REDIS_PORT")
	}
	if AppConfig.Pipeline.ChangeQueue == "" {
		missing = append(missing, "PIPELINE_CHANGE_QUEUE")
	}
	if AppConfig.Pipeline.WeeklyQueue == "" {
		missing = append(missing, "PIPELINE_WEEKLY_QUEUE")
	}
	if AppConfig.Pipeline.MonthlyQueue == "" {
		missing = append(missing, "PIPELINE_MONTHLY_QUEUE")
	}
	if s := AppConfig.Pipeline.MonthlySource; s != "day" && s != "week" {
		missing = append(missing, "PIPELINE_MONTHLY_SOURCE (must be 'day' or 'week')")
	}

	if len(missing) > 0 {
		log.Fatalf("missing or invalid required environment variables: %v\n", missing)
	}
}
