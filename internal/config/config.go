package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config reúne a configuração do serviço, lida do ambiente
type Config struct {
	Port        string
	ServiceName string
	Env         string
	Debug       bool
	LogLevel    string

	Database Database

	OTelEnabled  bool
	OTelEndpoint string

	DefaultLoanPeriod time.Duration
	SweepBatchSize    int
}

// Database descreve a conexão com o banco
type Database struct {
	Driver        string
	URL           string
	User          string
	Password      string
	Host          string
	Port          string
	Name          string
	MaxConns      int32
	RetryAttempts uint
}

// Load lê a configuração das variáveis de ambiente
func Load() Config {
	return Config{
		Port:        getEnv("PORT", "8080"),
		ServiceName: getEnv("SERVICE_NAME", "library-service"),
		Env:         getEnv("APP_ENV", "development"),
		Debug:       getEnvBool("APP_DEBUG", false),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		Database: Database{
			Driver:        getEnv("DATABASE_DRIVER", "pgx"),
			URL:           getEnv("DATABASE_URL", ""),
			User:          getEnv("DATABASE_USER", "root"),
			Password:      getEnv("DATABASE_PASSWORD", "pass"),
			Host:          getEnv("DATABASE_HOST", "localhost"),
			Port:          getEnv("DATABASE_PORT", "5432"),
			Name:          getEnv("DATABASE_NAME", "library_db"),
			MaxConns:      int32(getEnvInt("DATABASE_MAX_CONNS", 10)),
			RetryAttempts: uint(getEnvInt("STORAGE_RETRY_ATTEMPTS", 5)),
		},
		OTelEnabled:       getEnvBool("OTEL_ENABLED", true),
		OTelEndpoint:      getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318"),
		DefaultLoanPeriod: time.Duration(getEnvInt("RESERVATION_DEFAULT_LOAN_DAYS", 14)) * 24 * time.Hour,
		SweepBatchSize:    getEnvInt("SWEEP_BATCH_SIZE", 100),
	}
}

// DSN monta a string de conexão quando DATABASE_URL não foi informada
func (d Database) DSN() string {
	if d.URL != "" {
		return d.URL
	}
	if d.Driver == "sqlite3" {
		return d.Name + ".db"
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name,
	)
}

// IsProduction indica se o serviço roda em produção
func (c Config) IsProduction() bool {
	return c.Env == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value, err := strconv.Atoi(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvBool(key string, defaultValue bool) bool {
	value, err := strconv.ParseBool(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return value
}
