package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config captures all runtime configuration derived from environment variables.
type Config struct {
	Port              string
	DataDriver        string
	DataFile          string
	SQLitePath        string
	DBURL             string
	S3Bucket          string
	S3Region          string
	S3Endpoint        string
	S3Key             string
	S3PathStyle       bool
	S3AccessKeyID     string
	S3SecretAccessKey string
	ReadTimeoutSecs   int
	WriteTimeoutSecs  int
	IdleTimeoutSecs   int
	SessionReadLimit  int
	DBMaxConns        int
	DBMinConns        int
	DBMaxIdleSecs     int
	DBMaxLifeSecs     int
	DBConnTimeoutSecs int
	DBStatementCache  int
}

var drivers = []string{"file", "sqlite", "postgres", "s3", "memory"}

// Load reads configuration from environment variables, applying defaults and validation.
func Load() (Config, error) {
	cfg := Config{
		Port:              getEnv("PORT", "8080"),
		DataDriver:        strings.ToLower(getEnv("DATA_DRIVER", "file")),
		DataFile:          getEnv("DATA_FILE", "movies.json"),
		SQLitePath:        getEnv("SQLITE_PATH", "movies.db"),
		DBURL:             os.Getenv("DB_URL"),
		S3Bucket:          os.Getenv("S3_BUCKET"),
		S3Region:          getEnv("S3_REGION", "us-east-1"),
		S3Endpoint:        os.Getenv("S3_ENDPOINT"),
		S3Key:             getEnv("S3_KEY", "movies.json"),
		S3PathStyle:       getEnvBool("S3_PATH_STYLE", false),
		S3AccessKeyID:     os.Getenv("S3_ACCESS_KEY_ID"),
		S3SecretAccessKey: os.Getenv("S3_SECRET_ACCESS_KEY"),
		ReadTimeoutSecs:   getEnvInt("SERVER_READ_TIMEOUT", 15),
		WriteTimeoutSecs:  getEnvInt("SERVER_WRITE_TIMEOUT", 15),
		IdleTimeoutSecs:   getEnvInt("SERVER_IDLE_TIMEOUT", 60),
		SessionReadLimit:  getEnvInt("SESSION_READ_LIMIT", 1<<20),
		DBMaxConns:        getEnvInt("DB_MAX_CONNS", 4),
		DBMinConns:        getEnvInt("DB_MIN_CONNS", 1),
		DBMaxIdleSecs:     getEnvInt("DB_MAX_CONN_IDLE_SECS", 300),
		DBMaxLifeSecs:     getEnvInt("DB_MAX_CONN_LIFETIME_SECS", 3600),
		DBConnTimeoutSecs: getEnvInt("DB_CONN_TIMEOUT_SECS", 10),
		DBStatementCache:  getEnvInt("DB_STATEMENT_CACHE_CAPACITY", 64),
	}

	if _, err := strconv.Atoi(cfg.Port); err != nil {
		return Config{}, fmt.Errorf("PORT must be numeric")
	}
	if !knownDriver(cfg.DataDriver) {
		return Config{}, fmt.Errorf("DATA_DRIVER must be one of %s", strings.Join(drivers, ", "))
	}
	switch cfg.DataDriver {
	case "file":
		if cfg.DataFile == "" {
			return Config{}, fmt.Errorf("DATA_FILE is required")
		}
	case "postgres":
		if cfg.DBURL == "" {
			return Config{}, fmt.Errorf("DB_URL is required")
		}
	case "s3":
		if cfg.S3Bucket == "" {
			return Config{}, fmt.Errorf("S3_BUCKET is required")
		}
		if cfg.S3AccessKeyID != "" && cfg.S3SecretAccessKey == "" {
			return Config{}, fmt.Errorf("S3_SECRET_ACCESS_KEY is required with S3_ACCESS_KEY_ID")
		}
	}
	if cfg.SessionReadLimit <= 0 {
		return Config{}, fmt.Errorf("SESSION_READ_LIMIT must be positive")
	}
	if cfg.DBMaxConns <= 0 {
		return Config{}, fmt.Errorf("DB_MAX_CONNS must be positive")
	}
	if cfg.DBMinConns < 0 {
		return Config{}, fmt.Errorf("DB_MIN_CONNS must be non-negative")
	}
	if cfg.DBMaxConns > 0 && cfg.DBMinConns > cfg.DBMaxConns {
		return Config{}, fmt.Errorf("DB_MIN_CONNS cannot exceed DB_MAX_CONNS")
	}
	if cfg.DBStatementCache < 0 {
		return Config{}, fmt.Errorf("DB_STATEMENT_CACHE_CAPACITY must be non-negative")
	}

	return cfg, nil
}

func knownDriver(name string) bool {
	for _, d := range drivers {
		if d == name {
			return true
		}
	}
	return false
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseBool(val); err == nil {
			return parsed
		}
	}
	return fallback
}
