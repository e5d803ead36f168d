package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds application configuration loaded from environment.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	Assistant AssistantConfig
	Voice     VoiceConfig
	AWS       AWSConfig
	Store     StoreConfig
	Demo      DemoConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port               string
	ReadTimeout        int
	WriteTimeout       int
	CORSAllowedOrigins string // comma-separated, or "*" for all
}

// DatabaseConfig holds PostgreSQL connection settings (audit log, demo accounts).
type DatabaseConfig struct {
	URL      string // if set, used as-is
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// RedisConfig holds Redis connection settings (organization document store,
// refresh pub/sub, audit queue).
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// JWTConfig holds JWT signing and validation settings.
type JWTConfig struct {
	Secret      string
	ExpireHours int
}

// AssistantConfig holds the generative-AI provider settings for the action
// bridge and analytics. TimeoutSec bounds every provider call.
type AssistantConfig struct {
	BaseURL        string
	APIKey         string
	CommandModel   string
	AnalyticsModel string
	TimeoutSec     int
}

// VoiceConfig holds live voice session settings. The provider endpoint speaks
// the bidirectional audio protocol: 16kHz mono PCM in, audio plus tool-call
// events out. Empty ProviderURL disables the voice capability.
type VoiceConfig struct {
	ProviderURL string
	Model       string
	SampleRate  int
}

// AWSConfig holds AWS credentials and the patient-file bucket.
type AWSConfig struct {
	Region               string
	AccessKeyID          string
	SecretAccessKey      string
	FilesBucket          string
	PresignExpireMinutes int
}

// DemoConfig describes the local demo account seeded at startup. Left
// empty, no demo account is created and demo sign-in is effectively off.
type DemoConfig struct {
	Email    string
	Password string
	Name     string
}

// StoreConfig tunes the state store persistence boundary.
type StoreConfig struct {
	DocumentKey    string // Redis key of the organization document
	SaveRetries    int    // attempts before a durable write is given up
	RetryBackoffMS int
}

// DSN returns the PostgreSQL connection string.
// If DatabaseConfig.URL is set (e.g. DATABASE_URL env), it is used as-is; otherwise built from components.
func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode,
	)
}

// Load reads configuration from environment, with optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()      // .env
	_ = godotenv.Load("env") // env (no leading dot)

	readTimeout, _ := strconv.Atoi(getEnv("READ_TIMEOUT_SEC", "30"))
	writeTimeout, _ := strconv.Atoi(getEnv("WRITE_TIMEOUT_SEC", "30"))
	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	jwtExpire, _ := strconv.Atoi(getEnv("JWT_EXPIRE_HOURS", "24"))

	cfg := &Config{
		Server: ServerConfig{
			Port:               getEnv("PORT", "8080"),
			ReadTimeout:        readTimeout,
			WriteTimeout:       writeTimeout,
			CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:3001"),
		},
		Database: DatabaseConfig{
			URL:      getEnv("DATABASE_URL", "postgres://localhost:5432/odontosync?sslmode=disable"),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "odontosync"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		JWT: JWTConfig{
			Secret:      getEnv("JWT_SECRET", "change-me-in-production"),
			ExpireHours: jwtExpire,
		},
		Assistant: AssistantConfig{
			BaseURL:        getEnv("ASSISTANT_BASE_URL", "https://generativelanguage.googleapis.com/v1beta"),
			APIKey:         getEnv("ASSISTANT_API_KEY", ""),
			CommandModel:   getEnv("ASSISTANT_COMMAND_MODEL", "gemini-3-pro-preview"),
			AnalyticsModel: getEnv("ASSISTANT_ANALYTICS_MODEL", "gemini-3-flash-preview"),
			TimeoutSec:     getEnvInt("ASSISTANT_TIMEOUT_SEC", 20),
		},
		Voice: VoiceConfig{
			ProviderURL: getEnv("VOICE_PROVIDER_URL", ""),
			Model:       getEnv("VOICE_MODEL", "gemini-2.5-flash-native-audio-preview-12-2025"),
			SampleRate:  getEnvInt("VOICE_SAMPLE_RATE", 16000),
		},
		AWS: AWSConfig{
			Region:               getEnv("AWS_REGION", "us-east-1"),
			AccessKeyID:          getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey:      getEnv("AWS_SECRET_ACCESS_KEY", ""),
			FilesBucket:          getEnv("AWS_S3_FILES_BUCKET", "odontosync-patient-files"),
			PresignExpireMinutes: getEnvInt("AWS_PRESIGN_EXPIRE_MINUTES", 15),
		},
		Demo: DemoConfig{
			Email:    getEnv("DEMO_EMAIL", ""),
			Password: getEnv("DEMO_PASSWORD", ""),
			Name:     getEnv("DEMO_NAME", "Demo User"),
		},
		Store: StoreConfig{
			DocumentKey:    getEnv("STORE_DOCUMENT_KEY", "odontosync:org"),
			SaveRetries:    getEnvInt("STORE_SAVE_RETRIES", 3),
			RetryBackoffMS: getEnvInt("STORE_RETRY_BACKOFF_MS", 200),
		},
	}
	return cfg, nil
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

// SplitTrim splits a comma-separated env value into trimmed non-empty parts.
func SplitTrim(s, sep string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, v := range strings.Split(s, sep) {
		if t := strings.TrimSpace(v); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
