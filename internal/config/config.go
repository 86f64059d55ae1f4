package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type CropClaimServiceConfig struct {
	Port         string
	LogDir       string
	PostgresCfg  PostgresConfig
	RabbitMQCfg  RabbitMQConfig
	RedisCfg     RedisConfig
	MinioCfg     MinioConfig
	GeminiAPICfg GeminiAPIConfig
	ClaimCfg     ClaimConfig
	SessionCfg   SessionConfig
	WorkerCfg    WorkerConfig
}

type MinioConfig struct {
	Enabled          bool
	MinioURL         string
	MinioAccessKey   string
	MinioSecretKey   string
	MinioLocation    string
	MinioSecure      string
	MinioResourceURL string
}

type PostgresConfig struct {
	Enabled  bool
	DBname   string
	Username string
	Password string
	Host     string
	Port     string
}

type RabbitMQConfig struct {
	Enabled  bool
	Username string
	Password string
	Host     string
	Port     string
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     string
	Password string
	DB       int
}

// GeminiAPIConfig holds one API key per client; requests fail over across them.
type GeminiAPIConfig struct {
	APIKeys     []string
	FlashName   string
	Temperature float32
}

type ClaimConfig struct {
	YearToken          string
	EstimatedAmount    string
	SubmitDelay        time.Duration
	HistorySwitchDelay time.Duration
}

type SessionConfig struct {
	TTL time.Duration
}

type WorkerConfig struct {
	AnalysisWorkers   int
	AnalysisQueueSize int
}

func New() *CropClaimServiceConfig {
	return &CropClaimServiceConfig{
		Port:   getEnvOrDefault("PORT", "8090"),
		LogDir: getEnvOrDefault("LOG_DIR", "/agrisa/log/crop_claim_service"),
		PostgresCfg: PostgresConfig{
			Enabled:  getBoolEnvOrDefault("ENABLE_POSTGRES", false),
			DBname:   getEnvOrDefault("POSTGRES_DB", "crop_claim"),
			Username: getEnvOrDefault("POSTGRES_USER", "postgres"),
			Password: getEnvOrDefault("POSTGRES_PASSWORD", "postgres"),
			Host:     getEnvOrDefault("POSTGRES_HOST", "localhost"),
			Port:     getEnvOrDefault("POSTGRES_PORT", "5432"),
		},
		RabbitMQCfg: RabbitMQConfig{
			Enabled:  getBoolEnvOrDefault("ENABLE_RABBITMQ", false),
			Username: getEnvOrDefault("RABBITMQ_USER", "admin"),
			Password: getEnvOrDefault("RABBITMQ_PWD", "admin"),
			Host:     getEnvOrDefault("RABBITMQ_HOST", "localhost"),
			Port:     getEnvOrDefault("RABBITMQ_PORT", "5672"),
		},
		RedisCfg: RedisConfig{
			Enabled:  getBoolEnvOrDefault("ENABLE_REDIS", false),
			Host:     getEnvOrDefault("REDIS_HOST", "localhost"),
			Port:     getEnvOrDefault("REDIS_PORT", "6379"),
			Password: getEnvOrDefault("REDIS_PASSWORD", ""),
			DB:       getIntEnvOrDefault("REDIS_DB", 0),
		},
		MinioCfg: MinioConfig{
			Enabled:          getBoolEnvOrDefault("ENABLE_MINIO", false),
			MinioURL:         getEnvOrDefault("MINIO_ENDPOINT", "http://localhost:9407"),
			MinioAccessKey:   getEnvOrDefault("MINIO_ACCESS_KEY", "minio"),
			MinioSecretKey:   getEnvOrDefault("MINIO_SECRET_KEY", "minio123"),
			MinioLocation:    getEnvOrDefault("MINIO_LOCATION", "us-east-1"),
			MinioSecure:      getEnvOrDefault("MINIO_SECURE", "false"),
			MinioResourceURL: getEnvOrDefault("MINIO_RESOURCE_URL", "http://localhost:9407/"),
		},
		GeminiAPICfg: GeminiAPIConfig{
			APIKeys:     splitList(getEnvOrDefault("GEMINI_KEYS", "")),
			FlashName:   getEnvOrDefault("GEMINI_FLASH_MODEL", "gemini-2.5-flash"),
			Temperature: float32(getFloatEnvOrDefault("GEMINI_TEMPERATURE", 0.3)),
		},
		ClaimCfg: ClaimConfig{
			YearToken:          getEnvOrDefault("CLAIM_YEAR_TOKEN", "2024"),
			EstimatedAmount:    getEnvOrDefault("CLAIM_ESTIMATED_AMOUNT", "₹12,500"),
			SubmitDelay:        getDurationEnvOrDefault("CLAIM_SUBMIT_DELAY", 2*time.Second),
			HistorySwitchDelay: getDurationEnvOrDefault("HISTORY_SWITCH_DELAY", 500*time.Millisecond),
		},
		SessionCfg: SessionConfig{
			TTL: getDurationEnvOrDefault("SESSION_TTL", 24*time.Hour),
		},
		WorkerCfg: WorkerConfig{
			AnalysisWorkers:   getIntEnvOrDefault("ANALYSIS_WORKERS", 4),
			AnalysisQueueSize: getIntEnvOrDefault("ANALYSIS_QUEUE_SIZE", 64),
		},
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBoolEnvOrDefault(key string, defaultValue bool) bool {
	value, err := strconv.ParseBool(getEnvOrDefault(key, strconv.FormatBool(defaultValue)))
	if err != nil {
		return defaultValue
	}
	return value
}

func getIntEnvOrDefault(key string, defaultValue int) int {
	value, err := strconv.Atoi(getEnvOrDefault(key, ""))
	if err != nil {
		return defaultValue
	}
	return value
}

func getFloatEnvOrDefault(key string, defaultValue float64) float64 {
	value, err := strconv.ParseFloat(getEnvOrDefault(key, ""), 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getDurationEnvOrDefault(key string, defaultValue time.Duration) time.Duration {
	value, err := time.ParseDuration(getEnvOrDefault(key, ""))
	if err != nil {
		return defaultValue
	}
	return value
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
