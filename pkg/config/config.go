package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	JWT       JWTConfig
	Embedding EmbeddingConfig
	Matching  MatchingConfig
	Cache     CacheConfig
	Logger    LoggerConfig
}

type LoggerConfig struct {
	Level string
}

type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type JWTConfig struct {
	SecretKey  string
	Expiration time.Duration
}

// EmbeddingConfig controls the embedding provider client. BaseURL points at
// an OpenAI-compatible /v1/embeddings endpoint; an empty APIKey selects the
// deterministic local embedder instead.
type EmbeddingConfig struct {
	BaseURL        string
	APIKey         string
	Model          string
	Dimensions     int
	MaxTextLength  int
	RequestTimeout time.Duration
	MaxAttempts    int
	BackoffBase    time.Duration
	BackoffCap     time.Duration
	MaxInFlight    int64
	CacheTTL       time.Duration
}

// MatchingConfig carries the tunables of the dedup pipeline. The percentile,
// margin and clamp values are empirical; treat them as knobs, not contracts.
type MatchingConfig struct {
	MinQueryLength   int
	DefaultLimit     int
	MaxLimit         int
	TopKMultiplier   int
	SampleSize       int
	SampleTopK       int
	Percentile       float64
	SafetyMargin     float64
	MinThreshold     float64
	MaxThreshold     float64
	DefaultThreshold float64
	RelaxedThreshold float64
	ThresholdTTL     time.Duration
}

type CacheConfig struct {
	MemoryCapacityBytes int64
	PromoteTTL          time.Duration
	SharedEnabled       bool
}

func Load() (*Config, error) {
	// .env is optional; environment variables win (Docker/K8s deployments).
	envFiles := []string{".env", "../.env", "../../.env"}
	for _, envFile := range envFiles {
		if err := godotenv.Load(envFile); err == nil {
			break
		}
	}

	readTimeout, _ := strconv.Atoi(getEnv("SERVER_READ_TIMEOUT", "30"))
	writeTimeout, _ := strconv.Atoi(getEnv("SERVER_WRITE_TIMEOUT", "30"))
	jwtExp, _ := strconv.Atoi(getEnv("JWT_EXPIRATION_HOURS", "24"))

	embedDims, _ := strconv.Atoi(getEnv("EMBEDDING_DIMENSIONS", "1536"))
	embedMaxLen, _ := strconv.Atoi(getEnv("EMBEDDING_MAX_TEXT_LENGTH", "2000"))
	embedTimeout, _ := strconv.Atoi(getEnv("EMBEDDING_TIMEOUT_SECONDS", "30"))
	embedAttempts, _ := strconv.Atoi(getEnv("EMBEDDING_MAX_ATTEMPTS", "3"))
	embedInFlight, _ := strconv.Atoi(getEnv("EMBEDDING_MAX_IN_FLIGHT", "5"))
	embedCacheTTL, _ := strconv.Atoi(getEnv("EMBEDDING_CACHE_TTL_HOURS", "24"))

	minQueryLen, _ := strconv.Atoi(getEnv("MATCH_MIN_QUERY_LENGTH", "10"))
	defaultLimit, _ := strconv.Atoi(getEnv("MATCH_DEFAULT_LIMIT", "5"))
	maxLimit, _ := strconv.Atoi(getEnv("MATCH_MAX_LIMIT", "20"))
	topKMult, _ := strconv.Atoi(getEnv("MATCH_TOP_K_MULTIPLIER", "2"))
	sampleSize, _ := strconv.Atoi(getEnv("THRESHOLD_SAMPLE_SIZE", "3"))
	sampleTopK, _ := strconv.Atoi(getEnv("THRESHOLD_SAMPLE_TOP_K", "10"))
	percentile := getEnvFloat("THRESHOLD_PERCENTILE", 0.25)
	margin := getEnvFloat("THRESHOLD_SAFETY_MARGIN", 0.05)
	minThreshold := getEnvFloat("THRESHOLD_MIN", 0.45)
	maxThreshold := getEnvFloat("THRESHOLD_MAX", 0.70)
	defaultThreshold := getEnvFloat("THRESHOLD_DEFAULT", 0.55)
	relaxedThreshold := getEnvFloat("THRESHOLD_RELAXED_DEFAULT", 0.50)
	thresholdTTL, _ := strconv.Atoi(getEnv("THRESHOLD_CACHE_TTL_MINUTES", "60"))

	memCapacity, _ := strconv.ParseInt(getEnv("CACHE_MEMORY_CAPACITY_BYTES", strconv.FormatInt(100<<20, 10)), 10, 64)
	promoteTTL, _ := strconv.Atoi(getEnv("CACHE_PROMOTE_TTL_MINUTES", "5"))
	sharedEnabled := getEnv("CACHE_SHARED_ENABLED", "true") == "true"

	return &Config{
		Server: ServerConfig{
			Port:         getEnv("SERVER_PORT", "8080"),
			ReadTimeout:  time.Duration(readTimeout) * time.Second,
			WriteTimeout: time.Duration(writeTimeout) * time.Second,
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "ticketmatch"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		JWT: JWTConfig{
			SecretKey:  getEnv("JWT_SECRET_KEY", "your-secret-key-change-in-production"),
			Expiration: time.Duration(jwtExp) * time.Hour,
		},
		Embedding: EmbeddingConfig{
			BaseURL:        getEnv("EMBEDDING_BASE_URL", "https://api.openai.com"),
			APIKey:         getEnv("EMBEDDING_API_KEY", ""),
			Model:          getEnv("EMBEDDING_MODEL", "text-embedding-ada-002"),
			Dimensions:     embedDims,
			MaxTextLength:  embedMaxLen,
			RequestTimeout: time.Duration(embedTimeout) * time.Second,
			MaxAttempts:    embedAttempts,
			BackoffBase:    time.Second,
			BackoffCap:     32 * time.Second,
			MaxInFlight:    int64(embedInFlight),
			CacheTTL:       time.Duration(embedCacheTTL) * time.Hour,
		},
		Matching: MatchingConfig{
			MinQueryLength:   minQueryLen,
			DefaultLimit:     defaultLimit,
			MaxLimit:         maxLimit,
			TopKMultiplier:   topKMult,
			SampleSize:       sampleSize,
			SampleTopK:       sampleTopK,
			Percentile:       percentile,
			SafetyMargin:     margin,
			MinThreshold:     minThreshold,
			MaxThreshold:     maxThreshold,
			DefaultThreshold: defaultThreshold,
			RelaxedThreshold: relaxedThreshold,
			ThresholdTTL:     time.Duration(thresholdTTL) * time.Minute,
		},
		Cache: CacheConfig{
			MemoryCapacityBytes: memCapacity,
			PromoteTTL:          time.Duration(promoteTTL) * time.Minute,
			SharedEnabled:       sharedEnabled,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}
