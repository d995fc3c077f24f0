package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DefaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	DefaultGeminiModel   = "gemini-2.0-flash"
)

// Config holds application configuration
type Config struct {
	Port     string
	Env      string
	LogLevel string

	GeminiAPIKey    string
	GeminiBaseURL   string
	GeminiModel     string
	GeminiTransport string

	GenerationMaxTokens   int
	GenerationTemperature float64
	GenerationTopK        int
	GenerationTopP        float64

	MinRequestInterval time.Duration

	// RetryMaxRetries counts retries after the first call: 5 allows 6 calls.
	// Zero selects the default of 5 and a negative value disables retries.
	RetryMaxRetries int
	RetryBaseDelay  time.Duration
	HTTPTimeout     time.Duration

	ContextCapacity  int
	SegmentThreshold int
	Language         string
	ContinuePhrases  []string
	AddressAs        string

	OCRCommand   string
	OCRLanguages string
	OCRTimeout   time.Duration

	RedisAddr        string
	RedisPassword    string
	RedisTLS         bool
	ResponseCacheTTL time.Duration

	AWSRegion          string
	AWSAccessKeyID     string
	AWSSecretAccessKey string
	BedrockModelID     string

	CORSAllowedOrigins []string
	RateLimitRPS       float64
	RateLimitBurst     int

	// EnvFileErr is set when an existing .env file could not be applied.
	EnvFileErr error
}

// MaxRetryLimit is the largest accepted RETRY_MAX_RETRIES.
const MaxRetryLimit = 10

// Load reads configuration from environment variables. An optional .env file
// (ENV_FILE, default ".env") is applied first without overriding variables
// already present in the process environment.
func Load() *Config {
	envErr := loadDotEnv(getEnv("ENV_FILE", ".env"))

	return &Config{
		Port:     getEnv("PORT", "8080"),
		Env:      getEnv("ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		GeminiAPIKey:    strings.TrimSpace(getEnv("GEMINI_API_KEY", "")),
		GeminiBaseURL:   strings.TrimRight(getEnv("GEMINI_BASE_URL", DefaultGeminiBaseURL), "/"),
		GeminiModel:     getEnv("GEMINI_MODEL", DefaultGeminiModel),
		GeminiTransport: strings.ToLower(strings.TrimSpace(getEnv("GEMINI_TRANSPORT", "rest"))),

		GenerationMaxTokens:   getEnvAsInt("GENERATION_MAX_TOKENS", 1024),
		GenerationTemperature: getEnvAsFloat("GENERATION_TEMPERATURE", 0.7),
		GenerationTopK:        getEnvAsInt("GENERATION_TOP_K", 40),
		GenerationTopP:        getEnvAsFloat("GENERATION_TOP_P", 0.95),

		MinRequestInterval: getEnvAsMillis("MIN_REQUEST_INTERVAL", 3000*time.Millisecond),
		RetryMaxRetries:    getEnvAsInt("RETRY_MAX_RETRIES", 5),
		RetryBaseDelay:     getEnvAsMillis("RETRY_BASE_DELAY", 2000*time.Millisecond),
		HTTPTimeout:        getEnvAsDuration("HTTP_TIMEOUT", 60*time.Second),

		ContextCapacity:  getEnvAsInt("CONTEXT_CAPACITY", 10),
		SegmentThreshold: getEnvAsInt("SEGMENT_THRESHOLD", 100),
		Language:         getEnv("LANGUAGE", "zh-TW"),
		ContinuePhrases:  getEnvAsList("CONTINUE_PHRASES"),
		AddressAs:        getEnv("ADDRESS_AS", ""),

		OCRCommand:   getEnv("OCR_COMMAND", "tesseract"),
		OCRLanguages: getEnv("OCR_LANGUAGES", "chi_tra+eng"),
		OCRTimeout:   getEnvAsMillis("OCR_TIMEOUT", 180000*time.Millisecond),

		RedisAddr:        getEnv("REDIS_ADDR", ""),
		RedisPassword:    getEnv("REDIS_PASSWORD", ""),
		RedisTLS:         getEnvAsBool("REDIS_TLS", false),
		ResponseCacheTTL: getEnvAsDuration("RESPONSE_CACHE_TTL", time.Hour),

		AWSRegion:          getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
		BedrockModelID:     getEnv("BEDROCK_MODEL_ID", ""),

		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS"),
		RateLimitRPS:       getEnvAsFloat("RATE_LIMIT_RPS", 2),
		RateLimitBurst:     getEnvAsInt("RATE_LIMIT_BURST", 5),

		EnvFileErr: envErr,
	}
}

// Validate reports configuration problems without aborting. A missing API key
// is reported here but the service still starts and answers with a
// misconfiguration message.
func (c *Config) Validate() error {
	var errs []error
	if c.EnvFileErr != nil {
		errs = append(errs, c.EnvFileErr)
	}
	if c.GeminiAPIKey == "" {
		errs = append(errs, errors.New("GEMINI_API_KEY is not set"))
	}
	switch c.GeminiTransport {
	case "rest", "sdk":
	default:
		errs = append(errs, fmt.Errorf("GEMINI_TRANSPORT %q must be rest or sdk", c.GeminiTransport))
	}
	if c.MinRequestInterval < 0 {
		errs = append(errs, errors.New("MIN_REQUEST_INTERVAL must not be negative"))
	}
	if c.RetryMaxRetries > MaxRetryLimit {
		errs = append(errs, fmt.Errorf("RETRY_MAX_RETRIES %d must be at most %d", c.RetryMaxRetries, MaxRetryLimit))
	}
	if c.ContextCapacity < 2 {
		errs = append(errs, fmt.Errorf("CONTEXT_CAPACITY %d must be at least 2", c.ContextCapacity))
	}
	if c.SegmentThreshold < 1 {
		errs = append(errs, fmt.Errorf("SEGMENT_THRESHOLD %d must be positive", c.SegmentThreshold))
	}
	return errors.Join(errs...)
}

// loadDotEnv applies path if it exists. A missing file is not an error.
func loadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("config: load %s: %w", path, err)
	}
	return nil
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsMillis accepts either a bare integer (milliseconds) or a Go duration.
func getEnvAsMillis(key string, defaultValue time.Duration) time.Duration {
	valueStr := strings.TrimSpace(getEnv(key, ""))
	if valueStr == "" {
		return defaultValue
	}
	if ms, err := strconv.ParseInt(valueStr, 10, 64); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	return getEnvAsDuration(key, defaultValue)
}

func getEnvAsList(key string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
