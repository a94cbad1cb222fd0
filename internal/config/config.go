package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config captures runtime configuration for the extension service.
type Config struct {
	Port                int
	APIMountPath        string
	ConnectAPIURL       string
	ConnectAPIKey       string
	ConnectTimeout      time.Duration
	ConnectPageSize     int
	JWTSecret           []byte
	ChartConcurrency    int
	AllowedOrigins      []string
	APIRateLimitRPS     int
	APIRateLimitBurst   int
	MaxRequestBodyBytes int64
	MaxHeaderBytes      int
	ReadTimeout         time.Duration
	WriteTimeout        time.Duration
	IdleTimeout         time.Duration
	ShutdownTimeout     time.Duration
	LogLevel            string
	LogFormat           string
}

// Load reads configuration values from environment variables with sensible defaults.
// A .env file in the working directory, or the file named by ENV_FILE, is applied
// first without overriding variables that are already set.
func Load() (*Config, error) {
	if err := loadEnvFile(getEnvDefault("ENV_FILE", ".env")); err != nil {
		return nil, err
	}

	port, err := getEnvInt("PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("invalid PORT: %w", err)
	}

	mountPath := "/" + strings.Trim(getEnvDefault("API_MOUNT_PATH", "/api"), "/")

	apiURL := strings.TrimSuffix(os.Getenv("CONNECT_API_URL"), "/")
	if apiURL == "" {
		return nil, fmt.Errorf("CONNECT_API_URL must be provided")
	}
	apiKey, err := readSecret("CONNECT_API_KEY", "CONNECT_API_KEY_FILE")
	if err != nil {
		return nil, fmt.Errorf("unable to read connect api key: %w", err)
	}
	if len(apiKey) == 0 {
		return nil, fmt.Errorf("CONNECT_API_KEY or CONNECT_API_KEY_FILE must be provided")
	}
	connectTimeoutSeconds, err := getEnvInt("CONNECT_TIMEOUT_SECONDS", 30)
	if err != nil {
		return nil, fmt.Errorf("invalid CONNECT_TIMEOUT_SECONDS: %w", err)
	}
	connectPageSize, err := getEnvInt("CONNECT_PAGE_SIZE", 100)
	if err != nil {
		return nil, fmt.Errorf("invalid CONNECT_PAGE_SIZE: %w", err)
	}
	if connectPageSize <= 0 {
		return nil, fmt.Errorf("invalid CONNECT_PAGE_SIZE: must be positive")
	}

	jwtSecret, err := readSecret("JWT_SECRET", "JWT_SECRET_FILE")
	if err != nil {
		return nil, fmt.Errorf("unable to read JWT secret: %w", err)
	}
	if len(jwtSecret) == 0 {
		return nil, fmt.Errorf("JWT_SECRET or JWT_SECRET_FILE must be provided")
	}

	chartConcurrency, err := getEnvInt("CHART_CONCURRENCY", 4)
	if err != nil {
		return nil, fmt.Errorf("invalid CHART_CONCURRENCY: %w", err)
	}
	if chartConcurrency <= 0 {
		chartConcurrency = 1
	}

	apiRateLimitRPS, err := getEnvInt("API_RATE_LIMIT_RPS", 5)
	if err != nil {
		return nil, fmt.Errorf("invalid API_RATE_LIMIT_RPS: %w", err)
	}
	apiRateLimitBurst, err := getEnvInt("API_RATE_LIMIT_BURST", 20)
	if err != nil {
		return nil, fmt.Errorf("invalid API_RATE_LIMIT_BURST: %w", err)
	}
	if apiRateLimitBurst < apiRateLimitRPS {
		apiRateLimitBurst = apiRateLimitRPS
	}
	maxRequestBodyBytes, err := getEnvInt64("API_MAX_BODY_BYTES", 1<<20)
	if err != nil {
		return nil, fmt.Errorf("invalid API_MAX_BODY_BYTES: %w", err)
	}
	maxHeaderBytes, err := getEnvInt("API_MAX_HEADER_BYTES", 16384)
	if err != nil {
		return nil, fmt.Errorf("invalid API_MAX_HEADER_BYTES: %w", err)
	}
	readTimeoutSeconds, err := getEnvInt("API_READ_TIMEOUT_SECONDS", 10)
	if err != nil {
		return nil, fmt.Errorf("invalid API_READ_TIMEOUT_SECONDS: %w", err)
	}
	writeTimeoutSeconds, err := getEnvInt("API_WRITE_TIMEOUT_SECONDS", 60)
	if err != nil {
		return nil, fmt.Errorf("invalid API_WRITE_TIMEOUT_SECONDS: %w", err)
	}
	idleTimeoutSeconds, err := getEnvInt("API_IDLE_TIMEOUT_SECONDS", 60)
	if err != nil {
		return nil, fmt.Errorf("invalid API_IDLE_TIMEOUT_SECONDS: %w", err)
	}
	shutdownTimeoutSeconds, err := getEnvInt("SHUTDOWN_TIMEOUT_SECONDS", 10)
	if err != nil {
		return nil, fmt.Errorf("invalid SHUTDOWN_TIMEOUT_SECONDS: %w", err)
	}

	return &Config{
		Port:                port,
		APIMountPath:        mountPath,
		ConnectAPIURL:       apiURL,
		ConnectAPIKey:       string(apiKey),
		ConnectTimeout:      time.Duration(connectTimeoutSeconds) * time.Second,
		ConnectPageSize:     connectPageSize,
		JWTSecret:           jwtSecret,
		ChartConcurrency:    chartConcurrency,
		AllowedOrigins:      splitList(getEnvDefault("CORS_ALLOWED_ORIGINS", "https://*")),
		APIRateLimitRPS:     apiRateLimitRPS,
		APIRateLimitBurst:   apiRateLimitBurst,
		MaxRequestBodyBytes: maxRequestBodyBytes,
		MaxHeaderBytes:      maxHeaderBytes,
		ReadTimeout:         time.Duration(readTimeoutSeconds) * time.Second,
		WriteTimeout:        time.Duration(writeTimeoutSeconds) * time.Second,
		IdleTimeout:         time.Duration(idleTimeoutSeconds) * time.Second,
		ShutdownTimeout:     time.Duration(shutdownTimeoutSeconds) * time.Second,
		LogLevel:            getEnvDefault("LOG_LEVEL", "info"),
		LogFormat:           getEnvDefault("LOG_FORMAT", "json"),
	}, nil
}

func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// readSecret prefers the value of envKey and falls back to the file named by fileKey.
func readSecret(envKey, fileKey string) ([]byte, error) {
	if v := os.Getenv(envKey); v != "" {
		return bytesTrim([]byte(v)), nil
	}
	path := os.Getenv(fileKey)
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return bytesTrim(data), nil
}

func getEnvDefault(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func getEnvInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}

func getEnvInt64(key string, def int64) (int64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, err
	}
	return i, nil
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}

func bytesTrim(v []byte) []byte {
	for len(v) > 0 {
		switch v[len(v)-1] {
		case '\n', '\r', '\t', ' ':
			v = v[:len(v)-1]
		default:
			return v
		}
	}
	return v
}
