package config

import (
	"errors"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration values loaded from environment variables.
type Config struct {
	DatabaseURL     string
	JWTSecret       string
	HTTPPort        string
	TokenExpiration time.Duration
	PublicURL       string // base URL used in confirmation links
	RunMigrations   bool

	LLMProvider       string
	LLMModel          string
	LLMAPIKey         string
	LLMBaseURL        string
	ChatRatePerMinute int // per client IP; 0 disables limiting

	AllowedOrigins []string
}

// LoadConfig loads configuration from environment variables.
// It looks for a .env file first, then checks actual environment variables.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: Could not load .env file. Using environment variables only.", err)
	}

	dbURL := getEnv("DATABASE_URL", "")
	if dbURL == "" {
		return nil, errors.New("DATABASE_URL environment variable is not set")
	}

	jwtSecret := getEnv("JWT_SECRET", "")
	if jwtSecret == "" {
		return nil, errors.New("JWT_SECRET environment variable is not set")
	}

	tokenExpStr := getEnv("JWT_EXPIRATION_HOURS", "24")
	tokenExpHours, err := strconv.Atoi(tokenExpStr)
	if err != nil || tokenExpHours <= 0 {
		log.Printf("Warning: Invalid JWT_EXPIRATION_HOURS '%s', using default 24h. Error: %v", tokenExpStr, err)
		tokenExpHours = 24
	}

	rateStr := getEnv("CHAT_RATE_PER_MINUTE", "20")
	rate, err := strconv.Atoi(rateStr)
	if err != nil || rate < 0 {
		log.Printf("Warning: Invalid CHAT_RATE_PER_MINUTE '%s', using default 20. Error: %v", rateStr, err)
		rate = 20
	}

	provider := strings.ToLower(getEnv("LLM_PROVIDER", "anthropic"))
	apiKey := os.Getenv("ANTHROPIC_API_KEY")
	if provider == "openai" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		log.Printf("Warning: no API key set for LLM provider %s; completions will fail", provider)
	}

	cfg := &Config{
		HTTPPort:          getEnv("HTTP_PORT", "8080"),
		JWTSecret:         jwtSecret,
		DatabaseURL:       dbURL,
		TokenExpiration:   time.Hour * time.Duration(tokenExpHours),
		PublicURL:         strings.TrimRight(getEnv("PUBLIC_URL", "http://localhost:8080"), "/"),
		RunMigrations:     getEnv("RUN_MIGRATIONS", "false") == "true",
		LLMProvider:       provider,
		LLMModel:          getEnv("LLM_MODEL", ""),
		LLMAPIKey:         apiKey,
		LLMBaseURL:        getEnv("OPENAI_BASE_URL", ""),
		ChatRatePerMinute: rate,
		AllowedOrigins:    splitList(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000")),
	}

	log.Printf("Loaded config: Port=%s, DB_URL=***, TokenExp=%s, Provider=%s, RatePerMin=%d", cfg.HTTPPort, cfg.TokenExpiration, cfg.LLMProvider, cfg.ChatRatePerMinute)
	return cfg, nil
}

// getEnv retrieves an environment variable or returns a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
