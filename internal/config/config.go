package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type AppConfig struct {
	OpenWeatherAPIKey string

	// Chat-completion generation.
	OpenAIAPIKey      string
	OpenAIBaseURL     string
	OpenAIModel       string
	OpenAIRateLimit   int // requests per minute, 0 = unthrottled
	OpenAIMaxTokens   int
	OpenAITemperature float64

	// Geocoding backend: "nominatim" (default) or "google".
	GeocoderBackend string
	GoogleAPIKey    string

	// Static bearer tokens per provider, shared by all configured users.
	// Real deployments plug an OAuth token store behind the same interface.
	GoogleCalendarToken string
	MicrosoftGraphToken string

	// Users the scheduler regenerates recommendations for.
	Users []string

	// RunInterval controls how often the scheduler runs the batch.
	RunInterval time.Duration

	// Lookahead bounds the event window of a pipeline run; Freshness is how
	// long a completed run suppresses regeneration.
	Lookahead time.Duration
	Freshness time.Duration
	Units     string

	// DataDir is the badger directory. Empty means in-memory.
	DataDir string

	Port string
}

// Load reads configuration from environment with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: No .env file found or error loading it: %v", err)
	}
	cfg := &AppConfig{}

	cfg.OpenWeatherAPIKey = os.Getenv("OPENWEATHERMAP_API_KEY")

	cfg.OpenAIAPIKey = os.Getenv("OPENAI_API_KEY")
	cfg.OpenAIBaseURL = getenvDefault("OPENAI_BASE_URL", "https://api.openai.com/v1")
	cfg.OpenAIModel = getenvDefault("OPENAI_MODEL", "gpt-3.5-turbo")
	cfg.OpenAIRateLimit = getenvInt("OPENAI_RATE_LIMIT", 0)
	cfg.OpenAIMaxTokens = getenvInt("OPENAI_MAX_TOKENS", 200)

	temp, err := strconv.ParseFloat(getenvDefault("OPENAI_TEMPERATURE", "0.7"), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid OPENAI_TEMPERATURE: %w", err)
	}
	cfg.OpenAITemperature = temp

	cfg.GeocoderBackend = getenvDefault("GEOCODER_BACKEND", "nominatim")
	cfg.GoogleAPIKey = os.Getenv("GOOGLE_API_KEY")
	if cfg.GeocoderBackend == "google" && cfg.GoogleAPIKey == "" {
		return nil, fmt.Errorf("GEOCODER_BACKEND=google requires GOOGLE_API_KEY")
	}

	cfg.GoogleCalendarToken = os.Getenv("GOOGLE_CALENDAR_TOKEN")
	cfg.MicrosoftGraphToken = os.Getenv("MICROSOFT_GRAPH_TOKEN")

	cfg.Users = splitList(os.Getenv("SCHEDULE_USERS"))

	intervalStr := getenvDefault("RUN_INTERVAL", "1h")
	interval, err := time.ParseDuration(intervalStr)
	if err != nil {
		return nil, fmt.Errorf("invalid RUN_INTERVAL: %w", err)
	}
	cfg.RunInterval = interval

	lookaheadStr := getenvDefault("EVENT_LOOKAHEAD", "168h")
	lookahead, err := time.ParseDuration(lookaheadStr)
	if err != nil {
		return nil, fmt.Errorf("invalid EVENT_LOOKAHEAD: %w", err)
	}
	cfg.Lookahead = lookahead

	freshnessStr := getenvDefault("RUN_FRESHNESS", "1h")
	freshness, err := time.ParseDuration(freshnessStr)
	if err != nil {
		return nil, fmt.Errorf("invalid RUN_FRESHNESS: %w", err)
	}
	cfg.Freshness = freshness

	cfg.Units = getenvDefault("WEATHER_UNITS", "imperial")
	cfg.DataDir = os.Getenv("DATA_DIR")
	cfg.Port = getenvDefault("PORT", "8080")

	return cfg, nil
}

func splitList(v string) []string {
	if v == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}
