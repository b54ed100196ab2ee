package recommend

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/i474232898/event-weather-advisor/internal/calendar"
	"github.com/i474232898/event-weather-advisor/internal/remote"
	"github.com/i474232898/event-weather-advisor/internal/weather"
)

// ErrEmptyCompletion is returned when the model answers with blank text.
var ErrEmptyCompletion = errors.New("empty completion")

const systemPrompt = "You are a helpful weather assistant that provides practical " +
	"recommendations for calendar events based on weather conditions."

// GeneratorConfig configures the chat-completion generator.
type GeneratorConfig struct {
	BaseURL     string
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float64

	// RequestsPerMinute throttles outbound generation calls. 0 disables
	// throttling.
	RequestsPerMinute int
}

// ChatGenerator produces advice through an OpenAI-compatible chat-completions
// endpoint. The call is treated like any other remote dependency: retried,
// circuit-broken, and rate limited.
type ChatGenerator struct {
	cfg     GeneratorConfig
	client  *http.Client
	caller  *remote.Caller
	limiter *rate.Limiter
}

func NewChatGenerator(client *http.Client, cfg GeneratorConfig, backoff remote.BackoffConfig) *ChatGenerator {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-3.5-turbo"
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 200
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = 0.7
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RequestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Limit(float64(cfg.RequestsPerMinute)/60.0), cfg.RequestsPerMinute)
	}

	return &ChatGenerator{
		cfg:     cfg,
		client:  client,
		caller:  remote.NewCaller("chat-completions", backoff),
		limiter: limiter,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

// Generate returns one block of advisory text for the event/weather pair.
// Only non-empty trimmed text counts as success; the content itself is not
// validated.
func (g *ChatGenerator) Generate(ctx context.Context, event calendar.Event, snapshot weather.Snapshot) (string, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return "", err
	}

	payload, err := json.Marshal(chatRequest{
		Model: g.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: buildPrompt(event, snapshot)},
		},
		MaxTokens:   g.cfg.MaxTokens,
		Temperature: g.cfg.Temperature,
	})
	if err != nil {
		return "", err
	}

	buildRequest := func() (*http.Request, error) {
		req, err := http.NewRequest(http.MethodPost, g.cfg.BaseURL+"/chat/completions", bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+g.cfg.APIKey)
		return req, nil
	}

	body, err := remote.Fetch(ctx, g.caller, g.client, buildRequest)
	if err != nil {
		return "", err
	}

	var response struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(body, &response); err != nil {
		return "", err
	}
	if len(response.Choices) == 0 {
		return "", ErrEmptyCompletion
	}

	text := strings.TrimSpace(response.Choices[0].Message.Content)
	if text == "" {
		return "", ErrEmptyCompletion
	}
	return text, nil
}

func buildPrompt(event calendar.Event, snapshot weather.Snapshot) string {
	description := event.Description
	if description == "" {
		description = "No description"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Analyze this calendar event and weather data to provide a helpful recommendation:\n\n")
	fmt.Fprintf(&b, "Event: %s\n", event.Title)
	fmt.Fprintf(&b, "Time: %s\n", event.StartTime.Format(time.RFC1123))
	fmt.Fprintf(&b, "Location: %s\n", event.Location)
	fmt.Fprintf(&b, "Description: %s\n\n", description)
	fmt.Fprintf(&b, "Weather:\n")
	fmt.Fprintf(&b, "- Temperature: %.1f\n", snapshot.Temperature)
	fmt.Fprintf(&b, "- Conditions: %s\n", snapshot.Condition)
	fmt.Fprintf(&b, "- Humidity: %d%%\n", snapshot.Humidity)
	fmt.Fprintf(&b, "- Wind Speed: %.1f\n\n", snapshot.WindSpeed)
	fmt.Fprintf(&b, "Provide a brief, helpful recommendation about this event considering the weather. ")
	fmt.Fprintf(&b, "Focus on practical advice like clothing suggestions, rescheduling recommendations, or activity modifications. ")
	fmt.Fprintf(&b, "Keep it concise and actionable.")
	return b.String()
}
