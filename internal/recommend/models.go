package recommend

import (
	"context"
	"time"

	"github.com/i474232898/event-weather-advisor/internal/calendar"
	"github.com/i474232898/event-weather-advisor/internal/weather"
)

// Category classifies a recommendation.
type Category string

const (
	CategoryWeatherWarning     Category = "weather_warning"
	CategoryActivitySuggestion Category = "activity_suggestion"
	CategoryRescheduleAdvice   Category = "reschedule_advice"
	CategoryClothingAdvice     Category = "clothing_advice"
)

// defaultConfidence is assigned by the pipeline, not derived from the text.
// Callers must not read it as a measure of certainty.
const defaultConfidence = 0.8

// Recommendation is a persisted piece of advice for one event. Append-only:
// a re-run inserts new rows, it never regenerates one in place. IsRead is the
// only field users may change.
type Recommendation struct {
	ID         string            `json:"id"`
	UserID     string            `json:"userId"`
	EventID    string            `json:"eventId,omitempty"`
	Category   Category          `json:"type"`
	Title      string            `json:"title"`
	Message    string            `json:"message"`
	Confidence float64           `json:"confidence"` // in [0,1]
	CreatedAt  time.Time         `json:"createdAt"`
	IsRead     bool              `json:"isRead"`
	Weather    *weather.Snapshot `json:"weatherData,omitempty"`
	Event      *calendar.Event   `json:"eventData,omitempty"`
}

// Store is the persistence contract the pipeline writes through.
// Implementations live in internal/store.
type Store interface {
	Insert(ctx context.Context, rec Recommendation) (string, error)
	List(ctx context.Context, userID string, limit, offset int) ([]Recommendation, error)
	MarkRead(ctx context.Context, id, userID string) error
}

// Generator produces advisory text for one (event, weather) pair.
type Generator interface {
	Generate(ctx context.Context, event calendar.Event, snapshot weather.Snapshot) (string, error)
}
