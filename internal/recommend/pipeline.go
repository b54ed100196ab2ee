package recommend

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/i474232898/event-weather-advisor/internal/cache"
	"github.com/i474232898/event-weather-advisor/internal/calendar"
	"github.com/i474232898/event-weather-advisor/internal/location"
	"github.com/i474232898/event-weather-advisor/internal/remote"
	"github.com/i474232898/event-weather-advisor/internal/weather"
)

// Skip reasons reported per event sub-pipeline.
const (
	SkipNoLocation            = "no_location"
	SkipLocationNotFound      = "location_not_found"
	SkipLocationUnavailable   = "location_unavailable"
	SkipWeatherUnavailable    = "weather_unavailable"
	SkipGenerationUnavailable = "generation_unavailable"
	SkipPersistFailure        = "persist_failure"
)

// EventSource lists a user's normalized events.
type EventSource interface {
	ListEvents(ctx context.Context, userID string, window calendar.Window, opts calendar.ListOptions, provider calendar.ProviderTag) ([]calendar.Event, error)
}

// LocationResolver resolves an event's location string.
type LocationResolver interface {
	Resolve(ctx context.Context, query string) (location.Record, error)
}

// Forecaster looks up weather for a resolved location and time.
type Forecaster interface {
	ForecastAt(ctx context.Context, loc location.Record, at time.Time, units string) (weather.Snapshot, error)
}

// Report summarizes one pipeline run. Succeeded counts recommendations
// actually persisted, which may be less than Attempted: callers can tell
// "nothing to do" from "everything failed".
type Report struct {
	Attempted       int              `json:"attempted"`
	Succeeded       int              `json:"succeeded"`
	Skipped         map[string]int   `json:"skipped,omitempty"`
	Cached          bool             `json:"cached"`
	GeneratedAt     time.Time        `json:"generatedAt"`
	Recommendations []Recommendation `json:"recommendations"`
}

type runMarker struct {
	LastRun time.Time `json:"last_run"`
}

// Pipeline drives the per-user batch: events → per-event weather → generation
// → classification → persistence. One event's failure never aborts the batch.
type Pipeline struct {
	events    EventSource
	locations LocationResolver
	weather   Forecaster
	generator Generator
	store     Store
	cache     cache.Cache

	// lookahead bounds the event window of a run.
	lookahead time.Duration
	// freshness is how long a completed run suppresses regeneration when
	// forceRefresh is false. Regenerating duplicates rows under the
	// append-only model, so the short-circuit is the default.
	freshness time.Duration
	units     string

	now func() time.Time
}

type PipelineConfig struct {
	Lookahead time.Duration
	Freshness time.Duration
	Units     string
}

func NewPipeline(events EventSource, locations LocationResolver, forecaster Forecaster, generator Generator, store Store, c cache.Cache, cfg PipelineConfig) *Pipeline {
	if cfg.Lookahead <= 0 {
		cfg.Lookahead = 7 * 24 * time.Hour
	}
	if cfg.Freshness <= 0 {
		cfg.Freshness = time.Hour
	}
	if cfg.Units == "" {
		cfg.Units = weather.UnitsImperial
	}
	return &Pipeline{
		events:    events,
		locations: locations,
		weather:   forecaster,
		generator: generator,
		store:     store,
		cache:     c,
		lookahead: cfg.Lookahead,
		freshness: cfg.Freshness,
		units:     cfg.Units,
		now:       time.Now,
	}
}

// Run executes the batch for one user. Without forceRefresh, a run completed
// within the freshness window returns the stored recommendations instead of
// generating duplicates.
func (p *Pipeline) Run(ctx context.Context, userID string, forceRefresh bool) (Report, error) {
	now := p.now().UTC()
	markerKey := cache.Key(cache.NamespacePipeline, "last-run", userID)

	if !forceRefresh {
		if marker, ok := cache.GetJSON[runMarker](ctx, p.cache, markerKey); ok {
			recs, err := p.store.List(ctx, userID, 50, 0)
			if err != nil {
				return Report{}, err
			}
			return Report{
				Cached:          true,
				GeneratedAt:     marker.LastRun,
				Recommendations: recs,
			}, nil
		}
	}

	window := calendar.Window{Start: now, End: now.Add(p.lookahead)}
	events, err := p.events.ListEvents(ctx, userID, window, calendar.ListOptions{}, "")
	if err != nil {
		return Report{}, err
	}

	report := Report{
		Attempted:   len(events),
		Skipped:     make(map[string]int),
		GeneratedAt: now,
	}

	if len(events) == 0 {
		if ctx.Err() == nil {
			cache.SetJSON(ctx, p.cache, markerKey, runMarker{LastRun: now}, p.freshness)
		}
		return report, nil
	}

	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)

	for _, ev := range events {
		// Cancellation stops spawning new sub-pipelines; in-flight ones
		// finish on their own. Inserts are independent single-row writes,
		// so partial completion is a consistent state.
		if ctx.Err() != nil {
			mu.Lock()
			report.Skipped["cancelled"]++
			mu.Unlock()
			continue
		}

		ev := ev
		wg.Add(1)
		go func() {
			defer wg.Done()

			rec, skipReason := p.processEvent(ctx, now, ev)
			mu.Lock()
			defer mu.Unlock()
			if skipReason != "" {
				report.Skipped[skipReason]++
				return
			}
			report.Succeeded++
			report.Recommendations = append(report.Recommendations, rec)
		}()
	}

	wg.Wait()

	// Only a run that saw every event through counts as fresh. A cancelled
	// run must not suppress the next regeneration.
	if ctx.Err() == nil && report.Skipped["cancelled"] == 0 {
		cache.SetJSON(ctx, p.cache, markerKey, runMarker{LastRun: now}, p.freshness)
	}
	return report, nil
}

// processEvent runs one event's sub-pipeline. A non-empty skip reason means
// the event produced no recommendation; the batch continues regardless.
func (p *Pipeline) processEvent(ctx context.Context, now time.Time, ev calendar.Event) (Recommendation, string) {
	if strings.TrimSpace(ev.Location) == "" {
		// Never call the weather connector with an empty location.
		return Recommendation{}, SkipNoLocation
	}

	loc, err := p.locations.Resolve(ctx, ev.Location)
	if err != nil {
		if errors.Is(err, remote.ErrNotFound) {
			log.Printf("pipeline: location %q of event %s not found", ev.Location, ev.ID)
			return Recommendation{}, SkipLocationNotFound
		}
		log.Printf("pipeline: resolving %q for event %s failed: %v", ev.Location, ev.ID, err)
		return Recommendation{}, SkipLocationUnavailable
	}

	snapshot, err := p.weather.ForecastAt(ctx, loc, ev.StartTime, p.units)
	if err != nil {
		log.Printf("pipeline: weather lookup for event %s failed: %v", ev.ID, err)
		return Recommendation{}, SkipWeatherUnavailable
	}

	text, err := p.generator.Generate(ctx, ev, snapshot)
	if err != nil {
		log.Printf("pipeline: generation for event %s failed: %v", ev.ID, err)
		return Recommendation{}, SkipGenerationUnavailable
	}

	rec := Recommendation{
		UserID:     ev.UserID,
		EventID:    ev.ID,
		Category:   Classify(text),
		Title:      "Weather advice for " + ev.Title,
		Message:    text,
		Confidence: defaultConfidence,
		CreatedAt:  now,
		Weather:    &snapshot,
		Event:      &ev,
	}

	id, err := p.store.Insert(ctx, rec)
	if err != nil {
		log.Printf("pipeline: persisting recommendation for event %s failed: %v", ev.ID, err)
		return Recommendation{}, SkipPersistFailure
	}
	rec.ID = id
	return rec, ""
}
