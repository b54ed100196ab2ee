package weather

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/i474232898/event-weather-advisor/internal/cache"
	"github.com/i474232898/event-weather-advisor/internal/location"
	"github.com/i474232898/event-weather-advisor/internal/remote"
)

// Per-call-type cache TTLs: shorter for faster-changing signals.
const (
	currentTTL    = 10 * time.Minute
	forecastTTL   = 30 * time.Minute
	airQualityTTL = 60 * time.Minute
	uvIndexTTL    = 30 * time.Minute
)

// upstream is the provider surface the connector caches over.
type upstream interface {
	current(ctx context.Context, lat, lon float64, units string) (Snapshot, error)
	forecast(ctx context.Context, lat, lon float64, units string) ([]Snapshot, error)
	airQuality(ctx context.Context, lat, lon float64) (AirQuality, error)
	uvIndex(ctx context.Context, lat, lon float64) (UVIndex, error)
	alerts(ctx context.Context, lat, lon float64) ([]Alert, error)
}

// Connector serves normalized weather for resolved locations, fronting the
// upstream provider with the TTL cache.
type Connector struct {
	upstream upstream
	cache    cache.Cache

	now func() time.Time
}

func NewConnector(client *http.Client, apiKey string, c cache.Cache, backoff remote.BackoffConfig) *Connector {
	return &Connector{
		upstream: newOpenWeatherClient(client, apiKey, backoff),
		cache:    c,
		now:      time.Now,
	}
}

// Current returns current conditions for a resolved location.
func (c *Connector) Current(ctx context.Context, loc location.Record, units string) (Snapshot, error) {
	units = normalizeUnits(units)
	key := cache.Key(cache.NamespaceWeather, "current", location.CoordinateKey(loc.Latitude, loc.Longitude), units)
	if snap, ok := cache.GetJSON[Snapshot](ctx, c.cache, key); ok {
		return snap, nil
	}

	snap, err := c.upstream.current(ctx, loc.Latitude, loc.Longitude, units)
	if err != nil {
		return Snapshot{}, err
	}
	if snap.Location == "" {
		snap.Location = loc.Name
	}

	cache.SetJSON(ctx, c.cache, key, snap, currentTTL)
	return snap, nil
}

// ForecastAt returns the snapshot nearest to at. Times at or before the next
// forecast slot use current conditions; beyond the 5-day horizon the last
// slot is returned. Cache keys carry the slot index so lookups within the
// same interval share an entry.
func (c *Connector) ForecastAt(ctx context.Context, loc location.Record, at time.Time, units string) (Snapshot, error) {
	units = normalizeUnits(units)
	now := c.now().UTC()
	at = at.UTC()

	if !at.After(now.Add(forecastSlot)) {
		return c.Current(ctx, loc, units)
	}

	bucket := strconv.FormatInt(at.Unix()/int64(forecastSlot.Seconds()), 10)
	key := cache.Key(cache.NamespaceWeather, "forecast", location.CoordinateKey(loc.Latitude, loc.Longitude), units, bucket)
	if snap, ok := cache.GetJSON[Snapshot](ctx, c.cache, key); ok {
		return snap, nil
	}

	snapshots, err := c.upstream.forecast(ctx, loc.Latitude, loc.Longitude, units)
	if err != nil {
		return Snapshot{}, err
	}
	if len(snapshots) == 0 {
		return Snapshot{}, fmt.Errorf("%w: empty forecast", remote.ErrNotFound)
	}

	snap := nearestSnapshot(snapshots, at)
	if snap.Location == "" {
		snap.Location = loc.Name
	}

	cache.SetJSON(ctx, c.cache, key, snap, forecastTTL)
	return snap, nil
}

// AirQuality returns the air pollution reading for a resolved location.
func (c *Connector) AirQuality(ctx context.Context, loc location.Record) (AirQuality, error) {
	key := cache.Key(cache.NamespaceWeather, "air", location.CoordinateKey(loc.Latitude, loc.Longitude))
	if aq, ok := cache.GetJSON[AirQuality](ctx, c.cache, key); ok {
		return aq, nil
	}

	aq, err := c.upstream.airQuality(ctx, loc.Latitude, loc.Longitude)
	if err != nil {
		return AirQuality{}, err
	}

	cache.SetJSON(ctx, c.cache, key, aq, airQualityTTL)
	return aq, nil
}

// UVIndex returns the UV reading for a resolved location.
func (c *Connector) UVIndex(ctx context.Context, loc location.Record) (UVIndex, error) {
	key := cache.Key(cache.NamespaceWeather, "uv", location.CoordinateKey(loc.Latitude, loc.Longitude))
	if uv, ok := cache.GetJSON[UVIndex](ctx, c.cache, key); ok {
		return uv, nil
	}

	uv, err := c.upstream.uvIndex(ctx, loc.Latitude, loc.Longitude)
	if err != nil {
		return UVIndex{}, err
	}

	cache.SetJSON(ctx, c.cache, key, uv, uvIndexTTL)
	return uv, nil
}

// Alerts is best-effort: alerts are unavailable in many regions, so an
// upstream error degrades to an empty list instead of failing the caller.
func (c *Connector) Alerts(ctx context.Context, loc location.Record) []Alert {
	alerts, err := c.upstream.alerts(ctx, loc.Latitude, loc.Longitude)
	if err != nil {
		log.Printf("weather: alert lookup failed for %s: %v", loc.Name, err)
		return []Alert{}
	}
	return alerts
}

func nearestSnapshot(snapshots []Snapshot, at time.Time) Snapshot {
	best := snapshots[0]
	bestDelta := absDuration(best.Timestamp.Sub(at))
	for _, snap := range snapshots[1:] {
		delta := absDuration(snap.Timestamp.Sub(at))
		if delta < bestDelta {
			best = snap
			bestDelta = delta
		}
	}
	return best
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}

func normalizeUnits(units string) string {
	if units == "" {
		return UnitsImperial
	}
	return units
}
