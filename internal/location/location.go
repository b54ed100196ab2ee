package location

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/i474232898/event-weather-advisor/internal/cache"
	"github.com/i474232898/event-weather-advisor/internal/remote"
)

// Record is the canonical resolved location.
type Record struct {
	Name             string  `json:"name"`
	Latitude         float64 `json:"latitude"`
	Longitude        float64 `json:"longitude"`
	Country          string  `json:"country"`
	State            string  `json:"state,omitempty"`
	Timezone         string  `json:"timezone"`
	FormattedAddress string  `json:"formattedAddress"`
}

// Valid reports whether the coordinates are in range.
func (r Record) Valid() bool {
	return r.Latitude >= -90 && r.Latitude <= 90 &&
		r.Longitude >= -180 && r.Longitude <= 180
}

// Backend abstracts a geocoding provider.
type Backend interface {
	Name() string
	Geocode(ctx context.Context, query string, limit int) ([]Record, error)
	ReverseGeocode(ctx context.Context, lat, lon float64) (Record, error)
}

// coordPrecision is the rounding applied to coordinate cache keys.
const coordPrecision = 4

// Resolver turns free-form place strings or coordinate pairs into Records,
// probing the cache before touching the backend. Locations rarely change, so
// successful resolutions are cached with a long TTL.
type Resolver struct {
	backend Backend
	cache   cache.Cache
	ttl     time.Duration
}

func NewResolver(backend Backend, c cache.Cache, ttl time.Duration) *Resolver {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &Resolver{backend: backend, cache: c, ttl: ttl}
}

// Resolve resolves query to a single canonical Record. A "lat,lon" query
// short-circuits to reverse geocoding. Returns remote.ErrNotFound when the
// backend has no match.
func (r *Resolver) Resolve(ctx context.Context, query string) (Record, error) {
	if lat, lon, ok := ParseCoordinates(query); ok {
		return r.resolveReverse(ctx, lat, lon)
	}

	key := cache.Key(cache.NamespaceLocation, NormalizeQuery(query))
	if rec, ok := cache.GetJSON[Record](ctx, r.cache, key); ok {
		return rec, nil
	}

	records, err := r.backend.Geocode(ctx, query, 1)
	if err != nil {
		return Record{}, err
	}
	if len(records) == 0 {
		return Record{}, fmt.Errorf("%w: no match for %q", remote.ErrNotFound, query)
	}

	rec := records[0]
	if !rec.Valid() {
		return Record{}, fmt.Errorf("backend %s returned out-of-range coordinates for %q", r.backend.Name(), query)
	}

	cache.SetJSON(ctx, r.cache, key, rec, r.ttl)
	return rec, nil
}

// ResolveMany returns up to limit candidate Records for a query, for
// disambiguation. Results are not cached.
func (r *Resolver) ResolveMany(ctx context.Context, query string, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 5
	}
	records, err := r.backend.Geocode(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	valid := records[:0]
	for _, rec := range records {
		if rec.Valid() {
			valid = append(valid, rec)
		}
	}
	return valid, nil
}

func (r *Resolver) resolveReverse(ctx context.Context, lat, lon float64) (Record, error) {
	key := cache.Key(cache.NamespaceLocation, CoordinateKey(lat, lon))
	if rec, ok := cache.GetJSON[Record](ctx, r.cache, key); ok {
		return rec, nil
	}

	rec, err := r.backend.ReverseGeocode(ctx, lat, lon)
	if err != nil {
		return Record{}, err
	}
	if !rec.Valid() {
		return Record{}, fmt.Errorf("backend %s returned out-of-range coordinates for %f,%f", r.backend.Name(), lat, lon)
	}

	cache.SetJSON(ctx, r.cache, key, rec, r.ttl)
	return rec, nil
}

// NormalizeQuery produces the cache key form of a free-form query.
func NormalizeQuery(query string) string {
	return strings.ToLower(strings.TrimSpace(query))
}

// CoordinateKey produces the cache key form of a coordinate pair, rounded to
// a fixed precision so nearby lookups share an entry.
func CoordinateKey(lat, lon float64) string {
	return strconv.FormatFloat(round(lat), 'f', coordPrecision, 64) + "," +
		strconv.FormatFloat(round(lon), 'f', coordPrecision, 64)
}

func round(v float64) float64 {
	const shift = 1e4 // matches coordPrecision
	return math.Round(v*shift) / shift
}

// ParseCoordinates reports whether query is a "lat,lon" pair in valid ranges.
func ParseCoordinates(query string) (lat, lon float64, ok bool) {
	parts := strings.Split(query, ",")
	if len(parts) != 2 {
		return 0, 0, false
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return 0, 0, false
	}
	lon, err = strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return 0, 0, false
	}
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return 0, 0, false
	}
	return lat, lon, true
}
