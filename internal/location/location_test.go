package location

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/i474232898/event-weather-advisor/internal/cache"
	"github.com/i474232898/event-weather-advisor/internal/remote"
)

type fakeBackend struct {
	geocodeCalls int
	reverseCalls int
	records      []Record
	err          error
}

func (f *fakeBackend) Name() string { return "fake" }

func (f *fakeBackend) Geocode(ctx context.Context, query string, limit int) ([]Record, error) {
	f.geocodeCalls++
	if f.err != nil {
		return nil, f.err
	}
	if limit < len(f.records) {
		return f.records[:limit], nil
	}
	return f.records, nil
}

func (f *fakeBackend) ReverseGeocode(ctx context.Context, lat, lon float64) (Record, error) {
	f.reverseCalls++
	if f.err != nil {
		return Record{}, f.err
	}
	if len(f.records) == 0 {
		return Record{}, remote.ErrNotFound
	}
	return f.records[0], nil
}

var austin = Record{
	Name:             "Austin",
	Latitude:         30.2672,
	Longitude:        -97.7431,
	Country:          "United States",
	State:            "Texas",
	Timezone:         "UTC",
	FormattedAddress: "Austin, Texas, United States",
}

func TestResolveCachesForwardGeocode(t *testing.T) {
	backend := &fakeBackend{records: []Record{austin}}
	r := NewResolver(backend, cache.NewMemoryCache(), time.Hour)
	ctx := context.Background()

	got, err := r.Resolve(ctx, "  Austin,TX ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Name != "Austin" {
		t.Fatalf("unexpected record: %+v", got)
	}

	// Second resolution with different casing hits the cache.
	if _, err := r.Resolve(ctx, "austin,tx"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if backend.geocodeCalls != 1 {
		t.Fatalf("expected 1 backend call, got %d", backend.geocodeCalls)
	}
}

func TestResolveCoordinatePairShortCircuitsToReverse(t *testing.T) {
	backend := &fakeBackend{records: []Record{austin}}
	r := NewResolver(backend, cache.NewMemoryCache(), time.Hour)

	got, err := r.Resolve(context.Background(), "30.2672,-97.7431")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Name != "Austin" {
		t.Fatalf("unexpected record: %+v", got)
	}
	if backend.reverseCalls != 1 || backend.geocodeCalls != 0 {
		t.Fatalf("expected reverse geocode only, got geocode=%d reverse=%d",
			backend.geocodeCalls, backend.reverseCalls)
	}

	// Nearby coordinates round to the same cache key.
	if _, err := r.Resolve(context.Background(), "30.26722,-97.74312"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if backend.reverseCalls != 1 {
		t.Fatalf("expected cached reverse lookup, got %d calls", backend.reverseCalls)
	}
}

func TestResolveNoMatchIsNotFound(t *testing.T) {
	backend := &fakeBackend{}
	r := NewResolver(backend, cache.NewMemoryCache(), time.Hour)

	_, err := r.Resolve(context.Background(), "nowhere at all")
	if !errors.Is(err, remote.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestResolveUnavailablePropagates(t *testing.T) {
	backend := &fakeBackend{err: fmt.Errorf("%w: retries exhausted", remote.ErrUnavailable)}
	r := NewResolver(backend, cache.NewMemoryCache(), time.Hour)

	_, err := r.Resolve(context.Background(), "Austin,TX")
	if !errors.Is(err, remote.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestResolveManyNotCached(t *testing.T) {
	backend := &fakeBackend{records: []Record{austin, {Name: "Austin", Latitude: 43.6, Longitude: -92.9, Timezone: "UTC"}}}
	r := NewResolver(backend, cache.NewMemoryCache(), time.Hour)
	ctx := context.Background()

	records, err := r.ResolveMany(ctx, "Austin", 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}

	if _, err := r.ResolveMany(ctx, "Austin", 5); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if backend.geocodeCalls != 2 {
		t.Fatalf("expected ResolveMany to skip the cache, got %d calls", backend.geocodeCalls)
	}
}

func TestParseCoordinates(t *testing.T) {
	cases := []struct {
		in       string
		lat, lon float64
		ok       bool
	}{
		{"30.2672,-97.7431", 30.2672, -97.7431, true},
		{" 51.5 , -0.12 ", 51.5, -0.12, true},
		{"Austin,TX", 0, 0, false},
		{"200,10", 0, 0, false},
		{"10,200", 0, 0, false},
		{"notapair", 0, 0, false},
	}
	for _, tc := range cases {
		lat, lon, ok := ParseCoordinates(tc.in)
		if ok != tc.ok {
			t.Fatalf("%q: expected ok=%v, got %v", tc.in, tc.ok, ok)
		}
		if ok && (lat != tc.lat || lon != tc.lon) {
			t.Fatalf("%q: expected %f,%f got %f,%f", tc.in, tc.lat, tc.lon, lat, lon)
		}
	}
}
