package location

import (
	"context"
	"fmt"
	"strings"

	"github.com/kelvins/geocoder"

	"github.com/i474232898/event-weather-advisor/internal/remote"
)

// GoogleBackend implements Backend on the Google Maps Geocoding API via the
// kelvins/geocoder client. The client exposes a package-level API key and
// returns a single best match, so Geocode yields at most one record
// regardless of limit.
type GoogleBackend struct {
	name   string
	caller *remote.Caller
}

func NewGoogleBackend(apiKey string, backoff remote.BackoffConfig) *GoogleBackend {
	geocoder.ApiKey = apiKey
	return &GoogleBackend{
		name:   "google",
		caller: remote.NewCaller("google-geocoder", backoff),
	}
}

func (b *GoogleBackend) Name() string {
	return b.name
}

func (b *GoogleBackend) Geocode(ctx context.Context, query string, limit int) ([]Record, error) {
	rec, err := remote.DoAs(ctx, b.caller, func(ctx context.Context) (Record, error) {
		loc, err := geocoder.Geocoding(geocoder.Address{Street: query})
		if err != nil {
			return Record{}, classifyGeocoderError(err)
		}

		// The forward call only yields coordinates; reverse them for the
		// canonical address fields.
		addresses, err := geocoder.GeocodingReverse(loc)
		if err != nil {
			return Record{}, classifyGeocoderError(err)
		}
		if len(addresses) == 0 {
			return Record{}, fmt.Errorf("%w: no address for %q", remote.ErrNotFound, query)
		}
		return mapGoogleAddress(addresses[0], loc.Latitude, loc.Longitude), nil
	})
	if err != nil {
		return nil, err
	}
	return []Record{rec}, nil
}

func (b *GoogleBackend) ReverseGeocode(ctx context.Context, lat, lon float64) (Record, error) {
	return remote.DoAs(ctx, b.caller, func(ctx context.Context) (Record, error) {
		addresses, err := geocoder.GeocodingReverse(geocoder.Location{Latitude: lat, Longitude: lon})
		if err != nil {
			return Record{}, classifyGeocoderError(err)
		}
		if len(addresses) == 0 {
			return Record{}, fmt.Errorf("%w: no address for %f,%f", remote.ErrNotFound, lat, lon)
		}
		return mapGoogleAddress(addresses[0], lat, lon), nil
	})
}

func mapGoogleAddress(addr geocoder.Address, lat, lon float64) Record {
	formatted := addr.FormattedAddress
	if formatted == "" {
		formatted = addr.FormatAddress()
	}
	name, _, _ := strings.Cut(formatted, ",")

	return Record{
		Name:             strings.TrimSpace(name),
		Latitude:         lat,
		Longitude:        lon,
		Country:          addr.Country,
		State:            addr.State,
		Timezone:         "UTC",
		FormattedAddress: formatted,
	}
}

// classifyGeocoderError maps Google geocoding statuses onto the failure
// taxonomy. The client surfaces the API status string as the error text.
func classifyGeocoderError(err error) error {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "ZERO_RESULTS"):
		return fmt.Errorf("%w: %s", remote.ErrNotFound, msg)
	case strings.Contains(msg, "OVER_QUERY_LIMIT"):
		return fmt.Errorf("%w: %s", remote.ErrRateLimited, msg)
	case strings.Contains(msg, "REQUEST_DENIED"):
		return fmt.Errorf("%w: %s", remote.ErrUnauthorized, msg)
	default:
		return err
	}
}
