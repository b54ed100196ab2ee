package location

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/goccy/go-json"

	"github.com/i474232898/event-weather-advisor/internal/remote"
)

// NominatimBackend implements Backend against the OpenStreetMap Nominatim
// API. No API key is required; Nominatim asks for an identifying User-Agent.
type NominatimBackend struct {
	name      string
	baseURL   string
	userAgent string
	client    *http.Client
	caller    *remote.Caller
}

func NewNominatimBackend(client *http.Client, backoff remote.BackoffConfig) *NominatimBackend {
	return &NominatimBackend{
		name:      "nominatim",
		baseURL:   "https://nominatim.openstreetmap.org",
		userAgent: "event-weather-advisor",
		client:    client,
		caller:    remote.NewCaller("nominatim", backoff),
	}
}

func (b *NominatimBackend) Name() string {
	return b.name
}

type nominatimPlace struct {
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	Address     struct {
		Country string `json:"country"`
		State   string `json:"state"`
	} `json:"address"`
}

func (b *NominatimBackend) Geocode(ctx context.Context, query string, limit int) ([]Record, error) {
	buildRequest := func() (*http.Request, error) {
		values := url.Values{}
		values.Set("q", query)
		values.Set("format", "jsonv2")
		values.Set("limit", strconv.Itoa(limit))
		values.Set("addressdetails", "1")

		u := fmt.Sprintf("%s/search?%s", b.baseURL, values.Encode())
		req, err := http.NewRequest(http.MethodGet, u, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", b.userAgent)
		return req, nil
	}

	body, err := remote.Fetch(ctx, b.caller, b.client, buildRequest)
	if err != nil {
		return nil, err
	}

	var places []nominatimPlace
	if err := json.Unmarshal(body, &places); err != nil {
		return nil, err
	}

	records := make([]Record, 0, len(places))
	for _, p := range places {
		rec, err := mapNominatimPlace(p)
		if err != nil {
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

func (b *NominatimBackend) ReverseGeocode(ctx context.Context, lat, lon float64) (Record, error) {
	buildRequest := func() (*http.Request, error) {
		values := url.Values{}
		values.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
		values.Set("lon", strconv.FormatFloat(lon, 'f', -1, 64))
		values.Set("format", "jsonv2")
		values.Set("addressdetails", "1")

		u := fmt.Sprintf("%s/reverse?%s", b.baseURL, values.Encode())
		req, err := http.NewRequest(http.MethodGet, u, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", b.userAgent)
		return req, nil
	}

	body, err := remote.Fetch(ctx, b.caller, b.client, buildRequest)
	if err != nil {
		return Record{}, err
	}

	// Nominatim reports unresolvable coordinates as a 200 with an error field.
	var payload struct {
		nominatimPlace
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return Record{}, err
	}
	if payload.Error != "" {
		return Record{}, fmt.Errorf("%w: %s", remote.ErrNotFound, payload.Error)
	}

	return mapNominatimPlace(payload.nominatimPlace)
}

func mapNominatimPlace(p nominatimPlace) (Record, error) {
	lat, err := strconv.ParseFloat(p.Lat, 64)
	if err != nil {
		return Record{}, fmt.Errorf("invalid latitude %q: %w", p.Lat, err)
	}
	lon, err := strconv.ParseFloat(p.Lon, 64)
	if err != nil {
		return Record{}, fmt.Errorf("invalid longitude %q: %w", p.Lon, err)
	}

	name := p.Name
	if name == "" {
		// Fall back to the leading component of the display name.
		name, _, _ = strings.Cut(p.DisplayName, ",")
	}

	return Record{
		Name:             name,
		Latitude:         lat,
		Longitude:        lon,
		Country:          p.Address.Country,
		State:            p.Address.State,
		Timezone:         "UTC",
		FormattedAddress: p.DisplayName,
	}, nil
}
