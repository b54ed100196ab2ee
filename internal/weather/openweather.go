package weather

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/goccy/go-json"

	"github.com/i474232898/event-weather-advisor/internal/remote"
)

// forecastSlot is the upstream forecast interval.
const forecastSlot = 3 * time.Hour

// openWeatherClient talks to the OpenWeatherMap REST API. One pure mapper
// per payload shape; downstream code only sees normalized structs.
type openWeatherClient struct {
	apiKey  string
	baseURL string
	client  *http.Client
	caller  *remote.Caller
}

func newOpenWeatherClient(client *http.Client, apiKey string, backoff remote.BackoffConfig) *openWeatherClient {
	return &openWeatherClient{
		apiKey:  apiKey,
		baseURL: "https://api.openweathermap.org/data/2.5",
		client:  client,
		caller:  remote.NewCaller("openweathermap", backoff),
	}
}

func (c *openWeatherClient) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("openweathermap api key is not configured")
	}

	buildRequest := func() (*http.Request, error) {
		params.Set("appid", c.apiKey)
		u := fmt.Sprintf("%s%s?%s", c.baseURL, path, params.Encode())
		return http.NewRequest(http.MethodGet, u, nil)
	}

	return remote.Fetch(ctx, c.caller, c.client, buildRequest)
}

func coordParams(lat, lon float64) url.Values {
	values := url.Values{}
	values.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	values.Set("lon", strconv.FormatFloat(lon, 'f', -1, 64))
	return values
}

type owmConditions struct {
	Main        string `json:"main"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
}

type owmReading struct {
	Dt   int64 `json:"dt"`
	Main struct {
		Temp      float64 `json:"temp"`
		FeelsLike float64 `json:"feels_like"`
		Humidity  int     `json:"humidity"`
		Pressure  int     `json:"pressure"`
	} `json:"main"`
	Wind struct {
		Speed float64 `json:"speed"`
		Deg   int     `json:"deg"`
	} `json:"wind"`
	Visibility int             `json:"visibility"`
	Weather    []owmConditions `json:"weather"`
}

func (c *openWeatherClient) current(ctx context.Context, lat, lon float64, units string) (Snapshot, error) {
	params := coordParams(lat, lon)
	params.Set("units", units)

	body, err := c.get(ctx, "/weather", params)
	if err != nil {
		return Snapshot{}, err
	}

	var payload struct {
		owmReading
		Name  string `json:"name"`
		Coord struct {
			Lat float64 `json:"lat"`
			Lon float64 `json:"lon"`
		} `json:"coord"`
		Timezone int `json:"timezone"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return Snapshot{}, err
	}

	snap := mapReading(payload.owmReading)
	snap.Location = payload.Name
	snap.Latitude = payload.Coord.Lat
	snap.Longitude = payload.Coord.Lon
	snap.Timestamp = time.Now().UTC()
	return snap, nil
}

func (c *openWeatherClient) forecast(ctx context.Context, lat, lon float64, units string) ([]Snapshot, error) {
	params := coordParams(lat, lon)
	params.Set("units", units)
	params.Set("cnt", "40") // 5 days of 3-hour slots

	body, err := c.get(ctx, "/forecast", params)
	if err != nil {
		return nil, err
	}

	var payload struct {
		List []owmReading `json:"list"`
		City struct {
			Name  string `json:"name"`
			Coord struct {
				Lat float64 `json:"lat"`
				Lon float64 `json:"lon"`
			} `json:"coord"`
		} `json:"city"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, err
	}

	snapshots := make([]Snapshot, 0, len(payload.List))
	for _, item := range payload.List {
		snap := mapReading(item)
		snap.Location = payload.City.Name
		snap.Latitude = payload.City.Coord.Lat
		snap.Longitude = payload.City.Coord.Lon
		snap.Timestamp = time.Unix(item.Dt, 0).UTC()
		snapshots = append(snapshots, snap)
	}
	return snapshots, nil
}

func (c *openWeatherClient) airQuality(ctx context.Context, lat, lon float64) (AirQuality, error) {
	body, err := c.get(ctx, "/air_pollution", coordParams(lat, lon))
	if err != nil {
		return AirQuality{}, err
	}

	var payload struct {
		List []struct {
			Main struct {
				AQI int `json:"aqi"`
			} `json:"main"`
			Components struct {
				PM25 float64 `json:"pm2_5"`
				PM10 float64 `json:"pm10"`
				O3   float64 `json:"o3"`
				NO2  float64 `json:"no2"`
				SO2  float64 `json:"so2"`
				CO   float64 `json:"co"`
			} `json:"components"`
		} `json:"list"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return AirQuality{}, err
	}
	if len(payload.List) == 0 {
		return AirQuality{}, fmt.Errorf("%w: no air quality data", remote.ErrNotFound)
	}

	first := payload.List[0]
	return AirQuality{
		AQI:       first.Main.AQI,
		PM25:      first.Components.PM25,
		PM10:      first.Components.PM10,
		O3:        first.Components.O3,
		NO2:       first.Components.NO2,
		SO2:       first.Components.SO2,
		CO:        first.Components.CO,
		Timestamp: time.Now().UTC(),
	}, nil
}

func (c *openWeatherClient) uvIndex(ctx context.Context, lat, lon float64) (UVIndex, error) {
	body, err := c.get(ctx, "/uvi", coordParams(lat, lon))
	if err != nil {
		return UVIndex{}, err
	}

	var payload struct {
		Value float64 `json:"value"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return UVIndex{}, err
	}

	return UVIndex{
		Value:               int(payload.Value),
		Category:            uvCategory(payload.Value),
		SafeExposureMinutes: safeExposureMinutes(payload.Value),
		Timestamp:           time.Now().UTC(),
	}, nil
}

func (c *openWeatherClient) alerts(ctx context.Context, lat, lon float64) ([]Alert, error) {
	params := coordParams(lat, lon)
	params.Set("exclude", "current,minutely,hourly,daily")

	body, err := c.get(ctx, "/onecall", params)
	if err != nil {
		return nil, err
	}

	var payload struct {
		Alerts []struct {
			Event       string `json:"event"`
			Severity    string `json:"severity"`
			Description string `json:"description"`
			Start       int64  `json:"start"`
			End         int64  `json:"end"`
			SenderName  string `json:"sender_name"`
		} `json:"alerts"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, err
	}

	alerts := make([]Alert, 0, len(payload.Alerts))
	for _, a := range payload.Alerts {
		severity := a.Severity
		if severity == "" {
			severity = "moderate"
		}
		source := a.SenderName
		if source == "" {
			source = "OpenWeatherMap"
		}
		alerts = append(alerts, Alert{
			Type:        mapAlertType(a.Event),
			Severity:    severity,
			Title:       a.Event,
			Description: a.Description,
			StartTime:   time.Unix(a.Start, 0).UTC(),
			EndTime:     time.Unix(a.End, 0).UTC(),
			Source:      source,
		})
	}
	return alerts, nil
}

func mapReading(r owmReading) Snapshot {
	snap := Snapshot{
		Temperature:   r.Main.Temp,
		FeelsLike:     r.Main.FeelsLike,
		Humidity:      r.Main.Humidity,
		Pressure:      r.Main.Pressure,
		VisibilityKM:  float64(r.Visibility) / 1000,
		WindSpeed:     r.Wind.Speed,
		WindDirection: r.Wind.Deg,
		Condition:     ConditionClear,
		Timezone:      "UTC",
	}
	if len(r.Weather) > 0 {
		snap.Condition = mapCondition(r.Weather[0].Main)
		snap.Description = r.Weather[0].Description
		snap.Icon = r.Weather[0].Icon
	}
	return snap
}
