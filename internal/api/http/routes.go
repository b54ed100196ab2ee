package httpapi

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/event-weather-advisor/internal/calendar"
	"github.com/i474232898/event-weather-advisor/internal/location"
	"github.com/i474232898/event-weather-advisor/internal/recommend"
	"github.com/i474232898/event-weather-advisor/internal/remote"
	"github.com/i474232898/event-weather-advisor/internal/store"
	"github.com/i474232898/event-weather-advisor/internal/weather"
)

var validate = validator.New()

// RecommendationService drives batch generation for one user.
type RecommendationService interface {
	Run(ctx context.Context, userID string, forceRefresh bool) (recommend.Report, error)
}

// EventService exposes the calendar connector's read and sync paths.
type EventService interface {
	ListEvents(ctx context.Context, userID string, window calendar.Window, opts calendar.ListOptions, provider calendar.ProviderTag) ([]calendar.Event, error)
	Sync(ctx context.Context, userID string, provider calendar.ProviderTag, forceFull bool) (calendar.SyncResult, error)
	SyncStatus(ctx context.Context, userID string, provider calendar.ProviderTag) calendar.SyncStatus
	Providers() []calendar.ProviderTag
}

// WeatherService answers point lookups for resolved locations.
type WeatherService interface {
	Current(ctx context.Context, loc location.Record, units string) (weather.Snapshot, error)
	ForecastAt(ctx context.Context, loc location.Record, at time.Time, units string) (weather.Snapshot, error)
	AirQuality(ctx context.Context, loc location.Record) (weather.AirQuality, error)
	UVIndex(ctx context.Context, loc location.Record) (weather.UVIndex, error)
	Alerts(ctx context.Context, loc location.Record) []weather.Alert
}

// LocationService resolves free-form place queries.
type LocationService interface {
	Resolve(ctx context.Context, query string) (location.Record, error)
	ResolveMany(ctx context.Context, query string, limit int) ([]location.Record, error)
}

// Deps collects everything the HTTP layer serves.
type Deps struct {
	Recommendations RecommendationService
	Store           recommend.Store
	Events          EventService
	Weather         WeatherService
	Locations       LocationService
	Webhooks        *WebhookQueue
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, deps Deps) {
	v1 := app.Group("/api/v1")

	v1.Get("/recommendations", func(c *fiber.Ctx) error {
		userID := c.Query("user_id")
		if userID == "" {
			return fiber.NewError(fiber.StatusBadRequest, "user_id query parameter is required")
		}
		limit := c.QueryInt("limit", 10)
		offset := c.QueryInt("offset", 0)
		if limit < 1 || limit > 100 || offset < 0 {
			return fiber.NewError(fiber.StatusBadRequest, "limit must be 1-100 and offset non-negative")
		}

		recs, err := deps.Store.List(c.Context(), userID, limit, offset)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to list recommendations")
		}
		return c.JSON(fiber.Map{
			"recommendations": recs,
			"limit":           limit,
			"offset":          offset,
		})
	})

	v1.Post("/recommendations/generate", func(c *fiber.Ctx) error {
		var req generateRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		report, err := deps.Recommendations.Run(c.Context(), req.UserID, req.ForceRefresh)
		if err != nil {
			if errors.Is(err, remote.ErrUnavailable) {
				return fiber.NewError(fiber.StatusServiceUnavailable, "upstream calendar unavailable")
			}
			if errors.Is(err, remote.ErrUnauthorized) {
				return fiber.NewError(fiber.StatusBadGateway, "upstream rejected our credentials")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "failed to generate recommendations")
		}
		return c.JSON(report)
	})

	v1.Put("/recommendations/:id/read", func(c *fiber.Ctx) error {
		userID := c.Query("user_id")
		if userID == "" {
			return fiber.NewError(fiber.StatusBadRequest, "user_id query parameter is required")
		}

		err := deps.Store.MarkRead(c.Context(), c.Params("id"), userID)
		switch {
		case errors.Is(err, store.ErrNotFound):
			return fiber.NewError(fiber.StatusNotFound, "recommendation not found")
		case errors.Is(err, store.ErrAuthorizationDenied):
			return fiber.NewError(fiber.StatusForbidden, "recommendation belongs to another user")
		case err != nil:
			return fiber.NewError(fiber.StatusInternalServerError, "failed to mark recommendation read")
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	v1.Get("/events", func(c *fiber.Ctx) error {
		var req eventsQuery
		if err := req.bind(c); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		events, err := deps.Events.ListEvents(c.Context(), req.UserID, req.Window, req.Opts, req.Provider)
		if err != nil {
			if errors.Is(err, remote.ErrUnauthorized) {
				return fiber.NewError(fiber.StatusBadGateway, "calendar provider rejected our credentials")
			}
			if errors.Is(err, remote.ErrUnavailable) {
				return fiber.NewError(fiber.StatusServiceUnavailable, "calendar provider unavailable")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "failed to list events")
		}
		return c.JSON(fiber.Map{
			"events": events,
			"start":  req.Window.Start,
			"end":    req.Window.End,
		})
	})

	v1.Post("/calendar/sync", func(c *fiber.Ctx) error {
		var req syncRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		provider := calendar.ProviderTag(req.Provider)
		if !provider.Valid() {
			return fiber.NewError(fiber.StatusBadRequest, "unknown provider")
		}

		result, err := deps.Events.Sync(c.Context(), req.UserID, provider, req.ForceFullSync)
		if err != nil {
			if errors.Is(err, remote.ErrUnavailable) {
				return fiber.NewError(fiber.StatusServiceUnavailable, "calendar provider unavailable")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "sync failed")
		}
		return c.JSON(result)
	})

	v1.Get("/calendar/sync/status", func(c *fiber.Ctx) error {
		userID := c.Query("user_id")
		if userID == "" {
			return fiber.NewError(fiber.StatusBadRequest, "user_id query parameter is required")
		}
		provider := calendar.ProviderTag(c.Query("provider"))
		if !provider.Valid() {
			return fiber.NewError(fiber.StatusBadRequest, "unknown provider")
		}
		return c.JSON(deps.Events.SyncStatus(c.Context(), userID, provider))
	})

	v1.Get("/calendars", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"providers": deps.Events.Providers()})
	})

	v1.Get("/weather/current", func(c *fiber.Ctx) error {
		loc, units, err := resolveWeatherQuery(c, deps.Locations)
		if err != nil {
			return err
		}
		snapshot, err := deps.Weather.Current(c.Context(), loc, units)
		if err != nil {
			return mapWeatherError(err)
		}
		return c.JSON(snapshot)
	})

	v1.Get("/weather/forecast", func(c *fiber.Ctx) error {
		loc, units, err := resolveWeatherQuery(c, deps.Locations)
		if err != nil {
			return err
		}
		at, err := parseTime(c.Query("datetime"))
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		snapshot, err := deps.Weather.ForecastAt(c.Context(), loc, at, units)
		if err != nil {
			return mapWeatherError(err)
		}
		return c.JSON(snapshot)
	})

	v1.Get("/weather/air-quality", func(c *fiber.Ctx) error {
		loc, err := resolveLocationQuery(c, deps.Locations)
		if err != nil {
			return err
		}
		aq, err := deps.Weather.AirQuality(c.Context(), loc)
		if err != nil {
			return mapWeatherError(err)
		}
		return c.JSON(aq)
	})

	v1.Get("/weather/uv-index", func(c *fiber.Ctx) error {
		loc, err := resolveLocationQuery(c, deps.Locations)
		if err != nil {
			return err
		}
		uv, err := deps.Weather.UVIndex(c.Context(), loc)
		if err != nil {
			return mapWeatherError(err)
		}
		return c.JSON(uv)
	})

	v1.Get("/weather/alerts", func(c *fiber.Ctx) error {
		loc, err := resolveLocationQuery(c, deps.Locations)
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"alerts": deps.Weather.Alerts(c.Context(), loc)})
	})

	v1.Get("/locations/search", func(c *fiber.Ctx) error {
		query := c.Query("q")
		if query == "" {
			return fiber.NewError(fiber.StatusBadRequest, "q query parameter is required")
		}
		limit := c.QueryInt("limit", 5)
		if limit < 1 || limit > 20 {
			return fiber.NewError(fiber.StatusBadRequest, "limit must be 1-20")
		}

		records, err := deps.Locations.ResolveMany(c.Context(), query, limit)
		if err != nil {
			if errors.Is(err, remote.ErrNotFound) {
				return c.JSON(fiber.Map{"results": []location.Record{}})
			}
			return fiber.NewError(fiber.StatusServiceUnavailable, "geocoding unavailable")
		}
		return c.JSON(fiber.Map{"results": records})
	})

	v1.Post("/webhooks/:provider", func(c *fiber.Ctx) error {
		provider := calendar.ProviderTag(c.Params("provider"))
		if !provider.Valid() {
			return fiber.NewError(fiber.StatusNotFound, "unknown provider")
		}

		var req webhookRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		deps.Webhooks.Enqueue(Notification{UserID: req.UserID, Provider: provider})
		return c.SendStatus(fiber.StatusAccepted)
	})

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
}

type generateRequest struct {
	UserID       string `json:"user_id" validate:"required"`
	ForceRefresh bool   `json:"force_refresh"`
}

type syncRequest struct {
	UserID        string `json:"user_id" validate:"required"`
	Provider      string `json:"provider" validate:"required"`
	ForceFullSync bool   `json:"force_full_sync"`
}

type webhookRequest struct {
	UserID string `json:"user_id" validate:"required"`
}

// eventsQuery holds query parameters for the events endpoint.
type eventsQuery struct {
	UserID   string
	Window   calendar.Window
	Opts     calendar.ListOptions
	Provider calendar.ProviderTag
}

func (q *eventsQuery) bind(c *fiber.Ctx) error {
	q.UserID = c.Query("user_id")
	if q.UserID == "" {
		return errors.New("user_id query parameter is required")
	}

	now := time.Now().UTC()
	q.Window = calendar.Window{Start: now, End: now.Add(7 * 24 * time.Hour)}
	if s := c.Query("start"); s != "" {
		start, err := parseTime(s)
		if err != nil {
			return err
		}
		q.Window.Start = start
	}
	if s := c.Query("end"); s != "" {
		end, err := parseTime(s)
		if err != nil {
			return err
		}
		q.Window.End = end
	}
	if !q.Window.End.After(q.Window.Start) {
		return errors.New("end must be after start")
	}

	q.Opts.Limit = c.QueryInt("limit", 0)
	q.Opts.Offset = c.QueryInt("offset", 0)
	if q.Opts.Limit < 0 || q.Opts.Offset < 0 {
		return errors.New("limit and offset must be non-negative")
	}

	if p := c.Query("provider"); p != "" {
		q.Provider = calendar.ProviderTag(p)
		if !q.Provider.Valid() {
			return errors.New("unknown provider")
		}
	}
	return nil
}

func resolveLocationQuery(c *fiber.Ctx, locations LocationService) (location.Record, error) {
	query := c.Query("location")
	if query == "" {
		return location.Record{}, fiber.NewError(fiber.StatusBadRequest, "location query parameter is required")
	}

	loc, err := locations.Resolve(c.Context(), query)
	if err != nil {
		if errors.Is(err, remote.ErrNotFound) {
			return location.Record{}, fiber.NewError(fiber.StatusNotFound, "location not found")
		}
		return location.Record{}, fiber.NewError(fiber.StatusServiceUnavailable, "geocoding unavailable")
	}
	return loc, nil
}

func resolveWeatherQuery(c *fiber.Ctx, locations LocationService) (location.Record, string, error) {
	units := c.Query("units", weather.UnitsImperial)
	if units != weather.UnitsImperial && units != weather.UnitsMetric {
		return location.Record{}, "", fiber.NewError(fiber.StatusBadRequest, "units must be imperial or metric")
	}
	loc, err := resolveLocationQuery(c, locations)
	if err != nil {
		return location.Record{}, "", err
	}
	return loc, units, nil
}

func mapWeatherError(err error) error {
	switch {
	case errors.Is(err, remote.ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, "no weather data for requested location")
	case errors.Is(err, remote.ErrUnavailable):
		return fiber.NewError(fiber.StatusServiceUnavailable, "weather provider unavailable")
	default:
		return fiber.NewError(fiber.StatusInternalServerError, "failed to fetch weather data")
	}
}

// parseTime tries to parse either RFC3339 or Unix seconds.
func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, errors.New("datetime query parameter is required")
	}
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts, nil
	}
	if unix, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(unix, 0).UTC(), nil
	}
	return time.Time{}, errors.New("invalid time format; use RFC3339 or unix seconds")
}
