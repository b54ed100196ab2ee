package httpapi

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/event-weather-advisor/internal/calendar"
	"github.com/i474232898/event-weather-advisor/internal/location"
	"github.com/i474232898/event-weather-advisor/internal/recommend"
	"github.com/i474232898/event-weather-advisor/internal/remote"
	"github.com/i474232898/event-weather-advisor/internal/store"
	"github.com/i474232898/event-weather-advisor/internal/weather"
)

type stubPipeline struct {
	report    recommend.Report
	err       error
	lastForce bool
}

func (s *stubPipeline) Run(ctx context.Context, userID string, forceRefresh bool) (recommend.Report, error) {
	s.lastForce = forceRefresh
	return s.report, s.err
}

type stubEvents struct {
	events  []calendar.Event
	listErr error
	result  calendar.SyncResult
	syncErr error
	status  calendar.SyncStatus

	mu        sync.Mutex
	lastFull  bool
	syncCalls int
}

func (s *stubEvents) ListEvents(ctx context.Context, userID string, window calendar.Window, opts calendar.ListOptions, provider calendar.ProviderTag) ([]calendar.Event, error) {
	return s.events, s.listErr
}

func (s *stubEvents) Sync(ctx context.Context, userID string, provider calendar.ProviderTag, forceFull bool) (calendar.SyncResult, error) {
	s.mu.Lock()
	s.syncCalls++
	s.lastFull = forceFull
	s.mu.Unlock()
	return s.result, s.syncErr
}

func (s *stubEvents) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.syncCalls
}

func (s *stubEvents) forcedFull() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastFull
}

func (s *stubEvents) SyncStatus(ctx context.Context, userID string, provider calendar.ProviderTag) calendar.SyncStatus {
	return s.status
}

func (s *stubEvents) Providers() []calendar.ProviderTag {
	return []calendar.ProviderTag{calendar.ProviderGoogle, calendar.ProviderMicrosoft}
}

type stubWeather struct {
	snapshot weather.Snapshot
	air      weather.AirQuality
	uv       weather.UVIndex
	alerts   []weather.Alert
	err      error
}

func (s *stubWeather) Current(ctx context.Context, loc location.Record, units string) (weather.Snapshot, error) {
	return s.snapshot, s.err
}

func (s *stubWeather) ForecastAt(ctx context.Context, loc location.Record, at time.Time, units string) (weather.Snapshot, error) {
	return s.snapshot, s.err
}

func (s *stubWeather) AirQuality(ctx context.Context, loc location.Record) (weather.AirQuality, error) {
	return s.air, s.err
}

func (s *stubWeather) UVIndex(ctx context.Context, loc location.Record) (weather.UVIndex, error) {
	return s.uv, s.err
}

func (s *stubWeather) Alerts(ctx context.Context, loc location.Record) []weather.Alert {
	return s.alerts
}

type stubLocations struct {
	record  location.Record
	records []location.Record
	err     error
}

func (s *stubLocations) Resolve(ctx context.Context, query string) (location.Record, error) {
	return s.record, s.err
}

func (s *stubLocations) ResolveMany(ctx context.Context, query string, limit int) ([]location.Record, error) {
	return s.records, s.err
}

func newTestApp(t *testing.T, deps Deps) *fiber.App {
	t.Helper()
	if deps.Store == nil {
		deps.Store = store.NewMemoryStore()
	}
	if deps.Events == nil {
		deps.Events = &stubEvents{}
	}
	if deps.Weather == nil {
		deps.Weather = &stubWeather{}
	}
	if deps.Locations == nil {
		deps.Locations = &stubLocations{record: location.Record{Name: "Paris", Latitude: 48.85, Longitude: 2.35}}
	}
	if deps.Recommendations == nil {
		deps.Recommendations = &stubPipeline{}
	}
	if deps.Webhooks == nil {
		deps.Webhooks = NewWebhookQueue(deps.Events, 8)
	}
	app := fiber.New()
	RegisterRoutes(app, deps)
	return app
}

func postJSON(path, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestListRecommendationsRequiresUserID(t *testing.T) {
	app := newTestApp(t, Deps{})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/recommendations", nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, resp.StatusCode)
	}
}

func TestListRecommendationsReturnsPage(t *testing.T) {
	s := store.NewMemoryStore()
	_, err := s.Insert(context.Background(), recommend.Recommendation{
		UserID:    "u1",
		Title:     "Weather advice for Picnic",
		Message:   "Bring an umbrella.",
		Category:  recommend.CategoryClothingAdvice,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	app := newTestApp(t, Deps{Store: s})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/recommendations?user_id=u1&limit=5", nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "Weather advice for Picnic") {
		t.Fatalf("unexpected body: %s", body)
	}
}

func TestGenerateRecommendations(t *testing.T) {
	pipeline := &stubPipeline{report: recommend.Report{Attempted: 3, Succeeded: 2}}
	app := newTestApp(t, Deps{Recommendations: pipeline})

	resp, err := app.Test(postJSON("/api/v1/recommendations/generate", `{"user_id":"u1","force_refresh":true}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, resp.StatusCode)
	}
	if !pipeline.lastForce {
		t.Fatal("force_refresh flag was not forwarded")
	}

	// Missing user_id fails validation.
	resp, err = app.Test(postJSON("/api/v1/recommendations/generate", `{"force_refresh":true}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, resp.StatusCode)
	}
}

func TestGenerateMapsUpstreamErrors(t *testing.T) {
	app := newTestApp(t, Deps{Recommendations: &stubPipeline{err: remote.ErrUnavailable}})

	resp, err := app.Test(postJSON("/api/v1/recommendations/generate", `{"user_id":"u1"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected status %d, got %d", http.StatusServiceUnavailable, resp.StatusCode)
	}
}

func TestMarkReadStatusMapping(t *testing.T) {
	s := store.NewMemoryStore()
	id, err := s.Insert(context.Background(), recommend.Recommendation{
		UserID:    "u1",
		Title:     "r1",
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	app := newTestApp(t, Deps{Store: s})

	// Wrong owner.
	resp, err := app.Test(httptest.NewRequest(http.MethodPut, "/api/v1/recommendations/"+id+"/read?user_id=u2", nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected status %d, got %d", http.StatusForbidden, resp.StatusCode)
	}

	// Unknown ID.
	resp, err = app.Test(httptest.NewRequest(http.MethodPut, "/api/v1/recommendations/missing/read?user_id=u1", nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected status %d, got %d", http.StatusNotFound, resp.StatusCode)
	}

	// Owner.
	resp, err = app.Test(httptest.NewRequest(http.MethodPut, "/api/v1/recommendations/"+id+"/read?user_id=u1", nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected status %d, got %d", http.StatusNoContent, resp.StatusCode)
	}
}

func TestEventsValidation(t *testing.T) {
	app := newTestApp(t, Deps{})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/events", nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("missing user_id: expected %d, got %d", http.StatusBadRequest, resp.StatusCode)
	}

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/events?user_id=u1&provider=yahoo", nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("unknown provider: expected %d, got %d", http.StatusBadRequest, resp.StatusCode)
	}

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/events?user_id=u1", nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected %d, got %d", http.StatusOK, resp.StatusCode)
	}
}

func TestCalendarSync(t *testing.T) {
	events := &stubEvents{result: calendar.SyncResult{EventsSynced: 4, Status: "success"}}
	app := newTestApp(t, Deps{Events: events})

	resp, err := app.Test(postJSON("/api/v1/calendar/sync", `{"user_id":"u1","provider":"google","force_full_sync":true}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, resp.StatusCode)
	}
	if !events.forcedFull() {
		t.Fatal("force_full_sync flag was not forwarded")
	}

	resp, err = app.Test(postJSON("/api/v1/calendar/sync", `{"user_id":"u1","provider":"yahoo"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, resp.StatusCode)
	}
}

func TestWeatherCurrentLocationNotFound(t *testing.T) {
	app := newTestApp(t, Deps{Locations: &stubLocations{err: remote.ErrNotFound}})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/weather/current?location=Atlantis", nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected status %d, got %d", http.StatusNotFound, resp.StatusCode)
	}
}

func TestWeatherForecastRequiresDatetime(t *testing.T) {
	app := newTestApp(t, Deps{})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/weather/forecast?location=Paris", nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, resp.StatusCode)
	}

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/weather/forecast?location=Paris&datetime=2024-06-02T10:00:00Z", nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, resp.StatusCode)
	}
}

func TestWeatherUnitsValidation(t *testing.T) {
	app := newTestApp(t, Deps{})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/weather/current?location=Paris&units=kelvin", nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, resp.StatusCode)
	}
}

func TestWeatherAirQualityAndUVIndex(t *testing.T) {
	w := &stubWeather{
		air: weather.AirQuality{AQI: 3, PM25: 12.5},
		uv:  weather.UVIndex{Value: 8, Category: "very_high", SafeExposureMinutes: 25},
	}
	app := newTestApp(t, Deps{Weather: w})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/weather/air-quality?location=Paris", nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), `"aqi":3`) {
		t.Fatalf("unexpected air quality body: %s", body)
	}

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/weather/uv-index?location=Paris", nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, resp.StatusCode)
	}
	body, _ = io.ReadAll(resp.Body)
	if !strings.Contains(string(body), `"uvCategory":"very_high"`) {
		t.Fatalf("unexpected uv body: %s", body)
	}

	// Missing location rejected before touching the connector.
	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/weather/air-quality", nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, resp.StatusCode)
	}
}

func TestWeatherAlertsAlwaysReturnsList(t *testing.T) {
	app := newTestApp(t, Deps{Weather: &stubWeather{alerts: []weather.Alert{}}})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/weather/alerts?location=Paris", nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), `"alerts":[]`) {
		t.Fatalf("expected empty alert list, got %s", body)
	}
}

func TestCalendarSyncStatus(t *testing.T) {
	events := &stubEvents{status: calendar.SyncStatus{Status: calendar.SyncActive}}
	app := newTestApp(t, Deps{Events: events})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/calendar/sync/status?user_id=u1&provider=google", nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), string(calendar.SyncActive)) {
		t.Fatalf("unexpected status body: %s", body)
	}

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/calendar/sync/status?user_id=u1&provider=yahoo", nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, resp.StatusCode)
	}
}

func TestCalendarsListsProviders(t *testing.T) {
	app := newTestApp(t, Deps{Events: &stubEvents{}})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/calendars", nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "google") || !strings.Contains(string(body), "microsoft") {
		t.Fatalf("unexpected providers body: %s", body)
	}
}

func TestLocationSearch(t *testing.T) {
	locations := &stubLocations{records: []location.Record{{Name: "Paris"}, {Name: "Paris, TX"}}}
	app := newTestApp(t, Deps{Locations: locations})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/locations/search?q=Paris", nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, resp.StatusCode)
	}

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/locations/search", nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, resp.StatusCode)
	}
}

func TestWebhookAcceptsAndQueues(t *testing.T) {
	events := &stubEvents{}
	queue := NewWebhookQueue(events, 8)
	app := newTestApp(t, Deps{Events: events, Webhooks: queue})

	resp, err := app.Test(postJSON("/api/v1/webhooks/google", `{"user_id":"u1"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected status %d, got %d", http.StatusAccepted, resp.StatusCode)
	}
	if queue.Len() != 1 {
		t.Fatalf("expected 1 queued notice, got %d", queue.Len())
	}
	if events.calls() != 0 {
		t.Fatal("webhook must not sync synchronously")
	}

	resp, err = app.Test(postJSON("/api/v1/webhooks/yahoo", `{"user_id":"u1"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected status %d, got %d", http.StatusNotFound, resp.StatusCode)
	}
}

func TestWebhookDrainerSyncs(t *testing.T) {
	events := &stubEvents{result: calendar.SyncResult{EventsSynced: 1, Status: "success"}}
	queue := NewWebhookQueue(events, 8)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	queue.Start(ctx)

	queue.Enqueue(Notification{UserID: "u1", Provider: calendar.ProviderGoogle})

	deadline := time.After(2 * time.Second)
	for events.calls() == 0 {
		select {
		case <-deadline:
			t.Fatal("drainer never ran the sync")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestHealth(t *testing.T) {
	app := newTestApp(t, Deps{})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, resp.StatusCode)
	}
}
