package calendar

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

// GoogleProvider reads events from the Google Calendar v3 REST API.
type GoogleProvider struct {
	baseURL string
	tokens  TokenSource
	client  *http.Client
	caller  *remote.Caller
}

func NewGoogleProvider(client *http.Client, tokens TokenSource, backoff remote.BackoffConfig) *GoogleProvider {
	return &GoogleProvider{
		baseURL: "https://www.googleapis.com/calendar/v3",
		tokens:  tokens,
		client:  client,
		caller:  remote.NewCaller("google-calendar", backoff),
	}
}

func (p *GoogleProvider) Tag() ProviderTag {
	return ProviderGoogle
}

type googleEvent struct {
	ID          string `json:"id"`
	Summary     string `json:"summary"`
	Description string `json:"description"`
	Location    string `json:"location"`
	Status      string `json:"status"`
	Start       struct {
		DateTime string `json:"dateTime"`
		Date     string `json:"date"`
	} `json:"start"`
	End struct {
		DateTime string `json:"dateTime"`
		Date     string `json:"date"`
	} `json:"end"`
	Attendees []struct {
		Email string `json:"email"`
	} `json:"attendees"`
}

func (p *GoogleProvider) ListEvents(ctx context.Context, userID string, window Window, opts ListOptions) ([]Event, error) {
	token, err := p.tokens.Token(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", remote.ErrUnauthorized, err)
	}

	buildRequest := func() (*http.Request, error) {
		values := url.Values{}
		values.Set("timeMin", window.Start.UTC().Format(time.RFC3339))
		values.Set("timeMax", window.End.UTC().Format(time.RFC3339))
		values.Set("singleEvents", "true")
		values.Set("orderBy", "startTime")
		if opts.Limit > 0 {
			values.Set("maxResults", strconv.Itoa(opts.Limit))
		}

		u := fmt.Sprintf("%s/calendars/primary/events?%s", p.baseURL, values.Encode())
		req, err := http.NewRequest(http.MethodGet, u, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+token)
		return req, nil
	}

	body, err := remote.Fetch(ctx, p.caller, p.client, buildRequest)
	if err != nil {
		return nil, err
	}

	var payload struct {
		Items []googleEvent `json:"items"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, err
	}

	events := make([]Event, 0, len(payload.Items))
	for _, item := range payload.Items {
		ev, err := mapGoogleEvent(item, userID)
		if err != nil {
			continue
		}
		events = append(events, ev)
	}
	return events, nil
}

func mapGoogleEvent(item googleEvent, userID string) (Event, error) {
	allDay := item.Start.DateTime == "" && item.Start.Date != ""

	start, err := parseGoogleTime(item.Start.DateTime, item.Start.Date)
	if err != nil {
		return Event{}, err
	}
	end, err := parseGoogleTime(item.End.DateTime, item.End.Date)
	if err != nil {
		return Event{}, err
	}

	title := item.Summary
	if title == "" {
		title = "No Title"
	}

	attendees := make([]string, 0, len(item.Attendees))
	for _, a := range item.Attendees {
		attendees = append(attendees, a.Email)
	}

	status := StatusTentative
	switch item.Status {
	case "confirmed":
		status = StatusConfirmed
	case "cancelled":
		status = StatusCancelled
	}

	return Event{
		ID:              item.ID,
		Title:           title,
		Description:     item.Description,
		StartTime:       start,
		EndTime:         end,
		Location:        item.Location,
		Attendees:       attendees,
		Status:          status,
		Provider:        ProviderGoogle,
		ProviderEventID: item.ID,
		UserID:          userID,
		AllDay:          allDay,
	}, nil
}

// parseGoogleTime handles both timed (dateTime) and all-day (date) fields.
// All-day end dates are exclusive (the day after the event), so midnight of
// that date is already the event's end.
func parseGoogleTime(dateTime, date string) (time.Time, error) {
	if dateTime != "" {
		ts, err := time.Parse(time.RFC3339, dateTime)
		if err != nil {
			return time.Time{}, err
		}
		return ts.UTC(), nil
	}
	if date == "" {
		return time.Time{}, fmt.Errorf("event missing both dateTime and date")
	}
	day, err := time.Parse("2006-01-02", date)
	if err != nil {
		return time.Time{}, err
	}
	return day.UTC(), nil
}
