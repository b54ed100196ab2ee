package calendar

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/i474232898/event-weather-advisor/internal/remote"
)

// MicrosoftProvider reads events from the Microsoft Graph API.
type MicrosoftProvider struct {
	tokens TokenSource
	client *resty.Client
	caller *remote.Caller
}

func NewMicrosoftProvider(client *resty.Client, tokens TokenSource, backoff remote.BackoffConfig) *MicrosoftProvider {
	client.SetBaseURL("https://graph.microsoft.com/v1.0")
	return &MicrosoftProvider{
		tokens: tokens,
		client: client,
		caller: remote.NewCaller("microsoft-graph", backoff),
	}
}

func (p *MicrosoftProvider) Tag() ProviderTag {
	return ProviderMicrosoft
}

type graphEvent struct {
	ID          string `json:"id"`
	Subject     string `json:"subject"`
	BodyPreview string `json:"bodyPreview"`
	IsAllDay    bool   `json:"isAllDay"`
	IsCancelled bool   `json:"isCancelled"`
	Location    struct {
		DisplayName string `json:"displayName"`
	} `json:"location"`
	Start     graphDateTime `json:"start"`
	End       graphDateTime `json:"end"`
	Attendees []struct {
		EmailAddress struct {
			Address string `json:"address"`
		} `json:"emailAddress"`
	} `json:"attendees"`
	ResponseStatus struct {
		Response string `json:"response"`
	} `json:"responseStatus"`
}

type graphDateTime struct {
	DateTime string `json:"dateTime"`
	TimeZone string `json:"timeZone"`
}

func (p *MicrosoftProvider) ListEvents(ctx context.Context, userID string, window Window, opts ListOptions) ([]Event, error) {
	token, err := p.tokens.Token(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", remote.ErrUnauthorized, err)
	}

	return remote.DoAs(ctx, p.caller, func(ctx context.Context) ([]Event, error) {
		var payload struct {
			Value []graphEvent `json:"value"`
		}

		req := p.client.R().
			SetContext(ctx).
			SetAuthToken(token).
			SetQueryParams(map[string]string{
				"startDateTime": window.Start.UTC().Format(time.RFC3339),
				"endDateTime":   window.End.UTC().Format(time.RFC3339),
				"$orderby":      "start/dateTime",
			}).
			SetResult(&payload)
		if opts.Limit > 0 {
			req.SetQueryParam("$top", strconv.Itoa(opts.Limit))
		}
		if opts.Offset > 0 {
			req.SetQueryParam("$skip", strconv.Itoa(opts.Offset))
		}

		resp, err := req.Get("/me/calendarview")
		if err != nil {
			return nil, err
		}
		if err := remote.ClassifyStatus(resp.StatusCode()); err != nil {
			return nil, err
		}

		events := make([]Event, 0, len(payload.Value))
		for _, item := range payload.Value {
			ev, err := mapGraphEvent(item, userID)
			if err != nil {
				continue
			}
			events = append(events, ev)
		}
		return events, nil
	})
}

func mapGraphEvent(item graphEvent, userID string) (Event, error) {
	start, err := parseGraphTime(item.Start)
	if err != nil {
		return Event{}, err
	}
	end, err := parseGraphTime(item.End)
	if err != nil {
		return Event{}, err
	}

	title := item.Subject
	if title == "" {
		title = "No Title"
	}

	attendees := make([]string, 0, len(item.Attendees))
	for _, a := range item.Attendees {
		attendees = append(attendees, a.EmailAddress.Address)
	}

	status := StatusConfirmed
	switch {
	case item.IsCancelled:
		status = StatusCancelled
	case item.ResponseStatus.Response == "tentativelyAccepted":
		status = StatusTentative
	}

	return Event{
		ID:              item.ID,
		Title:           title,
		Description:     item.BodyPreview,
		StartTime:       start,
		EndTime:         end,
		Location:        item.Location.DisplayName,
		Attendees:       attendees,
		Status:          status,
		Provider:        ProviderMicrosoft,
		ProviderEventID: item.ID,
		UserID:          userID,
		AllDay:          item.IsAllDay,
	}, nil
}

// parseGraphTime parses Graph's fractional-second local timestamps. Windows
// zone names other than UTC are not resolved; those times are taken as UTC.
func parseGraphTime(dt graphDateTime) (time.Time, error) {
	raw := dt.DateTime
	if i := strings.IndexByte(raw, '.'); i >= 0 {
		raw = raw[:i]
	}
	ts, err := time.Parse("2006-01-02T15:04:05", raw)
	if err != nil {
		return time.Time{}, err
	}
	return ts.UTC(), nil
}
