package calendar

import (
	"context"
	"errors"
)

// ErrNoToken is returned when a user has no credential for a provider.
var ErrNoToken = errors.New("calendar: no token for user")

// StaticTokenSource hands out a fixed bearer token for every user. It covers
// single-tenant and development setups; multi-tenant deployments implement
// TokenSource against their OAuth store instead.
type StaticTokenSource struct {
	token string
}

func NewStaticTokenSource(token string) *StaticTokenSource {
	return &StaticTokenSource{token: token}
}

func (s *StaticTokenSource) Token(ctx context.Context, userID string) (string, error) {
	if s.token == "" {
		return "", ErrNoToken
	}
	return s.token, nil
}
