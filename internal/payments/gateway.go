// Package payments abstracts the external payment processor behind the small
// capability surface the booking core needs: open a checkout session, ask for
// its authoritative status.
package payments

import (
	"context"
	"errors"
)

type SessionStatus string

const (
	SessionPaid     SessionStatus = "paid"
	SessionOpen     SessionStatus = "open"
	SessionExpired  SessionStatus = "expired"
	SessionCanceled SessionStatus = "canceled"
)

type CreateSessionInput struct {
	AmountInCents int64
	Currency      string
	Name          string
	Description   string
	SuccessURL    string
	CancelURL     string
	Metadata      map[string]string
}

type Gateway interface {
	CreateSession(ctx context.Context, in CreateSessionInput) (string, error)
	GetSessionStatus(ctx context.Context, sessionID string) (SessionStatus, error)
}

var ErrNotConfigured = errors.New("payment gateway is not configured")

// DisabledGateway stands in when no gateway credentials are present. Every
// call fails with ErrNotConfigured, which the booking service surfaces as a
// payment setup failure.
type DisabledGateway struct{}

func NewDisabledGateway() *DisabledGateway {
	return &DisabledGateway{}
}

func (*DisabledGateway) CreateSession(context.Context, CreateSessionInput) (string, error) {
	return "", ErrNotConfigured
}

func (*DisabledGateway) GetSessionStatus(context.Context, string) (SessionStatus, error) {
	return "", ErrNotConfigured
}
