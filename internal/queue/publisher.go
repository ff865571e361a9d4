// Package queue publishes domain events to the message broker.
package queue

import (
	"context"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Routing keys on the topic exchange.
const (
	KeyMagicLinkIssued  = "auth.magiclink.issued"
	KeyPremiumActivated = "billing.premium.activated"
)

type Publisher interface {
	Publish(ctx context.Context, exchange, key string, event any, reqID string) error
	Close() error
}

type NoopPub struct{}

func NewNoop() Publisher { return NoopPub{} }

func (NoopPub) Publish(ctx context.Context, exchange, key string, event any, reqID string) error {
	return nil
}
func (NoopPub) Close() error { return nil }

// MagicLinkIssued asks the notify worker to mail a sign-in link.
type MagicLinkIssued struct {
	Email string `json:"email"`
	Link  string `json:"link"`
}

// PremiumActivated is published exactly once per false→true entitlement
// transition, never on idempotent re-application.
type PremiumActivated struct {
	UserID primitive.ObjectID `json:"user_id"`
	Email  string             `json:"email"`
}

type ctxKey struct{}

// WithRequestID stores the inbound request id for event correlation.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// RequestID returns the request id previously stored in ctx, if any.
func RequestID(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKey{}).(string); ok {
		return v
	}
	return ""
}
