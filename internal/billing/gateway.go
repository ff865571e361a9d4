// Package billing wraps the payment processor and keeps the premium
// entitlement consistent with it.
package billing

import "context"

// PaymentStatusPaid is the processor's terminal status for a settled
// checkout. Anything else must never grant access.
const PaymentStatusPaid = "paid"

// Checkout event/session types. UserRef is our user id, carried through the
// processor as an opaque reference it echoes back unmodified; it is set
// server-side only and never comes from the client.
type (
	CheckoutParams struct {
		CustomerEmail string
		SuccessURL    string
		CancelURL     string
		UserRef       string
	}

	CheckoutSession struct {
		ID  string
		URL string
	}

	CheckoutStatus struct {
		PaymentStatus string
		CustomerRef   string
		UserRef       string
	}

	// CheckoutCompleted is the parsed "checkout completed" webhook payload.
	CheckoutCompleted struct {
		SessionID   string
		UserRef     string
		CustomerRef string
	}

	// Event is a verified webhook event. Checkout is non-nil only for the
	// checkout-completed type; all other types are acknowledged untouched.
	Event struct {
		Type     string
		Checkout *CheckoutCompleted
	}
)

// Gateway is the payment-processor surface this service consumes. A single
// configured instance is built at startup and shared across requests; it
// holds no per-request mutable state.
type Gateway interface {
	CreateCheckoutSession(ctx context.Context, p CheckoutParams) (*CheckoutSession, error)
	CreatePortalSession(ctx context.Context, customerRef, returnURL string) (string, error)
	// VerifyEvent checks the payload signature against the shared secret and
	// parses the event. Verification failure is fatal for the request and is
	// never retried.
	VerifyEvent(payload []byte, sigHeader string) (*Event, error)
	RetrieveCheckoutSession(ctx context.Context, id string) (*CheckoutStatus, error)
}
