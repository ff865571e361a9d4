package billing

import (
	"context"
	"encoding/json"

	"github.com/stripe/stripe-go/v79"
	portalsession "github.com/stripe/stripe-go/v79/billingportal/session"
	"github.com/stripe/stripe-go/v79/checkout/session"
	"github.com/stripe/stripe-go/v79/webhook"

	"github.com/feedbase/feedbase/internal/apperr"
)

// EventCheckoutCompleted is Stripe's event type for a settled checkout.
const EventCheckoutCompleted = "checkout.session.completed"

// StripeGateway implements Gateway against Stripe. Constructed once in main;
// all fields are immutable after that.
type StripeGateway struct {
	webhookSecret string
	priceID       string
}

func NewStripe(apiKey, webhookSecret, priceID string) *StripeGateway {
	stripe.Key = apiKey
	return &StripeGateway{webhookSecret: webhookSecret, priceID: priceID}
}

func (g *StripeGateway) CreateCheckoutSession(ctx context.Context, p CheckoutParams) (*CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{Price: stripe.String(g.priceID), Quantity: stripe.Int64(1)},
		},
		SuccessURL:    stripe.String(p.SuccessURL),
		CancelURL:     stripe.String(p.CancelURL),
		CustomerEmail: stripe.String(p.CustomerEmail),
		// The only linkage between the payment and our user. Echoed back in
		// the webhook event and on direct retrieval.
		ClientReferenceID: stripe.String(p.UserRef),
	}
	params.Context = ctx

	sess, err := session.New(params)
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrGatewayUnavailable, err)
	}
	return &CheckoutSession{ID: sess.ID, URL: sess.URL}, nil
}

func (g *StripeGateway) CreatePortalSession(ctx context.Context, customerRef, returnURL string) (string, error) {
	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(customerRef),
		ReturnURL: stripe.String(returnURL),
	}
	params.Context = ctx

	sess, err := portalsession.New(params)
	if err != nil {
		return "", apperr.Wrap(apperr.ErrGatewayUnavailable, err)
	}
	return sess.URL, nil
}

func (g *StripeGateway) VerifyEvent(payload []byte, sigHeader string) (*Event, error) {
	ev, err := webhook.ConstructEventWithOptions(payload, sigHeader, g.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrSignatureInvalid, err)
	}

	out := &Event{Type: string(ev.Type)}
	if out.Type == EventCheckoutCompleted {
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(ev.Data.Raw, &sess); err != nil {
			return nil, apperr.Wrap(apperr.ErrMalformedEvent, err)
		}
		cc := &CheckoutCompleted{
			SessionID: sess.ID,
			UserRef:   sess.ClientReferenceID,
		}
		if sess.Customer != nil {
			cc.CustomerRef = sess.Customer.ID
		}
		out.Checkout = cc
	}
	return out, nil
}

func (g *StripeGateway) RetrieveCheckoutSession(ctx context.Context, id string) (*CheckoutStatus, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx

	sess, err := session.Get(id, params)
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrGatewayUnavailable, err)
	}
	st := &CheckoutStatus{
		PaymentStatus: string(sess.PaymentStatus),
		UserRef:       sess.ClientReferenceID,
	}
	if sess.Customer != nil {
		st.CustomerRef = sess.Customer.ID
	}
	return st, nil
}
