package billing

import (
	"context"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/feedbase/feedbase/internal/apperr"
	"github.com/feedbase/feedbase/internal/domain"
	"github.com/feedbase/feedbase/internal/metrics"
	"github.com/feedbase/feedbase/internal/queue"
	"github.com/feedbase/feedbase/internal/repo"
)

// UserStore is the slice of the repo the reconciler needs.
type UserStore interface {
	FindUserByID(ctx context.Context, id primitive.ObjectID) (*domain.User, error)
	// GrantAccess must be atomic and conditional: set has_access and the
	// customer reference only while the stored reference is unset or equal.
	GrantAccess(ctx context.Context, id primitive.ObjectID, ref string) (u *domain.User, granted bool, err error)
}

// Reconciler keeps user.has_access consistent with the payment processor.
// Two uncoordinated paths feed it: asynchronous webhook events and the
// synchronous fallback check on the success redirect. Both converge on the
// same conditional storage update, so they are safe to race.
type Reconciler struct {
	Store    UserStore
	Gateway  Gateway
	Events   queue.Publisher
	Exchange string
	Log      *zap.Logger
}

func NewReconciler(store UserStore, gw Gateway, pub queue.Publisher, exchange string, log *zap.Logger) *Reconciler {
	if pub == nil {
		pub = queue.NewNoop()
	}
	return &Reconciler{Store: store, Gateway: gw, Events: pub, Exchange: exchange, Log: log}
}

// ApplyCheckoutCompleted applies a verified checkout-completed event.
// Idempotent: re-delivery of the same event leaves the user unchanged and
// produces no further side effects. A missing or unresolvable user reference
// is a data-integrity problem upstream and is reported, not retried; storage
// failures surface as StorageUnavailable so the webhook endpoint can answer
// non-2xx and let the processor redeliver.
func (r *Reconciler) ApplyCheckoutCompleted(ctx context.Context, ev *CheckoutCompleted) error {
	if ev == nil || ev.UserRef == "" {
		return apperr.ErrMalformedEvent
	}
	uid, err := primitive.ObjectIDFromHex(ev.UserRef)
	if err != nil {
		return apperr.Wrap(apperr.ErrMalformedEvent, err)
	}

	u, granted, err := r.Store.GrantAccess(ctx, uid, ev.CustomerRef)
	if err != nil {
		if err == repo.ErrUserNotFound {
			return apperr.Wrap(apperr.ErrMalformedEvent, err)
		}
		return apperr.Wrap(apperr.ErrStorageUnavailable, err)
	}

	if granted {
		metrics.AccessGrantsTotal.WithLabelValues("webhook").Inc()
		r.publishActivated(ctx, u)
		return nil
	}
	if u.CustomerID != ev.CustomerRef {
		// Another path won the race with a different reference. The stored
		// record is authoritative; the event is acknowledged as applied.
		r.Log.Warn("checkout event carries a different customer reference than stored",
			zap.String("user_id", u.ID.Hex()),
			zap.String("stored", u.CustomerID),
			zap.String("event", ev.CustomerRef))
	}
	return nil
}

// ReconcileFallback re-checks the processor directly when the user lands on
// the success redirect before the webhook did. It never grants on anything
// but a confirmed "paid" status, and it is a no-op when access is already
// granted.
func (r *Reconciler) ReconcileFallback(ctx context.Context, user *domain.User, sessionID string) error {
	if sessionID == "" {
		return apperr.Validation("session_id is required")
	}
	if user.HasAccess {
		return nil
	}

	st, err := r.Gateway.RetrieveCheckoutSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if st.PaymentStatus != PaymentStatusPaid {
		r.Log.Info("fallback check on unpaid session, not granting",
			zap.String("user_id", user.ID.Hex()),
			zap.String("payment_status", st.PaymentStatus))
		return nil
	}
	if st.UserRef != "" && st.UserRef != user.ID.Hex() {
		// The session was created for somebody else; refuse to apply it to
		// the caller. The real owner's webhook will land on its own.
		r.Log.Warn("fallback session reference does not match the caller",
			zap.String("caller", user.ID.Hex()),
			zap.String("session_ref", st.UserRef))
		return nil
	}

	ref := st.CustomerRef
	if ref == "" {
		// Known weak point: a synthetic reference can never open the billing
		// portal. Visibly marked so the portal handler can refuse it.
		ref = domain.PlaceholderCustomerPrefix + uuid.NewString()
		r.Log.Warn("processor returned no customer reference, using placeholder",
			zap.String("user_id", user.ID.Hex()),
			zap.String("ref", ref))
	}

	u, granted, err := r.Store.GrantAccess(ctx, user.ID, ref)
	if err != nil {
		if err == repo.ErrUserNotFound {
			return apperr.Wrap(apperr.ErrMalformedEvent, err)
		}
		return apperr.Wrap(apperr.ErrStorageUnavailable, err)
	}
	if granted {
		metrics.AccessGrantsTotal.WithLabelValues("fallback").Inc()
		r.publishActivated(ctx, u)
	}
	return nil
}

func (r *Reconciler) publishActivated(ctx context.Context, u *domain.User) {
	err := r.Events.Publish(ctx, r.Exchange, queue.KeyPremiumActivated,
		queue.PremiumActivated{UserID: u.ID, Email: u.Email},
		queue.RequestID(ctx))
	if err != nil {
		r.Log.Error("publish premium.activated", zap.Error(err), zap.String("user_id", u.ID.Hex()))
	}
}
