package http

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/feedbase/feedbase/internal/apperr"
	"github.com/feedbase/feedbase/internal/billing"
	"github.com/feedbase/feedbase/internal/log"
	"github.com/feedbase/feedbase/internal/metrics"
)

type checkoutReq struct {
	SuccessURL string `json:"success_url"`
	CancelURL  string `json:"cancel_url"`
}

// CreateCheckout godoc
// @Summary Start a checkout session
// @Tags billing
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param payload body checkoutReq true "redirect urls"
// @Success 200 {object} map[string]string
// @Failure 400 {object} map[string]string
// @Failure 401 {object} map[string]string
// @Router /api/billing/checkout [post]
func (h *Handler) CreateCheckout(c *gin.Context) {
	var in checkoutReq
	if err := c.ShouldBindJSON(&in); err != nil || in.SuccessURL == "" || in.CancelURL == "" {
		respondErr(c, apperr.Validation("success_url and cancel_url are required"))
		return
	}
	u, ok := h.currentUser(c)
	if !ok {
		return
	}

	// The user reference is set here, server-side, and nowhere else. Clients
	// only control the redirect URLs.
	sess, err := h.Gateway.CreateCheckoutSession(c.Request.Context(), billing.CheckoutParams{
		CustomerEmail: u.Email,
		SuccessURL:    in.SuccessURL,
		CancelURL:     in.CancelURL,
		UserRef:       u.ID.Hex(),
	})
	if err != nil {
		log.WithDD(c.Request.Context(), h.Log).Error("create checkout session", zap.Error(err), zap.String("user_id", u.ID.Hex()))
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": sess.URL})
}

type portalReq struct {
	ReturnURL string `json:"return_url"`
}

// CreatePortal godoc
// @Summary Open the billing management portal
// @Tags billing
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param payload body portalReq true "return url"
// @Success 200 {object} map[string]string
// @Failure 400 {object} map[string]string
// @Failure 401 {object} map[string]string
// @Router /api/billing/portal [post]
func (h *Handler) CreatePortal(c *gin.Context) {
	var in portalReq
	if err := c.ShouldBindJSON(&in); err != nil || in.ReturnURL == "" {
		respondErr(c, apperr.Validation("return_url is required"))
		return
	}
	u, ok := h.currentUser(c)
	if !ok {
		return
	}
	// A placeholder reference from the fallback path is as useless for the
	// portal as no reference at all.
	if !u.HasRealCustomerRef() {
		respondErr(c, apperr.Validation("no billing information found, make a purchase first"))
		return
	}

	url, err := h.Gateway.CreatePortalSession(c.Request.Context(), u.CustomerID, in.ReturnURL)
	if err != nil {
		log.WithDD(c.Request.Context(), h.Log).Error("create portal session", zap.Error(err), zap.String("user_id", u.ID.Hex()))
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url})
}

const maxWebhookBody = int64(65536)

// StripeWebhook godoc
// @Summary Payment processor webhook
// @Tags billing
// @Accept json
// @Success 200 {object} map[string]bool
// @Failure 400 {object} map[string]string
// @Failure 503 {object} map[string]string
// @Router /api/webhook/stripe [post]
func (h *Handler) StripeWebhook(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		respondErr(c, apperr.Validation("invalid payload"))
		return
	}

	ev, err := h.Gateway.VerifyEvent(body, c.GetHeader("Stripe-Signature"))
	if err != nil {
		// Fatal for this request; Stripe signs every delivery, so a broken
		// signature is either tampering or misconfiguration, never retried.
		log.WithDD(c.Request.Context(), h.Log).Warn("webhook signature rejected", zap.Error(err))
		metrics.BillingEventsTotal.WithLabelValues("unknown", "signature_invalid").Inc()
		respondErr(c, err)
		return
	}

	switch ev.Type {
	case billing.EventCheckoutCompleted:
		if err := h.Reconciler.ApplyCheckoutCompleted(c.Request.Context(), ev.Checkout); err != nil {
			log.WithDD(c.Request.Context(), h.Log).Error("apply checkout.completed", zap.Error(err))
			metrics.BillingEventsTotal.WithLabelValues(ev.Type, "error").Inc()
			// Non-2xx on storage trouble makes the processor redeliver;
			// malformed events answer 400 and are dropped on their side.
			respondErr(c, err)
			return
		}
		metrics.BillingEventsTotal.WithLabelValues(ev.Type, "applied").Inc()
	default:
		// Acknowledge everything else so the processor stops redelivering.
		metrics.BillingEventsTotal.WithLabelValues(ev.Type, "ignored").Inc()
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}

// BillingSync godoc
// @Summary Fallback reconciliation after the success redirect
// @Tags billing
// @Security BearerAuth
// @Produce json
// @Param session_id query string true "checkout session id"
// @Success 200 {object} map[string]bool
// @Failure 401 {object} map[string]string
// @Router /api/billing/sync [get]
func (h *Handler) BillingSync(c *gin.Context) {
	u, ok := h.currentUser(c)
	if !ok {
		return
	}

	// Reconciliation trouble must never break the success page: log it and
	// report the current state; the webhook or a later sync will catch up.
	if err := h.Reconciler.ReconcileFallback(c.Request.Context(), u, c.Query("session_id")); err != nil {
		log.WithDD(c.Request.Context(), h.Log).Error("fallback reconciliation failed",
			zap.Error(err), zap.String("user_id", u.ID.Hex()))
	}

	fresh, err := h.Store.FindUserByID(c.Request.Context(), u.ID)
	if err != nil || fresh == nil {
		c.JSON(http.StatusOK, gin.H{"has_access": u.HasAccess})
		return
	}
	c.JSON(http.StatusOK, gin.H{"has_access": fresh.HasAccess})
}
