package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/feedbase/feedbase/internal/apperr"
	"github.com/feedbase/feedbase/internal/log"
	"github.com/feedbase/feedbase/internal/queue"
	"github.com/feedbase/feedbase/internal/repo"
	"github.com/feedbase/feedbase/internal/security"
)

type magicLinkReq struct {
	Email string `json:"email"`
}

// MagicLink godoc
// @Summary Request a sign-in link by mail
// @Tags auth
// @Accept json
// @Param payload body magicLinkReq true "email"
// @Success 200 {object} map[string]string
// @Failure 400 {object} map[string]string
// @Failure 429 {object} map[string]string
// @Router /api/auth/magic-link [post]
func (h *Handler) MagicLink(c *gin.Context) {
	var in magicLinkReq
	if err := c.ShouldBindJSON(&in); err != nil {
		respondErr(c, apperr.Validation("invalid json"))
		return
	}
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if !strings.Contains(email, "@") {
		respondErr(c, apperr.Validation("invalid email"))
		return
	}

	plain, err := repo.NewToken()
	if err != nil {
		respondErr(c, err)
		return
	}
	if err := h.Store.CreateSigninToken(c.Request.Context(), email, plain, h.Cfg.MagicLinkTTL); err != nil {
		respondErr(c, apperr.Wrap(apperr.ErrStorageUnavailable, err))
		return
	}

	link := h.Cfg.BaseURL + "/api/auth/callback?token=" + plain
	reqID := c.GetString(ctxRequestID)
	if err := h.Events.Publish(c.Request.Context(), h.Cfg.Exchange, queue.KeyMagicLinkIssued,
		queue.MagicLinkIssued{Email: email, Link: link}, reqID); err != nil {
		log.WithDD(c.Request.Context(), h.Log).Error("publish magiclink.issued", zap.Error(err))
	}

	resp := gin.H{"status": "sent"}
	if h.Cfg.IsDevelopment() {
		resp["magic_link_dev"] = link
	}
	c.JSON(http.StatusOK, resp)
}

type sessionResp struct {
	Access string `json:"access"`
}

// Callback godoc
// @Summary Exchange a magic-link token for a session
// @Tags auth
// @Produce json
// @Param token query string true "one-time token"
// @Success 200 {object} sessionResp
// @Failure 400 {object} map[string]string
// @Router /api/auth/callback [get]
func (h *Handler) Callback(c *gin.Context) {
	tok := c.Query("token")
	if tok == "" {
		respondErr(c, apperr.Validation("token is required"))
		return
	}
	email, err := h.Store.ConsumeSigninToken(c.Request.Context(), tok)
	if err != nil {
		respondErr(c, apperr.Validation("invalid or expired token"))
		return
	}

	// First verified sign-in creates the user.
	u, err := h.Store.FindOrCreateUser(c.Request.Context(), email, "", "email")
	if err != nil {
		respondErr(c, apperr.Wrap(apperr.ErrStorageUnavailable, err))
		return
	}

	access, err := security.MakeAccess(h.Cfg.JWTSecret, u.ID.Hex(), u.Email, h.Cfg.SessionTTL)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, sessionResp{Access: access})
}

// GoogleStart redirects to Google's consent screen with a signed state.
func (h *Handler) GoogleStart(c *gin.Context) {
	state := h.Google.MakeState(uuid.NewString())
	c.Redirect(http.StatusFound, h.Google.AuthURL(state))
}

// GoogleCallback finishes the OAuth flow and issues a session.
func (h *Handler) GoogleCallback(c *gin.Context) {
	state := c.Query("state")
	code := c.Query("code")
	if code == "" || !h.Google.VerifyState(state) {
		respondErr(c, apperr.Validation("invalid oauth state"))
		return
	}
	gu, err := h.Google.ExchangeAndVerify(c.Request.Context(), code, h.Cfg.GoogleClientID)
	if err != nil {
		log.WithDD(c.Request.Context(), h.Log).Warn("google exchange failed", zap.Error(err))
		respondErr(c, apperr.ErrUnauthorized)
		return
	}
	if !gu.EmailVerified {
		respondErr(c, apperr.ErrUnauthorized)
		return
	}

	u, err := h.Store.FindOrCreateUser(c.Request.Context(), strings.ToLower(gu.Email), gu.Name, "google")
	if err != nil {
		respondErr(c, apperr.Wrap(apperr.ErrStorageUnavailable, err))
		return
	}

	access, err := security.MakeAccess(h.Cfg.JWTSecret, u.ID.Hex(), u.Email, h.Cfg.SessionTTL)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, sessionResp{Access: access})
}

// Me godoc
// @Summary Current user
// @Tags auth
// @Security BearerAuth
// @Produce json
// @Success 200 {object} map[string]any
// @Failure 401 {object} map[string]string
// @Router /api/auth/me [get]
func (h *Handler) Me(c *gin.Context) {
	u, ok := h.currentUser(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"id":         u.ID,
		"email":      u.Email,
		"name":       u.Name,
		"has_access": u.HasAccess,
		"boards":     u.Boards,
		"created_at": u.CreatedAt,
	})
}
