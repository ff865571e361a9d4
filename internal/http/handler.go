// Package http is the gin transport layer.
package http

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/feedbase/feedbase/internal/apperr"
	"github.com/feedbase/feedbase/internal/billing"
	"github.com/feedbase/feedbase/internal/config"
	"github.com/feedbase/feedbase/internal/domain"
	"github.com/feedbase/feedbase/internal/oauth"
	"github.com/feedbase/feedbase/internal/queue"
)

// Store is the persistence surface the handlers need. *repo.Store implements
// it; tests plug in an in-memory fake.
type Store interface {
	Ping(ctx context.Context) error

	FindOrCreateUser(ctx context.Context, email, name, provider string) (*domain.User, error)
	FindUserByID(ctx context.Context, id primitive.ObjectID) (*domain.User, error)

	CreateSigninToken(ctx context.Context, email, plain string, ttl time.Duration) error
	ConsumeSigninToken(ctx context.Context, plain string) (string, error)

	CreateBoard(ctx context.Context, b *domain.Board) error
	FindBoardByID(ctx context.Context, id primitive.ObjectID) (*domain.Board, error)
	ListBoardsByOwner(ctx context.Context, owner primitive.ObjectID, limit, skip int) ([]domain.Board, error)
	DeleteBoard(ctx context.Context, id primitive.ObjectID) (bool, error)
	AddBoardRef(ctx context.Context, userID, boardID primitive.ObjectID) error
	RemoveBoardRef(ctx context.Context, userID, boardID primitive.ObjectID) error
}

// Limiter guards abuse-prone endpoints. *repo.Redis implements it.
type Limiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) bool
}

type Handler struct {
	Store      Store
	Gateway    billing.Gateway
	Reconciler *billing.Reconciler
	Events     queue.Publisher
	Google     *oauth.GoogleOAuth
	Limiter    Limiter
	Log        *zap.Logger
	Cfg        config.Config
}

func NewHandler(store Store, gw billing.Gateway, rec *billing.Reconciler, pub queue.Publisher,
	google *oauth.GoogleOAuth, lim Limiter, log *zap.Logger, cfg config.Config) *Handler {
	if pub == nil {
		pub = queue.NewNoop()
	}
	return &Handler{
		Store:      store,
		Gateway:    gw,
		Reconciler: rec,
		Events:     pub,
		Google:     google,
		Limiter:    lim,
		Log:        log,
		Cfg:        cfg,
	}
}

func respondErr(c *gin.Context, err error) {
	c.JSON(apperr.HTTPStatus(err), gin.H{"error": apperr.Message(err)})
}

// currentUser loads the authenticated user set by AuthJWT.
func (h *Handler) currentUser(c *gin.Context) (*domain.User, bool) {
	uid := c.GetString(ctxUID)
	oid, err := primitive.ObjectIDFromHex(uid)
	if err != nil {
		respondErr(c, apperr.ErrUnauthorized)
		return nil, false
	}
	u, err := h.Store.FindUserByID(c.Request.Context(), oid)
	if err != nil {
		respondErr(c, apperr.Wrap(apperr.ErrStorageUnavailable, err))
		return nil, false
	}
	if u == nil {
		respondErr(c, apperr.ErrUnauthorized)
		return nil, false
	}
	return u, true
}

func (h *Handler) Healthz(c *gin.Context) {
	if err := h.Store.Ping(c.Request.Context()); err != nil {
		c.JSON(503, gin.H{"status": "degraded", "error": err.Error()})
		return
	}
	c.JSON(200, gin.H{"status": "ok"})
}
