package http_test

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/feedbase/feedbase/internal/apperr"
	"github.com/feedbase/feedbase/internal/billing"
	"github.com/feedbase/feedbase/internal/config"
	"github.com/feedbase/feedbase/internal/domain"
	api "github.com/feedbase/feedbase/internal/http"
	"github.com/feedbase/feedbase/internal/oauth"
	"github.com/feedbase/feedbase/internal/queue"
	"github.com/feedbase/feedbase/internal/repo"
	"github.com/feedbase/feedbase/internal/security"
)

// memStore is an in-memory stand-in for *repo.Store. It also implements the
// reconciler's user store, with the same conditional-update semantics the
// mongo layer provides.
type memStore struct {
	mu     sync.Mutex
	users  map[primitive.ObjectID]*domain.User
	boards map[primitive.ObjectID]*domain.Board
	tokens map[string]string // sha256(plain) -> email
}

func newMemStore() *memStore {
	return &memStore{
		users:  map[primitive.ObjectID]*domain.User{},
		boards: map[primitive.ObjectID]*domain.Board{},
		tokens: map[string]string{},
	}
}

func hashPlain(plain string) string {
	sum := sha256.Sum256([]byte(plain))
	return hex.EncodeToString(sum[:])
}

func (s *memStore) Ping(ctx context.Context) error { return nil }

func (s *memStore) FindOrCreateUser(ctx context.Context, email, name, provider string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	u := &domain.User{
		ID: primitive.NewObjectID(), Email: email, Name: name, Provider: provider,
		CreatedAt: time.Now(), UpdatedAt: time.Now(),
	}
	s.users[u.ID] = u
	cp := *u
	return &cp, nil
}

func (s *memStore) FindUserByID(ctx context.Context, id primitive.ObjectID) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, nil
}

func (s *memStore) GrantAccess(ctx context.Context, id primitive.ObjectID, ref string) (*domain.User, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, false, repo.ErrUserNotFound
	}
	if u.CustomerID != "" && u.CustomerID != ref {
		cp := *u
		return &cp, false, nil
	}
	granted := !u.HasAccess
	u.HasAccess = true
	u.CustomerID = ref
	cp := *u
	return &cp, granted, nil
}

func (s *memStore) CreateSigninToken(ctx context.Context, email, plain string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[hashPlain(plain)] = email
	return nil
}

func (s *memStore) ConsumeSigninToken(ctx context.Context, plain string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h := hashPlain(plain)
	email, ok := s.tokens[h]
	if !ok {
		return "", errors.New("token not found")
	}
	delete(s.tokens, h)
	return email, nil
}

func (s *memStore) CreateBoard(ctx context.Context, b *domain.Board) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b.ID = primitive.NewObjectID()
	b.CreatedAt = time.Now()
	b.UpdatedAt = b.CreatedAt
	cp := *b
	s.boards[b.ID] = &cp
	return nil
}

func (s *memStore) FindBoardByID(ctx context.Context, id primitive.ObjectID) (*domain.Board, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok := s.boards[id]; ok {
		cp := *b
		return &cp, nil
	}
	return nil, nil
}

func (s *memStore) ListBoardsByOwner(ctx context.Context, owner primitive.ObjectID, limit, skip int) ([]domain.Board, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Board
	for _, b := range s.boards {
		if b.OwnerID == owner {
			out = append(out, *b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *memStore) DeleteBoard(ctx context.Context, id primitive.ObjectID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.boards[id]; !ok {
		return false, nil
	}
	delete(s.boards, id)
	return true, nil
}

func (s *memStore) AddBoardRef(ctx context.Context, userID, boardID primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[userID]; ok {
		u.Boards = append(u.Boards, boardID)
	}
	return nil
}

func (s *memStore) RemoveBoardRef(ctx context.Context, userID, boardID primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return nil
	}
	keep := u.Boards[:0]
	for _, id := range u.Boards {
		if id != boardID {
			keep = append(keep, id)
		}
	}
	u.Boards = keep
	return nil
}

// stubGateway signs webhook payloads with a shared secret so tests can
// exercise both accepted and tampered deliveries.
type stubGateway struct {
	secret      string
	mu          sync.Mutex
	checkouts   []billing.CheckoutParams
	status      map[string]billing.CheckoutStatus // session id -> status
	retrieveErr error
}

func newStubGateway() *stubGateway {
	return &stubGateway{secret: "whsec_test", status: map[string]billing.CheckoutStatus{}}
}

func (g *stubGateway) sign(payload []byte) string {
	sum := sha256.Sum256(append(payload, []byte(g.secret)...))
	return hex.EncodeToString(sum[:])
}

func (g *stubGateway) CreateCheckoutSession(ctx context.Context, p billing.CheckoutParams) (*billing.CheckoutSession, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.checkouts = append(g.checkouts, p)
	return &billing.CheckoutSession{ID: "cs_test_1", URL: "https://checkout.example/cs_test_1"}, nil
}

func (g *stubGateway) CreatePortalSession(ctx context.Context, customerRef, returnURL string) (string, error) {
	return "https://portal.example/" + customerRef, nil
}

type wireEvent struct {
	Type        string `json:"type"`
	SessionID   string `json:"session_id"`
	UserRef     string `json:"user_ref"`
	CustomerRef string `json:"customer_ref"`
}

func (g *stubGateway) VerifyEvent(payload []byte, sigHeader string) (*billing.Event, error) {
	if sigHeader != g.sign(payload) {
		return nil, apperr.ErrSignatureInvalid
	}
	var w wireEvent
	if err := json.Unmarshal(payload, &w); err != nil {
		return nil, apperr.Wrap(apperr.ErrMalformedEvent, err)
	}
	ev := &billing.Event{Type: w.Type}
	if w.Type == billing.EventCheckoutCompleted {
		ev.Checkout = &billing.CheckoutCompleted{SessionID: w.SessionID, UserRef: w.UserRef, CustomerRef: w.CustomerRef}
	}
	return ev, nil
}

func (g *stubGateway) RetrieveCheckoutSession(ctx context.Context, id string) (*billing.CheckoutStatus, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.retrieveErr != nil {
		return nil, g.retrieveErr
	}
	st, ok := g.status[id]
	if !ok {
		return nil, apperr.Wrap(apperr.ErrGatewayUnavailable, errors.New("unknown session"))
	}
	cp := st
	return &cp, nil
}

type testEnv struct {
	T       *testing.T
	Store   *memStore
	Gateway *stubGateway
	Router  *gin.Engine
	Cfg     config.Config
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	cfg := config.Config{
		AppEnv:       "development",
		BaseURL:      "http://localhost:8080",
		JWTSecret:    "test_secret",
		SessionTTL:   time.Hour,
		MagicLinkTTL: 15 * time.Minute,
		Exchange:     "feedbase.events",
	}

	store := newMemStore()
	gw := newStubGateway()
	rec := billing.NewReconciler(store, gw, queue.NewNoop(), cfg.Exchange, zap.NewNop())

	h := api.NewHandler(store, gw, rec, queue.NewNoop(), &oauth.GoogleOAuth{}, nil, zap.NewNop(), cfg)

	gin.SetMode(gin.TestMode)
	return &testEnv{T: t, Store: store, Gateway: gw, Router: api.NewRouter(h), Cfg: cfg}
}

func (e *testEnv) do(method, path, body string, hdr map[string]string) *httptest.ResponseRecorder {
	e.T.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	e.Router.ServeHTTP(w, req)
	return w
}

// signIn runs the magic-link flow for email and returns a bearer header plus
// the created user's id.
func (e *testEnv) signIn(email string) (map[string]string, primitive.ObjectID) {
	e.T.Helper()

	w := e.do("POST", "/api/auth/magic-link", `{"email":"`+email+`"}`, nil)
	if w.Code != 200 {
		e.T.Fatalf("magic-link: %d %s", w.Code, w.Body.String())
	}
	var mr map[string]string
	_ = json.Unmarshal(w.Body.Bytes(), &mr)
	link := mr["magic_link_dev"]
	if link == "" {
		e.T.Fatal("no dev magic link in response")
	}
	tok := link[len(e.Cfg.BaseURL+"/api/auth/callback?token="):]

	w = e.do("GET", "/api/auth/callback?token="+tok, "", nil)
	if w.Code != 200 {
		e.T.Fatalf("callback: %d %s", w.Code, w.Body.String())
	}
	var sr struct {
		Access string `json:"access"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &sr); err != nil || sr.Access == "" {
		e.T.Fatalf("session resp: %v body=%s", err, w.Body.String())
	}

	claims, err := security.ParseAccess(e.Cfg.JWTSecret, sr.Access)
	if err != nil {
		e.T.Fatalf("parse access: %v", err)
	}
	uid, err := primitive.ObjectIDFromHex(claims.UID)
	if err != nil {
		e.T.Fatalf("uid claim: %v", err)
	}
	return map[string]string{"Authorization": "Bearer " + sr.Access}, uid
}

// webhook delivers a signed checkout.session.completed event.
func (e *testEnv) webhook(ev wireEvent) *httptest.ResponseRecorder {
	e.T.Helper()
	payload, _ := json.Marshal(ev)
	return e.do("POST", "/api/webhook/stripe", string(payload),
		map[string]string{"Stripe-Signature": e.Gateway.sign(payload)})
}
