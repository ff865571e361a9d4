package repo_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/mongodb"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/feedbase/feedbase/internal/domain"
	"github.com/feedbase/feedbase/internal/repo"
)

type repoEnv struct {
	Ctx   context.Context
	Mongo *mongodb.MongoDBContainer
	Store *repo.Store
}

func newRepoEnv(t *testing.T) *repoEnv {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container-backed test in short mode")
	}
	ctx := context.Background()

	mc, err := mongodb.RunContainer(ctx,
		testcontainers.WithImage("mongo:6"),
	)
	if err != nil {
		t.Fatalf("mongo container: %v", err)
	}

	uri, err := mc.ConnectionString(ctx)
	if err != nil {
		t.Fatalf("mongo uri: %v", err)
	}

	store, err := repo.NewStore(ctx, uri, "feedbase_test")
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	if err := store.EnsureIndexes(ctx); err != nil {
		t.Fatal(err)
	}
	return &repoEnv{Ctx: ctx, Mongo: mc, Store: store}
}

func (e *repoEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close(e.Ctx)
	}
	if e.Mongo != nil {
		_ = e.Mongo.Terminate(e.Ctx)
	}
}

func Test_FindOrCreateUser_NoDuplicates(t *testing.T) {
	env := newRepoEnv(t)
	defer env.Close()

	u1, err := env.Store.FindOrCreateUser(env.Ctx, "a@example.com", "A", "email")
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	u2, err := env.Store.FindOrCreateUser(env.Ctx, "a@example.com", "ignored", "google")
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	if u1.ID != u2.ID {
		t.Fatalf("same email produced two users: %s vs %s", u1.ID.Hex(), u2.ID.Hex())
	}
	if u2.Name != "A" || u2.Provider != "email" {
		t.Fatalf("second call overwrote the original record: %+v", u2)
	}
}

func Test_CreateUser_UniqueEmail(t *testing.T) {
	env := newRepoEnv(t)
	defer env.Close()

	u := &domain.User{Email: "dup@example.com", Provider: "email"}
	if err := env.Store.CreateUser(env.Ctx, u); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := env.Store.CreateUser(env.Ctx, &domain.User{Email: "dup@example.com"}); err != repo.ErrEmailTaken {
		t.Fatalf("duplicate insert: %v, want ErrEmailTaken", err)
	}

	got, err := env.Store.FindUserByEmail(env.Ctx, "dup@example.com")
	if err != nil || got == nil || got.ID != u.ID {
		t.Fatalf("find by email: %+v err=%v", got, err)
	}
	if got, _ := env.Store.FindUserByEmail(env.Ctx, "nobody@example.com"); got != nil {
		t.Fatalf("unknown email returned %+v", got)
	}
}

func Test_GrantAccess_TransitionOnceAndConverge(t *testing.T) {
	env := newRepoEnv(t)
	defer env.Close()

	u, err := env.Store.FindOrCreateUser(env.Ctx, "g@example.com", "", "email")
	if err != nil {
		t.Fatal(err)
	}

	got, granted, err := env.Store.GrantAccess(env.Ctx, u.ID, "cus_1")
	if err != nil || !granted {
		t.Fatalf("first grant: granted=%v err=%v", granted, err)
	}
	if !got.HasAccess || got.CustomerID != "cus_1" {
		t.Fatalf("state: %+v", got)
	}

	// same reference again: converged, no transition
	got, granted, err = env.Store.GrantAccess(env.Ctx, u.ID, "cus_1")
	if err != nil || granted {
		t.Fatalf("repeat grant: granted=%v err=%v", granted, err)
	}

	// conflicting reference: stored one wins
	got, granted, err = env.Store.GrantAccess(env.Ctx, u.ID, "cus_other")
	if err != nil || granted {
		t.Fatalf("conflicting grant: granted=%v err=%v", granted, err)
	}
	if got.CustomerID != "cus_1" {
		t.Fatalf("stored reference replaced: %q", got.CustomerID)
	}

	// unknown user
	if _, _, err := env.Store.GrantAccess(env.Ctx, primitive.NewObjectID(), "cus_x"); err != repo.ErrUserNotFound {
		t.Fatalf("unknown user: %v", err)
	}
}

func Test_GrantAccess_ConcurrentExactlyOneTransition(t *testing.T) {
	env := newRepoEnv(t)
	defer env.Close()

	u, err := env.Store.FindOrCreateUser(env.Ctx, "race@example.com", "", "email")
	if err != nil {
		t.Fatal(err)
	}

	const n = 8
	var wg sync.WaitGroup
	grants := make(chan bool, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, granted, err := env.Store.GrantAccess(env.Ctx, u.ID, "cus_race")
			if err != nil {
				t.Errorf("grant: %v", err)
				return
			}
			grants <- granted
		}()
	}
	wg.Wait()
	close(grants)

	transitions := 0
	for g := range grants {
		if g {
			transitions++
		}
	}
	if transitions != 1 {
		t.Fatalf("transitions=%d, want exactly 1", transitions)
	}

	got, err := env.Store.FindUserByID(env.Ctx, u.ID)
	if err != nil || !got.HasAccess || got.CustomerID != "cus_race" {
		t.Fatalf("final state: %+v err=%v", got, err)
	}
}

func Test_SigninToken_ConsumeOnce(t *testing.T) {
	env := newRepoEnv(t)
	defer env.Close()

	plain, err := repo.NewToken()
	if err != nil {
		t.Fatal(err)
	}
	if err := env.Store.CreateSigninToken(env.Ctx, "t@example.com", plain, time.Minute); err != nil {
		t.Fatal(err)
	}

	email, err := env.Store.ConsumeSigninToken(env.Ctx, plain)
	if err != nil || email != "t@example.com" {
		t.Fatalf("consume: email=%q err=%v", email, err)
	}
	if _, err := env.Store.ConsumeSigninToken(env.Ctx, plain); err != mongo.ErrNoDocuments {
		t.Fatalf("second consume: %v, want ErrNoDocuments", err)
	}
	if _, err := env.Store.ConsumeSigninToken(env.Ctx, "never-issued"); err != mongo.ErrNoDocuments {
		t.Fatalf("unknown token: %v, want ErrNoDocuments", err)
	}
}

func Test_SigninToken_Expired(t *testing.T) {
	env := newRepoEnv(t)
	defer env.Close()

	plain, _ := repo.NewToken()
	if err := env.Store.CreateSigninToken(env.Ctx, "x@example.com", plain, -time.Minute); err != nil {
		t.Fatal(err)
	}
	if _, err := env.Store.ConsumeSigninToken(env.Ctx, plain); err != mongo.ErrNoDocuments {
		t.Fatalf("expired token consumed: %v", err)
	}
}

func Test_Board_CRUDAndRefs(t *testing.T) {
	env := newRepoEnv(t)
	defer env.Close()

	u, err := env.Store.FindOrCreateUser(env.Ctx, "b@example.com", "", "email")
	if err != nil {
		t.Fatal(err)
	}

	b := &domain.Board{OwnerID: u.ID, Name: "Launch feedback", Category: domain.DefaultCategory}
	if err := env.Store.CreateBoard(env.Ctx, b); err != nil {
		t.Fatal(err)
	}
	if b.ID.IsZero() {
		t.Fatal("insert did not set the board id")
	}
	if err := env.Store.AddBoardRef(env.Ctx, u.ID, b.ID); err != nil {
		t.Fatal(err)
	}

	got, err := env.Store.FindBoardByID(env.Ctx, b.ID)
	if err != nil || got == nil || got.Name != "Launch feedback" {
		t.Fatalf("find: %+v err=%v", got, err)
	}

	list, err := env.Store.ListBoardsByOwner(env.Ctx, u.ID, 0, 0)
	if err != nil || len(list) != 1 {
		t.Fatalf("list: n=%d err=%v", len(list), err)
	}

	fresh, _ := env.Store.FindUserByID(env.Ctx, u.ID)
	if len(fresh.Boards) != 1 || fresh.Boards[0] != b.ID {
		t.Fatalf("refs after create: %v", fresh.Boards)
	}

	deleted, err := env.Store.DeleteBoard(env.Ctx, b.ID)
	if err != nil || !deleted {
		t.Fatalf("delete: deleted=%v err=%v", deleted, err)
	}
	if err := env.Store.RemoveBoardRef(env.Ctx, u.ID, b.ID); err != nil {
		t.Fatal(err)
	}
	if deleted, _ := env.Store.DeleteBoard(env.Ctx, b.ID); deleted {
		t.Fatal("delete reported success twice")
	}

	fresh, _ = env.Store.FindUserByID(env.Ctx, u.ID)
	if len(fresh.Boards) != 0 {
		t.Fatalf("refs after delete: %v", fresh.Boards)
	}
}
