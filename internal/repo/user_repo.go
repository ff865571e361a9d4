package repo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"gopkg.in/DataDog/dd-trace-go.v1/ddtrace/tracer"

	"github.com/feedbase/feedbase/internal/domain"
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrEmailTaken   = errors.New("email already registered")
)

func (s *Store) CreateUser(ctx context.Context, u *domain.User) error {
	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now
	if u.Boards == nil {
		u.Boards = []primitive.ObjectID{}
	}
	res, err := s.colUsers.InsertOne(ctx, u)
	if IsDup(err) {
		return ErrEmailTaken
	}
	if err != nil {
		return err
	}
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		u.ID = oid
	}
	return nil
}

// FindOrCreateUser returns the user for email, creating it on first
// successful sign-in. The upsert keeps concurrent sign-ins from racing into
// duplicate users; the unique email index backs it up.
func (s *Store) FindOrCreateUser(ctx context.Context, email, name, provider string) (*domain.User, error) {
	sp, ctx := tracer.StartSpanFromContext(ctx, "mongo.users.find_or_create",
		tracer.Tag("provider", provider),
	)
	defer sp.Finish()

	now := time.Now().UTC()
	res := s.colUsers.FindOneAndUpdate(
		ctx,
		bson.M{"email": email},
		bson.M{"$setOnInsert": bson.M{
			"email":      email,
			"name":       name,
			"provider":   provider,
			"has_access": false,
			"boards":     []primitive.ObjectID{},
			"created_at": now,
			"updated_at": now,
		}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	)
	var u domain.User
	if err := res.Decode(&u); err != nil {
		sp.SetTag("error", err)
		return nil, err
	}
	return &u, nil
}

func (s *Store) FindUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	var u domain.User
	err := s.colUsers.FindOne(ctx, bson.M{"email": email}).Decode(&u)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	return &u, err
}

func (s *Store) FindUserByID(ctx context.Context, id primitive.ObjectID) (*domain.User, error) {
	var u domain.User
	err := s.colUsers.FindOne(ctx, bson.M{"_id": id}).Decode(&u)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	return &u, err
}

// GrantAccess sets has_access=true and records the customer reference in one
// conditional update: it matches only while customer_id is unset or already
// equal to ref. That makes the webhook and the fallback reconciliation
// convergent in any interleaving without read-modify-write.
//
// Returns the resulting user state and whether this call performed the
// false→true transition. If a different customer reference is already
// recorded, the stored one wins and granted is false.
func (s *Store) GrantAccess(ctx context.Context, id primitive.ObjectID, ref string) (u *domain.User, granted bool, err error) {
	sp, ctx := tracer.StartSpanFromContext(ctx, "mongo.users.grant_access",
		tracer.Tag("user_id", id.Hex()),
	)
	defer sp.Finish()

	res := s.colUsers.FindOneAndUpdate(
		ctx,
		bson.M{
			"_id": id,
			"$or": bson.A{
				bson.M{"customer_id": bson.M{"$exists": false}},
				bson.M{"customer_id": ""},
				bson.M{"customer_id": ref},
			},
		},
		bson.M{"$set": bson.M{
			"has_access":  true,
			"customer_id": ref,
			"updated_at":  time.Now().UTC(),
		}},
		options.FindOneAndUpdate().SetReturnDocument(options.Before),
	)

	var before domain.User
	decodeErr := res.Decode(&before)
	if decodeErr == nil {
		after := before
		after.HasAccess = true
		after.CustomerID = ref
		return &after, !before.HasAccess, nil
	}
	if decodeErr != mongo.ErrNoDocuments {
		sp.SetTag("error", decodeErr)
		return nil, false, decodeErr
	}

	// No match: either the user does not exist, or another path already
	// recorded a different customer reference. Disambiguate.
	existing, err := s.FindUserByID(ctx, id)
	if err != nil {
		sp.SetTag("error", err)
		return nil, false, err
	}
	if existing == nil {
		return nil, false, ErrUserNotFound
	}
	return existing, false, nil
}

// AddBoardRef appends the board to the user's reference collection.
func (s *Store) AddBoardRef(ctx context.Context, userID, boardID primitive.ObjectID) error {
	_, err := s.colUsers.UpdateOne(ctx,
		bson.M{"_id": userID},
		bson.M{
			"$push": bson.M{"boards": boardID},
			"$set":  bson.M{"updated_at": time.Now().UTC()},
		},
	)
	return err
}

// RemoveBoardRef drops the board from the user's reference collection.
func (s *Store) RemoveBoardRef(ctx context.Context, userID, boardID primitive.ObjectID) error {
	_, err := s.colUsers.UpdateOne(ctx,
		bson.M{"_id": userID},
		bson.M{
			"$pull": bson.M{"boards": boardID},
			"$set":  bson.M{"updated_at": time.Now().UTC()},
		},
	)
	return err
}
