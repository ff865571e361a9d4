package repo

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"gopkg.in/DataDog/dd-trace-go.v1/ddtrace/tracer"
)

// SigninToken is a one-time magic-link token. Only the SHA-256 of the token
// is stored; the plaintext goes out in the sign-in mail and nowhere else.
type SigninToken struct {
	ID        interface{} `bson:"_id,omitempty"`
	Email     string      `bson:"email"`
	TokenHash string      `bson:"token_hash"`
	Purpose   string      `bson:"purpose"`    // "signin"
	ExpiresAt time.Time   `bson:"expires_at"` // TTL index
	UsedAt    *time.Time  `bson:"used_at,omitempty"`
	CreatedAt time.Time   `bson:"created_at"`
}

const purposeSignin = "signin"

// NewToken returns a fresh high-entropy opaque token.
func NewToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func hashToken(plain string) string {
	sum := sha256.Sum256([]byte(plain))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

func (s *Store) CreateSigninToken(ctx context.Context, email, plain string, ttl time.Duration) error {
	sp, ctx := tracer.StartSpanFromContext(ctx, "mongo.email_tokens.insert",
		tracer.Tag("purpose", purposeSignin),
	)
	defer sp.Finish()

	now := time.Now().UTC()
	_, err := s.colTokens.InsertOne(ctx, SigninToken{
		Email:     email,
		TokenHash: hashToken(plain),
		Purpose:   purposeSignin,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	})
	if err != nil {
		sp.SetTag("error", err)
	}
	return err
}

// ConsumeSigninToken atomically marks the token used and returns the email it
// was issued for. A token can be consumed exactly once; expired or already
// used tokens return mongo.ErrNoDocuments.
func (s *Store) ConsumeSigninToken(ctx context.Context, plain string) (string, error) {
	sp, ctx := tracer.StartSpanFromContext(ctx, "mongo.email_tokens.consume",
		tracer.Tag("purpose", purposeSignin),
	)
	defer sp.Finish()

	now := time.Now().UTC()
	res := s.colTokens.FindOneAndUpdate(
		ctx,
		bson.M{
			"token_hash": hashToken(plain),
			"purpose":    purposeSignin,
			"used_at":    bson.M{"$exists": false},
			"expires_at": bson.M{"$gt": now},
		},
		bson.M{"$set": bson.M{"used_at": now}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	)
	var t SigninToken
	if err := res.Decode(&t); err != nil {
		if err != mongo.ErrNoDocuments {
			sp.SetTag("error", err)
		}
		return "", err
	}
	return t.Email, nil
}
