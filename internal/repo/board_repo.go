package repo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"gopkg.in/DataDog/dd-trace-go.v1/ddtrace/tracer"

	"github.com/feedbase/feedbase/internal/domain"
)

func (s *Store) CreateBoard(ctx context.Context, b *domain.Board) error {
	sp, ctx := tracer.StartSpanFromContext(ctx, "mongo.boards.insert",
		tracer.Tag("owner_id", b.OwnerID.Hex()),
	)
	defer sp.Finish()

	now := time.Now().UTC()
	b.CreatedAt = now
	b.UpdatedAt = now
	res, err := s.colBoards.InsertOne(ctx, b)
	if err != nil {
		sp.SetTag("error", err)
		return err
	}
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		b.ID = oid
	}
	return nil
}

func (s *Store) FindBoardByID(ctx context.Context, id primitive.ObjectID) (*domain.Board, error) {
	var b domain.Board
	err := s.colBoards.FindOne(ctx, bson.M{"_id": id}).Decode(&b)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	return &b, err
}

func (s *Store) ListBoardsByOwner(ctx context.Context, owner primitive.ObjectID, limit, skip int) ([]domain.Board, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if skip < 0 {
		skip = 0
	}
	cur, err := s.colBoards.Find(ctx,
		bson.M{"owner_id": owner},
		options.Find().SetLimit(int64(limit)).SetSkip(int64(skip)).
			SetSort(bson.D{{Key: "created_at", Value: -1}}),
	)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []domain.Board
	for cur.Next(ctx) {
		var b domain.Board
		if err := cur.Decode(&b); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, cur.Err()
}

// DeleteBoard removes the board by id. Ownership is checked by the access
// policy before this is called; the filter does not re-check it.
func (s *Store) DeleteBoard(ctx context.Context, id primitive.ObjectID) (bool, error) {
	sp, ctx := tracer.StartSpanFromContext(ctx, "mongo.boards.delete",
		tracer.Tag("board_id", id.Hex()),
	)
	defer sp.Finish()

	res, err := s.colBoards.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		sp.SetTag("error", err)
		return false, err
	}
	return res.DeletedCount == 1, nil
}
