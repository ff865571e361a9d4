package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Board categories. DefaultCategory applies when the client sends none.
const (
	CategoryFeedback    = "feedback"
	CategoryFeature     = "feature"
	CategoryBug         = "bug"
	CategoryImprovement = "improvement"
	CategoryQuestion    = "question"

	DefaultCategory = CategoryFeedback
)

var categories = map[string]bool{
	CategoryFeedback:    true,
	CategoryFeature:     true,
	CategoryBug:         true,
	CategoryImprovement: true,
	CategoryQuestion:    true,
}

func ValidCategory(c string) bool { return categories[c] }

type Board struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	OwnerID     primitive.ObjectID `bson:"owner_id" json:"owner_id"`
	Name        string             `bson:"name" json:"name"`
	Description string             `bson:"description,omitempty" json:"description,omitempty"`
	Category    string             `bson:"category" json:"category"`
	CreatedAt   time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt   time.Time          `bson:"updated_at" json:"updated_at"`
}

// PublicBoard is the unauthenticated read projection of a Board. It must not
// leak anything that is owner-only; in particular no owner reference.
type PublicBoard struct {
	ID          primitive.ObjectID `json:"id"`
	Name        string             `json:"name"`
	Description string             `json:"description,omitempty"`
	Category    string             `json:"category"`
	CreatedAt   time.Time          `json:"created_at"`
}

func (b *Board) Public() PublicBoard {
	return PublicBoard{
		ID:          b.ID,
		Name:        b.Name,
		Description: b.Description,
		Category:    b.Category,
		CreatedAt:   b.CreatedAt,
	}
}
