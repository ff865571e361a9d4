package domain

import (
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type User struct {
	ID    primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Email string             `bson:"email"         json:"email"`
	Name  string             `bson:"name"          json:"name"`
	// Provider records how the user first signed in: "email" | "google".
	Provider string `bson:"provider" json:"provider"`

	// HasAccess is the premium entitlement. It is mutated only by the billing
	// reconciler; everything else treats it as read-only.
	HasAccess bool `bson:"has_access" json:"has_access"`
	// CustomerID is the payment processor's customer reference. Empty until
	// the first successful payment.
	CustomerID string `bson:"customer_id,omitempty" json:"-"`

	// Boards holds references to the user's boards, in creation order.
	Boards []primitive.ObjectID `bson:"boards" json:"boards"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// PlaceholderCustomerPrefix marks customer references generated locally when
// the processor did not return one. Such a reference cannot open the billing
// portal; the portal handler rejects it the same way as an absent one.
const PlaceholderCustomerPrefix = "local_"

// HasRealCustomerRef reports whether the user has a processor-issued customer
// reference usable for portal access.
func (u *User) HasRealCustomerRef() bool {
	return u.CustomerID != "" && !strings.HasPrefix(u.CustomerID, PlaceholderCustomerPrefix)
}
