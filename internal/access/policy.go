// Package access is the central authorization policy for boards. Pure
// decision functions over already-loaded entities; no I/O, no side effects.
package access

import (
	"github.com/feedbase/feedbase/internal/apperr"
	"github.com/feedbase/feedbase/internal/domain"
)

// CanCreateBoard allows board creation for premium users only.
func CanCreateBoard(u *domain.User) error {
	if !u.HasAccess {
		return apperr.ErrPremiumRequired
	}
	return nil
}

// CanDeleteBoard allows deletion for the premium owner only. The two denial
// reasons stay distinct so the API can tell the user which one applies.
func CanDeleteBoard(u *domain.User, b *domain.Board) error {
	if b == nil {
		return apperr.ErrNotFound
	}
	if !u.HasAccess {
		return apperr.ErrPremiumRequired
	}
	if b.OwnerID != u.ID {
		return apperr.ErrNotBoardOwner
	}
	return nil
}
