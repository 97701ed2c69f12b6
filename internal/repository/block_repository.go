package repository

import "context"

type BlockRepository interface {
	Create(ctx context.Context, blockerID, blockedID int) error
	Delete(ctx context.Context, blockerID, blockedID int) error
	// ExistsBetween reports whether either direction of the pair is
	// blocked; visibility effects are symmetric.
	ExistsBetween(ctx context.Context, userA, userB int) (bool, error)
	// BlockedSet returns every user id blocked by or blocking userID.
	BlockedSet(ctx context.Context, userID int) (map[int]struct{}, error)
}
