package domain

import "time"

// Block rows are directional, but visibility effects are symmetric: if
// either direction exists, neither user surfaces to the other.
type Block struct {
	BlockerID int       `json:"blocker_id" db:"blocker_id"`
	BlockedID int       `json:"blocked_id" db:"blocked_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
