package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// ConnectionAnalysis is a directed cached AI judgment: how FromUser's view
// of ToUser reads. Two rows exist per unordered pair because the prose is
// perspective-specific; the numeric score is symmetric.
type ConnectionAnalysis struct {
	FromUserID  int       `json:"from_user_id" db:"from_user_id"`
	ToUserID    int       `json:"to_user_id" db:"to_user_id"`
	Score       int       `json:"score" db:"score"`
	Snippet     string    `json:"snippet" db:"snippet"`
	Description string    `json:"description" db:"description"`
	FromHash    string    `json:"-" db:"from_hash"`
	ToHash      string    `json:"-" db:"to_hash"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// Fresh reports whether the stored hashes still match both profiles'
// current free text. A stale analysis must be recomputed, not reused.
func (a *ConnectionAnalysis) Fresh(fromHash, toHash string) bool {
	return a.FromHash == fromHash && a.ToHash == toHash
}

// ContentHash hashes the free text an analysis was computed from.
func ContentHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
