package domain

import "time"

// Wave statuses. pending is the only non-terminal state.
const (
	WaveStatusPending  = "pending"
	WaveStatusAccepted = "accepted"
	WaveStatusDeclined = "declined"
)

// Wave is a directional, single-use connection request. Acceptance by the
// recipient is what creates the DM conversation between the pair.
type Wave struct {
	ID         int       `json:"id" db:"id"`
	FromUserID int       `json:"from_user_id" db:"from_user_id"`
	ToUserID   int       `json:"to_user_id" db:"to_user_id"`
	Message    *string   `json:"message,omitempty" db:"message"`
	Status     string    `json:"status" db:"status"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

func (w *Wave) IsPending() bool {
	return w.Status == WaveStatusPending
}
