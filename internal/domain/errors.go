package domain

import "errors"

// Sentinel errors form the stable taxonomy the HTTP layer maps onto status
// codes. Handlers branch on these with errors.Is; anything else is a 500.
var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrForbidden       = errors.New("forbidden")
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrInvalidInput    = errors.New("invalid input")
	ErrTransient       = errors.New("transient failure")
)

var (
	ErrProfileNotFound      = errors.New("profile not found")
	ErrWaveNotFound         = errors.New("wave not found")
	ErrWaveNotPending       = errors.New("wave is not pending")
	ErrWaveAlreadyExists    = errors.New("an active wave already exists for this pair")
	ErrConversationNotFound = errors.New("conversation not found")
	ErrMessageNotFound      = errors.New("message not found")
	ErrNotParticipant       = errors.New("not a conversation participant")
	ErrGroupFull            = errors.New("group is full")
	ErrAlreadyMember        = errors.New("already a member")
	ErrNotGroupAdmin        = errors.New("requires admin or owner role")
	ErrOwnerMustTransfer    = errors.New("owner must transfer ownership before leaving")
	ErrInvalidInviteCode    = errors.New("invalid invite code")
	ErrBlocked              = errors.New("blocked")
	ErrModerationRejected   = errors.New("content rejected by moderation")
)

// Code returns the stable machine-readable code clients branch on.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrUnauthenticated):
		return "unauthenticated"
	case errors.Is(err, ErrWaveAlreadyExists):
		return "wave_exists"
	case errors.Is(err, ErrWaveNotPending):
		return "wave_not_active"
	case errors.Is(err, ErrGroupFull):
		return "group_full"
	case errors.Is(err, ErrAlreadyMember):
		return "already_member"
	case errors.Is(err, ErrInvalidInviteCode):
		return "invalid_invite_code"
	case errors.Is(err, ErrOwnerMustTransfer):
		return "owner_must_transfer"
	case errors.Is(err, ErrModerationRejected):
		return "moderation_rejected"
	case errors.Is(err, ErrBlocked), errors.Is(err, ErrNotParticipant),
		errors.Is(err, ErrNotGroupAdmin), errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrProfileNotFound),
		errors.Is(err, ErrWaveNotFound), errors.Is(err, ErrConversationNotFound),
		errors.Is(err, ErrMessageNotFound):
		return "not_found"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, ErrTransient):
		return "transient"
	default:
		return "internal"
	}
}
