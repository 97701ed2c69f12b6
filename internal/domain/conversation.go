package domain

import "time"

const (
	ConversationTypeDM    = "dm"
	ConversationTypeGroup = "group"
)

// Participant roles. DM participants carry RoleMember but the role has no
// meaning there; exactly one participant of a group holds RoleOwner.
const (
	RoleOwner  = "owner"
	RoleAdmin  = "admin"
	RoleMember = "member"
)

type Conversation struct {
	ID             int       `json:"id" db:"id"`
	Type           string    `json:"type" db:"type"`
	Name           *string   `json:"name,omitempty" db:"name"`
	Description    *string   `json:"description,omitempty" db:"description"`
	AvatarURL      *string   `json:"avatar_url,omitempty" db:"avatar_url"`
	InviteCode     *string   `json:"invite_code,omitempty" db:"invite_code"`
	CreatorID      *int      `json:"creator_id,omitempty" db:"creator_id"`
	LocationLat    *float64  `json:"-" db:"location_lat"`
	LocationLng    *float64  `json:"-" db:"location_lng"`
	DiscoveryM     *int      `json:"discovery_radius_m,omitempty" db:"discovery_radius_m"`
	MaxMembers     int       `json:"max_members" db:"max_members"`
	LastActivityAt time.Time `json:"last_activity_at" db:"last_activity_at"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`
}

func (c *Conversation) IsGroup() bool {
	return c.Type == ConversationTypeGroup
}

// Discoverable reports whether the group opted into nearby listing.
func (c *Conversation) Discoverable() bool {
	return c.IsGroup() && c.LocationLat != nil && c.LocationLng != nil && c.DiscoveryM != nil
}

type ConversationParticipant struct {
	ConversationID int       `json:"conversation_id" db:"conversation_id"`
	UserID         int       `json:"user_id" db:"user_id"`
	Role           string    `json:"role" db:"role"`
	ShareLocation  bool      `json:"share_location" db:"share_location"`
	JoinedAt       time.Time `json:"joined_at" db:"joined_at"`
}

func (p *ConversationParticipant) CanManage() bool {
	return p.Role == RoleOwner || p.Role == RoleAdmin
}

// Topic is a named sub-channel within a group conversation.
type Topic struct {
	ID             int       `json:"id" db:"id"`
	ConversationID int       `json:"conversation_id" db:"conversation_id"`
	Name           string    `json:"name" db:"name"`
	Pinned         bool      `json:"pinned" db:"pinned"`
	Closed         bool      `json:"closed" db:"closed"`
	SortOrder      int       `json:"sort_order" db:"sort_order"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}
