package domain

import "time"

// Visibility modes control where a profile may surface.
const (
	VisibilityVisible     = "visible"
	VisibilityMatchesOnly = "matches_only"
	VisibilityHidden      = "hidden"
)

type Profile struct {
	ID                int        `json:"id" db:"id"`
	UserID            int        `json:"user_id" db:"user_id"`
	DisplayName       string     `json:"display_name" db:"display_name"`
	Bio               *string    `json:"bio" db:"bio"`
	LookingFor        *string    `json:"looking_for" db:"looking_for"`
	Summary           *string    `json:"summary,omitempty" db:"summary"`
	Interests         []string   `json:"interests" db:"interests"`
	Embedding         []float64  `json:"-" db:"embedding"`
	LocationLat       *float64   `json:"-" db:"location_lat"`
	LocationLng       *float64   `json:"-" db:"location_lng"`
	LocationUpdatedAt *time.Time `json:"location_updated_at,omitempty" db:"location_updated_at"`
	Visibility        string     `json:"visibility" db:"visibility"`
	CreatedAt         time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at" db:"updated_at"`
}

// HasLocation reports whether this profile can appear in proximity results.
func (p *Profile) HasLocation() bool {
	return p.LocationLat != nil && p.LocationLng != nil
}

// FreeText returns the bio + lookingFor text the analysis content hash is
// computed over.
func (p *Profile) FreeText() string {
	var bio, looking string
	if p.Bio != nil {
		bio = *p.Bio
	}
	if p.LookingFor != nil {
		looking = *p.LookingFor
	}
	return bio + "\n" + looking
}
