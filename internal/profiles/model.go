package profiles

import (
	"time"

	"github.com/google/uuid"

	"github.com/aurapalm/aura/internal/palm"
)

// Profile is the account row keyed by the identity-service user id. Rows are
// created lazily on first write.
type Profile struct {
	ID        uuid.UUID  `json:"id"`
	Email     *string    `json:"email"`
	FullName  *string    `json:"fullName"`
	HasPaid   bool       `json:"hasPaid"`
	PaidAt    *time.Time `json:"paidAt,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

type AstroProfile struct {
	UserID     uuid.UUID `json:"userId"`
	BirthDate  string    `json:"birthDate"`
	BirthTime  *string   `json:"birthTime"`
	BirthPlace string    `json:"birthPlace"`
	Gender     string    `json:"gender"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

type UpdateRequest struct {
	FullName   *string `json:"fullName" validate:"omitempty,max=200"`
	BirthDate  string  `json:"birthDate" validate:"required,datetime=2006-01-02"`
	BirthTime  *string `json:"birthTime" validate:"omitempty,datetime=15:04"`
	BirthPlace string  `json:"birthPlace" validate:"required,max=200"`
	Gender     string  `json:"gender" validate:"required,oneof=male female other"`
}

type ProfileResponse struct {
	Profile      *Profile      `json:"profile"`
	AstroProfile *AstroProfile `json:"astroProfile"`
}

type StatusResponse struct {
	HasPaid         bool        `json:"hasPaid"`
	HasAstroProfile bool        `json:"hasAstroProfile"`
	PalmStatus      palm.Status `json:"palmStatus"`
}
