package handlers

import (
	"time"

	"hybridhouse/internal/models"
	"hybridhouse/internal/ranking"
	"hybridhouse/internal/store"
)

// IdentityDTO is the caller's own profile with a derived age.
type IdentityDTO struct {
	models.Identity
	Age *int `json:"age"`
}

// PublicIdentityDTO is what other visitors may see of an athlete.
type PublicIdentityDTO struct {
	UserID      string  `json:"user_id"`
	DisplayName string  `json:"display_name"`
	Avatar      *string `json:"avatar,omitempty"`
	Age         *int    `json:"age"`
	Gender      *string `json:"gender"`
	Country     *string `json:"country"`
	CountryFlag string  `json:"country_flag,omitempty"`
	Location    *string `json:"location,omitempty"`
	CreatedAt   string  `json:"created_at"`
}

func toIdentityDTO(id models.Identity, now time.Time) IdentityDTO {
	return IdentityDTO{Identity: id, Age: ranking.Age(derefString(id.DateOfBirth), now)}
}

func toPublicIdentityDTO(id models.Identity, now time.Time) PublicIdentityDTO {
	// Neither the email nor the display name seeded from it is public.
	named := id
	if id.Email != nil && id.DisplayName != nil && *id.DisplayName == store.EmailLocalPart(*id.Email) {
		named.DisplayName = nil
	}
	named.Email = nil
	dto := PublicIdentityDTO{
		UserID:      id.UserID,
		DisplayName: ranking.DisplayName(&named, nil, id.UserID),
		Avatar:      id.Avatar,
		Age:         ranking.Age(derefString(id.DateOfBirth), now),
		Gender:      id.Gender,
		Country:     id.Country,
		Location:    id.Location,
		CreatedAt:   id.CreatedAt.Format(time.RFC3339),
	}
	if id.Country != nil {
		dto.CountryFlag = ranking.CountryFlag(*id.Country)
	}
	return dto
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
