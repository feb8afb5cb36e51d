package handler

import (
	"time"

	"github.com/msomdec/accounts/internal/domain"
)

// UserDTO is the JSON representation of a user.
type UserDTO struct {
	ID          int64   `json:"id"`
	Email       string  `json:"email"`
	Username    string  `json:"username"`
	FirstName   string  `json:"firstName"`
	LastName    string  `json:"lastName"`
	DisplayName string  `json:"displayName"`
	IsMain      bool    `json:"isMain"`
	VerifiedAt  *string `json:"verifiedAt"`
	CreatedAt   string  `json:"createdAt"`
}

func toUserDTO(u *domain.User) UserDTO {
	dto := UserDTO{
		ID:          u.ID,
		Email:       u.Email,
		Username:    u.Username,
		FirstName:   u.FirstName,
		LastName:    u.LastName,
		DisplayName: u.DisplayName(),
		IsMain:      u.IsMain,
		CreatedAt:   u.CreatedAt.Format(time.RFC3339),
	}
	if u.EmailVerifiedAt != nil {
		v := u.EmailVerifiedAt.Format(time.RFC3339)
		dto.VerifiedAt = &v
	}
	return dto
}

// ProfileDTO is the JSON representation of a profile. File keys are
// exposed as URLs under /media/.
type ProfileDTO struct {
	Bio       string `json:"bio"`
	BioShort  string `json:"bioShort"`
	Website   string `json:"website"`
	LinkedIn  string `json:"linkedin"`
	AvatarURL string `json:"avatarUrl,omitempty"`
	CVURL     string `json:"cvUrl,omitempty"`
	UpdatedAt string `json:"updatedAt"`
}

func toProfileDTO(p *domain.Profile) ProfileDTO {
	return ProfileDTO{
		Bio:       p.Bio,
		BioShort:  p.BioShort,
		Website:   p.Website,
		LinkedIn:  p.LinkedIn,
		AvatarURL: mediaURL(p.AvatarKey),
		CVURL:     mediaURL(p.CVKey),
		UpdatedAt: p.UpdatedAt.Format(time.RFC3339),
	}
}

func mediaURL(key string) string {
	if key == "" {
		return ""
	}
	return "/media/" + key
}

// FormDTO describes a form the client should render and post back.
type FormDTO struct {
	Form    string            `json:"form"`
	Action  string            `json:"action"`
	Fields  []string          `json:"fields"`
	Initial map[string]string `json:"initial,omitempty"`
}
