package models

import "time"

// User is a verified account. Unverified signups never reach the store.
type User struct {
	ID           string     `json:"id"`
	UID          string     `json:"uid"`
	Email        string     `json:"email,omitempty"`
	Username     string     `json:"username"`
	PasswordHash string     `json:"-"`
	AvatarURL    *string    `json:"profilePhotoUrl,omitempty"`
	IsVerified   bool       `json:"isVerified"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    *time.Time `json:"updatedAt,omitempty"`
}

func (u *User) GetAvatarURL() string {
	if u.AvatarURL != nil {
		return *u.AvatarURL
	}
	return ""
}

// UserSummary is the public projection embedded in echo payloads and auth
// responses.
type UserSummary struct {
	UID             string `json:"uid"`
	Username        string `json:"username"`
	Email           string `json:"email,omitempty"`
	ProfilePhotoURL string `json:"profilePhotoUrl,omitempty"`
}

func (u *User) Summary() UserSummary {
	return UserSummary{
		UID:             u.UID,
		Username:        u.Username,
		Email:           u.Email,
		ProfilePhotoURL: u.GetAvatarURL(),
	}
}
