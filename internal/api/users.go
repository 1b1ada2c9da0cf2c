package api

import (
	"net/http"
	"time"

	"echobox/internal/account"
)

type UserHandler struct {
	accounts *account.Service
}

func NewUserHandler(accounts *account.Service) *UserHandler {
	return &UserHandler{accounts: accounts}
}

type ProfileResponse struct {
	UID             string    `json:"uid"`
	Username        string    `json:"username"`
	Email           string    `json:"email"`
	ProfilePhotoURL string    `json:"profilePhotoUrl,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
}

// GET /api/v1/users/profile
func (h *UserHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	userID := GetUserID(r)
	if userID == "" {
		unauthorized(w, "User not found in context")
		return
	}

	user, err := h.accounts.Profile(r.Context(), userID)
	if err != nil {
		writeAppError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, ProfileResponse{
		UID:             user.UID,
		Username:        user.Username,
		Email:           user.Email,
		ProfilePhotoURL: user.GetAvatarURL(),
		CreatedAt:       user.CreatedAt,
	})
}
