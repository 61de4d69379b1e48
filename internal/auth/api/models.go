package authapi

import "time"

type loginRequest struct {
	Username   string `json:"username,omitempty"`
	Email      string `json:"email,omitempty"`
	Password   string `json:"password"`
	RememberMe bool   `json:"remember_me,omitempty"`
}

type registerRequest struct {
	Username   string `json:"username"`
	Email      string `json:"email,omitempty"`
	Password   string `json:"password"`
	RememberMe bool   `json:"remember_me,omitempty"`
}

type botLoginRequest struct {
	AccessToken string `json:"access_token"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token,omitempty"`
}

type userResponse struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email,omitempty"`
	AvatarURL string    `json:"avatar_url,omitempty"`
	IsBot     bool      `json:"is_bot,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// authResponse is shared by login, register, bot-login and refresh: the
// access token rides in-body for clients that keep it in memory instead of
// reading the cookie.
type authResponse struct {
	Token string       `json:"token"`
	User  userResponse `json:"user"`
}

type meResponse struct {
	User userResponse `json:"user"`
}

func toUserResponse(u User) userResponse {
	return userResponse{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		AvatarURL: u.AvatarURL,
		IsBot:     u.IsBot,
		CreatedAt: u.CreatedAt,
	}
}
