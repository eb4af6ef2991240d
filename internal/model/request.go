package model

type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type LoginResponse struct {
	AccessToken string      `json:"access_token"`
	User        UserProfile `json:"user"`
	Session     Session     `json:"session"`
}

type LogoutResponse struct {
	Session Session `json:"session"`
}
