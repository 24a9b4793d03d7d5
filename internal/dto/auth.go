package dto

import "github.com/noah-isme/studygroup-api/internal/models"

// RequestCodeRequest asks for a login code to be sent to a phone.
type RequestCodeRequest struct {
	Phone string `json:"phone" validate:"required"`
}

// RequestCodeResponse reports when the issued code expires.
type RequestCodeResponse struct {
	Phone     string `json:"phone"`
	ExpiresIn int    `json:"expiresIn"`
}

// VerifyCodeRequest exchanges a phone and code for an access token.
type VerifyCodeRequest struct {
	Phone string `json:"phone" validate:"required"`
	Code  string `json:"code" validate:"required,numeric"`
	Name  string `json:"name" validate:"omitempty,max=100"`
}

// AuthResponse carries the access token and the caller's session snapshot.
type AuthResponse struct {
	AccessToken string          `json:"accessToken"`
	ExpiresIn   int64           `json:"expiresIn"`
	Session     *models.Session `json:"session"`
}
