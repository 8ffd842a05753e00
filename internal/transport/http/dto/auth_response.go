package dto

import (
	"time"

	"github.com/baechuer/lms-auth-service/internal/application/auth"
	"github.com/baechuer/lms-auth-service/internal/domain"
)

// AccountView never exposes the password hash.
type AccountView struct {
	ID               string     `json:"id"`
	Email            string     `json:"email"`
	Role             string     `json:"role"`
	BoundDeviceID    string     `json:"bound_device_id,omitempty"`
	ProfileCompleted bool       `json:"profile_completed"`
	Locked           bool       `json:"locked"`
	LastLoginAt      *time.Time `json:"last_login_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
}

func NewAccountView(a domain.Account) AccountView {
	return AccountView{
		ID:               a.ID,
		Email:            a.Email,
		Role:             a.Role,
		BoundDeviceID:    a.BoundDeviceID,
		ProfileCompleted: a.ProfileCompleted,
		Locked:           a.Locked,
		LastLoginAt:      a.LastLoginAt,
		CreatedAt:        a.CreatedAt,
	}
}

// TokensView carries the access token. The refresh token is also set as an
// HttpOnly cookie; it is echoed here for non-browser clients.
type TokensView struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

func NewTokensView(t auth.AuthTokens) TokensView {
	return TokensView{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		TokenType:    t.TokenType,
		ExpiresIn:    t.ExpiresIn,
	}
}

type LoginData struct {
	Account                   AccountView `json:"account"`
	Tokens                    TokensView  `json:"tokens"`
	DeviceChangeRequestStatus string      `json:"device_change_request_status,omitempty"`
}

type RefreshData struct {
	Tokens TokensView `json:"tokens"`
}

type SignupData struct {
	Email     string    `json:"email"`
	ExpiresAt time.Time `json:"otp_expires_at"`
}

type AccountData struct {
	Account AccountView `json:"account"`
}

type StatusData struct {
	Status string `json:"status"`
}
