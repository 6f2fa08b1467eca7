package handler

import (
	"time"

	"session-authority/internal/claims"
)

// Request and response messages of authority.v1.SessionService. They travel
// as JSON (content-subtype "json").

type CreateSessionRequest struct {
	UserID     string   `json:"user_id"`
	Email      string   `json:"email"`
	Role       string   `json:"role"`
	Scopes     []string `json:"scopes,omitempty"`
	DeviceInfo string   `json:"device_info,omitempty"`
	IPAddress  string   `json:"ip_address,omitempty"`
	Location   string   `json:"location,omitempty"`
}

// TokenResponse is returned by CreateSession and RefreshSession.
type TokenResponse struct {
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
	TokenType        string    `json:"token_type"`
	ExpiresIn        int64     `json:"expires_in"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
	SessionID        string    `json:"session_id"`
}

type RefreshSessionRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type VerifyTokenRequest struct {
	Token string `json:"token"`
}

// ClaimsResponse carries verified claims.
type ClaimsResponse struct {
	Claims    *claims.Claims `json:"claims"`
	SessionID string         `json:"session_id,omitempty"`
}

type LogoutRequest struct {
	RefreshToken string `json:"refresh_token,omitempty"`
}

type Empty struct{}

// ListSessionsRequest lists the caller's sessions. Admins may name another user.
type ListSessionsRequest struct {
	UserID string `json:"user_id,omitempty"`
}

// SessionView is a session as shown to its owner. IsCurrent marks the session
// the request was authenticated with.
type SessionView struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	Role         string    `json:"role"`
	Scopes       []string  `json:"scopes"`
	CreatedAt    time.Time `json:"created_at"`
	LastActiveAt time.Time `json:"last_active_at"`
	DeviceInfo   string    `json:"device_info,omitempty"`
	IPAddress    string    `json:"ip_address,omitempty"`
	Location     string    `json:"location,omitempty"`
	IsCurrent    bool      `json:"is_current"`
}

type ListSessionsResponse struct {
	Sessions []SessionView `json:"sessions"`
}

type RevokeSessionRequest struct {
	SessionID string `json:"session_id"`
}

type RevokeUserSessionsRequest struct {
	UserID string `json:"user_id"`
}

// CountResponse reports how many sessions an operation affected.
type CountResponse struct {
	Count int64 `json:"count"`
}

type IssueTokenRequest struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
}

type IssueTokenResponse struct {
	Token string `json:"token"`
}
