package models

import "time"

//nolint:gosec //file not handles sensitive data
const (
	RefreshTokenCookie = "refreshToken"
	RefreshCookiePath  = "/api"

	TaskStatusIncomplete = "incomplete"
)

// Identity is the authenticated subject. Email is the primary key everywhere.
type Identity struct {
	Email string
}

type TokenPayload struct {
	ID        string
	Subject   Identity
	IssuedAt  time.Time
	ExpiresAt time.Time
}

type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

type Account struct {
	Email        string `json:"email"`
	PasswordHash string `json:"password"`
}

type Task struct {
	Name   string `json:"name"`
	ID     int    `json:"id"`
	Status string `json:"status"`
}
