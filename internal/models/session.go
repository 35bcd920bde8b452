package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// UserRole is the role assigned to a backend user.
type UserRole string

const (
	RoleOrganizer UserRole = "organizer"
	RoleStaff     UserRole = "staff"
)

// User is the backend account returned by the login lookup.
type User struct {
	ID    int64    `json:"id"`
	Name  string   `json:"name"`
	Email string   `json:"email"`
	Token string   `json:"token"`
	Role  UserRole `json:"role"`
}

// Session holds the logged-in backend user and its bearer token.
type Session struct {
	User       User      `json:"user"`
	Token      string    `json:"token"`
	LoggedInAt time.Time `json:"loggedInAt"`
}

// LoginRequest holds credentials for authenticating against the backend.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse returns the agent access token and user info.
type LoginResponse struct {
	AccessToken string    `json:"access_token"`
	ExpiresIn   int64     `json:"expires_in"`
	User        UserInfo  `json:"user"`
	IssuedAt    time.Time `json:"issued_at"`
}

// UserInfo describes the authenticated user in responses.
type UserInfo struct {
	ID    int64    `json:"id"`
	Email string   `json:"email"`
	Name  string   `json:"name"`
	Role  UserRole `json:"role"`
}

// JWTClaims is the payload of agent access tokens.
type JWTClaims struct {
	UserID int64    `json:"user_id"`
	Role   UserRole `json:"role"`
	Email  string   `json:"email"`
	Name   string   `json:"name"`
	jwt.RegisteredClaims
}
