package models

import (
	"time"
)

type Role string

const (
	RoleStudent Role = "student"
	RoleTutor   Role = "tutor"
	RoleAdmin   Role = "admin"
)

type UserStatus string

const (
	UserStatusActive   UserStatus = "active"
	UserStatusInactive UserStatus = "inactive"
	UserStatusBanned   UserStatus = "banned"
)

// InfoUser is the caller identity decoded from the bearer token.
type InfoUser struct {
	Email     string
	Name      string
	Role      string
	IsAdmin   bool
	IsStudent bool
	IsTutor   bool
}

type User struct {
	ID       string     `json:"id,omitempty" db:"id"`
	Email    string     `json:"email,omitempty" db:"email"`
	Name     string     `json:"name,omitempty" db:"name"`
	Role     Role       `json:"role,omitempty" db:"role"`
	Status   UserStatus `json:"status,omitempty" db:"status"`
	Password string     `json:"-" db:"password"`

	CreatedAt time.Time `json:"createdAt,omitempty" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt,omitempty" db:"updated_at"`

	Token string `json:"token,omitempty" db:"-"`
}

func (user *User) IsActive() bool {
	return user.Status == UserStatusActive
}
