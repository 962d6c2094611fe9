package models

import (
	"fmt"
	"time"
)

type Role string

const (
	RoleVisitor Role = "visitor"
	RoleUser    Role = "user"
	RoleAdmin   Role = "admin"
)

func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleVisitor, RoleUser, RoleAdmin:
		return Role(s), nil
	}
	return "", fmt.Errorf("unknown role %q", s)
}

type User struct {
	ID           string    `json:"-" bson:"_id,omitempty"`
	PublicID     string    `json:"public_id" bson:"public_id"`
	Username     string    `json:"username" bson:"username"`
	PasswordHash string    `json:"-" bson:"password_hash"`
	Role         Role      `json:"role" bson:"role"`
	CreatedAt    time.Time `json:"created_at" bson:"created_at"`
}

// Principal is the caller of an operation. The zero value is a visitor.
type Principal struct {
	UserID   string    `json:"user_id,omitempty"`
	Username string    `json:"username,omitempty"`
	Role     Role      `json:"role"`
	TokenID  string    `json:"-"`
	Expires  time.Time `json:"-"`
}

var Visitor = Principal{Role: RoleVisitor}

func (p Principal) IsAdmin() bool { return p.Role == RoleAdmin }

func (p Principal) IsAuthenticated() bool {
	return p.UserID != "" && (p.Role == RoleUser || p.Role == RoleAdmin)
}
