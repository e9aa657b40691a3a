package model

import (
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// User represents an authenticated user in the system
type User struct {
	BaseModel
	Name             string     `gorm:"type:varchar(255);not null" json:"name" validate:"required"`
	Email            string     `gorm:"type:varchar(255);uniqueIndex;not null" json:"email" validate:"required,email"`
	Password         string     `gorm:"type:varchar(255);not null" json:"-"` // Hidden from JSON
	LocalityID       *uuid.UUID `gorm:"type:uuid;index" json:"localityId,omitempty"`
	Locality         *Locality  `gorm:"foreignKey:LocalityID" json:"locality,omitempty"`
	SpecialtyID      *uuid.UUID `gorm:"type:uuid;index" json:"specialtyId,omitempty"`
	IsActive         bool       `gorm:"default:true" json:"isActive"`
	ExecutiveHidePII bool       `gorm:"default:false" json:"executiveHidePii"`
	Roles            []Role     `gorm:"many2many:user_roles;" json:"roles,omitempty"`
	LastSeenAt       *time.Time `json:"lastSeenAt,omitempty"`
}

// SetPassword hashes and sets the user's password
func (u *User) SetPassword(password string) error {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.Password = string(hashedPassword)
	return nil
}

// CheckPassword verifies if the provided password matches the stored hash
func (u *User) CheckPassword(password string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password))
	return err == nil
}

// RoleNames returns the names of every role assigned to the user.
func (u *User) RoleNames() []string {
	names := make([]string, len(u.Roles))
	for i, r := range u.Roles {
		names[i] = r.Name
	}
	return names
}

// HidePIIFromRoles derives the executive_hide_pii flag from the assigned roles.
func HidePIIFromRoles(roles []Role) bool {
	for _, r := range roles {
		if r.ExecutiveHidePII {
			return true
		}
	}
	return false
}

// UserResponse is used for API responses (without sensitive data)
type UserResponse struct {
	ID               uuid.UUID  `json:"id"`
	Name             string     `json:"name"`
	Email            string     `json:"email"`
	LocalityID       *uuid.UUID `json:"localityId,omitempty"`
	SpecialtyID      *uuid.UUID `json:"specialtyId,omitempty"`
	IsActive         bool       `json:"isActive"`
	ExecutiveHidePII bool       `json:"executiveHidePii"`
	Roles            []string   `json:"roles"`
	LastSeenAt       *time.Time `json:"lastSeenAt,omitempty"`
}

// ToResponse converts User to UserResponse
func (u *User) ToResponse() UserResponse {
	return UserResponse{
		ID:               u.ID,
		Name:             u.Name,
		Email:            u.Email,
		LocalityID:       u.LocalityID,
		SpecialtyID:      u.SpecialtyID,
		IsActive:         u.IsActive,
		ExecutiveHidePII: u.ExecutiveHidePII,
		Roles:            u.RoleNames(),
		LastSeenAt:       u.LastSeenAt,
	}
}
