package model

import (
	"time"

	"github.com/google/uuid"
)

// Locality is the root scoping unit: it owns its tasks and recruitment counters.
type Locality struct {
	BaseModel
	Code            string `gorm:"type:varchar(30);uniqueIndex;not null" json:"code" validate:"required"`
	Name            string `gorm:"type:varchar(255);not null" json:"name" validate:"required"`
	CommandName     string `gorm:"type:varchar(255);index" json:"commandName,omitempty"`
	CommanderName   string `gorm:"type:varchar(255)" json:"commanderName,omitempty"`
	RecruitsTarget  int    `gorm:"default:0" json:"recruitsTarget"`
	RecruitsCurrent int    `gorm:"default:0" json:"recruitsCurrent"`
	Notes           string `gorm:"type:text" json:"notes,omitempty"`
}

// Phase is an ordered stage of the program.
type Phase struct {
	BaseModel
	Code         string `gorm:"type:varchar(30);uniqueIndex;not null" json:"code" validate:"required"`
	Name         string `gorm:"type:varchar(255);not null" json:"name" validate:"required"`
	DisplayOrder int    `gorm:"default:0;index" json:"displayOrder"`
	DisplayName  string `gorm:"type:varchar(255)" json:"displayName,omitempty"`
}

// Label returns the custom display name when one is set.
func (p *Phase) Label() string {
	if p.DisplayName != "" {
		return p.DisplayName
	}
	return p.Name
}

// Specialty is an optional cross-cut category for templates and tasks.
type Specialty struct {
	BaseModel
	Name string `gorm:"type:varchar(255);uniqueIndex;not null" json:"name" validate:"required"`
}

// EloRole is a named point-of-contact role (Psychology, Legal, ...).
type EloRole struct {
	BaseModel
	Name string `gorm:"type:varchar(255);uniqueIndex;not null" json:"name" validate:"required"`
}

// Elo is a concrete contact holding an EloRole inside a locality.
type Elo struct {
	BaseModel
	LocalityID uuid.UUID `gorm:"type:uuid;not null;index" json:"localityId" validate:"uuid_required"`
	EloRoleID  uuid.UUID `gorm:"type:uuid;not null;index" json:"eloRoleId" validate:"uuid_required"`
	EloRole    *EloRole  `gorm:"foreignKey:EloRoleID" json:"eloRole,omitempty"`
	Name       string    `gorm:"type:varchar(255);not null" json:"name" validate:"required"`
	Email      string    `gorm:"type:varchar(255)" json:"email,omitempty" validate:"omitempty,email"`
	Phone      string    `gorm:"type:varchar(40)" json:"phone,omitempty"`
}

// Meeting can be linked from generated task instances.
type Meeting struct {
	BaseModel
	Title       string     `gorm:"type:varchar(255);not null" json:"title" validate:"required"`
	LocalityID  *uuid.UUID `gorm:"type:uuid;index" json:"localityId,omitempty"`
	ScheduledAt time.Time  `gorm:"index" json:"scheduledAt" validate:"required"`
	Notes       string     `gorm:"type:text" json:"notes,omitempty"`
}

// RecruitsHistory keeps every recorded recruits counter value for a locality.
type RecruitsHistory struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	LocalityID uuid.UUID `gorm:"type:uuid;not null;index" json:"localityId"`
	Count      int       `gorm:"not null" json:"count"`
	RecordedAt time.Time `gorm:"index" json:"recordedAt"`
	RecordedBy string    `json:"recordedBy,omitempty"`
}

// TableName keeps the plural form used by the original schema.
func (RecruitsHistory) TableName() string {
	return "recruits_history"
}
