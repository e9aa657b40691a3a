package model

import (
	"time"

	"github.com/google/uuid"
)

// Commentable entity kinds.
const (
	EntityTaskInstance = "task_instance"
	EntityActivity     = "activity"
)

// Comment is a message on the thread of one entity.
type Comment struct {
	BaseModel
	EntityType string    `gorm:"type:varchar(30);not null;index:idx_comment_entity" json:"entityType"`
	EntityID   string    `gorm:"type:varchar(64);not null;index:idx_comment_entity" json:"entityId"`
	AuthorID   uuid.UUID `gorm:"type:uuid;not null;index" json:"authorId"`
	Author     *User     `gorm:"foreignKey:AuthorID" json:"-"`
	Body       string    `gorm:"type:text;not null" json:"body"`
}

// CommentSeen is the per-user read watermark of one thread.
type CommentSeen struct {
	UserID     uuid.UUID `gorm:"type:uuid;primaryKey" json:"userId"`
	EntityType string    `gorm:"type:varchar(30);primaryKey" json:"entityType"`
	EntityID   string    `gorm:"type:varchar(64);primaryKey" json:"entityId"`
	LastSeenAt time.Time `gorm:"not null" json:"lastSeenAt"`
}

// TableName specifies the table name for GORM
func (CommentSeen) TableName() string {
	return "comment_seen"
}

// CommentResponse for API responses
type CommentResponse struct {
	ID         uuid.UUID  `json:"id"`
	EntityType string     `json:"entityType"`
	EntityID   string     `json:"entityId"`
	AuthorID   *uuid.UUID `json:"authorId,omitempty"`
	AuthorName string     `json:"authorName,omitempty"`
	Body       string     `json:"body"`
	CreatedAt  time.Time  `json:"createdAt"`
}

// ToResponse converts Comment to CommentResponse
func (c *Comment) ToResponse() CommentResponse {
	author := c.AuthorID
	resp := CommentResponse{
		ID:         c.ID,
		EntityType: c.EntityType,
		EntityID:   c.EntityID,
		AuthorID:   &author,
		Body:       c.Body,
		CreatedAt:  c.CreatedAt,
	}
	if c.Author != nil {
		resp.AuthorName = c.Author.Name
	}
	return resp
}

// StripPII drops the author identity.
func (r *CommentResponse) StripPII() {
	r.AuthorID = nil
	r.AuthorName = ""
}
