package model

import (
	"time"

	"github.com/google/uuid"
)

// ReportStatus tracks the review state of a task report.
type ReportStatus string

const (
	ReportPending  ReportStatus = "PENDING"
	ReportApproved ReportStatus = "APPROVED"
	ReportRejected ReportStatus = "REJECTED"
)

// TaskReport is the evidence a task must carry before it can be closed
// when ReportRequired is set.
type TaskReport struct {
	BaseModel
	TaskInstanceID uuid.UUID    `gorm:"type:uuid;not null;index" json:"taskInstanceId"`
	AuthorID       uuid.UUID    `gorm:"type:uuid;not null" json:"authorId"`
	Author         *User        `gorm:"foreignKey:AuthorID" json:"-"`
	Summary        string       `gorm:"type:text;not null" json:"summary" validate:"required"`
	AttachmentURL  string       `gorm:"type:varchar(500)" json:"attachmentUrl,omitempty" validate:"omitempty,url"`
	Status         ReportStatus `gorm:"type:varchar(20);not null;default:PENDING;index" json:"status"`
	ReviewedByID   *uuid.UUID   `gorm:"type:uuid" json:"reviewedById,omitempty"`
	ReviewedAt     *time.Time   `json:"reviewedAt,omitempty"`
	ReviewNote     string       `gorm:"type:text" json:"reviewNote,omitempty"`
}

// TaskReportResponse for API responses
type TaskReportResponse struct {
	ID             uuid.UUID    `json:"id"`
	TaskInstanceID uuid.UUID    `json:"taskInstanceId"`
	AuthorID       *uuid.UUID   `json:"authorId,omitempty"`
	Summary        string       `json:"summary"`
	AttachmentURL  string       `json:"attachmentUrl,omitempty"`
	Status         ReportStatus `json:"status"`
	ReviewedByID   *uuid.UUID   `json:"reviewedById,omitempty"`
	ReviewedAt     *time.Time   `json:"reviewedAt,omitempty"`
	ReviewNote     string       `json:"reviewNote,omitempty"`
	CreatedAt      time.Time    `json:"createdAt"`
	UpdatedAt      time.Time    `json:"updatedAt"`
}

func (r *TaskReport) ToResponse() TaskReportResponse {
	author := r.AuthorID
	return TaskReportResponse{
		ID:             r.ID,
		TaskInstanceID: r.TaskInstanceID,
		AuthorID:       &author,
		Summary:        r.Summary,
		AttachmentURL:  r.AttachmentURL,
		Status:         r.Status,
		ReviewedByID:   r.ReviewedByID,
		ReviewedAt:     r.ReviewedAt,
		ReviewNote:     r.ReviewNote,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
}

// StripPII drops the author and reviewer.
func (r *TaskReportResponse) StripPII() {
	r.AuthorID = nil
	r.ReviewedByID = nil
}
