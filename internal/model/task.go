package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// TaskStatus is the lifecycle state of a task instance.
type TaskStatus string

const (
	StatusNotStarted TaskStatus = "NOT_STARTED"
	StatusStarted    TaskStatus = "STARTED"
	StatusInProgress TaskStatus = "IN_PROGRESS"
	StatusBlocked    TaskStatus = "BLOCKED"
	StatusDone       TaskStatus = "DONE"
)

// AllStatuses lists every status in lifecycle order.
var AllStatuses = []TaskStatus{StatusNotStarted, StatusStarted, StatusInProgress, StatusBlocked, StatusDone}

// Valid reports whether s is a known status.
func (s TaskStatus) Valid() bool {
	for _, known := range AllStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// rank orders the forward path; BLOCKED sits outside it.
func (s TaskStatus) rank() int {
	switch s {
	case StatusNotStarted:
		return 0
	case StatusStarted:
		return 1
	case StatusInProgress:
		return 2
	case StatusDone:
		return 3
	}
	return -1
}

// TaskPriority orders urgency.
type TaskPriority string

const (
	PriorityCritical TaskPriority = "CRITICAL"
	PriorityHigh     TaskPriority = "HIGH"
	PriorityMedium   TaskPriority = "MEDIUM"
	PriorityLow      TaskPriority = "LOW"
)

// Valid reports whether p is a known priority.
func (p TaskPriority) Valid() bool {
	switch p {
	case PriorityCritical, PriorityHigh, PriorityMedium, PriorityLow:
		return true
	}
	return false
}

// AssigneeType tells which assignee representation a task carries.
type AssigneeType string

const (
	AssigneeUser              AssigneeType = "USER"
	AssigneeElo               AssigneeType = "ELO"
	AssigneeLocalityCommand   AssigneeType = "LOCALITY_COMMAND"
	AssigneeLocalityCommander AssigneeType = "LOCALITY_COMMANDER"
)

// Valid reports whether a is a known assignee type.
func (a AssigneeType) Valid() bool {
	switch a {
	case AssigneeUser, AssigneeElo, AssigneeLocalityCommand, AssigneeLocalityCommander:
		return true
	}
	return false
}

// TaskTemplate is a reusable task definition.
type TaskTemplate struct {
	BaseModel
	Title                  string     `gorm:"type:varchar(255);not null;index:idx_template_semantic" json:"title" validate:"required"`
	Description            string     `gorm:"type:text" json:"description,omitempty"`
	PhaseID                uuid.UUID  `gorm:"type:uuid;not null;index:idx_template_semantic" json:"phaseId" validate:"uuid_required"`
	Phase                  *Phase     `gorm:"foreignKey:PhaseID" json:"phase,omitempty" validate:"-"`
	SpecialtyID            *uuid.UUID `gorm:"type:uuid;index:idx_template_semantic" json:"specialtyId,omitempty"`
	Specialty              *Specialty `gorm:"foreignKey:SpecialtyID" json:"specialty,omitempty" validate:"-"`
	EloRoleID              *uuid.UUID `gorm:"type:uuid;index:idx_template_semantic" json:"eloRoleId,omitempty"`
	AppliesToAllLocalities bool       `gorm:"default:false" json:"appliesToAllLocalities"`
	ReportRequiredDefault  bool       `gorm:"default:false" json:"reportRequiredDefault"`
}

// TaskInstance is the mutable unit of work materialised from a template for one locality.
type TaskInstance struct {
	BaseModel
	TemplateID           uuid.UUID                       `gorm:"type:uuid;not null;index" json:"templateId"`
	Template             *TaskTemplate                   `gorm:"foreignKey:TemplateID" json:"template,omitempty"`
	LocalityID           uuid.UUID                       `gorm:"type:uuid;not null;index" json:"localityId"`
	Locality             *Locality                       `gorm:"foreignKey:LocalityID" json:"locality,omitempty"`
	DueDate              time.Time                       `gorm:"not null;index" json:"dueDate"`
	Status               TaskStatus                      `gorm:"type:varchar(20);not null;default:NOT_STARTED;index" json:"status"`
	StatusBeforeBlock    TaskStatus                      `gorm:"type:varchar(20)" json:"-"`
	Priority             TaskPriority                    `gorm:"type:varchar(20);not null;default:MEDIUM" json:"priority"`
	ProgressPercent      int                             `gorm:"not null;default:0" json:"progressPercent"`
	AssigneeType         *AssigneeType                   `gorm:"type:varchar(30)" json:"assigneeType,omitempty"`
	AssignedToID         *uuid.UUID                      `gorm:"type:uuid;index" json:"assignedToId,omitempty"`
	AssignedTo           *User                           `gorm:"foreignKey:AssignedToID" json:"-"`
	AssignedEloID        *uuid.UUID                      `gorm:"type:uuid;index" json:"assignedEloId,omitempty"`
	ExternalAssigneeName *string                         `gorm:"type:varchar(255)" json:"externalAssigneeName,omitempty"`
	ExternalAssigneeRole *string                         `gorm:"type:varchar(255)" json:"externalAssigneeRole,omitempty"`
	ReportRequired       bool                            `gorm:"default:false" json:"reportRequired"`
	BlockedByIDs         datatypes.JSONSlice[uuid.UUID]  `json:"blockedByIds"`
	MeetingID            *uuid.UUID                      `gorm:"type:uuid;index" json:"meetingId,omitempty"`
	EloRoleID            *uuid.UUID                      `gorm:"type:uuid" json:"eloRoleId,omitempty"`
	CompletedAt          *time.Time                      `json:"completedAt,omitempty"`
}

// IsLate is true when the task is not DONE and its due date is strictly before now.
func IsLate(t *TaskInstance, now time.Time) bool {
	return t.Status != StatusDone && t.DueDate.Before(now)
}

// HasBlockingDependencies reports whether any dependency that resolves in statuses is not DONE.
// Ids missing from statuses do not resolve to a task and never block.
func HasBlockingDependencies(t *TaskInstance, statuses map[uuid.UUID]TaskStatus) bool {
	for _, id := range t.BlockedByIDs {
		if status, ok := statuses[id]; ok && status != StatusDone {
			return true
		}
	}
	return false
}

// IsBlocked combines the stored BLOCKED status with unresolved dependencies.
func IsBlocked(t *TaskInstance, statuses map[uuid.UUID]TaskStatus) bool {
	return t.Status == StatusBlocked || HasBlockingDependencies(t, statuses)
}

// IsUnassigned is true when no assignee representation is set at all.
func IsUnassigned(t *TaskInstance) bool {
	return t.AssigneeType == nil && t.AssignedToID == nil && t.AssignedEloID == nil && t.ExternalAssigneeName == nil
}

// CanTransition reports whether the state machine allows t.Status -> to.
//
//	NOT_STARTED -> STARTED -> IN_PROGRESS -> DONE   (forward, skips allowed)
//	any non-DONE -> BLOCKED -> the status it was blocked from
//	DONE -> IN_PROGRESS                              (reopen)
func CanTransition(t *TaskInstance, to TaskStatus) bool {
	from := t.Status
	if from == to {
		return true
	}
	switch {
	case to == StatusBlocked:
		return from != StatusDone
	case from == StatusBlocked:
		prior := t.StatusBeforeBlock
		if prior == "" {
			prior = StatusNotStarted
		}
		return to == prior
	case from == StatusDone:
		return to == StatusInProgress
	}
	return to.rank() > from.rank()
}

// ApplyStatus moves t to the new status and maintains the bookkeeping fields.
// Callers check CanTransition and the DONE gates first.
func ApplyStatus(t *TaskInstance, to TaskStatus, now time.Time) {
	if t.Status == to {
		return
	}
	if to == StatusBlocked {
		t.StatusBeforeBlock = t.Status
	} else {
		t.StatusBeforeBlock = ""
	}
	if to == StatusDone {
		done := now
		t.CompletedAt = &done
	} else {
		t.CompletedAt = nil
	}
	t.Status = to
}

// ClampProgress bounds a percentage to [0,100].
func ClampProgress(percent int) int {
	if percent < 0 {
		return 0
	}
	if percent > 100 {
		return 100
	}
	return percent
}

// ClearAssignee removes every assignee representation.
func ClearAssignee(t *TaskInstance) {
	t.AssigneeType = nil
	t.AssignedToID = nil
	t.AssignedEloID = nil
	t.ExternalAssigneeName = nil
	t.ExternalAssigneeRole = nil
	t.AssignedTo = nil
}

// TaskInstanceResponse is the shape every task endpoint returns, derived flags included.
type TaskInstanceResponse struct {
	ID                   uuid.UUID     `json:"id"`
	TemplateID           uuid.UUID     `json:"templateId"`
	Title                string        `json:"title"`
	PhaseID              uuid.UUID     `json:"phaseId"`
	PhaseName            string        `json:"phaseName,omitempty"`
	SpecialtyID          *uuid.UUID    `json:"specialtyId,omitempty"`
	LocalityID           uuid.UUID     `json:"localityId"`
	LocalityCode         string        `json:"localityCode,omitempty"`
	LocalityName         string        `json:"localityName,omitempty"`
	DueDate              time.Time     `json:"dueDate"`
	Status               TaskStatus    `json:"status"`
	Priority             TaskPriority  `json:"priority"`
	ProgressPercent      int           `json:"progressPercent"`
	AssigneeType         *AssigneeType `json:"assigneeType,omitempty"`
	AssignedToID         *uuid.UUID    `json:"assignedToId,omitempty"`
	AssignedToName       *string       `json:"assignedToName,omitempty"`
	AssignedEloID        *uuid.UUID    `json:"assignedEloId,omitempty"`
	ExternalAssigneeName *string       `json:"externalAssigneeName,omitempty"`
	ExternalAssigneeRole *string       `json:"externalAssigneeRole,omitempty"`
	ReportRequired       bool          `json:"reportRequired"`
	BlockedByIDs         []uuid.UUID   `json:"blockedByIds"`
	MeetingID            *uuid.UUID    `json:"meetingId,omitempty"`
	EloRoleID            *uuid.UUID    `json:"eloRoleId,omitempty"`
	CompletedAt          *time.Time    `json:"completedAt,omitempty"`
	CreatedAt            time.Time     `json:"createdAt"`
	UpdatedAt            time.Time     `json:"updatedAt"`
	IsLate               bool          `json:"isLate"`
	IsBlocked            bool          `json:"isBlocked"`
	IsUnassigned         bool          `json:"isUnassigned"`
}

// ToResponse converts a task instance and computes its derived flags against now.
func (t *TaskInstance) ToResponse(now time.Time, statuses map[uuid.UUID]TaskStatus) TaskInstanceResponse {
	resp := TaskInstanceResponse{
		ID:                   t.ID,
		TemplateID:           t.TemplateID,
		LocalityID:           t.LocalityID,
		DueDate:              t.DueDate,
		Status:               t.Status,
		Priority:             t.Priority,
		ProgressPercent:      t.ProgressPercent,
		AssigneeType:         t.AssigneeType,
		AssignedToID:         t.AssignedToID,
		AssignedEloID:        t.AssignedEloID,
		ExternalAssigneeName: t.ExternalAssigneeName,
		ExternalAssigneeRole: t.ExternalAssigneeRole,
		ReportRequired:       t.ReportRequired,
		BlockedByIDs:         append([]uuid.UUID{}, t.BlockedByIDs...),
		MeetingID:            t.MeetingID,
		EloRoleID:            t.EloRoleID,
		CompletedAt:          t.CompletedAt,
		CreatedAt:            t.CreatedAt,
		UpdatedAt:            t.UpdatedAt,
		IsLate:               IsLate(t, now),
		IsBlocked:            IsBlocked(t, statuses),
		IsUnassigned:         IsUnassigned(t),
	}
	if t.Template != nil {
		resp.Title = t.Template.Title
		resp.PhaseID = t.Template.PhaseID
		resp.SpecialtyID = t.Template.SpecialtyID
		if t.Template.Phase != nil {
			resp.PhaseName = t.Template.Phase.Label()
		}
	}
	if t.Locality != nil {
		resp.LocalityCode = t.Locality.Code
		resp.LocalityName = t.Locality.Name
	}
	if t.AssignedTo != nil {
		name := t.AssignedTo.Name
		resp.AssignedToName = &name
	}
	return resp
}

// StripPII removes every field that can identify an assignee.
func (r *TaskInstanceResponse) StripPII() {
	r.AssignedToID = nil
	r.AssignedToName = nil
	r.AssignedEloID = nil
	r.ExternalAssigneeName = nil
	r.ExternalAssigneeRole = nil
}
