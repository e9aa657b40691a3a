package events

import (
	"time"

	"go-taskboard/internal/model"

	"github.com/google/uuid"
)

const (
	TaskUpdated = "task.updated"
	TaskCreated = "task.created"
	TaskDeleted = "task.deleted"
)

// TaskEvent is pushed to live clients after a task mutation commits.
// The scoping fields let each receiver decide visibility without a lookup.
type TaskEvent struct {
	Type            string           `json:"type"`
	TaskID          uuid.UUID        `json:"id"`
	LocalityID      uuid.UUID        `json:"localityId"`
	Status          model.TaskStatus `json:"status"`
	ProgressPercent int              `json:"progressPercent"`
	SpecialtyID     *uuid.UUID       `json:"specialtyId,omitempty"`
	AssignedToID    *uuid.UUID       `json:"assignedToId,omitempty"`
	CreatedBy       string           `json:"createdBy,omitempty"`
	At              time.Time        `json:"at"`
}

// FromTask builds the event for t. t.Template should be loaded for specialty scoping.
func FromTask(kind string, t *model.TaskInstance, at time.Time) TaskEvent {
	ev := TaskEvent{
		Type:            kind,
		TaskID:          t.ID,
		LocalityID:      t.LocalityID,
		Status:          t.Status,
		ProgressPercent: t.ProgressPercent,
		AssignedToID:    t.AssignedToID,
		CreatedBy:       t.CreatedBy,
		At:              at,
	}
	if t.Template != nil {
		ev.SpecialtyID = t.Template.SpecialtyID
	}
	return ev
}

// Redacted drops the person ids. Scoping decisions must be made on the
// original event.
func (ev TaskEvent) Redacted() TaskEvent {
	ev.AssignedToID = nil
	ev.CreatedBy = ""
	return ev
}

// Publisher fans task events out to subscribers. Publish must not block.
type Publisher interface {
	Publish(ev TaskEvent)
}

// Nop drops every event.
type Nop struct{}

func (Nop) Publish(TaskEvent) {}

// Recorder keeps published events in memory.
type Recorder struct {
	Events []TaskEvent
}

func (r *Recorder) Publish(ev TaskEvent) {
	r.Events = append(r.Events, ev)
}
