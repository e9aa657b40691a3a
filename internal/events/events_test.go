package events

import (
	"testing"
	"time"

	"go-taskboard/internal/model"

	"github.com/google/uuid"
)

func TestFromTaskCarriesScopingFields(t *testing.T) {
	spec := uuid.New()
	assignee := uuid.New()
	task := &model.TaskInstance{
		LocalityID:      uuid.New(),
		Status:          model.StatusInProgress,
		ProgressPercent: 40,
		AssignedToID:    &assignee,
		Template:        &model.TaskTemplate{SpecialtyID: &spec},
	}
	task.ID = uuid.New()
	task.CreatedBy = "creator"
	at := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

	ev := FromTask(TaskUpdated, task, at)
	if ev.TaskID != task.ID || ev.LocalityID != task.LocalityID || ev.Status != model.StatusInProgress {
		t.Fatalf("unexpected event %+v", ev)
	}
	if ev.SpecialtyID == nil || *ev.SpecialtyID != spec || *ev.AssignedToID != assignee || ev.CreatedBy != "creator" {
		t.Fatalf("scoping fields missing: %+v", ev)
	}

	task.Template = nil
	if FromTask(TaskUpdated, task, at).SpecialtyID != nil {
		t.Fatalf("no template means no specialty")
	}
}

func TestEncodeDecode(t *testing.T) {
	ev := TaskEvent{Type: TaskDeleted, TaskID: uuid.New(), LocalityID: uuid.New(), At: time.Unix(0, 0).UTC()}
	raw, err := Encode(ev)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := Decode(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.TaskID != ev.TaskID || got.Type != TaskDeleted {
		t.Fatalf("unexpected decoded event %+v", got)
	}
	if _, err := Decode([]byte("{")); err == nil {
		t.Fatalf("expected error for truncated payload")
	}
}
