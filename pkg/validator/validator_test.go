package validator

import (
	"testing"

	"github.com/google/uuid"
)

type sample struct {
	Name     string    `validate:"required"`
	PhaseID  uuid.UUID `validate:"uuid_required"`
	Status   string    `validate:"omitempty,task_status"`
	Priority string    `validate:"omitempty,task_priority"`
	Scope    string    `validate:"omitempty,perm_scope"`
	Kind     string    `validate:"omitempty,assignee_type"`
}

func TestValidateStruct(t *testing.T) {
	ok := sample{Name: "x", PhaseID: uuid.New(), Status: "BLOCKED", Priority: "LOW", Scope: "OWN", Kind: "ELO"}
	if errs := ValidateStruct(ok); errs != nil {
		t.Fatalf("unexpected errors %+v", errs[0])
	}

	errs := ValidateStruct(sample{Status: "PAUSED", Priority: "URGENT", Scope: "WORLD", Kind: "ROBOT"})
	tags := make(map[string]string, len(errs))
	for _, e := range errs {
		tags[e.FailedField] = e.Tag
	}
	want := map[string]string{
		"sample.Name":     "required",
		"sample.PhaseID":  "uuid_required",
		"sample.Status":   "task_status",
		"sample.Priority": "task_priority",
		"sample.Scope":    "perm_scope",
		"sample.Kind":     "assignee_type",
	}
	for field, tag := range want {
		if tags[field] != tag {
			t.Errorf("%s: got %q, want %q", field, tags[field], tag)
		}
	}
}
