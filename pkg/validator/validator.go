package validator

import (
	"errors"

	"go-taskboard/internal/model"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

type ErrorResponse struct {
	FailedField string `json:"field"`
	Tag         string `json:"tag"`
	Value       string `json:"param,omitempty"`
}

var validate = validator.New()

func init() {
	validate.RegisterValidation("uuid_required", func(fl validator.FieldLevel) bool {
		if id, ok := fl.Field().Interface().(uuid.UUID); ok {
			return id != uuid.Nil
		}
		return false
	})
	validate.RegisterValidation("task_status", func(fl validator.FieldLevel) bool {
		return model.TaskStatus(fl.Field().String()).Valid()
	})
	validate.RegisterValidation("task_priority", func(fl validator.FieldLevel) bool {
		return model.TaskPriority(fl.Field().String()).Valid()
	})
	validate.RegisterValidation("perm_scope", func(fl validator.FieldLevel) bool {
		return model.Scope(fl.Field().String()).Valid()
	})
	validate.RegisterValidation("assignee_type", func(fl validator.FieldLevel) bool {
		return model.AssigneeType(fl.Field().String()).Valid()
	})
}

// ValidateStruct returns one entry per failing field, or nil.
func ValidateStruct(data interface{}) []*ErrorResponse {
	var errs []*ErrorResponse
	err := validate.Struct(data)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []*ErrorResponse{{FailedField: "", Tag: "invalid"}}
	}
	for _, fe := range verrs {
		errs = append(errs, &ErrorResponse{
			FailedField: fe.StructNamespace(),
			Tag:         fe.Tag(),
			Value:       fe.Param(),
		})
	}
	return errs
}
