package service

import (
	"errors"
	"fmt"
	"net/http"

	"go-taskboard/pkg/validator"

	"gorm.io/gorm"
)

// DomainError carries the HTTP status and the stable code clients react to.
type DomainError struct {
	Status  int
	Code    string
	Message string
	Details any
}

func (e *DomainError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// HTTPStatus lets transport layers map the error without importing this package.
func (e *DomainError) HTTPStatus() int {
	return e.Status
}

// Is matches on Code so that copies made by With* still match their sentinel.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	return ok && t.Code == e.Code
}

// WithMessage returns a copy with a more specific message.
func (e *DomainError) WithMessage(format string, args ...any) *DomainError {
	c := *e
	c.Message = fmt.Sprintf(format, args...)
	return &c
}

// WithDetails returns a copy carrying details.
func (e *DomainError) WithDetails(details any) *DomainError {
	c := *e
	c.Details = details
	return &c
}

func newError(status int, code, message string) *DomainError {
	return &DomainError{Status: status, Code: code, Message: message}
}

var (
	ErrUnauthenticated     = newError(http.StatusUnauthorized, "UNAUTHENTICATED", "authentication required")
	ErrForbidden           = newError(http.StatusForbidden, "RBAC_FORBIDDEN", "you do not have permission to perform this action")
	ErrNotFound            = newError(http.StatusNotFound, "NOT_FOUND", "resource not found")
	ErrValidation          = newError(http.StatusBadRequest, "VALIDATION_FAILED", "validation failed")
	ErrInvalidStatus       = newError(http.StatusBadRequest, "INVALID_STATUS", "unknown task status")
	ErrInvalidPriority     = newError(http.StatusBadRequest, "INVALID_PRIORITY", "unknown task priority")
	ErrInvalidAssignee     = newError(http.StatusBadRequest, "INVALID_ASSIGNEE", "assignee cannot be resolved")
	ErrInvalidTransition   = newError(http.StatusConflict, "INVALID_TRANSITION", "status transition not allowed")
	ErrReportRequired      = newError(http.StatusConflict, "REPORT_REQUIRED", "an approved report is required before completing this task")
	ErrBlockedByDependency = newError(http.StatusConflict, "BLOCKED_BY_DEPENDENCY", "task has dependencies that are not done")
	ErrDuplicateTemplate   = newError(http.StatusConflict, "DUPLICATE_TEMPLATE", "a template with the same title, phase, specialty and elo role exists")
	ErrDuplicateInstance   = newError(http.StatusConflict, "DUPLICATE_INSTANCE", "an instance for this template, locality and due date exists")
	ErrDuplicatePermission = newError(http.StatusConflict, "DUPLICATE_PERMISSION", "permission already exists")
	ErrDuplicateRole       = newError(http.StatusConflict, "DUPLICATE_ROLE", "role already exists")
	ErrDuplicateEmail      = newError(http.StatusConflict, "DUPLICATE_EMAIL", "email already exists")
	ErrInternal            = newError(http.StatusInternalServerError, "INTERNAL", "internal server error")
)

// validate runs struct validation and turns failures into VALIDATION_FAILED.
func validate(req any) error {
	errs := validator.ValidateStruct(req)
	if len(errs) == 0 {
		return nil
	}
	first := errs[0]
	return ErrValidation.
		WithMessage("Validation failed: Field '%s' failed on tag '%s'", first.FailedField, first.Tag).
		WithDetails(errs)
}

// lookup maps a missing row to NOT_FOUND and leaves other errors alone.
func lookup(err error, what string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound.WithMessage("%s not found", what)
	}
	return err
}

// duplicate maps a storage uniqueness violation to dup.
func duplicate(err error, dup *DomainError) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return dup
	}
	return err
}
