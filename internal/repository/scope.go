package repository

import (
	"go-taskboard/internal/rbac"

	"gorm.io/gorm"
)

// taskScopeCond renders a scope as a predicate over task_instances.
// ok is false when the scope admits no rows.
func taskScopeCond(s rbac.Scope) (cond string, args []any, ok bool) {
	if !s.Allowed {
		return "", nil, false
	}
	if s.National {
		return "", nil, true
	}
	cond = "1 = 1"
	if s.LocalityID != nil {
		cond += " AND task_instances.locality_id = ?"
		args = append(args, *s.LocalityID)
	}
	if s.SpecialtyID != nil {
		cond += " AND EXISTS (SELECT 1 FROM task_templates tt WHERE tt.id = task_instances.template_id AND tt.specialty_id = ?)"
		args = append(args, *s.SpecialtyID)
	}
	if s.OwnUserID != nil {
		cond += " AND (task_instances.assigned_to_id = ? OR task_instances.created_by = ?)"
		args = append(args, *s.OwnUserID, s.OwnUserID.String())
	}
	return cond, args, true
}

// ApplyTaskScope restricts a task_instances query to the rows s admits.
// Every task read and aggregate goes through here so that counts never
// include rows outside the caller's scope.
func ApplyTaskScope(q *gorm.DB, s rbac.Scope) *gorm.DB {
	cond, args, ok := taskScopeCond(s)
	if !ok {
		return q.Where("1 = 0")
	}
	if cond == "" {
		return q
	}
	return q.Where(cond, args...)
}

// ApplyLocalityScope restricts a localities query. Locality-bound scopes pin the
// caller's own locality; specialty and own scopes see the localities that hold
// at least one task they can see.
func ApplyLocalityScope(q *gorm.DB, s rbac.Scope) *gorm.DB {
	cond, args, ok := taskScopeCond(s)
	switch {
	case !ok:
		return q.Where("1 = 0")
	case s.National:
		return q
	case s.LocalityID != nil && s.SpecialtyID == nil:
		return q.Where("localities.id = ?", *s.LocalityID)
	}
	sub := "localities.id IN (SELECT task_instances.locality_id FROM task_instances WHERE task_instances.deleted_at IS NULL AND " + cond + ")"
	return q.Where(sub, args...)
}
