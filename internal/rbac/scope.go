package rbac

import (
	"go-taskboard/internal/model"

	"github.com/google/uuid"
)

// Scope is the concrete row filter derived from the broadest matching grant.
type Scope struct {
	// Allowed is false when no grant (with its required attributes) matched.
	Allowed bool
	// Level is the grant scope that produced this filter.
	Level model.Scope
	// National means no row restriction.
	National bool

	LocalityID  *uuid.UUID
	SpecialtyID *uuid.UUID
	// OwnUserID restricts to rows the user created or is assigned to.
	OwnUserID *uuid.UUID
}

// Denied is the zero scope.
var Denied = Scope{}

// ScopeFor picks the broadest grant u holds for resource/action, in the order
// NATIONAL, LOCALITY, SPECIALTY, LOCALITY_SPECIALTY, OWN. A grant whose
// required user attribute is missing contributes nothing.
func ScopeFor(u *User, resource, action string) Scope {
	if u == nil {
		return Denied
	}
	if u.Wildcard {
		return Scope{Allowed: true, Level: model.ScopeNational, National: true}
	}
	for _, level := range model.AllScopes {
		if !Can(u, resource, action, level) {
			continue
		}
		if s, ok := constrain(u, level); ok {
			return s
		}
	}
	return Denied
}

func constrain(u *User, level model.Scope) (Scope, bool) {
	s := Scope{Allowed: true, Level: level}
	switch level {
	case model.ScopeNational:
		s.National = true
	case model.ScopeLocality:
		if u.LocalityID == nil {
			return Denied, false
		}
		s.LocalityID = u.LocalityID
	case model.ScopeSpecialty:
		if u.SpecialtyID == nil {
			return Denied, false
		}
		s.SpecialtyID = u.SpecialtyID
	case model.ScopeLocalitySpecialty:
		if u.LocalityID == nil || u.SpecialtyID == nil {
			return Denied, false
		}
		s.LocalityID = u.LocalityID
		s.SpecialtyID = u.SpecialtyID
	case model.ScopeOwn:
		id := u.ID
		if id == uuid.Nil {
			return Denied, false
		}
		s.OwnUserID = &id
	default:
		return Denied, false
	}
	return s, true
}

// Permits checks a single row in memory, mirroring the SQL filter. specialtyID
// is the specialty of the row's template.
func (s Scope) Permits(localityID uuid.UUID, specialtyID, assignedToID *uuid.UUID, createdBy string) bool {
	if !s.Allowed {
		return false
	}
	if s.National {
		return true
	}
	if s.LocalityID != nil && *s.LocalityID != localityID {
		return false
	}
	if s.SpecialtyID != nil && (specialtyID == nil || *s.SpecialtyID != *specialtyID) {
		return false
	}
	if s.OwnUserID != nil {
		assigned := assignedToID != nil && *assignedToID == *s.OwnUserID
		return assigned || createdBy == s.OwnUserID.String()
	}
	return true
}

// PermitsTask is Permits for a task loaded with its template.
func (s Scope) PermitsTask(t *model.TaskInstance) bool {
	var specialtyID *uuid.UUID
	if t.Template != nil {
		specialtyID = t.Template.SpecialtyID
	}
	return s.Permits(t.LocalityID, specialtyID, t.AssignedToID, t.CreatedBy)
}

// PermitsLocality reports whether a locality-level action is inside the scope.
// Only NATIONAL and locality-bound scopes can address a whole locality.
func (s Scope) PermitsLocality(localityID uuid.UUID) bool {
	if !s.Allowed {
		return false
	}
	if s.National {
		return true
	}
	return s.LocalityID != nil && *s.LocalityID == localityID
}
