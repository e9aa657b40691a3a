// Package rbac evaluates (resource, action, scope) grants for an authenticated user.
//
// Evaluation rules:
//   - A grant matches when its resource and action equal the request or are "*",
//     and when the requested scope (if any) equals the grant's scope
//   - A role flagged as wildcard grants everything at NATIONAL scope
//   - A nil user is denied
package rbac

import (
	"go-taskboard/internal/model"

	"github.com/google/uuid"
)

// Grant is one permission entry held by a user through a role.
type Grant struct {
	Resource string
	Action   string
	Scope    model.Scope
}

// User is the request-scoped principal that guards and services consume.
type User struct {
	ID               uuid.UUID
	Name             string
	Roles            []string
	Permissions      []Grant
	LocalityID       *uuid.UUID
	SpecialtyID      *uuid.UUID
	ExecutiveHidePII bool
	Wildcard         bool
}

// FromModel flattens a user loaded with Roles.Permissions into a principal.
func FromModel(u *model.User) *User {
	if u == nil {
		return nil
	}
	principal := &User{
		ID:               u.ID,
		Name:             u.Name,
		LocalityID:       u.LocalityID,
		SpecialtyID:      u.SpecialtyID,
		ExecutiveHidePII: u.ExecutiveHidePII,
	}
	seen := make(map[Grant]bool)
	for _, role := range u.Roles {
		principal.Roles = append(principal.Roles, role.Name)
		if role.Wildcard {
			principal.Wildcard = true
		}
		if role.ExecutiveHidePII {
			principal.ExecutiveHidePII = true
		}
		for _, p := range role.Permissions {
			g := Grant{Resource: p.Resource, Action: p.Action, Scope: p.Scope}
			if !seen[g] {
				seen[g] = true
				principal.Permissions = append(principal.Permissions, g)
			}
		}
	}
	return principal
}

func (g Grant) matches(resource, action string, scope model.Scope) bool {
	if g.Resource != resource && g.Resource != model.Wildcard {
		return false
	}
	if g.Action != action && g.Action != model.Wildcard {
		return false
	}
	return scope == "" || g.Scope == scope
}

// Can reports whether u holds a grant for resource/action. An empty scope
// matches a grant of any scope.
func Can(u *User, resource, action string, scope model.Scope) bool {
	if u == nil {
		return false
	}
	if u.Wildcard {
		return true
	}
	for _, g := range u.Permissions {
		if g.matches(resource, action, scope) {
			return true
		}
	}
	return false
}

// HasRole reports whether u was granted the named role.
func (u *User) HasRole(name string) bool {
	if u == nil {
		return false
	}
	for _, r := range u.Roles {
		if r == name {
			return true
		}
	}
	return false
}
