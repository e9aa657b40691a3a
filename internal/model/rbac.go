package model

import (
	"fmt"
	"strings"

	"gorm.io/datatypes"
)

// Scope is the breadth of data a permission applies to.
type Scope string

const (
	ScopeNational          Scope = "NATIONAL"
	ScopeLocality          Scope = "LOCALITY"
	ScopeSpecialty         Scope = "SPECIALTY"
	ScopeLocalitySpecialty Scope = "LOCALITY_SPECIALTY"
	ScopeOwn               Scope = "OWN"
)

// AllScopes lists scopes from broadest to narrowest.
var AllScopes = []Scope{ScopeNational, ScopeLocality, ScopeSpecialty, ScopeLocalitySpecialty, ScopeOwn}

// Valid reports whether s is a known scope.
func (s Scope) Valid() bool {
	for _, known := range AllScopes {
		if s == known {
			return true
		}
	}
	return false
}

// Wildcard matches any resource or action.
const Wildcard = "*"

// Permission is a (resource, action, scope) triple, unique across the catalog.
type Permission struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	Resource    string `gorm:"type:varchar(80);not null;uniqueIndex:idx_permission_triple" json:"resource" validate:"required"`
	Action      string `gorm:"type:varchar(50);not null;uniqueIndex:idx_permission_triple" json:"action" validate:"required"`
	Scope       Scope  `gorm:"type:varchar(30);not null;uniqueIndex:idx_permission_triple" json:"scope" validate:"required,perm_scope"`
	Description string `gorm:"type:varchar(255)" json:"description,omitempty"`
}

// Key renders the triple as "resource:action:SCOPE", the format used by catalog files.
func (p Permission) Key() string {
	return fmt.Sprintf("%s:%s:%s", p.Resource, p.Action, p.Scope)
}

// ParsePermissionKey is the inverse of Permission.Key.
func ParsePermissionKey(key string) (Permission, error) {
	parts := strings.Split(key, ":")
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" {
		return Permission{}, fmt.Errorf("permission key %q must look like resource:action:SCOPE", key)
	}
	scope := Scope(strings.ToUpper(parts[2]))
	if !scope.Valid() {
		return Permission{}, fmt.Errorf("permission key %q has unknown scope %s", key, parts[2])
	}
	return Permission{Resource: parts[0], Action: parts[1], Scope: scope}, nil
}

// Role groups permissions. Name is the stable identity referenced by users.
type Role struct {
	ID               uint              `gorm:"primaryKey" json:"id"`
	Name             string            `gorm:"type:varchar(80);uniqueIndex;not null" json:"name" validate:"required"`
	Description      string            `gorm:"type:text" json:"description,omitempty"`
	ExecutiveHidePII bool              `gorm:"default:false" json:"executiveHidePii"`
	Wildcard         bool              `gorm:"default:false" json:"wildcard"`
	Constraints      datatypes.JSONMap `json:"constraints,omitempty"`
	Permissions      []Permission      `gorm:"many2many:role_permissions;" json:"permissions,omitempty"`
}

// Role names seeded on first start.
const (
	RoleAdmin               = "ADMIN"
	RoleNationalCoordinator = "NATIONAL_COORDINATOR"
	RoleExecutive           = "EXECUTIVE"
	RoleLocalityManager     = "LOCALITY_MANAGER"
	RoleSpecialist          = "SPECIALIST"
	RoleMember              = "MEMBER"
)

// Resources guarded by the permission catalog.
const (
	ResTaskInstances = "task_instances"
	ResTaskTemplates = "task_templates"
	ResDashboard     = "dashboard"
	ResReports       = "reports"
	ResComments      = "comments"
	ResLocalities    = "localities"
	ResPhases        = "phases"
	ResUsers         = "users"
	ResRBAC          = "rbac"
	ResAuditLogs     = "audit_logs"
	ResMeetings      = "meetings"
	ResElos          = "elos"
)

// Actions used by the catalog.
const (
	ActRead     = "read"
	ActCreate   = "create"
	ActUpdate   = "update"
	ActDelete   = "delete"
	ActAssign   = "assign"
	ActGenerate = "generate"
	ActApprove  = "approve"
	ActManage   = "manage"
)

// DefaultPermissions is the permission catalog seeded on first start.
var DefaultPermissions = buildDefaultPermissions()

func buildDefaultPermissions() []Permission {
	var perms []Permission
	add := func(resource string, scopes []Scope, actions ...string) {
		for _, scope := range scopes {
			for _, action := range actions {
				perms = append(perms, Permission{Resource: resource, Action: action, Scope: scope})
			}
		}
	}
	national := []Scope{ScopeNational}
	scoped := []Scope{ScopeNational, ScopeLocality, ScopeSpecialty, ScopeLocalitySpecialty, ScopeOwn}

	add(ResTaskInstances, scoped, ActRead, ActUpdate, ActAssign, ActDelete)
	add(ResTaskTemplates, national, ActRead, ActCreate, ActUpdate, ActDelete)
	add(ResTaskTemplates, []Scope{ScopeNational, ScopeLocality}, ActGenerate)
	add(ResDashboard, []Scope{ScopeNational, ScopeLocality, ScopeSpecialty, ScopeOwn}, ActRead)
	add(ResReports, scoped, ActCreate, ActApprove)
	add(ResComments, scoped, ActRead, ActCreate)
	add(ResLocalities, []Scope{ScopeNational, ScopeLocality}, ActRead, ActUpdate)
	add(ResLocalities, national, ActCreate)
	add(ResPhases, national, ActRead, ActManage)
	add(ResMeetings, []Scope{ScopeNational, ScopeLocality}, ActRead, ActCreate)
	add(ResElos, []Scope{ScopeNational, ScopeLocality}, ActRead, ActCreate)
	add(ResUsers, national, ActRead, ActManage)
	add(ResRBAC, national, ActRead, ActManage)
	add(ResAuditLogs, national, ActRead)
	return perms
}

// DefaultRole describes a seeded role and the permission keys it receives.
type DefaultRole struct {
	Role        Role
	Permissions []string
}

// DefaultRoles defines the default roles in the system
var DefaultRoles = []DefaultRole{
	{
		Role: Role{Name: RoleAdmin, Description: "Full access to every resource", Wildcard: true},
	},
	{
		Role: Role{Name: RoleNationalCoordinator, Description: "Coordinates tasks across all localities"},
		Permissions: []string{
			"task_instances:read:NATIONAL", "task_instances:update:NATIONAL", "task_instances:assign:NATIONAL",
			"task_templates:read:NATIONAL", "task_templates:create:NATIONAL", "task_templates:update:NATIONAL",
			"task_templates:generate:NATIONAL", "dashboard:read:NATIONAL", "reports:approve:NATIONAL",
			"comments:read:NATIONAL", "comments:create:NATIONAL", "localities:read:NATIONAL",
			"phases:read:NATIONAL", "meetings:read:NATIONAL", "elos:read:NATIONAL",
		},
	},
	{
		Role: Role{Name: RoleExecutive, Description: "Read-only executive view without personal data", ExecutiveHidePII: true},
		Permissions: []string{
			"task_instances:read:NATIONAL", "dashboard:read:NATIONAL", "localities:read:NATIONAL", "phases:read:NATIONAL",
		},
	},
	{
		Role: Role{Name: RoleLocalityManager, Description: "Manages the tasks of one locality"},
		Permissions: []string{
			"task_instances:read:LOCALITY", "task_instances:update:LOCALITY", "task_instances:assign:LOCALITY",
			"task_templates:read:NATIONAL", "task_templates:generate:LOCALITY", "dashboard:read:LOCALITY",
			"reports:create:LOCALITY", "reports:approve:LOCALITY", "comments:read:LOCALITY", "comments:create:LOCALITY",
			"localities:read:LOCALITY", "localities:update:LOCALITY", "phases:read:NATIONAL",
			"meetings:read:LOCALITY", "meetings:create:LOCALITY", "elos:read:LOCALITY", "elos:create:LOCALITY",
		},
	},
	{
		Role: Role{Name: RoleSpecialist, Description: "Works on the tasks of one specialty"},
		Permissions: []string{
			"task_instances:read:SPECIALTY", "task_instances:update:SPECIALTY", "dashboard:read:SPECIALTY",
			"reports:create:SPECIALTY", "comments:read:SPECIALTY", "comments:create:SPECIALTY", "phases:read:NATIONAL",
		},
	},
	{
		Role: Role{Name: RoleMember, Description: "Sees and updates only the tasks assigned to them"},
		Permissions: []string{
			"task_instances:read:OWN", "task_instances:update:OWN", "dashboard:read:OWN", "reports:create:OWN",
			"comments:read:OWN", "comments:create:OWN", "phases:read:NATIONAL",
		},
	},
}
