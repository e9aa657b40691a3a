package service

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"go-taskboard/internal/model"
	"go-taskboard/internal/rbac"
	"go-taskboard/internal/repository"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// RBACService administers the permission catalog and roles.
type RBACService interface {
	ListRoles() ([]model.Role, error)
	CreateRole(actor *rbac.User, req *RoleRequest) (*model.Role, error)
	SetRolePermissions(actor *rbac.User, roleID uint, keys []string) (*model.Role, error)
	ListPermissions() ([]model.Permission, error)
	CreatePermission(actor *rbac.User, req *PermissionRequest) (*model.Permission, error)
	Export(w io.Writer) error
	Import(actor *rbac.User, r io.Reader) (*ImportResult, error)
	Seed() error
}

type RoleRequest struct {
	Name             string         `json:"name" validate:"required,max=80"`
	Description      string         `json:"description"`
	ExecutiveHidePII bool           `json:"executiveHidePii"`
	Wildcard         bool           `json:"wildcard"`
	Constraints      map[string]any `json:"constraints"`
	Permissions      []string       `json:"permissions"`
}

type PermissionRequest struct {
	Resource    string `json:"resource" validate:"required,max=80"`
	Action      string `json:"action" validate:"required,max=50"`
	Scope       string `json:"scope" validate:"required,perm_scope"`
	Description string `json:"description"`
}

type PermissionKeysRequest struct {
	Permissions []string `json:"permissions" validate:"required"`
}

type ImportRejection struct {
	Kind   string `json:"kind"`
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

type ImportResult struct {
	Created  int               `json:"created"`
	Updated  int               `json:"updated"`
	Rejected []ImportRejection `json:"rejected"`
}

type rbacService struct {
	db    *gorm.DB
	perms repository.PermissionRepository
	roles repository.RoleRepository
	audit AuditService
	log   *zap.Logger
}

func NewRBACService(db *gorm.DB, perms repository.PermissionRepository, roles repository.RoleRepository, audit AuditService, log *zap.Logger) RBACService {
	return &rbacService{db: db, perms: perms, roles: roles, audit: audit, log: log}
}

// Seed creates the default permissions and roles that are missing.
func (s *rbacService) Seed() error {
	if err := s.perms.SeedDefaults(); err != nil {
		return fmt.Errorf("seed permissions: %w", err)
	}
	if err := s.roles.SeedDefaults(s.perms); err != nil {
		return fmt.Errorf("seed roles: %w", err)
	}
	return nil
}

func (s *rbacService) ListRoles() ([]model.Role, error) {
	return s.roles.FindAll()
}

func (s *rbacService) ListPermissions() ([]model.Permission, error) {
	return s.perms.FindAll()
}

// resolveKeys requires every key to name an existing permission.
func (s *rbacService) resolveKeys(keys []string) ([]model.Permission, error) {
	perms, err := s.perms.FindByKeys(keys)
	if err != nil {
		return nil, err
	}
	if len(perms) == len(keys) {
		return perms, nil
	}
	known := make(map[string]bool, len(perms))
	for _, p := range perms {
		known[p.Key()] = true
	}
	var missing []string
	for _, k := range keys {
		if p, err := model.ParsePermissionKey(k); err != nil || !known[p.Key()] {
			missing = append(missing, k)
		}
	}
	if len(missing) == 0 {
		// duplicated keys in the request
		return perms, nil
	}
	return nil, ErrValidation.WithMessage("unknown permissions: %s", strings.Join(missing, ", ")).WithDetails(missing)
}

func (s *rbacService) CreateRole(actor *rbac.User, req *RoleRequest) (*model.Role, error) {
	if err := validate(req); err != nil {
		return nil, err
	}
	if _, err := s.roles.FindByName(req.Name); err == nil {
		return nil, ErrDuplicateRole
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	perms, err := s.resolveKeys(req.Permissions)
	if err != nil {
		return nil, err
	}

	role := &model.Role{
		Name:             req.Name,
		Description:      req.Description,
		ExecutiveHidePII: req.ExecutiveHidePII,
		Wildcard:         req.Wildcard,
		Constraints:      req.Constraints,
	}
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.roles.Create(tx, role); err != nil {
			return duplicate(err, ErrDuplicateRole)
		}
		if len(perms) > 0 {
			if err := s.roles.ReplacePermissions(tx, role, perms); err != nil {
				return err
			}
		}
		return s.audit.Record(tx, actor, "role.create", "role", role.Name, map[string]any{"permissions": req.Permissions})
	})
	if err != nil {
		return nil, err
	}
	return s.roles.FindByID(role.ID)
}

func (s *rbacService) SetRolePermissions(actor *rbac.User, roleID uint, keys []string) (*model.Role, error) {
	role, err := s.roles.FindByID(roleID)
	if err != nil {
		return nil, lookup(err, "role")
	}
	perms, err := s.resolveKeys(keys)
	if err != nil {
		return nil, err
	}
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.roles.ReplacePermissions(tx, role, perms); err != nil {
			return err
		}
		return s.audit.Record(tx, actor, "role.permissions", "role", role.Name, map[string]any{"permissions": keys})
	})
	if err != nil {
		return nil, err
	}
	return s.roles.FindByID(roleID)
}

func (s *rbacService) CreatePermission(actor *rbac.User, req *PermissionRequest) (*model.Permission, error) {
	if err := validate(req); err != nil {
		return nil, err
	}
	scope := model.Scope(req.Scope)
	if _, err := s.perms.FindByTriple(req.Resource, req.Action, scope); err == nil {
		return nil, ErrDuplicatePermission
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	perm := &model.Permission{Resource: req.Resource, Action: req.Action, Scope: scope, Description: req.Description}
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.perms.Create(tx, perm); err != nil {
			return duplicate(err, ErrDuplicatePermission)
		}
		return s.audit.Record(tx, actor, "permission.create", "permission", perm.Key(), nil)
	})
	if err != nil {
		return nil, err
	}
	return perm, nil
}

func (s *rbacService) Export(w io.Writer) error {
	perms, err := s.perms.FindAll()
	if err != nil {
		return err
	}
	roles, err := s.roles.FindAll()
	if err != nil {
		return err
	}
	return rbac.WriteYAML(w, rbac.BuildCatalog(perms, roles))
}

// Import upserts the catalog in one transaction. Permissions come first so roles
// can reference permissions declared in the same file. A role naming an unknown
// permission is rejected as a whole.
func (s *rbacService) Import(actor *rbac.User, r io.Reader) (*ImportResult, error) {
	catalog, err := rbac.ReadYAML(r)
	if err != nil {
		return nil, ErrValidation.WithMessage("%s", err.Error())
	}
	result := &ImportResult{Rejected: []ImportRejection{}}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		for _, cp := range catalog.Permissions {
			var existing model.Permission
			err := tx.Where("resource = ? AND action = ? AND scope = ?", cp.Resource, cp.Action, cp.Scope).First(&existing).Error
			switch {
			case errors.Is(err, gorm.ErrRecordNotFound):
				p := model.Permission{Resource: cp.Resource, Action: cp.Action, Scope: cp.Scope, Description: cp.Description}
				if err := s.perms.Create(tx, &p); err != nil {
					return err
				}
				result.Created++
			case err != nil:
				return err
			case existing.Description != cp.Description && cp.Description != "":
				if err := tx.Model(&existing).Update("description", cp.Description).Error; err != nil {
					return err
				}
				result.Updated++
			}
		}

		for _, cr := range catalog.Roles {
			perms, missing, err := permissionsByKey(tx, cr.Permissions)
			if err != nil {
				return err
			}
			if len(missing) > 0 {
				result.Rejected = append(result.Rejected, ImportRejection{
					Kind: "role", Name: cr.Name, Reason: "unknown permissions: " + strings.Join(missing, ", "),
				})
				continue
			}

			var role model.Role
			err = tx.Where("name = ?", cr.Name).First(&role).Error
			created := errors.Is(err, gorm.ErrRecordNotFound)
			if err != nil && !created {
				return err
			}
			role.Name = cr.Name
			role.Description = cr.Description
			role.ExecutiveHidePII = cr.ExecutiveHidePII
			role.Wildcard = cr.Wildcard
			role.Constraints = cr.Constraints
			if created {
				err = s.roles.Create(tx, &role)
			} else {
				err = s.roles.Update(tx, &role)
			}
			if err != nil {
				return err
			}
			if err := s.roles.ReplacePermissions(tx, &role, perms); err != nil {
				return err
			}
			if created {
				result.Created++
			} else {
				result.Updated++
			}
		}
		return s.audit.Record(tx, actor, "rbac.import", "rbac", "catalog", map[string]any{
			"created":  result.Created,
			"updated":  result.Updated,
			"rejected": len(result.Rejected),
		})
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("rbac catalog imported",
		zap.Int("created", result.Created),
		zap.Int("updated", result.Updated),
		zap.Int("rejected", len(result.Rejected)),
	)
	return result, nil
}

// permissionsByKey resolves keys inside tx; it returns the keys that did not resolve.
func permissionsByKey(tx *gorm.DB, keys []string) ([]model.Permission, []string, error) {
	perms := make([]model.Permission, 0, len(keys))
	var missing []string
	for _, key := range keys {
		want, err := model.ParsePermissionKey(key)
		if err != nil {
			missing = append(missing, key)
			continue
		}
		var p model.Permission
		err = tx.Where("resource = ? AND action = ? AND scope = ?", want.Resource, want.Action, want.Scope).First(&p).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			missing = append(missing, key)
			continue
		}
		if err != nil {
			return nil, nil, err
		}
		perms = append(perms, p)
	}
	return perms, missing, nil
}
