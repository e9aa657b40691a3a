package service

import (
	"errors"
	"fmt"
	"strings"

	"go-taskboard/internal/model"
	"go-taskboard/internal/rbac"
	"go-taskboard/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type UserService interface {
	List(page, pageSize int) (*PageResult[model.UserResponse], error)
	Get(id uuid.UUID) (*model.UserResponse, error)
	Create(actor *rbac.User, req *CreateUserRequest) (*model.UserResponse, error)
	Update(actor *rbac.User, id uuid.UUID, req *UpdateUserRequest) (*model.UserResponse, error)
	UpdateRoles(actor *rbac.User, id uuid.UUID, roleNames []string) (*model.UserResponse, error)
	ResetPassword(actor *rbac.User, id uuid.UUID, password string) error
	EnsureAdmin(email, password string) (bool, error)
}

type CreateUserRequest struct {
	Name        string     `json:"name" validate:"required"`
	Email       string     `json:"email" validate:"required,email"`
	Password    string     `json:"password" validate:"required,min=8"`
	LocalityID  *uuid.UUID `json:"localityId"`
	SpecialtyID *uuid.UUID `json:"specialtyId"`
	Roles       []string   `json:"roles"`
}

type UpdateUserRequest struct {
	Name        *string    `json:"name" validate:"omitempty,min=1"`
	LocalityID  *uuid.UUID `json:"localityId"`
	SpecialtyID *uuid.UUID `json:"specialtyId"`
	IsActive    *bool      `json:"isActive"`
	// ClearLocality and ClearSpecialty unset the attribute; a nil id alone means "unchanged".
	ClearLocality  bool `json:"clearLocality"`
	ClearSpecialty bool `json:"clearSpecialty"`
}

type RolesRequest struct {
	Roles []string `json:"roles" validate:"required"`
}

type PasswordRequest struct {
	Password string `json:"password" validate:"required,min=8"`
}

type userService struct {
	db         *gorm.DB
	users      repository.UserRepository
	roles      repository.RoleRepository
	localities repository.LocalityRepository
	refs       repository.ReferenceRepository
	audit      AuditService
}

func NewUserService(
	db *gorm.DB,
	users repository.UserRepository,
	roles repository.RoleRepository,
	localities repository.LocalityRepository,
	refs repository.ReferenceRepository,
	audit AuditService,
) UserService {
	return &userService{db: db, users: users, roles: roles, localities: localities, refs: refs, audit: audit}
}

func (s *userService) List(page, pageSize int) (*PageResult[model.UserResponse], error) {
	page, pageSize = NormalizePage(page, pageSize)
	users, total, err := s.users.FindAll(page, pageSize)
	if err != nil {
		return nil, err
	}
	items := make([]model.UserResponse, len(users))
	for i := range users {
		items[i] = users[i].ToResponse()
	}
	return &PageResult[model.UserResponse]{Items: items, Page: page, PageSize: pageSize, Total: total}, nil
}

func (s *userService) Get(id uuid.UUID) (*model.UserResponse, error) {
	u, err := s.users.FindByID(id)
	if err != nil {
		return nil, lookup(err, "user")
	}
	resp := u.ToResponse()
	return &resp, nil
}

// resolveRoles loads every named role, failing on the first unknown name.
func (s *userService) resolveRoles(names []string) ([]model.Role, error) {
	if len(names) == 0 {
		return []model.Role{}, nil
	}
	roles, err := s.roles.FindByNames(names)
	if err != nil {
		return nil, err
	}
	found := make(map[string]bool, len(roles))
	for _, r := range roles {
		found[r.Name] = true
	}
	for _, n := range names {
		if !found[n] {
			return nil, ErrValidation.WithMessage("unknown role %q", n)
		}
	}
	return roles, nil
}

func (s *userService) checkAttributes(localityID, specialtyID *uuid.UUID) error {
	if localityID != nil {
		if _, err := s.localities.FindByID(*localityID); err != nil {
			return lookup(err, "locality")
		}
	}
	if specialtyID != nil {
		if _, err := s.refs.FindSpecialty(*specialtyID); err != nil {
			return lookup(err, "specialty")
		}
	}
	return nil
}

func (s *userService) Create(actor *rbac.User, req *CreateUserRequest) (*model.UserResponse, error) {
	if err := validate(req); err != nil {
		return nil, err
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if existing, err := s.users.FindByEmail(email); err == nil && existing != nil {
		return nil, ErrDuplicateEmail
	} else if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	if err := s.checkAttributes(req.LocalityID, req.SpecialtyID); err != nil {
		return nil, err
	}
	roles, err := s.resolveRoles(req.Roles)
	if err != nil {
		return nil, err
	}

	user := &model.User{
		Name:             req.Name,
		Email:            email,
		LocalityID:       req.LocalityID,
		SpecialtyID:      req.SpecialtyID,
		IsActive:         true,
		ExecutiveHidePII: model.HidePIIFromRoles(roles),
	}
	user.CreatedBy = actor.ID.String()
	user.UpdatedBy = actor.ID.String()
	if err := user.SetPassword(req.Password); err != nil {
		return nil, err
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Roles.*").Create(user).Error; err != nil {
			return duplicate(err, ErrDuplicateEmail)
		}
		if len(roles) > 0 {
			if err := s.users.ReplaceRoles(tx, user, roles); err != nil {
				return err
			}
		}
		return s.audit.Record(tx, actor, "user.create", "user", user.ID.String(),
			map[string]any{"email": user.Email, "roles": req.Roles})
	})
	if err != nil {
		return nil, err
	}
	return s.Get(user.ID)
}

func (s *userService) Update(actor *rbac.User, id uuid.UUID, req *UpdateUserRequest) (*model.UserResponse, error) {
	if err := validate(req); err != nil {
		return nil, err
	}
	user, err := s.users.FindByID(id)
	if err != nil {
		return nil, lookup(err, "user")
	}
	if err := s.checkAttributes(req.LocalityID, req.SpecialtyID); err != nil {
		return nil, err
	}

	if req.Name != nil {
		user.Name = *req.Name
	}
	switch {
	case req.ClearLocality:
		user.LocalityID = nil
	case req.LocalityID != nil:
		user.LocalityID = req.LocalityID
	}
	switch {
	case req.ClearSpecialty:
		user.SpecialtyID = nil
	case req.SpecialtyID != nil:
		user.SpecialtyID = req.SpecialtyID
	}
	if req.IsActive != nil {
		user.IsActive = *req.IsActive
	}
	user.UpdatedBy = actor.ID.String()
	if err := s.users.Update(user); err != nil {
		return nil, err
	}
	if err := s.audit.Record(nil, actor, "user.update", "user", id.String(), map[string]any{"isActive": user.IsActive}); err != nil {
		return nil, err
	}
	return s.Get(id)
}

// UpdateRoles replaces the role set and recomputes executive_hide_pii from it.
func (s *userService) UpdateRoles(actor *rbac.User, id uuid.UUID, roleNames []string) (*model.UserResponse, error) {
	user, err := s.users.FindByID(id)
	if err != nil {
		return nil, lookup(err, "user")
	}
	roles, err := s.resolveRoles(roleNames)
	if err != nil {
		return nil, err
	}
	user.ExecutiveHidePII = model.HidePIIFromRoles(roles)

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.users.ReplaceRoles(tx, user, roles); err != nil {
			return err
		}
		return s.audit.Record(tx, actor, "user.roles", "user", id.String(), map[string]any{"roles": roleNames})
	})
	if err != nil {
		return nil, err
	}
	return s.Get(id)
}

func (s *userService) ResetPassword(actor *rbac.User, id uuid.UUID, password string) error {
	if err := validate(&PasswordRequest{Password: password}); err != nil {
		return err
	}
	user, err := s.users.FindByID(id)
	if err != nil {
		return lookup(err, "user")
	}
	if err := user.SetPassword(password); err != nil {
		return err
	}
	if err := s.users.UpdatePassword(id, user.Password); err != nil {
		return err
	}
	return s.audit.Record(nil, actor, "user.password_reset", "user", id.String(), nil)
}

// EnsureAdmin creates an active ADMIN user for email unless one exists. It
// reports whether a user was created.
func (s *userService) EnsureAdmin(email, password string) (bool, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if _, err := s.users.FindByEmail(email); err == nil {
		return false, nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return false, err
	}
	role, err := s.roles.FindByName(model.RoleAdmin)
	if err != nil {
		return false, fmt.Errorf("find %s role: %w", model.RoleAdmin, err)
	}
	admin := &model.User{Name: "Administrator", Email: email, IsActive: true}
	admin.CreatedBy = "system"
	admin.UpdatedBy = "system"
	if err := admin.SetPassword(password); err != nil {
		return false, err
	}
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Roles.*").Create(admin).Error; err != nil {
			return err
		}
		return s.users.ReplaceRoles(tx, admin, []model.Role{*role})
	})
	if err != nil {
		return false, err
	}
	return true, nil
}
