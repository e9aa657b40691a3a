package repository

import (
	"errors"

	"go-taskboard/internal/model"

	"gorm.io/gorm"
)

type RoleRepository interface {
	FindAll() ([]model.Role, error)
	FindByID(id uint) (*model.Role, error)
	FindByName(name string) (*model.Role, error)
	FindByNames(names []string) ([]model.Role, error)
	Create(tx *gorm.DB, role *model.Role) error
	Update(tx *gorm.DB, role *model.Role) error
	ReplacePermissions(tx *gorm.DB, role *model.Role, perms []model.Permission) error
	SeedDefaults(perms PermissionRepository) error
}

type roleRepo struct {
	db *gorm.DB
}

func NewRoleRepo(db *gorm.DB) RoleRepository {
	return &roleRepo{db: db}
}

func (r *roleRepo) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *roleRepo) FindAll() ([]model.Role, error) {
	var roles []model.Role
	err := r.db.Preload("Permissions").Order("name").Find(&roles).Error
	return roles, err
}

func (r *roleRepo) FindByID(id uint) (*model.Role, error) {
	var role model.Role
	err := r.db.Preload("Permissions").First(&role, id).Error
	if err != nil {
		return nil, err
	}
	return &role, nil
}

func (r *roleRepo) FindByName(name string) (*model.Role, error) {
	var role model.Role
	err := r.db.Preload("Permissions").Where("name = ?", name).First(&role).Error
	if err != nil {
		return nil, err
	}
	return &role, nil
}

func (r *roleRepo) FindByNames(names []string) ([]model.Role, error) {
	var roles []model.Role
	if len(names) == 0 {
		return roles, nil
	}
	err := r.db.Preload("Permissions").Where("name IN ?", names).Find(&roles).Error
	return roles, err
}

func (r *roleRepo) Create(tx *gorm.DB, role *model.Role) error {
	return r.conn(tx).Omit("Permissions.*").Create(role).Error
}

func (r *roleRepo) Update(tx *gorm.DB, role *model.Role) error {
	return r.conn(tx).Omit("Permissions").Save(role).Error
}

func (r *roleRepo) ReplacePermissions(tx *gorm.DB, role *model.Role, perms []model.Permission) error {
	return r.conn(tx).Model(role).Association("Permissions").Replace(perms)
}

// SeedDefaults creates missing default roles and gives permission-less ones their default set.
func (r *roleRepo) SeedDefaults(perms PermissionRepository) error {
	for _, def := range model.DefaultRoles {
		role, err := r.FindByName(def.Role.Name)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			created := def.Role
			if err := r.Create(nil, &created); err != nil {
				return err
			}
			role = &created
		} else if err != nil {
			return err
		}

		if len(role.Permissions) > 0 || len(def.Permissions) == 0 {
			continue
		}
		granted, err := perms.FindByKeys(def.Permissions)
		if err != nil {
			return err
		}
		if err := r.ReplacePermissions(nil, role, granted); err != nil {
			return err
		}
	}
	return nil
}
