package repository

import (
	"errors"

	"go-taskboard/internal/model"

	"gorm.io/gorm"
)

type PermissionRepository interface {
	FindAll() ([]model.Permission, error)
	FindByTriple(resource, action string, scope model.Scope) (*model.Permission, error)
	FindByKeys(keys []string) ([]model.Permission, error)
	Create(tx *gorm.DB, perm *model.Permission) error
	SeedDefaults() error
}

type permissionRepo struct {
	db *gorm.DB
}

func NewPermissionRepo(db *gorm.DB) PermissionRepository {
	return &permissionRepo{db}
}

func (r *permissionRepo) FindAll() ([]model.Permission, error) {
	var perms []model.Permission
	if err := r.db.Order("resource, action, scope").Find(&perms).Error; err != nil {
		return nil, err
	}
	return perms, nil
}

func (r *permissionRepo) FindByTriple(resource, action string, scope model.Scope) (*model.Permission, error) {
	var perm model.Permission
	err := r.db.Where("resource = ? AND action = ? AND scope = ?", resource, action, scope).First(&perm).Error
	if err != nil {
		return nil, err
	}
	return &perm, nil
}

// FindByKeys resolves "resource:action:SCOPE" keys. Unknown or malformed keys are skipped;
// callers compare lengths when they need every key to resolve.
func (r *permissionRepo) FindByKeys(keys []string) ([]model.Permission, error) {
	var perms []model.Permission
	for _, key := range keys {
		want, err := model.ParsePermissionKey(key)
		if err != nil {
			continue
		}
		found, err := r.FindByTriple(want.Resource, want.Action, want.Scope)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		perms = append(perms, *found)
	}
	return perms, nil
}

func (r *permissionRepo) Create(tx *gorm.DB, perm *model.Permission) error {
	if tx == nil {
		tx = r.db
	}
	return tx.Create(perm).Error
}

// SeedDefaults creates the default catalog entries that don't exist yet
func (r *permissionRepo) SeedDefaults() error {
	for _, p := range model.DefaultPermissions {
		perm := p
		_, err := r.FindByTriple(perm.Resource, perm.Action, perm.Scope)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			if err := r.db.Create(&perm).Error; err != nil {
				return err
			}
			continue
		}
		if err != nil {
			return err
		}
	}
	return nil
}
