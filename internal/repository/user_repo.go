package repository

import (
	"time"

	"go-taskboard/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type UserRepository interface {
	FindByEmail(email string) (*model.User, error)
	FindByID(id uuid.UUID) (*model.User, error)
	FindAll(page, pageSize int) ([]model.User, int64, error)
	Create(user *model.User) error
	Update(user *model.User) error
	ReplaceRoles(tx *gorm.DB, user *model.User, roles []model.Role) error
	UpdatePassword(userID uuid.UUID, hashedPassword string) error
	UpdateLastSeen(userID uuid.UUID) error
}

type userRepo struct {
	db *gorm.DB
}

func NewUserRepo(db *gorm.DB) UserRepository {
	return &userRepo{db}
}

func (r *userRepo) FindByEmail(email string) (*model.User, error) {
	var user model.User
	if err := r.db.Preload("Roles.Permissions").Where("email = ?", email).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// FindByID loads the user with every role and permission, as the auth guard needs them.
func (r *userRepo) FindByID(id uuid.UUID) (*model.User, error) {
	var user model.User
	if err := r.db.Preload("Roles.Permissions").First(&user, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepo) FindAll(page, pageSize int) ([]model.User, int64, error) {
	var users []model.User
	var total int64
	if err := r.db.Model(&model.User{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := r.db.Preload("Roles").Order("name").Offset((page - 1) * pageSize).Limit(pageSize).Find(&users).Error
	return users, total, err
}

func (r *userRepo) Create(user *model.User) error {
	return r.db.Omit("Roles.*").Create(user).Error
}

func (r *userRepo) Update(user *model.User) error {
	return r.db.Omit("Roles", "Locality").Save(user).Error
}

func (r *userRepo) ReplaceRoles(tx *gorm.DB, user *model.User, roles []model.Role) error {
	if tx == nil {
		tx = r.db
	}
	if err := tx.Model(user).Association("Roles").Replace(roles); err != nil {
		return err
	}
	return tx.Model(user).Update("executive_hide_pii", user.ExecutiveHidePII).Error
}

func (r *userRepo) UpdatePassword(userID uuid.UUID, hashedPassword string) error {
	return r.db.Model(&model.User{}).Where("id = ?", userID).Update("password", hashedPassword).Error
}

func (r *userRepo) UpdateLastSeen(userID uuid.UUID) error {
	return r.db.Model(&model.User{}).Where("id = ?", userID).Update("last_seen_at", time.Now().UTC()).Error
}
