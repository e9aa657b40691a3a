package repository

import (
	"go-taskboard/internal/model"

	"gorm.io/gorm"
)

type AuditFilter struct {
	EntityType string
	EntityID   string
	ActorID    string
}

type AuditRepository interface {
	Create(tx *gorm.DB, entry *model.AuditLog) error
	List(filter AuditFilter, page Page) ([]model.AuditLog, int64, error)
}

type auditRepo struct {
	db *gorm.DB
}

func NewAuditRepo(db *gorm.DB) AuditRepository {
	return &auditRepo{db}
}

func (r *auditRepo) Create(tx *gorm.DB, entry *model.AuditLog) error {
	if tx == nil {
		tx = r.db
	}
	return tx.Create(entry).Error
}

func (r *auditRepo) List(filter AuditFilter, page Page) ([]model.AuditLog, int64, error) {
	query := func() *gorm.DB {
		q := r.db.Model(&model.AuditLog{})
		if filter.EntityType != "" {
			q = q.Where("entity_type = ?", filter.EntityType)
		}
		if filter.EntityID != "" {
			q = q.Where("entity_id = ?", filter.EntityID)
		}
		if filter.ActorID != "" {
			q = q.Where("actor_id = ?", filter.ActorID)
		}
		return q
	}
	var total int64
	if err := query().Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var logs []model.AuditLog
	err := query().Order("created_at DESC, id DESC").Offset((page.Page - 1) * page.PageSize).Limit(page.PageSize).Find(&logs).Error
	return logs, total, err
}
