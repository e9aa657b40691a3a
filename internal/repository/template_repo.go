package repository

import (
	"go-taskboard/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type TemplateFilter struct {
	PhaseID     *uuid.UUID
	SpecialtyID *uuid.UUID
}

type TemplateRepository interface {
	FindAll(filter TemplateFilter) ([]model.TaskTemplate, error)
	FindByID(id uuid.UUID) (*model.TaskTemplate, error)
	FindDuplicate(t *model.TaskTemplate) (*model.TaskTemplate, error)
	Create(t *model.TaskTemplate) error
	Update(t *model.TaskTemplate) error
	Delete(t *model.TaskTemplate, deletedBy string) error
}

type templateRepo struct {
	db *gorm.DB
}

func NewTemplateRepo(db *gorm.DB) TemplateRepository {
	return &templateRepo{db}
}

func (r *templateRepo) FindAll(filter TemplateFilter) ([]model.TaskTemplate, error) {
	var templates []model.TaskTemplate
	q := r.db.Preload("Phase").Preload("Specialty")
	if filter.PhaseID != nil {
		q = q.Where("phase_id = ?", *filter.PhaseID)
	}
	if filter.SpecialtyID != nil {
		q = q.Where("specialty_id = ?", *filter.SpecialtyID)
	}
	err := q.Order("title").Find(&templates).Error
	return templates, err
}

func (r *templateRepo) FindByID(id uuid.UUID) (*model.TaskTemplate, error) {
	var t model.TaskTemplate
	if err := r.db.Preload("Phase").Preload("Specialty").First(&t, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

func nullableEq(q *gorm.DB, column string, v *uuid.UUID) *gorm.DB {
	if v == nil {
		return q.Where(column + " IS NULL")
	}
	return q.Where(column+" = ?", *v)
}

// FindDuplicate looks for another template with the same (title, phase, specialty, eloRole).
// NULL specialty and elo role compare equal to each other.
func (r *templateRepo) FindDuplicate(t *model.TaskTemplate) (*model.TaskTemplate, error) {
	q := r.db.Where("title = ? AND phase_id = ?", t.Title, t.PhaseID)
	q = nullableEq(q, "specialty_id", t.SpecialtyID)
	q = nullableEq(q, "elo_role_id", t.EloRoleID)
	if t.ID != uuid.Nil {
		q = q.Where("id <> ?", t.ID)
	}
	var found model.TaskTemplate
	if err := q.First(&found).Error; err != nil {
		return nil, err
	}
	return &found, nil
}

func (r *templateRepo) Create(t *model.TaskTemplate) error {
	return r.db.Omit(clause.Associations).Create(t).Error
}

func (r *templateRepo) Update(t *model.TaskTemplate) error {
	return r.db.Omit(clause.Associations).Save(t).Error
}

func (r *templateRepo) Delete(t *model.TaskTemplate, deletedBy string) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(t).Update("deleted_by", deletedBy).Error; err != nil {
			return err
		}
		return tx.Delete(t).Error
	})
}
