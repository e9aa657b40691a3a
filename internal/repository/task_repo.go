package repository

import (
	"time"

	"go-taskboard/internal/model"
	"go-taskboard/internal/rbac"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TaskFilter is the typed filter accepted by task listings. Nil fields are ignored.
type TaskFilter struct {
	LocalityID *uuid.UUID
	PhaseID    *uuid.UUID
	TemplateID *uuid.UUID
	Status     *model.TaskStatus
	AssigneeID *uuid.UUID
	DueFrom    *time.Time
	DueTo      *time.Time
	// Command matches the owning locality's command name.
	Command string
}

// Page is a 1-based page request.
type Page struct {
	Page     int
	PageSize int
}

// GenerationKey is the semantic identity of a generated instance.
type GenerationKey struct {
	LocalityID uuid.UUID
	DueDate    time.Time
}

type TaskRepository interface {
	List(filter TaskFilter, scope rbac.Scope, page Page) ([]model.TaskInstance, int64, error)
	FindAll(filter TaskFilter, scope rbac.Scope) ([]model.TaskInstance, error)
	FindByID(id uuid.UUID, scope rbac.Scope) (*model.TaskInstance, error)
	FindByIDs(ids []uuid.UUID) ([]model.TaskInstance, error)
	Statuses(ids []uuid.UUID) (map[uuid.UUID]model.TaskStatus, error)
	DependencyStatuses(tasks []model.TaskInstance) (map[uuid.UUID]model.TaskStatus, error)
	GenerationKeys(templateID uuid.UUID, localityIDs []uuid.UUID) ([]GenerationKey, error)
	Save(tx *gorm.DB, task *model.TaskInstance) error
	CreateBatch(tx *gorm.DB, tasks []model.TaskInstance) error
	SoftDelete(tx *gorm.DB, task *model.TaskInstance, deletedBy string) error
}

type taskRepo struct {
	db *gorm.DB
}

func NewTaskRepo(db *gorm.DB) TaskRepository {
	return &taskRepo{db}
}

func (r *taskRepo) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *taskRepo) filtered(filter TaskFilter, scope rbac.Scope) *gorm.DB {
	q := ApplyTaskScope(r.db.Model(&model.TaskInstance{}), scope)
	if filter.LocalityID != nil {
		q = q.Where("task_instances.locality_id = ?", *filter.LocalityID)
	}
	if filter.TemplateID != nil {
		q = q.Where("task_instances.template_id = ?", *filter.TemplateID)
	}
	if filter.PhaseID != nil {
		q = q.Where("EXISTS (SELECT 1 FROM task_templates tp WHERE tp.id = task_instances.template_id AND tp.phase_id = ?)", *filter.PhaseID)
	}
	if filter.Status != nil {
		q = q.Where("task_instances.status = ?", *filter.Status)
	}
	if filter.AssigneeID != nil {
		q = q.Where("(task_instances.assigned_to_id = ? OR task_instances.assigned_elo_id = ?)", *filter.AssigneeID, *filter.AssigneeID)
	}
	if filter.DueFrom != nil {
		q = q.Where("task_instances.due_date >= ?", filter.DueFrom.UTC())
	}
	if filter.DueTo != nil {
		q = q.Where("task_instances.due_date <= ?", filter.DueTo.UTC())
	}
	if filter.Command != "" {
		q = q.Where("EXISTS (SELECT 1 FROM localities lc WHERE lc.id = task_instances.locality_id AND lc.command_name = ?)", filter.Command)
	}
	return q
}

func withRelations(q *gorm.DB) *gorm.DB {
	return q.Preload("Template.Phase").Preload("Locality").Preload("AssignedTo")
}

func (r *taskRepo) List(filter TaskFilter, scope rbac.Scope, page Page) ([]model.TaskInstance, int64, error) {
	var total int64
	if err := r.filtered(filter, scope).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var tasks []model.TaskInstance
	err := withRelations(r.filtered(filter, scope)).
		Order("task_instances.due_date ASC, task_instances.id ASC").
		Offset((page.Page - 1) * page.PageSize).
		Limit(page.PageSize).
		Find(&tasks).Error
	return tasks, total, err
}

func (r *taskRepo) FindAll(filter TaskFilter, scope rbac.Scope) ([]model.TaskInstance, error) {
	var tasks []model.TaskInstance
	err := withRelations(r.filtered(filter, scope)).
		Order("task_instances.due_date ASC, task_instances.id ASC").
		Find(&tasks).Error
	return tasks, err
}

// FindByID returns gorm.ErrRecordNotFound both for missing rows and rows outside scope.
func (r *taskRepo) FindByID(id uuid.UUID, scope rbac.Scope) (*model.TaskInstance, error) {
	var task model.TaskInstance
	q := ApplyTaskScope(r.db.Model(&model.TaskInstance{}), scope)
	if err := withRelations(q).First(&task, "task_instances.id = ?", id).Error; err != nil {
		return nil, err
	}
	return &task, nil
}

func (r *taskRepo) FindByIDs(ids []uuid.UUID) ([]model.TaskInstance, error) {
	var tasks []model.TaskInstance
	if len(ids) == 0 {
		return tasks, nil
	}
	err := withRelations(r.db).Where("id IN ?", ids).Find(&tasks).Error
	return tasks, err
}

func (r *taskRepo) Statuses(ids []uuid.UUID) (map[uuid.UUID]model.TaskStatus, error) {
	statuses := make(map[uuid.UUID]model.TaskStatus, len(ids))
	if len(ids) == 0 {
		return statuses, nil
	}
	var rows []struct {
		ID     uuid.UUID
		Status model.TaskStatus
	}
	if err := r.db.Model(&model.TaskInstance{}).Select("id, status").Where("id IN ?", ids).Scan(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		statuses[row.ID] = row.Status
	}
	return statuses, nil
}

// DependencyStatuses resolves every blockedBy id referenced by tasks. Dependencies are
// looked up without scope: a hidden predecessor still blocks.
func (r *taskRepo) DependencyStatuses(tasks []model.TaskInstance) (map[uuid.UUID]model.TaskStatus, error) {
	seen := make(map[uuid.UUID]bool)
	var ids []uuid.UUID
	for _, t := range tasks {
		for _, id := range t.BlockedByIDs {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
	return r.Statuses(ids)
}

func (r *taskRepo) GenerationKeys(templateID uuid.UUID, localityIDs []uuid.UUID) ([]GenerationKey, error) {
	var keys []GenerationKey
	if len(localityIDs) == 0 {
		return keys, nil
	}
	err := r.db.Model(&model.TaskInstance{}).
		Select("locality_id, due_date").
		Where("template_id = ? AND locality_id IN ?", templateID, localityIDs).
		Scan(&keys).Error
	return keys, err
}

func (r *taskRepo) Save(tx *gorm.DB, task *model.TaskInstance) error {
	return r.conn(tx).Omit(clause.Associations).Save(task).Error
}

func (r *taskRepo) CreateBatch(tx *gorm.DB, tasks []model.TaskInstance) error {
	if len(tasks) == 0 {
		return nil
	}
	return r.conn(tx).Omit(clause.Associations).Create(&tasks).Error
}

func (r *taskRepo) SoftDelete(tx *gorm.DB, task *model.TaskInstance, deletedBy string) error {
	db := r.conn(tx)
	if err := db.Model(task).Update("deleted_by", deletedBy).Error; err != nil {
		return err
	}
	return db.Delete(task).Error
}
