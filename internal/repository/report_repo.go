package repository

import (
	"go-taskboard/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ReportRepository interface {
	Create(r *model.TaskReport) error
	FindByID(id uuid.UUID) (*model.TaskReport, error)
	ListByTask(taskID uuid.UUID) ([]model.TaskReport, error)
	HasApproved(taskID uuid.UUID) (bool, error)
	ApprovedTaskIDs(taskIDs []uuid.UUID) (map[uuid.UUID]bool, error)
	Update(tx *gorm.DB, r *model.TaskReport) error
}

type reportRepo struct {
	db *gorm.DB
}

func NewReportRepo(db *gorm.DB) ReportRepository {
	return &reportRepo{db}
}

func (r *reportRepo) Create(rep *model.TaskReport) error {
	return r.db.Omit(clause.Associations).Create(rep).Error
}

func (r *reportRepo) FindByID(id uuid.UUID) (*model.TaskReport, error) {
	var rep model.TaskReport
	if err := r.db.First(&rep, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &rep, nil
}

func (r *reportRepo) ListByTask(taskID uuid.UUID) ([]model.TaskReport, error) {
	var reps []model.TaskReport
	err := r.db.Where("task_instance_id = ?", taskID).Order("created_at DESC").Find(&reps).Error
	return reps, err
}

func (r *reportRepo) HasApproved(taskID uuid.UUID) (bool, error) {
	var n int64
	err := r.db.Model(&model.TaskReport{}).
		Where("task_instance_id = ? AND status = ?", taskID, model.ReportApproved).
		Count(&n).Error
	return n > 0, err
}

func (r *reportRepo) ApprovedTaskIDs(taskIDs []uuid.UUID) (map[uuid.UUID]bool, error) {
	approved := make(map[uuid.UUID]bool)
	if len(taskIDs) == 0 {
		return approved, nil
	}
	var ids []uuid.UUID
	err := r.db.Model(&model.TaskReport{}).
		Distinct("task_instance_id").
		Where("task_instance_id IN ? AND status = ?", taskIDs, model.ReportApproved).
		Pluck("task_instance_id", &ids).Error
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		approved[id] = true
	}
	return approved, nil
}

func (r *reportRepo) Update(tx *gorm.DB, rep *model.TaskReport) error {
	if tx == nil {
		tx = r.db
	}
	return tx.Omit(clause.Associations).Save(rep).Error
}
