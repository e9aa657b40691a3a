package repository

import (
	"time"

	"go-taskboard/internal/model"
	"go-taskboard/internal/rbac"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type LocalityRepository interface {
	FindAll(scope rbac.Scope, command string) ([]model.Locality, error)
	FindByID(id uuid.UUID) (*model.Locality, error)
	FindVisible(id uuid.UUID, scope rbac.Scope) (*model.Locality, error)
	FindByIDs(ids []uuid.UUID) ([]model.Locality, error)
	Create(l *model.Locality) error
	Update(l *model.Locality) error
	RecordRecruits(l *model.Locality, count int, at time.Time, recordedBy string) (*model.RecruitsHistory, error)
	RecruitsHistory(localityIDs []uuid.UUID) ([]model.RecruitsHistory, error)
}

type localityRepo struct {
	db *gorm.DB
}

func NewLocalityRepo(db *gorm.DB) LocalityRepository {
	return &localityRepo{db}
}

func (r *localityRepo) FindAll(scope rbac.Scope, command string) ([]model.Locality, error) {
	var localities []model.Locality
	q := ApplyLocalityScope(r.db.Model(&model.Locality{}), scope)
	if command != "" {
		q = q.Where("command_name = ?", command)
	}
	err := q.Order("code").Find(&localities).Error
	return localities, err
}

func (r *localityRepo) FindByID(id uuid.UUID) (*model.Locality, error) {
	var l model.Locality
	if err := r.db.First(&l, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &l, nil
}

// FindVisible loads id only when scope admits it, otherwise gorm.ErrRecordNotFound.
func (r *localityRepo) FindVisible(id uuid.UUID, scope rbac.Scope) (*model.Locality, error) {
	var l model.Locality
	q := ApplyLocalityScope(r.db.Model(&model.Locality{}), scope)
	if err := q.Where("localities.id = ?", id).First(&l).Error; err != nil {
		return nil, err
	}
	return &l, nil
}

func (r *localityRepo) FindByIDs(ids []uuid.UUID) ([]model.Locality, error) {
	var localities []model.Locality
	if len(ids) == 0 {
		return localities, nil
	}
	err := r.db.Where("id IN ?", ids).Find(&localities).Error
	return localities, err
}

func (r *localityRepo) Create(l *model.Locality) error {
	return r.db.Create(l).Error
}

func (r *localityRepo) Update(l *model.Locality) error {
	return r.db.Save(l).Error
}

// RecordRecruits appends a history row and moves the current counter in one transaction.
func (r *localityRepo) RecordRecruits(l *model.Locality, count int, at time.Time, recordedBy string) (*model.RecruitsHistory, error) {
	entry := &model.RecruitsHistory{LocalityID: l.ID, Count: count, RecordedAt: at.UTC(), RecordedBy: recordedBy}
	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(entry).Error; err != nil {
			return err
		}
		l.RecruitsCurrent = count
		l.UpdatedBy = recordedBy
		return tx.Model(l).Updates(map[string]any{"recruits_current": count, "updated_by": recordedBy}).Error
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

func (r *localityRepo) RecruitsHistory(localityIDs []uuid.UUID) ([]model.RecruitsHistory, error) {
	var rows []model.RecruitsHistory
	if len(localityIDs) == 0 {
		return rows, nil
	}
	err := r.db.Where("locality_id IN ?", localityIDs).Order("recorded_at ASC, id ASC").Find(&rows).Error
	return rows, err
}
