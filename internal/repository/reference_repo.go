package repository

import (
	"go-taskboard/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ReferenceRepository stores the small lookup tables tasks point at.
type ReferenceRepository interface {
	ListPhases() ([]model.Phase, error)
	FindPhase(id uuid.UUID) (*model.Phase, error)
	CreatePhase(p *model.Phase) error

	ListSpecialties() ([]model.Specialty, error)
	FindSpecialty(id uuid.UUID) (*model.Specialty, error)
	CreateSpecialty(s *model.Specialty) error

	ListEloRoles() ([]model.EloRole, error)
	CreateEloRole(e *model.EloRole) error

	ListElos(localityID *uuid.UUID) ([]model.Elo, error)
	FindElo(id uuid.UUID) (*model.Elo, error)
	CreateElo(e *model.Elo) error

	ListMeetings(localityID *uuid.UUID) ([]model.Meeting, error)
	FindMeeting(id uuid.UUID) (*model.Meeting, error)
	CreateMeeting(m *model.Meeting) error
}

type referenceRepo struct {
	db *gorm.DB
}

func NewReferenceRepo(db *gorm.DB) ReferenceRepository {
	return &referenceRepo{db}
}

func (r *referenceRepo) ListPhases() ([]model.Phase, error) {
	var phases []model.Phase
	err := r.db.Order("display_order ASC, code ASC").Find(&phases).Error
	return phases, err
}

func (r *referenceRepo) FindPhase(id uuid.UUID) (*model.Phase, error) {
	var p model.Phase
	if err := r.db.First(&p, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *referenceRepo) CreatePhase(p *model.Phase) error {
	return r.db.Create(p).Error
}

func (r *referenceRepo) ListSpecialties() ([]model.Specialty, error) {
	var specialties []model.Specialty
	err := r.db.Order("name").Find(&specialties).Error
	return specialties, err
}

func (r *referenceRepo) FindSpecialty(id uuid.UUID) (*model.Specialty, error) {
	var s model.Specialty
	if err := r.db.First(&s, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *referenceRepo) CreateSpecialty(s *model.Specialty) error {
	return r.db.Create(s).Error
}

func (r *referenceRepo) ListEloRoles() ([]model.EloRole, error) {
	var roles []model.EloRole
	err := r.db.Order("name").Find(&roles).Error
	return roles, err
}

func (r *referenceRepo) CreateEloRole(e *model.EloRole) error {
	return r.db.Create(e).Error
}

func (r *referenceRepo) ListElos(localityID *uuid.UUID) ([]model.Elo, error) {
	var elos []model.Elo
	q := r.db.Preload("EloRole")
	if localityID != nil {
		q = q.Where("locality_id = ?", *localityID)
	}
	err := q.Order("name").Find(&elos).Error
	return elos, err
}

func (r *referenceRepo) FindElo(id uuid.UUID) (*model.Elo, error) {
	var e model.Elo
	if err := r.db.Preload("EloRole").First(&e, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *referenceRepo) CreateElo(e *model.Elo) error {
	return r.db.Omit(clause.Associations).Create(e).Error
}

func (r *referenceRepo) ListMeetings(localityID *uuid.UUID) ([]model.Meeting, error) {
	var meetings []model.Meeting
	q := r.db.Model(&model.Meeting{})
	if localityID != nil {
		q = q.Where("locality_id = ?", *localityID)
	}
	err := q.Order("scheduled_at ASC").Find(&meetings).Error
	return meetings, err
}

func (r *referenceRepo) FindMeeting(id uuid.UUID) (*model.Meeting, error) {
	var m model.Meeting
	if err := r.db.First(&m, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *referenceRepo) CreateMeeting(m *model.Meeting) error {
	return r.db.Create(m).Error
}
