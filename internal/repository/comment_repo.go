package repository

import (
	"errors"
	"time"

	"go-taskboard/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CommentRepository interface {
	Create(c *model.Comment) error
	List(entityType, entityID string) ([]model.Comment, error)
	// LastSeen returns the zero time when the user never opened the thread.
	LastSeen(userID uuid.UUID, entityType, entityID string) (time.Time, error)
	MarkSeen(userID uuid.UUID, entityType, entityID string, at time.Time) error
}

type commentRepo struct {
	db *gorm.DB
}

func NewCommentRepo(db *gorm.DB) CommentRepository {
	return &commentRepo{db}
}

func (r *commentRepo) Create(c *model.Comment) error {
	return r.db.Omit(clause.Associations).Create(c).Error
}

func (r *commentRepo) List(entityType, entityID string) ([]model.Comment, error) {
	var comments []model.Comment
	err := r.db.Preload("Author").
		Where("entity_type = ? AND entity_id = ?", entityType, entityID).
		Order("created_at ASC").
		Find(&comments).Error
	return comments, err
}

func (r *commentRepo) LastSeen(userID uuid.UUID, entityType, entityID string) (time.Time, error) {
	var seen model.CommentSeen
	err := r.db.Where("user_id = ? AND entity_type = ? AND entity_id = ?", userID, entityType, entityID).First(&seen).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	return seen.LastSeenAt, nil
}

func (r *commentRepo) MarkSeen(userID uuid.UUID, entityType, entityID string, at time.Time) error {
	seen := model.CommentSeen{UserID: userID, EntityType: entityType, EntityID: entityID, LastSeenAt: at.UTC()}
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "entity_type"}, {Name: "entity_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"last_seen_at"}),
	}).Create(&seen).Error
}
