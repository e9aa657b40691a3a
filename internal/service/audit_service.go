package service

import (
	"go-taskboard/internal/model"
	"go-taskboard/internal/repository"
	"go-taskboard/internal/rbac"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type AuditService interface {
	// Record writes an audit row inside tx (or standalone when tx is nil) and logs it.
	Record(tx *gorm.DB, actor *rbac.User, action, entityType, entityID string, details map[string]any) error
	List(filter repository.AuditFilter, page, pageSize int) (*PageResult[model.AuditLog], error)
}

// PageResult is the paged list envelope.
type PageResult[T any] struct {
	Items    []T   `json:"items"`
	Page     int   `json:"page"`
	PageSize int   `json:"pageSize"`
	Total    int64 `json:"total"`
}

type auditService struct {
	repo repository.AuditRepository
	log  *zap.Logger
	now  Clock
}

func NewAuditService(repo repository.AuditRepository, log *zap.Logger, now Clock) AuditService {
	return &auditService{repo: repo, log: log, now: now}
}

func (s *auditService) Record(tx *gorm.DB, actor *rbac.User, action, entityType, entityID string, details map[string]any) error {
	entry := &model.AuditLog{
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Details:    details,
		CreatedAt:  s.now(),
	}
	if actor != nil {
		entry.ActorID = actor.ID.String()
	}
	if err := s.repo.Create(tx, entry); err != nil {
		return err
	}
	s.log.Info("audit",
		zap.String("actor", entry.ActorID),
		zap.String("action", action),
		zap.String("entity_type", entityType),
		zap.String("entity_id", entityID),
		zap.Any("details", details),
	)
	return nil
}

func (s *auditService) List(filter repository.AuditFilter, page, pageSize int) (*PageResult[model.AuditLog], error) {
	page, pageSize = NormalizePage(page, pageSize)
	logs, total, err := s.repo.List(filter, repository.Page{Page: page, PageSize: pageSize})
	if err != nil {
		return nil, err
	}
	if logs == nil {
		logs = []model.AuditLog{}
	}
	return &PageResult[model.AuditLog]{Items: logs, Page: page, PageSize: pageSize, Total: total}, nil
}
