package service

import (
	"strings"

	"go-taskboard/internal/model"
	"go-taskboard/internal/rbac"
	"go-taskboard/internal/repository"

	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
)

const maxCommentLength = 4000

type CommentService interface {
	List(user *rbac.User, entityType, entityID string) (*CommentThread, error)
	Add(user *rbac.User, entityType, entityID, body string) (*model.CommentResponse, error)
	MarkSeen(user *rbac.User, entityType, entityID string) error
}

// CommentThread carries the unread count computed against the stored watermark.
type CommentThread struct {
	Items  []model.CommentResponse `json:"items"`
	Unread int                     `json:"unread"`
}

type commentService struct {
	comments repository.CommentRepository
	tasks    repository.TaskRepository
	policy   *bluemonday.Policy
	now      Clock
}

func NewCommentService(comments repository.CommentRepository, tasks repository.TaskRepository, now Clock) CommentService {
	return &commentService{
		comments: comments,
		tasks:    tasks,
		policy:   bluemonday.StrictPolicy(),
		now:      now,
	}
}

// authorize checks the comments scope for action against the thread's entity.
// Task threads follow the task's scope; activity threads only need the grant.
func (s *commentService) authorize(user *rbac.User, entityType, entityID, action string) error {
	scope := rbac.ScopeFor(user, model.ResComments, action)
	if !scope.Allowed {
		return ErrForbidden
	}
	switch entityType {
	case model.EntityTaskInstance:
		id, err := uuid.Parse(entityID)
		if err != nil {
			return ErrNotFound.WithMessage("task instance not found")
		}
		if _, err := s.tasks.FindByID(id, scope); err != nil {
			return lookup(err, "task instance")
		}
	case model.EntityActivity:
		if strings.TrimSpace(entityID) == "" {
			return ErrValidation.WithMessage("activity id is required")
		}
	default:
		return ErrValidation.WithMessage("unknown entity type %q", entityType)
	}
	return nil
}

func (s *commentService) List(user *rbac.User, entityType, entityID string) (*CommentThread, error) {
	if err := s.authorize(user, entityType, entityID, model.ActRead); err != nil {
		return nil, err
	}
	comments, err := s.comments.List(entityType, entityID)
	if err != nil {
		return nil, err
	}
	lastSeen, err := s.comments.LastSeen(user.ID, entityType, entityID)
	if err != nil {
		return nil, err
	}
	unread := 0
	for _, c := range comments {
		if c.CreatedAt.After(lastSeen) {
			unread++
		}
	}
	return &CommentThread{Items: presentComments(user, comments), Unread: unread}, nil
}

// Add stores a sanitized comment and moves the author's watermark past it.
func (s *commentService) Add(user *rbac.User, entityType, entityID, body string) (*model.CommentResponse, error) {
	if err := s.authorize(user, entityType, entityID, model.ActCreate); err != nil {
		return nil, err
	}
	clean := strings.TrimSpace(s.policy.Sanitize(body))
	if clean == "" {
		return nil, ErrValidation.WithMessage("comment body is empty")
	}
	if len(clean) > maxCommentLength {
		return nil, ErrValidation.WithMessage("comment body exceeds %d characters", maxCommentLength)
	}
	c := &model.Comment{EntityType: entityType, EntityID: entityID, AuthorID: user.ID, Body: clean}
	c.CreatedAt = s.now()
	c.CreatedBy = user.ID.String()
	if err := s.comments.Create(c); err != nil {
		return nil, err
	}
	if err := s.comments.MarkSeen(user.ID, entityType, entityID, c.CreatedAt); err != nil {
		return nil, err
	}
	resp := c.ToResponse()
	resp.AuthorName = user.Name
	if hidePII(user) {
		resp.StripPII()
	}
	return &resp, nil
}

func (s *commentService) MarkSeen(user *rbac.User, entityType, entityID string) error {
	if err := s.authorize(user, entityType, entityID, model.ActRead); err != nil {
		return err
	}
	return s.comments.MarkSeen(user.ID, entityType, entityID, s.now())
}
