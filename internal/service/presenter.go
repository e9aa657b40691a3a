package service

import (
	"time"

	"go-taskboard/internal/model"
	"go-taskboard/internal/rbac"

	"github.com/google/uuid"
)

// presentTask is the only place task responses are shaped. Assignee identity is
// removed here for users flagged executive_hide_pii, so no endpoint can leak it.
func presentTask(user *rbac.User, t *model.TaskInstance, now time.Time, statuses map[uuid.UUID]model.TaskStatus) model.TaskInstanceResponse {
	resp := t.ToResponse(now, statuses)
	if hidePII(user) {
		resp.StripPII()
	}
	return resp
}

func presentTasks(user *rbac.User, tasks []model.TaskInstance, now time.Time, statuses map[uuid.UUID]model.TaskStatus) []model.TaskInstanceResponse {
	out := make([]model.TaskInstanceResponse, 0, len(tasks))
	for i := range tasks {
		out = append(out, presentTask(user, &tasks[i], now, statuses))
	}
	return out
}

func presentComments(user *rbac.User, comments []model.Comment) []model.CommentResponse {
	out := make([]model.CommentResponse, 0, len(comments))
	for i := range comments {
		resp := comments[i].ToResponse()
		if hidePII(user) {
			resp.StripPII()
		}
		out = append(out, resp)
	}
	return out
}

func presentReport(user *rbac.User, r *model.TaskReport) *model.TaskReportResponse {
	resp := r.ToResponse()
	if hidePII(user) {
		resp.StripPII()
	}
	return &resp
}

func presentReports(user *rbac.User, reports []model.TaskReport) []model.TaskReportResponse {
	out := make([]model.TaskReportResponse, 0, len(reports))
	for i := range reports {
		out = append(out, *presentReport(user, &reports[i]))
	}
	return out
}

func hidePII(user *rbac.User) bool {
	return user != nil && user.ExecutiveHidePII
}
