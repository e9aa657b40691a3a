package service_test

import (
	"testing"
	"time"

	"go-taskboard/internal/model"
	"go-taskboard/internal/service"
)

func TestCommentUnreadWatermark(t *testing.T) {
	env := newTestEnv(t)
	memberID := env.Member.ID
	kind := model.AssigneeUser
	task := env.Task(t, func(task *model.TaskInstance) {
		task.AssigneeType = &kind
		task.AssignedToID = &memberID
	})
	id := task.ID.String()
	manager := env.Principal(t, env.Manager)
	member := env.Principal(t, env.Member)
	national := env.Principal(t, env.National)

	if _, err := env.Comments.Add(manager, model.EntityTaskInstance, id, "Venue confirmed"); err != nil {
		t.Fatalf("add: %v", err)
	}
	env.Clock.Advance(time.Minute)
	if _, err := env.Comments.Add(member, model.EntityTaskInstance, id, "Thanks"); err != nil {
		t.Fatalf("add: %v", err)
	}

	thread, err := env.Comments.List(manager, model.EntityTaskInstance, id)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(thread.Items) != 2 || thread.Items[0].Body != "Venue confirmed" || thread.Unread != 1 {
		t.Fatalf("manager thread = %+v", thread)
	}
	thread, _ = env.Comments.List(member, model.EntityTaskInstance, id)
	if thread.Unread != 0 {
		t.Fatalf("author must not see their own comment as unread, got %d", thread.Unread)
	}
	thread, _ = env.Comments.List(national, model.EntityTaskInstance, id)
	if thread.Unread != 2 {
		t.Fatalf("a reader who never opened the thread has everything unread, got %d", thread.Unread)
	}

	if err := env.Comments.MarkSeen(national, model.EntityTaskInstance, id); err != nil {
		t.Fatalf("mark seen: %v", err)
	}
	thread, _ = env.Comments.List(national, model.EntityTaskInstance, id)
	if thread.Unread != 0 {
		t.Fatalf("expected no unread after mark seen, got %d", thread.Unread)
	}

	env.Clock.Advance(time.Minute)
	if _, err := env.Comments.Add(manager, model.EntityTaskInstance, id, "Keys picked up"); err != nil {
		t.Fatalf("add: %v", err)
	}
	thread, _ = env.Comments.List(national, model.EntityTaskInstance, id)
	if thread.Unread != 1 {
		t.Fatalf("expected the new comment to be unread, got %d", thread.Unread)
	}
}

func TestCommentBodyIsSanitized(t *testing.T) {
	env := newTestEnv(t)
	task := env.Task(t, nil)
	manager := env.Principal(t, env.Manager)

	c, err := env.Comments.Add(manager, model.EntityTaskInstance, task.ID.String(), `<script>alert(1)</script>hi <b>there</b>`)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if c.Body != "hi there" {
		t.Fatalf("body = %q", c.Body)
	}
	if c.AuthorName != env.Manager.Name {
		t.Fatalf("author name = %q", c.AuthorName)
	}

	_, err = env.Comments.Add(manager, model.EntityTaskInstance, task.ID.String(), "<b> </b>")
	expectCode(t, err, service.ErrValidation.Code)
}

func TestCommentAccess(t *testing.T) {
	env := newTestEnv(t)
	foreign := env.Task(t, func(task *model.TaskInstance) { task.LocalityID = env.LocalityB.ID })
	manager := env.Principal(t, env.Manager)

	_, err := env.Comments.List(manager, model.EntityTaskInstance, foreign.ID.String())
	expectCode(t, err, service.ErrNotFound.Code)
	_, err = env.Comments.Add(manager, model.EntityTaskInstance, "not-a-uuid", "hello")
	expectCode(t, err, service.ErrNotFound.Code)
	_, err = env.Comments.List(manager, "invoice", "1")
	expectCode(t, err, service.ErrValidation.Code)
	_, err = env.Comments.List(env.Principal(t, env.Executive), model.EntityActivity, "kickoff")
	expectCode(t, err, service.ErrForbidden.Code)

	if _, err := env.Comments.Add(manager, model.EntityActivity, "kickoff", "See you Monday"); err != nil {
		t.Fatalf("activity comment: %v", err)
	}
	thread, err := env.Comments.List(env.Principal(t, env.Specialist), model.EntityActivity, "kickoff")
	if err != nil {
		t.Fatalf("list activity: %v", err)
	}
	if len(thread.Items) != 1 || thread.Unread != 1 {
		t.Fatalf("unexpected activity thread %+v", thread)
	}
}
