package service_test

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"go-taskboard/internal/events"
	"go-taskboard/internal/model"
	"go-taskboard/internal/repository"
	"go-taskboard/internal/service"
	"go-taskboard/internal/testutil"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

func TestDoneGatesRunInOrder(t *testing.T) {
	env := newTestEnv(t)
	manager := env.Principal(t, env.Manager)

	dep := env.Task(t, func(task *model.TaskInstance) { task.Status = model.StatusInProgress })
	task := env.Task(t, func(task *model.TaskInstance) {
		task.ReportRequired = true
		task.BlockedByIDs = datatypes.JSONSlice[uuid.UUID]{dep.ID}
	})

	_, err := env.Tasks.UpdateStatus(manager, task.ID, "DONE")
	expectCode(t, err, service.ErrReportRequired.Code)

	rep, err := env.Reports.Submit(manager, task.ID, &service.ReportRequest{Summary: "<b>Venue booked</b>"})
	if err != nil {
		t.Fatalf("submit report: %v", err)
	}
	if rep.Summary != "Venue booked" || rep.Status != model.ReportPending {
		t.Fatalf("unexpected report %+v", rep)
	}
	// a pending report does not open the gate
	_, err = env.Tasks.UpdateStatus(manager, task.ID, "DONE")
	expectCode(t, err, service.ErrReportRequired.Code)

	if _, err := env.Reports.Approve(manager, rep.ID, "ok"); err != nil {
		t.Fatalf("approve: %v", err)
	}
	_, err = env.Tasks.UpdateStatus(manager, task.ID, "DONE")
	expectCode(t, err, service.ErrBlockedByDependency.Code)

	if _, err := env.Tasks.UpdateStatus(manager, dep.ID, "DONE"); err != nil {
		t.Fatalf("close dependency: %v", err)
	}
	resp, err := env.Tasks.UpdateStatus(manager, task.ID, "done")
	if err != nil {
		t.Fatalf("close task: %v", err)
	}
	if resp.Status != model.StatusDone || resp.CompletedAt == nil || !resp.CompletedAt.Equal(env.Clock.Now()) {
		t.Fatalf("expected DONE with completion time, got %+v", resp)
	}
	if resp.IsBlocked || resp.IsLate {
		t.Fatalf("closed task must not be flagged: %+v", resp)
	}

	last := env.Events.Events[len(env.Events.Events)-1]
	if last.Type != events.TaskUpdated || last.TaskID != task.ID || last.Status != model.StatusDone {
		t.Fatalf("unexpected last event %+v", last)
	}
}

func TestReviewedReportCannotBeReviewedAgain(t *testing.T) {
	env := newTestEnv(t)
	manager := env.Principal(t, env.Manager)
	task := env.Task(t, func(task *model.TaskInstance) { task.ReportRequired = true })

	rep, err := env.Reports.Submit(manager, task.ID, &service.ReportRequest{Summary: "first"})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := env.Reports.Reject(manager, rep.ID, "missing photos"); err != nil {
		t.Fatalf("reject: %v", err)
	}
	_, err = env.Reports.Approve(manager, rep.ID, "")
	expectCode(t, err, service.ErrInvalidTransition.Code)

	_, err = env.Tasks.UpdateStatus(manager, task.ID, "DONE")
	expectCode(t, err, service.ErrReportRequired.Code)

	reports, err := env.Reports.List(manager, task.ID)
	if err != nil || len(reports) != 1 || reports[0].Status != model.ReportRejected {
		t.Fatalf("list reports: %v %+v", err, reports)
	}

	member := env.Principal(t, env.Member)
	_, err = env.Reports.Submit(member, task.ID, &service.ReportRequest{Summary: "not mine"})
	expectCode(t, err, service.ErrNotFound.Code)
}

func TestReportsHideAuthorsFromExecutives(t *testing.T) {
	env := newTestEnv(t)
	task := env.Task(t, func(task *model.TaskInstance) { task.ReportRequired = true })
	env.Approve(t, task)

	reports, err := env.Reports.List(env.Principal(t, env.Executive), task.ID)
	if err != nil || len(reports) != 1 {
		t.Fatalf("list as executive: %v %+v", err, reports)
	}
	if reports[0].AuthorID != nil || reports[0].ReviewedByID != nil {
		t.Fatalf("report identities leaked: %+v", reports[0])
	}
	raw, err := json.Marshal(reports)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	for _, id := range []string{env.Manager.ID.String(), env.Admin.ID.String()} {
		if strings.Contains(string(raw), id) {
			t.Fatalf("user id %s in executive payload: %s", id, raw)
		}
	}

	reports, err = env.Reports.List(env.Principal(t, env.Manager), task.ID)
	if err != nil || reports[0].AuthorID == nil || *reports[0].AuthorID != env.Manager.ID {
		t.Fatalf("manager must see the author: %v %+v", err, reports)
	}
}

func TestStatusMachine(t *testing.T) {
	env := newTestEnv(t)
	manager := env.Principal(t, env.Manager)
	task := env.Task(t, nil)

	_, err := env.Tasks.UpdateStatus(manager, task.ID, "FINISHED")
	expectCode(t, err, service.ErrInvalidStatus.Code)

	if _, err := env.Tasks.UpdateStatus(manager, task.ID, "BLOCKED"); err != nil {
		t.Fatalf("block: %v", err)
	}
	_, err = env.Tasks.UpdateStatus(manager, task.ID, "IN_PROGRESS")
	expectCode(t, err, service.ErrInvalidTransition.Code)

	resp, err := env.Tasks.UpdateStatus(manager, task.ID, "NOT_STARTED")
	if err != nil || resp.Status != model.StatusNotStarted {
		t.Fatalf("unblock to prior status: %v", err)
	}
	if _, err := env.Tasks.UpdateStatus(manager, task.ID, "IN_PROGRESS"); err != nil {
		t.Fatalf("skip forward: %v", err)
	}
	_, err = env.Tasks.UpdateStatus(manager, task.ID, "STARTED")
	expectCode(t, err, service.ErrInvalidTransition.Code)

	if _, err := env.Tasks.UpdateStatus(manager, task.ID, "DONE"); err != nil {
		t.Fatalf("done: %v", err)
	}
	resp, err = env.Tasks.UpdateStatus(manager, task.ID, "IN_PROGRESS")
	if err != nil || resp.CompletedAt != nil {
		t.Fatalf("reopen must clear completion: %v %+v", err, resp)
	}
}

func TestUpdateProgressClampsWithoutChangingStatus(t *testing.T) {
	env := newTestEnv(t)
	manager := env.Principal(t, env.Manager)
	task := env.Task(t, nil)

	resp, err := env.Tasks.UpdateProgress(manager, task.ID, 140)
	if err != nil {
		t.Fatalf("progress: %v", err)
	}
	if resp.ProgressPercent != 100 || resp.Status != model.StatusNotStarted {
		t.Fatalf("expected 100%% and unchanged status, got %d %s", resp.ProgressPercent, resp.Status)
	}
	resp, err = env.Tasks.UpdateProgress(manager, task.ID, -3)
	if err != nil || resp.ProgressPercent != 0 {
		t.Fatalf("negative progress must clamp to 0: %v %+v", err, resp)
	}
}

func TestScopeIsolation(t *testing.T) {
	env := newTestEnv(t)
	inA := env.Task(t, nil)
	inB := env.Task(t, func(task *model.TaskInstance) { task.LocalityID = env.LocalityB.ID })
	memberID := env.Member.ID
	mine := env.Task(t, func(task *model.TaskInstance) {
		kind := model.AssigneeUser
		task.AssigneeType = &kind
		task.AssignedToID = &memberID
	})
	specialized := env.Task(t, func(task *model.TaskInstance) {
		task.TemplateID = env.SpecialtyTemplate.ID
		task.LocalityID = env.LocalityB.ID
	})

	manager := env.Principal(t, env.Manager)
	if _, err := env.Tasks.Get(manager, inA.ID); err != nil {
		t.Fatalf("manager reads own locality: %v", err)
	}
	_, err := env.Tasks.Get(manager, inB.ID)
	expectCode(t, err, service.ErrNotFound.Code)
	_, err = env.Tasks.UpdateStatus(manager, inB.ID, "STARTED")
	expectCode(t, err, service.ErrNotFound.Code)

	member := env.Principal(t, env.Member)
	if _, err := env.Tasks.Get(member, mine.ID); err != nil {
		t.Fatalf("member reads assigned task: %v", err)
	}
	_, err = env.Tasks.Get(member, inA.ID)
	expectCode(t, err, service.ErrNotFound.Code)
	page, err := env.Tasks.List(member, repository.TaskFilter{}, 1, 20)
	if err != nil || page.Total != 1 || page.Items[0].ID != mine.ID {
		t.Fatalf("member list must hold only the assigned task: %v %+v", err, page)
	}

	exec := env.Principal(t, env.Executive)
	if _, err := env.Tasks.Get(exec, inB.ID); err != nil {
		t.Fatalf("executive reads nationally: %v", err)
	}
	_, err = env.Tasks.UpdateStatus(exec, inB.ID, "STARTED")
	expectCode(t, err, service.ErrForbidden.Code)

	specialist := env.Principal(t, env.Specialist)
	page, err = env.Tasks.List(specialist, repository.TaskFilter{}, 1, 20)
	if err != nil || page.Total != 1 || page.Items[0].ID != specialized.ID {
		t.Fatalf("specialist list must hold only specialty tasks: %v %+v", err, page)
	}

	unbound := env.Principal(t, env.Unbound)
	_, err = env.Tasks.List(unbound, repository.TaskFilter{}, 1, 20)
	expectCode(t, err, service.ErrForbidden.Code)
}

func TestCreatorSeesOwnTask(t *testing.T) {
	env := newTestEnv(t)
	created := env.Task(t, func(task *model.TaskInstance) { task.CreatedBy = env.Member.ID.String() })
	member := env.Principal(t, env.Member)
	if _, err := env.Tasks.Get(member, created.ID); err != nil {
		t.Fatalf("creator must see the task: %v", err)
	}
}

func TestListPagination(t *testing.T) {
	env := newTestEnv(t)
	tasks := env.ManyTasks(t, 12, nil)
	national := env.Principal(t, env.National)

	page, err := env.Tasks.List(national, repository.TaskFilter{}, 3, 5)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if page.Total != 12 || len(page.Items) != 2 || page.Page != 3 || page.PageSize != 5 {
		t.Fatalf("unexpected page %+v", page)
	}
	if page.Items[0].ID != tasks[10].ID || page.Items[1].ID != tasks[11].ID {
		t.Fatalf("page 3 must hold the two latest due tasks")
	}

	page, err = env.Tasks.List(national, repository.TaskFilter{}, 0, 0)
	if err != nil || page.Page != 1 || page.PageSize != service.DefaultPageSize || len(page.Items) != 12 {
		t.Fatalf("defaults not applied: %v %+v", err, page)
	}
	page, err = env.Tasks.List(national, repository.TaskFilter{}, 1, 1000)
	if err != nil || page.PageSize != service.MaxPageSize {
		t.Fatalf("page size must be capped: %v %+v", err, page)
	}
	page, err = env.Tasks.List(national, repository.TaskFilter{}, 9, 5)
	if err != nil || len(page.Items) != 0 || page.Items == nil {
		t.Fatalf("page past the end must be an empty list: %v %+v", err, page)
	}

	status := model.StatusNotStarted
	due := testutil.Epoch.AddDate(0, 0, 3)
	page, err = env.Tasks.List(national, repository.TaskFilter{Status: &status, DueTo: &due}, 1, 20)
	if err != nil || page.Total != 3 {
		t.Fatalf("filter by due date: %v %+v", err, page)
	}
}

func TestBatchStatusReportsEveryRejection(t *testing.T) {
	env := newTestEnv(t)
	manager := env.Principal(t, env.Manager)
	ok := env.Task(t, nil)
	gated := env.Task(t, func(task *model.TaskInstance) { task.ReportRequired = true })
	elsewhere := env.Task(t, func(task *model.TaskInstance) { task.LocalityID = env.LocalityB.ID })
	missing := uuid.New()

	result, err := env.Tasks.BatchStatus(context.Background(), manager, service.BatchStatusRequest{
		IDs:    []uuid.UUID{ok.ID, gated.ID, elsewhere.ID, ok.ID, missing},
		Status: "DONE",
	})
	if err != nil {
		t.Fatalf("batch: %v", err)
	}
	if result.Updated != 1 || len(result.Accepted) != 1 || result.Accepted[0] != ok.ID {
		t.Fatalf("expected only the first row applied, got %+v", result)
	}
	want := []struct {
		row  int
		code string
	}{
		{1, service.ErrReportRequired.Code},
		{2, service.ErrNotFound.Code},
		{3, service.ErrValidation.Code},
		{4, service.ErrNotFound.Code},
	}
	if len(result.Rejected) != len(want) {
		t.Fatalf("expected %d rejections, got %+v", len(want), result.Rejected)
	}
	for i, w := range want {
		if result.Rejected[i].Row != w.row || result.Rejected[i].Code != w.code {
			t.Errorf("rejection %d = %+v, want row %d code %s", i, result.Rejected[i], w.row, w.code)
		}
	}
	if got := env.Reload(t, ok.ID); got.Status != model.StatusDone {
		t.Fatalf("accepted row not stored: %s", got.Status)
	}
	if got := env.Reload(t, gated.ID); got.Status != model.StatusNotStarted {
		t.Fatalf("rejected row changed: %s", got.Status)
	}

	_, err = env.Tasks.BatchStatus(context.Background(), manager, service.BatchStatusRequest{IDs: []uuid.UUID{ok.ID}, Status: "LATER"})
	expectCode(t, err, service.ErrInvalidStatus.Code)
	_, err = env.Tasks.BatchStatus(context.Background(), manager, service.BatchStatusRequest{Status: "DONE"})
	expectCode(t, err, service.ErrValidation.Code)
}

func TestBatchStatusForbiddenWithoutAction(t *testing.T) {
	env := newTestEnv(t)
	task := env.Task(t, nil)
	exec := env.Principal(t, env.Executive)

	result, err := env.Tasks.BatchStatus(context.Background(), exec, service.BatchStatusRequest{IDs: []uuid.UUID{task.ID}, Status: "STARTED"})
	if err != nil {
		t.Fatalf("batch: %v", err)
	}
	if result.Updated != 0 || len(result.Rejected) != 1 || result.Rejected[0].Code != service.ErrForbidden.Code {
		t.Fatalf("expected RBAC_FORBIDDEN row, got %+v", result)
	}
}

func TestAssign(t *testing.T) {
	env := newTestEnv(t)
	manager := env.Principal(t, env.Manager)
	task := env.Task(t, nil)

	commander := service.AssignRequest{AssigneeType: "LOCALITY_COMMANDER"}
	resp, err := env.Tasks.Assign(manager, task.ID, commander)
	if err != nil {
		t.Fatalf("assign commander: %v", err)
	}
	if resp.ExternalAssigneeName == nil || *resp.ExternalAssigneeName != env.LocalityA.CommanderName || resp.IsUnassigned {
		t.Fatalf("commander not resolved: %+v", resp)
	}

	memberID := env.Member.ID
	resp, err = env.Tasks.Assign(manager, task.ID, service.AssignRequest{AssignedToID: &memberID})
	if err != nil {
		t.Fatalf("assign user: %v", err)
	}
	if resp.AssignedToID == nil || *resp.AssignedToID != memberID || resp.ExternalAssigneeName != nil {
		t.Fatalf("user assignment must replace the commander: %+v", resp)
	}

	role := model.EloRole{Name: "Legal"}
	if err := env.DB.Create(&role).Error; err != nil {
		t.Fatal(err)
	}
	foreign := model.Elo{LocalityID: env.LocalityB.ID, EloRoleID: role.ID, Name: "Dr. Ruiz"}
	if err := env.DB.Create(&foreign).Error; err != nil {
		t.Fatal(err)
	}
	_, err = env.Tasks.Assign(manager, task.ID, service.AssignRequest{AssigneeType: "ELO", AssigneeID: &foreign.ID})
	expectCode(t, err, service.ErrInvalidAssignee.Code)

	_, err = env.Tasks.Assign(manager, task.ID, service.AssignRequest{AssigneeType: "ROBOT"})
	expectCode(t, err, service.ErrInvalidAssignee.Code)

	resp, err = env.Tasks.Assign(manager, task.ID, service.AssignRequest{})
	if err != nil || !resp.IsUnassigned {
		t.Fatalf("empty request must unassign: %v %+v", err, resp)
	}
}

func TestBatchAssign(t *testing.T) {
	env := newTestEnv(t)
	manager := env.Principal(t, env.Manager)
	a := env.Task(t, nil)
	b := env.Task(t, func(task *model.TaskInstance) { task.LocalityID = env.LocalityB.ID })

	result, err := env.Tasks.BatchAssign(context.Background(), manager, service.BatchAssignRequest{
		IDs:           []uuid.UUID{a.ID, b.ID},
		AssignRequest: service.AssignRequest{AssigneeType: "LOCALITY_COMMAND"},
	})
	if err != nil {
		t.Fatalf("batch assign: %v", err)
	}
	if result.Updated != 1 || len(result.Rejected) != 1 || result.Rejected[0].Row != 1 {
		t.Fatalf("unexpected result %+v", result)
	}
	got := env.Reload(t, a.ID)
	if got.ExternalAssigneeName == nil || *got.ExternalAssigneeName != env.LocalityA.CommandName {
		t.Fatalf("command not stored: %+v", got)
	}
}

func TestSetDependencies(t *testing.T) {
	env := newTestEnv(t)
	manager := env.Principal(t, env.Manager)
	dep := env.Task(t, nil)
	task := env.Task(t, nil)

	_, err := env.Tasks.SetDependencies(manager, task.ID, []uuid.UUID{task.ID})
	expectCode(t, err, service.ErrValidation.Code)

	_, err = env.Tasks.SetDependencies(manager, task.ID, []uuid.UUID{uuid.New()})
	expectCode(t, err, service.ErrValidation.Code)

	resp, err := env.Tasks.SetDependencies(manager, task.ID, []uuid.UUID{dep.ID, dep.ID})
	if err != nil {
		t.Fatalf("set deps: %v", err)
	}
	if len(resp.BlockedByIDs) != 1 || !resp.IsBlocked {
		t.Fatalf("expected one blocking dependency, got %+v", resp)
	}
}

func TestDeleteHidesTask(t *testing.T) {
	env := newTestEnv(t)
	task := env.Task(t, nil)
	national := env.Principal(t, env.National)
	admin := env.Principal(t, env.Admin)

	err := env.Tasks.Delete(national, task.ID)
	expectCode(t, err, service.ErrForbidden.Code)

	if err := env.Tasks.Delete(admin, task.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	_, err = env.Tasks.Get(admin, task.ID)
	expectCode(t, err, service.ErrNotFound.Code)
}

func TestGanttAndCalendar(t *testing.T) {
	env := newTestEnv(t)
	national := env.Principal(t, env.National)
	late := env.Task(t, func(task *model.TaskInstance) {
		task.TemplateID = env.SpecialtyTemplate.ID
		task.DueDate = testutil.Epoch.Add(-48 * time.Hour)
	})
	early := env.Task(t, nil)

	rows, err := env.Tasks.Gantt(national, repository.TaskFilter{})
	if err != nil || len(rows) != 2 {
		t.Fatalf("gantt: %v %+v", err, rows)
	}
	if rows[0].ID != early.ID || rows[1].ID != late.ID {
		t.Fatalf("gantt must order by phase first")
	}
	if !rows[1].IsLate || rows[1].Start.After(rows[1].End) {
		t.Fatalf("late row flags wrong: %+v", rows[1])
	}

	cal, err := env.Tasks.Calendar(national, 2026, repository.TaskFilter{})
	if err != nil || len(cal.Days) != 2 {
		t.Fatalf("calendar: %v %+v", err, cal)
	}
	if cal.Days[0].Date != "2026-02-28" || cal.Days[1].Date != "2026-03-09" {
		t.Fatalf("unexpected days %s %s", cal.Days[0].Date, cal.Days[1].Date)
	}
	_, err = env.Tasks.Calendar(national, 12, repository.TaskFilter{})
	expectCode(t, err, service.ErrValidation.Code)
}

func TestExecutiveResponsesHidePII(t *testing.T) {
	env := newTestEnv(t)
	memberID := env.Member.ID
	task := env.Task(t, func(task *model.TaskInstance) {
		kind := model.AssigneeUser
		task.AssigneeType = &kind
		task.AssignedToID = &memberID
	})

	exec := env.Principal(t, env.Executive)
	resp, err := env.Tasks.Get(exec, task.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if resp.AssignedToID != nil || resp.AssignedToName != nil {
		t.Fatalf("executive must not see assignee identity: %+v", resp)
	}
	if resp.IsUnassigned {
		t.Fatalf("stripping identity must not change the derived flag")
	}

	national := env.Principal(t, env.National)
	resp, err = env.Tasks.Get(national, task.ID)
	if err != nil || resp.AssignedToName == nil {
		t.Fatalf("coordinator sees the assignee: %v %+v", err, resp)
	}
}
