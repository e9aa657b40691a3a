package service_test

import (
	"context"
	"testing"
	"time"

	"go-taskboard/internal/model"
	"go-taskboard/internal/service"
	"go-taskboard/internal/testutil"
	"go-taskboard/pkg/config"

	"github.com/google/uuid"
)

// seedDashboard loads three tasks in locality A and one in B:
//
//	a1 phase 1, 50%, two days overdue, unassigned
//	a2 phase 1, done four days ago after ten days of work
//	a3 phase 2, blocked, needs a report, assigned to the member
//	b1 phase 1, 20%, assigned to the manager
func seedDashboard(t *testing.T, env *testEnv) {
	t.Helper()
	user := model.AssigneeUser
	env.Task(t, func(task *model.TaskInstance) {
		task.ProgressPercent = 50
		task.DueDate = testutil.Epoch.AddDate(0, 0, -2)
	})
	env.Task(t, func(task *model.TaskInstance) {
		done := testutil.Epoch.AddDate(0, 0, -4)
		task.Status = model.StatusDone
		task.ProgressPercent = 100
		task.CompletedAt = &done
	})
	member := env.Member.ID
	env.Task(t, func(task *model.TaskInstance) {
		task.TemplateID = env.SpecialtyTemplate.ID
		task.Status = model.StatusBlocked
		task.ReportRequired = true
		task.AssigneeType = &user
		task.AssignedToID = &member
	})
	manager := env.Manager.ID
	env.Task(t, func(task *model.TaskInstance) {
		task.LocalityID = env.LocalityB.ID
		task.ProgressPercent = 20
		task.AssigneeType = &user
		task.AssignedToID = &manager
	})
}

func TestNationalDashboard(t *testing.T) {
	env := newTestEnv(t)
	seedDashboard(t, env)

	got, err := env.Dashboard.National(context.Background(), env.Principal(t, env.National), service.DashboardFilter{})
	if err != nil {
		t.Fatalf("national: %v", err)
	}
	if len(got.Rows) != 2 || got.Rows[0].Code != "LOC-A" || got.Rows[1].Code != "LOC-B" {
		t.Fatalf("unexpected rows %+v", got.Rows)
	}
	a := got.Rows[0]
	want := service.Counts{Tasks: 3, Done: 1, Late: 1, Blocked: 1, Unassigned: 1, ReportPending: 1}
	if a.Counts != want {
		t.Fatalf("locality A counts = %+v, want %+v", a.Counts, want)
	}
	if a.Progress != 50 || a.CommanderName != "Col. Reyes" {
		t.Fatalf("unexpected row %+v", a)
	}
	if got.Rows[1].Progress != 20 {
		t.Fatalf("locality B progress = %d", got.Rows[1].Progress)
	}
	if got.Totals.Tasks != 4 || got.Totals.Progress != 43 || got.Totals.RecruitsTarget != 80 {
		t.Fatalf("unexpected totals %+v", got.Totals)
	}

	member, err := env.Dashboard.National(context.Background(), env.Principal(t, env.Member), service.DashboardFilter{})
	if err != nil {
		t.Fatalf("national as member: %v", err)
	}
	if len(member.Rows) != 1 || member.Rows[0].Tasks != 1 {
		t.Fatalf("member must only see their own task, got %+v", member.Rows)
	}

	exec, err := env.Dashboard.National(context.Background(), env.Principal(t, env.Executive), service.DashboardFilter{})
	if err != nil {
		t.Fatalf("national as executive: %v", err)
	}
	for _, row := range exec.Rows {
		if row.CommanderName != "" {
			t.Fatalf("commander name leaked to executive: %+v", row)
		}
	}
}

func TestUnassignedCountsOpenWorkOnly(t *testing.T) {
	env := newTestEnv(t)
	done := env.Task(t, func(task *model.TaskInstance) {
		at := testutil.Epoch.AddDate(0, 0, -1)
		task.Status = model.StatusDone
		task.ProgressPercent = 100
		task.CompletedAt = &at
	})
	env.Task(t, nil)

	if !model.IsUnassigned(&done) {
		t.Fatalf("the per-task flag ignores status")
	}
	got, err := env.Dashboard.National(context.Background(), env.Principal(t, env.National), service.DashboardFilter{})
	if err != nil {
		t.Fatalf("national: %v", err)
	}
	if got.Totals.Tasks != 2 || got.Totals.Unassigned != 1 {
		t.Fatalf("unexpected totals %+v", got.Totals)
	}
}

func TestNationalDashboardFilters(t *testing.T) {
	env := newTestEnv(t)
	seedDashboard(t, env)
	national := env.Principal(t, env.National)

	got, err := env.Dashboard.National(context.Background(), national, service.DashboardFilter{Command: "South"})
	if err != nil {
		t.Fatalf("national: %v", err)
	}
	if len(got.Rows) != 1 || got.Rows[0].Code != "LOC-B" {
		t.Fatalf("command filter not applied: %+v", got.Rows)
	}

	to := testutil.Epoch
	got, err = env.Dashboard.National(context.Background(), national, service.DashboardFilter{To: &to})
	if err != nil {
		t.Fatalf("national: %v", err)
	}
	if got.Totals.Tasks != 1 || got.Totals.Late != 1 {
		t.Fatalf("due filter not applied: %+v", got.Totals)
	}

	phase := env.Phase2.ID
	got, err = env.Dashboard.National(context.Background(), national, service.DashboardFilter{PhaseID: &phase})
	if err != nil {
		t.Fatalf("national: %v", err)
	}
	if got.Totals.Tasks != 1 || got.Totals.Blocked != 1 {
		t.Fatalf("phase filter not applied: %+v", got.Totals)
	}
}

func TestLocalityProgress(t *testing.T) {
	env := newTestEnv(t)
	seedDashboard(t, env)
	manager := env.Principal(t, env.Manager)

	got, err := env.Dashboard.LocalityProgress(context.Background(), manager, env.LocalityA.ID)
	if err != nil {
		t.Fatalf("locality progress: %v", err)
	}
	if got.OverallProgress != 50 || got.TaskCount != 3 || len(got.ByPhase) != 2 {
		t.Fatalf("unexpected progress %+v", got)
	}
	if got.ByPhase[0].PhaseID != env.Phase1.ID || got.ByPhase[0].Progress != 75 || got.ByPhase[0].TaskCount != 2 {
		t.Fatalf("unexpected phase 1 %+v", got.ByPhase[0])
	}
	if got.ByPhase[1].Progress != 0 {
		t.Fatalf("unexpected phase 2 %+v", got.ByPhase[1])
	}

	_, err = env.Dashboard.LocalityProgress(context.Background(), manager, env.LocalityB.ID)
	expectCode(t, err, service.ErrNotFound.Code)

	// no tasks means zero, not a division error
	empty := env.Principal(t, env.National)
	if err := env.DB.Exec("DELETE FROM task_instances").Error; err != nil {
		t.Fatalf("clear tasks: %v", err)
	}
	got, err = env.Dashboard.LocalityProgress(context.Background(), empty, env.LocalityB.ID)
	if err != nil {
		t.Fatalf("empty locality: %v", err)
	}
	if got.OverallProgress != 0 || len(got.ByPhase) != 0 {
		t.Fatalf("expected empty progress, got %+v", got)
	}
}

func TestLocalityProgressRespectsNarrowScopes(t *testing.T) {
	env := newTestEnv(t)
	seedDashboard(t, env)
	member := env.Principal(t, env.Member)

	_, err := env.Dashboard.LocalityProgress(context.Background(), member, env.LocalityB.ID)
	expectCode(t, err, service.ErrNotFound.Code)

	got, err := env.Dashboard.LocalityProgress(context.Background(), member, env.LocalityA.ID)
	if err != nil {
		t.Fatalf("own locality: %v", err)
	}
	if got.TaskCount != 1 {
		t.Fatalf("member must only count their own task, got %d", got.TaskCount)
	}

	// denied before the locality is looked up
	unbound := env.Principal(t, env.Unbound)
	_, err = env.Dashboard.LocalityProgress(context.Background(), unbound, uuid.New())
	expectCode(t, err, service.ErrForbidden.Code)
	_, err = env.Dashboard.LocalityProgress(context.Background(), unbound, env.LocalityA.ID)
	expectCode(t, err, service.ErrForbidden.Code)
}

func TestExecutiveDashboard(t *testing.T) {
	env := newTestEnv(t)
	seedDashboard(t, env)
	exec := env.Principal(t, env.Executive)

	got, err := env.Dashboard.Executive(context.Background(), exec, service.DashboardFilter{})
	if err != nil {
		t.Fatalf("executive: %v", err)
	}
	if got.Threshold != config.DefaultRiskThreshold || len(got.Localities) != 2 {
		t.Fatalf("unexpected summary %+v", got)
	}
	a := got.Localities[0]
	if a.Score != 8 || a.AtRisk {
		t.Fatalf("locality A risk = %+v", a)
	}
	if a.Breakdown != (service.RiskBreakdown{Late: 1, Blocked: 1, Unassigned: 1, ReportPending: 1}) {
		t.Fatalf("unexpected breakdown %+v", a.Breakdown)
	}
	if got.Localities[1].Score != 0 {
		t.Fatalf("locality B risk = %+v", got.Localities[1])
	}
	if got.Top[0].Code != "LOC-A" {
		t.Fatalf("top must be ordered by score, got %+v", got.Top)
	}
	if len(got.AvgLeadDays) != 1 || got.AvgLeadDays[0].PhaseID != env.Phase1.ID || got.AvgLeadDays[0].AvgLeadDays != 10 {
		t.Fatalf("unexpected lead times %+v", got.AvgLeadDays)
	}
	if len(got.Trend) != 8 {
		t.Fatalf("expected 8 trend points, got %d", len(got.Trend))
	}
	if got.Trend[7].Late != 1 || got.Trend[6].Late != 0 || !got.Trend[7].WeekEnd.Equal(testutil.Epoch) {
		t.Fatalf("unexpected trend tail %+v %+v", got.Trend[6], got.Trend[7])
	}

	threshold := 8.0
	got, err = env.Dashboard.Executive(context.Background(), exec, service.DashboardFilter{Threshold: &threshold})
	if err != nil {
		t.Fatalf("executive: %v", err)
	}
	if !got.Localities[0].AtRisk || got.Localities[1].AtRisk {
		t.Fatalf("threshold override not applied: %+v", got.Localities)
	}

	negative := -1.0
	_, err = env.Dashboard.Executive(context.Background(), exec, service.DashboardFilter{Threshold: &negative})
	expectCode(t, err, service.ErrValidation.Code)
}

func TestRiskScoreNeverDecreases(t *testing.T) {
	w := config.DefaultRiskWeights
	base := service.RiskBreakdown{Late: 2, Blocked: 1, Unassigned: 0, ReportPending: 3}
	score := service.RiskScore(base, w)
	bumps := []func(*service.RiskBreakdown){
		func(b *service.RiskBreakdown) { b.Late++ },
		func(b *service.RiskBreakdown) { b.Blocked++ },
		func(b *service.RiskBreakdown) { b.Unassigned++ },
		func(b *service.RiskBreakdown) { b.ReportPending++ },
	}
	for i, bump := range bumps {
		b := base
		bump(&b)
		if got := service.RiskScore(b, w); got < score {
			t.Errorf("bump %d lowered the score: %v < %v", i, got, score)
		}
	}
	if got := service.RiskScore(service.RiskBreakdown{}, w); got != 0 {
		t.Fatalf("empty breakdown must score 0, got %v", got)
	}
}

func TestRecruitsSeries(t *testing.T) {
	env := newTestEnv(t)
	manager := env.Principal(t, env.Manager)

	if _, err := env.References.RecordRecruits(manager, env.LocalityA.ID, 12); err != nil {
		t.Fatalf("record: %v", err)
	}
	env.Clock.Advance(24 * time.Hour)
	if _, err := env.References.RecordRecruits(manager, env.LocalityA.ID, 20); err != nil {
		t.Fatalf("record: %v", err)
	}
	_, err := env.References.RecordRecruits(manager, env.LocalityB.ID, 5)
	expectCode(t, err, service.ErrNotFound.Code)

	series, err := env.Dashboard.Recruits(context.Background(), env.Principal(t, env.National))
	if err != nil {
		t.Fatalf("recruits: %v", err)
	}
	if len(series) != 2 {
		t.Fatalf("expected both localities, got %d", len(series))
	}
	a := series[0]
	if a.Current != 20 || a.Target != 50 || len(a.History) != 2 || a.History[0].Count != 12 {
		t.Fatalf("unexpected series %+v", a)
	}
	if series[1].History == nil || len(series[1].History) != 0 {
		t.Fatalf("locality without history must have an empty series")
	}

	mine, err := env.Dashboard.Recruits(context.Background(), manager)
	if err != nil {
		t.Fatalf("recruits as manager: %v", err)
	}
	if len(mine) != 1 || mine[0].LocalityID != env.LocalityA.ID {
		t.Fatalf("manager must only see their locality, got %+v", mine)
	}
}
