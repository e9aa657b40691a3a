package service

import (
	"context"
	"math"
	"sort"
	"time"

	"go-taskboard/internal/model"
	"go-taskboard/internal/rbac"
	"go-taskboard/internal/repository"
	"go-taskboard/pkg/config"
	"go-taskboard/pkg/metrics"
	"go-taskboard/pkg/tracing"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	trendWeeks = 8
	topN       = 10
)

type DashboardService interface {
	LocalityProgress(ctx context.Context, user *rbac.User, localityID uuid.UUID) (*LocalityProgress, error)
	National(ctx context.Context, user *rbac.User, filter DashboardFilter) (*NationalSummary, error)
	Executive(ctx context.Context, user *rbac.User, filter DashboardFilter) (*ExecutiveSummary, error)
	Recruits(ctx context.Context, user *rbac.User) ([]RecruitsSeries, error)
}

// DashboardFilter narrows the task rows a dashboard folds. From/To bound the due date.
type DashboardFilter struct {
	From      *time.Time
	To        *time.Time
	PhaseID   *uuid.UUID
	Command   string
	Threshold *float64
}

type PhaseProgress struct {
	PhaseID      uuid.UUID `json:"phaseId"`
	PhaseName    string    `json:"phaseName"`
	DisplayOrder int       `json:"displayOrder"`
	Progress     int       `json:"progress"`
	TaskCount    int       `json:"taskCount"`
}

type LocalityProgress struct {
	LocalityID      uuid.UUID       `json:"localityId"`
	Code            string          `json:"code"`
	Name            string          `json:"name"`
	OverallProgress int             `json:"overallProgress"`
	TaskCount       int             `json:"taskCount"`
	ByPhase         []PhaseProgress `json:"byPhase"`
}

// Counts are the per-locality task tallies shared by the national and executive views.
type Counts struct {
	Tasks   int `json:"tasks"`
	Done    int `json:"done"`
	Late    int `json:"late"`
	Blocked int `json:"blocked"`
	// Unassigned counts open tasks only. DONE tasks never count here even
	// though their isUnassigned flag may be set.
	Unassigned    int `json:"unassigned"`
	ReportPending int `json:"reportPending"`
}

type NationalRow struct {
	LocalityID      uuid.UUID `json:"localityId"`
	Code            string    `json:"code"`
	Name            string    `json:"name"`
	CommandName     string    `json:"commandName,omitempty"`
	CommanderName   string    `json:"commanderName,omitempty"`
	Progress        int       `json:"progress"`
	RecruitsCurrent int       `json:"recruitsCurrent"`
	RecruitsTarget  int       `json:"recruitsTarget"`
	Counts
}

type NationalTotals struct {
	Localities      int `json:"localities"`
	Progress        int `json:"progress"`
	RecruitsCurrent int `json:"recruitsCurrent"`
	RecruitsTarget  int `json:"recruitsTarget"`
	Counts
}

type NationalSummary struct {
	GeneratedAt time.Time      `json:"generatedAt"`
	Rows        []NationalRow  `json:"rows"`
	Totals      NationalTotals `json:"totals"`
}

// RiskBreakdown is returned with every score so the number can be explained.
type RiskBreakdown struct {
	Late          int `json:"late"`
	Blocked       int `json:"blocked"`
	Unassigned    int `json:"unassigned"`
	ReportPending int `json:"reportPending"`
}

type RiskRow struct {
	LocalityID uuid.UUID     `json:"localityId"`
	Code       string        `json:"code"`
	Name       string        `json:"name"`
	Progress   int           `json:"progress"`
	Score      float64       `json:"score"`
	AtRisk     bool          `json:"atRisk"`
	Breakdown  RiskBreakdown `json:"breakdown"`
}

type LeadTime struct {
	PhaseID     uuid.UUID `json:"phaseId"`
	PhaseName   string    `json:"phaseName"`
	AvgLeadDays float64   `json:"avgLeadDays"`
	Completed   int       `json:"completed"`
}

type TrendPoint struct {
	WeekStart time.Time `json:"weekStart"`
	WeekEnd   time.Time `json:"weekEnd"`
	Late      int       `json:"late"`
}

type ExecutiveSummary struct {
	GeneratedAt time.Time          `json:"generatedAt"`
	Weights     config.RiskWeights `json:"weights"`
	Threshold   float64            `json:"threshold"`
	Localities  []RiskRow          `json:"localities"`
	Top         []RiskRow          `json:"top"`
	AvgLeadDays []LeadTime         `json:"avgLeadDays"`
	Trend       []TrendPoint       `json:"trend"`
	Totals      Counts             `json:"totals"`
}

type RecruitsPoint struct {
	Count      int       `json:"count"`
	RecordedAt time.Time `json:"recordedAt"`
}

type RecruitsSeries struct {
	LocalityID uuid.UUID       `json:"localityId"`
	Code       string          `json:"code"`
	Name       string          `json:"name"`
	Current    int             `json:"current"`
	Target     int             `json:"target"`
	History    []RecruitsPoint `json:"history"`
}

type dashboardService struct {
	tasks      repository.TaskRepository
	reports    repository.ReportRepository
	localities repository.LocalityRepository
	weights    config.RiskWeights
	threshold  float64
	now        Clock
}

func NewDashboardService(
	tasks repository.TaskRepository,
	reports repository.ReportRepository,
	localities repository.LocalityRepository,
	weights config.RiskWeights,
	threshold float64,
	now Clock,
) DashboardService {
	return &dashboardService{
		tasks:      tasks,
		reports:    reports,
		localities: localities,
		weights:    weights,
		threshold:  threshold,
		now:        now,
	}
}

// RiskScore is the weighted sum of the breakdown. Every weight is >= 0, so raising
// any single count never lowers the score.
func RiskScore(b RiskBreakdown, w config.RiskWeights) float64 {
	score := w.Late*float64(b.Late) +
		w.Blocked*float64(b.Blocked) +
		w.Unassigned*float64(b.Unassigned) +
		w.ReportPending*float64(b.ReportPending)
	return math.Round(score*100) / 100
}

func meanPercent(sum, n int) int {
	if n == 0 {
		return 0
	}
	return int(math.Round(float64(sum) / float64(n)))
}

// snapshot is one scoped read of tasks plus everything needed to derive flags.
type snapshot struct {
	tasks    []model.TaskInstance
	deps     map[uuid.UUID]model.TaskStatus
	approved map[uuid.UUID]bool
	now      time.Time
}

func (s *dashboardService) begin(ctx context.Context, view string) (trace.Span, func()) {
	start := time.Now()
	_, span := tracing.Tracer().Start(ctx, "dashboard."+view)
	return span, func() {
		metrics.ObserveDashboard(view, time.Since(start))
		span.End()
	}
}

func (s *dashboardService) load(user *rbac.User, filter DashboardFilter, localityID *uuid.UUID) (*snapshot, rbac.Scope, error) {
	scope := rbac.ScopeFor(user, model.ResDashboard, model.ActRead)
	if !scope.Allowed {
		return nil, scope, ErrForbidden
	}
	tasks, err := s.tasks.FindAll(repository.TaskFilter{
		LocalityID: localityID,
		PhaseID:    filter.PhaseID,
		DueFrom:    filter.From,
		DueTo:      filter.To,
		Command:    filter.Command,
	}, scope)
	if err != nil {
		return nil, scope, err
	}
	deps, err := s.tasks.DependencyStatuses(tasks)
	if err != nil {
		return nil, scope, err
	}
	ids := make([]uuid.UUID, 0, len(tasks))
	for _, t := range tasks {
		if t.ReportRequired {
			ids = append(ids, t.ID)
		}
	}
	approved, err := s.reports.ApprovedTaskIDs(ids)
	if err != nil {
		return nil, scope, err
	}
	return &snapshot{tasks: tasks, deps: deps, approved: approved, now: s.now()}, scope, nil
}

// tally folds one task into c. Unassigned counts open work only; report pending
// counts tasks that require a report without an approved one.
func (snap *snapshot) tally(c *Counts, t *model.TaskInstance) {
	c.Tasks++
	if t.Status == model.StatusDone {
		c.Done++
	}
	if model.IsLate(t, snap.now) {
		c.Late++
	}
	if model.IsBlocked(t, snap.deps) {
		c.Blocked++
	}
	if t.Status != model.StatusDone && model.IsUnassigned(t) {
		c.Unassigned++
	}
	if t.ReportRequired && !snap.approved[t.ID] {
		c.ReportPending++
	}
}

func (s *dashboardService) LocalityProgress(ctx context.Context, user *rbac.User, localityID uuid.UUID) (*LocalityProgress, error) {
	span, end := s.begin(ctx, "locality")
	defer end()
	span.SetAttributes(attribute.String("locality.id", localityID.String()))

	scope := rbac.ScopeFor(user, model.ResDashboard, model.ActRead)
	if !scope.Allowed {
		return nil, ErrForbidden
	}
	loc, err := s.localities.FindVisible(localityID, scope)
	if err != nil {
		return nil, lookup(err, "locality")
	}
	snap, _, err := s.load(user, DashboardFilter{}, &localityID)
	if err != nil {
		return nil, err
	}

	type acc struct {
		row PhaseProgress
		sum int
	}
	phases := make(map[uuid.UUID]*acc)
	sum := 0
	for i := range snap.tasks {
		t := &snap.tasks[i]
		sum += t.ProgressPercent
		if t.Template == nil {
			continue
		}
		a, ok := phases[t.Template.PhaseID]
		if !ok {
			a = &acc{row: PhaseProgress{PhaseID: t.Template.PhaseID}}
			if t.Template.Phase != nil {
				a.row.PhaseName = t.Template.Phase.Label()
				a.row.DisplayOrder = t.Template.Phase.DisplayOrder
			}
			phases[t.Template.PhaseID] = a
		}
		a.sum += t.ProgressPercent
		a.row.TaskCount++
	}

	out := &LocalityProgress{
		LocalityID:      loc.ID,
		Code:            loc.Code,
		Name:            loc.Name,
		OverallProgress: meanPercent(sum, len(snap.tasks)),
		TaskCount:       len(snap.tasks),
		ByPhase:         []PhaseProgress{},
	}
	for _, a := range phases {
		a.row.Progress = meanPercent(a.sum, a.row.TaskCount)
		out.ByPhase = append(out.ByPhase, a.row)
	}
	sort.Slice(out.ByPhase, func(i, j int) bool {
		if out.ByPhase[i].DisplayOrder != out.ByPhase[j].DisplayOrder {
			return out.ByPhase[i].DisplayOrder < out.ByPhase[j].DisplayOrder
		}
		return out.ByPhase[i].PhaseName < out.ByPhase[j].PhaseName
	})
	return out, nil
}

type localityFold struct {
	locality model.Locality
	counts   Counts
	sum      int
}

// fold groups the snapshot per visible locality, in code order.
func (s *dashboardService) fold(snap *snapshot, scope rbac.Scope, command string) ([]*localityFold, error) {
	localities, err := s.localities.FindAll(scope, command)
	if err != nil {
		return nil, err
	}
	byID := make(map[uuid.UUID]*localityFold, len(localities))
	out := make([]*localityFold, 0, len(localities))
	for _, l := range localities {
		f := &localityFold{locality: l}
		byID[l.ID] = f
		out = append(out, f)
	}
	for i := range snap.tasks {
		t := &snap.tasks[i]
		f, ok := byID[t.LocalityID]
		if !ok {
			continue
		}
		snap.tally(&f.counts, t)
		f.sum += t.ProgressPercent
	}
	return out, nil
}

func addCounts(dst *Counts, src Counts) {
	dst.Tasks += src.Tasks
	dst.Done += src.Done
	dst.Late += src.Late
	dst.Blocked += src.Blocked
	dst.Unassigned += src.Unassigned
	dst.ReportPending += src.ReportPending
}

func (s *dashboardService) National(ctx context.Context, user *rbac.User, filter DashboardFilter) (*NationalSummary, error) {
	span, end := s.begin(ctx, "national")
	defer end()

	snap, scope, err := s.load(user, filter, nil)
	if err != nil {
		return nil, err
	}
	folds, err := s.fold(snap, scope, filter.Command)
	if err != nil {
		return nil, err
	}

	out := &NationalSummary{GeneratedAt: snap.now, Rows: make([]NationalRow, 0, len(folds))}
	progressSum := 0
	for _, f := range folds {
		row := NationalRow{
			LocalityID:      f.locality.ID,
			Code:            f.locality.Code,
			Name:            f.locality.Name,
			CommandName:     f.locality.CommandName,
			CommanderName:   f.locality.CommanderName,
			Progress:        meanPercent(f.sum, f.counts.Tasks),
			RecruitsCurrent: f.locality.RecruitsCurrent,
			RecruitsTarget:  f.locality.RecruitsTarget,
			Counts:          f.counts,
		}
		if hidePII(user) {
			row.CommanderName = ""
		}
		out.Rows = append(out.Rows, row)
		addCounts(&out.Totals.Counts, f.counts)
		out.Totals.RecruitsCurrent += row.RecruitsCurrent
		out.Totals.RecruitsTarget += row.RecruitsTarget
		progressSum += f.sum
	}
	out.Totals.Localities = len(out.Rows)
	out.Totals.Progress = meanPercent(progressSum, out.Totals.Tasks)
	span.SetAttributes(attribute.Int("dashboard.localities", len(out.Rows)), attribute.Int("dashboard.tasks", out.Totals.Tasks))
	return out, nil
}

func (s *dashboardService) Executive(ctx context.Context, user *rbac.User, filter DashboardFilter) (*ExecutiveSummary, error) {
	span, end := s.begin(ctx, "executive")
	defer end()

	threshold := s.threshold
	if filter.Threshold != nil {
		if *filter.Threshold < 0 {
			return nil, ErrValidation.WithMessage("threshold must be >= 0")
		}
		threshold = *filter.Threshold
	}
	snap, scope, err := s.load(user, filter, nil)
	if err != nil {
		return nil, err
	}
	folds, err := s.fold(snap, scope, filter.Command)
	if err != nil {
		return nil, err
	}

	out := &ExecutiveSummary{
		GeneratedAt: snap.now,
		Weights:     s.weights,
		Threshold:   threshold,
		Localities:  make([]RiskRow, 0, len(folds)),
	}
	for _, f := range folds {
		b := RiskBreakdown{
			Late:          f.counts.Late,
			Blocked:       f.counts.Blocked,
			Unassigned:    f.counts.Unassigned,
			ReportPending: f.counts.ReportPending,
		}
		score := RiskScore(b, s.weights)
		out.Localities = append(out.Localities, RiskRow{
			LocalityID: f.locality.ID,
			Code:       f.locality.Code,
			Name:       f.locality.Name,
			Progress:   meanPercent(f.sum, f.counts.Tasks),
			Score:      score,
			AtRisk:     score >= threshold,
			Breakdown:  b,
		})
		addCounts(&out.Totals, f.counts)
	}

	ranked := append([]RiskRow(nil), out.Localities...)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].Code < ranked[j].Code
	})
	if len(ranked) > topN {
		ranked = ranked[:topN]
	}
	out.Top = ranked
	out.AvgLeadDays = leadTimes(snap.tasks)
	out.Trend = lateTrend(snap.tasks, snap.now)

	span.SetAttributes(attribute.Int("dashboard.localities", len(out.Localities)), attribute.Float64("dashboard.threshold", threshold))
	return out, nil
}

// leadTimes averages creation-to-completion days of DONE tasks per phase.
func leadTimes(tasks []model.TaskInstance) []LeadTime {
	type acc struct {
		row   LeadTime
		order int
		days  float64
	}
	byPhase := make(map[uuid.UUID]*acc)
	for i := range tasks {
		t := &tasks[i]
		if t.Status != model.StatusDone || t.CompletedAt == nil || t.Template == nil {
			continue
		}
		a, ok := byPhase[t.Template.PhaseID]
		if !ok {
			a = &acc{row: LeadTime{PhaseID: t.Template.PhaseID}}
			if t.Template.Phase != nil {
				a.row.PhaseName = t.Template.Phase.Label()
				a.order = t.Template.Phase.DisplayOrder
			}
			byPhase[t.Template.PhaseID] = a
		}
		d := t.CompletedAt.Sub(t.CreatedAt).Hours() / 24
		if d < 0 {
			d = 0
		}
		a.days += d
		a.row.Completed++
	}
	accs := make([]*acc, 0, len(byPhase))
	for _, a := range byPhase {
		a.row.AvgLeadDays = math.Round(a.days/float64(a.row.Completed)*10) / 10
		accs = append(accs, a)
	}
	sort.Slice(accs, func(i, j int) bool {
		if accs[i].order != accs[j].order {
			return accs[i].order < accs[j].order
		}
		return accs[i].row.PhaseName < accs[j].row.PhaseName
	})
	out := make([]LeadTime, 0, len(accs))
	for _, a := range accs {
		out = append(out, a.row)
	}
	return out
}

// lateTrend counts, for each of the trailing weeks ending at now (oldest first),
// the tasks due before the week end that were not completed by it.
func lateTrend(tasks []model.TaskInstance, now time.Time) []TrendPoint {
	points := make([]TrendPoint, trendWeeks)
	for i := 0; i < trendWeeks; i++ {
		end := now.AddDate(0, 0, -7*(trendWeeks-1-i))
		points[i] = TrendPoint{WeekStart: end.AddDate(0, 0, -7), WeekEnd: end}
		for j := range tasks {
			t := &tasks[j]
			if !t.DueDate.Before(end) {
				continue
			}
			if t.CompletedAt != nil && !t.CompletedAt.After(end) {
				continue
			}
			points[i].Late++
		}
	}
	return points
}

func (s *dashboardService) Recruits(ctx context.Context, user *rbac.User) ([]RecruitsSeries, error) {
	_, end := s.begin(ctx, "recruits")
	defer end()

	scope := rbac.ScopeFor(user, model.ResDashboard, model.ActRead)
	if !scope.Allowed {
		return nil, ErrForbidden
	}
	localities, err := s.localities.FindAll(scope, "")
	if err != nil {
		return nil, err
	}
	ids := make([]uuid.UUID, len(localities))
	for i, l := range localities {
		ids[i] = l.ID
	}
	history, err := s.localities.RecruitsHistory(ids)
	if err != nil {
		return nil, err
	}
	byLocality := make(map[uuid.UUID][]RecruitsPoint)
	for _, h := range history {
		byLocality[h.LocalityID] = append(byLocality[h.LocalityID], RecruitsPoint{Count: h.Count, RecordedAt: h.RecordedAt})
	}
	out := make([]RecruitsSeries, 0, len(localities))
	for _, l := range localities {
		series := RecruitsSeries{
			LocalityID: l.ID,
			Code:       l.Code,
			Name:       l.Name,
			Current:    l.RecruitsCurrent,
			Target:     l.RecruitsTarget,
			History:    byLocality[l.ID],
		}
		if series.History == nil {
			series.History = []RecruitsPoint{}
		}
		out = append(out, series)
	}
	return out, nil
}
