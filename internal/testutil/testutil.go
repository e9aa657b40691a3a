// Package testutil builds throwaway databases and fixtures for package tests.
package testutil

import (
	"path/filepath"
	"sync"
	"testing"
	"time"

	"go-taskboard/internal/model"
	"go-taskboard/internal/rbac"
	"go-taskboard/internal/repository"
	"go-taskboard/pkg/config"
	"go-taskboard/pkg/database"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Epoch is the instant every fixed clock starts at.
var Epoch = time.Date(2026, time.March, 2, 12, 0, 0, 0, time.UTC)

// Clock is a settable clock. Pass clock.Now wherever a service.Clock is expected.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func NewClock() *Clock {
	return &Clock{now: Epoch}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// SetupTestDB opens a file-backed SQLite database in a temp dir, migrates it
// and seeds the default permission catalog and roles.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.Connect(config.DBConfig{
		Driver:     "sqlite",
		SQLitePath: filepath.Join(t.TempDir(), "taskboard.db"),
	})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	perms := repository.NewPermissionRepo(db)
	if err := perms.SeedDefaults(); err != nil {
		t.Fatalf("seed permissions: %v", err)
	}
	if err := repository.NewRoleRepo(db).SeedDefaults(perms); err != nil {
		t.Fatalf("seed roles: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

// Fixtures is a small, fully linked data set: two localities, two phases, one
// specialty, two templates and one user per default role.
type Fixtures struct {
	DB    *gorm.DB
	Clock *Clock

	LocalityA model.Locality
	LocalityB model.Locality
	Phase1    model.Phase
	Phase2    model.Phase
	Specialty model.Specialty

	// Template has no specialty; SpecialtyTemplate belongs to Specialty.
	Template          model.TaskTemplate
	SpecialtyTemplate model.TaskTemplate

	Admin      model.User
	National   model.User
	Executive  model.User
	Manager    model.User // LOCALITY_MANAGER of LocalityA
	Member     model.User // MEMBER of LocalityA
	Specialist model.User
	// Unbound holds LOCALITY_MANAGER without a locality.
	Unbound model.User
}

func mustCreate(t *testing.T, db *gorm.DB, v any) {
	t.Helper()
	if err := db.Omit(clause.Associations).Create(v).Error; err != nil {
		t.Fatalf("create %T: %v", v, err)
	}
}

// NewFixtures sets up a database and loads the fixture set into it.
func NewFixtures(t *testing.T) *Fixtures {
	t.Helper()
	db := SetupTestDB(t)
	f := &Fixtures{DB: db, Clock: NewClock()}

	f.LocalityA = model.Locality{Code: "LOC-A", Name: "Alpha", CommandName: "North", CommanderName: "Col. Reyes", RecruitsTarget: 50}
	f.LocalityB = model.Locality{Code: "LOC-B", Name: "Bravo", CommandName: "South", CommanderName: "Col. Vidal", RecruitsTarget: 30}
	mustCreate(t, db, &f.LocalityA)
	mustCreate(t, db, &f.LocalityB)

	f.Phase1 = model.Phase{Code: "P1", Name: "Preparation", DisplayOrder: 1}
	f.Phase2 = model.Phase{Code: "P2", Name: "Execution", DisplayOrder: 2}
	mustCreate(t, db, &f.Phase1)
	mustCreate(t, db, &f.Phase2)

	f.Specialty = model.Specialty{Name: "Psychology"}
	mustCreate(t, db, &f.Specialty)

	f.Template = model.TaskTemplate{Title: "Book venue", PhaseID: f.Phase1.ID}
	specID := f.Specialty.ID
	f.SpecialtyTemplate = model.TaskTemplate{Title: "Screen candidates", PhaseID: f.Phase2.ID, SpecialtyID: &specID}
	mustCreate(t, db, &f.Template)
	mustCreate(t, db, &f.SpecialtyTemplate)

	locA := f.LocalityA.ID
	f.Admin = f.user(t, "admin@example.com", model.RoleAdmin, nil, nil)
	f.National = f.user(t, "national@example.com", model.RoleNationalCoordinator, nil, nil)
	f.Executive = f.user(t, "exec@example.com", model.RoleExecutive, nil, nil)
	f.Manager = f.user(t, "manager@example.com", model.RoleLocalityManager, &locA, nil)
	f.Member = f.user(t, "member@example.com", model.RoleMember, &locA, nil)
	f.Specialist = f.user(t, "specialist@example.com", model.RoleSpecialist, nil, &specID)
	f.Unbound = f.user(t, "unbound@example.com", model.RoleLocalityManager, nil, nil)
	return f
}

func (f *Fixtures) user(t *testing.T, email, roleName string, localityID, specialtyID *uuid.UUID) model.User {
	t.Helper()
	role, err := repository.NewRoleRepo(f.DB).FindByName(roleName)
	if err != nil {
		t.Fatalf("role %s: %v", roleName, err)
	}
	u := model.User{
		Name:             roleName + " user",
		Email:            email,
		LocalityID:       localityID,
		SpecialtyID:      specialtyID,
		IsActive:         true,
		ExecutiveHidePII: role.ExecutiveHidePII,
	}
	if err := u.SetPassword("password123"); err != nil {
		t.Fatalf("hash password: %v", err)
	}
	mustCreate(t, f.DB, &u)
	if err := repository.NewUserRepo(f.DB).ReplaceRoles(nil, &u, []model.Role{*role}); err != nil {
		t.Fatalf("assign role %s: %v", roleName, err)
	}
	return u
}

// Principal reloads u with its roles and flattens it the way the auth guard does.
func (f *Fixtures) Principal(t *testing.T, u model.User) *rbac.User {
	t.Helper()
	loaded, err := repository.NewUserRepo(f.DB).FindByID(u.ID)
	if err != nil {
		t.Fatalf("load user %s: %v", u.Email, err)
	}
	return rbac.FromModel(loaded)
}

// Task inserts an open task for Template in LocalityA due a week after Epoch;
// mutate adjusts it before insert.
func (f *Fixtures) Task(t *testing.T, mutate func(*model.TaskInstance)) model.TaskInstance {
	t.Helper()
	task := model.TaskInstance{
		TemplateID: f.Template.ID,
		LocalityID: f.LocalityA.ID,
		DueDate:    Epoch.AddDate(0, 0, 7),
		Status:     model.StatusNotStarted,
		Priority:   model.PriorityMedium,
	}
	task.CreatedAt = Epoch.AddDate(0, 0, -14)
	if mutate != nil {
		mutate(&task)
	}
	mustCreate(t, f.DB, &task)
	return task
}

// ManyTasks inserts n tasks, each due one day after the previous.
func (f *Fixtures) ManyTasks(t *testing.T, n int, mutate func(int, *model.TaskInstance)) []model.TaskInstance {
	t.Helper()
	out := make([]model.TaskInstance, 0, n)
	for i := 0; i < n; i++ {
		i := i
		out = append(out, f.Task(t, func(task *model.TaskInstance) {
			task.DueDate = Epoch.AddDate(0, 0, i+1)
			if mutate != nil {
				mutate(i, task)
			}
		}))
	}
	return out
}

// Approve stores an approved report for task so the DONE report gate passes.
func (f *Fixtures) Approve(t *testing.T, task model.TaskInstance) model.TaskReport {
	t.Helper()
	reviewer := f.Admin.ID
	at := f.Clock.Now()
	rep := model.TaskReport{
		TaskInstanceID: task.ID,
		AuthorID:       f.Manager.ID,
		Summary:        "done",
		Status:         model.ReportApproved,
		ReviewedByID:   &reviewer,
		ReviewedAt:     &at,
	}
	mustCreate(t, f.DB, &rep)
	return rep
}

// Reload reads a task back, bypassing scope.
func (f *Fixtures) Reload(t *testing.T, id uuid.UUID) model.TaskInstance {
	t.Helper()
	var task model.TaskInstance
	if err := f.DB.First(&task, "id = ?", id).Error; err != nil {
		t.Fatalf("reload task %s: %v", id, err)
	}
	return task
}
