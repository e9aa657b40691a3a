package service_test

import (
	"bytes"
	"strings"
	"testing"

	"go-taskboard/internal/model"
	"go-taskboard/internal/rbac"
	"go-taskboard/internal/service"
)

func TestExportImportRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	admin := env.Principal(t, env.Admin)

	var buf bytes.Buffer
	if err := env.RBAC.Export(&buf); err != nil {
		t.Fatalf("export: %v", err)
	}
	catalog, err := rbac.ReadYAML(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	if len(catalog.Permissions) != len(model.DefaultPermissions) || len(catalog.Roles) != len(model.DefaultRoles) {
		t.Fatalf("export has %d permissions and %d roles", len(catalog.Permissions), len(catalog.Roles))
	}

	result, err := env.RBAC.Import(admin, bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if result.Created != 0 || result.Updated != len(model.DefaultRoles) || len(result.Rejected) != 0 {
		t.Fatalf("re-importing an export must only touch roles, got %+v", result)
	}

	var again bytes.Buffer
	if err := env.RBAC.Export(&again); err != nil {
		t.Fatalf("export: %v", err)
	}
	if again.String() != buf.String() {
		t.Fatalf("catalog changed across a round trip")
	}
}

func TestImportRejectsRolesWithUnknownPermissions(t *testing.T) {
	env := newTestEnv(t)
	admin := env.Principal(t, env.Admin)

	doc := `
permissions:
  - resource: budgets
    action: read
    scope: LOCALITY
roles:
  - name: TREASURER
    permissions: [budgets:read:LOCALITY, dashboard:read:LOCALITY]
  - name: BROKEN
    permissions: [ledgers:read:NATIONAL]
`
	result, err := env.RBAC.Import(admin, strings.NewReader(doc))
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if result.Created != 2 || len(result.Rejected) != 1 || result.Rejected[0].Name != "BROKEN" {
		t.Fatalf("unexpected result %+v", result)
	}

	roles, err := env.RBAC.ListRoles()
	if err != nil {
		t.Fatalf("list roles: %v", err)
	}
	var treasurer *model.Role
	for i := range roles {
		if roles[i].Name == "BROKEN" {
			t.Fatalf("rejected role must not be stored")
		}
		if roles[i].Name == "TREASURER" {
			treasurer = &roles[i]
		}
	}
	if treasurer == nil || len(treasurer.Permissions) != 2 {
		t.Fatalf("treasurer not imported with its permissions: %+v", treasurer)
	}

	_, err = env.RBAC.Import(admin, strings.NewReader("roles:\n  - permissions: []\n"))
	expectCode(t, err, service.ErrValidation.Code)
}

func TestRoleAndPermissionAdministration(t *testing.T) {
	env := newTestEnv(t)
	admin := env.Principal(t, env.Admin)

	perm, err := env.RBAC.CreatePermission(admin, &service.PermissionRequest{Resource: "budgets", Action: "read", Scope: "NATIONAL"})
	if err != nil {
		t.Fatalf("create permission: %v", err)
	}
	_, err = env.RBAC.CreatePermission(admin, &service.PermissionRequest{Resource: "budgets", Action: "read", Scope: "NATIONAL"})
	expectCode(t, err, service.ErrDuplicatePermission.Code)
	_, err = env.RBAC.CreatePermission(admin, &service.PermissionRequest{Resource: "budgets", Action: "read", Scope: "GALAXY"})
	expectCode(t, err, service.ErrValidation.Code)

	role, err := env.RBAC.CreateRole(admin, &service.RoleRequest{Name: "AUDITOR", Permissions: []string{perm.Key()}})
	if err != nil {
		t.Fatalf("create role: %v", err)
	}
	if len(role.Permissions) != 1 {
		t.Fatalf("unexpected role %+v", role)
	}
	_, err = env.RBAC.CreateRole(admin, &service.RoleRequest{Name: "AUDITOR"})
	expectCode(t, err, service.ErrDuplicateRole.Code)

	_, err = env.RBAC.SetRolePermissions(admin, role.ID, []string{perm.Key(), "ledgers:read:NATIONAL"})
	expectCode(t, err, service.ErrValidation.Code)

	role, err = env.RBAC.SetRolePermissions(admin, role.ID, []string{"dashboard:read:NATIONAL", "audit_logs:read:NATIONAL"})
	if err != nil {
		t.Fatalf("set permissions: %v", err)
	}
	if len(role.Permissions) != 2 {
		t.Fatalf("expected the permission set to be replaced, got %d", len(role.Permissions))
	}

	_, err = env.RBAC.SetRolePermissions(admin, 9999, nil)
	expectCode(t, err, service.ErrNotFound.Code)
}
