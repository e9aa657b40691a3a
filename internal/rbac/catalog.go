package rbac

import (
	"fmt"
	"io"
	"sort"

	"go-taskboard/internal/model"

	"gopkg.in/yaml.v3"
)

// Catalog is the portable form of the permission catalog and its roles.
type Catalog struct {
	Permissions []CatalogPermission `yaml:"permissions" json:"permissions"`
	Roles       []CatalogRole       `yaml:"roles" json:"roles"`
}

type CatalogPermission struct {
	Resource    string      `yaml:"resource" json:"resource"`
	Action      string      `yaml:"action" json:"action"`
	Scope       model.Scope `yaml:"scope" json:"scope"`
	Description string      `yaml:"description,omitempty" json:"description,omitempty"`
}

type CatalogRole struct {
	Name             string         `yaml:"name" json:"name"`
	Description      string         `yaml:"description,omitempty" json:"description,omitempty"`
	ExecutiveHidePII bool           `yaml:"executiveHidePii" json:"executiveHidePii"`
	Wildcard         bool           `yaml:"wildcard" json:"wildcard"`
	Constraints      map[string]any `yaml:"constraints,omitempty" json:"constraints,omitempty"`
	Permissions      []string       `yaml:"permissions" json:"permissions"`
}

// BuildCatalog converts stored permissions and roles, sorted for stable output.
func BuildCatalog(perms []model.Permission, roles []model.Role) Catalog {
	var c Catalog
	for _, p := range perms {
		c.Permissions = append(c.Permissions, CatalogPermission{
			Resource: p.Resource, Action: p.Action, Scope: p.Scope, Description: p.Description,
		})
	}
	sort.Slice(c.Permissions, func(i, j int) bool {
		a, b := c.Permissions[i], c.Permissions[j]
		if a.Resource != b.Resource {
			return a.Resource < b.Resource
		}
		if a.Action != b.Action {
			return a.Action < b.Action
		}
		return a.Scope < b.Scope
	})
	for _, r := range roles {
		cr := CatalogRole{
			Name:             r.Name,
			Description:      r.Description,
			ExecutiveHidePII: r.ExecutiveHidePII,
			Wildcard:         r.Wildcard,
			Constraints:      r.Constraints,
			Permissions:      []string{},
		}
		for _, p := range r.Permissions {
			cr.Permissions = append(cr.Permissions, p.Key())
		}
		sort.Strings(cr.Permissions)
		c.Roles = append(c.Roles, cr)
	}
	sort.Slice(c.Roles, func(i, j int) bool { return c.Roles[i].Name < c.Roles[j].Name })
	return c
}

// WriteYAML encodes the catalog.
func WriteYAML(w io.Writer, c Catalog) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return fmt.Errorf("encode catalog: %w", err)
	}
	return enc.Close()
}

// ReadYAML decodes a catalog and checks every scope and permission key.
func ReadYAML(r io.Reader) (Catalog, error) {
	var c Catalog
	if err := yaml.NewDecoder(r).Decode(&c); err != nil {
		if err == io.EOF {
			return c, nil
		}
		return c, fmt.Errorf("decode catalog: %w", err)
	}
	for i, p := range c.Permissions {
		if p.Resource == "" || p.Action == "" || !p.Scope.Valid() {
			return c, fmt.Errorf("permissions[%d]: resource, action and a valid scope are required", i)
		}
	}
	for i, role := range c.Roles {
		if role.Name == "" {
			return c, fmt.Errorf("roles[%d]: name is required", i)
		}
		for _, key := range role.Permissions {
			if _, err := model.ParsePermissionKey(key); err != nil {
				return c, fmt.Errorf("roles[%d] %s: %w", i, role.Name, err)
			}
		}
	}
	return c, nil
}
