package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"go-taskboard/internal/rbac"
	"go-taskboard/internal/repository"
	"go-taskboard/internal/service"
	"go-taskboard/pkg/config"
	"go-taskboard/pkg/database"
	"go-taskboard/pkg/jwt"
	"go-taskboard/pkg/logger"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gorm.io/gorm"
)

var rootCmd = &cobra.Command{
	Use:   "rbacctl",
	Short: "Administer taskboard roles, permissions and users",
	Long: `rbacctl works directly against the taskboard database.
It seeds the default catalog, moves the catalog in and out as YAML, grants roles,
resets passwords and mints bearer tokens for scripts and tests.`,
	SilenceUsage: true,
}

// systemActor is recorded in audit rows written by the CLI.
var systemActor = &rbac.User{Name: "rbacctl", Wildcard: true}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("TASKBOARD")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().String("db-driver", "", "postgres or sqlite (defaults to DB_DRIVER)")
	rootCmd.PersistentFlags().String("database-url", "", "postgres DSN (defaults to DATABASE_URL)")
	rootCmd.PersistentFlags().String("sqlite-path", "", "sqlite file (defaults to SQLITE_PATH)")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	_ = viper.BindPFlag("db-driver", rootCmd.PersistentFlags().Lookup("db-driver"))
	_ = viper.BindPFlag("database-url", rootCmd.PersistentFlags().Lookup("database-url"))
	_ = viper.BindPFlag("sqlite-path", rootCmd.PersistentFlags().Lookup("sqlite-path"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func registerCommands() {
	rootCmd.AddCommand(
		seedCmd(),
		exportCmd(),
		importCmd(),
		rolesCmd(),
		permissionsCmd(),
		grantRoleCmd(),
		resetPasswordCmd(),
		tokenCmd(),
	)
}

// env is the wiring every command needs.
type env struct {
	cfg   *config.Config
	db    *gorm.DB
	users repository.UserRepository
	rbac  service.RBACService
	admin service.UserService
}

func withEnv(fn func(e *env) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if v := viper.GetString("db-driver"); v != "" {
		cfg.DB.Driver = strings.ToLower(v)
	}
	if v := viper.GetString("database-url"); v != "" {
		cfg.DB.URL = v
	}
	if v := viper.GetString("sqlite-path"); v != "" {
		cfg.DB.SQLitePath = v
	}
	cfg.Log.Level = "warn"
	log := logger.New(cfg.Log)
	defer log.Sync()

	db, err := database.Connect(cfg.DB)
	if err != nil {
		return err
	}
	if err := database.Migrate(db); err != nil {
		return err
	}

	users := repository.NewUserRepo(db)
	roles := repository.NewRoleRepo(db)
	audit := service.NewAuditService(repository.NewAuditRepo(db), log, service.SystemClock)
	e := &env{
		cfg:   cfg,
		db:    db,
		users: users,
		rbac:  service.NewRBACService(db, repository.NewPermissionRepo(db), roles, audit, log),
		admin: service.NewUserService(db, users, roles, repository.NewLocalityRepo(db), repository.NewReferenceRepo(db), audit),
	}
	return fn(e)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func seedCmd() *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create missing default permissions, roles and the admin user",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(func(e *env) error {
				if err := e.rbac.Seed(); err != nil {
					return err
				}
				if email == "" {
					email = e.cfg.AdminEmail
				}
				if password == "" {
					password = e.cfg.AdminPassword
				}
				created, err := e.admin.EnsureAdmin(email, password)
				if err != nil {
					return err
				}
				if created {
					fmt.Printf("admin user %s created\n", email)
				}
				fmt.Println("catalog seeded")
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&email, "admin-email", "", "admin email (defaults to ADMIN_EMAIL)")
	cmd.Flags().StringVar(&password, "admin-password", "", "admin password (defaults to ADMIN_PASSWORD)")
	return cmd
}

func exportCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the permission catalog and roles as YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(func(e *env) error {
				var w io.Writer = os.Stdout
				if out != "" && out != "-" {
					f, err := os.Create(out)
					if err != nil {
						return err
					}
					defer f.Close()
					w = f
				}
				return e.rbac.Export(w)
			})
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "-", "output file, - for stdout")
	return cmd
}

func importCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Upsert permissions and roles from a YAML catalog",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			return withEnv(func(e *env) error {
				result, err := e.rbac.Import(systemActor, f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(result)
				}
				fmt.Printf("created %d, updated %d, rejected %d\n", result.Created, result.Updated, len(result.Rejected))
				for _, r := range result.Rejected {
					fmt.Printf("  %s %s: %s\n", r.Kind, r.Name, r.Reason)
				}
				return nil
			})
		},
	}
}

func rolesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "roles",
		Short: "List roles",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(func(e *env) error {
				roles, err := e.rbac.ListRoles()
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(roles)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "Wildcard", "Hide PII", "Permissions"})
				for _, r := range roles {
					keys := make([]string, len(r.Permissions))
					for i, p := range r.Permissions {
						keys[i] = p.Key()
					}
					tw.AppendRow(table.Row{r.ID, r.Name, r.Wildcard, r.ExecutiveHidePII, strings.Join(keys, "\n")})
					tw.AppendSeparator()
				}
				tw.Render()
				return nil
			})
		},
	}
}

func permissionsCmd() *cobra.Command {
	var resource string
	cmd := &cobra.Command{
		Use:   "permissions",
		Short: "List the permission catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(func(e *env) error {
				perms, err := e.rbac.ListPermissions()
				if err != nil {
					return err
				}
				if resource != "" {
					filtered := perms[:0]
					for _, p := range perms {
						if p.Resource == resource {
							filtered = append(filtered, p)
						}
					}
					perms = filtered
				}
				if viper.GetBool("json") {
					return printJSON(perms)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Resource", "Action", "Scope"})
				for _, p := range perms {
					tw.AppendRow(table.Row{p.ID, p.Resource, p.Action, p.Scope})
				}
				tw.AppendFooter(table.Row{"", "", "Total", len(perms)})
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&resource, "resource", "", "only this resource")
	return cmd
}

func grantRoleCmd() *cobra.Command {
	var replace bool
	cmd := &cobra.Command{
		Use:   "grant-role <email> <ROLE>...",
		Short: "Add roles to a user (or replace them with --replace)",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(func(e *env) error {
				u, err := e.users.FindByEmail(strings.ToLower(args[0]))
				if err != nil {
					return fmt.Errorf("user %s: %w", args[0], err)
				}
				names := args[1:]
				if !replace {
					names = append(u.RoleNames(), names...)
				}
				resp, err := e.admin.UpdateRoles(systemActor, u.ID, dedupe(names))
				if err != nil {
					return err
				}
				fmt.Printf("%s roles: %s (hide PII: %t)\n", resp.Email, strings.Join(resp.Roles, ", "), resp.ExecutiveHidePII)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&replace, "replace", false, "replace existing roles instead of adding")
	return cmd
}

func dedupe(names []string) []string {
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		n = strings.ToUpper(strings.TrimSpace(n))
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}

func resetPasswordCmd() *cobra.Command {
	var password string
	cmd := &cobra.Command{
		Use:   "reset-password <email>",
		Short: "Set a new password for a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				return fmt.Errorf("--password is required")
			}
			return withEnv(func(e *env) error {
				u, err := e.users.FindByEmail(strings.ToLower(args[0]))
				if err != nil {
					return fmt.Errorf("user %s: %w", args[0], err)
				}
				if err := e.admin.ResetPassword(systemActor, u.ID, password); err != nil {
					return err
				}
				fmt.Printf("password for %s has been reset\n", u.Email)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&password, "password", "", "new password (min 8 characters)")
	return cmd
}

func tokenCmd() *cobra.Command {
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token <email>",
		Short: "Mint a bearer token for an active user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(func(e *env) error {
				u, err := e.users.FindByEmail(strings.ToLower(args[0]))
				if err != nil {
					return fmt.Errorf("user %s: %w", args[0], err)
				}
				if !u.IsActive {
					return fmt.Errorf("user %s is inactive", u.Email)
				}
				token, err := jwt.GenerateToken(e.cfg.JWTSecret, u.ID, u.Email, ttl)
				if err != nil {
					return err
				}
				fmt.Println(token)
				return nil
			})
		},
	}
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	return cmd
}
