package config

import (
	"strings"
	"testing"
)

// baseline clears the variables the tests depend on so the host environment cannot leak in.
func baseline(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"JWT_SECRET", "ADMIN_PASSWORD", "DB_DRIVER", "SQLITE_PATH", "PORT", "LOG_MAX_SIZE_MB", "LOG_MAX_BACKUPS",
		"RISK_WEIGHT_LATE", "RISK_WEIGHT_BLOCKED", "RISK_WEIGHT_UNASSIGNED", "RISK_WEIGHT_REPORT_PENDING", "RISK_THRESHOLD",
	} {
		t.Setenv(k, "")
	}
	t.Setenv("APP_ENV", "development")
}

func TestFromEnvDefaults(t *testing.T) {
	baseline(t)

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("from env: %v", err)
	}
	if cfg.DB.Driver != "postgres" || cfg.JWTSecret == "" || cfg.Port != "3000" {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.RiskWeights != DefaultRiskWeights || cfg.RiskThreshold != DefaultRiskThreshold {
		t.Fatalf("unexpected risk settings %+v %v", cfg.RiskWeights, cfg.RiskThreshold)
	}
	if cfg.Log.MaxSizeMB != 100 || cfg.Log.MaxBackups != 5 {
		t.Fatalf("unexpected log settings %+v", cfg.Log)
	}
}

func TestFromEnvOverrides(t *testing.T) {
	baseline(t)
	t.Setenv("DB_DRIVER", "SQLite")
	t.Setenv("SQLITE_PATH", "/tmp/board.db")
	t.Setenv("RISK_WEIGHT_LATE", "5")
	t.Setenv("RISK_WEIGHT_UNASSIGNED", "0")
	t.Setenv("RISK_THRESHOLD", "12.5")
	t.Setenv("LOG_MAX_BACKUPS", "2")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("from env: %v", err)
	}
	if cfg.DB.Driver != "sqlite" || cfg.DB.SQLitePath != "/tmp/board.db" {
		t.Fatalf("unexpected db config %+v", cfg.DB)
	}
	want := RiskWeights{Late: 5, Blocked: 2, Unassigned: 0, ReportPending: 2}
	if cfg.RiskWeights != want || cfg.RiskThreshold != 12.5 || cfg.Log.MaxBackups != 2 {
		t.Fatalf("overrides not applied: %+v %v", cfg.RiskWeights, cfg.RiskThreshold)
	}
}

func TestFromEnvErrors(t *testing.T) {
	cases := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"negative weight", map[string]string{"RISK_WEIGHT_BLOCKED": "-1"}, "RISK_WEIGHT_BLOCKED"},
		{"bad weight", map[string]string{"RISK_WEIGHT_LATE": "high"}, "RISK_WEIGHT_LATE"},
		{"bad driver", map[string]string{"DB_DRIVER": "mysql"}, "DB_DRIVER"},
		{"bad int", map[string]string{"LOG_MAX_SIZE_MB": "big"}, "LOG_MAX_SIZE_MB"},
		{"production secret", map[string]string{"APP_ENV": "production", "JWT_SECRET": ""}, "JWT_SECRET"},
		{"production admin", map[string]string{"APP_ENV": "production", "JWT_SECRET": "s", "ADMIN_PASSWORD": ""}, "ADMIN_PASSWORD"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			baseline(t)
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			_, err := FromEnv()
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error mentioning %s, got %v", tc.want, err)
			}
		})
	}
}
