package config

import (
	"strings"
	"testing"
)

// minimalValidConfig returns a minimal valid Config for testing.
func minimalValidConfig() *Config {
	return &Config{
		LogLevel: "info",
		Audit:    AuditConfig{Output: "memory"},
		Policies: []PolicyConfig{{
			Tenant: "t1",
			Name:   "doc-readers",
			Rules: []RuleConfig{{
				Effect:    "allow",
				Actors:    []ActorConfig{{Type: "user", Pattern: "*"}},
				Resources: []string{"doc:*"},
				Actions:   []string{"read"},
			}},
		}},
	}
}

func TestValidate_ValidConfig(t *testing.T) {
	t.Parallel()

	cfg := minimalValidConfig()
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() unexpected error: %v", err)
	}
}

func TestValidate_NoPolicies(t *testing.T) {
	t.Parallel()

	// An empty policies section is valid: policies can be created
	// through the store API at runtime.
	cfg := minimalValidConfig()
	cfg.Policies = nil

	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() with no policies unexpected error: %v", err)
	}
}

func TestValidate_AuditOutput(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		output string
		valid  bool
	}{
		{"memory", "memory", true},
		{"sqlite absolute", "sqlite:///var/lib/aegis/audit.db", true},
		{"sqlite relative", "sqlite://audit.db", false},
		{"sqlite empty path", "sqlite://", false},
		{"stdout unsupported", "stdout", false},
		{"garbage", "postgres://db", false},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := minimalValidConfig()
			cfg.Audit.Output = tt.output
			err := cfg.Validate()
			if tt.valid && err != nil {
				t.Errorf("Validate() error = %v, want nil", err)
			}
			if !tt.valid && err == nil {
				t.Errorf("Validate() accepted %q", tt.output)
			}
		})
	}
}

func TestValidate_InvalidEffect(t *testing.T) {
	t.Parallel()

	cfg := minimalValidConfig()
	cfg.Policies[0].Rules[0].Effect = "approve"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() expected error, got nil")
	}
	if !strings.Contains(err.Error(), "must be one of") {
		t.Errorf("error = %q, want oneof message", err.Error())
	}
}

func TestValidate_DuplicatePolicyName(t *testing.T) {
	t.Parallel()

	cfg := minimalValidConfig()
	cfg.Policies = append(cfg.Policies, cfg.Policies[0])

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() expected error, got nil")
	}
	if !strings.Contains(err.Error(), "duplicate policy name") {
		t.Errorf("error = %q, want duplicate message", err.Error())
	}
}

func TestValidate_DuplicateNameDifferentTenants(t *testing.T) {
	t.Parallel()

	// The same name in different tenants is fine.
	cfg := minimalValidConfig()
	other := cfg.Policies[0]
	other.Tenant = "t2"
	cfg.Policies = append(cfg.Policies, other)

	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() unexpected error: %v", err)
	}
}

func TestValidate_MissingRules(t *testing.T) {
	t.Parallel()

	cfg := minimalValidConfig()
	cfg.Policies[0].Rules = nil

	if err := cfg.Validate(); err == nil {
		t.Error("Validate() accepted a policy without rules")
	}
}

func TestSQLitePath(t *testing.T) {
	t.Parallel()

	if got := (AuditConfig{Output: "memory"}).SQLitePath(); got != "" {
		t.Errorf("SQLitePath() = %q, want empty", got)
	}
	if got := (AuditConfig{Output: "sqlite:///data/audit.db"}).SQLitePath(); got != "/data/audit.db" {
		t.Errorf("SQLitePath() = %q", got)
	}
}
