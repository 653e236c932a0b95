// Package config provides the file-based configuration schema for the
// aegis access control engine.
//
// Configuration is intentionally flat and declarative: engine switches,
// audit persistence, cache sizing, and an optional policies section that
// seeds tenant policies at startup. Anything dynamic (policy CRUD) goes
// through the policy store API instead.
package config

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/aegis-gate/aegis/internal/domain/policy"
)

// Config is the top-level configuration for the aegis engine.
type Config struct {
	// Engine configures evaluation behavior.
	Engine EngineConfig `yaml:"engine" mapstructure:"engine"`

	// Audit configures where audit entries are persisted.
	Audit AuditConfig `yaml:"audit" mapstructure:"audit"`

	// Cache configures the decision cache.
	Cache CacheConfig `yaml:"cache" mapstructure:"cache"`

	// LogLevel sets the minimum log level.
	// Valid values: "debug", "info", "warn", "error".
	// Defaults to "info" if empty.
	LogLevel string `yaml:"log_level" mapstructure:"log_level" validate:"omitempty,oneof=debug info warn warning error"`

	// Telemetry enables OpenTelemetry trace and metric export.
	Telemetry bool `yaml:"telemetry" mapstructure:"telemetry"`

	// Policies are declarative policies seeded at startup.
	// Optional: policies can also be created through the store API.
	Policies []PolicyConfig `yaml:"policies" mapstructure:"policies" validate:"omitempty,dive"`
}

// EngineConfig configures evaluation behavior.
type EngineConfig struct {
	// DefaultDeny is reserved. Evaluation always denies when no rule
	// matches; the flag is accepted and validated so configs stay
	// portable, but it does not change behavior.
	DefaultDeny bool `yaml:"default_deny" mapstructure:"default_deny"`

	// AuditAll logs every decision, not just denials.
	// Denials are always audited. Defaults to true.
	AuditAll bool `yaml:"audit_all" mapstructure:"audit_all"`

	// SeedBuiltins creates the built-in admin and agent policies for
	// each tenant named in SeedTenants.
	SeedBuiltins bool `yaml:"seed_builtins" mapstructure:"seed_builtins"`

	// SeedTenants lists the tenants to seed built-in policies for.
	SeedTenants []string `yaml:"seed_tenants" mapstructure:"seed_tenants"`
}

// AuditConfig configures audit persistence.
type AuditConfig struct {
	// Output specifies where audit entries are written.
	// Valid values: "memory" or "sqlite://<absolute-path>".
	// Defaults to "memory" if empty.
	Output string `yaml:"output" mapstructure:"output" validate:"required,audit_output"`

	// Async buffers appends through a background worker so durable
	// writes stay off the permission-check path.
	Async bool `yaml:"async" mapstructure:"async"`

	// ChannelSize is the buffer size of the async append channel.
	// Defaults to 1000 if not specified or 0.
	ChannelSize int `yaml:"channel_size" mapstructure:"channel_size" validate:"omitempty,min=1"`

	// BatchSize is the number of entries to batch before writing.
	// Defaults to 100 if not specified or 0.
	BatchSize int `yaml:"batch_size" mapstructure:"batch_size" validate:"omitempty,min=1"`

	// FlushInterval is how often pending entries flush (e.g. "1s").
	// Defaults to "1s" if not specified.
	FlushInterval string `yaml:"flush_interval" mapstructure:"flush_interval" validate:"omitempty"`

	// SendTimeout is how long an append blocks when the channel is
	// full before the entry is dropped (e.g. "100ms", "0").
	// Defaults to "100ms" if not specified.
	SendTimeout string `yaml:"send_timeout" mapstructure:"send_timeout" validate:"omitempty"`
}

// CacheConfig configures the decision cache.
type CacheConfig struct {
	// Size is the maximum number of cached decisions.
	// Defaults to 1000 if not specified or 0. Set negative to disable.
	Size int `yaml:"size" mapstructure:"size"`
}

// PolicyConfig is a declarative policy seeded at startup.
type PolicyConfig struct {
	// Tenant is the owning tenant.
	Tenant string `yaml:"tenant" mapstructure:"tenant" validate:"required"`

	// Name is the unique policy name within the tenant.
	Name string `yaml:"name" mapstructure:"name" validate:"required"`

	// Description is optional context about the policy.
	Description string `yaml:"description" mapstructure:"description"`

	// Priority orders the policy within its tenant (higher first).
	Priority int `yaml:"priority" mapstructure:"priority"`

	// Enabled controls participation in evaluation. Nil means true.
	Enabled *bool `yaml:"enabled" mapstructure:"enabled"`

	// Rules are the ordered rules; first match wins.
	Rules []RuleConfig `yaml:"rules" mapstructure:"rules" validate:"required,min=1,dive"`
}

// RuleConfig is a single declarative rule.
type RuleConfig struct {
	// Effect is "allow" or "deny".
	Effect string `yaml:"effect" mapstructure:"effect" validate:"required,oneof=allow deny"`

	// Actors match the requesting actor by type and ID pattern.
	Actors []ActorConfig `yaml:"actors" mapstructure:"actors" validate:"required,min=1,dive"`

	// Resources are glob patterns matched against the resource.
	Resources []string `yaml:"resources" mapstructure:"resources" validate:"required,min=1"`

	// Actions are the actions this rule covers ("*" for any).
	Actions []string `yaml:"actions" mapstructure:"actions" validate:"required,min=1"`

	// Conditions further restrict matches against request context.
	Conditions []ConditionConfig `yaml:"conditions" mapstructure:"conditions" validate:"omitempty,dive"`
}

// ActorConfig matches an actor by type and ID pattern.
type ActorConfig struct {
	// Type is user, agent, service, system, or "*".
	Type string `yaml:"type" mapstructure:"type" validate:"required"`

	// Pattern is a glob pattern matched against the actor ID.
	Pattern string `yaml:"pattern" mapstructure:"pattern" validate:"required"`
}

// ConditionConfig compares one context field against a value.
type ConditionConfig struct {
	// Field is the context attribute name.
	Field string `yaml:"field" mapstructure:"field" validate:"required"`

	// Operator is eq, neq, in, nin, gt, lt, or contains.
	Operator string `yaml:"operator" mapstructure:"operator" validate:"required,oneof=eq neq in nin gt lt contains"`

	// Value is the comparison operand: scalar or list.
	Value any `yaml:"value" mapstructure:"value"`
}

// ToCreateInput converts a declarative policy into a store create input.
// Rule semantics are validated by the store; this only converts shapes.
func (p PolicyConfig) ToCreateInput() (policy.CreateInput, error) {
	rules := make([]policy.Rule, 0, len(p.Rules))
	for i, rc := range p.Rules {
		rule, err := rc.toRule()
		if err != nil {
			return policy.CreateInput{}, fmt.Errorf("policy %s: rule %d: %w", p.Name, i, err)
		}
		rules = append(rules, rule)
	}
	return policy.CreateInput{
		TenantID:    p.Tenant,
		Name:        p.Name,
		Description: p.Description,
		Rules:       rules,
		Priority:    p.Priority,
		Enabled:     p.Enabled,
	}, nil
}

func (r RuleConfig) toRule() (policy.Rule, error) {
	actors := make([]policy.ActorMatcher, 0, len(r.Actors))
	for _, a := range r.Actors {
		actors = append(actors, policy.ActorMatcher{
			Type:    policy.ActorType(a.Type),
			Pattern: a.Pattern,
		})
	}
	actions := make([]policy.Action, 0, len(r.Actions))
	for _, a := range r.Actions {
		actions = append(actions, policy.Action(a))
	}
	conditions := make([]policy.Condition, 0, len(r.Conditions))
	for _, c := range r.Conditions {
		value, err := policy.ValueFromAny(c.Value)
		if err != nil {
			return policy.Rule{}, fmt.Errorf("condition %s: %w", c.Field, err)
		}
		conditions = append(conditions, policy.Condition{
			Field:    c.Field,
			Operator: policy.Operator(c.Operator),
			Value:    value,
		})
	}
	return policy.Rule{
		Effect:     policy.Effect(r.Effect),
		Actors:     actors,
		Resources:  r.Resources,
		Actions:    actions,
		Conditions: conditions,
	}, nil
}

// SetDefaults applies sensible default values to the configuration.
func (c *Config) SetDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}

	// Engine switches default to true. viper.IsSet distinguishes
	// "not set" (zero value) from "explicitly false".
	if !viper.IsSet("engine.default_deny") {
		c.Engine.DefaultDeny = true
	}
	if !viper.IsSet("engine.audit_all") {
		c.Engine.AuditAll = true
	}

	if c.Audit.Output == "" {
		c.Audit.Output = "memory"
	}
	if c.Audit.ChannelSize == 0 {
		c.Audit.ChannelSize = 1000
	}
	if c.Audit.BatchSize == 0 {
		c.Audit.BatchSize = 100
	}
	if c.Audit.FlushInterval == "" {
		c.Audit.FlushInterval = "1s"
	}
	if c.Audit.SendTimeout == "" {
		c.Audit.SendTimeout = "100ms"
	}

	if c.Cache.Size == 0 {
		c.Cache.Size = 1000
	}
}
