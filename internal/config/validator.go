package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
)

// RegisterCustomValidators registers aegis-specific validation rules.
// Must be called before validating Config.
func RegisterCustomValidators(v *validator.Validate) error {
	if err := v.RegisterValidation("audit_output", validateAuditOutput); err != nil {
		return fmt.Errorf("failed to register audit_output validator: %w", err)
	}
	return nil
}

// validateAuditOutput validates the audit output field.
// Valid values: "memory" or "sqlite://<absolute-path>"
func validateAuditOutput(fl validator.FieldLevel) bool {
	output := fl.Field().String()

	if output == "memory" {
		return true
	}

	if strings.HasPrefix(output, "sqlite://") {
		path := strings.TrimPrefix(output, "sqlite://")
		return path != "" && filepath.IsAbs(path)
	}

	return false
}

// SQLitePath returns the database path when the audit output is a
// sqlite URL, or empty string for in-memory output.
func (a AuditConfig) SQLitePath() string {
	if strings.HasPrefix(a.Output, "sqlite://") {
		return strings.TrimPrefix(a.Output, "sqlite://")
	}
	return ""
}

// Validate validates the Config using struct tags and cross-field
// rules. Errors carry actionable messages.
func (c *Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())

	if err := RegisterCustomValidators(v); err != nil {
		return err
	}

	if err := v.Struct(c); err != nil {
		return formatValidationErrors(err)
	}

	if err := c.validatePolicyNames(); err != nil {
		return err
	}

	// Conversion catches malformed condition values (maps, nested
	// structures) before the store ever sees them.
	for i, p := range c.Policies {
		if _, err := p.ToCreateInput(); err != nil {
			return fmt.Errorf("policies[%d]: %w", i, err)
		}
	}

	return nil
}

// validatePolicyNames ensures declarative policy names are unique
// within each tenant.
func (c *Config) validatePolicyNames() error {
	seen := make(map[string]struct{}, len(c.Policies))
	for i, p := range c.Policies {
		key := p.Tenant + "/" + p.Name
		if _, dup := seen[key]; dup {
			return fmt.Errorf("policies[%d]: duplicate policy name %q for tenant %q", i, p.Name, p.Tenant)
		}
		seen[key] = struct{}{}
	}
	return nil
}

// formatValidationErrors converts validator.ValidationErrors to
// user-friendly messages.
func formatValidationErrors(err error) error {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		var messages []string
		for _, e := range validationErrors {
			messages = append(messages, formatSingleValidationError(e))
		}
		return errors.New(strings.Join(messages, "; "))
	}
	return err
}

// formatSingleValidationError creates a user-friendly message for a
// single validation error.
func formatSingleValidationError(e validator.FieldError) string {
	field := e.Namespace()
	tag := e.Tag()

	switch tag {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must have at least %s items", field, e.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, e.Param())
	case "audit_output":
		return fmt.Sprintf("%s must be 'memory' or 'sqlite://<absolute-path>'", field)
	default:
		return fmt.Sprintf("%s failed validation: %s", field, tag)
	}
}
