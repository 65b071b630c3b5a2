package config

import (
	"fmt"
	"slices"
)

// ValidationIssue describes a problem with a config value.
type ValidationIssue struct {
	Path    string
	Message string
}

func (v ValidationIssue) String() string {
	return fmt.Sprintf("%s: %s", v.Path, v.Message)
}

// Validate checks a Config for issues. Returns nil if valid.
func Validate(cfg *Config) []ValidationIssue {
	var issues []ValidationIssue

	validProviders := []string{"openai", "ollama"}
	if cfg.Providers.Active != "" && !slices.Contains(validProviders, cfg.Providers.Active) {
		issues = append(issues, ValidationIssue{
			Path:    "providers.active",
			Message: fmt.Sprintf("must be one of %v, got %q", validProviders, cfg.Providers.Active),
		})
	}

	if cfg.Chat.MaxFunctionDepth < 0 {
		issues = append(issues, ValidationIssue{
			Path:    "chat.maxFunctionDepth",
			Message: fmt.Sprintf("must not be negative, got %d", cfg.Chat.MaxFunctionDepth),
		})
	}
	if cfg.Chat.FunctionTimeoutSeconds < 0 {
		issues = append(issues, ValidationIssue{
			Path:    "chat.functionTimeoutSeconds",
			Message: fmt.Sprintf("must not be negative, got %d", cfg.Chat.FunctionTimeoutSeconds),
		})
	}

	if cfg.Defaults.Temperature < 0 || cfg.Defaults.Temperature > 2 {
		issues = append(issues, ValidationIssue{
			Path:    "defaults.temperature",
			Message: fmt.Sprintf("must be between 0 and 2, got %g", cfg.Defaults.Temperature),
		})
	}
	if cfg.Defaults.MaxTokens < 0 {
		issues = append(issues, ValidationIssue{
			Path:    "defaults.maxTokens",
			Message: fmt.Sprintf("must not be negative, got %d", cfg.Defaults.MaxTokens),
		})
	}
	if cfg.Defaults.Model != "" && len(cfg.Chat.SupportedModels) > 0 &&
		!slices.Contains(cfg.Chat.SupportedModels, cfg.Defaults.Model) {
		issues = append(issues, ValidationIssue{
			Path:    "defaults.model",
			Message: fmt.Sprintf("%q is not in chat.supportedModels", cfg.Defaults.Model),
		})
	}

	validLogLevels := []string{"silent", "error", "warn", "info", "debug"}
	if cfg.Logging.Level != "" && !slices.Contains(validLogLevels, cfg.Logging.Level) {
		issues = append(issues, ValidationIssue{
			Path:    "logging.level",
			Message: fmt.Sprintf("must be one of %v, got %q", validLogLevels, cfg.Logging.Level),
		})
	}

	// Basic auth needs both halves or neither.
	if (cfg.Auth.User == "") != (cfg.Auth.Password == "") {
		issues = append(issues, ValidationIssue{
			Path:    "auth",
			Message: "user and password must be set together",
		})
	}

	return issues
}

// UseFunctions resolves the tri-state UseFunctionCalling default; unset
// means on.
func (d DefaultsConfig) UseFunctions() bool {
	return d.UseFunctionCalling == nil || *d.UseFunctionCalling
}
