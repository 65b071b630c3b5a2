package config

import (
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

// envVarPattern matches ${VAR_NAME} patterns in strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnvVars replaces ${VAR} patterns with environment variable values.
// Unset variables are left unchanged.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := match[2 : len(match)-1]
		if val, ok := os.LookupEnv(varName); ok {
			return val
		}
		return match
	})
}

// expandSensitiveFields processes environment variable references in
// credential fields so keys and passwords can be stored as ${ENV_VAR}.
func expandSensitiveFields(cfg *Config) {
	cfg.Auth.User = expandEnvVars(cfg.Auth.User)
	cfg.Auth.Password = expandEnvVars(cfg.Auth.Password)
	cfg.Providers.OpenAI.APIKey = expandEnvVars(cfg.Providers.OpenAI.APIKey)
}

// Load reads the config file, applies environment overrides, and returns
// a merged Config. Missing files produce defaults only.
func Load(path string) (Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			applyEnvOverrides(&cfg)
			expandSensitiveFields(&cfg)
			return cfg, nil
		}
		return cfg, err
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, &ConfigError{Message: "failed to parse config: " + err.Error()}
	}

	applyDefaults(&cfg)
	applyEnvOverrides(&cfg)
	expandSensitiveFields(&cfg)
	return cfg, nil
}

// applyDefaults fills zero-value fields with sensible defaults.
func applyDefaults(cfg *Config) {
	def := Defaults()
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = def.Server.Addr
	}
	if cfg.Providers.Active == "" {
		cfg.Providers.Active = def.Providers.Active
	}
	if cfg.Providers.Ollama.BaseURL == "" {
		cfg.Providers.Ollama.BaseURL = def.Providers.Ollama.BaseURL
	}
	if cfg.Chat.MaxFunctionDepth == 0 {
		cfg.Chat.MaxFunctionDepth = def.Chat.MaxFunctionDepth
	}
	if cfg.Chat.FunctionTimeoutSeconds == 0 {
		cfg.Chat.FunctionTimeoutSeconds = def.Chat.FunctionTimeoutSeconds
	}
	if len(cfg.Chat.SupportedModels) == 0 {
		cfg.Chat.SupportedModels = def.Chat.SupportedModels
	}
	if cfg.Defaults.Model == "" {
		cfg.Defaults.Model = def.Defaults.Model
	}
	if cfg.Defaults.Temperature == 0 {
		cfg.Defaults.Temperature = def.Defaults.Temperature
	}
	if cfg.Defaults.MaxTokens == 0 {
		cfg.Defaults.MaxTokens = def.Defaults.MaxTokens
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = def.Logging.Level
	}
}

// applyEnvOverrides lets environment variables override file values.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("OSHABERI_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("OSHABERI_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("OSHABERI_PROVIDER"); v != "" {
		cfg.Providers.Active = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" && cfg.Providers.OpenAI.APIKey == "" {
		cfg.Providers.OpenAI.APIKey = v
	}
	if v := os.Getenv("OLLAMA_HOST"); v != "" {
		cfg.Providers.Ollama.BaseURL = v
	}
	if v := os.Getenv("OSHABERI_AUTH_USER"); v != "" {
		cfg.Auth.User = v
	}
	if v := os.Getenv("OSHABERI_AUTH_PASSWORD"); v != "" {
		cfg.Auth.Password = v
	}
	if v := os.Getenv("OSHABERI_DB_PATH"); v != "" {
		cfg.Store.Path = v
	}
}
