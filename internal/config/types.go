package config

// Config is the root configuration for oshaberi.
type Config struct {
	Server    ServerConfig    `yaml:"server,omitempty"`
	Auth      AuthConfig      `yaml:"auth,omitempty"`
	Providers ProvidersConfig `yaml:"providers,omitempty"`
	Chat      ChatConfig      `yaml:"chat,omitempty"`
	Defaults  DefaultsConfig  `yaml:"defaults,omitempty"`
	Store     StoreConfig     `yaml:"store,omitempty"`
	Logging   LoggingConfig   `yaml:"logging,omitempty"`
}

// ServerConfig controls the HTTP gateway.
type ServerConfig struct {
	Addr           string   `yaml:"addr,omitempty"`
	AllowedOrigins []string `yaml:"allowedOrigins,omitempty"`
}

// AuthConfig holds the basic-auth credentials protecting the state routes.
// Both values accept ${ENV_VAR} references.
type AuthConfig struct {
	User     string `yaml:"user,omitempty"`
	Password string `yaml:"password,omitempty"`
}

// ProvidersConfig defines the LLM backends.
type ProvidersConfig struct {
	// Active is the provider used when no model route matches.
	Active string       `yaml:"active,omitempty"` // "openai" | "ollama"
	OpenAI OpenAIConfig `yaml:"openai,omitempty"`
	Ollama OllamaConfig `yaml:"ollama,omitempty"`
}

// OpenAIConfig configures the OpenAI backend.
type OpenAIConfig struct {
	APIKey  string `yaml:"apiKey,omitempty"` // accepts ${ENV_VAR}
	BaseURL string `yaml:"baseUrl,omitempty"`
}

// OllamaConfig configures the Ollama backend.
type OllamaConfig struct {
	BaseURL string `yaml:"baseUrl,omitempty"`
}

// ChatConfig tunes the conversation controller and function registry.
type ChatConfig struct {
	// MaxFunctionDepth caps chained function calls within one turn.
	MaxFunctionDepth int `yaml:"maxFunctionDepth,omitempty"`

	// FunctionTimeoutSeconds bounds a single function execution.
	FunctionTimeoutSeconds int `yaml:"functionTimeoutSeconds,omitempty"`

	// SupportedModels is the model allow-list for the settings API.
	SupportedModels []string `yaml:"supportedModels,omitempty"`
}

// DefaultsConfig seeds the chat settings on startup.
type DefaultsConfig struct {
	Model              string  `yaml:"model,omitempty"`
	Temperature        float64 `yaml:"temperature,omitempty"`
	MaxTokens          int     `yaml:"maxTokens,omitempty"`
	PresencePenalty    float64 `yaml:"presencePenalty,omitempty"`
	FrequencyPenalty   float64 `yaml:"frequencyPenalty,omitempty"`
	UseFunctionCalling *bool   `yaml:"useFunctionCalling,omitempty"`
}

// StoreConfig controls state persistence.
type StoreConfig struct {
	// Path is the SQLite database file; ":memory:" keeps state in-process.
	Path string `yaml:"path,omitempty"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level string `yaml:"level,omitempty"` // silent|error|warn|info|debug
}
