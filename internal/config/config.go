package config

import "fmt"

// ConfigError represents a configuration error.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s", e.Message)
}

// SupportedModels is the stock model allow-list, used when the config does
// not override it.
var SupportedModels = []string{"gpt-3.5-turbo", "gpt-3.5-turbo-16k", "gpt-4"}

// Defaults returns a Config with sensible defaults applied.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Addr: "127.0.0.1:4567",
		},
		Providers: ProvidersConfig{
			Active: "openai",
			Ollama: OllamaConfig{
				BaseURL: "http://localhost:11434",
			},
		},
		Chat: ChatConfig{
			MaxFunctionDepth:       5,
			FunctionTimeoutSeconds: 15,
			SupportedModels:        SupportedModels,
		},
		Defaults: DefaultsConfig{
			Model:       "gpt-3.5-turbo",
			Temperature: 1,
			MaxTokens:   1024,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}
