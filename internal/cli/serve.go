package cli

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/oshaberi-app/oshaberi/internal/chat"
	"github.com/oshaberi-app/oshaberi/internal/config"
	"github.com/oshaberi-app/oshaberi/internal/fn"
	"github.com/oshaberi-app/oshaberi/internal/gateway"
	"github.com/oshaberi-app/oshaberi/internal/llm"
	"github.com/oshaberi-app/oshaberi/internal/logging"
	"github.com/oshaberi-app/oshaberi/internal/session"
	"github.com/oshaberi-app/oshaberi/internal/settings"
	"github.com/oshaberi-app/oshaberi/internal/store"
	"github.com/oshaberi-app/oshaberi/internal/token"
)

func newServeCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the oshaberi gateway server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(paths.Config)
			if err != nil {
				return err
			}

			if addr != "" {
				cfg.Server.Addr = addr
			}
			if logLevel == "" && cfg.Logging.Level != "" {
				log = logging.New(nil, cfg.Logging.Level)
			}

			issues := config.Validate(&cfg)
			if len(issues) > 0 {
				for _, issue := range issues {
					log.Error().Str("path", issue.Path).Msg(issue.Message)
				}
				return fmt.Errorf("config validation failed with %d issue(s)", len(issues))
			}

			if err := paths.EnsureDirs(); err != nil {
				return err
			}

			dbPath := cfg.Store.Path
			if dbPath == "" {
				dbPath = paths.DefaultDBPath()
			}
			db, err := store.Open(dbPath, log)
			if err != nil {
				return fmt.Errorf("opening database: %w", err)
			}
			defer db.Close()
			states := store.NewSQLiteStates(db)
			log.Info().Str("path", dbPath).Msg("using SQLite state store")

			table, err := buildProviderTable(cfg, log)
			if err != nil {
				return err
			}

			registry := fn.NewRegistry(
				time.Duration(cfg.Chat.FunctionTimeoutSeconds)*time.Second,
				fn.Builtins(nil)...,
			)

			var tokenizer token.Tokenizer
			if bpe, err := token.NewBPETokenizer("cl100k_base"); err == nil {
				tokenizer = bpe
			} else {
				log.Warn().Err(err).Msg("BPE encoding unavailable, falling back to estimated token counts")
				tokenizer = token.EstimateTokenizer{}
			}
			counter := token.NewCounter(tokenizer)

			set := settings.New(settings.Values{
				Model:              cfg.Defaults.Model,
				Temperature:        cfg.Defaults.Temperature,
				MaxTokens:          cfg.Defaults.MaxTokens,
				PresencePenalty:    cfg.Defaults.PresencePenalty,
				FrequencyPenalty:   cfg.Defaults.FrequencyPenalty,
				UseFunctionCalling: cfg.Defaults.UseFunctions(),
			}, cfg.Chat.SupportedModels)

			sessions := session.NewStore()

			exchange := chat.NewExchange(table, registry, log)
			hub := gateway.NewEventHub(log, cfg.Server.AllowedOrigins)
			controller := chat.NewController(
				sessions,
				set,
				chat.NewLocalTransport(exchange),
				counter,
				hub,
				log,
				chat.Config{MaxFunctionDepth: cfg.Chat.MaxFunctionDepth},
			)

			srv := gateway.New(cfg, gateway.Deps{
				Exchange:   exchange,
				Controller: controller,
				Sessions:   sessions,
				Settings:   set,
				Counter:    counter,
				Table:      table,
				States:     states,
				Hub:        hub,
			}, log)

			srv.RestoreState()

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return srv.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides config)")

	return cmd
}

// buildProviderTable registers the configured LLM backends. OpenAI models
// carry a gpt- prefix, so supported models with that prefix route there when
// a key is present; everything else falls through to the active provider.
func buildProviderTable(cfg config.Config, log *logging.Logger) (*llm.Table, error) {
	table := llm.NewTable(log)

	if cfg.Providers.OpenAI.APIKey != "" {
		openai, err := llm.NewOpenAIProvider(cfg.Providers.OpenAI.BaseURL, cfg.Providers.OpenAI.APIKey)
		if err != nil {
			return nil, fmt.Errorf("configuring openai provider: %w", err)
		}
		table.Register(openai)
		for _, model := range cfg.Chat.SupportedModels {
			if strings.HasPrefix(model, "gpt-") {
				table.Route(model, openai.Name())
			}
		}
	}

	if cfg.Providers.Ollama.BaseURL != "" {
		ollama, err := llm.NewOllamaProvider(cfg.Providers.Ollama.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("configuring ollama provider: %w", err)
		}
		table.Register(ollama)
	}

	if len(table.List()) == 0 {
		return nil, fmt.Errorf("no LLM providers configured; set an OpenAI API key or an Ollama URL")
	}

	fallback := cfg.Providers.Active
	if _, err := table.Provider(fallback); err != nil {
		fallback = table.List()[0]
		log.Warn().Str("active", cfg.Providers.Active).Str("using", fallback).
			Msg("active provider not configured")
	}
	table.SetFallback(fallback)
	return table, nil
}
