package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshaberi-app/oshaberi/internal/chat"
	"github.com/oshaberi-app/oshaberi/internal/config"
	"github.com/oshaberi-app/oshaberi/internal/domain"
)

func newChatCmd() *cobra.Command {
	var (
		url    string
		model  string
		system string
	)

	cmd := &cobra.Command{
		Use:   "chat [message]",
		Short: "Talk to a running oshaberi gateway",
		Long:  "Sends messages to a gateway's /api/chat endpoint. With a message argument it prints one reply and exits; without, it reads turns from stdin until EOF.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(paths.Config)
			if err != nil {
				cfg = config.Defaults()
			}
			if model == "" {
				model = cfg.Defaults.Model
			}

			transport := chat.NewHTTPTransport(url, nil)

			var transcript []domain.Message
			if system != "" {
				transcript = append(transcript, domain.Message{
					Role:    domain.RoleSystem,
					Content: system,
				})
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			send := func(text string) error {
				transcript = append(transcript, domain.Message{
					Role:    domain.RoleUser,
					Content: text,
				})
				reply, err := runTurn(ctx, transport, chat.Request{
					Model:            model,
					Messages:         transcript,
					Temperature:      cfg.Defaults.Temperature,
					MaxTokens:        cfg.Defaults.MaxTokens,
					PresencePenalty:  cfg.Defaults.PresencePenalty,
					FrequencyPenalty: cfg.Defaults.FrequencyPenalty,
				}, &transcript)
				if err != nil {
					return err
				}
				fmt.Println(reply.Content)
				return nil
			}

			if len(args) > 0 {
				return send(strings.Join(args, " "))
			}

			scanner := bufio.NewScanner(os.Stdin)
			for {
				fmt.Print("> ")
				if !scanner.Scan() {
					fmt.Println()
					return scanner.Err()
				}
				text := strings.TrimSpace(scanner.Text())
				if text == "" {
					continue
				}
				if err := send(text); err != nil {
					fmt.Fprintln(os.Stderr, "error:", err)
				}
			}
		},
	}

	cmd.Flags().StringVar(&url, "url", "http://127.0.0.1:4567", "gateway base URL")
	cmd.Flags().StringVar(&model, "model", "", "model to chat with (defaults to the configured default)")
	cmd.Flags().StringVar(&system, "system", "", "system message for the conversation")

	return cmd
}

// runTurn sends the transcript and chases function calls until the model
// produces a plain reply, appending every exchanged message to *transcript.
func runTurn(ctx context.Context, transport chat.Transport, req chat.Request, transcript *[]domain.Message) (domain.Message, error) {
	completion, err := transport.Chat(ctx, req)
	if err != nil {
		return domain.Message{}, err
	}
	for {
		if len(completion.Choices) == 0 {
			return domain.Message{}, fmt.Errorf("empty completion from gateway")
		}
		reply := completion.Choices[0].Message
		*transcript = append(*transcript, reply)
		if reply.FunctionCall == nil {
			return reply, nil
		}

		fmt.Fprintf(os.Stderr, "[calling %s]\n", reply.FunctionCall.Name)
		req.Messages = *transcript
		exchange, err := transport.ChatFunction(ctx, req)
		if err != nil {
			return domain.Message{}, err
		}
		*transcript = append(*transcript, exchange.FunctionMessage)
		completion = exchange.Result
	}
}
