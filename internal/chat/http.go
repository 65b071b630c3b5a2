package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/oshaberi-app/oshaberi/internal/llm"
)

// HTTPTransport talks to a remote oshaberi gateway over its /api/chat
// endpoints. The chat CLI command uses it to drive a running server.
type HTTPTransport struct {
	baseURL string
	client  *http.Client
}

// NewHTTPTransport creates a transport for the gateway at baseURL, e.g.
// http://localhost:4567. A nil client gets a sensible default timeout.
func NewHTTPTransport(baseURL string, client *http.Client) *HTTPTransport {
	if client == nil {
		client = &http.Client{Timeout: 120 * time.Second}
	}
	return &HTTPTransport{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
	}
}

func (t *HTTPTransport) Chat(ctx context.Context, req Request) (Completion, error) {
	var out Completion
	if err := t.post(ctx, "/api/chat", req, &out); err != nil {
		return Completion{}, err
	}
	return out, nil
}

func (t *HTTPTransport) ChatFunction(ctx context.Context, req Request) (FunctionExchange, error) {
	var out FunctionExchange
	if err := t.post(ctx, "/api/chat/function", req, &out); err != nil {
		return FunctionExchange{}, err
	}
	return out, nil
}

func (t *HTTPTransport) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return &llm.ProviderError{
			Provider: "gateway",
			Message:  errorText(respBody),
			Code:     resp.StatusCode,
		}
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("parsing response: %w", err)
	}
	return nil
}

// errorText extracts the message from a gateway {errors:[...]} payload,
// falling back to the raw body.
func errorText(body []byte) string {
	var payload struct {
		Errors []string `json:"errors"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && len(payload.Errors) > 0 {
		return strings.Join(payload.Errors, "; ")
	}
	return string(body)
}
