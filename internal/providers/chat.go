// internal/providers/chat.go
package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/askbench/askbench/internal/appconfig"
	"github.com/askbench/askbench/internal/logging"
)

// ChatProvider calls an OpenAI-compatible /v1/chat/completions endpoint. The
// judge matcher uses it to grade outputs with a separate model from the one
// under test.
type ChatProvider struct {
	client   *http.Client
	endpoint appconfig.Endpoint
	timeout  time.Duration
}

// NewChatProvider builds a provider for the configured judge endpoint.
func NewChatProvider(cfg *appconfig.Config) (*ChatProvider, error) {
	if strings.TrimSpace(cfg.Judge.URL) == "" {
		return nil, errors.New("judge endpoint url is not configured")
	}
	timeout := cfg.RequestTimeout()
	return &ChatProvider{
		client: &http.Client{
			Timeout:   timeout,
			Transport: &http.Transport{ForceAttemptHTTP2: false},
		},
		endpoint: cfg.Judge,
		timeout:  timeout,
	}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Complete sends one system+user exchange and returns the assistant reply.
// JSON mode is requested so graders that emit structured verdicts stay
// parseable.
func (p *ChatProvider) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	messages := []chatMessage{}
	if strings.TrimSpace(systemPrompt) != "" {
		messages = append(messages, chatMessage{Role: "system", Content: systemPrompt})
	}
	messages = append(messages, chatMessage{Role: "user", Content: userPrompt})

	payload := map[string]any{
		"model":           p.endpoint.Model,
		"messages":        messages,
		"stream":          false,
		"response_format": map[string]any{"type": "json_object"},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	endpoint := strings.TrimRight(p.endpoint.URL, "/") + "/v1/chat/completions"
	logging.LogRequest("BENCH->JUDGE", p.endpoint.URL, "/v1/chat/completions", body)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if p.endpoint.Username != "" {
		req.SetBasicAuth(p.endpoint.Username, p.endpoint.Password)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	logging.LogRequest("JUDGE->BENCH", p.endpoint.URL, "/v1/chat/completions", respBody)

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("judge: /v1/chat/completions returned %s: %s", resp.Status, strings.TrimSpace(string(respBody)))
	}

	var parsed chatCompletionResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", err
	}
	if len(parsed.Choices) == 0 {
		return "", errors.New("judge: chat response contained no choices")
	}
	return parsed.Choices[0].Message.Content, nil
}
