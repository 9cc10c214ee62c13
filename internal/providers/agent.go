// internal/providers/agent.go
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

// AgentProvider calls an assistant agent over HTTP. The agent receives the
// natural-language question plus any per-spec variables and replies with the
// generated output (a query, an answer, or a DSL body depending on the agent).
type AgentProvider struct {
	client   *http.Client
	endpoint appconfig.Endpoint
	timeout  time.Duration
}

// NewAgentProvider builds a provider for the configured agent endpoint.
func NewAgentProvider(cfg *appconfig.Config) (*AgentProvider, error) {
	if strings.TrimSpace(cfg.Agent.URL) == "" {
		return nil, errors.New("agent endpoint url is not configured")
	}
	timeout := cfg.RequestTimeout()
	return &AgentProvider{
		client:   &http.Client{Timeout: timeout},
		endpoint: cfg.Agent,
		timeout:  timeout,
	}, nil
}

// Name returns the configured endpoint name, or "agent" when unnamed.
func (p *AgentProvider) Name() string {
	if name := strings.TrimSpace(p.endpoint.Name); name != "" {
		return name
	}
	return "agent"
}

type agentRequest struct {
	Question string         `json:"question"`
	Model    string         `json:"model,omitempty"`
	Vars     map[string]any `json:"vars,omitempty"`
}

type agentResponse struct {
	Output string         `json:"output"`
	Answer string         `json:"answer,omitempty"`
	Error  string         `json:"error,omitempty"`
	Extras map[string]any `json:"extras,omitempty"`
}

// CallApi sends one question to the agent and returns its output. An error
// field in the agent's reply becomes Response.Error rather than a call error,
// so the caller can record it as an api_error outcome for that spec.
func (p *AgentProvider) CallApi(ctx context.Context, prompt string, callCtx CallContext) (*Response, error) {
	payload := agentRequest{
		Question: prompt,
		Model:    p.endpoint.Model,
		Vars:     callCtx.Vars,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	logging.LogRequest("BENCH->AGENT", p.endpoint.URL, "", payload)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint.URL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if p.endpoint.Username != "" {
		req.SetBasicAuth(p.endpoint.Username, p.endpoint.Password)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	logging.LogRequest("AGENT->BENCH", p.endpoint.URL, "", respBody)

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("agent returned %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var parsed agentResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		// Some agents reply with the bare output string.
		return &Response{Output: strings.TrimSpace(string(respBody))}, nil
	}

	output := parsed.Output
	if output == "" {
		output = parsed.Answer
	}
	result := &Response{Output: output, Extras: parsed.Extras}
	if parsed.Error != "" {
		result.Error = errors.New(parsed.Error)
	}
	return result, nil
}
