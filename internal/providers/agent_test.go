// internal/providers/agent_test.go
package providers

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/askbench/askbench/internal/appconfig"
)

func newAgent(t *testing.T, handler http.HandlerFunc) *AgentProvider {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := &appconfig.Config{
		Agent:          appconfig.Endpoint{Name: "assistant", URL: server.URL},
		TimeoutSeconds: 5,
	}
	provider, err := NewAgentProvider(cfg)
	if err != nil {
		t.Fatalf("NewAgentProvider returned error: %v", err)
	}
	return provider
}

func TestNewAgentProviderRequiresURL(t *testing.T) {
	t.Parallel()

	if _, err := NewAgentProvider(&appconfig.Config{}); err == nil {
		t.Fatal("expected error for missing agent url")
	}
}

func TestCallApiStructuredResponse(t *testing.T) {
	t.Parallel()

	provider := newAgent(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if !strings.Contains(string(body), `"question":"how many errors today?"`) {
			t.Errorf("request body = %s", body)
		}
		io.WriteString(w, `{"output":"source=logs | stats count()"}`)
	})

	resp, err := provider.CallApi(context.Background(), "how many errors today?", CallContext{})
	if err != nil {
		t.Fatalf("CallApi returned error: %v", err)
	}
	if resp.Output != "source=logs | stats count()" {
		t.Fatalf("output = %q", resp.Output)
	}
	if resp.Error != nil {
		t.Fatalf("unexpected in-band error: %v", resp.Error)
	}
}

func TestCallApiInBandError(t *testing.T) {
	t.Parallel()

	provider := newAgent(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"output":"","error":"agent framework error: tool not found"}`)
	})

	resp, err := provider.CallApi(context.Background(), "q", CallContext{})
	if err != nil {
		t.Fatalf("CallApi returned error: %v", err)
	}
	if resp.Error == nil || !strings.Contains(resp.Error.Error(), "tool not found") {
		t.Fatalf("in-band error = %v", resp.Error)
	}
}

func TestCallApiPlainTextResponse(t *testing.T) {
	t.Parallel()

	provider := newAgent(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "source=logs | head 5\n")
	})

	resp, err := provider.CallApi(context.Background(), "q", CallContext{})
	if err != nil {
		t.Fatalf("CallApi returned error: %v", err)
	}
	if resp.Output != "source=logs | head 5" {
		t.Fatalf("output = %q", resp.Output)
	}
}

func TestCallApiTransportError(t *testing.T) {
	t.Parallel()

	provider := newAgent(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		io.WriteString(w, "upstream unavailable")
	})

	if _, err := provider.CallApi(context.Background(), "q", CallContext{}); err == nil {
		t.Fatal("expected error for 502 reply")
	}
}

func TestStringVar(t *testing.T) {
	t.Parallel()

	callCtx := CallContext{Vars: map[string]any{"index": "logs-a", "size": 3}}
	if got := callCtx.StringVar("index"); got != "logs-a" {
		t.Fatalf("StringVar(index) = %q", got)
	}
	if got := callCtx.StringVar("size"); got != "" {
		t.Fatalf("StringVar(size) = %q, want empty for non-string", got)
	}
	if got := (CallContext{}).StringVar("missing"); got != "" {
		t.Fatalf("StringVar on empty context = %q", got)
	}
}
