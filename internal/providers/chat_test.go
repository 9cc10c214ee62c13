// internal/providers/chat_test.go
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

func newChat(t *testing.T, handler http.HandlerFunc) *ChatProvider {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := &appconfig.Config{
		Judge:          appconfig.Endpoint{Name: "grader", URL: server.URL, Model: "grader-8b"},
		TimeoutSeconds: 5,
	}
	provider, err := NewChatProvider(cfg)
	if err != nil {
		t.Fatalf("NewChatProvider returned error: %v", err)
	}
	return provider
}

func TestNewChatProviderRequiresURL(t *testing.T) {
	t.Parallel()

	if _, err := NewChatProvider(&appconfig.Config{}); err == nil {
		t.Fatal("expected error for missing judge url")
	}
}

func TestCompleteReturnsAssistantContent(t *testing.T) {
	t.Parallel()

	provider := newChat(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("path = %q", r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		text := string(body)
		if !strings.Contains(text, `"model":"grader-8b"`) {
			t.Errorf("body missing model: %s", text)
		}
		if !strings.Contains(text, `"role":"system"`) {
			t.Errorf("body missing system message: %s", text)
		}
		io.WriteString(w, `{"choices":[{"message":{"role":"assistant","content":"{\"choice\":\"C\"}"}}]}`)
	})

	got, err := provider.Complete(context.Background(), "You are a grader.", "Grade this.")
	if err != nil {
		t.Fatalf("Complete returned error: %v", err)
	}
	if got != `{"choice":"C"}` {
		t.Fatalf("content = %q", got)
	}
}

func TestCompleteNoChoices(t *testing.T) {
	t.Parallel()

	provider := newChat(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"choices":[]}`)
	})

	if _, err := provider.Complete(context.Background(), "", "Grade this."); err == nil {
		t.Fatal("expected error for empty choices")
	}
}

func TestCompleteHTTPError(t *testing.T) {
	t.Parallel()

	provider := newChat(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		io.WriteString(w, "model crashed")
	})

	if _, err := provider.Complete(context.Background(), "", "Grade this."); err == nil {
		t.Fatal("expected error for 500 reply")
	}
}
