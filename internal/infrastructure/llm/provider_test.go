package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dcrobot-keen/it-news-mail/internal/config"
)

func TestOpenAIComplete(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("unexpected auth header: %s", got)
		}

		var payload struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
			MaxTokens int `json:"max_tokens"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if payload.Model != "gpt-4o-mini" || payload.MaxTokens != 800 {
			t.Errorf("unexpected payload: %+v", payload)
		}
		if len(payload.Messages) != 2 || payload.Messages[0].Role != "system" {
			t.Errorf("expected system+user messages: %+v", payload.Messages)
		}
		if !strings.Contains(payload.Messages[0].Content, "AI 어시스턴트") {
			t.Errorf("system prompt missing: %s", payload.Messages[0].Content)
		}

		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"  요약 결과  "}}]}`))
	}))
	defer server.Close()

	provider := NewOpenAIProvider(config.ProviderConfig{
		Endpoint: server.URL,
		Model:    "gpt-4o-mini",
		APIKey:   "test-key",
	}, 5*time.Second)

	got, err := provider.Complete(context.Background(), "기사 내용", 800)
	if err != nil {
		t.Fatalf("Complete error: %v", err)
	}
	if got != "요약 결과" {
		t.Fatalf("unexpected completion: %q", got)
	}
}

func TestOpenAICompleteAPIError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"bad key"}}`))
	}))
	defer server.Close()

	provider := NewOpenAIProvider(config.ProviderConfig{
		Endpoint: server.URL,
		Model:    "gpt-4o-mini",
		APIKey:   "wrong",
	}, 5*time.Second)

	if _, err := provider.Complete(context.Background(), "x", 100); err == nil {
		t.Fatal("expected error on 401")
	}
}

func TestOpenAICompleteNoChoices(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer server.Close()

	provider := NewOpenAIProvider(config.ProviderConfig{
		Endpoint: server.URL,
		Model:    "gpt-4o-mini",
		APIKey:   "k",
	}, 5*time.Second)

	if _, err := provider.Complete(context.Background(), "x", 100); err == nil {
		t.Fatal("expected error on empty choices")
	}
}

func TestAnthropicComplete(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("x-api-key"); got != "test-key" {
			t.Errorf("unexpected api key header: %s", got)
		}
		if got := r.Header.Get("anthropic-version"); got == "" {
			t.Error("missing anthropic-version header")
		}

		var payload struct {
			Model     string `json:"model"`
			MaxTokens int    `json:"max_tokens"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if payload.MaxTokens != 500 {
			t.Errorf("unexpected max tokens: %d", payload.MaxTokens)
		}

		_, _ = w.Write([]byte(`{"content":[{"type":"text","text":"요약입니다"}]}`))
	}))
	defer server.Close()

	provider := NewAnthropicProvider(config.ProviderConfig{
		Endpoint: server.URL,
		Model:    "claude-3-5-haiku-latest",
		APIKey:   "test-key",
	}, 5*time.Second)

	got, err := provider.Complete(context.Background(), "기사", 500)
	if err != nil {
		t.Fatalf("Complete error: %v", err)
	}
	if got != "요약입니다" {
		t.Fatalf("unexpected completion: %q", got)
	}
}

func TestAnthropicCompleteErrorObject(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"content":[],"error":{"type":"overloaded_error","message":"try later"}}`))
	}))
	defer server.Close()

	provider := NewAnthropicProvider(config.ProviderConfig{
		Endpoint: server.URL,
		Model:    "claude-3-5-haiku-latest",
		APIKey:   "k",
	}, 5*time.Second)

	_, err := provider.Complete(context.Background(), "x", 100)
	if err == nil || !strings.Contains(err.Error(), "overloaded_error") {
		t.Fatalf("expected provider error, got %v", err)
	}
}

func TestNewProviderSelection(t *testing.T) {
	t.Parallel()

	openai, err := NewProvider(config.AIConfig{Provider: "openai"})
	if err != nil || openai.Name() != "openai" {
		t.Fatalf("openai selection failed: %v %v", openai, err)
	}

	anthropic, err := NewProvider(config.AIConfig{Provider: "anthropic"})
	if err != nil || anthropic.Name() != "anthropic" {
		t.Fatalf("anthropic selection failed: %v %v", anthropic, err)
	}

	if _, err := NewProvider(config.AIConfig{Provider: "gemini"}); err == nil {
		t.Fatal("expected error for unknown provider")
	}
}

func TestMaxTokens(t *testing.T) {
	t.Parallel()

	cfg := config.AIConfig{
		Provider:  "anthropic",
		OpenAI:    config.ProviderConfig{MaxTokens: 1000},
		Anthropic: config.ProviderConfig{MaxTokens: 700},
	}
	if got := MaxTokens(cfg); got != 700 {
		t.Fatalf("expected anthropic budget, got %d", got)
	}
	cfg.Provider = "openai"
	if got := MaxTokens(cfg); got != 1000 {
		t.Fatalf("expected openai budget, got %d", got)
	}
}
