package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/recall-labs/recall/internal/domain"
)

// completionResponse mirrors the OpenAI-compatible chat completion response.
type completionResponse struct {
	Object  string `json:"object"`
	Choices []struct {
		Index   int `json:"index"`
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

func completionServer(t *testing.T, content string, capture *openAICompletionRequest) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if capture != nil {
			if err := json.NewDecoder(r.Body).Decode(capture); err != nil {
				t.Errorf("decode request: %v", err)
			}
		}

		resp := completionResponse{Object: "chat.completion"}
		resp.Choices = append(resp.Choices, struct {
			Index   int `json:"index"`
			Message struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"message"`
			FinishReason string `json:"finish_reason"`
		}{})
		resp.Choices[0].Message.Role = "assistant"
		resp.Choices[0].Message.Content = content
		resp.Choices[0].FinishReason = "stop"

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
}

// openAICompletionRequest captures what the client sent over the wire.
type openAICompletionRequest struct {
	Model    string `json:"model"`
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float32 `json:"temperature"`
}

func TestCompleter_Complete(t *testing.T) {
	var captured openAICompletionRequest
	server := completionServer(t, "grounded answer", &captured)
	defer server.Close()

	c := NewCompleter(&Config{
		APIKey:  "test-key",
		BaseURL: server.URL,
		Logger:  zap.NewNop(),
	}, "test-chat-model")

	got, err := c.Complete(context.Background(), domain.CompletionRequest{
		Messages: []domain.ChatMessage{
			{Role: "system", Content: "context"},
			{Role: "user", Content: "question"},
		},
		MaxTokens:   1500,
		Temperature: 0.3,
	})
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if got != "grounded answer" {
		t.Errorf("content = %q", got)
	}

	if captured.Model != "test-chat-model" {
		t.Errorf("model = %q", captured.Model)
	}
	if captured.MaxTokens != 1500 {
		t.Errorf("max_tokens = %d, want 1500", captured.MaxTokens)
	}
	if captured.Temperature != 0.3 {
		t.Errorf("temperature = %v, want 0.3", captured.Temperature)
	}
	if len(captured.Messages) != 2 || captured.Messages[0].Role != "system" {
		t.Errorf("messages = %+v", captured.Messages)
	}
}

func TestCompleter_Non2xxIsProviderError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error": {"message": "overloaded"}}`))
	}))
	defer server.Close()

	c := NewCompleter(&Config{APIKey: "k", BaseURL: server.URL, Logger: zap.NewNop()}, "m")

	_, err := c.Complete(context.Background(), domain.CompletionRequest{
		Messages: []domain.ChatMessage{{Role: "user", Content: "q"}},
	})
	if !errors.Is(err, domain.ErrCompletionProviderError) {
		t.Errorf("err = %v, want ErrCompletionProviderError", err)
	}
}

func TestCompleter_EmptyChoicesIsProviderError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"object": "chat.completion", "choices": []}`))
	}))
	defer server.Close()

	c := NewCompleter(&Config{APIKey: "k", BaseURL: server.URL, Logger: zap.NewNop()}, "m")

	_, err := c.Complete(context.Background(), domain.CompletionRequest{
		Messages: []domain.ChatMessage{{Role: "user", Content: "q"}},
	})
	if !errors.Is(err, domain.ErrCompletionProviderError) {
		t.Errorf("err = %v, want ErrCompletionProviderError", err)
	}
}
