package sdk

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/recall-labs/recall/internal/domain"
)

func TestChat_Success(t *testing.T) {
	var gotAuth string
	var gotReq ChatRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/chat" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotReq)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(domain.ChatResult{
			Response:  "Thursday at 3pm.",
			Sources:   []domain.Source{{ID: "item-1", Title: "Dentist", Type: domain.ItemTypeNote}},
			Grounding: domain.GroundingVector,
		})
	}))
	defer srv.Close()

	client := New(srv.URL, WithAPIKey("key-1"))
	result, err := client.Chat(context.Background(), ChatRequest{
		Message: "when is my appointment?",
		UserID:  "u1",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gotAuth != "Bearer key-1" {
		t.Errorf("auth header = %q", gotAuth)
	}
	if gotReq.Message != "when is my appointment?" || gotReq.UserID != "u1" {
		t.Errorf("request = %+v", gotReq)
	}
	if result.Response != "Thursday at 3pm." {
		t.Errorf("response = %q", result.Response)
	}
	if len(result.Sources) != 1 || result.Sources[0].ID != "item-1" {
		t.Errorf("sources = %+v", result.Sources)
	}
	if result.Grounding != domain.GroundingVector {
		t.Errorf("grounding = %q", result.Grounding)
	}
}

func TestChat_ErrorEnvelope(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   error
	}{
		{name: "bad request", status: http.StatusBadRequest, want: ErrBadRequest},
		{name: "unauthorized", status: http.StatusUnauthorized, want: ErrUnauthorized},
		{name: "not found", status: http.StatusNotFound, want: ErrNotFound},
		{name: "server error", status: http.StatusInternalServerError, want: ErrServer},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_ = json.NewEncoder(w).Encode(map[string]string{
					"code": "some_code", "message": "details here",
				})
			}))
			defer srv.Close()

			client := New(srv.URL)
			_, err := client.Chat(context.Background(), ChatRequest{Message: "q", UserID: "u1"})
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestHealth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status": "error",
			"checks": map[string]string{"database": "error"},
		})
	}))
	defer srv.Close()

	client := New(srv.URL)
	report, err := client.Health(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Status != "error" || report.Checks["database"] != "error" {
		t.Errorf("report = %+v", report)
	}
}
