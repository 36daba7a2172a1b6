package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	gochi "github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/recall-labs/recall/internal/domain"
	healthuc "github.com/recall-labs/recall/internal/usecase/health"
)

// --- Mocks ---

type mockChat struct {
	result  domain.ChatResult
	err     error
	lastReq domain.ChatRequest
	called  bool
}

func (m *mockChat) Chat(_ context.Context, req domain.ChatRequest) (domain.ChatResult, error) {
	m.called = true
	m.lastReq = req
	return m.result, m.err
}

type mockPhones struct {
	userID    string
	err       error
	lastPhone string
}

func (m *mockPhones) UserIDByPhone(_ context.Context, phone string) (string, error) {
	m.lastPhone = phone
	return m.userID, m.err
}

type mockHealth struct {
	report healthuc.Report
}

func (m *mockHealth) Check(_ context.Context) healthuc.Report { return m.report }

func newTestRouter(web, webhook *mockChat, phones *mockPhones, health *mockHealth) http.Handler {
	if health == nil {
		health = &mockHealth{report: healthuc.Report{Status: healthuc.Healthy}}
	}
	srv := NewServer(web, webhook, phones, health, zap.NewNop())
	r := gochi.NewRouter()
	srv.RegisterRoutes(r)
	return r
}

func postJSON(t *testing.T, h http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func postForm(t *testing.T, h http.Handler, path string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

// --- Tests ---

func TestChatEndpoint(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		web := &mockChat{result: domain.ChatResult{
			Response:  "Thursday at 3pm.",
			Sources:   []domain.Source{{ID: "item-1", Title: "Dentist", Type: domain.ItemTypeNote}},
			Grounding: domain.GroundingVector,
		}}
		h := newTestRouter(web, &mockChat{}, &mockPhones{}, nil)

		w := postJSON(t, h, "/v1/chat",
			`{"message":"when is my dentist appointment?","user_id":"u1"}`)

		require.Equal(t, http.StatusOK, w.Code)
		var resp domain.ChatResult
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "Thursday at 3pm.", resp.Response)
		assert.Equal(t, domain.GroundingVector, resp.Grounding)
		require.Len(t, resp.Sources, 1)
		assert.Equal(t, "item-1", resp.Sources[0].ID)

		assert.Equal(t, "when is my dentist appointment?", web.lastReq.Message)
		assert.Equal(t, "u1", web.lastReq.UserID)
	})

	t.Run("history forwarded", func(t *testing.T) {
		web := &mockChat{}
		h := newTestRouter(web, &mockChat{}, &mockPhones{}, nil)

		postJSON(t, h, "/v1/chat", `{
			"message": "and the address?",
			"user_id": "u1",
			"conversation_history": [
				{"role": "user", "content": "when is my appointment?"},
				{"role": "assistant", "content": "Thursday at 3pm."}
			]
		}`)

		require.Len(t, web.lastReq.History, 2)
		assert.Equal(t, domain.RoleAssistant, web.lastReq.History[1].Role)
	})

	t.Run("invalid body", func(t *testing.T) {
		h := newTestRouter(&mockChat{}, &mockChat{}, &mockPhones{}, nil)

		w := postJSON(t, h, "/v1/chat", "not json")

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), codeBadRequest)
	})

	t.Run("invalid request sentinel", func(t *testing.T) {
		web := &mockChat{err: domain.ErrInvalidRequest}
		h := newTestRouter(web, &mockChat{}, &mockPhones{}, nil)

		w := postJSON(t, h, "/v1/chat", `{"message":"","user_id":"u1"}`)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("generation failure returns apology", func(t *testing.T) {
		web := &mockChat{err: domain.ErrGenerationFailed}
		h := newTestRouter(web, &mockChat{}, &mockPhones{}, nil)

		w := postJSON(t, h, "/v1/chat", `{"message":"q","user_id":"u1"}`)

		require.Equal(t, http.StatusOK, w.Code)
		var resp domain.ChatResult
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, generationApology, resp.Response)
		assert.Empty(t, resp.Sources)
		assert.Equal(t, domain.GroundingNone, resp.Grounding)
	})

	t.Run("unexpected error is 500", func(t *testing.T) {
		web := &mockChat{err: errors.New("boom")}
		h := newTestRouter(web, &mockChat{}, &mockPhones{}, nil)

		w := postJSON(t, h, "/v1/chat", `{"message":"q","user_id":"u1"}`)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Contains(t, w.Body.String(), codeInternalError)
	})
}

func TestMessagingWebhook(t *testing.T) {
	form := func(from, body string) url.Values {
		return url.Values{"From": {from}, "Body": {body}}
	}

	t.Run("success", func(t *testing.T) {
		webhook := &mockChat{result: domain.ChatResult{
			Response:  "You saved the receipt on Monday.",
			Grounding: domain.GroundingVector,
		}}
		phones := &mockPhones{userID: "u42"}
		h := newTestRouter(&mockChat{}, webhook, phones, nil)

		w := postForm(t, h, "/v1/webhooks/messaging", form("+15550001111", "where is my receipt?"))

		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "text/plain; charset=utf-8", w.Header().Get("Content-Type"))
		assert.Equal(t, "You saved the receipt on Monday.", w.Body.String())
		assert.Equal(t, "+15550001111", phones.lastPhone)
		assert.Equal(t, "u42", webhook.lastReq.UserID)
	})

	t.Run("recency grounding prefixes hedge", func(t *testing.T) {
		webhook := &mockChat{result: domain.ChatResult{
			Response:  "You saved three notes this week.",
			Grounding: domain.GroundingRecency,
		}}
		h := newTestRouter(&mockChat{}, webhook, &mockPhones{userID: "u1"}, nil)

		w := postForm(t, h, "/v1/webhooks/messaging", form("+15550001111", "anything new?"))

		require.Equal(t, http.StatusOK, w.Code)
		assert.True(t, strings.HasPrefix(w.Body.String(), recencyHedge))
		assert.Contains(t, w.Body.String(), "three notes")
	})

	t.Run("unknown sender", func(t *testing.T) {
		phones := &mockPhones{err: domain.ErrUserNotFound}
		h := newTestRouter(&mockChat{}, &mockChat{}, phones, nil)

		w := postForm(t, h, "/v1/webhooks/messaging", form("+15559999999", "hi"))

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Contains(t, w.Body.String(), codeNotFound)
	})

	t.Run("missing fields", func(t *testing.T) {
		h := newTestRouter(&mockChat{}, &mockChat{}, &mockPhones{}, nil)

		w := postForm(t, h, "/v1/webhooks/messaging", url.Values{"From": {"+15550001111"}})

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("generation failure replies apology text", func(t *testing.T) {
		webhook := &mockChat{err: domain.ErrGenerationFailed}
		h := newTestRouter(&mockChat{}, webhook, &mockPhones{userID: "u1"}, nil)

		w := postForm(t, h, "/v1/webhooks/messaging", form("+15550001111", "question"))

		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, generationApology, w.Body.String())
	})
}

func TestHealthEndpoint(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		health := &mockHealth{report: healthuc.Report{
			Status: healthuc.Healthy,
			Checks: map[string]healthuc.CheckResult{"database": healthuc.CheckOK},
		}}
		h := newTestRouter(&mockChat{}, &mockChat{}, &mockPhones{}, health)

		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"status":"ok"`)
	})

	t.Run("degraded is still 200", func(t *testing.T) {
		health := &mockHealth{report: healthuc.Report{Status: healthuc.Degraded}}
		h := newTestRouter(&mockChat{}, &mockChat{}, &mockPhones{}, health)

		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("unhealthy is 503", func(t *testing.T) {
		health := &mockHealth{report: healthuc.Report{Status: healthuc.Unhealthy}}
		h := newTestRouter(&mockChat{}, &mockChat{}, &mockPhones{}, health)

		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})
}
