package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	gochi "github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/recall-labs/recall/internal/domain"
	healthuc "github.com/recall-labs/recall/internal/usecase/health"
)

// generationApology is the answer surfaced when the answer model itself
// fails. Channels return it as a normal reply so clients never see a
// provider outage as a request failure.
const generationApology = "Sorry, I couldn't put together an answer just now. Please try again in a moment."

// recencyHedge frames webhook replies grounded only in recent items.
const recencyHedge = "I didn't find anything saved that directly matches, but from your recent items: "

// ChatService answers a question against one channel's retrieval policy.
type ChatService interface {
	Chat(ctx context.Context, req domain.ChatRequest) (domain.ChatResult, error)
}

// PhoneResolver maps a messaging sender to a user scope.
type PhoneResolver interface {
	UserIDByPhone(ctx context.Context, phone string) (string, error)
}

// HealthService aggregates component health checks.
type HealthService interface {
	Check(ctx context.Context) healthuc.Report
}

// Server carries the HTTP handlers for both chat channels. The web and
// webhook channels run separate ChatService instances so each keeps its
// own similarity threshold.
type Server struct {
	web     ChatService
	webhook ChatService
	phones  PhoneResolver
	health  HealthService
	logger  *zap.Logger
}

// NewServer creates the HTTP API server.
func NewServer(
	web ChatService,
	webhook ChatService,
	phones PhoneResolver,
	health HealthService,
	logger *zap.Logger,
) *Server {
	return &Server{
		web:     web,
		webhook: webhook,
		phones:  phones,
		health:  health,
		logger:  logger,
	}
}

// RegisterRoutes binds the API routes onto the router. Middleware is the
// caller's concern; the composition root stacks it before calling this.
func (s *Server) RegisterRoutes(r gochi.Router) {
	r.Post("/v1/chat", s.Chat)
	r.Post("/v1/webhooks/messaging", s.MessagingWebhook)
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
}

type chatRequest struct {
	Message string                    `json:"message"`
	History []domain.ConversationTurn `json:"conversation_history,omitempty"`
	UserID  string                    `json:"user_id"`
}

// errorResponse is the JSON error envelope.
type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

const (
	codeBadRequest    = "bad_request"
	codeUnauthorized  = "unauthorized"
	codeNotFound      = "not_found"
	codeInternalError = "internal_error"
)

// Chat handles POST /v1/chat.
func (s *Server) Chat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "invalid request body: "+err.Error())
		return
	}

	result, err := s.web.Chat(r.Context(), domain.ChatRequest{
		Message: req.Message,
		History: req.History,
		UserID:  req.UserID,
	})
	if err != nil {
		s.handleChatError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// MessagingWebhook handles POST /v1/webhooks/messaging. The provider
// posts form-encoded From/Body pairs and expects a plain-text reply.
func (s *Server) MessagingWebhook(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "invalid form body: "+err.Error())
		return
	}

	from := r.PostFormValue("From")
	body := r.PostFormValue("Body")
	if from == "" || body == "" {
		writeError(w, http.StatusBadRequest, codeBadRequest, "From and Body are required")
		return
	}

	userID, err := s.phones.UserIDByPhone(r.Context(), from)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			writeError(w, http.StatusNotFound, codeNotFound, "no account for this sender")
			return
		}
		s.logger.Error("phone lookup failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
		return
	}

	result, err := s.webhook.Chat(r.Context(), domain.ChatRequest{Message: body, UserID: userID})
	if err != nil {
		if errors.Is(err, domain.ErrInvalidRequest) {
			writeError(w, http.StatusBadRequest, codeBadRequest, "invalid message")
			return
		}
		if errors.Is(err, domain.ErrGenerationFailed) {
			writeText(w, http.StatusOK, generationApology)
			return
		}
		s.logger.Error("webhook chat failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
		return
	}

	reply := result.Response
	if result.Grounding == domain.GroundingRecency {
		reply = recencyHedge + reply
	}
	writeText(w, http.StatusOK, reply)
}

// HealthCheck handles GET /health. Degraded still serves traffic, so
// only a dead database reports 503.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	httpStatus := http.StatusOK
	if report.Status == healthuc.Unhealthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, map[string]any{
		"status": report.Status,
		"checks": report.Checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

// handleChatError maps orchestrator errors for the web channel. A
// generation failure is a soft failure: 200 with an apology and no
// sources, matching what the webhook channel does.
func (s *Server) handleChatError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidRequest):
		writeError(w, http.StatusBadRequest, codeBadRequest, "message and user_id are required")
	case errors.Is(err, domain.ErrGenerationFailed):
		s.logger.Warn("answer generation failed, returning apology", zap.Error(err))
		writeJSON(w, http.StatusOK, domain.ChatResult{
			Response:  generationApology,
			Sources:   []domain.Source{},
			Grounding: domain.GroundingNone,
		})
	default:
		s.logger.Error("internal error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}
