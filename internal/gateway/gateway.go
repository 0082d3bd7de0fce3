package gateway

import (
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/quorumhq/quorum/internal/notify"
	"github.com/quorumhq/quorum/llm"
	"github.com/quorumhq/quorum/orchestrator"
	"github.com/quorumhq/quorum/types"
)

// Gateway exposes the engine over REST plus a websocket event feed.
type Gateway struct {
	engine  *orchestrator.Orchestrator
	hub     *notify.Hub
	catalog *llm.Catalog
	logger  *zap.Logger
}

// New creates a gateway.
func New(engine *orchestrator.Orchestrator, hub *notify.Hub, catalog *llm.Catalog, logger *zap.Logger) *Gateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gateway{
		engine:  engine,
		hub:     hub,
		catalog: catalog,
		logger:  logger.With(zap.String("component", "gateway")),
	}
}

// Routes builds the HTTP routing table.
func (g *Gateway) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", g.handleHealth)
	mux.HandleFunc("GET /api/models", g.handleListModels)

	mux.HandleFunc("POST /api/conversations", g.handleCreateConversation)
	mux.HandleFunc("GET /api/conversations", g.handleListConversations)
	mux.HandleFunc("GET /api/conversations/{id}", g.handleGetConversation)
	mux.HandleFunc("POST /api/conversations/{id}/messages", g.handlePostMessage)

	mux.HandleFunc("POST /api/debates", g.handleCreateDebate)
	mux.HandleFunc("POST /api/conversations/{id}/pause", g.handlePauseConversation)
	mux.HandleFunc("POST /api/conversations/{id}/stop", g.handleStopDebate)
	mux.HandleFunc("POST /api/conversations/{id}/resume", g.handleResumeDebate)
	mux.HandleFunc("POST /api/conversations/{id}/conclude", g.handleConcludeDebate)

	mux.HandleFunc("GET /ws/conversations/{id}", g.handleSubscribe)
	return mux
}

// Response is the uniform API envelope.
type Response struct {
	Success   bool       `json:"success"`
	Data      any        `json:"data,omitempty"`
	Error     *ErrorInfo `json:"error,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
}

// ErrorInfo is the serialized error payload.
type ErrorInfo struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (g *Gateway) writeSuccess(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, Response{Success: true, Data: data, Timestamp: time.Now()})
}

func (g *Gateway) writeError(w http.ResponseWriter, err error) {
	code := types.GetErrorCode(err)
	info := &ErrorInfo{Code: string(code), Message: err.Error()}
	var typed *types.Error
	if e, ok := err.(*types.Error); ok {
		typed = e
		info.Message = typed.Message
		info.Retryable = typed.Retryable
	}

	status := httpStatusFor(code)
	g.logger.Warn("API error",
		zap.String("code", string(code)),
		zap.String("message", info.Message),
		zap.Int("status", status),
	)
	writeJSON(w, status, Response{Success: false, Error: info, Timestamp: time.Now()})
}

func httpStatusFor(code types.ErrorCode) int {
	switch code {
	case types.ErrConversationNotFound, types.ErrUnknownAgent, types.ErrModelNotFound:
		return http.StatusNotFound
	case types.ErrInvalidMessage, types.ErrInvalidDecision:
		return http.StatusBadRequest
	case types.ErrInvalidStatus, types.ErrDuplicateAgent:
		return http.StatusConflict
	case types.ErrAgentCall:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func decodeBody(r *http.Request, v any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return types.NewError(types.ErrInvalidMessage, "invalid request body").WithCause(err)
	}
	return nil
}
