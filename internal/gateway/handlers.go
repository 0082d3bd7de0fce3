package gateway

import (
	"net/http"

	"github.com/quorumhq/quorum/types"
)

func (g *Gateway) handleHealth(w http.ResponseWriter, _ *http.Request) {
	g.writeSuccess(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (g *Gateway) handleListModels(w http.ResponseWriter, _ *http.Request) {
	g.writeSuccess(w, http.StatusOK, g.catalog.List())
}

type createConversationRequest struct {
	UserID   string `json:"user_id"`
	Question string `json:"question"`
}

func (g *Gateway) handleCreateConversation(w http.ResponseWriter, r *http.Request) {
	var req createConversationRequest
	if err := decodeBody(r, &req); err != nil {
		g.writeError(w, err)
		return
	}
	if req.UserID == "" || req.Question == "" {
		g.writeError(w, types.NewError(types.ErrInvalidMessage, "user_id and question are required"))
		return
	}

	conv, err := g.engine.CreateConversation(r.Context(), req.UserID, req.Question)
	if err != nil {
		g.writeError(w, err)
		return
	}
	g.writeSuccess(w, http.StatusCreated, conv)
}

type createDebateRequest struct {
	UserID string                 `json:"user_id"`
	Topic  string                 `json:"topic"`
	Models []types.ModelSelection `json:"models"`
}

func (g *Gateway) handleCreateDebate(w http.ResponseWriter, r *http.Request) {
	var req createDebateRequest
	if err := decodeBody(r, &req); err != nil {
		g.writeError(w, err)
		return
	}
	if req.UserID == "" || req.Topic == "" {
		g.writeError(w, types.NewError(types.ErrInvalidMessage, "user_id and topic are required"))
		return
	}
	if len(req.Models) == 0 {
		g.writeError(w, types.NewError(types.ErrInvalidMessage, "at least one model selection is required"))
		return
	}

	conv, err := g.engine.CreateDebate(r.Context(), req.UserID, req.Topic, req.Models)
	if err != nil {
		g.writeError(w, err)
		return
	}
	g.writeSuccess(w, http.StatusCreated, conv)
}

func (g *Gateway) handleGetConversation(w http.ResponseWriter, r *http.Request) {
	conv, err := g.engine.GetConversation(r.PathValue("id"))
	if err != nil {
		g.writeError(w, err)
		return
	}
	g.writeSuccess(w, http.StatusOK, conv)
}

func (g *Gateway) handleListConversations(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		g.writeError(w, types.NewError(types.ErrInvalidMessage, "user_id query parameter is required"))
		return
	}
	g.writeSuccess(w, http.StatusOK, g.engine.ListConversations(userID))
}

type postMessageRequest struct {
	Type    types.MessageType `json:"type"`
	Content string            `json:"content"`
}

func (g *Gateway) handlePostMessage(w http.ResponseWriter, r *http.Request) {
	var req postMessageRequest
	if err := decodeBody(r, &req); err != nil {
		g.writeError(w, err)
		return
	}
	if req.Content == "" {
		g.writeError(w, types.NewError(types.ErrInvalidMessage, "content is required"))
		return
	}
	if req.Type == "" {
		req.Type = types.TypeUserResponse
	}

	if err := g.engine.ProcessUserMessage(r.Context(), r.PathValue("id"), req.Type, req.Content); err != nil {
		g.writeError(w, err)
		return
	}
	g.writeSuccess(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func (g *Gateway) handlePauseConversation(w http.ResponseWriter, r *http.Request) {
	if err := g.engine.PauseConversation(r.Context(), r.PathValue("id")); err != nil {
		g.writeError(w, err)
		return
	}
	g.writeSuccess(w, http.StatusOK, map[string]string{"status": "paused"})
}

func (g *Gateway) handleStopDebate(w http.ResponseWriter, r *http.Request) {
	if err := g.engine.StopDebate(r.Context(), r.PathValue("id")); err != nil {
		g.writeError(w, err)
		return
	}
	g.writeSuccess(w, http.StatusOK, map[string]string{"status": "stopped"})
}

func (g *Gateway) handleResumeDebate(w http.ResponseWriter, r *http.Request) {
	if err := g.engine.ResumeDebate(r.Context(), r.PathValue("id")); err != nil {
		g.writeError(w, err)
		return
	}
	g.writeSuccess(w, http.StatusOK, map[string]string{"status": "debating"})
}

func (g *Gateway) handleConcludeDebate(w http.ResponseWriter, r *http.Request) {
	report, err := g.engine.ConcludeDebate(r.Context(), r.PathValue("id"))
	if err != nil {
		g.writeError(w, err)
		return
	}
	g.writeSuccess(w, http.StatusOK, map[string]string{"report": report})
}
