package apiserver

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/devagency/agency"
	"github.com/effective-security/devagency/chatmodel"
	"github.com/effective-security/devagency/store"
	"github.com/effective-security/devagency/tools"
	"github.com/effective-security/x/values"
	"github.com/effective-security/xlog"
	"github.com/gorilla/mux"
	"github.com/invopop/jsonschema"
)

// maxBodySize limits the request body
const maxBodySize = 1 << 20

// ToolInfo describes a registered tool.
type ToolInfo struct {
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Parameters  *jsonschema.Schema `json:"parameters"`
}

// ToolResult is the response of a tool call.
type ToolResult struct {
	Tool   string `json:"tool"`
	Output string `json:"output"`
}

// AskRequest is the user message to the agency.
type AskRequest struct {
	Message string `json:"message"`
	// Agent defaults to the entry agent.
	Agent string `json:"agent,omitempty"`
	// ChatID continues the chat, a new chat is started when empty.
	ChatID string `json:"chat_id,omitempty"`
}

// AskResponse is the reply of the agent.
type AskResponse struct {
	ChatID string `json:"chat_id"`
	Agent  string `json:"agent"`
	Reply  string `json:"reply"`
}

// Message is a chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatMessages is the chat with its messages.
type ChatMessages struct {
	ChatID   string    `json:"chat_id"`
	Title    string    `json:"title"`
	Messages []Message `json:"messages"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.KV(xlog.ERROR, "status", "failed_to_encode_response", "err", err.Error())
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// chatContext returns the request context with the chat of the tenant.
func chatContext(r *http.Request, chatID string) (*http.Request, string) {
	tenantID := values.StringsCoalesce(r.Header.Get(TenantHeader), chatmodel.DefaultTenantID)
	cc := chatmodel.NewChatContext(tenantID, chatID, nil)
	return r.WithContext(chatmodel.WithChatContext(r.Context(), cc)), cc.GetChatID()
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListAgents(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.agency.Agents())
}

func (s *Server) handleListFlows(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.agency.Flows())
}

func (s *Server) handleListTools(w http.ResponseWriter, _ *http.Request) {
	list := s.registry.List()
	res := make([]ToolInfo, len(list))
	for i, t := range list {
		res[i] = ToolInfo{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  t.Parameters(),
		}
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleCallTool(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	r, _ = chatContext(r, "")
	out, err := s.registry.Call(r.Context(), name, string(body))
	if err != nil {
		switch {
		case errors.Is(err, tools.ErrToolNotFound):
			writeError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, tools.ErrInvalidInput), errors.Is(err, chatmodel.ErrFailedUnmarshalInput):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	writeJSON(w, http.StatusOK, ToolResult{Tool: name, Output: out})
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req AskRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodySize)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}
	agentName := values.StringsCoalesce(req.Agent, s.agency.Entry())

	r, chatID := chatContext(r, req.ChatID)
	reply, err := s.agency.AskAgent(r.Context(), agentName, req.Message)
	if err != nil {
		if errors.Is(err, agency.ErrAgentNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		logger.ContextKV(r.Context(), xlog.ERROR,
			"status", "failed_to_ask",
			"agent", agentName,
			"chat_id", chatID,
			"err", err.Error(),
		)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, AskResponse{ChatID: chatID, Agent: agentName, Reply: reply})
}

func (s *Server) handleListChats(w http.ResponseWriter, r *http.Request) {
	r, _ = chatContext(r, "")
	chats, err := s.store.ListChats(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if chats == nil {
		chats = []string{}
	}
	writeJSON(w, http.StatusOK, chats)
}

func (s *Server) getChat(w http.ResponseWriter, r *http.Request) (*http.Request, *store.ChatInfo, bool) {
	r, _ = chatContext(r, mux.Vars(r)["id"])
	info, err := s.store.GetChatInfo(r.Context(), "")
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "chat not found")
		} else {
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return r, nil, false
	}
	return r, info, true
}

func (s *Server) handleGetMessages(w http.ResponseWriter, r *http.Request) {
	_, info, ok := s.getChat(w, r)
	if !ok {
		return
	}
	res := ChatMessages{
		ChatID:   info.ChatID,
		Title:    info.Title,
		Messages: make([]Message, len(info.Messages)),
	}
	for i, m := range info.Messages {
		res.Messages[i] = Message{Role: string(m.Role), Content: m.GetContent()}
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleDeleteChat(w http.ResponseWriter, r *http.Request) {
	r, _, ok := s.getChat(w, r)
	if !ok {
		return
	}
	if err := s.store.Reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
