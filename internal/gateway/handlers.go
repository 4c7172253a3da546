package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/jjadal/steward/internal/chat"
	"github.com/jjadal/steward/internal/version"
)

// HealthResponse is returned by health endpoints.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Clients int    `json:"clients,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(HealthResponse{Status: "ok"})
}

func handleNotFound(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusNotFound)
	json.NewEncoder(w).Encode(map[string]string{
		"error": "not found",
		"path":  r.URL.Path,
	})
}

// RequestHandler processes an incoming RPC request frame from a client.
type RequestHandler func(ctx *RequestContext)

// RequestContext carries everything a handler needs.
type RequestContext struct {
	Client *Client
	Frame  Frame
	Server *Server
}

// Respond sends a success response.
func (rc *RequestContext) Respond(payload any) {
	if err := rc.Client.Respond(rc.Frame.ID, payload); err != nil {
		rc.Server.log.Warn().Err(err).Str("method", rc.Frame.Method).Msg("failed to send response")
	}
}

// RespondError sends an error response.
func (rc *RequestContext) RespondError(code, message string) {
	rc.Client.RespondError(rc.Frame.ID, ErrorShape{
		Code:    code,
		Message: message,
	})
}

// RespondErr maps a chat-layer error onto a wire error code.
func (rc *RequestContext) RespondErr(err error) {
	var (
		verr *chat.ValidationError
		ierr *chat.InvalidOperationError
		nerr *chat.NotFoundError
		cerr *chat.ConfigurationError
		terr *chat.TransportError
		lerr *chat.ToolLoopExceededError
	)
	switch {
	case errors.As(err, &verr):
		rc.RespondError("invalid_params", err.Error())
	case errors.As(err, &ierr):
		rc.RespondError("invalid_state", err.Error())
	case errors.As(err, &nerr):
		rc.RespondError("not_found", err.Error())
	case errors.As(err, &cerr):
		rc.RespondError("config_error", err.Error())
	case errors.As(err, &terr):
		rc.RespondError("provider_error", err.Error())
	case errors.As(err, &lerr):
		rc.RespondError("tool_loop", err.Error())
	default:
		rc.RespondError("internal", err.Error())
	}
}

// Params unmarshals the request params into the given target.
func (rc *RequestContext) Params(target any) error {
	if rc.Frame.Params == nil {
		return nil
	}
	return json.Unmarshal(rc.Frame.Params, target)
}

// registerRPCHandlers sets up all RPC method handlers.
func (s *Server) registerRPCHandlers() {
	s.Handle("health", s.rpcHealth)
	s.Handle("chat.send", s.rpcChatSend)
	s.Handle("chat.edit", s.rpcChatEdit)
	s.Handle("chat.cancel", s.rpcChatCancel)
	s.Handle("chat.new", s.rpcChatNew)
	s.Handle("chat.load", s.rpcChatLoad)
	s.Handle("chat.delete", s.rpcChatDelete)
	s.Handle("chat.list", s.rpcChatList)
	s.Handle("chat.current", s.rpcChatCurrent)
	s.Handle("model.set", s.rpcModelSet)
	s.Handle("personality.set", s.rpcPersonalitySet)
	s.Handle("tools.list", s.rpcToolsList)
	s.Handle("usage.today", s.rpcUsageToday)
}

func (s *Server) rpcHealth(rc *RequestContext) {
	rc.Respond(HealthResponse{
		Status:  "ok",
		Version: version.Version,
		Clients: s.clients.Count(),
	})
}

func (s *Server) requireManager(rc *RequestContext) bool {
	if s.manager == nil {
		rc.RespondError("unavailable", "no session manager attached")
		return false
	}
	return true
}

type chatSendParams struct {
	Text string `json:"text"`
}

func (s *Server) rpcChatSend(rc *RequestContext) {
	if !s.requireManager(rc) {
		return
	}
	var p chatSendParams
	if err := rc.Params(&p); err != nil {
		rc.RespondError("invalid_params", err.Error())
		return
	}

	if err := s.manager.SendUserMessage(context.Background(), p.Text); err != nil {
		rc.RespondErr(err)
		return
	}

	conv := s.manager.Current()
	rc.Respond(map[string]any{
		"chatId": conv.ChatID,
		"turns":  len(conv.Turns),
	})
}

type chatEditParams struct {
	TurnID string `json:"turnId"`
	Text   string `json:"text"`
}

func (s *Server) rpcChatEdit(rc *RequestContext) {
	if !s.requireManager(rc) {
		return
	}
	var p chatEditParams
	if err := rc.Params(&p); err != nil {
		rc.RespondError("invalid_params", err.Error())
		return
	}

	if err := s.manager.EditUserMessage(context.Background(), p.TurnID, p.Text); err != nil {
		rc.RespondErr(err)
		return
	}

	conv := s.manager.Current()
	rc.Respond(map[string]any{
		"chatId": conv.ChatID,
		"turns":  len(conv.Turns),
	})
}

func (s *Server) rpcChatCancel(rc *RequestContext) {
	if !s.requireManager(rc) {
		return
	}
	s.manager.CancelActiveStream()
	rc.Respond(map[string]any{"cancelled": true})
}

type chatNewParams struct {
	Model       string `json:"model,omitempty"`
	Personality string `json:"personality,omitempty"`
}

func (s *Server) rpcChatNew(rc *RequestContext) {
	if !s.requireManager(rc) {
		return
	}
	var p chatNewParams
	if err := rc.Params(&p); err != nil {
		rc.RespondError("invalid_params", err.Error())
		return
	}

	deleted, err := s.manager.StartNewChat(p.Model, p.Personality)
	if err != nil {
		rc.RespondErr(err)
		return
	}
	rc.Respond(map[string]any{
		"chatId":        s.manager.Current().ChatID,
		"deletedChatId": deleted,
	})
}

type chatIDParams struct {
	ChatID string `json:"chatId"`
}

func (s *Server) rpcChatLoad(rc *RequestContext) {
	if !s.requireManager(rc) {
		return
	}
	var p chatIDParams
	if err := rc.Params(&p); err != nil {
		rc.RespondError("invalid_params", err.Error())
		return
	}

	deleted, err := s.manager.LoadChat(p.ChatID)
	if err != nil {
		rc.RespondErr(err)
		return
	}
	rc.Respond(map[string]any{
		"chat":          s.manager.Current(),
		"deletedChatId": deleted,
	})
}

func (s *Server) rpcChatDelete(rc *RequestContext) {
	if !s.requireManager(rc) {
		return
	}
	var p chatIDParams
	if err := rc.Params(&p); err != nil {
		rc.RespondError("invalid_params", err.Error())
		return
	}
	if err := s.manager.DeleteChat(p.ChatID); err != nil {
		rc.RespondErr(err)
		return
	}
	rc.Respond(map[string]any{"deleted": p.ChatID})
}

func (s *Server) rpcChatList(rc *RequestContext) {
	if !s.requireManager(rc) {
		return
	}
	chats, err := s.manager.ListChats()
	if err != nil {
		rc.RespondErr(err)
		return
	}
	rc.Respond(map[string]any{"chats": chats})
}

func (s *Server) rpcChatCurrent(rc *RequestContext) {
	if !s.requireManager(rc) {
		return
	}
	rc.Respond(map[string]any{
		"chat":      s.manager.Current(),
		"streaming": s.manager.Streaming(),
	})
}

type modelSetParams struct {
	Model string `json:"model"`
}

func (s *Server) rpcModelSet(rc *RequestContext) {
	if !s.requireManager(rc) {
		return
	}
	var p modelSetParams
	if err := rc.Params(&p); err != nil {
		rc.RespondError("invalid_params", err.Error())
		return
	}
	if err := s.manager.SetActiveModel(p.Model); err != nil {
		rc.RespondErr(err)
		return
	}
	rc.Respond(map[string]any{"model": p.Model})
}

type personalitySetParams struct {
	Personality string `json:"personality"`
}

func (s *Server) rpcPersonalitySet(rc *RequestContext) {
	if !s.requireManager(rc) {
		return
	}
	var p personalitySetParams
	if err := rc.Params(&p); err != nil {
		rc.RespondError("invalid_params", err.Error())
		return
	}
	if err := s.manager.SetActivePersonality(p.Personality); err != nil {
		rc.RespondErr(err)
		return
	}
	rc.Respond(map[string]any{"personality": p.Personality})
}

type toolsListParams struct {
	Names []string `json:"names,omitempty"`
}

func (s *Server) rpcToolsList(rc *RequestContext) {
	if s.tools == nil {
		rc.RespondError("unavailable", "no tool registry attached")
		return
	}
	var p toolsListParams
	if err := rc.Params(&p); err != nil {
		rc.RespondError("invalid_params", err.Error())
		return
	}
	rc.Respond(map[string]any{"tools": s.tools.Schemas(p.Names...)})
}

func (s *Server) rpcUsageToday(rc *RequestContext) {
	if s.usage == nil {
		rc.RespondError("unavailable", "no usage tracker attached")
		return
	}
	in, out, err := s.usage.Today()
	if err != nil {
		rc.RespondErr(err)
		return
	}
	rc.Respond(map[string]any{"inputTokens": in, "outputTokens": out})
}
