package endpoints

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"storefront-chat/internal/api/middleware"
	"storefront-chat/internal/dto"
	"storefront-chat/internal/errs"
	"storefront-chat/internal/model"
	"storefront-chat/internal/service/chat"
	"storefront-chat/internal/service/message"
	"storefront-chat/internal/websocket"
)

const maxRequestBody = 1 << 20

type ChatEndpoints interface {
	Messages(http.ResponseWriter, *http.Request) error
	Conversations(http.ResponseWriter, *http.Request) error
	Conversation(http.ResponseWriter, *http.Request) error
	Presence(http.ResponseWriter, *http.Request) error
	Websocket(http.ResponseWriter, *http.Request) error
}

// ChatPaths are the prefixes used to pull ids out of request paths.
type ChatPaths struct {
	ConversationPrefix string
	PresencePrefix     string
}

func DefaultChatPaths(prefix string) ChatPaths {
	base := strings.TrimRight(prefix, "/")
	return ChatPaths{
		ConversationPrefix: base + "/conversations/",
		PresencePrefix:     base + "/presence/",
	}
}

type chatEndpoints struct {
	service *chat.Service
	ws      *websocket.Handler
	paths   ChatPaths
}

func NewChatEndpoints(service *chat.Service, ws *websocket.Handler, paths ChatPaths) ChatEndpoints {
	return &chatEndpoints{service: service, ws: ws, paths: paths}
}

func identity(r *http.Request) (chat.Identity, error) {
	user, ok := middleware.UserFrom(r.Context())
	if !ok || user.ID == "" {
		return chat.Identity{}, &HTTPError{StatusCode: http.StatusUnauthorized, Code: "unauthorized", Message: "Unauthorized"}
	}
	return chat.Identity{UserID: user.ID, Role: model.Role(user.Role)}, nil
}

func (h *chatEndpoints) Messages(w http.ResponseWriter, r *http.Request) error {
	return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
		http.MethodPost: h.handleSendMessage,
	})
}

func (h *chatEndpoints) Conversations(w http.ResponseWriter, r *http.Request) error {
	return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
		http.MethodGet: h.handleListConversations,
	})
}

// Conversation serves /conversations/{id}/messages and /conversations/{id}/read.
func (h *chatEndpoints) Conversation(w http.ResponseWriter, r *http.Request) error {
	params := pathParams(r.URL.Path, h.paths.ConversationPrefix)
	if len(params) != 2 {
		return notFound()
	}
	switch params[1] {
	case "messages":
		return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
			http.MethodGet: func(w http.ResponseWriter, r *http.Request) error {
				return h.handleHistory(w, r, params[0])
			},
		})
	case "read":
		return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
			http.MethodPost: func(w http.ResponseWriter, r *http.Request) error {
				return h.handleMarkRead(w, r, params[0])
			},
		})
	}
	return notFound()
}

func (h *chatEndpoints) Presence(w http.ResponseWriter, r *http.Request) error {
	params := pathParams(r.URL.Path, h.paths.PresencePrefix)
	if len(params) != 1 {
		return notFound()
	}
	return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
		http.MethodGet: func(w http.ResponseWriter, r *http.Request) error {
			if _, err := identity(r); err != nil {
				return err
			}
			rec, err := h.service.Presence(r.Context(), params[0])
			if err != nil {
				return serviceError(err)
			}
			out := dto.Presence{UserID: rec.UserID, Online: rec.Online}
			if !rec.LastSeen.IsZero() {
				out.LastSeen = model.FormatTime(rec.LastSeen)
			}
			return WriteJSON(w, http.StatusOK, out)
		},
	})
}

func (h *chatEndpoints) Websocket(w http.ResponseWriter, r *http.Request) error {
	if r.Method != http.MethodGet {
		return MethodHandler(w, r, nil)
	}
	id, err := identity(r)
	if err != nil {
		return err
	}
	if h.ws == nil {
		return &HTTPError{StatusCode: http.StatusServiceUnavailable, Code: "unavailable", Message: "Realtime delivery disabled"}
	}
	h.ws.ServeWS(w, r, id.UserID)
	return nil
}

func (h *chatEndpoints) handleSendMessage(w http.ResponseWriter, r *http.Request) error {
	id, err := identity(r)
	if err != nil {
		return err
	}

	var req dto.SendMessageRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&req); err != nil {
		return badRequest("Invalid request body", fmt.Errorf("decode send message request: %w", err))
	}

	res, err := h.service.SendMessage(r.Context(), id, chat.SendParams{
		ConversationID: req.ConversationID,
		ReceiverID:     req.ReceiverID,
		Content:        req.Content,
		Images:         req.Images,
		ProductID:      req.ProductID,
		Product:        req.Product.Snapshot(),
	})
	if err != nil {
		return serviceError(err)
	}
	return WriteJSON(w, http.StatusCreated, dto.SendMessageResponse{
		Message:      dto.MessageFrom(res.Message),
		Conversation: dto.ConversationFor(res.Conversation, id.UserID),
	})
}

func (h *chatEndpoints) handleListConversations(w http.ResponseWriter, r *http.Request) error {
	id, err := identity(r)
	if err != nil {
		return err
	}
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		return err
	}
	role := model.Role(strings.TrimSpace(r.URL.Query().Get("role")))

	convs, err := h.service.ListConversations(r.Context(), id, role, limit)
	if err != nil {
		return serviceError(err)
	}
	out := dto.ListConversationsResponse{Conversations: make([]dto.Conversation, 0, len(convs))}
	for _, c := range convs {
		out.Conversations = append(out.Conversations, dto.ConversationFor(c, id.UserID))
	}
	return WriteJSON(w, http.StatusOK, out)
}

func (h *chatEndpoints) handleHistory(w http.ResponseWriter, r *http.Request, conversationID string) error {
	id, err := identity(r)
	if err != nil {
		return err
	}
	page, err := queryInt(r, "page", 1)
	if err != nil {
		return err
	}
	pageSize, err := queryInt(r, "pageSize", 0)
	if err != nil {
		return err
	}

	history, err := h.service.GetHistory(r.Context(), id, conversationID, page, pageSize)
	if err != nil {
		return serviceError(err)
	}
	return WriteJSON(w, http.StatusOK, historyResponse(conversationID, history))
}

func historyResponse(conversationID string, h message.History) dto.HistoryResponse {
	out := dto.HistoryResponse{
		ConversationID: conversationID,
		Messages:       dto.MessagesFrom(h.Messages),
		Days:           make([]dto.DayGroup, 0, len(h.Days)),
		Page:           h.Page,
		PageSize:       h.PageSize,
		HasMore:        h.HasMore,
	}
	for _, day := range h.Days {
		out.Days = append(out.Days, dto.DayGroup{Date: day.Date, Messages: dto.MessagesFrom(day.Messages)})
	}
	return out
}

func (h *chatEndpoints) handleMarkRead(w http.ResponseWriter, r *http.Request, conversationID string) error {
	id, err := identity(r)
	if err != nil {
		return err
	}
	res, err := h.service.MarkRead(r.Context(), id, conversationID)
	if err != nil {
		return serviceError(err)
	}
	return WriteJSON(w, http.StatusOK, dto.MarkReadResponse{ConversationID: conversationID, Updated: res.Updated})
}

func serviceError(err error) error {
	if err == nil {
		return nil
	}

	var svcErr *errs.Error
	if !errors.As(err, &svcErr) {
		return &HTTPError{
			StatusCode: http.StatusInternalServerError,
			Code:       string(errs.CodeInternal),
			Message:    "Internal server error",
			ErrorLog:   fmt.Errorf("chat service: %w", err),
		}
	}

	var logErr error
	if svcErr.Err != nil {
		logErr = fmt.Errorf("%s: %w", svcErr.Message, svcErr.Err)
	} else {
		logErr = svcErr
	}

	status := http.StatusInternalServerError
	message := svcErr.Message
	switch svcErr.Code {
	case errs.CodeValidation:
		status = http.StatusBadRequest
	case errs.CodeUnauthorized:
		status = http.StatusUnauthorized
	case errs.CodeForbidden:
		status = http.StatusForbidden
	case errs.CodeNotFound:
		status = http.StatusNotFound
	case errs.CodeConflict:
		status = http.StatusConflict
	case errs.CodeUnavailable:
		status = http.StatusServiceUnavailable
	default:
		message = "Internal server error"
	}
	return &HTTPError{StatusCode: status, Code: string(svcErr.Code), Message: message, ErrorLog: logErr}
}
