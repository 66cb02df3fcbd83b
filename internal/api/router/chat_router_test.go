package router

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"storefront-chat/internal/api"
	"storefront-chat/internal/api/middleware"
	"storefront-chat/internal/bus"
	"storefront-chat/internal/dto"
	"storefront-chat/internal/jwt"
	"storefront-chat/internal/presence"
	"storefront-chat/internal/queue"
	"storefront-chat/internal/service/chat"
	"storefront-chat/internal/service/directory"
	"storefront-chat/internal/service/message"
	"storefront-chat/internal/websocket"

	gorilla "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const prefix = "/api/chat/v1"

type testServer struct {
	url string
	hub *bus.Hub
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	jwt.SetSecret("router-test-secret")

	hub := bus.NewHub()
	tracker := presence.NewTracker(presence.Options{})
	svc := chat.NewService(chat.Deps{
		Messages:  message.NewMemoryStore(message.Options{}),
		Directory: directory.NewMemory(),
		Publisher: hub,
		Viewing:   hub,
		Presence:  tracker,
	})
	tracker.SetNotifier(svc)
	ws := websocket.NewHandler(hub, tracker, chat.NewSessionCommands(svc, hub), websocket.Config{})

	rqm := queue.NewRequestQueueManager(16, 4)
	srv := api.NewAPIServer(":test", rqm, svc, ws, middleware.DefaultCORSConfig([]string{"*"}),
		ChatRoutes(prefix),
		UtilsRoutes(prefix),
	)
	ts := httptest.NewServer(srv.HTTPHandler())
	t.Cleanup(func() {
		hub.Close()
		ts.Close()
		rqm.Shutdown()
	})
	return &testServer{url: ts.URL, hub: hub}
}

func token(t *testing.T, id, role string) string {
	t.Helper()
	tok, err := jwt.CreateToken(jwt.User{ID: id, Role: role}, time.Now().Add(time.Hour).Unix())
	require.NoError(t, err)
	return tok
}

func (s *testServer) do(t *testing.T, method, path, tok string, body any, out any) int {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, s.url+path, reader)
	require.NoError(t, err)
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil && resp.StatusCode < 300 {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestChatFlowOverREST(t *testing.T) {
	s := newTestServer(t)
	customer := token(t, "C", "customer")
	seller := token(t, "S", "seller")

	assert.Equal(t, http.StatusUnauthorized,
		s.do(t, http.MethodPost, prefix+"/messages", "", dto.SendMessageRequest{ReceiverID: "S", Content: "Hello"}, nil))

	var sent dto.SendMessageResponse
	require.Equal(t, http.StatusCreated,
		s.do(t, http.MethodPost, prefix+"/messages", customer, dto.SendMessageRequest{ReceiverID: "S", Content: "Hello"}, &sent))
	assert.Equal(t, "Hello", sent.Message.Content)
	assert.Equal(t, "sent", sent.Message.Status)
	assert.Equal(t, 0, sent.Conversation.Unread)
	convID := sent.Conversation.ConversationID
	require.NotEmpty(t, convID)

	var listed dto.ListConversationsResponse
	require.Equal(t, http.StatusOK, s.do(t, http.MethodGet, prefix+"/conversations", seller, nil, &listed))
	require.Len(t, listed.Conversations, 1)
	assert.Equal(t, 1, listed.Conversations[0].Unread)
	require.NotNil(t, listed.Conversations[0].LastMessage)
	assert.Equal(t, "Hello", listed.Conversations[0].LastMessage.Content)

	var history dto.HistoryResponse
	require.Equal(t, http.StatusOK, s.do(t, http.MethodGet, prefix+"/conversations/"+convID+"/messages?page=1&pageSize=10", seller, nil, &history))
	require.Len(t, history.Messages, 1)
	assert.Equal(t, "delivered", history.Messages[0].Status)
	require.Len(t, history.Days, 1)

	var read dto.MarkReadResponse
	require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, prefix+"/conversations/"+convID+"/read", seller, nil, &read))
	assert.Equal(t, 1, read.Updated)
	require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, prefix+"/conversations/"+convID+"/read", seller, nil, &read))
	assert.Equal(t, 0, read.Updated)

	listed = dto.ListConversationsResponse{}
	require.Equal(t, http.StatusOK, s.do(t, http.MethodGet, prefix+"/conversations?role=seller", seller, nil, &listed))
	require.Len(t, listed.Conversations, 1)
	assert.Equal(t, 0, listed.Conversations[0].Unread)
}

func TestRESTErrors(t *testing.T) {
	s := newTestServer(t)
	customer := token(t, "C", "customer")
	outsider := token(t, "X", "customer")

	var sent dto.SendMessageResponse
	require.Equal(t, http.StatusCreated,
		s.do(t, http.MethodPost, prefix+"/messages", customer, dto.SendMessageRequest{ReceiverID: "S", Images: []string{"https://cdn.example/a.jpg"}}, &sent))
	convID := sent.Conversation.ConversationID

	assert.Equal(t, http.StatusBadRequest,
		s.do(t, http.MethodPost, prefix+"/messages", customer, dto.SendMessageRequest{ReceiverID: "S"}, nil))
	assert.Equal(t, http.StatusForbidden,
		s.do(t, http.MethodPost, prefix+"/conversations/"+convID+"/read", outsider, nil, nil))
	assert.Equal(t, http.StatusForbidden,
		s.do(t, http.MethodGet, prefix+"/conversations/"+convID+"/messages", outsider, nil, nil))
	assert.Equal(t, http.StatusNotFound,
		s.do(t, http.MethodGet, prefix+"/conversations/missing/messages", customer, nil, nil))
	assert.Equal(t, http.StatusNotFound,
		s.do(t, http.MethodGet, prefix+"/conversations/"+convID+"/bogus", customer, nil, nil))
	assert.Equal(t, http.StatusMethodNotAllowed,
		s.do(t, http.MethodGet, prefix+"/messages", customer, nil, nil))
	assert.Equal(t, http.StatusBadRequest,
		s.do(t, http.MethodGet, prefix+"/conversations?role=admin", customer, nil, nil))
	assert.Equal(t, http.StatusBadRequest,
		s.do(t, http.MethodGet, prefix+"/conversations/"+convID+"/messages?page=x", customer, nil, nil))
}

func TestHealthAndPresence(t *testing.T) {
	s := newTestServer(t)
	customer := token(t, "C", "customer")

	var health map[string]string
	require.Equal(t, http.StatusOK, s.do(t, http.MethodGet, prefix+"/health", "", nil, &health))
	assert.Equal(t, "ok", health["status"])

	var p dto.Presence
	require.Equal(t, http.StatusOK, s.do(t, http.MethodGet, prefix+"/presence/S", customer, nil, &p))
	assert.Equal(t, "S", p.UserID)
	assert.False(t, p.Online)
}

func TestWebsocketReceivesNewMessage(t *testing.T) {
	s := newTestServer(t)
	customer := token(t, "C", "customer")
	seller := token(t, "S", "seller")

	var sent dto.SendMessageResponse
	require.Equal(t, http.StatusCreated,
		s.do(t, http.MethodPost, prefix+"/messages", customer, dto.SendMessageRequest{ReceiverID: "S", Content: "first"}, &sent))
	convID := sent.Conversation.ConversationID

	wsURL := "ws" + strings.TrimPrefix(s.url, "http") + prefix + "/ws?token=" + seller
	conn, resp, err := gorilla.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	resp.Body.Close()
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(websocket.Command{Type: websocket.CommandJoin, ConversationID: convID}))
	require.Eventually(t, func() bool { return s.hub.IsViewing("S", convID) }, 2*time.Second, 10*time.Millisecond)

	var p dto.Presence
	require.Equal(t, http.StatusOK, s.do(t, http.MethodGet, prefix+"/presence/S", customer, nil, &p))
	assert.True(t, p.Online)

	require.Equal(t, http.StatusCreated,
		s.do(t, http.MethodPost, prefix+"/messages", customer, dto.SendMessageRequest{ConversationID: convID, Content: "second"}, &sent))
	assert.Equal(t, "delivered", sent.Message.Status)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var frame struct {
		Type           bus.EventType `json:"type"`
		ConversationID string        `json:"conversationId"`
		Payload        dto.Message   `json:"payload"`
	}
	require.NoError(t, conn.ReadJSON(&frame))
	assert.Equal(t, bus.EventNewMessage, frame.Type)
	assert.Equal(t, convID, frame.ConversationID)
	assert.Equal(t, "second", frame.Payload.Content)

	var listed dto.ListConversationsResponse
	require.Equal(t, http.StatusOK, s.do(t, http.MethodGet, prefix+"/conversations", seller, nil, &listed))
	require.Len(t, listed.Conversations, 1)
	// The second message arrived while the seller was viewing the thread.
	assert.Equal(t, 1, listed.Conversations[0].Unread)
}

func TestWebsocketRequiresToken(t *testing.T) {
	s := newTestServer(t)
	wsURL := "ws" + strings.TrimPrefix(s.url, "http") + prefix + "/ws"
	_, resp, err := gorilla.DefaultDialer.Dial(wsURL, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
