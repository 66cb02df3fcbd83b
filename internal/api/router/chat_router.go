package router

import (
	"net/http"
	"strings"

	"storefront-chat/internal/api"
	"storefront-chat/internal/api/endpoints"
	"storefront-chat/internal/api/middleware"
)

func ChatRoutes(prefix string) api.RouteRegistrar {
	return func(mux *http.ServeMux, s *api.APIServer) {
		base := strings.TrimRight(prefix, "/")
		chatEndpoints := endpoints.NewChatEndpoints(s.Chat(), s.Websocket(), endpoints.DefaultChatPaths(base))

		mux.HandleFunc(base+"/messages", s.MakeHTTPHandleFunc(chatEndpoints.Messages, middleware.Authenticate))
		mux.HandleFunc(base+"/conversations", s.MakeHTTPHandleFunc(chatEndpoints.Conversations, middleware.Authenticate))
		mux.HandleFunc(base+"/conversations/", s.MakeHTTPHandleFunc(chatEndpoints.Conversation, middleware.Authenticate))
		mux.HandleFunc(base+"/presence/", s.MakeHTTPHandleFunc(chatEndpoints.Presence, middleware.Authenticate))
		mux.HandleFunc(base+"/ws", s.MakeStreamHandleFunc(chatEndpoints.Websocket, middleware.Authenticate))
	}
}
