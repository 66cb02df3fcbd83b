package router

import (
	"net/http"
	"strings"

	"storefront-chat/internal/api"
	"storefront-chat/internal/api/endpoints"
)

func UtilsRoutes(prefix string) api.RouteRegistrar {
	return func(mux *http.ServeMux, s *api.APIServer) {
		utilsEndpoints := endpoints.NewUtilsEndpoints()
		mux.HandleFunc(strings.TrimRight(prefix, "/")+"/health", s.MakeHTTPHandleFunc(utilsEndpoints.Health))
	}
}
