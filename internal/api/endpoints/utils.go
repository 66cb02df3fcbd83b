package endpoints

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"storefront-chat/internal/api"
)

type HTTPError = api.HTTPError

type ApiMessageResponse struct {
	Message string `json:"message"`
}

func WriteJSON(w http.ResponseWriter, status int, v any) error {
	return api.WriteJSON(w, status, v)
}

func MethodHandler(
	w http.ResponseWriter,
	r *http.Request,
	allowed map[string]func(http.ResponseWriter, *http.Request) error,
) error {
	if handler, ok := allowed[r.Method]; ok {
		return handler(w, r)
	}
	return &HTTPError{
		StatusCode: http.StatusMethodNotAllowed,
		Code:       "method_not_allowed",
		Message:    "Method not allowed.",
		ErrorLog:   fmt.Errorf("method %s not allowed on %s", r.Method, r.URL.Path),
	}
}

func badRequest(message string, err error) *HTTPError {
	return &HTTPError{StatusCode: http.StatusBadRequest, Code: "validation_error", Message: message, ErrorLog: err}
}

func notFound() *HTTPError {
	return &HTTPError{StatusCode: http.StatusNotFound, Code: "not_found", Message: "Not found"}
}

// pathParams splits what follows prefix into its non-empty segments.
func pathParams(path, prefix string) []string {
	rest := strings.TrimPrefix(path, prefix)
	if rest == path {
		return nil
	}
	var out []string
	for _, seg := range strings.Split(rest, "/") {
		if seg != "" {
			out = append(out, seg)
		}
	}
	return out
}

// queryInt returns def when the parameter is absent.
func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, badRequest(fmt.Sprintf("%s must be a non-negative integer", name), err)
	}
	return n, nil
}
