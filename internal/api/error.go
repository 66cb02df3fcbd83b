package api

// HTTPError is what endpoints return to choose the response status.
type HTTPError struct {
	StatusCode int
	Code       string
	Message    string
	ErrorLog   error
}

func (e *HTTPError) Error() string {
	return e.Message
}

func (e *HTTPError) Unwrap() error {
	return e.ErrorLog
}

type ApiError struct {
	Code  string `json:"code,omitempty"`
	Error string `json:"message"`
}
