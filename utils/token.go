package utils

import "github.com/google/uuid"

// NewRequestID is used when a caller does not send X-Request-ID.
func NewRequestID() string {
	return uuid.NewString()
}
