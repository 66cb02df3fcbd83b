package jwt

import (
	"sync"
	"time"
)

const DefaultAccessTokenTTL = 15 * time.Minute

var (
	secretMu sync.RWMutex
	secret   []byte
)

// SetSecret installs the HMAC key used to sign and verify chat tokens.
func SetSecret(key string) {
	secretMu.Lock()
	defer secretMu.Unlock()
	secret = []byte(key)
}

func signingKey() []byte {
	secretMu.RLock()
	defer secretMu.RUnlock()
	return secret
}
