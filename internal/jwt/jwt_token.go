package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt"
)

var ErrInvalidToken = errors.New("invalid token")

func CreateToken(user User, validUntil int64) (string, error) {
	key := signingKey()
	if len(key) == 0 {
		return "", fmt.Errorf("token secret not configured")
	}
	if user.ID == "" {
		return "", fmt.Errorf("user id required")
	}

	if validUntil == 0 {
		validUntil = time.Now().Add(DefaultAccessTokenTTL).Unix()
	}

	claims := jwt.MapClaims{
		"id":  user.ID,
		"exp": validUntil,
	}
	if user.Role != "" {
		claims["role"] = user.Role
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(key)
}

// ParseToken validates signature and expiry and returns the user it names.
func ParseToken(tokenString string) (User, error) {
	if len(tokenString) == 0 {
		return User{}, fmt.Errorf("%w: token string is empty", ErrInvalidToken)
	}
	key := signingKey()
	if len(key) == 0 {
		return User{}, fmt.Errorf("token secret not configured")
	}

	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method")
		}
		return key, nil
	})
	if err != nil {
		return User{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return User{}, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return User{}, fmt.Errorf("%w: claims of unexpected type", ErrInvalidToken)
	}
	id, _ := claims["id"].(string)
	if id == "" {
		return User{}, fmt.Errorf("%w: missing id claim", ErrInvalidToken)
	}
	role, _ := claims["role"].(string)
	return User{ID: id, Role: role}, nil
}
