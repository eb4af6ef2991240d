// Package token signs and verifies the compact session token handed to clients.
//
// The token carries only a session id and an expiry. It never carries the user:
// identity is always re-derived from the session, so disabling a session
// revokes every token bound to it.
package token

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	claimSessionID = "session_id"
	claimExpires   = "expires"
)

// ErrConfiguration is returned when the secret or algorithm is missing or unusable.
var ErrConfiguration = errors.New("token: codec is not configured")

var expiresLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

type Payload struct {
	SessionID *int64
	Expires   time.Time
}

func NewPayload(sessionID int64, expires time.Time) Payload {
	return Payload{SessionID: &sessionID, Expires: expires}
}

func Sign(payload Payload, secret string, algorithm string) (string, error) {
	method, err := signingMethod(secret, algorithm)
	if err != nil {
		return "", err
	}

	claims := jwt.MapClaims{
		claimExpires: payload.Expires.UTC().Format(time.RFC3339Nano),
	}
	if payload.SessionID != nil {
		claims[claimSessionID] = *payload.SessionID
	}

	signed, err := jwt.NewWithClaims(method, claims).SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}

	return signed, nil
}

// Verify returns the payload of a token signed with secret and algorithm whose
// expires claim is strictly after now. Any token that does not meet that is
// reported as a nil payload; only configuration problems produce an error.
func Verify(tokenString string, secret string, algorithm string, now time.Time) (*Payload, error) {
	method, err := signingMethod(secret, algorithm)
	if err != nil {
		return nil, err
	}

	parsed, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{method.Alg()}), jwt.WithJSONNumber())
	if err != nil || !parsed.Valid {
		return nil, nil
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, nil
	}

	rawExpires, _ := claims[claimExpires].(string)
	expires, ok := parseExpires(rawExpires)
	if !ok || !expires.After(now) {
		return nil, nil
	}

	payload := &Payload{Expires: expires}
	if id, ok := sessionID(claims[claimSessionID]); ok {
		payload.SessionID = &id
	}

	return payload, nil
}

func signingMethod(secret string, algorithm string) (*jwt.SigningMethodHMAC, error) {
	if secret == "" {
		return nil, fmt.Errorf("%w: no secret provided", ErrConfiguration)
	}
	if strings.TrimSpace(algorithm) == "" {
		return nil, fmt.Errorf("%w: no algorithm provided", ErrConfiguration)
	}

	method, ok := jwt.GetSigningMethod(strings.ToUpper(strings.TrimSpace(algorithm))).(*jwt.SigningMethodHMAC)
	if !ok {
		return nil, fmt.Errorf("%w: unsupported algorithm %q", ErrConfiguration, algorithm)
	}

	return method, nil
}

func parseExpires(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}

	for _, layout := range expiresLayouts {
		if parsed, err := time.Parse(layout, raw); err == nil {
			return parsed.UTC(), true
		}
	}

	return time.Time{}, false
}

func sessionID(raw any) (int64, bool) {
	switch v := raw.(type) {
	case json.Number:
		id, err := v.Int64()
		return id, err == nil
	case float64:
		if v != float64(int64(v)) {
			return 0, false
		}
		return int64(v), true
	default:
		return 0, false
	}
}
