package apierror

import (
	"fmt"
	"net/http"
	"strings"
)

// RequestInfo identifies the request an error was raised for.
type RequestInfo struct {
	Host     string `json:"host"`
	Path     string `json:"path"`
	Protocol string `json:"protocol"`
}

type APIError struct {
	Code       string       `json:"code"`
	Message    string       `json:"message"`
	Details    string       `json:"details,omitempty"`
	Request    *RequestInfo `json:"request,omitempty"`
	HTTPStatus int          `json:"-"`
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}

	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Details)
	}

	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func New(code string, message string, details string, status int) *APIError {
	return &APIError{Code: code, Message: message, Details: details, HTTPStatus: status}
}

// WithRequest returns a copy of e annotated with the host, path and protocol of r.
func (e *APIError) WithRequest(r *http.Request) *APIError {
	copied := *e
	copied.Request = FromRequest(r)
	return &copied
}

func FromRequest(r *http.Request) *RequestInfo {
	if r == nil {
		return nil
	}

	protocol := "http"
	if r.TLS != nil {
		protocol = "https"
	}
	if forwarded := strings.TrimSpace(r.Header.Get("X-Forwarded-Proto")); forwarded != "" {
		protocol = strings.ToLower(forwarded)
	}

	host := r.Host
	if r.URL != nil && r.URL.Host != "" {
		host = r.URL.Host
	}
	if hostname, _, found := strings.Cut(host, ":"); found && !strings.HasPrefix(host, "[") {
		host = hostname
	}

	path := ""
	if r.URL != nil {
		path = r.URL.Path
	}

	return &RequestInfo{Host: host, Path: path, Protocol: protocol}
}

func Unauthorized(message string) *APIError {
	return New("UNAUTHORIZED", message, "", http.StatusUnauthorized)
}

func Forbidden(message string) *APIError {
	return New("FORBIDDEN", message, "", http.StatusForbidden)
}
