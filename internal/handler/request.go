package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"go-authorisation-service/pkg/apierror"
)

var validate = validator.New()

// decodeBody reads a JSON body into dst and runs its validate tags.
func decodeBody(r *http.Request, dst any) error {
	defer r.Body.Close()

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return apierror.New("BAD_REQUEST", "invalid JSON body", err.Error(), http.StatusBadRequest)
	}

	if err := validate.Struct(dst); err != nil {
		return apierror.New("VALIDATION_ERROR", "request validation failed", formatValidationErrors(err), http.StatusBadRequest)
	}

	return nil
}

func formatValidationErrors(err error) string {
	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return err.Error()
	}

	messages := make([]string, 0, len(validationErrors))
	for _, fieldError := range validationErrors {
		switch fieldError.Tag() {
		case "required":
			messages = append(messages, fmt.Sprintf("%s is required", fieldError.Field()))
		case "min":
			messages = append(messages, fmt.Sprintf("%s must be at least %s characters long", fieldError.Field(), fieldError.Param()))
		case "max":
			messages = append(messages, fmt.Sprintf("%s must be at most %s characters long", fieldError.Field(), fieldError.Param()))
		case "ip":
			messages = append(messages, fmt.Sprintf("%s must be an IP address", fieldError.Field()))
		default:
			messages = append(messages, fmt.Sprintf("%s is invalid", fieldError.Field()))
		}
	}
	return strings.Join(messages, "; ")
}

func pathID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apierror.New("BAD_REQUEST", "id must be a positive integer", "id", http.StatusBadRequest)
	}
	return id, nil
}

func queryInts(r *http.Request, name string) ([]int64, error) {
	values := r.URL.Query()[name]
	out := make([]int64, 0, len(values))
	for _, raw := range values {
		v, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
		if err != nil {
			return nil, apierror.New("BAD_REQUEST", "query parameter must be an integer", name, http.StatusBadRequest)
		}
		out = append(out, v)
	}
	return out, nil
}

func queryBool(r *http.Request, name string) (*bool, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return nil, nil
	}

	v, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, apierror.New("BAD_REQUEST", "query parameter must be a boolean", name, http.StatusBadRequest)
	}
	return &v, nil
}
