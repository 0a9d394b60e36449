// Package httpx holds the JSON request/response helpers shared by the REST handlers.
package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"chatsync/internal/apperr"

	"github.com/go-playground/validator/v10"
)

const maxBodyBytes = 1 << 20

var validate = validator.New(validator.WithRequiredStructEnabled())

type errorResponse struct {
	Error string `json:"error"`
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError maps err through the apperr taxonomy. Internal causes are logged, never returned.
func WriteError(w http.ResponseWriter, log *slog.Logger, r *http.Request, err error) {
	status := apperr.HTTPStatus(err)
	if status >= http.StatusInternalServerError && log != nil {
		log.Error("http.internal", "method", r.Method, "path", r.URL.Path, "err", err)
	}
	WriteJSON(w, status, errorResponse{Error: apperr.PublicMessage(err)})
}

// Normalizer is implemented by request bodies that clean their fields before validation.
type Normalizer interface {
	Normalize()
}

// DecodeJSON reads one JSON object into dst, normalizes it, and runs struct validation on it.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	if r.Body == nil {
		return apperr.Validation("empty body")
	}
	defer func() { _ = r.Body.Close() }()

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return apperr.Validation("empty body")
		}
		return apperr.Validation("invalid JSON: " + err.Error())
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return apperr.Validation("extra data after JSON object")
	}
	if n, ok := dst.(Normalizer); ok {
		n.Normalize()
	}
	return Validate(dst)
}

// Validate runs the validate tags of v, reporting the first failing field.
func Validate(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		name := fe.Field()
		if name != "" {
			name = strings.ToLower(name[:1]) + name[1:]
		}
		switch fe.Tag() {
		case "required":
			return apperr.Validation(fmt.Sprintf("%s is required", name))
		case "email":
			return apperr.Validation(fmt.Sprintf("%s must be a valid email", name))
		default:
			return apperr.Validation(fmt.Sprintf("%s is invalid", name))
		}
	}
	return apperr.Validation(err.Error())
}
