package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Error kinds. Every failure returned by Client is an *APIError whose Kind
// is one of these, so callers test with errors.Is.
var (
	ErrValidation     = errors.New("validation error")
	ErrConflict       = errors.New("conflict")
	ErrNotFound       = errors.New("not found")
	ErrAuthentication = errors.New("authentication required")
	ErrForbidden      = errors.New("access denied")
	ErrNetwork        = errors.New("network error")
	ErrServer         = errors.New("server error")
)

type APIError struct {
	Kind      error
	Status    int
	Code      string
	Message   string
	RequestID string
	Err       error
}

func (e *APIError) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.Error())
	if e.Status > 0 {
		fmt.Fprintf(&b, " (status %d)", e.Status)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *APIError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func kindForStatus(status int) error {
	switch status {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return ErrValidation
	case http.StatusUnauthorized:
		return ErrAuthentication
	case http.StatusForbidden:
		return ErrForbidden
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusConflict:
		return ErrConflict
	default:
		return ErrServer
	}
}

// parseErrorBody understands both {"error": "msg"} and
// {"error": {"code": ..., "message": ...}} bodies.
func parseErrorBody(raw []byte) (code, message string) {
	var envelope struct {
		Error   json.RawMessage `json:"error"`
		Code    string          `json:"code"`
		Message string          `json:"message"`
		Mensaje string          `json:"mensaje"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return "", ""
	}
	code = envelope.Code
	message = envelope.Message
	if message == "" {
		message = envelope.Mensaje
	}
	if len(envelope.Error) == 0 {
		return code, message
	}
	var text string
	if err := json.Unmarshal(envelope.Error, &text); err == nil {
		return code, text
	}
	var nested struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(envelope.Error, &nested); err == nil {
		if nested.Code != "" {
			code = nested.Code
		}
		if nested.Message != "" {
			message = nested.Message
		}
	}
	return code, message
}

// Describe turns any error from this package into a message fit for the
// person at the counter.
func Describe(err error) string {
	if err == nil {
		return ""
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" && !errors.Is(err, ErrNetwork) && !errors.Is(err, ErrServer) {
		return apiErr.Message
	}
	switch {
	case errors.Is(err, ErrValidation):
		return "Los datos enviados no son válidos"
	case errors.Is(err, ErrConflict):
		return "El estado actual del turno no permite esta acción"
	case errors.Is(err, ErrNotFound):
		return "El turno o la categoría no existe"
	case errors.Is(err, ErrAuthentication):
		return "Sesión expirada, iniciá sesión nuevamente"
	case errors.Is(err, ErrForbidden):
		return "Acceso denegado. Debes ser administrador."
	case errors.Is(err, ErrNetwork):
		return "No se pudo contactar al servidor"
	case errors.Is(err, ErrServer):
		return "Error inesperado del servidor"
	default:
		return err.Error()
	}
}
