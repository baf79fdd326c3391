package httpapi

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/render"
	"go.uber.org/zap"

	"github.com/hamed0406/pingmonitor/internal/query"
)

type errorType string

const (
	validationError errorType = "VALIDATION_ERROR"
	databaseError   errorType = "DATABASE_ERROR"
	internalError   errorType = "INTERNAL_ERROR"
)

// apiError is rendered as {"error":{"type":...,"message":...}}.
type apiError struct {
	Type    errorType `json:"type"`
	Message string    `json:"message"`
	Err     error     `json:"-"`
}

func (e *apiError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *apiError) Unwrap() error { return e.Err }

func invalid(format string, args ...any) *apiError {
	return &apiError{Type: validationError, Message: fmt.Sprintf(format, args...)}
}

type errorBody struct {
	Error *apiError `json:"error"`
}

// handlerFunc is an http handler that reports failure by returning an error.
type handlerFunc func(w http.ResponseWriter, r *http.Request) error

func (s *Server) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := h(w, r); err != nil {
			s.writeError(w, r, err)
		}
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var ae *apiError
	switch {
	case errors.As(err, &ae):
	case errors.Is(err, query.ErrInvalidFilter), errors.Is(err, query.ErrInvalidWindow):
		ae = &apiError{Type: validationError, Message: err.Error(), Err: err}
	default:
		ae = &apiError{Type: databaseError, Message: "could not read probe results", Err: err}
	}

	status := http.StatusInternalServerError
	switch ae.Type {
	case validationError:
		status = http.StatusBadRequest
	case databaseError:
		s.Logger.Error("api_store_error", zap.String("path", r.URL.Path), zap.Error(err))
	default:
		s.Logger.Error("api_error", zap.String("path", r.URL.Path), zap.Error(err))
	}
	render.Status(r, status)
	render.JSON(w, r, errorBody{Error: ae})
}
