package middleware

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"
)

// AppHandler is a handler that reports failures by returning an error.
type AppHandler func(http.ResponseWriter, *http.Request) error

type AppError struct {
	Status  int
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NewAppError(status int, message string, err error) *AppError {
	return &AppError{Status: status, Message: message, Err: err}
}

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

type responseWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (rw *responseWriter) WriteHeader(statusCode int) {
	if !rw.wroteHeader {
		rw.status = statusCode
		rw.wroteHeader = true
	}
	rw.ResponseWriter.WriteHeader(statusCode)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.wroteHeader {
		rw.WriteHeader(http.StatusOK)
	}
	return rw.ResponseWriter.Write(b)
}

// ErrorHandler adapts AppHandlers to http.Handler. Returned errors become JSON
// error bodies; the underlying error text is logged, never sent.
func ErrorHandler(logger *zap.Logger) func(AppHandler) http.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(handler AppHandler) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
			defer func() {
				if recovered := recover(); recovered != nil {
					logger.Error("panic recovered",
						zap.Any("panic", recovered),
						zap.String("method", r.Method),
						zap.String("path", r.URL.Path),
					)
					if !rw.wroteHeader {
						WriteError(rw, http.StatusInternalServerError, "Internal server error")
					}
				}
			}()

			if err := handler(rw, r); err != nil {
				handleError(logger, rw, r, err)
			}
		}
	}
}

func handleError(logger *zap.Logger, w *responseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	message := "Internal server error"

	var appErr *AppError
	if errors.As(err, &appErr) {
		status = appErr.Status
		message = appErr.Message
	}

	if status >= http.StatusInternalServerError {
		logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", status),
			zap.Error(err),
		)
	}

	if w.wroteHeader {
		return
	}
	WriteError(w, status, message)
}

// WriteError writes the standard {"success":false,"error":...} body.
func WriteError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorResponse{Success: false, Error: message})
}
