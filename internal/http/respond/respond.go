package respond

import (
	"encoding/json"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/hongminglow/tokenauth/internal/envelope"
)

// Envelope writes an auth result with the given HTTP status.
func Envelope(w http.ResponseWriter, log logrus.FieldLogger, status int, env envelope.Envelope) {
	JSON(w, log, status, env)
}

// Error writes a request-level error that never reached the auth layer.
func Error(w http.ResponseWriter, log logrus.FieldLogger, status int, message string) {
	JSON(w, log, status, map[string]string{"error": message})
}

// JSON encodes payload with the given status. Encode failures go to log.
func JSON(w http.ResponseWriter, log logrus.FieldLogger, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.WithError(err).WithField("status", status).Warn("encode response payload failed")
	}
}

// StatusFor maps an envelope code onto an HTTP status.
func StatusFor(code envelope.Code) int {
	switch code {
	case envelope.CodeSuccess:
		return http.StatusOK
	case envelope.CodeNotFound:
		return http.StatusNotFound
	case envelope.CodeInvalidCredentials, envelope.CodeTokenExpired:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}
