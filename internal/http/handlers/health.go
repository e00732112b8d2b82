package handlers

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/hongminglow/tokenauth/internal/http/respond"
)

// HealthHandler returns uptime and basic status.
type HealthHandler struct {
	startedAt time.Time
	log       logrus.FieldLogger
}

// NewHealthHandler creates a health endpoint handler.
func NewHealthHandler(startedAt time.Time, log logrus.FieldLogger) *HealthHandler {
	return &HealthHandler{startedAt: startedAt, log: log}
}

// Register wires the handler into a router.
func (h *HealthHandler) Register(r *mux.Router) {
	r.HandleFunc("/health", h.handle).Methods(http.MethodGet)
}

func (h *HealthHandler) handle(w http.ResponseWriter, r *http.Request) {
	respond.JSON(w, h.log, http.StatusOK, map[string]string{
		"status": "ok",
		"uptime": time.Since(h.startedAt).Truncate(time.Second).String(),
	})
}
