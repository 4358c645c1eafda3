package server

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/streamfleet/relayd/internal/metrics"
	"github.com/streamfleet/relayd/internal/supervisor"
)

func NewHealthRoute() HttpHandlerResult {
	return AsHttpHandler("/health", http.HandlerFunc(healthHandler))
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func NewMetricsRoute(m *metrics.Metrics) HttpHandlerResult {
	return AsHttpHandler("/metrics", m.Handler())
}

func NewStreamsRoute(s *supervisor.Supervisor, log *zap.Logger) HttpHandlerResult {
	return AsHttpHandler("/v1/streams", &streamsHandler{
		supervisor: s,
		log:        log,
	})
}

// streamsHandler serves a JSON snapshot of every tracked stream's
// state, pid and restart budget.
type streamsHandler struct {
	supervisor *supervisor.Supervisor
	log        *zap.Logger
}

func (h *streamsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")

	if err := json.NewEncoder(w).Encode(h.supervisor.Snapshot()); err != nil {
		h.log.Debug("failed to write response", zap.Error(err))
	}
}
