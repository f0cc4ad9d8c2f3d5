package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/xavierca1/lead-sheets-monitor/internal/entity"
	"github.com/xavierca1/lead-sheets-monitor/internal/usecase"
)

// StatusHandler exposes the read-only operational queries the dashboard
// collaborator polls: queue depths, per-location counters, last-cycle info.
type StatusHandler struct {
	Monitor   *usecase.MonitorUseCase
	Queue     entity.RetryQueueRepositoryInterface
	Locations entity.LocationRepositoryInterface
}

func NewStatusHandler(monitor *usecase.MonitorUseCase, queue entity.RetryQueueRepositoryInterface, locations entity.LocationRepositoryInterface) *StatusHandler {
	return &StatusHandler{
		Monitor:   monitor,
		Queue:     queue,
		Locations: locations,
	}
}

type StatusResponse struct {
	Monitor      usecase.MonitorStatus  `json:"monitor"`
	PendingRetry int                    `json:"pending_retry"`
	DeadLetters  int                    `json:"dead_letters"`
	Locations    []entity.LocationCount `json:"locations"`
}

func (h *StatusHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	pending, err := h.Queue.CountPending(ctx)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	dead, err := h.Queue.CountDead(ctx)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	counts, err := h.Locations.ListCounts(ctx)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	response := StatusResponse{
		Monitor:      h.Monitor.Status(),
		PendingRetry: pending,
		DeadLetters:  dead,
		Locations:    counts,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

func (h *StatusHandler) HandleDeadLetters(w http.ResponseWriter, r *http.Request) {
	entries, err := h.Queue.ListDead(r.Context(), 200)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []entity.FailedDelivery{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(entries)
}
