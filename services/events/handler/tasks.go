package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/2lu3/tetsumon-dayori/internal/domain"
)

// TaskReader loads a stored task.
type TaskReader interface {
	GetByID(ctx context.Context, id int64) (*domain.Task, error)
}

// Tasks serves the read-only task API and the probes.
type Tasks struct {
	repo   TaskReader
	ready  func(ctx context.Context) error
	logger *slog.Logger
}

// NewTasks creates the task API handler. ready may be nil.
func NewTasks(repo TaskReader, ready func(ctx context.Context) error, logger *slog.Logger) *Tasks {
	return &Tasks{repo: repo, ready: ready, logger: logger}
}

// GetTask handles GET /api/v1/tasks/{id}.
func (h *Tasks) GetTask(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "task id must be a positive integer")
		return
	}

	task, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		var notFound *domain.TaskNotFoundError
		if errors.As(err, &notFound) {
			writeError(w, http.StatusNotFound, "task not found")
			return
		}
		h.logger.Error("get task", slog.Int64("task_id", id), slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to retrieve task")
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// Healthz handles GET /healthz.
func (h *Tasks) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Readyz handles GET /readyz.
func (h *Tasks) Readyz(w http.ResponseWriter, r *http.Request) {
	if h.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.ready(ctx); err != nil {
			writeError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
