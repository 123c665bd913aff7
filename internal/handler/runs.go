package handler

import (
	"net/http"
	"strconv"

	"zoho-mirror-api/internal/repository"
	"zoho-mirror-api/pkg/apierror"
	"zoho-mirror-api/pkg/response"
)

// RunsHandler exposes the sync run audit log.
type RunsHandler struct {
	runs repository.RunLogStore
}

// NewRunsHandler creates a new runs handler.
func NewRunsHandler(runs repository.RunLogStore) *RunsHandler {
	return &RunsHandler{runs: runs}
}

// List handles GET /api/v1/sync/runs with page/limit query parameters.
func (h *RunsHandler) List(w http.ResponseWriter, r *http.Request) {
	page := 1
	limit := 20

	if v := r.URL.Query().Get("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			response.Error(w, apierror.BadRequest("invalid page parameter"))
			return
		}
		page = n
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 100 {
			response.Error(w, apierror.BadRequest("invalid limit parameter"))
			return
		}
		limit = n
	}

	runs, total, err := h.runs.List(r.Context(), limit, (page-1)*limit)
	if err != nil {
		response.Error(w, apierror.InternalError(""))
		return
	}

	response.JSONWithMeta(w, http.StatusOK, runs, page, limit, total)
}
