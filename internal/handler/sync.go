package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"zoho-mirror-api/internal/service"
	"zoho-mirror-api/internal/zoho"
	"zoho-mirror-api/pkg/apierror"
	"zoho-mirror-api/pkg/response"
)

// SyncHandler exposes the manual sync triggers.
type SyncHandler struct {
	syncService *service.SyncService
}

// NewSyncHandler creates a new sync handler.
func NewSyncHandler(syncService *service.SyncService) *SyncHandler {
	return &SyncHandler{syncService: syncService}
}

// SyncItems handles POST /api/v1/sync/items
func (h *SyncHandler) SyncItems(w http.ResponseWriter, r *http.Request) {
	result, err := h.syncService.SyncItems(r.Context())
	if err != nil {
		response.Error(w, mapSyncError(err))
		return
	}
	response.OK(w, result)
}

// SyncOrders handles POST /api/v1/sync/orders. The optional JSON body
// restricts the date range; an empty body syncs today's orders.
func (h *SyncHandler) SyncOrders(w http.ResponseWriter, r *http.Request) {
	var dr service.DateRange
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&dr); err != nil {
			response.Error(w, apierror.BadRequest("invalid request body"))
			return
		}
	}

	result, err := h.syncService.SyncOrders(r.Context(), dr)
	if err != nil {
		response.Error(w, mapSyncError(err))
		return
	}
	response.OK(w, result)
}

// mapSyncError translates pipeline failures into API errors.
func mapSyncError(err error) error {
	if errors.Is(err, zoho.ErrNotConfigured) {
		return apierror.BadRequest("zoho connection is not configured")
	}
	if errors.Is(err, service.ErrStorageUnavailable) {
		return apierror.InternalError("mirror store unavailable")
	}

	var fetchErr *zoho.FetchError
	if errors.As(err, &fetchErr) {
		switch fetchErr.Kind {
		case zoho.FetchUnreachable:
			return apierror.ServiceUnavailable("zoho api unreachable")
		case zoho.FetchAuthExpired:
			return apierror.BadGateway("zoho authorization expired; reconnect the integration")
		default:
			return apierror.BadGateway("zoho api rejected the request")
		}
	}

	var authErr *zoho.AuthError
	if errors.As(err, &authErr) {
		return apierror.BadGateway("zoho token exchange failed")
	}

	return apierror.InternalError("")
}
