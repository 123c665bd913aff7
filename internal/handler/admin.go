package handler

import (
	"net/http"
	"runtime"
	"time"

	"zoho-mirror-api/internal/repository"
	"zoho-mirror-api/pkg/apierror"
	"zoho-mirror-api/pkg/response"
)

// AdminHandler exposes operational statistics.
type AdminHandler struct {
	items  repository.ItemStore
	orders repository.SalesOrderStore
	dbType string
}

// NewAdminHandler creates a new admin handler.
func NewAdminHandler(items repository.ItemStore, orders repository.SalesOrderStore, dbType string) *AdminHandler {
	return &AdminHandler{items: items, orders: orders, dbType: dbType}
}

// Stats handles GET /api/v1/admin/stats
func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	itemStats, err := h.items.Stats(r.Context())
	if err != nil {
		response.Error(w, apierror.InternalError("failed to read item stats"))
		return
	}
	orderStats, err := h.orders.Stats(r.Context())
	if err != nil {
		response.Error(w, apierror.InternalError("failed to read salesorder stats"))
		return
	}

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	stats := map[string]interface{}{
		"uptime_seconds": int64(time.Since(StartTime).Seconds()),
		"memory_mb":      float64(memStats.Alloc) / 1024 / 1024,
		"goroutines":     runtime.NumGoroutine(),
		"db_type":        h.dbType,
		"items":          itemStats,
		"salesorders":    orderStats,
	}

	response.OK(w, stats)
}
