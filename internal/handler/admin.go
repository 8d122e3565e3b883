package handler

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"toolcrib-api/pkg/response"
)

// StatsSource exposes database statistics.
type StatsSource interface {
	GetStats(ctx context.Context) (map[string]interface{}, error)
}

// AdminHandler handles admin-related HTTP requests.
type AdminHandler struct {
	stats     StatsSource
	dbType    string
	cacheType string
	broker    BrokerHealth
	startTime time.Time
}

// NewAdminHandler creates a new admin handler. broker may be nil.
func NewAdminHandler(stats StatsSource, dbType, cacheType string, broker BrokerHealth) *AdminHandler {
	return &AdminHandler{
		stats:     stats,
		dbType:    dbType,
		cacheType: cacheType,
		broker:    broker,
		startTime: time.Now(),
	}
}

// GetStats handles GET /api/v1/admin/stats
func (h *AdminHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats := make(map[string]interface{})

	stats["uptime_seconds"] = int64(time.Since(h.startTime).Seconds())
	stats["uptime_human"] = time.Since(h.startTime).Round(time.Second).String()
	stats["server_time"] = time.Now().Format(time.RFC3339)
	stats["db_type"] = h.dbType
	stats["cache_type"] = h.cacheType

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	stats["memory"] = map[string]interface{}{
		"alloc_mb":      float64(memStats.Alloc) / 1024 / 1024,
		"sys_mb":        float64(memStats.Sys) / 1024 / 1024,
		"heap_inuse_mb": float64(memStats.HeapInuse) / 1024 / 1024,
		"num_gc":        memStats.NumGC,
		"goroutines":    runtime.NumGoroutine(),
	}

	dbStats, err := h.stats.GetStats(r.Context())
	if err == nil {
		dbStats["status"] = "connected"
		stats["database"] = dbStats
	} else {
		stats["database"] = map[string]interface{}{
			"status": "error",
			"error":  err.Error(),
		}
	}

	switch {
	case h.broker == nil:
		stats["broker"] = map[string]interface{}{"status": "not_configured"}
	case h.broker.IsHealthy():
		stats["broker"] = map[string]interface{}{"status": "connected"}
	default:
		stats["broker"] = map[string]interface{}{"status": "disconnected"}
	}

	stats["runtime"] = map[string]interface{}{
		"go_version": runtime.Version(),
		"os":         runtime.GOOS,
		"arch":       runtime.GOARCH,
		"cpus":       runtime.NumCPU(),
	}

	response.OK(w, stats)
}
