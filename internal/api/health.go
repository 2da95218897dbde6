package api

import (
	"net/http"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

type healthResponse struct {
	Status        string  `json:"status"`
	IndexerLag    int64   `json:"indexer_lag_ledgers"`
	DB            string  `json:"db"`
	Cache         string  `json:"cache"`
	CPUPercent    float64 `json:"cpu_percent"`
	MemoryPercent float64 `json:"memory_percent"`
}

// handleHealth implements GET /health. It never fails the request on a
// degraded dependency; it reports the degradation in the body instead, so
// that liveness checks and diagnostics share one endpoint.
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	dbStatus := "ok"
	if _, err := h.store.ActivePairs(ctx); err != nil {
		dbStatus = "degraded"
	}

	cacheStatus := "ok"
	if h.cache == nil {
		cacheStatus = "disabled"
	}

	var lag int64
	if h.health != nil {
		lag = h.health.IndexerLagLedgers()
	}

	cpuPct, memPct := getSystemStats()

	status := "healthy"
	if dbStatus != "ok" {
		status = "degraded"
	}

	writeJSON(w, http.StatusOK, healthResponse{
		Status:        status,
		IndexerLag:    lag,
		DB:            dbStatus,
		Cache:         cacheStatus,
		CPUPercent:    cpuPct,
		MemoryPercent: memPct,
	})
}

// getSystemStats samples instantaneous CPU and memory utilization for the
// health response.
func getSystemStats() (float64, float64) {
	var cpuPct float64
	if percentages, err := cpu.Percent(100*time.Millisecond, false); err == nil && len(percentages) > 0 {
		cpuPct = percentages[0]
	}

	var memPct float64
	if vm, err := mem.VirtualMemory(); err == nil {
		memPct = vm.UsedPercent
	}

	return cpuPct, memPct
}
