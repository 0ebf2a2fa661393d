package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/irfndi/tanya-ai-go/internal/services"
)

// HealthChecker is satisfied by *database.PostgresDB and *database.RedisClient.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// BreakerReporter is satisfied by *services.BreakerRegistry.
type BreakerReporter interface {
	Stats() []services.BreakerStats
}

type HealthHandler struct {
	db        HealthChecker
	redis     HealthChecker
	breakers  BreakerReporter
	version   string
	startTime time.Time
}

type SystemStats struct {
	MemoryUsedPercent float64 `json:"memory_used_percent"`
	MemoryTotalBytes  uint64  `json:"memory_total_bytes"`
	CPUPercent        float64 `json:"cpu_percent"`
}

type HealthDetailsResponse struct {
	Status    string                  `json:"status"`
	Timestamp time.Time               `json:"timestamp"`
	Version   string                  `json:"version"`
	Uptime    string                  `json:"uptime"`
	Services  map[string]string       `json:"services"`
	System    *SystemStats            `json:"system,omitempty"`
	Breakers  []services.BreakerStats `json:"breakers"`
}

// NewHealthHandler accepts nil checkers for backends that are not configured.
func NewHealthHandler(db, redis HealthChecker, breakers BreakerReporter, version string) *HealthHandler {
	return &HealthHandler{
		db:        db,
		redis:     redis,
		breakers:  breakers,
		version:   version,
		startTime: time.Now(),
	}
}

// Health is the liveness probe and never depends on a backend.
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// Details reports backend reachability, breaker state and host load. An
// unreachable backend that is configured makes the overall status degraded.
func (h *HealthHandler) Details(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	resp := HealthDetailsResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
		Version:   h.version,
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
		Services: map[string]string{
			"database": checkBackend(ctx, h.db),
			"redis":    checkBackend(ctx, h.redis),
		},
		Breakers: []services.BreakerStats{},
	}
	for _, status := range resp.Services {
		if status != "healthy" && status != "not configured" {
			resp.Status = "degraded"
		}
	}
	if h.breakers != nil {
		resp.Breakers = h.breakers.Stats()
		for _, b := range resp.Breakers {
			if b.State == services.BreakerOpen.String() {
				resp.Status = "degraded"
			}
		}
	}
	resp.System = systemStats(ctx)

	status := http.StatusOK
	if resp.Status != "healthy" {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, resp)
}

func checkBackend(ctx context.Context, hc HealthChecker) string {
	if hc == nil {
		return "not configured"
	}
	if err := hc.HealthCheck(ctx); err != nil {
		return "unhealthy: " + err.Error()
	}
	return "healthy"
}

// systemStats returns nil when the host does not expose the counters.
func systemStats(ctx context.Context) *SystemStats {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return nil
	}
	stats := &SystemStats{
		MemoryUsedPercent: vm.UsedPercent,
		MemoryTotalBytes:  vm.Total,
	}
	if pct, err := cpu.PercentWithContext(ctx, 0, false); err == nil && len(pct) > 0 {
		stats.CPUPercent = pct[0]
	}
	return stats
}
