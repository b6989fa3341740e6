package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"runtime"
	"time"
)

// HealthStatus represents the health check response
type HealthStatus struct {
	Status    string           `json:"status"`
	Timestamp string           `json:"timestamp"`
	Checks    map[string]Check `json:"checks,omitempty"`
	System    *SystemInfo      `json:"system,omitempty"`
}

// Check represents a single health check result
type Check struct {
	Status   string `json:"status"`
	Message  string `json:"message,omitempty"`
	Duration string `json:"duration,omitempty"`
}

// SystemInfo contains system information
type SystemInfo struct {
	GoVersion    string `json:"go_version"`
	NumGoroutine int    `json:"num_goroutine"`
	NumCPU       int    `json:"num_cpu"`
	MemAlloc     uint64 `json:"mem_alloc_mb"`
}

const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
	StatusDegraded  = "degraded"
)

// Health returns basic health status (for load balancer)
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	status := HealthStatus{
		Status:    StatusHealthy,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(status)
}

// Ready performs full readiness check including dependencies
func (h *Handlers) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := make(map[string]Check)
	overallStatus := StatusHealthy

	storeCheck := h.checkStore(ctx)
	checks["store"] = storeCheck
	if storeCheck.Status != StatusHealthy {
		overallStatus = StatusUnhealthy
	}

	if h.Cache != nil {
		cacheCheck := h.checkCache(ctx)
		checks["cache"] = cacheCheck
		if cacheCheck.Status != StatusHealthy && overallStatus == StatusHealthy {
			overallStatus = StatusDegraded
		}
	}

	staleCheck := h.checkStaleJobs(ctx)
	checks["stale_jobs"] = staleCheck
	if staleCheck.Status == StatusDegraded && overallStatus == StatusHealthy {
		overallStatus = StatusDegraded
	}

	checks["worker"] = h.checkWorker()

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	sysInfo := &SystemInfo{
		GoVersion:    runtime.Version(),
		NumGoroutine: runtime.NumGoroutine(),
		NumCPU:       runtime.NumCPU(),
		MemAlloc:     memStats.Alloc / 1024 / 1024,
	}

	status := HealthStatus{
		Status:    overallStatus,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    checks,
		System:    sysInfo,
	}

	w.Header().Set("Content-Type", "application/json")
	if overallStatus == StatusUnhealthy {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}
	json.NewEncoder(w).Encode(status)
}

// checkStore verifies the job store answers queries
func (h *Handlers) checkStore(ctx context.Context) Check {
	start := time.Now()
	_, err := h.Store.NextQueued(ctx)
	duration := time.Since(start)

	if err != nil {
		return Check{
			Status:   StatusUnhealthy,
			Message:  err.Error(),
			Duration: duration.String(),
		}
	}
	return Check{
		Status:   StatusHealthy,
		Message:  "store reachable",
		Duration: duration.String(),
	}
}

// checkCache verifies Redis connectivity
func (h *Handlers) checkCache(ctx context.Context) Check {
	start := time.Now()
	err := h.Cache.Client().Ping(ctx).Err()
	duration := time.Since(start)

	if err != nil {
		return Check{
			Status:   StatusUnhealthy,
			Message:  err.Error(),
			Duration: duration.String(),
		}
	}
	return Check{
		Status:   StatusHealthy,
		Message:  "connection successful",
		Duration: duration.String(),
	}
}

// checkStaleJobs surfaces jobs stuck in processing past the staleness
// threshold (a lost finalize write). Needs operator attention; the
// service itself keeps running.
func (h *Handlers) checkStaleJobs(ctx context.Context) Check {
	n, err := h.Store.CountStale(ctx, h.Config.StaleJobThreshold)
	if err != nil {
		return Check{Status: StatusDegraded, Message: err.Error()}
	}
	if n > 0 {
		return Check{
			Status:  StatusDegraded,
			Message: fmt.Sprintf("%d job(s) stuck in processing longer than %s", n, h.Config.StaleJobThreshold),
		}
	}
	return Check{Status: StatusHealthy, Message: "no stale jobs"}
}

func (h *Handlers) checkWorker() Check {
	if !h.Config.WorkerEnabled {
		return Check{
			Status:  StatusHealthy,
			Message: "background worker disabled; claims via process-next only",
		}
	}
	return Check{
		Status:  StatusHealthy,
		Message: fmt.Sprintf("%d worker loop(s) enabled", h.Config.WorkerCount),
	}
}
