// Package handler provides HTTP handlers for the crop advisor API.
package handler

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/cropadvisor/cropadvisor/internal/api/models"
	"github.com/cropadvisor/cropadvisor/internal/api/response"
	"github.com/cropadvisor/cropadvisor/internal/provider/resilience"
)

// readinessTimeout bounds each readiness check.
const readinessTimeout = 2 * time.Second

// CheckFunc probes one local subsystem and returns an error when it is not usable.
type CheckFunc func(ctx context.Context) error

// OpsConfig configures an OpsHandler.
type OpsConfig struct {
	Version   string
	BuildTime string
	// Registry supplies outbound provider health. Optional.
	Registry *resilience.Registry
	// Checks are run by the readiness and status endpoints, keyed by subsystem name.
	Checks map[string]CheckFunc
}

// OpsHandler handles operational endpoints.
type OpsHandler struct {
	version   string
	buildTime string
	registry  *resilience.Registry
	checks    map[string]CheckFunc
}

// NewOpsHandler creates a new OpsHandler.
func NewOpsHandler(cfg OpsConfig) *OpsHandler {
	return &OpsHandler{
		version:   cfg.Version,
		buildTime: cfg.BuildTime,
		registry:  cfg.Registry,
		checks:    cfg.Checks,
	}
}

// HealthCheck handles GET /v1/ops/health - liveness check.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(time.Now()),
		Details: map[string]any{
			"version":   h.version,
			"buildTime": h.buildTime,
		},
	})
}

// ReadinessCheck handles GET /v1/ops/ready. It fails with 503 when any subsystem check fails.
func (h *OpsHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	subsystems := h.runChecks(r.Context())

	details := make(map[string]any, len(subsystems))
	status := models.HealthStatusOK
	for _, s := range subsystems {
		details[s.Name] = s.Status
		if s.Status != models.HealthStatusOK {
			status = models.HealthStatusFail
		}
	}

	code := http.StatusOK
	if status != models.HealthStatusOK {
		code = http.StatusServiceUnavailable
	}
	response.JSON(w, r, code, models.Health{
		Status:  status,
		Time:    models.Timestamp(time.Now()),
		Details: details,
	})
}

// SystemStatus handles GET /v1/ops/status - subsystem checks plus outbound provider circuits.
// Provider trouble degrades the service; it still answers from the offline cache.
func (h *OpsHandler) SystemStatus(w http.ResponseWriter, r *http.Request) {
	status := models.SystemStatus{
		Status:     models.HealthStatusOK,
		Time:       models.Timestamp(time.Now()),
		Subsystems: h.runChecks(r.Context()),
		Providers:  h.providerStatuses(),
	}

	for _, s := range status.Subsystems {
		if s.Status != models.HealthStatusOK {
			status.Status = models.HealthStatusFail
		}
	}
	if status.Status == models.HealthStatusOK {
		for _, p := range status.Providers {
			if p.Status != models.HealthStatusOK {
				status.Status = models.HealthStatusDegraded
				break
			}
		}
	}

	response.JSON(w, r, http.StatusOK, status)
}

func (h *OpsHandler) runChecks(ctx context.Context) []models.SubsystemStatus {
	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]models.SubsystemStatus, 0, len(names))
	for _, name := range names {
		checkCtx, cancel := context.WithTimeout(ctx, readinessTimeout)
		err := h.checks[name](checkCtx)
		cancel()

		s := models.SubsystemStatus{Name: name, Status: models.HealthStatusOK}
		if err != nil {
			detail := err.Error()
			s.Status = models.HealthStatusFail
			s.Detail = &detail
		}
		out = append(out, s)
	}
	return out
}

func (h *OpsHandler) providerStatuses() []models.ProviderStatus {
	if h.registry == nil {
		return []models.ProviderStatus{}
	}

	health := h.registry.GetAllHealth()
	out := make([]models.ProviderStatus, 0, len(health))
	for _, p := range health {
		ps := models.ProviderStatus{
			Provider:     p.Name,
			CircuitState: p.CircuitState.String(),
		}
		switch p.Status() {
		case resilience.HealthUnhealthy:
			ps.Status = models.HealthStatusFail
		case resilience.HealthDegraded:
			ps.Status = models.HealthStatusDegraded
		default:
			ps.Status = models.HealthStatusOK
		}
		if p.LastSuccessAt != nil {
			ts := models.Timestamp(*p.LastSuccessAt)
			ps.LastSuccessAt = &ts
		}
		if p.LastFailureAt != nil {
			ts := models.Timestamp(*p.LastFailureAt)
			ps.LastFailureAt = &ts
		}
		if p.LastError != "" {
			msg := p.LastError
			ps.Message = &msg
		}
		out = append(out, ps)
	}
	return out
}
