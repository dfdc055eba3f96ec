package handler

import (
	"context"
	"math"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/cropadvisor/cropadvisor/internal/advisor"
	"github.com/cropadvisor/cropadvisor/internal/api/models"
	"github.com/cropadvisor/cropadvisor/internal/api/response"
	"github.com/cropadvisor/cropadvisor/internal/recommendation"
)

// Advisor is the engine surface the offline endpoints drive.
type Advisor interface {
	IsOfflineModeAvailable(ctx context.Context) bool
	DownloadOfflineData(ctx context.Context) advisor.DownloadResult
	GetOfflineRecommendation(ctx context.Context, req advisor.RecommendationRequest) advisor.RecommendationResult
	SyncCachedRecommendations(ctx context.Context) advisor.SyncResult
	GetCacheStatus(ctx context.Context) advisor.CacheStatus
	CachedRecommendations(ctx context.Context) ([]recommendation.Record, error)
	ClearOfflineCache(ctx context.Context) error
}

// OfflineHandler exposes the offline recommendation engine.
// Engine outcomes are returned as result bodies; only malformed requests become problems.
type OfflineHandler struct {
	advisor Advisor
	logger  zerolog.Logger
}

// NewOfflineHandler creates a new OfflineHandler.
func NewOfflineHandler(a Advisor, logger zerolog.Logger) *OfflineHandler {
	return &OfflineHandler{advisor: a, logger: logger}
}

// Availability handles GET /v1/offline/availability.
func (h *OfflineHandler) Availability(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, models.Availability{
		OfflineAvailable: h.advisor.IsOfflineModeAvailable(r.Context()),
	})
}

// Download handles POST /v1/offline/download.
func (h *OfflineHandler) Download(w http.ResponseWriter, r *http.Request) {
	res := h.advisor.DownloadOfflineData(r.Context())
	status := http.StatusOK
	if !res.Success {
		status = http.StatusServiceUnavailable
	}
	response.JSON(w, r, status, res)
}

// Recommend handles POST /v1/offline/recommendations.
func (h *OfflineHandler) Recommend(w http.ResponseWriter, r *http.Request) {
	var req advisor.RecommendationRequest
	if err := response.DecodeJSON(w, r, &req); err != nil {
		response.BadRequest(w, r, "invalid JSON body: "+err.Error(), nil)
		return
	}
	if fieldErrors := validateRecommendationRequest(&req); len(fieldErrors) > 0 {
		response.BadRequest(w, r, "validation failed", fieldErrors)
		return
	}

	res := h.advisor.GetOfflineRecommendation(r.Context(), req)
	response.JSON(w, r, recommendationStatus(res), res)
}

// ListRecommendations handles GET /v1/offline/recommendations.
func (h *OfflineHandler) ListRecommendations(w http.ResponseWriter, r *http.Request) {
	records, err := h.advisor.CachedRecommendations(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to list cached recommendations")
		response.InternalError(w, r, "failed to read cached recommendations")
		return
	}
	response.JSON(w, r, http.StatusOK, models.NewRecordList(records))
}

// Sync handles POST /v1/offline/sync.
func (h *OfflineHandler) Sync(w http.ResponseWriter, r *http.Request) {
	res := h.advisor.SyncCachedRecommendations(r.Context())
	status := http.StatusOK
	if !res.Success {
		status = http.StatusServiceUnavailable
	}
	response.JSON(w, r, status, res)
}

// Status handles GET /v1/offline/status.
func (h *OfflineHandler) Status(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, h.advisor.GetCacheStatus(r.Context()))
}

// Clear handles DELETE /v1/offline/cache.
func (h *OfflineHandler) Clear(w http.ResponseWriter, r *http.Request) {
	if err := h.advisor.ClearOfflineCache(r.Context()); err != nil {
		h.logger.Error().Err(err).Msg("failed to clear offline cache")
		response.InternalError(w, r, "failed to clear offline cache")
		return
	}
	response.NoContent(w, r)
}

// recommendationStatus maps engine error types onto HTTP status codes.
func recommendationStatus(res advisor.RecommendationResult) int {
	if res.Success {
		return http.StatusOK
	}
	switch res.ErrorType {
	case advisor.ErrorTypeOfflineDataUnavailable, advisor.ErrorTypeCacheMissing, advisor.ErrorTypeModelsMissing:
		return http.StatusConflict
	default:
		return http.StatusUnprocessableEntity
	}
}

func validateRecommendationRequest(req *advisor.RecommendationRequest) []models.FieldError {
	var fieldErrors []models.FieldError

	lat, lon := req.Location.Lat, req.Location.Lon
	if math.IsNaN(lat) || lat < -90 || lat > 90 {
		fieldErrors = append(fieldErrors, models.FieldError{
			Field: "location.lat", Message: "must be between -90 and 90", Code: models.CodeOutOfRange,
		})
	}
	if math.IsNaN(lon) || lon < -180 || lon > 180 {
		fieldErrors = append(fieldErrors, models.FieldError{
			Field: "location.lon", Message: "must be between -180 and 180", Code: models.CodeOutOfRange,
		})
	}
	if req.FarmSize <= 0 {
		fieldErrors = append(fieldErrors, models.FieldError{
			Field: "farm_size", Message: "must be greater than 0", Code: models.CodeOutOfRange,
		})
	}
	if req.IrrigationType == "" {
		fieldErrors = append(fieldErrors, models.FieldError{
			Field: "irrigation_type", Message: "required", Code: models.CodeRequired,
		})
	}
	return fieldErrors
}

// Verify interface compliance.
var _ Advisor = (*advisor.Service)(nil)
