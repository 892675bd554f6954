package handlers

import (
	"net/http"
	"time"

	"github.com/contentpilot/engine/app"
	"github.com/contentpilot/engine/models"
	"github.com/contentpilot/engine/services/engine"
	"github.com/contentpilot/engine/services/routing"
	"github.com/contentpilot/engine/utils"
	"go.uber.org/zap"
)

// GenerateHandler routes and executes one generation end to end
func GenerateHandler(deps *app.Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req engine.GenerateRequest
		if !decodeJSON(w, r, &req, deps.Logger) {
			return
		}
		if err := utils.ValidateStruct(&req); err != nil {
			HandleValidationError(w, err, deps.Logger)
			return
		}

		resp, err := deps.Engine.Generate(r.Context(), req)
		if err != nil {
			HandleServiceError(w, err, deps.Logger)
			return
		}
		respondJSON(w, http.StatusOK, utils.SuccessResponse{Data: resp}, deps.Logger)
	}
}

// routePreviewResponse carries a routing decision without executing it
type routePreviewResponse struct {
	Decision *routing.Decision `json:"decision"`
	CacheHit bool              `json:"cache_hit"`
}

// RouteHandler answers a routing request without executing it, for
// inspecting which providers would serve a generation
func RouteHandler(deps *app.Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req routing.Request
		if !decodeJSON(w, r, &req, deps.Logger) {
			return
		}

		decision, cacheHit, err := deps.Engine.Route(req)
		if err != nil {
			HandleServiceError(w, err, deps.Logger)
			return
		}
		respondJSON(w, http.StatusOK, utils.SuccessResponse{
			Data: routePreviewResponse{Decision: decision, CacheHit: cacheHit},
		}, deps.Logger)
	}
}

// ProvidersStatusHandler reports every provider's configuration, health and
// performance scores
func ProvidersStatusHandler(deps *app.Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, utils.SuccessResponse{
			Data: deps.Engine.ProviderStatuses(),
		}, deps.Logger)
	}
}

// CostSnapshotHandler reports cost totals, breakdowns and projections.
// An optional timeframe query parameter (Go duration, e.g. 24h) restricts
// the window; absent means all retained history.
func CostSnapshotHandler(deps *app.Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var timeframe time.Duration
		if raw := r.URL.Query().Get("timeframe"); raw != "" {
			parsed, err := time.ParseDuration(raw)
			if err != nil || parsed < 0 {
				if err := utils.WriteBadRequest(w, "invalid timeframe", map[string]interface{}{
					"timeframe": raw,
				}); err != nil {
					deps.Logger.Error("failed to write bad request response", zap.Error(err))
				}
				return
			}
			timeframe = parsed
		}

		respondJSON(w, http.StatusOK, utils.SuccessResponse{
			Data: deps.Engine.CostSnapshot(timeframe),
		}, deps.Logger)
	}
}

// CacheInvalidateHandler drops cached routing decisions. With a content_type
// query parameter only that type's decisions are dropped; without one the
// whole cache is cleared.
func CacheInvalidateHandler(deps *app.Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ct := models.ContentType(r.URL.Query().Get("content_type"))
		removed := deps.Engine.InvalidateCache(ct)

		body := map[string]interface{}{"cleared": removed < 0}
		if removed >= 0 {
			body["entries_removed"] = removed
		}
		respondJSON(w, http.StatusOK, utils.SuccessResponse{Data: body}, deps.Logger)
	}
}

// CacheStatsHandler reports decision cache statistics
func CacheStatsHandler(deps *app.Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, utils.SuccessResponse{
			Data: deps.Engine.CacheStats(),
		}, deps.Logger)
	}
}
