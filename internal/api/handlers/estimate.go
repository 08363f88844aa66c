package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/wonny/surveyprogress/internal/contracts"
	"github.com/wonny/surveyprogress/internal/coordinator"
	"github.com/wonny/surveyprogress/internal/facade"
	"github.com/wonny/surveyprogress/pkg/logger"
)

// maxBatchItems upper bound of one batch request
const maxBatchItems = 200

// CacheController cache operations exposed over HTTP (coordinator.Coordinator)
type CacheController interface {
	CacheStats() coordinator.CacheStats
	ClearCache(ctx context.Context) (int, error)
}

// EstimateHandler handles estimation API endpoints
// ⭐ SSOT: 추정 API 핸들러는 이 구조체에서만
type EstimateHandler struct {
	facade *facade.Facade
	cache  CacheController
	logger *logger.Logger
}

// NewEstimateHandler creates a new estimate handler
func NewEstimateHandler(f *facade.Facade, cache CacheController, log *logger.Logger) *EstimateHandler {
	return &EstimateHandler{
		facade: f,
		cache:  cache,
		logger: log,
	}
}

// Estimate runs a fully specified request
// POST /api/estimate
func (h *EstimateHandler) Estimate(w http.ResponseWriter, r *http.Request) {
	var req contracts.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.facade.Estimate(r.Context(), req)
	if err != nil {
		h.respondEstimateError(w, err, req.ItemID)
		return
	}
	h.respondResult(w, result)
}

// Quick basic estimate for the whole project
// GET /api/estimate/quick?target=1000&current=400
func (h *EstimateHandler) Quick(w http.ResponseWriter, r *http.Request) {
	target, current, err := parsePoints(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.facade.Quick(r.Context(), target, current)
	if err != nil {
		h.respondEstimateError(w, err, "")
		return
	}
	h.respondResult(w, result)
}

// Item estimate scoped to one work item
// GET /api/items/{item}/estimate?target=200
func (h *EstimateHandler) Item(w http.ResponseWriter, r *http.Request) {
	itemID := mux.Vars(r)["item"]
	if itemID == "" {
		respondError(w, http.StatusBadRequest, "item is required")
		return
	}

	target, current, err := parsePoints(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.facade.Mapsheet(r.Context(), itemID, target, current)
	if err != nil {
		h.respondEstimateError(w, err, itemID)
		return
	}
	h.respondResult(w, result)
}

// BatchRequest body of a batch estimate
type BatchRequest struct {
	Items []facade.BatchRequest `json:"items"`
}

// BatchResponse per-item results in request order
type BatchResponse struct {
	Items  []contracts.BatchItem `json:"items"`
	Failed int                   `json:"failed"`
}

// Batch estimates several items; per-item failures stay in the response
// POST /api/estimate/batch
func (h *EstimateHandler) Batch(w http.ResponseWriter, r *http.Request) {
	var req BatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Items) == 0 {
		respondError(w, http.StatusBadRequest, "items is required")
		return
	}
	if len(req.Items) > maxBatchItems {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("at most %d items per batch", maxBatchItems))
		return
	}

	items, err := h.facade.Batch(r.Context(), req.Items)
	if err != nil {
		h.logger.WithError(err).Error("Batch estimate aborted")
		respondError(w, http.StatusServiceUnavailable, "batch estimate aborted")
		return
	}

	resp := BatchResponse{Items: items}
	for _, it := range items {
		if it.Error != "" {
			resp.Failed++
		}
	}
	respondJSON(w, http.StatusOK, resp)
}

// CacheStats returns result cache statistics
// GET /api/cache/stats
func (h *EstimateHandler) CacheStats(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.cache.CacheStats())
}

// ClearCache drops every cached result
// DELETE /api/cache
func (h *EstimateHandler) ClearCache(w http.ResponseWriter, r *http.Request) {
	removed, err := h.cache.ClearCache(r.Context())
	if err != nil {
		h.logger.WithError(err).Error("Failed to clear cache")
		respondError(w, http.StatusInternalServerError, "failed to clear cache")
		return
	}

	h.logger.WithField("removed", removed).Info("Estimate cache cleared")
	respondJSON(w, http.StatusOK, map[string]int{"removed": removed})
}

func (h *EstimateHandler) respondResult(w http.ResponseWriter, result *contracts.CompositeResult) {
	h.logger.WithRun(result.RunID, result.ItemID).
		WithField("method", result.Method).
		Debug("Estimate served")
	respondJSON(w, http.StatusOK, result)
}

// respondEstimateError maps engine errors to status codes:
// configuration → 400, data source → 502, others → 500
func (h *EstimateHandler) respondEstimateError(w http.ResponseWriter, err error, itemID string) {
	switch {
	case contracts.IsConfigurationError(err):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, contracts.ErrDataUnavailable):
		h.logger.WithError(err).WithField("item_id", itemID).Error("Progress data unavailable")
		respondError(w, http.StatusBadGateway, contracts.ErrDataUnavailable.Error())
	default:
		h.logger.WithError(err).WithField("item_id", itemID).Error("Estimate failed")
		respondError(w, http.StatusInternalServerError, err.Error())
	}
}

// parsePoints reads target (required) and current (optional) query params
func parsePoints(r *http.Request) (float64, *float64, error) {
	q := r.URL.Query()

	target, err := strconv.ParseFloat(q.Get("target"), 64)
	if err != nil {
		return 0, nil, fmt.Errorf("target must be a number")
	}

	raw := q.Get("current")
	if raw == "" {
		return target, nil, nil
	}
	current, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, nil, fmt.Errorf("current must be a number")
	}
	return target, &current, nil
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}
