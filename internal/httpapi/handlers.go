package httpapi

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/miradorstack/water-ai/internal/models"
	"github.com/miradorstack/water-ai/internal/services"
	"github.com/miradorstack/water-ai/internal/utils"
)

const sourceHTTP = "http"

type handlers struct {
	logger  *slog.Logger
	service *services.TreatmentService
	version string
}

func (h *handlers) health(c *gin.Context) {
	success(c, http.StatusOK, "Service is healthy", gin.H{
		"status":         "healthy",
		"version":        h.version,
		"models_loaded":  h.service.LoadedModels(),
		"latency_p95_ms": float64(h.service.LatencyP95().Microseconds()) / 1000,
	})
}

func (h *handlers) ingest(c *gin.Context) {
	var reading models.SensorReading
	if err := c.ShouldBindJSON(&reading); err != nil {
		failure(c, http.StatusBadRequest, "invalid sensor reading: "+err.Error())
		return
	}
	saved, err := h.service.Ingest(c.Request.Context(), reading, sourceHTTP)
	if err != nil {
		h.fail(c, "ingest", err)
		return
	}
	success(c, http.StatusCreated, "Sensor data ingested successfully", saved)
}

func (h *handlers) predict(c *gin.Context) {
	var req models.PredictionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		failure(c, http.StatusBadRequest, "invalid prediction request: "+err.Error())
		return
	}
	resp, err := h.service.Predict(c.Request.Context(), req)
	if err != nil {
		h.fail(c, "predict", err)
		return
	}
	success(c, http.StatusOK, "Prediction completed", resp)
}

func (h *handlers) optimize(c *gin.Context) {
	var req models.OptimizationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		failure(c, http.StatusBadRequest, "invalid optimization request: "+err.Error())
		return
	}
	result, err := h.service.Optimize(c.Request.Context(), req)
	if err != nil {
		h.fail(c, "optimize", err)
		return
	}
	success(c, http.StatusOK, "Optimization completed", result)
}

func (h *handlers) listModels(c *gin.Context) {
	infos, err := h.service.Models(c.Request.Context())
	if err != nil {
		h.fail(c, "list models", err)
		return
	}
	success(c, http.StatusOK, "Models retrieved", gin.H{"models": infos, "count": len(infos)})
}

func (h *handlers) reloadModels(c *gin.Context) {
	summary, err := h.service.Reload(c.Request.Context())
	if err != nil {
		h.fail(c, "reload models", err)
		return
	}
	success(c, http.StatusOK, "Models reloaded", summary)
}

func (h *handlers) twinStatus(c *gin.Context) {
	status, err := h.service.TwinStatus(c.Request.Context())
	if err != nil {
		h.fail(c, "twin status", err)
		return
	}
	success(c, http.StatusOK, "Digital twin status", status)
}

func (h *handlers) recentSensors(c *gin.Context) {
	readings, err := h.service.RecentSensors(c.Request.Context(), queryLimit(c))
	if err != nil {
		h.fail(c, "recent sensors", err)
		return
	}
	success(c, http.StatusOK, "Recent sensor readings", gin.H{"sensors": readings, "count": len(readings)})
}

func (h *handlers) recentPredictions(c *gin.Context) {
	records, err := h.service.RecentPredictions(c.Request.Context(), queryLimit(c))
	if err != nil {
		h.fail(c, "recent predictions", err)
		return
	}
	success(c, http.StatusOK, "Recent predictions", gin.H{"predictions": records, "count": len(records)})
}

func (h *handlers) report(c *gin.Context) {
	var req models.ReportRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		failure(c, http.StatusBadRequest, "invalid report request: "+err.Error())
		return
	}
	rec, err := h.service.Report(c.Request.Context(), req)
	if err != nil {
		h.fail(c, "report", err)
		return
	}
	success(c, http.StatusCreated, "Report generated", rec)
}

func (h *handlers) fail(c *gin.Context, op string, err error) {
	switch {
	case services.IsNotFound(err):
		failure(c, http.StatusNotFound, err.Error())
	case services.IsClientError(err):
		failure(c, http.StatusBadRequest, err.Error())
	case services.IsUnavailable(err):
		failure(c, http.StatusServiceUnavailable, err.Error())
	default:
		_ = c.Error(err)
		h.logger.Error(op+" failed", slog.String("path", c.FullPath()), slog.Any("error", err))
		failure(c, http.StatusInternalServerError, op+" failed: "+utils.Summarize(err, utils.MaxErrorSummary))
	}
}

// queryLimit reads ?limit=; unparsable values fall through to the service default.
func queryLimit(c *gin.Context) int {
	limit, err := strconv.Atoi(c.Query("limit"))
	if err != nil {
		return 0
	}
	return limit
}
