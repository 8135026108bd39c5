package services

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/miradorstack/water-ai/internal/engine"
	"github.com/miradorstack/water-ai/internal/extractors"
	"github.com/miradorstack/water-ai/internal/metrics"
	"github.com/miradorstack/water-ai/internal/models"
	"github.com/miradorstack/water-ai/internal/report"
	"github.com/miradorstack/water-ai/internal/repo"
	"github.com/miradorstack/water-ai/internal/utils"
)

const (
	// TwinReadingsWindow is how many recent readings feed the digital twin.
	TwinReadingsWindow = 50
	// TwinPredictionsWindow is how many recent predictions the twin inspects.
	TwinPredictionsWindow = 10
	// DefaultTurbidity is reported when no prediction has been recorded yet.
	DefaultTurbidity = 50.0

	ensembleModelName = "ensemble"
	latencyLogEvery   = 20
)

// Store is the persistence the treatment service relies on.
type Store interface {
	SaveReading(ctx context.Context, r models.SensorReading) (models.SensorReading, error)
	RecentReadings(ctx context.Context, limit int) ([]models.SensorReading, error)
	SavePrediction(ctx context.Context, rec models.PredictionRecord) (models.PredictionRecord, error)
	RecentPredictions(ctx context.Context, limit int) ([]models.PredictionRecord, error)
	Prediction(ctx context.Context, id string) (models.PredictionRecord, error)
	UpsertModelMetadata(ctx context.Context, rec models.ModelMetadataRecord) error
	DeactivateModelsExcept(ctx context.Context, keep []string) error
	ModelMetadata(ctx context.Context) ([]models.ModelMetadataRecord, error)
	SaveReport(ctx context.Context, rec models.ReportRecord) (models.ReportRecord, error)
}

// Renderer turns report input into a document.
type Renderer interface {
	Render(in report.Input) ([]byte, error)
}

// Options carries the optional collaborators of TreatmentService.
type Options struct {
	Store    Store
	Renderer Renderer
	Objects  repo.ObjectStore
	Detector *extractors.SensorExtractor
}

// TreatmentService is the transport-independent facade over prediction,
// optimization, ingest, digital-twin and reporting.
type TreatmentService struct {
	logger    *slog.Logger
	pipeline  *engine.Pipeline
	store     Store
	renderer  Renderer
	objects   repo.ObjectStore
	detector  *extractors.SensorExtractor
	latencies *utils.LatencyTracker
	now       func() time.Time
}

// NewTreatmentService constructs the facade. Only the pipeline is required.
func NewTreatmentService(logger *slog.Logger, pipeline *engine.Pipeline, opts Options) *TreatmentService {
	if logger == nil {
		logger = slog.Default()
	}
	detector := opts.Detector
	if detector == nil {
		detector = extractors.NewSensorExtractor(extractors.DefaultZThreshold)
	}
	return &TreatmentService{
		logger:    logger,
		pipeline:  pipeline,
		store:     opts.Store,
		renderer:  opts.Renderer,
		objects:   opts.Objects,
		detector:  detector,
		latencies: utils.NewLatencyTracker(1024),
		now:       time.Now,
	}
}

// Predict runs a single-model or ensemble prediction, optimizes treatment for
// the derived scores and records the outcome.
func (s *TreatmentService) Predict(ctx context.Context, req models.PredictionRequest) (models.PredictionResponse, error) {
	if err := validateTarget(req.TargetQuality); err != nil {
		return models.PredictionResponse{}, err
	}

	start := s.now()
	resp := models.PredictionResponse{}
	record := models.PredictionRecord{Input: req.Features}

	if req.UseEnsemble {
		pred, err := s.pipeline.Ensemble(ctx, req.Features)
		if err != nil {
			return models.PredictionResponse{}, err
		}
		resp.Mode = ensembleModelName
		resp.Ensemble = &pred
		record.ModelName = ensembleModelName
		record.Result = pred
	} else {
		pred, err := s.pipeline.Predict(ctx, req.Features, req.ModelName)
		if err != nil {
			return models.PredictionResponse{}, err
		}
		resp.Mode = "single"
		resp.Prediction = &pred
		record.ModelName = pred.ModelName
		record.Result = pred
		if pred.Confidence != nil {
			record.Confidence = *pred.Confidence
		}
	}

	quality, contamination := resp.Scores()
	record.QualityScore, record.ContaminationIndex = quality, contamination

	sensorData := req.SensorData
	if len(sensorData) == 0 {
		sensorData = req.Features
	}
	optimization := s.pipeline.Optimize(models.OptimizationRequest{
		QualityScore:       quality,
		ContaminationIndex: contamination,
		SensorData:         sensorData,
		TargetQuality:      req.TargetQuality,
	})
	resp.Optimization = &optimization

	resp.PredictionID = uuid.NewString()
	record.ID = resp.PredictionID
	record.Timestamp = start
	if s.store != nil {
		if _, err := s.store.SavePrediction(ctx, record); err != nil {
			s.logger.Warn("persist prediction failed", slog.String("prediction_id", record.ID), slog.Any("error", err))
		}
	}

	s.observeLatency(s.now().Sub(start))
	return resp, nil
}

// Optimize computes treatment setpoints. Scores outside 0..100 are clamped by
// the optimizer; only an unknown target tier is rejected.
func (s *TreatmentService) Optimize(_ context.Context, req models.OptimizationRequest) (models.OptimizationResult, error) {
	if err := validateTarget(req.TargetQuality); err != nil {
		return models.OptimizationResult{}, err
	}
	return s.pipeline.Optimize(req), nil
}

// Models lists loaded artifacts merged with persisted metadata. Datasets known
// only to the store are included with loaded=false.
func (s *TreatmentService) Models(ctx context.Context) ([]models.ModelInfo, error) {
	infos := s.pipeline.Registry().List()
	if s.store == nil {
		return infos, nil
	}

	persisted, err := s.store.ModelMetadata(ctx)
	if err != nil {
		s.logger.Warn("read model metadata failed", slog.Any("error", err))
		return infos, nil
	}
	byKey := make(map[string]models.ModelMetadataRecord, len(persisted))
	for _, rec := range persisted {
		byKey[rec.DatasetName] = rec
	}

	for i := range infos {
		meta := make(map[string]any, len(infos[i].Metadata)+3)
		for k, v := range infos[i].Metadata {
			meta[k] = v
		}
		meta["loaded"] = true
		if rec, ok := byKey[infos[i].DatasetName]; ok {
			meta["is_active"] = rec.Active
			meta["loaded_at"] = rec.LoadedAt
			delete(byKey, infos[i].DatasetName)
		}
		infos[i].Metadata = meta
	}
	for _, rec := range persisted {
		if _, ok := byKey[rec.DatasetName]; !ok {
			continue
		}
		infos = append(infos, models.ModelInfo{
			DatasetName: rec.DatasetName,
			Version:     rec.Version,
			Kind:        rec.Kind,
			Features:    rec.Features,
			Target:      rec.Target,
			Metadata: map[string]any{
				"loaded":    false,
				"is_active": rec.Active,
				"loaded_at": rec.LoadedAt,
			},
		})
	}
	return infos, nil
}

// SyncModelMetadata records every loaded artifact as active and marks the rest inactive.
func (s *TreatmentService) SyncModelMetadata(ctx context.Context) error {
	if s.store == nil {
		return nil
	}
	infos := s.pipeline.Registry().List()
	keys := make([]string, 0, len(infos))
	loadedAt := s.now()
	for _, info := range infos {
		keys = append(keys, info.DatasetName)
		if err := s.store.UpsertModelMetadata(ctx, models.ModelMetadataRecord{
			DatasetName: info.DatasetName,
			Version:     info.Version,
			Kind:        info.Kind,
			Features:    info.Features,
			Target:      info.Target,
			Active:      true,
			LoadedAt:    loadedAt,
		}); err != nil {
			return err
		}
	}
	return s.store.DeactivateModelsExcept(ctx, keys)
}

// Reload rebuilds the registry from disk and clears cached predictions.
func (s *TreatmentService) Reload(ctx context.Context) (models.ReloadSummary, error) {
	reg, cleared := s.pipeline.Reload(ctx)
	summary := models.ReloadSummary{Models: reg.Keys(), CacheEntriesCleared: cleared}
	for _, err := range reg.LoadErrors() {
		summary.Skipped = append(summary.Skipped, err.Error())
	}
	if err := s.SyncModelMetadata(ctx); err != nil {
		s.logger.Warn("sync model metadata after reload failed", slog.Any("error", err))
	}
	return summary, nil
}

// Ingest validates and stores a sensor reading.
func (s *TreatmentService) Ingest(ctx context.Context, reading models.SensorReading, source string) (saved models.SensorReading, err error) {
	defer func() { metrics.ObserveIngest(source, err == nil) }()

	if s.store == nil {
		return reading, ErrStorageUnavailable
	}
	reading.SensorID = strings.TrimSpace(reading.SensorID)
	reading.SensorType = strings.TrimSpace(reading.SensorType)
	if reading.SensorID == "" || reading.SensorType == "" {
		return reading, fmt.Errorf("%w: sensor_id and sensor_type are required", ErrInvalidRequest)
	}
	if math.IsNaN(reading.Value) || math.IsInf(reading.Value, 0) {
		return reading, fmt.Errorf("%w: value must be finite", ErrInvalidRequest)
	}
	return s.store.SaveReading(ctx, reading)
}

// RecentSensors lists readings newest first.
func (s *TreatmentService) RecentSensors(ctx context.Context, limit int) ([]models.SensorReading, error) {
	if s.store == nil {
		return nil, ErrStorageUnavailable
	}
	return s.store.RecentReadings(ctx, repo.ClampLimit(limit, repo.DefaultReadingsLimit))
}

// RecentPredictions lists predictions newest first.
func (s *TreatmentService) RecentPredictions(ctx context.Context, limit int) ([]models.PredictionRecord, error) {
	if s.store == nil {
		return nil, ErrStorageUnavailable
	}
	return s.store.RecentPredictions(ctx, repo.ClampLimit(limit, repo.DefaultPredictionsLimit))
}

// TwinStatus builds the digital-twin snapshot from recent readings and predictions.
func (s *TreatmentService) TwinStatus(ctx context.Context) (models.TwinStatus, error) {
	if s.store == nil {
		return models.TwinStatus{}, ErrStorageUnavailable
	}
	readings, err := s.store.RecentReadings(ctx, TwinReadingsWindow)
	if err != nil {
		return models.TwinStatus{}, err
	}
	predictions, err := s.store.RecentPredictions(ctx, TwinPredictionsWindow)
	if err != nil {
		return models.TwinStatus{}, err
	}

	status := models.TwinStatus{
		SensorStatus: extractors.LatestByParameter(readings),
		TwinState: models.TwinState{
			Turbidity: DefaultTurbidity,
			Alerts:    s.detector.Detect(readings),
		},
	}
	if status.TwinState.Alerts == nil {
		status.TwinState.Alerts = []models.TwinAlert{}
	}
	if len(predictions) > 0 {
		latest := predictions[0]
		status.LatestPrediction = &latest
		status.TwinState.Turbidity = latest.ContaminationIndex
	}
	return status, nil
}

// Report renders a PDF for the request, uploads it and records it.
func (s *TreatmentService) Report(ctx context.Context, req models.ReportRequest) (models.ReportRecord, error) {
	if s.renderer == nil || s.objects == nil {
		return models.ReportRecord{}, ErrReportsUnavailable
	}

	in := report.Input{Optimization: req.Optimization, SensorData: req.SensorData}
	if req.PredictionID != "" {
		if s.store == nil {
			return models.ReportRecord{}, ErrStorageUnavailable
		}
		rec, err := s.store.Prediction(ctx, req.PredictionID)
		if err != nil {
			return models.ReportRecord{}, err
		}
		in.Prediction = &rec
		if in.Optimization == nil {
			opt := s.pipeline.Optimize(models.OptimizationRequest{
				QualityScore:       rec.QualityScore,
				ContaminationIndex: rec.ContaminationIndex,
				SensorData:         firstNonEmpty(req.SensorData, rec.Input),
			})
			in.Optimization = &opt
		}
	}
	if s.store != nil {
		readings, err := s.store.RecentReadings(ctx, report.MaxSensorRows)
		if err != nil {
			s.logger.Warn("load readings for report failed", slog.Any("error", err))
		}
		in.Readings = readings
	}

	data, err := s.renderer.Render(in)
	if err != nil {
		return models.ReportRecord{}, err
	}
	created := s.now().UTC()
	url, err := s.objects.Put(ctx, report.FileName(created), "application/pdf", data)
	if err != nil {
		return models.ReportRecord{}, fmt.Errorf("upload report: %w", err)
	}

	rec := models.ReportRecord{ID: uuid.NewString(), URL: url, FileSize: len(data), CreatedAt: created}
	if s.store != nil {
		if rec, err = s.store.SaveReport(ctx, rec); err != nil {
			return models.ReportRecord{}, err
		}
	}
	s.logger.Info("report generated", slog.String("url", rec.URL), slog.Int("bytes", rec.FileSize))
	return rec, nil
}

// LoadedModels reports how many artifacts the current registry serves.
func (s *TreatmentService) LoadedModels() int {
	return s.pipeline.Registry().Len()
}

// LatencyP95 returns the current p95 prediction latency.
func (s *TreatmentService) LatencyP95() time.Duration {
	return s.latencies.Percentile(95)
}

func (s *TreatmentService) observeLatency(d time.Duration) {
	s.latencies.Observe(d)
	if count := s.latencies.Count(); count >= latencyLogEvery && count%latencyLogEvery == 0 {
		summary := s.latencies.Summary()
		s.logger.Info("prediction latency",
			slog.Duration("p50", summary.P50),
			slog.Duration("p95", summary.P95),
			slog.Int("samples", summary.Samples))
	}
}

func validateTarget(target models.TargetQuality) error {
	if target == "" || target.Valid() {
		return nil
	}
	return fmt.Errorf("%w: unknown target_quality %q", ErrInvalidRequest, target)
}

func firstNonEmpty(vectors ...models.FeatureVector) models.FeatureVector {
	for _, v := range vectors {
		if len(v) > 0 {
			return v
		}
	}
	return nil
}
