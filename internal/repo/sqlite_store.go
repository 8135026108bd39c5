package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/miradorstack/water-ai/internal/models"
)

const (
	// DefaultReadingsLimit is used when a caller does not bound a readings listing.
	DefaultReadingsLimit = 100
	// DefaultPredictionsLimit is used when a caller does not bound a predictions listing.
	DefaultPredictionsLimit = 50
	// MaxListLimit caps every listing.
	MaxListLimit = 10000

	timeLayout = "2006-01-02T15:04:05.000000000Z07:00"
)

// ErrNotFound is returned when a lookup by id matches no row.
var ErrNotFound = errors.New("record not found")

var schema = []string{
	`CREATE TABLE IF NOT EXISTS sensor_readings (
		id TEXT PRIMARY KEY,
		sensor_id TEXT NOT NULL,
		sensor_type TEXT NOT NULL,
		parameter_name TEXT,
		value REAL NOT NULL,
		unit TEXT,
		location TEXT,
		timestamp TEXT NOT NULL,
		metadata TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_sensor_readings_timestamp ON sensor_readings (timestamp DESC)`,
	`CREATE TABLE IF NOT EXISTS predictions (
		id TEXT PRIMARY KEY,
		model_name TEXT NOT NULL,
		input_data TEXT NOT NULL,
		predictions TEXT NOT NULL,
		quality_score REAL,
		contamination_index REAL,
		confidence REAL,
		timestamp TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_predictions_timestamp ON predictions (timestamp DESC)`,
	`CREATE TABLE IF NOT EXISTS model_metadata (
		dataset_name TEXT PRIMARY KEY,
		model_version TEXT,
		model_type TEXT,
		feature_columns TEXT,
		target_column TEXT,
		is_active INTEGER,
		loaded_at TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS reports (
		id TEXT PRIMARY KEY,
		report_url TEXT NOT NULL,
		file_size INTEGER,
		created_at TEXT NOT NULL
	)`,
}

// SQLiteStore persists readings, predictions, model metadata and reports.
type SQLiteStore struct {
	db   *sql.DB
	path string
	mu   sync.Mutex
	now  func() time.Time
}

// OpenSQLite opens (or creates) the database at path and applies the schema.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	store := &SQLiteStore{db: db, path: path, now: time.Now}
	if err := store.init(); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func (s *SQLiteStore) init() error {
	for _, stmt := range schema {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string { return s.path }

// Close releases the database handle.
func (s *SQLiteStore) Close() error { return s.db.Close() }

// ClampLimit returns limit when it lies in 1..MaxListLimit and def otherwise.
func ClampLimit(limit, def int) int {
	if limit < 1 || limit > MaxListLimit {
		return def
	}
	return limit
}

// SaveReading stores r, assigning an id and timestamp when missing.
func (s *SQLiteStore) SaveReading(ctx context.Context, r models.SensorReading) (models.SensorReading, error) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.Timestamp.IsZero() {
		r.Timestamp = s.now()
	}
	r.Timestamp = r.Timestamp.UTC()
	if r.ParameterName == "" {
		r.ParameterName = r.SensorType
	}
	metadata, err := encodeJSON(r.Metadata)
	if err != nil {
		return r, fmt.Errorf("encode reading metadata: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.db.ExecContext(ctx, `INSERT INTO sensor_readings
		(id, sensor_id, sensor_type, parameter_name, value, unit, location, timestamp, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.SensorID, r.SensorType, r.ParameterName, r.Value, r.Unit, r.Location,
		r.Timestamp.Format(timeLayout), metadata,
	)
	if err != nil {
		return r, fmt.Errorf("insert sensor reading: %w", err)
	}
	return r, nil
}

// RecentReadings lists readings newest first.
func (s *SQLiteStore) RecentReadings(ctx context.Context, limit int) ([]models.SensorReading, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, sensor_id, sensor_type, parameter_name, value, unit, location, timestamp, metadata
		FROM sensor_readings ORDER BY timestamp DESC LIMIT ?`, ClampLimit(limit, DefaultReadingsLimit))
	if err != nil {
		return nil, fmt.Errorf("query sensor readings: %w", err)
	}
	defer rows.Close()

	readings := make([]models.SensorReading, 0)
	for rows.Next() {
		var r models.SensorReading
		var param, unit, location, ts, meta sql.NullString
		if err := rows.Scan(&r.ID, &r.SensorID, &r.SensorType, &param, &r.Value, &unit, &location, &ts, &meta); err != nil {
			return nil, err
		}
		r.ParameterName, r.Unit, r.Location = param.String, unit.String, location.String
		r.Timestamp = parseTime(ts.String)
		if meta.Valid && meta.String != "" && meta.String != "null" {
			if err := json.Unmarshal([]byte(meta.String), &r.Metadata); err != nil {
				return nil, fmt.Errorf("decode reading metadata %s: %w", r.ID, err)
			}
		}
		readings = append(readings, r)
	}
	return readings, rows.Err()
}

// SavePrediction stores rec, assigning an id and timestamp when missing.
func (s *SQLiteStore) SavePrediction(ctx context.Context, rec models.PredictionRecord) (models.PredictionRecord, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = s.now()
	}
	rec.Timestamp = rec.Timestamp.UTC()
	input, err := encodeJSON(rec.Input)
	if err != nil {
		return rec, fmt.Errorf("encode prediction input: %w", err)
	}
	result, err := encodeJSON(rec.Result)
	if err != nil {
		return rec, fmt.Errorf("encode prediction result: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.db.ExecContext(ctx, `INSERT INTO predictions
		(id, model_name, input_data, predictions, quality_score, contamination_index, confidence, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.ModelName, input, result, rec.QualityScore, rec.ContaminationIndex, rec.Confidence,
		rec.Timestamp.Format(timeLayout),
	)
	if err != nil {
		return rec, fmt.Errorf("insert prediction: %w", err)
	}
	return rec, nil
}

// RecentPredictions lists predictions newest first.
func (s *SQLiteStore) RecentPredictions(ctx context.Context, limit int) ([]models.PredictionRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, model_name, input_data, predictions, quality_score, contamination_index, confidence, timestamp
		FROM predictions ORDER BY timestamp DESC LIMIT ?`, ClampLimit(limit, DefaultPredictionsLimit))
	if err != nil {
		return nil, fmt.Errorf("query predictions: %w", err)
	}
	defer rows.Close()

	records := make([]models.PredictionRecord, 0)
	for rows.Next() {
		rec, err := scanPrediction(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Prediction fetches one prediction by id.
func (s *SQLiteStore) Prediction(ctx context.Context, id string) (models.PredictionRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, model_name, input_data, predictions, quality_score, contamination_index, confidence, timestamp
		FROM predictions WHERE id = ?`, id)
	rec, err := scanPrediction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.PredictionRecord{}, fmt.Errorf("prediction %s: %w", id, ErrNotFound)
	}
	return rec, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPrediction(row scanner) (models.PredictionRecord, error) {
	var (
		rec           models.PredictionRecord
		input, result string
		ts            string
		q, c, conf    sql.NullFloat64
	)
	if err := row.Scan(&rec.ID, &rec.ModelName, &input, &result, &q, &c, &conf, &ts); err != nil {
		return rec, err
	}
	rec.QualityScore, rec.ContaminationIndex, rec.Confidence = q.Float64, c.Float64, conf.Float64
	rec.Timestamp = parseTime(ts)
	if err := json.Unmarshal([]byte(input), &rec.Input); err != nil {
		return rec, fmt.Errorf("decode prediction input %s: %w", rec.ID, err)
	}
	if err := json.Unmarshal([]byte(result), &rec.Result); err != nil {
		return rec, fmt.Errorf("decode prediction result %s: %w", rec.ID, err)
	}
	return rec, nil
}

// UpsertModelMetadata records the artifact description keyed by dataset.
func (s *SQLiteStore) UpsertModelMetadata(ctx context.Context, rec models.ModelMetadataRecord) error {
	if rec.LoadedAt.IsZero() {
		rec.LoadedAt = s.now()
	}
	features, err := encodeJSON(rec.Features)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.db.ExecContext(ctx, `INSERT INTO model_metadata
		(dataset_name, model_version, model_type, feature_columns, target_column, is_active, loaded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(dataset_name) DO UPDATE SET
			model_version = excluded.model_version,
			model_type = excluded.model_type,
			feature_columns = excluded.feature_columns,
			target_column = excluded.target_column,
			is_active = excluded.is_active,
			loaded_at = excluded.loaded_at`,
		rec.DatasetName, rec.Version, string(rec.Kind), features, rec.Target, boolToInt(rec.Active),
		rec.LoadedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("upsert model metadata %s: %w", rec.DatasetName, err)
	}
	return nil
}

// DeactivateModelsExcept marks every dataset not in keep as inactive.
func (s *SQLiteStore) DeactivateModelsExcept(ctx context.Context, keep []string) error {
	query := "UPDATE model_metadata SET is_active = 0"
	args := make([]any, 0, len(keep))
	if len(keep) > 0 {
		query += " WHERE dataset_name NOT IN (?" + strings.Repeat(", ?", len(keep)-1) + ")"
		for _, k := range keep {
			args = append(args, k)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("deactivate model metadata: %w", err)
	}
	return nil
}

// ModelMetadata lists every persisted artifact description by dataset name.
func (s *SQLiteStore) ModelMetadata(ctx context.Context) ([]models.ModelMetadataRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT dataset_name, model_version, model_type, feature_columns, target_column, is_active, loaded_at
		FROM model_metadata ORDER BY dataset_name`)
	if err != nil {
		return nil, fmt.Errorf("query model metadata: %w", err)
	}
	defer rows.Close()

	records := make([]models.ModelMetadataRecord, 0)
	for rows.Next() {
		var rec models.ModelMetadataRecord
		var version, kind, features, target, loaded sql.NullString
		var active int
		if err := rows.Scan(&rec.DatasetName, &version, &kind, &features, &target, &active, &loaded); err != nil {
			return nil, err
		}
		rec.Version, rec.Kind, rec.Target = version.String, models.ModelKind(kind.String), target.String
		rec.Active = active == 1
		rec.LoadedAt = parseTime(loaded.String)
		if features.Valid && features.String != "" && features.String != "null" {
			if err := json.Unmarshal([]byte(features.String), &rec.Features); err != nil {
				return nil, fmt.Errorf("decode feature columns %s: %w", rec.DatasetName, err)
			}
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// SaveReport records an uploaded report.
func (s *SQLiteStore) SaveReport(ctx context.Context, rec models.ReportRecord) (models.ReportRecord, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = s.now()
	}
	rec.CreatedAt = rec.CreatedAt.UTC()

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `INSERT INTO reports (id, report_url, file_size, created_at) VALUES (?, ?, ?, ?)`,
		rec.ID, rec.URL, rec.FileSize, rec.CreatedAt.Format(timeLayout))
	if err != nil {
		return rec, fmt.Errorf("insert report: %w", err)
	}
	return rec, nil
}

// Reports lists recorded reports newest first.
func (s *SQLiteStore) Reports(ctx context.Context, limit int) ([]models.ReportRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, report_url, file_size, created_at FROM reports ORDER BY created_at DESC LIMIT ?`,
		ClampLimit(limit, DefaultPredictionsLimit))
	if err != nil {
		return nil, fmt.Errorf("query reports: %w", err)
	}
	defer rows.Close()

	records := make([]models.ReportRecord, 0)
	for rows.Next() {
		var rec models.ReportRecord
		var created string
		if err := rows.Scan(&rec.ID, &rec.URL, &rec.FileSize, &created); err != nil {
			return nil, err
		}
		rec.CreatedAt = parseTime(created)
		records = append(records, rec)
	}
	return records, rows.Err()
}

func encodeJSON(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func parseTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
