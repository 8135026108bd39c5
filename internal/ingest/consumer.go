// Package ingest consumes plant sensor readings from Kafka.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/miradorstack/water-ai/internal/config"
	"github.com/miradorstack/water-ai/internal/metrics"
	"github.com/miradorstack/water-ai/internal/models"
	"github.com/miradorstack/water-ai/internal/utils"
)

const (
	// SourceKafka labels readings that arrived over Kafka.
	SourceKafka = "kafka"

	unknownPart = "unknown"
)

// ErrInvalidPayload marks a message that could not be turned into a reading.
var ErrInvalidPayload = errors.New("invalid sensor payload")

// MessageReader is the subset of *kafka.Reader the consumer needs.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Sink persists decoded readings.
type Sink interface {
	Ingest(ctx context.Context, reading models.SensorReading, source string) (models.SensorReading, error)
}

// NewKafkaReader builds a consumer-group reader from cfg.
func NewKafkaReader(cfg config.IngestConfig) *kafka.Reader {
	maxWait := cfg.MaxWait
	if maxWait <= 0 {
		maxWait = time.Second
	}
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		Topic:    cfg.Topic,
		GroupID:  cfg.GroupID,
		MinBytes: 1,
		MaxBytes: 1 << 20,
		MaxWait:  maxWait,
	})
}

// Consumer moves readings from a MessageReader into a Sink.
type Consumer struct {
	reader MessageReader
	sink   Sink
	logger *slog.Logger
}

// NewConsumer wires reader to sink.
func NewConsumer(reader MessageReader, sink Sink, logger *slog.Logger) *Consumer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Consumer{reader: reader, sink: sink, logger: logger}
}

// Run consumes until ctx is cancelled. Undecodable messages are committed
// and skipped so they cannot block the partition.
func (c *Consumer) Run(ctx context.Context) error {
	c.logger.Info("sensor consumer started")
	defer c.logger.Info("sensor consumer stopped")

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("fetch sensor message: %w", err)
		}

		c.handle(ctx, msg)

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.logger.Warn("commit sensor message failed",
				slog.Int("partition", msg.Partition),
				slog.Int64("offset", msg.Offset),
				slog.Any("error", err))
		}
	}
}

func (c *Consumer) handle(ctx context.Context, msg kafka.Message) {
	reading, err := Decode(msg)
	if err != nil {
		metrics.ObserveIngest(SourceKafka, false)
		c.logger.Warn("dropping sensor message",
			slog.String("key", string(msg.Key)),
			slog.Int64("offset", msg.Offset),
			slog.String("error", utils.Summarize(err, utils.MaxErrorSummary)))
		return
	}
	if _, err := c.sink.Ingest(ctx, reading, SourceKafka); err != nil {
		c.logger.Error("store sensor reading failed",
			slog.String("sensor_id", reading.SensorID),
			slog.Any("error", err))
	}
}

// Close releases the underlying reader.
func (c *Consumer) Close() error {
	return c.reader.Close()
}

type payload struct {
	Value      *float64       `json:"value"`
	Parameter  string         `json:"parameter"`
	SensorID   string         `json:"sensor_id"`
	SensorType string         `json:"sensor_type"`
	Unit       string         `json:"unit"`
	Location   string         `json:"location"`
	Timestamp  any            `json:"timestamp"`
	Metadata   map[string]any `json:"metadata"`
}

// Decode turns a Kafka message keyed "<sensor_type>/<sensor_id>" into a reading.
// Payload fields override the key; the parameter defaults to the sensor type.
func Decode(msg kafka.Message) (models.SensorReading, error) {
	var raw map[string]any
	if err := json.Unmarshal(msg.Value, &raw); err != nil {
		return models.SensorReading{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	var p payload
	if err := json.Unmarshal(msg.Value, &p); err != nil {
		return models.SensorReading{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if p.Value == nil {
		return models.SensorReading{}, fmt.Errorf("%w: missing value", ErrInvalidPayload)
	}
	if math.IsNaN(*p.Value) || math.IsInf(*p.Value, 0) {
		return models.SensorReading{}, fmt.Errorf("%w: value must be finite", ErrInvalidPayload)
	}

	sensorType, sensorID := splitKey(string(msg.Key))
	if p.SensorType != "" {
		sensorType = p.SensorType
	}
	if p.SensorID != "" {
		sensorID = p.SensorID
	}
	parameter := p.Parameter
	if parameter == "" {
		parameter = sensorType
	}

	ts, err := timestamp(p.Timestamp, msg.Time)
	if err != nil {
		return models.SensorReading{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	metadata := map[string]any{
		"topic":     msg.Topic,
		"partition": msg.Partition,
		"offset":    msg.Offset,
		"raw_data":  raw,
	}
	for k, v := range p.Metadata {
		metadata[k] = v
	}

	return models.SensorReading{
		SensorID:      sensorID,
		SensorType:    sensorType,
		ParameterName: parameter,
		Value:         *p.Value,
		Unit:          p.Unit,
		Location:      p.Location,
		Timestamp:     ts,
		Metadata:      metadata,
	}, nil
}

func splitKey(key string) (sensorType, sensorID string) {
	sensorType, sensorID = unknownPart, unknownPart
	parts := strings.SplitN(strings.Trim(key, "/"), "/", 2)
	if len(parts) > 0 && parts[0] != "" {
		sensorType = parts[0]
	}
	if len(parts) > 1 && parts[1] != "" {
		sensorID = parts[1]
	}
	return sensorType, sensorID
}

func timestamp(value any, fallback time.Time) (time.Time, error) {
	switch v := value.(type) {
	case nil:
		if fallback.IsZero() {
			return time.Time{}, nil
		}
		return fallback.UTC(), nil
	case string:
		return utils.ParseTimestamp(v)
	case float64:
		return utils.ParseTimestamp(fmt.Sprintf("%f", v))
	default:
		return time.Time{}, fmt.Errorf("unsupported timestamp %v", value)
	}
}
