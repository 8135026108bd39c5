package ingest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/miradorstack/water-ai/internal/models"
)

type fakeReader struct {
	mu        sync.Mutex
	messages  []kafka.Message
	committed []int64
	closed    bool
	cancel    context.CancelFunc
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.messages) == 0 {
		r.mu.Unlock()
		r.cancel()
		<-ctx.Done()
		return kafka.Message{}, ctx.Err()
	}
	msg := r.messages[0]
	r.messages = r.messages[1:]
	r.mu.Unlock()
	return msg, nil
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error {
	r.closed = true
	return nil
}

type recordingSink struct {
	readings []models.SensorReading
	sources  []string
	err      error
}

func (s *recordingSink) Ingest(_ context.Context, r models.SensorReading, source string) (models.SensorReading, error) {
	if s.err != nil {
		return r, s.err
	}
	s.readings = append(s.readings, r)
	s.sources = append(s.sources, source)
	return r, nil
}

func TestDecode(t *testing.T) {
	sent := time.Date(2025, 2, 3, 4, 5, 6, 0, time.UTC)
	reading, err := Decode(kafka.Message{
		Topic:  "plant.sensors",
		Key:    []byte("turbidity/T-01"),
		Value:  []byte(`{"value": 4.2, "unit": "NTU", "location": "Primary Tank"}`),
		Time:   sent,
		Offset: 7,
	})
	require.NoError(t, err)
	assert.Equal(t, "turbidity", reading.SensorType)
	assert.Equal(t, "T-01", reading.SensorID)
	assert.Equal(t, "turbidity", reading.ParameterName)
	assert.Equal(t, 4.2, reading.Value)
	assert.Equal(t, "NTU", reading.Unit)
	assert.Equal(t, sent, reading.Timestamp)
	assert.Equal(t, "plant.sensors", reading.Metadata["topic"])
	assert.Equal(t, int64(7), reading.Metadata["offset"])
}

func TestDecodePayloadOverrides(t *testing.T) {
	reading, err := Decode(kafka.Message{
		Value: []byte(`{"value": 210, "parameter": "bod", "sensor_id": "L-9", "timestamp": "2025-02-03T10:00:00Z"}`),
	})
	require.NoError(t, err)
	assert.Equal(t, unknownPart, reading.SensorType)
	assert.Equal(t, "L-9", reading.SensorID)
	assert.Equal(t, "bod", reading.ParameterName)
	assert.Equal(t, time.Date(2025, 2, 3, 10, 0, 0, 0, time.UTC), reading.Timestamp)

	unix, err := Decode(kafka.Message{Key: []byte("ph/P1"), Value: []byte(`{"value": 7, "timestamp": 1700000000}`)})
	require.NoError(t, err)
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), unix.Timestamp)
}

func TestDecodeRejects(t *testing.T) {
	cases := map[string]string{
		"not json":      `{"value":`,
		"missing value": `{"unit": "NTU"}`,
		"bad timestamp": `{"value": 1, "timestamp": "yesterday"}`,
		"bad type":      `{"value": "high"}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Decode(kafka.Message{Key: []byte("ph/P1"), Value: []byte(body)})
			assert.ErrorIs(t, err, ErrInvalidPayload)
		})
	}
}

func TestConsumerRun(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reader := &fakeReader{
		cancel: cancel,
		messages: []kafka.Message{
			{Key: []byte("ph/P1"), Value: []byte(`{"value": 7.1}`), Offset: 1},
			{Key: []byte("ph/P1"), Value: []byte(`garbage`), Offset: 2},
			{Key: []byte("cod/C1"), Value: []byte(`{"value": 380}`), Offset: 3},
		},
	}
	sink := &recordingSink{}
	consumer := NewConsumer(reader, sink, nil)

	require.NoError(t, consumer.Run(ctx))
	require.Len(t, sink.readings, 2)
	assert.Equal(t, "ph", sink.readings[0].SensorType)
	assert.Equal(t, 380.0, sink.readings[1].Value)
	assert.Equal(t, []string{SourceKafka, SourceKafka}, sink.sources)
	assert.Equal(t, []int64{1, 2, 3}, reader.committed)

	require.NoError(t, consumer.Close())
	assert.True(t, reader.closed)
}

type failingReader struct{ fakeReader }

func (r *failingReader) FetchMessage(context.Context) (kafka.Message, error) {
	return kafka.Message{}, errors.New("broker unreachable")
}

func TestConsumerRunFetchError(t *testing.T) {
	consumer := NewConsumer(&failingReader{}, &recordingSink{err: errors.New("unused")}, nil)
	err := consumer.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker unreachable")
}
