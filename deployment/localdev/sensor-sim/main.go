package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"math"
	"math/rand"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/segmentio/kafka-go"
)

type sensor struct {
	id        string
	kind      string
	parameter string
	unit      string
	base      float64
	spread    float64
	value     float64
}

type reading struct {
	SensorID   string         `json:"sensor_id"`
	SensorType string         `json:"sensor_type"`
	Parameter  string         `json:"parameter"`
	Value      float64        `json:"value"`
	Unit       string         `json:"unit"`
	Location   string         `json:"location"`
	Timestamp  string         `json:"timestamp"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

func main() {
	brokers := flag.String("brokers", "localhost:9092", "Comma separated Kafka brokers")
	topic := flag.String("topic", "plant.sensors", "Topic to publish readings to")
	interval := flag.Duration("interval", 2*time.Second, "Delay between publishing rounds")
	location := flag.String("location", "inlet", "Location tag attached to readings")
	spikeEvery := flag.Int("spike-every", 25, "Inject an outlier every N rounds (0 disables)")
	flag.Parse()

	logger := log.New(log.Writer(), "sensor-sim ", log.LstdFlags|log.Lmicroseconds)

	writer := &kafka.Writer{
		Addr:         kafka.TCP(strings.Split(*brokers, ",")...),
		Topic:        *topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 50 * time.Millisecond,
	}
	defer writer.Close()

	sensors := []*sensor{
		{id: "ph-01", kind: "ph", parameter: "ph", unit: "pH", base: 7.1, spread: 0.15},
		{id: "turb-01", kind: "turbidity", parameter: "turbidity", unit: "NTU", base: 35, spread: 3},
		{id: "bod-01", kind: "bod", parameter: "bod", unit: "mg/L", base: 180, spread: 12},
		{id: "cod-01", kind: "cod", parameter: "cod", unit: "mg/L", base: 420, spread: 25},
		{id: "flow-01", kind: "flow", parameter: "flow_rate_lpm", unit: "L/min", base: 1000, spread: 60},
	}
	for _, s := range sensors {
		s.value = s.base
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	logger.Printf("publishing to %s on %s every %s", *topic, *brokers, *interval)
publish:
	for round := 1; ; round++ {
		spike := *spikeEvery > 0 && round%*spikeEvery == 0
		msgs := make([]kafka.Message, 0, len(sensors))
		for i, s := range sensors {
			s.step(rng)
			value := s.value
			meta := map[string]any{"round": round}
			if spike && i == round/(*spikeEvery)%len(sensors) {
				value = s.base + 8*s.spread
				meta["simulated_spike"] = true
			}
			payload, err := json.Marshal(reading{
				SensorID:   s.id,
				SensorType: s.kind,
				Parameter:  s.parameter,
				Value:      math.Round(value*100) / 100,
				Unit:       s.unit,
				Location:   *location,
				Timestamp:  time.Now().UTC().Format(time.RFC3339Nano),
				Metadata:   meta,
			})
			if err != nil {
				logger.Fatalf("encode reading: %v", err)
			}
			msgs = append(msgs, kafka.Message{Key: []byte(s.kind + "/" + s.id), Value: payload})
		}

		if err := writer.WriteMessages(ctx, msgs...); err != nil {
			if ctx.Err() != nil {
				break publish
			}
			logger.Printf("publish round %d: %v", round, err)
		}

		select {
		case <-ctx.Done():
			break publish
		case <-ticker.C:
		}
	}
	logger.Println("stopped")
}

// step moves the sensor along a mean-reverting random walk.
func (s *sensor) step(rng *rand.Rand) {
	s.value += 0.3*(s.base-s.value) + rng.NormFloat64()*s.spread*0.5
}
