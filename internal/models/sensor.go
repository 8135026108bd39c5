package models

import "time"

// SensorReading is a single measurement from the plant.
type SensorReading struct {
	ID            string         `json:"id,omitempty"`
	SensorID      string         `json:"sensor_id" binding:"required"`
	SensorType    string         `json:"sensor_type" binding:"required"`
	ParameterName string         `json:"parameter_name"`
	Value         float64        `json:"value"`
	Unit          string         `json:"unit,omitempty"`
	Location      string         `json:"location,omitempty"`
	Timestamp     time.Time      `json:"timestamp"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}

// ParameterStatus is the latest observed value of one parameter.
type ParameterStatus struct {
	CurrentValue float64   `json:"current_value"`
	Unit         string    `json:"unit,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// TwinAlert flags a parameter whose latest reading deviates from its recent history.
type TwinAlert struct {
	Parameter string    `json:"parameter"`
	Value     float64   `json:"value"`
	Score     float64   `json:"z_score"`
	Threshold float64   `json:"threshold"`
	Timestamp time.Time `json:"timestamp"`
}

// TwinState is the aggregate view rendered by the digital twin.
type TwinState struct {
	Turbidity float64     `json:"turbidity"`
	Alerts    []TwinAlert `json:"alerts"`
}

// TwinStatus is the digital twin snapshot.
type TwinStatus struct {
	SensorStatus     map[string]ParameterStatus `json:"sensor_status"`
	LatestPrediction *PredictionRecord          `json:"latest_prediction"`
	TwinState        TwinState                  `json:"twin_state"`
}

// ReportRecord describes a rendered and uploaded report.
type ReportRecord struct {
	ID        string    `json:"id"`
	URL       string    `json:"report_url"`
	FileSize  int       `json:"file_size"`
	CreatedAt time.Time `json:"created_at"`
}

// ReportRequest asks for a PDF report.
type ReportRequest struct {
	PredictionID string              `json:"prediction_id,omitempty"`
	SensorData   FeatureVector       `json:"sensor_data,omitempty"`
	Optimization *OptimizationResult `json:"optimization_results,omitempty"`
}
