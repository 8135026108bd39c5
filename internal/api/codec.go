package api

import (
	"encoding/json"
	"fmt"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/miradorstack/water-ai/internal/models"
)

// ToStruct converts a JSON-serialisable value into a Struct message.
func ToStruct(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode response: %w", err)
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(data, out); err != nil {
		return nil, fmt.Errorf("convert response: %w", err)
	}
	return out, nil
}

// FromStruct decodes s into v using the JSON field names of v.
func FromStruct(s *structpb.Struct, v any) error {
	if s == nil {
		return fmt.Errorf("request is nil")
	}
	data, err := protojson.Marshal(s)
	if err != nil {
		return fmt.Errorf("read request: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode request: %w", err)
	}
	return nil
}

// FromStructPredictionRequest maps a Struct into a PredictionRequest.
func FromStructPredictionRequest(s *structpb.Struct) (models.PredictionRequest, error) {
	var req models.PredictionRequest
	if err := FromStruct(s, &req); err != nil {
		return models.PredictionRequest{}, err
	}
	return req, nil
}

// FromStructOptimizationRequest maps a Struct into an OptimizationRequest.
func FromStructOptimizationRequest(s *structpb.Struct) (models.OptimizationRequest, error) {
	var req models.OptimizationRequest
	if err := FromStruct(s, &req); err != nil {
		return models.OptimizationRequest{}, err
	}
	return req, nil
}
