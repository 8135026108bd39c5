package services

import (
	"context"
	"log/slog"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/miradorstack/water-ai/internal/api"
	"github.com/miradorstack/water-ai/internal/utils"
)

// GRPCService adapts TreatmentService to the gRPC TreatmentServer interface.
type GRPCService struct {
	logger  *slog.Logger
	service *TreatmentService
}

var _ api.TreatmentServer = (*GRPCService)(nil)

// NewGRPCService constructs the gRPC facade.
func NewGRPCService(logger *slog.Logger, service *TreatmentService) *GRPCService {
	if logger == nil {
		logger = slog.Default()
	}
	return &GRPCService{logger: logger, service: service}
}

// Predict serves a prediction plus the optimization it drives.
func (g *GRPCService) Predict(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if g.service == nil {
		return nil, status.Error(codes.FailedPrecondition, "treatment service not configured")
	}
	domainReq, err := api.FromStructPredictionRequest(req)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	resp, err := g.service.Predict(ctx, domainReq)
	if err != nil {
		return nil, g.toStatus("predict", err)
	}
	return g.encode(resp)
}

// Optimize computes treatment setpoints for supplied scores.
func (g *GRPCService) Optimize(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if g.service == nil {
		return nil, status.Error(codes.FailedPrecondition, "treatment service not configured")
	}
	domainReq, err := api.FromStructOptimizationRequest(req)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	result, err := g.service.Optimize(ctx, domainReq)
	if err != nil {
		return nil, g.toStatus("optimize", err)
	}
	return g.encode(result)
}

// ListModels describes the loaded artifacts.
func (g *GRPCService) ListModels(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	if g.service == nil {
		return nil, status.Error(codes.FailedPrecondition, "treatment service not configured")
	}
	infos, err := g.service.Models(ctx)
	if err != nil {
		return nil, g.toStatus("list models", err)
	}
	return g.encode(map[string]any{"models": infos, "count": len(infos)})
}

// ReloadModels rebuilds the registry from disk.
func (g *GRPCService) ReloadModels(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	if g.service == nil {
		return nil, status.Error(codes.FailedPrecondition, "treatment service not configured")
	}
	summary, err := g.service.Reload(ctx)
	if err != nil {
		return nil, g.toStatus("reload models", err)
	}
	return g.encode(summary)
}

func (g *GRPCService) encode(v any) (*structpb.Struct, error) {
	out, err := api.ToStruct(v)
	if err != nil {
		g.logger.Error("encode grpc response failed", slog.Any("error", err))
		return nil, status.Error(codes.Internal, "failed to encode response")
	}
	return out, nil
}

func (g *GRPCService) toStatus(op string, err error) error {
	switch {
	case IsNotFound(err):
		return status.Error(codes.NotFound, err.Error())
	case IsClientError(err):
		return status.Error(codes.InvalidArgument, err.Error())
	case IsUnavailable(err):
		return status.Error(codes.FailedPrecondition, err.Error())
	}
	g.logger.Error(op+" failed", slog.Any("error", err))
	return status.Error(codes.Internal, op+" failed: "+utils.Summarize(err, utils.MaxErrorSummary))
}
