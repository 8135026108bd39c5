package services

import (
	"context"
	"errors"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/miradorstack/water-ai/internal/api"
	"github.com/miradorstack/water-ai/internal/config"
)

func newGRPCClient(t *testing.T, svc *GRPCService) (*api.TreatmentClient, *grpc.ClientConn) {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	server := api.NewServerWithListener(config.ServerConfig{GracefulTimeout: time.Second}, lis, svc)
	go func() { _ = server.Start() }()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		server.Shutdown(ctx)
	})

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return api.NewTreatmentClient(conn), conn
}

func TestGRPCPredictRoundTrip(t *testing.T) {
	f := newServiceFixture(t)
	client, _ := newGRPCClient(t, NewGRPCService(quietLogger(), f.service))

	req, err := structpb.NewStruct(map[string]any{
		"features":       map[string]any{"bod": 300.0, "cod": 500.0},
		"target_quality": "industrial",
	})
	require.NoError(t, err)

	resp, err := client.Predict(context.Background(), req)
	require.NoError(t, err)
	prediction := resp.Fields["prediction"].GetStructValue()
	require.NotNil(t, prediction)
	assert.Equal(t, "dataset4", prediction.Fields["model_name"].GetStringValue())
	assert.NotEmpty(t, resp.Fields["prediction_id"].GetStringValue())
	assert.NotNil(t, resp.Fields["optimization"].GetStructValue())
}

func TestGRPCStatusMapping(t *testing.T) {
	f := newServiceFixture(t)
	client, _ := newGRPCClient(t, NewGRPCService(quietLogger(), f.service))
	ctx := context.Background()

	empty, err := structpb.NewStruct(map[string]any{"features": map[string]any{}})
	require.NoError(t, err)
	_, err = client.Predict(ctx, empty)
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	unknown, err := structpb.NewStruct(map[string]any{"features": map[string]any{"ph": 7.0}, "model_name": "dataset9"})
	require.NoError(t, err)
	_, err = client.Predict(ctx, unknown)
	assert.Equal(t, codes.NotFound, status.Code(err))

	badTier, err := structpb.NewStruct(map[string]any{"quality_score": 80.0, "target_quality": "pool"})
	require.NoError(t, err)
	_, err = client.Optimize(ctx, badTier)
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestGRPCModelsAndReload(t *testing.T) {
	f := newServiceFixture(t)
	client, conn := newGRPCClient(t, NewGRPCService(quietLogger(), f.service))
	ctx := context.Background()

	listed, err := client.ListModels(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 2.0, listed.Fields["count"].GetNumberValue())

	reloaded, err := client.ReloadModels(ctx, &structpb.Struct{})
	require.NoError(t, err)
	assert.Len(t, reloaded.Fields["models"].GetListValue().GetValues(), 2)

	health, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{Service: api.ServiceName})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, health.Status)
}

func TestToStatusInternalIsSummarised(t *testing.T) {
	g := NewGRPCService(quietLogger(), nil)
	err := g.toStatus("predict", errors.New(strings.Repeat("x", 500)))
	assert.Equal(t, codes.Internal, status.Code(err))
	assert.LessOrEqual(t, len(status.Convert(err).Message()), len("predict failed: ")+203)

	_, err = g.Predict(context.Background(), &structpb.Struct{})
	assert.Equal(t, codes.FailedPrecondition, status.Code(err))
}
