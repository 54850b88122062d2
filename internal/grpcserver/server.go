// Package grpcserver implements the RecommendationService gRPC server.
//
// It delegates all business logic to the recommendation engine and handles
// only the gRPC transport concerns: metadata extraction, error mapping,
// and conversion between the result and protobuf messages.
package grpcserver

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/NeoCraftTeam/ImmoApp-Backend-sub001/internal/recommend"
)

// Recommender computes a user's recommendations.
type Recommender interface {
	Recommend(ctx context.Context, userID int64) (*recommend.Result, error)
}

// Server implements RecommendationServiceServer.
type Server struct {
	engine Recommender
	logger zerolog.Logger
}

// NewServer constructs a gRPC Server backed by the given engine.
func NewServer(engine Recommender, logger zerolog.Logger) *Server {
	return &Server{engine: engine, logger: logger.With().Str("component", "grpcserver").Logger()}
}

// New returns a grpc.Server with the recommendation and health services
// registered and request logging installed.
func New(srv *Server, opts ...grpc.ServerOption) *grpc.Server {
	opts = append(opts, grpc.ChainUnaryInterceptor(loggingInterceptor(srv.logger)))
	gs := grpc.NewServer(opts...)
	gs.RegisterService(&ServiceDesc, srv)

	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(gs, hs)
	return gs
}

// ─── RPC implementations ──────────────────────────────────────────────────────

// GetRecommendations returns the caller's recommendations. The request body
// is ignored; the user comes from x-user-id metadata.
func (s *Server) GetRecommendations(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	userID, err := userIDFromCtx(ctx)
	if err != nil {
		return nil, err
	}

	res, err := s.engine.Recommend(ctx, userID)
	if err != nil {
		return nil, toGRPCError(err)
	}

	out, err := resultToProto(res)
	if err != nil {
		s.logger.Error().Err(err).Msg("encode result")
		return nil, status.Error(codes.Internal, "internal server error")
	}
	return out, nil
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

// userIDFromCtx extracts the x-user-id value forwarded by the Gateway
// via gRPC metadata.
func userIDFromCtx(ctx context.Context) (int64, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return 0, status.Error(codes.Unauthenticated, "missing metadata")
	}
	vals := md.Get("x-user-id")
	if len(vals) == 0 || vals[0] == "" {
		return 0, status.Error(codes.Unauthenticated, "missing x-user-id metadata")
	}
	id, err := strconv.ParseInt(vals[0], 10, 64)
	if err != nil || id <= 0 {
		return 0, status.Error(codes.InvalidArgument, "invalid x-user-id metadata")
	}
	return id, nil
}

// toGRPCError maps domain errors to gRPC status errors.
func toGRPCError(err error) error {
	switch {
	case errors.Is(err, recommend.ErrDataUnavailable):
		return status.Error(codes.Unavailable, "recommendations temporarily unavailable")
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, "deadline exceeded")
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, "request canceled")
	}
	return status.Error(codes.Internal, "internal server error")
}

// resultToProto converts a result to its Struct representation.
func resultToProto(res *recommend.Result) (*structpb.Struct, error) {
	items := make([]any, 0, len(res.Items))
	for _, it := range res.Items {
		items = append(items, map[string]any{
			"ad_id":  strconv.FormatInt(it.AdID, 10),
			"score":  it.Score,
			"reason": it.Reason,
		})
	}

	m := res.Meta
	meta := map[string]any{
		"source":       m.Source,
		"algorithm":    m.Algorithm,
		"request_id":   m.RequestID,
		"generated_at": m.GeneratedAt.UTC().Format(time.RFC3339Nano),
	}
	counts := map[string]int{
		"profile_signals":   m.ProfileSignals,
		"candidates_scored": m.CandidatesScored,
		"main_count":        m.MainCount,
		"diversity_count":   m.DiversityCount,
		"trending_count":    m.TrendingCount,
		"boosted_count":     m.BoostedCount,
		"latest_count":      m.LatestCount,
	}
	for k, v := range counts {
		if v != 0 {
			meta[k] = v
		}
	}

	return structpb.NewStruct(map[string]any{"items": items, "meta": meta})
}

func loggingInterceptor(logger zerolog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		ev := logger.Debug()
		if err != nil {
			ev = logger.Warn().Err(err)
		}
		ev.Str("method", info.FullMethod).
			Str("code", status.Code(err).String()).
			Dur("elapsed", time.Since(start)).
			Msg("grpc call")
		return resp, err
	}
}
