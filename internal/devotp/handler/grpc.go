// Package handler implements the dev-only gRPC DevService (GetDevOtp).
package handler

import (
	"context"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	devv1 "ridehail-identity/api/dev/v1"
	"ridehail-identity/internal/devotp"
	"ridehail-identity/internal/identity/domain"
)

const devOTPNote = "DEV MODE ONLY"

// Server implements DevService. Only registered when dev OTP is enabled and not production.
type Server struct {
	devv1.UnimplementedDevServiceServer
	store devotp.Store
}

// NewServer returns a DevService server that reads codes from the given store.
func NewServer(store devotp.Store) *Server {
	return &Server{store: store}
}

// GetDevOtp returns the last code delivered to target. Returns NotFound if missing or expired.
func (s *Server) GetDevOtp(ctx context.Context, req *devv1.GetDevOtpRequest) (*devv1.GetDevOtpResponse, error) {
	if req.GetTarget() == "" {
		return nil, status.Error(codes.InvalidArgument, "target is required")
	}
	target, err := domain.NormalizePhone(req.GetTarget())
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	code, ok := s.store.Get(ctx, target)
	if !ok {
		return nil, status.Error(codes.NotFound, "code not found or expired")
	}
	return &devv1.GetDevOtpResponse{Code: code, Note: devOTPNote}, nil
}
