// Package handler implements the standard grpc.health.v1 Health service for the auth server.
// Readiness reflects the database, the code store and the login policy.
package handler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

const probeTimeout = 2 * time.Second

// Pinger checks a backing store (e.g. *sql.DB).
type Pinger interface {
	PingContext(ctx context.Context) error
}

// PingerFunc adapts a function to Pinger (e.g. a Redis PING).
type PingerFunc func(ctx context.Context) error

func (f PingerFunc) PingContext(ctx context.Context) error { return f(ctx) }

// Pingers checks every pinger in order and fails on the first error.
type Pingers []Pinger

func (ps Pingers) PingContext(ctx context.Context) error {
	for _, p := range ps {
		if p == nil {
			continue
		}
		if err := p.PingContext(ctx); err != nil {
			return err
		}
	}
	return nil
}

// PolicyChecker verifies the login policy can be evaluated.
type PolicyChecker interface {
	HealthCheck(ctx context.Context) error
}

// Server answers Check and Watch from the embedded health.Server. Check re-probes dependencies
// first so its answer is never stale; Run keeps Watch subscribers current between checks.
type Server struct {
	*health.Server
	pinger   Pinger
	policy   PolicyChecker
	services []string
}

// NewServer returns a Health server. services are the service names reported alongside
// the overall ("") status. Nil pinger or policy are skipped.
func NewServer(pinger Pinger, policy PolicyChecker, services ...string) *Server {
	return &Server{
		Server:   health.NewServer(),
		pinger:   pinger,
		policy:   policy,
		services: services,
	}
}

// Check probes dependencies, updates the serving status and answers for req's service.
func (s *Server) Check(ctx context.Context, req *healthpb.HealthCheckRequest) (*healthpb.HealthCheckResponse, error) {
	s.refresh(ctx)
	return s.Server.Check(ctx, req)
}

// Probe returns nil when every dependency is healthy.
func (s *Server) Probe(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	var errs []error
	if s.pinger != nil {
		if err := s.pinger.PingContext(ctx); err != nil {
			errs = append(errs, fmt.Errorf("store: %w", err))
		}
	}
	if s.policy != nil {
		if err := s.policy.HealthCheck(ctx); err != nil {
			errs = append(errs, fmt.Errorf("policy: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Run re-probes every interval until ctx is done.
func (s *Server) Run(ctx context.Context, interval time.Duration) {
	s.refresh(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.refresh(ctx)
		}
	}
}

func (s *Server) refresh(ctx context.Context) {
	st := healthpb.HealthCheckResponse_SERVING
	if err := s.Probe(ctx); err != nil {
		log.Warn().Err(err).Msg("health: not serving")
		st = healthpb.HealthCheckResponse_NOT_SERVING
	}
	s.SetServingStatus("", st)
	for _, name := range s.services {
		s.SetServingStatus(name, st)
	}
}
