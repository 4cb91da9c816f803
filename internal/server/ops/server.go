// Package ops serves the operational gRPC endpoint: health checks and, in
// development, server reflection.
package ops

import (
	"context"
	"net"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// ServiceName is the health-check service name of the document API.
const ServiceName = "dockeeper.v1.API"

// Options configures the ops server.
type Options struct {
	// Creds enables TLS when non-nil.
	Creds credentials.TransportCredentials
	// Reflection registers the reflection service (dev only).
	Reflection bool
}

// Server wraps a gRPC server exposing grpc.health.v1.Health.
type Server struct {
	gs     *grpc.Server
	health *health.Server
	log    *zap.Logger
}

// New builds the ops server. Both the overall and the API status start NOT_SERVING.
func New(log *zap.Logger, opt Options) *Server {
	opts := []grpc.ServerOption{
		grpc.ChainUnaryInterceptor(
			RecoverUnary(log),
			LoggingUnary(log),
		),
		grpc.ChainStreamInterceptor(LoggingStream(log)),
	}
	if opt.Creds != nil {
		opts = append(opts, grpc.Creds(opt.Creds))
	}
	gs := grpc.NewServer(opts...)

	hs := health.NewServer()
	healthpb.RegisterHealthServer(gs, hs)
	if opt.Reflection {
		reflection.Register(gs)
	}
	s := &Server{gs: gs, health: hs, log: log}
	s.SetServing(false)
	return s
}

// SetServing flips both health statuses.
func (s *Server) SetServing(ok bool) {
	st := healthpb.HealthCheckResponse_NOT_SERVING
	if ok {
		st = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", st)
	s.health.SetServingStatus(ServiceName, st)
}

// Watch probes check every interval until ctx ends and mirrors the result
// into the health status. The first probe runs immediately.
func (s *Server) Watch(ctx context.Context, interval time.Duration, check func(context.Context) error) {
	t := time.NewTicker(interval)
	defer t.Stop()
	last := -1
	for {
		pctx, cancel := context.WithTimeout(ctx, interval)
		err := check(pctx)
		cancel()
		now := 0
		if err == nil {
			now = 1
		}
		if now != last {
			if err != nil {
				s.log.Warn("readiness check failing", zap.Error(err))
			} else {
				s.log.Info("readiness check passing")
			}
			s.SetServing(err == nil)
			last = now
		}
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}

// Serve blocks serving lis.
func (s *Server) Serve(lis net.Listener) error { return s.gs.Serve(lis) }

// Stop shuts down gracefully, forcing after timeout.
func (s *Server) Stop(timeout time.Duration) {
	s.health.Shutdown()
	done := make(chan struct{})
	go func() {
		s.gs.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
		s.gs.Stop()
		<-done
	}
}
