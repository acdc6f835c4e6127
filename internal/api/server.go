// Package api hosts the dashboard: the HTTP handler plus a gRPC endpoint
// reporting serving status through the standard health protocol.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"statarb/internal/util"
)

// ShutdownTimeout bounds the graceful HTTP shutdown.
const ShutdownTimeout = 5 * time.Second

// Server is the main API server that hosts HTTP and gRPC endpoints.
type Server struct {
	httpAddr string
	grpcAddr string
	handler  http.Handler
	health   *health.Server
	log      *slog.Logger
}

// NewServer creates a Server serving handler on httpAddr and the health
// service on grpcAddr.
func NewServer(httpAddr, grpcAddr string, handler http.Handler, log *slog.Logger) *Server {
	return &Server{
		httpAddr: httpAddr,
		grpcAddr: grpcAddr,
		handler:  handler,
		health:   health.NewServer(),
		log:      util.OrDefault(log),
	}
}

// Health returns the health service, for in-process checks.
func (s *Server) Health() *health.Server { return s.health }

// ListenAndServe starts the HTTP and gRPC listeners and blocks until the
// context is cancelled or a fatal error occurs.
func (s *Server) ListenAndServe(ctx context.Context) error {
	httpLn, err := net.Listen("tcp", s.httpAddr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.httpAddr, err)
	}
	grpcLn, err := net.Listen("tcp", s.grpcAddr)
	if err != nil {
		httpLn.Close()
		return fmt.Errorf("listening on %s: %w", s.grpcAddr, err)
	}
	return s.Serve(ctx, httpLn, grpcLn)
}

// Serve runs both servers on the given listeners until ctx is done, then
// marks the health service NOT_SERVING and shuts both down gracefully.
func (s *Server) Serve(ctx context.Context, httpLn, grpcLn net.Listener) error {
	httpSrv := &http.Server{Handler: s.handler, ReadHeaderTimeout: 10 * time.Second}
	grpcSrv := newGRPCServer(s.health)
	markServing(s.health, healthpb.HealthCheckResponse_SERVING)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.log.Info("http server listening", "addr", httpLn.Addr().String())
		if err := httpSrv.Serve(httpLn); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		s.log.Info("grpc server listening", "addr", grpcLn.Addr().String())
		if err := grpcSrv.Serve(grpcLn); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return fmt.Errorf("grpc server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		s.log.Info("shutting down")
		s.health.Shutdown()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		err := httpSrv.Shutdown(shutdownCtx)
		grpcSrv.GracefulStop()
		return err
	})
	return g.Wait()
}
