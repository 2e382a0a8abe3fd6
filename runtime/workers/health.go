package workers

import (
	"context"
	"errors"
	"fmt"
	"hidden-talk/contract"
	"log/slog"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the gRPC health service name reported next to the overall "" status.
const ServiceName = "hidden-talk"

// HealthWorker serves the standard gRPC health protocol and flips it between
// SERVING and NOT_SERVING with a periodic store ping.
// It probes infrastructure only, room expiration stays with the store.
type HealthWorker struct {
	log      *slog.Logger
	address  string
	store    contract.KeyedStore
	interval time.Duration
	health   *health.Server
}

func NewHealthWorker(log *slog.Logger, address string, store contract.KeyedStore, interval time.Duration) *HealthWorker {
	return &HealthWorker{
		log:      log,
		address:  address,
		store:    store,
		interval: interval,
		health:   health.NewServer(),
	}
}

func (w *HealthWorker) Run(ctx context.Context) error {
	listener, err := net.Listen("tcp", w.address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", w.address, err)
	}
	return w.Serve(ctx, listener)
}

// Serve runs on an existing listener until ctx is done.
func (w *HealthWorker) Serve(ctx context.Context, listener net.Listener) error {
	server := grpc.NewServer()
	grpc_health_v1.RegisterHealthServer(server, w.health)
	w.probe(ctx)

	serveErr := make(chan error, 1)
	go func() {
		w.log.Info("Starting gRPC health server", "address", listener.Addr().String())
		serveErr <- server.Serve(listener)
	}()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			w.health.Shutdown()
			server.GracefulStop()
			return nil
		case err := <-serveErr:
			if err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				return fmt.Errorf("gRPC health server error: %w", err)
			}
			return nil
		case <-ticker.C:
			w.probe(ctx)
		}
	}
}

func (w *HealthWorker) probe(ctx context.Context) {
	pingCtx, cancel := context.WithTimeout(ctx, w.interval)
	defer cancel()

	status := grpc_health_v1.HealthCheckResponse_SERVING
	if err := w.store.Ping(pingCtx); err != nil {
		w.log.Error("Store ping failed", "error", err)
		status = grpc_health_v1.HealthCheckResponse_NOT_SERVING
	}
	w.health.SetServingStatus("", status)
	w.health.SetServingStatus(ServiceName, status)
}
