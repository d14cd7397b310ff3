// Command planck-bridge connects a Planck tracking controller to the vehicle:
// it reads Planck telemetry and commands over UDP, watches the deck tether and
// serves the bridge state over HTTP and gRPC.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/signalsfoundry/planck-bridge/internal/api"
	"github.com/signalsfoundry/planck-bridge/internal/bridge"
	"github.com/signalsfoundry/planck-bridge/internal/config"
	"github.com/signalsfoundry/planck-bridge/internal/inspect"
	"github.com/signalsfoundry/planck-bridge/internal/link"
	"github.com/signalsfoundry/planck-bridge/internal/logging"
	"github.com/signalsfoundry/planck-bridge/internal/observability"
	"github.com/signalsfoundry/planck-bridge/internal/sink"
	"github.com/signalsfoundry/planck-bridge/internal/vehicle"
	"github.com/signalsfoundry/planck-bridge/timectrl"
)

func main() {
	configPath := flag.String("config", "", "Path to a YAML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logging.NewFromEnv().Error(context.Background(), "failed to load configuration", logging.Err(err))
		os.Exit(1)
	}
	log := logging.New(cfg.Logging)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log, prometheus.NewRegistry()); err != nil {
		log.Error(ctx, "planck-bridge exited", logging.Err(err))
		os.Exit(1)
	}
}

// run wires the bridge and blocks until ctx is cancelled or a server fails.
func run(ctx context.Context, cfg *config.Config, log logging.Logger, reg *prometheus.Registry) error {
	shutdownTracing, err := observability.InitTracing(ctx, cfg.Tracing, log)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdownTracing, log)

	collector, err := observability.NewBridgeCollector(reg)
	if err != nil {
		return fmt.Errorf("init metrics: %w", err)
	}

	notices := sink.Fanout{sink.NewLogSink(log)}
	if cfg.Kafka.Enabled {
		ks, err := sink.NewKafkaSink(sink.KafkaConfig{
			Brokers:   cfg.Kafka.Brokers,
			Topic:     cfg.Kafka.Topic,
			QueueSize: cfg.Kafka.QueueSize,
		}, log)
		if err != nil {
			return fmt.Errorf("kafka sink: %w", err)
		}
		defer ks.Close()
		notices = append(notices, ks)
	}

	veh := vehicle.NewState()
	b := bridge.New(veh, veh, log,
		bridge.WithMetricsRecorder(collector),
		bridge.WithEventSink(notices),
		bridge.WithCommsTimeout(cfg.Tether.CommsTimeout),
	)

	conn, err := link.Listen(cfg.Link.ListenAddr, cfg.Link.PeerAddr, log,
		link.WithFrameRecorder(collector),
		link.WithIdentity(link.Identity{SystemID: cfg.Vehicle.SystemID, ComponentID: link.DefaultIdentity.ComponentID}),
	)
	if err != nil {
		return fmt.Errorf("open planck link: %w", err)
	}
	defer conn.Close()

	emitter := b.NewEmitter(conn, bridge.Target{
		System:    cfg.Vehicle.SystemID,
		Component: cfg.Vehicle.PlanckComponentID,
	})

	inspector := inspect.NewServer(b, log)
	grpcServer := inspect.NewGRPCServer(log, collector)
	inspector.Register(grpcServer)
	grpcLis, err := net.Listen("tcp", cfg.GRPC.Addr)
	if err != nil {
		return fmt.Errorf("listen grpc %q: %w", cfg.GRPC.Addr, err)
	}

	handler := api.NewServer(b, veh, log,
		api.WithRequester(emitter),
		api.WithMetricsHandler(collector.Handler()),
		api.WithJWTSecret(cfg.HTTP.JWTSecret),
	).Handler()
	httpServer := &http.Server{Handler: handler, ReadHeaderTimeout: 5 * time.Second}
	httpLis, err := net.Listen("tcp", cfg.HTTP.Addr)
	if err != nil {
		grpcLis.Close()
		return fmt.Errorf("listen http %q: %w", cfg.HTTP.Addr, err)
	}

	poller := timectrl.NewPoller(cfg.Tether.PollInterval, nil)
	poller.AddListener(func(ctx context.Context, _ time.Time) {
		timedOut := b.CheckForHighTensionTimeout(ctx, cfg.Tether.ReelSpeedCms)
		inspector.SetTetherHealth(ctx, !timedOut && !b.Tether().CommsTimedOut)
	})

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errc := make(chan error, 3)
	go func() {
		if err := conn.Serve(ctx, b); err != nil {
			errc <- fmt.Errorf("planck link: %w", err)
		}
	}()
	go func() {
		if err := grpcServer.Serve(grpcLis); err != nil {
			errc <- fmt.Errorf("grpc server: %w", err)
		}
	}()
	go func() {
		if err := httpServer.Serve(httpLis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- fmt.Errorf("http server: %w", err)
		}
	}()
	pollDone := poller.Start(ctx)

	log.Info(ctx, "planck bridge running",
		logging.String("link", cfg.Link.ListenAddr),
		logging.String("http", httpLis.Addr().String()),
		logging.String("grpc", grpcLis.Addr().String()),
	)

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errc:
	}
	cancel()

	log.Info(context.Background(), "shutting down planck bridge")
	inspector.Shutdown()
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn(shutdownCtx, "http shutdown", logging.Err(err))
	}
	grpcServer.GracefulStop()
	<-pollDone
	return runErr
}
