package main

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/signalsfoundry/planck-bridge/internal/config"
	"github.com/signalsfoundry/planck-bridge/internal/logging"
)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Link.ListenAddr = "127.0.0.1:0"
	cfg.HTTP.Addr = "127.0.0.1:0"
	cfg.GRPC.Addr = "127.0.0.1:0"
	cfg.Tether.PollInterval = 10 * time.Millisecond
	return cfg
}

func TestRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- run(ctx, testConfig(), logging.Noop(), prometheus.NewRegistry()) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatalf("run did not return after cancellation")
	}
}

func TestRunFailsOnBadLinkAddress(t *testing.T) {
	cfg := testConfig()
	cfg.Link.ListenAddr = "256.0.0.1:99999"

	if err := run(context.Background(), cfg, logging.Noop(), prometheus.NewRegistry()); err == nil {
		t.Fatalf("expected an error for an unusable link address")
	}
}

func TestRunRejectsBadKafkaConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Kafka.Enabled = true

	if err := run(context.Background(), cfg, logging.Noop(), prometheus.NewRegistry()); err == nil {
		t.Fatalf("expected an error for kafka without brokers")
	}
}
