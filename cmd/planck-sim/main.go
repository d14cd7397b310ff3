// Command planck-sim plays the Planck controller against a running bridge for
// bench testing: it streams status, command, tag and tether frames and logs
// the requests the bridge sends back.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"time"

	"github.com/signalsfoundry/planck-bridge/internal/bridge"
	"github.com/signalsfoundry/planck-bridge/internal/link"
	"github.com/signalsfoundry/planck-bridge/internal/logging"
	"github.com/signalsfoundry/planck-bridge/internal/sim/planck"
	"github.com/signalsfoundry/planck-bridge/model"
	"github.com/signalsfoundry/planck-bridge/timectrl"
)

func main() {
	bridgeAddr := flag.String("bridge", "127.0.0.1:14560", "UDP address of the bridge")
	systemID := flag.Uint("system", 1, "MAVLink system id to send as")
	componentID := flag.Uint("component", uint(bridge.DefaultPlanckComponentID), "MAVLink component id to send as")
	tick := flag.Duration("tick", 100*time.Millisecond, "interval between telemetry bursts")
	duration := flag.Duration("duration", 60*time.Second, "total run time, 0 runs until interrupted")
	scenarioName := flag.String("scenario", string(planck.ScenarioHover), "hover, high-tension or comms-loss")
	flag.Parse()

	log := logging.NewFromEnv()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if *duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *duration)
		defer cancel()
	}

	scenario, err := planck.ParseScenario(*scenarioName)
	if err != nil {
		log.Error(ctx, "invalid scenario", logging.Err(err))
		os.Exit(2)
	}
	if *systemID == 0 || *systemID > 255 || *componentID == 0 || *componentID > 255 {
		log.Error(ctx, "system and component ids must be in 1..255")
		os.Exit(2)
	}
	conn, err := link.Listen("", *bridgeAddr, log, link.WithIdentity(link.Identity{
		SystemID:    uint8(*systemID),
		ComponentID: uint8(*componentID),
	}))
	if err != nil {
		log.Error(ctx, "failed to open link", logging.Err(err))
		os.Exit(1)
	}
	defer conn.Close()

	sim := planck.New(scenario)

	served := make(chan struct{})
	go func() {
		defer close(served)
		err := conn.Serve(ctx, link.HandlerFunc(func(ctx context.Context, msg model.Message) {
			req, ok := msg.(model.Request)
			if !ok {
				return
			}
			sim.OnRequest(req)
			log.Info(ctx, "request from bridge",
				logging.String("type", req.Type.String()),
				logging.Any("params", req.Params),
				logging.Bool("has_rates", req.HasRates),
			)
		}))
		if err != nil {
			log.Warn(ctx, "link reader exited", logging.Err(err))
		}
	}()

	poller := timectrl.NewPoller(*tick, nil)
	poller.AddListener(func(ctx context.Context, _ time.Time) {
		for _, msg := range sim.Step() {
			if err := conn.SendMessage(ctx, msg); err != nil && ctx.Err() == nil {
				log.Warn(ctx, "send failed", logging.String("message", msg.ID().String()), logging.Err(err))
			}
		}
	})

	log.Info(ctx, "planck simulator running",
		logging.String("scenario", string(scenario)),
		logging.String("bridge", *bridgeAddr),
	)
	<-poller.Start(ctx)
	<-served
	log.Info(context.Background(), "planck simulator stopped")
}
