package observability

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/signalsfoundry/planck-bridge/model"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

// Pull results recorded by ObservePull.
const (
	PullOK       = "ok"
	PullEmpty    = "empty"
	PullMismatch = "mismatch"
)

// BridgeCollector bundles Prometheus metrics for the Planck bridge: inbound
// traffic, command delivery, tether health, outbound requests and the gRPC
// inspection surface.
type BridgeCollector struct {
	gatherer prometheus.Gatherer

	Messages     *prometheus.CounterVec
	Commands     *prometheus.CounterVec
	Pulls        *prometheus.CounterVec
	LinkFrames   *prometheus.CounterVec
	Requests     *prometheus.CounterVec
	RPCRequests  *prometheus.CounterVec
	RPCDurations *prometheus.HistogramVec

	TetherHighTension   prometheus.Gauge
	TetherCommsTimedOut prometheus.Gauge
	TetherTimeoutActive prometheus.Gauge
	TetherTimeouts      prometheus.Counter
	TetherCableOut      prometheus.Gauge
	TetherTension       prometheus.Gauge
	TetherSpoolState    prometheus.Gauge
}

// NewBridgeCollector registers bridge metrics against the provided
// registerer, defaulting to the global Prometheus registry when nil.
func NewBridgeCollector(reg prometheus.Registerer) (*BridgeCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	c := &BridgeCollector{gatherer: gatherer}
	var err error

	counters := []struct {
		dst    **prometheus.CounterVec
		name   string
		help   string
		labels []string
	}{
		{&c.Messages, "planck_messages_total", "Inbound Planck messages handled, labeled by message type.", []string{"type"}},
		{&c.Commands, "planck_commands_total", "Decoded tracker commands, labeled by classified kind.", []string{"kind"}},
		{&c.Pulls, "planck_command_pulls_total", "Command pull attempts, labeled by requested kind and result.", []string{"kind", "result"}},
		{&c.LinkFrames, "planck_link_frames_total", "Datagrams read from the Planck link, labeled by decode result.", []string{"result"}},
		{&c.Requests, "planck_requests_total", "Outbound requests to Planck, labeled by request type and result.", []string{"type", "result"}},
		{&c.RPCRequests, "inspect_requests_total", "Total number of handled inspection RPCs, labeled by service, method, and gRPC status code.", []string{"service", "method", "code"}},
	}
	for _, cv := range counters {
		vec := prometheus.NewCounterVec(prometheus.CounterOpts{Name: cv.name, Help: cv.help}, cv.labels)
		if *cv.dst, err = registerCounterVec(reg, vec, cv.name); err != nil {
			return nil, err
		}
	}

	durations := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "inspect_request_duration_seconds",
		Help:    "Inspection RPC latency in seconds.",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	}, []string{"service", "method"})
	if c.RPCDurations, err = registerHistogramVec(reg, durations, "inspect_request_duration_seconds"); err != nil {
		return nil, err
	}

	gauges := []struct {
		dst  *prometheus.Gauge
		name string
		help string
	}{
		{&c.TetherHighTension, "tether_high_tension", "1 while the deck reports a locked spool under high tension."},
		{&c.TetherCommsTimedOut, "tether_comms_timed_out", "1 while no deck telemetry has arrived within the comms timeout."},
		{&c.TetherTimeoutActive, "tether_high_tension_timeout", "1 while the high-tension timeout is firing."},
		{&c.TetherCableOut, "tether_cable_out_meters", "Cable paid out as last reported by the deck."},
		{&c.TetherTension, "tether_tension", "Raw cable tension reading as last reported by the deck."},
		{&c.TetherSpoolState, "tether_spool_state", "Spool state enumeration as last reported by the deck."},
	}
	for _, g := range gauges {
		gauge := prometheus.NewGauge(prometheus.GaugeOpts{Name: g.name, Help: g.help})
		if *g.dst, err = registerGauge(reg, gauge, g.name); err != nil {
			return nil, err
		}
	}

	timeouts := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tether_high_tension_timeouts_total",
		Help: "Number of distinct high-tension timeout failures.",
	})
	if c.TetherTimeouts, err = registerCounter(reg, timeouts, "tether_high_tension_timeouts_total"); err != nil {
		return nil, err
	}

	return c, nil
}

// Gatherer returns the Prometheus gatherer associated with the collector.
func (c *BridgeCollector) Gatherer() prometheus.Gatherer {
	if c == nil {
		return nil
	}
	return c.gatherer
}

// Handler exposes a ready-to-use /metrics handler.
func (c *BridgeCollector) Handler() http.Handler {
	gatherer := c.Gatherer()
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// ObserveMessage counts one handled inbound message.
func (c *BridgeCollector) ObserveMessage(id model.MessageID) {
	if c == nil || c.Messages == nil {
		return
	}
	c.Messages.WithLabelValues(id.String()).Inc()
}

// ObserveCommand counts one decoded command by kind.
func (c *BridgeCollector) ObserveCommand(kind model.CommandKind) {
	if c == nil || c.Commands == nil {
		return
	}
	c.Commands.WithLabelValues(kind.String()).Inc()
}

// ObservePull counts one pull attempt.
func (c *BridgeCollector) ObservePull(kind model.CommandKind, result string) {
	if c == nil || c.Pulls == nil {
		return
	}
	c.Pulls.WithLabelValues(kind.String(), result).Inc()
}

// ObserveFrame counts one link datagram; err is the decode error, if any.
func (c *BridgeCollector) ObserveFrame(err error) {
	if c == nil || c.LinkFrames == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	c.LinkFrames.WithLabelValues(result).Inc()
}

// ObserveRequest counts one outbound request.
func (c *BridgeCollector) ObserveRequest(t model.RequestType, err error) {
	if c == nil || c.Requests == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	c.Requests.WithLabelValues(t.String(), result).Inc()
}

// SetTether mirrors the tether status into gauges.
func (c *BridgeCollector) SetTether(st model.TetherStatus) {
	if c == nil {
		return
	}
	setBool(c.TetherHighTension, st.HighTension)
	setBool(c.TetherCommsTimedOut, st.CommsTimedOut)
	if c.TetherCableOut != nil {
		c.TetherCableOut.Set(st.CableOutM)
	}
	if c.TetherTension != nil {
		c.TetherTension.Set(float64(st.Tension))
	}
	if c.TetherSpoolState != nil {
		c.TetherSpoolState.Set(float64(st.SpoolState))
	}
}

// ObserveTetherTimeout records the result of one timeout check. newFailure
// is true only on the check that first reported a sustained failure.
func (c *BridgeCollector) ObserveTetherTimeout(timedOut, newFailure bool) {
	if c == nil {
		return
	}
	setBool(c.TetherTimeoutActive, timedOut)
	if newFailure && c.TetherTimeouts != nil {
		c.TetherTimeouts.Inc()
	}
}

// UnaryServerInterceptor records request counts and durations for unary RPCs.
func (c *BridgeCollector) UnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)

		if c == nil {
			return resp, err
		}

		fullMethod := ""
		if info != nil {
			fullMethod = info.FullMethod
		}
		service, method := SplitMethod(fullMethod)
		code := status.Code(err).String()

		if c.RPCRequests != nil {
			c.RPCRequests.WithLabelValues(service, method, code).Inc()
		}
		if c.RPCDurations != nil {
			c.RPCDurations.WithLabelValues(service, method).Observe(time.Since(start).Seconds())
		}

		return resp, err
	}
}

// SplitMethod parses a fully-qualified gRPC method name into service and method
// components. It tolerates empty strings and partial paths, returning
// "unknown"/"unknown" when parsing fails.
func SplitMethod(fullMethod string) (string, string) {
	if fullMethod == "" {
		return "unknown", "unknown"
	}
	fullMethod = strings.TrimPrefix(fullMethod, "/")
	parts := strings.Split(fullMethod, "/")
	if len(parts) < 2 {
		return "unknown", "unknown"
	}
	service := parts[len(parts)-2]
	method := parts[len(parts)-1]
	if dot := strings.LastIndex(service, "."); dot >= 0 && dot+1 < len(service) {
		service = service[dot+1:]
	}
	if service == "" {
		service = "unknown"
	}
	if method == "" {
		method = "unknown"
	}
	return service, method
}

func setBool(g prometheus.Gauge, v bool) {
	if g == nil {
		return
	}
	if v {
		g.Set(1)
		return
	}
	g.Set(0)
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogramVec(reg prometheus.Registerer, vec *prometheus.HistogramVec, name string) (*prometheus.HistogramVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.HistogramVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return counter, nil
}
