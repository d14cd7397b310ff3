// Package api exposes the bridge over HTTP: snapshots for dashboards,
// one-shot command pulls for the flight-mode loop, vehicle state input and
// operator requests to Planck.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/signalsfoundry/planck-bridge/internal/bridge"
	"github.com/signalsfoundry/planck-bridge/internal/logging"
	"github.com/signalsfoundry/planck-bridge/internal/vehicle"
	"github.com/signalsfoundry/planck-bridge/model"
	"github.com/signalsfoundry/planck-bridge/timectrl"
)

// Requester sends operator requests to Planck. *bridge.Emitter implements it.
type Requester interface {
	RequestTakeoff(ctx context.Context, altM float32) error
	RequestAltChange(ctx context.Context, altM float32, rateUpCms, rateDownCms float64) error
	RequestRTB(ctx context.Context, altM, rateUp, rateDown, rateXY float32) error
	RequestLand(ctx context.Context, descentRate float32) error
	RequestMoveTarget(ctx context.Context, offsetNED model.Vector3, isRate bool, rateUpCms, rateDownCms float64) error
	StopCommanding(ctx context.Context) error
}

// Server holds the HTTP handlers.
type Server struct {
	bridge    *bridge.Bridge
	vehicle   *vehicle.State
	requester Requester
	metrics   http.Handler
	secret    []byte
	clock     timectrl.Clock
	log       logging.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithRequester enables the /v1/requests routes.
func WithRequester(r Requester) Option {
	return func(s *Server) { s.requester = r }
}

// WithMetricsHandler serves h on /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) { s.metrics = h }
}

// WithJWTSecret requires an HS256 bearer token on mutating routes.
func WithJWTSecret(secret string) Option {
	return func(s *Server) {
		if secret != "" {
			s.secret = []byte(secret)
		}
	}
}

// WithClock overrides the clock used to stamp vehicle updates.
func WithClock(c timectrl.Clock) Option {
	return func(s *Server) {
		if c != nil {
			s.clock = c
		}
	}
}

// NewServer returns a Server over b. The vehicle state is optional; without
// it PUT /v1/vehicle is not routed.
func NewServer(b *bridge.Bridge, v *vehicle.State, log logging.Logger, opts ...Option) *Server {
	if log == nil {
		log = logging.Noop()
	}
	s := &Server{
		bridge:  b,
		vehicle: v,
		clock:   timectrl.System{},
		log:     log.With(logging.String("component", "http")),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler builds the gin router.
func (s *Server) Handler() http.Handler {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(s.log))

	router.GET("/healthz", s.healthz)
	if s.metrics != nil {
		router.GET("/metrics", gin.WrapH(s.metrics))
	}

	v1 := router.Group("/v1")
	{
		v1.GET("/snapshot", s.getSnapshot)
		v1.GET("/status", s.getStatus)
		v1.GET("/tether", s.getTether)
		v1.GET("/tag", s.getTag)
		v1.GET("/command", s.getCommand)
	}

	mut := router.Group("/v1")
	if s.secret != nil {
		mut.Use(bearerAuth(s.secret))
	}
	{
		mut.POST("/commands/:kind/take", s.takeCommand)
		mut.POST("/overrides/:kind", s.overrideCommand)
		mut.POST("/status/arrival", s.consumeArrival)
		if s.vehicle != nil {
			mut.PUT("/vehicle", s.putVehicle)
		}
		if s.requester != nil {
			req := mut.Group("/requests")
			req.POST("/takeoff", s.requestTakeoff)
			req.POST("/alt-change", s.requestAltChange)
			req.POST("/rtb", s.requestRTB)
			req.POST("/land", s.requestLand)
			req.POST("/move-target", s.requestMoveTarget)
			req.POST("/stop", s.requestStop)
		}
	}
	return router
}

func requestLogger(base logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		if id := c.GetHeader("X-Request-ID"); id != "" {
			ctx = logging.ContextWithRequestID(ctx, id)
		}
		ctx, reqLog := logging.WithRequestLogger(ctx, base)
		ctx = logging.ContextWithLogger(ctx, reqLog)
		c.Request = c.Request.WithContext(ctx)
		c.Header("X-Request-ID", logging.RequestIDFromContext(ctx))

		start := time.Now()
		c.Next()

		reqLog.Debug(ctx, "request completed",
			logging.String("method", c.Request.Method),
			logging.String("path", c.FullPath()),
			logging.Int("status", c.Writer.Status()),
			logging.Duration("latency", time.Since(start)),
		)
	}
}
