package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/signalsfoundry/planck-bridge/internal/bridge"
	"github.com/signalsfoundry/planck-bridge/internal/link"
	"github.com/signalsfoundry/planck-bridge/internal/logging"
	"github.com/signalsfoundry/planck-bridge/internal/vehicle"
	"github.com/signalsfoundry/planck-bridge/model"
)

func (s *Server) healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) getSnapshot(c *gin.Context) { c.JSON(http.StatusOK, s.bridge.Snapshot()) }
func (s *Server) getStatus(c *gin.Context)   { c.JSON(http.StatusOK, s.bridge.Status()) }
func (s *Server) getTether(c *gin.Context)   { c.JSON(http.StatusOK, s.bridge.Tether()) }
func (s *Server) getTag(c *gin.Context)      { c.JSON(http.StatusOK, s.bridge.TagEstimate()) }
func (s *Server) getCommand(c *gin.Context)  { c.JSON(http.StatusOK, s.bridge.Command()) }

// takeCommand pulls the pending command once. 204 means nothing new, 409
// means a command of another kind is pending and was left in place.
func (s *Server) takeCommand(c *gin.Context) {
	kind, ok := model.ParseCommandKind(c.Param("kind"))
	if !ok {
		s.errorResponse(c, nil, http.StatusBadRequest, fmt.Sprintf("unknown command kind %q", c.Param("kind")))
		return
	}

	payload, err := s.bridge.TakeCommand(c.Request.Context(), kind)
	switch {
	case errors.Is(err, bridge.ErrNoNewCommand):
		c.Status(http.StatusNoContent)
	case errors.Is(err, bridge.ErrCommandKindMismatch):
		s.errorResponse(c, err, http.StatusConflict, "pending command has a different kind")
	case err != nil:
		s.errorResponse(c, err, http.StatusInternalServerError, "take command")
	default:
		c.JSON(http.StatusOK, gin.H{"kind": kind, "command": payload})
	}
}

func (s *Server) overrideCommand(c *gin.Context) {
	ctx := c.Request.Context()
	switch c.Param("kind") {
	case "velocity":
		s.bridge.OverrideWithZeroVelocity(ctx)
	case "attitude":
		s.bridge.OverrideWithZeroAttitude(ctx)
	default:
		s.errorResponse(c, nil, http.StatusBadRequest, fmt.Sprintf("cannot override with %q", c.Param("kind")))
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) consumeArrival(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"arrived": s.bridge.ConsumeArrival()})
}

type vehicleBody struct {
	Armed          bool  `json:"armed"`
	HomeAltCm      int32 `json:"home_alt_cm"`
	AltAboveHomeCm int32 `json:"alt_above_home_cm"`
	PositionOK     bool  `json:"position_ok"`
}

func (s *Server) putVehicle(c *gin.Context) {
	var body vehicleBody
	if err := c.ShouldBindJSON(&body); err != nil {
		s.errorResponse(c, err, http.StatusBadRequest, "invalid vehicle state")
		return
	}
	snap := vehicle.Snapshot{
		Armed:          body.Armed,
		HomeAltCm:      body.HomeAltCm,
		AltAboveHomeCm: body.AltAboveHomeCm,
		PositionOK:     body.PositionOK,
		UpdatedAt:      s.clock.Now(),
	}
	s.vehicle.Update(snap)
	c.JSON(http.StatusOK, snap)
}

type takeoffBody struct {
	AltM float32 `json:"alt_m" binding:"required"`
}

type altChangeBody struct {
	AltM        float32 `json:"alt_m" binding:"required"`
	RateUpCms   float64 `json:"rate_up_cms"`
	RateDownCms float64 `json:"rate_down_cms"`
}

type rtbBody struct {
	AltM     float32 `json:"alt_m"`
	RateUp   float32 `json:"rate_up"`
	RateDown float32 `json:"rate_down"`
	RateXY   float32 `json:"rate_xy"`
}

type landBody struct {
	DescentRate float32 `json:"descent_rate"`
}

type moveTargetBody struct {
	OffsetNED   model.Vector3 `json:"offset_ned"`
	IsRate      bool          `json:"is_rate"`
	RateUpCms   float64       `json:"rate_up_cms"`
	RateDownCms float64       `json:"rate_down_cms"`
}

func (s *Server) requestTakeoff(c *gin.Context) {
	var body takeoffBody
	if !s.bind(c, &body) {
		return
	}
	s.sent(c, model.RequestTakeoff, s.requester.RequestTakeoff(c.Request.Context(), body.AltM))
}

func (s *Server) requestAltChange(c *gin.Context) {
	var body altChangeBody
	if !s.bind(c, &body) {
		return
	}
	err := s.requester.RequestAltChange(c.Request.Context(), body.AltM, body.RateUpCms, body.RateDownCms)
	s.sent(c, model.RequestMoveTarget, err)
}

func (s *Server) requestRTB(c *gin.Context) {
	var body rtbBody
	if !s.bindOptional(c, &body) {
		return
	}
	err := s.requester.RequestRTB(c.Request.Context(), body.AltM, body.RateUp, body.RateDown, body.RateXY)
	s.sent(c, model.RequestRTB, err)
}

func (s *Server) requestLand(c *gin.Context) {
	var body landBody
	if !s.bindOptional(c, &body) {
		return
	}
	s.sent(c, model.RequestLand, s.requester.RequestLand(c.Request.Context(), body.DescentRate))
}

func (s *Server) requestMoveTarget(c *gin.Context) {
	var body moveTargetBody
	if !s.bind(c, &body) {
		return
	}
	err := s.requester.RequestMoveTarget(c.Request.Context(), body.OffsetNED, body.IsRate, body.RateUpCms, body.RateDownCms)
	s.sent(c, model.RequestMoveTarget, err)
}

func (s *Server) requestStop(c *gin.Context) {
	s.sent(c, model.RequestStop, s.requester.StopCommanding(c.Request.Context()))
}

// bind decodes a required JSON body.
func (s *Server) bind(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		s.errorResponse(c, err, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// bindOptional is bind for routes whose parameters all default to zero.
func (s *Server) bindOptional(c *gin.Context, dst any) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	return s.bind(c, dst)
}

func (s *Server) sent(c *gin.Context, t model.RequestType, err error) {
	switch {
	case err == nil:
		c.JSON(http.StatusAccepted, gin.H{"request": t.String()})
	case errors.Is(err, bridge.ErrNoSender), errors.Is(err, link.ErrNoPeer):
		s.errorResponse(c, err, http.StatusServiceUnavailable, "planck link not ready")
	default:
		s.errorResponse(c, err, http.StatusBadGateway, "send request")
	}
}

func (s *Server) errorResponse(c *gin.Context, err error, code int, message string) {
	if err != nil {
		message = message + ": " + err.Error()
	}
	log := logging.LoggerFromContext(c.Request.Context())
	if log == nil {
		log = s.log
	}
	if code >= http.StatusInternalServerError {
		log.Warn(c.Request.Context(), message, logging.Int("status", code))
	}
	c.AbortWithStatusJSON(code, gin.H{
		"status": "error",
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	})
}
