package link

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/bluenviron/gomavlib/v3"
	"github.com/bluenviron/gomavlib/v3/pkg/message"
	"github.com/signalsfoundry/planck-bridge/internal/logging"
	"github.com/signalsfoundry/planck-bridge/model"
)

var (
	// ErrNoPeer is returned by Send before any Planck channel is known.
	ErrNoPeer = errors.New("no planck peer known")
	// ErrNoEndpoint is returned by Listen when neither address is set.
	ErrNoEndpoint = errors.New("link needs a listen or peer address")
)

// Handler consumes decoded inbound messages.
type Handler interface {
	Handle(ctx context.Context, msg model.Message)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, msg model.Message)

// Handle calls f(ctx, msg).
func (f HandlerFunc) Handle(ctx context.Context, msg model.Message) { f(ctx, msg) }

// FrameRecorder counts decoded and rejected frames.
type FrameRecorder interface {
	ObserveFrame(err error)
}

// Identity is the MAVLink system and component this end sends as.
type Identity struct {
	SystemID    uint8
	ComponentID uint8
}

// DefaultIdentity is the autopilot of vehicle 1.
var DefaultIdentity = Identity{SystemID: 1, ComponentID: 1}

// Conn is a MAVLink link to Planck. Requests go to the channel the last
// status message arrived on. Before that, a configured peer endpoint
// receives them.
type Conn struct {
	node         *gomavlib.Node
	log          logging.Logger
	metrics      FrameRecorder
	identity     Identity
	peerEndpoint bool

	mu   sync.RWMutex
	peer *gomavlib.Channel
}

// Option customises a Conn.
type Option func(*Conn)

// WithFrameRecorder attaches a recorder for frame outcomes.
func WithFrameRecorder(r FrameRecorder) Option {
	return func(c *Conn) {
		c.metrics = r
	}
}

// WithIdentity sets the outgoing system and component ids.
func WithIdentity(id Identity) Option {
	return func(c *Conn) {
		if id.SystemID != 0 {
			c.identity.SystemID = id.SystemID
		}
		if id.ComponentID != 0 {
			c.identity.ComponentID = id.ComponentID
		}
	}
}

// Listen starts a MAVLink node speaking the Planck dialect. listenAddr, when
// set, is a UDP server endpoint Planck sends to. peerAddr, when set, adds a
// UDP client endpoint towards a fixed Planck address.
func Listen(listenAddr, peerAddr string, log logging.Logger, opts ...Option) (*Conn, error) {
	if log == nil {
		log = logging.Noop()
	}
	c := &Conn{log: log, identity: DefaultIdentity}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}

	var endpoints []gomavlib.EndpointConf
	if listenAddr != "" {
		endpoints = append(endpoints, gomavlib.EndpointUDPServer{Address: listenAddr})
	}
	if peerAddr != "" {
		endpoints = append(endpoints, gomavlib.EndpointUDPClient{Address: peerAddr})
		c.peerEndpoint = true
	}
	if len(endpoints) == 0 {
		return nil, ErrNoEndpoint
	}

	node := &gomavlib.Node{
		Endpoints:        endpoints,
		Dialect:          Dialect,
		OutVersion:       gomavlib.V2,
		OutSystemID:      c.identity.SystemID,
		OutComponentID:   c.identity.ComponentID,
		HeartbeatDisable: true,
	}
	if err := node.Initialize(); err != nil {
		return nil, fmt.Errorf("open mavlink node (listen %q, peer %q): %w", listenAddr, peerAddr, err)
	}
	c.node = node
	return c, nil
}

// Peer describes the channel requests currently go to, or "" if none.
func (c *Conn) Peer() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.peer == nil {
		return ""
	}
	return fmt.Sprint(c.peer)
}

// Close stops the node and its endpoints.
func (c *Conn) Close() error {
	c.node.Close()
	return nil
}

// Serve consumes node events until ctx is cancelled or the node is closed,
// handing each decoded Planck message to h. Parse errors and foreign
// messages are counted and skipped. Only one Serve may run per Conn.
func (c *Conn) Serve(ctx context.Context, h Handler) error {
	events := c.node.Events()
	for {
		select {
		case <-ctx.Done():
			return nil
		case evt, ok := <-events:
			if !ok {
				return nil
			}
			switch e := evt.(type) {
			case *gomavlib.EventFrame:
				msg, err := FromMAVLink(e.Message())
				c.observe(err)
				if err != nil {
					c.log.Debug(ctx, "dropping frame",
						logging.String("channel", fmt.Sprint(e.Channel)),
						logging.Err(err),
					)
					continue
				}
				if msg.ID() == model.MsgIDStatus {
					c.learnPeer(ctx, e.Channel)
				}
				if h != nil {
					h.Handle(ctx, msg)
				}

			case *gomavlib.EventParseError:
				c.observe(e.Error)
				c.log.Debug(ctx, "dropping unparsable frame",
					logging.String("channel", fmt.Sprint(e.Channel)),
					logging.Err(e.Error),
				)

			case *gomavlib.EventChannelOpen:
				c.log.Debug(ctx, "link channel open", logging.String("channel", fmt.Sprint(e.Channel)))

			case *gomavlib.EventChannelClose:
				c.forgetPeer(ctx, e.Channel)
			}
		}
	}
}

func (c *Conn) observe(err error) {
	if c.metrics != nil {
		c.metrics.ObserveFrame(err)
	}
}

func (c *Conn) learnPeer(ctx context.Context, ch *gomavlib.Channel) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ch == nil || c.peer == ch {
		return
	}
	c.peer = ch
	c.log.Info(ctx, "planck peer bound", logging.String("channel", fmt.Sprint(ch)))
}

func (c *Conn) forgetPeer(ctx context.Context, ch *gomavlib.Channel) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ch == nil || c.peer != ch {
		return
	}
	c.peer = nil
	c.log.Warn(ctx, "planck peer channel closed", logging.String("channel", fmt.Sprint(ch)))
}

// Send writes req to the current peer.
func (c *Conn) Send(ctx context.Context, req model.Request) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.write(requestToMAVLink(req))
}

// SendMessage writes any model message to the current peer. It is used by
// the bench simulator, which plays the Planck side of the link.
func (c *Conn) SendMessage(ctx context.Context, msg model.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m, err := ToMAVLink(msg)
	if err != nil {
		return err
	}
	return c.write(m)
}

// write hands m to the node. Frames are queued per channel, and a channel
// that fails to write is reported through a close event.
func (c *Conn) write(m message.Message) error {
	c.mu.RLock()
	peer := c.peer
	c.mu.RUnlock()

	switch {
	case peer != nil:
		c.node.WriteMessageTo(peer, m)
	case c.peerEndpoint:
		c.node.WriteMessageAll(m)
	default:
		return ErrNoPeer
	}
	return nil
}
