package link

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/signalsfoundry/planck-bridge/core"
	"github.com/signalsfoundry/planck-bridge/model"
)

type frameCounter struct {
	mu       sync.Mutex
	ok, fail int
}

func (f *frameCounter) ObserveFrame(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err != nil {
		f.fail++
		return
	}
	f.ok++
}

func (f *frameCounter) counts() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ok, f.fail
}

// freeUDPAddr returns a loopback address that was free a moment ago.
func freeUDPAddr(t *testing.T) string {
	t.Helper()
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := pc.LocalAddr().String()
	_ = pc.Close()
	return addr
}

func serve(t *testing.T, ctx context.Context, c *Conn) (<-chan model.Message, <-chan error) {
	t.Helper()
	got := make(chan model.Message, 16)
	done := make(chan error, 1)
	go func() {
		done <- c.Serve(ctx, HandlerFunc(func(_ context.Context, msg model.Message) {
			select {
			case got <- msg:
			default:
			}
		}))
	}()
	return got, done
}

func TestLinkCarriesStatusAndRequests(t *testing.T) {
	addr := freeUDPAddr(t)
	counter := &frameCounter{}

	bridgeEnd, err := Listen(addr, "", nil, WithFrameRecorder(counter))
	if err != nil {
		t.Fatalf("Listen bridge: %v", err)
	}
	defer bridgeEnd.Close()
	planckEnd, err := Listen("", addr, nil, WithIdentity(Identity{SystemID: 1, ComponentID: 25}))
	if err != nil {
		t.Fatalf("Listen planck: %v", err)
	}
	defer planckEnd.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	atBridge, bridgeDone := serve(t, ctx, bridgeEnd)
	atPlanck, _ := serve(t, ctx, planckEnd)

	if err := bridgeEnd.Send(ctx, model.Request{Type: model.RequestStop}); !errors.Is(err, ErrNoPeer) {
		t.Fatalf("Send before peer known: %v, want ErrNoPeer", err)
	}

	// The client channel opens asynchronously, so repeat until one lands.
	status := model.StatusMessage{LandReady: 1, Status: model.StatusTrackingTag}
	deadline := time.After(5 * time.Second)
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
waitStatus:
	for {
		select {
		case msg := <-atBridge:
			if msg != status {
				t.Fatalf("bridge handled %+v, want %+v", msg, status)
			}
			break waitStatus
		case <-ticker.C:
			if err := planckEnd.SendMessage(ctx, status); err != nil {
				t.Fatalf("SendMessage: %v", err)
			}
		case <-deadline:
			t.Fatalf("status never reached the bridge")
		}
	}

	if bridgeEnd.Peer() == "" {
		t.Fatalf("bridge did not bind the status channel as its peer")
	}
	if ok, _ := counter.counts(); ok < 1 {
		t.Fatalf("frames ok=%d, want at least 1", ok)
	}

	req := model.Request{
		TargetSystem:    1,
		TargetComponent: 25,
		Type:            model.RequestMoveTarget,
		Params:          [5]float32{7, 1, -2, 0.5, 0},
		PackedRates:     core.EncodeRates(150, 80),
		HasRates:        true,
	}
	if err := bridgeEnd.Send(ctx, req); err != nil {
		t.Fatalf("Send: %v", err)
	}
	select {
	case msg := <-atPlanck:
		if msg != req {
			t.Fatalf("planck received %+v, want %+v", msg, req)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("request never reached planck")
	}

	cancel()
	select {
	case err := <-bridgeDone:
		if err != nil {
			t.Fatalf("Serve returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Serve did not stop on cancel")
	}
}

func TestSendHonoursCancelledContext(t *testing.T) {
	conn, err := Listen("", freeUDPAddr(t), nil)
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := conn.Send(ctx, model.Request{Type: model.RequestStop}); !errors.Is(err, context.Canceled) {
		t.Fatalf("Send err = %v, want context.Canceled", err)
	}
	if err := conn.SendMessage(ctx, model.StatusMessage{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("SendMessage err = %v, want context.Canceled", err)
	}
}

func TestPeerEndpointAcceptsRequestsBeforeStatus(t *testing.T) {
	conn, err := Listen("", freeUDPAddr(t), nil)
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer conn.Close()
	if err := conn.Send(context.Background(), model.Request{Type: model.RequestStop}); err != nil {
		t.Fatalf("Send with a peer endpoint: %v", err)
	}
}

func TestListenErrors(t *testing.T) {
	if _, err := Listen("", "", nil); !errors.Is(err, ErrNoEndpoint) {
		t.Fatalf("err = %v, want ErrNoEndpoint", err)
	}
	if _, err := Listen("256.0.0.1:99999", "", nil); err == nil {
		t.Fatalf("expected an error for an unusable listen address")
	}
}
