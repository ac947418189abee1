package server

import (
	"context"
	"encoding/json"
	"net"
	"strings"
	"testing"
	"time"

	"elevdispatch/car"
	ct "elevdispatch/commontypes"
	"elevdispatch/controller"
	"elevdispatch/controller/assigner"
	"elevdispatch/panelcomm"
)

type panel struct {
	conn net.Conn
	enc  *json.Encoder
	in   chan panelcomm.Package
}

func startServer(t *testing.T) (*controller.Controller, *Server) {
	t.Helper()
	carConfig := car.DefaultConfig()
	carConfig.DwellTime = time.Millisecond
	ctrl := controller.New(carConfig, assigner.Fixed{CarID: "b"}, 64)
	for _, id := range []string{"a", "b"} {
		if _, err := ctrl.AddCar(id, 10); err != nil {
			t.Fatalf("AddCar(%q) error: %v", id, err)
		}
	}

	listener, err := Listen(0)
	if err != nil {
		t.Fatalf("Listen() error: %v", err)
	}
	srv := New(listener, ctrl)

	ctx, cancel := context.WithCancel(context.Background())
	served := make(chan error, 1)
	go func() { served <- srv.Serve(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-served:
			if err != nil {
				t.Errorf("Serve() error: %v", err)
			}
		case <-time.After(2 * time.Second):
			t.Errorf("Serve() did not return after cancel")
		}
		ctrl.Stop()
	})

	if err := ctrl.Start(ctx); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	return ctrl, srv
}

func dial(t *testing.T, srv *Server) *panel {
	t.Helper()
	conn, err := net.Dial("tcp", srv.Addr().String())
	if err != nil {
		t.Fatalf("Dial() error: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	p := &panel{conn: conn, enc: json.NewEncoder(conn), in: make(chan panelcomm.Package, 16)}
	go panelcomm.Reader(conn, p.in, panelcomm.DispatcherTypes...)
	return p
}

func (p *panel) send(t *testing.T, v any) {
	t.Helper()
	ttj, err := panelcomm.NewTypeTaggedJSON(v)
	if err != nil {
		t.Fatalf("NewTypeTaggedJSON() error: %v", err)
	}
	if err := p.enc.Encode(ttj); err != nil {
		t.Fatalf("Encode() error: %v", err)
	}
}

// expect reads until it sees want. Other messages are allowed in between.
func (p *panel) expect(t *testing.T, want any) {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case pkg := <-p.in:
			if pkg.Payload == want {
				return
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %#v", want)
		}
	}
}

func (p *panel) expectRejected(t *testing.T, floor int, reason string) {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case pkg := <-p.in:
			if r, ok := pkg.Payload.(panelcomm.Rejected); ok && r.Floor == floor {
				if !strings.Contains(r.Reason, reason) {
					t.Errorf("Rejected.Reason = %q, expected it to contain %q", r.Reason, reason)
				}
				return
			}
		case <-timeout:
			t.Fatalf("timed out waiting for a rejection of floor %d", floor)
		}
	}
}

func TestButtonPressed(t *testing.T) {
	_, srv := startServer(t)
	p := dial(t, srv)

	p.send(t, panelcomm.ButtonPressed{CarID: "a", Floor: 3})
	p.expect(t, panelcomm.Ack{CarID: "a", Floor: 3})

	p.send(t, panelcomm.ButtonPressed{CarID: "a", Floor: 99})
	p.expectRejected(t, 99, "invalid floor 99")

	p.send(t, panelcomm.ButtonPressed{CarID: "zz", Floor: 1})
	p.expectRejected(t, 1, `unknown car "zz"`)
}

func TestHallCall(t *testing.T) {
	_, srv := startServer(t)
	p := dial(t, srv)

	p.send(t, panelcomm.HallCall{Floor: 6})
	p.expect(t, panelcomm.Ack{CarID: "b", Floor: 6})
	p.expect(t, panelcomm.Arrived{CarID: "b", Floor: 6, Direction: ct.Up})
}

func TestArrivalsBroadcast(t *testing.T) {
	ctrl, srv := startServer(t)
	first := dial(t, srv)
	second := dial(t, srv)

	// Both panels must be registered before the arrival happens.
	first.send(t, panelcomm.ButtonPressed{CarID: "a", Floor: 0})
	first.expect(t, panelcomm.Ack{CarID: "a", Floor: 0})
	second.send(t, panelcomm.ButtonPressed{CarID: "b", Floor: 0})
	second.expect(t, panelcomm.Ack{CarID: "b", Floor: 0})

	if err := ctrl.RouteRequest("a", 4); err != nil {
		t.Fatalf("RouteRequest() error: %v", err)
	}
	want := panelcomm.Arrived{CarID: "a", Floor: 4, Direction: ct.Up}
	first.expect(t, want)
	second.expect(t, want)
}

func TestUnknownMessageSkipped(t *testing.T) {
	_, srv := startServer(t)
	p := dial(t, srv)

	// Dispatcher-bound types only; an Ack from a panel is skipped and the connection stays up.
	p.send(t, panelcomm.Ack{CarID: "a", Floor: 1})
	p.send(t, panelcomm.ButtonPressed{CarID: "a", Floor: 2})
	p.expect(t, panelcomm.Ack{CarID: "a", Floor: 2})
}
