// TCP front end for button panels. Panels press cab buttons and place hall calls; every
// connected panel hears about every arrival.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	ct "elevdispatch/commontypes"
	"elevdispatch/panelcomm"
	"elevdispatch/rblog"
)

var Log = rblog.Logger("server")

const (
	connBuffer    = 32
	arrivalBuffer = 64
)

// Dispatcher is the part of the controller a panel can reach.
type Dispatcher interface {
	RouteRequest(carID string, floor int) error
	Call(floor int) (string, error)
	Subscribe(ch chan<- ct.ArrivalEvent)
}

func Listen(port int) (*net.TCPListener, error) {
	localAddr, err := net.ResolveTCPAddr("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return nil, err
	}

	listener, err := net.ListenTCP("tcp", localAddr)
	if err != nil {
		return nil, err
	}
	return listener, nil
}

type Server struct {
	listener   *net.TCPListener
	dispatcher Dispatcher
	arrivals   chan ct.ArrivalEvent

	mu    sync.Mutex
	conns map[string]*panelcomm.Conn
	wg    sync.WaitGroup
}

// New subscribes to the dispatcher's arrivals straight away so none are missed before Serve.
func New(listener *net.TCPListener, dispatcher Dispatcher) *Server {
	s := &Server{
		listener:   listener,
		dispatcher: dispatcher,
		arrivals:   make(chan ct.ArrivalEvent, arrivalBuffer),
		conns:      make(map[string]*panelcomm.Conn),
	}
	dispatcher.Subscribe(s.arrivals)
	return s
}

func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Serve accepts panels until ctx is cancelled, then closes the listener and every panel
// connection and waits for their goroutines.
func (s *Server) Serve(ctx context.Context) error {
	acceptErr := make(chan error, 1)
	go func() { acceptErr <- s.acceptor() }()
	Log.Info().Str("addr", s.Addr().String()).Msg("panel server listening")

	var err error
loop:
	for {
		select {
		case <-ctx.Done():
			s.listener.Close()
			err = <-acceptErr
			break loop
		case err = <-acceptErr:
			s.listener.Close()
			break loop
		case ev := <-s.arrivals:
			s.broadcast(panelcomm.ArrivedFrom(ev))
		}
	}

	// The acceptor has returned, so no connection can be added from here on.
	s.mu.Lock()
	for _, pc := range s.conns {
		pc.Close()
	}
	s.mu.Unlock()
	s.wg.Wait()
	Log.Info().Msg("panel server stopped")
	return err
}

// Returns when the listener is closed.
func (s *Server) acceptor() error {
	for {
		conn, err := s.listener.AcceptTCP()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		s.serveConn(conn)
	}
}

func (s *Server) serveConn(conn net.Conn) {
	addr := conn.RemoteAddr().String()
	pc := panelcomm.NewConn(conn, connBuffer)

	s.mu.Lock()
	s.conns[addr] = pc
	s.mu.Unlock()
	Log.Info().Str("addr", addr).Msg("panel connected")

	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		if err := pc.Run(); err != nil {
			Log.Debug().Str("addr", addr).Err(err).Msg("panel sender stopped")
		}
	}()
	go func() {
		defer s.wg.Done()
		pkgs := make(chan panelcomm.Package)
		handled := make(chan struct{})
		go func() {
			defer close(handled)
			for pkg := range pkgs {
				s.handle(pc, pkg)
			}
		}()

		err := panelcomm.Reader(conn, pkgs, panelcomm.PanelTypes...)
		close(pkgs)
		<-handled
		if err != nil && !errors.Is(err, net.ErrClosed) {
			Log.Warn().Str("addr", addr).Err(err).Msg("panel read failed")
		}

		s.mu.Lock()
		delete(s.conns, addr)
		s.mu.Unlock()
		pc.Close()
		Log.Info().Str("addr", addr).Msg("panel disconnected")
	}()
}

func (s *Server) handle(pc *panelcomm.Conn, pkg panelcomm.Package) {
	switch msg := pkg.Payload.(type) {
	case panelcomm.ButtonPressed:
		if err := s.dispatcher.RouteRequest(msg.CarID, msg.Floor); err != nil {
			pc.Send(panelcomm.Rejected{CarID: msg.CarID, Floor: msg.Floor, Reason: err.Error()})
			return
		}
		pc.Send(panelcomm.Ack{CarID: msg.CarID, Floor: msg.Floor})

	case panelcomm.HallCall:
		carID, err := s.dispatcher.Call(msg.Floor)
		if err != nil {
			pc.Send(panelcomm.Rejected{CarID: carID, Floor: msg.Floor, Reason: err.Error()})
			return
		}
		pc.Send(panelcomm.Ack{CarID: carID, Floor: msg.Floor})
	}
}

func (s *Server) broadcast(msg panelcomm.Arrived) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for addr, pc := range s.conns {
		if !pc.Send(msg) {
			Log.Warn().Str("addr", addr).Msg("panel queue full, arrival dropped")
		}
	}
}
