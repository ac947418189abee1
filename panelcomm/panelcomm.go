// Button panel communication. Every message on the wire is a TypeTaggedJSON, one per line.
package panelcomm

import (
	"encoding/json"
	"fmt"
	"io"
	"net"
	"reflect"
	"sync"

	ct "elevdispatch/commontypes"
	"elevdispatch/rblog"
)

var Log = rblog.Logger("panelcomm")

// Panel -> dispatcher

type ButtonPressed struct {
	CarID string `json:"carId"`
	Floor int    `json:"floor"`
}

type HallCall struct {
	Floor int `json:"floor"`
}

// Dispatcher -> panel

type Ack struct {
	CarID string `json:"carId"`
	Floor int    `json:"floor"`
}

type Rejected struct {
	CarID  string `json:"carId"`
	Floor  int    `json:"floor"`
	Reason string `json:"reason"`
}

type Arrived struct {
	CarID     string       `json:"carId"`
	Floor     int          `json:"floor"`
	Direction ct.Direction `json:"direction"`
}

func ArrivedFrom(ev ct.ArrivalEvent) Arrived {
	return Arrived{CarID: ev.CarID, Floor: ev.Floor, Direction: ev.Direction}
}

var (
	PanelTypes      = []reflect.Type{reflect.TypeOf(ButtonPressed{}), reflect.TypeOf(HallCall{})}
	DispatcherTypes = []reflect.Type{reflect.TypeOf(Ack{}), reflect.TypeOf(Rejected{}), reflect.TypeOf(Arrived{})}
)

type TypeTaggedJSON struct {
	TypeId string
	JSON   json.RawMessage
}

func NewTypeTaggedJSON(object any) (*TypeTaggedJSON, error) {
	jsonBytes, err := json.Marshal(object)
	if err != nil {
		return nil, err
	}
	return &TypeTaggedJSON{
		TypeId: reflect.TypeOf(object).Name(),
		JSON:   jsonBytes,
	}, nil
}

// ToObject decodes the payload into whichever of allowedTypes matches TypeId.
func (ttj *TypeTaggedJSON) ToObject(allowedTypes ...reflect.Type) (any, error) {
	var dataType reflect.Type
	for _, allowedType := range allowedTypes {
		if ttj.TypeId == allowedType.Name() {
			dataType = allowedType
			break
		}
	}
	if dataType == nil {
		return nil, fmt.Errorf("TypeTaggedJSON.TypeId %s does not match any specified types", ttj.TypeId)
	}

	v := reflect.New(dataType)
	if err := json.Unmarshal(ttj.JSON, v.Interface()); err != nil {
		return nil, err
	}
	return reflect.Indirect(v).Interface(), nil
}

type Package struct {
	Addr    string
	Payload any
}

// Reader decodes packages from conn until it fails or is closed. Packages with an unknown
// type are logged and skipped. The returned error is nil on a clean EOF.
func Reader(conn net.Conn, ch chan<- Package, allowedTypes ...reflect.Type) error {
	addr := conn.RemoteAddr().String()
	decoder := json.NewDecoder(conn)
	for {
		ttj := TypeTaggedJSON{}
		if err := decoder.Decode(&ttj); err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}

		object, err := ttj.ToObject(allowedTypes...)
		if err != nil {
			Log.Warn().Str("addr", addr).Err(err).Msg("skipping package")
			continue
		}
		ch <- Package{Addr: addr, Payload: object}
	}
}

// Sender encodes every value from ch onto conn until ch closes or a write fails.
func Sender(conn net.Conn, ch <-chan any) error {
	encoder := json.NewEncoder(conn)
	for data := range ch {
		ttj, err := NewTypeTaggedJSON(data)
		if err != nil {
			Log.Error().Err(err).Msg("could not encode package")
			continue
		}
		if err := encoder.Encode(ttj); err != nil {
			return err
		}
	}
	return nil
}

// Conn pairs a connection with a buffered outbound queue drained by Sender.
type Conn struct {
	net.Conn
	mu     sync.Mutex
	out    chan any
	closed bool
}

func NewConn(conn net.Conn, buffer int) *Conn {
	return &Conn{Conn: conn, out: make(chan any, buffer)}
}

// Send queues v without blocking and reports whether it was queued.
func (c *Conn) Send(v any) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.out <- v:
		return true
	default:
		return false
	}
}

// Run drains the queue onto the connection. It returns when Close is called or a write fails.
func (c *Conn) Run() error {
	return Sender(c.Conn, c.out)
}

func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	close(c.out)
	return c.Conn.Close()
}
