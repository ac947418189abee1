package car

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"elevdispatch/car/requests"
	ct "elevdispatch/commontypes"
	"elevdispatch/rblog"
)

var Log = rblog.Logger("car")

const (
	DefaultDwellTime   = 6 * time.Second
	DefaultEventBuffer = 32
)

type Config struct {
	DwellTime   time.Duration
	EventBuffer int // <= 0 means DefaultEventBuffer
	Strategy    requests.Strategy

	// OnDoorOpen is an optional callback for door hardware or metrics. It runs on the car's
	// own goroutine for every serviced stop, after subscribers are notified and before the
	// dwell, so it must return quickly. A panic in it takes this car out of service.
	OnDoorOpen func(ct.ArrivalEvent)
}

func DefaultConfig() Config {
	return Config{
		DwellTime:   DefaultDwellTime,
		EventBuffer: DefaultEventBuffer,
		Strategy:    requests.Basic{},
	}
}

// Car owns its stop sets, position and direction. Only its own loop moves it; AcceptRequest
// may be called from any goroutine.
type Car struct {
	id       string
	maxFloor int
	config   Config

	mu          sync.Mutex
	floor       int
	dirn        ct.Direction
	upStops     *FloorSet
	downStops   *FloorSet
	running     bool
	faulted     bool
	subscribers []chan<- ct.ArrivalEvent
	cancel      context.CancelFunc
	done        chan struct{}

	wakeCh  chan struct{}
	events  chan ct.ArrivalEvent
	dropped atomic.Uint64
}

func New(id string, maxFloor int, config Config) (*Car, error) {
	if maxFloor < 0 {
		return nil, &ct.InvalidFloorError{CarID: id, Floor: maxFloor, MaxFloor: maxFloor}
	}
	if config.Strategy == nil {
		config.Strategy = requests.Basic{}
	}
	if config.EventBuffer <= 0 {
		config.EventBuffer = DefaultEventBuffer
	}
	if config.DwellTime < 0 {
		config.DwellTime = 0
	}

	c := &Car{
		id:        id,
		maxFloor:  maxFloor,
		config:    config,
		floor:     0,
		dirn:      ct.Up,
		upStops:   newFloorSet(maxFloor),
		downStops: newFloorSet(maxFloor),
		wakeCh:    make(chan struct{}, 1),
		events:    make(chan ct.ArrivalEvent, config.EventBuffer),
	}
	c.subscribers = append(c.subscribers, c.events)
	return c, nil
}

func (c *Car) ID() string    { return c.id }
func (c *Car) MaxFloor() int { return c.maxFloor }

// Events is the car's own arrival stream. Arrivals are dropped, not queued, when it is full.
func (c *Car) Events() <-chan ct.ArrivalEvent { return c.events }

// Subscribe adds another arrival sink. Sends to it never block the car.
func (c *Car) Subscribe(ch chan<- ct.ArrivalEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subscribers = append(c.subscribers, ch)
}

func (c *Car) DroppedEvents() uint64 { return c.dropped.Load() }

func (c *Car) Floor() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.floor
}

func (c *Car) Direction() ct.Direction {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dirn
}

func (c *Car) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

func (c *Car) Faulted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.faulted
}

func (c *Car) Snapshot() ct.CarSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return ct.CarSnapshot{
		ID:        c.id,
		MaxFloor:  c.maxFloor,
		Floor:     c.floor,
		Direction: c.dirn,
		Running:   c.running,
		Faulted:   c.faulted,
		UpStops:   c.upStops.Ascending(),
		DownStops: c.downStops.Descending(),
	}
}

// Request validates floor against this car and queues it.
func (c *Car) Request(floor int) (requests.StopSetUpdate, error) {
	req, err := ct.NewFloorRequest(c.id, floor, c.maxFloor)
	if err != nil {
		return requests.NoopDoorOpen, err
	}
	return c.AcceptRequest(req)
}

// AcceptRequest applies the enqueue strategy to the live stop sets. It never waits on the loop.
// A floor that is already pending anywhere is left where it is.
func (c *Car) AcceptRequest(req ct.FloorRequest) (requests.StopSetUpdate, error) {
	floor := req.Floor()
	if floor < 0 || floor > c.maxFloor {
		return requests.NoopDoorOpen, &ct.InvalidFloorError{CarID: c.id, Floor: floor, MaxFloor: c.maxFloor}
	}

	c.mu.Lock()
	if c.faulted {
		c.mu.Unlock()
		return requests.NoopDoorOpen, &ct.CarFaultedError{CarID: c.id}
	}
	current, dirn := c.floor, c.dirn
	update := c.config.Strategy.Decide(current, dirn, floor)
	queued := c.upStops.has(floor) || c.downStops.has(floor)
	if !queued {
		switch update {
		case requests.AddToUp:
			c.upStops.add(floor)
		case requests.AddToDown:
			c.downStops.add(floor)
		}
	}
	c.mu.Unlock()

	switch {
	case update == requests.NoopDoorOpen:
		Log.Debug().Str("car", c.id).Msgf("Door already open on floor %d", floor)
	case queued:
		Log.Debug().Str("car", c.id).Msgf("Floor %d already pending", floor)
	default:
		Log.Debug().Str("car", c.id).Msgf("On floor %d going %s, floor %d pressed: %s", current, dirn, floor, update)
		c.wake()
	}
	return update, nil
}

func (c *Car) wake() {
	select {
	case c.wakeCh <- struct{}{}:
	default:
	}
}

// Start launches the scheduling loop on its own goroutine. The loop stops when ctx is done or Stop is called.
func (c *Car) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.faulted {
		return &ct.CarFaultedError{CarID: c.id}
	}
	if c.running {
		return fmt.Errorf("car %q: %w", c.id, ct.ErrAlreadyStarted)
	}

	loopCtx, cancel := context.WithCancel(ctx)
	c.running = true
	c.cancel = cancel
	c.done = make(chan struct{})
	go c.run(loopCtx, c.done)
	return nil
}

// Stop cancels the loop and waits for it to exit. Safe to call on a car that never started.
func (c *Car) Stop() {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Done is closed when the current loop has exited. Nil before Start.
func (c *Car) Done() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.done
}

func (c *Car) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	defer func() {
		r := recover()
		c.mu.Lock()
		c.running = false
		if r != nil {
			c.faulted = true
		}
		c.mu.Unlock()
		if r != nil {
			rblog.Red.Printf("%s crashed and is out of service: %v", c.id, r)
			Log.Error().Str("car", c.id).Msgf("scheduling loop panicked: %v", r)
		}
	}()

	rblog.Green.Println(c.id, "started.")
	dwell := time.NewTimer(0)
	if !dwell.Stop() {
		<-dwell.C
	}

	for {
		if ctx.Err() != nil {
			Log.Info().Str("car", c.id).Msg("stopped")
			return
		}

		event, ok := c.step()
		if !ok {
			select {
			case <-ctx.Done():
				Log.Info().Str("car", c.id).Msg("stopped while waiting for requests")
				return
			case <-c.wakeCh:
			}
			continue
		}

		c.openDoor(event)

		dwell.Reset(c.config.DwellTime)
		select {
		case <-ctx.Done():
			if !dwell.Stop() {
				<-dwell.C
			}
			Log.Info().Str("car", c.id).Msgf("stopped during dwell on floor %d", event.Floor)
			return
		case <-dwell.C:
		}
	}
}

// step pops the next stop in sweep order and moves the car there. The active set running
// dry flips the direction; both sets empty leaves the car where it is and returns false.
func (c *Car) step() (ct.ArrivalEvent, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for attempt := 0; attempt < 2; attempt++ {
		var floor int
		var ok bool
		switch c.dirn {
		case ct.Up:
			floor, ok = c.upStops.popLowest()
		case ct.Down:
			floor, ok = c.downStops.popHighest()
		default:
			return ct.ArrivalEvent{}, false
		}
		if ok {
			c.floor = floor
			return ct.ArrivalEvent{
				CarID:     c.id,
				Floor:     floor,
				Direction: c.dirn,
				Event:     ct.EventArrived,
				At:        time.Now(),
			}, true
		}
		if c.upStops.Len() == 0 && c.downStops.Len() == 0 {
			return ct.ArrivalEvent{}, false
		}
		c.dirn = c.dirn.Opposite()
		Log.Debug().Str("car", c.id).Msgf("sweep done on floor %d, turning %s", c.floor, c.dirn)
	}
	return ct.ArrivalEvent{}, false
}

func (c *Car) openDoor(event ct.ArrivalEvent) {
	if event.Direction == ct.Up {
		rblog.Cyan.Printf("%s  Going up Door open on floor no:: %d", c.id, event.Floor)
	} else {
		rblog.Blue.Printf("%s  Going down Door open on floor no:: %d", c.id, event.Floor)
	}

	c.mu.Lock()
	subscribers := c.subscribers
	c.mu.Unlock()
	for _, ch := range subscribers {
		select {
		case ch <- event:
		default:
			c.dropped.Add(1)
		}
	}

	if c.config.OnDoorOpen != nil {
		c.config.OnDoorOpen(event)
	}
}
