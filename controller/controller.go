package controller

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"elevdispatch/car"
	ct "elevdispatch/commontypes"
	"elevdispatch/config"
	"elevdispatch/controller/assigner"
	"elevdispatch/rblog"

	"github.com/xyproto/randomstring"
)

var Log = rblog.Logger("controller")

const (
	identifierDefaultLen = 10
	defaultEventBuffer   = 64
)

// Controller owns the car registry and routes requests to cars. It never touches car internals.
type Controller struct {
	carConfig car.Config
	policy    assigner.Policy

	mu          sync.RWMutex
	cars        []*car.Car // registration order
	byID        map[string]*car.Car
	events      chan ct.ArrivalEvent
	subscribers []chan<- ct.ArrivalEvent
	ctx         context.Context
	cancel      context.CancelFunc
}

// New builds an empty fleet. A nil policy routes hall calls to the first registered car.
func New(carConfig car.Config, policy assigner.Policy, eventBuffer int) *Controller {
	if policy == nil {
		policy = assigner.Fixed{}
	}
	if eventBuffer <= 0 {
		eventBuffer = defaultEventBuffer
	}
	events := make(chan ct.ArrivalEvent, eventBuffer)
	return &Controller{
		carConfig:   carConfig,
		policy:      policy,
		byID:        make(map[string]*car.Car),
		events:      events,
		subscribers: []chan<- ct.ArrivalEvent{events},
	}
}

// FromConfig builds the fleet described by cfg. Cars are registered but not started.
func FromConfig(cfg config.Config) (*Controller, error) {
	policy, err := assigner.ByName(cfg.Policy, cfg.FixedCar)
	if err != nil {
		return nil, err
	}
	carConfig := car.DefaultConfig()
	carConfig.DwellTime = cfg.DwellTime
	carConfig.EventBuffer = cfg.EventBuffer

	c := New(carConfig, policy, cfg.EventBuffer*len(cfg.Cars))
	for _, cc := range cfg.Cars {
		if _, err := c.AddCar(cc.ID, cc.MaxFloor); err != nil {
			return nil, fmt.Errorf("registering car %q: %w", cc.ID, err)
		}
	}
	return c, nil
}

// AddCar registers a car starting on floor 0 going up. An empty id gets a random one.
// Cars added to a running fleet start straight away; after the fleet's context is cancelled
// they wait for the next Start.
func (c *Controller) AddCar(id string, maxFloor int) (*car.Car, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if id == "" {
		for {
			id = randomstring.EnglishFrequencyString(identifierDefaultLen)
			if _, exists := c.byID[id]; !exists {
				break
			}
		}
		Log.Warn().Msgf("No car identifier provided, generated random identifier %q", id)
	}
	if _, exists := c.byID[id]; exists {
		return nil, &ct.DuplicateIDError{CarID: id}
	}

	newCar, err := car.New(id, maxFloor, c.carConfig)
	if err != nil {
		return nil, err
	}
	for _, ch := range c.subscribers {
		newCar.Subscribe(ch)
	}
	c.cars = append(c.cars, newCar)
	c.byID[id] = newCar
	Log.Info().Str("car", id).Int("maxFloor", maxFloor).Msg("car registered")

	if c.ctx != nil && c.ctx.Err() == nil {
		if err := newCar.Start(c.ctx); err != nil {
			return newCar, err
		}
	}
	return newCar, nil
}

// Start launches every registered car on its own goroutine. Cars that fail to start do not stop the others.
// A fleet whose parent context has been cancelled counts as stopped and can be started again.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.cars) == 0 {
		return ct.ErrNoCarsRegistered
	}
	if c.ctx != nil {
		if c.ctx.Err() == nil {
			return ct.ErrAlreadyStarted
		}
		// Wait for the loops of the cancelled run before restarting.
		Log.Info().Msg("previous run was cancelled, restarting fleet")
		c.cancel()
		for i := len(c.cars) - 1; i >= 0; i-- {
			c.cars[i].Stop()
		}
		c.ctx, c.cancel = nil, nil
	}

	rblog.Magenta.Print("--- Starting fleet ---")
	c.ctx, c.cancel = context.WithCancel(ctx)

	var errs []error
	for _, e := range c.cars {
		if err := e.Start(c.ctx); err != nil {
			Log.Error().Str("car", e.ID()).Err(err).Msg("car did not start")
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Stop cancels every car loop and waits for them to exit, last registered first.
func (c *Controller) Stop() {
	c.mu.Lock()
	cancel := c.cancel
	cars := append([]*car.Car(nil), c.cars...)
	c.ctx, c.cancel = nil, nil
	c.mu.Unlock()

	if cancel == nil {
		return
	}
	Log.Debug().Msg("Stopping fleet")
	cancel()
	for i := len(cars) - 1; i >= 0; i-- {
		cars[i].Stop()
	}
	rblog.Magenta.Print("--- Fleet stopped ---")
}

// RouteRequest validates floor for carID and hands it to that car.
func (c *Controller) RouteRequest(carID string, floor int) error {
	target, ok := c.Car(carID)
	if !ok {
		return &ct.UnknownCarError{CarID: carID}
	}
	update, err := target.Request(floor)
	if err != nil {
		Log.Warn().Str("car", carID).Int("floor", floor).Err(err).Msg("request rejected")
		return err
	}
	Log.Info().Str("car", carID).Int("floor", floor).Msgf("request accepted: %s", update)
	return nil
}

// Call assigns a hall call to a car with the fleet policy and routes it there.
func (c *Controller) Call(floor int) (string, error) {
	snapshots := c.Snapshots()
	top := -1
	for _, s := range snapshots {
		if s.MaxFloor > top {
			top = s.MaxFloor
		}
	}
	if floor < 0 || floor > top {
		return "", &ct.InvalidFloorError{Floor: floor, MaxFloor: top}
	}

	carID, err := c.policy.Assign(floor, snapshots)
	if err != nil {
		return "", fmt.Errorf("assigning call to floor %d: %w", floor, err)
	}
	return carID, c.RouteRequest(carID, floor)
}

// Events is the fleet-wide arrival stream. Arrivals are dropped when nobody drains it.
func (c *Controller) Events() <-chan ct.ArrivalEvent {
	return c.events
}

// Subscribe adds an arrival sink to every current and future car.
func (c *Controller) Subscribe(ch chan<- ct.ArrivalEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subscribers = append(c.subscribers, ch)
	for _, e := range c.cars {
		e.Subscribe(ch)
	}
}

func (c *Controller) Car(id string) (*car.Car, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.byID[id]
	return e, ok
}

func (c *Controller) Cars() []*car.Car {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]*car.Car(nil), c.cars...)
}

func (c *Controller) Snapshots() []ct.CarSnapshot {
	cars := c.Cars()
	out := make([]ct.CarSnapshot, len(cars))
	for i, e := range cars {
		out[i] = e.Snapshot()
	}
	return out
}
