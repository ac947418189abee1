package assigner

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"elevdispatch/car/requests"
	ct "elevdispatch/commontypes"

	"github.com/tiendc/go-deepcopy"
)

var ErrNoCandidate = errors.New("no car can take the call")

// Policy picks the car that should serve a hall call. cars is in registration order.
type Policy interface {
	Assign(floor int, cars []ct.CarSnapshot) (string, error)
}

// ByName builds the policy named in the config. fixedCar is only used by "fixed".
func ByName(name, fixedCar string) (Policy, error) {
	switch name {
	case "", "fixed":
		return Fixed{CarID: fixedCar}, nil
	case "roundrobin":
		return &RoundRobin{}, nil
	case "nearest":
		return Nearest{}, nil
	default:
		return nil, fmt.Errorf("unknown assignment policy %q", name)
	}
}

func inRange(s ct.CarSnapshot, floor int) bool {
	return floor >= 0 && floor <= s.MaxFloor
}

func canServe(s ct.CarSnapshot, floor int) bool {
	return s.Eligible() && inRange(s, floor)
}

// Fixed sends every call to one car. With no CarID it uses the first registered car.
// Like a cab button, the call is queued on a car that has not started yet; only a
// faulted car refuses it.
type Fixed struct {
	CarID string
}

func (p Fixed) Assign(floor int, cars []ct.CarSnapshot) (string, error) {
	for _, s := range cars {
		if p.CarID != "" && s.ID != p.CarID {
			continue
		}
		if s.Faulted || !inRange(s, floor) {
			break
		}
		return s.ID, nil
	}
	return "", ErrNoCandidate
}

// RoundRobin hands calls out in registration order, skipping cars that cannot serve.
type RoundRobin struct {
	mu   sync.Mutex
	next int
}

func (p *RoundRobin) Assign(floor int, cars []ct.CarSnapshot) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := 0; i < len(cars); i++ {
		idx := (p.next + i) % len(cars)
		if canServe(cars[idx], floor) {
			p.next = idx + 1
			return cars[idx].ID, nil
		}
	}
	return "", ErrNoCandidate
}

// Nearest picks the car that reaches the floor after the fewest floors travelled plus stops made.
// Ties go to the earlier registered car.
type Nearest struct{}

func (Nearest) Assign(floor int, cars []ct.CarSnapshot) (string, error) {
	best, bestCost := "", -1
	for _, s := range cars {
		if !canServe(s, floor) {
			continue
		}
		cost, err := CostToServe(s, floor)
		if err != nil {
			return "", err
		}
		if bestCost < 0 || cost < bestCost {
			best, bestCost = s.ID, cost
		}
	}
	if best == "" {
		return "", ErrNoCandidate
	}
	return best, nil
}

// CostToServe simulates the car's sweep on a copy of its state with floor added, and returns
// floors travelled plus stops made before the car opens its door on floor.
func CostToServe(car ct.CarSnapshot, floor int) (int, error) {
	sim := new(ct.CarSnapshot)
	if err := deepcopy.Copy(sim, &car); err != nil {
		return 0, fmt.Errorf("copying state of car %s: %w", car.ID, err)
	}

	queued := false
	for _, f := range append(append([]int{}, sim.UpStops...), sim.DownStops...) {
		if f == floor {
			queued = true
			break
		}
	}
	if !queued {
		switch requests.Decide(sim.Floor, sim.Direction, floor) {
		case requests.NoopDoorOpen:
			return 0, nil
		case requests.AddToUp:
			sim.UpStops = append(sim.UpStops, floor)
			sort.Ints(sim.UpStops)
		case requests.AddToDown:
			sim.DownStops = append(sim.DownStops, floor)
			sort.Sort(sort.Reverse(sort.IntSlice(sim.DownStops)))
		}
	}

	cost, pos := 0, sim.Floor
	for _, f := range requests.SweepOrder(sim.Direction, sim.UpStops, sim.DownStops) {
		cost += abs(f - pos)
		pos = f
		if f == floor {
			return cost, nil
		}
		cost++
	}
	return cost, nil
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
