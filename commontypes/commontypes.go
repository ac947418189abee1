package commontypes

import "time"

type Direction string

const (
	Up          Direction = "up"
	Down        Direction = "down"
	Idle        Direction = "idle"
	Maintenance Direction = "maintenance" // reserved, no transitions
)

func (d Direction) String() string { return string(d) }

func (d Direction) Opposite() Direction {
	switch d {
	case Up:
		return Down
	case Down:
		return Up
	default:
		return d
	}
}

// FloorRequest is a validated stop request. The zero value is floor 0.
type FloorRequest struct {
	floor int
}

func (r FloorRequest) Floor() int { return r.floor }

// NewFloorRequest validates floor against [0, maxFloor] for the car carID.
func NewFloorRequest(carID string, floor, maxFloor int) (FloorRequest, error) {
	if floor < 0 || floor > maxFloor {
		return FloorRequest{}, &InvalidFloorError{CarID: carID, Floor: floor, MaxFloor: maxFloor}
	}
	return FloorRequest{floor: floor}, nil
}

const EventArrived = "arrived"

type ArrivalEvent struct {
	CarID     string    `json:"carId"`
	Floor     int       `json:"floor"`
	Direction Direction `json:"direction"`
	Event     string    `json:"event"`
	At        time.Time `json:"at"`
}

type CarSnapshot struct {
	ID        string    `json:"id"`
	MaxFloor  int       `json:"maxFloor"`
	Floor     int       `json:"floor"`
	Direction Direction `json:"direction"`
	Running   bool      `json:"running"`
	Faulted   bool      `json:"faulted"`
	UpStops   []int     `json:"upStops"`
	DownStops []int     `json:"downStops"`
}

// Pending reports the number of queued stops in both directions.
func (s CarSnapshot) Pending() int {
	return len(s.UpStops) + len(s.DownStops)
}

// Eligible reports whether the car can take new work.
func (s CarSnapshot) Eligible() bool {
	return s.Running && !s.Faulted
}
