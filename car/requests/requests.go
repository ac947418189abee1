package requests

import (
	ct "elevdispatch/commontypes"
)

type StopSetUpdate int

const (
	NoopDoorOpen StopSetUpdate = iota
	AddToUp
	AddToDown
)

func (u StopSetUpdate) String() string {
	switch u {
	case NoopDoorOpen:
		return "noop (door already open)"
	case AddToUp:
		return "add to up stops"
	case AddToDown:
		return "add to down stops"
	default:
		return "UNDEFINED"
	}
}

// Strategy decides which stop set a new request belongs in. Implementations must be pure.
type Strategy interface {
	Decide(currentFloor int, dirn ct.Direction, requestedFloor int) StopSetUpdate
}

// Basic is the LOOK sweep policy: floors ahead of the car join the current sweep,
// floors behind it wait for the return sweep.
type Basic struct{}

func (Basic) Decide(currentFloor int, dirn ct.Direction, requestedFloor int) StopSetUpdate {
	return Decide(currentFloor, dirn, requestedFloor)
}

func Decide(currentFloor int, dirn ct.Direction, requestedFloor int) StopSetUpdate {
	if requestedFloor == currentFloor {
		return NoopDoorOpen
	}
	above := requestedFloor > currentFloor

	switch dirn {
	case ct.Up:
		if above {
			return AddToUp
		}
		return AddToDown // already passed, served going down

	case ct.Down:
		if above {
			return AddToUp // already passed, served going up
		}
		return AddToDown

	default:
		// Idle and Maintenance have no sweep yet, so the side decides.
		if above {
			return AddToUp
		}
		return AddToDown
	}
}

// SweepOrder lists the order a car serves its stops in if no new requests arrive.
// up must be ascending and down descending, as in a car snapshot.
func SweepOrder(dirn ct.Direction, up, down []int) []int {
	order := make([]int, 0, len(up)+len(down))
	if dirn == ct.Down {
		order = append(order, down...)
		return append(order, up...)
	}
	order = append(order, up...)
	return append(order, down...)
}
