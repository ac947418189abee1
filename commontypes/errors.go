package commontypes

import (
	"errors"
	"fmt"
)

var (
	ErrNoCarsRegistered = errors.New("no cars registered")
	ErrAlreadyStarted   = errors.New("fleet already started")
)

// InvalidFloorError is returned when a floor falls outside [0, MaxFloor] for the car it was addressed to.
type InvalidFloorError struct {
	CarID    string
	Floor    int
	MaxFloor int
}

func (e *InvalidFloorError) Error() string {
	return fmt.Sprintf("invalid floor %d for car %q (valid floors 0-%d)", e.Floor, e.CarID, e.MaxFloor)
}

type UnknownCarError struct {
	CarID string
}

func (e *UnknownCarError) Error() string {
	return fmt.Sprintf("unknown car %q", e.CarID)
}

type DuplicateIDError struct {
	CarID string
}

func (e *DuplicateIDError) Error() string {
	return fmt.Sprintf("car %q already registered", e.CarID)
}

// CarFaultedError is returned for requests addressed to a car whose loop has crashed.
type CarFaultedError struct {
	CarID string
}

func (e *CarFaultedError) Error() string {
	return fmt.Sprintf("car %q is out of service", e.CarID)
}
