package core

import (
	"fmt"
	"strings"
)

type Direction uint8

const (
	Yes Direction = iota
	No
)

func (d Direction) String() string {
	switch d {
	case Yes:
		return "yes"
	case No:
		return "no"
	default:
		return fmt.Sprintf("direction(%d)", uint8(d))
	}
}

func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(s) {
	case "yes", "y":
		return Yes, nil
	case "no", "n":
		return No, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidDirection, s)
}

// PollStatus is never stored, it is derived from the current height and the
// poll's end height on every call.
type PollStatus uint8

const (
	// Active polls accept votes, the end height itself is inclusive
	Active PollStatus = iota

	// Ended polls reject votes and may be destroyed by anyone
	Ended

	// Destroyed polls no longer exist in state
	Destroyed
)

func (s PollStatus) String() string {
	switch s {
	case Active:
		return "active"
	case Ended:
		return "ended"
	case Destroyed:
		return "destroyed"
	default:
		return fmt.Sprintf("status(%d)", uint8(s))
	}
}

// StatusAt returns the status of a live poll with the given end height.
func StatusAt(height, endHeight uint64) PollStatus {
	if height <= endHeight {
		return Active
	}
	return Ended
}
