// Package groups implements group-size policy, roster partitioning into
// rooms, and the hierarchical organizer used for large cohorts.
package groups

import (
	"errors"
	"fmt"
)

// Group-size tokens accepted in substage definitions.
const (
	TokenIndividual  = "individual"
	TokenPair        = "pair"
	TokenTriad       = "triad"
	TokenQuad        = "quad"
	TokenCircleOfSix = "circle-of-6"
	TokenWholeGroup  = "whole-group"
)

// CapacityAll is returned for the whole-group token: no cap, everyone in
// one room.
const CapacityAll = -1

// ErrUnknownGroupSize is returned for tokens outside the fixed table.
// Surfaced to the host as a configuration error; blocks session start.
var ErrUnknownGroupSize = errors.New("unknown group size token")

// Capacity returns the room capacity for a group-size token.
func Capacity(token string) (int, error) {
	switch token {
	case TokenIndividual:
		return 1, nil
	case TokenPair:
		return 2, nil
	case TokenTriad:
		return 3, nil
	case TokenQuad:
		return 4, nil
	case TokenCircleOfSix:
		return 6, nil
	case TokenWholeGroup:
		return CapacityAll, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownGroupSize, token)
	}
}
