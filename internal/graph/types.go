package graph

import (
	"strconv"
	"strings"
)

// NodeID identifies a node within one graph.
type NodeID int

func (id NodeID) String() string {
	return strconv.Itoa(int(id))
}

// Sentinel ids of the boundary nodes inside every subgraph body.
const (
	InputNodeID  NodeID = -10
	OutputNodeID NodeID = -20
)

// LinkID identifies a link within one graph. Zero means no link.
type LinkID int

// NoLink is the LinkID of an unconnected input.
const NoLink LinkID = 0

// SlotType is the declared data type of a slot. Multiple types may be
// listed separated by commas.
type SlotType string

// AnyType matches every other type.
const AnyType SlotType = "*"

// NodeMode controls whether and how a node takes part in execution.
type NodeMode int

const (
	ModeAlways NodeMode = iota
	ModeOnEvent
	ModeNever
	ModeOnTrigger
	ModeBypass
)

func (m NodeMode) String() string {
	switch m {
	case ModeAlways:
		return "always"
	case ModeOnEvent:
		return "on_event"
	case ModeNever:
		return "never"
	case ModeOnTrigger:
		return "on_trigger"
	case ModeBypass:
		return "bypass"
	default:
		return "unknown"
	}
}

func isWildcard(t string) bool {
	return t == "" || t == string(AnyType)
}

// IsValidConnection reports whether an output of type a may feed an input of
// type b. Comparison ignores case; comma separated unions are compatible if
// any member pair is.
func IsValidConnection(a, b SlotType) bool {
	ta := strings.ToLower(strings.TrimSpace(string(a)))
	tb := strings.ToLower(strings.TrimSpace(string(b)))
	if isWildcard(ta) || isWildcard(tb) || ta == tb {
		return true
	}
	if !strings.Contains(ta, ",") && !strings.Contains(tb, ",") {
		return false
	}

	for _, pa := range strings.Split(ta, ",") {
		pa = strings.TrimSpace(pa)
		for _, pb := range strings.Split(tb, ",") {
			pb = strings.TrimSpace(pb)
			if isWildcard(pa) || isWildcard(pb) || pa == pb {
				return true
			}
		}
	}
	return false
}
