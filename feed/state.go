package feed

import "fmt"

// State is the lifecycle state of a Controller.
//
// Every generation moves through
//
//	Disconnected → Opening → Open → Reading → Closing → Disconnected
//
// in that order. A generation whose open fails goes straight from Opening
// back to Disconnected; one canceled before its read loop starts goes from
// Opening or Open to Closing.
type State int32

const (
	Disconnected State = iota
	Opening
	Open
	Reading
	Closing
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Opening:
		return "opening"
	case Open:
		return "open"
	case Reading:
		return "reading"
	case Closing:
		return "closing"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// EndReason says why a generation ended.
type EndReason int

const (
	// OpenFailed: the transport could not be opened; nothing was acquired.
	OpenFailed EndReason = iota + 1
	// EndOfStream: the transport signaled end of data.
	EndOfStream
	// ReadFailed: a read returned an error.
	ReadFailed
	// Canceled: Disconnect or Cancel was called.
	Canceled
	// Overflowed: a line exceeded the cap under OverflowDisconnect.
	Overflowed
)

func (r EndReason) String() string {
	switch r {
	case OpenFailed:
		return "open_failed"
	case EndOfStream:
		return "end_of_stream"
	case ReadFailed:
		return "read_failed"
	case Canceled:
		return "canceled"
	case Overflowed:
		return "overflowed"
	default:
		return "unknown"
	}
}

// OverflowPolicy decides what a generation does when a line exceeds the
// configured maximum length.
type OverflowPolicy int

const (
	// OverflowDiscard drops the oversized line, logs it and keeps reading.
	OverflowDiscard OverflowPolicy = iota
	// OverflowDisconnect ends the generation with the overflow error.
	OverflowDisconnect
)

func (p OverflowPolicy) String() string {
	if p == OverflowDisconnect {
		return "disconnect"
	}
	return "discard"
}

// ParseOverflowPolicy parses "discard" or "disconnect". The empty string
// means OverflowDiscard.
func ParseOverflowPolicy(s string) (OverflowPolicy, error) {
	switch s {
	case "", "discard":
		return OverflowDiscard, nil
	case "disconnect":
		return OverflowDisconnect, nil
	default:
		return 0, fmt.Errorf("unknown overflow policy %q", s)
	}
}
