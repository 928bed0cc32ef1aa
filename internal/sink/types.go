// Package sink defines the two downstream record shapes the Receiver
// Runtime builds from each trigger word, and the interfaces a host
// application implements to receive them. It has no dependency on the
// root package so that internal/receiver can build and dispatch these
// records without an import cycle.
package sink

import (
	"context"

	"github.com/dunedaq/cib-bridge/internal/wire"
)

// RawFrameSink is the downstream consumer of the 7-word raw hardware
// signal interface frame built from each trigger.
type RawFrameSink interface {
	SendRawFrame(ctx context.Context, frame RawFrame) error
}

// EventSink is the downstream consumer of the higher-level hardware
// signal interface event record built from each trigger.
type EventSink interface {
	SendEvent(ctx context.Context, evt Event) error
}

// RawFrame is the 7 x 32-bit little-endian structure consumed by
// lower-level downstream handlers.
type RawFrame [7]uint32

// rawFrameHeader is the fixed word-0 value for every frame: frame version
// 1, det id 1, link 1, slot/crate 0 — (1<<26) | (1<<6) | 1.
const rawFrameHeader = uint32(1<<26) | uint32(1<<6) | 1

// BuildRawFrame assembles the 7-word raw frame for one trigger. The
// additional 64 bits of the trigger word are currently zeroed here
// (reserved slots 3 and 4) pending firmware roadmap direction.
func BuildRawFrame(word wire.TriggerWord, triggerBit uint32, runTriggerCounter uint32) RawFrame {
	return RawFrame{
		0: rawFrameHeader,
		1: uint32(word.Timestamp & 0xFFFFFFFF),
		2: uint32(word.Timestamp >> 32),
		3: 0,
		4: 0,
		5: triggerBit,
		6: runTriggerCounter,
	}
}

// Event is the higher-level logical event record.
type Event struct {
	DeviceID  uint32
	SignalMap uint32
	Timestamp uint64
	Counter   uint32
	Run       uint32
}

// eventDeviceID is the fixed device_id value for every event record.
const eventDeviceID = 1

// BuildEvent assembles the event record for one trigger.
func BuildEvent(word wire.TriggerWord, triggerBit uint32, runTriggerCounter uint32, run uint32) Event {
	return Event{
		DeviceID:  eventDeviceID,
		SignalMap: triggerBit,
		Timestamp: word.Timestamp,
		Counter:   runTriggerCounter,
		Run:       run,
	}
}
