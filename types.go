package bridge

import (
	"github.com/dunedaq/cib-bridge/internal/sink"
	"github.com/dunedaq/cib-bridge/internal/wire"
)

// RawFrameSink is the downstream consumer of the 7-word raw hardware
// signal interface frame built from each trigger.
type RawFrameSink = sink.RawFrameSink

// EventSink is the downstream consumer of the higher-level hardware
// signal interface event record built from each trigger.
type EventSink = sink.EventSink

// RawFrame is the 7 x 32-bit little-endian structure consumed by
// lower-level downstream handlers.
type RawFrame = sink.RawFrame

// Event is the higher-level logical event record.
type Event = sink.Event

// BuildRawFrame assembles the 7-word raw frame for one trigger.
func BuildRawFrame(word wire.TriggerWord, triggerBit uint32, runTriggerCounter uint32) RawFrame {
	return sink.BuildRawFrame(word, triggerBit, runTriggerCounter)
}

// BuildEvent assembles the event record for one trigger.
func BuildEvent(word wire.TriggerWord, triggerBit uint32, runTriggerCounter uint32, run uint32) Event {
	return sink.BuildEvent(word, triggerBit, runTriggerCounter, run)
}
