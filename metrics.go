package bridge

import (
	"sync"
	"sync/atomic"
)

// windowCapacity bounds the sliding window of per-packet word counts.
const windowCapacity = 1000

// Metrics holds the lifetime and per-run counters published to the
// Monitoring View. All counters are lock-free word-sized atomics so the
// data-plane Receiver Runtime never blocks on a Monitoring View read; the
// bounded window is the one structure touched by both the writer
// (Receiver Runtime) and readers (Snapshot), guarded by a mutex.
type Metrics struct {
	numControlMessagesSent      atomic.Uint64
	numControlResponsesReceived atomic.Uint64
	numTotalTriggers            atomic.Uint64
	runTriggerCounter           atomic.Uint64
	lastReadoutTimestamp        atomic.Uint64
	sentEvents                  atomic.Uint64
	failedToSendEvents          atomic.Uint64
	lastSentTimestamp           atomic.Uint64

	windowMu  sync.Mutex
	window    [windowCapacity]int
	windowLen int
	windowPos int
	windowSum int
}

// NewMetrics returns a fresh, zeroed Metrics instance.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// RecordControlSend increments the control-message-sent counter; called
// by the Control Channel before each write.
func (m *Metrics) RecordControlSend() {
	m.numControlMessagesSent.Add(1)
}

// RecordControlResponse increments the control-response-received counter
// once per feedback entry in a reply.
func (m *Metrics) RecordControlResponse() {
	m.numControlResponsesReceived.Add(1)
}

// RecordTrigger updates the per-trigger counters: lifetime and per-run
// trigger counts and the last readout timestamp.
// Returns the 1-based run_trigger_counter value to use for this trigger's
// raw frame and event record.
func (m *Metrics) RecordTrigger(timestamp uint64) uint32 {
	m.numTotalTriggers.Add(1)
	counter := m.runTriggerCounter.Add(1)
	m.lastReadoutTimestamp.Store(timestamp)
	return uint32(counter)
}

// ResetRun resets the per-run trigger counter to 0.
// Returns the value the counter held just before the reset, for the stop
// summary log.
func (m *Metrics) ResetRun() uint64 {
	return m.runTriggerCounter.Swap(0)
}

// RecordEventSent increments sent_events and updates last_sent_timestamp.
func (m *Metrics) RecordEventSent(timestamp uint64) {
	m.sentEvents.Add(1)
	m.lastSentTimestamp.Store(timestamp)
}

// RecordEventFailed increments failed_to_send_events.
func (m *Metrics) RecordEventFailed() {
	m.failedToSendEvents.Add(1)
}

// PushWindow writes a per-packet word count into the fixed-capacity ring,
// overwriting the oldest entry once the ring is full.
func (m *Metrics) PushWindow(nWords int) {
	m.windowMu.Lock()
	defer m.windowMu.Unlock()
	if m.windowLen == windowCapacity {
		m.windowSum -= m.window[m.windowPos]
	} else {
		m.windowLen++
	}
	m.window[m.windowPos] = nWords
	m.windowSum += nWords
	m.windowPos = (m.windowPos + 1) % windowCapacity
}

// meanWindow computes the arithmetic mean of the bounded window.
func (m *Metrics) meanWindow() float64 {
	m.windowMu.Lock()
	defer m.windowMu.Unlock()
	if m.windowLen == 0 {
		return 0
	}
	return float64(m.windowSum) / float64(m.windowLen)
}

// Snapshot is a point-in-time view of all published counters.
type Snapshot struct {
	IsRunning                   bool
	IsConfigured                bool
	NumControlMessagesSent      uint64
	NumControlResponsesReceived uint64
	NumTotalTriggers            uint64
	RunTriggerCounter           uint64
	LastReadoutTimestamp        uint64
	SentEvents                  uint64
	FailedToSendEvents          uint64
	LastSentTimestamp           uint64
	MeanWindow                  float64
}

// Snapshot reads every counter and the window mean. Reads do not block
// the data path beyond the bounded window's short-held mutex.
func (m *Metrics) Snapshot() Snapshot {
	return Snapshot{
		NumControlMessagesSent:      m.numControlMessagesSent.Load(),
		NumControlResponsesReceived: m.numControlResponsesReceived.Load(),
		NumTotalTriggers:            m.numTotalTriggers.Load(),
		RunTriggerCounter:           m.runTriggerCounter.Load(),
		LastReadoutTimestamp:        m.lastReadoutTimestamp.Load(),
		SentEvents:                  m.sentEvents.Load(),
		FailedToSendEvents:          m.failedToSendEvents.Load(),
		LastSentTimestamp:           m.lastSentTimestamp.Load(),
		MeanWindow:                  m.meanWindow(),
	}
}
