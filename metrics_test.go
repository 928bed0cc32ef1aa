package bridge

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMetricsTriggerCounters(t *testing.T) {
	m := NewMetrics()

	c1 := m.RecordTrigger(100)
	c2 := m.RecordTrigger(200)
	require.Equal(t, uint32(1), c1)
	require.Equal(t, uint32(2), c2)

	snap := m.Snapshot()
	require.Equal(t, uint64(2), snap.NumTotalTriggers)
	require.Equal(t, uint64(2), snap.RunTriggerCounter)
	require.Equal(t, uint64(200), snap.LastReadoutTimestamp)

	prev := m.ResetRun()
	require.Equal(t, uint64(2), prev)

	snap = m.Snapshot()
	require.Equal(t, uint64(0), snap.RunTriggerCounter, "per-run counter resets")
	require.Equal(t, uint64(2), snap.NumTotalTriggers, "lifetime counter is monotone across runs")
}

func TestMetricsEventCounters(t *testing.T) {
	m := NewMetrics()
	m.RecordEventSent(111)
	m.RecordEventSent(222)
	m.RecordEventFailed()

	snap := m.Snapshot()
	require.Equal(t, uint64(2), snap.SentEvents)
	require.Equal(t, uint64(1), snap.FailedToSendEvents)
	require.Equal(t, uint64(222), snap.LastSentTimestamp)
}

func TestMetricsControlCounters(t *testing.T) {
	m := NewMetrics()
	m.RecordControlSend()
	m.RecordControlResponse()
	m.RecordControlResponse()

	snap := m.Snapshot()
	require.Equal(t, uint64(1), snap.NumControlMessagesSent)
	require.Equal(t, uint64(2), snap.NumControlResponsesReceived)
}

func TestMetricsWindowMean(t *testing.T) {
	m := NewMetrics()
	m.PushWindow(1)
	m.PushWindow(1)
	m.PushWindow(2)

	snap := m.Snapshot()
	require.InDelta(t, 4.0/3.0, snap.MeanWindow, 1e-9)
}

func TestMetricsWindowOverflowDropsOldest(t *testing.T) {
	m := NewMetrics()
	for i := 0; i < windowCapacity+10; i++ {
		m.PushWindow(5)
	}
	require.Equal(t, windowCapacity, m.windowLen)
	require.InDelta(t, 5.0, m.Snapshot().MeanWindow, 1e-9)

	// Push one distinctive value and confirm the ring is still capped at
	// windowCapacity entries and the mean reflects the most recent entries,
	// not the dropped ones.
	m.PushWindow(0)
	require.Equal(t, windowCapacity, m.windowLen)
	want := (5.0*float64(windowCapacity-1) + 0.0) / float64(windowCapacity)
	require.InDelta(t, want, m.Snapshot().MeanWindow, 1e-9)
}
