package sink

import (
	"testing"

	"github.com/dunedaq/cib-bridge/internal/wire"
	"github.com/stretchr/testify/require"
)

func TestBuildRawFrame(t *testing.T) {
	word := wire.TriggerWord{Timestamp: 0x00000001_00000002}
	frame := BuildRawFrame(word, 1<<3, 7)

	require.Equal(t, rawFrameHeader, frame[0])
	require.Equal(t, uint32(0x00000002), frame[1])
	require.Equal(t, uint32(0x00000001), frame[2])
	require.Equal(t, uint32(0), frame[3])
	require.Equal(t, uint32(0), frame[4])
	require.Equal(t, uint32(1<<3), frame[5])
	require.Equal(t, uint32(7), frame[6])
}

func TestBuildEvent(t *testing.T) {
	word := wire.TriggerWord{Timestamp: 555}
	evt := BuildEvent(word, 1<<2, 9, 3)

	require.Equal(t, uint32(eventDeviceID), evt.DeviceID)
	require.Equal(t, uint32(1<<2), evt.SignalMap)
	require.Equal(t, uint64(555), evt.Timestamp)
	require.Equal(t, uint32(9), evt.Counter)
	require.Equal(t, uint32(3), evt.Run)
}
