package ctrl

import (
	"encoding/json"
	"net"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeCounters struct {
	sends     int
	responses int
}

func (f *fakeCounters) RecordControlSend()     { f.sends++ }
func (f *fakeCounters) RecordControlResponse() { f.responses++ }

// startFakeCIB spins up a TCP server that reads one JSON command and
// replies with the given raw JSON payload, then closes the connection.
func startFakeCIB(t *testing.T, reply string) (host string, port uint16, done chan struct{}) {
	t.Helper()
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	require.NoError(t, err)

	host, portStr, err := net.SplitHostPort(ln.Addr().String())
	require.NoError(t, err)
	p, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	done = make(chan struct{})
	go func() {
		defer close(done)
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		defer ln.Close()

		buf := make([]byte, 1024)
		n, err := conn.Read(buf)
		if err != nil {
			return
		}
		var got map[string]any
		_ = json.Unmarshal(buf[:n], &got)

		conn.Write([]byte(reply))
	}()
	return host, uint16(p), done
}

func TestChannelSendOK(t *testing.T) {
	host, port, done := startFakeCIB(t, `{"feedback":[{"type":"info","message":"ack"}]}`)

	counters := &fakeCounters{}
	ch := New(host, port, counters)
	require.NoError(t, ch.Connect())
	defer ch.Close()

	ok, reply, err := ch.Send(map[string]string{"command": "stop_run"})
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, reply.Feedback, 1)
	require.Equal(t, 1, counters.sends)
	require.Equal(t, 1, counters.responses)

	<-done
}

func TestChannelSendErrorFeedback(t *testing.T) {
	host, port, done := startFakeCIB(t, `{"feedback":[{"type":"Error","message":"bad config"}]}`)

	ch := New(host, port, nil)
	require.NoError(t, ch.Connect())
	defer ch.Close()

	ok, _, err := ch.Send(map[string]string{"command": "config"})
	require.NoError(t, err)
	require.False(t, ok)

	<-done
}

func TestChannelSendNotConnected(t *testing.T) {
	ch := New("127.0.0.1", 0, nil)
	_, _, err := ch.Send(map[string]string{"command": "stop_run"})
	require.Error(t, err)
}

func TestChannelCloseIdempotent(t *testing.T) {
	ch := New("127.0.0.1", 0, nil)
	require.NoError(t, ch.Close())
	require.NoError(t, ch.Close())
}
