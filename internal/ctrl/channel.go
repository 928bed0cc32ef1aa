// Package ctrl implements the Control Channel: a single synchronous
// request/reply TCP connection to the CIB.
package ctrl

import (
	"fmt"
	"net"
	"time"

	"github.com/dunedaq/cib-bridge/internal/logging"
	"github.com/dunedaq/cib-bridge/internal/wire"
)

// replyBufSize is the best-effort single-read buffer for control replies.
const replyBufSize = 1024

// dialTimeout bounds the initial connect attempt.
const dialTimeout = 5 * time.Second

// Counters is the subset of Metrics the Control Channel updates. Declared
// here (rather than depending on the root package's concrete Metrics
// type) to keep ctrl free of a dependency on the package that depends on
// it.
type Counters interface {
	RecordControlSend()
	RecordControlResponse()
}

// Channel owns one TCP client socket to the CIB's control endpoint.
// Single-threaded: every call is a blocking request/reply.
type Channel struct {
	host     string
	port     uint16
	conn     net.Conn
	logger   *logging.Logger
	counters Counters
}

// New builds a Channel for (host, port). Connect must be called before
// Send.
func New(host string, port uint16, counters Counters) *Channel {
	return &Channel{
		host:     host,
		port:     port,
		logger:   logging.Default().With("component", "ctrl"),
		counters: counters,
	}
}

// Connect resolves and connects to the CIB's control endpoint. Any
// resolver or connect failure is a transport error.
func (c *Channel) Connect() error {
	addr := net.JoinHostPort(c.host, fmt.Sprintf("%d", c.port))
	conn, err := net.DialTimeout("tcp4", addr, dialTimeout)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", addr, err)
	}
	c.conn = conn
	c.logger.Info("control channel connected", "addr", addr)
	return nil
}

// Send writes one JSON command, reads one reply, and classifies its
// feedback. ok is true iff no feedback entry classified as an error.
// Transport errors (write/read failure) are returned as errors; a
// protocol-level error reply still returns (false, nil) — the socket
// remains usable.
func (c *Channel) Send(cmd any) (ok bool, reply wire.Reply, err error) {
	if c.conn == nil {
		return false, wire.Reply{}, fmt.Errorf("control channel not connected")
	}

	data, err := wire.Encode(cmd)
	if err != nil {
		return false, wire.Reply{}, fmt.Errorf("encode command: %w", err)
	}

	if c.counters != nil {
		c.counters.RecordControlSend()
	}
	c.logger.Debug("sending control command", "payload", string(data))
	if _, err := c.conn.Write(data); err != nil {
		return false, wire.Reply{}, fmt.Errorf("write control command: %w", err)
	}

	buf := make([]byte, replyBufSize)
	n, err := c.conn.Read(buf)
	if err != nil {
		return false, wire.Reply{}, fmt.Errorf("read control reply: %w", err)
	}

	reply, err = wire.DecodeReply(buf[:n])
	if err != nil {
		return false, wire.Reply{}, fmt.Errorf("decode control reply: %w", err)
	}

	for _, f := range reply.Feedback {
		if c.counters != nil {
			c.counters.RecordControlResponse()
		}
		switch f.Classify() {
		case wire.SeverityError:
			c.logger.Error("CIB feedback", "message", f.Message)
		case wire.SeverityWarning:
			c.logger.Warn("CIB feedback", "message", f.Message)
		default:
			c.logger.Info("CIB feedback", "message", f.Message)
		}
	}

	return reply.OK(), reply, nil
}

// Close is idempotent: closing an already-closed or never-connected
// channel is a no-op.
func (c *Channel) Close() error {
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}
