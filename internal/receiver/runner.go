// Package receiver implements the Receiver Runtime: the data-plane
// listener that accepts the CIB's single inbound trigger connection and
// decodes its packet stream.
package receiver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/dunedaq/cib-bridge/internal/calib"
	"github.com/dunedaq/cib-bridge/internal/logging"
	"github.com/dunedaq/cib-bridge/internal/sink"
	"github.com/dunedaq/cib-bridge/internal/wire"
	"golang.org/x/sys/unix"
)

// maxPortProbe bounds how many successive ports the startup sequence will
// try before giving up.
const maxPortProbe = 64

// Metrics is the subset of the root package's Metrics the runtime updates
// directly. Declared locally (rather than importing the root package) to
// avoid an import cycle between the root package and internal/receiver.
type Metrics interface {
	RecordTrigger(timestamp uint64) uint32
	PushWindow(nWords int)
	RecordEventSent(timestamp uint64)
	RecordEventFailed()
}

// Config configures one Runner instance. Built fresh for every run by the
// Lifecycle Controller.
type Config struct {
	Port       uint16
	Timeout    time.Duration
	TriggerBit uint32
	Run        uint32
	Calib      *calib.Sink
	RawSink    sink.RawFrameSink
	EventSink  sink.EventSink
	Metrics    Metrics
}

// Runner owns one run's inbound TCP listener and the steady-state decode
// loop. Not reusable across runs; the Lifecycle Controller constructs a
// fresh Runner for each start_run.
type Runner struct {
	cfg    Config
	logger *logging.Logger

	running  atomic.Bool
	readyCh  chan struct{}
	readyOne sync.Once

	listener   net.Listener
	chosenPort uint16

	wg sync.WaitGroup
}

// New builds a Runner for cfg. Start must be called to bind and launch it.
func New(cfg Config) *Runner {
	return &Runner{
		cfg:     cfg,
		logger:  logging.Default().With("component", "receiver"),
		readyCh: make(chan struct{}),
	}
}

// Ready returns a channel closed exactly once the listener exists and the
// accept helper has been launched. The Lifecycle Controller selects on
// this against a deadline before sending start_run.
func (r *Runner) Ready() <-chan struct{} {
	return r.readyCh
}

// ChosenPort returns the port actually bound, valid once Ready is closed.
func (r *Runner) ChosenPort() uint16 {
	return r.chosenPort
}

// Start probes for a free port starting at cfg.Port, binds a listener, and
// launches the receiver goroutine. Returns synchronously once bind
// succeeds or the probe is exhausted; bind/listen failure is fatal and
// returned directly.
func (r *Runner) Start() error {
	ln, port, err := probeAndListen(r.cfg.Port, r.logger)
	if err != nil {
		return fmt.Errorf("receiver bind: %w", err)
	}
	r.listener = ln
	r.chosenPort = port
	r.running.Store(true)

	r.wg.Add(1)
	go r.loop()
	return nil
}

// Stop requests the run loop to exit. It does not forcibly interrupt an
// in-progress read; the loop notices on its next iteration or when the
// accept wait observes the cleared flag.
func (r *Runner) Stop() {
	r.running.Store(false)
}

// Wait blocks until the receiver goroutine has exited.
func (r *Runner) Wait() {
	r.wg.Wait()
}

type acceptResult struct {
	conn net.Conn
	err  error
}

func (r *Runner) loop() {
	defer r.wg.Done()

	acceptCh := make(chan acceptResult, 1)
	go func() {
		conn, err := r.listener.Accept()
		acceptCh <- acceptResult{conn, err}
	}()

	// Signal readiness now: the listener exists and accept is in flight.
	// Only after this may the Lifecycle Controller send start_run.
	r.readyOne.Do(func() { close(r.readyCh) })

	var conn net.Conn
waitAccept:
	for r.running.Load() {
		select {
		case res := <-acceptCh:
			if res.err != nil {
				r.logger.Error("accept failed", "error", res.err)
				r.listener.Close()
				return
			}
			conn = res.conn
			break waitAccept
		case <-time.After(r.cfg.Timeout):
		}
	}

	if conn == nil {
		// Cancelled before a connection arrived.
		if err := r.listener.Close(); err != nil {
			r.logger.Warn("error closing listener", "error", err)
		}
		return
	}

	r.steadyState(conn)
}

// steadyState runs the per-trigger decode loop over the one accepted
// connection until it closes, a read fails, or Stop is called.
func (r *Runner) steadyState(conn net.Conn) {
	defer func() {
		if err := conn.Close(); err != nil {
			r.logger.Warn("error closing connection", "error", err)
		}
		if err := r.listener.Close(); err != nil {
			r.logger.Warn("error closing listener", "error", err)
		}
	}()

	seq := sequenceTracker{first: true}
	ctx := context.Background()

	// Calibration rotation happens inside Sink.Write rather than as a
	// separate step ahead of the read below: both land the word in a
	// fresh file whenever the rotation period has elapsed, the only
	// difference being which statement notices it first.
	for r.running.Load() {
		hdr, err := wire.DecodeHeader(conn)
		if err != nil {
			if errors.Is(err, io.EOF) {
				r.logger.Info("CIB closed the trigger connection")
				return
			}
			r.logger.Error("trigger header read failed", "error", err)
			return
		}

		word, err := wire.DecodeTriggerWord(conn)
		if err != nil {
			r.logger.Error("trigger word read failed", "error", err)
			return
		}

		if ok, msg := wire.ValidateSize(hdr); !ok {
			r.logger.Warn(msg)
		}
		seq.check(hdr.SequenceID, r.logger)

		r.cfg.Metrics.PushWindow(wire.NumWords(hdr))

		if r.cfg.Calib != nil {
			r.cfg.Calib.Write(word)
		}

		counter := r.cfg.Metrics.RecordTrigger(word.Timestamp)

		frame := sink.BuildRawFrame(word, r.cfg.TriggerBit, counter)
		if r.cfg.RawSink != nil {
			if err := r.cfg.RawSink.SendRawFrame(ctx, frame); err != nil {
				r.logger.Warn("raw frame sink rejected frame", "error", err)
			}
		}

		evt := sink.BuildEvent(word, r.cfg.TriggerBit, counter, r.cfg.Run)
		if r.cfg.EventSink != nil {
			if err := r.cfg.EventSink.SendEvent(ctx, evt); err != nil {
				r.cfg.Metrics.RecordEventFailed()
				r.logger.Warn("event sink rejected event", "error", err)
				continue
			}
		}
		r.cfg.Metrics.RecordEventSent(word.Timestamp)
	}
}

// sequenceTracker checks sequence-id continuity across an 8-bit
// wraparound, warning on any gap.
type sequenceTracker struct {
	first bool
	prev  uint8
}

func (s *sequenceTracker) check(curr uint8, logger *logging.Logger) {
	if s.first {
		s.first = false
		if curr != 0 {
			logger.Warn("first CIB word has non-zero sequence id", "sequence_id", curr)
		}
		s.prev = curr
		return
	}
	want := s.prev + 1
	if curr != want {
		logger.Warn(fmt.Sprintf("Skipped CIB word sequence. Prev %d current %d", s.prev, curr))
	}
	s.prev = curr
}

// probeAndListen starts from startPort and tries successive IPv4 ports
// until one binds without EADDRINUSE, then
// listen with the OS's own maximum backlog (Go's net package already
// asks the kernel for net.core.somaxconn rather than a fixed constant, so
// no explicit backlog argument is needed here). Sets SO_REUSEADDR on each
// candidate socket before bind via golang.org/x/sys/unix.
func probeAndListen(startPort uint16, logger *logging.Logger) (net.Listener, uint16, error) {
	lc := net.ListenConfig{
		Control: func(_, _ string, c syscall.RawConn) error {
			var sockErr error
			err := c.Control(func(fd uintptr) {
				sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
			})
			if err != nil {
				return err
			}
			return sockErr
		},
	}

	port := startPort
	for i := 0; i < maxPortProbe; i++ {
		addr := fmt.Sprintf("0.0.0.0:%d", port)
		ln, err := lc.Listen(context.Background(), "tcp4", addr)
		if err == nil {
			if port != startPort {
				logger.Warn("receiver bound to a different port than configured",
					"configured_port", startPort, "chosen_port", port)
			} else {
				logger.Info("receiver listening", "port", port)
			}
			return ln, port, nil
		}
		if !errors.Is(err, syscall.EADDRINUSE) {
			return nil, 0, err
		}
		port++
	}
	return nil, 0, fmt.Errorf("no free port found starting at %d after %d attempts", startPort, maxPortProbe)
}
