// Package bridge implements the CIB bridge runtime: the lifecycle-driven
// core that turns a Central Instrumentation Board's TCP trigger stream
// into downstream raw-frame and event records for a DAQ host.
package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/dunedaq/cib-bridge/internal/calib"
	"github.com/dunedaq/cib-bridge/internal/ctrl"
	"github.com/dunedaq/cib-bridge/internal/hostif"
	"github.com/dunedaq/cib-bridge/internal/logging"
	"github.com/dunedaq/cib-bridge/internal/receiver"
	"github.com/dunedaq/cib-bridge/internal/wire"
)

// handshakePollInterval and handshakePollIterations size the handshake
// deadline: the receiver must signal ready within roughly 500ms of Start,
// checked with a channel receive against a deadline rather than a sleep
// loop — see the redesign note in this module's design documentation.
const (
	handshakePollInterval   = 10 * time.Millisecond
	handshakePollIterations = 50
	handshakeDeadline       = handshakePollInterval * handshakePollIterations
)

// state is the lifecycle state machine: Idle -> Configured -> Running ->
// Configured (Stopped). stateFaulted is declared but no code path enters
// it: an I/O error on the inbound connection ends the receiver loop and
// the Bridge stays Running until Stop.
type state int32

const (
	stateIdle state = iota
	stateConfigured
	stateRunning
	stateFaulted
)

// Bridge is the Lifecycle Controller: it owns the Control Channel, the
// per-run Receiver Runtime, the calibration sink, and the counters, and
// serializes the conf/start/stop commands a DAQ host issues against it.
// Not re-entrant — the caller must serialize calls; the host is expected
// to deliver conf/start/stop commands one at a time.
type Bridge struct {
	logger  *logging.Logger
	metrics *Metrics

	state atomic.Int32

	cfg       Config
	channel   *ctrl.Channel
	runner    *receiver.Runner
	calibSink *calib.Sink

	runNumber uint32

	rawSink   RawFrameSink
	eventSink EventSink
}

// New builds an idle Bridge. rawSink/eventSink are the downstream
// consumers wired in at construction time.
func New(rawSink RawFrameSink, eventSink EventSink) *Bridge {
	return &Bridge{
		logger:    logging.Default().With("component", "bridge"),
		metrics:   NewMetrics(),
		rawSink:   rawSink,
		eventSink: eventSink,
	}
}

// Register wires conf/start/stop against host and registers Bridge.Snapshot
// as the monitoring snapshot publisher.
func (b *Bridge) Register(host hostif.CommandHost) {
	host.RegisterCommand("conf", func(_ context.Context, args json.RawMessage) error {
		var cfg Config
		if err := json.Unmarshal(args, &cfg); err != nil {
			return ModuleError("conf", fmt.Sprintf("malformed configuration: %v", err))
		}
		return b.Configure(cfg)
	})
	host.RegisterCommand("start", func(_ context.Context, args json.RawMessage) error {
		var req struct {
			RunNumber uint32 `json:"run_number"`
		}
		if err := json.Unmarshal(args, &req); err != nil {
			return ModuleError("start", fmt.Sprintf("malformed start args: %v", err))
		}
		return b.Start(req.RunNumber)
	})
	host.RegisterCommand("stop", func(_ context.Context, _ json.RawMessage) error {
		return b.Stop()
	})
	host.PublishInfo("cib_bridge", b.Snapshot)
}

// Configure connects the Control Channel, sends the config command, and
// flips is_configured. Any step failing leaves the
// Bridge Idle with the error surfaced to the caller.
func (b *Bridge) Configure(cfg Config) error {
	b.logger.Info("configuring CIB bridge",
		"cib_host", cfg.CIBHost, "cib_port", cfg.CIBPort, "cib_instance", cfg.CIBInstance)
	b.state.Store(int32(stateIdle))

	channel := ctrl.New(cfg.CIBHost, cfg.CIBPort, b.metrics)
	if err := channel.Connect(); err != nil {
		return CommunicationError("conf", err)
	}

	ok, reply, err := channel.Send(wire.NewConfigCommand(cfg.BoardConfig))
	if err != nil {
		channel.Close()
		return CommunicationError("conf", err)
	}
	if !ok {
		channel.Close()
		return ModuleError("conf", fmt.Sprintf("CIB rejected configuration: %v", reply.Feedback))
	}

	b.cfg = cfg
	b.channel = channel
	b.calibSink = calib.New(cfg.Calibration.Directory, cfg.Calibration.Rotation, cfg.Calibration.Enabled)
	b.state.Store(int32(stateConfigured))
	return nil
}

// Start requires Configured, spawns the Receiver Runtime, waits for
// receiver_ready within handshakeDeadline, then sends start_run.
func (b *Bridge) Start(runNumber uint32) error {
	if state(b.state.Load()) != stateConfigured {
		return WrongState("start", "bridge is not configured")
	}

	b.runNumber = runNumber
	// A fresh sink per run, so a failure that disabled calibration in an
	// earlier run does not carry over into this one.
	b.calibSink = calib.New(b.cfg.Calibration.Directory, b.cfg.Calibration.Rotation, b.cfg.Calibration.Enabled)
	b.calibSink.Open(fmt.Sprintf("run%d", runNumber))

	runner := receiver.New(receiver.Config{
		Port:       b.cfg.ReceiverPort,
		Timeout:    b.cfg.ReceiverTimeout,
		TriggerBit: b.cfg.TriggerBit(),
		Run:        runNumber,
		Calib:      b.calibSink,
		RawSink:    b.rawSink,
		EventSink:  b.eventSink,
		Metrics:    b.metrics,
	})
	if err := runner.Start(); err != nil {
		return CommunicationError("start", err)
	}

	select {
	case <-runner.Ready():
	case <-time.After(handshakeDeadline):
		runner.Stop()
		runner.Wait()
		return ModuleError("start", "receiver did not become ready within the handshake deadline")
	}

	ok, reply, err := b.channel.Send(wire.NewStartRunCommand(runNumber))
	if err != nil {
		runner.Stop()
		runner.Wait()
		return CommunicationError("start", err)
	}
	if !ok {
		runner.Stop()
		runner.Wait()
		return ModuleError("start", fmt.Sprintf("CIB rejected start_run: %v", reply.Feedback))
	}

	b.runner = runner
	b.state.Store(int32(stateRunning))
	return nil
}

// Stop sends stop_run regardless of reply, requests the runner to stop
// and joins it, resets the per-run counter, and logs the combined
// per-run/lifetime summary.
func (b *Bridge) Stop() error {
	if state(b.state.Load()) != stateRunning {
		return WrongState("stop", "bridge is not running")
	}

	if b.channel != nil {
		if _, _, err := b.channel.Send(wire.NewStopRunCommand()); err != nil {
			b.logger.Warn("stop_run send failed", "error", err)
		}
	}

	if b.runner != nil {
		b.runner.Stop()
		b.runner.Wait()
		b.runner = nil
	}
	if b.calibSink != nil {
		b.calibSink.Close()
	}

	runCount := b.metrics.ResetRun()
	snap := b.metrics.Snapshot()
	b.logger.Info("run stopped",
		"run_trigger_count", runCount, "lifetime_triggers", snap.NumTotalTriggers)

	b.state.Store(int32(stateConfigured))
	return nil
}

// Snapshot combines the Monitoring View's counters with the lifecycle
// state flags.
func (b *Bridge) Snapshot() Snapshot {
	snap := b.metrics.Snapshot()
	st := state(b.state.Load())
	snap.IsConfigured = st == stateConfigured || st == stateRunning
	snap.IsRunning = st == stateRunning
	return snap
}

// Close tears the bridge down: if still Running, stops it first, then
// closes the control socket.
func (b *Bridge) Close() error {
	if state(b.state.Load()) == stateRunning {
		if err := b.Stop(); err != nil {
			b.logger.Warn("stop during close failed", "error", err)
		}
	}
	if b.channel != nil {
		return b.channel.Close()
	}
	return nil
}
