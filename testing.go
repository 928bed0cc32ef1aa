package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"sync"

	"github.com/dunedaq/cib-bridge/internal/wire"
)

// FakeCIB is a minimal stand-in for a real Central Instrumentation Board:
// it accepts control connections, replies to every command on each with a
// fixed feedback payload, and can dial the bridge's inbound listener to
// push trigger packets. Used by package tests and cmd/cib-bridge's
// -fake-cib mode so the bridge can be exercised without real hardware.
type FakeCIB struct {
	reply string

	mu       sync.Mutex
	listener net.Listener
	commands []string
}

// NewFakeCIB starts listening for control connections on an OS-assigned
// loopback port and replies to every command with reply (a raw JSON
// document, typically `{"feedback":[{"type":"info","message":"ok"}]}`).
func NewFakeCIB(reply string) (*FakeCIB, error) {
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("fake CIB listen: %w", err)
	}
	f := &FakeCIB{reply: reply, listener: ln}
	go f.serve()
	return f, nil
}

// Port returns the control endpoint's port.
func (f *FakeCIB) Port() uint16 {
	_, portStr, _ := net.SplitHostPort(f.listener.Addr().String())
	var port uint16
	fmt.Sscanf(portStr, "%d", &port)
	return port
}

// Host returns the control endpoint's host, always the loopback address.
func (f *FakeCIB) Host() string {
	return "127.0.0.1"
}

func (f *FakeCIB) serve() {
	for {
		conn, err := f.listener.Accept()
		if err != nil {
			return
		}
		go f.handle(conn)
	}
}

func (f *FakeCIB) handle(conn net.Conn) {
	defer conn.Close()
	buf := make([]byte, 1024)
	for {
		n, err := conn.Read(buf)
		if err != nil {
			return
		}
		f.mu.Lock()
		f.commands = append(f.commands, string(buf[:n]))
		f.mu.Unlock()
		if _, err := conn.Write([]byte(f.reply)); err != nil {
			return
		}
	}
}

// Commands returns every control message received so far, each as the raw
// JSON text the bridge sent.
func (f *FakeCIB) Commands() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.commands))
	copy(out, f.commands)
	return out
}

// Close stops accepting new control connections.
func (f *FakeCIB) Close() error {
	return f.listener.Close()
}

// SendTriggers dials the bridge's inbound receiver listener and writes one
// framed packet per word, simulating the CIB's trigger stream.
func (f *FakeCIB) SendTriggers(host string, port uint16, words []wire.TriggerWord) error {
	conn, err := net.Dial("tcp4", net.JoinHostPort(host, fmt.Sprintf("%d", port)))
	if err != nil {
		return fmt.Errorf("fake CIB dial receiver: %w", err)
	}
	defer conn.Close()

	for i, w := range words {
		hdr := []byte{byte(i % 256), 0, byte(wire.TriggerWordSize), 0}
		if _, err := conn.Write(hdr); err != nil {
			return fmt.Errorf("fake CIB write header: %w", err)
		}
		if _, err := conn.Write(wire.EncodeTriggerWord(w)); err != nil {
			return fmt.Errorf("fake CIB write word: %w", err)
		}
	}
	return nil
}

// InMemoryRawFrameSink records every raw frame it receives, for assertions
// in tests and the demo command.
type InMemoryRawFrameSink struct {
	mu     sync.Mutex
	frames []RawFrame
}

func (s *InMemoryRawFrameSink) SendRawFrame(_ context.Context, frame RawFrame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = append(s.frames, frame)
	return nil
}

// Frames returns every frame recorded so far.
func (s *InMemoryRawFrameSink) Frames() []RawFrame {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]RawFrame, len(s.frames))
	copy(out, s.frames)
	return out
}

// InMemoryEventSink records every event it receives, for assertions in
// tests and the demo command.
type InMemoryEventSink struct {
	mu     sync.Mutex
	events []Event
}

func (s *InMemoryEventSink) SendEvent(_ context.Context, evt Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, evt)
	return nil
}

// Events returns every event recorded so far.
func (s *InMemoryEventSink) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}

// FakeHost is a minimal in-process hostif.CommandHost for tests that need
// to exercise Bridge.Register without a real DAQ module host.
type FakeHost struct {
	mu       sync.Mutex
	commands map[string]func(ctx context.Context, args json.RawMessage) error
	info     map[string]any
}

// NewFakeHost builds an empty FakeHost.
func NewFakeHost() *FakeHost {
	return &FakeHost{
		commands: make(map[string]func(ctx context.Context, args json.RawMessage) error),
		info:     make(map[string]any),
	}
}

func (h *FakeHost) RegisterCommand(name string, handler func(ctx context.Context, args json.RawMessage) error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.commands[name] = handler
}

func (h *FakeHost) PublishInfo(name string, snapshot any) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.info[name] = snapshot
}

// Invoke calls a previously registered command by name, for tests.
func (h *FakeHost) Invoke(ctx context.Context, name string, args json.RawMessage) error {
	h.mu.Lock()
	handler, ok := h.commands[name]
	h.mu.Unlock()
	if !ok {
		return fmt.Errorf("no command registered: %s", name)
	}
	return handler(ctx, args)
}
