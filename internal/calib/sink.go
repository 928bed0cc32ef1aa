// Package calib implements the optional rotating calibration file sink.
// It is advisory: any write or open failure disables the sink for the
// remainder of the run rather than disrupting the main trigger pipeline.
package calib

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/dunedaq/cib-bridge/internal/logging"
	"github.com/dunedaq/cib-bridge/internal/wire"
)

// Sink is a tagged-variant rotating binary file sink: disabled, or open
// with a live file handle and a last-rotation timestamp.
type Sink struct {
	mu       sync.Mutex
	enabled  bool
	dir      string
	rotation time.Duration
	prefix   string
	file     *os.File
	lastOpen time.Time
	rotSeq   uint64
	logger   *logging.Logger
}

// New builds a Sink for the given directory and rotation period. The sink
// does nothing until Open is called with a run prefix; pass enabled=false
// to build a permanently inert sink (calibration disabled in Config).
func New(dir string, rotation time.Duration, enabled bool) *Sink {
	if dir != "" && !strings.HasSuffix(dir, "/") {
		dir = dir + "/"
	}
	return &Sink{
		enabled:  enabled,
		dir:      dir,
		rotation: rotation,
		logger:   logging.Default().With("component", "calib"),
	}
}

// Open establishes the run prefix (e.g. "run42") and performs the first
// rotation. A no-op if the sink is disabled.
func (s *Sink) Open(prefix string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.enabled {
		return
	}
	s.prefix = prefix
	s.rotateLocked()
}

// Write appends the raw trigger-word bytes, rotating first if due, and
// flushes immediately so a crash loses at most one word. Any failure
// disables the sink and logs a warning; the caller never sees an error
// (the calibration stream is advisory).
func (s *Sink) Write(word wire.TriggerWord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.enabled {
		return
	}

	if time.Since(s.lastOpen) >= s.rotation {
		s.rotateLocked()
		if !s.enabled {
			return
		}
	}

	if _, err := s.file.Write(wire.EncodeTriggerWord(word)); err != nil {
		s.logger.Warn("calibration write failed, disabling sink", "error", err)
		s.disableLocked()
		return
	}
	if err := s.file.Sync(); err != nil {
		s.logger.Warn("calibration flush failed, disabling sink", "error", err)
		s.disableLocked()
	}
}

// rotateLocked closes the current file (if any) and opens a fresh
// timestamped file. Caller must hold s.mu.
func (s *Sink) rotateLocked() {
	if s.file != nil {
		if err := s.file.Close(); err != nil {
			s.logger.Warn("error closing calibration file", "error", err)
		}
		s.file = nil
	}

	now := time.Now()
	s.rotSeq++
	name := s.filenameLocked(now)
	f, err := os.Create(name)
	if err != nil {
		s.logger.Warn("calibration open failed, disabling sink", "path", name, "error", err)
		s.disableLocked()
		return
	}
	s.file = f
	s.lastOpen = now
	s.logger.Info("calibration file opened", "path", name)
}

// filenameLocked builds "{dir}{prefix}_YYYY-MM-DD_HH.MM.SS_NNN.calib" in
// local time. The zero-padded rotation counter disambiguates rotations
// that land within the same wall-clock second, which the timestamp alone
// can't distinguish.
func (s *Sink) filenameLocked(now time.Time) string {
	return fmt.Sprintf("%s%s_%s_%03d.calib", s.dir, s.prefix, now.Format("2006-01-02_15.04.05"), s.rotSeq)
}

// disableLocked marks the sink disabled and releases any open file
// handle. Caller must hold s.mu.
func (s *Sink) disableLocked() {
	s.enabled = false
	if s.file != nil {
		s.file.Close()
		s.file = nil
	}
}

// Close closes the underlying file, if any. Safe to call even if the
// sink was never opened or has been disabled.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}

// Enabled reports whether the sink is still accepting writes.
func (s *Sink) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enabled
}
