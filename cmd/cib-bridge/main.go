// Command cib-bridge is a standalone demo of the CIB bridge library: it
// configures and runs a Bridge against either a real CIB control endpoint
// or an in-process fake one until interrupted, then prints a summary of
// trigger and event counts. The in-process fake answers control commands
// but does not send triggers.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	bridge "github.com/dunedaq/cib-bridge"
	"github.com/dunedaq/cib-bridge/internal/logging"
)

func main() {
	var (
		cibHost      = flag.String("cib-host", "", "CIB control host (ignored with -fake-cib)")
		cibPort      = flag.Int("cib-port", 7000, "CIB control port (ignored with -fake-cib)")
		triggerBit   = flag.Int("trigger-bit", 0, "trigger bit index, 0-31")
		receiverPort = flag.Int("receiver-port", 9000, "desired inbound receiver port")
		runNumber    = flag.Int("run-number", 1, "run number to start")
		fakeCIB      = flag.Bool("fake-cib", true, "run against an in-process fake CIB instead of a real one")
		verbose      = flag.Bool("v", false, "verbose logging")
	)
	flag.Parse()

	logConfig := logging.DefaultConfig()
	if *verbose {
		logConfig.Level = logging.LevelDebug
	}
	logger := logging.NewLogger(logConfig)
	logging.SetDefault(logger)

	raw := &bridge.InMemoryRawFrameSink{}
	evt := &bridge.InMemoryEventSink{}
	b := bridge.New(raw, evt)

	var fake *bridge.FakeCIB
	host, port := *cibHost, uint16(*cibPort)
	if *fakeCIB {
		var err error
		fake, err = bridge.NewFakeCIB(`{"feedback":[{"type":"info","message":"ack"}]}`)
		if err != nil {
			logger.Error("failed to start fake CIB", "error", err)
			os.Exit(1)
		}
		defer fake.Close()
		host, port = fake.Host(), fake.Port()
		logger.Info("running against in-process fake CIB", "host", host, "port", port)
	}

	cfg := bridge.Config{
		CIBHost:         host,
		CIBPort:         port,
		CIBTriggerBit:   uint8(*triggerBit),
		ReceiverPort:    uint16(*receiverPort),
		ReceiverTimeout: 20 * time.Millisecond,
		Calibration:     bridge.CalibrationConfig{Enabled: false},
		BoardConfig:     json.RawMessage(`{}`),
	}

	if err := b.Configure(cfg); err != nil {
		logger.Error("configure failed", "error", err)
		os.Exit(1)
	}
	if err := b.Start(uint32(*runNumber)); err != nil {
		logger.Error("start failed", "error", err)
		os.Exit(1)
	}
	logger.Info("bridge running", "run_number", *runNumber)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("received shutdown signal")
	if err := b.Stop(); err != nil {
		logger.Error("stop failed", "error", err)
	}

	snap := b.Snapshot()
	fmt.Printf("triggers observed: %d, events sent: %d, events failed: %d\n",
		snap.NumTotalTriggers, snap.SentEvents, snap.FailedToSendEvents)
}
