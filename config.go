package bridge

import (
	"encoding/json"
	"time"
)

// CalibrationConfig controls the optional calibration file sink.
type CalibrationConfig struct {
	Enabled   bool          `json:"enabled"`
	Directory string        `json:"directory"`
	Rotation  time.Duration `json:"rotation"`
}

// Config is the immutable-after-Configure configuration document.
// Configure takes it in typed form; the "conf" command that Register wires
// up decodes it from the JSON arguments the host passes.
type Config struct {
	CIBHost         string            `json:"cib_host"`
	CIBPort         uint16            `json:"cib_port"`
	CIBTriggerBit   uint8             `json:"cib_trigger_bit"`
	CIBInstance     uint32            `json:"cib_instance"`
	ReceiverPort    uint16            `json:"receiver_port"`
	ReceiverTimeout time.Duration     `json:"receiver_timeout"`
	Calibration     CalibrationConfig `json:"calibration"`
	BoardConfig     json.RawMessage   `json:"board_config"`
}

// TriggerBit returns the one-hot 32-bit mask for CIBTriggerBit.
func (c Config) TriggerBit() uint32 {
	return uint32(1) << c.CIBTriggerBit
}
