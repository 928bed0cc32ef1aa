// Package wire defines the bit-exact layout of the inbound CIB trigger
// packet and the JSON framing of the control channel, and validates both.
package wire

import (
	"encoding/binary"
	"fmt"
	"io"
	"unsafe"
)

// PacketHeader is the fixed-size header the CIB firmware emits ahead of
// every trigger word.
//
//	struct cib_packet_header {
//	  uint8_t  sequence_id;
//	  uint8_t  reserved0;   // firmware padding, consumed and ignored
//	  uint16_t packet_size; // bytes of payload following the header
//	};
type PacketHeader struct {
	SequenceID uint8
	Reserved0  uint8
	PacketSize uint16
}

// Compile-time size check: must be exactly 4 bytes on the wire.
var _ [4]byte = [unsafe.Sizeof(PacketHeader{})]byte{}

// TriggerWord is the single payload record carried by every packet.
//
//	struct cib_trigger_word {
//	  uint64_t timestamp;
//	  uint64_t additional; // reserved, currently opaque
//	};
type TriggerWord struct {
	Timestamp  uint64
	Additional uint64
}

// Compile-time size check: must be exactly 16 bytes on the wire.
var _ [16]byte = [unsafe.Sizeof(TriggerWord{})]byte{}

const (
	// HeaderSize is the on-wire size of PacketHeader.
	HeaderSize = 4
	// TriggerWordSize is the on-wire size of TriggerWord.
	TriggerWordSize = 16
)

// DecodeHeader reads exactly HeaderSize bytes and decodes them into a
// PacketHeader. Returns io.EOF unmodified when the connection closes
// cleanly before any byte of the header is read; any other short read is
// wrapped as io.ErrUnexpectedEOF via io.ReadFull.
func DecodeHeader(r io.Reader) (PacketHeader, error) {
	var buf [HeaderSize]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return PacketHeader{}, err
	}
	return PacketHeader{
		SequenceID: buf[0],
		Reserved0:  buf[1],
		PacketSize: binary.LittleEndian.Uint16(buf[2:4]),
	}, nil
}

// DecodeTriggerWord reads exactly TriggerWordSize bytes and decodes them
// into a TriggerWord.
func DecodeTriggerWord(r io.Reader) (TriggerWord, error) {
	var buf [TriggerWordSize]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return TriggerWord{}, err
	}
	return TriggerWord{
		Timestamp:  binary.LittleEndian.Uint64(buf[0:8]),
		Additional: binary.LittleEndian.Uint64(buf[8:16]),
	}, nil
}

// EncodeTriggerWord marshals a trigger word to its on-wire representation,
// used by the calibration sink to persist raw payload bytes.
func EncodeTriggerWord(w TriggerWord) []byte {
	buf := make([]byte, TriggerWordSize)
	binary.LittleEndian.PutUint64(buf[0:8], w.Timestamp)
	binary.LittleEndian.PutUint64(buf[8:16], w.Additional)
	return buf
}

// NumWords returns the number of trigger words a packet claims to carry:
// packet_size / sizeof(trigger_word). The firmware always sets this to
// 1; any other value is a decode anomaly the caller should warn on but
// still consume the single word that follows.
func NumWords(h PacketHeader) int {
	return int(h.PacketSize) / TriggerWordSize
}

// ValidateSize reports whether the header's packet_size matches exactly
// one trigger word, and a message describing the mismatch if not.
func ValidateSize(h PacketHeader) (ok bool, msg string) {
	if NumWords(h) == 1 {
		return true, ""
	}
	return false, fmt.Sprintf("unexpected packet_size %d (%d words, expected 1 of %d bytes)",
		h.PacketSize, NumWords(h), TriggerWordSize)
}
