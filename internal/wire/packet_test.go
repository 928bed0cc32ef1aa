package wire

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecodeHeaderAndValidateSize(t *testing.T) {
	buf := []byte{0x05, 0x00, 0x10, 0x00} // sequence=5, reserved=0, packet_size=16
	h, err := DecodeHeader(bytes.NewReader(buf))
	require.NoError(t, err)
	require.Equal(t, uint8(5), h.SequenceID)
	require.Equal(t, uint16(16), h.PacketSize)

	ok, _ := ValidateSize(h)
	require.True(t, ok)
	require.Equal(t, 1, NumWords(h))
}

func TestDecodeHeaderEOF(t *testing.T) {
	_, err := DecodeHeader(bytes.NewReader(nil))
	require.ErrorIs(t, err, io.EOF)
}

func TestDecodeHeaderShortRead(t *testing.T) {
	_, err := DecodeHeader(bytes.NewReader([]byte{0x01, 0x02}))
	require.Error(t, err)
}

func TestDecodeTriggerWordRoundTrip(t *testing.T) {
	word := TriggerWord{Timestamp: 0x0000000123456789, Additional: 0}
	encoded := EncodeTriggerWord(word)
	require.Len(t, encoded, TriggerWordSize)

	decoded, err := DecodeTriggerWord(bytes.NewReader(encoded))
	require.NoError(t, err)
	require.Equal(t, word, decoded)
}

func TestValidateSizeWrongPacketSize(t *testing.T) {
	h := PacketHeader{SequenceID: 0, PacketSize: 32}
	ok, msg := ValidateSize(h)
	require.False(t, ok)
	require.Contains(t, msg, "unexpected packet_size 32")
	require.Equal(t, 2, NumWords(h))
}
