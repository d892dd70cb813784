package protocol

import (
	"testing"

	"github.com/automoto/blockshot/shared/messages"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInputPacketRoundTrip(t *testing.T) {
	in := messages.InputPacket{
		Start:         40,
		Handles:       []uint8{1},
		Symbols:       [][]byte{{0x10}, {0x00}, {0x1f}},
		Ack:           38,
		HasChecksum:   true,
		ChecksumFrame: 30,
		Checksum:      0xdeadbeefcafe,
	}

	b, err := EncodeInput(in)
	require.NoError(t, err)

	out, err := DecodeInput(b)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestDecodeRejectsRaggedRows(t *testing.T) {
	b, err := EncodeInput(messages.InputPacket{
		Handles: []uint8{0, 1},
		Symbols: [][]byte{{1, 2}, {3}},
	})
	require.NoError(t, err)

	_, err = DecodeInput(b)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestDecodeGarbage(t *testing.T) {
	_, err := DecodeInput([]byte{0xc1, 0xff, 0x00})
	assert.ErrorIs(t, err, ErrMalformed)
}
