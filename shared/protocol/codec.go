package protocol

import (
	"errors"
	"fmt"

	"github.com/automoto/blockshot/shared/messages"
	"github.com/hashicorp/go-msgpack/v2/codec"
)

// Version is the protocol version announced in JoinRoom. Peers running a
// different version are rejected by the server.
const Version = "blockshot/1"

var handle = &codec.MsgpackHandle{WriteExt: true}

var ErrMalformed = errors.New("malformed input packet")

// EncodeInput serializes an InputPacket for a Relay payload.
func EncodeInput(p messages.InputPacket) ([]byte, error) {
	var out []byte
	if err := codec.NewEncoderBytes(&out, handle).Encode(&p); err != nil {
		return nil, fmt.Errorf("encode input packet: %w", err)
	}
	return out, nil
}

// DecodeInput parses and validates an InputPacket. Every frame row must hold
// exactly one symbol per handle.
func DecodeInput(b []byte) (messages.InputPacket, error) {
	var p messages.InputPacket
	if err := codec.NewDecoderBytes(b, handle).Decode(&p); err != nil {
		return messages.InputPacket{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	for i, row := range p.Symbols {
		if len(row) != len(p.Handles) {
			return messages.InputPacket{}, fmt.Errorf("%w: frame %d has %d symbols for %d handles",
				ErrMalformed, p.Start+uint32(i), len(row), len(p.Handles))
		}
	}
	return p, nil
}
