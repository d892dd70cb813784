package messages

// InputPacket is the rollback payload exchanged inside Relay messages.
//
// Symbols[i][j] is the input of Handles[j] for frame Start+i. Every packet
// repeats all inputs the receiver has not acknowledged yet, so a lost packet
// is covered by the next one.
type InputPacket struct {
	Start   uint32
	Handles []uint8
	Symbols [][]byte

	// Ack is one past the last contiguous frame received from the
	// destination peer (0 means nothing received yet).
	Ack uint32

	// Checksum of the sender's state at the start of ChecksumFrame.
	// HasChecksum is false when no checksum is attached.
	HasChecksum   bool
	ChecksumFrame uint32
	Checksum      uint64

	// Disconnect announces the sender is leaving the session.
	Disconnect bool
}
