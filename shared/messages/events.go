package messages

// PeerJoined is sent to every member of a room when a peer takes a seat,
// including the members that were already present when a client joins.
type PeerJoined struct {
	Peer string
	Seat int
}

// PeerLeft is sent to the remaining members of a room when a peer disconnects.
type PeerLeft struct {
	Peer string
}

// Relay carries an opaque payload between two peers of the same room. On the
// way up To names the destination; on the way down From names the sender.
type Relay struct {
	To      string
	From    string
	Payload []byte
}
