package messages

// JoinRoom is sent by a client after connecting to the signaling server to
// ask for a seat in a room that starts once Next peers are present.
type JoinRoom struct {
	Room    string
	Next    int
	Version string
}

// Welcome is sent by the server when a client's join request is accepted.
// Seat is the join order within the room and becomes the player handle.
type Welcome struct {
	Self string
	Room string
	Seat int
	Next int
}

// JoinRejected is sent by the server when a client cannot be seated.
type JoinRejected struct {
	Reason string
}
