package transport

import (
	"context"
	"errors"
)

// ErrConnectionFailed wraps every rendezvous or channel establishment
// failure. Callers match it with errors.Is.
var ErrConnectionFailed = errors.New("connection failed")

// ErrRoomTaken is returned by Open when the rendezvous layer already knows
// the room code.
var ErrRoomTaken = errors.New("room code already registered")

// Channel is a reliable, ordered message pipe to one remote peer. Send is
// safe for one writer; Recv for one reader. Recv returns an error once the
// channel is closed from either side.
type Channel interface {
	Send(payload []byte) error
	Recv() ([]byte, error)
	Close() error
}

// Listener accepts inbound peer channels for an open room
type Listener interface {
	Accept(ctx context.Context) (Channel, error)
	Close() error
}

// Transport is the rendezvous + data channel primitive the mesh runs on.
// Open makes this instance reachable under a room code; Dial resolves a code
// to the hosting peer and establishes a direct channel to it. The mesh treats
// both as opaque.
type Transport interface {
	Open(ctx context.Context, code string) (Listener, error)
	Dial(ctx context.Context, code string) (Channel, error)
}
