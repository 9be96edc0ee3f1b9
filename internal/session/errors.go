package session

import "errors"

// ErrStaleJoin rejects a connected message that arrives after the game
// already started. Late joiners are refused explicitly instead of silently
// entering a game they never saw begin.
var ErrStaleJoin = errors.New("join received after game start")

// ErrHostLost ends a client session whose host connection dropped
var ErrHostLost = errors.New("disconnected from host")
