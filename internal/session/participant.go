package session

import "github.com/patka817/jump-game/pkg/protocol"

// State is the lobby/game phase of a session. The transition to StateInGame
// is one-way for the life of the session.
type State int

const (
	StateLobby State = iota
	StateInGame
)

func (s State) String() string {
	switch s {
	case StateLobby:
		return "lobby"
	case StateInGame:
		return "in-game"
	default:
		return "unknown"
	}
}

// Participant is one roster entry, keyed by peer ID on the host. The host's
// own entry is keyed by its name, since it has no peer ID relative to itself.
type Participant struct {
	Name   string
	Ready  bool
	Input  protocol.InputState
	IsHost bool
}

// PlayerView is the ordered, read-only projection of a participant
type PlayerView struct {
	Name  string
	Ready bool
	Input protocol.InputState
}

// HostView is a consistent snapshot of the coordinator's state
type HostView struct {
	State   State
	Code    string
	Players []PlayerView
}
