package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/patka817/jump-game/pkg/snapshot"
)

// MessageType tags a session protocol envelope
type MessageType string

const (
	// client -> host
	TypeConnected MessageType = "connected" // join announcement, carries player name
	TypeReady     MessageType = "ready"     // readiness toggle
	TypeInput     MessageType = "input"     // partial input state update

	// host -> clients
	TypePlayers   MessageType = "players"    // full roster mirror (names + ready flags)
	TypeStartGame MessageType = "startGame"  // lobby -> game transition
	TypeGameUpdate MessageType = "gameUpdate" // per-tick full snapshot
)

// UnknownMessageTypeError signals a protocol violation. An unrecognized tag
// means a version mismatch that cannot be locally repaired, so it is fatal for
// the session rather than skipped.
type UnknownMessageTypeError struct {
	Type string
}

func (e *UnknownMessageTypeError) Error() string {
	return fmt.Sprintf("unknown message type %q", e.Type)
}

// PlayerInfo is the roster entry broadcast to clients. Input state is
// deliberately absent to keep lobby traffic small.
type PlayerInfo struct {
	Name  string `json:"name"`
	Ready bool   `json:"ready"`
}

// Message is the tagged envelope exchanged between peers. Exactly one payload
// group is populated depending on Type.
type Message struct {
	Type MessageType `json:"type"`

	// connected
	PlayerName string `json:"playerName,omitempty"`

	// ready (pointer so a false value still serializes)
	Ready *bool `json:"ready,omitempty"`

	// input
	Input InputState `json:"input,omitempty"`

	// players
	Players []PlayerInfo `json:"players,omitempty"`

	// gameUpdate
	GameState *snapshot.GameSnapshot `json:"gameState,omitempty"`
}

// Connected builds a join announcement
func Connected(name string) Message {
	return Message{Type: TypeConnected, PlayerName: name}
}

// Ready builds a readiness toggle
func Ready(ready bool) Message {
	return Message{Type: TypeReady, Ready: &ready}
}

// Input builds a partial input update
func Input(in InputState) Message {
	return Message{Type: TypeInput, Input: in}
}

// Players builds a roster broadcast
func Players(players []PlayerInfo) Message {
	return Message{Type: TypePlayers, Players: players}
}

// StartGame builds the lobby -> game transition signal
func StartGame() Message {
	return Message{Type: TypeStartGame}
}

// GameUpdate builds a per-tick snapshot broadcast
func GameUpdate(s *snapshot.GameSnapshot) Message {
	return Message{Type: TypeGameUpdate, GameState: s}
}

// Encode marshals the envelope for the wire
func Encode(m Message) ([]byte, error) {
	return json.Marshal(m)
}

// Decode unmarshals an envelope and validates its tag. An unrecognized tag
// yields *UnknownMessageTypeError.
func Decode(data []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return Message{}, fmt.Errorf("malformed message: %w", err)
	}
	switch m.Type {
	case TypeConnected, TypeReady, TypeInput, TypePlayers, TypeStartGame, TypeGameUpdate:
		return m, nil
	default:
		return Message{}, &UnknownMessageTypeError{Type: string(m.Type)}
	}
}
