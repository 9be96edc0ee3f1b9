package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/patka817/jump-game/internal/mesh"
	"github.com/patka817/jump-game/pkg/protocol"
	"github.com/patka817/jump-game/pkg/snapshot"
)

// ClientEvent is a tagged variant delivered on the client event stream
type ClientEvent interface{ isClientEvent() }

// RosterUpdated carries the full roster mirror, replaced wholesale
type RosterUpdated struct{ Players []protocol.PlayerInfo }

// GameStarted mirrors the host's lobby -> game transition
type GameStarted struct{}

// SnapshotReceived carries one tick's full game state
type SnapshotReceived struct{ Snapshot *snapshot.GameSnapshot }

// SessionEnded reports why the session is over. Err wraps ErrHostLost when
// the host connection dropped, or the protocol error that killed the
// session.
type SessionEnded struct{ Err error }

func (RosterUpdated) isClientEvent()    {}
func (GameStarted) isClientEvent()      {}
func (SnapshotReceived) isClientEvent() {}
func (SessionEnded) isClientEvent()     {}

// Client mirrors host-broadcast state and relays local input and readiness.
// Its roster and snapshot are private mirrors of whatever the host last
// sent; the client never mutates them incrementally.
type Client struct {
	name string
	net  *mesh.Mesh
	log  zerolog.Logger

	// inputs is the local input source; forwarding to the host is armed by
	// the first gameUpdate and registered at most once per session.
	inputs      <-chan protocol.InputState
	forwardOnce sync.Once

	events chan ClientEvent
	done   chan struct{}

	mu       sync.Mutex
	hostID   string
	state    State
	players  []protocol.PlayerInfo
	snapshot *snapshot.GameSnapshot
}

// NewClient creates an unjoined client. inputs may be nil if the caller
// never produces local input.
func NewClient(name string, net *mesh.Mesh, inputs <-chan protocol.InputState, log zerolog.Logger) *Client {
	return &Client{
		name:   name,
		net:    net,
		log:    log.With().Str("role", "client").Str("name", name).Logger(),
		inputs: inputs,
		events: make(chan ClientEvent, 64),
		done:   make(chan struct{}),
		state:  StateLobby,
	}
}

// Events returns the client event stream
func (c *Client) Events() <-chan ClientEvent { return c.events }

// Join connects to the host advertising the room code and announces this
// player. On failure the stored host code is cleared so the user can retry
// with a fresh one.
func (c *Client) Join(ctx context.Context, code string) error {
	c.mu.Lock()
	c.hostID = code
	c.mu.Unlock()

	if err := c.net.ConnectToPeer(ctx, code); err != nil {
		c.mu.Lock()
		c.hostID = ""
		c.mu.Unlock()
		return fmt.Errorf("join %s: %w", code, err)
	}

	payload, err := protocol.Encode(protocol.Connected(c.name))
	if err != nil {
		return err
	}
	if err := c.net.SendTo(code, payload); err != nil {
		c.mu.Lock()
		c.hostID = ""
		c.mu.Unlock()
		return fmt.Errorf("join %s: %w", code, err)
	}

	go c.loop()
	return nil
}

// SendReady unicasts a readiness toggle to the host
func (c *Client) SendReady(ready bool) error {
	c.mu.Lock()
	hostID := c.hostID
	c.mu.Unlock()
	if hostID == "" {
		return ErrHostLost
	}
	payload, err := protocol.Encode(protocol.Ready(ready))
	if err != nil {
		return err
	}
	return c.net.SendTo(hostID, payload)
}

// State returns the client's mirrored session phase
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Players returns the latest roster mirror
func (c *Client) Players() []protocol.PlayerInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.players
}

// Snapshot returns the latest game snapshot, nil before the first tick
func (c *Client) Snapshot() *snapshot.GameSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshot
}

// Done is closed when the session loop stops
func (c *Client) Done() <-chan struct{} { return c.done }

func (c *Client) loop() {
	defer close(c.done)
	for ev := range c.net.Events() {
		switch e := ev.(type) {
		case mesh.Data:
			if err := c.handleData(e.Payload); err != nil {
				c.log.Error().Err(err).Msg("fatal protocol error")
				c.end(err)
				return
			}
		case mesh.PeerDisconnected:
			c.mu.Lock()
			isHost := e.PeerID == c.hostID
			if isHost {
				// Clear the code so the user can retry a fresh join
				c.hostID = ""
			}
			c.mu.Unlock()
			if isHost {
				c.log.Warn().Msg("host connection lost")
				c.end(ErrHostLost)
				return
			}
		case mesh.Disconnected:
			c.end(fmt.Errorf("%w: %v", ErrHostLost, e.Err))
			return
		}
	}
}

func (c *Client) handleData(payload []byte) error {
	m, err := protocol.Decode(payload)
	if err != nil {
		return err
	}

	switch m.Type {
	case protocol.TypePlayers:
		// Wholesale replacement: the host sends complete roster state
		c.mu.Lock()
		c.players = m.Players
		c.mu.Unlock()
		c.emit(RosterUpdated{Players: m.Players})

	case protocol.TypeStartGame:
		c.mu.Lock()
		c.state = StateInGame
		c.mu.Unlock()
		c.emit(GameStarted{})

	case protocol.TypeGameUpdate:
		c.mu.Lock()
		c.snapshot = m.GameState
		c.mu.Unlock()
		// The first update means the game is live on the host; start
		// relaying local input. Armed exactly once per session.
		c.forwardOnce.Do(c.startInputForwarding)
		c.emit(SnapshotReceived{Snapshot: m.GameState})

	default:
		// Clients never receive the client -> host vocabulary
		return &protocol.UnknownMessageTypeError{Type: string(m.Type)}
	}
	return nil
}

func (c *Client) startInputForwarding() {
	if c.inputs == nil {
		return
	}
	go func() {
		for {
			select {
			case in, ok := <-c.inputs:
				if !ok {
					return
				}
				c.mu.Lock()
				hostID := c.hostID
				c.mu.Unlock()
				if hostID == "" {
					return
				}
				payload, err := protocol.Encode(protocol.Input(in))
				if err != nil {
					c.log.Error().Err(err).Msg("input encode failed")
					continue
				}
				if err := c.net.SendTo(hostID, payload); err != nil {
					c.log.Warn().Err(err).Msg("input send failed")
				}
			case <-c.done:
				return
			}
		}
	}()
}

func (c *Client) end(err error) {
	c.emit(SessionEnded{Err: err})
}

func (c *Client) emit(ev ClientEvent) {
	select {
	case c.events <- ev:
	default:
		// A stalled consumer must not wedge the session loop; roster and
		// snapshot mirrors are full-state, so dropping an event only costs
		// staleness until the next broadcast.
		c.log.Warn().Msg("client event dropped")
	}
}
