// Package mesh multiplexes N independent point-to-point channels behind one
// addressable API. It assumes nothing about topology beyond "a host is
// reachable by room code"; the session layer decides who talks to whom.
package mesh

import (
	"context"
	"fmt"
	"sync"
	"time"

	petname "github.com/dustinkirkland/golang-petname"
	"github.com/rs/zerolog"

	"github.com/patka817/jump-game/internal/transport"
)

// DefaultDialTimeout bounds ConnectToPeer when the caller's context carries
// no deadline of its own.
const DefaultDialTimeout = 15 * time.Second

// PeerNotFoundError reports a send to a peer the mesh does not know
type PeerNotFoundError struct {
	PeerID string
}

func (e *PeerNotFoundError) Error() string {
	return fmt.Sprintf("peer %q not found", e.PeerID)
}

// Mesh owns zero or more direct peer connections over an opaque transport.
// All events surface on one stream; sends are fire-and-forget.
type Mesh struct {
	transport   transport.Transport
	log         zerolog.Logger
	dialTimeout time.Duration

	events chan Event

	mu       sync.Mutex
	peers    map[string]transport.Channel
	gone     map[string]bool // peers whose disconnect was already reported
	listener transport.Listener
	closed   bool
}

// New creates a mesh over the given transport
func New(t transport.Transport, log zerolog.Logger) *Mesh {
	return &Mesh{
		transport:   t,
		log:         log,
		dialTimeout: DefaultDialTimeout,
		events:      make(chan Event, 64),
		peers:       make(map[string]transport.Channel),
		gone:        make(map[string]bool),
	}
}

// SetDialTimeout overrides the ConnectToPeer deadline
func (m *Mesh) SetDialTimeout(d time.Duration) {
	if d > 0 {
		m.dialTimeout = d
	}
}

// Events returns the mesh event stream. The channel is never closed; callers
// stop consuming on Disconnected or via their own context.
func (m *Mesh) Events() <-chan Event { return m.events }

// Open makes this instance discoverable under the room code and begins
// accepting peers. It returns once the rendezvous registration is confirmed.
func (m *Mesh) Open(ctx context.Context, code string) error {
	ln, err := m.transport.Open(ctx, code)
	if err != nil {
		return err
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		ln.Close()
		return fmt.Errorf("mesh is closed")
	}
	m.listener = ln
	m.mu.Unlock()

	go m.acceptLoop(ln)
	m.emit(Open{Code: code})
	return nil
}

func (m *Mesh) acceptLoop(ln transport.Listener) {
	for {
		ch, err := ln.Accept(context.Background())
		if err != nil {
			m.mu.Lock()
			closed := m.closed
			m.mu.Unlock()
			if !closed {
				m.log.Warn().Err(err).Msg("accept failed, room no longer reachable")
				m.emit(Disconnected{Err: err})
			}
			return
		}
		id := m.assignPeerID()
		m.addPeer(id, ch)
		m.log.Debug().Str("peer", id).Msg("peer connected")
		m.emit(PeerConnected{PeerID: id})
		go m.readPump(id, ch)
	}
}

// ConnectToPeer establishes a direct channel to the host advertising the
// given room code. The peer is keyed by the code itself, so consumers can
// match later PeerDisconnected events against the code they joined.
// The result resolves exactly once: success, failure, or cancellation,
// whichever comes first.
func (m *Mesh) ConnectToPeer(ctx context.Context, code string) error {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.dialTimeout)
		defer cancel()
	}

	ch, err := m.transport.Dial(ctx, code)
	if err != nil {
		return err
	}

	m.addPeer(code, ch)
	m.emit(PeerConnected{PeerID: code})
	go m.readPump(code, ch)
	return nil
}

// SendTo delivers the payload to exactly one connected peer
func (m *Mesh) SendTo(peerID string, payload []byte) error {
	m.mu.Lock()
	ch := m.peers[peerID]
	m.mu.Unlock()
	if ch == nil {
		return &PeerNotFoundError{PeerID: peerID}
	}
	if err := ch.Send(payload); err != nil {
		m.dropPeer(peerID)
		return fmt.Errorf("send to %s: %w", peerID, err)
	}
	return nil
}

// Broadcast delivers the payload to every connected peer, best-effort: a
// peer whose channel fails mid-send is dropped without aborting the rest.
func (m *Mesh) Broadcast(payload []byte) {
	m.mu.Lock()
	targets := make(map[string]transport.Channel, len(m.peers))
	for id, ch := range m.peers {
		targets[id] = ch
	}
	m.mu.Unlock()

	for id, ch := range targets {
		if err := ch.Send(payload); err != nil {
			m.log.Warn().Err(err).Str("peer", id).Msg("broadcast send failed")
			m.dropPeer(id)
		}
	}
}

// Disconnect closes the channel to one peer and removes it from the mesh
func (m *Mesh) Disconnect(peerID string) {
	m.dropPeer(peerID)
}

// Peers returns the IDs of all currently connected peers
func (m *Mesh) Peers() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.peers))
	for id := range m.peers {
		ids = append(ids, id)
	}
	return ids
}

// Close tears down the listener and every peer channel. No Disconnected
// event is emitted for a local close.
func (m *Mesh) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	ln := m.listener
	chans := m.peers
	m.peers = map[string]transport.Channel{}
	m.mu.Unlock()

	if ln != nil {
		ln.Close()
	}
	for _, ch := range chans {
		ch.Close()
	}
	return nil
}

func (m *Mesh) readPump(id string, ch transport.Channel) {
	for {
		payload, err := ch.Recv()
		if err != nil {
			m.mu.Lock()
			closed := m.closed
			m.mu.Unlock()
			if !closed {
				m.dropPeer(id)
			}
			return
		}
		m.emit(Data{PeerID: id, Payload: payload})
	}
}

// dropPeer removes the peer and reports its disconnect at most once
func (m *Mesh) dropPeer(id string) {
	m.mu.Lock()
	ch, known := m.peers[id]
	reported := m.gone[id]
	delete(m.peers, id)
	m.gone[id] = true
	closed := m.closed
	m.mu.Unlock()

	if known {
		ch.Close()
	}
	if !reported && !closed {
		m.log.Debug().Str("peer", id).Msg("peer disconnected")
		m.emit(PeerDisconnected{PeerID: id})
	}
}

func (m *Mesh) addPeer(id string, ch transport.Channel) {
	m.mu.Lock()
	m.peers[id] = ch
	delete(m.gone, id)
	m.mu.Unlock()
}

// assignPeerID generates a readable ID for an accepted peer, unique within
// this mesh instance.
func (m *Mesh) assignPeerID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	for {
		id := petname.Generate(2, "-")
		if _, taken := m.peers[id]; !taken {
			return id
		}
	}
}

func (m *Mesh) emit(ev Event) {
	m.events <- ev
}
