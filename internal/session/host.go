// Package session implements the lobby/game protocol on top of the peer
// mesh: a host coordinator owning the canonical roster, and a client
// mirroring host broadcasts.
//
// Ownership is deliberately asymmetric: the host is the single writer of the
// roster and mutates it incrementally; clients hold a private mirror replaced
// wholesale on every players broadcast. That asymmetry is what makes the
// protocol safe without any cross-peer locking.
package session

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/patka817/jump-game/internal/mesh"
	"github.com/patka817/jump-game/pkg/protocol"
	"github.com/patka817/jump-game/pkg/snapshot"
)

type hostMsg interface{ isHostMsg() }

// setReady applies the host's own readiness toggle
type setReady struct{ Ready bool }

// localInput applies the host's own input, merged like any remote input
type localInput struct{ Input protocol.InputState }

// getView asks the loop for a consistent projection of its state
type getView struct{ Reply chan HostView }

// getGamePlayers asks for the name-keyed, input-only roster view
type getGamePlayers struct {
	Reply chan map[string]protocol.InputState
}

type hostShutdown struct{}

func (setReady) isHostMsg()       {}
func (localInput) isHostMsg()     {}
func (getView) isHostMsg()        {}
func (getGamePlayers) isHostMsg() {}
func (hostShutdown) isHostMsg()   {}

// Host is the session coordinator. It owns the canonical roster, arbitrates
// the lobby -> game transition and is the only writer of session state. All
// mutation happens on one goroutine fed by the inbox and the mesh event
// stream.
type Host struct {
	name string
	code string
	net  *mesh.Mesh
	log  zerolog.Logger

	inbox chan hostMsg

	// loop-owned state
	state   State
	players map[string]*Participant // keyed by peer ID, host by its own name
	order   []string                // roster insertion order

	done chan struct{}
	err  error

	ctx    context.Context
	cancel context.CancelFunc
}

// NewHost creates the coordinator for an already-open mesh and starts its
// loop. The host itself enters the roster first, unready, with default
// input.
func NewHost(parent context.Context, name, code string, net *mesh.Mesh, log zerolog.Logger) *Host {
	ctx, cancel := context.WithCancel(parent)
	h := &Host{
		name:    name,
		code:    code,
		net:     net,
		log:     log.With().Str("role", "host").Str("code", code).Logger(),
		inbox:   make(chan hostMsg, 64),
		state:   StateLobby,
		players: make(map[string]*Participant),
		done:    make(chan struct{}),
		ctx:     ctx,
		cancel:  cancel,
	}
	h.players[name] = &Participant{
		Name:   name,
		Ready:  false,
		Input:  protocol.DefaultInput(),
		IsHost: true,
	}
	h.order = append(h.order, name)

	go h.loop()
	return h
}

// SetReady marks the host's own entry; evaluated exactly like a remote ready
func (h *Host) SetReady(ready bool) {
	h.send(setReady{Ready: ready})
}

// ApplyInput merges the host's own input state
func (h *Host) ApplyInput(in protocol.InputState) {
	h.send(localInput{Input: in})
}

// View returns a consistent snapshot of the session state
func (h *Host) View() HostView {
	reply := make(chan HostView, 1)
	h.send(getView{Reply: reply})
	select {
	case v := <-reply:
		return v
	case <-h.done:
		return HostView{State: h.state}
	}
}

// PlayersForGame returns the roster keyed by player name with input state
// only. Peer identifiers never reach game logic.
func (h *Host) PlayersForGame() map[string]protocol.InputState {
	reply := make(chan map[string]protocol.InputState, 1)
	h.send(getGamePlayers{Reply: reply})
	select {
	case v := <-reply:
		return v
	case <-h.done:
		return nil
	}
}

// BroadcastSnapshot ships one tick's full game state to every client. Driven
// by the external render loop while in game.
func (h *Host) BroadcastSnapshot(snap *snapshot.GameSnapshot) {
	payload, err := protocol.Encode(protocol.GameUpdate(snap))
	if err != nil {
		h.log.Error().Err(err).Msg("snapshot encode failed")
		return
	}
	h.net.Broadcast(payload)
}

// Done is closed when the session loop stops
func (h *Host) Done() <-chan struct{} { return h.done }

// Err reports why the loop stopped, nil for a clean shutdown. Read only
// after Done is closed.
func (h *Host) Err() error { return h.err }

// Stop shuts the coordinator down
func (h *Host) Stop() {
	h.send(hostShutdown{})
}

func (h *Host) send(m hostMsg) {
	select {
	case h.inbox <- m:
	case <-h.done:
	}
}

func (h *Host) loop() {
	defer close(h.done)
	for {
		select {
		case <-h.ctx.Done():
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case setReady:
				h.handleReady(h.name, msg.Ready)
			case localInput:
				h.handleInput(h.name, msg.Input)
			case getView:
				msg.Reply <- h.view()
			case getGamePlayers:
				msg.Reply <- h.gamePlayers()
			case hostShutdown:
				h.cancel()
				return
			}

		case ev := <-h.net.Events():
			switch e := ev.(type) {
			case mesh.Data:
				if err := h.handleData(e.PeerID, e.Payload); err != nil {
					// Protocol violation: a message we cannot interpret
					// means a version mismatch, not a recoverable hiccup.
					h.log.Error().Err(err).Str("peer", e.PeerID).Msg("fatal protocol error")
					h.err = err
					h.cancel()
					return
				}
			case mesh.PeerDisconnected:
				h.removeParticipant(e.PeerID)
			case mesh.PeerConnected:
				// Roster entry waits for the connected message, which
				// carries the player name.
				h.log.Debug().Str("peer", e.PeerID).Msg("channel up, awaiting join")
			case mesh.Disconnected:
				h.log.Error().Err(e.Err).Msg("room lost connectivity")
				h.err = e.Err
				h.cancel()
				return
			}
		}
	}
}

// handleData dispatches one client message. Only the error cases the
// protocol calls fatal are returned; everything else is handled in place.
func (h *Host) handleData(peerID string, payload []byte) error {
	m, err := protocol.Decode(payload)
	if err != nil {
		return err
	}

	switch m.Type {
	case protocol.TypeReady:
		ready := m.Ready != nil && *m.Ready
		h.handleReady(peerID, ready)
	case protocol.TypeInput:
		h.handleInput(peerID, m.Input)
	case protocol.TypeConnected:
		h.handleConnected(peerID, m.PlayerName)
	default:
		// Host never receives its own broadcast vocabulary
		return &protocol.UnknownMessageTypeError{Type: string(m.Type)}
	}
	return nil
}

func (h *Host) handleReady(peerID string, ready bool) {
	p := h.players[peerID]
	if p == nil {
		h.log.Warn().Str("peer", peerID).Msg("ready from unknown participant")
		return
	}
	p.Ready = ready
	h.broadcastPlayers()
	h.maybeStart()
}

func (h *Host) handleInput(peerID string, in protocol.InputState) {
	p := h.players[peerID]
	if p == nil {
		h.log.Warn().Str("peer", peerID).Msg("input from unknown participant")
		return
	}
	// Key-wise merge: controls absent from the update keep their state
	p.Input.Merge(in)
}

func (h *Host) handleConnected(peerID, name string) {
	if h.state == StateInGame {
		// Refuse late joiners outright; see ErrStaleJoin
		h.log.Error().Err(ErrStaleJoin).Str("peer", peerID).Str("name", name).Msg("rejecting join")
		h.net.Disconnect(peerID)
		return
	}
	h.players[peerID] = &Participant{
		Name:  name,
		Ready: false,
		Input: protocol.DefaultInput(),
	}
	h.order = append(h.order, peerID)
	h.log.Info().Str("peer", peerID).Str("name", name).Msg("player joined")
	h.broadcastPlayers()
}

func (h *Host) removeParticipant(peerID string) {
	if _, ok := h.players[peerID]; !ok {
		return
	}
	delete(h.players, peerID)
	for i, id := range h.order {
		if id == peerID {
			h.order = append(h.order[:i], h.order[i+1:]...)
			break
		}
	}
	h.log.Info().Str("peer", peerID).Msg("player left")
	// Keep the mirrors honest about who remains
	h.broadcastPlayers()
}

// broadcastPlayers ships names and ready flags only; input state stays local
// to keep lobby traffic small.
func (h *Host) broadcastPlayers() {
	infos := make([]protocol.PlayerInfo, 0, len(h.order))
	for _, id := range h.order {
		p := h.players[id]
		infos = append(infos, protocol.PlayerInfo{Name: p.Name, Ready: p.Ready})
	}
	payload, err := protocol.Encode(protocol.Players(infos))
	if err != nil {
		h.log.Error().Err(err).Msg("players encode failed")
		return
	}
	h.net.Broadcast(payload)
}

// maybeStart fires the lobby -> game transition when the roster is non-empty
// and unanimous. Idempotent: once in game it never re-evaluates, so the
// startGame broadcast happens at most once per session.
func (h *Host) maybeStart() {
	if h.state == StateInGame {
		return
	}
	if len(h.players) == 0 {
		return
	}
	for _, p := range h.players {
		if !p.Ready {
			return
		}
	}

	h.state = StateInGame
	h.log.Info().Int("players", len(h.players)).Msg("all ready, starting game")
	payload, err := protocol.Encode(protocol.StartGame())
	if err != nil {
		h.log.Error().Err(err).Msg("startGame encode failed")
		return
	}
	h.net.Broadcast(payload)
}

func (h *Host) view() HostView {
	players := make([]PlayerView, 0, len(h.order))
	for _, id := range h.order {
		p := h.players[id]
		players = append(players, PlayerView{
			Name:  p.Name,
			Ready: p.Ready,
			Input: p.Input.Clone(),
		})
	}
	return HostView{State: h.state, Code: h.code, Players: players}
}

func (h *Host) gamePlayers() map[string]protocol.InputState {
	out := make(map[string]protocol.InputState, len(h.players))
	for _, p := range h.players {
		out[p.Name] = p.Input.Clone()
	}
	return out
}
