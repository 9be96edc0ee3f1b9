package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/patka817/jump-game/internal/mesh"
	"github.com/patka817/jump-game/internal/transport"
	"github.com/patka817/jump-game/pkg/protocol"
)

const waitTimeout = 2 * time.Second

// fixture wires a host and n clients over an in-process network
type fixture struct {
	t     *testing.T
	net   *transport.MemoryNetwork
	host  *Host
	hmesh *mesh.Mesh
	code  string
}

func newFixture(t *testing.T, code string) *fixture {
	t.Helper()
	net := transport.NewMemoryNetwork()
	hmesh := mesh.New(net, zerolog.Nop())
	t.Cleanup(func() { hmesh.Close() })
	if err := hmesh.Open(context.Background(), code); err != nil {
		t.Fatalf("open room: %v", err)
	}
	h := NewHost(context.Background(), "alice", code, hmesh, zerolog.Nop())
	t.Cleanup(h.Stop)
	return &fixture{t: t, net: net, host: h, hmesh: hmesh, code: code}
}

func (f *fixture) join(name string, inputs <-chan protocol.InputState) (*Client, *mesh.Mesh) {
	f.t.Helper()
	m := mesh.New(f.net, zerolog.Nop())
	f.t.Cleanup(func() { m.Close() })
	c := NewClient(name, m, inputs, zerolog.Nop())
	if err := c.Join(context.Background(), f.code); err != nil {
		f.t.Fatalf("%s join: %v", name, err)
	}
	return c, m
}

// rawPeer is a bare mesh connection for sending arbitrary payloads at the host
func (f *fixture) rawPeer() *mesh.Mesh {
	f.t.Helper()
	m := mesh.New(f.net, zerolog.Nop())
	f.t.Cleanup(func() { m.Close() })
	if err := m.ConnectToPeer(context.Background(), f.code); err != nil {
		f.t.Fatalf("raw connect: %v", err)
	}
	return m
}

func (f *fixture) waitPlayers(n int) {
	f.t.Helper()
	deadline := time.Now().Add(waitTimeout)
	for time.Now().Before(deadline) {
		if len(f.host.View().Players) == n {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	f.t.Fatalf("host roster stuck at %d players, want %d", len(f.host.View().Players), n)
}

func (f *fixture) waitState(s State) {
	f.t.Helper()
	deadline := time.Now().Add(waitTimeout)
	for time.Now().Before(deadline) {
		if f.host.View().State == s {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	f.t.Fatalf("host state = %v, want %v", f.host.View().State, s)
}

func (f *fixture) waitDone() {
	f.t.Helper()
	select {
	case <-f.host.Done():
	case <-time.After(waitTimeout):
		f.t.Fatal("host loop never stopped")
	}
}

func drainUntilStarted(t *testing.T, c *Client) {
	t.Helper()
	deadline := time.Now().Add(waitTimeout)
	for time.Now().Before(deadline) {
		select {
		case ev := <-c.Events():
			if _, ok := ev.(GameStarted); ok {
				return
			}
		case <-time.After(waitTimeout):
			t.Fatal("no client event")
		}
	}
	t.Fatal("client never saw the game start")
}

func TestHostSeedsItself(t *testing.T) {
	f := newFixture(t, "ABCD")
	v := f.host.View()

	if v.State != StateLobby {
		t.Errorf("initial state = %v, want lobby", v.State)
	}
	if v.Code != "ABCD" {
		t.Errorf("view code = %q", v.Code)
	}
	if len(v.Players) != 1 || v.Players[0].Name != "alice" {
		t.Fatalf("initial roster = %+v, want just the host", v.Players)
	}
	if v.Players[0].Ready {
		t.Error("host starts ready")
	}
	if v, ok := v.Players[0].Input["jump"].(bool); !ok || v {
		t.Error("host input not seeded with defaults")
	}
}

func TestStartRequiresUnanimity(t *testing.T) {
	f := newFixture(t, "ABCD")
	c, _ := f.join("bob", nil)
	f.waitPlayers(2)

	if err := c.SendReady(true); err != nil {
		t.Fatalf("ready: %v", err)
	}
	time.Sleep(200 * time.Millisecond)
	if f.host.View().State != StateLobby {
		t.Fatal("game started without the host's readiness")
	}

	f.host.SetReady(true)
	f.waitState(StateInGame)
	drainUntilStarted(t, c)
}

func TestReadyToggleBackBlocksStart(t *testing.T) {
	f := newFixture(t, "ABCD")
	c, _ := f.join("bob", nil)
	f.waitPlayers(2)

	if err := c.SendReady(true); err != nil {
		t.Fatalf("ready: %v", err)
	}
	if err := c.SendReady(false); err != nil {
		t.Fatalf("unready: %v", err)
	}
	f.host.SetReady(true)

	time.Sleep(200 * time.Millisecond)
	if f.host.View().State != StateLobby {
		t.Fatal("game started despite an unready player")
	}
}

func TestSoloHostCanStart(t *testing.T) {
	f := newFixture(t, "ABCD")
	f.host.SetReady(true)
	f.waitState(StateInGame)
}

func TestStartGameBroadcastAtMostOnce(t *testing.T) {
	f := newFixture(t, "ABCD")
	c, _ := f.join("bob", nil)
	f.waitPlayers(2)

	f.host.SetReady(true)
	if err := c.SendReady(true); err != nil {
		t.Fatalf("ready: %v", err)
	}
	f.waitState(StateInGame)
	drainUntilStarted(t, c)

	// Further ready traffic must not re-trigger the transition
	if err := c.SendReady(false); err != nil {
		t.Fatalf("unready: %v", err)
	}
	if err := c.SendReady(true); err != nil {
		t.Fatalf("re-ready: %v", err)
	}

	deadline := time.Now().Add(400 * time.Millisecond)
	for time.Now().Before(deadline) {
		select {
		case ev := <-c.Events():
			if _, ok := ev.(GameStarted); ok {
				t.Fatal("second game start broadcast")
			}
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
	if f.host.View().State != StateInGame {
		t.Error("state left the game phase")
	}
}

func TestStaleJoinRejected(t *testing.T) {
	f := newFixture(t, "ABCD")
	f.host.SetReady(true)
	f.waitState(StateInGame)

	late, _ := f.join("dave", nil)

	select {
	case <-late.Done():
	case <-time.After(waitTimeout):
		t.Fatal("late joiner session never ended")
	}
	if len(f.host.View().Players) != 1 {
		t.Errorf("late joiner entered the roster: %+v", f.host.View().Players)
	}
}

func TestRosterRebroadcastOnLeave(t *testing.T) {
	f := newFixture(t, "ABCD")
	bob, _ := f.join("bob", nil)
	f.waitPlayers(2)
	_, carolMesh := f.join("carol", nil)
	f.waitPlayers(3)

	// Carol walks away; bob's mirror must shrink without him asking
	carolMesh.Close()
	f.waitPlayers(2)

	deadline := time.Now().Add(waitTimeout)
	for {
		select {
		case ev := <-bob.Events():
			if r, ok := ev.(RosterUpdated); ok && len(r.Players) == 2 {
				for _, p := range r.Players {
					if p.Name == "carol" {
						t.Fatalf("carol still in roster: %+v", r.Players)
					}
				}
				return
			}
		case <-time.After(time.Until(deadline)):
			t.Fatal("bob never saw the shrunk roster")
		}
	}
}

func TestLeaveThenReadyStartsGame(t *testing.T) {
	f := newFixture(t, "ABCD")
	_, bobMesh := f.join("bob", nil)
	f.waitPlayers(2)

	// Bob walks away mid-lobby; the remaining roster can still reach
	// unanimity with its next ready.
	bobMesh.Close()
	f.waitPlayers(1)

	f.host.SetReady(true)
	f.waitState(StateInGame)
}

func TestInputMergesIntoRoster(t *testing.T) {
	f := newFixture(t, "ABCD")
	inputs := make(chan protocol.InputState, 4)
	bob, _ := f.join("bob", inputs)
	f.waitPlayers(2)

	f.host.SetReady(true)
	if err := bob.SendReady(true); err != nil {
		t.Fatalf("ready: %v", err)
	}
	f.waitState(StateInGame)

	// Input forwarding arms on the first snapshot
	f.host.BroadcastSnapshot(nil)
	inputs <- protocol.InputState{"right": true}

	deadline := time.Now().Add(waitTimeout)
	for {
		players := f.host.PlayersForGame()
		if v, ok := players["bob"]["right"].(bool); ok && v {
			if v, ok := players["bob"]["jump"].(bool); !ok || v {
				t.Error("partial input clobbered unrelated controls")
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("input never merged: %v", players["bob"])
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestHostInputMergesLikeRemote(t *testing.T) {
	f := newFixture(t, "ABCD")
	f.host.ApplyInput(protocol.InputState{"left": true})

	deadline := time.Now().Add(waitTimeout)
	for {
		players := f.host.PlayersForGame()
		if v, ok := players["alice"]["left"].(bool); ok && v {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("host input never merged: %v", players["alice"])
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestUnknownTypeFatalForHost(t *testing.T) {
	f := newFixture(t, "ABCD")
	raw := f.rawPeer()

	// A host-vocabulary tag arriving at the host is a protocol violation
	payload, err := protocol.Encode(protocol.Players(nil))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if err := raw.SendTo("ABCD", payload); err != nil {
		t.Fatalf("send: %v", err)
	}

	f.waitDone()
	var unknown *protocol.UnknownMessageTypeError
	if !errors.As(f.host.Err(), &unknown) {
		t.Fatalf("host err = %v, want unknown message type", f.host.Err())
	}
	if unknown.Type != string(protocol.TypePlayers) {
		t.Errorf("error names %q", unknown.Type)
	}
}

func TestUnknownTypeFatalForClient(t *testing.T) {
	net := transport.NewMemoryNetwork()
	log := zerolog.Nop()

	// A bare mesh stands in for the host so the client can be fed
	// client-vocabulary traffic directly.
	hostMesh := mesh.New(net, log)
	defer hostMesh.Close()
	if err := hostMesh.Open(context.Background(), "ABCD"); err != nil {
		t.Fatalf("open: %v", err)
	}

	clientMesh := mesh.New(net, log)
	defer clientMesh.Close()
	c := NewClient("bob", clientMesh, nil, log)
	if err := c.Join(context.Background(), "ABCD"); err != nil {
		t.Fatalf("join: %v", err)
	}

	// Drain the host side: peer connected, then bob's join announcement
	var peerID string
	deadline := time.Now().Add(waitTimeout)
	for peerID == "" && time.Now().Before(deadline) {
		select {
		case ev := <-hostMesh.Events():
			if pc, ok := ev.(mesh.PeerConnected); ok {
				peerID = pc.PeerID
			}
		case <-time.After(waitTimeout):
			t.Fatal("no host mesh event")
		}
	}

	payload, err := protocol.Encode(protocol.Ready(true))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if err := hostMesh.SendTo(peerID, payload); err != nil {
		t.Fatalf("send: %v", err)
	}

	deadline = time.Now().Add(waitTimeout)
	for time.Now().Before(deadline) {
		select {
		case ev := <-c.Events():
			if e, ok := ev.(SessionEnded); ok {
				var unknown *protocol.UnknownMessageTypeError
				if !errors.As(e.Err, &unknown) {
					t.Fatalf("session ended with %v, want unknown message type", e.Err)
				}
				return
			}
		case <-time.After(waitTimeout):
			t.Fatal("no client event")
		}
	}
	t.Fatal("client session never ended")
}

func TestJoinRetryAfterFailure(t *testing.T) {
	net := transport.NewMemoryNetwork()
	log := zerolog.Nop()

	m := mesh.New(net, log)
	defer m.Close()
	m.SetDialTimeout(200 * time.Millisecond)
	c := NewClient("bob", m, nil, log)

	// No such room yet: the join fails and the stored code is cleared
	if err := c.Join(context.Background(), "ABCD"); !errors.Is(err, transport.ErrConnectionFailed) {
		t.Fatalf("join = %v, want connection failure", err)
	}
	if err := c.SendReady(true); !errors.Is(err, ErrHostLost) {
		t.Fatalf("ready after failed join = %v, want host lost", err)
	}

	hostMesh := mesh.New(net, log)
	defer hostMesh.Close()
	if err := hostMesh.Open(context.Background(), "ABCD"); err != nil {
		t.Fatalf("open room: %v", err)
	}
	h := NewHost(context.Background(), "alice", "ABCD", hostMesh, log)
	defer h.Stop()

	// Same client, same code, now with a live host
	if err := c.Join(context.Background(), "ABCD"); err != nil {
		t.Fatalf("retry join: %v", err)
	}
	deadline := time.Now().Add(waitTimeout)
	for len(h.View().Players) != 2 {
		if time.Now().After(deadline) {
			t.Fatalf("retry never reached the roster: %+v", h.View().Players)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestViewIsolatesInputState(t *testing.T) {
	f := newFixture(t, "ABCD")
	v := f.host.View()
	v.Players[0].Input["jump"] = true

	if jump, _ := f.host.View().Players[0].Input["jump"].(bool); jump {
		t.Error("mutating a view leaked into the roster")
	}
}
