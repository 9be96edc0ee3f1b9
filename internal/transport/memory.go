package transport

import (
	"context"
	"fmt"
	"net"
	"sync"
)

// MemoryNetwork is an in-process Transport shared by every participant of a
// test. Rooms rendezvous through a map instead of a broker, channels are
// paired in memory. Delivery is ordered and reliable per channel, matching
// the contract real transports provide.
type MemoryNetwork struct {
	mu    sync.Mutex
	rooms map[string]*memListener
}

func NewMemoryNetwork() *MemoryNetwork {
	return &MemoryNetwork{rooms: make(map[string]*memListener)}
}

func (n *MemoryNetwork) Open(ctx context.Context, code string) (Listener, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if _, taken := n.rooms[code]; taken {
		return nil, fmt.Errorf("%w: %s", ErrRoomTaken, code)
	}
	l := &memListener{
		net:    n,
		code:   code,
		inbox:  make(chan Channel, 8),
		closed: make(chan struct{}),
	}
	n.rooms[code] = l
	return l, nil
}

func (n *MemoryNetwork) Dial(ctx context.Context, code string) (Channel, error) {
	n.mu.Lock()
	l := n.rooms[code]
	n.mu.Unlock()
	if l == nil {
		return nil, fmt.Errorf("%w: no room %q", ErrConnectionFailed, code)
	}

	local, remote := newChannelPair()
	select {
	case l.inbox <- remote:
		return local, nil
	case <-l.closed:
		return nil, fmt.Errorf("%w: room %q closed", ErrConnectionFailed, code)
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", ErrConnectionFailed, ctx.Err())
	}
}

type memListener struct {
	net    *MemoryNetwork
	code   string
	inbox  chan Channel
	closed chan struct{}
	once   sync.Once
}

func (l *memListener) Accept(ctx context.Context) (Channel, error) {
	select {
	case ch := <-l.inbox:
		return ch, nil
	case <-l.closed:
		return nil, net.ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (l *memListener) Close() error {
	l.once.Do(func() {
		l.net.mu.Lock()
		delete(l.net.rooms, l.code)
		l.net.mu.Unlock()
		close(l.closed)
	})
	return nil
}

// newChannelPair returns two connected channel ends
func newChannelPair() (Channel, Channel) {
	a2b := make(chan []byte, 64)
	b2a := make(chan []byte, 64)
	done := make(chan struct{})
	a := &memChannel{out: a2b, in: b2a, done: done}
	b := &memChannel{out: b2a, in: a2b, done: done}
	return a, b
}

type memChannel struct {
	out  chan []byte
	in   chan []byte
	done chan struct{}
	once sync.Once
}

func (c *memChannel) Send(payload []byte) error {
	buf := make([]byte, len(payload))
	copy(buf, payload)
	select {
	case c.out <- buf:
		return nil
	case <-c.done:
		return net.ErrClosed
	}
}

func (c *memChannel) Recv() ([]byte, error) {
	select {
	case payload := <-c.in:
		return payload, nil
	case <-c.done:
		// drain what was sent before close so FIFO delivery holds
		select {
		case payload := <-c.in:
			return payload, nil
		default:
			return nil, net.ErrClosed
		}
	}
}

func (c *memChannel) Close() error {
	c.once.Do(func() { close(c.done) })
	return nil
}
