package transport

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"math/big"
	"net"
	"sync"
	"time"

	"github.com/quic-go/quic-go"
	"github.com/rs/zerolog"

	"github.com/patka817/jump-game/pkg/protocol"
)

const alpnProtocol = "jumpgame/1"

// Announcer registers a room code against a reachable address and returns a
// function that withdraws the registration.
type Announcer interface {
	Announce(ctx context.Context, code, addr string) (func(), error)
}

// Resolver maps a room code to the address of the peer hosting it
type Resolver interface {
	Resolve(ctx context.Context, code string) (string, error)
}

// QUICTransport implements Transport over quic-go. Each peer channel is one
// bidirectional stream carrying length-prefixed frames.
type QUICTransport struct {
	Announcer  Announcer
	Resolver   Resolver
	ListenAddr string // host:port to bind, ":0" for ephemeral
	Log        zerolog.Logger
}

// NewQUICTransport creates a transport that rendezvouses through the given
// announcer/resolver pair.
func NewQUICTransport(a Announcer, r Resolver, listenAddr string, log zerolog.Logger) *QUICTransport {
	return &QUICTransport{Announcer: a, Resolver: r, ListenAddr: listenAddr, Log: log}
}

// Open binds a QUIC listener and announces the room code under its address
func (t *QUICTransport) Open(ctx context.Context, code string) (Listener, error) {
	tlsConf, err := generateTLSConfig()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}

	ln, err := quic.ListenAddr(t.ListenAddr, tlsConf, quicConfig())
	if err != nil {
		return nil, fmt.Errorf("%w: listen: %v", ErrConnectionFailed, err)
	}

	addr, err := reachableAddr(ln.Addr())
	if err != nil {
		ln.Close()
		return nil, fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}

	withdraw, err := t.Announcer.Announce(ctx, code, addr)
	if err != nil {
		ln.Close()
		return nil, fmt.Errorf("%w: announce: %v", ErrConnectionFailed, err)
	}

	t.Log.Debug().Str("code", code).Str("addr", addr).Msg("room open")
	return &quicListener{ln: ln, withdraw: withdraw}, nil
}

// Dial resolves the room code and connects to the hosting peer
func (t *QUICTransport) Dial(ctx context.Context, code string) (Channel, error) {
	addr, err := t.Resolver.Resolve(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: resolve %q: %v", ErrConnectionFailed, code, err)
	}

	tlsConf := &tls.Config{
		InsecureSkipVerify: true, // Self-signed certs, peers authenticate by code
		NextProtos:         []string{alpnProtocol},
	}
	conn, err := quic.DialAddr(ctx, addr, tlsConf, quicConfig())
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %v", ErrConnectionFailed, addr, err)
	}

	stream, err := conn.OpenStreamSync(ctx)
	if err != nil {
		conn.CloseWithError(0, "no stream")
		return nil, fmt.Errorf("%w: open stream: %v", ErrConnectionFailed, err)
	}

	ch := &quicChannel{conn: conn, stream: stream}
	// The remote only learns about the stream once bytes flow on it
	if err := ch.hello(); err != nil {
		ch.Close()
		return nil, fmt.Errorf("%w: hello: %v", ErrConnectionFailed, err)
	}
	return ch, nil
}

func quicConfig() *quic.Config {
	return &quic.Config{
		MaxIdleTimeout:     30 * time.Second,
		KeepAlivePeriod:    5 * time.Second,
		MaxIncomingStreams: 8,
	}
}

type quicListener struct {
	ln       *quic.Listener
	withdraw func()
	once     sync.Once
}

func (l *quicListener) Accept(ctx context.Context) (Channel, error) {
	conn, err := l.ln.Accept(ctx)
	if err != nil {
		return nil, err
	}
	stream, err := conn.AcceptStream(ctx)
	if err != nil {
		conn.CloseWithError(0, "no stream")
		return nil, err
	}
	return &quicChannel{conn: conn, stream: stream}, nil
}

func (l *quicListener) Close() error {
	l.once.Do(l.withdraw)
	return l.ln.Close()
}

type quicChannel struct {
	conn   quic.Connection
	stream quic.Stream

	sendMu sync.Mutex
}

func (c *quicChannel) hello() error {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	return protocol.WriteFrame(c.stream, protocol.FrameHello, nil)
}

func (c *quicChannel) Send(payload []byte) error {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	return protocol.WriteFrame(c.stream, protocol.FrameMessage, payload)
}

func (c *quicChannel) Recv() ([]byte, error) {
	for {
		fType, payload, err := protocol.ReadFrame(c.stream)
		if err != nil {
			return nil, err
		}
		switch fType {
		case protocol.FrameMessage:
			return payload, nil
		case protocol.FrameClose:
			return nil, net.ErrClosed
		case protocol.FrameHello:
			// stream opener, nothing to deliver
		default:
			return nil, fmt.Errorf("unexpected frame type %d", fType)
		}
	}
}

func (c *quicChannel) Close() error {
	c.sendMu.Lock()
	_ = protocol.WriteFrame(c.stream, protocol.FrameClose, nil)
	c.sendMu.Unlock()
	_ = c.stream.Close()
	return c.conn.CloseWithError(0, "bye")
}

// reachableAddr swaps an unspecified listen IP for an interface address peers
// can actually reach.
func reachableAddr(a net.Addr) (string, error) {
	udp, ok := a.(*net.UDPAddr)
	if !ok {
		return a.String(), nil
	}
	if udp.IP != nil && !udp.IP.IsUnspecified() {
		return udp.String(), nil
	}
	ip, err := outboundIP()
	if err != nil {
		return "", err
	}
	return net.JoinHostPort(ip, fmt.Sprintf("%d", udp.Port)), nil
}

func outboundIP() (string, error) {
	// No packets are sent; the kernel just picks the route
	conn, err := net.Dial("udp", "192.0.2.1:9")
	if err != nil {
		return "", err
	}
	defer conn.Close()
	return conn.LocalAddr().(*net.UDPAddr).IP.String(), nil
}

// generateTLSConfig generates a self-signed certificate for QUIC
func generateTLSConfig() (*tls.Config, error) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, err
	}
	template := x509.Certificate{
		SerialNumber: big.NewInt(1),
	}
	certDER, err := x509.CreateCertificate(rand.Reader, &template, &template, &key.PublicKey, key)
	if err != nil {
		return nil, err
	}
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: certDER})

	tlsCert, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		return nil, err
	}
	return &tls.Config{
		Certificates: []tls.Certificate{tlsCert},
		NextProtos:   []string{alpnProtocol},
	}, nil
}
