package mesh

// Event is a tagged variant delivered on the mesh event stream. Per-peer
// ordering follows channel delivery order; no ordering holds across peers.
type Event interface{ isMeshEvent() }

// Open means this instance became discoverable under a room code
type Open struct{ Code string }

// Disconnected means this instance lost its own rendezvous/connectivity
type Disconnected struct{ Err error }

// PeerConnected means a remote peer's channel is ready for data
type PeerConnected struct{ PeerID string }

// PeerDisconnected means a remote peer's channel closed
type PeerDisconnected struct{ PeerID string }

// Data carries one received message
type Data struct {
	PeerID  string
	Payload []byte
}

func (Open) isMeshEvent()             {}
func (Disconnected) isMeshEvent()     {}
func (PeerConnected) isMeshEvent()    {}
func (PeerDisconnected) isMeshEvent() {}
func (Data) isMeshEvent()             {}
