package signaling

// RoomAnnounce is the rendezvous record published under a room code topic.
// A retained live announce marks the room joinable; Closed marks a tombstone
// left behind when the host withdraws.
type RoomAnnounce struct {
	Code   string `json:"code"`
	Addr   string `json:"addr,omitempty"`
	Closed bool   `json:"closed,omitempty"`
}
