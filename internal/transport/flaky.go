package transport

import (
	"net"
	"sync"
	"time"
)

// FlakyChannel wraps a Channel and injects send failures and latency, for
// exercising best-effort broadcast paths without a real degraded network.
type FlakyChannel struct {
	Channel
	mu      sync.Mutex
	failing bool
	latency time.Duration
}

func NewFlakyChannel(c Channel) *FlakyChannel {
	return &FlakyChannel{Channel: c}
}

// SetFailing makes every subsequent Send return an error
func (c *FlakyChannel) SetFailing(failing bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failing = failing
}

// SetLatency delays every subsequent Send by d
func (c *FlakyChannel) SetLatency(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.latency = d
}

func (c *FlakyChannel) Send(payload []byte) error {
	c.mu.Lock()
	failing := c.failing
	lat := c.latency
	c.mu.Unlock()

	if failing {
		return net.ErrClosed
	}
	if lat > 0 {
		time.Sleep(lat)
	}
	return c.Channel.Send(payload)
}
