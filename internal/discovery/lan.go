package discovery

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"
)

// LANAnnouncer exposes mDNS advertising behind the transport announcer
// contract. The address must carry the port the room listens on; mDNS
// resolves the IP side on its own.
type LANAnnouncer struct{}

func (LANAnnouncer) Announce(ctx context.Context, code, addr string) (func(), error) {
	_, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, fmt.Errorf("bad listen addr %q: %w", addr, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("bad listen port %q: %w", portStr, err)
	}
	return StartAdvertising(port, code)
}

// LANResolver exposes mDNS browsing behind the transport resolver contract
type LANResolver struct {
	Timeout time.Duration
}

func (r LANResolver) Resolve(ctx context.Context, code string) (string, error) {
	timeout := r.Timeout
	if timeout == 0 {
		timeout = 3 * time.Second
	}
	if deadline, ok := ctx.Deadline(); ok {
		if remain := time.Until(deadline); remain < timeout {
			timeout = remain
		}
	}
	return FindHost(code, timeout)
}
