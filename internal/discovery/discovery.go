package discovery

import (
	"crypto/sha256"
	"fmt"
)

// ServiceType is the mDNS service type for jump-game rooms
const ServiceType = "_jumpgame._udp"

// ComputeHash returns the SHA256 hash of the room code. The hash goes on the
// wire instead of the code itself so casual listeners can't harvest joinable
// rooms off the LAN.
func ComputeHash(code string) string {
	sum := sha256.Sum256([]byte(code))
	return fmt.Sprintf("%x", sum)
}
