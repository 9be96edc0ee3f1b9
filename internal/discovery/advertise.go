package discovery

import (
	"fmt"

	"github.com/grandcat/zeroconf"
)

// StartAdvertising announces an open room on the local network.
// It returns a shutdown function that should be called when the room closes.
func StartAdvertising(port int, code string) (func(), error) {
	// Instance name: "JumpHost-<Hash[:8]>"
	codeHash := ComputeHash(code)
	instanceName := fmt.Sprintf("JumpHost-%s", codeHash[:8])

	// TXT record holds the full hash for the joiner to verify
	txt := []string{fmt.Sprintf("hash=%s", codeHash)}

	server, err := zeroconf.Register(
		instanceName,
		ServiceType,
		"local.",
		port,
		txt,
		nil, // Check all interfaces
	)
	if err != nil {
		return nil, err
	}

	return server.Shutdown, nil
}
