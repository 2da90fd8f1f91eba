package transport

import (
	"fmt"
	"net"
)

// Reachability reports whether the network is usable before a handshake
// is attempted. It returns nil when it is.
type Reachability func() error

// InterfaceReachability considers the network reachable when the broker is
// on a loopback address or at least one non-loopback interface is up with
// an address assigned.
func InterfaceReachability(brokerHost string) Reachability {
	return func() error {
		if isLoopback(brokerHost) {
			return nil
		}
		ifaces, err := net.Interfaces()
		if err != nil {
			return fmt.Errorf("failed to list network interfaces: %w", err)
		}
		for _, iface := range ifaces {
			if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
				continue
			}
			addrs, err := iface.Addrs()
			if err != nil {
				continue
			}
			if len(addrs) > 0 {
				return nil
			}
		}
		return ErrNetworkUnreachable
	}
}

func isLoopback(host string) bool {
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// AlwaysReachable skips the check.
func AlwaysReachable() error {
	return nil
}
