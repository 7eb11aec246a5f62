package transport

import (
	"fmt"

	ma "github.com/multiformats/go-multiaddr"
	manet "github.com/multiformats/go-multiaddr/net"
)

// dialAddr resolves a multiaddr string (e.g. "/ip4/10.0.0.5/tcp/9000") to a
// "host:port" string suitable for net.Dial("tcp", ...). A bare "host:port"
// string is accepted unchanged for operators who prefer it over multiaddr.
func dialAddr(addr string) (string, error) {
	m, err := ma.NewMultiaddr(addr)
	if err != nil {
		return addr, nil // Not a multiaddr; assume it's already host:port.
	}
	netw, host, err := manet.DialArgs(m)
	if err != nil {
		return "", fmt.Errorf("resolve multiaddr %q: %w", addr, err)
	}
	if netw != "tcp" && netw != "tcp4" && netw != "tcp6" {
		return "", fmt.Errorf("unsupported transport %q in %q", netw, addr)
	}
	return host, nil
}

// listenAddr resolves a configured listen_addr the same way dialAddr does,
// falling back to treating it as a literal "host:port" or ":port" string.
func listenAddr(addr string) (string, error) {
	return dialAddr(addr)
}
