package memcache

import (
	"context"
	"net"
	"strings"
)

// Dial opens a new connection to addr and wraps it in a Client. addr accepts
// three forms: a bare "host:port" (dialed over tcp), "tcp://host:port", and
// "unix:///path/to/socket". Anything else is rejected before any network
// call is made.
func Dial(ctx context.Context, addr string) (*Client, error) {
	network, address, err := parseDSN(addr)
	if err != nil {
		return nil, err
	}
	var d net.Dialer
	nc, err := d.DialContext(ctx, network, address)
	if err != nil {
		return nil, ioError(err)
	}
	return NewClient(NewConn(nc)), nil
}

// defaultPort is memcached's well-known listening port, used whenever a
// tcp address is given without one.
const defaultPort = "11211"

func parseDSN(addr string) (network, address string, err error) {
	switch {
	case strings.HasPrefix(addr, "unix://"):
		return "unix", strings.TrimPrefix(addr, "unix://"), nil
	case strings.HasPrefix(addr, "tcp://"):
		return "tcp", withDefaultPort(strings.TrimPrefix(addr, "tcp://")), nil
	case addr == "":
		return "", "", protoError(ReasonGeneric, "empty connection string")
	case strings.Contains(addr, "://"):
		return "", "", ioError(&net.AddrError{Err: "unsupported connection scheme", Addr: addr})
	default:
		// A bare host:port with no scheme defaults to tcp, matching the
		// original single-protocol DSN format this client generalizes.
		return "tcp", withDefaultPort(addr), nil
	}
}

// withDefaultPort appends memcached's default port to a tcp host that was
// given without one.
func withDefaultPort(hostport string) string {
	if _, _, err := net.SplitHostPort(hostport); err == nil {
		return hostport
	}
	return net.JoinHostPort(hostport, defaultPort)
}
