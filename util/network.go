package util

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
)

// FormatAddr returns "host:port".
func FormatAddr(host string, port int) string {
	return net.JoinHostPort(host, strconv.Itoa(port))
}

// SplitAddr splits a "host:port" pair and validates the port.  An
// empty host is allowed and means every interface.
func SplitAddr(addr string) (host string, port int, err error) {
	h, p, err := net.SplitHostPort(addr)
	if err != nil {
		return "", 0, err
	}
	port, err = strconv.Atoi(p)
	if err != nil {
		return "", 0, fmt.Errorf("port %q is not a number", p)
	}
	if port < 0 || port > 65535 {
		return "", 0, fmt.Errorf("port %d out of range 0-65535", port)
	}
	return h, port, nil
}

// WebSocketURL turns a user-supplied peer address into a ws:// URL.
// It accepts "host:port", "//host:port" and full ws:// or wss:// URLs.
func WebSocketURL(raw string) (*url.URL, error) {
	s := strings.TrimSpace(raw)
	switch {
	case s == "":
		return nil, fmt.Errorf("empty address")
	case strings.HasPrefix(s, "ws://"), strings.HasPrefix(s, "wss://"):
	case strings.HasPrefix(s, "//"):
		s = "ws:" + s
	case strings.Contains(s, "://"):
		return nil, fmt.Errorf("unsupported scheme in %q", raw)
	default:
		s = "ws://" + s
	}

	u, err := url.Parse(s)
	if err != nil {
		return nil, err
	}
	if u.Hostname() == "" {
		return nil, fmt.Errorf("missing host in %q", raw)
	}
	if u.Port() == "" {
		return nil, fmt.Errorf("missing port in %q", raw)
	}
	if _, _, err := SplitAddr(u.Host); err != nil {
		return nil, err
	}
	if u.Path == "" {
		u.Path = "/"
	}
	return u, nil
}

// FindFreePort returns an available TCP port on 127.0.0.1.
func FindFreePort() (int, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, fmt.Errorf("finding free port: %w", err)
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}
