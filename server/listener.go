package server

import (
	"fmt"
	"net"
	"os"
	"strconv"

	"golang.org/x/sys/unix"
)

// acceptBacklog is the pending-connection backlog spec.md §4.5 requires.
// The standard library's net.Listen does not expose this knob (the backlog
// passed to listen(2) is derived from /proc/sys/net/core/somaxconn, not
// configurable per call), so the listening socket is built by hand with
// golang.org/x/sys/unix and handed back to net as a *net.TCPListener via
// net.FileListener.
const acceptBacklog = 128

// listenTCP binds address (host:port, host may be empty for all interfaces)
// with an explicit accept backlog and SO_REUSEADDR set.
func listenTCP(address string) (net.Listener, error) {
	host, portStr, err := net.SplitHostPort(address)
	if err != nil {
		return nil, fmt.Errorf("listenTCP: %w", err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("listenTCP: invalid port %q: %w", portStr, err)
	}

	var addr4 [4]byte
	if host != "" && host != "0.0.0.0" {
		ip := net.ParseIP(host)
		if ip == nil {
			resolved, err := net.ResolveIPAddr("ip4", host)
			if err != nil {
				return nil, fmt.Errorf("listenTCP: resolve %q: %w", host, err)
			}
			ip = resolved.IP
		}
		ip4 := ip.To4()
		if ip4 == nil {
			return nil, fmt.Errorf("listenTCP: %q is not an IPv4 address", host)
		}
		copy(addr4[:], ip4)
	}

	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM, unix.IPPROTO_TCP)
	if err != nil {
		return nil, fmt.Errorf("listenTCP: socket: %w", err)
	}

	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("listenTCP: setsockopt SO_REUSEADDR: %w", err)
	}

	sa := &unix.SockaddrInet4{Port: port, Addr: addr4}
	if err := unix.Bind(fd, sa); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("listenTCP: bind: %w", err)
	}
	if err := unix.Listen(fd, acceptBacklog); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("listenTCP: listen: %w", err)
	}

	file := os.NewFile(uintptr(fd), "jgrpc-listener")
	listener, err := net.FileListener(file)
	// FileListener dup()s the fd internally; close our copy either way.
	_ = file.Close()
	if err != nil {
		return nil, fmt.Errorf("listenTCP: FileListener: %w", err)
	}
	return listener, nil
}

// tuneConn applies the per-connection TCP settings spec.md §4.5 calls for:
// keep-alive enabled, Nagle disabled (small-message latency dominates
// throughput on this protocol).
func tuneConn(conn net.Conn) {
	tcpConn, ok := conn.(*net.TCPConn)
	if !ok {
		return
	}
	_ = tcpConn.SetKeepAlive(true)
	_ = tcpConn.SetNoDelay(true)
}
