// Package netutil holds small networking helpers shared by the CLI and the
// end-to-end tests.
package netutil

import (
	"fmt"
	"net"
)

// FindFreePort returns an available TCP port on localhost.
func FindFreePort() (int, error) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, err
	}
	defer listener.Close()
	return listener.Addr().(*net.TCPAddr).Port, nil
}

// FindFreePorts returns n distinct available TCP ports on localhost. The
// ports are held open until all are allocated so the same port cannot be
// handed out twice.
func FindFreePorts(n int) ([]int, error) {
	if n <= 0 {
		return nil, fmt.Errorf("invalid port count %d", n)
	}
	listeners := make([]net.Listener, 0, n)
	defer func() {
		for _, ln := range listeners {
			ln.Close()
		}
	}()

	ports := make([]int, 0, n)
	for i := 0; i < n; i++ {
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			return nil, err
		}
		listeners = append(listeners, ln)
		ports = append(ports, ln.Addr().(*net.TCPAddr).Port)
	}
	return ports, nil
}
