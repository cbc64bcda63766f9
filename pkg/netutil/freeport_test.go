package netutil

import (
	"net"
	"strconv"
	"testing"
)

func TestFindFreePort(t *testing.T) {
	port, err := FindFreePort()
	if err != nil {
		t.Fatalf("FindFreePort: %v", err)
	}
	if port <= 0 || port > 65535 {
		t.Fatalf("port = %d, out of range", port)
	}
	ln, err := net.Listen("tcp", "127.0.0.1:"+strconv.Itoa(port))
	if err != nil {
		t.Fatalf("port %d not bindable: %v", port, err)
	}
	ln.Close()
}

func TestFindFreePorts(t *testing.T) {
	ports, err := FindFreePorts(5)
	if err != nil {
		t.Fatalf("FindFreePorts: %v", err)
	}
	if len(ports) != 5 {
		t.Fatalf("got %d ports, want 5", len(ports))
	}
	seen := make(map[int]bool, len(ports))
	for _, p := range ports {
		if seen[p] {
			t.Errorf("port %d handed out twice", p)
		}
		seen[p] = true
	}

	if _, err := FindFreePorts(0); err == nil {
		t.Error("FindFreePorts(0) succeeded, want error")
	}
}
