package timer

import (
	"net"
	"testing"
	"time"
)

func TestMakeConnTimeTracker(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()

	var handled net.Conn
	var saved []time.Duration

	tracked := MakeConnTimeTracker(
		func(conn net.Conn) {
			handled = conn
			time.Sleep(10 * time.Millisecond)
		},
		func(d time.Duration) { saved = append(saved, d) },
		func(d time.Duration) { saved = append(saved, d) },
		SaveHandleTime,
	)
	tracked(server)

	if handled != server {
		t.Fatal("handler did not receive the connection")
	}
	if len(saved) != 2 {
		t.Fatalf("savers called %d times, want 2", len(saved))
	}
	if saved[0] < 10*time.Millisecond {
		t.Errorf("saved duration = %v, want >= 10ms", saved[0])
	}
}
