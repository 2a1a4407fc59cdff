package server

import (
	"errors"
	"net"
	"testing"
)

func TestSocketConnectionDropsWhenBufferFull(t *testing.T) {
	conn := newSocketConnection("conn-1", 2)
	if err := conn.Send([]byte("a")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := conn.Send([]byte("b")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := conn.Send([]byte("c")); !errors.Is(err, errSendBufferFull) {
		t.Fatalf("expected errSendBufferFull, got %v", err)
	}
	if first := <-conn.stream; string(first) != "a" {
		t.Fatalf("expected frames in order, got %q", first)
	}
}

func TestSocketConnectionRejectsAfterClose(t *testing.T) {
	conn := newSocketConnection("conn-1", 2)
	conn.close()
	conn.close()
	if err := conn.Send([]byte("a")); !errors.Is(err, net.ErrClosed) {
		t.Fatalf("expected net.ErrClosed, got %v", err)
	}
	if conn.ID() != "conn-1" {
		t.Fatalf("unexpected id %q", conn.ID())
	}
}
