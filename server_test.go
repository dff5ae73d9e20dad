package framed

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"
)

// mockHandler implements Handler for testing.
type mockHandler struct {
	mu       sync.Mutex
	conns    []*net.TCPConn
	handleCh chan *net.TCPConn
}

func newMockHandler() *mockHandler {
	return &mockHandler{
		handleCh: make(chan *net.TCPConn, 10),
	}
}

func (h *mockHandler) Handle(conn *net.TCPConn) {
	h.mu.Lock()
	h.conns = append(h.conns, conn)
	h.mu.Unlock()

	select {
	case h.handleCh <- conn:
	default:
	}
}

func (h *mockHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

func TestNewServer(t *testing.T) {
	server, err := NewServer("127.0.0.1:0")
	if err != nil {
		t.Fatalf("NewServer failed: %v", err)
	}
	defer server.Close()

	if server.listener == nil {
		t.Fatal("listener is nil")
	}

	if server.Addr() == nil {
		t.Fatal("Addr() returned nil")
	}
}

func TestNewServer_InvalidAddress(t *testing.T) {
	_, err := NewServer("not a host:port")
	if err == nil {
		t.Fatal("expected error for invalid address")
	}
}

func TestServer_ServeDispatchesConnections(t *testing.T) {
	server, err := NewServer("127.0.0.1:0")
	if err != nil {
		t.Fatalf("NewServer failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	handler := newMockHandler()

	done := make(chan error, 1)
	go func() {
		done <- server.Serve(ctx, handler)
	}()

	for i := 0; i < 3; i++ {
		conn, err := net.Dial("tcp", server.Addr().String())
		if err != nil {
			t.Fatalf("dial %d failed: %v", i, err)
		}
		defer conn.Close()

		select {
		case <-handler.handleCh:
		case <-time.After(2 * time.Second):
			t.Fatalf("handler not invoked for connection %d", i)
		}
	}

	if got := handler.count(); got != 3 {
		t.Errorf("handled %d connections, want 3", got)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after context cancel")
	}
}

func TestServer_CloseUnblocksServe(t *testing.T) {
	server, err := NewServer("127.0.0.1:0")
	if err != nil {
		t.Fatalf("NewServer failed: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		done <- server.Serve(context.Background(), newMockHandler())
	}()

	// Give Serve a moment to start accepting.
	time.Sleep(50 * time.Millisecond)

	if err := server.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after Close")
	}
}

func TestServer_ShutdownTimeoutBypassedByClose(t *testing.T) {
	server, err := NewServer("127.0.0.1:0",
		ServerShutdownTimeoutOption(time.Minute),
	)
	if err != nil {
		t.Fatalf("NewServer failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- server.Serve(ctx, newMockHandler())
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	// The drain timeout is a minute; Close must bypass it.
	time.Sleep(50 * time.Millisecond)
	server.Close()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after Close bypassed the drain timeout")
	}
}

func TestServer_LoggerOption(t *testing.T) {
	logger := &mockLogger{}
	server, err := NewServer("127.0.0.1:0", ServerLoggerOption(logger))
	if err != nil {
		t.Fatalf("NewServer failed: %v", err)
	}
	defer server.Close()

	if server.logger != logger {
		t.Error("logger not set correctly")
	}
}
