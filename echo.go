package framed

import (
	"context"
	"net"
)

// EchoHandler relays every inbound frame back to its sender unchanged.
// Each connection gets its own codec state and buffers; one connection's
// error or disconnect never affects another.
type EchoHandler struct {
	logger Logger
	opts   []Option
}

// NewEchoHandler creates an echo handler. The options are applied to every
// connection it serves, e.g. FrameSizeOption or IdleTimeoutOption.
func NewEchoHandler(opt ...Option) *EchoHandler {
	h := &EchoHandler{opts: opt}

	var o options
	for _, apply := range opt {
		apply(&o)
	}
	if h.logger = o.logger; h.logger == nil {
		h.logger = defaultLogger()
	}

	return h
}

// Handle serves one connection until the peer disconnects or an I/O error
// occurs, echoing each received frame straight back. Either way the handler
// logs and returns; errors are never propagated to the accept loop.
func (h *EchoHandler) Handle(conn *net.TCPConn) {
	ctx := context.Background()

	var fc *Conn
	fc, err := NewConn(conn, append([]Option{
		OnFrameOption(func(frame []byte) error {
			h.logger.Info("server: got a message from client", "addr", fc.Addr())
			return fc.WriteBlocking(ctx, frame)
		}),
	}, h.opts...)...)
	if err != nil {
		h.logger.Error("server: connection setup failed", "error", err)
		conn.Close()
		return
	}

	if err := fc.Run(ctx); err != nil {
		h.logger.Error("server: connection failed", "addr", conn.RemoteAddr(), "error", err)
		return
	}

	h.logger.Info("server: client disconnected",
		"addr", conn.RemoteAddr(), "echoed", fc.Sent())
}
