package framed

import (
	"time"
)

// ErrorAction defines the action to take when a transport error occurs.
type ErrorAction int

const (
	// Disconnect closes the connection when an error occurs.
	Disconnect ErrorAction = iota
	// Continue suppresses the error and continues processing.
	Continue
)

// options holds the configuration for a connection.
type options struct {
	logger Logger

	onFrame func(frame []byte) error
	// onError is called when a read/write error occurs.
	// Returns Disconnect to close the connection, Continue to suppress the error.
	onError func(error) ErrorAction

	frameSize   int           // wire size of one frame
	bufferSize  int           // size of the outbound frame channel
	idleTimeout time.Duration // read/write deadline interval
}

// Option is a function that configures connection options.
type Option func(*options)

// FrameSizeOption returns an Option that overrides the frame size for this
// connection. The framing stays purely positional; both peers must use the
// same size. Defaults to FrameSize.
func FrameSizeOption(size int) Option {
	return func(o *options) {
		o.frameSize = size
	}
}

// BufferSizeOption returns an Option that sets the size of the outbound frame
// channel. A larger buffer allows more frames to be queued before Write
// reports backpressure.
func BufferSizeOption(size int) Option {
	return func(o *options) {
		o.bufferSize = size
	}
}

// IdleTimeoutOption returns an Option that sets the idle timeout.
// Read and write deadlines are set to twice this interval.
func IdleTimeoutOption(timeout time.Duration) Option {
	return func(o *options) {
		o.idleTimeout = timeout
	}
}

// OnErrorOption returns an Option that sets the error callback.
// The callback is invoked when a read/write error occurs.
// Return Disconnect to close the connection, or Continue to suppress the error.
func OnErrorOption(cb func(error) ErrorAction) Option {
	return func(o *options) {
		o.onError = cb
	}
}

// OnFrameOption returns an Option that sets the frame handler callback.
// This callback is required and is invoked once per received frame, in wire
// order, from the connection's read loop.
func OnFrameOption(cb func(frame []byte) error) Option {
	return func(o *options) {
		o.onFrame = cb
	}
}

// LoggerOption returns an Option that sets the logger.
// If not set, the default slog logger will be used.
func LoggerOption(logger Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}
