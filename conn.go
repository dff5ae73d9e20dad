// Package framed implements a duplex messaging protocol over fixed-size
// frames. It provides a stateful framing codec, a connection adapter that
// turns any reliable byte stream into a message channel with independent
// read and write loops, a TCP echo server, and a bounded request/reply
// client.
package framed

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/valyala/bytebufferpool"
	"golang.org/x/sync/errgroup"
)

// Errors returned by connection operations.
var (
	// ErrInvalidOnFrame is returned when no frame handler is provided.
	ErrInvalidOnFrame = errors.New("invalid on frame callback")
	// ErrConnectionClosed is returned when operating on a closed connection.
	ErrConnectionClosed = errors.New("connection closed")
	// ErrBufferFull is returned by Write when the outbound channel is full
	// and the frame was not queued. Use WriteBlocking to wait instead.
	ErrBufferFull = errors.New("send buffer full")
)

// Conn adapts a raw duplex byte transport into a frame-level message channel.
// Inbound bytes are accumulated and decoded into frames delivered to the
// onFrame callback; outbound frames are encoded and flushed to the transport.
// The read and write halves run concurrently and do not share codec state:
// the read loop owns the Decoder, the write path owns the Encoder.
type Conn struct {
	rawConn net.Conn
	logger  Logger

	enc *Encoder
	dec *Decoder

	opts options

	sendq      chan *bytebufferpool.ByteBuffer
	writerDone chan struct{}
	closed     atomic.Bool

	// cancelMu guards cancel: Run stores it while Close may read it from
	// another goroutine.
	cancelMu sync.Mutex
	cancel   context.CancelFunc
}

// Default configuration values.
const (
	// defaultBufferSize is the default capacity of the outbound frame channel.
	defaultBufferSize = 1
	// defaultIdleTimeout is the default idle interval for read/write deadlines.
	defaultIdleTimeout = 30 * time.Second
	// readChunkSize is how many bytes one transport read may pull at once.
	readChunkSize = 512
)

// NewConn creates a frame-level connection over the given transport.
// It applies the provided options and validates them before returning.
// Returns ErrInvalidOnFrame if no frame handler is configured.
func NewConn(conn net.Conn, opt ...Option) (*Conn, error) {
	var opts options
	for _, o := range opt {
		o(&opts)
	}

	if err := checkOptions(&opts); err != nil {
		return nil, err
	}

	return &Conn{
		rawConn:    conn,
		logger:     opts.logger,
		enc:        NewEncoder(opts.frameSize),
		dec:        NewDecoder(opts.frameSize),
		opts:       opts,
		sendq:      make(chan *bytebufferpool.ByteBuffer, opts.bufferSize),
		writerDone: make(chan struct{}),
	}, nil
}

// checkOptions validates and sets default values for connection options.
func checkOptions(opts *options) error {
	if opts.frameSize <= 0 {
		opts.frameSize = FrameSize
	}

	if opts.bufferSize <= 0 {
		opts.bufferSize = defaultBufferSize
	}

	if opts.idleTimeout <= 0 {
		opts.idleTimeout = defaultIdleTimeout
	}

	if opts.onFrame == nil {
		return ErrInvalidOnFrame
	}

	if opts.onError == nil {
		opts.onError = func(err error) ErrorAction { return Disconnect }
	}

	if opts.logger == nil {
		opts.logger = defaultLogger()
	}

	return nil
}

// Run starts the connection's read and write loops and blocks until the
// inbound sequence ends, the context is canceled, or an I/O error occurs.
// The transport is always closed before Run returns.
//
// A clean shutdown (peer disconnect or local Close/cancellation) returns
// nil; only genuine I/O errors and a failing frame handler are reported.
func (c *Conn) Run(ctx context.Context) error {
	c.logger.Info("connection established", "addr", c.Addr())

	ctx, cancel := context.WithCancel(ctx)
	c.cancelMu.Lock()
	c.cancel = cancel
	alreadyClosed := c.closed.Load()
	c.cancelMu.Unlock()
	if alreadyClosed {
		// Close ran before the cancel func was published; honor it now.
		cancel()
	}

	group, child := errgroup.WithContext(ctx)

	group.Go(func() error {
		return c.readLoop(child)
	})

	group.Go(func() error {
		return c.writeLoop(child)
	})

	err := group.Wait()
	c.closeConn()

	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, ErrConnectionClosed) {
		c.logger.Info("connection closed with error", "addr", c.Addr(), "error", err)
		return err
	}

	c.logger.Info("connection closed", "addr", c.Addr(),
		"sent", c.enc.Sent(), "received", c.dec.Received())
	return nil
}

// Close shuts the connection down: it cancels the loops and closes the
// underlying transport, unblocking any in-flight read or write.
// Safe to call multiple times.
func (c *Conn) Close() error {
	if c.closed.Swap(true) {
		return nil // already closed
	}
	c.cancelMu.Lock()
	cancel := c.cancel
	c.cancelMu.Unlock()
	if cancel != nil {
		cancel()
	}
	return c.rawConn.Close()
}

// IsClosed returns true if the connection has been closed.
func (c *Conn) IsClosed() bool {
	return c.closed.Load()
}

// Sent returns the number of frames encoded on this connection.
func (c *Conn) Sent() int {
	return c.enc.Sent()
}

// Received returns the number of frames decoded on this connection.
func (c *Conn) Received() int {
	return c.dec.Received()
}

// Write queues a payload for transmission without blocking. The payload is
// normalized to the frame size (truncated or zero-padded) immediately, in the
// caller's goroutine.
//
// Returns:
//   - nil: frame was successfully queued (not yet flushed)
//   - ErrBufferFull: outbound channel is full, frame was NOT queued
//   - ErrConnectionClosed: connection is closed
func (c *Conn) Write(payload []byte) error {
	if c.closed.Load() {
		return ErrConnectionClosed
	}

	buf, err := c.encode(payload)
	if err != nil {
		return err
	}

	select {
	case c.sendq <- buf:
		return nil
	default:
		bytebufferpool.Put(buf)
		return ErrBufferFull
	}
}

// WriteBlocking queues a payload for transmission, waiting until the frame is
// queued or the context is canceled. Use this when delivery matters more than
// latency.
func (c *Conn) WriteBlocking(ctx context.Context, payload []byte) error {
	if c.closed.Load() {
		return ErrConnectionClosed
	}

	buf, err := c.encode(payload)
	if err != nil {
		return err
	}

	select {
	case c.sendq <- buf:
		return nil
	case <-c.writerDone:
		bytebufferpool.Put(buf)
		return ErrConnectionClosed
	case <-ctx.Done():
		bytebufferpool.Put(buf)
		return ctx.Err()
	}
}

// encode frames the payload into a pooled buffer. The buffer is returned to
// the pool by the write loop after flushing, or by the caller on failure.
func (c *Conn) encode(payload []byte) (*bytebufferpool.ByteBuffer, error) {
	buf := bytebufferpool.Get()
	if err := c.enc.Encode(buf, payload); err != nil {
		bytebufferpool.Put(buf)
		return nil, err
	}
	return buf, nil
}

// Addr returns the remote address of the connection.
func (c *Conn) Addr() net.Addr {
	return c.rawConn.RemoteAddr()
}

// readLoop pulls bytes from the transport into an accumulating buffer and
// drains the decoder, invoking the frame handler once per complete frame, in
// wire order. It returns ErrConnectionClosed on clean termination (peer EOF
// or local Close); any partial trailing bytes are discarded.
func (c *Conn) readLoop(ctx context.Context) error {
	buf := bytes.NewBuffer(make([]byte, 0, 4*c.opts.frameSize))
	chunk := make([]byte, readChunkSize)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		_ = c.rawConn.SetReadDeadline(time.Now().Add(c.opts.idleTimeout * 2))

		n, err := c.rawConn.Read(chunk)
		if n > 0 {
			buf.Write(chunk[:n])
			for {
				frame, ok := c.dec.Decode(buf)
				if !ok {
					break // need more data
				}
				if err := c.opts.onFrame(frame); err != nil {
					return err
				}
			}
		}

		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) || c.closed.Load() {
				if buf.Len() > 0 {
					c.logger.Debug("discarding partial frame", "addr", c.Addr(), "bytes", buf.Len())
				}
				return ErrConnectionClosed
			}
			c.logger.Debug("read error", "addr", c.Addr(), "error", err)
			if c.opts.onError(err) == Disconnect {
				return err
			}
		}
	}
}

// writeLoop flushes queued frames to the transport in the order they were
// encoded. It returns when the context is canceled or a write fails; closing
// writerDone unblocks any pending WriteBlocking callers, and frames still
// queued at that point go back to the buffer pool unflushed.
func (c *Conn) writeLoop(ctx context.Context) error {
	defer func() {
		close(c.writerDone)
		for {
			select {
			case buf := <-c.sendq:
				bytebufferpool.Put(buf)
			default:
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case buf := <-c.sendq:
			err := c.write(buf.B)
			bytebufferpool.Put(buf)
			if err != nil {
				return err
			}
		}
	}
}

// write sends one encoded frame to the transport with a deadline.
// If an error occurs and onError returns Continue, the error is suppressed.
func (c *Conn) write(data []byte) error {
	_ = c.rawConn.SetWriteDeadline(time.Now().Add(c.opts.idleTimeout * 2))

	if _, err := c.rawConn.Write(data); err != nil {
		c.logger.Debug("write error", "addr", c.Addr(), "error", err)
		if c.opts.onError(err) == Disconnect {
			return err
		}
	}

	return nil
}

// closeConn marks the connection as closed and closes the underlying transport.
func (c *Conn) closeConn() {
	c.closed.Store(true)
	c.rawConn.Close()
}
