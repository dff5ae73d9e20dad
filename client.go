package framed

import (
	"context"
	stderrors "errors"
	"net"
	"syscall"

	"github.com/pkg/errors"
)

// Client drives a bounded request/reply exchange over a framed connection:
// it sends one frame, waits for the echoed reply, and repeats until its quota
// of sent frames is reached, then closes the connection.
//
// The peer closing the connection early is a normal terminal condition, not
// an error. Any genuine I/O failure ends the exchange and is returned.
type Client struct {
	conn    *Conn
	logger  Logger
	quota   int
	payload []byte
	replies chan []byte
}

// Dial connects to a framed echo server and prepares a client that will send
// the given payload quota times. The payload is normalized to the frame size
// on every send.
func Dial(addr string, quota int, payload []byte, opt ...Option) (*Client, error) {
	raw, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, errors.Wrapf(err, "client: connect %q", addr)
	}

	c := &Client{
		quota:   quota,
		payload: payload,
		// Capacity one: the exchange is lockstep, so at most one reply is
		// ever in flight and the read loop never blocks here.
		replies: make(chan []byte, 1),
	}

	conn, err := NewConn(raw, append([]Option{
		OnFrameOption(func(frame []byte) error {
			c.replies <- frame
			return nil
		}),
	}, opt...)...)
	if err != nil {
		raw.Close()
		return nil, err
	}

	c.conn = conn
	c.logger = conn.logger

	return c, nil
}

// Run performs the bounded exchange and blocks until done. It returns nil
// when the quota is reached or the peer closes the connection early, and an
// error only on I/O failure. The connection is closed before Run returns.
func (c *Client) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	runErr := make(chan error, 1)
	go func() {
		err := c.conn.Run(ctx)
		// The read loop is done, no more replies can arrive.
		close(c.replies)
		runErr <- err
	}()

	err := c.exchange(ctx)
	c.conn.Close()

	if connErr := <-runErr; err == nil && connErr != nil {
		if stderrors.Is(connErr, syscall.ECONNRESET) || stderrors.Is(connErr, syscall.EPIPE) {
			// The peer hung up right as we finished; not worth failing over.
			c.logger.Debug("client: peer reset connection", "error", connErr)
		} else {
			err = connErr
		}
	}

	c.logger.Info("client: exchange finished",
		"sent", c.conn.Sent(), "received", c.conn.Received())
	return err
}

// exchange is the send/await-reply cycle. Before each send it checks the
// quota guard; between a send and the next it waits for exactly one reply.
func (c *Client) exchange(ctx context.Context) error {
	for {
		if c.conn.Sent() >= c.quota {
			c.logger.Info("client: quota reached, terminating", "sent", c.conn.Sent())
			return nil
		}

		if err := c.conn.WriteBlocking(ctx, c.payload); err != nil {
			if stderrors.Is(err, ErrConnectionClosed) {
				// Peer went away between replies; finish cleanly.
				return nil
			}
			c.logger.Error("client: send failed", "error", err)
			return err
		}

		select {
		case reply, ok := <-c.replies:
			if !ok {
				// Connection ended while awaiting the reply.
				return nil
			}
			c.logger.Info("client: received a response from server", "len", len(reply))
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Sent returns the number of frames the client has sent so far.
func (c *Client) Sent() int {
	return c.conn.Sent()
}

// Received returns the number of replies the client has received so far.
func (c *Client) Received() int {
	return c.conn.Received()
}
