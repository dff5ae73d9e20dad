package framed

import (
	"bytes"
	"io"
)

// FrameSize is the wire size of every frame, in bytes.
//
// The protocol has no length field, delimiter, or header: both peers must
// agree on the frame size out-of-band, and every FrameSize bytes on the wire
// is exactly one frame. Shorter payloads are zero-padded, longer payloads are
// truncated. Any FrameSize-byte sequence is a legal frame, so there is no
// validation step on the receiving side.
const FrameSize = 10

// Encoder turns payloads into fixed-size frames and counts how many frames
// it has produced. An Encoder belongs to exactly one connection and must only
// be used from one goroutine at a time; the write path of a connection is
// its single owner.
type Encoder struct {
	size int
	sent int
}

// NewEncoder creates an Encoder producing frames of the given size.
// Sizes below one fall back to FrameSize.
func NewEncoder(size int) *Encoder {
	if size <= 0 {
		size = FrameSize
	}
	return &Encoder{size: size}
}

// Encode normalizes payload to exactly the frame size and appends the result
// to dst. Payloads longer than the frame size are silently truncated, shorter
// ones are zero-padded. The sent counter advances only when the full frame
// has been written.
func (e *Encoder) Encode(dst io.Writer, payload []byte) error {
	if len(payload) > e.size {
		payload = payload[:e.size]
	}
	if _, err := dst.Write(payload); err != nil {
		return err
	}
	if pad := e.size - len(payload); pad > 0 {
		if _, err := dst.Write(make([]byte, pad)); err != nil {
			return err
		}
	}
	e.sent++
	return nil
}

// Sent returns the number of frames encoded so far.
func (e *Encoder) Sent() int {
	return e.sent
}

// Decoder extracts fixed-size frames from an accumulating byte buffer and
// counts how many frames it has produced. Like Encoder, a Decoder belongs to
// exactly one connection; the read path is its single owner.
type Decoder struct {
	size     int
	received int
}

// NewDecoder creates a Decoder extracting frames of the given size.
// Sizes below one fall back to FrameSize.
func NewDecoder(size int) *Decoder {
	if size <= 0 {
		size = FrameSize
	}
	return &Decoder{size: size}
}

// Decode inspects buf. If fewer than a frame's worth of bytes are buffered it
// returns (nil, false) without consuming anything; the caller should read
// more bytes from the transport and try again. Otherwise it consumes exactly
// one frame from the front of buf, advances the received counter, and returns
// a copy of the frame.
//
// The returned slice is owned by the caller and stays valid after further
// buffer writes.
func (d *Decoder) Decode(buf *bytes.Buffer) ([]byte, bool) {
	if buf.Len() < d.size {
		return nil, false
	}
	frame := make([]byte, d.size)
	// Read never fails here: the buffer holds at least d.size bytes.
	_, _ = buf.Read(frame)
	d.received++
	return frame, true
}

// Received returns the number of frames decoded so far.
func (d *Decoder) Received() int {
	return d.received
}
