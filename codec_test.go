package framed

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEncoderPadsShortPayload(t *testing.T) {
	assert := assert.New(t)

	var dst bytes.Buffer
	enc := NewEncoder(FrameSize)

	err := enc.Encode(&dst, []byte{0, 1, 2, 3})
	assert.NoError(err)
	assert.Equal([]byte{0, 1, 2, 3, 0, 0, 0, 0, 0, 0}, dst.Bytes())
	assert.Equal(1, enc.Sent())
}

func TestEncoderTruncatesLongPayload(t *testing.T) {
	assert := assert.New(t)

	var dst bytes.Buffer
	enc := NewEncoder(FrameSize)

	payload := []byte("hello, framed world")
	err := enc.Encode(&dst, payload)
	assert.NoError(err)
	assert.Equal(payload[:FrameSize], dst.Bytes())
	assert.Equal(FrameSize, dst.Len())
}

func TestEncoderExactSizePayload(t *testing.T) {
	assert := assert.New(t)

	var dst bytes.Buffer
	enc := NewEncoder(FrameSize)

	payload := bytes.Repeat([]byte{0xab}, FrameSize)
	err := enc.Encode(&dst, payload)
	assert.NoError(err)
	assert.Equal(payload, dst.Bytes())
}

func TestEncoderSentCounter(t *testing.T) {
	assert := assert.New(t)

	var dst bytes.Buffer
	enc := NewEncoder(FrameSize)
	assert.Equal(0, enc.Sent())

	for i := 1; i <= 5; i++ {
		assert.NoError(enc.Encode(&dst, []byte{byte(i)}))
		assert.Equal(i, enc.Sent())
	}
	assert.Equal(5*FrameSize, dst.Len())
}

func TestDecoderNeedsMoreData(t *testing.T) {
	assert := assert.New(t)

	buf := bytes.NewBuffer([]byte{1, 2})
	dec := NewDecoder(FrameSize)

	frame, ok := dec.Decode(buf)
	assert.False(ok)
	assert.Nil(frame)
	// Nothing consumed, counter untouched.
	assert.Equal(2, buf.Len())
	assert.Equal(0, dec.Received())
}

func TestDecoderTwoBytesThenEight(t *testing.T) {
	assert := assert.New(t)

	var buf bytes.Buffer
	dec := NewDecoder(FrameSize)

	buf.Write([]byte{1, 2})
	_, ok := dec.Decode(&buf)
	assert.False(ok)

	buf.Write([]byte{3, 4, 5, 6, 7, 8, 9, 10})
	frame, ok := dec.Decode(&buf)
	assert.True(ok)
	assert.Equal([]byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, frame)
	assert.Equal(1, dec.Received())
	// Exactly one frame extracted, zero leftover bytes.
	assert.Equal(0, buf.Len())
}

func TestDecoderByteAtATimeMatchesAllAtOnce(t *testing.T) {
	assert := assert.New(t)

	wire := bytes.Repeat([]byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, 3)

	var all bytes.Buffer
	allDec := NewDecoder(FrameSize)
	all.Write(wire)
	var allFrames [][]byte
	for {
		frame, ok := allDec.Decode(&all)
		if !ok {
			break
		}
		allFrames = append(allFrames, frame)
	}

	var drip bytes.Buffer
	dripDec := NewDecoder(FrameSize)
	var dripFrames [][]byte
	for _, b := range wire {
		drip.WriteByte(b)
		for {
			frame, ok := dripDec.Decode(&drip)
			if !ok {
				break
			}
			dripFrames = append(dripFrames, frame)
		}
	}

	assert.Equal(allFrames, dripFrames)
	assert.Equal(3, allDec.Received())
	assert.Equal(3, dripDec.Received())
}

func TestDecoderLeavesTrailingBytes(t *testing.T) {
	assert := assert.New(t)

	var buf bytes.Buffer
	dec := NewDecoder(FrameSize)

	buf.Write(bytes.Repeat([]byte{7}, FrameSize+3))
	frame, ok := dec.Decode(&buf)
	assert.True(ok)
	assert.Len(frame, FrameSize)
	assert.Equal(3, buf.Len())

	_, ok = dec.Decode(&buf)
	assert.False(ok)
	assert.Equal(1, dec.Received())
}

func TestRoundTrip(t *testing.T) {
	assert := assert.New(t)

	enc := NewEncoder(FrameSize)
	dec := NewDecoder(FrameSize)

	for _, payload := range [][]byte{
		nil,
		{42},
		{0, 1, 2, 3},
		bytes.Repeat([]byte{9}, FrameSize),
		bytes.Repeat([]byte{9}, FrameSize*2),
	} {
		var wire bytes.Buffer
		assert.NoError(enc.Encode(&wire, payload))

		frame, ok := dec.Decode(&wire)
		assert.True(ok)

		want := make([]byte, FrameSize)
		copy(want, payload)
		assert.Equal(want, frame)
	}

	assert.Equal(enc.Sent(), dec.Received())
}

func TestCodecCustomFrameSize(t *testing.T) {
	assert := assert.New(t)

	enc := NewEncoder(4)
	dec := NewDecoder(4)

	var wire bytes.Buffer
	assert.NoError(enc.Encode(&wire, []byte("abcdef")))
	assert.Equal(4, wire.Len())

	frame, ok := dec.Decode(&wire)
	assert.True(ok)
	assert.Equal([]byte("abcd"), frame)
}

func TestCodecDefaultsOnBadSize(t *testing.T) {
	assert := assert.New(t)

	enc := NewEncoder(0)
	dec := NewDecoder(-1)

	var wire bytes.Buffer
	assert.NoError(enc.Encode(&wire, []byte{1}))
	assert.Equal(FrameSize, wire.Len())

	_, ok := dec.Decode(&wire)
	assert.True(ok)
}

func TestDecodedFrameSurvivesBufferReuse(t *testing.T) {
	assert := assert.New(t)

	var buf bytes.Buffer
	dec := NewDecoder(FrameSize)

	buf.Write(bytes.Repeat([]byte{1}, FrameSize))
	frame, ok := dec.Decode(&buf)
	assert.True(ok)

	buf.Write(bytes.Repeat([]byte{2}, FrameSize))
	_, _ = dec.Decode(&buf)

	assert.Equal(bytes.Repeat([]byte{1}, FrameSize), frame)
}
