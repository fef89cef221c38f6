// Package wire implements the bunquery network protocol.
//
// Protocol Format:
//
//	[Length (4 bytes)] + [Payload (msgpack)]
//
// Length is a big-endian uint32 holding the size of the payload. Requests and
// responses use the same framing. A payload is a single msgpack value; see
// Encode and Decode for the value mapping.
package wire

import (
	"encoding/binary"
	"errors"
	"io"
)

const (
	// LengthSize is the size of the frame length prefix.
	LengthSize = 4

	// DefaultMaxFrameSize is the payload limit of the default server
	// configuration.
	DefaultMaxFrameSize = 16 * 1024 * 1024
)

var ErrFrameTooLarge = errors.New("frame too large")

// ReadFrame reads one length-prefixed payload from r. The prefix and the
// payload may arrive in any number of partial reads. A maxSize of zero means
// no limit.
func ReadFrame(r io.Reader, maxSize uint32) ([]byte, error) {
	var lenBuf [LengthSize]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}

	length := binary.BigEndian.Uint32(lenBuf[:])
	if maxSize > 0 && length > maxSize {
		return nil, ErrFrameTooLarge
	}

	buf := make([]byte, length)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}

	return buf, nil
}

// WriteFrame writes payload to w behind its length prefix, in a single Write.
func WriteFrame(w io.Writer, payload []byte) error {
	if uint64(len(payload)) > uint64(^uint32(0)) {
		return ErrFrameTooLarge
	}

	out := make([]byte, LengthSize, LengthSize+len(payload))
	binary.BigEndian.PutUint32(out, uint32(len(payload)))
	out = append(out, payload...)

	_, err := w.Write(out)
	return err
}
