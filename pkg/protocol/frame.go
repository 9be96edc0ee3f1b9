package protocol

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Frame Types
const (
	FrameMessage = 0 // JSON session message envelope
	FrameClose   = 1 // Orderly channel shutdown signal
	FrameHello   = 2 // Stream opener, carries no payload
)

// MaxFrameSize bounds a single frame payload. Snapshots are small; anything
// bigger than this is a corrupt or hostile stream.
const MaxFrameSize = 4 * 1024 * 1024

// FrameHeader represents the fixed-size header preceding every frame
type FrameHeader struct {
	Type   uint8  // 1 byte
	Length uint32 // 4 bytes
}

// WriteFrame writes the header followed by the payload to the writer
func WriteFrame(w io.Writer, fType uint8, payload []byte) error {
	if err := binary.Write(w, binary.LittleEndian, fType); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(len(payload))); err != nil {
		return err
	}
	if len(payload) == 0 {
		return nil
	}
	_, err := w.Write(payload)
	return err
}

// ReadFrame reads one complete frame from the reader
func ReadFrame(r io.Reader) (uint8, []byte, error) {
	var fType uint8
	var length uint32

	if err := binary.Read(r, binary.LittleEndian, &fType); err != nil {
		return 0, nil, err
	}
	if err := binary.Read(r, binary.LittleEndian, &length); err != nil {
		return 0, nil, err
	}
	if length > MaxFrameSize {
		return 0, nil, fmt.Errorf("frame of %d bytes exceeds limit", length)
	}
	if length == 0 {
		return fType, nil, nil
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return 0, nil, err
	}
	return fType, payload, nil
}
