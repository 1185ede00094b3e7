package vision

import (
	"fmt"
	"os"
)

// VideoTape is a raw H.265 byte sink: it creates the backing file if it
// doesn't exist and appends encoded frame bytes verbatim, the way the
// onboard camera pipeline writes its bitstream straight to disk without
// a muxer.
type VideoTape struct {
	file *os.File
}

// NewVideoTape opens (creating if necessary) the file at path for
// appending raw encoded video bytes. If path is empty, the returned
// VideoTape is a no-op sink.
func NewVideoTape(path string) (*VideoTape, error) {
	if path == "" {
		return &VideoTape{}, nil
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening video tape %s: %w", path, err)
	}
	return &VideoTape{file: f}, nil
}

// Write appends a frame's encoded bytes to the tape. A no-op sink
// discards silently, matching the original's `videoTape is None` branch.
func (t *VideoTape) Write(frame []byte) error {
	if t.file == nil {
		return nil
	}
	_, err := t.file.Write(frame)
	return err
}

// Close closes the underlying file, if any.
func (t *VideoTape) Close() error {
	if t.file == nil {
		return nil
	}
	return t.file.Close()
}
