// Package capture feeds recognized identities from a frame source into the
// attendance engine at a bounded rate.
package capture

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"
)

// ErrSourceExhausted signals that a source has no more frames.
var ErrSourceExhausted = errors.New("capture: source exhausted")

// Frame is one sampled capture: the face encodings detected in it.
type Frame struct {
	CapturedAt time.Time   `json:"captured_at"`
	Encodings  [][]float32 `json:"encodings"`
}

// Source produces frames for the recognition loop. Next blocks until a
// frame is available, returns ErrSourceExhausted when no more frames will
// come, or the context error on cancellation.
type Source interface {
	Next(ctx context.Context) (*Frame, error)
}

// ReplaySource reads frames from a JSON-lines file, one Frame per line.
// Used by the check command and integration setups without a live camera
// feed; a camera adapter satisfies the same Source interface.
type ReplaySource struct {
	file    *os.File
	scanner *bufio.Scanner
}

// OpenReplay opens a frame replay file.
func OpenReplay(path string) (*ReplaySource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open replay file: %w", err)
	}

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	return &ReplaySource{file: f, scanner: scanner}, nil
}

// Next returns the next recorded frame.
func (r *ReplaySource) Next(ctx context.Context) (*Frame, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	for r.scanner.Scan() {
		line := r.scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var frame Frame
		if err := json.Unmarshal(line, &frame); err != nil {
			return nil, fmt.Errorf("decode frame: %w", err)
		}
		return &frame, nil
	}

	if err := r.scanner.Err(); err != nil && err != io.EOF {
		return nil, fmt.Errorf("read replay file: %w", err)
	}
	return nil, ErrSourceExhausted
}

// Close closes the underlying file.
func (r *ReplaySource) Close() error {
	return r.file.Close()
}
