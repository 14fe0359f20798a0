// Package textstream turns a byte stream of generated text into a series
// of accumulated snapshots suitable for reveal.Revealer.Configure.
package textstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"
)

const defaultChunkSize = 4096

// Accumulator concatenates chunks read from a stream. Incomplete UTF-8
// sequences at a chunk boundary are held back until the rest arrives.
type Accumulator struct {
	buf     strings.Builder
	partial []byte
}

// Write appends p and reports whether the accumulated text grew.
func (a *Accumulator) Write(p []byte) bool {
	data := append(a.partial, p...)
	a.partial = nil

	cut := len(data)
	// Walk back at most UTFMax-1 bytes looking for a truncated rune.
	for i := len(data) - 1; i >= 0 && i >= len(data)-utf8.UTFMax; i-- {
		if utf8.RuneStart(data[i]) {
			if !utf8.FullRune(data[i:]) {
				cut = i
			}
			break
		}
	}
	if cut < len(data) {
		a.partial = append([]byte(nil), data[cut:]...)
	}
	if cut == 0 {
		return false
	}
	a.buf.Write(data[:cut])
	return true
}

// Flush appends any held-back bytes as-is and reports whether the text grew.
func (a *Accumulator) Flush() bool {
	if len(a.partial) == 0 {
		return false
	}
	a.buf.Write(a.partial)
	a.partial = nil
	return true
}

// String returns the accumulated text.
func (a *Accumulator) String() string {
	return a.buf.String()
}

// Consume reads r until EOF or ctx is done, calling fn with the
// accumulated text every time it grows.
func Consume(ctx context.Context, r io.Reader, fn func(text string)) error {
	var acc Accumulator
	chunk := make([]byte, defaultChunkSize)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := r.Read(chunk)
		if n > 0 && acc.Write(chunk[:n]) {
			fn(acc.String())
		}
		if errors.Is(err, io.EOF) {
			if acc.Flush() {
				fn(acc.String())
			}
			return nil
		}
		if err != nil {
			return fmt.Errorf("read text stream: %w", err)
		}
	}
}
