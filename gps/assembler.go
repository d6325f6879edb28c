package gps

import "bytes"

// LineAssembler reassembles newline-terminated sentences from an arbitrarily
// chunked byte stream. The zero value uses DefaultMaxLineLength. It belongs
// to a single reader; Feed must not be called concurrently.
type LineAssembler struct {
	buf        []byte
	maxLen     int
	discarding bool
	overflows  int
}

// NewLineAssembler creates an assembler that drops any line longer than
// maxLineLength bytes. A non-positive limit selects DefaultMaxLineLength.
func NewLineAssembler(maxLineLength int) *LineAssembler {
	if maxLineLength <= 0 {
		maxLineLength = DefaultMaxLineLength
	}
	return &LineAssembler{maxLen: maxLineLength}
}

// Feed appends chunk and returns every line it completed, in order, with the
// terminator and any trailing '\r' removed. The unterminated remainder is
// kept for the next call.
func (a *LineAssembler) Feed(chunk []byte) []string {
	var lines []string
	for len(chunk) > 0 {
		i := bytes.IndexByte(chunk, '\n')
		if i < 0 {
			a.hold(chunk)
			break
		}

		if a.hold(chunk[:i]) {
			lines = append(lines, string(bytes.TrimSuffix(a.buf, []byte{'\r'})))
		}
		a.buf = a.buf[:0]
		a.discarding = false
		chunk = chunk[i+1:]
	}
	return lines
}

// hold appends p to the pending line, reporting false once the line has
// outgrown the limit.
func (a *LineAssembler) hold(p []byte) bool {
	if a.discarding {
		return false
	}
	if a.maxLen <= 0 {
		a.maxLen = DefaultMaxLineLength
	}
	if len(a.buf)+len(p) > a.maxLen {
		a.buf = a.buf[:0]
		a.discarding = true
		a.overflows++
		return false
	}
	a.buf = append(a.buf, p...)
	return true
}

// Pending returns the unterminated tail.
func (a *LineAssembler) Pending() string {
	return string(a.buf)
}

// Overflows returns how many lines were dropped for exceeding the limit.
func (a *LineAssembler) Overflows() int {
	return a.overflows
}

// Reset discards the pending tail. Call it when the stream restarts.
func (a *LineAssembler) Reset() {
	a.buf = a.buf[:0]
	a.discarding = false
}
