package protocol

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
)

// maxLineSize bounds a single encoded event line. Agent chunks are
// small in practice; this generously covers pasted multi-paragraph
// prompts and replies.
const maxLineSize = 4 * 1024 * 1024

// EncodeLine serializes a single event as one LF-terminated line.
func EncodeLine(e Event) ([]byte, error) {
	body, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("protocol: encode event: %w", err)
	}
	body = append(body, '\n')
	return body, nil
}

// DecodeLine parses one line (without its trailing newline) into an
// Event. Returns an error for malformed JSON or an unrecognized
// variant; callers at the protocol boundary (broker, adapters) treat
// this as ParseError and skip the line rather than failing.
func DecodeLine(line []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(line, &e); err != nil {
		return Event{}, fmt.Errorf("protocol: decode line: %w", err)
	}
	return e, nil
}

// NewLineScanner returns a bufio.Scanner configured to split r on LF
// with a generous max token size, ready for reading one wire event per
// Scan/Text call.
func NewLineScanner(r io.Reader) *bufio.Scanner {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	return s
}

// WriteLine encodes e and writes it to w in a single Write call, so a
// concurrent writer never observes a half-written line.
func WriteLine(w io.Writer, e Event) error {
	line, err := EncodeLine(e)
	if err != nil {
		return err
	}
	_, err = w.Write(line)
	return err
}
