// SSE frame encoding and streaming decoding.
//
// Wire grammar: repeated blocks of "event: <name>\n" (optional) followed by
// "data: <json>\n\n". Lines beginning with ':' are keep-alive comments and
// carry no semantic payload.
package event

import (
	"bytes"
	"fmt"
)

// KeepAliveFrame is the comment frame emitted to keep idle connections open.
// Decoders ignore it.
var KeepAliveFrame = []byte(": ping\n\n")

var (
	frameSep      = []byte("\n\n")
	dataPrefix    = []byte("data:")
	eventPrefix   = []byte("event:")
	commentPrefix = []byte(":")
)

// Encode renders ev as a single SSE frame. The data payload carries the type
// discriminator, so the event: line is advisory for intermediaries.
func Encode(ev Event) ([]byte, error) {
	data, err := ev.MarshalJSON()
	if err != nil {
		return nil, err
	}
	if bytes.ContainsRune(data, '\n') {
		// json.Marshal output never contains raw newlines, but raw payloads
		// received from elsewhere might. They would corrupt the framing.
		data = bytes.ReplaceAll(data, []byte("\n"), []byte(" "))
	}
	return fmt.Appendf(nil, "event: %s\ndata: %s\n\n", ev.Type, data), nil
}

// Decoder incrementally parses SSE frames from a byte stream. Partial frames
// at a buffer boundary are retained until more bytes arrive; Feed never
// blocks and returns whatever complete frames are available.
type Decoder struct {
	buf []byte
}

// Feed appends p to the internal buffer and returns all events decoded from
// complete frames. Comment (keep-alive) frames decode to nothing. A frame
// whose data payload is malformed JSON yields a single synthetic error event
// for that frame only; decoding continues with the next frame.
func (d *Decoder) Feed(p []byte) []Event {
	d.buf = append(d.buf, p...)
	var out []Event
	for {
		i := bytes.Index(d.buf, frameSep)
		if i < 0 {
			break
		}
		block := d.buf[:i]
		d.buf = d.buf[i+len(frameSep):]
		if ev, ok := parseFrame(block); ok {
			out = append(out, ev)
		}
	}
	return out
}

// Pending returns the number of buffered bytes awaiting frame completion.
func (d *Decoder) Pending() int { return len(d.buf) }

// parseFrame decodes one frame block (without the trailing blank line).
// Returns ok=false for comment-only and empty blocks.
func parseFrame(block []byte) (Event, bool) {
	var data []byte
	for _, line := range bytes.Split(block, []byte("\n")) {
		line = bytes.TrimSuffix(line, []byte("\r"))
		switch {
		case len(line) == 0:
		case bytes.HasPrefix(line, dataPrefix):
			payload := bytes.TrimPrefix(line[len(dataPrefix):], []byte(" "))
			if len(data) > 0 {
				// Multi-line data: concatenated with a newline per the SSE
				// spec. JSON payloads are single-line in practice.
				data = append(data, '\n')
			}
			data = append(data, payload...)
		case bytes.HasPrefix(line, eventPrefix):
			// The event name is redundant with the payload's type field.
		case bytes.HasPrefix(line, commentPrefix):
			// Keep-alive or comment line.
		}
	}
	if len(data) == 0 {
		return Event{}, false
	}
	var ev Event
	if err := ev.UnmarshalJSON(data); err != nil {
		return NewProtocolError(fmt.Sprintf("malformed frame: %v", err)), true
	}
	return ev, true
}
