package backend

import (
	"encoding/json"
	"strings"

	"github.com/zhouzirui/careerchat/client/internal/model/chat"
)

// Event-line framing of the answer stream.
const (
	dataPrefix    = "data: "
	doneSentinel  = "[DONE]"
	keepAliveFill = "."
)

// FrameKind discriminates decoded stream frames.
type FrameKind int

const (
	// FrameContentDelta carries a piece of assistant text.
	FrameContentDelta FrameKind = iota
	// FrameCitations carries a batch of raw citations.
	FrameCitations
)

// Frame is one decoded unit of the answer stream.
type Frame struct {
	Kind      FrameKind
	Text      string
	Citations []chat.Citation
}

// citationEvent is the JSON shape of a citation-start payload.
type citationEvent struct {
	Type      string          `json:"type"`
	Citations []chat.Citation `json:"citations"`
}

// Decoder turns raw chunks of the streamed response body into frames. A chunk
// boundary may fall in the middle of an event line, so the trailing incomplete
// line is carried over and re-prepended to the next chunk. Decoding never
// fails: malformed payloads degrade to plain-text passthrough.
type Decoder struct {
	carry string
}

// NewDecoder returns a decoder with an empty carry buffer.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Decode consumes one chunk and returns the frames completed by it, in order.
func (d *Decoder) Decode(chunk string) []Frame {
	data := d.carry + chunk
	lines := strings.Split(data, "\n")

	// The final element is either empty (chunk ended on a newline) or an
	// incomplete line; hold it back until more bytes arrive.
	d.carry = lines[len(lines)-1]
	lines = lines[:len(lines)-1]

	var frames []Frame
	for _, line := range lines {
		if frame, ok := decodeLine(line); ok {
			frames = append(frames, frame)
		}
	}
	return frames
}

// Flush decodes whatever is left in the carry buffer. Call once at stream end.
func (d *Decoder) Flush() []Frame {
	line := d.carry
	d.carry = ""
	if frame, ok := decodeLine(line); ok {
		return []Frame{frame}
	}
	return nil
}

// decodeLine maps one stream line to at most one frame. Lines without the
// event prefix are ignored, as are the termination and keep-alive sentinels.
func decodeLine(line string) (Frame, bool) {
	line = strings.TrimSuffix(line, "\r")
	if !strings.HasPrefix(line, dataPrefix) {
		return Frame{}, false
	}

	payload := line[len(dataPrefix):]
	if payload == doneSentinel || payload == keepAliveFill {
		return Frame{}, false
	}

	var event citationEvent
	if err := json.Unmarshal([]byte(payload), &event); err == nil && event.Type == "citation-start" {
		return Frame{Kind: FrameCitations, Citations: event.Citations}, true
	}

	var text string
	if err := json.Unmarshal([]byte(payload), &text); err == nil {
		return Frame{Kind: FrameContentDelta, Text: text}, true
	}

	// Non-string JSON and unparseable payloads both pass through as raw text.
	return Frame{Kind: FrameContentDelta, Text: payload}, true
}
