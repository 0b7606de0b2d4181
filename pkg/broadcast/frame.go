package broadcast

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// EventPing is the keep-alive event name.
const EventPing = "ping"

// Frame is one streaming event: an id, an event type and a JSON body.
type Frame struct {
	ID    string `json:"id"`
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// Encode renders the frame as
//
//	id: <id>
//	event: <event>
//	data: <json>
//	<blank line>
func (f Frame) Encode() ([]byte, error) {
	data, err := json.Marshal(f.Data)
	if err != nil {
		return nil, fmt.Errorf("encode frame %s: %w", f.ID, err)
	}
	var buf bytes.Buffer
	buf.Grow(len(data) + len(f.ID) + len(f.Event) + 24)
	fmt.Fprintf(&buf, "id: %s\n", singleLine(f.ID))
	fmt.Fprintf(&buf, "event: %s\n", singleLine(f.Event))
	buf.WriteString("data: ")
	buf.Write(data)
	buf.WriteString("\n\n")
	return buf.Bytes(), nil
}

// PingFrame builds a keep-alive frame stamped with now.
func PingFrame(now time.Time) Frame {
	return Frame{
		ID:    fmt.Sprintf("ping-%d", now.UnixMilli()),
		Event: EventPing,
		Data:  map[string]any{"timestamp": now.UTC().Format(time.RFC3339)},
	}
}

// newlines would split a field across frame lines
func singleLine(s string) string {
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(s)
}
