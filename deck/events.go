package deck

import "encoding/json"

// Event names delivered by the button-surface host.
const (
	EventWillAppear         = "willAppear"
	EventWillDisappear      = "willDisappear"
	EventKeyDown            = "keyDown"
	EventDidReceiveSettings = "didReceiveSettings"
)

// Command names sent to the host.
const (
	commandSetImage    = "setImage"
	commandSetTitle    = "setTitle"
	commandGetSettings = "getSettings"
)

// Event is one JSON frame from the host. Context identifies the widget
// instance the event belongs to; Payload carries the opaque settings bag.
type Event struct {
	Event   string       `json:"event"`
	Context string       `json:"context"`
	Payload EventPayload `json:"payload"`
}

// EventPayload is the event-specific payload. Settings stays raw so the
// consumer decides which keys to read.
type EventPayload struct {
	Settings json.RawMessage `json:"settings"`
}

// command is one JSON frame sent to the host.
type command struct {
	Event   string `json:"event"`
	Context string `json:"context,omitempty"`
	UUID    string `json:"uuid,omitempty"`
	Payload any    `json:"payload,omitempty"`
}

type imagePayload struct {
	Image string `json:"image"`
}

type titlePayload struct {
	Title string `json:"title"`
}
