package conversation

// Button is a single-choice option rendered under a message. Data is echoed
// back verbatim as Event.Choice when the user taps it.
type Button struct {
	Label string `json:"label"`
	Data  string `json:"data"`
}

// Document is a file attached to a reply, e.g. the day export.
type Document struct {
	Filename string
	Content  []byte
}

// Reply is the rendering instruction handed back to the chat transport.
type Reply struct {
	Text     string
	Buttons  []Button
	Document *Document

	// End reports that the session reached a terminal state and its state
	// was cleared. The transport may offer a start-over affordance.
	End bool
}

// Event is one inbound chat event. Exactly one of Text (free-text message)
// or Choice (button callback data) is set.
type Event struct {
	ChatID string
	Text   string
	Choice string
}
