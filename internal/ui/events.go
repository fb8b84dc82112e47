package ui

// Focus identifies which window currently receives editing keys.
type Focus int

const (
	FocusPrompt Focus = iota
	FocusResponse
	FocusCommandLine
)

func (f Focus) String() string {
	switch f {
	case FocusPrompt:
		return "prompt"
	case FocusResponse:
		return "response"
	case FocusCommandLine:
		return "command"
	default:
		return "unknown"
	}
}

// EventKind classifies the outcome of a key transition.
type EventKind int

const (
	EvNone EventKind = iota
	EvQuit
	EvFocusPrompt
	EvFocusResponse
	EvFocusCommandLine
	EvPromptClear
	EvPromptWrite
	EvCommandLineWrite
)

// WindowEvent is produced by the transition table for navigation keys.
// Editing keys never reach the table; the focused window consumes them.
type WindowEvent struct {
	Kind EventKind
	Text string
}

type transitionKey struct {
	focus Focus
	key   string
}

// transitions maps (focus, key class) to the event that fires. Keys absent
// from the table fall through to the focused window's own handler.
var transitions = map[transitionKey]WindowEvent{
	// Quit is reachable from every window.
	{FocusPrompt, "ctrl+c"}:      {Kind: EvQuit},
	{FocusResponse, "ctrl+c"}:    {Kind: EvQuit},
	{FocusCommandLine, "ctrl+c"}: {Kind: EvQuit},

	// Tab cycles between the two editing panes.
	{FocusPrompt, "tab"}:   {Kind: EvFocusResponse},
	{FocusResponse, "tab"}: {Kind: EvFocusPrompt},

	// ':' opens the command line from the response window. In the prompt
	// window a colon is ordinary text, so it is deliberately not mapped.
	{FocusResponse, ":"}: {Kind: EvFocusCommandLine},

	// Esc backs out of the command line or the response window.
	{FocusCommandLine, "esc"}: {Kind: EvFocusPrompt},
	{FocusResponse, "esc"}:    {Kind: EvFocusPrompt},

	// Ctrl+L clears the prompt in place.
	{FocusPrompt, "ctrl+l"}: {Kind: EvPromptClear},

	// Ctrl+F seeds a fork command so the user only fills in the position.
	{FocusPrompt, "ctrl+f"}:   {Kind: EvCommandLineWrite, Text: "fork "},
	{FocusResponse, "ctrl+f"}: {Kind: EvCommandLineWrite, Text: "fork "},
}

// Transition looks up the event for a key in the given focus. The second
// return reports whether the table claimed the key; when false the caller
// routes the key to the focused window. Repeating a transition whose focus
// target is already current yields the same event, so lookups are idempotent.
func Transition(f Focus, key string) (WindowEvent, bool) {
	ev, ok := transitions[transitionKey{focus: f, key: key}]
	return ev, ok
}

// FocusFor maps a focus-changing event to its destination, returning the
// current focus unchanged for events that do not move focus.
func FocusFor(ev WindowEvent, cur Focus) Focus {
	switch ev.Kind {
	case EvFocusPrompt:
		return FocusPrompt
	case EvFocusResponse:
		return FocusResponse
	case EvFocusCommandLine:
		return FocusCommandLine
	default:
		return cur
	}
}
