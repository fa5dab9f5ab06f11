// Package dialog tracks the pending admin action of each chat.
package dialog

// State is the pending action of a chat.
type State string

const (
	StateIdle               State = "idle"
	StateAwaitingDeleteName State = "awaiting_delete_name"
	StateAwaitingDateFilter State = "awaiting_date_filter"
)

// Event is something the user did that may change the chat state.
type Event int

const (
	// EventText is a free-text message. It consumes any pending action.
	EventText Event = iota
	EventStart
	EventCancel
	// EventMenu is a press of a reply keyboard button.
	EventMenu
	EventRequestDelete
	EventRequestDateFilter
)

// Transition returns the state that follows current after ev. Non-admin chats
// never leave StateIdle.
func Transition(current State, ev Event, isAdmin bool) State {
	if !isAdmin {
		return StateIdle
	}

	switch ev {
	case EventRequestDelete:
		return StateAwaitingDeleteName
	case EventRequestDateFilter:
		return StateAwaitingDateFilter
	default:
		return StateIdle
	}
}

// Valid reports whether s is a known state.
func (s State) Valid() bool {
	switch s {
	case StateIdle, StateAwaitingDeleteName, StateAwaitingDateFilter:
		return true
	}
	return false
}
