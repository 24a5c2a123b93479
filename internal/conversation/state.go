// Package conversation drives the multi-turn dialogue of the bot: main menu,
// adding a location from a geo-pin, choosing a saved location for a forecast
// or for deletion.
package conversation

import "github.com/i474232898/weather-bot/internal/geo"

// State is the step of the dialogue a user is in.
type State int

const (
	// StateEnd means there is no active conversation.
	StateEnd State = iota
	StateMenu
	StateSelectForForecast
	StateAwaitLocationPin
	StateAwaitLocationName
	StateSelectForDelete
)

func (s State) String() string {
	switch s {
	case StateEnd:
		return "end"
	case StateMenu:
		return "menu"
	case StateSelectForForecast:
		return "select_for_forecast"
	case StateAwaitLocationPin:
		return "await_location_pin"
	case StateAwaitLocationName:
		return "await_location_name"
	case StateSelectForDelete:
		return "select_for_delete"
	default:
		return "unknown"
	}
}

// Session is the per-user conversation state. It is owned by the transport;
// the machine only mutates the value it is handed.
type Session struct {
	State State

	// Pending holds the pin received in StateAwaitLocationPin until the user
	// names it.
	Pending *geo.Location
}

// Active reports whether the user is in the middle of a conversation.
func (s *Session) Active() bool {
	return s.State != StateEnd
}

// Reset ends the conversation and drops pending data.
func (s *Session) Reset() {
	*s = Session{}
}

// Next is the result of a transition. Stay leaves the session untouched,
// which is not the same as moving to the current state again.
type Next struct {
	state State
	stay  bool
}

// Goto moves the session to s.
func Goto(s State) Next {
	return Next{state: s}
}

var (
	Stay = Next{stay: true}
	End  = Goto(StateEnd)
)

// Message is one inbound chat event.
type Message struct {
	UserID int64
	Text   string

	// Pin is set when the message is a geo-pin rather than text.
	Pin *geo.Location
}

// Reply is what the transport sends back.
type Reply struct {
	Text     string
	Markdown bool

	// Keyboard, when set, is shown as a one-time reply keyboard.
	Keyboard    [][]string
	Placeholder string

	// RemoveKeyboard asks the transport to hide a previously shown keyboard.
	RemoveKeyboard bool
}
