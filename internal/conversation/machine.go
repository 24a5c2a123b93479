package conversation

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/i474232898/weather-bot/internal/geo"
	"github.com/i474232898/weather-bot/internal/registry"
	"github.com/i474232898/weather-bot/internal/weather"
)

// DefaultOperatorContact is used in error messages when none is configured.
const DefaultOperatorContact = "администратору бота"

// Forecaster is the part of the weather receiver the dialogue needs.
type Forecaster interface {
	RequestWeather(ctx context.Context, loc geo.Location) (weather.ParsedForecast, error)
}

// Machine holds the dependencies shared by all conversations. It keeps no
// per-user state and is safe for concurrent use.
type Machine struct {
	locations registry.Registry
	forecasts Forecaster
	contact   string
}

// NewMachine creates a new Machine.
func NewMachine(locations registry.Registry, forecasts Forecaster, operatorContact string) *Machine {
	if operatorContact == "" {
		operatorContact = DefaultOperatorContact
	}
	return &Machine{
		locations: locations,
		forecasts: forecasts,
		contact:   operatorContact,
	}
}

// Handle advances sess by one inbound message. The returned Reply is always
// meant to be sent. A non-nil error reports a failed interaction for logging:
// the Reply then already explains the failure and sess has been reset.
func (m *Machine) Handle(ctx context.Context, sess *Session, msg Message) (Reply, error) {
	reply, next, err := m.dispatch(ctx, sess, msg)
	if err != nil {
		sess.Reset()
		return ErrorReply(err, m.contact), err
	}

	switch {
	case next.stay:
	case next.state == StateEnd:
		sess.Reset()
	default:
		sess.State = next.state
	}
	return reply, nil
}

func (m *Machine) dispatch(ctx context.Context, sess *Session, msg Message) (Reply, Next, error) {
	if msg.Pin == nil {
		switch strings.TrimSpace(msg.Text) {
		case CommandStart:
			return m.start(sess)
		case CommandCancel:
			if sess.Active() {
				return Reply{Text: exitText, RemoveKeyboard: true}, End, nil
			}
		}
	}

	switch sess.State {
	case StateMenu:
		return m.menu(ctx, msg)
	case StateAwaitLocationPin:
		return m.awaitPin(sess, msg)
	case StateAwaitLocationName:
		return m.awaitName(ctx, sess, msg)
	case StateSelectForForecast:
		return m.selectLocation(ctx, msg, m.showForecast)
	case StateSelectForDelete:
		return m.selectLocation(ctx, msg, m.deleteLocation)
	default:
		return Reply{Text: entryText}, End, nil
	}
}

func (m *Machine) start(sess *Session) (Reply, Next, error) {
	sess.Reset()
	return Reply{
		Text:        greetingText,
		Keyboard:    mainKeyboard,
		Placeholder: menuPlaceholder,
	}, Goto(StateMenu), nil
}

func (m *Machine) menu(ctx context.Context, msg Message) (Reply, Next, error) {
	if msg.Pin != nil {
		return Reply{Text: unknownCommandText, RemoveKeyboard: true}, End, nil
	}

	switch strings.TrimSpace(msg.Text) {
	case OptionGetForecast:
		return m.offerLocations(ctx, msg.UserID, StateSelectForForecast)
	case OptionAddLocation:
		return Reply{Text: askPinText, RemoveKeyboard: true}, Goto(StateAwaitLocationPin), nil
	case OptionDeleteLocation:
		return m.offerLocations(ctx, msg.UserID, StateSelectForDelete)
	case OptionExit:
		return Reply{Text: exitText, RemoveKeyboard: true}, End, nil
	default:
		return Reply{Text: unknownCommandText, RemoveKeyboard: true}, End, nil
	}
}

// offerLocations shows the numbered menu and moves to next, or ends the
// conversation when there is nothing to choose from.
func (m *Machine) offerLocations(ctx context.Context, userID int64, next State) (Reply, Next, error) {
	names, err := m.sortedLocations(ctx, userID)
	if err != nil {
		return Reply{}, Stay, err
	}
	if len(names) == 0 {
		return Reply{Text: noLocationsText, RemoveKeyboard: true}, End, nil
	}
	return Reply{Text: locationMenu(names), Markdown: true, RemoveKeyboard: true}, Goto(next), nil
}

// sortedLocations returns the user's location names in menu order. The same
// order resolves a typed number back to a name.
func (m *Machine) sortedLocations(ctx context.Context, userID int64) ([]string, error) {
	names, err := m.locations.Keys(ctx, userID)
	if err != nil {
		return nil, err
	}
	sort.Strings(names)
	return names, nil
}

func (m *Machine) awaitPin(sess *Session, msg Message) (Reply, Next, error) {
	if msg.Pin == nil {
		return Reply{Text: needPinText}, Stay, nil
	}

	pin := *msg.Pin
	sess.Pending = &pin
	return Reply{Text: askNameText}, Goto(StateAwaitLocationName), nil
}

func (m *Machine) awaitName(ctx context.Context, sess *Session, msg Message) (Reply, Next, error) {
	name := strings.TrimSpace(msg.Text)
	if msg.Pin != nil || name == "" {
		return Reply{Text: needNameText}, Stay, nil
	}
	if sess.Pending == nil {
		return Reply{Text: needPinText}, Goto(StateAwaitLocationPin), nil
	}

	if err := m.locations.Add(ctx, msg.UserID, name, *sess.Pending); err != nil {
		return Reply{}, Stay, err
	}
	return Reply{Text: savedText(name)}, End, nil
}

type locationAction func(ctx context.Context, userID int64, name string) (Reply, error)

// selectLocation resolves a typed menu number. Invalid input re-displays the
// menu and keeps the state.
func (m *Machine) selectLocation(ctx context.Context, msg Message, action locationAction) (Reply, Next, error) {
	n, convErr := strconv.Atoi(strings.TrimSpace(msg.Text))
	if msg.Pin == nil && convErr == nil && n == 0 {
		return Reply{Text: startInfo}, End, nil
	}

	names, err := m.sortedLocations(ctx, msg.UserID)
	if err != nil {
		return Reply{}, Stay, err
	}
	if len(names) == 0 {
		return Reply{Text: noLocationsText}, End, nil
	}

	if msg.Pin != nil || convErr != nil {
		return Reply{Text: needNumberText + "\n\n" + locationMenu(names), Markdown: true}, Stay, nil
	}
	if n < 1 || n > len(names) {
		return Reply{Text: outOfRangeText(n, names), Markdown: true}, Stay, nil
	}

	reply, err := action(ctx, msg.UserID, names[n-1])
	if err != nil {
		return Reply{}, Stay, err
	}
	return reply, End, nil
}

func (m *Machine) showForecast(ctx context.Context, userID int64, name string) (Reply, error) {
	loc, err := m.locations.Get(ctx, userID, name)
	if err != nil {
		return Reply{}, fmt.Errorf("location %q: %w", name, err)
	}

	forecast, err := m.forecasts.RequestWeather(ctx, loc)
	if err != nil {
		return Reply{}, err
	}
	return Reply{Text: forecast.String() + "\n\n" + startInfo, Markdown: true}, nil
}

func (m *Machine) deleteLocation(ctx context.Context, userID int64, name string) (Reply, error) {
	if err := m.locations.Delete(ctx, userID, name); err != nil {
		return Reply{}, err
	}
	return Reply{Text: deletedText(name)}, nil
}
