package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/i474232898/weather-bot/internal/geo"
	"github.com/i474232898/weather-bot/internal/registry"
	"github.com/i474232898/weather-bot/internal/weather"
)

type stubForecaster struct {
	forecast weather.ParsedForecast
	err      error
	calls    []geo.Location
}

func (s *stubForecaster) RequestWeather(_ context.Context, loc geo.Location) (weather.ParsedForecast, error) {
	s.calls = append(s.calls, loc)
	return s.forecast, s.err
}

// downRegistry fails every call the way the durable registry does while
// disconnected.
type downRegistry struct{}

var errDown = fmt.Errorf("%w: connection refused", registry.ErrStorageUnavailable)

func (downRegistry) Keys(context.Context, int64) ([]string, error) { return nil, errDown }
func (downRegistry) Add(context.Context, int64, string, geo.Location) error {
	return errDown
}
func (downRegistry) Get(context.Context, int64, string) (geo.Location, error) {
	return geo.Location{}, errDown
}
func (downRegistry) Delete(context.Context, int64, string) error { return errDown }

const userID int64 = 42

func text(s string) Message { return Message{UserID: userID, Text: s} }

func pin(lat, lon float64) Message {
	return Message{UserID: userID, Pin: &geo.Location{Lat: lat, Lon: lon}}
}

func newTestMachine(t *testing.T, reg registry.Registry, f Forecaster) *Machine {
	t.Helper()
	if reg == nil {
		reg = registry.NewMemoryRegistry()
	}
	if f == nil {
		f = &stubForecaster{}
	}
	return NewMachine(reg, f, "@operator")
}

func handle(t *testing.T, m *Machine, sess *Session, msg Message) Reply {
	t.Helper()
	reply, err := m.Handle(context.Background(), sess, msg)
	if err != nil {
		t.Fatalf("Handle(%+v): %v", msg, err)
	}
	return reply
}

func expectState(t *testing.T, sess *Session, want State) {
	t.Helper()
	if sess.State != want {
		t.Fatalf("expected state %s, got %s", want, sess.State)
	}
}

func TestStartShowsMainMenu(t *testing.T) {
	m := newTestMachine(t, nil, nil)
	sess := &Session{}

	reply := handle(t, m, sess, text(CommandStart))

	expectState(t, sess, StateMenu)
	if len(reply.Keyboard) != 2 || reply.Keyboard[0][0] != OptionGetForecast {
		t.Fatalf("unexpected keyboard: %v", reply.Keyboard)
	}
	if reply.Placeholder != menuPlaceholder {
		t.Fatalf("expected placeholder %q, got %q", menuPlaceholder, reply.Placeholder)
	}
}

func TestStartRestartsFromAnyState(t *testing.T) {
	m := newTestMachine(t, nil, nil)
	sess := &Session{State: StateAwaitLocationName, Pending: &geo.Location{Lat: 1, Lon: 2}}

	handle(t, m, sess, text(CommandStart))

	expectState(t, sess, StateMenu)
	if sess.Pending != nil {
		t.Fatal("expected pending pin to be dropped")
	}
}

func TestAddLocationFlow(t *testing.T) {
	reg := registry.NewMemoryRegistry()
	m := newTestMachine(t, reg, nil)
	sess := &Session{}

	handle(t, m, sess, text(CommandStart))
	reply := handle(t, m, sess, text(OptionAddLocation))
	expectState(t, sess, StateAwaitLocationPin)
	if !reply.RemoveKeyboard {
		t.Fatal("expected the keyboard to be removed")
	}

	handle(t, m, sess, pin(55.75, 37.61))
	expectState(t, sess, StateAwaitLocationName)

	reply = handle(t, m, sess, text("  Home  "))
	expectState(t, sess, StateEnd)
	if !strings.Contains(reply.Text, "Home") {
		t.Fatalf("expected confirmation to mention the name, got %q", reply.Text)
	}

	got, err := reg.Get(context.Background(), userID, "Home")
	if err != nil {
		t.Fatalf("expected saved location, got %v", err)
	}
	if got != (geo.Location{Lat: 55.75, Lon: 37.61}) {
		t.Fatalf("unexpected location %+v", got)
	}
}

func TestAwaitPinRepromptsOnText(t *testing.T) {
	m := newTestMachine(t, nil, nil)
	sess := &Session{State: StateAwaitLocationPin}

	reply := handle(t, m, sess, text("Moscow"))

	expectState(t, sess, StateAwaitLocationPin)
	if reply.Text != needPinText {
		t.Fatalf("expected %q, got %q", needPinText, reply.Text)
	}
}

func TestAwaitNameRepromptsOnPinOrBlank(t *testing.T) {
	m := newTestMachine(t, nil, nil)

	for _, msg := range []Message{pin(1, 2), text("   ")} {
		sess := &Session{State: StateAwaitLocationName, Pending: &geo.Location{Lat: 3, Lon: 4}}
		reply := handle(t, m, sess, msg)

		expectState(t, sess, StateAwaitLocationName)
		if reply.Text != needNameText {
			t.Fatalf("expected %q, got %q", needNameText, reply.Text)
		}
		if sess.Pending == nil || *sess.Pending != (geo.Location{Lat: 3, Lon: 4}) {
			t.Fatalf("expected pending pin to be kept, got %+v", sess.Pending)
		}
	}
}

func seed(t *testing.T, reg registry.Registry, names ...string) {
	t.Helper()
	for i, name := range names {
		if err := reg.Add(context.Background(), userID, name, geo.Location{Lat: float64(i), Lon: float64(i)}); err != nil {
			t.Fatalf("seed %s: %v", name, err)
		}
	}
}

func TestForecastFlow(t *testing.T) {
	reg := registry.NewMemoryRegistry()
	seed(t, reg, "Work", "Home")
	forecaster := &stubForecaster{forecast: weather.ParsedForecast{
		Days: []weather.DayForecast{{
			Date:  "2024-05-01",
			Parts: []weather.DayPart{{Name: "Утро", Condition: "дождь"}},
		}},
	}}
	m := newTestMachine(t, reg, forecaster)
	sess := &Session{}

	handle(t, m, sess, text(CommandStart))
	reply := handle(t, m, sess, text(OptionGetForecast))
	expectState(t, sess, StateSelectForForecast)
	if want := locationMenuHeader + "\n1. Home\n2. Work"; reply.Text != want {
		t.Fatalf("expected menu %q, got %q", want, reply.Text)
	}

	reply = handle(t, m, sess, text("3"))
	expectState(t, sess, StateSelectForForecast)
	if !strings.Contains(reply.Text, "3") || !strings.Contains(reply.Text, "1. Home") {
		t.Fatalf("expected out of range notice with the menu, got %q", reply.Text)
	}

	reply = handle(t, m, sess, text("1"))
	expectState(t, sess, StateEnd)
	if !strings.Contains(reply.Text, "*2024-05-01*\nУтро: дождь") {
		t.Fatalf("expected rendered forecast, got %q", reply.Text)
	}
	if !reply.Markdown {
		t.Fatal("expected forecast to be sent as Markdown")
	}
	if len(forecaster.calls) != 1 || forecaster.calls[0] != (geo.Location{Lat: 1, Lon: 1}) {
		t.Fatalf("expected one request for Home, got %+v", forecaster.calls)
	}
}

func TestSelectRejectsNonNumbers(t *testing.T) {
	reg := registry.NewMemoryRegistry()
	seed(t, reg, "Home")
	m := newTestMachine(t, reg, nil)

	for _, msg := range []Message{text("Home"), pin(1, 1)} {
		sess := &Session{State: StateSelectForForecast}
		reply := handle(t, m, sess, msg)

		expectState(t, sess, StateSelectForForecast)
		if !strings.HasPrefix(reply.Text, needNumberText) {
			t.Fatalf("expected number hint, got %q", reply.Text)
		}
	}
}

func TestSelectZeroCancels(t *testing.T) {
	m := newTestMachine(t, downRegistry{}, nil)
	sess := &Session{State: StateSelectForDelete}

	reply := handle(t, m, sess, text("0"))

	expectState(t, sess, StateEnd)
	if reply.Text != startInfo {
		t.Fatalf("expected %q, got %q", startInfo, reply.Text)
	}
}

func TestEmptyListEndsConversation(t *testing.T) {
	m := newTestMachine(t, nil, nil)

	for _, option := range []string{OptionGetForecast, OptionDeleteLocation} {
		sess := &Session{State: StateMenu}
		reply := handle(t, m, sess, text(option))

		expectState(t, sess, StateEnd)
		if reply.Text != noLocationsText {
			t.Fatalf("%s: expected %q, got %q", option, noLocationsText, reply.Text)
		}
	}
}

func TestDeleteFlow(t *testing.T) {
	reg := registry.NewMemoryRegistry()
	seed(t, reg, "Home", "Work")
	m := newTestMachine(t, reg, nil)
	sess := &Session{State: StateMenu}

	handle(t, m, sess, text(OptionDeleteLocation))
	expectState(t, sess, StateSelectForDelete)

	reply := handle(t, m, sess, text("2"))
	expectState(t, sess, StateEnd)
	if !strings.Contains(reply.Text, "Work") {
		t.Fatalf("expected confirmation to mention Work, got %q", reply.Text)
	}

	names, err := reg.Keys(context.Background(), userID)
	if err != nil {
		t.Fatal(err)
	}
	if len(names) != 1 || names[0] != "Home" {
		t.Fatalf("expected only Home to remain, got %v", names)
	}
}

func TestMenuExitAndUnknown(t *testing.T) {
	m := newTestMachine(t, nil, nil)
	tests := []struct {
		msg  Message
		want string
	}{
		{text(OptionExit), exitText},
		{text("погода"), unknownCommandText},
		{pin(1, 1), unknownCommandText},
	}

	for _, tt := range tests {
		sess := &Session{State: StateMenu}
		reply := handle(t, m, sess, tt.msg)

		expectState(t, sess, StateEnd)
		if reply.Text != tt.want {
			t.Fatalf("expected %q, got %q", tt.want, reply.Text)
		}
	}
}

func TestCancel(t *testing.T) {
	m := newTestMachine(t, nil, nil)

	sess := &Session{State: StateAwaitLocationName, Pending: &geo.Location{}}
	reply := handle(t, m, sess, text(CommandCancel))
	expectState(t, sess, StateEnd)
	if reply.Text != exitText || sess.Pending != nil {
		t.Fatalf("expected cancelled session, got %q %+v", reply.Text, sess)
	}

	reply = handle(t, m, sess, text(CommandCancel))
	if reply.Text != entryText {
		t.Fatalf("expected entry text outside a conversation, got %q", reply.Text)
	}
}

func TestNoConversationShowsEntryText(t *testing.T) {
	m := newTestMachine(t, nil, nil)
	sess := &Session{}

	reply := handle(t, m, sess, text("hello"))

	expectState(t, sess, StateEnd)
	if reply.Text != entryText {
		t.Fatalf("expected %q, got %q", entryText, reply.Text)
	}
}

func TestStorageFailureEndsConversation(t *testing.T) {
	m := newTestMachine(t, downRegistry{}, nil)
	sess := &Session{State: StateMenu}

	reply, err := m.Handle(context.Background(), sess, text(OptionGetForecast))

	if !errors.Is(err, registry.ErrStorageUnavailable) {
		t.Fatalf("expected storage error, got %v", err)
	}
	expectState(t, sess, StateEnd)
	if !strings.HasPrefix(reply.Text, "Случилась ошибка во время работы с базой данных:") {
		t.Fatalf("unexpected reply %q", reply.Text)
	}
	if !strings.Contains(reply.Text, "@operator") || !reply.RemoveKeyboard {
		t.Fatalf("expected operator contact and removed keyboard, got %+v", reply)
	}
}

func TestWeatherFailureEndsConversation(t *testing.T) {
	reg := registry.NewMemoryRegistry()
	seed(t, reg, "Home")
	forecaster := &stubForecaster{err: &weather.RequestFailedError{StatusCode: 403, Body: "forbidden"}}
	m := newTestMachine(t, reg, forecaster)
	sess := &Session{State: StateSelectForForecast}

	reply, err := m.Handle(context.Background(), sess, text("1"))

	if err == nil {
		t.Fatal("expected error")
	}
	expectState(t, sess, StateEnd)
	if !strings.HasPrefix(reply.Text, "Случилась ошибка во время запроса к серверу погоды Yandex:") {
		t.Fatalf("unexpected reply %q", reply.Text)
	}
	if !strings.Contains(reply.Text, "403: forbidden") {
		t.Fatalf("expected status in reply, got %q", reply.Text)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err  error
		want ErrorKind
	}{
		{errDown, KindStorage},
		{fmt.Errorf("wrap: %w", weather.ErrProviderUnavailable), KindWeather},
		{&weather.RequestFailedError{StatusCode: 500}, KindWeather},
		{fmt.Errorf("location: %w", registry.ErrNotFound), KindNotFound},
		{errors.New("boom"), KindUnexpected},
	}

	for _, tt := range tests {
		if got := Classify(tt.err); got != tt.want {
			t.Errorf("Classify(%v) = %s, want %s", tt.err, got, tt.want)
		}
	}
}

func TestErrorReplyEscapesMarkdownOutsideItalics(t *testing.T) {
	reply := ErrorReply(errors.New("open /data/weather_bot.db: *x*"), "@op_name")

	if want := `_open /data/weather_\__bot.db: _\*_x_\*`; !strings.Contains(reply.Text, want) {
		t.Fatalf("expected %q in reply, got %q", want, reply.Text)
	}
	if !strings.Contains(reply.Text, `@op\_name`) {
		t.Fatalf("expected escaped contact, got %q", reply.Text)
	}
}

func TestItalicMarkdown(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"boom", "_boom_"},
		{"_x", `\__x_`},
		{"x_", `_x_\_`},
		{"a__b", `_a_\_\__b_`},
		{"[link](u)", `\[_link](u)_`},
		{"`code`", "\\`_code_\\`"},
	}

	for _, tt := range tests {
		if got := italicMarkdown(tt.in); got != tt.want {
			t.Errorf("italicMarkdown(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestErrorReplyCapsLongErrors(t *testing.T) {
	err := &weather.RequestFailedError{StatusCode: 502, Body: strings.Repeat("x", 10000)}

	reply := ErrorReply(err, "@operator")

	if n := utf8.RuneCountInString(reply.Text); n > 4096 {
		t.Fatalf("expected reply within the Telegram limit, got %d runes", n)
	}
	if !strings.Contains(reply.Text, "502: xxx") || !strings.Contains(reply.Text, "…") {
		t.Fatalf("expected truncated error text, got %q", reply.Text[:200])
	}
	if !strings.HasSuffix(reply.Text, exitText) {
		t.Fatal("expected the exit text to survive truncation")
	}
}
