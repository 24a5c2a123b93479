package weather

import (
	"strings"
)

// DayPart is one translated (day-part, condition) pair, e.g. "Утро: дождь".
type DayPart struct {
	Name      string `json:"part"`
	Condition string `json:"condition"`
}

func (p DayPart) String() string {
	return p.Name + ": " + p.Condition
}

// DayForecast holds the translated parts of one day. Days without any
// translated part are never built.
type DayForecast struct {
	Date  string    `json:"date"`
	Parts []DayPart `json:"parts"`
}

// String renders the day in Telegram Markdown with the date in bold.
func (d DayForecast) String() string {
	lines := make([]string, 0, len(d.Parts))
	for _, p := range d.Parts {
		lines = append(lines, p.String())
	}
	return "*" + d.Date + "*\n" + strings.Join(lines, "\n")
}

// ParsedForecast is what the receiver hands to the conversation. When Days
// is empty, UntilDate carries the last date the provider had data for.
type ParsedForecast struct {
	Days      []DayForecast `json:"days"`
	UntilDate string        `json:"until_date,omitempty"`
}

// HasPrecipitation reports whether any day carries a translated part.
func (f ParsedForecast) HasPrecipitation() bool {
	for _, d := range f.Days {
		if len(d.Parts) > 0 {
			return true
		}
	}
	return false
}

func (f ParsedForecast) String() string {
	switch {
	case f.HasPrecipitation():
		days := make([]string, 0, len(f.Days))
		for _, d := range f.Days {
			days = append(days, d.String())
		}
		return strings.Join(days, "\n\n")
	case f.UntilDate != "":
		return "Осадки не ожидаются вплоть до " + f.UntilDate
	default:
		return "В ближайшее время осадки не ожидаются"
	}
}
