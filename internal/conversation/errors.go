package conversation

import (
	"errors"
	"fmt"

	"github.com/i474232898/weather-bot/internal/registry"
	"github.com/i474232898/weather-bot/internal/weather"
)

// ErrorKind classifies a failed interaction.
type ErrorKind string

const (
	KindStorage    ErrorKind = "storage"
	KindWeather    ErrorKind = "weather"
	KindNotFound   ErrorKind = "not_found"
	KindUnexpected ErrorKind = "unexpected"
)

// Classify maps err onto the error taxonomy shown to users.
func Classify(err error) ErrorKind {
	var reqErr *weather.RequestFailedError
	switch {
	case errors.Is(err, registry.ErrStorageUnavailable):
		return KindStorage
	case errors.As(err, &reqErr), errors.Is(err, weather.ErrProviderUnavailable):
		return KindWeather
	case errors.Is(err, registry.ErrNotFound):
		return KindNotFound
	default:
		return KindUnexpected
	}
}

// ErrorReply builds the message sent when an interaction fails. contact is
// who users are told to reach.
func ErrorReply(err error, contact string) Reply {
	var header, advice string
	switch Classify(err) {
	case KindStorage:
		header = "Случилась ошибка во время работы с базой данных:"
		advice = "Попробуйте позднее"
	case KindWeather:
		header = "Случилась ошибка во время запроса к серверу погоды Yandex:"
		advice = "Попробуйте позднее"
	case KindNotFound:
		header = "Выбранная локация больше не существует:"
		advice = "Выберите другую локацию"
	default:
		header = "Случилась неожиданная ошибка:"
		advice = "Попробуйте еще раз"
	}

	text := fmt.Sprintf("%s\n%s\n\n%s либо обратитесь к %s.\n\n%s",
		header, italicMarkdown(truncateRunes(err.Error(), maxErrorRunes)), advice, escapeMarkdown(contact), exitText)

	return Reply{Text: text, Markdown: true, RemoveKeyboard: true}
}
