package conversation

import (
	"fmt"
	"strings"
)

// Commands and main menu options as typed by the user.
const (
	CommandStart  = "/start"
	CommandCancel = "/cancel"

	OptionGetForecast    = "Посмотреть прогноз"
	OptionAddLocation    = "Добавить локацию"
	OptionDeleteLocation = "Удалить локацию"
	OptionExit           = "Выйти"
)

const (
	startInfo = "Используйте /start, чтобы начать заново."
	exitText  = "Операция прервана. " + startInfo

	greetingText = "Привет! С помощью этого бота можно узнать, выпадут ли осадки в ближайшее время.\n\n" +
		"Выберите действие:"
	menuPlaceholder = "Действие"

	entryText          = "Используйте /start, чтобы начать."
	unknownCommandText = "Неизвестная команда. " + startInfo
	noLocationsText    = "Нет сохраненных локаций. " + startInfo

	askPinText   = "Прикрепите геолокацию места, которое хотите добавить в свой список:"
	needPinText  = "Необходимо прикрепить геолокацию. Используйте /cancel для отмены."
	askNameText  = "Придумайте название для локации:"
	needNameText = "Название локации нужно отправить текстом. Используйте /cancel для отмены."

	locationMenuHeader = "*Введите номер интересующей локации*:\n0. Отмена"
	needNumberText     = "Отправьте номер локации из списка."
)

// maxErrorRunes caps the error text embedded in a reply so the message stays
// under Telegram's 4096 character limit.
const maxErrorRunes = 1000

var mainKeyboard = [][]string{
	{OptionGetForecast, OptionAddLocation},
	{OptionDeleteLocation, OptionExit},
}

// locationMenu renders names as a numbered list; 0 is cancel.
func locationMenu(names []string) string {
	var b strings.Builder
	b.WriteString(locationMenuHeader)
	for i, name := range names {
		fmt.Fprintf(&b, "\n%d. %s", i+1, escapeMarkdown(name))
	}
	return b.String()
}

func savedText(name string) string {
	return fmt.Sprintf("Геолокация %s сохранена. %s", name, startInfo)
}

func deletedText(name string) string {
	return fmt.Sprintf("Локация %s удалена. %s", name, startInfo)
}

func outOfRangeText(n int, names []string) string {
	return fmt.Sprintf("Локации с номером %d не существует.\n\n%s", n, locationMenu(names))
}

var markdownEscaper = strings.NewReplacer(
	`_`, `\_`,
	`*`, `\*`,
	"`", "\\`",
	`[`, `\[`,
)

// escapeMarkdown makes s safe to embed in a Telegram legacy Markdown message.
func escapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}

func isMarkdownSpecial(r rune) bool {
	return r == '_' || r == '*' || r == '`' || r == '['
}

// italicMarkdown renders s in italics. Legacy Markdown has no escapes inside
// an entity, so special characters are emitted escaped between italic runs.
func italicMarkdown(s string) string {
	var b strings.Builder
	open := false
	for _, r := range s {
		special := isMarkdownSpecial(r)
		// Open before plain text, close before a special character.
		if special == open {
			b.WriteByte('_')
			open = !open
		}
		if special {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	if open {
		b.WriteByte('_')
	}
	return b.String()
}

// truncateRunes cuts s to at most n runes, marking the cut with an ellipsis.
func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "…"
}
