package harvest

import (
	"strconv"
	"strings"
	"time"

	"github.com/goodsign/monday"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

const (
	// DefaultLocale matches the farm's regional formatting.
	DefaultLocale = "es-CO"

	shortDateLayout = "02/01/2006"
	longDateLayout  = "2 de January de 2006"
)

// FormatDate renders the entry date as dd/mm/yyyy.
func FormatDate(t time.Time) string {
	return t.Format(shortDateLayout)
}

// FormatKg renders kilograms with two decimals.
func FormatKg(kg float64) string {
	return strconv.FormatFloat(kg, 'f', 2, 64)
}

// Formatter renders currency and dates for one locale and timezone.
type Formatter struct {
	tag      language.Tag
	printer  *message.Printer
	location *time.Location
}

// NewFormatter builds a formatter. Empty values fall back to es-CO and
// time.Local.
func NewFormatter(locale, timezone string) (Formatter, error) {
	locale = strings.TrimSpace(locale)
	if locale == "" {
		locale = DefaultLocale
	}
	tag, err := language.Parse(locale)
	if err != nil {
		return Formatter{}, NewError(KindValidation, "invalid locale", err)
	}

	location := time.Local
	if tz := strings.TrimSpace(timezone); tz != "" {
		location, err = time.LoadLocation(tz)
		if err != nil {
			return Formatter{}, NewError(KindValidation, "invalid timezone", err)
		}
	}

	return Formatter{tag: tag, printer: message.NewPrinter(tag), location: location}, nil
}

// Location returns the formatter timezone.
func (f Formatter) Location() *time.Location {
	if f.location == nil {
		return time.Local
	}
	return f.location
}

// Currency renders whole pesos with locale grouping, e.g. "$ 150.000".
func (f Formatter) Currency(amount int64) string {
	printer := f.printer
	if printer == nil {
		printer = message.NewPrinter(language.Make(DefaultLocale))
	}
	return "$ " + printer.Sprint(number.Decimal(amount, number.MaxFractionDigits(0)))
}

// Price renders a per-kilogram price rounded to whole pesos.
func (f Formatter) Price(price float64) string {
	return f.Currency(EntryTotal(1, price))
}

// Date renders t as dd/mm/yyyy in the formatter timezone.
func (f Formatter) Date(t time.Time) string {
	return FormatDate(t.In(f.Location()))
}

// LongDate renders t with the localized month name, e.g. "15 de marzo de 2024".
func (f Formatter) LongDate(t time.Time) string {
	return monday.Format(t.In(f.Location()), longDateLayout, f.mondayLocale())
}

func (f Formatter) mondayLocale() monday.Locale {
	base, _ := f.tag.Base()
	switch base.String() {
	case "es":
		return monday.LocaleEsES
	case "pt":
		return monday.LocalePtBR
	case "fr":
		return monday.LocaleFrFR
	default:
		return monday.LocaleEnUS
	}
}
