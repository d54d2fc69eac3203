package simulation

import (
	"math"
	"strconv"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/kartoza/movie-predict/internal/numparse"
)

// roundTo rounds half away from zero at the given number of decimals,
// matching how the page displays toFixed values for slider ranges.
func roundTo(v float64, decimals int) float64 {
	p := math.Pow(10, float64(decimals))
	return math.Round(v*p) / p
}

// Formatter maps raw slider values to display strings
type Formatter struct {
	printer *message.Printer
}

// NewFormatter creates a formatter grouping thousands for the given locale
func NewFormatter(tag language.Tag) *Formatter {
	return &Formatter{printer: message.NewPrinter(tag)}
}

// ParseLocale returns a formatter for a BCP 47 tag, falling back to en-US
func ParseLocale(locale string) *Formatter {
	tag, err := language.Parse(locale)
	if err != nil {
		tag = language.AmericanEnglish
	}
	return NewFormatter(tag)
}

var defaultFormatter = NewFormatter(language.AmericanEnglish)

// Money renders an integer-truncated currency amount, "$0" when unparseable
func (f *Formatter) Money(raw string) string {
	n, ok := numparse.Trunc(raw)
	if !ok {
		n = 0
	}
	return "$" + f.printer.Sprintf("%d", n)
}

// RuntimeLabel renders whole minutes, "0 min" when unparseable
func (f *Formatter) RuntimeLabel(raw string) string {
	n, ok := numparse.Trunc(raw)
	if !ok {
		n = 0
	}
	return strconv.FormatInt(n, 10) + " min"
}

// RatingLabel renders a rating with one decimal, "0.0" when unparseable
func (f *Formatter) RatingLabel(raw string) string {
	v, ok := numparse.Float(raw)
	if !ok {
		v = 0
	}
	return strconv.FormatFloat(roundTo(v, 1), 'f', 1, 64)
}

// Label formats raw for the display slot of field
func (f *Formatter) Label(field Field, raw string) string {
	switch field {
	case FieldBudget, FieldRevenue:
		return f.Money(raw)
	case FieldRuntime:
		return f.RuntimeLabel(raw)
	case FieldVoteAverage:
		return f.RatingLabel(raw)
	}
	return ""
}

// Money formats with the default en-US formatter
func Money(raw string) string { return defaultFormatter.Money(raw) }

// RuntimeLabel formats with the default en-US formatter
func RuntimeLabel(raw string) string { return defaultFormatter.RuntimeLabel(raw) }

// RatingLabel formats with the default en-US formatter
func RatingLabel(raw string) string { return defaultFormatter.RatingLabel(raw) }

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
