package post

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// TemperatureFormatter renders Celsius values with one decimal place using
// the locale's decimal separator.
type TemperatureFormatter struct {
	printer *message.Printer
}

// NewTemperatureFormatter accepts BCP 47 ("de-DE") or POSIX style ("de_DE")
// tags. Unparseable tags fall back to German.
func NewTemperatureFormatter(locale string) *TemperatureFormatter {
	tag, err := language.Parse(strings.ReplaceAll(locale, "_", "-"))
	if err != nil {
		tag = language.German
	}
	return &TemperatureFormatter{printer: message.NewPrinter(tag)}
}

// Format returns e.g. "5,5" for 5.5 under a German locale.
func (f *TemperatureFormatter) Format(celsius float64) string {
	return f.printer.Sprintf("%.1f", celsius)
}

// Record builds a WeatherRecord from raw provider values.
func (f *TemperatureFormatter) Record(minC, maxC float64, condition string) WeatherRecord {
	return WeatherRecord{
		MinTemp:   f.Format(minC),
		MaxTemp:   f.Format(maxC),
		Condition: condition,
	}
}
