package report

import (
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Formatter renders report numbers for display in one locale.
type Formatter struct {
	printer *message.Printer
	title   cases.Caser
}

// NewFormatter parses tag as a BCP 47 language tag; unknown tags fall back
// to English.
func NewFormatter(tag string) *Formatter {
	lang, err := language.Parse(tag)
	if err != nil {
		lang = language.English
	}
	return &Formatter{
		printer: message.NewPrinter(lang),
		title:   cases.Title(lang),
	}
}

func (f *Formatter) Count(n int) string {
	return f.printer.Sprintf("%d", n)
}

func (f *Formatter) Money(v float64) string {
	return f.printer.Sprintf("%.2f", v)
}

func (f *Formatter) Percent(share float64) string {
	return f.printer.Sprintf("%.1f%%", share*100)
}

// Label title-cases a filter value such as "all" for headings.
func (f *Formatter) Label(s string) string {
	return f.title.String(s)
}
