package content

import (
	"fmt"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/eringen/spacetraveling/faults"
)

// PrismicLayout is the timestamp layout used by the CMS, e.g.
// 2021-03-25T19:25:28+0000.
const PrismicLayout = "2006-01-02T15:04:05-0700"

// DatePlaceholder is rendered in place of a date that cannot be formatted.
const DatePlaceholder = "—"

// ptBR month abbreviations, as date-fns prints them for MMM.
var monthsPTBR = [12]string{"jan", "fev", "mar", "abr", "mai", "jun", "jul", "ago", "set", "out", "nov", "dez"}

var dateLayouts = []string{
	PrismicLayout,
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02",
}

// Formatter renders dates as "dd Mmm yyyy" in Brazilian Portuguese.
type Formatter struct {
	// Location converts timestamps before formatting. Nil keeps each
	// timestamp in its own zone.
	Location *time.Location
}

// DefaultFormatter formats in UTC.
var DefaultFormatter = Formatter{Location: time.UTC}

// Format renders t, e.g. "19 Abr 2021".
func (f Formatter) Format(t time.Time) string {
	if f.Location != nil {
		t = t.In(f.Location)
	}
	// A Caser is stateful, so each call gets its own.
	month := cases.Title(language.BrazilianPortuguese).String(monthsPTBR[t.Month()-1])
	return fmt.Sprintf("%02d %s %d", t.Day(), month, t.Year())
}

// FormatPtr formats a nullable timestamp. Nil yields an InvalidDate error.
func (f Formatter) FormatPtr(t *time.Time) (string, error) {
	if t == nil {
		return "", faults.InvalidDate("content.FormatPtr", fmt.Errorf("no date"))
	}
	return f.Format(*t), nil
}

// FormatString parses s as a CMS timestamp, an RFC 3339 timestamp or a
// plain yyyy-mm-dd date and formats it.
func (f Formatter) FormatString(s string) (string, error) {
	t, err := ParseDate(s)
	if err != nil {
		return "", err
	}
	return f.Format(t), nil
}

// ParseDate accepts the layouts FormatString does.
func ParseDate(s string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, faults.InvalidDate("content.ParseDate", fmt.Errorf("unrecognised date %q", s))
}

// FormatDate formats t with DefaultFormatter.
func FormatDate(t time.Time) string {
	return DefaultFormatter.Format(t)
}

// DisplayDate formats a nullable timestamp with f, falling back to
// DatePlaceholder.
func (f Formatter) DisplayDate(t *time.Time) string {
	s, err := f.FormatPtr(t)
	if err != nil {
		return DatePlaceholder
	}
	return s
}
