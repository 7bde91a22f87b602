package content

import (
	"errors"
	"testing"
	"time"

	"github.com/eringen/spacetraveling/faults"
)

func TestFormatDate(t *testing.T) {
	tests := []struct {
		in   time.Time
		want string
	}{
		{time.Date(2021, time.April, 19, 0, 0, 0, 0, time.UTC), "19 Abr 2021"},
		{time.Date(2021, time.March, 5, 23, 59, 0, 0, time.UTC), "05 Mar 2021"},
		{time.Date(2020, time.February, 29, 12, 0, 0, 0, time.UTC), "29 Fev 2020"},
		{time.Date(2019, time.December, 31, 12, 0, 0, 0, time.UTC), "31 Dez 2019"},
		{time.Date(2022, time.August, 1, 12, 0, 0, 0, time.UTC), "01 Ago 2022"},
	}
	for _, tt := range tests {
		if got := FormatDate(tt.in); got != tt.want {
			t.Errorf("FormatDate(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatterLocation(t *testing.T) {
	saoPaulo := time.FixedZone("BRT", -3*60*60)
	ts := time.Date(2021, time.April, 19, 1, 0, 0, 0, time.UTC)

	if got := (Formatter{Location: saoPaulo}).Format(ts); got != "18 Abr 2021" {
		t.Errorf("Format in BRT = %q, want %q", got, "18 Abr 2021")
	}
	if got := (Formatter{}).Format(ts.In(saoPaulo)); got != "18 Abr 2021" {
		t.Errorf("Format keeping zone = %q, want %q", got, "18 Abr 2021")
	}
}

func TestFormatString(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"2021-04-19T19:25:28+0000", "19 Abr 2021"},
		{"2021-04-19T19:25:28Z", "19 Abr 2021"},
		{"2021-04-19", "19 Abr 2021"},
	}
	for _, tt := range tests {
		got, err := DefaultFormatter.FormatString(tt.in)
		if err != nil {
			t.Fatalf("FormatString(%q): %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("FormatString(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatStringInvalid(t *testing.T) {
	for _, in := range []string{"", "19/04/2021", "not a date", "2021-13-01"} {
		_, err := DefaultFormatter.FormatString(in)
		if !errors.Is(err, faults.ErrInvalidDate) {
			t.Errorf("FormatString(%q) err = %v, want InvalidDate", in, err)
		}
	}
}

func TestFormatPtr(t *testing.T) {
	_, err := DefaultFormatter.FormatPtr(nil)
	if !errors.Is(err, faults.ErrInvalidDate) {
		t.Errorf("FormatPtr(nil) err = %v, want InvalidDate", err)
	}
	var fe *faults.Error
	if !errors.As(err, &fe) || fe.Op != "content.FormatPtr" {
		t.Errorf("FormatPtr(nil) op = %v, want content.FormatPtr", err)
	}
	if got := DefaultFormatter.DisplayDate(nil); got != DatePlaceholder {
		t.Errorf("DisplayDate(nil) = %q, want placeholder", got)
	}
	ts := time.Date(2021, time.April, 19, 0, 0, 0, 0, time.UTC)
	if got := DefaultFormatter.DisplayDate(&ts); got != "19 Abr 2021" {
		t.Errorf("DisplayDate() = %q", got)
	}
}
