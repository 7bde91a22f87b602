package content

import (
	"math"
	"strconv"
	"strings"
)

const wordsPerMinute = 200

// Reading-time units.
const (
	UnitMinutes = "min"
	UnitHours   = "hrs"
)

// ReadingTime is an estimated reading duration. Value is fractional when
// Unit is UnitHours.
type ReadingTime struct {
	Value float64
	Unit  string
}

// String renders the duration as "<value> <unit>", e.g. "4 min".
func (r ReadingTime) String() string {
	return strconv.FormatFloat(r.Value, 'f', -1, 64) + " " + r.Unit
}

// EstimateReadingTime counts the words in texts at 200 words per minute.
// Brackets are stripped before counting, so "[hello] world" is two words.
// Anything over 60 minutes is reported in hours, unrounded.
// Empty content reads in 0 min.
func EstimateReadingTime(texts []string) ReadingTime {
	words := CountWords(texts)
	minutes := int(math.Ceil(float64(words) / wordsPerMinute))
	if minutes > 60 {
		return ReadingTime{Value: float64(minutes) / 60, Unit: UnitHours}
	}
	return ReadingTime{Value: float64(minutes), Unit: UnitMinutes}
}

var bracketStripper = strings.NewReplacer("[", "", "]", "")

// CountWords concatenates texts, strips '[' and ']' and counts the
// whitespace-separated tokens. The last word of one text and the first word
// of the next count as one.
func CountWords(texts []string) int {
	joined := bracketStripper.Replace(strings.Join(texts, ""))
	return len(strings.Fields(joined))
}
