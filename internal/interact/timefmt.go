package interact

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrInvalidFormat is returned by [ParseTime] for input that is not a time.
// Its message is suitable for showing to the user.
var ErrInvalidFormat = errors.New("Invalid time format. Please use mm:ss.ms")

// RangeError is returned by [ParseTime] when a well-formed time lies outside
// [0, Max]. Its message is suitable for showing to the user.
type RangeError struct {
	Value float64
	Max   float64
}

// Error implements error.
func (e *RangeError) Error() string {
	return fmt.Sprintf("Please enter a time between 0:00.000 and %s", FormatTime(e.Max))
}

// FormatTime renders seconds as M:SS.mmm. Negative input renders as 0.
func FormatTime(seconds float64) string {
	ms := int64(math.Round(max(0, seconds) * 1000))
	return fmt.Sprintf("%d:%02d.%03d", ms/60000, (ms%60000)/1000, ms%1000)
}

// ParseTime parses M:SS, M:SS.mmm or SS.mmm into seconds rounded to the
// millisecond and checks it against [0, duration].
func ParseTime(input string, duration float64) (float64, error) {
	s := strings.TrimSpace(input)
	if s == "" {
		return 0, ErrInvalidFormat
	}

	var minutes int64
	secPart := s
	if before, after, found := strings.Cut(s, ":"); found {
		if before == "" || !allDigits(before) {
			return 0, ErrInvalidFormat
		}
		m, err := strconv.ParseInt(before, 10, 64)
		if err != nil {
			return 0, ErrInvalidFormat
		}
		minutes = m
		secPart = after
	}

	seconds, err := parseSeconds(secPart)
	if err != nil {
		return 0, err
	}
	if secPart != s && seconds >= 60 {
		return 0, ErrInvalidFormat
	}

	total := math.Round((float64(minutes)*60+seconds)*1000) / 1000
	if total < 0 || total > duration {
		return 0, &RangeError{Value: total, Max: duration}
	}
	return total, nil
}

// parseSeconds accepts digits with an optional fraction of at most three
// digits.
func parseSeconds(s string) (float64, error) {
	whole, frac, hasFrac := strings.Cut(s, ".")
	if whole == "" || !allDigits(whole) {
		return 0, ErrInvalidFormat
	}
	if hasFrac && (frac == "" || len(frac) > 3 || !allDigits(frac)) {
		return 0, ErrInvalidFormat
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, ErrInvalidFormat
	}
	return v, nil
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
