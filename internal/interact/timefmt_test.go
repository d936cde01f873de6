package interact_test

import (
	"errors"
	"testing"

	"github.com/MrWong99/wavecue/internal/interact"
)

func TestFormatTime(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   float64
		want string
	}{
		{0, "0:00.000"},
		{12.345, "0:12.345"},
		{61.25, "1:01.250"},
		{180, "3:00.000"},
		{59.9996, "1:00.000"},
		{-3, "0:00.000"},
		{3725.5, "62:05.500"},
	}
	for _, tc := range tests {
		if got := interact.FormatTime(tc.in); got != tc.want {
			t.Errorf("FormatTime(%v) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestParseTime_Valid(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   string
		want float64
	}{
		{"0:12.345", 12.345},
		{"1:01.25", 61.25},
		{"02:30", 150},
		{"  1:00.5 ", 60.5},
		{"12.345", 12.345},
		{"90", 90},
		{"0:00.000", 0},
		{"3:00.000", 180},
	}
	for _, tc := range tests {
		got, err := interact.ParseTime(tc.in, 180)
		if err != nil {
			t.Errorf("ParseTime(%q): %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseTime(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestParseTime_Malformed(t *testing.T) {
	t.Parallel()
	for _, in := range []string{"", "abc", "1:", ":30", "1:60", "1:2:3", "-1:00", "1:00.1234", "1:00.", "0:1x", "1.2.3", "-0:05", "+1:05", "+0:00.500", "1 :05"} {
		if _, err := interact.ParseTime(in, 180); !errors.Is(err, interact.ErrInvalidFormat) {
			t.Errorf("ParseTime(%q) err = %v, want ErrInvalidFormat", in, err)
		}
	}
}

func TestParseTime_OutOfRange(t *testing.T) {
	t.Parallel()
	_, err := interact.ParseTime("3:00.001", 180)
	var re *interact.RangeError
	if !errors.As(err, &re) {
		t.Fatalf("err = %v, want *RangeError", err)
	}
	if re.Value != 180.001 {
		t.Errorf("Value = %v, want 180.001", re.Value)
	}
	const want = "Please enter a time between 0:00.000 and 3:00.000"
	if err.Error() != want {
		t.Errorf("message = %q, want %q", err.Error(), want)
	}
}

func TestParseFormatRoundTrip(t *testing.T) {
	t.Parallel()
	for _, v := range []float64{0, 0.001, 12.345, 59.999, 61.25, 179.5} {
		got, err := interact.ParseTime(interact.FormatTime(v), 180)
		if err != nil || got != v {
			t.Errorf("round trip of %v = %v, %v", v, got, err)
		}
	}
}
