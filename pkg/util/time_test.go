package util

import (
	"testing"
	"time"
)

func TestFormatDuration(t *testing.T) {
	cases := []struct {
		d    time.Duration
		want string
	}{
		{0, "00:00:00.000"},
		{90 * time.Second, "00:01:30.000"},
		{time.Hour + 2*time.Minute + 3*time.Second + 500*time.Millisecond, "01:02:03.500"},
	}

	for _, tc := range cases {
		if got := FormatDuration(tc.d); got != tc.want {
			t.Errorf("FormatDuration(%v) = %q, want %q", tc.d, got, tc.want)
		}
	}
}

func TestFormatSeconds(t *testing.T) {
	if got := FormatSeconds(65.25); got != "00:01:05.250" {
		t.Errorf("FormatSeconds(65.25) = %q", got)
	}
}

func TestParseTimestamp(t *testing.T) {
	cases := []struct {
		in   string
		want time.Duration
	}{
		{"45.5", 45*time.Second + 500*time.Millisecond},
		{"01:30", 90 * time.Second},
		{"01:02:03", time.Hour + 2*time.Minute + 3*time.Second},
	}

	for _, tc := range cases {
		got, err := ParseTimestamp(tc.in)
		if err != nil {
			t.Errorf("ParseTimestamp(%q) error: %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseTimestamp(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}

	if _, err := ParseTimestamp("1:2:3:4"); err == nil {
		t.Error("expected error for malformed timestamp")
	}
	if _, err := ParseTimestamp("abc"); err == nil {
		t.Error("expected error for non-numeric timestamp")
	}
}

func TestParseFrameRate(t *testing.T) {
	if got := ParseFrameRate("30/1"); got != 30 {
		t.Errorf("ParseFrameRate(30/1) = %f", got)
	}
	if got := ParseFrameRate("30000/1001"); got < 29.9 || got > 30 {
		t.Errorf("ParseFrameRate(30000/1001) = %f", got)
	}
	if got := ParseFrameRate("bad"); got != 0 {
		t.Errorf("ParseFrameRate(bad) = %f, want 0", got)
	}
	if got := ParseFrameRate("30/0"); got != 0 {
		t.Errorf("ParseFrameRate(30/0) = %f, want 0", got)
	}
}
