package utils

import (
	"testing"
	"time"
)

func TestParseCalendarDate(t *testing.T) {
	got, err := ParseCalendarDate("2026-03-15")
	if err != nil {
		t.Fatalf("ParseCalendarDate: %v", err)
	}
	want := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("parsed %v; want %v", got, want)
	}
}

func TestParseCalendarDate_RejectsOtherLayouts(t *testing.T) {
	for _, value := range []string{"", "03/15/2026", "2026-3-15", "2026-03-15T10:00:00Z", "yesterday"} {
		if _, err := ParseCalendarDate(value); err == nil {
			t.Errorf("ParseCalendarDate(%q): expected error", value)
		}
	}
}

func TestToCalendarDate_TruncatesToMidnightUTC(t *testing.T) {
	loc := time.FixedZone("EST", -5*3600)
	in := time.Date(2026, 3, 15, 23, 45, 12, 0, loc)
	got := ToCalendarDate(in.UTC())
	want := time.Date(2026, 3, 16, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("ToCalendarDate = %v; want %v", got, want)
	}
}

func TestIsValidEmail(t *testing.T) {
	if !IsValidEmail("dispatch@allcitylocks.test") {
		t.Error("valid address rejected")
	}
	if IsValidEmail("not-an-email") {
		t.Error("invalid address accepted")
	}
}

func TestUniqueSlice(t *testing.T) {
	got := UniqueSlice([]int{3, 1, 3, 2, 1})
	if len(got) != 3 {
		t.Fatalf("UniqueSlice kept %d values; want 3", len(got))
	}
}
