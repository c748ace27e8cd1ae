package core

import (
	"testing"
	"time"
)

func TestDayInterval(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	in := time.Date(2025, 3, 14, 17, 45, 12, 0, loc)
	got := DayInterval(in)
	if !got.Start.Equal(time.Date(2025, 3, 14, 0, 0, 0, 0, loc)) {
		t.Fatalf("start = %v", got.Start)
	}
	if !got.End.Equal(time.Date(2025, 3, 15, 0, 0, 0, 0, loc)) {
		t.Fatalf("end = %v", got.End)
	}
	if !got.Contains(got.Start) {
		t.Fatalf("interval must contain its start")
	}
	if got.Contains(got.End) {
		t.Fatalf("interval must not contain its end")
	}
}

func TestDayIntervalDST(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Rome")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	cases := []struct {
		day  time.Time
		want time.Duration
	}{
		{time.Date(2025, 3, 30, 12, 0, 0, 0, loc), 23 * time.Hour},
		{time.Date(2025, 10, 26, 12, 0, 0, 0, loc), 25 * time.Hour},
		{time.Date(2025, 6, 1, 12, 0, 0, 0, loc), 24 * time.Hour},
	}
	for _, tc := range cases {
		iv := DayInterval(tc.day)
		if d := iv.End.Sub(iv.Start); d != tc.want {
			t.Fatalf("%s: length %v, want %v", tc.day.Format(DayLayout), d, tc.want)
		}
		if iv.End.Hour() != 0 || iv.End.Day() != tc.day.Day()+1 {
			t.Fatalf("%s: end %v is not next midnight", tc.day.Format(DayLayout), iv.End)
		}
	}
}

func TestLast7Days(t *testing.T) {
	end := time.Date(2025, 3, 2, 20, 0, 0, 0, time.UTC)
	days := Last7Days(end)
	if len(days) != WeekLength {
		t.Fatalf("len = %d", len(days))
	}
	want := []string{"2025-02-24", "2025-02-25", "2025-02-26", "2025-02-27", "2025-02-28", "2025-03-01", "2025-03-02"}
	for i, d := range days {
		if got := d.Format(DayLayout); got != want[i] {
			t.Fatalf("day %d = %s, want %s", i, got, want[i])
		}
		if !d.Equal(StartOfDay(d)) {
			t.Fatalf("day %d is not a start of day: %v", i, d)
		}
	}
}

func TestParseDay(t *testing.T) {
	d, err := ParseDay("2025-07-04", time.UTC)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if d.Year() != 2025 || d.Month() != time.July || d.Day() != 4 {
		t.Fatalf("unexpected day %v", d)
	}
	if _, err := ParseDay("04/07/2025", time.UTC); err == nil {
		t.Fatalf("expected error for bad layout")
	}
}

func TestSummarizeWeek(t *testing.T) {
	end := time.Date(2025, 5, 10, 9, 0, 0, 0, time.UTC)
	inWindow := NewFoodEntry("a", 500, 0, 0, 0)
	inWindow.Timestamp = time.Date(2025, 5, 8, 13, 0, 0, 0, time.UTC)
	outside := NewFoodEntry("b", 900, 0, 0, 0)
	outside.Timestamp = time.Date(2025, 5, 1, 13, 0, 0, 0, time.UTC)

	week := SummarizeWeek(end, []FoodEntry{inWindow, outside}, DefaultTargets())
	if len(week) != WeekLength {
		t.Fatalf("len = %d", len(week))
	}
	for _, s := range week {
		wantCal := 0.0
		if s.Date.Day() == 8 {
			wantCal = 500
		}
		if s.Totals.Calories != wantCal {
			t.Fatalf("%s calories = %v, want %v", s.Date.Format(DayLayout), s.Totals.Calories, wantCal)
		}
	}
}
