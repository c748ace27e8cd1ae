package core

import "time"

// DaySummary is the progress of a single calendar day against targets.
type DaySummary struct {
	Date       time.Time
	Totals     MacroTotals
	Targets    MacroTargets
	Remaining  MacroTotals
	Adherence  float64
	Level      AdherenceLevel
	EntryCount int
}

// Summarize builds the summary of day from the entries logged on it.
func Summarize(day time.Time, entries []FoodEntry, targets MacroTargets) DaySummary {
	totals := Totals(entries)
	adherence := Adherence(totals, targets)
	return DaySummary{
		Date:       StartOfDay(day),
		Totals:     totals,
		Targets:    targets,
		Remaining:  Remaining(totals, targets),
		Adherence:  adherence,
		Level:      LevelFor(adherence),
		EntryCount: len(entries),
	}
}

// SummarizeWeek buckets entries into the seven days ending on end.
// Entries outside the window are ignored.
func SummarizeWeek(end time.Time, entries []FoodEntry, targets MacroTargets) []DaySummary {
	days := Last7Days(end)
	out := make([]DaySummary, 0, len(days))
	for _, day := range days {
		interval := DayInterval(day)
		var bucket []FoodEntry
		for _, e := range entries {
			if interval.Contains(e.Timestamp) {
				bucket = append(bucket, e)
			}
		}
		out = append(out, Summarize(day, bucket, targets))
	}
	return out
}
