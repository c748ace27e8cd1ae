package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"google.golang.org/api/option"
	sheets "google.golang.org/api/sheets/v4"

	"macrotracker/internal/core"
	applog "macrotracker/internal/log"
)

var weekHeader = []any{"Date", "Calories", "Protein", "Fat", "Carbs", "Calorie target", "Adherence %", "Level", "Entries"}

// SheetsReporter overwrites one sheet with the latest seven-day summary.
type SheetsReporter struct {
	svc           *sheets.Service
	spreadsheetID string
	sheetName     string
}

func NewSheetsReporter(ctx context.Context, spreadsheetID, sheetName string, creds Credentials, opts ...option.ClientOption) (*SheetsReporter, error) {
	if spreadsheetID == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	if sheetName == "" {
		return nil, errors.New("missing sheet name")
	}
	all, err := clientOptions(ctx, creds, sheets.SpreadsheetsScope, opts)
	if err != nil {
		return nil, err
	}
	svc, err := sheets.NewService(ctx, all...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return &SheetsReporter{svc: svc, spreadsheetID: spreadsheetID, sheetName: sheetName}, nil
}

// ReportWeek clears the summary area and writes the header plus one row
// per day.
func (r *SheetsReporter) ReportWeek(ctx context.Context, week []core.DaySummary) error {
	rows := WeekRows(week)

	clearRange := a1Range(r.sheetName, "A:I")
	if _, err := r.svc.Spreadsheets.Values.Clear(r.spreadsheetID, clearRange, &sheets.ClearValuesRequest{}).Context(ctx).Do(); err != nil {
		return fmt.Errorf("clear %s: %w", clearRange, err)
	}

	rng := a1Range(r.sheetName, fmt.Sprintf("A1:I%d", len(rows)))
	vr := &sheets.ValueRange{Range: rng, Values: rows}
	if _, err := r.svc.Spreadsheets.Values.Update(r.spreadsheetID, rng, vr).ValueInputOption("RAW").Context(ctx).Do(); err != nil {
		return fmt.Errorf("update %s: %w", rng, err)
	}

	slog.InfoContext(ctx, "Mirrored week summary to Sheets",
		applog.FieldComponent, applog.ComponentGoogle,
		"range", rng,
		"days", len(week))
	return nil
}

// WeekRows renders the header row and one row per summary.
func WeekRows(week []core.DaySummary) [][]any {
	rows := make([][]any, 0, len(week)+1)
	rows = append(rows, weekHeader)
	for _, d := range week {
		rows = append(rows, []any{
			d.Date.Format(core.DayLayout),
			round1(d.Totals.Calories),
			round1(d.Totals.Protein),
			round1(d.Totals.Fat),
			round1(d.Totals.Carbs),
			round1(d.Targets.CaloriesTarget),
			round1(d.Adherence * 100),
			string(d.Level),
			d.EntryCount,
		})
	}
	return rows
}

// a1Range quotes the sheet so names with spaces or quotes stay valid.
func a1Range(sheet, cells string) string {
	return "'" + strings.ReplaceAll(sheet, "'", "''") + "'!" + cells
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
