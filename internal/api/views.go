// Package api holds the JSON shapes served over HTTP and the realtime
// socket.
package api

import (
	"time"

	"github.com/google/uuid"

	"macrotracker/internal/core"
)

type (
	Macros struct {
		Calories float64 `json:"calories"`
		Protein  float64 `json:"protein"`
		Fat      float64 `json:"fat"`
		Carbs    float64 `json:"carbs"`
	}

	Targets struct {
		CaloriesTarget float64 `json:"caloriesTarget"`
		ProteinTarget  float64 `json:"proteinTarget"`
		FatTarget      float64 `json:"fatTarget"`
		CarbsTarget    float64 `json:"carbsTarget"`
	}

	Summary struct {
		Date       string  `json:"date"`
		Totals     Macros  `json:"totals"`
		Targets    Targets `json:"targets"`
		Remaining  Macros  `json:"remaining"`
		Adherence  float64 `json:"adherence"`
		Level      string  `json:"level"`
		EntryCount int     `json:"entryCount"`
	}

	Entry struct {
		ID        uuid.UUID `json:"id"`
		Name      string    `json:"name"`
		Serving   string    `json:"serving,omitempty"`
		Servings  float64   `json:"servings"`
		Calories  float64   `json:"calories"`
		Protein   float64   `json:"protein"`
		Fat       float64   `json:"fat"`
		Carbs     float64   `json:"carbs"`
		Timestamp time.Time `json:"timestamp"`
		MealType  string    `json:"mealType"`
		// Discrepancy is set on write responses when the stated calories
		// disagree with the macro estimate.
		Discrepancy bool `json:"discrepancy,omitempty"`
	}

	FoodTemplate struct {
		ID         uuid.UUID  `json:"id"`
		Name       string     `json:"name"`
		Serving    string     `json:"serving,omitempty"`
		Calories   float64    `json:"calories"`
		Protein    float64    `json:"protein"`
		Fat        float64    `json:"fat"`
		Carbs      float64    `json:"carbs"`
		LastUsedAt *time.Time `json:"lastUsedAt,omitempty"`
	}

	MealItem struct {
		ID             uuid.UUID `json:"id"`
		FoodTemplateID uuid.UUID `json:"foodTemplateId"`
		Quantity       float64   `json:"quantity"`
	}

	MealTemplate struct {
		ID         uuid.UUID  `json:"id"`
		Name       string     `json:"name"`
		Items      []MealItem `json:"items"`
		Totals     Macros     `json:"totals"`
		LastUsedAt *time.Time `json:"lastUsedAt,omitempty"`
	}
)

func NewMacros(t core.MacroTotals) Macros {
	return Macros{Calories: t.Calories, Protein: t.Protein, Fat: t.Fat, Carbs: t.Carbs}
}

func NewTargets(t core.MacroTargets) Targets {
	return Targets{
		CaloriesTarget: t.CaloriesTarget,
		ProteinTarget:  t.ProteinTarget,
		FatTarget:      t.FatTarget,
		CarbsTarget:    t.CarbsTarget,
	}
}

// Model converts back to the domain value.
func (t Targets) Model() core.MacroTargets {
	return core.MacroTargets{
		CaloriesTarget: t.CaloriesTarget,
		ProteinTarget:  t.ProteinTarget,
		FatTarget:      t.FatTarget,
		CarbsTarget:    t.CarbsTarget,
	}
}

func NewSummary(s core.DaySummary) Summary {
	return Summary{
		Date:       s.Date.Format(core.DayLayout),
		Totals:     NewMacros(s.Totals),
		Targets:    NewTargets(s.Targets),
		Remaining:  NewMacros(s.Remaining),
		Adherence:  s.Adherence,
		Level:      string(s.Level),
		EntryCount: s.EntryCount,
	}
}

func NewSummaries(in []core.DaySummary) []Summary {
	out := make([]Summary, 0, len(in))
	for _, s := range in {
		out = append(out, NewSummary(s))
	}
	return out
}

func NewEntry(e core.FoodEntry) Entry {
	return Entry{
		ID:        e.ID,
		Name:      e.Name,
		Serving:   e.Serving,
		Servings:  e.Servings,
		Calories:  e.Calories,
		Protein:   e.Protein,
		Fat:       e.Fat,
		Carbs:     e.Carbs,
		Timestamp: e.Timestamp,
		MealType:  e.MealType.String(),
	}
}

func NewEntries(in []core.FoodEntry) []Entry {
	out := make([]Entry, 0, len(in))
	for _, e := range in {
		out = append(out, NewEntry(e))
	}
	return out
}

func NewFoodTemplate(f core.FoodTemplate) FoodTemplate {
	return FoodTemplate{
		ID:         f.ID,
		Name:       f.Name,
		Serving:    f.Serving,
		Calories:   f.Calories,
		Protein:    f.Protein,
		Fat:        f.Fat,
		Carbs:      f.Carbs,
		LastUsedAt: optionalTime(f.LastUsedAt),
	}
}

func NewFoodTemplates(in []core.FoodTemplate) []FoodTemplate {
	out := make([]FoodTemplate, 0, len(in))
	for _, f := range in {
		out = append(out, NewFoodTemplate(f))
	}
	return out
}

func NewMealTemplate(m core.MealTemplate, totals core.MacroTotals) MealTemplate {
	items := make([]MealItem, 0, len(m.Items))
	for _, it := range m.Items {
		items = append(items, MealItem{ID: it.ID, FoodTemplateID: it.FoodTemplateID, Quantity: it.Quantity})
	}
	return MealTemplate{
		ID:         m.ID,
		Name:       m.Name,
		Items:      items,
		Totals:     NewMacros(totals),
		LastUsedAt: optionalTime(m.LastUsedAt),
	}
}

func optionalTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
