package core

import (
	"math"

	"github.com/google/uuid"
)

// Atwater factors, kcal per gram.
const (
	KcalPerGramProtein = 4
	KcalPerGramFat     = 9
	KcalPerGramCarbs   = 4
)

// DiscrepancyThreshold is the ratio above which stated calories are
// flagged as disagreeing with the macro-derived estimate.
const DiscrepancyThreshold = 0.2

// Adherence bands around the calorie target.
const (
	AdherenceLow  = 0.9
	AdherenceHigh = 1.1
)

const (
	LevelBelow    AdherenceLevel = "below"
	LevelOnTarget AdherenceLevel = "on_target"
	LevelAbove    AdherenceLevel = "above"
)

type (
	MacroTotals struct {
		Calories float64
		Protein  float64
		Fat      float64
		Carbs    float64
	}

	AdherenceLevel string
)

// Totals sums every entry's macros times its clamped servings.
func Totals(entries []FoodEntry) MacroTotals {
	var t MacroTotals
	for _, e := range entries {
		m := e.ServingsValue()
		t.Calories += e.Calories * m
		t.Protein += e.Protein * m
		t.Fat += e.Fat * m
		t.Carbs += e.Carbs * m
	}
	return t
}

// Remaining is target minus consumed, per macro. Negative values mean
// the target was exceeded.
func Remaining(totals MacroTotals, targets MacroTargets) MacroTotals {
	return MacroTotals{
		Calories: targets.CaloriesTarget - totals.Calories,
		Protein:  targets.ProteinTarget - totals.Protein,
		Fat:      targets.FatTarget - totals.Fat,
		Carbs:    targets.CarbsTarget - totals.Carbs,
	}
}

// EstimatedCalories derives calories from grams of macros.
func EstimatedCalories(protein, fat, carbs float64) float64 {
	return KcalPerGramProtein*protein + KcalPerGramFat*fat + KcalPerGramCarbs*carbs
}

// DiscrepancyRatio is |calories - estimate| / estimate. It returns 0
// when the estimate is not positive, which does not mean the values agree.
func DiscrepancyRatio(calories, protein, fat, carbs float64) float64 {
	estimate := EstimatedCalories(protein, fat, carbs)
	if !(estimate > 0) {
		return 0
	}
	return math.Abs(calories-estimate) / estimate
}

// HasDiscrepancy reports whether the stated calories are off by more
// than DiscrepancyThreshold.
func HasDiscrepancy(calories, protein, fat, carbs float64) bool {
	return DiscrepancyRatio(calories, protein, fat, carbs) > DiscrepancyThreshold
}

// Adherence is consumed calories over the calorie target, 0 when the
// target is not positive.
func Adherence(totals MacroTotals, targets MacroTargets) float64 {
	if !(targets.CaloriesTarget > 0) {
		return 0
	}
	return totals.Calories / targets.CaloriesTarget
}

// LevelFor classifies an adherence ratio.
func LevelFor(adherence float64) AdherenceLevel {
	switch {
	case adherence < AdherenceLow:
		return LevelBelow
	case adherence > AdherenceHigh:
		return LevelAbove
	default:
		return LevelOnTarget
	}
}

// Totals for a meal template. resolve looks up the referenced food
// template; items it cannot resolve contribute nothing.
func (m MealTemplate) Totals(resolve func(uuid.UUID) (FoodTemplate, bool)) MacroTotals {
	var t MacroTotals
	for _, item := range m.Items {
		food, ok := resolve(item.FoodTemplateID)
		if !ok {
			continue
		}
		q := item.QuantityValue()
		t.Calories += food.Calories * q
		t.Protein += food.Protein * q
		t.Fat += food.Fat * q
		t.Carbs += food.Carbs * q
	}
	return t
}

// Add returns the component-wise sum.
func (t MacroTotals) Add(o MacroTotals) MacroTotals {
	return MacroTotals{
		Calories: t.Calories + o.Calories,
		Protein:  t.Protein + o.Protein,
		Fat:      t.Fat + o.Fat,
		Carbs:    t.Carbs + o.Carbs,
	}
}
