package backup

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"macrotracker/internal/core"
)

// CurrentSchemaVersion is bumped whenever the payload shape changes.
const CurrentSchemaVersion = 4

// Fields are declared in key order so encoding/json writes sorted keys.
type (
	Payload struct {
		Entries       []EntryRecord        `json:"entries,omitempty"`
		FoodTemplates []FoodTemplateRecord `json:"foodTemplates,omitempty"`
		MealTemplates []MealTemplateRecord `json:"mealTemplates,omitempty"`
		SchemaVersion int                  `json:"schemaVersion"`
		Targets       TargetsRecord        `json:"targets"`
	}

	TargetsRecord struct {
		CaloriesTarget float64 `json:"caloriesTarget"`
		CarbsTarget    float64 `json:"carbsTarget"`
		FatTarget      float64 `json:"fatTarget"`
		ProteinTarget  float64 `json:"proteinTarget"`
	}

	EntryRecord struct {
		Calories  float64       `json:"calories"`
		Carbs     float64       `json:"carbs"`
		Fat       float64       `json:"fat"`
		ID        uuid.UUID     `json:"id"`
		MealType  core.MealType `json:"mealType"`
		Name      string        `json:"name"`
		Protein   float64       `json:"protein"`
		Serving   string        `json:"serving,omitempty"`
		Servings  *float64      `json:"servings,omitempty"`
		Timestamp Time          `json:"timestamp"`
	}

	FoodTemplateRecord struct {
		Calories   float64   `json:"calories"`
		Carbs      float64   `json:"carbs"`
		Fat        float64   `json:"fat"`
		ID         uuid.UUID `json:"id"`
		LastUsedAt Time      `json:"lastUsedAt"`
		Name       string    `json:"name"`
		Protein    float64   `json:"protein"`
		Serving    string    `json:"serving,omitempty"`
	}

	// MealTemplateRecord carries its items by reference to food
	// templates, never by value.
	MealTemplateRecord struct {
		ID         uuid.UUID        `json:"id"`
		Items      []MealItemRecord `json:"items"`
		LastUsedAt Time             `json:"lastUsedAt"`
		Name       string           `json:"name"`
	}

	MealItemRecord struct {
		FoodID   uuid.UUID `json:"foodID"`
		Quantity float64   `json:"quantity"`
	}
)

// Time is encoded as RFC 3339 in UTC with second precision.
type Time struct {
	time.Time
}

// Stamp truncates t to the precision the backup format keeps.
func Stamp(t time.Time) Time {
	if t.IsZero() {
		return Time{}
	}
	return Time{t.UTC().Truncate(time.Second)}
}

func (t Time) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.UTC().Format(time.RFC3339))
}

func (t *Time) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		*t = Time{}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("timestamp must be a string: %w", err)
	}
	parsed, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	*t = Stamp(parsed)
	return nil
}

func targetsRecord(t core.MacroTargets) TargetsRecord {
	return TargetsRecord{
		CaloriesTarget: t.CaloriesTarget,
		CarbsTarget:    t.CarbsTarget,
		FatTarget:      t.FatTarget,
		ProteinTarget:  t.ProteinTarget,
	}
}

func (r TargetsRecord) Model() core.MacroTargets {
	return core.MacroTargets{
		CaloriesTarget: r.CaloriesTarget,
		ProteinTarget:  r.ProteinTarget,
		FatTarget:      r.FatTarget,
		CarbsTarget:    r.CarbsTarget,
	}
}

func entryRecord(e core.FoodEntry) EntryRecord {
	servings := e.Servings
	return EntryRecord{
		Calories:  e.Calories,
		Carbs:     e.Carbs,
		Fat:       e.Fat,
		ID:        e.ID,
		MealType:  e.MealType,
		Name:      e.Name,
		Protein:   e.Protein,
		Serving:   e.Serving,
		Servings:  &servings,
		Timestamp: Stamp(e.Timestamp),
	}
}

// Model rebuilds the entry. A missing servings value means one serving.
func (r EntryRecord) Model() core.FoodEntry {
	servings := 1.0
	if r.Servings != nil {
		servings = *r.Servings
	}
	return core.FoodEntry{
		ID:        r.ID,
		Name:      r.Name,
		Serving:   r.Serving,
		Servings:  servings,
		Calories:  r.Calories,
		Protein:   r.Protein,
		Fat:       r.Fat,
		Carbs:     r.Carbs,
		Timestamp: r.Timestamp.Time,
		MealType:  r.MealType,
	}
}

func foodTemplateRecord(f core.FoodTemplate) FoodTemplateRecord {
	return FoodTemplateRecord{
		Calories:   f.Calories,
		Carbs:      f.Carbs,
		Fat:        f.Fat,
		ID:         f.ID,
		LastUsedAt: Stamp(f.LastUsedAt),
		Name:       f.Name,
		Protein:    f.Protein,
		Serving:    f.Serving,
	}
}

func (r FoodTemplateRecord) Model() core.FoodTemplate {
	return core.FoodTemplate{
		ID:         r.ID,
		Name:       r.Name,
		Serving:    r.Serving,
		Calories:   r.Calories,
		Protein:    r.Protein,
		Fat:        r.Fat,
		Carbs:      r.Carbs,
		LastUsedAt: r.LastUsedAt.Time,
	}
}

func mealTemplateRecord(m core.MealTemplate) MealTemplateRecord {
	items := make([]MealItemRecord, 0, len(m.Items))
	for _, item := range m.Items {
		items = append(items, MealItemRecord{FoodID: item.FoodTemplateID, Quantity: item.Quantity})
	}
	return MealTemplateRecord{
		ID:         m.ID,
		Items:      items,
		LastUsedAt: Stamp(m.LastUsedAt),
		Name:       m.Name,
	}
}
