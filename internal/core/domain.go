package core

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	Breakfast MealType = "Breakfast"
	Lunch     MealType = "Lunch"
	Dinner    MealType = "Dinner"
	Snack     MealType = "Snack"
	Other     MealType = "Other"
)

const (
	KindEntry        Kind = "entry"
	KindFoodTemplate Kind = "food_template"
	KindMealTemplate Kind = "meal_template"
	KindTargets      Kind = "targets"
)

// MaxNameLength bounds entry and template names.
const MaxNameLength = 200

type (
	MealType string

	// Kind identifies one of the persisted entity kinds.
	Kind string

	// Record is implemented by every persisted entity so stores can
	// stage mutations without knowing the concrete type.
	Record interface {
		Kind() Kind
		RecordID() uuid.UUID
	}

	FoodEntry struct {
		ID        uuid.UUID
		Name      string
		Serving   string  // Optional serving label, empty when absent
		Servings  float64 // Multiplier applied to the per-serving macros
		Calories  float64
		Protein   float64
		Fat       float64
		Carbs     float64
		Timestamp time.Time
		MealType  MealType
	}

	FoodTemplate struct {
		ID         uuid.UUID
		Name       string
		Serving    string
		Calories   float64
		Protein    float64
		Fat        float64
		Carbs      float64
		LastUsedAt time.Time
	}

	// MealItem points at a FoodTemplate by id. It only exists inside
	// the MealTemplate that owns it.
	MealItem struct {
		ID             uuid.UUID
		FoodTemplateID uuid.UUID
		Quantity       float64
	}

	MealTemplate struct {
		ID         uuid.UUID
		Name       string
		Items      []MealItem
		LastUsedAt time.Time
	}

	MacroTargets struct {
		CaloriesTarget float64
		ProteinTarget  float64
		FatTarget      float64
		CarbsTarget    float64
	}

	// Targets is the singleton settings row.
	Targets struct {
		ID uuid.UUID
		MacroTargets
	}
)

var (
	ErrUnknownMealType = errors.New("unknown meal type")
	ErrMissingID       = errors.New("missing id")
	ErrEmptyName       = errors.New("empty name")
	ErrNameTooLong     = fmt.Errorf("name too long (max %d characters)", MaxNameLength)
	ErrMissingFoodRef  = errors.New("meal item without food template")
	ErrNegativeTarget  = errors.New("targets cannot be negative")
	ErrTimestampRange  = fmt.Errorf("timestamp outside %d-%d", minTimestamp.Year(), maxTimestamp.Year())
)

// Timestamps must fit in int64 Unix nanoseconds.
var (
	minTimestamp = time.Date(1678, 1, 1, 0, 0, 0, 0, time.UTC)
	maxTimestamp = time.Date(2262, 1, 1, 0, 0, 0, 0, time.UTC)
)

func validateTimestamp(t time.Time) error {
	if t.Before(minTimestamp) || !t.Before(maxTimestamp) {
		return ErrTimestampRange
	}
	return nil
}

// MealTypes lists the meal types in display order.
func MealTypes() []MealType {
	return []MealType{Breakfast, Lunch, Dinner, Snack, Other}
}

// ParseMealType is strict: anything outside MealTypes is rejected.
func ParseMealType(s string) (MealType, error) {
	for _, mt := range MealTypes() {
		if string(mt) == s {
			return mt, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownMealType, s)
}

func (mt MealType) String() string {
	return string(mt)
}

// MarshalText implements encoding.TextMarshaler.
func (mt MealType) MarshalText() ([]byte, error) {
	if _, err := ParseMealType(string(mt)); err != nil {
		return nil, err
	}
	return []byte(mt), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (mt *MealType) UnmarshalText(b []byte) error {
	parsed, err := ParseMealType(string(b))
	if err != nil {
		return err
	}
	*mt = parsed
	return nil
}

// DefaultTargets returns the targets used until the user sets their own.
func DefaultTargets() MacroTargets {
	return MacroTargets{
		CaloriesTarget: 2700,
		ProteinTarget:  150,
		FatTarget:      80,
		CarbsTarget:    345,
	}
}

// NewFoodEntry returns an entry with a fresh id, one serving, the
// current time and the Other meal type.
func NewFoodEntry(name string, calories, protein, fat, carbs float64) FoodEntry {
	return FoodEntry{
		ID:        uuid.New(),
		Name:      name,
		Servings:  1,
		Calories:  calories,
		Protein:   protein,
		Fat:       fat,
		Carbs:     carbs,
		Timestamp: time.Now(),
		MealType:  Other,
	}
}

// ServingsValue is the servings multiplier clamped to zero.
func (e FoodEntry) ServingsValue() float64 {
	return max(e.Servings, 0)
}

func (e FoodEntry) Kind() Kind          { return KindEntry }
func (e FoodEntry) RecordID() uuid.UUID { return e.ID }

func (e FoodEntry) Validate() error {
	if e.ID == uuid.Nil {
		return ErrMissingID
	}
	if err := validateName(e.Name); err != nil {
		return err
	}
	if e.Timestamp.IsZero() {
		return errors.New("timestamp cannot be zero")
	}
	if err := validateTimestamp(e.Timestamp); err != nil {
		return err
	}
	if _, err := ParseMealType(string(e.MealType)); err != nil {
		return err
	}
	return nil
}

func (t FoodTemplate) Kind() Kind          { return KindFoodTemplate }
func (t FoodTemplate) RecordID() uuid.UUID { return t.ID }

func (t FoodTemplate) Validate() error {
	if t.ID == uuid.Nil {
		return ErrMissingID
	}
	if err := validateName(t.Name); err != nil {
		return err
	}
	if !t.LastUsedAt.IsZero() {
		return validateTimestamp(t.LastUsedAt)
	}
	return nil
}

// QuantityValue is the quantity multiplier clamped to zero.
func (i MealItem) QuantityValue() float64 {
	return max(i.Quantity, 0)
}

func (m MealTemplate) Kind() Kind          { return KindMealTemplate }
func (m MealTemplate) RecordID() uuid.UUID { return m.ID }

func (m MealTemplate) Validate() error {
	if m.ID == uuid.Nil {
		return ErrMissingID
	}
	if err := validateName(m.Name); err != nil {
		return err
	}
	if !m.LastUsedAt.IsZero() {
		if err := validateTimestamp(m.LastUsedAt); err != nil {
			return err
		}
	}
	for _, item := range m.Items {
		if item.ID == uuid.Nil {
			return fmt.Errorf("meal item: %w", ErrMissingID)
		}
		if item.FoodTemplateID == uuid.Nil {
			return ErrMissingFoodRef
		}
	}
	return nil
}

// References returns the distinct food template ids used by the items.
func (m MealTemplate) References() []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(m.Items))
	out := make([]uuid.UUID, 0, len(m.Items))
	for _, item := range m.Items {
		if _, ok := seen[item.FoodTemplateID]; ok {
			continue
		}
		seen[item.FoodTemplateID] = struct{}{}
		out = append(out, item.FoodTemplateID)
	}
	return out
}

// WithoutFood returns a copy of the template with every item that
// references foodID removed, and whether anything was removed.
func (m MealTemplate) WithoutFood(foodID uuid.UUID) (MealTemplate, bool) {
	kept := make([]MealItem, 0, len(m.Items))
	for _, item := range m.Items {
		if item.FoodTemplateID != foodID {
			kept = append(kept, item)
		}
	}
	if len(kept) == len(m.Items) {
		return m, false
	}
	m.Items = kept
	return m, true
}

func (t Targets) Kind() Kind          { return KindTargets }
func (t Targets) RecordID() uuid.UUID { return t.ID }

func (t MacroTargets) Validate() error {
	if t.CaloriesTarget < 0 || t.ProteinTarget < 0 || t.FatTarget < 0 || t.CarbsTarget < 0 {
		return ErrNegativeTarget
	}
	return nil
}

func validateName(name string) error {
	if len(strings.TrimSpace(name)) == 0 {
		return ErrEmptyName
	}
	if len(name) > MaxNameLength {
		return ErrNameTooLong
	}
	return nil
}
