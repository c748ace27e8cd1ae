package http

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"macrotracker/internal/core"
	"macrotracker/internal/services"
)

type (
	entryRequest struct {
		Name      string     `json:"name"`
		Serving   string     `json:"serving"`
		Servings  *float64   `json:"servings"`
		Calories  float64    `json:"calories"`
		Protein   float64    `json:"protein"`
		Fat       float64    `json:"fat"`
		Carbs     float64    `json:"carbs"`
		Timestamp *time.Time `json:"timestamp"`
		MealType  string     `json:"mealType"`
	}

	logRequest struct {
		Servings  *float64   `json:"servings"`
		Timestamp *time.Time `json:"timestamp"`
		MealType  string     `json:"mealType"`
	}

	foodTemplateRequest struct {
		Name     string  `json:"name"`
		Serving  string  `json:"serving"`
		Calories float64 `json:"calories"`
		Protein  float64 `json:"protein"`
		Fat      float64 `json:"fat"`
		Carbs    float64 `json:"carbs"`
	}

	mealItemRequest struct {
		FoodTemplateID uuid.UUID `json:"foodTemplateId"`
		Quantity       *float64  `json:"quantity"`
	}

	mealTemplateRequest struct {
		Name  string            `json:"name"`
		Items []mealItemRequest `json:"items"`
	}
)

// toEntry builds the entry; a missing servings count means one serving
// and a missing meal type is left for the service to default.
func (req entryRequest) toEntry(id uuid.UUID) (core.FoodEntry, error) {
	mt, err := parseMealType(req.MealType)
	if err != nil {
		return core.FoodEntry{}, err
	}
	e := core.FoodEntry{
		ID:       id,
		Name:     sanitizeInput(req.Name),
		Serving:  sanitizeInput(req.Serving),
		Servings: valueOr(req.Servings, 1),
		Calories: req.Calories,
		Protein:  req.Protein,
		Fat:      req.Fat,
		Carbs:    req.Carbs,
		MealType: mt,
	}
	if req.Timestamp != nil {
		e.Timestamp = *req.Timestamp
	}
	return e, nil
}

func (req logRequest) toOptions() (services.LogOptions, error) {
	mt, err := parseMealType(req.MealType)
	if err != nil {
		return services.LogOptions{}, err
	}
	opts := services.LogOptions{Servings: valueOr(req.Servings, 1), MealType: mt}
	if req.Timestamp != nil {
		opts.Timestamp = *req.Timestamp
	}
	return opts, nil
}

func (req foodTemplateRequest) toTemplate() core.FoodTemplate {
	return core.FoodTemplate{
		Name:     sanitizeInput(req.Name),
		Serving:  sanitizeInput(req.Serving),
		Calories: req.Calories,
		Protein:  req.Protein,
		Fat:      req.Fat,
		Carbs:    req.Carbs,
	}
}

func (req mealTemplateRequest) toTemplate() core.MealTemplate {
	items := make([]core.MealItem, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, core.MealItem{FoodTemplateID: it.FoodTemplateID, Quantity: valueOr(it.Quantity, 1)})
	}
	return core.MealTemplate{Name: sanitizeInput(req.Name), Items: items}
}

func parseMealType(s string) (core.MealType, error) {
	if s == "" {
		return "", nil
	}
	mt, err := core.ParseMealType(s)
	if err != nil {
		return "", fmt.Errorf("%w: %w", services.ErrInvalidInput, err)
	}
	return mt, nil
}

func valueOr(p *float64, def float64) float64 {
	if p == nil {
		return def
	}
	return *p
}
