package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"macrotracker/internal/core"
	"macrotracker/internal/store"
)

// MealView is a meal template with its totals resolved.
type MealView struct {
	Template core.MealTemplate
	Totals   core.MacroTotals
}

func (s *TrackerService) CreateFoodTemplate(ctx context.Context, f core.FoodTemplate) (core.FoodTemplate, error) {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	if f.LastUsedAt.IsZero() {
		f.LastUsedAt = s.now()
	}
	if err := f.Validate(); err != nil {
		return core.FoodTemplate{}, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	if err := s.store.Save(ctx, store.NewBatch().Add(f)); err != nil {
		return core.FoodTemplate{}, fmt.Errorf("save food template: %w", err)
	}
	slog.InfoContext(ctx, "Food template created", "template_id", f.ID, "name", f.Name)
	return f, nil
}

func (s *TrackerService) FoodTemplates(ctx context.Context, search string, limit int) ([]core.FoodTemplate, error) {
	out, err := s.store.FoodTemplates(ctx, store.TemplateQuery{Search: search, Limit: limit})
	if err != nil {
		return nil, fmt.Errorf("list food templates: %w", err)
	}
	return out, nil
}

// DeleteFoodTemplate removes the template and every meal item that
// points at it.
func (s *TrackerService) DeleteFoodTemplate(ctx context.Context, id uuid.UUID) error {
	ref := store.Ref{RecKind: core.KindFoodTemplate, ID: id}
	if err := s.store.Save(ctx, store.NewBatch().Delete(ref)); err != nil {
		return fmt.Errorf("delete food template: %w", err)
	}
	slog.InfoContext(ctx, "Food template deleted", "template_id", id)
	return nil
}

// LogFoodTemplate logs one entry from the template and marks the
// template as used.
func (s *TrackerService) LogFoodTemplate(ctx context.Context, id uuid.UUID, opts LogOptions) (LoggedEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok, err := s.store.FindFoodTemplate(ctx, id)
	if err != nil {
		return LoggedEntry{}, fmt.Errorf("find food template: %w", err)
	}
	if !ok {
		return LoggedEntry{}, fmt.Errorf("food template %s: %w", id, store.ErrNotFound)
	}

	e := core.FoodEntry{
		Name:      f.Name,
		Serving:   f.Serving,
		Servings:  opts.Servings,
		Calories:  f.Calories,
		Protein:   f.Protein,
		Fat:       f.Fat,
		Carbs:     f.Carbs,
		Timestamp: opts.Timestamp,
		MealType:  opts.MealType,
	}
	s.normalizeEntry(&e)
	if err := e.Validate(); err != nil {
		return LoggedEntry{}, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	f.LastUsedAt = s.now()

	if err := s.store.Save(ctx, store.NewBatch().Add(e).Update(f)); err != nil {
		return LoggedEntry{}, fmt.Errorf("log food template: %w", err)
	}
	slog.InfoContext(ctx, "Food template logged", "template_id", id, "entry_id", e.ID)
	s.touchDays(ctx, e.Timestamp)
	return LoggedEntry{Entry: e, Discrepancy: core.HasDiscrepancy(e.Calories, e.Protein, e.Fat, e.Carbs)}, nil
}

// CreateMealTemplate saves a meal template. Every item must reference an
// existing food template.
func (s *TrackerService) CreateMealTemplate(ctx context.Context, m core.MealTemplate) (core.MealTemplate, error) {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	if m.LastUsedAt.IsZero() {
		m.LastUsedAt = s.now()
	}
	items := make([]core.MealItem, len(m.Items))
	for i, item := range m.Items {
		if item.ID == uuid.Nil {
			item.ID = uuid.New()
		}
		items[i] = item
	}
	m.Items = items
	if err := m.Validate(); err != nil {
		return core.MealTemplate{}, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	if err := s.store.Save(ctx, store.NewBatch().Add(m)); err != nil {
		return core.MealTemplate{}, fmt.Errorf("save meal template: %w", err)
	}
	slog.InfoContext(ctx, "Meal template created", "template_id", m.ID, "items", len(m.Items))
	return m, nil
}

// MealTemplates lists meal templates with their totals.
func (s *TrackerService) MealTemplates(ctx context.Context, search string, limit int) ([]MealView, error) {
	meals, err := s.store.MealTemplates(ctx, store.TemplateQuery{Search: search, Limit: limit})
	if err != nil {
		return nil, fmt.Errorf("list meal templates: %w", err)
	}
	foods, err := s.store.FoodTemplates(ctx, store.TemplateQuery{})
	if err != nil {
		return nil, fmt.Errorf("list food templates: %w", err)
	}
	byID := make(map[uuid.UUID]core.FoodTemplate, len(foods))
	for _, f := range foods {
		byID[f.ID] = f
	}
	resolve := func(id uuid.UUID) (core.FoodTemplate, bool) {
		f, ok := byID[id]
		return f, ok
	}

	out := make([]MealView, 0, len(meals))
	for _, m := range meals {
		out = append(out, MealView{Template: m, Totals: m.Totals(resolve)})
	}
	return out, nil
}

func (s *TrackerService) DeleteMealTemplate(ctx context.Context, id uuid.UUID) error {
	ref := store.Ref{RecKind: core.KindMealTemplate, ID: id}
	if err := s.store.Save(ctx, store.NewBatch().Delete(ref)); err != nil {
		return fmt.Errorf("delete meal template: %w", err)
	}
	slog.InfoContext(ctx, "Meal template deleted", "template_id", id)
	return nil
}

// LogMealTemplate logs the whole meal as one entry whose per-serving
// macros are the meal totals, and marks the template as used.
func (s *TrackerService) LogMealTemplate(ctx context.Context, id uuid.UUID, opts LogOptions) (LoggedEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok, err := s.store.FindMealTemplate(ctx, id)
	if err != nil {
		return LoggedEntry{}, fmt.Errorf("find meal template: %w", err)
	}
	if !ok {
		return LoggedEntry{}, fmt.Errorf("meal template %s: %w", id, store.ErrNotFound)
	}
	totals, err := s.mealTotals(ctx, m)
	if err != nil {
		return LoggedEntry{}, err
	}

	e := core.FoodEntry{
		Name:      m.Name,
		Servings:  opts.Servings,
		Calories:  totals.Calories,
		Protein:   totals.Protein,
		Fat:       totals.Fat,
		Carbs:     totals.Carbs,
		Timestamp: opts.Timestamp,
		MealType:  opts.MealType,
	}
	s.normalizeEntry(&e)
	if err := e.Validate(); err != nil {
		return LoggedEntry{}, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	m.LastUsedAt = s.now()

	if err := s.store.Save(ctx, store.NewBatch().Add(e).Update(m)); err != nil {
		return LoggedEntry{}, fmt.Errorf("log meal template: %w", err)
	}
	slog.InfoContext(ctx, "Meal template logged", "template_id", id, "entry_id", e.ID, "calories", e.Calories)
	s.touchDays(ctx, e.Timestamp)
	return LoggedEntry{Entry: e, Discrepancy: core.HasDiscrepancy(e.Calories, e.Protein, e.Fat, e.Carbs)}, nil
}

func (s *TrackerService) mealTotals(ctx context.Context, m core.MealTemplate) (core.MacroTotals, error) {
	foods := make(map[uuid.UUID]core.FoodTemplate, len(m.Items))
	for _, ref := range m.References() {
		f, ok, err := s.store.FindFoodTemplate(ctx, ref)
		if err != nil {
			return core.MacroTotals{}, fmt.Errorf("find food template: %w", err)
		}
		if ok {
			foods[ref] = f
		}
	}
	return m.Totals(func(id uuid.UUID) (core.FoodTemplate, bool) {
		f, ok := foods[id]
		return f, ok
	}), nil
}

// MealView resolves the totals of a single meal template.
func (s *TrackerService) MealView(ctx context.Context, m core.MealTemplate) (MealView, error) {
	totals, err := s.mealTotals(ctx, m)
	if err != nil {
		return MealView{}, err
	}
	return MealView{Template: m, Totals: totals}, nil
}
