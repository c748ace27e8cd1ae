package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"macrotracker/internal/core"
	"macrotracker/internal/store"
)

const (
	entryColumns = "id, name, serving, servings, calories, protein, fat, carbs, logged_at, meal_type"
	foodColumns  = "id, name, serving, calories, protein, fat, carbs, last_used_at"
)

type scanner interface {
	Scan(dest ...any) error
}

func applyMutation(ctx context.Context, tx *sql.Tx, m store.Mutation) error {
	if m.Op == store.OpPutTargets {
		t, ok := m.Record.(core.Targets)
		if !ok {
			return fmt.Errorf("%w: %T", store.ErrUnsupportedKind, m.Record)
		}
		return putTargets(ctx, tx, t.MacroTargets)
	}

	table, err := tableFor(m.Record.Kind())
	if err != nil {
		return err
	}
	id := m.Record.RecordID().String()

	switch m.Op {
	case store.OpDelete:
		return deleteRow(ctx, tx, table, id)
	case store.OpAdd:
		exists, err := rowExists(ctx, tx, table, id)
		if err != nil {
			return err
		}
		if exists {
			return store.ErrDuplicate
		}
	case store.OpUpdate:
		exists, err := rowExists(ctx, tx, table, id)
		if err != nil {
			return err
		}
		if !exists {
			return store.ErrNotFound
		}
	default:
		return fmt.Errorf("unknown op %d", m.Op)
	}

	switch rec := m.Record.(type) {
	case core.FoodEntry:
		return upsertEntry(ctx, tx, rec)
	case core.FoodTemplate:
		return upsertFood(ctx, tx, rec)
	case core.MealTemplate:
		return upsertMeal(ctx, tx, rec)
	default:
		return fmt.Errorf("%w: %T", store.ErrUnsupportedKind, m.Record)
	}
}

func tableFor(k core.Kind) (string, error) {
	switch k {
	case core.KindEntry:
		return "food_entries", nil
	case core.KindFoodTemplate:
		return "food_templates", nil
	case core.KindMealTemplate:
		return "meal_templates", nil
	default:
		return "", fmt.Errorf("%w: %s", store.ErrUnsupportedKind, k)
	}
}

func rowExists(ctx context.Context, tx *sql.Tx, table, id string) (bool, error) {
	var one int
	err := tx.QueryRowContext(ctx, "SELECT 1 FROM "+table+" WHERE id = ?", id).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check %s id: %w", table, err)
	}
	return true, nil
}

func deleteRow(ctx context.Context, tx *sql.Tx, table, id string) error {
	res, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete from %s: %w", table, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete from %s: %w", table, err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func upsertEntry(ctx context.Context, tx *sql.Tx, e core.FoodEntry) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO food_entries (`+entryColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			serving = excluded.serving,
			servings = excluded.servings,
			calories = excluded.calories,
			protein = excluded.protein,
			fat = excluded.fat,
			carbs = excluded.carbs,
			logged_at = excluded.logged_at,
			meal_type = excluded.meal_type`,
		e.ID.String(), e.Name, nullString(e.Serving), e.Servings,
		e.Calories, e.Protein, e.Fat, e.Carbs,
		e.Timestamp.UnixNano(), string(e.MealType),
	)
	if err != nil {
		return fmt.Errorf("write entry: %w", err)
	}
	return nil
}

func upsertFood(ctx context.Context, tx *sql.Tx, f core.FoodTemplate) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO food_templates (`+foodColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			serving = excluded.serving,
			calories = excluded.calories,
			protein = excluded.protein,
			fat = excluded.fat,
			carbs = excluded.carbs,
			last_used_at = excluded.last_used_at`,
		f.ID.String(), f.Name, nullString(f.Serving),
		f.Calories, f.Protein, f.Fat, f.Carbs, toUnixNano(f.LastUsedAt),
	)
	if err != nil {
		return fmt.Errorf("write food template: %w", err)
	}
	return nil
}

// upsertMeal rewrites the template row and replaces its items.
func upsertMeal(ctx context.Context, tx *sql.Tx, m core.MealTemplate) error {
	for _, ref := range m.References() {
		exists, err := rowExists(ctx, tx, "food_templates", ref.String())
		if err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("%w: %s", store.ErrInvalidReference, ref)
		}
	}

	_, err := tx.ExecContext(ctx, `
		INSERT INTO meal_templates (id, name, last_used_at) VALUES (?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			last_used_at = excluded.last_used_at`,
		m.ID.String(), m.Name, toUnixNano(m.LastUsedAt))
	if err != nil {
		return fmt.Errorf("write meal template: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM meal_items WHERE meal_template_id = ?", m.ID.String()); err != nil {
		return fmt.Errorf("clear meal items: %w", err)
	}
	for pos, item := range m.Items {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO meal_items (id, meal_template_id, food_template_id, quantity, position)
			VALUES (?, ?, ?, ?, ?)`,
			item.ID.String(), m.ID.String(), item.FoodTemplateID.String(), item.Quantity, pos)
		if err != nil {
			return fmt.Errorf("write meal item %s: %w", item.ID, err)
		}
	}
	return nil
}

func putTargets(ctx context.Context, tx *sql.Tx, t core.MacroTargets) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO targets (id, singleton, calories_target, protein_target, fat_target, carbs_target)
		VALUES (?, 1, ?, ?, ?, ?)
		ON CONFLICT (singleton) DO UPDATE SET
			calories_target = excluded.calories_target,
			protein_target = excluded.protein_target,
			fat_target = excluded.fat_target,
			carbs_target = excluded.carbs_target`,
		uuid.NewString(), t.CaloriesTarget, t.ProteinTarget, t.FatTarget, t.CarbsTarget)
	if err != nil {
		return fmt.Errorf("write targets: %w", err)
	}
	return nil
}

func scanEntry(s scanner) (core.FoodEntry, error) {
	var (
		e        core.FoodEntry
		id, meal string
		serving  sql.NullString
		loggedAt int64
	)
	if err := s.Scan(&id, &e.Name, &serving, &e.Servings, &e.Calories, &e.Protein, &e.Fat, &e.Carbs, &loggedAt, &meal); err != nil {
		return core.FoodEntry{}, err
	}
	var err error
	if e.ID, err = uuid.Parse(id); err != nil {
		return core.FoodEntry{}, fmt.Errorf("parse entry id: %w", err)
	}
	if e.MealType, err = core.ParseMealType(meal); err != nil {
		return core.FoodEntry{}, err
	}
	e.Serving = serving.String
	e.Timestamp = time.Unix(0, loggedAt)
	return e, nil
}

func scanFood(s scanner) (core.FoodTemplate, error) {
	var (
		f        core.FoodTemplate
		id       string
		serving  sql.NullString
		lastUsed sql.NullInt64
	)
	if err := s.Scan(&id, &f.Name, &serving, &f.Calories, &f.Protein, &f.Fat, &f.Carbs, &lastUsed); err != nil {
		return core.FoodTemplate{}, err
	}
	var err error
	if f.ID, err = uuid.Parse(id); err != nil {
		return core.FoodTemplate{}, fmt.Errorf("parse food template id: %w", err)
	}
	f.Serving = serving.String
	f.LastUsedAt = fromUnixNano(lastUsed)
	return f, nil
}

func scanMeal(s scanner) (core.MealTemplate, error) {
	var (
		m        core.MealTemplate
		id       string
		lastUsed sql.NullInt64
	)
	if err := s.Scan(&id, &m.Name, &lastUsed); err != nil {
		return core.MealTemplate{}, err
	}
	var err error
	if m.ID, err = uuid.Parse(id); err != nil {
		return core.MealTemplate{}, fmt.Errorf("parse meal template id: %w", err)
	}
	m.LastUsedAt = fromUnixNano(lastUsed)
	return m, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
