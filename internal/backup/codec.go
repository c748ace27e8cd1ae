// Package backup snapshots the whole object graph into a versioned JSON
// payload and merges such payloads back into a store.
package backup

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"macrotracker/internal/core"
	"macrotracker/internal/store"
)

var (
	ErrUnsupportedSchema = errors.New("backup is from a newer schema version")
	ErrInvalidData       = errors.New("invalid backup data")
)

// Repository is the part of store.Store the codec needs.
type Repository interface {
	store.Writer
	store.EntryReader
	store.TemplateReader
	store.TargetsReader
}

// ImportResult counts entries only. Templates are merged but not counted.
type ImportResult struct {
	Inserted int
	Skipped  int
	Failed   int
}

type Codec struct {
	repo Repository
}

func NewCodec(repo Repository) *Codec {
	return &Codec{repo: repo}
}

// Filename is the name an export taken at t is saved under.
func Filename(t time.Time) string {
	return "macro-tracker-backup-" + t.Format(core.DayLayout) + ".json"
}

// Snapshot reads every entity from repo. Records are sorted so equal
// stores produce equal payloads.
func Snapshot(ctx context.Context, repo Repository) (Payload, error) {
	targets, err := repo.Targets(ctx)
	if err != nil {
		return Payload{}, fmt.Errorf("read targets: %w", err)
	}
	entries, err := repo.Entries(ctx, store.EntryQuery{})
	if err != nil {
		return Payload{}, fmt.Errorf("read entries: %w", err)
	}
	foods, err := repo.FoodTemplates(ctx, store.TemplateQuery{})
	if err != nil {
		return Payload{}, fmt.Errorf("read food templates: %w", err)
	}
	meals, err := repo.MealTemplates(ctx, store.TemplateQuery{})
	if err != nil {
		return Payload{}, fmt.Errorf("read meal templates: %w", err)
	}

	p := Payload{
		SchemaVersion: CurrentSchemaVersion,
		Targets:       targetsRecord(targets.MacroTargets),
	}
	for _, e := range entries {
		p.Entries = append(p.Entries, entryRecord(e))
	}
	for _, f := range foods {
		p.FoodTemplates = append(p.FoodTemplates, foodTemplateRecord(f))
	}
	for _, m := range meals {
		p.MealTemplates = append(p.MealTemplates, mealTemplateRecord(m))
	}

	slices.SortFunc(p.Entries, func(a, b EntryRecord) int {
		if c := a.Timestamp.Compare(b.Timestamp.Time); c != 0 {
			return c
		}
		return compareIDs(a.ID, b.ID)
	})
	slices.SortFunc(p.FoodTemplates, func(a, b FoodTemplateRecord) int { return compareIDs(a.ID, b.ID) })
	slices.SortFunc(p.MealTemplates, func(a, b MealTemplateRecord) int { return compareIDs(a.ID, b.ID) })
	return p, nil
}

// Encode writes p as indented JSON with sorted keys.
func Encode(p Payload) ([]byte, error) {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode backup: %w", err)
	}
	return append(data, '\n'), nil
}

// Decode parses a payload. The schema version is checked before the
// rest of the document is looked at, so a newer shape is never partially
// decoded.
func Decode(data []byte) (Payload, error) {
	var header struct {
		SchemaVersion *int            `json:"schemaVersion"`
		Targets       json.RawMessage `json:"targets"`
	}
	if err := json.Unmarshal(data, &header); err != nil {
		return Payload{}, fmt.Errorf("%w: %w", ErrInvalidData, err)
	}
	if header.SchemaVersion == nil {
		return Payload{}, fmt.Errorf("%w: missing schemaVersion", ErrInvalidData)
	}
	if v := *header.SchemaVersion; v > CurrentSchemaVersion {
		return Payload{}, fmt.Errorf("%w: version %d, supported up to %d", ErrUnsupportedSchema, v, CurrentSchemaVersion)
	} else if v < 1 {
		return Payload{}, fmt.Errorf("%w: schemaVersion %d", ErrInvalidData, v)
	}
	if len(header.Targets) == 0 || bytes.Equal(header.Targets, []byte("null")) {
		return Payload{}, fmt.Errorf("%w: missing targets", ErrInvalidData)
	}

	var p Payload
	if err := json.Unmarshal(data, &p); err != nil {
		return Payload{}, fmt.Errorf("%w: %w", ErrInvalidData, err)
	}
	if err := p.validate(); err != nil {
		return Payload{}, fmt.Errorf("%w: %w", ErrInvalidData, err)
	}
	return p, nil
}

func (p Payload) validate() error {
	if err := p.Targets.Model().Validate(); err != nil {
		return err
	}
	for i, r := range p.Entries {
		if err := r.Model().Validate(); err != nil {
			return fmt.Errorf("entries[%d]: %w", i, err)
		}
	}
	for i, r := range p.FoodTemplates {
		f := r.Model()
		if err := f.Validate(); err != nil {
			return fmt.Errorf("foodTemplates[%d]: %w", i, err)
		}
		if f.LastUsedAt.IsZero() {
			return fmt.Errorf("foodTemplates[%d]: missing lastUsedAt", i)
		}
	}
	for i, r := range p.MealTemplates {
		m := core.MealTemplate{ID: r.ID, Name: r.Name, LastUsedAt: r.LastUsedAt.Time}
		if err := m.Validate(); err != nil {
			return fmt.Errorf("mealTemplates[%d]: %w", i, err)
		}
		if r.LastUsedAt.IsZero() {
			return fmt.Errorf("mealTemplates[%d]: missing lastUsedAt", i)
		}
	}
	return nil
}

// Export snapshots the store and encodes it.
func (c *Codec) Export(ctx context.Context) ([]byte, error) {
	p, err := Snapshot(ctx, c.repo)
	if err != nil {
		return nil, err
	}
	data, err := Encode(p)
	if err != nil {
		return nil, err
	}
	slog.InfoContext(ctx, "Backup exported",
		"entries", len(p.Entries),
		"food_templates", len(p.FoodTemplates),
		"meal_templates", len(p.MealTemplates),
		"bytes", len(data))
	return data, nil
}

// Import decodes data and merges it into the store.
func (c *Codec) Import(ctx context.Context, data []byte) (ImportResult, error) {
	p, err := Decode(data)
	if err != nil {
		return ImportResult{}, err
	}
	return c.Apply(ctx, p)
}

// Apply merges p into the store. Targets are overwritten. Every other
// record is inserted only if its id is not already present; existing
// records are never modified. Each record is saved on its own: a record
// that fails to persist is counted and reported, and the rest of the
// payload is still applied.
func (c *Codec) Apply(ctx context.Context, p Payload) (ImportResult, error) {
	if err := c.repo.Save(ctx, store.NewBatch().PutTargets(p.Targets.Model())); err != nil {
		return ImportResult{}, fmt.Errorf("overwrite targets: %w", err)
	}

	var (
		res  ImportResult
		errs []error
	)
	for _, r := range p.Entries {
		e := r.Model()
		inserted, err := insertIfMissing(ctx, c.repo, e, c.repo.FindEntry)
		switch {
		case err != nil:
			res.Failed++
			errs = append(errs, err)
			slog.WarnContext(ctx, "Failed to import entry", "entry_id", e.ID, "error", err)
		case inserted:
			res.Inserted++
		default:
			res.Skipped++
		}
	}

	foods := make(map[uuid.UUID]core.FoodTemplate, len(p.FoodTemplates))
	for _, r := range p.FoodTemplates {
		f := r.Model()
		existing, ok, err := c.repo.FindFoodTemplate(ctx, f.ID)
		if err != nil {
			errs = append(errs, err)
			slog.WarnContext(ctx, "Failed to look up food template", "template_id", f.ID, "error", err)
			continue
		}
		if ok {
			foods[f.ID] = existing
			continue
		}
		if err := saveRecord(ctx, c.repo, f); err != nil {
			errs = append(errs, err)
			slog.WarnContext(ctx, "Failed to import food template", "template_id", f.ID, "error", err)
			continue
		}
		foods[f.ID] = f
	}

	for _, r := range p.MealTemplates {
		m := resolveMeal(ctx, r, foods)
		if _, err := insertIfMissing(ctx, c.repo, m, c.repo.FindMealTemplate); err != nil {
			errs = append(errs, err)
			slog.WarnContext(ctx, "Failed to import meal template", "template_id", m.ID, "error", err)
		}
	}

	slog.InfoContext(ctx, "Backup imported",
		"schema_version", p.SchemaVersion,
		"inserted", res.Inserted,
		"skipped", res.Skipped,
		"failed", res.Failed)
	return res, errors.Join(errs...)
}

// resolveMeal rebuilds a meal template from its record. Items whose
// food template is not in foods are dropped.
func resolveMeal(ctx context.Context, r MealTemplateRecord, foods map[uuid.UUID]core.FoodTemplate) core.MealTemplate {
	m := core.MealTemplate{
		ID:         r.ID,
		Name:       r.Name,
		Items:      make([]core.MealItem, 0, len(r.Items)),
		LastUsedAt: r.LastUsedAt.Time,
	}
	for _, item := range r.Items {
		food, ok := foods[item.FoodID]
		if !ok {
			slog.DebugContext(ctx, "Dropping meal item with unknown food template",
				"template_id", r.ID, "food_template_id", item.FoodID)
			continue
		}
		m.Items = append(m.Items, core.MealItem{ID: uuid.New(), FoodTemplateID: food.ID, Quantity: item.Quantity})
	}
	return m
}

func insertIfMissing[T core.Record](ctx context.Context, w store.Writer, rec T, find func(context.Context, uuid.UUID) (T, bool, error)) (bool, error) {
	_, ok, err := find(ctx, rec.RecordID())
	if err != nil {
		return false, err
	}
	if ok {
		return false, nil
	}
	if err := saveRecord(ctx, w, rec); err != nil {
		return false, err
	}
	return true, nil
}

func saveRecord(ctx context.Context, w store.Writer, rec core.Record) error {
	b := store.NewBatch().Add(rec)
	if err := w.Save(ctx, b); err != nil {
		b.Discard()
		return err
	}
	return nil
}

func compareIDs(a, b uuid.UUID) int {
	return strings.Compare(a.String(), b.String())
}
