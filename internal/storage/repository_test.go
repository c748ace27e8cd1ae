package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"macrotracker/internal/core"
	"macrotracker/internal/store"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "data", "test.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestRepositoryEntriesRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	day := time.Date(2025, 4, 2, 0, 0, 0, 0, time.UTC)

	e := core.NewFoodEntry("Yogurt", 120, 10, 3, 12)
	e.Serving = "170 g"
	e.Servings = 1.5
	e.MealType = core.Breakfast
	e.Timestamp = day.Add(8 * time.Hour)
	late := core.NewFoodEntry("Pasta", 600, 20, 10, 100)
	late.Timestamp = day.Add(21 * time.Hour)
	outside := core.NewFoodEntry("Midnight snack", 50, 1, 1, 1)
	outside.Timestamp = day.Add(24 * time.Hour)

	if err := repo.Save(ctx, store.NewBatch().Add(late).Add(e).Add(outside)); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := repo.Entries(ctx, store.DayQuery(day))
	if err != nil {
		t.Fatalf("entries: %v", err)
	}
	if len(got) != 2 || got[0].ID != e.ID || got[1].ID != late.ID {
		t.Fatalf("unexpected day entries: %+v", got)
	}
	first := got[0]
	if first.Serving != "170 g" || first.Servings != 1.5 || first.MealType != core.Breakfast || !first.Timestamp.Equal(e.Timestamp) {
		t.Fatalf("entry fields not preserved: %+v", first)
	}
	if got[1].Serving != "" {
		t.Fatalf("empty serving should read back empty, got %q", got[1].Serving)
	}

	recent, err := repo.Entries(ctx, store.RecentQuery(1))
	if err != nil || len(recent) != 1 || recent[0].ID != outside.ID {
		t.Fatalf("unexpected recent entries: %+v (%v)", recent, err)
	}
}

func TestRepositorySaveIsAtomic(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	existing := core.NewFoodEntry("a", 1, 1, 1, 1)
	if err := repo.Save(ctx, store.NewBatch().Add(existing)); err != nil {
		t.Fatalf("save: %v", err)
	}

	fresh := core.NewFoodEntry("b", 1, 1, 1, 1)
	b := store.NewBatch().Add(fresh).Add(existing)
	err := repo.Save(ctx, b)
	if !errors.Is(err, store.ErrPersistence) || !errors.Is(err, store.ErrDuplicate) {
		t.Fatalf("expected duplicate persistence error, got %v", err)
	}
	if b.Len() != 2 {
		t.Fatalf("failed batch should keep its mutations, has %d", b.Len())
	}
	if _, ok, _ := repo.FindEntry(ctx, fresh.ID); ok {
		t.Fatalf("partial batch was committed")
	}
}

func TestRepositoryUpdateAndDelete(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	e := core.NewFoodEntry("Toast", 80, 3, 1, 15)

	if err := repo.Save(ctx, store.NewBatch().Update(e)); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("update missing: %v", err)
	}
	if err := repo.Save(ctx, store.NewBatch().Add(e)); err != nil {
		t.Fatalf("add: %v", err)
	}
	e.Calories = 160
	if err := repo.Save(ctx, store.NewBatch().Update(e)); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, ok, err := repo.FindEntry(ctx, e.ID)
	if err != nil || !ok || got.Calories != 160 {
		t.Fatalf("update not persisted: %+v ok=%v err=%v", got, ok, err)
	}
	if err := repo.Save(ctx, store.NewBatch().Delete(store.Ref{RecKind: core.KindEntry, ID: e.ID})); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := repo.Save(ctx, store.NewBatch().Delete(e)); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("second delete: %v", err)
	}
}

func TestRepositoryTargetsGetOrInit(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	first, err := repo.Targets(ctx)
	if err != nil {
		t.Fatalf("targets: %v", err)
	}
	if first.MacroTargets != core.DefaultTargets() {
		t.Fatalf("unexpected defaults: %+v", first)
	}
	again, _ := repo.Targets(ctx)
	if again.ID != first.ID {
		t.Fatalf("targets singleton recreated: %s != %s", again.ID, first.ID)
	}

	updated := core.MacroTargets{CaloriesTarget: 2100, ProteinTarget: 140, FatTarget: 70, CarbsTarget: 230}
	if err := repo.Save(ctx, store.NewBatch().PutTargets(updated)); err != nil {
		t.Fatalf("put targets: %v", err)
	}
	got, _ := repo.Targets(ctx)
	if got.ID != first.ID || got.MacroTargets != updated {
		t.Fatalf("targets not overwritten in place: %+v", got)
	}
}

func TestRepositoryMealTemplates(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	now := time.Now()
	oats := core.FoodTemplate{ID: uuid.New(), Name: "Oats", Serving: "40 g", Calories: 150, Protein: 5, Fat: 3, Carbs: 27, LastUsedAt: now.Add(-time.Hour)}
	milk := core.FoodTemplate{ID: uuid.New(), Name: "Milk 100%", Calories: 100, Protein: 8, Fat: 4, Carbs: 10, LastUsedAt: now}
	meal := core.MealTemplate{
		ID:   uuid.New(),
		Name: "Porridge",
		Items: []core.MealItem{
			{ID: uuid.New(), FoodTemplateID: milk.ID, Quantity: 2},
			{ID: uuid.New(), FoodTemplateID: oats.ID, Quantity: 1},
		},
		LastUsedAt: now,
	}
	if err := repo.Save(ctx, store.NewBatch().Add(oats).Add(milk).Add(meal)); err != nil {
		t.Fatalf("save: %v", err)
	}

	foods, err := repo.FoodTemplates(ctx, store.TemplateQuery{})
	if err != nil || len(foods) != 2 || foods[0].ID != milk.ID {
		t.Fatalf("unexpected food order: %+v (%v)", foods, err)
	}
	literal, _ := repo.FoodTemplates(ctx, store.TemplateQuery{Search: "100%"})
	if len(literal) != 1 || literal[0].ID != milk.ID {
		t.Fatalf("search should treat %% literally: %+v", literal)
	}

	got, ok, err := repo.FindMealTemplate(ctx, meal.ID)
	if err != nil || !ok {
		t.Fatalf("find meal: ok=%v err=%v", ok, err)
	}
	if len(got.Items) != 2 || got.Items[0].FoodTemplateID != milk.ID || got.Items[1].Quantity != 1 {
		t.Fatalf("items not preserved in order: %+v", got.Items)
	}

	if err := repo.Save(ctx, store.NewBatch().Delete(milk)); err != nil {
		t.Fatalf("delete food: %v", err)
	}
	meals, err := repo.MealTemplates(ctx, store.TemplateQuery{})
	if err != nil || len(meals) != 1 {
		t.Fatalf("meal templates: %+v (%v)", meals, err)
	}
	if len(meals[0].Items) != 1 || meals[0].Items[0].FoodTemplateID != oats.ID {
		t.Fatalf("cascade did not drop the milk item: %+v", meals[0].Items)
	}
}

func TestRepositoryRejectsUnknownFoodReference(t *testing.T) {
	repo := newTestRepo(t)
	meal := core.MealTemplate{
		ID:    uuid.New(),
		Name:  "Ghost",
		Items: []core.MealItem{{ID: uuid.New(), FoodTemplateID: uuid.New(), Quantity: 1}},
	}
	err := repo.Save(context.Background(), store.NewBatch().Add(meal))
	if !errors.Is(err, store.ErrInvalidReference) {
		t.Fatalf("expected ErrInvalidReference, got %v", err)
	}
}

func TestSchemaVersion(t *testing.T) {
	repo := newTestRepo(t)
	version, dirty, err := SchemaVersion(repo.dsn)
	if err != nil {
		t.Fatalf("schema version: %v", err)
	}
	if version != 1 || dirty {
		t.Fatalf("unexpected schema version %d dirty=%v", version, dirty)
	}
}

func TestRepositoryKeepsEpochAndUnusedTimestamps(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	epoch := time.Unix(0, 0).UTC()

	e := core.NewFoodEntry("Epoch toast", 90, 3, 1, 17)
	e.Timestamp = epoch
	used := core.FoodTemplate{ID: uuid.New(), Name: "Oats", LastUsedAt: epoch}
	unused := core.FoodTemplate{ID: uuid.New(), Name: "Rice"}
	if err := repo.Save(ctx, store.NewBatch().Add(e).Add(used).Add(unused)); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, ok, err := repo.FindEntry(ctx, e.ID)
	if err != nil || !ok {
		t.Fatalf("find entry: ok=%v err=%v", ok, err)
	}
	if got.Timestamp.IsZero() || !got.Timestamp.Equal(epoch) {
		t.Fatalf("entry timestamp = %v, want %v", got.Timestamp, epoch)
	}

	f, _, err := repo.FindFoodTemplate(ctx, used.ID)
	if err != nil || f.LastUsedAt.IsZero() || !f.LastUsedAt.Equal(epoch) {
		t.Fatalf("used template lastUsedAt = %v (%v)", f.LastUsedAt, err)
	}
	f, _, err = repo.FindFoodTemplate(ctx, unused.ID)
	if err != nil || !f.LastUsedAt.IsZero() {
		t.Fatalf("unused template lastUsedAt = %v (%v)", f.LastUsedAt, err)
	}

	foods, err := repo.FoodTemplates(ctx, store.TemplateQuery{})
	if err != nil || len(foods) != 2 || foods[0].ID != used.ID {
		t.Fatalf("unused template should sort last: %+v (%v)", foods, err)
	}
}
