package backup

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"macrotracker/internal/storage"
	"macrotracker/internal/store"
)

func newSQLiteCodec(t *testing.T) (*Codec, *storage.SQLiteRepository) {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "t.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return NewCodec(repo), repo
}

func TestSQLiteImportIsIdempotent(t *testing.T) {
	ctx := context.Background()
	codec, repo := newSQLiteCodec(t)

	p := samplePayload()
	ghost := uuid.MustParse("99999999-9999-4999-8999-999999999999")
	meal := &p.MealTemplates[0]
	meal.Items = append(meal.Items, MealItemRecord{FoodID: ghost, Quantity: 3})
	data, err := Encode(p)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	first, err := codec.Import(ctx, data)
	if err != nil {
		t.Fatalf("first import: %v", err)
	}
	if first.Inserted != len(p.Entries) || first.Skipped != 0 || first.Failed != 0 {
		t.Fatalf("first import = %+v", first)
	}

	second, err := codec.Import(ctx, data)
	if err != nil {
		t.Fatalf("second import: %v", err)
	}
	if second.Inserted != 0 || second.Skipped != len(p.Entries) || second.Failed != 0 {
		t.Fatalf("second import = %+v", second)
	}

	got, ok, err := repo.FindMealTemplate(ctx, meal.ID)
	if err != nil || !ok {
		t.Fatalf("find meal: ok=%v err=%v", ok, err)
	}
	if len(got.Items) != 2 {
		t.Fatalf("meal items = %+v, want the two known foods", got.Items)
	}
	for _, item := range got.Items {
		if item.FoodTemplateID == ghost {
			t.Fatalf("dangling item kept: %+v", item)
		}
	}

	foods, err := repo.FoodTemplates(ctx, store.TemplateQuery{})
	if err != nil || len(foods) != len(p.FoodTemplates) {
		t.Fatalf("food templates = %+v (%v)", foods, err)
	}
}

func TestSQLiteExportKeepsEpochTimestamp(t *testing.T) {
	ctx := context.Background()
	codec, _ := newSQLiteCodec(t)

	epoch := time.Unix(0, 0).UTC()
	p := samplePayload()
	p.Entries = p.Entries[:1]
	p.Entries[0].Timestamp = Stamp(epoch)
	p.FoodTemplates[0].LastUsedAt = Stamp(epoch)
	data, err := Encode(p)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if _, err := codec.Import(ctx, data); err != nil {
		t.Fatalf("import: %v", err)
	}

	exported, err := codec.Export(ctx)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	got, err := Decode(exported)
	if err != nil {
		t.Fatalf("decode export: %v\n%s", err, exported)
	}
	if len(got.Entries) != 1 || !got.Entries[0].Timestamp.Equal(epoch) {
		t.Fatalf("entries = %+v, want timestamp %v", got.Entries, epoch)
	}
	for _, f := range got.FoodTemplates {
		if f.ID == p.FoodTemplates[0].ID && !f.LastUsedAt.Equal(epoch) {
			t.Fatalf("food lastUsedAt = %v, want %v", f.LastUsedAt.Time, epoch)
		}
	}
}
