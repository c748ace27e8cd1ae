package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"macrotracker/internal/core"
	"macrotracker/internal/store"

	_ "modernc.org/sqlite"
)

// SQLiteRepository implements store.Store on a single SQLite file.
type SQLiteRepository struct {
	db  *sql.DB
	dsn string
}

// Ensure interface conformance
var _ store.Store = (*SQLiteRepository)(nil)

// DSN builds the connection string for dbPath with foreign keys on,
// WAL journaling and a busy timeout.
func DSN(dbPath string) string {
	return "file:" + dbPath + "?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_txlock=immediate"
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	dsn := DSN(dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dsn); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db, dsn: dsn}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Save implements store.Writer. The whole batch runs in one transaction.
func (r *SQLiteRepository) Save(ctx context.Context, b *store.Batch) error {
	if b == nil || b.Len() == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin transaction: %w", store.ErrPersistence, err)
	}
	defer tx.Rollback()

	for _, m := range b.Mutations() {
		if err := applyMutation(ctx, tx, m); err != nil {
			return fmt.Errorf("%w: %s %s %s: %w", store.ErrPersistence, m.Op, m.Record.Kind(), m.Record.RecordID(), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %w", store.ErrPersistence, err)
	}

	slog.DebugContext(ctx, "Batch committed to SQLite", "mutations", b.Len())
	b.Discard()
	return nil
}

// Entries implements store.EntryReader.
func (r *SQLiteRepository) Entries(ctx context.Context, q store.EntryQuery) ([]core.FoodEntry, error) {
	var (
		where []string
		args  []any
	)
	if !q.From.IsZero() {
		where = append(where, "logged_at >= ?")
		args = append(args, q.From.UnixNano())
	}
	if !q.To.IsZero() {
		where = append(where, "logged_at < ?")
		args = append(args, q.To.UnixNano())
	}

	query := "SELECT " + entryColumns + " FROM food_entries"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	if q.Order == store.Descending {
		query += " ORDER BY logged_at DESC, id DESC"
	} else {
		query += " ORDER BY logged_at ASC, id ASC"
	}
	if q.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, q.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: query entries: %w", store.ErrPersistence, err)
	}
	defer rows.Close()

	var out []core.FoodEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: scan entry: %w", store.ErrPersistence, err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate entries: %w", store.ErrPersistence, err)
	}
	return out, nil
}

// FindEntry implements store.EntryReader.
func (r *SQLiteRepository) FindEntry(ctx context.Context, id uuid.UUID) (core.FoodEntry, bool, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+entryColumns+" FROM food_entries WHERE id = ?", id.String())
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.FoodEntry{}, false, nil
	}
	if err != nil {
		return core.FoodEntry{}, false, fmt.Errorf("%w: get entry by id: %w", store.ErrPersistence, err)
	}
	return e, true, nil
}

// FoodTemplates implements store.TemplateReader.
func (r *SQLiteRepository) FoodTemplates(ctx context.Context, q store.TemplateQuery) ([]core.FoodTemplate, error) {
	query, args := templateQuery("SELECT "+foodColumns+" FROM food_templates", q)
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: query food templates: %w", store.ErrPersistence, err)
	}
	defer rows.Close()

	var out []core.FoodTemplate
	for rows.Next() {
		f, err := scanFood(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: scan food template: %w", store.ErrPersistence, err)
		}
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate food templates: %w", store.ErrPersistence, err)
	}
	return out, nil
}

// FindFoodTemplate implements store.TemplateReader.
func (r *SQLiteRepository) FindFoodTemplate(ctx context.Context, id uuid.UUID) (core.FoodTemplate, bool, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+foodColumns+" FROM food_templates WHERE id = ?", id.String())
	f, err := scanFood(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.FoodTemplate{}, false, nil
	}
	if err != nil {
		return core.FoodTemplate{}, false, fmt.Errorf("%w: get food template by id: %w", store.ErrPersistence, err)
	}
	return f, true, nil
}

// MealTemplates implements store.TemplateReader.
func (r *SQLiteRepository) MealTemplates(ctx context.Context, q store.TemplateQuery) ([]core.MealTemplate, error) {
	query, args := templateQuery("SELECT id, name, last_used_at FROM meal_templates", q)
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: query meal templates: %w", store.ErrPersistence, err)
	}
	defer rows.Close()

	var out []core.MealTemplate
	for rows.Next() {
		m, err := scanMeal(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: scan meal template: %w", store.ErrPersistence, err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate meal templates: %w", store.ErrPersistence, err)
	}
	rows.Close()

	for i := range out {
		items, err := r.mealItems(ctx, out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].Items = items
	}
	return out, nil
}

// FindMealTemplate implements store.TemplateReader.
func (r *SQLiteRepository) FindMealTemplate(ctx context.Context, id uuid.UUID) (core.MealTemplate, bool, error) {
	row := r.db.QueryRowContext(ctx, "SELECT id, name, last_used_at FROM meal_templates WHERE id = ?", id.String())
	m, err := scanMeal(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.MealTemplate{}, false, nil
	}
	if err != nil {
		return core.MealTemplate{}, false, fmt.Errorf("%w: get meal template by id: %w", store.ErrPersistence, err)
	}
	if m.Items, err = r.mealItems(ctx, m.ID); err != nil {
		return core.MealTemplate{}, false, err
	}
	return m, true, nil
}

// Targets implements store.TargetsReader.
func (r *SQLiteRepository) Targets(ctx context.Context) (core.Targets, error) {
	t, err := r.readTargets(ctx)
	if err == nil {
		return t, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return core.Targets{}, fmt.Errorf("%w: read targets: %w", store.ErrPersistence, err)
	}

	def := core.DefaultTargets()
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO targets (id, singleton, calories_target, protein_target, fat_target, carbs_target)
		VALUES (?, 1, ?, ?, ?, ?)
		ON CONFLICT (singleton) DO NOTHING`,
		uuid.NewString(), def.CaloriesTarget, def.ProteinTarget, def.FatTarget, def.CarbsTarget)
	if err != nil {
		return core.Targets{}, fmt.Errorf("%w: create default targets: %w", store.ErrPersistence, err)
	}
	slog.InfoContext(ctx, "Default targets created")

	t, err = r.readTargets(ctx)
	if err != nil {
		return core.Targets{}, fmt.Errorf("%w: read targets: %w", store.ErrPersistence, err)
	}
	return t, nil
}

func (r *SQLiteRepository) readTargets(ctx context.Context) (core.Targets, error) {
	var (
		t  core.Targets
		id string
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT id, calories_target, protein_target, fat_target, carbs_target
		FROM targets WHERE singleton = 1`).
		Scan(&id, &t.CaloriesTarget, &t.ProteinTarget, &t.FatTarget, &t.CarbsTarget)
	if err != nil {
		return core.Targets{}, err
	}
	if t.ID, err = uuid.Parse(id); err != nil {
		return core.Targets{}, fmt.Errorf("parse targets id: %w", err)
	}
	return t, nil
}

func (r *SQLiteRepository) mealItems(ctx context.Context, mealID uuid.UUID) ([]core.MealItem, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, food_template_id, quantity FROM meal_items
		WHERE meal_template_id = ? ORDER BY position`, mealID.String())
	if err != nil {
		return nil, fmt.Errorf("%w: query meal items: %w", store.ErrPersistence, err)
	}
	defer rows.Close()

	items := []core.MealItem{}
	for rows.Next() {
		var (
			item       core.MealItem
			id, foodID string
		)
		if err := rows.Scan(&id, &foodID, &item.Quantity); err != nil {
			return nil, fmt.Errorf("%w: scan meal item: %w", store.ErrPersistence, err)
		}
		if item.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("%w: parse meal item id: %w", store.ErrPersistence, err)
		}
		if item.FoodTemplateID, err = uuid.Parse(foodID); err != nil {
			return nil, fmt.Errorf("%w: parse food template id: %w", store.ErrPersistence, err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate meal items: %w", store.ErrPersistence, err)
	}
	return items, nil
}

func templateQuery(base string, q store.TemplateQuery) (string, []any) {
	var args []any
	query := base
	if search := strings.TrimSpace(q.Search); search != "" {
		query += ` WHERE name LIKE ? ESCAPE '\'`
		args = append(args, "%"+escapeLike(search)+"%")
	}
	query += " ORDER BY last_used_at DESC, id ASC"
	if q.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, q.Limit)
	}
	return query, args
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`).Replace(s)
}

// Template timestamps are stored as Unix nanoseconds. The zero time
// ("never used") is NULL, so the Unix epoch itself round-trips.
func toUnixNano(t time.Time) sql.NullInt64 {
	if t.IsZero() {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixNano(), Valid: true}
}

func fromUnixNano(n sql.NullInt64) time.Time {
	if !n.Valid {
		return time.Time{}
	}
	return time.Unix(0, n.Int64)
}
