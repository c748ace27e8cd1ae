package memory

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"macrotracker/internal/core"
	"macrotracker/internal/store"
)

// Store keeps everything in maps guarded by a mutex. Save applies a
// batch to a copy of the state and swaps it in only if every mutation
// succeeded.
type Store struct {
	mu      sync.Mutex
	state   state
	targets *core.Targets
}

type state struct {
	entries map[uuid.UUID]core.FoodEntry
	foods   map[uuid.UUID]core.FoodTemplate
	meals   map[uuid.UUID]core.MealTemplate
}

// Ensure interface conformance
var _ store.Store = (*Store)(nil)

func New(foods ...core.FoodTemplate) *Store {
	s := &Store{state: state{
		entries: map[uuid.UUID]core.FoodEntry{},
		foods:   map[uuid.UUID]core.FoodTemplate{},
		meals:   map[uuid.UUID]core.MealTemplate{},
	}}
	for _, f := range foods {
		s.state.foods[f.ID] = f
	}
	return s
}

// NewFromFiles seeds food templates from base/seed_food_templates.txt.
// Each line is "name;calories;protein;fat;carbs[;serving]"; blank lines
// and lines starting with # are ignored, as are malformed lines.
func NewFromFiles(base string) *Store {
	var foods []core.FoodTemplate
	seen := map[string]struct{}{}
	for _, line := range readLines(filepath.Join(base, "seed_food_templates.txt")) {
		f, ok := parseSeedLine(line)
		if !ok {
			continue
		}
		key := strings.ToLower(f.Name)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		foods = append(foods, f)
	}
	return New(foods...)
}

func (s *Store) Close() error { return nil }

// Save implements store.Writer.
func (s *Store) Save(_ context.Context, b *store.Batch) error {
	if b == nil || b.Len() == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.state.clone()
	targets := s.targets
	for _, m := range b.Mutations() {
		if m.Op == store.OpPutTargets {
			t, _ := m.Record.(core.Targets)
			targets = putTargets(targets, t.MacroTargets)
			continue
		}
		if err := next.apply(m); err != nil {
			return fmt.Errorf("%w: %s %s %s: %w", store.ErrPersistence, m.Op, m.Record.Kind(), m.Record.RecordID(), err)
		}
	}
	s.state = next
	s.targets = targets
	b.Discard()
	return nil
}

// Entries implements store.EntryReader.
func (s *Store) Entries(_ context.Context, q store.EntryQuery) ([]core.FoodEntry, error) {
	s.mu.Lock()
	out := make([]core.FoodEntry, 0, len(s.state.entries))
	for _, e := range s.state.entries {
		if q.Match(e.Timestamp) {
			out = append(out, e)
		}
	}
	s.mu.Unlock()

	slices.SortFunc(out, func(a, b core.FoodEntry) int {
		c := a.Timestamp.Compare(b.Timestamp)
		if c == 0 {
			c = strings.Compare(a.ID.String(), b.ID.String())
		}
		if q.Order == store.Descending {
			return -c
		}
		return c
	})
	return limit(out, q.Limit), nil
}

// FindEntry implements store.EntryReader.
func (s *Store) FindEntry(_ context.Context, id uuid.UUID) (core.FoodEntry, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.state.entries[id]
	return e, ok, nil
}

// FoodTemplates implements store.TemplateReader.
func (s *Store) FoodTemplates(_ context.Context, q store.TemplateQuery) ([]core.FoodTemplate, error) {
	s.mu.Lock()
	out := make([]core.FoodTemplate, 0, len(s.state.foods))
	for _, f := range s.state.foods {
		if matchName(f.Name, q.Search) {
			out = append(out, f)
		}
	}
	s.mu.Unlock()

	slices.SortFunc(out, func(a, b core.FoodTemplate) int {
		return byLastUsed(a.LastUsedAt, b.LastUsedAt, a.ID, b.ID)
	})
	return limit(out, q.Limit), nil
}

// MealTemplates implements store.TemplateReader.
func (s *Store) MealTemplates(_ context.Context, q store.TemplateQuery) ([]core.MealTemplate, error) {
	s.mu.Lock()
	out := make([]core.MealTemplate, 0, len(s.state.meals))
	for _, m := range s.state.meals {
		if matchName(m.Name, q.Search) {
			out = append(out, cloneMeal(m))
		}
	}
	s.mu.Unlock()

	slices.SortFunc(out, func(a, b core.MealTemplate) int {
		return byLastUsed(a.LastUsedAt, b.LastUsedAt, a.ID, b.ID)
	})
	return limit(out, q.Limit), nil
}

// FindFoodTemplate implements store.TemplateReader.
func (s *Store) FindFoodTemplate(_ context.Context, id uuid.UUID) (core.FoodTemplate, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.state.foods[id]
	return f, ok, nil
}

// FindMealTemplate implements store.TemplateReader.
func (s *Store) FindMealTemplate(_ context.Context, id uuid.UUID) (core.MealTemplate, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.state.meals[id]
	if !ok {
		return core.MealTemplate{}, false, nil
	}
	return cloneMeal(m), true, nil
}

// Targets implements store.TargetsReader.
func (s *Store) Targets(_ context.Context) (core.Targets, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.targets == nil {
		s.targets = &core.Targets{ID: uuid.New(), MacroTargets: core.DefaultTargets()}
	}
	return *s.targets, nil
}

func (st state) clone() state {
	next := state{
		entries: make(map[uuid.UUID]core.FoodEntry, len(st.entries)),
		foods:   make(map[uuid.UUID]core.FoodTemplate, len(st.foods)),
		meals:   make(map[uuid.UUID]core.MealTemplate, len(st.meals)),
	}
	for k, v := range st.entries {
		next.entries[k] = v
	}
	for k, v := range st.foods {
		next.foods[k] = v
	}
	for k, v := range st.meals {
		next.meals[k] = v
	}
	return next
}

func (st state) apply(m store.Mutation) error {
	id := m.Record.RecordID()
	switch m.Record.Kind() {
	case core.KindEntry:
		return applyTo(st.entries, m, id)
	case core.KindFoodTemplate:
		if err := applyTo(st.foods, m, id); err != nil {
			return err
		}
		if m.Op == store.OpDelete {
			// Cascade: drop items pointing at the deleted template.
			for mid, meal := range st.meals {
				if trimmed, changed := meal.WithoutFood(id); changed {
					st.meals[mid] = trimmed
				}
			}
		}
		return nil
	case core.KindMealTemplate:
		if m.Op != store.OpDelete {
			meal, ok := m.Record.(core.MealTemplate)
			if !ok {
				return fmt.Errorf("%w: %T", store.ErrUnsupportedKind, m.Record)
			}
			for _, ref := range meal.References() {
				if _, ok := st.foods[ref]; !ok {
					return fmt.Errorf("%w: %s", store.ErrInvalidReference, ref)
				}
			}
			m.Record = cloneMeal(meal)
		}
		return applyTo(st.meals, m, id)
	default:
		return fmt.Errorf("%w: %s", store.ErrUnsupportedKind, m.Record.Kind())
	}
}

func applyTo[T core.Record](set map[uuid.UUID]T, m store.Mutation, id uuid.UUID) error {
	_, exists := set[id]
	switch m.Op {
	case store.OpDelete:
		if !exists {
			return store.ErrNotFound
		}
		delete(set, id)
		return nil
	case store.OpAdd, store.OpUpdate:
		if m.Op == store.OpAdd && exists {
			return store.ErrDuplicate
		}
		if m.Op == store.OpUpdate && !exists {
			return store.ErrNotFound
		}
		rec, ok := m.Record.(T)
		if !ok {
			return fmt.Errorf("%w: %T", store.ErrUnsupportedKind, m.Record)
		}
		set[id] = rec
		return nil
	default:
		return fmt.Errorf("unknown op %d", m.Op)
	}
}

func putTargets(current *core.Targets, t core.MacroTargets) *core.Targets {
	next := core.Targets{ID: uuid.New(), MacroTargets: t}
	if current != nil {
		next.ID = current.ID
	}
	return &next
}

func cloneMeal(m core.MealTemplate) core.MealTemplate {
	m.Items = append([]core.MealItem(nil), m.Items...)
	return m
}

func byLastUsed(a, b time.Time, aID, bID uuid.UUID) int {
	if c := b.Compare(a); c != 0 {
		return c
	}
	return strings.Compare(aID.String(), bID.String())
}

func matchName(name, search string) bool {
	search = strings.TrimSpace(search)
	return search == "" || strings.Contains(strings.ToLower(name), strings.ToLower(search))
}

func limit[T any](in []T, n int) []T {
	if n > 0 && len(in) > n {
		return in[:n]
	}
	return in
}

func parseSeedLine(line string) (core.FoodTemplate, bool) {
	parts := strings.Split(line, ";")
	if len(parts) < 5 {
		return core.FoodTemplate{}, false
	}
	name := strings.TrimSpace(parts[0])
	if name == "" {
		return core.FoodTemplate{}, false
	}
	var macros [4]float64
	for i := range macros {
		v, err := strconv.ParseFloat(strings.TrimSpace(parts[i+1]), 64)
		if err != nil {
			return core.FoodTemplate{}, false
		}
		macros[i] = v
	}
	f := core.FoodTemplate{
		ID:       uuid.NewSHA1(uuid.NameSpaceOID, []byte("seed:"+strings.ToLower(name))),
		Name:     name,
		Calories: macros[0],
		Protein:  macros[1],
		Fat:      macros[2],
		Carbs:    macros[3],
	}
	if len(parts) > 5 {
		f.Serving = strings.TrimSpace(parts[5])
	}
	return f, true
}

func readLines(path string) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return out
}
