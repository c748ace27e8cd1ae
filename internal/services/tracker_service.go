package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"macrotracker/internal/cache"
	"macrotracker/internal/core"
	"macrotracker/internal/store"
)

// ErrInvalidInput wraps every validation failure of caller-supplied data.
var ErrInvalidInput = errors.New("invalid input")

const (
	DefaultRecentLimit     = 20
	defaultSummaryCacheTTL = 10 * time.Minute
	summaryCacheSize       = 64
)

type (
	// SummaryPublisher receives the fresh summary of every day touched
	// by a mutation.
	SummaryPublisher interface {
		PublishSummary(ctx context.Context, s core.DaySummary)
	}

	// LoggedEntry is a saved entry plus the calorie sanity check.
	LoggedEntry struct {
		Entry       core.FoodEntry
		Discrepancy bool
	}

	// LogOptions controls how a template is turned into an entry. Zero
	// Timestamp means now, empty MealType means Other.
	LogOptions struct {
		Servings  float64
		Timestamp time.Time
		MealType  core.MealType
	}

	Option func(*TrackerService)
)

// TrackerService is the application layer over a store: it validates
// input, keeps day summaries cached and pushes them to subscribers.
type TrackerService struct {
	store       store.Store
	summaries   *cache.LRUCache[core.DaySummary]
	publisher   SummaryPublisher
	loc         *time.Location
	recentLimit int
	now         func() time.Time

	// Serializes read-modify-write sequences.
	mu sync.Mutex

	// cacheMu orders summary cache fills against invalidations. gen is
	// bumped by every invalidation; a fill computed under an older gen
	// is dropped.
	cacheMu sync.Mutex
	gen     uint64
	noCache bool
}

func WithPublisher(p SummaryPublisher) Option {
	return func(s *TrackerService) { s.publisher = p }
}

// WithLocation sets the time zone that defines calendar days.
func WithLocation(loc *time.Location) Option {
	return func(s *TrackerService) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// WithSummaryCacheTTL sets how long day summaries are cached. Zero
// disables the cache; negative values keep the default.
func WithSummaryCacheTTL(ttl time.Duration) Option {
	return func(s *TrackerService) {
		switch {
		case ttl == 0:
			s.noCache = true
		case ttl > 0:
			s.summaries = cache.NewLRUCache[core.DaySummary](summaryCacheSize, ttl)
		}
	}
}

func WithRecentLimit(n int) Option {
	return func(s *TrackerService) {
		if n > 0 {
			s.recentLimit = n
		}
	}
}

func NewTrackerService(st store.Store, opts ...Option) *TrackerService {
	s := &TrackerService{
		store:       st,
		summaries:   cache.NewLRUCache[core.DaySummary](summaryCacheSize, defaultSummaryCacheTTL),
		loc:         time.Local,
		recentLimit: DefaultRecentLimit,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SummaryCache exposes the summary cache so it can be registered with a
// cache.Manager.
func (s *TrackerService) SummaryCache() *cache.LRUCache[core.DaySummary] {
	return s.summaries
}

// Location is the time zone calendar days are computed in.
func (s *TrackerService) Location() *time.Location {
	return s.loc
}

// LogEntry validates and saves a new entry.
func (s *TrackerService) LogEntry(ctx context.Context, e core.FoodEntry) (LoggedEntry, error) {
	s.normalizeEntry(&e)
	if err := e.Validate(); err != nil {
		return LoggedEntry{}, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	if err := s.store.Save(ctx, store.NewBatch().Add(e)); err != nil {
		return LoggedEntry{}, fmt.Errorf("save entry: %w", err)
	}

	slog.InfoContext(ctx, "Entry logged", "entry_id", e.ID, "meal_type", e.MealType, "calories", e.Calories)
	s.touchDays(ctx, e.Timestamp)
	return LoggedEntry{Entry: e, Discrepancy: core.HasDiscrepancy(e.Calories, e.Protein, e.Fat, e.Carbs)}, nil
}

// UpdateEntry replaces an existing entry.
func (s *TrackerService) UpdateEntry(ctx context.Context, e core.FoodEntry) (LoggedEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	old, ok, err := s.store.FindEntry(ctx, e.ID)
	if err != nil {
		return LoggedEntry{}, fmt.Errorf("find entry: %w", err)
	}
	if !ok {
		return LoggedEntry{}, fmt.Errorf("entry %s: %w", e.ID, store.ErrNotFound)
	}
	s.normalizeEntry(&e)
	if err := e.Validate(); err != nil {
		return LoggedEntry{}, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	if err := s.store.Save(ctx, store.NewBatch().Update(e)); err != nil {
		return LoggedEntry{}, fmt.Errorf("update entry: %w", err)
	}

	slog.InfoContext(ctx, "Entry updated", "entry_id", e.ID)
	s.touchDays(ctx, old.Timestamp, e.Timestamp)
	return LoggedEntry{Entry: e, Discrepancy: core.HasDiscrepancy(e.Calories, e.Protein, e.Fat, e.Carbs)}, nil
}

func (s *TrackerService) DeleteEntry(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok, err := s.store.FindEntry(ctx, id)
	if err != nil {
		return fmt.Errorf("find entry: %w", err)
	}
	if !ok {
		return fmt.Errorf("entry %s: %w", id, store.ErrNotFound)
	}
	if err := s.store.Save(ctx, store.NewBatch().Delete(e)); err != nil {
		return fmt.Errorf("delete entry: %w", err)
	}

	slog.InfoContext(ctx, "Entry deleted", "entry_id", id)
	s.touchDays(ctx, e.Timestamp)
	return nil
}

// DayEntries returns the entries of day's calendar day, oldest first.
func (s *TrackerService) DayEntries(ctx context.Context, day time.Time) ([]core.FoodEntry, error) {
	entries, err := s.store.Entries(ctx, store.DayQuery(day.In(s.loc)))
	if err != nil {
		return nil, fmt.Errorf("list day entries: %w", err)
	}
	return entries, nil
}

// RecentEntries returns the latest entries, newest first. A limit <= 0
// uses the configured default.
func (s *TrackerService) RecentEntries(ctx context.Context, limit int) ([]core.FoodEntry, error) {
	if limit <= 0 {
		limit = s.recentLimit
	}
	entries, err := s.store.Entries(ctx, store.RecentQuery(limit))
	if err != nil {
		return nil, fmt.Errorf("list recent entries: %w", err)
	}
	return entries, nil
}

// DaySummary aggregates day's entries against the current targets.
func (s *TrackerService) DaySummary(ctx context.Context, day time.Time) (core.DaySummary, error) {
	day = core.StartOfDay(day.In(s.loc))
	key := summaryKey(day)
	if !s.noCache {
		if sum, ok := s.summaries.Get(key); ok {
			return sum, nil
		}
	}

	gen := s.generation()
	entries, err := s.store.Entries(ctx, store.DayQuery(day))
	if err != nil {
		return core.DaySummary{}, fmt.Errorf("list day entries: %w", err)
	}
	targets, err := s.store.Targets(ctx)
	if err != nil {
		return core.DaySummary{}, fmt.Errorf("read targets: %w", err)
	}
	sum := core.Summarize(day, entries, targets.MacroTargets)
	s.fill(key, sum, gen)
	return sum, nil
}

func (s *TrackerService) generation() uint64 {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	return s.gen
}

// fill caches sum unless an invalidation happened since gen was read.
func (s *TrackerService) fill(key string, sum core.DaySummary, gen uint64) {
	if s.noCache {
		return
	}
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	if s.gen == gen {
		s.summaries.Set(key, sum)
	}
}

// invalidate drops the given keys, or every summary when none are given.
func (s *TrackerService) invalidate(keys ...string) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	s.gen++
	if len(keys) == 0 {
		s.summaries.Purge()
		return
	}
	for _, key := range keys {
		s.summaries.Delete(key)
	}
}

// WeekSummary returns the summaries of the seven days ending on end,
// oldest first.
func (s *TrackerService) WeekSummary(ctx context.Context, end time.Time) ([]core.DaySummary, error) {
	days := core.Last7Days(end.In(s.loc))
	out := make([]core.DaySummary, 0, len(days))
	for _, day := range days {
		sum, err := s.DaySummary(ctx, day)
		if err != nil {
			return nil, err
		}
		out = append(out, sum)
	}
	return out, nil
}

func (s *TrackerService) Targets(ctx context.Context) (core.MacroTargets, error) {
	t, err := s.store.Targets(ctx)
	if err != nil {
		return core.MacroTargets{}, fmt.Errorf("read targets: %w", err)
	}
	return t.MacroTargets, nil
}

// UpdateTargets overwrites the targets. Every cached summary is stale
// afterwards.
func (s *TrackerService) UpdateTargets(ctx context.Context, t core.MacroTargets) error {
	if err := t.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	if err := s.store.Save(ctx, store.NewBatch().PutTargets(t)); err != nil {
		return fmt.Errorf("save targets: %w", err)
	}
	s.invalidate()
	slog.InfoContext(ctx, "Targets updated", "calories", t.CaloriesTarget, "protein", t.ProteinTarget)
	s.publishDay(ctx, s.now())
	return nil
}

// InvalidateSummaries drops every cached summary, for use after bulk
// changes such as a backup import.
func (s *TrackerService) InvalidateSummaries(ctx context.Context) {
	s.invalidate()
	s.publishDay(ctx, s.now())
}

func (s *TrackerService) normalizeEntry(e *core.FoodEntry) {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = s.now()
	}
	if e.MealType == "" {
		e.MealType = core.Other
	}
	e.Servings = max(e.Servings, 0)
}

// touchDays invalidates and republishes the summaries of the days the
// given timestamps fall on.
func (s *TrackerService) touchDays(ctx context.Context, ts ...time.Time) {
	seen := make(map[string]struct{}, len(ts))
	for _, t := range ts {
		key := summaryKey(t.In(s.loc))
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		s.invalidate(key)
		s.publishDay(ctx, t)
	}
}

func (s *TrackerService) publishDay(ctx context.Context, day time.Time) {
	if s.publisher == nil {
		return
	}
	sum, err := s.DaySummary(ctx, day)
	if err != nil {
		slog.WarnContext(ctx, "Failed to build summary for subscribers", "day", day.Format(core.DayLayout), "error", err)
		return
	}
	s.publisher.PublishSummary(ctx, sum)
}

func summaryKey(day time.Time) string {
	return "day:" + day.Format(core.DayLayout)
}
