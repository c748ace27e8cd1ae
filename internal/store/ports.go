// Package store defines the persistence ports used by the services and
// the backup codec. Implementations live in store/memory and storage.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"macrotracker/internal/core"
)

var (
	// ErrPersistence wraps every failure of the underlying medium to
	// commit or read. Callers decide whether to retry or discard.
	ErrPersistence = errors.New("persistence failure")

	ErrNotFound         = errors.New("record not found")
	ErrDuplicate        = errors.New("duplicate record id")
	ErrInvalidReference = errors.New("meal item references unknown food template")
	ErrUnsupportedKind  = errors.New("unsupported record kind")
)

const (
	Ascending Order = iota
	Descending
)

type (
	Order int

	// EntryQuery selects entries in the half-open range [From, To).
	// Zero bounds are open. Limit <= 0 means no limit.
	EntryQuery struct {
		From  time.Time
		To    time.Time
		Order Order
		Limit int
	}

	// TemplateQuery filters templates by a case-insensitive name
	// substring. Results are ordered by last use, most recent first.
	TemplateQuery struct {
		Search string
		Limit  int
	}
)

// Ports for outbound adapters.
type (
	Writer interface {
		// Save commits every mutation in b atomically. On success b is
		// emptied; on failure b is left as it was.
		Save(ctx context.Context, b *Batch) error
	}

	EntryReader interface {
		Entries(ctx context.Context, q EntryQuery) ([]core.FoodEntry, error)
		FindEntry(ctx context.Context, id uuid.UUID) (core.FoodEntry, bool, error)
	}

	TemplateReader interface {
		FoodTemplates(ctx context.Context, q TemplateQuery) ([]core.FoodTemplate, error)
		MealTemplates(ctx context.Context, q TemplateQuery) ([]core.MealTemplate, error)
		FindFoodTemplate(ctx context.Context, id uuid.UUID) (core.FoodTemplate, bool, error)
		FindMealTemplate(ctx context.Context, id uuid.UUID) (core.MealTemplate, bool, error)
	}

	TargetsReader interface {
		// Targets returns the singleton, creating and persisting the
		// defaults the first time it is called.
		Targets(ctx context.Context) (core.Targets, error)
	}

	Store interface {
		Writer
		EntryReader
		TemplateReader
		TargetsReader
		Close() error
	}
)

// DayQuery selects the entries of day's calendar day, oldest first.
func DayQuery(day time.Time) EntryQuery {
	iv := core.DayInterval(day)
	return EntryQuery{From: iv.Start, To: iv.End, Order: Ascending}
}

// RecentQuery selects the latest limit entries, newest first.
func RecentQuery(limit int) EntryQuery {
	return EntryQuery{Order: Descending, Limit: limit}
}

// Match reports whether the entry timestamp falls inside the query range.
func (q EntryQuery) Match(t time.Time) bool {
	if !q.From.IsZero() && t.Before(q.From) {
		return false
	}
	if !q.To.IsZero() && !t.Before(q.To) {
		return false
	}
	return true
}
