package store

import (
	"github.com/google/uuid"

	"macrotracker/internal/core"
)

const (
	OpAdd Op = iota + 1
	OpUpdate
	OpDelete
	OpPutTargets
)

type (
	Op int

	// Mutation is one pending change.
	Mutation struct {
		Op     Op
		Record core.Record
	}

	// Batch collects pending mutations until they are handed to
	// Writer.Save. A Batch is not safe for concurrent use.
	Batch struct {
		mutations []Mutation
	}

	// Ref identifies a record by kind and id, for deletes.
	Ref struct {
		RecKind core.Kind
		ID      uuid.UUID
	}
)

func (r Ref) Kind() core.Kind     { return r.RecKind }
func (r Ref) RecordID() uuid.UUID { return r.ID }

func (o Op) String() string { return opNames[o] }

func NewBatch() *Batch { return &Batch{} }

// Len is the number of pending mutations.
func (b *Batch) Len() int { return len(b.mutations) }

// Mutations returns a copy of the pending mutations in staging order.
func (b *Batch) Mutations() []Mutation {
	return append([]Mutation(nil), b.mutations...)
}

var opNames = map[Op]string{
	OpAdd:        "add",
	OpUpdate:     "update",
	OpDelete:     "delete",
	OpPutTargets: "put_targets",
}

// Add stages an insert. Saving fails with ErrDuplicate if the id exists.
func (b *Batch) Add(rec core.Record) *Batch {
	b.mutations = append(b.mutations, Mutation{Op: OpAdd, Record: rec})
	return b
}

// Update stages a replace of an existing record.
func (b *Batch) Update(rec core.Record) *Batch {
	b.mutations = append(b.mutations, Mutation{Op: OpUpdate, Record: rec})
	return b
}

// Delete stages a removal. Deleting a food template also removes the
// meal items that reference it.
func (b *Batch) Delete(rec core.Record) *Batch {
	b.mutations = append(b.mutations, Mutation{Op: OpDelete, Record: rec})
	return b
}

// PutTargets stages an overwrite of the targets singleton.
func (b *Batch) PutTargets(t core.MacroTargets) *Batch {
	b.mutations = append(b.mutations, Mutation{Op: OpPutTargets, Record: core.Targets{MacroTargets: t}})
	return b
}

// Discard drops every pending mutation.
func (b *Batch) Discard() {
	b.mutations = nil
}
