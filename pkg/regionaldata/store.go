package regionaldata

import (
	"errors"
	"fmt"
	"strings"
)

// ErrModelTypeMismatch is returned when a record's model differs from the
// model the store holds.
var ErrModelTypeMismatch = errors.New("model type mismatch")

// Store keeps one record per identity key. A later record with the same key
// replaces the earlier one. Records are never removed.
//
// Store is not safe for concurrent use.
type Store struct {
	modelName string
	index     map[string]int
	records   []Record
}

// NewStore returns an empty store. An empty modelName binds the store to the
// model of the first record upserted.
func NewStore(modelName string) *Store {
	return &Store{
		modelName: modelName,
		index:     make(map[string]int),
	}
}

// ModelName returns the model the store holds: the name it was created with
// until records arrive, then the model name the service reported for them.
func (s *Store) ModelName() string {
	return s.modelName
}

// Len returns the number of distinct records.
func (s *Store) Len() int {
	return len(s.records)
}

// All returns the records in order of first arrival of each identity key.
func (s *Store) All() []Record {
	return append([]Record(nil), s.records...)
}

// Upsert inserts r or replaces the record sharing its identity key.
func (s *Store) Upsert(r Record) error {
	return s.UpsertAll([]Record{r})
}

// UpsertAll upserts records in order. When any record's model differs from
// the store's, nothing is stored.
func (s *Store) UpsertAll(records []Record) error {
	bound := s.modelName
	for _, r := range records {
		if bound == "" {
			bound = r.DataModelName
		}
		if !strings.EqualFold(bound, r.DataModelName) {
			return fmt.Errorf("%w: store holds %q, record has %q", ErrModelTypeMismatch, bound, r.DataModelName)
		}
	}

	s.modelName = bound
	if len(records) > 0 {
		s.modelName = records[len(records)-1].DataModelName
	}
	for _, r := range records {
		key := r.IdentityKey()
		if i, ok := s.index[key]; ok {
			s.records[i] = r
			continue
		}
		s.index[key] = len(s.records)
		s.records = append(s.records, r)
	}
	return nil
}
