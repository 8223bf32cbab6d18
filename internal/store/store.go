// Package store holds the fused, classified records of one run. A Store is
// built once and never mutated afterwards, so queries may read it from any
// number of goroutines without locking.
package store

import "rootcause/internal/fusion"

// Store is the immutable fused order collection.
type Store struct {
	records []*fusion.Record
	byID    map[int64]int
}

// New indexes records by order id. When an id repeats, lookups resolve to
// the first record; all records stay visible to scans.
func New(records []*fusion.Record) *Store {
	byID := make(map[int64]int, len(records))
	for i, r := range records {
		if _, ok := byID[r.OrderID]; !ok {
			byID[r.OrderID] = i
		}
	}
	return &Store{records: records, byID: byID}
}

// Len returns the number of records.
func (s *Store) Len() int {
	return len(s.records)
}

// Get returns the record for id. ok is false when the id is unknown.
func (s *Store) Get(id int64) (rec *fusion.Record, ok bool) {
	i, ok := s.byID[id]
	if !ok {
		return nil, false
	}
	return s.records[i], true
}

// All returns the records in input order. Callers must not modify the slice
// or the records.
func (s *Store) All() []*fusion.Record {
	return s.records
}

// Select returns the records satisfying keep, preserving input order.
func (s *Store) Select(keep func(*fusion.Record) bool) []*fusion.Record {
	var out []*fusion.Record
	for _, r := range s.records {
		if keep(r) {
			out = append(out, r)
		}
	}
	return out
}

// Counts summarizes the derived flags.
type Counts struct {
	Total       int `yaml:"total" json:"total"`
	Late        int `yaml:"late" json:"late"`
	Failed      int `yaml:"failed" json:"failed"`
	Problematic int `yaml:"problematic" json:"problematic"`
}

// Count tallies flags over recs.
func Count(recs []*fusion.Record) Counts {
	c := Counts{Total: len(recs)}
	for _, r := range recs {
		if r.IsLate {
			c.Late++
		}
		if r.IsFailed {
			c.Failed++
		}
		if r.Problematic() {
			c.Problematic++
		}
	}
	return c
}
