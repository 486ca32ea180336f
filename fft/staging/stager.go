// Package staging accumulates hashed rows between the hashing workers and the
// single insert transaction.
package staging

import (
	"sync"

	"github.com/BenEdridge/fast-file-tracker/fft/filesystem"
)

// row is a staged entry, already in the text form the store persists.
type row struct {
	fingerprint string
	path        string
}

// Stager is a mutex-guarded, append-only row buffer. Workers call Stage
// concurrently; once every worker has returned, one caller runs Drain.
type Stager struct {
	mu   sync.Mutex
	rows []row
}

// NewStager pre-allocates room for capacity rows.
func NewStager(capacity int) *Stager {
	if capacity < 0 {
		capacity = 0
	}
	return &Stager{rows: make([]row, 0, capacity)}
}

// Stage formats a fingerprint/path pair and appends it.
func (s *Stager) Stage(fp filesystem.Fingerprint, path string) {
	r := row{fingerprint: fp.String(), path: path}

	s.mu.Lock()
	s.rows = append(s.rows, r)
	s.mu.Unlock()
}

// Len returns the number of staged rows.
func (s *Stager) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows)
}

// Drain hands every staged row to fn in staging order and releases the
// buffer. It stops at the first error fn returns; rows not yet handed over
// are dropped either way, since a failed insert ends the run.
func (s *Stager) Drain(fn func(fingerprint, path string) error) error {
	s.mu.Lock()
	rows := s.rows
	s.rows = nil
	s.mu.Unlock()

	for i := range rows {
		if err := fn(rows[i].fingerprint, rows[i].path); err != nil {
			return err
		}
	}
	return nil
}
