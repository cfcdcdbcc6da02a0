package api

import (
	"fmt"
	"log"
	"sync"

	"github.com/documind/hnswd/internal/index"
)

// guardedIndex wraps an *index.Index behind a single reader/writer
// lock: inserts exclude all readers, while Nearest and Save (both
// read-only on the graph, even though Save writes the external storage
// buffer) may run concurrently with each other.
//
// Go's sync.RWMutex cannot be left "poisoned" the way a panicking
// writer can poison std::sync::RwLock in the source language — Unlock
// always runs via defer. locked/rlocked instead recover() any panic
// raised by the wrapped function, log it, and return a sentinel error
// to the caller. This is the Go-idiomatic analogue of "recover the
// poisoned lock and keep serving": best-effort availability, not
// correctness — a panic mid-insert may leave a partially-wired node,
// which queries already tolerate by design.
type guardedIndex struct {
	mu  sync.RWMutex
	idx *index.Index
}

func newGuardedIndex(idx *index.Index) *guardedIndex {
	return &guardedIndex{idx: idx}
}

// errRecovered is returned by locked/rlocked when the wrapped function
// panicked.
type errRecovered struct{ reason interface{} }

func (e errRecovered) Error() string {
	return fmt.Sprintf("recovered from panic: %v", e.reason)
}

// locked runs fn under the write lock, excluding all readers.
func (g *guardedIndex) locked(fn func(idx *index.Index)) (err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	defer func() {
		if r := recover(); r != nil {
			log.Printf("hnswd: recovered panic during write operation: %v", r)
			err = errRecovered{reason: r}
		}
	}()
	fn(g.idx)
	return nil
}

// rlocked runs fn under the read lock. Multiple readers (including
// concurrent Nearest and Save calls) may hold it simultaneously.
func (g *guardedIndex) rlocked(fn func(idx *index.Index)) (err error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	defer func() {
		if r := recover(); r != nil {
			log.Printf("hnswd: recovered panic during read operation: %v", r)
			err = errRecovered{reason: r}
		}
	}()
	fn(g.idx)
	return nil
}
