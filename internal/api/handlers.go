// Package api provides the HTTP handlers and routing for the vector
// service: JSON decode, dispatch, and the shared-state wrapper around
// the HNSW core. None of this is part of the graph algorithm itself.
package api

import (
	"encoding/json"
	"log"
	"net/http"
	"sync/atomic"

	"github.com/documind/hnswd/internal/index"
	"github.com/documind/hnswd/pkg/types"
)

// Snapshotter is the subset of internal/storage.File the handler needs
// to serve POST /snapshot.
type Snapshotter interface {
	index.Storage
}

// Handler holds the dependencies for the HTTP surface.
type Handler struct {
	idx       *guardedIndex
	storage   Snapshotter
	dimension atomic.Int32 // 0 means "not yet observed"
}

// NewHandler wires a Handler around idx. storage may be nil, in which
// case POST /snapshot reports 503.
func NewHandler(idx *index.Index, storage Snapshotter) *Handler {
	return &Handler{idx: newGuardedIndex(idx), storage: storage}
}

// checkDimension records the dimension of the first vector this
// handler ever sees and rejects any later vector of a different
// length. This is the HTTP boundary's dimension validation — the core
// graph algorithm performs none (see SPEC_FULL.md §3, §6).
func (h *Handler) checkDimension(n int) bool {
	if n == 0 {
		return false
	}
	if h.dimension.CompareAndSwap(0, int32(n)) {
		return true
	}
	return int(h.dimension.Load()) == n
}

// HandleInsert handles POST /insert.
func (h *Handler) HandleInsert(w http.ResponseWriter, r *http.Request) {
	var req types.InsertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, types.ErrorResponse{Error: "invalid JSON: " + err.Error()})
		return
	}

	if !h.checkDimension(len(req.Vector)) {
		writeJSON(w, http.StatusBadRequest, types.ErrorResponse{Error: "vector dimension mismatch"})
		return
	}

	if err := h.idx.locked(func(idx *index.Index) {
		idx.Insert(req.Vector)
	}); err != nil {
		writeJSON(w, http.StatusInternalServerError, types.ErrorResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, types.InsertResponse{Message: "Vector successfully indexed"})
}

// HandleSearch handles POST /search.
func (h *Handler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	var req types.SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, types.ErrorResponse{Error: "invalid JSON: " + err.Error()})
		return
	}

	if h.dimension.Load() != 0 && !h.checkDimension(len(req.Query)) {
		writeJSON(w, http.StatusBadRequest, types.ErrorResponse{Error: "query dimension mismatch"})
		return
	}

	var matches []types.SearchMatch
	err := h.idx.rlocked(func(idx *index.Index) {
		id, _, ok := idx.Nearest(req.Query)
		if !ok {
			matches = []types.SearchMatch{}
			return
		}
		// The core returns the true similarity (used internally for
		// testability), but the wire contract hardcodes score to 1.0 —
		// "score logic can be added later" in the upstream prototype
		// this service is based on (SPEC_FULL.md §4.G).
		matches = []types.SearchMatch{{ID: id, Score: 1.0}}
	})
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, types.ErrorResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, types.SearchResponse{Matches: matches})
}

// HandleHealth handles GET /health.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	var count int
	h.idx.rlocked(func(idx *index.Index) { count = idx.Len() })
	writeJSON(w, http.StatusOK, types.HealthResponse{Status: "ok", VectorCount: count})
}

// HandleStats handles GET /stats.
func (h *Handler) HandleStats(w http.ResponseWriter, r *http.Request) {
	var count, maxLayer, m int
	h.idx.rlocked(func(idx *index.Index) {
		count = idx.Len()
		maxLayer = idx.MaxLayer()
		m = idx.M
	})
	writeJSON(w, http.StatusOK, types.StatsResponse{
		VectorCount: count,
		Dimensions:  int(h.dimension.Load()),
		MaxLayer:    maxLayer,
		M:           m,
		IndexType:   "hnsw",
	})
}

// HandleSnapshot handles POST /snapshot: an immediate write of the
// current index into the configured mmap file. The snapshot codec
// itself (index.Save) is read-only on the graph, so this runs under
// the read lock (SPEC_FULL.md §5).
//
// A snapshot that doesn't fit its mmap file is a fatal, non-recoverable
// condition per the core's contract (SPEC_FULL.md §4.H, §7) — the
// process aborts rather than returning a handled error, since the
// configured snapshot size is an operator error, not a request error.
func (h *Handler) HandleSnapshot(w http.ResponseWriter, r *http.Request) {
	if h.storage == nil {
		writeJSON(w, http.StatusServiceUnavailable, types.ErrorResponse{Error: "snapshot storage not configured"})
		return
	}

	writeJSON(w, http.StatusOK, types.SnapshotResponse{BytesWritten: h.Snapshot()})
}

// Snapshot writes the current index to the configured storage and
// returns the number of bytes the codec actually encoded (not
// storage's total capacity). It is exported so the server's periodic
// snapshot ticker can reuse the same fatal-on-overflow contract as
// POST /snapshot without going through HTTP.
func (h *Handler) Snapshot() int {
	var written int
	var saveErr error
	h.idx.rlocked(func(idx *index.Index) {
		written, saveErr = index.Save(idx, h.storage)
	})
	if saveErr != nil {
		log.Fatalf("hnswd: snapshot failed, aborting: %v", saveErr)
	}
	return written
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
