package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/documind/hnswd/internal/index"
	"github.com/documind/hnswd/pkg/types"
)

func newTestHandler() *Handler {
	idx := index.New(index.DefaultConfig())
	return NewHandler(idx, nil)
}

// memStorage is a trivial Snapshotter backed by an oversized in-memory
// buffer, standing in for a generously-sized mmap file.
type memStorage struct{ buf []byte }

func newMemStorage(size int) *memStorage { return &memStorage{buf: make([]byte, size)} }
func (m *memStorage) Bytes() []byte      { return m.buf }
func (m *memStorage) Flush() error       { return nil }

func doJSON(t *testing.T, router http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode request: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestSearchOnEmptyIndexReturnsNoMatches(t *testing.T) {
	h := newTestHandler()
	router := NewRouter(h)

	rec := doJSON(t, router, http.MethodPost, "/search", types.SearchRequest{Query: []float32{1, 0, 0}, K: 1})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp types.SearchResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Matches) != 0 {
		t.Fatalf("matches = %v, want empty", resp.Matches)
	}
}

func TestInsertThenSearchFindsTheVector(t *testing.T) {
	h := newTestHandler()
	router := NewRouter(h)

	insertRec := doJSON(t, router, http.MethodPost, "/insert", types.InsertRequest{Vector: []float32{1, 0, 0}})
	if insertRec.Code != http.StatusOK {
		t.Fatalf("insert status = %d, want 200, body=%s", insertRec.Code, insertRec.Body.String())
	}

	searchRec := doJSON(t, router, http.MethodPost, "/search", types.SearchRequest{Query: []float32{1, 0, 0}, K: 1})
	var resp types.SearchResponse
	if err := json.NewDecoder(searchRec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Matches) != 1 || resp.Matches[0].ID != 0 {
		t.Fatalf("matches = %+v, want a single match with ID 0", resp.Matches)
	}
	if resp.Matches[0].Score != 1.0 {
		t.Fatalf("score = %v, want hardcoded 1.0", resp.Matches[0].Score)
	}
}

func TestSearchFindsClosestOfThreeOrthogonalVectors(t *testing.T) {
	h := newTestHandler()
	router := NewRouter(h)

	vectors := [][]float32{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}
	for _, v := range vectors {
		rec := doJSON(t, router, http.MethodPost, "/insert", types.InsertRequest{Vector: v})
		if rec.Code != http.StatusOK {
			t.Fatalf("insert status = %d, want 200", rec.Code)
		}
	}

	for wantID, query := range vectors {
		rec := doJSON(t, router, http.MethodPost, "/search", types.SearchRequest{Query: query, K: 1})
		var resp types.SearchResponse
		if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if len(resp.Matches) != 1 || resp.Matches[0].ID != wantID {
			t.Fatalf("query %v matched %+v, want ID %d", query, resp.Matches, wantID)
		}
	}
}

func TestInsertRejectsMismatchedDimension(t *testing.T) {
	h := newTestHandler()
	router := NewRouter(h)

	doJSON(t, router, http.MethodPost, "/insert", types.InsertRequest{Vector: []float32{1, 0, 0}})
	rec := doJSON(t, router, http.MethodPost, "/insert", types.InsertRequest{Vector: []float32{1, 0}})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestInsertRejectsEmptyVector(t *testing.T) {
	h := newTestHandler()
	router := NewRouter(h)

	rec := doJSON(t, router, http.MethodPost, "/insert", types.InsertRequest{Vector: []float32{}})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestHealthReportsVectorCount(t *testing.T) {
	h := newTestHandler()
	router := NewRouter(h)

	doJSON(t, router, http.MethodPost, "/insert", types.InsertRequest{Vector: []float32{1, 0, 0}})
	doJSON(t, router, http.MethodPost, "/insert", types.InsertRequest{Vector: []float32{0, 1, 0}})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var resp types.HealthResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.VectorCount != 2 {
		t.Fatalf("VectorCount = %d, want 2", resp.VectorCount)
	}
}

func TestStatsReflectsDimensionAndM(t *testing.T) {
	h := newTestHandler()
	router := NewRouter(h)

	doJSON(t, router, http.MethodPost, "/insert", types.InsertRequest{Vector: []float32{1, 0, 0, 0}})

	req := httptest.NewRequest(http.MethodGet, "/stats", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var resp types.StatsResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Dimensions != 4 || resp.M != 16 || resp.VectorCount != 1 || resp.IndexType != "hnsw" {
		t.Fatalf("stats = %+v", resp)
	}
}

func TestSnapshotReportsEncodedSizeNotStorageCapacity(t *testing.T) {
	idx := index.New(index.DefaultConfig())
	storage := newMemStorage(1 << 20) // 1 MiB, much larger than the encoded payload
	h := NewHandler(idx, storage)
	router := NewRouter(h)

	for _, v := range [][]float32{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}} {
		rec := doJSON(t, router, http.MethodPost, "/insert", types.InsertRequest{Vector: v})
		if rec.Code != http.StatusOK {
			t.Fatalf("insert status = %d, want 200", rec.Code)
		}
	}

	wantBuf, err := index.Encode(idx)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/snapshot", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body=%s", rec.Code, rec.Body.String())
	}

	var resp types.SnapshotResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.BytesWritten != len(wantBuf) {
		t.Fatalf("BytesWritten = %d, want %d (encoded payload size)", resp.BytesWritten, len(wantBuf))
	}
	if resp.BytesWritten == len(storage.buf) {
		t.Fatalf("BytesWritten equals storage capacity (%d); should track the encoded payload, not the file size", len(storage.buf))
	}
}

func TestSnapshotWithoutStorageReportsUnavailable(t *testing.T) {
	h := newTestHandler()
	router := NewRouter(h)

	req := httptest.NewRequest(http.MethodPost, "/snapshot", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}

func TestInsertRejectsMalformedJSON(t *testing.T) {
	h := newTestHandler()
	router := NewRouter(h)

	req := httptest.NewRequest(http.MethodPost, "/insert", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}
