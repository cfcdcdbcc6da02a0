package index

import "container/heap"

// BruteForce is an exact nearest-neighbor comparator used only for
// testing and benchmarking the HNSW graph's recall — it is never wired
// to the HTTP surface (a served exact-search capability is an explicit
// non-goal of this service). IDs are assigned the same way as Index:
// dense, in insertion order.
type BruteForce struct {
	kernel  Kernel
	vectors [][]float32
}

// NewBruteForce creates an exact-search comparator using kernel (nil
// defaults to cosine similarity, matching Index's default).
func NewBruteForce(kernel Kernel) *BruteForce {
	if kernel == nil {
		kernel = CosineKernel{}
	}
	return &BruteForce{kernel: kernel}
}

// Insert appends vector and returns its id.
func (b *BruteForce) Insert(vector []float32) int {
	id := len(b.vectors)
	b.vectors = append(b.vectors, vector)
	return id
}

// Count returns the number of stored vectors.
func (b *BruteForce) Count() int {
	return len(b.vectors)
}

type scoredID struct {
	id    int
	score float32
}

type scoredHeap []scoredID

func (h scoredHeap) Len() int            { return len(h) }
func (h scoredHeap) Less(i, j int) bool  { return h[i].score < h[j].score } // min-heap: evict lowest
func (h scoredHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *scoredHeap) Push(x interface{}) { *h = append(*h, x.(scoredID)) }
func (h *scoredHeap) Pop() interface{} {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// TopK returns the k ids with the highest similarity to query, in
// descending order, via a linear scan.
func (b *BruteForce) TopK(query []float32, k int) []scoredID {
	if k <= 0 || len(b.vectors) == 0 {
		return nil
	}

	h := &scoredHeap{}
	heap.Init(h)
	for id, v := range b.vectors {
		score := b.kernel.Similarity(query, v)
		if h.Len() < k {
			heap.Push(h, scoredID{id: id, score: score})
		} else if score > (*h)[0].score {
			heap.Pop(h)
			heap.Push(h, scoredID{id: id, score: score})
		}
	}

	out := make([]scoredID, h.Len())
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = heap.Pop(h).(scoredID)
	}
	return out
}
