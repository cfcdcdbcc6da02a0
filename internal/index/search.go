package index

import "container/heap"

// searchLayer hill-climbs from seedID toward query on a single layer,
// moving to any strictly-closer neighbor until no improvement remains.
// Ties do not move (first-encountered wins). Out-of-range ids — the
// seed or a neighbor — are tolerated defensively: an out-of-range seed
// is returned unchanged, and neighbors that don't exist or don't reach
// this layer are skipped.
func (idx *Index) searchLayer(query []float32, seedID int, layer int) int {
	current, ok := idx.store.Get(seedID)
	if !ok {
		return seedID
	}
	best := idx.kernel().Similarity(query, current.Vector)

	changed := true
	for changed {
		changed = false
		if layer >= len(current.Neighbors) {
			break
		}
		for _, nid := range current.Neighbors[layer] {
			neighbor, ok := idx.store.Get(nid)
			if !ok || layer >= len(neighbor.Neighbors) {
				continue
			}
			sim := idx.kernel().Similarity(query, neighbor.Vector)
			if sim > best {
				best = sim
				current = neighbor
				changed = true
			}
		}
	}
	return current.ID
}

// candidate pairs a node id with its similarity to the active query,
// for use in the max-priority queue below.
type candidate struct {
	id  int
	sim float32
}

// candidateHeap is a max-heap of candidates ordered by descending
// similarity (highest-priority = most similar = closest).
type candidateHeap []candidate

func (h candidateHeap) Len() int            { return len(h) }
func (h candidateHeap) Less(i, j int) bool  { return h[i].sim > h[j].sim }
func (h candidateHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *candidateHeap) Push(x interface{}) { *h = append(*h, x.(candidate)) }
func (h *candidateHeap) Pop() interface{} {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// findNeighborsForLayer performs best-first expansion from seedID on
// the given layer, returning up to M candidate ids in descending
// similarity order. An out-of-range seed yields an empty result.
func (idx *Index) findNeighborsForLayer(query []float32, seedID int, layer int) []int {
	seed, ok := idx.store.Get(seedID)
	if !ok {
		return nil
	}

	pq := &candidateHeap{{id: seedID, sim: idx.kernel().Similarity(query, seed.Vector)}}
	heap.Init(pq)

	visited := map[int]bool{seedID: true}
	result := make([]int, 0, idx.M)

	for pq.Len() > 0 {
		top := heap.Pop(pq).(candidate)
		result = append(result, top.id)
		if len(result) >= idx.M {
			break
		}

		node, ok := idx.store.Get(top.id)
		if !ok || layer >= len(node.Neighbors) {
			continue
		}
		for _, nid := range node.Neighbors[layer] {
			if visited[nid] {
				continue
			}
			visited[nid] = true
			neighbor, ok := idx.store.Get(nid)
			if !ok {
				continue
			}
			heap.Push(pq, candidate{id: nid, sim: idx.kernel().Similarity(query, neighbor.Vector)})
		}
	}

	return result
}
