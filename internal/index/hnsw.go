// Package index implements a hierarchical navigable small-world (HNSW)
// graph: an approximate nearest-neighbor index trading exactness for
// sub-linear query cost.
//
// Reference: "Efficient and robust approximate nearest neighbor search
// using Hierarchical Navigable Small World graphs" by Malkov & Yashunin
// (2016). This implementation follows the simplified single-candidate
// hill-climb / best-first-expander design of the prototype it was built
// from rather than the full ef-beam-search variant of the paper.
package index

import (
	"math"
	"math/rand"
	"sort"
	"time"
)

// Config holds the construction-time parameters for an Index.
type Config struct {
	// M is the maximum number of neighbors retained per node per layer,
	// and the result cap of the candidate expander.
	M int

	// Kernel is the similarity capability used throughout the graph.
	// Nil defaults to CosineKernel{}.
	Kernel Kernel

	// Rand is the injected source of randomness for level sampling.
	// Nil gives the Index its own *rand.Rand seeded from the clock.
	Rand *rand.Rand
}

// DefaultConfig returns the default M (16) with a cosine kernel and a
// clock-seeded PRNG.
func DefaultConfig() Config {
	return Config{M: 16}
}

// Index is the HNSW graph. The zero value is not usable; construct one
// with New.
type Index struct {
	store      nodeStore
	entryPoint int
	hasEntry   bool
	maxLayer   int
	M          int
	ML         float64
	kern       Kernel
	rng        *rand.Rand
}

// New constructs an empty Index from cfg. M must be >= 2 for ML to be
// finite and meaningful; DefaultConfig uses 16.
func New(cfg Config) *Index {
	if cfg.M <= 1 {
		cfg.M = DefaultConfig().M
	}
	if cfg.Kernel == nil {
		cfg.Kernel = CosineKernel{}
	}
	if cfg.Rand == nil {
		cfg.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Index{
		M:    cfg.M,
		ML:   1.0 / math.Log(float64(cfg.M)),
		kern: cfg.Kernel,
		rng:  cfg.Rand,
	}
}

func (idx *Index) kernel() Kernel { return idx.kern }

// Len returns the number of vectors held in the index.
func (idx *Index) Len() int { return idx.store.Len() }

// MaxLayer returns the index's current highest occupied layer.
func (idx *Index) MaxLayer() int { return idx.maxLayer }

// EntryPoint returns the current entry point id, and whether one exists.
func (idx *Index) EntryPoint() (int, bool) { return idx.entryPoint, idx.hasEntry }

// Insert adds vector to the index and returns its newly assigned id.
//
// The insertion protocol: sample a random target layer, allocate and
// append the node, descend greedily from the existing entry point down
// to target_layer+1, then wire bidirectional edges layer by layer from
// min(target_layer, max_layer) down to 0, pruning any node whose degree
// exceeds M as a result. Finally the new node itself is pruned at every
// layer it occupies, and the entry point is promoted if this node is
// now the tallest in the graph.
func (idx *Index) Insert(vector []float32) int {
	id := idx.store.Len()
	targetLayer := sampleLayer(idx.rng, idx.ML)

	newNode := newNode(id, vector, targetLayer)
	idx.store.Push(newNode)

	if idx.hasEntry {
		cursor := idx.entryPoint

		for layer := idx.maxLayer; layer > targetLayer; layer-- {
			cursor = idx.searchLayer(vector, cursor, layer)
		}

		top := targetLayer
		if idx.maxLayer < top {
			top = idx.maxLayer
		}
		for layer := top; layer >= 0; layer-- {
			neighbors := idx.findNeighborsForLayer(vector, cursor, layer)
			for _, nid := range neighbors {
				if nid == id {
					continue
				}
				neighborNode, ok := idx.store.Get(nid)
				if !ok || layer > neighborNode.topLayer() {
					continue
				}
				newNode.Neighbors[layer] = append(newNode.Neighbors[layer], nid)
				neighborNode.Neighbors[layer] = append(neighborNode.Neighbors[layer], id)
				if len(neighborNode.Neighbors[layer]) > idx.M {
					idx.prune(nid, layer)
				}
			}
			// Re-anchor the cursor for the next lower layer. This
			// re-runs layer search immediately after wiring at the
			// current layer, matching the upstream prototype's
			// behavior; the effect on the next layer's seed quality
			// is not obviously beneficial but is preserved as-is.
			cursor = idx.searchLayer(vector, cursor, layer)
		}
	}

	if !idx.hasEntry || targetLayer > idx.maxLayer {
		idx.entryPoint = id
		idx.maxLayer = targetLayer
		idx.hasEntry = true
	}

	for layer := 0; layer <= targetLayer; layer++ {
		idx.prune(id, layer)
	}

	return id
}

// prune truncates node nid's layer adjacency back down to M, keeping
// the neighbors closest to nid's own vector. No-op if already within
// bound. Asymmetric: may leave a dangling back-pointer on the evicted
// neighbor's far side, which the design tolerates (best-effort
// symmetry, see Index invariants).
func (idx *Index) prune(nid int, layer int) {
	node, ok := idx.store.Get(nid)
	if !ok || layer >= len(node.Neighbors) {
		return
	}
	neighbors := node.Neighbors[layer]
	if len(neighbors) <= idx.M {
		return
	}

	sort.Slice(neighbors, func(i, j int) bool {
		a, _ := idx.store.Get(neighbors[i])
		b, _ := idx.store.Get(neighbors[j])
		var simA, simB float32
		if a != nil {
			simA = idx.kernel().Similarity(node.Vector, a.Vector)
		}
		if b != nil {
			simB = idx.kernel().Similarity(node.Vector, b.Vector)
		}
		return simA > simB
	})

	node.Neighbors[layer] = append([]int(nil), neighbors[:idx.M]...)
}

// Nearest returns the single best-matching id for query via hierarchical
// greedy descent: top-down navigation from the entry point through
// layers maxLayer..1, then a final refinement at layer 0. Returns
// ok=false iff the index is empty.
func (idx *Index) Nearest(query []float32) (id int, score float32, ok bool) {
	if !idx.hasEntry {
		return 0, 0, false
	}

	cursor := idx.entryPoint
	for layer := idx.maxLayer; layer > 0; layer-- {
		cursor = idx.searchLayer(query, cursor, layer)
	}
	cursor = idx.searchLayer(query, cursor, 0)

	node, _ := idx.store.Get(cursor)
	return cursor, idx.kernel().Similarity(query, node.Vector), true
}

// VectorOf returns the stored vector for id, and whether it exists.
func (idx *Index) VectorOf(id int) ([]float32, bool) {
	node, ok := idx.store.Get(id)
	if !ok {
		return nil, false
	}
	return node.Vector, true
}

// NeighborsAt returns a copy of node id's adjacency at layer, and
// whether the node exists and reaches that layer.
func (idx *Index) NeighborsAt(id, layer int) ([]int, bool) {
	node, ok := idx.store.Get(id)
	if !ok || layer >= len(node.Neighbors) {
		return nil, false
	}
	out := make([]int, len(node.Neighbors[layer]))
	copy(out, node.Neighbors[layer])
	return out, true
}

// TopLayerOf returns the highest layer node id occupies, and whether
// the node exists.
func (idx *Index) TopLayerOf(id int) (int, bool) {
	node, ok := idx.store.Get(id)
	if !ok {
		return 0, false
	}
	return node.topLayer(), true
}
