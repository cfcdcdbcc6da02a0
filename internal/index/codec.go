package index

import (
	"encoding/binary"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Storage is the external byte-region collaborator the snapshot codec
// writes into: a fixed-size writable region with a durability barrier.
// internal/storage.File satisfies this structurally.
type Storage interface {
	Bytes() []byte
	Flush() error
}

const (
	snapshotMagic   uint32 = 0x484e5331 // "HNS1"
	snapshotVersion uint32 = 1
	snapshotHeader  int    = 16 // magic(4) + version(4) + length(8)
)

// snapshotNode is the wire form of a Node.
type snapshotNode struct {
	ID        int     `msgpack:"id"`
	Vector    []float32 `msgpack:"vector"`
	Neighbors [][]int `msgpack:"neighbors"`
}

// snapshot is the wire form of an Index: every field needed to restore
// the graph exactly, encoded deterministically.
type snapshot struct {
	Nodes      []snapshotNode `msgpack:"nodes"`
	EntryPoint int            `msgpack:"entry_point"`
	HasEntry   bool           `msgpack:"has_entry"`
	MaxLayer   int            `msgpack:"max_layer"`
	M          int            `msgpack:"m"`
	ML         float64        `msgpack:"ml"`
}

func toSnapshot(idx *Index) snapshot {
	nodes := make([]snapshotNode, idx.store.Len())
	for i, n := range idx.store.nodes {
		neighbors := make([][]int, len(n.Neighbors))
		for l, adj := range n.Neighbors {
			neighbors[l] = append([]int(nil), adj...)
		}
		nodes[i] = snapshotNode{ID: n.ID, Vector: append([]float32(nil), n.Vector...), Neighbors: neighbors}
	}
	return snapshot{
		Nodes:      nodes,
		EntryPoint: idx.entryPoint,
		HasEntry:   idx.hasEntry,
		MaxLayer:   idx.maxLayer,
		M:          idx.M,
		ML:         idx.ML,
	}
}

func fromSnapshot(s snapshot) *Index {
	idx := New(Config{M: s.M})
	idx.ML = s.ML
	idx.entryPoint = s.EntryPoint
	idx.hasEntry = s.HasEntry
	idx.maxLayer = s.MaxLayer

	nodes := make([]*Node, len(s.Nodes))
	for i, n := range s.Nodes {
		nodes[i] = &Node{ID: n.ID, Vector: n.Vector, Neighbors: n.Neighbors}
	}
	idx.store.nodes = nodes
	return idx
}

// Encode deterministically serializes idx into a self-describing byte
// buffer: a 16-byte header (magic, format version, payload length)
// followed by the msgpack-encoded snapshot body.
func Encode(idx *Index) ([]byte, error) {
	payload, err := msgpack.Marshal(toSnapshot(idx))
	if err != nil {
		return nil, fmt.Errorf("index: encode snapshot: %w", err)
	}

	buf := make([]byte, snapshotHeader+len(payload))
	binary.LittleEndian.PutUint32(buf[0:4], snapshotMagic)
	binary.LittleEndian.PutUint32(buf[4:8], snapshotVersion)
	binary.LittleEndian.PutUint64(buf[8:16], uint64(len(payload)))
	copy(buf[snapshotHeader:], payload)
	return buf, nil
}

// Save writes Encode(idx) into the prefix of storage's bytes and
// flushes it, returning the number of bytes the codec actually wrote
// (not storage's total capacity). Fails fatally (returns an error the
// caller is expected to treat as non-recoverable) if the encoded
// buffer does not fit.
func Save(idx *Index, storage Storage) (int, error) {
	buf, err := Encode(idx)
	if err != nil {
		return 0, err
	}

	dst := storage.Bytes()
	if len(buf) > len(dst) {
		return 0, fmt.Errorf("index: snapshot overflow: encoded size %d exceeds storage size %d", len(buf), len(dst))
	}
	copy(dst, buf)
	if err := storage.Flush(); err != nil {
		return 0, err
	}
	return len(buf), nil
}

// Decode parses a buffer produced by Encode back into an Index. It
// validates the header's magic and version before attempting to decode
// the payload.
func Decode(data []byte) (*Index, error) {
	if len(data) < snapshotHeader {
		return nil, fmt.Errorf("index: snapshot truncated: %d bytes, need at least %d", len(data), snapshotHeader)
	}
	magic := binary.LittleEndian.Uint32(data[0:4])
	if magic != snapshotMagic {
		return nil, fmt.Errorf("index: snapshot bad magic: %#x", magic)
	}
	version := binary.LittleEndian.Uint32(data[4:8])
	if version != snapshotVersion {
		return nil, fmt.Errorf("index: snapshot unsupported version: %d", version)
	}
	length := binary.LittleEndian.Uint64(data[8:16])
	end := snapshotHeader + int(length)
	if end > len(data) {
		return nil, fmt.Errorf("index: snapshot payload truncated: need %d bytes, have %d", end, len(data))
	}

	var s snapshot
	if err := msgpack.Unmarshal(data[snapshotHeader:end], &s); err != nil {
		return nil, fmt.Errorf("index: decode snapshot: %w", err)
	}
	return fromSnapshot(s), nil
}

// Load reads a snapshot directly out of storage's bytes.
func Load(storage Storage) (*Index, error) {
	return Decode(storage.Bytes())
}
