package model

import (
	"bytes"
	"encoding/gob"
	"sort"
)

// ValidatorInfo is the ordered, height-keyed history of validator-set
// snapshots. Lookup for "the effective set at height h" returns the entry
// with the greatest key <= h — this type backs that query with a sorted
// slice of heights kept alongside the map so range(..=h).last() is O(log N).
type ValidatorInfo struct {
	snapshots map[uint64]*ValidatorData
	heights   []uint64 // kept sorted ascending
}

// NewValidatorInfo returns an empty history.
func NewValidatorInfo() *ValidatorInfo {
	return &ValidatorInfo{snapshots: make(map[uint64]*ValidatorData)}
}

// SetAtHeight registers vd at height h. Returns false without mutating if an
// entry already exists at h, unless force is true.
func (vi *ValidatorInfo) SetAtHeight(h uint64, vd *ValidatorData, force bool) bool {
	if _, exists := vi.snapshots[h]; exists && !force {
		return false
	}
	if _, exists := vi.snapshots[h]; !exists {
		idx := sort.Search(len(vi.heights), func(i int) bool { return vi.heights[i] >= h })
		vi.heights = append(vi.heights, 0)
		copy(vi.heights[idx+1:], vi.heights[idx:])
		vi.heights[idx] = h
	}
	vd.Height = h
	vi.snapshots[h] = vd
	return true
}

// GetEffectiveAtHeight returns the snapshot with the greatest registered
// height <= h, or nil if none exists yet.
func (vi *ValidatorInfo) GetEffectiveAtHeight(h uint64) *ValidatorData {
	idx := sort.Search(len(vi.heights), func(i int) bool { return vi.heights[i] > h })
	if idx == 0 {
		return nil
	}
	return vi.snapshots[vi.heights[idx-1]]
}

// Heights returns the registered heights in ascending order. Callers must
// not mutate the returned slice.
func (vi *ValidatorInfo) Heights() []uint64 {
	return vi.heights
}

// DiscardBefore removes every snapshot strictly before h.
func (vi *ValidatorInfo) DiscardBefore(h uint64) {
	idx := sort.Search(len(vi.heights), func(i int) bool { return vi.heights[i] >= h })
	for _, old := range vi.heights[:idx] {
		delete(vi.snapshots, old)
	}
	vi.heights = vi.heights[idx:]
}

// Get returns the exact snapshot at h, if any.
func (vi *ValidatorInfo) Get(h uint64) (*ValidatorData, bool) {
	vd, ok := vi.snapshots[h]
	return vd, ok
}

// Clone deep-copies the full history.
func (vi *ValidatorInfo) Clone() *ValidatorInfo {
	out := NewValidatorInfo()
	out.heights = append([]uint64(nil), vi.heights...)
	for h, vd := range vi.snapshots {
		out.snapshots[h] = vd.Clone()
	}
	return out
}

// RestoreFrom overwrites the receiver's contents with a deep copy of other's,
// preserving the receiver's identity — callers elsewhere holding a pointer to
// this ValidatorInfo observe the restored content without re-wiring.
func (vi *ValidatorInfo) RestoreFrom(other *ValidatorInfo) {
	clone := other.Clone()
	vi.snapshots = clone.snapshots
	vi.heights = clone.heights
}

// gobValidatorInfo mirrors ValidatorInfo's unexported fields so stores/snapshot
// can persist and replay the full history through encoding/gob, which only
// sees exported fields by default.
type gobValidatorInfo struct {
	Snapshots map[uint64]*ValidatorData
	Heights   []uint64
}

// GobEncode implements gob.GobEncoder.
func (vi *ValidatorInfo) GobEncode() ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(gobValidatorInfo{Snapshots: vi.snapshots, Heights: vi.heights}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// GobDecode implements gob.GobDecoder.
func (vi *ValidatorInfo) GobDecode(data []byte) error {
	var g gobValidatorInfo
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&g); err != nil {
		return err
	}
	vi.snapshots = g.Snapshots
	vi.heights = g.Heights
	return nil
}
