package storage

import (
	"github.com/biogo/store/llrb"

	"github.com/arraylab/tdbcore/tderrors"
)

// TileLocation records where one persisted, filtered tile lives within a
// fragment's backend.
type TileLocation struct {
	Offset   int64
	Size     int64
	OrigSize int64
	Checksum uint64
}

// tileKey orders index entries by (attrID, tileID), mirroring
// bampair.ShardInfo's (refID, start) ordering key over an llrb.Tree.
type tileKey struct {
	attrID int
	tileID int64
	loc    TileLocation
}

func (k tileKey) Compare(c2 llrb.Comparable) int {
	k2 := c2.(tileKey)
	if diff := k.attrID - k2.attrID; diff != 0 {
		return diff
	}
	switch {
	case k.tileID < k2.tileID:
		return -1
	case k.tileID > k2.tileID:
		return 1
	default:
		return 0
	}
}

// FragmentIndex maps (attribute, tile id) pairs to their on-disk location
// within one fragment's backend, grounded on the teacher's
// encoding/bampair.ShardInfo llrb.Tree-backed shard lookup.
type FragmentIndex struct {
	tree llrb.Tree
}

// NewFragmentIndex returns an empty index.
func NewFragmentIndex() *FragmentIndex {
	return &FragmentIndex{}
}

// Put records loc as the location of (attrID, tileID).
func (idx *FragmentIndex) Put(attrID int, tileID int64, loc TileLocation) {
	idx.tree.Insert(tileKey{attrID: attrID, tileID: tileID, loc: loc})
}

// Get looks up the location of (attrID, tileID).
func (idx *FragmentIndex) Get(attrID int, tileID int64) (TileLocation, error) {
	v := idx.tree.Get(tileKey{attrID: attrID, tileID: tileID})
	if v == nil {
		return TileLocation{}, tderrors.E(tderrors.StorageError, "storage.FragmentIndex.Get", "tile not indexed")
	}
	return v.(tileKey).loc, nil
}

// Len reports the number of indexed tiles.
func (idx *FragmentIndex) Len() int {
	return idx.tree.Len()
}
