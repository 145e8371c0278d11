package codec

import (
	farm "github.com/dgryski/go-farm"

	"github.com/arraylab/tdbcore/tderrors"
)

// dictIndex maps distinct strings to their first-seen dictionary id, keyed
// by a farm hash of the string rather than the string itself, the way
// grailbio's bigslice/shuffle keys its row buckets: farm.Hash64 gives a
// better-distributed, cheaper-to-compute bucket key than relying on Go's
// built-in string hashing, and collisions just widen a bucket instead of
// corrupting the mapping.
type dictIndex struct {
	buckets map[uint64][]int // hash -> candidate ids, resolved by exact string compare
	order   []string
}

func newDictIndex() *dictIndex {
	return &dictIndex{buckets: make(map[uint64][]int)}
}

// idFor returns s's dictionary id, assigning the next id in first-seen
// order if s hasn't been seen before.
func (x *dictIndex) idFor(s string) int {
	h := farm.Hash64([]byte(s))
	for _, id := range x.buckets[h] {
		if x.order[id] == s {
			return id
		}
	}
	id := len(x.order)
	x.order = append(x.order, s)
	x.buckets[h] = append(x.buckets[h], id)
	return id
}

// EncodeDict assigns each distinct string in data/offsets an id in
// first-seen order, emitting an id stream (fixed width chosen from the
// distinct-string count) and a serialized dictionary of (len, bytes)
// pairs, each length itself using the smallest of {1,2,4,8} bytes that
// fits the longest dictionary entry.
func EncodeDict(data []byte, offsets []uint64) (ids []byte, idWidth uint8, dict []byte) {
	strs := sliceStrings(data, offsets)

	index := newDictIndex()
	assigned := make([]int, len(strs))
	for i, s := range strs {
		assigned[i] = index.idFor(s)
	}
	order := index.order

	idWidth = bytesizeFor(uint64(len(order)))
	ids = make([]byte, 0, len(assigned)*int(idWidth))
	for _, id := range assigned {
		ids = putBE(ids, idWidth, uint64(id))
	}

	maxLen := uint64(0)
	for _, s := range order {
		if l := uint64(len(s)); l > maxLen {
			maxLen = l
		}
	}
	lenWidth := bytesizeFor(maxLen)
	dict = append(dict, lenWidth)
	for _, s := range order {
		dict = putBE(dict, lenWidth, uint64(len(s)))
		dict = append(dict, s...)
	}
	return ids, idWidth, dict
}

// DecodeDict reverses EncodeDict, reconstructing the data and offsets
// tiles from the id stream and serialized dictionary.
func DecodeDict(ids []byte, idWidth uint8, dict []byte) (data []byte, offsets []uint64, err error) {
	if len(dict) == 0 {
		return nil, nil, tderrors.E(tderrors.CompressionError, "codec.DecodeDict", "empty dictionary")
	}
	lenWidth := dict[0]
	pos := 1
	var table []string
	for pos < len(dict) {
		if pos+int(lenWidth) > len(dict) {
			return nil, nil, tderrors.E(tderrors.CompressionError, "codec.DecodeDict", "truncated dictionary entry length")
		}
		l := getBE(dict[pos:], lenWidth)
		pos += int(lenWidth)
		if pos+int(l) > len(dict) {
			return nil, nil, tderrors.E(tderrors.CompressionError, "codec.DecodeDict", "truncated dictionary entry bytes")
		}
		table = append(table, string(dict[pos:pos+int(l)]))
		pos += int(l)
	}

	if len(ids)%int(idWidth) != 0 {
		return nil, nil, tderrors.E(tderrors.CompressionError, "codec.DecodeDict", "id stream not a multiple of id width")
	}
	n := len(ids) / int(idWidth)
	data = make([]byte, 0)
	offsets = make([]uint64, 0, n)
	for i := 0; i < n; i++ {
		id := getBE(ids[i*int(idWidth):], idWidth)
		if int(id) >= len(table) {
			return nil, nil, tderrors.E(tderrors.CompressionError, "codec.DecodeDict", "id out of dictionary range")
		}
		offsets = append(offsets, uint64(len(data)))
		data = append(data, table[id]...)
	}
	return data, offsets, nil
}
