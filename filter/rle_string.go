package filter

import (
	"encoding/binary"

	"github.com/arraylab/tdbcore/codec"
	"github.com/arraylab/tdbcore/tderrors"
)

// RLEStringFilter run-length-encodes a variable-length string tile. It must
// be the first filter in any chain it participates in, since it consumes
// the attribute's offsets tile directly rather than a prior filter's
// output. inData[0] is expected to be the string bytes and inData[1] the
// u64 little-endian offsets tile, matching how the pipeline hands a
// var-length attribute's two physical tiles to its filter chain.
type RLEStringFilter struct{}

func (RLEStringFilter) mustBeFirst() bool { return true }

func decodeOffsets(b []byte) []uint64 {
	out := make([]uint64, len(b)/8)
	for i := range out {
		out[i] = binary.LittleEndian.Uint64(b[i*8:])
	}
	return out
}

func encodeOffsets(offsets []uint64) []byte {
	out := make([]byte, len(offsets)*8)
	for i, o := range offsets {
		binary.LittleEndian.PutUint64(out[i*8:], o)
	}
	return out
}

func (RLEStringFilter) Forward(inMeta, inData []Part, opts Options) ([]Part, []Part, error) {
	if len(inData) != 2 {
		return nil, nil, tderrors.E(tderrors.InvalidArgument, "filter.RLEStringFilter.Forward", "expected (data, offsets) parts")
	}
	offsets := decodeOffsets(inData[1])
	h, stream := codec.EncodeVarStringRLE(inData[0], offsets)
	meta := make([]byte, 0, 20)
	var b4 [4]byte
	for _, v := range []uint32{h.OrigDataSize, h.CompressedSize, h.OffsetsSize} {
		binary.LittleEndian.PutUint32(b4[:], v)
		meta = append(meta, b4[:]...)
	}
	meta = append(meta, h.RLELenBytesize, h.StringLenBytesize)
	return []Part{meta}, []Part{stream}, nil
}

func (RLEStringFilter) Reverse(inMeta, inData []Part, opts Options) ([]Part, []Part, error) {
	if len(inMeta) == 0 || len(inMeta[0]) < 14 || len(inData) != 1 {
		return nil, nil, tderrors.E(tderrors.CompressionError, "filter.RLEStringFilter.Reverse", "malformed rle-string frame")
	}
	m := inMeta[0]
	h := codec.VarRLEHeader{
		OrigDataSize:      binary.LittleEndian.Uint32(m[0:4]),
		CompressedSize:    binary.LittleEndian.Uint32(m[4:8]),
		OffsetsSize:       binary.LittleEndian.Uint32(m[8:12]),
		RLELenBytesize:    m[12],
		StringLenBytesize: m[13],
	}
	data, offsets, err := codec.DecodeVarStringRLE(h, inData[0])
	if err != nil {
		return nil, nil, err
	}
	return nil, []Part{data, encodeOffsets(offsets)}, nil
}

// DictFilter replaces a variable-length string tile with a fixed-width id
// stream plus a serialized dictionary, per §4.7's dictionary encoding
// filter.
type DictFilter struct{}

func (DictFilter) Forward(inMeta, inData []Part, opts Options) ([]Part, []Part, error) {
	if len(inData) != 2 {
		return nil, nil, tderrors.E(tderrors.InvalidArgument, "filter.DictFilter.Forward", "expected (data, offsets) parts")
	}
	offsets := decodeOffsets(inData[1])
	ids, idWidth, dict := codec.EncodeDict(inData[0], offsets)
	meta := []Part{{idWidth}, dict}
	return meta, []Part{ids}, nil
}

func (DictFilter) Reverse(inMeta, inData []Part, opts Options) ([]Part, []Part, error) {
	if len(inMeta) != 2 || len(inMeta[0]) != 1 || len(inData) != 1 {
		return nil, nil, tderrors.E(tderrors.CompressionError, "filter.DictFilter.Reverse", "malformed dict frame")
	}
	idWidth := inMeta[0][0]
	data, offsets, err := codec.DecodeDict(inData[0], idWidth, inMeta[1])
	if err != nil {
		return nil, nil, err
	}
	return nil, []Part{data, encodeOffsets(offsets)}, nil
}
