package codec

import (
	"encoding/binary"

	"github.com/arraylab/tdbcore/tderrors"
)

// VarRLEHeader is the out-of-band metadata §6.3 requires immediately after
// the compression filter's (num_meta_parts, num_data_parts) counts, for the
// variable-length-string RLE filter.
type VarRLEHeader struct {
	OrigDataSize       uint32
	CompressedSize     uint32
	OffsetsSize        uint32
	RLELenBytesize     uint8
	StringLenBytesize  uint8
}

// bytesizeFor returns the smallest of {1,2,4,8} that can hold max.
func bytesizeFor(max uint64) uint8 {
	switch {
	case max < 1<<8:
		return 1
	case max < 1<<16:
		return 2
	case max < 1<<32:
		return 4
	default:
		return 8
	}
}

func putBE(buf []byte, size uint8, v uint64) []byte {
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], v)
	return append(buf, tmp[8-int(size):]...)
}

func getBE(buf []byte, size uint8) uint64 {
	var tmp [8]byte
	copy(tmp[8-int(size):], buf[:size])
	return binary.BigEndian.Uint64(tmp[:])
}

// EncodeVarStringRLE run-length-encodes the strings sliced out of data by
// offsets (offsets[i] is the byte start of string i; string i's length is
// offsets[i+1]-offsets[i], or len(data)-offsets[i] for the last string).
// It returns the header and the encoded triple stream.
func EncodeVarStringRLE(data []byte, offsets []uint64) (VarRLEHeader, []byte) {
	strs := sliceStrings(data, offsets)

	maxRun := uint64(0)
	maxStrLen := uint64(0)
	type run struct {
		s string
		n uint64
	}
	var runs []run
	i := 0
	for i < len(strs) {
		j := i + 1
		for j < len(strs) && strs[j] == strs[i] {
			j++
		}
		n := uint64(j - i)
		if n > maxRun {
			maxRun = n
		}
		if l := uint64(len(strs[i])); l > maxStrLen {
			maxStrLen = l
		}
		runs = append(runs, run{s: strs[i], n: n})
		i = j
	}

	rleSize := bytesizeFor(maxRun)
	strSize := bytesizeFor(maxStrLen)

	var stream []byte
	for _, r := range runs {
		stream = putBE(stream, rleSize, r.n)
		stream = putBE(stream, strSize, uint64(len(r.s)))
		stream = append(stream, r.s...)
	}

	h := VarRLEHeader{
		OrigDataSize:      uint32(len(data)),
		CompressedSize:    uint32(len(stream)),
		OffsetsSize:       uint32(len(offsets) * 8),
		RLELenBytesize:    rleSize,
		StringLenBytesize: strSize,
	}
	return h, stream
}

// DecodeVarStringRLE reconstructs the data tile and offsets tile bit-exactly
// from a header and encoded stream produced by EncodeVarStringRLE.
func DecodeVarStringRLE(h VarRLEHeader, stream []byte) (data []byte, offsets []uint64, err error) {
	data = make([]byte, 0, h.OrigDataSize)
	offsets = make([]uint64, 0, h.OffsetsSize/8)
	i := 0
	for i < len(stream) {
		if i+int(h.RLELenBytesize)+int(h.StringLenBytesize) > len(stream) {
			return nil, nil, tderrors.E(tderrors.CompressionError, "codec.DecodeVarStringRLE", "truncated triple header")
		}
		runLen := getBE(stream[i:], h.RLELenBytesize)
		i += int(h.RLELenBytesize)
		strLen := getBE(stream[i:], h.StringLenBytesize)
		i += int(h.StringLenBytesize)
		if i+int(strLen) > len(stream) {
			return nil, nil, tderrors.E(tderrors.CompressionError, "codec.DecodeVarStringRLE", "truncated string payload")
		}
		s := stream[i : i+int(strLen)]
		i += int(strLen)
		for k := uint64(0); k < runLen; k++ {
			offsets = append(offsets, uint64(len(data)))
			data = append(data, s...)
		}
	}
	if uint32(len(data)) != h.OrigDataSize {
		return nil, nil, tderrors.E(tderrors.CompressionError, "codec.DecodeVarStringRLE", "decoded data size mismatch")
	}
	return data, offsets, nil
}

func sliceStrings(data []byte, offsets []uint64) []string {
	strs := make([]string, len(offsets))
	for i, off := range offsets {
		end := uint64(len(data))
		if i+1 < len(offsets) {
			end = offsets[i+1]
		}
		strs[i] = string(data[off:end])
	}
	return strs
}
