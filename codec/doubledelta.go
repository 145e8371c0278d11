package codec

import (
	"encoding/binary"

	"github.com/arraylab/tdbcore/tderrors"
)

// DoubleDelta applies the delta-of-delta integer transform: the first cell
// is stored verbatim, the second as a first difference, and every
// subsequent cell as the difference of consecutive first differences.
// Storage is always 8-byte little-endian int64, regardless of CellSize,
// since intermediate deltas can exceed the source width; this matches the
// "bit-exact across platforms by encoding in canonical little-endian"
// requirement without needing per-width overflow handling.
type DoubleDelta struct {
	CellSize int // 1, 2, 4, or 8: width of the source integer cells
}

func (DoubleDelta) DefaultLevel() int { return 0 }
func (DoubleDelta) MinLevel() int     { return 0 }
func (DoubleDelta) MaxLevel() int     { return 0 }

func (d DoubleDelta) Overhead(nbytes int) int {
	cells := nbytes / d.CellSize
	return cells*8 - nbytes
}

func (d DoubleDelta) readCell(src []byte, i int) int64 {
	switch d.CellSize {
	case 1:
		return int64(int8(src[i]))
	case 2:
		return int64(int16(binary.LittleEndian.Uint16(src[i:])))
	case 4:
		return int64(int32(binary.LittleEndian.Uint32(src[i:])))
	default:
		return int64(binary.LittleEndian.Uint64(src[i:]))
	}
}

func (d DoubleDelta) Compress(dst, src []byte, level int) ([]byte, error) {
	if d.CellSize <= 0 || len(src)%d.CellSize != 0 {
		return nil, tderrors.E(tderrors.InvalidArgument, "codec.DoubleDelta.Compress", "src not a whole number of cells")
	}
	n := len(src) / d.CellSize
	out := dst
	var buf [8]byte
	writeI64 := func(v int64) {
		binary.LittleEndian.PutUint64(buf[:], uint64(v))
		out = append(out, buf[:]...)
	}
	if n == 0 {
		return out, nil
	}
	prevVal := d.readCell(src, 0)
	writeI64(prevVal)
	if n == 1 {
		return out, nil
	}
	curVal := d.readCell(src, d.CellSize)
	prevDelta := curVal - prevVal
	writeI64(prevDelta)
	prevVal = curVal
	for i := 2; i < n; i++ {
		curVal = d.readCell(src, i*d.CellSize)
		delta := curVal - prevVal
		writeI64(delta - prevDelta)
		prevDelta = delta
		prevVal = curVal
	}
	return out, nil
}

func (d DoubleDelta) Decompress(dst, src []byte, origSize int) ([]byte, error) {
	if len(src)%8 != 0 {
		return nil, tderrors.E(tderrors.CompressionError, "codec.DoubleDelta.Decompress", "stream not a multiple of 8 bytes")
	}
	n := len(src) / 8
	out := dst
	writeCell := func(v int64) {
		var tmp [8]byte
		switch d.CellSize {
		case 1:
			out = append(out, byte(int8(v)))
			return
		case 2:
			binary.LittleEndian.PutUint16(tmp[:2], uint16(int16(v)))
			out = append(out, tmp[:2]...)
			return
		case 4:
			binary.LittleEndian.PutUint32(tmp[:4], uint32(int32(v)))
			out = append(out, tmp[:4]...)
			return
		default:
			binary.LittleEndian.PutUint64(tmp[:], uint64(v))
			out = append(out, tmp[:]...)
			return
		}
	}
	if n == 0 {
		return out, nil
	}
	prevVal := int64(binary.LittleEndian.Uint64(src[0:8]))
	writeCell(prevVal)
	if n == 1 {
		return out, nil
	}
	prevDelta := int64(binary.LittleEndian.Uint64(src[8:16]))
	prevVal += prevDelta
	writeCell(prevVal)
	for i := 2; i < n; i++ {
		dd := int64(binary.LittleEndian.Uint64(src[i*8 : i*8+8]))
		prevDelta += dd
		prevVal += prevDelta
		writeCell(prevVal)
	}
	if len(out)-len(dst) != origSize {
		return nil, tderrors.E(tderrors.CompressionError, "codec.DoubleDelta.Decompress", "decoded size mismatch")
	}
	return out, nil
}
