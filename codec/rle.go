package codec

import (
	"bytes"
	"encoding/binary"

	"github.com/arraylab/tdbcore/tderrors"
)

// FixedRLE run-length-encodes fixed-width cells per §6.3: each encoded run
// is [value: CellSize bytes][run_len: u16 big-endian], max run length
// 65535. CellSize must be set before use; it is not a compression "level"
// so DefaultLevel/Min/MaxLevel are all zero (no level concept applies).
type FixedRLE struct {
	CellSize int
}

func (FixedRLE) DefaultLevel() int { return 0 }
func (FixedRLE) MinLevel() int     { return 0 }
func (FixedRLE) MaxLevel() int     { return 0 }

func (r FixedRLE) Overhead(nbytes int) int {
	// Worst case: every cell is its own run (no repeats at all).
	cells := nbytes / r.CellSize
	return cells * 2
}

func (r FixedRLE) Compress(dst, src []byte, level int) ([]byte, error) {
	if r.CellSize <= 0 || len(src)%r.CellSize != 0 {
		return nil, tderrors.E(tderrors.InvalidArgument, "codec.FixedRLE.Compress", "src not a whole number of cells")
	}
	out := dst
	i := 0
	for i < len(src) {
		val := src[i : i+r.CellSize]
		run := 1
		for i+run*r.CellSize < len(src) && run < 65535 && bytes.Equal(src[i+run*r.CellSize:i+(run+1)*r.CellSize], val) {
			run++
		}
		out = append(out, val...)
		var runBuf [2]byte
		binary.BigEndian.PutUint16(runBuf[:], uint16(run))
		out = append(out, runBuf[:]...)
		i += run * r.CellSize
	}
	return out, nil
}

func (r FixedRLE) Decompress(dst, src []byte, origSize int) ([]byte, error) {
	out := dst
	i := 0
	for i < len(src) {
		if i+r.CellSize+2 > len(src) {
			return nil, tderrors.E(tderrors.CompressionError, "codec.FixedRLE.Decompress", "truncated run")
		}
		val := src[i : i+r.CellSize]
		run := int(binary.BigEndian.Uint16(src[i+r.CellSize : i+r.CellSize+2]))
		for k := 0; k < run; k++ {
			out = append(out, val...)
		}
		i += r.CellSize + 2
	}
	if len(out)-len(dst) != origSize {
		return nil, tderrors.E(tderrors.CompressionError, "codec.FixedRLE.Decompress", "decoded size mismatch")
	}
	return out, nil
}
