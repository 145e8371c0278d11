package codec

import (
	"errors"

	"github.com/pierrec/lz4/v4"
)

// Lz4 wraps github.com/pierrec/lz4/v4, the ecosystem's bit-exact-compatible
// pure-Go LZ4 implementation; not part of the teacher's own dependency set,
// named per the dep-sourcing rule for out-of-pack additions (TileDB's lz4
// codec must byte-for-byte interoperate with the reference liblz4 frame format this
// library also targets).
type Lz4 struct{}

func (Lz4) DefaultLevel() int { return 0 }
func (Lz4) MinLevel() int     { return 0 }
func (Lz4) MaxLevel() int     { return 0 }

func (Lz4) Overhead(nbytes int) int {
	return lz4.CompressBlockBound(nbytes) - nbytes
}

func (Lz4) Compress(dst, src []byte, level int) ([]byte, error) {
	if len(src) == 0 {
		return dst, nil
	}
	buf := make([]byte, lz4.CompressBlockBound(len(src)))
	var c lz4.Compressor
	n, err := c.CompressBlock(src, buf)
	if err != nil {
		return nil, errCompression("codec.Lz4.Compress", err)
	}
	if n == 0 {
		// lz4 reports n==0 when src is judged incompressible; a one-byte
		// literal-only block still round-trips, so force it by compressing
		// against an oversized destination that always succeeds.
		big := make([]byte, 2*len(buf)+16)
		n, err = c.CompressBlock(src, big)
		if err != nil || n == 0 {
			return nil, errCompression("codec.Lz4.Compress", errors.New("src judged incompressible"))
		}
		buf = big
	}
	return append(dst, buf[:n]...), nil
}

func (Lz4) Decompress(dst, src []byte, origSize int) ([]byte, error) {
	out := make([]byte, origSize)
	n, err := lz4.UncompressBlock(src, out)
	if err != nil || n != origSize {
		return nil, errCompression("codec.Lz4.Decompress", err)
	}
	return append(dst, out...), nil
}
