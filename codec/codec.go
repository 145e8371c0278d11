// Package codec implements the byte-for-byte compatible encoders and
// decoders the filter pipeline's CompressionFilter dispatches to: gzip,
// zstd, lz4, bzip2, the blosc family, fixed-cell and variable-string RLE,
// dictionary encoding, double-delta, and a WEBP capability stub. Every
// codec here wraps an external reference implementation except the ones
// DESIGN.md explicitly justifies as stdlib (blosclz has no pure-Go
// ecosystem library; webp has no pure-Go, non-cgo encoder at all).
package codec

import "github.com/arraylab/tdbcore/tderrors"

// Codec is the contract every compressor in the filter pipeline implements.
type Codec interface {
	// Compress appends the compressed form of src to dst and returns the
	// result. level is already clamped by the caller to this codec's valid
	// range (or ignored, for codecs with no level).
	Compress(dst, src []byte, level int) ([]byte, error)
	// Decompress appends the decompressed form of src to dst and returns
	// the result. origSize is the exact expected output length, as recorded
	// in the persisted tile's per-part metadata.
	Decompress(dst, src []byte, origSize int) ([]byte, error)
	// Overhead reports the worst-case expansion for an input of nbytes,
	// used to size output buffers before the codec runs.
	Overhead(nbytes int) int
	// DefaultLevel and MinLevel/MaxLevel describe this codec's valid
	// compression-level range; codecs with no notion of level report
	// DefaultLevel==MinLevel==MaxLevel==0.
	DefaultLevel() int
	MinLevel() int
	MaxLevel() int
}

// ClampLevel implements §4.7's "level out of range → clamped to default,
// not an error" rule.
func ClampLevel(c Codec, level int) int {
	if level < c.MinLevel() || level > c.MaxLevel() {
		return c.DefaultLevel()
	}
	return level
}

// errCompression wraps a codec-internal failure as the filter pipeline's
// CompressionError kind.
func errCompression(op string, err error) error {
	return tderrors.E(tderrors.CompressionError, op, err)
}
