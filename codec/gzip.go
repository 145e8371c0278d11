package codec

import (
	"bytes"
	"io"

	"github.com/klauspost/compress/gzip"
)

// Gzip wraps klauspost/compress/gzip, a drop-in bit-exact-interchange
// replacement for the standard library's gzip that the rest of the pack
// (and the teacher's transitive dependency graph) already pulls in.
type Gzip struct{}

func (Gzip) DefaultLevel() int { return 9 }
func (Gzip) MinLevel() int     { return 0 }
func (Gzip) MaxLevel() int     { return 9 }

func (Gzip) Overhead(nbytes int) int {
	// gzip's worst case: stored-block overhead plus header/trailer.
	return 18 + nbytes/100 + 32
}

func (g Gzip) Compress(dst, src []byte, level int) ([]byte, error) {
	level = ClampLevel(g, level)
	var buf bytes.Buffer
	w, err := gzip.NewWriterLevel(&buf, level)
	if err != nil {
		return nil, errCompression("codec.Gzip.Compress", err)
	}
	if _, err := w.Write(src); err != nil {
		return nil, errCompression("codec.Gzip.Compress", err)
	}
	if err := w.Close(); err != nil {
		return nil, errCompression("codec.Gzip.Compress", err)
	}
	return append(dst, buf.Bytes()...), nil
}

func (Gzip) Decompress(dst, src []byte, origSize int) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(src))
	if err != nil {
		return nil, errCompression("codec.Gzip.Decompress", err)
	}
	defer r.Close()
	out := make([]byte, origSize)
	if _, err := io.ReadFull(r, out); err != nil {
		return nil, errCompression("codec.Gzip.Decompress", err)
	}
	return append(dst, out...), nil
}
