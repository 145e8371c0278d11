package codec

import (
	"bytes"
	"compress/bzip2"
	"io"

	dsnetbzip2 "github.com/dsnet/compress/bzip2"
)

// Bzip2 wraps github.com/dsnet/compress/bzip2 for encoding — the standard
// library's compress/bzip2 package is decode-only — and the standard
// library's decoder for decoding, since dsnet/compress's own bzip2 streams
// are wire-compatible with the reference bzip2 format the stdlib decoder
// targets.
type Bzip2 struct{}

func (Bzip2) DefaultLevel() int { return 9 }
func (Bzip2) MinLevel() int     { return 1 }
func (Bzip2) MaxLevel() int     { return 9 }

func (Bzip2) Overhead(nbytes int) int {
	return nbytes/100 + 600
}

func (b Bzip2) Compress(dst, src []byte, level int) ([]byte, error) {
	level = ClampLevel(b, level)
	var buf bytes.Buffer
	w, err := dsnetbzip2.NewWriter(&buf, &dsnetbzip2.WriterConfig{Level: level})
	if err != nil {
		return nil, errCompression("codec.Bzip2.Compress", err)
	}
	if _, err := w.Write(src); err != nil {
		return nil, errCompression("codec.Bzip2.Compress", err)
	}
	if err := w.Close(); err != nil {
		return nil, errCompression("codec.Bzip2.Compress", err)
	}
	return append(dst, buf.Bytes()...), nil
}

func (Bzip2) Decompress(dst, src []byte, origSize int) ([]byte, error) {
	r := bzip2.NewReader(bytes.NewReader(src))
	out := make([]byte, origSize)
	if _, err := io.ReadFull(r, out); err != nil {
		return nil, errCompression("codec.Bzip2.Decompress", err)
	}
	return append(dst, out...), nil
}
