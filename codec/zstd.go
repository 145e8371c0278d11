package codec

import (
	"github.com/klauspost/compress/zstd"
)

// Zstd wraps klauspost/compress/zstd. Per §4.8, encoder and decoder
// contexts are expensive (sizable working memory each) and therefore come
// from a bounded pool with blocking acquisition, grounded on the teacher's
// general pattern of bounding concurrent access to a scarce resource via a
// fixed-capacity channel (see bufpool.Pool for the sibling idiom applied to
// plain byte buffers).
type Zstd struct {
	encoders chan *zstd.Encoder
	decoders chan *zstd.Decoder
}

// NewZstd creates a Zstd codec with a context pool of the given bound.
func NewZstd(poolSize int) (*Zstd, error) {
	if poolSize <= 0 {
		poolSize = 4
	}
	z := &Zstd{
		encoders: make(chan *zstd.Encoder, poolSize),
		decoders: make(chan *zstd.Decoder, poolSize),
	}
	for i := 0; i < poolSize; i++ {
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			return nil, errCompression("codec.NewZstd", err)
		}
		z.encoders <- enc
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, errCompression("codec.NewZstd", err)
		}
		z.decoders <- dec
	}
	return z, nil
}

func (*Zstd) DefaultLevel() int { return 3 }
func (*Zstd) MinLevel() int     { return 1 }
func (*Zstd) MaxLevel() int     { return 22 }

func (*Zstd) Overhead(nbytes int) int {
	return nbytes/100 + 64
}

func (z *Zstd) Compress(dst, src []byte, level int) ([]byte, error) {
	level = ClampLevel(z, level)
	if level != z.DefaultLevel() {
		// Off-default levels need their own encoder instance; the pool only
		// holds default-level encoders since that is overwhelmingly the
		// common case.
		enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(level)))
		if err != nil {
			return nil, errCompression("codec.Zstd.Compress", err)
		}
		defer enc.Close()
		return enc.EncodeAll(src, dst), nil
	}
	enc := <-z.encoders // blocking acquire
	defer func() { z.encoders <- enc }()
	return enc.EncodeAll(src, dst), nil
}

func (z *Zstd) Decompress(dst, src []byte, origSize int) ([]byte, error) {
	dec := <-z.decoders // blocking acquire
	defer func() { z.decoders <- dec }()
	out, err := dec.DecodeAll(src, dst)
	if err != nil {
		return nil, errCompression("codec.Zstd.Decompress", err)
	}
	return out, nil
}
