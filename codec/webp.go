package codec

import "github.com/arraylab/tdbcore/tderrors"

// PixelFormat names the webp_input_format filter option's color layout.
type PixelFormat uint8

const (
	PixelNone PixelFormat = iota
	PixelRGB
	PixelRGBA
	PixelBGR
	PixelBGRA
)

// Webp is a capability stub: no pure-Go, non-cgo WEBP encoder exists among
// the retrieved examples or as a well-known standalone module, so this
// codec always reports NotSupported per Design Notes §9's requirement that
// optional codecs be exposed via a capability trait that never crashes on
// absence.
type Webp struct {
	Quality  float32
	Format   PixelFormat
	Lossless bool
}

func (Webp) DefaultLevel() int { return 0 }
func (Webp) MinLevel() int     { return 0 }
func (Webp) MaxLevel() int     { return 0 }
func (Webp) Overhead(int) int  { return 0 }

func (Webp) Compress(dst, src []byte, level int) ([]byte, error) {
	return nil, tderrors.E(tderrors.NotSupported, "codec.Webp.Compress", "webp support is not built into this module")
}

func (Webp) Decompress(dst, src []byte, origSize int) ([]byte, error) {
	return nil, tderrors.E(tderrors.NotSupported, "codec.Webp.Decompress", "webp support is not built into this module")
}
