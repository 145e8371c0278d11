// Package filter implements the tile filter pipeline: a chain of byte-level
// transforms applied to a tile's bytes on the path to and from storage,
// dispatching to package codec for the compression leaf. Grounded on the
// teacher's layered transform idiom in encoding/pam/fieldio (its
// "transformers" list feeding recordio.WriterOpts), generalized here to an
// explicit Filter interface instead of string-keyed transformer names.
package filter

import (
	"encoding/binary"

	"github.com/arraylab/tdbcore/codec"
	"github.com/arraylab/tdbcore/tderrors"
)

// Options holds the filter options named in §6.4.
type Options struct {
	CompressionLevel int32
	WebpQuality      float32
	WebpInputFormat  uint8
	WebpLossless     uint8
}

// Part is one metadata-or-data segment a filter consumes or produces.
type Part = []byte

// Filter is one stage of the pipeline.
type Filter interface {
	// Forward runs on write, storage-ward.
	Forward(inMeta, inData []Part, opts Options) (outMeta, outData []Part, err error)
	// Reverse runs on read, user-ward.
	Reverse(inMeta, inData []Part, opts Options) (outMeta, outData []Part, err error)
}

// Pipeline is an ordered chain of filters.
type Pipeline struct {
	filters []Filter
}

// Append adds f to the end of the chain. Filters whose mustBeFirst method
// reports true may only be appended when the chain is
// currently empty, per §4.7's "MUST be the first in the chain" rule.
func (p *Pipeline) Append(f Filter) error {
	if rf, ok := f.(interface{ mustBeFirst() bool }); ok && rf.mustBeFirst() && len(p.filters) != 0 {
		return tderrors.E(tderrors.InvalidArgument, "filter.Pipeline.Append", "this filter must be first in the chain")
	}
	p.filters = append(p.filters, f)
	return nil
}

// Forward runs every filter in chain order, storage-ward. Each filter's
// metadata is private to that filter (Reverse hands it back unchanged to
// the same filter that produced it); Pipeline concatenates every stage's
// meta parts behind a small per-stage part-count header so Reverse can
// split them back apart without every filter needing to know about its
// neighbors' metadata shape.
func (p *Pipeline) Forward(data []Part, opts Options) (meta, out []Part, err error) {
	out = data
	var allMeta []Part
	counts := make([]int, 0, len(p.filters))
	for _, f := range p.filters {
		var stageMeta []Part
		stageMeta, out, err = f.Forward(nil, out, opts)
		if err != nil {
			return nil, nil, err
		}
		counts = append(counts, len(stageMeta))
		allMeta = append(allMeta, stageMeta...)
	}
	header := make([]byte, 4*len(counts))
	for i, c := range counts {
		binary.LittleEndian.PutUint32(header[i*4:], uint32(c))
	}
	meta = append([]Part{header}, allMeta...)
	return meta, out, nil
}

// Reverse runs every filter in reverse chain order, user-ward, splitting
// the concatenated metadata back into each stage's own parts via the
// part-count header Forward wrote.
func (p *Pipeline) Reverse(meta, data []Part, opts Options) (out []Part, err error) {
	n := len(p.filters)
	if len(meta) == 0 || len(meta[0]) != 4*n {
		return nil, tderrors.E(tderrors.CompressionError, "filter.Pipeline.Reverse", "malformed pipeline metadata header")
	}
	header := meta[0]
	counts := make([]int, n)
	for i := range counts {
		counts[i] = int(binary.LittleEndian.Uint32(header[i*4:]))
	}
	rest := meta[1:]
	offsets := make([]int, n+1)
	for i := 0; i < n; i++ {
		offsets[i+1] = offsets[i] + counts[i]
	}
	if offsets[n] != len(rest) {
		return nil, tderrors.E(tderrors.CompressionError, "filter.Pipeline.Reverse", "metadata part count mismatch")
	}
	out = data
	for i := n - 1; i >= 0; i-- {
		stageMeta := rest[offsets[i]:offsets[i+1]]
		_, out, err = p.filters[i].Reverse(stageMeta, out, opts)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// CompressionFilter wraps a codec.Codec as a Filter per the compression
// filter contract in §4.7.
type CompressionFilter struct {
	Codec codec.Codec
}

// Forward implements the contract: reserve
// 2*u32 + total_parts*2*u32 bytes of metadata ({num_meta_parts,
// num_data_parts, [orig_size, compressed_size]*}), then run the codec over
// each metadata part, then each data part.
func (c CompressionFilter) Forward(inMeta, inData []Part, opts Options) ([]Part, []Part, error) {
	if c.Codec == nil {
		// compressor = None: pass through as views.
		return inMeta, inData, nil
	}
	level := codec.ClampLevel(c.Codec, opts.CompressionLevel0())

	allParts := append(append([]Part{}, inMeta...), inData...)
	header := make([]byte, 0, 8+len(allParts)*8)
	var hdr4 [4]byte
	binary.LittleEndian.PutUint32(hdr4[:], uint32(len(inMeta)))
	header = append(header, hdr4[:]...)
	binary.LittleEndian.PutUint32(hdr4[:], uint32(len(inData)))
	header = append(header, hdr4[:]...)

	outData := make([]Part, 0, len(allParts))
	for _, part := range allParts {
		compressed, err := c.Codec.Compress(nil, part, level)
		if err != nil {
			return nil, nil, tderrors.E(tderrors.CompressionError, "filter.CompressionFilter.Forward", err)
		}
		binary.LittleEndian.PutUint32(hdr4[:], uint32(len(part)))
		header = append(header, hdr4[:]...)
		binary.LittleEndian.PutUint32(hdr4[:], uint32(len(compressed)))
		header = append(header, hdr4[:]...)
		outData = append(outData, compressed)
	}
	return []Part{header}, outData, nil
}

// Reverse reads (num_meta_parts, num_data_parts), then for each part reads
// (orig_size, compressed_size), decompresses, and reassembles the original
// metadata/data part lists.
func (c CompressionFilter) Reverse(inMeta, inData []Part, opts Options) ([]Part, []Part, error) {
	if c.Codec == nil {
		return inMeta, inData, nil
	}
	if len(inMeta) == 0 || len(inMeta[0]) < 8 {
		return nil, nil, tderrors.E(tderrors.CompressionError, "filter.CompressionFilter.Reverse", "truncated header")
	}
	header := inMeta[0]
	numMeta := binary.LittleEndian.Uint32(header[0:4])
	numData := binary.LittleEndian.Uint32(header[4:8])
	total := int(numMeta + numData)

	if len(header) < 8+total*8 {
		return nil, nil, tderrors.E(tderrors.CompressionError, "filter.CompressionFilter.Reverse", "truncated part table")
	}
	flat := append([]Part{}, inData...)
	if len(flat) != total {
		return nil, nil, tderrors.E(tderrors.CompressionError, "filter.CompressionFilter.Reverse", "part count mismatch")
	}
	out := make([]Part, total)
	pos := 8
	for i := 0; i < total; i++ {
		origSize := int(binary.LittleEndian.Uint32(header[pos : pos+4]))
		compSize := int(binary.LittleEndian.Uint32(header[pos+4 : pos+8]))
		pos += 8
		if compSize != len(flat[i]) {
			return nil, nil, tderrors.E(tderrors.CompressionError, "filter.CompressionFilter.Reverse", "compressed size mismatch")
		}
		decompressed, err := c.Codec.Decompress(nil, flat[i], origSize)
		if err != nil {
			return nil, nil, tderrors.E(tderrors.CompressionError, "filter.CompressionFilter.Reverse", err)
		}
		out[i] = decompressed
	}
	return out[:numMeta], out[numMeta:], nil
}

// CompressionLevel0 narrows Options.CompressionLevel to int for codec use.
func (o Options) CompressionLevel0() int { return int(o.CompressionLevel) }
