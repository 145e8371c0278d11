package filter

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arraylab/tdbcore/codec"
)

func TestCompressionFilterRoundTrip(t *testing.T) {
	data := bytes.Repeat([]byte("tiledb"), 200)
	cf := CompressionFilter{Codec: codec.Gzip{}}
	meta, out, err := cf.Forward(nil, []Part{data}, Options{})
	require.NoError(t, err)
	_, back, err := cf.Reverse(meta, out, Options{})
	require.NoError(t, err)
	require.Len(t, back, 1)
	require.Equal(t, data, back[0])
}

func TestCompressionFilterPassThroughWithNilCodec(t *testing.T) {
	data := []byte("raw bytes")
	cf := CompressionFilter{}
	meta, out, err := cf.Forward(nil, []Part{data}, Options{})
	require.NoError(t, err)
	_, back, err := cf.Reverse(meta, out, Options{})
	require.NoError(t, err)
	require.Len(t, back, 1)
	require.Equal(t, data, back[0])
}

func TestPipelineChainsFiltersInOrder(t *testing.T) {
	p := &Pipeline{}
	require.NoError(t, p.Append(RLEStringFilter{}))
	require.NoError(t, p.Append(CompressionFilter{Codec: codec.Gzip{}}))

	strs := []string{"AA", "AA", "AA", "B"}
	var data []byte
	offsets := make([]uint64, len(strs))
	for i, s := range strs {
		offsets[i] = uint64(len(data))
		data = append(data, s...)
	}

	meta, out, err := p.Forward([]Part{data, encodeOffsets(offsets)}, Options{})
	require.NoError(t, err)
	back, err := p.Reverse(meta, out, Options{})
	require.NoError(t, err)
	require.Len(t, back, 2)
	require.Equal(t, data, back[0])
	require.Equal(t, encodeOffsets(offsets), back[1])
}

func TestPipelineRejectsRLEStringFilterNotFirst(t *testing.T) {
	p := &Pipeline{}
	require.NoError(t, p.Append(CompressionFilter{Codec: codec.Gzip{}}))
	require.Error(t, p.Append(RLEStringFilter{}))
}

func TestDictFilterRoundTrip(t *testing.T) {
	strs := []string{"chr1", "chr1", "chr2", "chr1"}
	var data []byte
	offsets := make([]uint64, len(strs))
	for i, s := range strs {
		offsets[i] = uint64(len(data))
		data = append(data, s...)
	}
	df := DictFilter{}
	meta, out, err := df.Forward(nil, []Part{data, encodeOffsets(offsets)}, Options{})
	require.NoError(t, err)
	_, back, err := df.Reverse(meta, out, Options{})
	require.NoError(t, err)
	require.Equal(t, data, back[0])
	require.Equal(t, encodeOffsets(offsets), back[1])
}
