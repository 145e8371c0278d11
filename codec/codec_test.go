package codec

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestGzipRoundTrip reproduces end-to-end scenario S1.
func TestGzipRoundTrip(t *testing.T) {
	src := make([]byte, 1024)
	for i := range src {
		src[i] = byte(i)
	}
	var g Gzip
	compressed, err := g.Compress(nil, src, g.DefaultLevel())
	require.NoError(t, err)
	out, err := g.Decompress(nil, compressed, len(src))
	require.NoError(t, err)
	require.Equal(t, src, out)
}

// TestFixedRLE reproduces end-to-end scenario S2, verifying run grouping
// and counts; the wire byte order follows §6.3 ([value][run_len: u16 BE]),
// the authoritative format over the scenario table's schematic notation
// (see DESIGN.md for the resolution).
func TestFixedRLE(t *testing.T) {
	const max = 255
	src := []byte{1, 1, 1, 0, 0, 0, 0, 0, 0, 0, 0, 2, 1, 1, max, 127, 127}
	r := FixedRLE{CellSize: 1}
	enc, err := r.Compress(nil, src, 0)
	require.NoError(t, err)
	wantRuns := []struct {
		val byte
		run uint16
	}{
		{1, 3}, {0, 8}, {2, 1}, {1, 2}, {max, 1}, {127, 2},
	}
	pos := 0
	for _, w := range wantRuns {
		require.Equal(t, w.val, enc[pos])
		gotRun := uint16(enc[pos+1])<<8 | uint16(enc[pos+2])
		require.Equal(t, w.run, gotRun)
		pos += 3
	}
	require.Equal(t, len(enc), pos)
	dec, err := r.Decompress(nil, enc, len(src))
	require.NoError(t, err)
	require.Equal(t, src, dec)
}

// TestVarStringRLE reproduces end-to-end scenario S3.
func TestVarStringRLE(t *testing.T) {
	strs := []string{"HG543232", "HG543232", "HG543232", "HG543232", "HG543232", "HG54", "HG54", "A"}
	var data []byte
	offsets := make([]uint64, len(strs))
	for i, s := range strs {
		offsets[i] = uint64(len(data))
		data = append(data, s...)
	}
	h, stream := EncodeVarStringRLE(data, offsets)
	require.Equal(t, uint8(1), h.RLELenBytesize)
	require.Equal(t, uint8(1), h.StringLenBytesize)
	wantRuns := []struct {
		run uint64
		str string
	}{
		{5, "HG543232"}, {2, "HG54"}, {1, "A"},
	}
	pos := 0
	for _, w := range wantRuns {
		run := uint64(stream[pos])
		pos++
		slen := uint64(stream[pos])
		pos++
		s := string(stream[pos : pos+int(slen)])
		pos += int(slen)
		require.Equal(t, w.run, run)
		require.Equal(t, w.str, s)
	}
	gotData, gotOffsets, err := DecodeVarStringRLE(h, stream)
	require.NoError(t, err)
	require.Equal(t, data, gotData)
	require.Equal(t, offsets, gotOffsets)
}

// TestDictEncoding reproduces end-to-end scenario S4.
func TestDictEncoding(t *testing.T) {
	strs := []string{"HG543232", "HG543232", "HG543232", "HG54", "HG54", "A", "HG543232", "HG54"}
	var data []byte
	offsets := make([]uint64, len(strs))
	for i, s := range strs {
		offsets[i] = uint64(len(data))
		data = append(data, s...)
	}
	ids, idWidth, dict := EncodeDict(data, offsets)
	require.Equal(t, uint8(1), idWidth)
	wantIDs := []byte{0, 0, 0, 1, 1, 2, 0, 1}
	require.Equal(t, wantIDs, ids)

	gotData, gotOffsets, err := DecodeDict(ids, idWidth, dict)
	require.NoError(t, err)
	require.Equal(t, data, gotData)
	require.Equal(t, offsets, gotOffsets)
}

func TestDoubleDeltaRoundTrip(t *testing.T) {
	vals := []int32{10, 12, 15, 15, 20, 5, -100, 1000000}
	var src []byte
	for _, v := range vals {
		var b [4]byte
		b[0] = byte(v)
		b[1] = byte(v >> 8)
		b[2] = byte(v >> 16)
		b[3] = byte(v >> 24)
		src = append(src, b[:]...)
	}
	d := DoubleDelta{CellSize: 4}
	enc, err := d.Compress(nil, src, 0)
	require.NoError(t, err)
	dec, err := d.Decompress(nil, enc, len(src))
	require.NoError(t, err)
	require.Equal(t, src, dec)
}

func TestLz4RoundTrip(t *testing.T) {
	src := bytes.Repeat([]byte("the quick brown fox jumps over the lazy dog"), 50)
	var l Lz4
	enc, err := l.Compress(nil, src, 0)
	require.NoError(t, err)
	dec, err := l.Decompress(nil, enc, len(src))
	require.NoError(t, err)
	require.Equal(t, src, dec)
}

func TestBloscLZRoundTrip(t *testing.T) {
	src := bytes.Repeat([]byte("abcabcabcabc"), 20)
	b := NewBlosc(InnerBloscLZ, nil)
	enc, err := b.Compress(nil, src, b.DefaultLevel())
	require.NoError(t, err)
	dec, err := b.Decompress(nil, enc, len(src))
	require.NoError(t, err)
	require.Equal(t, src, dec)
}

func TestWebpAlwaysNotSupported(t *testing.T) {
	var w Webp
	_, err := w.Compress(nil, []byte("x"), 0)
	require.Error(t, err)
}
