package pipeline

import (
	"encoding/binary"

	"github.com/arraylab/tdbcore/filter"
	"github.com/arraylab/tdbcore/tderrors"
)

// EncodeFrame serializes a filter pipeline's (meta, data) part lists into
// the single byte blob a storage.Backend can hold, so one tile slab's
// worth of filtered output becomes one WriteToFile call: [numMeta
// u32][numData u32]{[len u32][bytes]}*(numMeta+numData).
func EncodeFrame(meta, data []filter.Part) []byte {
	size := 8
	for _, p := range meta {
		size += 4 + len(p)
	}
	for _, p := range data {
		size += 4 + len(p)
	}
	buf := make([]byte, 8, size)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(len(meta)))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(len(data)))

	var hdr [4]byte
	appendPart := func(p filter.Part) {
		binary.LittleEndian.PutUint32(hdr[:], uint32(len(p)))
		buf = append(buf, hdr[:]...)
		buf = append(buf, p...)
	}
	for _, p := range meta {
		appendPart(p)
	}
	for _, p := range data {
		appendPart(p)
	}
	return buf
}

// DecodeFrame reverses EncodeFrame.
func DecodeFrame(frame []byte) (meta, data []filter.Part, err error) {
	if len(frame) < 8 {
		return nil, nil, tderrors.E(tderrors.StorageError, "pipeline.DecodeFrame", "truncated frame header")
	}
	numMeta := int(binary.LittleEndian.Uint32(frame[0:4]))
	numData := int(binary.LittleEndian.Uint32(frame[4:8]))
	pos := 8
	parts := make([]filter.Part, 0, numMeta+numData)
	for i := 0; i < numMeta+numData; i++ {
		if pos+4 > len(frame) {
			return nil, nil, tderrors.E(tderrors.StorageError, "pipeline.DecodeFrame", "truncated part length")
		}
		l := int(binary.LittleEndian.Uint32(frame[pos : pos+4]))
		pos += 4
		if l < 0 || pos+l > len(frame) {
			return nil, nil, tderrors.E(tderrors.StorageError, "pipeline.DecodeFrame", "truncated part body")
		}
		parts = append(parts, frame[pos:pos+l])
		pos += l
	}
	return parts[:numMeta], parts[numMeta:], nil
}
