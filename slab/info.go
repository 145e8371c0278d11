package slab

import (
	"github.com/arraylab/tdbcore/coord"
	"github.com/arraylab/tdbcore/domain"
)

// TileInfo is the per-tile portion of a slab's precomputed layout: the
// normalized overlap of the slab with this tile, the number of cells the
// tile contributes, and the multipliers needed to address cells within it.
type TileInfo struct {
	RangeOverlap     []coord.I64Range // normalized intersection of slab with this tile, per dim
	CellOffsetPerDim []int64          // multipliers: in-tile coord -> linear cell id, array cell order
	TileCellNum      int64            // cell count this tile contributes to the slab
}

// Info is the slab-info calculator's output: everything the copy engine
// needs to move cells between the local slab buffer and the user's buffers
// for one tile slab, for every attribute.
type Info struct {
	Tiles            []TileInfo
	CellSlabNum      []int64   // per tile
	CellSlabSize     [][]int64 // [attr][tile], bytes
	StartOffsets     [][]int64 // [attr][tile], byte offset of the tile's first cell in the slab buffer
	TileOffsetPerDim []int64   // multipliers: tile coord -> linear tile id, array tile order
	TileNum          int64

	// Extent and TileLo let the copy engine map a slab-normalized
	// coordinate back to the tile id that contains it, after the coordinate
	// has been advanced past the tile it started in.
	Extent []int64
	TileLo []int64
}

// TileAt returns the linear tile id containing the slab-normalized
// coordinate c.
func (info Info) TileAt(c []int64) int64 {
	tid := int64(0)
	for d := range c {
		local := c[d]/info.Extent[d] - info.TileLo[d]
		tid += local * info.TileOffsetPerDim[d]
	}
	return tid
}

// AttrSpec describes one attribute's on-disk cell footprint for the purpose
// of slab-info/copy-engine sizing.
type AttrSpec struct {
	// Size is the fixed cell size in bytes, or 8 (sizeof uint64) for the
	// offsets component of a variable-length attribute.
	Size int64
}

// Compute builds the Info for a normalized tile slab. userOrder and
// arrayOrder select one of the four compile-time specializations of the
// reference implementation via a single runtime branch instead of template
// duplication. write selects the dense-write tile_cell_num formula (full
// tiles) instead of the dense-read formula (actual overlap).
func Compute[T coord.Value](slabNorm Slab[T], doms []domain.Domain[T], userOrder, arrayOrder domain.Order, attrs []AttrSpec, write bool) Info {
	d := len(slabNorm.Ranges)
	tileLo := make([]int64, d)
	tileDomainLen := make([]int64, d)
	extent := make([]int64, d)
	for i := 0; i < d; i++ {
		extent[i] = coord.ToInt64(doms[i].Extent)
		if !doms[i].HasExtent() {
			extent[i] = 1
			tileLo[i] = 0
			tileDomainLen[i] = 1
			continue
		}
		lo := coord.ToInt64(slabNorm.Ranges[i].Lo) / extent[i]
		hi := coord.ToInt64(slabNorm.Ranges[i].Hi) / extent[i]
		tileLo[i] = lo
		tileDomainLen[i] = hi - lo + 1
	}

	tileOffsetPerDim := tileOrderMultipliers(tileDomainLen, arrayOrder)

	tileNum := int64(1)
	for _, l := range tileDomainLen {
		tileNum *= l
	}

	tiles := make([]TileInfo, tileNum)
	cellSlabNum := make([]int64, tileNum)

	local := make([]int64, d)
	for { // odometer over local tile coordinates
		tid := int64(0)
		for i := 0; i < d; i++ {
			tid += local[i] * tileOffsetPerDim[i]
		}

		overlap := make([]coord.I64Range, d)
		domainSize := make([]int64, d) // length actually used for addressing (overlap length)
		for i := 0; i < d; i++ {
			tileCellLo := (tileLo[i] + local[i]) * extent[i]
			tileCellHi := tileCellLo + extent[i] - 1
			lo := maxI64(tileCellLo, coord.ToInt64(slabNorm.Ranges[i].Lo))
			hi := minI64(tileCellHi, coord.ToInt64(slabNorm.Ranges[i].Hi))
			overlap[i] = coord.I64Range{Lo: lo, Hi: hi}
			domainSize[i] = hi - lo + 1
		}

		tileCellNum := int64(1)
		if write {
			for i := 0; i < d; i++ {
				tileCellNum *= extent[i]
			}
		} else {
			for i := 0; i < d; i++ {
				tileCellNum *= domainSize[i]
			}
		}

		cellOffsetPerDim := cellOrderMultipliers(domainSize, arrayOrder)
		cellSlabLen := cellSlabLength(domainSize, tileDomainLen, userOrder, arrayOrder)

		tiles[tid] = TileInfo{
			RangeOverlap:     overlap,
			CellOffsetPerDim: cellOffsetPerDim,
			TileCellNum:      tileCellNum,
		}
		cellSlabNum[tid] = cellSlabLen

		if !odometerNext(local, tileDomainLen) {
			break
		}
	}

	startOffsets := make([][]int64, len(attrs))
	cellSlabSize := make([][]int64, len(attrs))
	for a := range attrs {
		startOffsets[a] = make([]int64, tileNum)
		cellSlabSize[a] = make([]int64, tileNum)
		acc := int64(0)
		for t := int64(0); t < tileNum; t++ {
			startOffsets[a][t] = acc
			acc += tiles[t].TileCellNum * attrs[a].Size
			cellSlabSize[a][t] = cellSlabNum[t] * attrs[a].Size
		}
	}

	return Info{
		Tiles:            tiles,
		CellSlabNum:      cellSlabNum,
		CellSlabSize:     cellSlabSize,
		StartOffsets:     startOffsets,
		TileOffsetPerDim: tileOffsetPerDim,
		TileNum:          tileNum,
		Extent:           extent,
		TileLo:           tileLo,
	}
}

// tileOrderMultipliers computes the per-dim multiplier mapping a tile
// coordinate to its linear tile id in the given order: row-major accumulates
// from D-1 down to 0, column-major from 0 up to D-1.
func tileOrderMultipliers(lens []int64, order domain.Order) []int64 {
	d := len(lens)
	mult := make([]int64, d)
	if order == domain.RowMajor {
		mult[d-1] = 1
		for i := d - 2; i >= 0; i-- {
			mult[i] = mult[i+1] * lens[i+1]
		}
	} else {
		mult[0] = 1
		for i := 1; i < d; i++ {
			mult[i] = mult[i-1] * lens[i-1]
		}
	}
	return mult
}

// cellOrderMultipliers is the same accumulation, but over in-tile overlap
// lengths, used to address cells within a tile in array cell order.
func cellOrderMultipliers(lens []int64, order domain.Order) []int64 {
	return tileOrderMultipliers(lens, order)
}

// cellSlabLength implements the reference decision table from the slab-info
// calculator: when user and array order agree, the cell slab starts as the
// overlap along the fastest-varying dimension and extends across each
// slower dimension for as long as every faster dimension lies within a
// single tile (tile-domain length 1); otherwise cells scatter one at a
// time.
func cellSlabLength(overlapLen, tileDomainLen []int64, userOrder, arrayOrder domain.Order) int64 {
	if userOrder != arrayOrder {
		return 1
	}
	d := len(overlapLen)
	if userOrder == domain.RowMajor {
		slabLen := overlapLen[d-1]
		for i := d - 2; i >= 0; i-- {
			if tileDomainLen[i+1] != 1 {
				break
			}
			slabLen *= overlapLen[i]
		}
		return slabLen
	}
	slabLen := overlapLen[0]
	for i := 1; i < d; i++ {
		if tileDomainLen[i-1] != 1 {
			break
		}
		slabLen *= overlapLen[i]
	}
	return slabLen
}

func odometerNext(idx, lens []int64) bool {
	for i := len(idx) - 1; i >= 0; i-- {
		idx[i]++
		if idx[i] < lens[i] {
			return true
		}
		idx[i] = 0
	}
	return false
}

func maxI64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}

func minI64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
