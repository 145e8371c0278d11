/*
tdbfilter is a small diagnostic tool that runs a named filter pipeline over
an input file and reports the before/after size, exercising package filter
and package codec end to end the way a real tile write/read would.
*/
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/arraylab/tdbcore/codec"
	"github.com/arraylab/tdbcore/filter"
)

var (
	inPath  = flag.String("in", "", "Input file to run through the filter pipeline")
	chain   = flag.String("chain", "gzip", "Comma-separated compression filter chain: gzip, lz4, bzip2, blosc")
	level   = flag.Int("level", 0, "Compression level; 0 selects each codec's default")
	verbose = flag.Bool("v", false, "Print the round-trip meta and data part counts")
)

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: %s -in FILE [-chain gzip,lz4] [-level N]\n", os.Args[0])
	flag.PrintDefaults()
}

func buildPipeline(chainSpec string) (*filter.Pipeline, error) {
	p := &filter.Pipeline{}
	for _, name := range strings.Split(chainSpec, ",") {
		var f filter.Filter
		switch strings.TrimSpace(name) {
		case "gzip":
			f = filter.CompressionFilter{Codec: codec.Gzip{}}
		case "lz4":
			f = filter.CompressionFilter{Codec: codec.Lz4{}}
		case "bzip2":
			f = filter.CompressionFilter{Codec: codec.Bzip2{}}
		case "blosc":
			f = filter.CompressionFilter{Codec: codec.NewBlosc(codec.InnerBloscLZ, nil)}
		default:
			return nil, fmt.Errorf("unknown filter %q", name)
		}
		if err := p.Append(f); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func run() error {
	if *inPath == "" {
		usage()
		return fmt.Errorf("-in is required")
	}
	data, err := os.ReadFile(*inPath)
	if err != nil {
		return err
	}
	p, err := buildPipeline(*chain)
	if err != nil {
		return err
	}
	lvl := int32(*level)
	if lvl == 0 {
		lvl = -1 // below every codec's minimum, so ClampLevel picks the codec default
	}
	opts := filter.Options{CompressionLevel: lvl}

	meta, out, err := p.Forward([]filter.Part{data}, opts)
	if err != nil {
		return err
	}
	compressedSize := 0
	for _, part := range out {
		compressedSize += len(part)
	}
	fmt.Printf("%s: %d -> %d bytes (%.1f%%)\n", *inPath, len(data), compressedSize,
		100*float64(compressedSize)/float64(len(data)))

	back, err := p.Reverse(meta, out, opts)
	if err != nil {
		return err
	}
	total := 0
	for _, part := range back {
		total += len(part)
	}
	if total != len(data) {
		return fmt.Errorf("round trip size mismatch: got %d, want %d", total, len(data))
	}
	if *verbose {
		fmt.Printf("round trip OK: %d meta parts, %d data parts\n", len(meta), len(out))
	}
	return nil
}

func main() {
	flag.Usage = usage
	flag.Parse()
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "tdbfilter:", err)
		os.Exit(1)
	}
}
