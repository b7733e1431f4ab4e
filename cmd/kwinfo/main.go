// Command kwinfo inspects simulator keyword files: it prints a census
// of keywords, lists records, dumps payloads, and saves or consumes
// index snapshots.
//
// Usage:
//
//	kwinfo [flags] FILE
//
// With no flags kwinfo prints one census line per distinct keyword.
package main

import (
	"context"
	"encoding/binary"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/petrolog/kwfile"
	"github.com/petrolog/kwfile/kwio"
)

type config struct {
	records      bool
	block        string
	occ          int
	keyword      string
	maxElems     int
	indexPath    string
	saveIndex    string
	compression  string
	format       string
	littleEndian bool
	maxPayload   uint64
	verify       bool
	verbose      bool
}

func main() {
	cfg, path := parseFlags()

	f, err := openFile(cfg, path)
	if err != nil {
		log.Fatal(err)
	}
	defer f.Close()

	if cfg.saveIndex != "" {
		if err := f.SaveIndex(cfg.saveIndex, kwfile.SnapshotWithCompression(parseCompression(cfg.compression))); err != nil {
			log.Fatal(err)
		}
		fmt.Printf("saved index snapshot to %s\n", cfg.saveIndex)
	}

	if cfg.block != "" {
		if !f.SelectBlock(cfg.block, cfg.occ) {
			log.Fatalf("no block %s occurrence %d in %s", cfg.block, cfg.occ, path)
		}
	}

	if cfg.verify {
		if err := f.Preload(context.Background()); err != nil {
			log.Fatalf("verify: %v", err)
		}
		fmt.Printf("verified %d records: every payload decodes\n", f.Len())
	}

	switch {
	case cfg.keyword != "":
		if err := printPayload(f, cfg.keyword, cfg.maxElems); err != nil {
			log.Fatal(err)
		}
	case cfg.records:
		printRecords(f)
	default:
		printCensus(f, path)
	}
}

func parseFlags() (config, string) {
	var cfg config
	flag.BoolVar(&cfg.records, "records", false, "list every record in file order")
	flag.StringVar(&cfg.block, "block", "", "restrict output to the block delimited by this keyword")
	flag.IntVar(&cfg.occ, "occ", 0, "block occurrence (with -block)")
	flag.StringVar(&cfg.keyword, "keyword", "", "print the payload of the first record with this name")
	flag.IntVar(&cfg.maxElems, "max-elems", 20, "payload elements to print before truncating (0 = all)")
	flag.StringVar(&cfg.indexPath, "index", "", "load the index snapshot at this path instead of scanning")
	flag.StringVar(&cfg.saveIndex, "save-index", "", "write an index snapshot after scanning")
	flag.StringVar(&cfg.compression, "compression", "none", "snapshot compression: none, snappy, zstd")
	flag.StringVar(&cfg.format, "format", "", "force the encoding: unformatted or formatted")
	flag.BoolVar(&cfg.littleEndian, "little-endian", false, "unformatted payloads are little-endian")
	flag.Uint64Var(&cfg.maxPayload, "max-payload", 0, "per-record payload size limit in bytes (0 = default)")
	flag.BoolVar(&cfg.verify, "verify", false, "decode every payload and report the first failure")
	flag.BoolVar(&cfg.verbose, "v", false, "debug logging to stderr")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "usage: kwinfo [flags] FILE\n")
		flag.PrintDefaults()
		os.Exit(2)
	}
	return cfg, flag.Arg(0)
}

func openFile(cfg config, path string) (*kwfile.File, error) {
	var opts []kwfile.Option
	if cfg.format != "" {
		format, err := parseFormat(cfg.format)
		if err != nil {
			return nil, err
		}
		opts = append(opts, kwfile.WithFormat(format))
	}
	if cfg.littleEndian {
		opts = append(opts, kwfile.WithByteOrder(binary.LittleEndian))
	}
	if cfg.maxPayload > 0 {
		opts = append(opts, kwfile.WithMaxPayloadSize(cfg.maxPayload))
	}
	if cfg.verbose {
		logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
		opts = append(opts, kwfile.WithLogger(logger))
	}

	if cfg.indexPath != "" {
		return kwfile.OpenWithIndex(path, cfg.indexPath, opts...)
	}
	return kwfile.Open(path, opts...)
}

func parseFormat(name string) (kwio.Format, error) {
	switch name {
	case "unformatted":
		return kwio.FormatUnformatted, nil
	case "formatted":
		return kwio.FormatFormatted, nil
	default:
		return 0, fmt.Errorf("unknown format %q", name)
	}
}

func parseCompression(name string) kwfile.Compression {
	switch name {
	case "none":
		return kwfile.CompressionNone
	case "snappy":
		return kwfile.CompressionSnappy
	case "zstd":
		return kwfile.CompressionZstd
	default:
		log.Fatalf("unknown compression: %s", name)
		return kwfile.CompressionNone
	}
}

// printCensus aggregates the active index per keyword name and prints
// one line per name in first-occurrence order.
func printCensus(f *kwfile.File, path string) {
	order := ""
	if f.Format() == kwio.FormatUnformatted {
		order = ", big-endian"
		if f.ByteOrder() == binary.ByteOrder(binary.LittleEndian) {
			order = ", little-endian"
		}
	}
	fmt.Printf("%s: %s%s, %d bytes\n", path, f.Format(), order, f.Size())

	stats := f.Stats()
	fmt.Printf("records=%d distinct=%d elements=%d payload-bytes=%d\n\n",
		stats.Records, stats.Distinct, stats.Elements, stats.PayloadBytes)

	type agg struct {
		typ      kwio.Type
		records  int
		elements int64
		bytes    int64
	}
	byName := make(map[string]*agg, f.NumDistinct())
	for rec := range f.Records() {
		a := byName[rec.Name()]
		if a == nil {
			a = &agg{typ: rec.Type()}
			byName[rec.Name()] = a
		}
		a.records++
		a.elements += int64(rec.Count())
		a.bytes += rec.Size()
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "KEYWORD\tTYPE\tRECORDS\tELEMENTS\tBYTES")
	for name := range f.Names() {
		a := byName[name]
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\n", name, a.typ, a.records, a.elements, a.bytes)
	}
	w.Flush()
}

// printRecords lists the active index record by record.
func printRecords(f *kwfile.File) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "POS\tKEYWORD\tTYPE\tCOUNT\tOFFSET\tBYTES")
	i := 0
	for rec := range f.Records() {
		fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%d\t%d\n",
			i, rec.Name(), rec.Type(), rec.Count(), rec.Offset(), rec.Size())
		i++
	}
	w.Flush()
}

// printPayload materializes and prints one payload, truncated to
// maxElems elements.
func printPayload(f *kwfile.File, name string, maxElems int) error {
	if !f.Has(name) {
		return fmt.Errorf("no keyword %s in the %s index", name, indexLabel(f))
	}
	rec := f.Named(name, 0)
	p, err := rec.Payload()
	if err != nil {
		return err
	}

	fmt.Printf("%s %s count=%d\n", rec.Name(), rec.Type(), rec.Count())
	n := p.Len()
	shown := n
	if maxElems > 0 && shown > maxElems {
		shown = maxElems
	}
	for i := range shown {
		fmt.Printf("  [%d] %s\n", i, elemString(p, i))
	}
	if shown < n {
		fmt.Printf("  ... (%d more)\n", n-shown)
	}
	return nil
}

func elemString(p kwio.Payload, i int) string {
	switch p.Type() {
	case kwio.TypeInte:
		return fmt.Sprintf("%d", p.Ints()[i])
	case kwio.TypeReal:
		return fmt.Sprintf("%g", p.Reals()[i])
	case kwio.TypeDoub:
		return fmt.Sprintf("%g", p.Doubs()[i])
	case kwio.TypeLogi:
		if p.Bools()[i] {
			return "T"
		}
		return "F"
	case kwio.TypeChar:
		return fmt.Sprintf("%q", p.Strings()[i])
	default:
		return "(message)"
	}
}

func indexLabel(f *kwfile.File) string {
	if f.Len() == f.Stats().Records {
		return "global"
	}
	return "selected block"
}
