// Command memstore-bench drives an in-process MemStore with synthetic
// writes and reports throughput, heap growth and collapsing behaviour.
// It exists for manual tuning of slab/non-slab allocation and upsert
// collapsing; it is not part of the library's public surface.
package main

import (
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/cespare/xxhash/v2"
	humanize "github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/coredb/memstore"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "memstore-bench",
		Short: "Exercise a MemStore with synthetic writes and report size/throughput stats",
	}
	cmd.AddCommand(newLoadCommand(), newUpsertCommand())
	return cmd
}

type loadOptions struct {
	rows      int
	cols      int
	valueSize int
	useSlab   bool
	cf        string
}

func newLoadCommand() *cobra.Command {
	var opt loadOptions
	cmd := &cobra.Command{
		Use:   "load",
		Short: "Add rows*cols synthetic puts and report elapsed time and final heap size",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLoad(opt)
		},
	}
	flags := cmd.Flags()
	flags.IntVar(&opt.rows, "rows", 10000, "number of distinct rows to generate")
	flags.IntVar(&opt.cols, "cols", 4, "columns per row")
	flags.IntVar(&opt.valueSize, "value-size", 64, "bytes of random value payload per cell")
	flags.BoolVar(&opt.useSlab, "slab", true, "allocate cell payloads from the slab allocator")
	flags.StringVar(&opt.cf, "cf", "bench", "column family label attached to reported metrics")
	return cmd
}

func runLoad(opt loadOptions) error {
	logger, err := zap.NewDevelopment()
	if err != nil {
		return err
	}
	defer logger.Sync()

	cfg := memstore.DefaultConfig()
	cfg.UseSlabAllocator = opt.useSlab

	ms := memstore.New(opt.cf, cfg, clock.New(), logger)
	defer ms.Close()

	rnd := rand.New(rand.NewSource(1))
	value := make([]byte, opt.valueSize)
	var fingerprint uint64
	var mvcc uint64

	start := time.Now()
	for r := 0; r < opt.rows; r++ {
		row := []byte(fmt.Sprintf("row-%08d", r))
		for c := 0; c < opt.cols; c++ {
			rnd.Read(value)
			mvcc++
			cell := memstore.NewCell(row, []byte("cf"), []byte(fmt.Sprintf("q%d", c)),
				time.Now().UnixNano(), memstore.TypePut, mvcc, append([]byte(nil), value...))
			ms.Add(cell)
			fingerprint = xxhash.Sum64(append(fingerprint8(fingerprint), cell.Value...))
		}
	}
	elapsed := time.Since(start)

	fmt.Printf("wrote %d cells in %s (%.0f cells/sec)\n",
		opt.rows*opt.cols, elapsed, float64(opt.rows*opt.cols)/elapsed.Seconds())
	fmt.Printf("heap size: %s\n", humanize.Bytes(ms.GetFlushableSize()))
	fmt.Printf("fingerprint: %x\n", fingerprint)
	logger.Info("load complete", zap.Int("rows", opt.rows), zap.Int("cols", opt.cols), zap.Duration("elapsed", elapsed))
	return nil
}

type upsertOptions struct {
	rows       int
	versions   int
	readPoint  uint64
	cf         string
}

func newUpsertCommand() *cobra.Command {
	var opt upsertOptions
	cmd := &cobra.Command{
		Use:   "upsert",
		Short: "Repeatedly upsert the same column per row and report elapsed time and final heap size",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUpsert(opt)
		},
	}
	flags := cmd.Flags()
	flags.IntVar(&opt.rows, "rows", 1000, "number of distinct rows to generate")
	flags.IntVar(&opt.versions, "versions", 5, "upsert calls issued per row/column")
	flags.Uint64Var(&opt.readPoint, "read-point", 1<<62, "mvcc read point passed to Upsert")
	flags.StringVar(&opt.cf, "cf", "bench", "column family label attached to reported metrics")
	return cmd
}

func runUpsert(opt upsertOptions) error {
	logger, err := zap.NewDevelopment()
	if err != nil {
		return err
	}
	defer logger.Sync()

	ms := memstore.New(opt.cf, memstore.DefaultConfig(), clock.New(), logger)
	defer ms.Close()

	var mvcc uint64
	start := time.Now()
	for r := 0; r < opt.rows; r++ {
		row := []byte(fmt.Sprintf("row-%08d", r))
		for v := 0; v < opt.versions; v++ {
			mvcc++
			cell := memstore.NewCell(row, []byte("cf"), []byte("counter"),
				time.Now().UnixNano(), memstore.TypePut, mvcc, []byte(fmt.Sprintf("v%d", v)))
			ms.Upsert([]*memstore.Cell{cell}, opt.readPoint)
		}
	}
	elapsed := time.Since(start)

	fmt.Printf("issued %d upserts across %d rows in %s\n", opt.rows*opt.versions, opt.rows, elapsed)
	fmt.Printf("final heap size: %s\n", humanize.Bytes(ms.GetFlushableSize()))
	return nil
}

func fingerprint8(v uint64) []byte {
	return []byte{
		byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24),
		byte(v >> 32), byte(v >> 40), byte(v >> 48), byte(v >> 56),
	}
}
