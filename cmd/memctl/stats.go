package main

import (
	"errors"
	"fmt"
	"math/rand"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/joshuapare/memkit/alloc"
	"github.com/joshuapare/memkit/mem"
)

var (
	statsOps    int
	statsSeed   int64
	statsMax    int
	statsVerify bool
)

func init() {
	cmd := newStatsCmd()
	cmd.Flags().IntVar(&statsOps, "ops", 10000, "Number of random operations")
	cmd.Flags().Int64Var(&statsSeed, "seed", 1, "Workload seed")
	cmd.Flags().IntVar(&statsMax, "max-size", 512, "Largest block size requested")
	cmd.Flags().BoolVar(&statsVerify, "verify", false, "Check heap invariants after the workload")
	rootCmd.AddCommand(cmd)
}

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Run a random workload and show heap statistics",
		Long: `The stats command runs a seeded mix of allocate, reallocate and free
calls on the allocation primitive and prints what the heap did.

Example:
  memctl stats --ops 50000 --seed 7
  memctl stats --strategy bump --verify
  memctl stats --size-classes FineGrained --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStats()
		},
	}
}

// WorkloadReport summarizes a workload run.
type WorkloadReport struct {
	Ops        int         `json:"ops"`
	Seed       int64       `json:"seed"`
	Allocates  int         `json:"allocates"`
	Reallocs   int         `json:"reallocates"`
	Frees      int         `json:"frees"`
	Failures   int         `json:"failures"`
	LiveBlocks int         `json:"liveBlocks"`
	LiveBytes  int64       `json:"liveBytes"`
	Verified   bool        `json:"verified"`
	Heap       alloc.Stats `json:"heap"`
}

func runStats() error {
	if statsOps < 0 || statsMax <= 0 {
		return fmt.Errorf("--ops must be non-negative and --max-size positive")
	}
	a, err := newAllocator()
	if err != nil {
		return err
	}
	defer a.Close()

	printVerbose("Running %d operations (seed %d)\n", statsOps, statsSeed)
	rep, err := runWorkload(a, statsOps, statsSeed, statsMax, statsVerify)
	if err != nil {
		return err
	}

	if jsonOut {
		return printJSON(rep)
	}
	if quiet {
		return nil
	}

	p := message.NewPrinter(language.English)
	p.Fprintf(os.Stdout, "Operations:   %d (seed %d)\n", rep.Ops, rep.Seed)
	p.Fprintf(os.Stdout, "Allocates:    %d\n", rep.Allocates)
	p.Fprintf(os.Stdout, "Reallocates:  %d\n", rep.Reallocs)
	p.Fprintf(os.Stdout, "Frees:        %d\n", rep.Frees)
	p.Fprintf(os.Stdout, "Failures:     %d\n", rep.Failures)
	p.Fprintf(os.Stdout, "Live blocks:  %d (%d bytes)\n", rep.LiveBlocks, rep.LiveBytes)
	if statsVerify {
		p.Fprintf(os.Stdout, "Heap verify:  ok\n")
	}
	fmt.Fprintln(os.Stdout)
	rep.Heap.Fprint(os.Stdout)
	return nil
}

// runWorkload applies ops random operations to a. Out-of-memory failures are
// counted rather than returned so a capped heap can still be profiled; any
// other failure stops the run.
func runWorkload(a *mem.Allocator, ops int, seed int64, maxSize int, verify bool) (WorkloadReport, error) {
	rep := WorkloadReport{Ops: ops, Seed: seed}
	rng := rand.New(rand.NewSource(seed))
	var live []mem.Ptr

	for range ops {
		switch op := rng.Intn(10); {
		case op < 5 || len(live) == 0:
			p, err := a.Allocate(1 + rng.Intn(maxSize))
			if err != nil {
				if !errors.Is(err, mem.ErrOutOfMemory) {
					return rep, err
				}
				rep.Failures++
				continue
			}
			live = append(live, p)
			rep.Allocates++
		case op < 7:
			i := rng.Intn(len(live))
			p, err := a.Reallocate(live[i], 1+rng.Intn(maxSize))
			if err != nil {
				if !errors.Is(err, mem.ErrOutOfMemory) {
					return rep, err
				}
				rep.Failures++
				continue
			}
			live[i] = p
			rep.Reallocs++
		default:
			i := rng.Intn(len(live))
			if err := a.Free(&live[i]); err != nil {
				return rep, err
			}
			live[i] = live[len(live)-1]
			live = live[:len(live)-1]
			rep.Frees++
		}
	}

	if verify {
		if err := a.Heap().Verify(); err != nil {
			return rep, fmt.Errorf("heap verification failed: %w", err)
		}
		rep.Verified = true
	}

	st := a.Stats()
	rep.LiveBlocks = st.LiveBlocks
	rep.LiveBytes = st.LiveBytes
	rep.Heap = st.Heap
	return rep, nil
}
