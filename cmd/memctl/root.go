package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/joshuapare/memkit/alloc"
	"github.com/joshuapare/memkit/logging"
	"github.com/joshuapare/memkit/mem"
)

var (
	// Global flags
	verbose bool
	quiet   bool
	jsonOut bool

	// Heap flags
	backing     string
	strategy    string
	sizeClasses string
	binSize     int
	maxBytes    int64
)

var rootCmd = &cobra.Command{
	Use:   "memctl",
	Short: "Exercise the memkit allocation stack",
	Long: `memctl drives the memkit allocation primitive, growable array and
shared handle against a configurable platform heap and reports what the heap
did.`,
	Version:       "0.1.0",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().
		BoolVarP(&quiet, "quiet", "q", false, "Suppress all output except errors")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "Output in JSON format")

	rootCmd.PersistentFlags().
		StringVar(&backing, "backing", alloc.BackingGo, "Page source for bins (go, mmap)")
	rootCmd.PersistentFlags().
		StringVar(&strategy, "strategy", string(alloc.StrategyFast), "Heap strategy (fast, bump)")
	rootCmd.PersistentFlags().
		StringVar(&sizeClasses, "size-classes", alloc.DefaultSizeClasses.Name, "Size class preset")
	rootCmd.PersistentFlags().IntVar(&binSize, "bin-size", alloc.DefaultBinSize, "Bin size in bytes")
	rootCmd.PersistentFlags().Int64Var(&maxBytes, "max-bytes", 0, "Cap on mapped bytes (0 = unlimited)")
}

func execute() {
	if err := rootCmd.Execute(); err != nil {
		printError("%v\n", err)
		os.Exit(1)
	}
}

// heapConfig builds the heap configuration from the global flags.
func heapConfig() (*alloc.Config, error) {
	classes, ok := alloc.LookupSizeClasses(sizeClasses)
	if !ok {
		return nil, fmt.Errorf("unknown size class preset %q", sizeClasses)
	}
	return &alloc.Config{
		Strategy:         alloc.Strategy(strategy),
		Backing:          backing,
		SizeClasses:      classes,
		BinSize:          binSize,
		MaxBytes:         maxBytes,
		ReleaseEmptyBins: true,
	}, nil
}

// newAllocator creates an allocation primitive from the global flags.
// Diagnostics go to stderr: structured when verbose, console lines otherwise.
func newAllocator() (*mem.Allocator, error) {
	cfg, err := heapConfig()
	if err != nil {
		return nil, err
	}
	var log logging.Logger = logging.NewConsole(os.Stderr)
	if verbose {
		log = logging.New(logging.Options{Enabled: true, Level: slog.LevelInfo})
	}
	printVerbose("Heap: strategy=%s backing=%s classes=%s bin=%d\n",
		cfg.Strategy, cfg.Backing, cfg.SizeClasses.Name, cfg.BinSize)
	return mem.New(&mem.Options{Heap: cfg, Logger: log})
}

// Helper functions for output

// printInfo prints an info message if not in quiet mode
func printInfo(format string, args ...any) {
	if !quiet {
		fmt.Fprintf(os.Stdout, format, args...)
	}
}

// printError prints an error message
func printError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format, args...)
}

// printVerbose prints a verbose message to stderr if verbose mode is enabled,
// keeping stdout clean for --json
func printVerbose(format string, args ...any) {
	if verbose && !quiet {
		fmt.Fprintf(os.Stderr, format, args...)
	}
}

// printJSON outputs data as JSON
func printJSON(v any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
