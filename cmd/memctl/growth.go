package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/joshuapare/memkit/dynarray"
)

var (
	growthFrom  int
	growthSteps int
)

func init() {
	cmd := newGrowthCmd()
	cmd.Flags().IntVar(&growthFrom, "from", 0, "Starting capacity")
	cmd.Flags().IntVar(&growthSteps, "steps", 10, "Number of growth steps")
	rootCmd.AddCommand(cmd)
}

func newGrowthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "growth",
		Short: "Print the array capacity trajectory",
		Long: `The growth command prints the capacities a growable array moves
through when it is repeatedly full.

Example:
  memctl growth --from 0 --steps 8`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGrowth()
		},
	}
}

func runGrowth() error {
	caps, err := growthTrajectory(growthFrom, growthSteps)
	if err != nil {
		return err
	}
	if jsonOut {
		return printJSON(caps)
	}
	for i, c := range caps {
		printInfo("%3d: %d\n", i, c)
	}
	return nil
}

// growthTrajectory returns from followed by steps successive capacities.
func growthTrajectory(from, steps int) ([]int, error) {
	if from < 0 || steps < 0 {
		return nil, fmt.Errorf("from and steps must be non-negative")
	}
	caps := make([]int, 0, steps+1)
	caps = append(caps, from)
	c := from
	for range steps {
		next, err := dynarray.NextCapacity(c)
		if err != nil {
			return caps, err
		}
		c = next
		caps = append(caps, c)
	}
	return caps, nil
}
