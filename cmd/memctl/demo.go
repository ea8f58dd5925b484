package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/joshuapare/memkit/dynarray"
	"github.com/joshuapare/memkit/mathx"
	"github.com/joshuapare/memkit/mem"
	"github.com/joshuapare/memkit/shared"
)

func init() {
	rootCmd.AddCommand(newDemoCmd())
}

func newDemoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "demo",
		Short: "Run the array and shared handle walkthrough",
		Long: `The demo command builds a growable array, removes and inserts
elements, then creates a shared vector, clones it and releases every handle.

Example:
  memctl demo
  memctl demo --backing mmap --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDemo()
		},
	}
}

// DemoStep is one observed state of the walkthrough.
type DemoStep struct {
	Action   string  `json:"action"`
	Elements []int32 `json:"elements,omitempty"`
	Capacity int     `json:"capacity,omitempty"`
	RefCount int     `json:"refCount,omitempty"`
}

// DemoResult is the full walkthrough.
type DemoResult struct {
	Steps      []DemoStep `json:"steps"`
	LiveBlocks int        `json:"liveBlocks"`
}

func runDemo() error {
	a, err := newAllocator()
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := demo(a)
	if err != nil {
		return err
	}

	if jsonOut {
		return printJSON(res)
	}
	for _, s := range res.Steps {
		switch {
		case s.RefCount > 0:
			printInfo("%-28s refs=%d\n", s.Action, s.RefCount)
		case s.Elements != nil || s.Capacity > 0:
			printInfo("%-28s %v (cap %d)\n", s.Action, s.Elements, s.Capacity)
		default:
			printInfo("%s\n", s.Action)
		}
	}
	printInfo("Live blocks after demo: %d\n", res.LiveBlocks)
	return nil
}

// demo runs the walkthrough against a and leaves no live blocks behind.
func demo(a *mem.Allocator) (DemoResult, error) {
	var res DemoResult
	snapshot := func(action string, arr *dynarray.Array[int32]) {
		res.Steps = append(res.Steps, DemoStep{
			Action:   action,
			Elements: append([]int32{}, arr.Slice()...),
			Capacity: arr.Cap(),
		})
	}

	arr, err := dynarray.New[int32](a)
	if err != nil {
		return res, err
	}
	for _, v := range []int32{10, 20, 30} {
		if err := arr.Add(v); err != nil {
			return res, errors.Join(err, arr.Release())
		}
	}
	snapshot("add 10, 20, 30", arr)

	if err := arr.Remove(1); err != nil {
		return res, errors.Join(err, arr.Release())
	}
	snapshot("remove index 1", arr)

	if err := arr.Insert(99, 1); err != nil {
		return res, errors.Join(err, arr.Release())
	}
	snapshot("insert 99 at 1", arr)
	printVerbose("Array contains 99: %t\n", arr.Contains(99))

	if err := arr.Release(); err != nil {
		return res, err
	}
	snapshot("release array", arr)

	v, err := shared.New(a, mathx.Vec2[float32](1, 2))
	if err != nil {
		return res, err
	}
	refs := func(action string, h *shared.Shared[mathx.Vector2[float32]]) {
		n, _ := h.ReferenceCount()
		res.Steps = append(res.Steps, DemoStep{Action: action, RefCount: n})
	}
	refs(fmt.Sprintf("share vector %v", *v.Get()), &v)

	c := v.Clone()
	refs("clone handle", &c)

	if err := v.Release(); err != nil {
		return res, errors.Join(err, c.Release())
	}
	refs("release original", &c)

	if err := c.Release(); err != nil {
		return res, err
	}
	res.Steps = append(res.Steps, DemoStep{Action: "release clone"})

	res.LiveBlocks = a.Stats().LiveBlocks
	return res, nil
}
