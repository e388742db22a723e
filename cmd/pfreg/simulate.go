package main

import (
	"fmt"
	"math"

	"pfreg/internal/para"
	"pfreg/internal/pfile"
	"pfreg/internal/state"

	"github.com/go-git/go-billy/v5"
	"github.com/sourcegraph/conc/pool"
	"github.com/spf13/cobra"
)

const (
	simLogName     = "log"
	simScratchName = "scratch"
	simResultName  = "result"
)

func newSimulateCmd(a *app) *cobra.Command {
	var (
		tasks int
		steps int
	)

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run a task group in-process against the storage root",
		Long: `simulate starts one registry per task and runs them concurrently.
Every task registers a shared log, a shared result file and a private
scratch file, writes its steps, and the root task saves a checkpoint.
--tasks overrides world.size; world.root is kept.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			size := a.cfg.World.Size
			if tasks > 0 {
				size = tasks
			}
			storage := a.storage()
			store, err := a.store(storage)
			if err != nil {
				return err
			}
			listing, err := simulate(storage, store, size, a.cfg.World.Root, steps)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), listing)
			return nil
		},
	}

	cmd.Flags().IntVarP(&tasks, "tasks", "n", 0, "number of simulated tasks (default world.size)")
	cmd.Flags().IntVar(&steps, "steps", 4, "steps each task writes")
	return cmd
}

// simulate runs size tasks concurrently on storage and returns the root
// task's final listing.
func simulate(storage billy.Filesystem, store *state.Store, size, root, steps int) (string, error) {
	worlds, err := para.Tasks(size, root)
	if err != nil {
		return "", err
	}
	logger.Info("Simulating %d tasks (root %d), %d steps", size, root, steps)

	listings := make([]string, size)
	p := pool.New().WithErrors()
	for _, w := range worlds {
		p.Go(func() error {
			listing, err := runTask(storage, store, w, steps)
			if err != nil {
				return fmt.Errorf("%v: %w", w, err)
			}
			listings[w.Rank()] = listing
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		return "", err
	}
	return listings[root], nil
}

// runTask is the body of one simulated task. All tasks make the same
// registration calls in the same order, so ids agree.
func runTask(storage billy.Filesystem, store *state.Store, w para.World, steps int) (string, error) {
	reg := pfile.New(storage, pfile.WithCheckpoint(store))
	defer func() {
		if err := reg.Shutdown(); err != nil {
			logger.Warn("%v: shutdown: %v", w, err)
		}
	}()
	raw := reg.Raw()
	taskLogger := logger.WithPrefix(fmt.Sprintf("task %d", w.Rank()))

	logID, err := reg.AddOpen(w, simLogName, para.Shared, "a")
	if err != nil {
		return "", err
	}
	scratchID, err := reg.AddOpen(w, simScratchName, para.Private, "w+b")
	if err != nil {
		return "", err
	}
	resultID, err := reg.Add(w, simResultName, para.Shared)
	if err != nil {
		return "", err
	}

	if reg.IsOpen(w, logID) {
		line := fmt.Sprintf("run of %d tasks, %d steps\n", w.Size(), steps)
		pos, err := raw.Pos(logID)
		if err != nil {
			return "", err
		}
		if _, err := raw.Write(logID, pos, []byte(line)); err != nil {
			return "", err
		}
	}

	// Each step is two float64 values: rank and step.
	const stepBytes = 16
	for step := 0; step < steps; step++ {
		values := []float64{float64(w.Rank()), float64(step)}
		if _, err := raw.WriteValues(scratchID, int64(step*stepBytes), values); err != nil {
			return "", err
		}
	}
	if err := reg.Flush(w, scratchID); err != nil {
		return "", err
	}

	got := make([]float64, 2*steps)
	if steps > 0 {
		if _, err := raw.ReadValues(scratchID, 0, got); err != nil {
			return "", err
		}
	}
	var sum float64
	for step := 0; step < steps; step++ {
		if got[2*step] != float64(w.Rank()) || got[2*step+1] != float64(step) {
			return "", fmt.Errorf("scratch step %d read back %v", step, got[2*step:2*step+2])
		}
		sum += got[2*step+1]
	}

	if err := reg.Open(w, resultID, "w"); err != nil {
		return "", err
	}
	if reg.IsOpen(w, resultID) {
		if _, err := raw.WriteValues(resultID, 0, []float64{sum, math.Sqrt(sum)}); err != nil {
			return "", err
		}
	}

	reg.Info(w, pfile.LogSink{Logger: taskLogger})
	listing := reg.Format(w)

	if err := reg.CloseAll(w); err != nil {
		return "", err
	}
	if err := reg.Save(w); err != nil {
		return "", err
	}
	return listing, nil
}
