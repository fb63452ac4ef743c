// Package simulation drives attach/detach sequences against a resource
// manager and reports how each cell's pool coped.
package simulation

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"gnb-pucch/internal/resmgr"
	"gnb-pucch/internal/storage"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Plan is the per-cell attach/detach sequence.
type Plan struct {
	UEsPerCell int
	// DetachEvery releases the oldest attached UE after every n-th attach
	// attempt; 0 never detaches mid-round.
	DetachEvery int
	Rounds      int
	// Reattach releases every UE at the end of a round, so the next round
	// attaches onto an empty pool.
	Reattach bool
}

func (p Plan) Validate() error {
	if p.UEsPerCell <= 0 {
		return fmt.Errorf("ues per cell must be positive, got %d", p.UEsPerCell)
	}
	if p.DetachEvery < 0 {
		return fmt.Errorf("detach interval must not be negative, got %d", p.DetachEvery)
	}
	if p.Rounds <= 0 {
		return fmt.Errorf("rounds must be positive, got %d", p.Rounds)
	}
	return nil
}

type CellReport struct {
	CellIndex int
	Attempts  int
	Admitted  int
	Rejected  int
	Released  int
	Final     resmgr.PoolSnapshot
}

type Report struct {
	Cells []CellReport
}

// Totals sums the counters over all cells.
func (r *Report) Totals() CellReport {
	var t CellReport
	for _, c := range r.Cells {
		t.Attempts += c.Attempts
		t.Admitted += c.Admitted
		t.Rejected += c.Rejected
		t.Released += c.Released
	}
	return t
}

func (r *Report) Snapshots() []resmgr.PoolSnapshot {
	out := make([]resmgr.PoolSnapshot, 0, len(r.Cells))
	for _, c := range r.Cells {
		out = append(out, c.Final)
	}
	return out
}

type Runner struct {
	manager *resmgr.Manager
	plan    Plan
	logger  logrus.FieldLogger
	trace   *storage.SimulationTrace
}

func NewRunner(manager *resmgr.Manager, plan Plan, logger logrus.FieldLogger) (*Runner, error) {
	if manager == nil {
		return nil, errors.New("resource manager is nil")
	}
	if err := plan.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Runner{manager: manager, plan: plan, logger: logger}, nil
}

// WithTrace makes the runner record the pool state after every attach and
// detach into trace.
func (r *Runner) WithTrace(trace *storage.SimulationTrace) *Runner {
	r.trace = trace
	return r
}

// Run plays the plan on every cell of the manager, one goroutine per cell,
// and stops at the first error or when ctx is cancelled.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	cells := r.manager.Cells()
	if len(cells) == 0 {
		return nil, errors.New("no cells to simulate")
	}

	var (
		mu     sync.Mutex
		report Report
	)
	g, ctx := errgroup.WithContext(ctx)
	for _, cellIndex := range cells {
		g.Go(func() error {
			cr, err := r.runCell(ctx, cellIndex)
			if err != nil {
				return fmt.Errorf("cell %d: %w", cellIndex, err)
			}
			mu.Lock()
			report.Cells = append(report.Cells, cr)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	slices.SortFunc(report.Cells, func(a, b CellReport) int {
		return cmp.Compare(a.CellIndex, b.CellIndex)
	})
	return &report, nil
}

func (r *Runner) runCell(ctx context.Context, cellIndex int) (CellReport, error) {
	cr := CellReport{CellIndex: cellIndex}
	logger := r.logger.WithField("cell_index", cellIndex)

	var (
		live  []*resmgr.UECellConfig
		step  int
		round int
	)
	release := func() error {
		ue := live[0]
		live = live[1:]
		if err := r.manager.DeallocResources(ue); err != nil {
			return err
		}
		cr.Released++
		step++
		return r.record(cellIndex, storage.TraceEntry{
			Step: step, Round: round, Event: storage.EventDetach, UEIndex: ue.UEIndex,
		})
	}

	ueIndex := 0
	for round = 0; round < r.plan.Rounds; round++ {
		for i := 0; i < r.plan.UEsPerCell; i++ {
			if err := ctx.Err(); err != nil {
				return cr, err
			}
			ue, err := r.manager.DefaultUECellConfig(cellIndex, ueIndex)
			if err != nil {
				return cr, err
			}
			ueIndex++

			ok, err := r.manager.AllocResources(ue)
			if err != nil {
				return cr, err
			}
			cr.Attempts++
			if ok {
				cr.Admitted++
				live = append(live, ue)
			} else {
				cr.Rejected++
			}
			step++
			if err := r.record(cellIndex, storage.TraceEntry{
				Step: step, Round: round, Event: storage.EventAttach, UEIndex: ue.UEIndex, Admitted: ok,
			}); err != nil {
				return cr, err
			}

			if r.plan.DetachEvery > 0 && cr.Attempts%r.plan.DetachEvery == 0 && len(live) > 0 {
				if err := release(); err != nil {
					return cr, err
				}
			}
			if err := r.checkCapacity(cellIndex); err != nil {
				return cr, err
			}
		}

		if r.plan.Reattach {
			for len(live) > 0 {
				if err := release(); err != nil {
					return cr, err
				}
			}
		}
		logger.WithFields(logrus.Fields{
			"round":    round,
			"admitted": cr.Admitted,
			"rejected": cr.Rejected,
			"live":     len(live),
		}).Debug("Simulation round finished")
	}

	final, err := r.manager.Snapshot(cellIndex)
	if err != nil {
		return cr, err
	}
	cr.Final = final
	logger.WithFields(logrus.Fields{
		"attempts":        cr.Attempts,
		"admitted":        cr.Admitted,
		"rejected":        cr.Rejected,
		"released":        cr.Released,
		"max_slot_grants": final.MaxSlotGrants(),
	}).Info("Simulation finished")
	return cr, nil
}

func (r *Runner) record(cellIndex int, entry storage.TraceEntry) error {
	if r.trace == nil {
		return nil
	}
	snap, err := r.manager.Snapshot(cellIndex)
	if err != nil {
		return err
	}
	stats := snap.Stats()
	entry.LiveUEs = stats.LiveUEs
	entry.FreeSR = stats.FreeSR
	entry.FreeCSI = stats.FreeCSI
	entry.MaxSlotGrants = stats.MaxSlotGrants
	r.trace.Record(cellIndex, entry)
	return nil
}

// checkCapacity verifies that no slot of the cell exceeds the grant limit.
func (r *Runner) checkCapacity(cellIndex int) error {
	snap, err := r.manager.Snapshot(cellIndex)
	if err != nil {
		return err
	}
	for slot, n := range snap.Grants {
		if n > snap.MaxGrantsPerSlot {
			return fmt.Errorf("slot %d holds %d grants, limit is %d", slot, n, snap.MaxGrantsPerSlot)
		}
	}
	return nil
}
