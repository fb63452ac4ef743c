package resmgr

import (
	"errors"
	"slices"
	"testing"

	"gnb-pucch/internal/csi"
	"gnb-pucch/internal/logging"
	"gnb-pucch/internal/pucch"
	"gnb-pucch/internal/tdd"
)

func testParams(srPeriod int) pucch.BuilderParams {
	return pucch.BuilderParams{
		BWPSizePRBs:          52,
		NofResSet0:           2,
		NofResSet1:           2,
		NofCellResSetConfigs: 1,
		NofSRResources:       1,
		NofCSIResources:      1,
		SRPeriodSlots:        srPeriod,
		Set0:                 pucch.Format1Params{NofSymbols: 14, NofCyclicShifts: 2},
		Set1:                 pucch.Format2Params{NofSymbols: 2, MaxNofPRBs: 2, MaxCodeRate: pucch.CodeRate0Dot35},
	}
}

func testCSI(rsPeriod, rsOffset, reportPeriod, ports int) *csi.MeasConfig {
	return &csi.MeasConfig{
		RSPeriodSlots: rsPeriod,
		RSOffsetSlots: rsOffset,
		Reports: []csi.ReportConfig{{
			PeriodSlots:       reportPeriod,
			PUCCHResourceID:   csi.NoPUCCHResource,
			Quantity:          csi.QuantityCRIRIPMICQI,
			NofPorts:          ports,
			NofCSIRSResources: 1,
		}},
	}
}

// singleULSlot is a 5-slot TDD pattern whose only uplink slot is slot 4.
func singleULSlot() *tdd.Pattern {
	return &tdd.Pattern{Pattern1: tdd.Period{PeriodSlots: 5, NofDLSlots: 4, NofULSlots: 1}}
}

func tddPattern(period, dlSlots, dlSymbols, ulSlots, ulSymbols int) *tdd.Pattern {
	return &tdd.Pattern{Pattern1: tdd.Period{
		PeriodSlots:  period,
		NofDLSlots:   dlSlots,
		NofDLSymbols: dlSymbols,
		NofULSlots:   ulSlots,
		NofULSymbols: ulSymbols,
	}}
}

func newTestManager(t *testing.T, maxGrants int) *Manager {
	t.Helper()
	m, err := NewManager(maxGrants, nil, logging.Discard())
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	return m
}

func addTestCell(t *testing.T, m *Manager, cellIndex int, cfg CellConfig) {
	t.Helper()
	if err := m.AddCell(cellIndex, cfg); err != nil {
		t.Fatalf("add cell %d: %v", cellIndex, err)
	}
}

func newUE(t *testing.T, m *Manager, cellIndex, ueIndex int) *UECellConfig {
	t.Helper()
	ue, err := m.DefaultUECellConfig(cellIndex, ueIndex)
	if err != nil {
		t.Fatalf("default ue config: %v", err)
	}
	return ue
}

func mustAlloc(t *testing.T, m *Manager, ue *UECellConfig) bool {
	t.Helper()
	ok, err := m.AllocResources(ue)
	if err != nil {
		t.Fatalf("alloc ue %d: %v", ue.UEIndex, err)
	}
	return ok
}

func mustSnapshot(t *testing.T, m *Manager, cellIndex int) PoolSnapshot {
	t.Helper()
	s, err := m.Snapshot(cellIndex)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	return s
}

type fakeObserver struct {
	allocOK     int
	allocFailed int
	deallocs    int
	removed     []int
	last        PoolStats
}

func (f *fakeObserver) AllocDone(_ int, ok bool) {
	if ok {
		f.allocOK++
	} else {
		f.allocFailed++
	}
}

func (f *fakeObserver) DeallocDone(int) { f.deallocs++ }

func (f *fakeObserver) PoolChanged(s PoolStats) { f.last = s }

func (f *fakeObserver) CellRemoved(cellIndex int) { f.removed = append(f.removed, cellIndex) }

func (l freeList) contains(v ResourceOffset) bool {
	_, found := slices.BinarySearchFunc(l, v, compareResourceOffset)
	return found
}

// failingAssembler builds cells like the default assembler but cannot produce
// UE configs.
type failingAssembler struct {
	pucch.Assembler
	calls int
}

func (a *failingAssembler) UEConfig(pucch.UEConfigRequest) (*pucch.Config, error) {
	a.calls++
	return nil, errors.New("assembler unavailable")
}

// shortListAssembler hands out a resource list missing its last entry while
// building the default config from the complete list.
type shortListAssembler struct {
	pucch.Assembler
}

func (shortListAssembler) ResourceList(p pucch.BuilderParams) ([]pucch.Resource, error) {
	res, err := pucch.BuildResourceList(p)
	if err != nil {
		return nil, err
	}
	return res[:len(res)-1], nil
}

func (a shortListAssembler) DefaultConfig(p pucch.BuilderParams, _ []pucch.Resource) (*pucch.Config, error) {
	res, err := pucch.BuildResourceList(p)
	if err != nil {
		return nil, err
	}
	return a.Assembler.DefaultConfig(p, res)
}
