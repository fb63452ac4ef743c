package resmgr

import (
	"errors"
	"sort"
	"testing"

	"gnb-pucch/internal/csi"
	"gnb-pucch/internal/logging"
	"gnb-pucch/internal/pucch"

	"github.com/google/go-cmp/cmp"
)

func TestManager_AddCellDuplicate(t *testing.T) {
	m := newTestManager(t, 4)
	addTestCell(t, m, 0, CellConfig{PUCCH: testParams(10)})

	err := m.AddCell(0, CellConfig{PUCCH: testParams(10)})
	var exists CellExistsError
	if !errors.As(err, &exists) || exists.CellIndex != 0 {
		t.Fatalf("expected CellExistsError, got %v", err)
	}
}

func TestManager_AddCellWithoutSRResources(t *testing.T) {
	m := newTestManager(t, 4)
	params := testParams(10)
	params.NofSRResources = 0
	if err := m.AddCell(0, CellConfig{PUCCH: params}); !errors.Is(err, ErrNoSRResources) {
		t.Fatalf("expected ErrNoSRResources, got %v", err)
	}
	if _, err := m.Snapshot(0); err == nil {
		t.Fatalf("failed AddCell must not leave a pool behind")
	}
}

func TestManager_AddCellCSIWithoutCSIResources(t *testing.T) {
	m := newTestManager(t, 4)
	params := testParams(10)
	params.NofCSIResources = 0
	err := m.AddCell(0, CellConfig{PUCCH: params, CSIMeas: testCSI(20, 2, 20, 2)})
	if !errors.Is(err, ErrNoCSIResources) {
		t.Fatalf("expected ErrNoCSIResources, got %v", err)
	}
}

func TestManager_AddCellRejectsShortResourceList(t *testing.T) {
	m, err := NewManager(4, shortListAssembler{}, logging.Discard())
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	if err := m.AddCell(0, CellConfig{PUCCH: testParams(10), CSIMeas: testCSI(20, 2, 20, 2)}); err == nil {
		t.Fatalf("expected AddCell to reject a resource list shorter than the layout")
	}
	if _, err := m.Snapshot(0); err == nil {
		t.Fatalf("failed AddCell must not leave a pool behind")
	}
}

func TestManager_AssemblerFailureRollsBack(t *testing.T) {
	asm := &failingAssembler{}
	m, err := NewManager(4, asm, logging.Discard())
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	addTestCell(t, m, 0, CellConfig{PUCCH: testParams(10), CSIMeas: testCSI(20, 2, 20, 2)})
	before := mustSnapshot(t, m, 0)

	for attempt := 0; attempt < 2; attempt++ {
		ue := newUE(t, m, 0, attempt)
		ok, err := m.AllocResources(ue)
		if err == nil || ok {
			t.Fatalf("attempt %d: expected assembler error, got ok=%v err=%v", attempt, ok, err)
		}
		if ue.PUCCH != nil {
			t.Fatalf("attempt %d: PUCCH config set after failed assembly", attempt)
		}
		if ue.CSIMeas.Reports[0].PUCCHResourceID != csi.NoPUCCHResource {
			t.Fatalf("attempt %d: CSI report points at resource %d", attempt, ue.CSIMeas.Reports[0].PUCCHResourceID)
		}
		after := mustSnapshot(t, m, 0)
		if diff := cmp.Diff(before, after); diff != "" {
			t.Fatalf("attempt %d: pool not restored (-before +after):\n%s", attempt, diff)
		}
	}
	if asm.calls != 2 {
		t.Fatalf("expected 2 assembler calls, got %d", asm.calls)
	}
}

func TestManager_RemCellUnknown(t *testing.T) {
	m := newTestManager(t, 4)
	var nf CellNotFoundError
	if err := m.RemCell(3); !errors.As(err, &nf) || nf.CellIndex != 3 {
		t.Fatalf("expected CellNotFoundError for cell 3, got %v", err)
	}
}

func TestManager_RemCellThenAddAgain(t *testing.T) {
	m := newTestManager(t, 4)
	obs := &fakeObserver{}
	m.SetObserver(obs)
	addTestCell(t, m, 1, CellConfig{PUCCH: testParams(10)})
	if err := m.RemCell(1); err != nil {
		t.Fatalf("rem cell: %v", err)
	}
	if len(obs.removed) != 1 || obs.removed[0] != 1 {
		t.Fatalf("observer removed=%v", obs.removed)
	}
	addTestCell(t, m, 1, CellConfig{PUCCH: testParams(10)})
	if got := m.Cells(); len(got) != 1 || got[0] != 1 {
		t.Fatalf("cells=%v", got)
	}
}

func TestManager_AllocUnknownCell(t *testing.T) {
	m := newTestManager(t, 4)
	_, err := m.AllocResources(&UECellConfig{CellIndex: 7})
	var nf CellNotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected CellNotFoundError, got %v", err)
	}
	if err := m.DeallocResources(&UECellConfig{CellIndex: 7}); !errors.As(err, &nf) {
		t.Fatalf("expected CellNotFoundError on dealloc, got %v", err)
	}
}

func TestManager_AllocTwiceRejected(t *testing.T) {
	m := newTestManager(t, 4)
	addTestCell(t, m, 0, CellConfig{PUCCH: testParams(10)})
	ue := newUE(t, m, 0, 0)
	if !mustAlloc(t, m, ue) {
		t.Fatalf("first alloc failed")
	}
	if _, err := m.AllocResources(ue); !errors.Is(err, ErrAlreadyAllocated) {
		t.Fatalf("expected ErrAlreadyAllocated, got %v", err)
	}
}

func TestManager_AllocCSIOnCellWithoutCSI(t *testing.T) {
	m := newTestManager(t, 4)
	addTestCell(t, m, 0, CellConfig{PUCCH: testParams(10)})
	ue := newUE(t, m, 0, 0)
	ue.CSIMeas = testCSI(20, 2, 20, 2)
	if _, err := m.AllocResources(ue); !errors.Is(err, ErrCSIDisabled) {
		t.Fatalf("expected ErrCSIDisabled, got %v", err)
	}
}

// Ten SR offsets, one grant per slot: ten UEs fit, the eleventh does not.
func TestManager_SROnlyFillsEveryOffset(t *testing.T) {
	m := newTestManager(t, 1)
	addTestCell(t, m, 0, CellConfig{PUCCH: testParams(10)})

	var offsets []int
	for i := 0; i < 10; i++ {
		ue := newUE(t, m, 0, i)
		if !mustAlloc(t, m, ue) {
			t.Fatalf("alloc %d failed", i)
		}
		offsets = append(offsets, ue.PUCCH.SR[0].OffsetSlots)
	}
	sort.Ints(offsets)
	for i, off := range offsets {
		if off != i {
			t.Fatalf("offsets=%v, want 0..9", offsets)
		}
	}

	ue := newUE(t, m, 0, 10)
	if mustAlloc(t, m, ue) {
		t.Fatalf("eleventh alloc should fail")
	}
	if ue.PUCCH != nil {
		t.Fatalf("failed alloc must leave PUCCH disabled")
	}
}

// A second SR resource adds pairs but not slot capacity.
func TestManager_GrantLimitBindsBeforeFreeList(t *testing.T) {
	m := newTestManager(t, 1)
	params := testParams(10)
	params.NofSRResources = 2
	addTestCell(t, m, 0, CellConfig{PUCCH: params})

	for i := 0; i < 10; i++ {
		if !mustAlloc(t, m, newUE(t, m, 0, i)) {
			t.Fatalf("alloc %d failed", i)
		}
	}
	if mustAlloc(t, m, newUE(t, m, 0, 10)) {
		t.Fatalf("alloc beyond slot capacity should fail")
	}
	snap := mustSnapshot(t, m, 0)
	if len(snap.FreeSR) != 10 {
		t.Fatalf("free SR pairs=%d, want 10", len(snap.FreeSR))
	}
}

func TestManager_AllocWritesPUCCHConfig(t *testing.T) {
	m := newTestManager(t, 4)
	params := testParams(10)
	addTestCell(t, m, 0, CellConfig{PUCCH: params, CSIMeas: testCSI(20, 2, 20, 2)})

	ue := newUE(t, m, 0, 0)
	if !mustAlloc(t, m, ue) {
		t.Fatalf("alloc failed")
	}
	l := params.Layout()
	sr := ue.PUCCH.SR[0]
	if sr.PUCCHResourceID != l.SRResourceID(0) || sr.PeriodSlots != 10 {
		t.Fatalf("sr=%+v", sr)
	}
	report := ue.CSIMeas.Reports[0]
	if report.PUCCHResourceID != l.CSIResourceID(0) {
		t.Fatalf("csi resource=%d want %d", report.PUCCHResourceID, l.CSIResourceID(0))
	}
	if _, ok := ue.PUCCH.Resource(report.PUCCHResourceID); !ok {
		t.Fatalf("CSI resource missing from UE resource list")
	}
	if got, want := ue.PUCCH.MaxPayloadBits[pucch.Format2], pucch.MaxPayloadBits(params.Set1); got != want {
		t.Fatalf("format 2 max payload=%d want %d", got, want)
	}
	if got := ue.PUCCH.MaxPayloadBits[pucch.Format1]; got != 2 {
		t.Fatalf("format 1 max payload=%d want 2", got)
	}
}

// CSI-RS every 20 slots at offset 2: the report four slots later (offset 6)
// beats offsets 5 and 19.
func TestManager_CSIOffsetFollowsCSIRS(t *testing.T) {
	m := newTestManager(t, 4)
	addTestCell(t, m, 0, CellConfig{PUCCH: testParams(10), CSIMeas: testCSI(20, 2, 20, 2)})

	ue := newUE(t, m, 0, 0)
	if !mustAlloc(t, m, ue) {
		t.Fatalf("alloc failed")
	}
	if got := ue.CSIMeas.Reports[0].OffsetSlots; got != 6 {
		t.Fatalf("csi offset=%d want 6", got)
	}
	if got := ue.PUCCH.SR[0].OffsetSlots; got != 0 {
		t.Fatalf("sr offset=%d want 0", got)
	}

	snap := mustSnapshot(t, m, 0)
	if snap.LCMPeriodSlots != 20 {
		t.Fatalf("lcm=%d want 20", snap.LCMPeriodSlots)
	}
	for slot, n := range snap.Grants {
		want := 0
		if slot == 0 || slot == 6 || slot == 10 {
			want = 1
		}
		if n != want {
			t.Fatalf("grants=%v", snap.Grants)
		}
	}
}

// With one uplink slot per TDD period, SR and CSI must share it. The
// collision is tolerated and the slot is counted once.
func TestManager_SharedSlotCountedOnce(t *testing.T) {
	m := newTestManager(t, 4)
	addTestCell(t, m, 0, CellConfig{PUCCH: testParams(5), CSIMeas: testCSI(5, 0, 5, 2), TDD: singleULSlot()})

	ue := newUE(t, m, 0, 0)
	if !mustAlloc(t, m, ue) {
		t.Fatalf("alloc failed")
	}
	if ue.PUCCH.SR[0].OffsetSlots != 4 || ue.CSIMeas.Reports[0].OffsetSlots != 4 {
		t.Fatalf("sr=%d csi=%d, want both 4", ue.PUCCH.SR[0].OffsetSlots, ue.CSIMeas.Reports[0].OffsetSlots)
	}
	snap := mustSnapshot(t, m, 0)
	if snap.Grants[4] != 1 {
		t.Fatalf("shared slot grants=%d want 1", snap.Grants[4])
	}
}

// Four ports need 11 part-1 bits; with the SR bit that overflows a
// single-symbol, single-PRB format 2 resource.
func TestManager_PayloadGateRejectsSharedSlotOverflow(t *testing.T) {
	m := newTestManager(t, 4)
	params := testParams(5)
	params.Set1 = pucch.Format2Params{NofSymbols: 1, MaxNofPRBs: 1, MaxCodeRate: pucch.CodeRate0Dot80}
	addTestCell(t, m, 0, CellConfig{PUCCH: params, CSIMeas: testCSI(5, 0, 5, 4), TDD: singleULSlot()})

	if got := pucch.MaxPayloadBits(params.Set1); got != 11 {
		t.Fatalf("test assumes an 11-bit resource, got %d", got)
	}
	ue := newUE(t, m, 0, 0)
	if mustAlloc(t, m, ue) {
		t.Fatalf("alloc should fail on payload")
	}
	snap := mustSnapshot(t, m, 0)
	if len(snap.FreeSR) != 1 || len(snap.FreeCSI) != 1 || snap.MaxSlotGrants() != 0 {
		t.Fatalf("failed alloc changed the pool: %+v", snap)
	}
}

func TestManager_NonOverlappingF0F2PairingRejected(t *testing.T) {
	m := newTestManager(t, 4)
	params := testParams(5)
	params.Set0 = pucch.Format0Params{NofSymbols: 2}
	params.NofResSet1 = 3
	addTestCell(t, m, 0, CellConfig{PUCCH: params, CSIMeas: testCSI(5, 0, 5, 2)})

	resources, err := pucch.BuildResourceList(params)
	if err != nil {
		t.Fatalf("build resources: %v", err)
	}
	l := params.Layout()
	if resources[l.SRResourceID(0)].OverlapsSymbols(resources[l.CSIResourceID(0)]) {
		t.Fatalf("test assumes SR and CSI resources on different symbols")
	}
	if mustAlloc(t, m, newUE(t, m, 0, 0)) {
		t.Fatalf("F0 SR with a non-overlapping F2 CSI resource should not be chosen")
	}
}

func TestManager_DeallocTwiceIsNoop(t *testing.T) {
	m := newTestManager(t, 4)
	addTestCell(t, m, 0, CellConfig{PUCCH: testParams(10), CSIMeas: testCSI(20, 2, 20, 2)})
	ue := newUE(t, m, 0, 0)
	if !mustAlloc(t, m, ue) {
		t.Fatalf("alloc failed")
	}
	if err := m.DeallocResources(ue); err != nil {
		t.Fatalf("dealloc: %v", err)
	}
	after := mustSnapshot(t, m, 0)
	if err := m.DeallocResources(ue); err != nil {
		t.Fatalf("second dealloc: %v", err)
	}
	again := mustSnapshot(t, m, 0)
	for slot, n := range again.Grants {
		if n != 0 || after.Grants[slot] != 0 {
			t.Fatalf("grants after double dealloc=%v", again.Grants)
		}
	}
	if len(again.FreeSR) != len(after.FreeSR) || len(again.FreeCSI) != len(after.FreeCSI) {
		t.Fatalf("second dealloc changed free lists")
	}
	if ue.CSIMeas.Reports[0].PUCCHResourceID != csi.NoPUCCHResource {
		t.Fatalf("CSI report still points at a PUCCH resource")
	}
}

func TestManager_DeallocForeignPairPanics(t *testing.T) {
	m := newTestManager(t, 4)
	addTestCell(t, m, 0, CellConfig{PUCCH: testParams(10)})
	ue := newUE(t, m, 0, 0)
	if !mustAlloc(t, m, ue) {
		t.Fatalf("alloc failed")
	}
	// A copy of the config lets the same pair be returned twice.
	clone := &UECellConfig{CellIndex: 0, UEIndex: 1, PUCCH: ue.PUCCH.Clone()}
	if err := m.DeallocResources(ue); err != nil {
		t.Fatalf("dealloc: %v", err)
	}
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic on desynchronised release")
		}
	}()
	_ = m.DeallocResources(clone)
}

func TestManager_TDDSkipsDownlinkOffsets(t *testing.T) {
	m := newTestManager(t, 4)
	addTestCell(t, m, 0, CellConfig{PUCCH: testParams(20), TDD: tddPattern(10, 6, 8, 3, 4)})

	snap := mustSnapshot(t, m, 0)
	var offsets []int
	for _, p := range snap.FreeSR {
		offsets = append(offsets, p.Offset)
	}
	want := []int{6, 7, 8, 9, 16, 17, 18, 19}
	if len(offsets) != len(want) {
		t.Fatalf("offsets=%v want %v", offsets, want)
	}
	for i := range want {
		if offsets[i] != want[i] {
			t.Fatalf("offsets=%v want %v", offsets, want)
		}
	}
}

func TestManager_TDDSkipsOffsetsWithDownlinkOccasions(t *testing.T) {
	m := newTestManager(t, 4)
	// UL slots 1..3 of every 4; with SR period 10 an offset and the occasion
	// 10 slots later sit on different TDD slots.
	addTestCell(t, m, 0, CellConfig{PUCCH: testParams(10), TDD: tddPattern(4, 1, 0, 3, 0)})

	snap := mustSnapshot(t, m, 0)
	var offsets []int
	for _, p := range snap.FreeSR {
		offsets = append(offsets, p.Offset)
	}
	if diff := cmp.Diff([]int{1, 3, 5, 7, 9}, offsets); diff != "" {
		t.Fatalf("unexpected SR offsets (-want +got):\n%s", diff)
	}
}

func TestManager_ObserverSeesOutcomes(t *testing.T) {
	m := newTestManager(t, 1)
	obs := &fakeObserver{}
	m.SetObserver(obs)
	addTestCell(t, m, 0, CellConfig{PUCCH: testParams(1)})

	ue := newUE(t, m, 0, 0)
	mustAlloc(t, m, ue)
	mustAlloc(t, m, newUE(t, m, 0, 1))
	if obs.allocOK != 1 || obs.allocFailed != 1 {
		t.Fatalf("ok=%d failed=%d", obs.allocOK, obs.allocFailed)
	}
	if obs.last.LiveUEs != 1 || obs.last.MaxSlotGrants != 1 {
		t.Fatalf("stats=%+v", obs.last)
	}
	if err := m.DeallocResources(ue); err != nil {
		t.Fatalf("dealloc: %v", err)
	}
	if obs.deallocs != 1 || obs.last.LiveUEs != 0 || obs.last.FreeSR != 1 {
		t.Fatalf("deallocs=%d stats=%+v", obs.deallocs, obs.last)
	}
}
