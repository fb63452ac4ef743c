package resmgr

import "testing"

func testPool(t *testing.T, m *Manager, cellIndex int) *cellPool {
	t.Helper()
	pool, err := m.cell(cellIndex)
	if err != nil {
		t.Fatalf("cell: %v", err)
	}
	return pool
}

func TestCSIWeight_PrefersReportShortlyAfterCSIRS(t *testing.T) {
	m := newTestManager(t, 4)
	meas := testCSI(20, 2, 20, 2)
	addTestCell(t, m, 0, CellConfig{PUCCH: testParams(10), CSIMeas: meas})
	p := testPool(t, m, 0)

	sr := ResourceOffset{Ordinal: 0, Offset: 0}
	srRes := p.resources[p.layout.SRResourceID(0)]
	weight := func(offset int) int {
		return p.csiWeight(ResourceOffset{Ordinal: 0, Offset: offset}, sr, srRes, meas)
	}

	if w := weight(6); w != 0 {
		t.Fatalf("weight(6)=%d want 0", w)
	}
	if weight(6) >= weight(5) || weight(6) >= weight(19) {
		t.Fatalf("weight(6)=%d weight(5)=%d weight(19)=%d", weight(6), weight(5), weight(19))
	}
	// Offset 10 repeats onto the SR slot 10.
	if w := weight(10); w != 4+20 {
		t.Fatalf("weight(10)=%d want %d", w, 4+20)
	}
}

func TestCSIWeight_GrantLimitMarksInfeasible(t *testing.T) {
	m := newTestManager(t, 3)
	meas := testCSI(20, 2, 20, 2)
	addTestCell(t, m, 0, CellConfig{PUCCH: testParams(10), CSIMeas: meas})
	p := testPool(t, m, 0)

	sr := ResourceOffset{Ordinal: 0, Offset: 1}
	srRes := p.resources[p.layout.SRResourceID(0)]
	p.grants[6] = 2
	if w := p.csiWeight(ResourceOffset{Offset: 6}, sr, srRes, meas); w < 2*meas.RSPeriodSlots {
		t.Fatalf("weight=%d should carry the infeasibility marker", w)
	}

	idx, ok := p.findOptimalCSIOffset(sr, srRes, meas)
	if !ok {
		t.Fatalf("another offset should still be feasible")
	}
	if got := p.csiFree[idx].Offset; got != 7 {
		t.Fatalf("picked offset %d want 7", got)
	}
}

func TestFindOptimalCSIOffset_AllSaturated(t *testing.T) {
	m := newTestManager(t, 2)
	meas := testCSI(20, 2, 20, 2)
	addTestCell(t, m, 0, CellConfig{PUCCH: testParams(10), CSIMeas: meas})
	p := testPool(t, m, 0)
	for i := range p.grants {
		p.grants[i] = 1
	}
	srRes := p.resources[p.layout.SRResourceID(0)]
	if _, ok := p.findOptimalCSIOffset(ResourceOffset{}, srRes, meas); ok {
		t.Fatalf("expected no feasible CSI offset")
	}
}

func TestCombinedUCIBits(t *testing.T) {
	m := newTestManager(t, 4)
	meas := testCSI(20, 2, 20, 2)
	addTestCell(t, m, 0, CellConfig{PUCCH: testParams(10), CSIMeas: meas})
	p := testPool(t, m, 0)

	// 2 ports: RI 1 + PMI 2 + CQI 4.
	if got := p.combinedUCIBits(6, 0, meas); got != 7 {
		t.Fatalf("separate slots: %d bits want 7", got)
	}
	if got := p.combinedUCIBits(10, 0, meas); got != 8 {
		t.Fatalf("shared slot: %d bits want 8", got)
	}
}

func TestFreeList_InsertRestoresOrder(t *testing.T) {
	l := buildFreeList(2, 3, nil)
	orig := append(freeList(nil), l...)
	v := l.removeAt(4)
	if v != (ResourceOffset{Ordinal: 1, Offset: 1}) {
		t.Fatalf("removed %+v", v)
	}
	if l.contains(v) {
		t.Fatalf("removed pair still present")
	}
	if !l.insert(v) {
		t.Fatalf("insert failed")
	}
	if l.insert(v) {
		t.Fatalf("double insert should fail")
	}
	for i := range orig {
		if l[i] != orig[i] {
			t.Fatalf("list=%v want %v", l, orig)
		}
	}
}

func TestLCM(t *testing.T) {
	cases := []struct{ a, b, want int }{
		{10, 20, 20}, {8, 5, 40}, {16, 10, 80}, {5, 4, 20}, {320, 160, 320}, {1, 64, 64},
	}
	for _, tc := range cases {
		if got := lcm(tc.a, tc.b); got != tc.want {
			t.Fatalf("lcm(%d,%d)=%d want %d", tc.a, tc.b, got, tc.want)
		}
	}
}
