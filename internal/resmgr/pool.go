package resmgr

import (
	"fmt"
	"slices"
	"sync"

	"gnb-pucch/internal/csi"
	"gnb-pucch/internal/pucch"
	"gnb-pucch/internal/tdd"
)

// CellConfig is the static configuration a cell's pool is built from.
type CellConfig struct {
	PUCCH pucch.BuilderParams
	// CSIMeas is nil when periodic CSI is disabled in the cell.
	CSIMeas *csi.MeasConfig
	// TDD is nil for FDD cells; offsets landing on slots without uplink
	// symbols are never handed out.
	TDD *tdd.Pattern
}

// cellPool is the per-cell allocation state. A UE's reservation itself lives
// in its UECellConfig; the pool only tracks what is free and how loaded each
// slot is.
type cellPool struct {
	mu sync.Mutex

	index      int
	maxGrants  int
	params     pucch.BuilderParams
	layout     pucch.Layout
	resources  []pucch.Resource
	defaultCfg *pucch.Config
	csiMeas    *csi.MeasConfig

	srPeriod  int
	csiPeriod int // 0 when CSI is disabled
	lcmPeriod int

	// grants[i] counts committed UEs whose SR or CSI occasions hit slot i
	// of the lcmPeriod window.
	grants  []int
	srFree  freeList
	csiFree freeList

	ueCounter int
	liveUEs   int
}

// reservation is what one successful allocation takes out of the pool.
type reservation struct {
	sr      ResourceOffset
	csi     ResourceOffset
	withCSI bool
}

func newCellPool(index int, cfg CellConfig, maxGrants int, assembler ConfigAssembler) (*cellPool, error) {
	resources, err := assembler.ResourceList(cfg.PUCCH)
	if err != nil {
		return nil, fmt.Errorf("failed to build PUCCH resource list: %w", err)
	}
	defaultCfg, err := assembler.DefaultConfig(cfg.PUCCH, resources)
	if err != nil {
		return nil, fmt.Errorf("failed to build default PUCCH config: %w", err)
	}
	if defaultCfg == nil || len(defaultCfg.SR) == 0 {
		return nil, ErrNoSRResources
	}

	layout := cfg.PUCCH.Layout()
	if len(resources) < layout.Total() {
		return nil, fmt.Errorf("resource list holds %d resources, layout needs %d", len(resources), layout.Total())
	}

	p := &cellPool{
		index:      index,
		maxGrants:  maxGrants,
		params:     cfg.PUCCH,
		layout:     layout,
		resources:  resources,
		defaultCfg: defaultCfg,
		srPeriod:   defaultCfg.SR[0].PeriodSlots,
	}
	if p.srPeriod <= 0 {
		return nil, fmt.Errorf("invalid SR period %d", p.srPeriod)
	}

	if cfg.CSIMeas != nil {
		if err := cfg.CSIMeas.Validate(); err != nil {
			return nil, fmt.Errorf("invalid CSI meas config: %w", err)
		}
		if p.layout.CSIBlock == 0 {
			return nil, ErrNoCSIResources
		}
		p.csiMeas = cfg.CSIMeas.Clone()
		p.csiPeriod = p.csiMeas.Reports[0].PeriodSlots
	}
	if cfg.TDD != nil {
		if err := cfg.TDD.Validate(); err != nil {
			return nil, fmt.Errorf("invalid TDD pattern: %w", err)
		}
	}

	// lcm(x, 0) is undefined; without CSI the window is the SR period.
	p.lcmPeriod = p.srPeriod
	if p.csiPeriod > 0 {
		p.lcmPeriod = lcm(p.srPeriod, p.csiPeriod)
	}
	p.grants = make([]int, p.lcmPeriod)

	p.srFree = buildFreeList(p.layout.SRBlock, p.srPeriod, cfg.TDD)
	if p.csiPeriod > 0 {
		p.csiFree = buildFreeList(p.layout.CSIBlock, p.csiPeriod, cfg.TDD)
	}
	return p, nil
}

func buildFreeList(nofResources, period int, pattern *tdd.Pattern) freeList {
	out := make(freeList, 0, nofResources*period)
	for ord := 0; ord < nofResources; ord++ {
		for offset := 0; offset < period; offset++ {
			if !uplinkOnEveryOccasion(offset, period, pattern) {
				continue
			}
			out = append(out, ResourceOffset{Ordinal: ord, Offset: offset})
		}
	}
	return out
}

// uplinkOnEveryOccasion reports whether every occasion offset + k*period
// lands on a slot with uplink symbols. Occasions repeat relative to the TDD
// pattern after lcm(period, TDD period) slots.
func uplinkOnEveryOccasion(offset, period int, pattern *tdd.Pattern) bool {
	if pattern == nil {
		return true
	}
	window := lcm(period, pattern.TotalPeriodSlots())
	for s := offset; s < window; s += period {
		if !pattern.HasActiveULSymbols(s) {
			return false
		}
	}
	return true
}

// srFits reports whether every SR occasion of offset still has a free grant.
func (p *cellPool) srFits(offset int) bool {
	for s := offset; s < p.lcmPeriod; s += p.srPeriod {
		if p.grants[s] >= p.maxGrants {
			return false
		}
	}
	return true
}

// csiFits reports whether no CSI occasion of offset would reach the grant limit.
func (p *cellPool) csiFits(offset int) bool {
	for s := offset; s < p.lcmPeriod; s += p.csiPeriod {
		if p.grants[s]+1 >= p.maxGrants {
			return false
		}
	}
	return true
}

// csiCollidesWithSR reports whether a CSI occasion of csiOffset falls on a
// slot that also carries an SR occasion of srOffset.
func (p *cellPool) csiCollidesWithSR(csiOffset, srOffset int) bool {
	for s := csiOffset; s < p.lcmPeriod; s += p.csiPeriod {
		if s%p.srPeriod == srOffset {
			return true
		}
	}
	return false
}

// touchedSlots returns the union of the SR and CSI occasions of r within the
// lcmPeriod window, each slot once.
func (p *cellPool) touchedSlots(r reservation) []int {
	touched := make([]bool, p.lcmPeriod)
	for s := r.sr.Offset; s < p.lcmPeriod; s += p.srPeriod {
		touched[s] = true
	}
	if r.withCSI {
		for s := r.csi.Offset; s < p.lcmPeriod; s += p.csiPeriod {
			touched[s] = true
		}
	}
	out := make([]int, 0, len(touched))
	for s, t := range touched {
		if t {
			out = append(out, s)
		}
	}
	return out
}

func (p *cellPool) commitGrants(r reservation) {
	for _, s := range p.touchedSlots(r) {
		p.grants[s]++
		if p.grants[s] > p.maxGrants {
			panic(fmt.Sprintf("cell %d: slot %d holds %d PUCCH grants, limit is %d", p.index, s, p.grants[s], p.maxGrants))
		}
	}
}

func (p *cellPool) releaseGrants(r reservation) {
	for _, s := range p.touchedSlots(r) {
		if p.grants[s] == 0 {
			panic(fmt.Sprintf("cell %d: releasing a PUCCH grant from empty slot %d", p.index, s))
		}
		p.grants[s]--
	}
}

// reserve searches the SR free list first-fit and, when CSI is required, pairs
// each feasible SR candidate with the selector's CSI choice. On success the
// pairs are removed from the free lists and the grant counters updated.
func (p *cellPool) reserve(meas *csi.MeasConfig) (reservation, bool) {
	if len(p.srFree) == 0 || (meas != nil && len(p.csiFree) == 0) {
		return reservation{}, false
	}
	for i, sr := range p.srFree {
		if !p.srFits(sr.Offset) {
			continue
		}
		if meas == nil {
			p.srFree.removeAt(i)
			r := reservation{sr: sr}
			p.commitGrants(r)
			return r, true
		}
		srRes := p.resources[p.layout.SRResourceID(sr.Ordinal)]
		j, ok := p.selectCSIOffset(sr, srRes, meas)
		if !ok {
			continue
		}
		r := reservation{sr: sr, csi: p.csiFree[j], withCSI: true}
		p.csiFree.removeAt(j)
		p.srFree.removeAt(i)
		p.commitGrants(r)
		return r, true
	}
	return reservation{}, false
}

// release returns r to the pool. A pair that is already free means the pool
// and the UE configuration disagree, which has no recovery.
func (p *cellPool) release(r reservation) {
	if !p.srFree.insert(r.sr) {
		panic(fmt.Sprintf("cell %d: SR pair %+v released twice", p.index, r.sr))
	}
	if r.withCSI && !p.csiFree.insert(r.csi) {
		panic(fmt.Sprintf("cell %d: CSI pair %+v released twice", p.index, r.csi))
	}
	p.releaseGrants(r)
}

// PoolSnapshot is a copy of a cell pool's bookkeeping.
type PoolSnapshot struct {
	CellIndex        int
	SRPeriodSlots    int
	CSIPeriodSlots   int
	LCMPeriodSlots   int
	MaxGrantsPerSlot int
	Grants           []int
	FreeSR           []ResourceOffset
	FreeCSI          []ResourceOffset
	UECounter        int
	LiveUEs          int
}

// MaxSlotGrants returns the highest per-slot grant count.
func (s PoolSnapshot) MaxSlotGrants() int {
	if len(s.Grants) == 0 {
		return 0
	}
	return slices.Max(s.Grants)
}

func (p *cellPool) snapshot() PoolSnapshot {
	return PoolSnapshot{
		CellIndex:        p.index,
		SRPeriodSlots:    p.srPeriod,
		CSIPeriodSlots:   p.csiPeriod,
		LCMPeriodSlots:   p.lcmPeriod,
		MaxGrantsPerSlot: p.maxGrants,
		Grants:           slices.Clone(p.grants),
		FreeSR:           slices.Clone([]ResourceOffset(p.srFree)),
		FreeCSI:          slices.Clone([]ResourceOffset(p.csiFree)),
		UECounter:        p.ueCounter,
		LiveUEs:          p.liveUEs,
	}
}

// Stats condenses the snapshot into what observers are told.
func (s PoolSnapshot) Stats() PoolStats {
	return PoolStats{
		CellIndex:     s.CellIndex,
		FreeSR:        len(s.FreeSR),
		FreeCSI:       len(s.FreeCSI),
		LiveUEs:       s.LiveUEs,
		MaxSlotGrants: s.MaxSlotGrants(),
	}
}

func (p *cellPool) stats() PoolStats {
	return PoolStats{
		CellIndex:     p.index,
		FreeSR:        len(p.srFree),
		FreeCSI:       len(p.csiFree),
		LiveUEs:       p.liveUEs,
		MaxSlotGrants: slices.Max(p.grants),
	}
}

func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

func lcm(a, b int) int {
	return a / gcd(a, b) * b
}
