package resmgr

import (
	"gnb-pucch/internal/csi"
	"gnb-pucch/internal/pucch"
)

// minCSIRSReportDistance is the minimum number of slots between a CSI-RS and
// the CSI report that measures it, covering UE processing time.
const minCSIRSReportDistance = 4

// csiWeight scores CSI candidate cand for SR candidate sr; lower is better.
// The base term prefers reports shortly after the CSI-RS. A same-slot SR
// collision costs one CSI-RS period; reaching the grant limit costs two,
// which no feasible candidate can.
func (p *cellPool) csiWeight(cand, sr ResourceOffset, srRes pucch.Resource, meas *csi.MeasConfig) int {
	rsPeriod := meas.RSPeriodSlots
	base := mod(rsPeriod+cand.Offset-meas.RSOffsetSlots-minCSIRSReportDistance, rsPeriod)

	csiRes := p.resources[p.layout.CSIResourceID(cand.Ordinal)]
	if srRes.Format == pucch.Format0 && csiRes.Format == pucch.Format2 && !srRes.OverlapsSymbols(csiRes) {
		return base + 2*rsPeriod
	}

	weight := base
	if p.csiCollidesWithSR(cand.Offset, sr.Offset) {
		weight += rsPeriod
	}
	if !p.csiFits(cand.Offset) {
		weight += 2 * rsPeriod
	}
	return weight
}

// findOptimalCSIOffset returns the index in the CSI free list of the
// lowest-weight candidate, or false if even that one is infeasible. Ties go
// to the earlier entry.
func (p *cellPool) findOptimalCSIOffset(sr ResourceOffset, srRes pucch.Resource, meas *csi.MeasConfig) (int, bool) {
	best, bestWeight := -1, 0
	for i, cand := range p.csiFree {
		w := p.csiWeight(cand, sr, srRes, meas)
		if best < 0 || w < bestWeight {
			best, bestWeight = i, w
		}
	}
	if best < 0 || bestWeight >= 2*meas.RSPeriodSlots {
		return -1, false
	}
	return best, true
}

// selectCSIOffset runs the selector and then checks that SR plus CSI part 1
// fit the CSI resource's payload when both land in the same slot. A payload
// failure is final for this SR candidate; the runner-up is not tried.
func (p *cellPool) selectCSIOffset(sr ResourceOffset, srRes pucch.Resource, meas *csi.MeasConfig) (int, bool) {
	idx, ok := p.findOptimalCSIOffset(sr, srRes, meas)
	if !ok {
		return -1, false
	}
	cand := p.csiFree[idx]
	if p.combinedUCIBits(cand.Offset, sr.Offset, meas) > p.csiMaxPayload(cand) {
		return -1, false
	}
	return idx, true
}

// combinedUCIBits is the UCI carried on the CSI resource: CSI part 1 plus one
// SR bit when the SR shares the slot.
func (p *cellPool) combinedUCIBits(csiOffset, srOffset int, meas *csi.MeasConfig) int {
	bits := csi.Part1Bits(meas.Reports[0])
	if p.csiCollidesWithSR(csiOffset, srOffset) {
		bits++
	}
	return bits
}

func (p *cellPool) csiMaxPayload(cand ResourceOffset) int {
	csiRes := p.resources[p.layout.CSIResourceID(cand.Ordinal)]
	fp, ok := p.defaultCfg.ParamsFor(csiRes.Format)
	if !ok {
		return 0
	}
	return pucch.MaxPayloadBits(fp)
}

func mod(a, n int) int {
	return ((a % n) + n) % n
}
