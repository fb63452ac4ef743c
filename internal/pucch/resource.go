package pucch

import "fmt"

const nofSymbolsPerSlot = 14

// Resource is a cell-level PUCCH resource descriptor.
type Resource struct {
	ID          int
	Format      Format
	StartPRB    int
	NofPRBs     int
	StartSymbol int
	NofSymbols  int
	// SecondHopPRB is -1 when intra-slot frequency hopping is disabled.
	SecondHopPRB int
	// Format 0/1 cyclic shift, format 1 time-domain OCC and format 4 OCC index.
	InitialCyclicShift int
	TimeDomainOCC      int
	OCCIndex           int
}

func (r Resource) HasSecondHop() bool {
	return r.SecondHopPRB >= 0
}

func (r Resource) EndSymbol() int {
	return r.StartSymbol + r.NofSymbols
}

// OverlapsSymbols reports whether both resources share at least one OFDM symbol.
func (r Resource) OverlapsSymbols(o Resource) bool {
	return r.StartSymbol < o.EndSymbol() && o.StartSymbol < r.EndSymbol()
}

// BuildResourceList generates the default cell resource list. The list is
// laid out as [set-0 block][SR block][set-1 block][CSI block]; a resource's
// ID equals its position in the list.
func BuildResourceList(p BuilderParams) ([]Resource, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	l := p.Layout()

	low, lowPRBs := placeFamily(p.Set0, l.Set0Block+l.SRBlock, 0)
	high, highPRBs := placeFamily(p.Set1, l.Set1Block+l.CSIBlock, lowPRBs)

	usedPRBs := lowPRBs + highPRBs
	if hasIntraslotHopping(p.Set0) || hasIntraslotHopping(p.Set1) {
		if 2*usedPRBs > p.BWPSizePRBs {
			return nil, fmt.Errorf("PUCCH resources need %d PRBs per band edge, BWP has %d PRBs", usedPRBs, p.BWPSizePRBs)
		}
	} else if usedPRBs > p.BWPSizePRBs {
		return nil, fmt.Errorf("PUCCH resources need %d PRBs, BWP has %d PRBs", usedPRBs, p.BWPSizePRBs)
	}

	out := make([]Resource, 0, l.Total())
	out = append(out, low[:l.Set0Block]...)
	out = append(out, low[l.Set0Block:]...)
	out = append(out, high[:l.Set1Block]...)
	out = append(out, high[l.Set1Block:]...)
	for i := range out {
		out[i].ID = i
		if hasIntraslotHopping(formatParamsFor(p, out[i].Format)) {
			out[i].SecondHopPRB = p.BWPSizePRBs - out[i].StartPRB - out[i].NofPRBs
		}
	}
	return out, nil
}

func formatParamsFor(p BuilderParams, f Format) FormatParams {
	if p.Set0 != nil && p.Set0.Format() == f {
		return p.Set0
	}
	return p.Set1
}

// placeFamily stacks n resources of one format starting at firstPRB: first
// across the symbol positions (or code-domain multiplexing) a PRB block
// offers, then onto the next block. It returns the resources and the number
// of PRBs consumed.
func placeFamily(fp FormatParams, n int, firstPRB int) ([]Resource, int) {
	var (
		perBlock  int
		blockPRBs = 1
	)
	switch v := fp.(type) {
	case Format0Params:
		perBlock = nofSymbolsPerSlot / v.NofSymbols
	case Format1Params:
		occs := 1
		if v.OCC {
			occs = min(v.NofSymbols/2, 7)
		}
		perBlock = v.NofCyclicShifts * occs
	case Format2Params:
		perBlock = nofSymbolsPerSlot / v.NofSymbols
		blockPRBs = v.MaxNofPRBs
	case Format3Params:
		perBlock = 1
		blockPRBs = v.MaxNofPRBs
	case Format4Params:
		perBlock = v.OCCLength
	default:
		return nil, 0
	}

	out := make([]Resource, 0, n)
	for k := 0; k < n; k++ {
		block, within := k/perBlock, k%perBlock
		r := Resource{
			Format:       fp.Format(),
			StartPRB:     firstPRB + block*blockPRBs,
			NofPRBs:      blockPRBs,
			NofSymbols:   fp.Symbols(),
			StartSymbol:  nofSymbolsPerSlot - fp.Symbols(),
			SecondHopPRB: -1,
		}
		switch v := fp.(type) {
		case Format0Params, Format2Params:
			r.StartSymbol = nofSymbolsPerSlot - fp.Symbols()*(within+1)
		case Format1Params:
			r.InitialCyclicShift = (within % v.NofCyclicShifts) * (12 / v.NofCyclicShifts)
			r.TimeDomainOCC = within / v.NofCyclicShifts
		case Format4Params:
			r.OCCIndex = within
		}
		out = append(out, r)
	}
	blocks := (n + perBlock - 1) / perBlock
	return out, blocks * blockPRBs
}
