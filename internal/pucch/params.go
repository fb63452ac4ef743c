package pucch

import (
	"errors"
	"fmt"
	"slices"
)

var validSRPeriods = []int{1, 2, 4, 5, 8, 10, 16, 20, 40, 80, 160, 320}

// ValidSRPeriod reports whether n is an SR periodicity, in slots, allowed by
// SchedulingRequestResourceConfig.
func ValidSRPeriod(n int) bool {
	return slices.Contains(validSRPeriods, n)
}

// BuilderParams are the static per-cell inputs of the resource list builder.
type BuilderParams struct {
	BWPSizePRBs int
	// Resources per PUCCH resource set, for one cell-level configuration.
	NofResSet0 int
	NofResSet1 int
	// Number of distinct resource-set configurations the cell hands out to
	// spread UEs over the resource list.
	NofCellResSetConfigs int
	NofSRResources       int
	NofCSIResources      int
	SRPeriodSlots        int
	// Set0 is Format0Params or Format1Params; Set1 is Format2Params,
	// Format3Params or Format4Params. SR resources share Set0's format and
	// CSI resources share Set1's.
	Set0 FormatParams
	Set1 FormatParams
}

func (p BuilderParams) Validate() error {
	if p.BWPSizePRBs <= 0 {
		return fmt.Errorf("bwp size must be positive, got %d", p.BWPSizePRBs)
	}
	if p.NofResSet0 < 1 || p.NofResSet0 > 32 {
		return fmt.Errorf("resource set 0 size must be in [1, 32], got %d", p.NofResSet0)
	}
	if p.NofResSet1 < 1 || p.NofResSet1 > 8 {
		return fmt.Errorf("resource set 1 size must be in [1, 8], got %d", p.NofResSet1)
	}
	if p.NofCellResSetConfigs < 1 {
		return fmt.Errorf("number of cell resource set configurations must be positive, got %d", p.NofCellResSetConfigs)
	}
	if p.NofSRResources < 0 || p.NofCSIResources < 0 {
		return fmt.Errorf("negative SR/CSI resource count")
	}
	if !ValidSRPeriod(p.SRPeriodSlots) {
		return fmt.Errorf("invalid SR period %d slots", p.SRPeriodSlots)
	}
	if p.Set0 == nil || p.Set1 == nil {
		return errors.New("format parameters for both resource sets are required")
	}
	if f := p.Set0.Format(); f != Format0 && f != Format1 {
		return fmt.Errorf("resource set 0 must use format 0 or 1, got %s", f)
	}
	if f := p.Set1.Format(); f != Format2 && f != Format3 && f != Format4 {
		return fmt.Errorf("resource set 1 must use format 2, 3 or 4, got %s", f)
	}
	if err := p.Set0.Validate(); err != nil {
		return err
	}
	return p.Set1.Validate()
}

// Layout is the flat resource-id layout produced by BuildResourceList.
func (p BuilderParams) Layout() Layout {
	return Layout{
		NofResSet0: p.NofResSet0,
		NofResSet1: p.NofResSet1,
		Set0Block:  p.NofResSet0 * p.NofCellResSetConfigs,
		SRBlock:    p.NofSRResources,
		Set1Block:  p.NofResSet1 * p.NofCellResSetConfigs,
		CSIBlock:   p.NofCSIResources,
	}
}
