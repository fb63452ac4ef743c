// Package tdd describes a TDD-UL-DL-ConfigCommon pattern and answers which
// slots carry uplink symbols.
package tdd

import "fmt"

const nofSymbolsPerSlot = 14

// Period is one TDD-UL-DL-Pattern: NofDLSlots full DL slots, then a mixed slot
// with NofDLSymbols DL and NofULSymbols UL symbols, then NofULSlots full UL
// slots at the end of the period.
type Period struct {
	PeriodSlots  int
	NofDLSlots   int
	NofDLSymbols int
	NofULSlots   int
	NofULSymbols int
}

// Pattern is a TDD configuration with an optional second period.
type Pattern struct {
	Pattern1 Period
	Pattern2 *Period
}

func (p Period) validate() error {
	if p.PeriodSlots <= 0 {
		return fmt.Errorf("tdd period must be positive, got %d", p.PeriodSlots)
	}
	if p.NofDLSlots < 0 || p.NofULSlots < 0 || p.NofDLSlots+p.NofULSlots > p.PeriodSlots {
		return fmt.Errorf("tdd period of %d slots cannot hold %d DL and %d UL slots", p.PeriodSlots, p.NofDLSlots, p.NofULSlots)
	}
	if p.NofDLSymbols < 0 || p.NofULSymbols < 0 || p.NofDLSymbols+p.NofULSymbols > nofSymbolsPerSlot {
		return fmt.Errorf("mixed slot cannot hold %d DL and %d UL symbols", p.NofDLSymbols, p.NofULSymbols)
	}
	if p.NofDLSlots+p.NofULSlots == p.PeriodSlots && p.NofDLSymbols+p.NofULSymbols > 0 {
		return fmt.Errorf("no room for a mixed slot in a %d-slot period", p.PeriodSlots)
	}
	return nil
}

func (p Pattern) Validate() error {
	if err := p.Pattern1.validate(); err != nil {
		return err
	}
	if p.Pattern2 != nil {
		if err := p.Pattern2.validate(); err != nil {
			return fmt.Errorf("pattern2: %w", err)
		}
	}
	return nil
}

// TotalPeriodSlots is the length after which the pattern repeats.
func (p Pattern) TotalPeriodSlots() int {
	n := p.Pattern1.PeriodSlots
	if p.Pattern2 != nil {
		n += p.Pattern2.PeriodSlots
	}
	return n
}

// NofActiveULSymbols returns how many uplink symbols slot carries.
func (p Pattern) NofActiveULSymbols(slot int) int {
	idx := slot % p.TotalPeriodSlots()
	period := p.Pattern1
	if idx >= p.Pattern1.PeriodSlots {
		idx -= p.Pattern1.PeriodSlots
		period = *p.Pattern2
	}
	ulStart := period.PeriodSlots - period.NofULSlots
	switch {
	case idx >= ulStart:
		return nofSymbolsPerSlot
	case idx == ulStart-1 && idx >= period.NofDLSlots:
		return period.NofULSymbols
	default:
		return 0
	}
}

func (p Pattern) HasActiveULSymbols(slot int) bool {
	return p.NofActiveULSymbols(slot) > 0
}
