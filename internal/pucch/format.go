package pucch

import (
	"fmt"
	"strconv"
)

// Format is the PUCCH format tag (TS 38.211 Section 6.3.2).
type Format uint8

const (
	Format0 Format = iota
	Format1
	Format2
	Format3
	Format4
)

func (f Format) String() string {
	if f > Format4 {
		return fmt.Sprintf("Format(%d)", uint8(f))
	}
	return fmt.Sprintf("F%d", uint8(f))
}

// ParseFormat maps a numeric format (0..4) to its tag.
func ParseFormat(n int) (Format, error) {
	if n < 0 || n > int(Format4) {
		return 0, fmt.Errorf("invalid PUCCH format %d", n)
	}
	return Format(n), nil
}

// MaxCodeRate is the PUCCH-FormatConfig maxCodeRate, kept in hundredths so
// payload computations stay in integer arithmetic.
type MaxCodeRate int

const (
	CodeRate0Dot08 MaxCodeRate = 8
	CodeRate0Dot15 MaxCodeRate = 15
	CodeRate0Dot25 MaxCodeRate = 25
	CodeRate0Dot35 MaxCodeRate = 35
	CodeRate0Dot45 MaxCodeRate = 45
	CodeRate0Dot60 MaxCodeRate = 60
	CodeRate0Dot80 MaxCodeRate = 80
)

var validCodeRates = []MaxCodeRate{
	CodeRate0Dot08, CodeRate0Dot15, CodeRate0Dot25, CodeRate0Dot35,
	CodeRate0Dot45, CodeRate0Dot60, CodeRate0Dot80,
}

// ParseMaxCodeRate accepts one of the RRC code rates written as a decimal (e.g. 0.35).
func ParseMaxCodeRate(v float64) (MaxCodeRate, error) {
	hundredths := MaxCodeRate(v*100 + 0.5)
	for _, r := range validCodeRates {
		if r == hundredths {
			return r, nil
		}
	}
	return 0, fmt.Errorf("invalid PUCCH max code rate %v", v)
}

func (r MaxCodeRate) Float() float64 {
	return float64(r) / 100
}

func (r MaxCodeRate) String() string {
	return strconv.FormatFloat(r.Float(), 'f', 2, 64)
}

func (r MaxCodeRate) valid() bool {
	for _, v := range validCodeRates {
		if v == r {
			return true
		}
	}
	return false
}

// FormatParams is the per-format parameter record. The concrete type is one
// of Format0Params..Format4Params.
type FormatParams interface {
	Format() Format
	Symbols() int
	Validate() error
}

type Format0Params struct {
	NofSymbols           int
	IntraslotFreqHopping bool
}

type Format1Params struct {
	NofSymbols           int
	IntraslotFreqHopping bool
	OCC                  bool
	NofCyclicShifts      int
}

type Format2Params struct {
	NofSymbols           int
	MaxNofPRBs           int
	MaxCodeRate          MaxCodeRate
	IntraslotFreqHopping bool
}

type Format3Params struct {
	NofSymbols           int
	MaxNofPRBs           int
	MaxCodeRate          MaxCodeRate
	IntraslotFreqHopping bool
	AdditionalDMRS       bool
	Pi2BPSK              bool
}

type Format4Params struct {
	NofSymbols           int
	MaxCodeRate          MaxCodeRate
	IntraslotFreqHopping bool
	AdditionalDMRS       bool
	Pi2BPSK              bool
	OCCLength            int
}

func (Format0Params) Format() Format { return Format0 }
func (Format1Params) Format() Format { return Format1 }
func (Format2Params) Format() Format { return Format2 }
func (Format3Params) Format() Format { return Format3 }
func (Format4Params) Format() Format { return Format4 }

func (p Format0Params) Symbols() int { return p.NofSymbols }
func (p Format1Params) Symbols() int { return p.NofSymbols }
func (p Format2Params) Symbols() int { return p.NofSymbols }
func (p Format3Params) Symbols() int { return p.NofSymbols }
func (p Format4Params) Symbols() int { return p.NofSymbols }

func (p Format0Params) Validate() error {
	if p.NofSymbols < 1 || p.NofSymbols > 2 {
		return fmt.Errorf("format 0: nof_symbols must be 1 or 2, got %d", p.NofSymbols)
	}
	if p.IntraslotFreqHopping && p.NofSymbols != 2 {
		return fmt.Errorf("format 0: intra-slot hopping requires 2 symbols")
	}
	return nil
}

func (p Format1Params) Validate() error {
	if p.NofSymbols < 4 || p.NofSymbols > nofSymbolsPerSlot {
		return fmt.Errorf("format 1: nof_symbols must be in [4, 14], got %d", p.NofSymbols)
	}
	switch p.NofCyclicShifts {
	case 1, 2, 3, 4, 6, 12:
	default:
		return fmt.Errorf("format 1: invalid number of cyclic shifts %d", p.NofCyclicShifts)
	}
	return nil
}

func (p Format2Params) Validate() error {
	if p.NofSymbols < 1 || p.NofSymbols > 2 {
		return fmt.Errorf("format 2: nof_symbols must be 1 or 2, got %d", p.NofSymbols)
	}
	if p.MaxNofPRBs < 1 || p.MaxNofPRBs > 16 {
		return fmt.Errorf("format 2: max_nof_prbs must be in [1, 16], got %d", p.MaxNofPRBs)
	}
	if p.IntraslotFreqHopping && p.NofSymbols != 2 {
		return fmt.Errorf("format 2: intra-slot hopping requires 2 symbols")
	}
	if !p.MaxCodeRate.valid() {
		return fmt.Errorf("format 2: invalid max code rate %s", p.MaxCodeRate)
	}
	return nil
}

func (p Format3Params) Validate() error {
	if p.NofSymbols < 4 || p.NofSymbols > nofSymbolsPerSlot {
		return fmt.Errorf("format 3: nof_symbols must be in [4, 14], got %d", p.NofSymbols)
	}
	// TS 38.211 Section 6.3.2.6.3: the PRB count must be of the form 2^a * 3^b * 5^c.
	switch p.MaxNofPRBs {
	case 1, 2, 3, 4, 5, 6, 8, 9, 10, 12, 15, 16:
	default:
		return fmt.Errorf("format 3: invalid max_nof_prbs %d", p.MaxNofPRBs)
	}
	if !p.MaxCodeRate.valid() {
		return fmt.Errorf("format 3: invalid max code rate %s", p.MaxCodeRate)
	}
	return nil
}

func (p Format4Params) Validate() error {
	if p.NofSymbols < 4 || p.NofSymbols > nofSymbolsPerSlot {
		return fmt.Errorf("format 4: nof_symbols must be in [4, 14], got %d", p.NofSymbols)
	}
	if p.OCCLength != 2 && p.OCCLength != 4 {
		return fmt.Errorf("format 4: occ_length must be 2 or 4, got %d", p.OCCLength)
	}
	if !p.MaxCodeRate.valid() {
		return fmt.Errorf("format 4: invalid max code rate %s", p.MaxCodeRate)
	}
	return nil
}

func hasIntraslotHopping(p FormatParams) bool {
	switch v := p.(type) {
	case Format0Params:
		return v.IntraslotFreqHopping
	case Format1Params:
		return v.IntraslotFreqHopping
	case Format2Params:
		return v.IntraslotFreqHopping
	case Format3Params:
		return v.IntraslotFreqHopping
	case Format4Params:
		return v.IntraslotFreqHopping
	}
	return false
}
