// Package csi holds the periodic CSI measurement configuration a cell hands
// to its UEs and the report sizing the PUCCH allocator needs.
package csi

import (
	"errors"
	"fmt"
	"math/bits"
	"slices"
)

var validPeriods = []int{4, 5, 8, 10, 16, 20, 32, 40, 64, 80, 160, 320}

// ValidPeriod reports whether n is an allowed CSI-RS / CSI report periodicity in slots.
func ValidPeriod(n int) bool {
	return slices.Contains(validPeriods, n)
}

// ReportQuantity is the reportQuantity of a CSI-ReportConfig.
type ReportQuantity string

const (
	QuantityCRIRICQI      ReportQuantity = "cri-ri-cqi"
	QuantityCRIRIPMICQI   ReportQuantity = "cri-ri-pmi-cqi"
	QuantityCRIRILIPMICQI ReportQuantity = "cri-ri-li-pmi-cqi"
)

// NoPUCCHResource marks a report whose PUCCH resource has not been assigned.
const NoPUCCHResource = -1

// ReportConfig is a periodic CSI-ReportConfig carried on PUCCH.
type ReportConfig struct {
	PeriodSlots       int
	OffsetSlots       int
	PUCCHResourceID   int
	Quantity          ReportQuantity
	NofPorts          int
	NofCSIRSResources int
}

// MeasConfig is the CSI-MeasConfig of a cell or UE.
type MeasConfig struct {
	RSPeriodSlots int
	RSOffsetSlots int
	Reports       []ReportConfig
}

func (m *MeasConfig) Clone() *MeasConfig {
	if m == nil {
		return nil
	}
	out := *m
	out.Reports = slices.Clone(m.Reports)
	return &out
}

func (m *MeasConfig) Validate() error {
	if m == nil {
		return errors.New("csi meas config is nil")
	}
	if !ValidPeriod(m.RSPeriodSlots) {
		return fmt.Errorf("invalid CSI-RS period %d slots", m.RSPeriodSlots)
	}
	if m.RSOffsetSlots < 0 || m.RSOffsetSlots >= m.RSPeriodSlots {
		return fmt.Errorf("CSI-RS offset %d outside [0, %d)", m.RSOffsetSlots, m.RSPeriodSlots)
	}
	if len(m.Reports) == 0 {
		return errors.New("csi meas config has no report")
	}
	for i, r := range m.Reports {
		if !ValidPeriod(r.PeriodSlots) {
			return fmt.Errorf("report %d: invalid period %d slots", i, r.PeriodSlots)
		}
		switch r.NofPorts {
		case 1, 2, 4:
		default:
			return fmt.Errorf("report %d: unsupported number of ports %d", i, r.NofPorts)
		}
		if r.NofCSIRSResources < 1 {
			return fmt.Errorf("report %d: at least one CSI-RS resource is required", i)
		}
		switch r.Quantity {
		case QuantityCRIRICQI, QuantityCRIRIPMICQI, QuantityCRIRILIPMICQI:
		default:
			return fmt.Errorf("report %d: unknown report quantity %q", i, r.Quantity)
		}
	}
	return nil
}

const widebandCQIBits = 4

// Part1Bits returns the size of CSI part 1 for a wideband type-I single-panel
// report (TS 38.212 Section 6.3.1.1.2), assuming a rank-1 PMI.
func Part1Bits(r ReportConfig) int {
	n := ceilLog2(r.NofCSIRSResources) + widebandCQIBits
	riBits := ceilLog2(min(r.NofPorts, 4))
	n += riBits
	if r.Quantity == QuantityCRIRILIPMICQI {
		n += riBits
	}
	if r.Quantity != QuantityCRIRICQI {
		n += pmiBits(r.NofPorts)
	}
	return n
}

func pmiBits(nofPorts int) int {
	switch nofPorts {
	case 2:
		return 2
	case 4:
		// (N1,N2) = (2,1), O1 = 4: i1,1 takes 3 bits, i2 takes 2.
		return 5
	default:
		return 0
	}
}

func ceilLog2(n int) int {
	if n <= 1 {
		return 0
	}
	return bits.Len(uint(n - 1))
}
