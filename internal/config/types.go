package config

import (
	"cmp"
	"fmt"
	"slices"

	"gnb-pucch/internal/csi"
	"gnb-pucch/internal/pucch"
	"gnb-pucch/internal/resmgr"
	"gnb-pucch/internal/tdd"
)

type DeploymentConfig struct {
	MaxPUCCHGrantsPerSlot int              `yaml:"max_pucch_grants_per_slot"`
	LogLevel              string           `yaml:"log_level"`
	InfluxDB              *InfluxDBConfig  `yaml:"influxdb,omitempty"`
	Simulation            SimulationConfig `yaml:"simulation"`
	Cells                 []CellEntry      `yaml:"cells"`
}

type InfluxDBConfig struct {
	Host   string `yaml:"host"`
	Token  string `yaml:"token"`
	Org    string `yaml:"org"`
	Bucket string `yaml:"bucket"`
}

// SimulationConfig drives the attach/detach simulation of the CLI. Zero
// values are replaced by defaults when the file is loaded, except for
// DetachEvery where an explicit 0 means never detach.
type SimulationConfig struct {
	UEsPerCell  int  `yaml:"ues_per_cell"`
	DetachEvery *int `yaml:"detach_every,omitempty"`
	Rounds      int  `yaml:"rounds"`
	Reattach    bool `yaml:"reattach"`
}

// DetachInterval returns DetachEvery, or the default when it is unset.
func (s SimulationConfig) DetachInterval() int {
	if s.DetachEvery == nil {
		return defaultDetachEvery
	}
	return *s.DetachEvery
}

type CellEntry struct {
	Index int         `yaml:"index"`
	Name  string      `yaml:"name"`
	PUCCH PUCCHConfig `yaml:"pucch"`
	CSI   *CSIConfig  `yaml:"csi,omitempty"`
	TDD   *TDDConfig  `yaml:"tdd,omitempty"`
}

type PUCCHConfig struct {
	BWPSizePRBs          int          `yaml:"bwp_size_prbs"`
	NofResSet0           int          `yaml:"nof_res_set0"`
	NofResSet1           int          `yaml:"nof_res_set1"`
	NofCellResSetConfigs int          `yaml:"nof_cell_res_set_configs"`
	NofSRResources       int          `yaml:"nof_sr_resources"`
	NofCSIResources      int          `yaml:"nof_csi_resources"`
	SRPeriodSlots        int          `yaml:"sr_period_slots"`
	Set0                 FormatConfig `yaml:"set0"`
	Set1                 FormatConfig `yaml:"set1"`
}

// FormatConfig holds the parameters of any PUCCH format; which fields apply
// depends on Format.
type FormatConfig struct {
	Format               int     `yaml:"format"`
	NofSymbols           int     `yaml:"nof_symbols"`
	IntraslotFreqHopping bool    `yaml:"intraslot_freq_hopping"`
	OCC                  bool    `yaml:"occ"`
	NofCyclicShifts      int     `yaml:"nof_cyclic_shifts"`
	MaxNofPRBs           int     `yaml:"max_nof_prbs"`
	MaxCodeRate          float64 `yaml:"max_code_rate"`
	AdditionalDMRS       bool    `yaml:"additional_dmrs"`
	Pi2BPSK              bool    `yaml:"pi2_bpsk"`
	OCCLength            int     `yaml:"occ_length"`
}

type CSIConfig struct {
	RSPeriodSlots     int    `yaml:"rs_period_slots"`
	RSOffsetSlots     int    `yaml:"rs_offset_slots"`
	ReportPeriodSlots int    `yaml:"report_period_slots"`
	Quantity          string `yaml:"quantity"`
	NofPorts          int    `yaml:"nof_ports"`
	NofCSIRSResources int    `yaml:"nof_csi_rs_resources"`
}

type TDDConfig struct {
	TDDPeriod `yaml:",inline"`
	Pattern2  *TDDPeriod `yaml:"pattern2,omitempty"`
}

type TDDPeriod struct {
	PeriodSlots  int `yaml:"period_slots"`
	NofDLSlots   int `yaml:"nof_dl_slots"`
	NofDLSymbols int `yaml:"nof_dl_symbols"`
	NofULSlots   int `yaml:"nof_ul_slots"`
	NofULSymbols int `yaml:"nof_ul_symbols"`
}

func (c *DeploymentConfig) GetCellsSorted() []CellEntry {
	cells := slices.Clone(c.Cells)
	slices.SortFunc(cells, func(a, b CellEntry) int {
		return cmp.Compare(a.Index, b.Index)
	})
	return cells
}

// Params converts the entry into the parameter record of its format.
func (f FormatConfig) Params() (pucch.FormatParams, error) {
	format, err := pucch.ParseFormat(f.Format)
	if err != nil {
		return nil, err
	}
	var rate pucch.MaxCodeRate
	if format >= pucch.Format2 {
		if rate, err = pucch.ParseMaxCodeRate(f.MaxCodeRate); err != nil {
			return nil, err
		}
	}
	switch format {
	case pucch.Format0:
		return pucch.Format0Params{NofSymbols: f.NofSymbols, IntraslotFreqHopping: f.IntraslotFreqHopping}, nil
	case pucch.Format1:
		return pucch.Format1Params{
			NofSymbols:           f.NofSymbols,
			IntraslotFreqHopping: f.IntraslotFreqHopping,
			OCC:                  f.OCC,
			NofCyclicShifts:      f.NofCyclicShifts,
		}, nil
	case pucch.Format2:
		return pucch.Format2Params{
			NofSymbols:           f.NofSymbols,
			MaxNofPRBs:           f.MaxNofPRBs,
			MaxCodeRate:          rate,
			IntraslotFreqHopping: f.IntraslotFreqHopping,
		}, nil
	case pucch.Format3:
		return pucch.Format3Params{
			NofSymbols:           f.NofSymbols,
			MaxNofPRBs:           f.MaxNofPRBs,
			MaxCodeRate:          rate,
			IntraslotFreqHopping: f.IntraslotFreqHopping,
			AdditionalDMRS:       f.AdditionalDMRS,
			Pi2BPSK:              f.Pi2BPSK,
		}, nil
	default:
		return pucch.Format4Params{
			NofSymbols:           f.NofSymbols,
			MaxCodeRate:          rate,
			IntraslotFreqHopping: f.IntraslotFreqHopping,
			AdditionalDMRS:       f.AdditionalDMRS,
			Pi2BPSK:              f.Pi2BPSK,
			OCCLength:            f.OCCLength,
		}, nil
	}
}

// BuilderParams converts the PUCCH section of a cell.
func (p PUCCHConfig) BuilderParams() (pucch.BuilderParams, error) {
	set0, err := p.Set0.Params()
	if err != nil {
		return pucch.BuilderParams{}, fmt.Errorf("set0: %w", err)
	}
	set1, err := p.Set1.Params()
	if err != nil {
		return pucch.BuilderParams{}, fmt.Errorf("set1: %w", err)
	}
	out := pucch.BuilderParams{
		BWPSizePRBs:          p.BWPSizePRBs,
		NofResSet0:           p.NofResSet0,
		NofResSet1:           p.NofResSet1,
		NofCellResSetConfigs: p.NofCellResSetConfigs,
		NofSRResources:       p.NofSRResources,
		NofCSIResources:      p.NofCSIResources,
		SRPeriodSlots:        p.SRPeriodSlots,
		Set0:                 set0,
		Set1:                 set1,
	}
	return out, out.Validate()
}

func (c CSIConfig) MeasConfig() *csi.MeasConfig {
	return &csi.MeasConfig{
		RSPeriodSlots: c.RSPeriodSlots,
		RSOffsetSlots: c.RSOffsetSlots,
		Reports: []csi.ReportConfig{{
			PeriodSlots:       c.ReportPeriodSlots,
			PUCCHResourceID:   csi.NoPUCCHResource,
			Quantity:          csi.ReportQuantity(c.Quantity),
			NofPorts:          c.NofPorts,
			NofCSIRSResources: c.NofCSIRSResources,
		}},
	}
}

func (p TDDPeriod) period() tdd.Period {
	return tdd.Period{
		PeriodSlots:  p.PeriodSlots,
		NofDLSlots:   p.NofDLSlots,
		NofDLSymbols: p.NofDLSymbols,
		NofULSlots:   p.NofULSlots,
		NofULSymbols: p.NofULSymbols,
	}
}

func (c TDDConfig) Pattern() *tdd.Pattern {
	out := &tdd.Pattern{Pattern1: c.TDDPeriod.period()}
	if c.Pattern2 != nil {
		p2 := c.Pattern2.period()
		out.Pattern2 = &p2
	}
	return out
}

// Build converts the entry into the resource manager's cell configuration
// and validates every section.
func (c CellEntry) Build() (resmgr.CellConfig, error) {
	params, err := c.PUCCH.BuilderParams()
	if err != nil {
		return resmgr.CellConfig{}, fmt.Errorf("pucch: %w", err)
	}
	out := resmgr.CellConfig{PUCCH: params}
	if c.CSI != nil {
		out.CSIMeas = c.CSI.MeasConfig()
		if err := out.CSIMeas.Validate(); err != nil {
			return resmgr.CellConfig{}, fmt.Errorf("csi: %w", err)
		}
	}
	if c.TDD != nil {
		out.TDD = c.TDD.Pattern()
		if err := out.TDD.Validate(); err != nil {
			return resmgr.CellConfig{}, fmt.Errorf("tdd: %w", err)
		}
	}
	return out, nil
}
