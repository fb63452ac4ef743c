package csi

import "testing"

func TestPart1Bits(t *testing.T) {
	cases := []struct {
		name string
		r    ReportConfig
		want int
	}{
		{"1 port cqi only", ReportConfig{NofPorts: 1, NofCSIRSResources: 1, Quantity: QuantityCRIRICQI}, 4},
		{"2 ports pmi", ReportConfig{NofPorts: 2, NofCSIRSResources: 1, Quantity: QuantityCRIRIPMICQI}, 7},
		{"4 ports pmi", ReportConfig{NofPorts: 4, NofCSIRSResources: 1, Quantity: QuantityCRIRIPMICQI}, 11},
		{"4 ports li", ReportConfig{NofPorts: 4, NofCSIRSResources: 1, Quantity: QuantityCRIRILIPMICQI}, 13},
		{"2 ports 4 resources", ReportConfig{NofPorts: 2, NofCSIRSResources: 4, Quantity: QuantityCRIRICQI}, 7},
	}
	for _, tc := range cases {
		if got := Part1Bits(tc.r); got != tc.want {
			t.Fatalf("%s: expected %d bits, got %d", tc.name, tc.want, got)
		}
	}
}

func validMeas() *MeasConfig {
	return &MeasConfig{
		RSPeriodSlots: 20,
		RSOffsetSlots: 2,
		Reports: []ReportConfig{{
			PeriodSlots:       20,
			PUCCHResourceID:   NoPUCCHResource,
			Quantity:          QuantityCRIRIPMICQI,
			NofPorts:          2,
			NofCSIRSResources: 1,
		}},
	}
}

func TestMeasConfig_Validate(t *testing.T) {
	if err := validMeas().Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
	cases := map[string]func(*MeasConfig){
		"rs period":  func(m *MeasConfig) { m.RSPeriodSlots = 6 },
		"rs offset":  func(m *MeasConfig) { m.RSOffsetSlots = 20 },
		"no reports": func(m *MeasConfig) { m.Reports = nil },
		"period":     func(m *MeasConfig) { m.Reports[0].PeriodSlots = 3 },
		"ports":      func(m *MeasConfig) { m.Reports[0].NofPorts = 8 },
		"resources":  func(m *MeasConfig) { m.Reports[0].NofCSIRSResources = 0 },
		"quantity":   func(m *MeasConfig) { m.Reports[0].Quantity = "ri-only" },
	}
	for name, mutate := range cases {
		m := validMeas()
		mutate(m)
		if err := m.Validate(); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}
	var nilMeas *MeasConfig
	if err := nilMeas.Validate(); err == nil {
		t.Fatalf("expected error for nil config")
	}
}

func TestMeasConfig_Clone(t *testing.T) {
	m := validMeas()
	c := m.Clone()
	c.Reports[0].OffsetSlots = 9
	if m.Reports[0].OffsetSlots != 0 {
		t.Fatalf("clone shares reports with the original")
	}
}
