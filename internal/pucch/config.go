package pucch

import (
	"fmt"
	"slices"
)

// ResourceSet is a PUCCH resource set as referenced by a UE's PUCCH-Config.
type ResourceSet struct {
	ID             int
	ResourceIDs    []int
	MaxPayloadBits int
}

// SRResource is a SchedulingRequestResourceConfig.
type SRResource struct {
	ID              int
	PUCCHResourceID int
	PeriodSlots     int
	OffsetSlots     int
}

// Config is the PUCCH-Config of a UE (or the cell default it is derived from).
type Config struct {
	Resources    []Resource
	ResourceSets []ResourceSet
	SR           []SRResource
	// Cell-level format parameters (PUCCH-FormatConfig) of the formats in use.
	FormatParams []FormatParams
	// MaxPayloadBits is the per-format maximum UCI payload table.
	MaxPayloadBits map[Format]int
}

func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	out := &Config{
		Resources:    slices.Clone(c.Resources),
		SR:           slices.Clone(c.SR),
		FormatParams: slices.Clone(c.FormatParams),
	}
	for _, rs := range c.ResourceSets {
		rs.ResourceIDs = slices.Clone(rs.ResourceIDs)
		out.ResourceSets = append(out.ResourceSets, rs)
	}
	if c.MaxPayloadBits != nil {
		out.MaxPayloadBits = make(map[Format]int, len(c.MaxPayloadBits))
		for f, v := range c.MaxPayloadBits {
			out.MaxPayloadBits[f] = v
		}
	}
	return out
}

// Resource looks up a resource of the config by id.
func (c *Config) Resource(id int) (Resource, bool) {
	for _, r := range c.Resources {
		if r.ID == id {
			return r, true
		}
	}
	return Resource{}, false
}

// ParamsFor returns the cell-level parameters configured for format f.
func (c *Config) ParamsFor(f Format) (FormatParams, bool) {
	for _, fp := range c.FormatParams {
		if fp.Format() == f {
			return fp, true
		}
	}
	return nil, false
}

// UEConfigRequest carries the allocator's decisions to the assembler.
type UEConfigRequest struct {
	Base      *Config
	Resources []Resource
	Params    BuilderParams
	// UECounter diversifies the resource-set configuration handed to each UE.
	UECounter     int
	SRResourceID  int
	CSIResourceID int
	WithCSI       bool
}

// Assembler is the default builder of cell and UE PUCCH configurations.
type Assembler struct{}

func (Assembler) ResourceList(p BuilderParams) ([]Resource, error) {
	return BuildResourceList(p)
}

// DefaultConfig builds the cell default PUCCH-Config: resource-set
// configuration 0 and, if the cell has any, the first SR resource at offset 0.
func (Assembler) DefaultConfig(p BuilderParams, resources []Resource) (*Config, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	l := p.Layout()
	if len(resources) != l.Total() {
		return nil, fmt.Errorf("resource list has %d entries, layout expects %d", len(resources), l.Total())
	}
	cfg := &Config{FormatParams: []FormatParams{p.Set0, p.Set1}}
	if err := fillResourceSets(cfg, l, resources, 0, p); err != nil {
		return nil, err
	}
	if l.SRBlock > 0 {
		srID := l.SRResourceID(0)
		cfg.SR = []SRResource{{ID: 0, PUCCHResourceID: srID, PeriodSlots: p.SRPeriodSlots}}
		if err := addResource(cfg, resources, srID); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// UEConfig derives a UE's PUCCH-Config from the cell default using the
// chosen SR and CSI resources.
func (Assembler) UEConfig(req UEConfigRequest) (*Config, error) {
	if req.Base == nil {
		return nil, fmt.Errorf("base PUCCH config is nil")
	}
	if len(req.Base.SR) == 0 {
		return nil, fmt.Errorf("base PUCCH config has no SR resource")
	}
	l := req.Params.Layout()
	if len(req.Resources) != l.Total() {
		return nil, fmt.Errorf("resource list has %d entries, layout expects %d", len(req.Resources), l.Total())
	}
	cfg := &Config{
		SR:           slices.Clone(req.Base.SR[:1]),
		FormatParams: slices.Clone(req.Base.FormatParams),
	}
	cfgIdx := req.UECounter % req.Params.NofCellResSetConfigs
	if err := fillResourceSets(cfg, l, req.Resources, cfgIdx, req.Params); err != nil {
		return nil, err
	}
	cfg.SR[0].PUCCHResourceID = req.SRResourceID
	if err := addResource(cfg, req.Resources, req.SRResourceID); err != nil {
		return nil, err
	}
	if req.WithCSI {
		if err := addResource(cfg, req.Resources, req.CSIResourceID); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func fillResourceSets(cfg *Config, l Layout, resources []Resource, cfgIdx int, p BuilderParams) error {
	set0 := ResourceSet{ID: 0, MaxPayloadBits: MaxPayloadBits(p.Set0)}
	for k := 0; k < l.NofResSet0; k++ {
		id := l.Set0ResourceID(cfgIdx, k)
		if err := addResource(cfg, resources, id); err != nil {
			return err
		}
		set0.ResourceIDs = append(set0.ResourceIDs, id)
	}
	set1 := ResourceSet{ID: 1, MaxPayloadBits: MaxPayloadBits(p.Set1)}
	for k := 0; k < l.NofResSet1; k++ {
		id := l.Set1ResourceID(cfgIdx, k)
		if err := addResource(cfg, resources, id); err != nil {
			return err
		}
		set1.ResourceIDs = append(set1.ResourceIDs, id)
	}
	cfg.ResourceSets = []ResourceSet{set0, set1}
	return nil
}

func addResource(cfg *Config, resources []Resource, id int) error {
	if id < 0 || id >= len(resources) || resources[id].ID != id {
		return fmt.Errorf("PUCCH resource %d not found in cell resource list", id)
	}
	if _, ok := cfg.Resource(id); ok {
		return nil
	}
	cfg.Resources = append(cfg.Resources, resources[id])
	return nil
}
