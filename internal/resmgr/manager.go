// Package resmgr assigns periodic PUCCH reservations (SR and CSI report
// occasions) to UEs of a cell under a per-slot grant limit, and takes them
// back on detach.
//
// Calls for the same cell must come from one owner at a time (typically the
// control-plane task handling that cell's attach/detach); different cells
// are independent.
package resmgr

import (
	"errors"
	"fmt"
	"sync"

	"gnb-pucch/internal/csi"
	"gnb-pucch/internal/pucch"

	"github.com/sirupsen/logrus"
)

// ConfigAssembler builds the cell resource list and the cell/UE PUCCH-Config
// structures from the allocator's decisions.
type ConfigAssembler interface {
	ResourceList(p pucch.BuilderParams) ([]pucch.Resource, error)
	DefaultConfig(p pucch.BuilderParams, resources []pucch.Resource) (*pucch.Config, error)
	UEConfig(req pucch.UEConfigRequest) (*pucch.Config, error)
}

// PoolStats summarises a pool for observers.
type PoolStats struct {
	CellIndex     int
	FreeSR        int
	FreeCSI       int
	LiveUEs       int
	MaxSlotGrants int
}

// Observer is notified of allocation outcomes. Calls are made while the
// cell's pool is locked and must not call back into the Manager.
type Observer interface {
	AllocDone(cellIndex int, ok bool)
	DeallocDone(cellIndex int)
	PoolChanged(stats PoolStats)
	CellRemoved(cellIndex int)
}

// UECellConfig is the caller-owned per-UE, per-cell configuration. PUCCH is
// nil while the UE holds no PUCCH resources. A non-nil CSIMeas requests a
// periodic CSI report.
type UECellConfig struct {
	UEIndex   int
	CellIndex int
	PUCCH     *pucch.Config
	CSIMeas   *csi.MeasConfig
}

type Manager struct {
	maxGrantsPerSlot int
	assembler        ConfigAssembler
	logger           logrus.FieldLogger
	observer         Observer

	mu    sync.RWMutex
	cells map[int]*cellPool
}

func NewManager(maxGrantsPerSlot int, assembler ConfigAssembler, logger logrus.FieldLogger) (*Manager, error) {
	if maxGrantsPerSlot <= 0 {
		return nil, fmt.Errorf("max PUCCH grants per slot must be positive, got %d", maxGrantsPerSlot)
	}
	if assembler == nil {
		assembler = pucch.Assembler{}
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Manager{
		maxGrantsPerSlot: maxGrantsPerSlot,
		assembler:        assembler,
		logger:           logger,
		cells:            make(map[int]*cellPool),
	}, nil
}

// SetObserver installs o; it must be called before the manager is shared.
func (m *Manager) SetObserver(o Observer) {
	m.observer = o
}

func (m *Manager) MaxGrantsPerSlot() int {
	return m.maxGrantsPerSlot
}

// AddCell builds the resource pool of a new cell.
func (m *Manager) AddCell(cellIndex int, cfg CellConfig) error {
	pool, err := newCellPool(cellIndex, cfg, m.maxGrantsPerSlot, m.assembler)
	if err != nil {
		m.logger.WithField("cell_index", cellIndex).WithError(err).Error("Failed to build PUCCH resource pool")
		return fmt.Errorf("cell %d: %w", cellIndex, err)
	}

	m.mu.Lock()
	if _, exists := m.cells[cellIndex]; exists {
		m.mu.Unlock()
		return CellExistsError{CellIndex: cellIndex}
	}
	m.cells[cellIndex] = pool
	m.mu.Unlock()

	m.logger.WithFields(cellLogFields(pool)).WithFields(logrus.Fields{
		"free_sr_pairs":  len(pool.srFree),
		"free_csi_pairs": len(pool.csiFree),
	}).Info("Added PUCCH resource pool")
	if m.observer != nil {
		m.observer.PoolChanged(pool.stats())
	}
	return nil
}

// RemCell drops a cell's pool. UEs still holding resources in it keep their
// configuration; the caller is expected to have released them.
func (m *Manager) RemCell(cellIndex int) error {
	m.mu.Lock()
	pool, ok := m.cells[cellIndex]
	if !ok {
		m.mu.Unlock()
		return CellNotFoundError{CellIndex: cellIndex}
	}
	delete(m.cells, cellIndex)
	m.mu.Unlock()

	pool.mu.Lock()
	live := pool.liveUEs
	pool.mu.Unlock()
	entry := m.logger.WithField("cell_index", cellIndex)
	if live > 0 {
		entry.WithField("live_ues", live).Warn("Removed PUCCH resource pool with UEs still attached")
	} else {
		entry.Info("Removed PUCCH resource pool")
	}
	if m.observer != nil {
		m.observer.CellRemoved(cellIndex)
	}
	return nil
}

func (m *Manager) cell(cellIndex int) (*cellPool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	pool, ok := m.cells[cellIndex]
	if !ok {
		return nil, CellNotFoundError{CellIndex: cellIndex}
	}
	return pool, nil
}

// Cells returns the indexes of all cells with a pool.
func (m *Manager) Cells() []int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]int, 0, len(m.cells))
	for idx := range m.cells {
		out = append(out, idx)
	}
	return uniqueSorted(out)
}

// DefaultUECellConfig returns a fresh UE configuration for the cell, seeded
// with the cell's CSI measurement config when periodic CSI is enabled.
func (m *Manager) DefaultUECellConfig(cellIndex, ueIndex int) (*UECellConfig, error) {
	pool, err := m.cell(cellIndex)
	if err != nil {
		return nil, err
	}
	pool.mu.Lock()
	defer pool.mu.Unlock()
	ue := &UECellConfig{UEIndex: ueIndex, CellIndex: cellIndex}
	if pool.csiMeas != nil {
		ue.CSIMeas = pool.csiMeas.Clone()
		for i := range ue.CSIMeas.Reports {
			ue.CSIMeas.Reports[i].PUCCHResourceID = csi.NoPUCCHResource
		}
	}
	return ue, nil
}

// Snapshot copies the bookkeeping of a cell's pool.
func (m *Manager) Snapshot(cellIndex int) (PoolSnapshot, error) {
	pool, err := m.cell(cellIndex)
	if err != nil {
		return PoolSnapshot{}, err
	}
	pool.mu.Lock()
	defer pool.mu.Unlock()
	return pool.snapshot(), nil
}

// AllocResources reserves an SR occasion and, if ue.CSIMeas is set, a CSI
// report occasion for the UE, and writes the resulting PUCCH-Config into
// ue.PUCCH. Running out of resources is reported as false with a nil error
// and leaves ue.PUCCH nil; errors are reserved for caller or configuration
// mistakes.
func (m *Manager) AllocResources(ue *UECellConfig) (bool, error) {
	if ue == nil {
		return false, errors.New("ue config is nil")
	}
	pool, err := m.cell(ue.CellIndex)
	if err != nil {
		return false, err
	}

	pool.mu.Lock()
	defer pool.mu.Unlock()

	if ue.PUCCH != nil {
		return false, fmt.Errorf("ue %d in cell %d: %w", ue.UEIndex, ue.CellIndex, ErrAlreadyAllocated)
	}
	if ue.CSIMeas != nil {
		if pool.csiPeriod == 0 {
			return false, fmt.Errorf("ue %d in cell %d: %w", ue.UEIndex, ue.CellIndex, ErrCSIDisabled)
		}
		if err := ue.CSIMeas.Validate(); err != nil {
			return false, fmt.Errorf("ue %d in cell %d: invalid CSI meas config: %w", ue.UEIndex, ue.CellIndex, err)
		}
		if p := ue.CSIMeas.Reports[0].PeriodSlots; p != pool.csiPeriod {
			return false, fmt.Errorf("ue %d in cell %d: CSI report period %d differs from cell period %d", ue.UEIndex, ue.CellIndex, p, pool.csiPeriod)
		}
	}

	res, ok := pool.reserve(ue.CSIMeas)
	if !ok {
		ue.PUCCH = nil
		m.logger.WithFields(ueLogFields(ue)).WithFields(logrus.Fields{
			"free_sr_pairs":  len(pool.srFree),
			"free_csi_pairs": len(pool.csiFree),
			"csi_required":   ue.CSIMeas != nil,
		}).Warn("No PUCCH resources left for UE")
		if m.observer != nil {
			m.observer.AllocDone(pool.index, false)
		}
		return false, nil
	}

	cfg, err := m.assemble(pool, res, ue)
	if err != nil {
		pool.release(res)
		ue.PUCCH = nil
		return false, fmt.Errorf("ue %d in cell %d: failed to assemble PUCCH config: %w", ue.UEIndex, ue.CellIndex, err)
	}
	ue.PUCCH = cfg
	pool.ueCounter++
	pool.liveUEs++

	fields := logrus.Fields{
		"sr_resource": cfg.SR[0].PUCCHResourceID,
		"sr_offset":   res.sr.Offset,
	}
	if res.withCSI {
		fields["csi_resource"] = ue.CSIMeas.Reports[0].PUCCHResourceID
		fields["csi_offset"] = res.csi.Offset
	}
	m.logger.WithFields(ueLogFields(ue)).WithFields(fields).Debug("Allocated PUCCH resources")
	if m.observer != nil {
		m.observer.AllocDone(pool.index, true)
		m.observer.PoolChanged(pool.stats())
	}
	return true, nil
}

// assemble turns a reservation into the UE's PUCCH-Config and stamps the
// chosen offsets onto the SR resource and the CSI report.
func (m *Manager) assemble(pool *cellPool, res reservation, ue *UECellConfig) (*pucch.Config, error) {
	req := pucch.UEConfigRequest{
		Base:          pool.defaultCfg,
		Resources:     pool.resources,
		Params:        pool.params,
		UECounter:     pool.ueCounter,
		SRResourceID:  pool.layout.SRResourceID(res.sr.Ordinal),
		CSIResourceID: csi.NoPUCCHResource,
		WithCSI:       res.withCSI,
	}
	if res.withCSI {
		req.CSIResourceID = pool.layout.CSIResourceID(res.csi.Ordinal)
	}
	cfg, err := m.assembler.UEConfig(req)
	if err != nil {
		return nil, err
	}
	if cfg == nil || len(cfg.SR) == 0 {
		return nil, errors.New("assembled PUCCH config has no SR resource")
	}
	cfg.SR[0].PUCCHResourceID = req.SRResourceID
	cfg.SR[0].PeriodSlots = pool.srPeriod
	cfg.SR[0].OffsetSlots = res.sr.Offset
	if res.withCSI {
		ue.CSIMeas.Reports[0].OffsetSlots = res.csi.Offset
		ue.CSIMeas.Reports[0].PUCCHResourceID = req.CSIResourceID
	}
	fillMaxPayloads(cfg)
	return cfg, nil
}

// fillMaxPayloads stores the maximum UCI payload of every format used by the
// config's resources, using the cell-level parameters of that format.
func fillMaxPayloads(cfg *pucch.Config) {
	cfg.MaxPayloadBits = make(map[pucch.Format]int)
	for _, r := range cfg.Resources {
		if _, done := cfg.MaxPayloadBits[r.Format]; done {
			continue
		}
		if fp, ok := cfg.ParamsFor(r.Format); ok {
			cfg.MaxPayloadBits[r.Format] = pucch.MaxPayloadBits(fp)
		}
	}
}

// DeallocResources gives the UE's SR and CSI occasions back to the pool and
// disables its PUCCH config. Releasing a UE whose PUCCH is already disabled
// does nothing.
func (m *Manager) DeallocResources(ue *UECellConfig) error {
	if ue == nil {
		return errors.New("ue config is nil")
	}
	pool, err := m.cell(ue.CellIndex)
	if err != nil {
		return err
	}

	pool.mu.Lock()
	defer pool.mu.Unlock()

	if ue.PUCCH == nil {
		m.logger.WithFields(ueLogFields(ue)).Debug("UE holds no PUCCH resources, nothing to release")
		return nil
	}

	res := pool.reservationOf(ue)
	pool.release(res)
	ue.PUCCH = nil
	if res.withCSI {
		ue.CSIMeas.Reports[0].PUCCHResourceID = csi.NoPUCCHResource
	}
	pool.liveUEs--

	m.logger.WithFields(ueLogFields(ue)).WithFields(logrus.Fields{
		"sr_offset": res.sr.Offset,
		"with_csi":  res.withCSI,
	}).Debug("Released PUCCH resources")
	if m.observer != nil {
		m.observer.DeallocDone(pool.index)
		m.observer.PoolChanged(pool.stats())
	}
	return nil
}

// reservationOf reads back what AllocResources committed for ue. Anything
// that does not map onto this pool is a desynchronisation and panics.
func (p *cellPool) reservationOf(ue *UECellConfig) reservation {
	if len(ue.PUCCH.SR) == 0 {
		panic(fmt.Sprintf("cell %d: ue %d has a PUCCH config without SR resource", p.index, ue.UEIndex))
	}
	sr := ue.PUCCH.SR[0]
	srOrd, ok := p.layout.SROrdinal(sr.PUCCHResourceID)
	if !ok || sr.OffsetSlots < 0 || sr.OffsetSlots >= p.srPeriod {
		panic(fmt.Sprintf("cell %d: ue %d SR resource %d offset %d does not belong to this pool", p.index, ue.UEIndex, sr.PUCCHResourceID, sr.OffsetSlots))
	}
	res := reservation{sr: ResourceOffset{Ordinal: srOrd, Offset: sr.OffsetSlots}}

	if ue.CSIMeas == nil || p.csiPeriod == 0 {
		return res
	}
	report := ue.CSIMeas.Reports[0]
	csiOrd, ok := p.layout.CSIOrdinal(report.PUCCHResourceID)
	if !ok || report.OffsetSlots < 0 || report.OffsetSlots >= p.csiPeriod {
		panic(fmt.Sprintf("cell %d: ue %d CSI resource %d offset %d does not belong to this pool", p.index, ue.UEIndex, report.PUCCHResourceID, report.OffsetSlots))
	}
	res.csi = ResourceOffset{Ordinal: csiOrd, Offset: report.OffsetSlots}
	res.withCSI = true
	return res
}
