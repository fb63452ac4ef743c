package storage

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"sync"

	log "github.com/sirupsen/logrus"
)

type Event string

const (
	EventAttach Event = "attach"
	EventDetach Event = "detach"
)

// TraceEntry is the pool state after one attach or detach.
type TraceEntry struct {
	Step          int   `json:"step"`
	Round         int   `json:"round"`
	Event         Event `json:"event"`
	UEIndex       int   `json:"ue_index"`
	Admitted      bool  `json:"admitted"`
	LiveUEs       int   `json:"live_ues"`
	FreeSR        int   `json:"free_sr_pairs"`
	FreeCSI       int   `json:"free_csi_pairs"`
	MaxSlotGrants int   `json:"max_slot_grants"`
}

// CellTrace is the ordered step log of one cell.
type CellTrace struct {
	CellIndex int          `json:"cell_index"`
	Entries   []TraceEntry `json:"entries"`

	mutex sync.RWMutex
}

// SimulationTrace collects a CellTrace per cell. Cells record concurrently.
type SimulationTrace struct {
	RunID string             `json:"run_id"`
	Cells map[int]*CellTrace `json:"cells"`

	mutex sync.RWMutex
}

func NewSimulationTrace(runID string) *SimulationTrace {
	return &SimulationTrace{
		RunID: runID,
		Cells: make(map[int]*CellTrace),
	}
}

// Record appends entry to the trace of cellIndex, creating it on first use.
func (st *SimulationTrace) Record(cellIndex int, entry TraceEntry) {
	st.mutex.Lock()
	ct, exists := st.Cells[cellIndex]
	if !exists {
		ct = &CellTrace{CellIndex: cellIndex}
		st.Cells[cellIndex] = ct
	}
	st.mutex.Unlock()

	ct.mutex.Lock()
	ct.Entries = append(ct.Entries, entry)
	ct.mutex.Unlock()
}

// Entries returns a copy of the trace of cellIndex.
func (st *SimulationTrace) Entries(cellIndex int) []TraceEntry {
	st.mutex.RLock()
	ct, exists := st.Cells[cellIndex]
	st.mutex.RUnlock()
	if !exists {
		return nil
	}
	ct.mutex.RLock()
	defer ct.mutex.RUnlock()
	return slices.Clone(ct.Entries)
}

func (st *SimulationTrace) GetTotalEntries() int {
	st.mutex.RLock()
	defer st.mutex.RUnlock()

	total := 0
	for _, ct := range st.Cells {
		ct.mutex.RLock()
		total += len(ct.Entries)
		ct.mutex.RUnlock()
	}
	return total
}

// ExportToCSV writes one file per cell into exportPath and returns the
// file names in cell order.
func (st *SimulationTrace) ExportToCSV(exportPath string) ([]string, error) {
	st.mutex.RLock()
	defer st.mutex.RUnlock()

	if err := os.MkdirAll(exportPath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create export directory: %w", err)
	}

	cells := make([]int, 0, len(st.Cells))
	for idx := range st.Cells {
		cells = append(cells, idx)
	}
	slices.Sort(cells)

	files := make([]string, 0, len(cells))
	for _, idx := range cells {
		filename := filepath.Join(exportPath, fmt.Sprintf("pucch_%s_cell%d.csv", st.RunID, idx))
		ct := st.Cells[idx]
		if err := ct.ExportToCSV(filename); err != nil {
			return nil, fmt.Errorf("failed to export cell %d: %w", idx, err)
		}
		files = append(files, filename)

		log.WithFields(log.Fields{
			"cell_index": idx,
			"filename":   filename,
			"entries":    len(ct.Entries),
		}).Debug("Exported cell trace to CSV")
	}

	log.WithFields(log.Fields{
		"export_path": exportPath,
		"run_id":      st.RunID,
		"cells":       len(cells),
	}).Info("Exported simulation trace to CSV")
	return files, nil
}

var traceHeader = []string{
	"step", "round", "event", "ue_index", "admitted",
	"live_ues", "free_sr_pairs", "free_csi_pairs", "max_slot_grants",
}

func (ct *CellTrace) ExportToCSV(filename string) error {
	ct.mutex.RLock()
	defer ct.mutex.RUnlock()

	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write(traceHeader); err != nil {
		return err
	}
	for _, e := range ct.Entries {
		record := []string{
			strconv.Itoa(e.Step),
			strconv.Itoa(e.Round),
			string(e.Event),
			strconv.Itoa(e.UEIndex),
			strconv.FormatBool(e.Admitted),
			strconv.Itoa(e.LiveUEs),
			strconv.Itoa(e.FreeSR),
			strconv.Itoa(e.FreeCSI),
			strconv.Itoa(e.MaxSlotGrants),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}
