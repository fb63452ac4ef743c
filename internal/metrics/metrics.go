// Package metrics exposes the PUCCH resource manager as Prometheus metrics.
package metrics

import (
	"fmt"
	"net/http"
	"strconv"

	"gnb-pucch/internal/resmgr"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	resultAdmitted = "admitted"
	resultRejected = "rejected"
)

// Collector records allocation outcomes and pool occupancy per cell. It
// implements resmgr.Observer.
type Collector struct {
	gatherer prometheus.Gatherer

	Allocations   *prometheus.CounterVec
	Deallocations *prometheus.CounterVec

	FreeSRPairs   *prometheus.GaugeVec
	FreeCSIPairs  *prometheus.GaugeVec
	LiveUEs       *prometheus.GaugeVec
	MaxSlotGrants *prometheus.GaugeVec
}

var _ resmgr.Observer = (*Collector)(nil)

// NewCollector registers the PUCCH metrics against reg, defaulting to the
// global Prometheus registry when nil. Registering twice on the same
// registry returns collectors bound to the existing metrics.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	allocs, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pucch_alloc_total",
		Help: "PUCCH allocation attempts, labeled by cell and result (admitted or rejected).",
	}, []string{"cell", "result"}), "pucch_alloc_total")
	if err != nil {
		return nil, err
	}
	deallocs, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pucch_dealloc_total",
		Help: "PUCCH reservations released, labeled by cell.",
	}, []string{"cell"}), "pucch_dealloc_total")
	if err != nil {
		return nil, err
	}

	gauges := make([]*prometheus.GaugeVec, 0, 4)
	for _, opts := range []prometheus.GaugeOpts{
		{Name: "pucch_free_sr_pairs", Help: "Free SR (resource, offset) pairs per cell."},
		{Name: "pucch_free_csi_pairs", Help: "Free CSI (resource, offset) pairs per cell."},
		{Name: "pucch_live_ues", Help: "UEs currently holding PUCCH resources per cell."},
		{Name: "pucch_max_slot_grants", Help: "Highest per-slot PUCCH grant count in the cell's period."},
	} {
		g, err := registerGaugeVec(reg, prometheus.NewGaugeVec(opts, []string{"cell"}), opts.Name)
		if err != nil {
			return nil, err
		}
		gauges = append(gauges, g)
	}

	return &Collector{
		gatherer:      gatherer,
		Allocations:   allocs,
		Deallocations: deallocs,
		FreeSRPairs:   gauges[0],
		FreeCSIPairs:  gauges[1],
		LiveUEs:       gauges[2],
		MaxSlotGrants: gauges[3],
	}, nil
}

// Handler exposes a ready-to-use /metrics handler.
func (c *Collector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

func (c *Collector) AllocDone(cellIndex int, ok bool) {
	if c == nil {
		return
	}
	result := resultRejected
	if ok {
		result = resultAdmitted
	}
	c.Allocations.WithLabelValues(cellLabel(cellIndex), result).Inc()
}

func (c *Collector) DeallocDone(cellIndex int) {
	if c == nil {
		return
	}
	c.Deallocations.WithLabelValues(cellLabel(cellIndex)).Inc()
}

func (c *Collector) PoolChanged(stats resmgr.PoolStats) {
	if c == nil {
		return
	}
	cell := cellLabel(stats.CellIndex)
	c.FreeSRPairs.WithLabelValues(cell).Set(float64(stats.FreeSR))
	c.FreeCSIPairs.WithLabelValues(cell).Set(float64(stats.FreeCSI))
	c.LiveUEs.WithLabelValues(cell).Set(float64(stats.LiveUEs))
	c.MaxSlotGrants.WithLabelValues(cell).Set(float64(stats.MaxSlotGrants))
}

// CellRemoved drops the gauges of a removed cell; its counters are kept.
func (c *Collector) CellRemoved(cellIndex int) {
	if c == nil {
		return
	}
	cell := cellLabel(cellIndex)
	for _, g := range []*prometheus.GaugeVec{c.FreeSRPairs, c.FreeCSIPairs, c.LiveUEs, c.MaxSlotGrants} {
		g.DeleteLabelValues(cell)
	}
}

func cellLabel(cellIndex int) string {
	return strconv.Itoa(cellIndex)
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerGaugeVec(reg prometheus.Registerer, vec *prometheus.GaugeVec, name string) (*prometheus.GaugeVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.GaugeVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}
