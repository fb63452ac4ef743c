package database

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"time"

	"gnb-pucch/internal/config"
	"gnb-pucch/internal/logging"
	"gnb-pucch/internal/resmgr"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/sirupsen/logrus"
)

const (
	poolMeasurement      = "pucch_pool"
	slotGrantMeasurement = "pucch_slot_grants"
	runMeasurement       = "pucch_run_meta"
)

// RunMetadata describes one simulation run.
type RunMetadata struct {
	RunID          string `json:"run_id"`
	ConfigChecksum string `json:"config_checksum"`
	Started        string `json:"started"`  // RFC3339 timestamp
	Finished       string `json:"finished"` // RFC3339 timestamp
	Cells          int    `json:"cells"`
	Attempts       int    `json:"attempts"`
	Admitted       int    `json:"admitted"`
	Rejected       int    `json:"rejected"`
	Released       int    `json:"released"`
	Hostname       string `json:"hostname"`
	OSInfo         string `json:"os_info"`
	DriverVersion  string `json:"driver_version"`
}

// pointWriter is the part of the InfluxDB blocking write API the client uses.
type pointWriter interface {
	WritePoint(ctx context.Context, point ...*write.Point) error
}

type InfluxDBClient struct {
	client   influxdb2.Client
	writeAPI pointWriter
	bucket   string
	org      string
}

func NewInfluxDBClient(cfg config.InfluxDBConfig) (*InfluxDBClient, error) {
	logger := logging.GetLogger()

	client := influxdb2.NewClient(cfg.Host, cfg.Token)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	health, err := client.Health(ctx)
	if err != nil {
		logger.WithField("host", cfg.Host).WithError(err).Error("Failed to connect to InfluxDB")
		client.Close()
		return nil, err
	}

	if health.Status != "pass" {
		msg := ""
		if health.Message != nil {
			msg = *health.Message
		}
		logger.WithFields(logrus.Fields{
			"host":    cfg.Host,
			"status":  health.Status,
			"message": msg,
		}).Error("InfluxDB health check failed")
		client.Close()
		return nil, fmt.Errorf("influxdb at %s is not healthy: %s", cfg.Host, health.Status)
	}

	logger.WithFields(logrus.Fields{
		"host":   cfg.Host,
		"bucket": cfg.Bucket,
		"org":    cfg.Org,
	}).Info("Connected to InfluxDB")

	return &InfluxDBClient{
		client:   client,
		writeAPI: client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		bucket:   cfg.Bucket,
		org:      cfg.Org,
	}, nil
}

// WriteSnapshots writes one pucch_pool point per cell and one
// pucch_slot_grants point per slot of each cell's period, all stamped at.
func (idb *InfluxDBClient) WriteSnapshots(ctx context.Context, runID string, snaps []resmgr.PoolSnapshot, at time.Time) error {
	points := SnapshotPoints(runID, snaps, at)
	if len(points) == 0 {
		return nil
	}
	if err := idb.writeAPI.WritePoint(ctx, points...); err != nil {
		return fmt.Errorf("failed to write pool snapshots: %w", err)
	}
	logging.GetLogger().WithFields(logrus.Fields{
		"run_id": runID,
		"points": len(points),
		"bucket": idb.bucket,
	}).Debug("Wrote pool snapshots to InfluxDB")
	return nil
}

// SnapshotPoints converts snapshots into InfluxDB points.
func SnapshotPoints(runID string, snaps []resmgr.PoolSnapshot, at time.Time) []*write.Point {
	var points []*write.Point
	for _, s := range snaps {
		cell := strconv.Itoa(s.CellIndex)
		points = append(points, influxdb2.NewPoint(poolMeasurement,
			map[string]string{
				"run_id":     runID,
				"cell_index": cell,
			},
			map[string]interface{}{
				"free_sr_pairs":       len(s.FreeSR),
				"free_csi_pairs":      len(s.FreeCSI),
				"live_ues":            s.LiveUEs,
				"ue_counter":          s.UECounter,
				"max_slot_grants":     s.MaxSlotGrants(),
				"max_grants_per_slot": s.MaxGrantsPerSlot,
				"sr_period_slots":     s.SRPeriodSlots,
				"csi_period_slots":    s.CSIPeriodSlots,
				"lcm_period_slots":    s.LCMPeriodSlots,
			},
			at))

		for slot, grants := range s.Grants {
			points = append(points, influxdb2.NewPoint(slotGrantMeasurement,
				map[string]string{
					"run_id":     runID,
					"cell_index": cell,
					"slot":       strconv.Itoa(slot),
				},
				map[string]interface{}{
					"grants": grants,
				},
				at))
		}
	}
	return points
}

func (idb *InfluxDBClient) WriteRunMetadata(ctx context.Context, metadata *RunMetadata) error {
	if metadata == nil {
		return errors.New("run metadata is nil")
	}
	point := influxdb2.NewPoint(runMeasurement,
		map[string]string{
			"run_id": metadata.RunID,
		},
		map[string]interface{}{
			"config_checksum": metadata.ConfigChecksum,
			"started":         metadata.Started,
			"finished":        metadata.Finished,
			"cells":           metadata.Cells,
			"attempts":        metadata.Attempts,
			"admitted":        metadata.Admitted,
			"rejected":        metadata.Rejected,
			"released":        metadata.Released,
			"hostname":        metadata.Hostname,
			"os_info":         metadata.OSInfo,
			"driver_version":  metadata.DriverVersion,
		},
		time.Now())

	if err := idb.writeAPI.WritePoint(ctx, point); err != nil {
		return fmt.Errorf("failed to write run metadata: %w", err)
	}
	return nil
}

// HostInfo fills the host fields of metadata.
func HostInfo(metadata *RunMetadata) {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	metadata.Hostname = hostname
	metadata.OSInfo = runtime.GOOS + "/" + runtime.GOARCH
}

func (idb *InfluxDBClient) Close() {
	if idb.client != nil {
		idb.client.Close()
	}
}
