package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"gnb-pucch/internal/config"
	"gnb-pucch/internal/database"
	"gnb-pucch/internal/logging"
	"gnb-pucch/internal/metrics"
	"gnb-pucch/internal/simulation"
	"gnb-pucch/internal/storage"

	"github.com/google/uuid"
	"github.com/olekukonko/tablewriter"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

type simulateOptions struct {
	configFile  string
	influx      bool
	spoolDir    string
	traceDir    string
	metricsAddr string
	linger      time.Duration

	uesPerCell  int
	detachEvery int
	rounds      int
	reattach    bool
}

func newSimulateCmd(logLevel *string) *cobra.Command {
	var opts simulateOptions
	simulateCmd := &cobra.Command{
		Use:   "simulate",
		Short: "Simulate UE attach/detach against the configured cells",
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			return runSimulation(cmd.Context(), cmd.OutOrStdout(), opts, *logLevel, func(plan *simulation.Plan) {
				if flags.Changed("ues") {
					plan.UEsPerCell = opts.uesPerCell
				}
				if flags.Changed("detach-every") {
					plan.DetachEvery = opts.detachEvery
				}
				if flags.Changed("rounds") {
					plan.Rounds = opts.rounds
				}
				if flags.Changed("reattach") {
					plan.Reattach = opts.reattach
				}
			})
		},
	}

	f := simulateCmd.Flags()
	f.StringVarP(&opts.configFile, "config", "c", "", "Path to deployment configuration file")
	f.BoolVar(&opts.influx, "influx", false, "Export the final pool snapshots to the configured InfluxDB")
	f.StringVar(&opts.spoolDir, "spool-dir", "", "Write a run artifact to this directory (default $PUCCH_SPOOL_DIR or ./spool when --influx fails)")
	f.StringVar(&opts.traceDir, "trace-dir", "", "Export a per-step CSV trace of every cell to this directory")
	f.StringVar(&opts.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9100)")
	f.DurationVar(&opts.linger, "linger", 0, "Keep serving metrics this long after the run (interrupt to stop early)")
	f.IntVar(&opts.uesPerCell, "ues", 0, "UEs attached per cell and round (overrides the config)")
	f.IntVar(&opts.detachEvery, "detach-every", 0, "Detach the oldest UE after every n-th attach (overrides the config)")
	f.IntVar(&opts.rounds, "rounds", 0, "Number of rounds (overrides the config)")
	f.BoolVar(&opts.reattach, "reattach", false, "Release all UEs at the end of each round (overrides the config)")
	simulateCmd.MarkFlagRequired("config")
	return simulateCmd
}

func runSimulation(ctx context.Context, out io.Writer, opts simulateOptions, logLevel string, override func(*simulation.Plan)) error {
	logger := logging.GetLogger()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, configContent, err := config.LoadConfigWithContent(opts.configFile)
	if err != nil {
		return err
	}
	if err := applyLogLevel(logLevel, cfg.LogLevel); err != nil {
		return err
	}

	runID := uuid.New().String()
	checksum, err := config.CellsChecksum(cfg)
	if err != nil {
		return err
	}
	logger.WithFields(logrus.Fields{
		"run_id":   runID,
		"checksum": checksum,
		"cells":    len(cfg.Cells),
	}).Info("Starting PUCCH simulation")

	m, err := buildManager(cfg, logging.GetAllocatorLogger())
	if err != nil {
		return err
	}
	reg := prometheus.NewRegistry()
	collector, err := metrics.NewCollector(reg)
	if err != nil {
		return err
	}
	m.SetObserver(collector)
	for _, idx := range m.Cells() {
		snap, err := m.Snapshot(idx)
		if err != nil {
			return err
		}
		collector.PoolChanged(snap.Stats())
	}

	var server *http.Server
	if opts.metricsAddr != "" {
		server = serveMetrics(opts.metricsAddr, collector)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = server.Shutdown(shutdownCtx)
		}()
	}

	plan := simulation.Plan{
		UEsPerCell:  cfg.Simulation.UEsPerCell,
		DetachEvery: cfg.Simulation.DetachInterval(),
		Rounds:      cfg.Simulation.Rounds,
		Reattach:    cfg.Simulation.Reattach,
	}
	if override != nil {
		override(&plan)
	}
	runner, err := simulation.NewRunner(m, plan, logger)
	if err != nil {
		return err
	}
	var trace *storage.SimulationTrace
	if opts.traceDir != "" {
		trace = storage.NewSimulationTrace(runID)
		runner.WithTrace(trace)
	}

	started := time.Now()
	report, err := runner.Run(ctx)
	if err != nil {
		return fmt.Errorf("simulation failed: %w", err)
	}
	finished := time.Now()

	renderReport(out, report)

	if trace != nil {
		if _, err := trace.ExportToCSV(opts.traceDir); err != nil {
			return fmt.Errorf("failed to export trace: %w", err)
		}
	}

	totals := report.Totals()
	metadata := &database.RunMetadata{
		RunID:          runID,
		ConfigChecksum: checksum,
		Started:        started.Format(time.RFC3339),
		Finished:       finished.Format(time.RFC3339),
		Cells:          len(report.Cells),
		Attempts:       totals.Attempts,
		Admitted:       totals.Admitted,
		Rejected:       totals.Rejected,
		Released:       totals.Released,
		DriverVersion:  Version,
	}
	database.HostInfo(metadata)

	spool := opts.spoolDir != ""
	if opts.influx {
		if err := exportInflux(ctx, cfg, report, metadata, finished); err != nil {
			logger.WithError(err).Warn("InfluxDB export failed, spooling run to disk")
			spool = true
		}
	}
	if spool {
		path, err := database.WriteSpoolArtifact(opts.spoolDir, &database.SpoolArtifact{
			Version:        1,
			CreatedAt:      finished,
			RunID:          runID,
			ConfigChecksum: checksum,
			ConfigContent:  configContent,
			Metadata:       metadata,
			Snapshots:      report.Snapshots(),
		})
		if err != nil {
			return fmt.Errorf("failed to write spool artifact: %w", err)
		}
		logger.WithField("path", path).Info("Wrote run artifact")
	}

	if server != nil && opts.linger > 0 {
		logger.WithFields(logrus.Fields{
			"addr":   opts.metricsAddr,
			"linger": opts.linger,
		}).Info("Serving metrics")
		select {
		case <-ctx.Done():
		case <-time.After(opts.linger):
		}
	}
	return nil
}

func exportInflux(ctx context.Context, cfg *config.DeploymentConfig, report *simulation.Report, metadata *database.RunMetadata, at time.Time) error {
	if cfg.InfluxDB == nil {
		return errors.New("no influxdb section in configuration")
	}
	idb, err := database.NewInfluxDBClient(*cfg.InfluxDB)
	if err != nil {
		return err
	}
	defer idb.Close()

	if err := idb.WriteSnapshots(ctx, metadata.RunID, report.Snapshots(), at); err != nil {
		return err
	}
	return idb.WriteRunMetadata(ctx, metadata)
}

func serveMetrics(addr string, collector *metrics.Collector) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.GetLogger().WithField("addr", addr).WithError(err).Error("Metrics server failed")
		}
	}()
	return server
}

func renderReport(out io.Writer, report *simulation.Report) {
	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"Cell", "Attempts", "Admitted", "Rejected", "Released", "Live", "Free SR", "Free CSI", "Max grants"})
	for _, c := range report.Cells {
		table.Append([]string{
			strconv.Itoa(c.CellIndex),
			strconv.Itoa(c.Attempts),
			strconv.Itoa(c.Admitted),
			strconv.Itoa(c.Rejected),
			strconv.Itoa(c.Released),
			strconv.Itoa(c.Final.LiveUEs),
			strconv.Itoa(len(c.Final.FreeSR)),
			strconv.Itoa(len(c.Final.FreeCSI)),
			fmt.Sprintf("%d/%d", c.Final.MaxSlotGrants(), c.Final.MaxGrantsPerSlot),
		})
	}
	t := report.Totals()
	table.SetFooter([]string{"Total", strconv.Itoa(t.Attempts), strconv.Itoa(t.Admitted), strconv.Itoa(t.Rejected), strconv.Itoa(t.Released), "", "", "", ""})
	table.Render()
}
