package cmd

import (
	"fmt"
	"io"
	"strconv"

	"gnb-pucch/internal/config"
	"gnb-pucch/internal/logging"
	"gnb-pucch/internal/resmgr"

	"github.com/olekukonko/tablewriter"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func newValidateCmd() *cobra.Command {
	var configFile string
	validateCmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a deployment configuration",
		Long:  "Load the configuration and build every cell's resource pool without allocating",
		RunE: func(cmd *cobra.Command, args []string) error {
			return validateConfig(cmd.OutOrStdout(), configFile)
		},
	}
	validateCmd.Flags().StringVarP(&configFile, "config", "c", "", "Path to deployment configuration file")
	validateCmd.MarkFlagRequired("config")
	return validateCmd
}

// buildManager creates a resource manager holding a pool for every cell of
// cfg.
func buildManager(cfg *config.DeploymentConfig, logger logrus.FieldLogger) (*resmgr.Manager, error) {
	m, err := resmgr.NewManager(cfg.MaxPUCCHGrantsPerSlot, nil, logger)
	if err != nil {
		return nil, err
	}
	for _, cell := range cfg.GetCellsSorted() {
		cellCfg, err := cell.Build()
		if err != nil {
			return nil, fmt.Errorf("cell %s: %w", cell.Name, err)
		}
		if err := m.AddCell(cell.Index, cellCfg); err != nil {
			return nil, fmt.Errorf("cell %s: %w", cell.Name, err)
		}
	}
	return m, nil
}

func validateConfig(out io.Writer, configFile string) error {
	logger := logging.GetLogger()

	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		logger.WithField("config_file", configFile).WithError(err).Error("Configuration validation failed")
		return err
	}
	m, err := buildManager(cfg, logging.GetAllocatorLogger())
	if err != nil {
		logger.WithField("config_file", configFile).WithError(err).Error("Configuration validation failed")
		return err
	}
	checksum, err := config.CellsChecksum(cfg)
	if err != nil {
		return err
	}

	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"Cell", "Name", "SR period", "CSI period", "LCM", "Free SR", "Free CSI"})
	for _, cell := range cfg.GetCellsSorted() {
		snap, err := m.Snapshot(cell.Index)
		if err != nil {
			return err
		}
		logging.AllocatorForCell(cell.Index).WithFields(logrus.Fields{
			"free_sr_pairs":  len(snap.FreeSR),
			"free_csi_pairs": len(snap.FreeCSI),
			"lcm_period":     snap.LCMPeriodSlots,
		}).Debug("Cell pool validated")
		csiPeriod := "-"
		if snap.CSIPeriodSlots > 0 {
			csiPeriod = strconv.Itoa(snap.CSIPeriodSlots)
		}
		table.Append([]string{
			strconv.Itoa(cell.Index),
			cell.Name,
			strconv.Itoa(snap.SRPeriodSlots),
			csiPeriod,
			strconv.Itoa(snap.LCMPeriodSlots),
			strconv.Itoa(len(snap.FreeSR)),
			strconv.Itoa(len(snap.FreeCSI)),
		})
	}
	table.Render()
	fmt.Fprintf(out, "configuration valid, checksum %s\n", checksum)

	logger.WithFields(logrus.Fields{
		"config_file": configFile,
		"checksum":    checksum,
	}).Info("Configuration is valid")
	return nil
}
