package cmd

import (
	"fmt"
	"io"
	"strconv"

	"gnb-pucch/internal/config"
	"gnb-pucch/internal/pucch"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

func newLayoutCmd() *cobra.Command {
	var (
		configFile string
		cellIndex  int
	)
	layoutCmd := &cobra.Command{
		Use:   "layout",
		Short: "Print the PUCCH resource layout of the configured cells",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(configFile)
			if err != nil {
				return err
			}
			only := -1
			if cmd.Flags().Changed("cell") {
				only = cellIndex
			}
			return renderLayout(cmd.OutOrStdout(), cfg, only)
		},
	}
	layoutCmd.Flags().StringVarP(&configFile, "config", "c", "", "Path to deployment configuration file")
	layoutCmd.Flags().IntVar(&cellIndex, "cell", 0, "Only print this cell")
	layoutCmd.MarkFlagRequired("config")
	return layoutCmd
}

// renderLayout prints, per cell, the resource list with the block each id
// belongs to and the maximum payload of each format in use. only < 0 prints
// every cell.
func renderLayout(out io.Writer, cfg *config.DeploymentConfig, only int) error {
	found := false
	for _, cell := range cfg.GetCellsSorted() {
		if only >= 0 && cell.Index != only {
			continue
		}
		found = true

		params, err := cell.PUCCH.BuilderParams()
		if err != nil {
			return fmt.Errorf("cell %s: %w", cell.Name, err)
		}
		resources, err := pucch.BuildResourceList(params)
		if err != nil {
			return fmt.Errorf("cell %s: %w", cell.Name, err)
		}
		l := params.Layout()

		fmt.Fprintf(out, "Cell %d (%s): %d resources\n", cell.Index, cell.Name, len(resources))
		table := tablewriter.NewWriter(out)
		table.SetHeader([]string{"ID", "Block", "Format", "PRB", "Hop PRB", "Symbols", "CS/OCC"})
		for _, r := range resources {
			hop := "-"
			if r.HasSecondHop() {
				hop = strconv.Itoa(r.SecondHopPRB)
			}
			table.Append([]string{
				strconv.Itoa(r.ID),
				blockName(l, r.ID),
				r.Format.String(),
				fmt.Sprintf("%d+%d", r.StartPRB, r.NofPRBs),
				hop,
				fmt.Sprintf("%d..%d", r.StartSymbol, r.EndSymbol()-1),
				codeDomain(r),
			})
		}
		table.Render()

		payloads := tablewriter.NewWriter(out)
		payloads.SetHeader([]string{"Set", "Format", "Max code rate", "Max payload bits"})
		payloads.Append([]string{"0", params.Set0.Format().String(), codeRate(params.Set0), strconv.Itoa(pucch.MaxPayloadBits(params.Set0))})
		payloads.Append([]string{"1", params.Set1.Format().String(), codeRate(params.Set1), strconv.Itoa(pucch.MaxPayloadBits(params.Set1))})
		payloads.Render()
	}
	if !found {
		return fmt.Errorf("cell %d is not configured", only)
	}
	return nil
}

func blockName(l pucch.Layout, id int) string {
	if _, ok := l.SROrdinal(id); ok {
		return "SR"
	}
	if _, ok := l.CSIOrdinal(id); ok {
		return "CSI"
	}
	if id < l.Set0Block {
		return "set0"
	}
	return "set1"
}

func codeDomain(r pucch.Resource) string {
	switch r.Format {
	case pucch.Format0:
		return fmt.Sprintf("cs=%d", r.InitialCyclicShift)
	case pucch.Format1:
		return fmt.Sprintf("cs=%d occ=%d", r.InitialCyclicShift, r.TimeDomainOCC)
	case pucch.Format4:
		return fmt.Sprintf("occ=%d", r.OCCIndex)
	default:
		return "-"
	}
}

func codeRate(fp pucch.FormatParams) string {
	switch p := fp.(type) {
	case pucch.Format2Params:
		return p.MaxCodeRate.String()
	case pucch.Format3Params:
		return p.MaxCodeRate.String()
	case pucch.Format4Params:
		return p.MaxCodeRate.String()
	default:
		return "-"
	}
}
