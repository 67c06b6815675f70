package cmd

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"shipmonitor/dataset"
	"shipmonitor/ml"
)

var summaryBins int

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Print feature ranges, category options and bins of the reference dataset",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		ds, err := dataset.Load(cfg.Dataset.Path, dataset.Options{Encoding: cfg.Dataset.Encoding})
		if err != nil {
			return err
		}
		b, err := ml.NewRequestBuilder(ds)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s: %s shipments\n\n", ds.Source(), dataset.FormatCount(ds.Rows()))

		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "FEATURE\tMIN\tMEDIAN\tMAX\tBINS")
		ranges := b.Ranges()
		for _, name := range ml.NumericFeatures {
			values, err := ds.Float(name)
			if err != nil {
				return err
			}
			binning, err := ml.Bin(values, summaryBins)
			if err != nil {
				return fmt.Errorf("bin %s: %w", name, err)
			}
			r := ranges[name]
			fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%s\n", name, r.Min, r.Median, r.Max, strings.Join(binning.Labels(), " "))
		}
		fmt.Fprintf(tw, "%s\t\t\t\t%s\n", ml.CategoricalFeature, strings.Join(b.Options(), ", "))
		return tw.Flush()
	},
}

func init() {
	rootCmd.AddCommand(summaryCmd)
	summaryCmd.Flags().IntVar(&summaryBins, "bins", ml.DefaultBinCount, "bins per numeric feature")
}
