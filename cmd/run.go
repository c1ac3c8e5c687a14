package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/fovcover/internal/config"
	"github.com/sells-group/fovcover/internal/neighborhood"
	"github.com/sells-group/fovcover/internal/store"
)

var (
	runNeighborhoods []string
	runDryRun        bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Compute coverage reports for configured neighborhoods",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate(); err != nil {
			return err
		}
		hoods, err := selectNeighborhoods(cfg, runNeighborhoods)
		if err != nil {
			return err
		}

		opts, err := neighborhood.NewOptions(cfg)
		if err != nil {
			return err
		}
		opts.DryRun = runDryRun

		var st store.Store
		if !runDryRun {
			st, err = store.Open(ctx, cfg.Store)
			if err != nil {
				return err
			}
			defer st.Close() //nolint:errcheck
		}

		proc, err := neighborhood.NewProcessor(opts, st)
		if err != nil {
			return err
		}

		results, runErr := neighborhood.NewRunner(proc, cfg.Batch.MaxConcurrentNeighborhoods).Run(ctx, hoods)
		formatResults(os.Stdout, results)
		return runErr
	},
}

func init() {
	runCmd.Flags().StringSliceVarP(&runNeighborhoods, "neighborhood", "n", nil, "neighborhoods to process (default all configured)")
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "compute reports without writing shapefiles or ledger entries")
	rootCmd.AddCommand(runCmd)
}

// selectNeighborhoods returns the named neighborhoods in the order given, or
// every configured neighborhood when names is empty.
func selectNeighborhoods(c *config.Config, names []string) ([]config.NeighborhoodConfig, error) {
	if len(names) == 0 {
		return c.Neighborhoods, nil
	}
	out := make([]config.NeighborhoodConfig, 0, len(names))
	for _, name := range names {
		n, ok := c.Neighborhood(name)
		if !ok {
			return nil, eris.Errorf("unknown neighborhood %q", name)
		}
		out = append(out, n)
	}
	return out, nil
}

// formatResults writes one line per zone of every successful neighborhood.
func formatResults(out io.Writer, results []*neighborhood.Result) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "NEIGHBORHOOD\tZONE\tFOV_CNT\tTOTFOV_AREA\tTOTQOV_CNT\tNOIR_PCT\tACTL_FOV")
	for _, r := range results {
		if r == nil || r.Report == nil {
			continue
		}
		for _, z := range r.Report.Zones {
			_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%.1f\t%d\t%.1f\t%.1f\n",
				r.Neighborhood,
				z.Category,
				z.Stats.FOVCount,
				z.Stats.FOVArea,
				z.Stats.QOVCount,
				z.Stats.NoIRPct,
				z.Stats.ActualFOVPct,
			)
		}
	}
	_ = w.Flush()
}
